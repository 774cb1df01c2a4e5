package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/pulseguard/pulseguard/internal/logging"
	"github.com/pulseguard/pulseguard/internal/metrics"
	"github.com/pulseguard/pulseguard/internal/store"
	"github.com/pulseguard/pulseguard/pkg/models"
)

// IncidentManager opens and resolves incidents from check outcomes. For a
// given monitor at most one incident is open at any time; repeated down
// observations are no-ops and an up observation resolves everything open.
type IncidentManager struct {
	store   store.Store
	logger  *logging.Logger
	metrics *metrics.Metrics
}

// NewIncidentManager creates an incident manager on top of the store
func NewIncidentManager(s store.Store, logger *logging.Logger, m *metrics.Metrics) *IncidentManager {
	return &IncidentManager{
		store:   s,
		logger:  logger.WithComponent(logging.ComponentIncident),
		metrics: m,
	}
}

// Reconcile brings the monitor's incident state in line with one check
// outcome. It is idempotent: replaying the same outcome changes nothing,
// so the caller may safely retry after a partial failure.
func (im *IncidentManager) Reconcile(ctx context.Context, outcome *models.CheckOutcome) error {
	if outcome.Skipped {
		return nil
	}

	m := outcome.Monitor
	if outcome.Up {
		return im.resolveAll(ctx, m)
	}
	return im.ensureOpen(ctx, m, outcome)
}

// ensureOpen opens an incident unless one is already open for the monitor
func (im *IncidentManager) ensureOpen(ctx context.Context, m *models.Monitor, outcome *models.CheckOutcome) error {
	existing, err := im.store.FindOpenIncident(ctx, m.ID)
	if err != nil {
		return fmt.Errorf("failed to query open incident: %w", err)
	}
	if existing != nil {
		return nil
	}

	description := ""
	if outcome.Result != nil && outcome.Result.Error != "" {
		description = outcome.Result.Error
	}

	incident := &models.Incident{
		ID:          uuid.New().String(),
		MonitorID:   m.ID,
		OwnerID:     m.OwnerID,
		Title:       fmt.Sprintf("%s is down", m.DisplayName()),
		Description: description,
		Severity:    models.SeverityHigh,
		Status:      models.IncidentOpen,
		StartTime:   outcome.CheckedAt,
		UpdatedAt:   outcome.CheckedAt,
	}

	if err := im.store.CreateIncident(ctx, incident); err != nil {
		return fmt.Errorf("failed to create incident: %w", err)
	}

	im.metrics.RecordIncidentOpened(m.DisplayName(), string(incident.Severity))
	im.logger.IncidentEvent(logging.EventIncidentOpened, m.ID, incident.ID, string(incident.Severity))
	return nil
}

// resolveAll resolves every open incident for the monitor. Normally at most
// one exists, but the loop tolerates more.
func (im *IncidentManager) resolveAll(ctx context.Context, m *models.Monitor) error {
	open, err := im.store.ListOpenIncidents(ctx, m.ID)
	if err != nil {
		return fmt.Errorf("failed to list open incidents: %w", err)
	}

	for _, incident := range open {
		if err := im.store.ResolveIncident(ctx, incident.ID); err != nil {
			return fmt.Errorf("failed to resolve incident %s: %w", incident.ID, err)
		}
		im.metrics.RecordIncidentResolved(m.DisplayName())
		im.logger.IncidentEvent(logging.EventIncidentResolved, m.ID, incident.ID, string(incident.Severity))
	}
	return nil
}

// RepairMonitor re-reconciles one monitor's incident state against its
// stored status. It recovers from a crash between the monitor status write
// and the incident write: a stale open incident on an up monitor is
// resolved, a missing incident on a down monitor is opened. Monitors with
// unknown status are left untouched. Returns whether anything changed.
// Callers serialize it against live checks on the same monitor.
func (im *IncidentManager) RepairMonitor(ctx context.Context, m *models.Monitor) (bool, error) {
	switch m.CurrentStatus {
	case models.StatusUp:
		open, err := im.store.ListOpenIncidents(ctx, m.ID)
		if err != nil {
			return false, fmt.Errorf("failed to list open incidents: %w", err)
		}
		if len(open) == 0 {
			return false, nil
		}
		if err := im.resolveAll(ctx, m); err != nil {
			return false, err
		}
		return true, nil

	case models.StatusDown:
		existing, err := im.store.FindOpenIncident(ctx, m.ID)
		if err != nil {
			return false, fmt.Errorf("failed to query open incident: %w", err)
		}
		if existing != nil {
			return false, nil
		}
		outcome := &models.CheckOutcome{
			Monitor:   m,
			Up:        false,
			CheckedAt: time.Now(),
		}
		if err := im.ensureOpen(ctx, m, outcome); err != nil {
			return false, err
		}
		return true, nil
	}

	return false, nil
}
