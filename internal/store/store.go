// Package store persists monitors, check history, certificate snapshots, and
// incidents behind a backend-agnostic interface. Monitors are created by an
// external layer; the engine treats the store as the single owner of monitor
// state and never caches it in process.
package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/pulseguard/pulseguard/pkg/models"
)

// ErrNotFound is returned when a keyed record does not exist
var ErrNotFound = errors.New("record not found")

// ErrNotSupported is returned when a backend doesn't support an operation
var ErrNotSupported = errors.New("operation not supported by this backend")

// MonitorFilter narrows ListMonitors results. Zero value matches everything.
type MonitorFilter struct {
	ActiveOnly     bool
	Types          []models.MonitorType
	BrowserEnabled bool
	URLPrefix      string
}

// Matches reports whether the monitor passes the filter
func (f MonitorFilter) Matches(m *models.Monitor) bool {
	if f.ActiveOnly && !m.IsActive {
		return false
	}

	if len(f.Types) > 0 {
		found := false
		for _, t := range f.Types {
			if m.Type == t {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	if f.BrowserEnabled && !m.BrowserCheckEnabled() {
		return false
	}

	if f.URLPrefix != "" && !strings.HasPrefix(m.URL, f.URLPrefix) {
		return false
	}

	return true
}

// MonitorUpdate is a partial update of a monitor's status fields. Nil fields
// are left untouched. Every update stamps the monitor's updatedAt.
type MonitorUpdate struct {
	CurrentStatus       *models.MonitorStatus
	ConsecutiveFailures *int
	LastUp              *time.Time
	LastDown            *time.Time
	LastCheckedAt       *time.Time
	SSL                 *models.SSLInfo
}

// Apply copies the non-nil fields onto the monitor
func (u MonitorUpdate) Apply(m *models.Monitor, now time.Time) {
	if u.CurrentStatus != nil {
		m.CurrentStatus = *u.CurrentStatus
	}
	if u.ConsecutiveFailures != nil {
		m.ConsecutiveFailures = *u.ConsecutiveFailures
	}
	if u.LastUp != nil {
		m.LastUp = u.LastUp
	}
	if u.LastDown != nil {
		m.LastDown = u.LastDown
	}
	if u.LastCheckedAt != nil {
		m.LastCheckedAt = u.LastCheckedAt
	}
	if u.SSL != nil {
		m.SSL = u.SSL
	}
	m.UpdatedAt = now
}

// FromOutcome builds the monitor update produced by one check outcome
func FromOutcome(o *models.CheckOutcome) MonitorUpdate {
	m := o.Monitor
	status := m.CurrentStatus
	failures := m.ConsecutiveFailures
	checkedAt := o.CheckedAt

	return MonitorUpdate{
		CurrentStatus:       &status,
		ConsecutiveFailures: &failures,
		LastUp:              m.LastUp,
		LastDown:            m.LastDown,
		LastCheckedAt:       &checkedAt,
	}
}

// Store is the result store adapter boundary. All writes are monitor-scoped;
// no cross-monitor transaction is required.
type Store interface {
	// Monitors
	ListMonitors(ctx context.Context, filter MonitorFilter) ([]*models.Monitor, error)
	GetMonitor(ctx context.Context, id string) (*models.Monitor, error)
	PutMonitor(ctx context.Context, m *models.Monitor) error
	UpdateMonitor(ctx context.Context, id string, update MonitorUpdate) error

	// Check history (append-only)
	AppendCheckResult(ctx context.Context, result *models.CheckResult) error
	GetCheckResults(ctx context.Context, monitorID string, start, end time.Time, limit int) ([]*models.CheckResult, error)
	UptimeStats(ctx context.Context, monitorID string, window time.Duration) (*models.UptimeStats, error)

	// Certificates
	AppendSSLSnapshot(ctx context.Context, monitorID string, snap *models.SSLCertificateSnapshot) error
	ListSSLAlerts(ctx context.Context, monitorID string) ([]*models.SSLAlert, error)

	// Incidents
	FindOpenIncident(ctx context.Context, monitorID string) (*models.Incident, error)
	ListOpenIncidents(ctx context.Context, monitorID string) ([]*models.Incident, error)
	CreateIncident(ctx context.Context, incident *models.Incident) error
	ResolveIncident(ctx context.Context, id string) error

	// Lifecycle
	Close() error
}

// alertableTransition reports whether moving from prev to next certificate
// state warrants a new alert record. Alerts fire only on the first transition
// into an alertable state.
func alertableTransition(prev, next models.SSLState) bool {
	if next != models.SSLStateExpiringSoon && next != models.SSLStateExpired {
		return false
	}
	return prev != next
}
