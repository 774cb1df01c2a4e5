// Package engine contains the monitor evaluator and the incident manager:
// the state-transition logic that turns raw probe results into durable
// monitor status and incident lifecycle updates.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/pulseguard/pulseguard/internal/logging"
	"github.com/pulseguard/pulseguard/internal/metrics"
	"github.com/pulseguard/pulseguard/internal/probe"
	"github.com/pulseguard/pulseguard/pkg/models"
)

// Evaluator runs the appropriate probe for a monitor and applies the
// status-transition rules. It mutates only the monitor value it is handed;
// persisting the result is the caller's job.
type Evaluator struct {
	registry *probe.Registry
	logger   *logging.Logger
	metrics  *metrics.Metrics
}

// NewEvaluator creates an evaluator backed by the given probe registry
func NewEvaluator(registry *probe.Registry, logger *logging.Logger, m *metrics.Metrics) *Evaluator {
	return &Evaluator{
		registry: registry,
		logger:   logger.WithComponent(logging.ComponentEvaluator),
		metrics:  m,
	}
}

// Evaluate executes one check for the monitor and returns the outcome.
// Inactive or misconfigured monitors produce a skipped outcome that writes
// no history and opens no incidents. A failed probe is one down observation;
// there is no retry within the same cycle.
func (e *Evaluator) Evaluate(ctx context.Context, m *models.Monitor) *models.CheckOutcome {
	now := time.Now()
	prior := m.CurrentStatus

	if reason := skipReason(m); reason != "" {
		e.logger.WithMonitor(m.ID, m.Name, string(m.Type)).
			WithEvent(logging.EventCheckSkipped).
			WithFields(map[string]interface{}{"reason": reason}).
			Debug("Check skipped")
		return &models.CheckOutcome{
			Monitor:     m,
			Skipped:     true,
			PriorStatus: prior,
			CheckedAt:   now,
		}
	}

	driver, err := e.registry.For(m)
	if err != nil {
		e.logger.WithMonitor(m.ID, m.Name, string(m.Type)).
			WithEvent(logging.EventCheckSkipped).
			WithError(err).
			Warn("No probe driver for monitor")
		return &models.CheckOutcome{
			Monitor:     m,
			Skipped:     true,
			PriorStatus: prior,
			CheckedAt:   now,
		}
	}

	e.metrics.IncrementRunningChecks()
	result := e.runProbe(ctx, driver, m)
	e.metrics.DecrementRunningChecks()

	e.metrics.RecordCheck(m.DisplayName(), string(m.Type), result.Up, result.Duration)
	if !result.Up {
		e.metrics.RecordProbeError(m.DisplayName(), string(m.Type), string(result.FailureKind))
	}

	applyTransition(m, result.Up, now)

	var checkErr error
	if result.Error != "" {
		checkErr = fmt.Errorf("%s", result.Error)
	}
	e.logger.MonitorCheck(m.ID, m.Name, string(m.Type), string(m.CurrentStatus), result.Duration, checkErr)

	return &models.CheckOutcome{
		Monitor:     m,
		Up:          result.Up,
		PriorStatus: prior,
		Result:      result,
		CheckedAt:   now,
	}
}

// runProbe invokes the driver, converting a panic into a failed result so
// one broken driver cannot take down the whole run.
func (e *Evaluator) runProbe(ctx context.Context, driver probe.Prober, m *models.Monitor) (result *models.ProbeResult) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			e.logger.WithMonitor(m.ID, m.Name, string(m.Type)).
				WithFields(map[string]interface{}{"panic": fmt.Sprint(r)}).
				Error("Probe panicked")
			result = &models.ProbeResult{
				Up:          false,
				Duration:    time.Since(start),
				FailureKind: models.FailureConnectionError,
				Error:       fmt.Sprintf("probe panic: %v", r),
				Timestamp:   time.Now(),
			}
		}
	}()

	return driver.Probe(ctx, m)
}

// skipReason reports why the monitor cannot be checked, or "" if it can
func skipReason(m *models.Monitor) string {
	if !m.IsActive {
		return string(models.FailureSkippedInactive)
	}
	if m.URL == "" {
		return "missing_url"
	}
	if m.Type == models.MonitorTypeBrowser && !m.BrowserCheckEnabled() {
		return "browser_check_disabled"
	}
	return ""
}

// applyTransition updates the monitor's transient status fields from one
// check observation. lastUp/lastDown move only when the status actually
// changes into the matching state.
func applyTransition(m *models.Monitor, up bool, now time.Time) {
	checkedAt := now
	m.LastCheckedAt = &checkedAt

	if up {
		m.ConsecutiveFailures = 0
		if m.CurrentStatus != models.StatusUp {
			ts := now
			m.LastUp = &ts
		}
		m.CurrentStatus = models.StatusUp
		return
	}

	m.ConsecutiveFailures++
	if m.CurrentStatus != models.StatusDown {
		ts := now
		m.LastDown = &ts
	}
	m.CurrentStatus = models.StatusDown
}
