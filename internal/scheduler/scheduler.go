// Package scheduler drives the fixed check cadences. Three independent
// tickers fan out work per monitor class; a fourth low-frequency ticker runs
// the incident reconciliation sweep.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/pulseguard/pulseguard/internal/config"
	"github.com/pulseguard/pulseguard/internal/engine"
	"github.com/pulseguard/pulseguard/internal/logging"
	"github.com/pulseguard/pulseguard/internal/metrics"
	"github.com/pulseguard/pulseguard/internal/probe"
	"github.com/pulseguard/pulseguard/internal/store"
	"github.com/pulseguard/pulseguard/pkg/models"
)

// monitorClass describes one scheduling cadence
type monitorClass struct {
	name        string
	interval    time.Duration
	concurrency int
	deadline    time.Duration // 0 means unbounded
	filter      store.MonitorFilter
}

// Scheduler runs the per-class check loops against the store
type Scheduler struct {
	cfg       config.SchedulerConfig
	store     store.Store
	evaluator *engine.Evaluator
	incidents *engine.IncidentManager
	registry  *probe.Registry
	logger    *logging.Logger
	metrics   *metrics.Metrics

	// Serializes work per monitor across overlapping ticks
	inFlight sync.Map

	stopChan chan struct{}
	wg       sync.WaitGroup
	running  bool
	mu       sync.RWMutex
}

// NewScheduler creates a scheduler wired to the engine and store
func NewScheduler(cfg config.SchedulerConfig, s store.Store, evaluator *engine.Evaluator, incidents *engine.IncidentManager, registry *probe.Registry, logger *logging.Logger, m *metrics.Metrics) *Scheduler {
	return &Scheduler{
		cfg:       cfg,
		store:     s,
		evaluator: evaluator,
		incidents: incidents,
		registry:  registry,
		logger:    logger.WithComponent(logging.ComponentScheduler),
		metrics:   m,
		stopChan:  make(chan struct{}),
	}
}

func (s *Scheduler) classes() []monitorClass {
	return []monitorClass{
		{
			name:        "uptime",
			interval:    s.cfg.UptimeInterval,
			concurrency: s.cfg.UptimeConcurrency,
			filter: store.MonitorFilter{
				ActiveOnly: true,
				Types: []models.MonitorType{
					models.MonitorTypeHTTP,
					models.MonitorTypeHTTPS,
					models.MonitorTypePing,
				},
			},
		},
		{
			name:        "ssl",
			interval:    s.cfg.SSLInterval,
			concurrency: s.cfg.SSLConcurrency,
			filter: store.MonitorFilter{
				ActiveOnly: true,
				URLPrefix:  "https://",
			},
		},
		{
			name:        "browser",
			interval:    s.cfg.BrowserInterval,
			concurrency: s.cfg.BrowserConcurrency,
			deadline:    s.cfg.BrowserRunDeadline,
			filter: store.MonitorFilter{
				ActiveOnly:     true,
				BrowserEnabled: true,
			},
		},
	}
}

// Start launches the class loops and the sweep loop
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}

	s.logger.Info("Starting scheduler")

	for _, class := range s.classes() {
		s.wg.Add(1)
		go s.classLoop(ctx, class)
	}

	s.wg.Add(1)
	go s.sweepLoop(ctx)

	s.running = true
	return nil
}

// Stop signals all loops and waits for in-progress runs to finish
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}

	s.logger.Info("Stopping scheduler")
	close(s.stopChan)
	s.wg.Wait()

	s.running = false
	return nil
}

// IsRunning reports whether the scheduler has been started
func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// classLoop ticks one monitor class at its fixed cadence. The first run
// fires immediately so a fresh deployment reports status without waiting a
// full interval.
func (s *Scheduler) classLoop(ctx context.Context, class monitorClass) {
	defer s.wg.Done()

	ticker := time.NewTicker(class.interval)
	defer ticker.Stop()

	s.runClass(ctx, class)

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.runClass(ctx, class)
		}
	}
}

// sweepLoop periodically re-reconciles incident state from stored status
func (s *Scheduler) sweepLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.runSweep(ctx)
		}
	}
}

// runSweep re-reconciles incident state from stored status, one monitor at a
// time. Each monitor is routed through the same in-flight guard as the check
// loops, so a sweep and a concurrent check can never both pass the open
// incident query and create a duplicate. Guarded monitors are skipped; the
// next sweep picks them up.
func (s *Scheduler) runSweep(ctx context.Context) {
	monitors, err := s.store.ListMonitors(ctx, store.MonitorFilter{})
	if err != nil {
		s.logger.WithError(err).Error("Failed to list monitors for sweep")
		return
	}

	repaired, skipped := 0, 0
	for _, m := range monitors {
		if _, loaded := s.inFlight.LoadOrStore(m.ID, struct{}{}); loaded {
			skipped++
			s.metrics.RecordSkipped("sweep", "in_flight")
			continue
		}

		changed, err := s.incidents.RepairMonitor(ctx, m)
		s.inFlight.Delete(m.ID)
		if err != nil {
			s.logger.WithError(err).
				WithMonitor(m.ID, m.Name, string(m.Type)).
				Error("Incident sweep failed for monitor")
			continue
		}
		if changed {
			repaired++
		}
	}

	s.logger.WithEvent(logging.EventSweepCompleted).
		WithFields(map[string]interface{}{
			"monitors": len(monitors),
			"repaired": repaired,
			"skipped":  skipped,
		}).
		Info("Incident sweep completed")
}

// runClass executes one tick for a class: list applicable monitors, fan out
// bounded concurrent work, and wait for the run to drain. Monitors already
// in flight from a previous tick are skipped, never queued.
func (s *Scheduler) runClass(ctx context.Context, class monitorClass) {
	start := time.Now()

	if class.deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, class.deadline)
		defer cancel()
	}

	monitors, err := s.store.ListMonitors(ctx, class.filter)
	if err != nil {
		s.logger.WithError(err).
			WithFields(map[string]interface{}{"class": class.name}).
			Error("Failed to list monitors for run")
		return
	}

	g, gctx := errgroup.WithContext(ctx)
	if class.concurrency > 0 {
		g.SetLimit(class.concurrency)
	}

	var skipped int
	var skippedMu sync.Mutex

	for _, m := range monitors {
		if _, loaded := s.inFlight.LoadOrStore(m.ID, struct{}{}); loaded {
			skippedMu.Lock()
			skipped++
			skippedMu.Unlock()
			s.metrics.RecordSkipped(class.name, "in_flight")
			continue
		}

		monitor := m
		g.Go(func() error {
			defer s.inFlight.Delete(monitor.ID)

			select {
			case <-gctx.Done():
				skippedMu.Lock()
				skipped++
				skippedMu.Unlock()
				s.metrics.RecordSkipped(class.name, "deadline")
				return nil
			default:
			}

			if class.name == "ssl" {
				s.runCertCheck(gctx, monitor)
			} else {
				s.runCheck(gctx, monitor)
			}
			return nil
		})
	}

	// Workers never return errors; failures are data on the outcome
	_ = g.Wait()

	s.metrics.RecordRun(class.name, len(monitors), time.Since(start))
	s.logger.WithEvent(logging.EventRunCompleted).
		WithFields(map[string]interface{}{
			"class":    class.name,
			"listed":   len(monitors),
			"skipped":  skipped,
			"duration": time.Since(start).String(),
		}).
		Info("Scheduled run completed")
}

// runCheck is the full per-monitor pipeline: evaluate, persist the monitor
// status, append history, then reconcile incidents. The status write lands
// before reconciliation so the sweep can repair a crash between the two.
func (s *Scheduler) runCheck(ctx context.Context, m *models.Monitor) *models.CheckOutcome {
	outcome := s.evaluator.Evaluate(ctx, m)
	if outcome.Skipped {
		return outcome
	}

	if err := s.store.UpdateMonitor(ctx, m.ID, store.FromOutcome(outcome)); err != nil {
		s.logger.WithError(err).
			WithMonitor(m.ID, m.Name, string(m.Type)).
			Error("Failed to persist monitor status")
		return outcome
	}

	if result := outcome.ToCheckResult(uuid.New().String()); result != nil {
		if err := s.store.AppendCheckResult(ctx, result); err != nil {
			s.logger.WithError(err).
				WithMonitor(m.ID, m.Name, string(m.Type)).
				Error("Failed to append check result")
		}
	}

	if err := s.incidents.Reconcile(ctx, outcome); err != nil {
		s.logger.WithError(err).
			WithMonitor(m.ID, m.Name, string(m.Type)).
			Error("Failed to reconcile incidents")
	}
	return outcome
}

// runCertCheck handles one monitor in the certificate class. The snapshot
// and alert records are persisted for every HTTPS-reachable monitor; only
// monitors of the dedicated ssl type additionally flow through the full
// status and incident pipeline, so an expiring certificate on an https
// monitor never flips its uptime status.
func (s *Scheduler) runCertCheck(ctx context.Context, m *models.Monitor) {
	if m.Type == models.MonitorTypeSSL {
		outcome := s.runCheck(ctx, m)
		if outcome.Result != nil {
			if snap := tlsSnapshot(outcome.Result); snap != nil {
				s.persistSnapshot(ctx, m, snap)
			}
		}
		return
	}

	result := s.registry.TLSProber().Probe(ctx, m)
	if snap := tlsSnapshot(result); snap != nil {
		s.persistSnapshot(ctx, m, snap)
	} else if !result.Up {
		s.logger.WithMonitor(m.ID, m.Name, string(m.Type)).
			WithFields(map[string]interface{}{"error": result.Error}).
			Debug("Certificate check produced no snapshot")
	}
}

func (s *Scheduler) persistSnapshot(ctx context.Context, m *models.Monitor, snap *models.SSLCertificateSnapshot) {
	if err := s.store.AppendSSLSnapshot(ctx, m.ID, snap); err != nil {
		s.logger.WithError(err).
			WithMonitor(m.ID, m.Name, string(m.Type)).
			Error("Failed to persist certificate snapshot")
		return
	}
	s.metrics.RecordSSLExpiry(m.DisplayName(), snap.IssuerName, snap.DaysUntilExpiry)
}

func tlsSnapshot(result *models.ProbeResult) *models.SSLCertificateSnapshot {
	if result == nil || result.TLS == nil {
		return nil
	}
	return result.TLS.Snapshot
}
