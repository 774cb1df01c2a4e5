// Package metrics exposes Prometheus metrics for probe execution, incident
// lifecycle transitions, and scheduler runs.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the engine
type Metrics struct {
	// Counters
	ChecksTotal            *prometheus.CounterVec
	ProbeErrorsTotal       *prometheus.CounterVec
	IncidentsOpenedTotal   *prometheus.CounterVec
	IncidentsResolvedTotal *prometheus.CounterVec
	RunsTotal              *prometheus.CounterVec
	RunSkippedTotal        *prometheus.CounterVec

	// Gauges
	MonitorUp      *prometheus.GaugeVec
	OpenIncidents  prometheus.Gauge
	ChecksRunning  prometheus.Gauge
	SSLExpiryDays  *prometheus.GaugeVec
	MonitorsListed *prometheus.GaugeVec

	// Histograms
	ProbeDuration *prometheus.HistogramVec
	RunDuration   *prometheus.HistogramVec
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry prometheus.Registerer) *Metrics {
	return &Metrics{
		ChecksTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "pulseguard_checks_total",
				Help: "Total number of monitor checks performed",
			},
			[]string{"monitor", "type", "status"},
		),

		ProbeErrorsTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "pulseguard_probe_errors_total",
				Help: "Total number of failed probes by failure kind",
			},
			[]string{"monitor", "type", "failure_kind"},
		),

		IncidentsOpenedTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "pulseguard_incidents_opened_total",
				Help: "Total number of incidents opened",
			},
			[]string{"monitor", "severity"},
		),

		IncidentsResolvedTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "pulseguard_incidents_resolved_total",
				Help: "Total number of incidents resolved",
			},
			[]string{"monitor"},
		),

		RunsTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "pulseguard_scheduler_runs_total",
				Help: "Total number of scheduled runs per monitor class",
			},
			[]string{"class"},
		),

		RunSkippedTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "pulseguard_scheduler_skipped_monitors_total",
				Help: "Monitors skipped during scheduled runs",
			},
			[]string{"class", "reason"},
		),

		MonitorUp: promauto.With(registry).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "pulseguard_monitor_up",
				Help: "Whether a monitor is up (1) or down (0)",
			},
			[]string{"monitor", "type"},
		),

		OpenIncidents: promauto.With(registry).NewGauge(
			prometheus.GaugeOpts{
				Name: "pulseguard_open_incidents",
				Help: "Number of currently open incidents",
			},
		),

		ChecksRunning: promauto.With(registry).NewGauge(
			prometheus.GaugeOpts{
				Name: "pulseguard_checks_running",
				Help: "Number of currently running monitor checks",
			},
		),

		SSLExpiryDays: promauto.With(registry).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "pulseguard_ssl_expiry_days",
				Help: "Days until the monitor's certificate expires",
			},
			[]string{"monitor", "issuer"},
		),

		MonitorsListed: promauto.With(registry).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "pulseguard_monitors_listed",
				Help: "Number of monitors returned by the store per class",
			},
			[]string{"class"},
		),

		ProbeDuration: promauto.With(registry).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pulseguard_probe_duration_seconds",
				Help:    "Duration of probes in seconds",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20},
			},
			[]string{"type"},
		),

		RunDuration: promauto.With(registry).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pulseguard_scheduler_run_duration_seconds",
				Help:    "Duration of scheduled runs in seconds",
				Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
			},
			[]string{"class"},
		),
	}
}

// RecordCheck records the outcome of one monitor check
func (m *Metrics) RecordCheck(monitor, monitorType string, up bool, duration time.Duration) {
	status := "up"
	value := 1.0
	if !up {
		status = "down"
		value = 0.0
	}

	m.ChecksTotal.WithLabelValues(monitor, monitorType, status).Inc()
	m.MonitorUp.WithLabelValues(monitor, monitorType).Set(value)
	m.ProbeDuration.WithLabelValues(monitorType).Observe(duration.Seconds())
}

// RecordProbeError records a failed probe by failure kind
func (m *Metrics) RecordProbeError(monitor, monitorType, failureKind string) {
	m.ProbeErrorsTotal.WithLabelValues(monitor, monitorType, failureKind).Inc()
}

// RecordIncidentOpened records an incident transition into open
func (m *Metrics) RecordIncidentOpened(monitor, severity string) {
	m.IncidentsOpenedTotal.WithLabelValues(monitor, severity).Inc()
	m.OpenIncidents.Inc()
}

// RecordIncidentResolved records an incident transition into resolved
func (m *Metrics) RecordIncidentResolved(monitor string) {
	m.IncidentsResolvedTotal.WithLabelValues(monitor).Inc()
	m.OpenIncidents.Dec()
}

// RecordRun records a completed scheduler run
func (m *Metrics) RecordRun(class string, listed int, duration time.Duration) {
	m.RunsTotal.WithLabelValues(class).Inc()
	m.MonitorsListed.WithLabelValues(class).Set(float64(listed))
	m.RunDuration.WithLabelValues(class).Observe(duration.Seconds())
}

// RecordSkipped records a monitor skipped during a run
func (m *Metrics) RecordSkipped(class, reason string) {
	m.RunSkippedTotal.WithLabelValues(class, reason).Inc()
}

// RecordSSLExpiry records the certificate expiry horizon for a monitor
func (m *Metrics) RecordSSLExpiry(monitor, issuer string, days int) {
	m.SSLExpiryDays.WithLabelValues(monitor, issuer).Set(float64(days))
}

// IncrementRunningChecks tracks an in-flight check
func (m *Metrics) IncrementRunningChecks() {
	m.ChecksRunning.Inc()
}

// DecrementRunningChecks releases an in-flight check
func (m *Metrics) DecrementRunningChecks() {
	m.ChecksRunning.Dec()
}
