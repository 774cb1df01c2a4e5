package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
)

func newTestMetrics(t *testing.T) (*Metrics, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	return NewMetrics(reg), reg
}

func getHistogram(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) *dto.Histogram {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	for _, family := range families {
		if family.GetName() != name {
			continue
		}

		for _, metric := range family.Metric {
			if metricMatchesLabels(metric, labels) {
				return metric.GetHistogram()
			}
		}
	}

	return nil
}

func metricMatchesLabels(metric *dto.Metric, labels map[string]string) bool {
	if len(metric.GetLabel()) != len(labels) {
		return false
	}

	for _, lp := range metric.GetLabel() {
		if labels[lp.GetName()] != lp.GetValue() {
			return false
		}
	}

	return true
}

func TestRecordCheck(t *testing.T) {
	m, reg := newTestMetrics(t)

	m.RecordCheck("api", "https", true, 150*time.Millisecond)
	m.RecordCheck("api", "https", true, 200*time.Millisecond)
	m.RecordCheck("api", "https", false, 10*time.Second)

	if got := testutil.ToFloat64(m.ChecksTotal.WithLabelValues("api", "https", "up")); got != 2 {
		t.Errorf("expected 2 up checks, got %v", got)
	}
	if got := testutil.ToFloat64(m.ChecksTotal.WithLabelValues("api", "https", "down")); got != 1 {
		t.Errorf("expected 1 down check, got %v", got)
	}
	if got := testutil.ToFloat64(m.MonitorUp.WithLabelValues("api", "https")); got != 0 {
		t.Errorf("expected monitor_up 0 after down check, got %v", got)
	}

	hist := getHistogram(t, reg, "pulseguard_probe_duration_seconds", map[string]string{"type": "https"})
	if hist == nil {
		t.Fatalf("expected probe duration histogram to exist")
	}
	if hist.GetSampleCount() != 3 {
		t.Errorf("expected 3 samples, got %d", hist.GetSampleCount())
	}
}

func TestRecordIncidentLifecycle(t *testing.T) {
	m, _ := newTestMetrics(t)

	m.RecordIncidentOpened("api", "high")
	m.RecordIncidentOpened("db", "high")

	if got := testutil.ToFloat64(m.OpenIncidents); got != 2 {
		t.Errorf("expected 2 open incidents, got %v", got)
	}

	m.RecordIncidentResolved("api")

	if got := testutil.ToFloat64(m.OpenIncidents); got != 1 {
		t.Errorf("expected 1 open incident after resolve, got %v", got)
	}
	if got := testutil.ToFloat64(m.IncidentsOpenedTotal.WithLabelValues("api", "high")); got != 1 {
		t.Errorf("expected 1 opened incident for api, got %v", got)
	}
	if got := testutil.ToFloat64(m.IncidentsResolvedTotal.WithLabelValues("api")); got != 1 {
		t.Errorf("expected 1 resolved incident for api, got %v", got)
	}
}

func TestRecordRunAndSkips(t *testing.T) {
	m, reg := newTestMetrics(t)

	m.RecordRun("uptime", 12, 3*time.Second)
	m.RecordSkipped("uptime", "in_flight")
	m.RecordSkipped("browser", "deadline")

	if got := testutil.ToFloat64(m.RunsTotal.WithLabelValues("uptime")); got != 1 {
		t.Errorf("expected 1 run, got %v", got)
	}
	if got := testutil.ToFloat64(m.MonitorsListed.WithLabelValues("uptime")); got != 12 {
		t.Errorf("expected 12 listed monitors, got %v", got)
	}
	if got := testutil.ToFloat64(m.RunSkippedTotal.WithLabelValues("browser", "deadline")); got != 1 {
		t.Errorf("expected 1 deadline skip, got %v", got)
	}

	hist := getHistogram(t, reg, "pulseguard_scheduler_run_duration_seconds", map[string]string{"class": "uptime"})
	if hist == nil {
		t.Fatalf("expected run duration histogram to exist")
	}
	if hist.GetSampleCount() != 1 {
		t.Errorf("expected 1 sample, got %d", hist.GetSampleCount())
	}
}

func TestRecordSSLExpiry(t *testing.T) {
	m, _ := newTestMetrics(t)

	m.RecordSSLExpiry("api", "Let's Encrypt", 29)

	if got := testutil.ToFloat64(m.SSLExpiryDays.WithLabelValues("api", "Let's Encrypt")); got != 29 {
		t.Errorf("expected 29 expiry days, got %v", got)
	}
}

func TestRunningChecksGauge(t *testing.T) {
	m, _ := newTestMetrics(t)

	m.IncrementRunningChecks()
	m.IncrementRunningChecks()
	m.DecrementRunningChecks()

	if got := testutil.ToFloat64(m.ChecksRunning); got != 1 {
		t.Errorf("expected 1 running check, got %v", got)
	}
}
