package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/pulseguard/pulseguard/internal/logging"
	"github.com/pulseguard/pulseguard/pkg/models"
)

func createTestBadgerStore(t *testing.T) *BadgerStore {
	t.Helper()

	logger, err := logging.InitLogger(logging.Config{
		Level:  "error",
		Format: "json",
		Output: "stdout",
	})
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}

	s, err := NewBadgerStore(t.TempDir(), 7, logger)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	return s
}

func TestBadgerStore_MonitorRoundTrip(t *testing.T) {
	s := createTestBadgerStore(t)
	ctx := context.Background()

	m := &models.Monitor{
		ID:            "m1",
		Name:          "API",
		URL:           "https://api.example.com",
		Type:          models.MonitorTypeHTTPS,
		IsActive:      true,
		CurrentStatus: models.StatusUnknown,
		BrowserCheck:  &models.BrowserCheckConfig{Enabled: true, WaitForSelector: "#app"},
	}

	if err := s.PutMonitor(ctx, m); err != nil {
		t.Fatalf("PutMonitor failed: %v", err)
	}

	got, err := s.GetMonitor(ctx, "m1")
	if err != nil {
		t.Fatalf("GetMonitor failed: %v", err)
	}
	if got.Name != "API" || got.Type != models.MonitorTypeHTTPS {
		t.Errorf("Monitor fields lost in round trip: %+v", got)
	}
	if got.BrowserCheck == nil || got.BrowserCheck.WaitForSelector != "#app" {
		t.Errorf("Browser check config lost: %+v", got.BrowserCheck)
	}

	if _, err := s.GetMonitor(ctx, "missing"); err == nil {
		t.Error("Expected error for missing monitor")
	}
}

func TestBadgerStore_UpdateMonitor(t *testing.T) {
	s := createTestBadgerStore(t)
	ctx := context.Background()

	seedMonitor(t, s, "m1", models.MonitorTypeHTTP)

	status := models.StatusUp
	failures := 0
	now := time.Now()
	err := s.UpdateMonitor(ctx, "m1", MonitorUpdate{
		CurrentStatus:       &status,
		ConsecutiveFailures: &failures,
		LastUp:              &now,
		LastCheckedAt:       &now,
	})
	if err != nil {
		t.Fatalf("UpdateMonitor failed: %v", err)
	}

	m, err := s.GetMonitor(ctx, "m1")
	if err != nil {
		t.Fatalf("GetMonitor failed: %v", err)
	}
	if m.CurrentStatus != models.StatusUp {
		t.Errorf("Expected status up, got %s", m.CurrentStatus)
	}
	if m.LastUp == nil {
		t.Error("Expected lastUp to be set")
	}
}

func TestBadgerStore_CheckResultsOrdering(t *testing.T) {
	s := createTestBadgerStore(t)
	ctx := context.Background()

	seedMonitor(t, s, "m1", models.MonitorTypeHTTP)

	base := time.Now().Add(-30 * time.Minute)
	for i := 0; i < 4; i++ {
		err := s.AppendCheckResult(ctx, &models.CheckResult{
			ID:        uuid.New().String(),
			MonitorID: "m1",
			Status:    true,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("AppendCheckResult failed: %v", err)
		}
	}

	results, err := s.GetCheckResults(ctx, "m1", base.Add(-time.Minute), time.Now(), 0)
	if err != nil {
		t.Fatalf("GetCheckResults failed: %v", err)
	}
	if len(results) != 4 {
		t.Fatalf("Expected 4 results, got %d", len(results))
	}
	for i := 1; i < len(results); i++ {
		if results[i].CreatedAt.After(results[i-1].CreatedAt) {
			t.Error("Expected results ordered newest first")
		}
	}

	limited, err := s.GetCheckResults(ctx, "m1", base.Add(-time.Minute), time.Now(), 2)
	if err != nil {
		t.Fatalf("GetCheckResults failed: %v", err)
	}
	if len(limited) != 2 {
		t.Errorf("Expected 2 results with limit, got %d", len(limited))
	}
}

func TestBadgerStore_OpenIncidentIndex(t *testing.T) {
	s := createTestBadgerStore(t)
	ctx := context.Background()

	seedMonitor(t, s, "m1", models.MonitorTypeHTTP)

	incident := &models.Incident{
		ID:        uuid.New().String(),
		MonitorID: "m1",
		Title:     "API is down",
		Severity:  models.SeverityHigh,
		Status:    models.IncidentOpen,
		StartTime: time.Now(),
		UpdatedAt: time.Now(),
	}
	if err := s.CreateIncident(ctx, incident); err != nil {
		t.Fatalf("CreateIncident failed: %v", err)
	}

	open, err := s.FindOpenIncident(ctx, "m1")
	if err != nil {
		t.Fatalf("FindOpenIncident failed: %v", err)
	}
	if open == nil || open.ID != incident.ID {
		t.Fatalf("Expected open incident %s, got %+v", incident.ID, open)
	}

	listed, err := s.ListOpenIncidents(ctx, "m1")
	if err != nil {
		t.Fatalf("ListOpenIncidents failed: %v", err)
	}
	if len(listed) != 1 {
		t.Fatalf("Expected 1 open incident, got %d", len(listed))
	}

	if err := s.ResolveIncident(ctx, incident.ID); err != nil {
		t.Fatalf("ResolveIncident failed: %v", err)
	}

	open, err = s.FindOpenIncident(ctx, "m1")
	if err != nil {
		t.Fatalf("FindOpenIncident failed: %v", err)
	}
	if open != nil {
		t.Fatal("Expected no open incident after resolve")
	}

	resolved, err := s.getIncident(incident.ID)
	if err != nil {
		t.Fatalf("getIncident failed: %v", err)
	}
	if resolved.Status != models.IncidentResolved {
		t.Errorf("Expected status resolved, got %s", resolved.Status)
	}
	if resolved.ResolvedAt == nil {
		t.Error("Expected resolvedAt to be set")
	}
}

func TestBadgerStore_SSLAlertOnTransition(t *testing.T) {
	s := createTestBadgerStore(t)
	ctx := context.Background()

	seedMonitor(t, s, "m1", models.MonitorTypeHTTPS)

	snap := &models.SSLCertificateSnapshot{
		MonitorID:       "m1",
		ValidTo:         time.Now().Add(5 * 24 * time.Hour),
		IssuerName:      "Test CA",
		DaysUntilExpiry: 5,
		State:           models.SSLStateExpiringSoon,
		CheckedAt:       time.Now(),
	}

	for i := 0; i < 3; i++ {
		if err := s.AppendSSLSnapshot(ctx, "m1", snap); err != nil {
			t.Fatalf("AppendSSLSnapshot failed: %v", err)
		}
	}

	alerts, err := s.ListSSLAlerts(ctx, "m1")
	if err != nil {
		t.Fatalf("ListSSLAlerts failed: %v", err)
	}
	if len(alerts) != 1 {
		t.Fatalf("Expected exactly 1 alert for repeated state, got %d", len(alerts))
	}

	m, err := s.GetMonitor(ctx, "m1")
	if err != nil {
		t.Fatalf("GetMonitor failed: %v", err)
	}
	if m.SSL == nil || m.SSL.DaysUntilExpiry != 5 {
		t.Errorf("Expected ssl info on monitor, got %+v", m.SSL)
	}
}

func TestBadgerStore_PersistsAcrossReopen(t *testing.T) {
	logger, err := logging.InitLogger(logging.Config{Level: "error", Format: "json", Output: "stdout"})
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}

	dir := t.TempDir()
	ctx := context.Background()

	s, err := NewBadgerStore(dir, 7, logger)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	seedMonitor(t, s, "m1", models.MonitorTypeHTTP)
	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	reopened, err := NewBadgerStore(dir, 7, logger)
	if err != nil {
		t.Fatalf("Failed to reopen store: %v", err)
	}
	defer reopened.Close()

	if _, err := reopened.GetMonitor(ctx, "m1"); err != nil {
		t.Errorf("Expected monitor to survive reopen: %v", err)
	}
}
