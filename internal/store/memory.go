package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pulseguard/pulseguard/pkg/models"
)

// MemoryStore is an in-memory Store for tests and local development. All
// collections are guarded by a single RWMutex; data is lost on restart.
type MemoryStore struct {
	mu        sync.RWMutex
	monitors  map[string]*models.Monitor
	results   map[string][]*models.CheckResult
	snapshots map[string]*models.SSLCertificateSnapshot
	alerts    map[string][]*models.SSLAlert
	incidents map[string]*models.Incident
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		monitors:  make(map[string]*models.Monitor),
		results:   make(map[string][]*models.CheckResult),
		snapshots: make(map[string]*models.SSLCertificateSnapshot),
		alerts:    make(map[string][]*models.SSLAlert),
		incidents: make(map[string]*models.Incident),
	}
}

func (s *MemoryStore) ListMonitors(ctx context.Context, filter MonitorFilter) ([]*models.Monitor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Monitor
	for _, m := range s.monitors {
		if filter.Matches(m) {
			out = append(out, copyMonitor(m))
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) GetMonitor(ctx context.Context, id string) (*models.Monitor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.monitors[id]
	if !ok {
		return nil, fmt.Errorf("monitor %s: %w", id, ErrNotFound)
	}
	return copyMonitor(m), nil
}

func (s *MemoryStore) PutMonitor(ctx context.Context, m *models.Monitor) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.monitors[m.ID] = copyMonitor(m)
	return nil
}

func (s *MemoryStore) UpdateMonitor(ctx context.Context, id string, update MonitorUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.monitors[id]
	if !ok {
		return fmt.Errorf("monitor %s: %w", id, ErrNotFound)
	}

	update.Apply(m, time.Now())
	return nil
}

func (s *MemoryStore) AppendCheckResult(ctx context.Context, result *models.CheckResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cr := *result
	s.results[result.MonitorID] = append(s.results[result.MonitorID], &cr)
	return nil
}

func (s *MemoryStore) GetCheckResults(ctx context.Context, monitorID string, start, end time.Time, limit int) ([]*models.CheckResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.CheckResult
	for _, r := range s.results[monitorID] {
		if r.CreatedAt.Before(start) || r.CreatedAt.After(end) {
			continue
		}
		cr := *r
		out = append(out, &cr)
	}

	// Newest first
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) UptimeStats(ctx context.Context, monitorID string, window time.Duration) (*models.UptimeStats, error) {
	end := time.Now()
	start := end.Add(-window)

	results, err := s.GetCheckResults(ctx, monitorID, start, end, 0)
	if err != nil {
		return nil, err
	}

	stats := &models.UptimeStats{
		MonitorID:   monitorID,
		WindowStart: start,
		WindowEnd:   end,
	}

	var totalResponse int64
	var timed int
	for _, r := range results {
		stats.TotalChecks++
		if r.Status {
			stats.UpChecks++
		} else {
			stats.DownChecks++
		}
		if r.ResponseTimeMs != nil {
			totalResponse += *r.ResponseTimeMs
			timed++
		}
	}

	if stats.TotalChecks > 0 {
		stats.UptimePercent = float64(stats.UpChecks) / float64(stats.TotalChecks) * 100
	}
	if timed > 0 {
		stats.AvgResponse = time.Duration(totalResponse/int64(timed)) * time.Millisecond
	}
	return stats, nil
}

func (s *MemoryStore) AppendSSLSnapshot(ctx context.Context, monitorID string, snap *models.SSLCertificateSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.monitors[monitorID]
	if !ok {
		return fmt.Errorf("monitor %s: %w", monitorID, ErrNotFound)
	}

	var prev models.SSLState
	if m.SSL != nil {
		prev = m.SSL.Status
	}

	sc := *snap
	s.snapshots[monitorID] = &sc

	expiry := snap.ValidTo
	m.SSL = &models.SSLInfo{
		Status:          snap.State,
		ExpiryDate:      &expiry,
		Issuer:          snap.IssuerName,
		DaysUntilExpiry: snap.DaysUntilExpiry,
	}
	m.UpdatedAt = time.Now()

	if alertableTransition(prev, snap.State) {
		s.alerts[monitorID] = append(s.alerts[monitorID], &models.SSLAlert{
			ID:        uuid.New().String(),
			MonitorID: monitorID,
			State:     snap.State,
			Message:   sslAlertMessage(snap),
			CreatedAt: time.Now(),
		})
	}
	return nil
}

func (s *MemoryStore) ListSSLAlerts(ctx context.Context, monitorID string) ([]*models.SSLAlert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.SSLAlert
	for _, a := range s.alerts[monitorID] {
		ac := *a
		out = append(out, &ac)
	}
	return out, nil
}

func (s *MemoryStore) FindOpenIncident(ctx context.Context, monitorID string) (*models.Incident, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, inc := range s.incidents {
		if inc.MonitorID == monitorID && inc.Status == models.IncidentOpen {
			ic := *inc
			return &ic, nil
		}
	}
	return nil, nil
}

func (s *MemoryStore) ListOpenIncidents(ctx context.Context, monitorID string) ([]*models.Incident, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Incident
	for _, inc := range s.incidents {
		if inc.MonitorID == monitorID && inc.Status == models.IncidentOpen {
			ic := *inc
			out = append(out, &ic)
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out, nil
}

func (s *MemoryStore) CreateIncident(ctx context.Context, incident *models.Incident) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ic := *incident
	s.incidents[incident.ID] = &ic
	return nil
}

func (s *MemoryStore) ResolveIncident(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	inc, ok := s.incidents[id]
	if !ok {
		return fmt.Errorf("incident %s: %w", id, ErrNotFound)
	}

	now := time.Now()
	inc.Status = models.IncidentResolved
	inc.ResolvedAt = &now
	inc.UpdatedAt = now
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}

func copyMonitor(m *models.Monitor) *models.Monitor {
	mc := *m
	if m.BrowserCheck != nil {
		bc := *m.BrowserCheck
		mc.BrowserCheck = &bc
	}
	if m.SSL != nil {
		ssl := *m.SSL
		mc.SSL = &ssl
	}
	return &mc
}

func sslAlertMessage(snap *models.SSLCertificateSnapshot) string {
	switch snap.State {
	case models.SSLStateExpired:
		return fmt.Sprintf("certificate expired on %s", snap.ValidTo.Format("2006-01-02"))
	default:
		return fmt.Sprintf("certificate expires in %d days (%s)", snap.DaysUntilExpiry, snap.ValidTo.Format("2006-01-02"))
	}
}
