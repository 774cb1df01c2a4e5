package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/pulseguard/pulseguard/internal/logging"
	"github.com/pulseguard/pulseguard/pkg/models"
)

// BadgerStore is a single-node embedded Store backed by BadgerDB. Check
// results and certificate alerts carry a TTL derived from the retention
// window; monitors and incidents never expire.
type BadgerStore struct {
	db            *badger.DB
	logger        *logging.Logger
	retentionDays int
}

const (
	monitorKeyPrefix  = "monitor"
	resultKeyPrefix   = "result"
	incidentKeyPrefix = "incident"
	openIncKeyPrefix  = "openinc"
	sslAlertKeyPrefix = "sslalert"
	timestampKeyWidth = 20
)

func formatTimestampKey(ts int64) string {
	return fmt.Sprintf("%0*d", timestampKeyWidth, ts)
}

// NewBadgerStore opens (or creates) a BadgerDB store at path
func NewBadgerStore(path string, retentionDays int, logger *logging.Logger) (*BadgerStore, error) {
	if retentionDays <= 0 {
		retentionDays = 30
	}

	opts := badger.DefaultOptions(path)
	opts.Logger = &badgerLogger{logger: logger}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger db: %w", err)
	}

	s := &BadgerStore{
		db:            db,
		logger:        logger,
		retentionDays: retentionDays,
	}

	go s.runGC()

	logger.WithComponent(logging.ComponentStore).
		WithFields(map[string]interface{}{
			"path":          path,
			"retentionDays": retentionDays,
		}).
		Info("BadgerDB store initialized")

	return s, nil
}

func (s *BadgerStore) retentionTTL() time.Duration {
	return time.Duration(s.retentionDays) * 24 * time.Hour
}

func (s *BadgerStore) ListMonitors(ctx context.Context, filter MonitorFilter) ([]*models.Monitor, error) {
	var out []*models.Monitor

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(monitorKeyPrefix + ":")
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var m models.Monitor
				if err := json.Unmarshal(val, &m); err != nil {
					s.logger.WithComponent(logging.ComponentStore).
						WithError(err).
						Warn("Failed to unmarshal monitor")
					return nil
				}
				if filter.Matches(&m) {
					out = append(out, &m)
				}
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})

	if err != nil {
		return nil, fmt.Errorf("failed to list monitors: %w", err)
	}
	return out, nil
}

func (s *BadgerStore) GetMonitor(ctx context.Context, id string) (*models.Monitor, error) {
	key := fmt.Sprintf("%s:%s", monitorKeyPrefix, id)

	var m *models.Monitor
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			m = &models.Monitor{}
			return json.Unmarshal(val, m)
		})
	})

	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("monitor %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get monitor: %w", err)
	}
	return m, nil
}

func (s *BadgerStore) PutMonitor(ctx context.Context, m *models.Monitor) error {
	key := fmt.Sprintf("%s:%s", monitorKeyPrefix, m.ID)

	value, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to marshal monitor: %w", err)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), value)
	})
}

func (s *BadgerStore) UpdateMonitor(ctx context.Context, id string, update MonitorUpdate) error {
	key := fmt.Sprintf("%s:%s", monitorKeyPrefix, id)

	return s.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("monitor %s: %w", id, ErrNotFound)
		}
		if err != nil {
			return err
		}

		var m models.Monitor
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &m)
		}); err != nil {
			return err
		}

		update.Apply(&m, time.Now())

		value, err := json.Marshal(&m)
		if err != nil {
			return fmt.Errorf("failed to marshal monitor: %w", err)
		}
		return txn.Set([]byte(key), value)
	})
}

func (s *BadgerStore) AppendCheckResult(ctx context.Context, result *models.CheckResult) error {
	key := fmt.Sprintf("%s:%s:%s", resultKeyPrefix, result.MonitorID, formatTimestampKey(result.CreatedAt.UnixNano()))

	value, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal check result: %w", err)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry([]byte(key), value).WithTTL(s.retentionTTL())
		return txn.SetEntry(entry)
	})
}

func (s *BadgerStore) GetCheckResults(ctx context.Context, monitorID string, start, end time.Time, limit int) ([]*models.CheckResult, error) {
	var out []*models.CheckResult

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(fmt.Sprintf("%s:%s:", resultKeyPrefix, monitorID))
		// Reverse iteration seeks past the newest key in the range
		seek := []byte(fmt.Sprintf("%s:%s:%s", resultKeyPrefix, monitorID, formatTimestampKey(end.UnixNano())))

		for it.Seek(seek); it.ValidForPrefix(prefix); it.Next() {
			if limit > 0 && len(out) >= limit {
				break
			}
			err := it.Item().Value(func(val []byte) error {
				var r models.CheckResult
				if err := json.Unmarshal(val, &r); err != nil {
					s.logger.WithComponent(logging.ComponentStore).
						WithError(err).
						Warn("Failed to unmarshal check result")
					return nil
				}
				if r.CreatedAt.Before(start) || r.CreatedAt.After(end) {
					return nil
				}
				out = append(out, &r)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})

	if err != nil {
		return nil, fmt.Errorf("failed to get check results: %w", err)
	}
	return out, nil
}

func (s *BadgerStore) UptimeStats(ctx context.Context, monitorID string, window time.Duration) (*models.UptimeStats, error) {
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

func (s *BadgerStore) AppendSSLSnapshot(ctx context.Context, monitorID string, snap *models.SSLCertificateSnapshot) error {
	monitorKey := fmt.Sprintf("%s:%s", monitorKeyPrefix, monitorID)

	return s.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(monitorKey))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("monitor %s: %w", monitorID, ErrNotFound)
		}
		if err != nil {
			return err
		}

		var m models.Monitor
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &m)
		}); err != nil {
			return err
		}

		var prev models.SSLState
		if m.SSL != nil {
			prev = m.SSL.Status
		}

		expiry := snap.ValidTo
		m.SSL = &models.SSLInfo{
			Status:          snap.State,
			ExpiryDate:      &expiry,
			Issuer:          snap.IssuerName,
			DaysUntilExpiry: snap.DaysUntilExpiry,
		}
		m.UpdatedAt = time.Now()

		value, err := json.Marshal(&m)
		if err != nil {
			return fmt.Errorf("failed to marshal monitor: %w", err)
		}
		if err := txn.Set([]byte(monitorKey), value); err != nil {
			return err
		}

		if !alertableTransition(prev, snap.State) {
			return nil
		}

		alert := &models.SSLAlert{
			ID:        uuid.New().String(),
			MonitorID: monitorID,
			State:     snap.State,
			Message:   sslAlertMessage(snap),
			CreatedAt: time.Now(),
		}
		alertKey := fmt.Sprintf("%s:%s:%s", sslAlertKeyPrefix, monitorID, formatTimestampKey(alert.CreatedAt.UnixNano()))
		alertValue, err := json.Marshal(alert)
		if err != nil {
			return fmt.Errorf("failed to marshal ssl alert: %w", err)
		}
		entry := badger.NewEntry([]byte(alertKey), alertValue).WithTTL(s.retentionTTL())
		return txn.SetEntry(entry)
	})
}

func (s *BadgerStore) ListSSLAlerts(ctx context.Context, monitorID string) ([]*models.SSLAlert, error) {
	var out []*models.SSLAlert

	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(fmt.Sprintf("%s:%s:", sslAlertKeyPrefix, monitorID))
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var a models.SSLAlert
				if err := json.Unmarshal(val, &a); err != nil {
					return nil
				}
				out = append(out, &a)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})

	if err != nil {
		return nil, fmt.Errorf("failed to list ssl alerts: %w", err)
	}
	return out, nil
}

func (s *BadgerStore) FindOpenIncident(ctx context.Context, monitorID string) (*models.Incident, error) {
	openKey := fmt.Sprintf("%s:%s", openIncKeyPrefix, monitorID)

	var incidentID string
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(openKey))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			incidentID = string(val)
			return nil
		})
	})

	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find open incident: %w", err)
	}

	return s.getIncident(incidentID)
}

func (s *BadgerStore) getIncident(id string) (*models.Incident, error) {
	key := fmt.Sprintf("%s:%s", incidentKeyPrefix, id)

	var inc *models.Incident
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			inc = &models.Incident{}
			return json.Unmarshal(val, inc)
		})
	})

	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("incident %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get incident: %w", err)
	}
	return inc, nil
}

func (s *BadgerStore) ListOpenIncidents(ctx context.Context, monitorID string) ([]*models.Incident, error) {
	var out []*models.Incident

	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(incidentKeyPrefix + ":")
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var inc models.Incident
				if err := json.Unmarshal(val, &inc); err != nil {
					return nil
				}
				if inc.MonitorID == monitorID && inc.Status == models.IncidentOpen {
					out = append(out, &inc)
				}
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})

	if err != nil {
		return nil, fmt.Errorf("failed to list open incidents: %w", err)
	}
	return out, nil
}

func (s *BadgerStore) CreateIncident(ctx context.Context, incident *models.Incident) error {
	key := fmt.Sprintf("%s:%s", incidentKeyPrefix, incident.ID)

	value, err := json.Marshal(incident)
	if err != nil {
		return fmt.Errorf("failed to marshal incident: %w", err)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set([]byte(key), value); err != nil {
			return err
		}
		if incident.Status == models.IncidentOpen {
			openKey := fmt.Sprintf("%s:%s", openIncKeyPrefix, incident.MonitorID)
			return txn.Set([]byte(openKey), []byte(incident.ID))
		}
		return nil
	})
}

func (s *BadgerStore) ResolveIncident(ctx context.Context, id string) error {
	inc, err := s.getIncident(id)
	if err != nil {
		return err
	}

	now := time.Now()
	inc.Status = models.IncidentResolved
	inc.ResolvedAt = &now
	inc.UpdatedAt = now

	value, err := json.Marshal(inc)
	if err != nil {
		return fmt.Errorf("failed to marshal incident: %w", err)
	}

	key := fmt.Sprintf("%s:%s", incidentKeyPrefix, id)
	openKey := fmt.Sprintf("%s:%s", openIncKeyPrefix, inc.MonitorID)

	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set([]byte(key), value); err != nil {
			return err
		}
		// Clear the open-incident index only if it still points at us
		item, err := txn.Get([]byte(openKey))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		var current string
		if err := item.Value(func(val []byte) error {
			current = string(val)
			return nil
		}); err != nil {
			return err
		}
		if current == id {
			return txn.Delete([]byte(openKey))
		}
		return nil
	})
}

func (s *BadgerStore) Close() error {
	s.logger.WithComponent(logging.ComponentStore).Info("Closing BadgerDB")
	return s.db.Close()
}

// runGC runs value log garbage collection periodically
func (s *BadgerStore) runGC() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		err := s.db.RunValueLogGC(0.5)
		if err != nil && err != badger.ErrNoRewrite {
			s.logger.WithComponent(logging.ComponentStore).
				WithError(err).
				Debug("Garbage collection completed with notice")
		}
	}
}

// badgerLogger adapts our logger to BadgerDB's logger interface
type badgerLogger struct {
	logger *logging.Logger
}

func (bl *badgerLogger) Errorf(format string, args ...interface{}) {
	bl.logger.WithComponent(logging.ComponentStore).Errorf(format, args...)
}

func (bl *badgerLogger) Warningf(format string, args ...interface{}) {
	bl.logger.WithComponent(logging.ComponentStore).Warnf(format, args...)
}

func (bl *badgerLogger) Infof(format string, args ...interface{}) {
	bl.logger.WithComponent(logging.ComponentStore).Infof(format, args...)
}

func (bl *badgerLogger) Debugf(format string, args ...interface{}) {
	bl.logger.WithComponent(logging.ComponentStore).Debugf(format, args...)
}
