package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pulseguard/pulseguard/internal/logging"
	"github.com/pulseguard/pulseguard/pkg/models"
)

// PostgresStore implements Store on PostgreSQL via pgx. Monitor status
// updates read and write the monitors row inside a transaction so concurrent
// sweeps never observe a half-applied update.
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger *logging.Logger
}

// NewPostgresStore connects to PostgreSQL and ensures the schema exists
func NewPostgresStore(ctx context.Context, connString string, logger *logging.Logger) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 2
	config.MaxConnLifetime = time.Hour
	config.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	ps := &PostgresStore{
		pool:   pool,
		logger: logger,
	}

	if err := ps.initSchema(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.WithComponent(logging.ComponentStore).Info("PostgreSQL store initialized")
	return ps, nil
}

func (ps *PostgresStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS monitors (
		id VARCHAR(64) PRIMARY KEY,
		owner_id VARCHAR(64),
		name VARCHAR(255) NOT NULL,
		url TEXT NOT NULL,
		type VARCHAR(20) NOT NULL,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		browser_check JSONB,
		current_status VARCHAR(20) NOT NULL DEFAULT 'unknown',
		consecutive_failures INTEGER NOT NULL DEFAULT 0,
		last_up TIMESTAMPTZ,
		last_down TIMESTAMPTZ,
		last_checked_at TIMESTAMPTZ,
		ssl JSONB,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS check_results (
		id VARCHAR(64) PRIMARY KEY,
		monitor_id VARCHAR(64) NOT NULL REFERENCES monitors(id),
		owner_id VARCHAR(64),
		status BOOLEAN NOT NULL,
		response_time_ms BIGINT,
		http_status_code INTEGER,
		error_message TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_check_results_monitor_created
		ON check_results(monitor_id, created_at DESC);

	CREATE TABLE IF NOT EXISTS ssl_alerts (
		id VARCHAR(64) PRIMARY KEY,
		monitor_id VARCHAR(64) NOT NULL REFERENCES monitors(id),
		state VARCHAR(20) NOT NULL,
		message TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_ssl_alerts_monitor ON ssl_alerts(monitor_id, created_at DESC);

	CREATE TABLE IF NOT EXISTS incidents (
		id VARCHAR(64) PRIMARY KEY,
		monitor_id VARCHAR(64) NOT NULL REFERENCES monitors(id),
		owner_id VARCHAR(64),
		title TEXT NOT NULL,
		description TEXT,
		severity VARCHAR(20) NOT NULL,
		status VARCHAR(20) NOT NULL,
		start_time TIMESTAMPTZ NOT NULL,
		resolved_at TIMESTAMPTZ,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_incidents_monitor_status ON incidents(monitor_id, status);
	`

	_, err := ps.pool.Exec(ctx, schema)
	return err
}

func (ps *PostgresStore) ListMonitors(ctx context.Context, filter MonitorFilter) ([]*models.Monitor, error) {
	rows, err := ps.pool.Query(ctx, `
		SELECT id, owner_id, name, url, type, is_active, browser_check,
		       current_status, consecutive_failures, last_up, last_down,
		       last_checked_at, ssl, updated_at
		FROM monitors ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list monitors: %w", err)
	}
	defer rows.Close()

	var out []*models.Monitor
	for rows.Next() {
		m, err := scanMonitor(rows)
		if err != nil {
			return nil, err
		}
		// Type and browser filtering happen in Go; the monitor set is small
		if filter.Matches(m) {
			out = append(out, m)
		}
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMonitor(row rowScanner) (*models.Monitor, error) {
	var m models.Monitor
	var ownerID *string
	var browserCheck, ssl []byte

	err := row.Scan(&m.ID, &ownerID, &m.Name, &m.URL, &m.Type, &m.IsActive,
		&browserCheck, &m.CurrentStatus, &m.ConsecutiveFailures,
		&m.LastUp, &m.LastDown, &m.LastCheckedAt, &ssl, &m.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to scan monitor: %w", err)
	}

	if ownerID != nil {
		m.OwnerID = *ownerID
	}
	if len(browserCheck) > 0 {
		m.BrowserCheck = &models.BrowserCheckConfig{}
		if err := json.Unmarshal(browserCheck, m.BrowserCheck); err != nil {
			return nil, fmt.Errorf("failed to unmarshal browser check: %w", err)
		}
	}
	if len(ssl) > 0 {
		m.SSL = &models.SSLInfo{}
		if err := json.Unmarshal(ssl, m.SSL); err != nil {
			return nil, fmt.Errorf("failed to unmarshal ssl info: %w", err)
		}
	}
	return &m, nil
}

func (ps *PostgresStore) GetMonitor(ctx context.Context, id string) (*models.Monitor, error) {
	row := ps.pool.QueryRow(ctx, `
		SELECT id, owner_id, name, url, type, is_active, browser_check,
		       current_status, consecutive_failures, last_up, last_down,
		       last_checked_at, ssl, updated_at
		FROM monitors WHERE id = $1`, id)

	m, err := scanMonitor(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("monitor %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (ps *PostgresStore) PutMonitor(ctx context.Context, m *models.Monitor) error {
	browserCheck, err := marshalNullable(m.BrowserCheck != nil, m.BrowserCheck)
	if err != nil {
		return err
	}
	ssl, err := marshalNullable(m.SSL != nil, m.SSL)
	if err != nil {
		return err
	}

	_, err = ps.pool.Exec(ctx, `
		INSERT INTO monitors (id, owner_id, name, url, type, is_active, browser_check,
			current_status, consecutive_failures, last_up, last_down, last_checked_at, ssl, updated_at)
		VALUES ($1, NULLIF($2, ''), $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, NOW())
		ON CONFLICT (id) DO UPDATE SET
			owner_id = EXCLUDED.owner_id,
			name = EXCLUDED.name,
			url = EXCLUDED.url,
			type = EXCLUDED.type,
			is_active = EXCLUDED.is_active,
			browser_check = EXCLUDED.browser_check,
			updated_at = NOW()`,
		m.ID, m.OwnerID, m.Name, m.URL, m.Type, m.IsActive, browserCheck,
		m.CurrentStatus, m.ConsecutiveFailures, m.LastUp, m.LastDown, m.LastCheckedAt, ssl)
	if err != nil {
		return fmt.Errorf("failed to upsert monitor: %w", err)
	}
	return nil
}

func marshalNullable(present bool, v any) ([]byte, error) {
	if !present {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal field: %w", err)
	}
	return b, nil
}

func (ps *PostgresStore) UpdateMonitor(ctx context.Context, id string, update MonitorUpdate) error {
	tx, err := ps.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `
		SELECT id, owner_id, name, url, type, is_active, browser_check,
		       current_status, consecutive_failures, last_up, last_down,
		       last_checked_at, ssl, updated_at
		FROM monitors WHERE id = $1 FOR UPDATE`, id)

	m, err := scanMonitor(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("monitor %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return err
	}

	update.Apply(m, time.Now())

	ssl, err := marshalNullable(m.SSL != nil, m.SSL)
	if err != nil {
		return err
	}

	_, err = tx.Exec(ctx, `
		UPDATE monitors SET current_status = $2, consecutive_failures = $3,
			last_up = $4, last_down = $5, last_checked_at = $6, ssl = $7, updated_at = $8
		WHERE id = $1`,
		id, m.CurrentStatus, m.ConsecutiveFailures, m.LastUp, m.LastDown,
		m.LastCheckedAt, ssl, m.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update monitor: %w", err)
	}

	return tx.Commit(ctx)
}

func (ps *PostgresStore) AppendCheckResult(ctx context.Context, result *models.CheckResult) error {
	_, err := ps.pool.Exec(ctx, `
		INSERT INTO check_results (id, monitor_id, owner_id, status, response_time_ms, http_status_code, error_message, created_at)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, NULLIF($7, ''), $8)`,
		result.ID, result.MonitorID, result.OwnerID, result.Status,
		result.ResponseTimeMs, result.HTTPStatusCode, result.ErrorMessage, result.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert check result: %w", err)
	}
	return nil
}

func (ps *PostgresStore) GetCheckResults(ctx context.Context, monitorID string, start, end time.Time, limit int) ([]*models.CheckResult, error) {
	if limit <= 0 {
		limit = 10000
	}

	rows, err := ps.pool.Query(ctx, `
		SELECT id, monitor_id, COALESCE(owner_id, ''), status, response_time_ms,
		       http_status_code, COALESCE(error_message, ''), created_at
		FROM check_results
		WHERE monitor_id = $1 AND created_at >= $2 AND created_at <= $3
		ORDER BY created_at DESC
		LIMIT $4`, monitorID, start, end, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query check results: %w", err)
	}
	defer rows.Close()

	var out []*models.CheckResult
	for rows.Next() {
		var r models.CheckResult
		err := rows.Scan(&r.ID, &r.MonitorID, &r.OwnerID, &r.Status,
			&r.ResponseTimeMs, &r.HTTPStatusCode, &r.ErrorMessage, &r.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan check result: %w", err)
		}
		out = append(out, &r)
	}
	return out, rows.Err()
}

func (ps *PostgresStore) UptimeStats(ctx context.Context, monitorID string, window time.Duration) (*models.UptimeStats, error) {
	end := time.Now()
	start := end.Add(-window)

	stats := &models.UptimeStats{
		MonitorID:   monitorID,
		WindowStart: start,
		WindowEnd:   end,
	}

	var avgMs *float64
	err := ps.pool.QueryRow(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE status),
		       COUNT(*) FILTER (WHERE NOT status),
		       AVG(response_time_ms)
		FROM check_results
		WHERE monitor_id = $1 AND created_at >= $2 AND created_at <= $3`,
		monitorID, start, end).
		Scan(&stats.TotalChecks, &stats.UpChecks, &stats.DownChecks, &avgMs)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate uptime stats: %w", err)
	}

	if stats.TotalChecks > 0 {
		stats.UptimePercent = float64(stats.UpChecks) / float64(stats.TotalChecks) * 100
	}
	if avgMs != nil {
		stats.AvgResponse = time.Duration(*avgMs * float64(time.Millisecond))
	}
	return stats, nil
}

func (ps *PostgresStore) AppendSSLSnapshot(ctx context.Context, monitorID string, snap *models.SSLCertificateSnapshot) error {
	tx, err := ps.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var prevJSON []byte
	err = tx.QueryRow(ctx, `SELECT ssl FROM monitors WHERE id = $1 FOR UPDATE`, monitorID).Scan(&prevJSON)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("monitor %s: %w", monitorID, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to read monitor: %w", err)
	}

	var prev models.SSLState
	if len(prevJSON) > 0 {
		var info models.SSLInfo
		if err := json.Unmarshal(prevJSON, &info); err == nil {
			prev = info.Status
		}
	}

	expiry := snap.ValidTo
	ssl, err := json.Marshal(&models.SSLInfo{
		Status:          snap.State,
		ExpiryDate:      &expiry,
		Issuer:          snap.IssuerName,
		DaysUntilExpiry: snap.DaysUntilExpiry,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal ssl info: %w", err)
	}

	_, err = tx.Exec(ctx, `UPDATE monitors SET ssl = $2, updated_at = NOW() WHERE id = $1`, monitorID, ssl)
	if err != nil {
		return fmt.Errorf("failed to update monitor ssl: %w", err)
	}

	if alertableTransition(prev, snap.State) {
		_, err = tx.Exec(ctx, `
			INSERT INTO ssl_alerts (id, monitor_id, state, message, created_at)
			VALUES ($1, $2, $3, $4, NOW())`,
			uuid.New().String(), monitorID, snap.State, sslAlertMessage(snap))
		if err != nil {
			return fmt.Errorf("failed to insert ssl alert: %w", err)
		}
	}

	return tx.Commit(ctx)
}

func (ps *PostgresStore) ListSSLAlerts(ctx context.Context, monitorID string) ([]*models.SSLAlert, error) {
	rows, err := ps.pool.Query(ctx, `
		SELECT id, monitor_id, state, COALESCE(message, ''), created_at
		FROM ssl_alerts WHERE monitor_id = $1 ORDER BY created_at`, monitorID)
	if err != nil {
		return nil, fmt.Errorf("failed to query ssl alerts: %w", err)
	}
	defer rows.Close()

	var out []*models.SSLAlert
	for rows.Next() {
		var a models.SSLAlert
		if err := rows.Scan(&a.ID, &a.MonitorID, &a.State, &a.Message, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan ssl alert: %w", err)
		}
		out = append(out, &a)
	}
	return out, rows.Err()
}

func (ps *PostgresStore) FindOpenIncident(ctx context.Context, monitorID string) (*models.Incident, error) {
	row := ps.pool.QueryRow(ctx, `
		SELECT id, monitor_id, COALESCE(owner_id, ''), title, COALESCE(description, ''),
		       severity, status, start_time, resolved_at, updated_at
		FROM incidents WHERE monitor_id = $1 AND status = 'open'
		ORDER BY start_time LIMIT 1`, monitorID)

	inc, err := scanIncident(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return inc, nil
}

func scanIncident(row rowScanner) (*models.Incident, error) {
	var inc models.Incident
	err := row.Scan(&inc.ID, &inc.MonitorID, &inc.OwnerID, &inc.Title, &inc.Description,
		&inc.Severity, &inc.Status, &inc.StartTime, &inc.ResolvedAt, &inc.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &inc, nil
}

func (ps *PostgresStore) ListOpenIncidents(ctx context.Context, monitorID string) ([]*models.Incident, error) {
	rows, err := ps.pool.Query(ctx, `
		SELECT id, monitor_id, COALESCE(owner_id, ''), title, COALESCE(description, ''),
		       severity, status, start_time, resolved_at, updated_at
		FROM incidents WHERE monitor_id = $1 AND status = 'open'
		ORDER BY start_time`, monitorID)
	if err != nil {
		return nil, fmt.Errorf("failed to query open incidents: %w", err)
	}
	defer rows.Close()

	var out []*models.Incident
	for rows.Next() {
		inc, err := scanIncident(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan incident: %w", err)
		}
		out = append(out, inc)
	}
	return out, rows.Err()
}

func (ps *PostgresStore) CreateIncident(ctx context.Context, incident *models.Incident) error {
	_, err := ps.pool.Exec(ctx, `
		INSERT INTO incidents (id, monitor_id, owner_id, title, description, severity, status, start_time, resolved_at, updated_at)
		VALUES ($1, $2, NULLIF($3, ''), $4, NULLIF($5, ''), $6, $7, $8, $9, $10)`,
		incident.ID, incident.MonitorID, incident.OwnerID, incident.Title,
		incident.Description, incident.Severity, incident.Status,
		incident.StartTime, incident.ResolvedAt, incident.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert incident: %w", err)
	}
	return nil
}

func (ps *PostgresStore) ResolveIncident(ctx context.Context, id string) error {
	tag, err := ps.pool.Exec(ctx, `
		UPDATE incidents SET status = 'resolved', resolved_at = NOW(), updated_at = NOW()
		WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to resolve incident: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("incident %s: %w", id, ErrNotFound)
	}
	return nil
}

func (ps *PostgresStore) Close() error {
	ps.logger.WithComponent(logging.ComponentStore).Info("Closing PostgreSQL pool")
	ps.pool.Close()
	return nil
}
