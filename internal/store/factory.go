package store

import (
	"context"
	"fmt"

	"github.com/pulseguard/pulseguard/internal/config"
	"github.com/pulseguard/pulseguard/internal/logging"
)

// BackendType represents the type of storage backend
type BackendType string

const (
	// BackendMemory keeps everything in process memory, for tests and local runs
	BackendMemory BackendType = "memory"
	// BackendBadger uses BadgerDB for embedded single-node storage
	BackendBadger BackendType = "badger"
	// BackendPostgres uses PostgreSQL for shared persistent storage
	BackendPostgres BackendType = "postgres"
)

// NewStore creates a storage backend based on configuration
func NewStore(ctx context.Context, cfg *config.StoreConfig, logger *logging.Logger) (Store, error) {
	if cfg == nil {
		return nil, fmt.Errorf("store config cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}

	backendType := BackendType(cfg.Backend)
	if backendType == "" {
		backendType = BackendMemory
	}

	switch backendType {
	case BackendMemory:
		logger.WithComponent(logging.ComponentStore).Info("Using in-memory store")
		return NewMemoryStore(), nil

	case BackendBadger:
		logger.WithComponent(logging.ComponentStore).Info("Using BadgerDB store")
		return NewBadgerStore(cfg.Badger.Path, cfg.Badger.RetentionDays, logger)

	case BackendPostgres:
		logger.WithComponent(logging.ComponentStore).Info("Using PostgreSQL store")
		return NewPostgresStore(ctx, postgresConnString(&cfg.Postgres), logger)

	default:
		return nil, fmt.Errorf("unknown store backend: %s (valid options: memory, badger, postgres)", cfg.Backend)
	}
}

func postgresConnString(cfg *config.PostgresConfig) string {
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Database, sslMode)
}
