package store

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/pulseguard/pulseguard/internal/logging"
	"github.com/pulseguard/pulseguard/pkg/models"
)

// seedFile is the on-disk shape of a monitor seed file. Monitors are normally
// created by an external management layer; the seed file stands in for it on
// single-node deployments.
type seedFile struct {
	Monitors []*models.Monitor `yaml:"monitors"`
}

// LoadSeedFile parses a monitors seed file
func LoadSeedFile(path string) ([]*models.Monitor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}

	var f seedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse seed file: %w", err)
	}

	for i, m := range f.Monitors {
		if m.URL == "" {
			return nil, fmt.Errorf("seed monitor %d: url is required", i)
		}
		if m.Type == "" {
			return nil, fmt.Errorf("seed monitor %d (%s): type is required", i, m.URL)
		}
		if m.ID == "" {
			m.ID = uuid.New().String()
		}
		if m.CurrentStatus == "" {
			m.CurrentStatus = models.StatusUnknown
		}
	}

	return f.Monitors, nil
}

// SeedMonitors upserts seed monitors into the store. Existing monitors keep
// their status fields; only the definition is refreshed.
func SeedMonitors(ctx context.Context, s Store, monitors []*models.Monitor, logger *logging.Logger) error {
	for _, m := range monitors {
		existing, err := s.GetMonitor(ctx, m.ID)
		if err == nil {
			m.CurrentStatus = existing.CurrentStatus
			m.ConsecutiveFailures = existing.ConsecutiveFailures
			m.LastUp = existing.LastUp
			m.LastDown = existing.LastDown
			m.LastCheckedAt = existing.LastCheckedAt
			m.SSL = existing.SSL
		} else if !errors.Is(err, ErrNotFound) {
			return fmt.Errorf("failed to look up monitor %s: %w", m.DisplayName(), err)
		}

		if err := s.PutMonitor(ctx, m); err != nil {
			return fmt.Errorf("failed to seed monitor %s: %w", m.DisplayName(), err)
		}
	}

	logger.WithComponent(logging.ComponentStore).
		WithFields(map[string]interface{}{"count": len(monitors)}).
		Info("Seeded monitors")
	return nil
}
