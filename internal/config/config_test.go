package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	path := writeConfigFile(t, "server:\n  port: \"7979\"\n")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Scheduler.UptimeInterval != 5*time.Minute {
		t.Errorf("expected default uptime interval 5m, got %v", cfg.Scheduler.UptimeInterval)
	}
	if cfg.Scheduler.SSLInterval != 60*time.Minute {
		t.Errorf("expected default ssl interval 60m, got %v", cfg.Scheduler.SSLInterval)
	}
	if cfg.Scheduler.BrowserInterval != 15*time.Minute {
		t.Errorf("expected default browser interval 15m, got %v", cfg.Scheduler.BrowserInterval)
	}
	if cfg.Scheduler.BrowserConcurrency != 1 {
		t.Errorf("expected default browser concurrency 1, got %d", cfg.Scheduler.BrowserConcurrency)
	}
	if cfg.Scheduler.BrowserRunDeadline != 300*time.Second {
		t.Errorf("expected default browser run deadline 300s, got %v", cfg.Scheduler.BrowserRunDeadline)
	}
	if cfg.Probes.HTTPTimeout != 10*time.Second {
		t.Errorf("expected default http timeout 10s, got %v", cfg.Probes.HTTPTimeout)
	}
	if cfg.Probes.BrowserNavTimeout != 20*time.Second {
		t.Errorf("expected default browser nav timeout 20s, got %v", cfg.Probes.BrowserNavTimeout)
	}
	if cfg.Probes.SSLExpiryWarningDays != 30 {
		t.Errorf("expected default ssl warning days 30, got %d", cfg.Probes.SSLExpiryWarningDays)
	}
	if cfg.Store.Backend != "memory" {
		t.Errorf("expected default store backend memory, got %s", cfg.Store.Backend)
	}

	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate, got: %v", err)
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	path := writeConfigFile(t, `
server:
  port: "8080"
store:
  backend: badger
  badger:
    path: /var/lib/pulseguard
    retentionDays: 14
scheduler:
  uptimeInterval: 1m
  browserConcurrency: 2
probes:
  httpTimeout: 5s
seedFile: monitors.yml
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Server.Port != "8080" {
		t.Errorf("expected port 8080, got %s", cfg.Server.Port)
	}
	if cfg.Store.Backend != "badger" {
		t.Errorf("expected badger backend, got %s", cfg.Store.Backend)
	}
	if cfg.Store.Badger.RetentionDays != 14 {
		t.Errorf("expected retention 14, got %d", cfg.Store.Badger.RetentionDays)
	}
	if cfg.Scheduler.UptimeInterval != time.Minute {
		t.Errorf("expected uptime interval 1m, got %v", cfg.Scheduler.UptimeInterval)
	}
	if cfg.Scheduler.BrowserConcurrency != 2 {
		t.Errorf("expected browser concurrency 2, got %d", cfg.Scheduler.BrowserConcurrency)
	}
	if cfg.Probes.HTTPTimeout != 5*time.Second {
		t.Errorf("expected http timeout 5s, got %v", cfg.Probes.HTTPTimeout)
	}
	if cfg.SeedFile != "monitors.yml" {
		t.Errorf("expected seed file monitors.yml, got %s", cfg.SeedFile)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yml")); err == nil {
		t.Fatalf("expected error for missing config file")
	}
}

func TestValidateErrors(t *testing.T) {
	base := func() *Config {
		path := writeConfigFile(t, "server:\n  port: \"7979\"\n")
		cfg, err := LoadConfig(path)
		if err != nil {
			t.Fatalf("LoadConfig failed: %v", err)
		}
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "missing port", mutate: func(c *Config) { c.Server.Port = "" }},
		{name: "unknown backend", mutate: func(c *Config) { c.Store.Backend = "etcd" }},
		{name: "badger without path", mutate: func(c *Config) {
			c.Store.Backend = "badger"
			c.Store.Badger.Path = ""
		}},
		{name: "postgres without host", mutate: func(c *Config) { c.Store.Backend = "postgres" }},
		{name: "zero uptime interval", mutate: func(c *Config) { c.Scheduler.UptimeInterval = 0 }},
		{name: "negative http timeout", mutate: func(c *Config) { c.Probes.HTTPTimeout = -time.Second }},
		{name: "zero browser concurrency", mutate: func(c *Config) { c.Scheduler.BrowserConcurrency = 0 }},
		{name: "negative ssl warning days", mutate: func(c *Config) { c.Probes.SSLExpiryWarningDays = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}
