// Package config loads and validates engine configuration from YAML files and
// environment variables using viper.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Metrics   MetricsConfig   `yaml:"metrics" mapstructure:"metrics"`
	Logging   LoggingConfig   `yaml:"logging" mapstructure:"logging"`
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Probes    ProbesConfig    `yaml:"probes" mapstructure:"probes"`
	Scheduler SchedulerConfig `yaml:"scheduler" mapstructure:"scheduler"`
	SeedFile  string          `yaml:"seedFile" mapstructure:"seedFile"`
}

// ServerConfig contains the operational HTTP server configuration
type ServerConfig struct {
	Host string `yaml:"host" mapstructure:"host"`
	Port string `yaml:"port" mapstructure:"port"`
}

// MetricsConfig contains Prometheus metrics configuration
type MetricsConfig struct {
	Enabled               bool   `yaml:"enabled" mapstructure:"enabled"`
	Path                  string `yaml:"path" mapstructure:"path"`
	IncludeProcessMetrics bool   `yaml:"includeProcessMetrics" mapstructure:"includeProcessMetrics"`
	IncludeGoMetrics      bool   `yaml:"includeGoMetrics" mapstructure:"includeGoMetrics"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string            `yaml:"level" mapstructure:"level"`
	Format string            `yaml:"format" mapstructure:"format"`
	Output string            `yaml:"output" mapstructure:"output"`
	Fields map[string]string `yaml:"fields" mapstructure:"fields"`
}

// StoreConfig selects and configures the result store backend
type StoreConfig struct {
	Backend  string         `yaml:"backend" mapstructure:"backend"` // memory, badger, postgres
	Badger   BadgerConfig   `yaml:"badger" mapstructure:"badger"`
	Postgres PostgresConfig `yaml:"postgres" mapstructure:"postgres"`
}

// BadgerConfig configures the embedded BadgerDB backend
type BadgerConfig struct {
	Path          string `yaml:"path" mapstructure:"path"`
	RetentionDays int    `yaml:"retentionDays" mapstructure:"retentionDays"`
}

// PostgresConfig configures the PostgreSQL backend
type PostgresConfig struct {
	Host     string `yaml:"host" mapstructure:"host"`
	Port     int    `yaml:"port" mapstructure:"port"`
	User     string `yaml:"user" mapstructure:"user"`
	Password string `yaml:"password" mapstructure:"password"`
	Database string `yaml:"database" mapstructure:"database"`
	SSLMode  string `yaml:"sslMode" mapstructure:"sslMode"`
}

// ProbesConfig bounds every probe driver
type ProbesConfig struct {
	HTTPTimeout            time.Duration `yaml:"httpTimeout" mapstructure:"httpTimeout"`
	TLSTimeout             time.Duration `yaml:"tlsTimeout" mapstructure:"tlsTimeout"`
	BrowserNavTimeout      time.Duration `yaml:"browserNavTimeout" mapstructure:"browserNavTimeout"`
	BrowserSelectorTimeout time.Duration `yaml:"browserSelectorTimeout" mapstructure:"browserSelectorTimeout"`
	PingCount              int           `yaml:"pingCount" mapstructure:"pingCount"`
	SSLExpiryWarningDays   int           `yaml:"sslExpiryWarningDays" mapstructure:"sslExpiryWarningDays"`
}

// SchedulerConfig drives the per-class cadences and concurrency limits
type SchedulerConfig struct {
	UptimeInterval     time.Duration `yaml:"uptimeInterval" mapstructure:"uptimeInterval"`
	SSLInterval        time.Duration `yaml:"sslInterval" mapstructure:"sslInterval"`
	BrowserInterval    time.Duration `yaml:"browserInterval" mapstructure:"browserInterval"`
	SweepInterval      time.Duration `yaml:"sweepInterval" mapstructure:"sweepInterval"`
	UptimeConcurrency  int           `yaml:"uptimeConcurrency" mapstructure:"uptimeConcurrency"`
	SSLConcurrency     int           `yaml:"sslConcurrency" mapstructure:"sslConcurrency"`
	BrowserConcurrency int           `yaml:"browserConcurrency" mapstructure:"browserConcurrency"`
	BrowserRunDeadline time.Duration `yaml:"browserRunDeadline" mapstructure:"browserRunDeadline"`
}

// LoadConfig loads configuration from file
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", "7979")
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
	v.SetDefault("metrics.includeProcessMetrics", true)
	v.SetDefault("metrics.includeGoMetrics", true)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("store.backend", "memory")
	v.SetDefault("store.badger.path", "./data")
	v.SetDefault("store.badger.retentionDays", 30)
	v.SetDefault("store.postgres.port", 5432)
	v.SetDefault("store.postgres.sslMode", "disable")
	v.SetDefault("probes.httpTimeout", "10s")
	v.SetDefault("probes.tlsTimeout", "10s")
	v.SetDefault("probes.browserNavTimeout", "20s")
	v.SetDefault("probes.browserSelectorTimeout", "10s")
	v.SetDefault("probes.pingCount", 3)
	v.SetDefault("probes.sslExpiryWarningDays", 30)
	v.SetDefault("scheduler.uptimeInterval", "5m")
	v.SetDefault("scheduler.sslInterval", "60m")
	v.SetDefault("scheduler.browserInterval", "15m")
	v.SetDefault("scheduler.sweepInterval", "1h")
	v.SetDefault("scheduler.uptimeConcurrency", 32)
	v.SetDefault("scheduler.sslConcurrency", 16)
	v.SetDefault("scheduler.browserConcurrency", 1)
	v.SetDefault("scheduler.browserRunDeadline", "300s")

	// Enable environment variable substitution
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/pulseguard")
	}

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server.port is required")
	}

	switch c.Store.Backend {
	case "memory":
	case "badger":
		if c.Store.Badger.Path == "" {
			return fmt.Errorf("store.badger.path is required for the badger backend")
		}
	case "postgres":
		if c.Store.Postgres.Host == "" || c.Store.Postgres.Database == "" {
			return fmt.Errorf("store.postgres.host and store.postgres.database are required for the postgres backend")
		}
	default:
		return fmt.Errorf("unknown store backend: %s (valid options: memory, badger, postgres)", c.Store.Backend)
	}

	for name, d := range map[string]time.Duration{
		"probes.httpTimeout":            c.Probes.HTTPTimeout,
		"probes.tlsTimeout":             c.Probes.TLSTimeout,
		"probes.browserNavTimeout":      c.Probes.BrowserNavTimeout,
		"probes.browserSelectorTimeout": c.Probes.BrowserSelectorTimeout,
		"scheduler.uptimeInterval":      c.Scheduler.UptimeInterval,
		"scheduler.sslInterval":         c.Scheduler.SSLInterval,
		"scheduler.browserInterval":     c.Scheduler.BrowserInterval,
		"scheduler.sweepInterval":       c.Scheduler.SweepInterval,
		"scheduler.browserRunDeadline":  c.Scheduler.BrowserRunDeadline,
	} {
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %v", name, d)
		}
	}

	for name, n := range map[string]int{
		"scheduler.uptimeConcurrency":  c.Scheduler.UptimeConcurrency,
		"scheduler.sslConcurrency":     c.Scheduler.SSLConcurrency,
		"scheduler.browserConcurrency": c.Scheduler.BrowserConcurrency,
		"probes.pingCount":             c.Probes.PingCount,
	} {
		if n < 1 {
			return fmt.Errorf("%s must be at least 1, got %d", name, n)
		}
	}

	if c.Probes.SSLExpiryWarningDays < 0 {
		return fmt.Errorf("probes.sslExpiryWarningDays must not be negative, got %d", c.Probes.SSLExpiryWarningDays)
	}

	return nil
}
