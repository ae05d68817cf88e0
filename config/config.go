// Package config provides configuration loading and validation.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Auth    AuthConfig    `yaml:"auth"`
	Stats   StatsConfig   `yaml:"stats"`
	Daily   DailyConfig   `yaml:"daily"`
	Models  ModelsConfig  `yaml:"models"`
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// AuthConfig configures the credential gate. Key is the single API
// key clients must present; an empty key disables the gate.
type AuthConfig struct {
	Key string `yaml:"key"`
}

// StatsConfig configures the metering engine.
// Mode "background" runs the ingest queue and aggregator; "sync"
// applies updates inline (tests, one-shot tools).
type StatsConfig struct {
	Mode            string        `yaml:"mode"`             // "background" or "sync"
	BatchInterval   time.Duration `yaml:"batch_interval"`   // aggregator batch window
	FlushInterval   time.Duration `yaml:"flush_interval"`   // daily rollup persistence cadence
	CleanupInterval time.Duration `yaml:"cleanup_interval"` // eviction cadence
	QueueCapacity   int           `yaml:"queue_capacity"`   // ingest queue bound
	RecentCalls     int           `yaml:"recent_calls"`     // recent-call ring capacity
	DailyLimit      int64         `yaml:"daily_limit"`      // per-caller daily limit for percentage reporting
	RetentionDays   int           `yaml:"retention_days"`   // daily rollup retention
	SeriesRetention time.Duration `yaml:"series_retention"` // time-series retention
}

// DailyConfig configures daily rollup persistence.
// Use "json" for the snapshot file or "sqlite" for a database file.
type DailyConfig struct {
	Driver string `yaml:"driver"` // "json" or "sqlite"
	Path   string `yaml:"path"`
}

// ModelsConfig lists the models exposed by the catalog.
type ModelsConfig struct {
	Standard []string `yaml:"standard"`
	Express  []string `yaml:"express"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `yaml:"format"` // "json" or "console"
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"` // Enable /metrics endpoint
	Path    string `yaml:"path"`    // Custom path (default: /metrics)
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	// Expand environment variables
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// LoadFromEnv creates configuration entirely from environment
// variables, for deployments that run without a config file.
func LoadFromEnv() (*Config, error) {
	var cfg Config

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// LoadWithFallback tries to load from file, falling back to
// environment variables when the file is absent.
func LoadWithFallback(path string) (*Config, error) {
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}
	}
	return LoadFromEnv()
}

// applyEnvOverrides applies METERGATE_* environment variables.
// Environment variables always override file-based configuration.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("METERGATE_SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("METERGATE_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("METERGATE_AUTH_KEY"); v != "" {
		cfg.Auth.Key = v
	}
	if v := os.Getenv("METERGATE_STATS_MODE"); v != "" {
		cfg.Stats.Mode = v
	}
	if v := os.Getenv("METERGATE_STATS_BATCH_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Stats.BatchInterval = d
		}
	}
	if v := os.Getenv("METERGATE_STATS_DAILY_LIMIT"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Stats.DailyLimit = n
		}
	}
	if v := os.Getenv("METERGATE_DAILY_DRIVER"); v != "" {
		cfg.Daily.Driver = v
	}
	if v := os.Getenv("METERGATE_DAILY_PATH"); v != "" {
		cfg.Daily.Path = v
	}
	if v := os.Getenv("METERGATE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("METERGATE_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("METERGATE_METRICS_ENABLED"); v != "" {
		cfg.Metrics.Enabled = parseBool(v)
	}
}

func parseBool(v string) bool {
	switch strings.ToLower(v) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

// setDefaults fills zero values with working defaults. A zero-value
// Config becomes a runnable one.
func setDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 30 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 30 * time.Second
	}

	if cfg.Stats.Mode == "" {
		cfg.Stats.Mode = "background"
	}
	if cfg.Stats.BatchInterval == 0 {
		cfg.Stats.BatchInterval = time.Second
	}
	if cfg.Stats.FlushInterval == 0 {
		cfg.Stats.FlushInterval = 5 * time.Minute
	}
	if cfg.Stats.CleanupInterval == 0 {
		cfg.Stats.CleanupInterval = time.Hour
	}
	if cfg.Stats.QueueCapacity == 0 {
		cfg.Stats.QueueCapacity = 4096
	}
	if cfg.Stats.RecentCalls == 0 {
		cfg.Stats.RecentCalls = 100
	}
	if cfg.Stats.RetentionDays == 0 {
		cfg.Stats.RetentionDays = 90
	}
	if cfg.Stats.SeriesRetention == 0 {
		cfg.Stats.SeriesRetention = 24 * time.Hour
	}

	if cfg.Daily.Driver == "" {
		cfg.Daily.Driver = "json"
	}
	if cfg.Daily.Path == "" {
		switch cfg.Daily.Driver {
		case "sqlite":
			cfg.Daily.Path = "data/metergate.db"
		default:
			cfg.Daily.Path = "data/daily_stats.json"
		}
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}
}

// validate rejects configurations that cannot run.
func validate(cfg *Config) error {
	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", cfg.Server.Port)
	}

	switch cfg.Stats.Mode {
	case "background", "sync":
	default:
		return fmt.Errorf("stats.mode %q not supported (background or sync)", cfg.Stats.Mode)
	}

	switch cfg.Daily.Driver {
	case "json", "sqlite":
	default:
		return fmt.Errorf("daily.driver %q not supported (json or sqlite)", cfg.Daily.Driver)
	}

	switch cfg.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level %q not supported", cfg.Logging.Level)
	}
	switch cfg.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("logging.format %q not supported", cfg.Logging.Format)
	}

	if cfg.Stats.BatchInterval < 0 {
		return fmt.Errorf("stats.batch_interval must not be negative")
	}
	if cfg.Stats.DailyLimit < 0 {
		return fmt.Errorf("stats.daily_limit must not be negative")
	}
	if cfg.Stats.RetentionDays < 0 {
		return fmt.Errorf("stats.retention_days must not be negative")
	}

	return nil
}
