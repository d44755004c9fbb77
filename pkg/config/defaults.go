package config

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/marmos91/dittodav/internal/bytesize"
	"github.com/marmos91/dittodav/pkg/engine"
	"github.com/marmos91/dittodav/pkg/lock"
)

// ApplyDefaults sets default values for any unspecified configuration fields.
//
// Default Strategy:
//   - Zero values (0, "", false, nil) are replaced with defaults
//   - Explicit values are preserved
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyTelemetryDefaults(&cfg.Telemetry)
	applyShutdownTimeoutDefaults(cfg)
	cfg.Server.ApplyDefaults()
	applyMetricsDefaults(cfg)
	applyLockDefaults(&cfg.Lock)
	cfg.Copier.ApplyDefaults()
	applyHandlerDefaults(&cfg.Handler)
	applyDatabaseDefaults(&cfg.Database)
	applyPropertiesDefaults(&cfg.Properties)
	applyPostgresDefaults(&cfg.Postgres)
}

// applyLoggingDefaults sets logging defaults and normalizes values.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

// applyTelemetryDefaults sets OpenTelemetry defaults.
func applyTelemetryDefaults(cfg *TelemetryConfig) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "localhost:4317"
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 1.0
	}

	applyProfilingDefaults(&cfg.Profiling)
}

// applyProfilingDefaults sets Pyroscope profiling defaults.
func applyProfilingDefaults(cfg *ProfilingConfig) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "http://localhost:4040"
	}

	if len(cfg.ProfileTypes) == 0 {
		cfg.ProfileTypes = []string{
			"cpu",
			"alloc_objects",
			"alloc_space",
			"inuse_objects",
			"inuse_space",
			"goroutines",
		}
	}
}

func applyShutdownTimeoutDefaults(cfg *Config) {
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
}

// applyMetricsDefaults only fills the port when metrics are on, so a
// disabled section stays empty in `config show`.
func applyMetricsDefaults(cfg *Config) {
	if cfg.Metrics.Enabled {
		cfg.Metrics.ApplyDefaults()
	}
}

// applyLockDefaults fills zero lock limits. WaitTimeout keeps its zero
// value, which means conflicting requests fail immediately.
func applyLockDefaults(cfg *LockConfig) {
	d := lock.DefaultConfig()
	if cfg.DefaultTimeout == 0 {
		cfg.DefaultTimeout = d.DefaultTimeout
	}
	if cfg.MaxTimeout == 0 {
		cfg.MaxTimeout = d.MaxTimeout
	}
	if cfg.MaxLocks == 0 {
		cfg.MaxLocks = d.MaxLocks
	}
	if cfg.Backend == "" {
		cfg.Backend = "badger"
	}
}

func applyHandlerDefaults(cfg *HandlerConfig) {
	if cfg.Mode == "" {
		cfg.Mode = engine.ModeFastest
	}
	if cfg.OverwriteDefault == nil {
		overwrite := true
		cfg.OverwriteDefault = &overwrite
	}
}

func applyDatabaseDefaults(cfg *DatabaseConfig) {
	if cfg.BlockCacheSize == 0 {
		cfg.BlockCacheSize = 64 * bytesize.MiB
	}
	if cfg.IndexCacheSize == 0 {
		cfg.IndexCacheSize = 32 * bytesize.MiB
	}
}

func applyPropertiesDefaults(cfg *PropertiesConfig) {
	if cfg.Type == "" {
		cfg.Type = "memory"
	}
	if cfg.Type == "sqlite" && cfg.SQLitePath == "" {
		cfg.SQLitePath = filepath.Join(getConfigDir(), "properties.db")
	}
}

// applyPostgresDefaults only fills an already configured section, so an
// unused one stays empty in `config show`.
func applyPostgresDefaults(cfg *PostgresConfig) {
	if !cfg.IsConfigured() {
		return
	}
	if cfg.Port == 0 {
		cfg.Port = 5432
	}
	if cfg.SSLMode == "" {
		cfg.SSLMode = "disable"
	}
	if cfg.MaxConns == 0 {
		cfg.MaxConns = 10
	}
}

// GetDefaultConfig returns a Config with all default values applied. It
// serves a single in-memory store at "/".
func GetDefaultConfig() *Config {
	cfg := &Config{
		Stores: map[string]StoreConfig{
			"default": {Type: "memory"},
		},
		Shares: []ShareConfig{
			{Name: "/", Store: "default"},
		},
	}

	ApplyDefaults(cfg)
	return cfg
}
