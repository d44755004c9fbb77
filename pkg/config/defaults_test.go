package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/marmos91/dittodav/internal/bytesize"
	"github.com/marmos91/dittodav/pkg/engine"
)

func TestApplyDefaults_Logging(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.Logging.Level != "INFO" {
		t.Errorf("Expected default log level 'INFO', got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" {
		t.Errorf("Expected default log format 'text', got %q", cfg.Logging.Format)
	}
	if cfg.Logging.Output != "stdout" {
		t.Errorf("Expected default log output 'stdout', got %q", cfg.Logging.Output)
	}
}

func TestApplyDefaults_ShutdownTimeout(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.ShutdownTimeout != 30*time.Second {
		t.Errorf("Expected default shutdown timeout 30s, got %v", cfg.ShutdownTimeout)
	}
}

func TestApplyDefaults_Server(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.Server.Port != 8080 {
		t.Errorf("Expected default port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout != 0 || cfg.Server.WriteTimeout != 0 {
		t.Errorf("Expected no body timeouts, got read=%v write=%v", cfg.Server.ReadTimeout, cfg.Server.WriteTimeout)
	}
}

func TestApplyDefaults_Metrics(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)
	if cfg.Metrics.Port != 0 {
		t.Errorf("Expected no port for disabled metrics, got %d", cfg.Metrics.Port)
	}

	cfg = &Config{}
	cfg.Metrics.Enabled = true
	ApplyDefaults(cfg)
	if cfg.Metrics.Port != 9090 {
		t.Errorf("Expected default metrics port 9090, got %d", cfg.Metrics.Port)
	}
}

func TestApplyDefaults_Lock(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if !cfg.Lock.IsEnabled() {
		t.Error("Expected locking enabled by default")
	}
	if cfg.Lock.DefaultTimeout != 10*time.Minute {
		t.Errorf("Expected default lock timeout 10m, got %v", cfg.Lock.DefaultTimeout)
	}
	if cfg.Lock.MaxTimeout != time.Hour {
		t.Errorf("Expected max lock timeout 1h, got %v", cfg.Lock.MaxTimeout)
	}
	if cfg.Lock.WaitTimeout != 0 {
		t.Errorf("Expected fail-fast wait timeout, got %v", cfg.Lock.WaitTimeout)
	}
}

func TestApplyDefaults_Copier(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.Copier.MaxSize != 64*bytesize.MiB {
		t.Errorf("Expected max buffer 64MiB, got %v", cfg.Copier.MaxSize)
	}
	if cfg.Copier.GrowthThreshold != 200*time.Millisecond {
		t.Errorf("Expected growth threshold 200ms, got %v", cfg.Copier.GrowthThreshold)
	}
}

func TestApplyDefaults_Handler(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	ec := cfg.Handler.EngineConfig()
	if ec.Mode != engine.ModeFastest {
		t.Errorf("Expected fastest mode, got %q", ec.Mode)
	}
	if !ec.OverwriteDefault {
		t.Error("Expected overwrite to default to true")
	}
}

func TestApplyDefaults_PreservesExplicitValues(t *testing.T) {
	cfg := &Config{
		ShutdownTimeout: time.Minute,
		Properties:      PropertiesConfig{Type: "badger"},
	}
	cfg.Logging.Format = "json"
	cfg.Lock.MaxLocks = 5

	ApplyDefaults(cfg)

	if cfg.ShutdownTimeout != time.Minute {
		t.Errorf("Expected explicit shutdown timeout preserved, got %v", cfg.ShutdownTimeout)
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("Expected explicit format preserved, got %q", cfg.Logging.Format)
	}
	if cfg.Lock.MaxLocks != 5 {
		t.Errorf("Expected explicit max locks preserved, got %d", cfg.Lock.MaxLocks)
	}
	if cfg.Properties.Type != "badger" {
		t.Errorf("Expected explicit properties type preserved, got %q", cfg.Properties.Type)
	}
}

func TestApplyDefaults_Postgres(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)
	if cfg.Postgres != (PostgresConfig{}) {
		t.Errorf("Expected unused postgres section to stay empty, got %+v", cfg.Postgres)
	}
	if cfg.Lock.Backend != "badger" {
		t.Errorf("Expected badger lock backend by default, got %q", cfg.Lock.Backend)
	}

	cfg = &Config{Postgres: PostgresConfig{Host: "db", Database: "dav", User: "dav", Password: "secret"}}
	ApplyDefaults(cfg)
	if cfg.Postgres.Port != 5432 || cfg.Postgres.SSLMode != "disable" || cfg.Postgres.MaxConns != 10 {
		t.Errorf("Unexpected postgres defaults: %+v", cfg.Postgres)
	}

	want := "host=db port=5432 user=dav password=secret dbname=dav sslmode=disable"
	if got := cfg.Postgres.DSN(); got != want {
		t.Errorf("DSN() = %q, want %q", got, want)
	}
}

func TestApplyDefaults_SQLiteProperties(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg := &Config{Properties: PropertiesConfig{Type: "sqlite"}}
	ApplyDefaults(cfg)
	if filepath.Base(cfg.Properties.SQLitePath) != "properties.db" {
		t.Errorf("Expected default sqlite path, got %q", cfg.Properties.SQLitePath)
	}
}
