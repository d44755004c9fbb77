package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/marmos91/dittodav/internal/bytesize"
	"github.com/marmos91/dittodav/pkg/copier"
	"github.com/marmos91/dittodav/pkg/engine"
	"github.com/marmos91/dittodav/pkg/engine/remote"
	"github.com/marmos91/dittodav/pkg/lock"
	"github.com/marmos91/dittodav/pkg/metrics"
	"github.com/marmos91/dittodav/pkg/server"
)

// EnvPrefix is the prefix of environment variable overrides.
const EnvPrefix = "DITTODAV"

// Config represents the dittodav configuration.
//
// This structure captures every static aspect of the server:
//   - Logging, tracing and profiling
//   - The WebDAV HTTP server and the metrics server
//   - Lock manager, copier and handler tuning
//   - The state database shared by lock persistence and properties
//   - Remote endpoints COPY and MOVE may target
//   - Stores and the shares mounted on them
//
// Configuration sources (in order of precedence):
//  1. Environment variables (DITTODAV_*)
//  2. Configuration file (YAML)
//  3. Default values (lowest priority)
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Telemetry controls OpenTelemetry distributed tracing
	Telemetry TelemetryConfig `mapstructure:"telemetry" yaml:"telemetry"`

	// ShutdownTimeout is the maximum time to wait for graceful shutdown
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"required,gt=0" yaml:"shutdown_timeout"`

	// Server configures the WebDAV HTTP listener
	Server server.Config `mapstructure:"server" yaml:"server"`

	// Metrics contains Prometheus metrics server configuration
	Metrics metrics.Config `mapstructure:"metrics" yaml:"metrics"`

	// Lock contains lock manager configuration
	Lock LockConfig `mapstructure:"lock" yaml:"lock"`

	// Copier tunes the adaptive buffer used to move document content
	Copier copier.Config `mapstructure:"copier" yaml:"copier"`

	// Handler selects how COPY and MOVE are processed
	Handler HandlerConfig `mapstructure:"handler" yaml:"handler"`

	// Database is the BadgerDB holding persisted locks and properties
	Database DatabaseConfig `mapstructure:"database" yaml:"database"`

	// Properties selects where dead properties and ETags are kept
	Properties PropertiesConfig `mapstructure:"properties" yaml:"properties"`

	// Remote lists the WebDAV servers COPY and MOVE may write to
	Remote remote.Config `mapstructure:"remote" yaml:"remote"`

	// Postgres is the shared PostgreSQL connection
	Postgres PostgresConfig `mapstructure:"postgres" yaml:"postgres,omitempty"`

	// Stores maps store names to their backend configuration
	Stores map[string]StoreConfig `mapstructure:"stores" validate:"dive" yaml:"stores"`

	// Shares mounts stores under URL path prefixes
	Shares []ShareConfig `mapstructure:"shares" validate:"dive" yaml:"shares"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive, normalized to uppercase)
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level"`

	// Format specifies the log output format
	// Valid values: text, json
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format"`

	// Output specifies where logs are written
	// Valid values: stdout, stderr, or a file path
	Output string `mapstructure:"output" validate:"required" yaml:"output"`
}

// TelemetryConfig controls OpenTelemetry distributed tracing.
// When enabled, trace data is exported to an OTLP-compatible collector
// (e.g., Jaeger, Tempo, or any OTLP receiver).
type TelemetryConfig struct {
	// Enabled controls whether distributed tracing is enabled
	// Default: false (opt-in for telemetry)
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Endpoint is the OTLP collector endpoint (host:port)
	// Default: "localhost:4317" (standard OTLP gRPC port)
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`

	// Insecure controls whether to use insecure (non-TLS) connection
	Insecure bool `mapstructure:"insecure" yaml:"insecure"`

	// SampleRate controls the trace sampling rate (0.0 to 1.0)
	// Default: 1.0 (sample all)
	SampleRate float64 `mapstructure:"sample_rate" validate:"omitempty,gte=0,lte=1" yaml:"sample_rate"`

	// Profiling contains Pyroscope continuous profiling configuration
	Profiling ProfilingConfig `mapstructure:"profiling" yaml:"profiling"`
}

// ProfilingConfig controls Pyroscope continuous profiling.
type ProfilingConfig struct {
	// Enabled controls whether continuous profiling is enabled
	// Default: false (opt-in for profiling)
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Endpoint is the Pyroscope server endpoint (URL)
	// Default: "http://localhost:4040" (standard Pyroscope port)
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`

	// ProfileTypes specifies which profile types to collect
	// Valid values: cpu, alloc_objects, alloc_space, inuse_objects, inuse_space,
	//               goroutines, mutex_count, mutex_duration, block_count, block_duration
	ProfileTypes []string `mapstructure:"profile_types" yaml:"profile_types"`
}

// LockConfig contains lock manager configuration.
type LockConfig struct {
	// Enabled turns on LOCK and UNLOCK. When false the server only
	// advertises DAV class 1 and mutations lock nothing.
	// Default: true
	Enabled *bool `mapstructure:"enabled" yaml:"enabled,omitempty"`

	// Persist stores explicit locks so they survive a restart.
	Persist bool `mapstructure:"persist" yaml:"persist"`

	// Backend is where persisted locks go: "badger" (requires
	// database.path) or "postgres" (requires the postgres section).
	// Default: badger
	Backend string `mapstructure:"backend" validate:"omitempty,oneof=badger postgres" yaml:"backend,omitempty"`

	lock.Config `mapstructure:",squash" yaml:",inline"`
}

// IsEnabled returns whether locking is enabled. Defaults to true.
func (c LockConfig) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// HandlerConfig tunes COPY and MOVE processing.
type HandlerConfig struct {
	// Mode is "fastest" (native store operations when possible) or
	// "generic" (always stream through the copier).
	// Default: fastest
	Mode engine.Mode `mapstructure:"mode" validate:"omitempty,oneof=fastest generic" yaml:"mode"`

	// OverwriteDefault applies when a request has no Overwrite header.
	// Default: true
	OverwriteDefault *bool `mapstructure:"overwrite_default" yaml:"overwrite_default,omitempty"`
}

// EngineConfig converts the section to an engine.Config.
func (c HandlerConfig) EngineConfig() engine.Config {
	cfg := engine.DefaultConfig()
	if c.Mode != "" {
		cfg.Mode = c.Mode
	}
	if c.OverwriteDefault != nil {
		cfg.OverwriteDefault = *c.OverwriteDefault
	}
	return cfg
}

// DatabaseConfig locates the BadgerDB shared by lock persistence and the
// badger property store.
type DatabaseConfig struct {
	// Path is the BadgerDB directory. Empty means no database is opened.
	Path string `mapstructure:"path" yaml:"path,omitempty"`

	// BlockCacheSize is the BadgerDB block cache size.
	// Default: 64MiB
	BlockCacheSize bytesize.ByteSize `mapstructure:"block_cache_size" yaml:"block_cache_size,omitempty"`

	// IndexCacheSize is the BadgerDB index cache size.
	// Default: 32MiB
	IndexCacheSize bytesize.ByteSize `mapstructure:"index_cache_size" yaml:"index_cache_size,omitempty"`
}

// PostgresConfig is the PostgreSQL connection used by the postgres lock
// backend and the postgres property store.
type PostgresConfig struct {
	Host     string `mapstructure:"host" yaml:"host,omitempty"`
	Port     int    `mapstructure:"port" validate:"omitempty,min=1,max=65535" yaml:"port,omitempty"`
	Database string `mapstructure:"database" yaml:"database,omitempty"`
	User     string `mapstructure:"user" yaml:"user,omitempty"`
	Password string `mapstructure:"password" yaml:"password,omitempty"`

	// SSLMode is one of disable, require, verify-ca, verify-full.
	// Default: disable
	SSLMode string `mapstructure:"ssl_mode" validate:"omitempty,oneof=disable require verify-ca verify-full" yaml:"ssl_mode,omitempty"`

	// MaxConns bounds each component's connection pool.
	// Default: 10
	MaxConns int `mapstructure:"max_conns" validate:"omitempty,gte=1" yaml:"max_conns,omitempty"`
}

// IsConfigured reports whether a host and database are set.
func (c PostgresConfig) IsConfigured() bool {
	return c.Host != "" && c.Database != ""
}

// DSN returns the libpq connection string.
func (c PostgresConfig) DSN() string {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s",
		c.Host, c.Port, c.User, c.Password, c.Database)
	if c.SSLMode != "" {
		dsn += fmt.Sprintf(" sslmode=%s", c.SSLMode)
	}
	return dsn
}

// PropertiesConfig selects the property store.
type PropertiesConfig struct {
	// Type is one of:
	//   - memory: lost on restart
	//   - badger: requires database.path
	//   - sqlite: a local SQLite file at sqlite_path
	//   - postgres: requires the postgres section
	// Default: memory
	Type string `mapstructure:"type" validate:"omitempty,oneof=memory badger sqlite postgres" yaml:"type"`

	// SQLitePath is the SQLite file used by the sqlite type.
	// Default: $XDG_CONFIG_HOME/dittodav/properties.db
	SQLitePath string `mapstructure:"sqlite_path" yaml:"sqlite_path,omitempty"`
}

// StoreConfig configures one store backend. Only the section matching
// Type is used.
type StoreConfig struct {
	// Type is the backend: memory, filesystem or s3
	Type string `mapstructure:"type" validate:"required,oneof=memory filesystem s3" yaml:"type"`

	Filesystem FilesystemStoreConfig `mapstructure:"filesystem" yaml:"filesystem,omitempty"`
	S3         S3StoreConfig         `mapstructure:"s3" yaml:"s3,omitempty"`
}

// FilesystemStoreConfig configures a local directory store.
type FilesystemStoreConfig struct {
	// Path is the directory mapped to the store root
	Path string `mapstructure:"path" yaml:"path,omitempty"`

	// CreateDir creates Path when it is missing.
	// Default: true
	CreateDir *bool `mapstructure:"create_dir" yaml:"create_dir,omitempty"`

	// DirMode and FileMode are the permissions of created entries.
	// Default: 0755 and 0644
	DirMode  uint32 `mapstructure:"dir_mode" yaml:"dir_mode,omitempty"`
	FileMode uint32 `mapstructure:"file_mode" yaml:"file_mode,omitempty"`
}

// S3StoreConfig configures an S3 bucket store.
type S3StoreConfig struct {
	Bucket          string `mapstructure:"bucket" yaml:"bucket,omitempty"`
	Region          string `mapstructure:"region" yaml:"region,omitempty"`
	Endpoint        string `mapstructure:"endpoint" yaml:"endpoint,omitempty"`
	KeyPrefix       string `mapstructure:"key_prefix" yaml:"key_prefix,omitempty"`
	AccessKeyID     string `mapstructure:"access_key_id" yaml:"access_key_id,omitempty"`
	SecretAccessKey string `mapstructure:"secret_access_key" yaml:"secret_access_key,omitempty"`
	MaxRetries      int    `mapstructure:"max_retries" validate:"omitempty,gte=0" yaml:"max_retries,omitempty"`
	ForcePathStyle  bool   `mapstructure:"force_path_style" yaml:"force_path_style,omitempty"`
}

// ShareConfig mounts a store under a URL path prefix.
type ShareConfig struct {
	// Name is the URL path prefix, e.g. "/" or "/docs"
	Name string `mapstructure:"name" validate:"required,startswith=/" yaml:"name"`

	// Store is the name of a configured store
	Store string `mapstructure:"store" validate:"required" yaml:"store"`

	// Root is the directory inside the store the share starts at
	Root string `mapstructure:"root" yaml:"root,omitempty"`

	// ReadOnly rejects every mutation under the share
	ReadOnly bool `mapstructure:"read_only" yaml:"read_only"`
}

// Load loads configuration from file, environment, and defaults.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (DITTODAV_*)
//  2. Configuration file
//  3. Default values
//
// When no configuration file exists the defaults are returned.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath)

	configFileFound, err := readConfigFile(v)
	if err != nil {
		return nil, err
	}

	if !configFileFound {
		return GetDefaultConfig(), nil
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(configDecodeHooks())); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// MustLoad loads configuration with helpful error messages.
// It checks if the config file exists and provides user-friendly instructions if not.
func MustLoad(configPath string) (*Config, error) {
	if configPath == "" {
		if !DefaultConfigExists() {
			return nil, fmt.Errorf("no configuration file found at default location: %s\n\n"+
				"Please initialize a configuration file first:\n"+
				"  dittodav config init\n\n"+
				"Or specify a custom config file:\n"+
				"  dittodav <command> --config /path/to/config.yaml",
				GetDefaultConfigPath())
		}
		configPath = GetDefaultConfigPath()
	} else if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("configuration file not found: %s\n\n"+
			"Please create the configuration file:\n"+
			"  dittodav config init --config %s",
			configPath, configPath)
	}

	cfg, err := Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to the specified file path in YAML.
func SaveConfig(cfg *Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// Config files may hold S3 and remote endpoint credentials.
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// setupViper configures viper with environment variables and config file settings.
func setupViper(v *viper.Viper, configPath string) {
	// Example: DITTODAV_LOGGING_LEVEL=DEBUG
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(getConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// readConfigFile reads the configuration file if it exists.
// Returns (fileFound, error) where fileFound indicates if a config file was found.
func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return false, nil
		}
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read config file: %w", err)
	}

	return true, nil
}

// configDecodeHooks returns a combined decode hook for all custom types.
func configDecodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		byteSizeDecodeHook(),
		durationDecodeHook(),
	)
}

// byteSizeDecodeHook converts strings and numbers to bytesize.ByteSize, so
// config files can use sizes like "64Ki", "32MiB" or plain numbers.
func byteSizeDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(bytesize.ByteSize(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			return bytesize.ParseByteSize(v)
		case int:
			return bytesize.ByteSize(v), nil
		case int64:
			return bytesize.ByteSize(v), nil
		case uint64:
			return bytesize.ByteSize(v), nil
		case float64:
			// YAML often deserializes numbers as float64
			return bytesize.ByteSize(v), nil
		default:
			return data, nil
		}
	}
}

// durationDecodeHook converts strings like "30s" or "5m" to time.Duration.
func durationDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			return time.ParseDuration(v)
		case int:
			// Assume nanoseconds for raw integers
			return time.Duration(v), nil
		case int64:
			return time.Duration(v), nil
		case float64:
			return time.Duration(v), nil
		default:
			return data, nil
		}
	}
}

// getConfigDir returns the configuration directory path.
//
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config, or falls back to current
// directory (.) if home directory cannot be determined.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "dittodav")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	return filepath.Join(home, ".config", "dittodav")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// DefaultConfigExists checks if a config file exists at the default location.
func DefaultConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}

// GetConfigDir returns the configuration directory path.
func GetConfigDir() string {
	return getConfigDir()
}
