package postgres

import (
	"errors"
	"time"
)

// Config configures the PostgreSQL lock store.
type Config struct {
	// DSN is a libpq connection string or postgres:// URL.
	DSN string

	// MaxConns bounds the connection pool.
	// Default: 4
	MaxConns int32

	// MinConns is the number of idle connections kept open.
	MinConns int32

	// ConnectTimeout bounds pool creation and the initial ping.
	// Default: 10s
	ConnectTimeout time.Duration

	// AutoMigrate applies pending schema migrations on startup.
	AutoMigrate bool
}

// ApplyDefaults fills in zero values.
func (c *Config) ApplyDefaults() {
	if c.MaxConns == 0 {
		c.MaxConns = 4
	}
	if c.MinConns > c.MaxConns {
		c.MinConns = c.MaxConns
	}
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = 10 * time.Second
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.DSN == "" {
		return errors.New("postgres lock store: DSN is required")
	}
	if c.MaxConns < 1 {
		return errors.New("postgres lock store: max conns must be positive")
	}
	return nil
}
