package sqldb

import (
	"fmt"
)

// Dialect selects the SQL backend.
type Dialect string

const (
	// DialectSQLite stores records in a local SQLite file (single node).
	DialectSQLite Dialect = "sqlite"

	// DialectPostgres stores records in PostgreSQL, shared by every server
	// pointing at the same database.
	DialectPostgres Dialect = "postgres"
)

// Config configures the SQL property store.
type Config struct {
	Dialect Dialect

	// Path is the SQLite database file. Used with DialectSQLite.
	Path string

	// DSN is the PostgreSQL connection string. Used with DialectPostgres.
	DSN string

	// MaxOpenConns and MaxIdleConns size the PostgreSQL pool.
	// Defaults: 10 and 2
	MaxOpenConns int
	MaxIdleConns int
}

// ApplyDefaults fills in zero values.
func (c *Config) ApplyDefaults() {
	if c.Dialect == "" {
		c.Dialect = DialectSQLite
	}
	if c.Dialect == DialectPostgres {
		if c.MaxOpenConns == 0 {
			c.MaxOpenConns = 10
		}
		if c.MaxIdleConns == 0 {
			c.MaxIdleConns = 2
		}
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	switch c.Dialect {
	case DialectSQLite:
		if c.Path == "" {
			return fmt.Errorf("sqlite path is required")
		}
	case DialectPostgres:
		if c.DSN == "" {
			return fmt.Errorf("postgres DSN is required")
		}
	default:
		return fmt.Errorf("unsupported property store dialect: %s", c.Dialect)
	}
	return nil
}
