// Package postgres persists explicit WebDAV locks in PostgreSQL, so several
// servers can share one lock table across restarts.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/marmos91/dittodav/internal/logger"
	"github.com/marmos91/dittodav/pkg/lock"
)

// Store implements lock.Persister on a pgx connection pool.
//
// Storage Model:
//   - dav_locks: one row per token, indexed by root
//   - expires_at is NULL for locks with an infinite timeout
type Store struct {
	pool *pgxpool.Pool
}

var _ lock.Persister = (*Store)(nil)

// New connects to PostgreSQL and, when cfg.AutoMigrate is set, applies the
// schema.
func New(ctx context.Context, cfg Config) (*Store, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}
	poolConfig.MaxConns = cfg.MaxConns
	poolConfig.MinConns = cfg.MinConns

	connectCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(connectCtx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(connectCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping PostgreSQL: %w", err)
	}

	if cfg.AutoMigrate {
		if err := runMigrations(connectCtx, cfg.DSN); err != nil {
			pool.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	logger.Info("PostgreSQL lock store ready",
		"host", poolConfig.ConnConfig.Host,
		"database", poolConfig.ConnConfig.Database,
		"max_conns", cfg.MaxConns,
	)
	return &Store{pool: pool}, nil
}

// PutLock persists a lock, replacing any previous row for its token.
func (s *Store) PutLock(ctx context.Context, lk *lock.PersistedLock) error {
	query := `
		INSERT INTO dav_locks (token, path, root, deep, owner, principal,
		                       scope, timeout_ns, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (token) DO UPDATE SET
			path = EXCLUDED.path,
			root = EXCLUDED.root,
			deep = EXCLUDED.deep,
			owner = EXCLUDED.owner,
			principal = EXCLUDED.principal,
			scope = EXCLUDED.scope,
			timeout_ns = EXCLUDED.timeout_ns,
			expires_at = EXCLUDED.expires_at,
			created_at = EXCLUDED.created_at
	`

	_, err := s.pool.Exec(ctx, query,
		lk.Token,
		lk.Path,
		lk.Root,
		lk.Deep,
		lk.Owner,
		lk.Principal,
		lk.Scope,
		lk.TimeoutNs,
		nullTime(lk.ExpiresAt),
		lk.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to persist lock %s: %w", lk.Token, err)
	}
	return nil
}

// DeleteLock removes a lock. Deleting a missing token is not an error.
func (s *Store) DeleteLock(ctx context.Context, token string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM dav_locks WHERE token = $1`, token); err != nil {
		return fmt.Errorf("failed to delete lock %s: %w", token, err)
	}
	return nil
}

// ListLocks returns every persisted lock.
func (s *Store) ListLocks(ctx context.Context) ([]*lock.PersistedLock, error) {
	query := `
		SELECT token, path, root, deep, owner, principal,
		       scope, timeout_ns, expires_at, created_at
		FROM dav_locks
		ORDER BY created_at, token
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list locks: %w", err)
	}

	locks, err := pgx.CollectRows(rows, scanLock)
	if err != nil {
		return nil, fmt.Errorf("failed to scan locks: %w", err)
	}
	return locks, nil
}

// ListLocksByRoot returns the tokens of locks rooted exactly at root.
func (s *Store) ListLocksByRoot(ctx context.Context, root string) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT token FROM dav_locks WHERE root = $1 ORDER BY token`, root)
	if err != nil {
		return nil, fmt.Errorf("failed to list locks under %s: %w", root, err)
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

// HealthCheck pings the database.
func (s *Store) HealthCheck(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close closes the connection pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func scanLock(row pgx.CollectableRow) (*lock.PersistedLock, error) {
	var (
		lk        lock.PersistedLock
		scope     int16
		expiresAt *time.Time
	)
	err := row.Scan(
		&lk.Token,
		&lk.Path,
		&lk.Root,
		&lk.Deep,
		&lk.Owner,
		&lk.Principal,
		&scope,
		&lk.TimeoutNs,
		&expiresAt,
		&lk.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	lk.Scope = int(scope)
	if expiresAt != nil {
		lk.ExpiresAt = *expiresAt
	}
	return &lk, nil
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
