//go:build integration

package postgres

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/marmos91/dittodav/pkg/lock"
)

// sharedDSN points at the database shared by every test in the package.
var sharedDSN string

func TestMain(m *testing.M) {
	if dsn := os.Getenv("POSTGRES_DSN"); dsn != "" {
		sharedDSN = dsn
		os.Exit(m.Run())
	}

	ctx := context.Background()
	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("dittodav_test"),
		tcpostgres.WithUsername("dittodav_test"),
		tcpostgres.WithPassword("dittodav_test"),
		testcontainers.WithWaitStrategyAndDeadline(2*time.Minute,
			// PostgreSQL logs readiness once during bootstrap and once when it
			// actually accepts connections.
			wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
			wait.ForListeningPort("5432/tcp"),
		),
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start postgres container: %v\n", err)
		os.Exit(1)
	}

	sharedDSN, err = container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = container.Terminate(ctx)
		fmt.Fprintf(os.Stderr, "failed to get connection string: %v\n", err)
		os.Exit(1)
	}

	code := m.Run()
	_ = container.Terminate(ctx)
	os.Exit(code)
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()

	s, err := New(ctx, Config{DSN: sharedDSN, AutoMigrate: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	_, err = s.pool.Exec(ctx, `TRUNCATE dav_locks`)
	require.NoError(t, err)
	return s
}

// ============================================================================
// Persister
// ============================================================================

func TestStore(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	created := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	expires := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	a := &lock.PersistedLock{Token: "opaquelocktoken:a", Path: "/docs", Root: "/docs", Deep: true, Owner: "<D:href>alice</D:href>", ExpiresAt: expires, CreatedAt: created, TimeoutNs: int64(time.Hour)}
	b := &lock.PersistedLock{Token: "opaquelocktoken:b", Path: "/docs", Root: "/docs", Scope: int(lock.ScopeShared), CreatedAt: created.Add(time.Second)}
	c := &lock.PersistedLock{Token: "opaquelocktoken:c", Path: "/other", Root: "/other", CreatedAt: created.Add(2 * time.Second)}

	for _, lk := range []*lock.PersistedLock{a, b, c} {
		require.NoError(t, s.PutLock(ctx, lk))
	}

	t.Run("ListLocks", func(t *testing.T) {
		locks, err := s.ListLocks(ctx)
		require.NoError(t, err)
		require.Len(t, locks, 3)

		assert.Equal(t, a.Token, locks[0].Token)
		assert.Equal(t, a.Owner, locks[0].Owner)
		assert.True(t, locks[0].Deep)
		assert.Equal(t, a.TimeoutNs, locks[0].TimeoutNs)
		assert.True(t, expires.Equal(locks[0].ExpiresAt))
		assert.True(t, created.Equal(locks[0].CreatedAt))

		assert.Equal(t, int(lock.ScopeShared), locks[1].Scope)
		assert.True(t, locks[1].ExpiresAt.IsZero(), "infinite lock has no expiry")
	})

	t.Run("PutLockOverwrites", func(t *testing.T) {
		refreshed := *a
		refreshed.ExpiresAt = expires.Add(time.Hour)
		require.NoError(t, s.PutLock(ctx, &refreshed))

		locks, err := s.ListLocks(ctx)
		require.NoError(t, err)
		require.Len(t, locks, 3)
		assert.True(t, refreshed.ExpiresAt.Equal(locks[0].ExpiresAt))
	})

	t.Run("ListLocksByRoot", func(t *testing.T) {
		tokens, err := s.ListLocksByRoot(ctx, "/docs")
		require.NoError(t, err)
		assert.Equal(t, []string{a.Token, b.Token}, tokens)

		tokens, err = s.ListLocksByRoot(ctx, "/doc")
		require.NoError(t, err)
		assert.Empty(t, tokens)
	})

	t.Run("DeleteLock", func(t *testing.T) {
		require.NoError(t, s.DeleteLock(ctx, a.Token))
		require.NoError(t, s.DeleteLock(ctx, a.Token))
		require.NoError(t, s.DeleteLock(ctx, "opaquelocktoken:never"))

		locks, err := s.ListLocks(ctx)
		require.NoError(t, err)
		assert.Len(t, locks, 2)
	})

	t.Run("HealthCheck", func(t *testing.T) {
		assert.NoError(t, s.HealthCheck(ctx))
	})
}

func TestMigrationsAreIdempotent(t *testing.T) {
	ctx := context.Background()
	newTestStore(t)

	s, err := New(ctx, Config{DSN: sharedDSN, AutoMigrate: true})
	require.NoError(t, err)
	require.NoError(t, s.Close())
}

func TestManagerRestoresFromPostgres(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	first := lock.NewManager(lock.DefaultConfig(), lock.WithPersister(s))
	l, err := first.Lock(ctx, lock.Request{Path: "/docs", Deep: true, Owner: "alice"})
	require.NoError(t, err)

	second := lock.NewManager(lock.DefaultConfig(), lock.WithPersister(s))
	n, err := second.Restore(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	restored, ok := second.Get(l.Token)
	require.True(t, ok)
	assert.Equal(t, "/docs", restored.Root)
	assert.Equal(t, lock.Released, second.Release(ctx, "/docs", l.Token))

	locks, err := s.ListLocks(ctx)
	require.NoError(t, err)
	assert.Empty(t, locks)
}
