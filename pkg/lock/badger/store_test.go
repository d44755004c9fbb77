package badger

import (
	"context"
	"testing"
	"time"

	badgerdb "github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/dittodav/pkg/lock"
)

func openInMemory(t *testing.T) *badgerdb.DB {
	t.Helper()
	db, err := badgerdb.Open(badgerdb.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestStore(t *testing.T) {
	ctx := context.Background()
	s := New(openInMemory(t))

	expires := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	a := &lock.PersistedLock{Token: "opaquelocktoken:a", Path: "/docs", Root: "/docs", Deep: true, Owner: "alice", ExpiresAt: expires}
	b := &lock.PersistedLock{Token: "opaquelocktoken:b", Path: "/docs", Root: "/docs", Scope: int(lock.ScopeShared)}
	c := &lock.PersistedLock{Token: "opaquelocktoken:c", Path: "/other", Root: "/other"}

	for _, lk := range []*lock.PersistedLock{a, b, c} {
		require.NoError(t, s.PutLock(ctx, lk))
	}

	t.Run("ListLocks", func(t *testing.T) {
		locks, err := s.ListLocks(ctx)
		require.NoError(t, err)
		require.Len(t, locks, 3)

		byToken := make(map[string]*lock.PersistedLock)
		for _, lk := range locks {
			byToken[lk.Token] = lk
		}
		assert.Equal(t, "alice", byToken[a.Token].Owner)
		assert.True(t, byToken[a.Token].Deep)
		assert.True(t, expires.Equal(byToken[a.Token].ExpiresAt))
	})

	t.Run("ListLocksByRoot", func(t *testing.T) {
		tokens, err := s.ListLocksByRoot(ctx, "/docs")
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{a.Token, b.Token}, tokens)

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

		tokens, err := s.ListLocksByRoot(ctx, "/docs")
		require.NoError(t, err)
		assert.Equal(t, []string{b.Token}, tokens)
	})

	t.Run("CancelledContext", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		assert.Error(t, s.PutLock(cctx, a))
		_, err := s.ListLocks(cctx)
		assert.Error(t, err)
	})
}

func TestManagerRestoresFromBadger(t *testing.T) {
	ctx := context.Background()
	db := openInMemory(t)

	first := lock.NewManager(lock.DefaultConfig(), lock.WithPersister(New(db)))
	l, err := first.Lock(ctx, lock.Request{Path: "/docs", Deep: true, Owner: "alice"})
	require.NoError(t, err)

	second := lock.NewManager(lock.DefaultConfig(), lock.WithPersister(New(db)))
	n, err := second.Restore(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	restored, ok := second.Get(l.Token)
	require.True(t, ok)
	assert.Equal(t, "/docs", restored.Root)
	assert.Equal(t, lock.Released, second.Release(ctx, "/docs", l.Token))

	locks, err := New(db).ListLocks(ctx)
	require.NoError(t, err)
	assert.Empty(t, locks)
}
