// Package badger persists explicit WebDAV locks in BadgerDB so they survive
// a server restart.
package badger

import (
	"context"
	"encoding/json"
	"fmt"

	badgerdb "github.com/dgraph-io/badger/v4"

	"github.com/marmos91/dittodav/pkg/lock"
)

// Key prefixes for lock storage
const (
	prefixLock       = "lock:"   // Primary: lock:{token}
	prefixLockByRoot = "lkroot:" // Index: lkroot:{root}\x00{token}
)

// Store implements lock.Persister using BadgerDB.
//
// Storage Model:
//   - Primary storage: lock:{token} -> JSON(PersistedLock)
//   - Secondary index: lkroot:{root}\x00{token} -> token
//
// Thread Safety:
// All operations use BadgerDB's transaction support for atomicity.
type Store struct {
	db *badgerdb.DB
}

var _ lock.Persister = (*Store)(nil)

// New creates a lock store on an open database. The caller owns db.
func New(db *badgerdb.DB) *Store {
	return &Store{db: db}
}

// PutLock persists a lock, replacing any previous entry for its token.
func (s *Store) PutLock(ctx context.Context, lk *lock.PersistedLock) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(lk)
	if err != nil {
		return fmt.Errorf("failed to marshal lock: %w", err)
	}

	return s.db.Update(func(txn *badgerdb.Txn) error {
		if err := txn.Set([]byte(prefixLock+lk.Token), data); err != nil {
			return err
		}
		return txn.Set(rootKey(lk.Root, lk.Token), []byte(lk.Token))
	})
}

// DeleteLock removes a lock. Deleting a missing token is not an error.
func (s *Store) DeleteLock(ctx context.Context, token string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return s.db.Update(func(txn *badgerdb.Txn) error {
		lk, err := getLockTx(txn, token)
		if err == badgerdb.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}

		if err := txn.Delete([]byte(prefixLock + token)); err != nil {
			return err
		}
		return txn.Delete(rootKey(lk.Root, token))
	})
}

// ListLocks returns every persisted lock.
func (s *Store) ListLocks(ctx context.Context) ([]*lock.PersistedLock, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var locks []*lock.PersistedLock
	err := s.db.View(func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.Prefix = []byte(prefixLock)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(opts.Prefix); it.ValidForPrefix(opts.Prefix); it.Next() {
			var lk lock.PersistedLock
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &lk)
			}); err != nil {
				return fmt.Errorf("failed to unmarshal lock: %w", err)
			}
			locks = append(locks, &lk)
		}
		return nil
	})
	return locks, err
}

// ListLocksByRoot returns the tokens of locks rooted exactly at root.
func (s *Store) ListLocksByRoot(ctx context.Context, root string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var tokens []string
	err := s.db.View(func(txn *badgerdb.Txn) error {
		prefix := []byte(prefixLockByRoot + root + "\x00")
		opts := badgerdb.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			tokens = append(tokens, string(it.Item().Key()[len(prefix):]))
		}
		return nil
	})
	return tokens, err
}

func getLockTx(txn *badgerdb.Txn, token string) (*lock.PersistedLock, error) {
	item, err := txn.Get([]byte(prefixLock + token))
	if err != nil {
		return nil, err
	}

	var lk lock.PersistedLock
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &lk)
	}); err != nil {
		return nil, fmt.Errorf("failed to unmarshal lock: %w", err)
	}
	return &lk, nil
}

func rootKey(root, token string) []byte {
	return []byte(prefixLockByRoot + root + "\x00" + token)
}
