// Package badger persists dead properties and entity tags in BadgerDB.
package badger

import (
	"context"
	"encoding/json"
	"fmt"

	badgerdb "github.com/dgraph-io/badger/v4"

	"github.com/marmos91/dittodav/pkg/props"
)

// Key prefix for property records: prop:{storeID}\x00{path}
const prefixProp = "prop:"

// Store implements props.Store using BadgerDB.
//
// Each node is one JSON-encoded props.Record. Read-modify-write operations
// run in a single transaction; a concurrent update of the same record makes
// the later commit fail with badger.ErrConflict.
type Store struct {
	db *badgerdb.DB
}

var _ props.Store = (*Store)(nil)

// New creates a property store on an open database. The caller owns db.
func New(db *badgerdb.DB) *Store {
	return &Store{db: db}
}

func recordKey(key props.Key) []byte {
	return []byte(prefixProp + key.StoreID + "\x00" + key.Path)
}

func getRecordTx(txn *badgerdb.Txn, key props.Key) (*props.Record, error) {
	item, err := txn.Get(recordKey(key))
	if err == badgerdb.ErrKeyNotFound {
		return &props.Record{}, nil
	}
	if err != nil {
		return nil, err
	}

	var r props.Record
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &r)
	}); err != nil {
		return nil, fmt.Errorf("failed to unmarshal property record: %w", err)
	}
	return &r, nil
}

func putRecordTx(txn *badgerdb.Txn, key props.Key, r *props.Record) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to marshal property record: %w", err)
	}
	return txn.Set(recordKey(key), data)
}

// update runs fn on the record of key inside one read-write transaction.
func (s *Store) update(ctx context.Context, key props.Key, fn func(r *props.Record)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(txn *badgerdb.Txn) error {
		r, err := getRecordTx(txn, key)
		if err != nil {
			return err
		}
		fn(r)
		return putRecordTx(txn, key, r)
	})
}

func (s *Store) view(ctx context.Context, key props.Key) (*props.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var r *props.Record
	err := s.db.View(func(txn *badgerdb.Txn) error {
		var err error
		r, err = getRecordTx(txn, key)
		return err
	})
	return r, err
}

func (s *Store) Get(ctx context.Context, key props.Key) (map[string]string, error) {
	r, err := s.view(ctx, key)
	if err != nil {
		return nil, err
	}
	if r.Properties == nil {
		return map[string]string{}, nil
	}
	return r.Properties, nil
}

func (s *Store) Set(ctx context.Context, key props.Key, name, value string) error {
	return s.update(ctx, key, func(r *props.Record) {
		if r.Properties == nil {
			r.Properties = make(map[string]string)
		}
		r.Properties[name] = value
	})
}

func (s *Store) Remove(ctx context.Context, key props.Key, name string) error {
	return s.update(ctx, key, func(r *props.Record) {
		delete(r.Properties, name)
	})
}

func (s *Store) Copy(ctx context.Context, src, dst props.Key) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(txn *badgerdb.Txn) error {
		r, err := getRecordTx(txn, src)
		if err != nil {
			return err
		}
		r.ETag = props.NewETag()
		return putRecordTx(txn, dst, r)
	})
}

func (s *Store) Move(ctx context.Context, src, dst props.Key) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(txn *badgerdb.Txn) error {
		r, err := getRecordTx(txn, src)
		if err != nil {
			return err
		}
		if err := txn.Delete(recordKey(src)); err != nil {
			return err
		}
		r.ETag = props.NewETag()
		return putRecordTx(txn, dst, r)
	})
}

func (s *Store) Delete(ctx context.Context, key props.Key) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Delete(recordKey(key))
	})
}

func (s *Store) ETag(ctx context.Context, key props.Key) (string, error) {
	r, err := s.view(ctx, key)
	if err != nil {
		return "", err
	}
	return r.ETag, nil
}

func (s *Store) RefreshETag(ctx context.Context, key props.Key) (string, error) {
	var etag string
	err := s.update(ctx, key, func(r *props.Record) {
		r.ETag = props.NewETag()
		etag = r.ETag
	})
	return etag, err
}

// Close is a no-op; the database is owned by the caller.
func (s *Store) Close() error {
	return nil
}
