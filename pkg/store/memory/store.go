// Package memory provides an in-memory store, used for tests and scratch
// shares.
package memory

import (
	"bytes"
	"context"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	daverrors "github.com/marmos91/dittodav/pkg/errors"
	"github.com/marmos91/dittodav/pkg/store"
)

type entry struct {
	isCollection bool
	data         []byte
	modTime      time.Time
}

// Store is an in-memory implementation of store.Store.
type Store struct {
	id      string
	mu      sync.RWMutex
	entries map[string]*entry
	closed  bool
}

var (
	_ store.Store        = (*Store)(nil)
	_ store.NativeCopier = (*Store)(nil)
	_ store.NativeMover  = (*Store)(nil)
)

// New creates an empty in-memory store with a root collection.
func New() *Store {
	return &Store{
		id: "memory:" + uuid.NewString(),
		entries: map[string]*entry{
			"/": {isCollection: true, modTime: time.Now()},
		},
	}
}

func (s *Store) ID() string   { return s.id }
func (s *Store) Type() string { return "memory" }

func (s *Store) info(p string, e *entry) store.Info {
	return store.Info{
		Path:         p,
		IsCollection: e.isCollection,
		Size:         int64(len(e.data)),
		ModTime:      e.modTime,
	}
}

// Stat returns the node at p.
func (s *Store) Stat(ctx context.Context, p string) (store.Info, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return store.Info{}, daverrors.NewStoreClosedError()
	}
	p = store.Clean(p)
	e, ok := s.entries[p]
	if !ok {
		return store.Info{}, daverrors.NewNotFoundError(p)
	}
	return s.info(p, e), nil
}

// List returns the direct members of the collection at p.
func (s *Store) List(ctx context.Context, p string) ([]store.Info, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, daverrors.NewStoreClosedError()
	}
	p = store.Clean(p)
	e, ok := s.entries[p]
	if !ok {
		return nil, daverrors.NewNotFoundError(p)
	}
	if !e.isCollection {
		return nil, daverrors.NewNotCollectionError(p)
	}

	var infos []store.Info
	for key, child := range s.entries {
		if key != "/" && store.Dir(key) == p {
			infos = append(infos, s.info(key, child))
		}
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Path < infos[j].Path })
	return infos, nil
}

// checkParent must be called with the lock held.
func (s *Store) checkParent(p string) error {
	parent, ok := s.entries[store.Dir(p)]
	if !ok {
		return daverrors.NewConflictError(p, "parent collection does not exist")
	}
	if !parent.isCollection {
		return daverrors.NewConflictError(p, "parent is not a collection")
	}
	return nil
}

// Mkdir creates a collection.
func (s *Store) Mkdir(ctx context.Context, p string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return daverrors.NewStoreClosedError()
	}
	p = store.Clean(p)
	if _, ok := s.entries[p]; ok {
		return daverrors.NewAlreadyExistsError(p)
	}
	if err := s.checkParent(p); err != nil {
		return err
	}
	s.entries[p] = &entry{isCollection: true, modTime: time.Now()}
	return nil
}

// OpenRead returns a reader over a copy of the document content.
func (s *Store) OpenRead(ctx context.Context, p string) (io.ReadCloser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, daverrors.NewStoreClosedError()
	}
	p = store.Clean(p)
	e, ok := s.entries[p]
	if !ok {
		return nil, daverrors.NewNotFoundError(p)
	}
	if e.isCollection {
		return nil, daverrors.NewIsCollectionError(p)
	}
	data := make([]byte, len(e.data))
	copy(data, e.data)
	return io.NopCloser(bytes.NewReader(data)), nil
}

// OpenWrite returns a writer that replaces the document on Close.
func (s *Store) OpenWrite(ctx context.Context, p string) (store.DocumentWriter, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, daverrors.NewStoreClosedError()
	}
	p = store.Clean(p)
	if e, ok := s.entries[p]; ok && e.isCollection {
		return nil, daverrors.NewIsCollectionError(p)
	}
	if err := s.checkParent(p); err != nil {
		return nil, err
	}
	return &writer{store: s, path: p}, nil
}

// writer buffers content and commits it atomically on Close.
type writer struct {
	store *Store
	path  string
	buf   bytes.Buffer
	done  bool
}

func (w *writer) Write(p []byte) (int, error) {
	if w.done {
		return 0, io.ErrClosedPipe
	}
	return w.buf.Write(p)
}

func (w *writer) Close() error {
	if w.done {
		return nil
	}
	w.done = true

	s := w.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return daverrors.NewStoreClosedError()
	}
	if e, ok := s.entries[w.path]; ok && e.isCollection {
		return daverrors.NewIsCollectionError(w.path)
	}
	if err := s.checkParent(w.path); err != nil {
		return err
	}
	s.entries[w.path] = &entry{data: w.buf.Bytes(), modTime: time.Now()}
	return nil
}

func (w *writer) Abort() error {
	w.done = true
	w.buf.Reset()
	return nil
}

// Remove deletes a document or an empty collection.
func (s *Store) Remove(ctx context.Context, p string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return daverrors.NewStoreClosedError()
	}
	p = store.Clean(p)
	if p == "/" {
		return daverrors.NewForbiddenError(p, "cannot remove the root collection")
	}
	e, ok := s.entries[p]
	if !ok {
		return daverrors.NewNotFoundError(p)
	}
	if e.isCollection {
		for key := range s.entries {
			if key != p && store.IsWithin(key, p) {
				return daverrors.NewNotEmptyError(p)
			}
		}
	}
	delete(s.entries, p)
	return nil
}

// CopyDocument duplicates a document without streaming.
func (s *Store) CopyDocument(ctx context.Context, src, dst string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return daverrors.NewStoreClosedError()
	}
	src, dst = store.Clean(src), store.Clean(dst)
	e, ok := s.entries[src]
	if !ok {
		return daverrors.NewNotFoundError(src)
	}
	if e.isCollection {
		return daverrors.NewIsCollectionError(src)
	}
	if d, ok := s.entries[dst]; ok && d.isCollection {
		return daverrors.NewIsCollectionError(dst)
	}
	if err := s.checkParent(dst); err != nil {
		return err
	}
	data := make([]byte, len(e.data))
	copy(data, e.data)
	s.entries[dst] = &entry{data: data, modTime: time.Now()}
	return nil
}

// MoveNode re-keys a node and its whole subtree.
func (s *Store) MoveNode(ctx context.Context, src, dst string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return daverrors.NewStoreClosedError()
	}
	src, dst = store.Clean(src), store.Clean(dst)
	if src == "/" || store.IsWithin(dst, src) {
		return daverrors.NewForbiddenError(dst, "cannot move a collection into itself")
	}
	srcEntry, ok := s.entries[src]
	if !ok {
		return daverrors.NewNotFoundError(src)
	}
	if existing, ok := s.entries[dst]; ok && (existing.isCollection || srcEntry.isCollection) {
		return daverrors.NewAlreadyExistsError(dst)
	}
	if err := s.checkParent(dst); err != nil {
		return err
	}

	moved := make(map[string]*entry)
	for key, e := range s.entries {
		if store.IsWithin(key, src) {
			moved[dst+strings.TrimPrefix(key, src)] = e
			delete(s.entries, key)
		}
	}
	for key, e := range moved {
		s.entries[key] = e
	}
	return nil
}

// Close marks the store as closed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
