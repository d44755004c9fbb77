package props

import (
	"context"
	"sync"
)

// MemoryStore keeps records in a map. Contents are lost on restart.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[Key]*Record
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory property store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[Key]*Record)}
}

func (s *MemoryStore) Get(_ context.Context, key Key) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.records[key]
	if !ok {
		return map[string]string{}, nil
	}
	return r.clone().propertiesOrEmpty(), nil
}

func (s *MemoryStore) Set(_ context.Context, key Key, name, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := s.recordLocked(key)
	if r.Properties == nil {
		r.Properties = make(map[string]string)
	}
	r.Properties[name] = value
	return nil
}

func (s *MemoryStore) Remove(_ context.Context, key Key, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r, ok := s.records[key]; ok {
		delete(r.Properties, name)
	}
	return nil
}

func (s *MemoryStore) Copy(_ context.Context, src, dst Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := &Record{}
	if r, ok := s.records[src]; ok {
		next = r.clone()
	}
	next.ETag = NewETag()
	s.records[dst] = next
	return nil
}

func (s *MemoryStore) Move(_ context.Context, src, dst Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, ok := s.records[src]
	if !ok {
		next = &Record{}
	}
	delete(s.records, src)
	next.ETag = NewETag()
	s.records[dst] = next
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, key)
	return nil
}

func (s *MemoryStore) ETag(_ context.Context, key Key) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if r, ok := s.records[key]; ok {
		return r.ETag, nil
	}
	return "", nil
}

func (s *MemoryStore) RefreshETag(_ context.Context, key Key) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := s.recordLocked(key)
	r.ETag = NewETag()
	return r.ETag, nil
}

func (s *MemoryStore) Close() error {
	return nil
}

func (s *MemoryStore) recordLocked(key Key) *Record {
	r, ok := s.records[key]
	if !ok {
		r = &Record{}
		s.records[key] = r
	}
	return r
}

func (r *Record) propertiesOrEmpty() map[string]string {
	if r.Properties == nil {
		return map[string]string{}
	}
	return r.Properties
}
