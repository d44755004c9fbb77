// Package registry maps URL path prefixes (shares) to stores.
package registry

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/marmos91/dittodav/pkg/store"
)

// Registry manages named stores and the shares that expose them.
// It provides thread-safe registration and lookup.
//
// Example usage:
//
//	reg := NewRegistry()
//	reg.RegisterStore("scratch", memory.New())
//	reg.RegisterStore("archive", s3Store)
//	reg.AddShare(ctx, &ShareConfig{Name: "/tmp", Store: "scratch"})
//	reg.AddShare(ctx, &ShareConfig{Name: "/archive", Store: "archive"})
//
//	share, rel, _ := reg.Lookup("/archive/2024/report.pdf")
//	// share.Name == "/archive", rel == "/2024/report.pdf"
type Registry struct {
	mu     sync.RWMutex
	stores map[string]store.Store
	shares map[string]*Share
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		stores: make(map[string]store.Store),
		shares: make(map[string]*Share),
	}
}

// RegisterStore adds a named store to the registry.
// Returns an error if a store with the same name already exists.
func (r *Registry) RegisterStore(name string, s store.Store) error {
	if s == nil {
		return fmt.Errorf("cannot register nil store")
	}
	if name == "" {
		return fmt.Errorf("cannot register store with empty name")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.stores[name]; exists {
		return fmt.Errorf("store %q already registered", name)
	}

	r.stores[name] = s
	return nil
}

// AddShare creates and registers a new share.
// This method:
//  1. Normalizes the share prefix and root
//  2. Validates that the share doesn't already exist
//  3. Validates that the referenced store exists
//  4. Verifies the share root is an existing collection
func (r *Registry) AddShare(ctx context.Context, config *ShareConfig) error {
	if config == nil || config.Name == "" {
		return fmt.Errorf("share name is required")
	}
	name := store.Clean(config.Name)
	root := store.Clean(config.Root)

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.shares[name]; exists {
		return fmt.Errorf("share %q already exists", name)
	}
	s, exists := r.stores[config.Store]
	if !exists {
		return fmt.Errorf("store %q not found", config.Store)
	}

	info, err := s.Stat(ctx, root)
	if err != nil {
		return fmt.Errorf("share %q root %q: %w", name, root, err)
	}
	if !info.IsCollection {
		return fmt.Errorf("share %q root %q is not a collection", name, root)
	}

	r.shares[name] = &Share{
		Name:      name,
		StoreName: config.Store,
		Root:      root,
		ReadOnly:  config.ReadOnly,
		Store:     s,
	}
	return nil
}

// RemoveShare removes a share from the registry.
// Note: This does NOT close the underlying store, as it may be used by other shares.
func (r *Registry) RemoveShare(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name = store.Clean(name)
	if _, exists := r.shares[name]; !exists {
		return fmt.Errorf("share %q not found", name)
	}
	delete(r.shares, name)
	return nil
}

// GetShare retrieves a share by name.
func (r *Registry) GetShare(name string) (*Share, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	share, exists := r.shares[store.Clean(name)]
	if !exists {
		return nil, fmt.Errorf("share %q not found", name)
	}
	return share, nil
}

// GetStore retrieves a store by name.
func (r *Registry) GetStore(name string) (store.Store, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, exists := r.stores[name]
	if !exists {
		return nil, fmt.Errorf("store %q not found", name)
	}
	return s, nil
}

// Lookup returns the share with the longest prefix matching urlPath and the
// path relative to that share. A trailing slash on urlPath is preserved in
// the relative path so the caller can still tell a collection was meant.
func (r *Registry) Lookup(urlPath string) (*Share, string, error) {
	trailing := len(urlPath) > 1 && strings.HasSuffix(urlPath, "/")
	p := store.Clean(urlPath)

	r.mu.RLock()
	defer r.mu.RUnlock()

	var best *Share
	for name, share := range r.shares {
		if !store.IsWithin(p, name) {
			continue
		}
		if best == nil || len(name) > len(best.Name) {
			best = share
		}
	}
	if best == nil {
		return nil, "", fmt.Errorf("no share serves %q", p)
	}

	rel := "/"
	if best.Name != "/" && p != best.Name {
		rel = p[len(best.Name):]
	} else if best.Name == "/" {
		rel = p
	}
	if trailing && rel != "/" {
		rel += "/"
	}
	return best, rel, nil
}

// ListShares returns all registered share names, sorted.
// The returned slice is a copy and safe to modify.
func (r *Registry) ListShares() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.shares))
	for name := range r.shares {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ListStores returns all registered store names, sorted.
func (r *Registry) ListStores() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.stores))
	for name := range r.stores {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ListSharesUsingStore returns all shares that use the specified store.
func (r *Registry) ListSharesUsingStore(storeName string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var names []string
	for name, share := range r.shares {
		if share.StoreName == storeName {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// CountShares returns the number of registered shares.
func (r *Registry) CountShares() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.shares)
}

// HealthCheck runs the health check of every store that supports one.
func (r *Registry) HealthCheck(ctx context.Context) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var errs []error
	for name, s := range r.stores {
		hc, ok := s.(store.HealthChecker)
		if !ok {
			continue
		}
		if err := hc.HealthCheck(ctx); err != nil {
			errs = append(errs, fmt.Errorf("store %q: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

// Close closes every registered store.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	for name, s := range r.stores {
		if err := s.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close store %q: %w", name, err))
		}
	}
	return errors.Join(errs...)
}
