package registry

import (
	"strings"

	"github.com/marmos91/dittodav/pkg/store"
)

// Share binds a URL path prefix to a named store.
//
// Multiple shares can reference the same store instance; the engine treats
// them as one physical store (same store.ID) and can use native copy and
// move between them.
type Share struct {
	Name      string      // URL prefix, e.g. "/docs" ("/" for a catch-all share)
	StoreName string      // Name of the backing store
	Root      string      // Path inside the store the share is rooted at
	ReadOnly  bool        // Reject mutations with 403
	Store     store.Store // Resolved backing store
}

// ShareConfig contains all configuration needed to create a share.
type ShareConfig struct {
	Name     string
	Store    string
	Root     string // Optional; defaults to the store root
	ReadOnly bool
}

// StorePath maps a path relative to the share prefix to a store path. A
// trailing slash is kept.
func (s *Share) StorePath(rel string) string {
	p := store.Join(s.Root, store.Clean(rel))
	if p != "/" && strings.HasSuffix(rel, "/") {
		p += "/"
	}
	return p
}

// SharePath maps a store path back to the share-relative form. The second
// result is false when p lies outside the share root.
func (s *Share) SharePath(p string) (string, bool) {
	p = store.Clean(p)
	if !store.IsWithin(p, s.Root) {
		return "", false
	}
	if s.Root == "/" {
		return p, true
	}
	return store.Clean(p[len(s.Root):]), true
}
