// Package props stores WebDAV dead properties and entity tags.
//
// The engine treats the property store as an optional collaborator: after a
// node is copied, moved, written or deleted it asks the store to follow the
// change. Records are keyed by physical store and path, so two shares over
// the same store see the same properties.
package props

import (
	"context"

	"github.com/google/uuid"
)

// Key identifies the node a record belongs to.
type Key struct {
	StoreID string `json:"store_id"`
	Path    string `json:"path"`
}

// Record is everything stored for one node.
type Record struct {
	// Properties maps "{namespace}name" to the raw XML value.
	Properties map[string]string `json:"properties,omitempty"`

	// ETag is the quoted strong entity tag, empty until first refreshed.
	ETag string `json:"etag,omitempty"`
}

func (r *Record) clone() *Record {
	c := &Record{ETag: r.ETag}
	if len(r.Properties) > 0 {
		c.Properties = make(map[string]string, len(r.Properties))
		for k, v := range r.Properties {
			c.Properties[k] = v
		}
	}
	return c
}

// Store is the property collaborator.
//
// Implementations must be safe for concurrent use. Operations on keys that
// have no record are not errors.
type Store interface {
	// Get returns the dead properties of key.
	Get(ctx context.Context, key Key) (map[string]string, error)

	// Set stores one dead property.
	Set(ctx context.Context, key Key, name, value string) error

	// Remove deletes one dead property.
	Remove(ctx context.Context, key Key, name string) error

	// Copy replaces dst's properties with a copy of src's and gives dst a
	// fresh ETag.
	Copy(ctx context.Context, src, dst Key) error

	// Move transfers src's record to dst and gives dst a fresh ETag.
	Move(ctx context.Context, src, dst Key) error

	// Delete drops the record of key.
	Delete(ctx context.Context, key Key) error

	// ETag returns the current ETag of key, or "" when none was issued.
	ETag(ctx context.Context, key Key) (string, error)

	// RefreshETag issues and returns a new ETag for key.
	RefreshETag(ctx context.Context, key Key) (string, error)

	// Close releases resources.
	Close() error
}

// NewETag returns a fresh quoted strong entity tag.
func NewETag() string {
	return `"` + uuid.NewString() + `"`
}
