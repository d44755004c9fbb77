// Package store defines the hierarchical store abstraction the mutation
// engine works against.
//
// Backends (memory, fs, s3) implement the path-oriented Store interface.
// The engine never calls backends directly: it resolves paths into
// Selection values and works with Collection and Document handles.
//
// Paths are slash-separated and rooted at the store root ("/").
package store

import (
	"context"
	"io"
	"time"
)

// Info describes one node as reported by a backend.
type Info struct {
	// Path is the cleaned, rooted path of the node ("/" for the root).
	Path string

	// IsCollection is true for collections, false for documents.
	IsCollection bool

	// Size is the document length in bytes. Zero for collections.
	Size int64

	// ModTime is the last modification time, if the backend tracks it.
	ModTime time.Time
}

// Name returns the last path segment, or "" for the root.
func (i Info) Name() string {
	return Base(i.Path)
}

// DocumentWriter receives document content. Close commits the content so
// readers only ever see a complete document; Abort discards it and leaves any
// previous content in place.
type DocumentWriter interface {
	io.Writer
	Close() error
	Abort() error
}

// Store is the capability set a backend exposes.
//
// Errors are *errors.DavError values: NotFound for missing nodes, Conflict
// when a parent collection is missing, AlreadyExists, NotCollection,
// IsCollection and NotEmpty for type and state mismatches.
type Store interface {
	// ID identifies the physical store. Two handles with the same ID share
	// storage, which is what lets the engine use native copy and move.
	ID() string

	// Type returns the backend type name (memory, filesystem, s3).
	Type() string

	// Stat returns the node at p.
	Stat(ctx context.Context, p string) (Info, error)

	// List returns the direct members of the collection at p, sorted by name.
	List(ctx context.Context, p string) ([]Info, error)

	// Mkdir creates a collection. The parent must exist.
	Mkdir(ctx context.Context, p string) error

	// OpenRead opens a document for reading.
	OpenRead(ctx context.Context, p string) (io.ReadCloser, error)

	// OpenWrite creates or truncates a document. The parent must exist.
	OpenWrite(ctx context.Context, p string) (DocumentWriter, error)

	// Remove deletes a document or an empty collection.
	Remove(ctx context.Context, p string) error

	// Close releases backend resources.
	Close() error
}

// NativeCopier is implemented by stores that can copy a document without
// streaming its bytes through the server.
type NativeCopier interface {
	CopyDocument(ctx context.Context, src, dst string) error
}

// NativeMover is implemented by stores that can move a node in place. The
// destination's parent must exist. A document moved onto an existing
// document replaces it in one step; any other existing destination is
// AlreadyExists.
type NativeMover interface {
	MoveNode(ctx context.Context, src, dst string) error
}

// HealthChecker is implemented by stores that can verify their backend.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}
