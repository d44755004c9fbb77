package store

import (
	"context"
	"io"
	"time"

	daverrors "github.com/marmos91/dittodav/pkg/errors"
)

// Node is a collection or a document inside a store.
type Node interface {
	Store() Store
	Path() string
	Name() string
	IsCollection() bool
}

// Collection is a handle to a collection node.
type Collection struct {
	store Store
	info  Info
}

// Document is a handle to a document node.
type Document struct {
	store Store
	info  Info
}

// NewNode wraps backend info in the matching handle type.
func NewNode(s Store, info Info) Node {
	if info.IsCollection {
		return &Collection{store: s, info: info}
	}
	return &Document{store: s, info: info}
}

// Root returns the root collection of s.
func Root(ctx context.Context, s Store) (*Collection, error) {
	info, err := s.Stat(ctx, "/")
	if err != nil {
		return nil, err
	}
	return &Collection{store: s, info: info}, nil
}

// ============================================================================
// Collection
// ============================================================================

func (c *Collection) Store() Store       { return c.store }
func (c *Collection) Path() string       { return c.info.Path }
func (c *Collection) Name() string       { return c.info.Name() }
func (c *Collection) IsCollection() bool { return true }
func (c *Collection) ModTime() time.Time { return c.info.ModTime }

// ChildPath returns the path of a member named name.
func (c *Collection) ChildPath(name string) string {
	return Join(c.info.Path, name)
}

// List returns the members of the collection.
func (c *Collection) List(ctx context.Context) ([]Node, error) {
	infos, err := c.store.List(ctx, c.info.Path)
	if err != nil {
		return nil, err
	}
	nodes := make([]Node, 0, len(infos))
	for _, info := range infos {
		nodes = append(nodes, NewNode(c.store, info))
	}
	return nodes, nil
}

// Child returns the member named name.
func (c *Collection) Child(ctx context.Context, name string) (Node, error) {
	info, err := c.store.Stat(ctx, c.ChildPath(name))
	if err != nil {
		return nil, err
	}
	return NewNode(c.store, info), nil
}

// CreateCollection creates a member collection.
func (c *Collection) CreateCollection(ctx context.Context, name string) (*Collection, error) {
	if !ValidName(name) {
		return nil, daverrors.NewForbiddenError(c.ChildPath(name), "invalid name")
	}
	p := c.ChildPath(name)
	if err := c.store.Mkdir(ctx, p); err != nil {
		return nil, err
	}
	info, err := c.store.Stat(ctx, p)
	if err != nil {
		return nil, err
	}
	return &Collection{store: c.store, info: info}, nil
}

// CreateDocument creates an empty member document, truncating an existing
// one.
func (c *Collection) CreateDocument(ctx context.Context, name string) (*Document, error) {
	if !ValidName(name) {
		return nil, daverrors.NewForbiddenError(c.ChildPath(name), "invalid name")
	}
	p := c.ChildPath(name)
	w, err := c.store.OpenWrite(ctx, p)
	if err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return &Document{store: c.store, info: Info{Path: p}}, nil
}

// ============================================================================
// Document
// ============================================================================

func (d *Document) Store() Store       { return d.store }
func (d *Document) Path() string       { return d.info.Path }
func (d *Document) Name() string       { return d.info.Name() }
func (d *Document) IsCollection() bool { return false }
func (d *Document) Size() int64        { return d.info.Size }
func (d *Document) ModTime() time.Time { return d.info.ModTime }

// OpenRead opens the document content.
func (d *Document) OpenRead(ctx context.Context) (io.ReadCloser, error) {
	return d.store.OpenRead(ctx, d.info.Path)
}

// OpenWrite opens the document for replacement.
func (d *Document) OpenWrite(ctx context.Context) (DocumentWriter, error) {
	return d.store.OpenWrite(ctx, d.info.Path)
}

// ============================================================================
// Node helpers
// ============================================================================

// Delete removes a document or an empty collection.
func Delete(ctx context.Context, n Node) error {
	return n.Store().Remove(ctx, n.Path())
}

// Parent returns the collection containing n. The root has no parent.
func Parent(ctx context.Context, n Node) (*Collection, error) {
	if n.Path() == "/" {
		return nil, daverrors.NewNotFoundError("/")
	}
	info, err := n.Store().Stat(ctx, Dir(n.Path()))
	if err != nil {
		return nil, err
	}
	if !info.IsCollection {
		return nil, daverrors.NewNotCollectionError(info.Path)
	}
	return &Collection{store: n.Store(), info: info}, nil
}

// Walk visits n and, for collections, every descendant depth-first with
// parents before children. Returning a non-nil error from fn stops the walk.
func Walk(ctx context.Context, n Node, fn func(Node) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := fn(n); err != nil {
		return err
	}
	c, ok := n.(*Collection)
	if !ok {
		return nil
	}
	children, err := c.List(ctx)
	if err != nil {
		return err
	}
	for _, child := range children {
		if err := Walk(ctx, child, fn); err != nil {
			return err
		}
	}
	return nil
}
