package engine

import (
	"context"
	"net/url"

	"github.com/marmos91/dittodav/pkg/store"
)

// Target is one destination node during a copy or move. It is one of
// *CollectionTarget, *DocumentTarget or *MissingTarget.
type Target interface {
	// TargetPath is the path of the node in the strategy's namespace.
	TargetPath() string
	isTarget()
}

// CollectionTarget is an existing destination collection.
type CollectionTarget struct {
	Path string

	// Parent is the containing collection, nil for the store root.
	Parent *CollectionTarget

	// Collection is the local handle, nil for remote targets.
	Collection *store.Collection
}

// DocumentTarget is an existing destination document.
type DocumentTarget struct {
	Path   string
	Parent *CollectionTarget

	// Document is the local handle, nil for remote targets.
	Document *store.Document
}

// MissingTarget is a destination node that does not exist yet. Parent is
// the collection it would be created in.
type MissingTarget struct {
	Parent *CollectionTarget
	Name   string
}

func (*CollectionTarget) isTarget() {}
func (*DocumentTarget) isTarget()   {}
func (*MissingTarget) isTarget()    {}

func (t *CollectionTarget) TargetPath() string { return t.Path }
func (t *DocumentTarget) TargetPath() string   { return t.Path }
func (t *MissingTarget) TargetPath() string    { return store.Join(t.Parent.Path, t.Name) }

// TargetActions is the destination side of a copy or move.
//
// Implementations are created per request and know whether the request is
// a move, which is what DeleteIfMove acts on.
type TargetActions interface {
	// Name identifies the strategy in logs and metrics.
	Name() string

	// StoreID is the physical store written to, or "" when the destination
	// is not a local store.
	StoreID() string

	// Resolve returns the target at p. A path with more than one missing
	// segment is a Conflict.
	Resolve(ctx context.Context, p string) (Target, error)

	// Child returns the member name of parent.
	Child(ctx context.Context, parent *CollectionTarget, name string) (Target, error)

	// CreateCollection creates the member collection name in parent.
	CreateCollection(ctx context.Context, parent *CollectionTarget, name string) (*CollectionTarget, error)

	// CreateOrOverwriteDocument writes src as the member document name of
	// parent. overwrite is true when a document already exists there.
	CreateOrOverwriteDocument(ctx context.Context, parent *CollectionTarget, name string, src *store.Document, overwrite bool) (*DocumentTarget, error)

	// DeleteTarget removes a destination node and, for collections, its
	// whole subtree.
	DeleteTarget(ctx context.Context, t Target) error

	// DeleteIfMove removes a source node after it was reproduced at the
	// destination. It does nothing for copies, and for nodes the strategy
	// already moved natively.
	DeleteIfMove(ctx context.Context, src store.Node) error
}

// RemoteActionsFactory creates TargetActions for destinations on other
// servers. Returning nil, nil declines the destination, in which case the
// engine falls back to the generic strategy on the local share matching the
// destination path.
type RemoteActionsFactory interface {
	NewActions(ctx context.Context, dest *url.URL, move bool) (TargetActions, error)
}
