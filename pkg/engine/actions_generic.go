package engine

import (
	"context"

	"github.com/marmos91/dittodav/pkg/copier"
	daverrors "github.com/marmos91/dittodav/pkg/errors"
	"github.com/marmos91/dittodav/pkg/store"
)

// genericActions reproduces nodes in any local store by recreating
// collections and streaming document bytes through the copier.
type genericActions struct {
	store  store.Store
	copier *copier.Copier
	move   bool
}

func newGenericActions(s store.Store, c *copier.Copier, move bool) *genericActions {
	return &genericActions{store: s, copier: c, move: move}
}

func (a *genericActions) Name() string    { return StrategyGeneric }
func (a *genericActions) StoreID() string { return a.store.ID() }

func (a *genericActions) Resolve(ctx context.Context, p string) (Target, error) {
	sel, err := store.Resolve(ctx, a.store, p)
	if err != nil {
		return nil, err
	}

	switch s := sel.(type) {
	case store.FoundDocument:
		parent, err := a.parentOf(ctx, s.Document)
		if err != nil {
			return nil, err
		}
		return &DocumentTarget{Path: s.Document.Path(), Parent: parent, Document: s.Document}, nil
	case store.FoundCollection:
		parent, err := a.parentOf(ctx, s.Collection)
		if err != nil {
			return nil, err
		}
		return &CollectionTarget{Path: s.Collection.Path(), Parent: parent, Collection: s.Collection}, nil
	default:
		parent, name, err := store.DirectChild(sel)
		if err != nil {
			return nil, err
		}
		pt, err := a.parentOf(ctx, parent)
		if err != nil {
			return nil, err
		}
		return &MissingTarget{
			Parent: &CollectionTarget{Path: parent.Path(), Parent: pt, Collection: parent},
			Name:   name,
		}, nil
	}
}

// parentOf returns the target of n's parent, nil for the store root.
func (a *genericActions) parentOf(ctx context.Context, n store.Node) (*CollectionTarget, error) {
	if n.Path() == "/" {
		return nil, nil
	}
	c, err := store.Parent(ctx, n)
	if err != nil {
		return nil, err
	}
	return &CollectionTarget{Path: c.Path(), Collection: c}, nil
}

func (a *genericActions) Child(ctx context.Context, parent *CollectionTarget, name string) (Target, error) {
	n, err := parent.Collection.Child(ctx, name)
	if daverrors.IsNotFoundError(err) {
		return &MissingTarget{Parent: parent, Name: name}, nil
	}
	if err != nil {
		return nil, err
	}

	switch n := n.(type) {
	case *store.Collection:
		return &CollectionTarget{Path: n.Path(), Parent: parent, Collection: n}, nil
	case *store.Document:
		return &DocumentTarget{Path: n.Path(), Parent: parent, Document: n}, nil
	default:
		return nil, daverrors.New(daverrors.ErrIOError, n.Path(), "unknown node type")
	}
}

func (a *genericActions) CreateCollection(ctx context.Context, parent *CollectionTarget, name string) (*CollectionTarget, error) {
	c, err := parent.Collection.CreateCollection(ctx, name)
	if err != nil {
		return nil, err
	}
	return &CollectionTarget{Path: c.Path(), Parent: parent, Collection: c}, nil
}

func (a *genericActions) CreateOrOverwriteDocument(ctx context.Context, parent *CollectionTarget, name string, src *store.Document, _ bool) (*DocumentTarget, error) {
	if !store.ValidName(name) {
		return nil, daverrors.NewForbiddenError(parent.Collection.ChildPath(name), "invalid name")
	}
	p := parent.Collection.ChildPath(name)

	r, err := src.OpenRead(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = r.Close() }()

	w, err := a.store.OpenWrite(ctx, p)
	if err != nil {
		return nil, err
	}
	// The source may change while it is read, so its length is not enforced.
	if _, err := a.copier.Copy(ctx, w, r, copier.UnknownLength); err != nil {
		_ = w.Abort()
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return a.documentTarget(parent, p), nil
}

func (a *genericActions) documentTarget(parent *CollectionTarget, p string) *DocumentTarget {
	doc := store.NewNode(a.store, store.Info{Path: p}).(*store.Document)
	return &DocumentTarget{Path: p, Parent: parent, Document: doc}
}

func (a *genericActions) DeleteTarget(ctx context.Context, t Target) error {
	switch t := t.(type) {
	case *MissingTarget:
		return nil
	case *DocumentTarget:
		return store.Delete(ctx, t.Document)
	case *CollectionTarget:
		return removeAll(ctx, t.Collection)
	default:
		return daverrors.New(daverrors.ErrIOError, t.TargetPath(), "unknown target type")
	}
}

func (a *genericActions) DeleteIfMove(ctx context.Context, src store.Node) error {
	if !a.move {
		return nil
	}
	return store.Delete(ctx, src)
}

// removeAll deletes n and its subtree bottom-up and returns the first error.
func removeAll(ctx context.Context, n store.Node) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if c, ok := n.(*store.Collection); ok {
		children, err := c.List(ctx)
		if err != nil {
			return err
		}
		for _, child := range children {
			if err := removeAll(ctx, child); err != nil {
				return err
			}
		}
	}
	return store.Delete(ctx, n)
}
