package engine

import (
	"context"

	"github.com/marmos91/dittodav/pkg/copier"
	daverrors "github.com/marmos91/dittodav/pkg/errors"
	"github.com/marmos91/dittodav/pkg/store"
)

// fastActions is used when source and destination share a physical store.
// It hands documents to the store's native copy or move and falls back to
// the generic byte copy when the store has neither.
type fastActions struct {
	*genericActions
	nativeCopy store.NativeCopier
	nativeMove store.NativeMover
}

func newFastActions(s store.Store, c *copier.Copier, move bool) *fastActions {
	a := &fastActions{genericActions: newGenericActions(s, c, move)}
	a.nativeCopy, _ = s.(store.NativeCopier)
	a.nativeMove, _ = s.(store.NativeMover)
	return a
}

func (a *fastActions) Name() string { return StrategyFast }

func (a *fastActions) CreateOrOverwriteDocument(ctx context.Context, parent *CollectionTarget, name string, src *store.Document, overwrite bool) (*DocumentTarget, error) {
	if !store.ValidName(name) {
		return nil, daverrors.NewForbiddenError(parent.Collection.ChildPath(name), "invalid name")
	}
	p := parent.Collection.ChildPath(name)

	switch {
	case a.move && a.nativeMove != nil:
		// MoveNode replaces an existing document in one step, so a failed
		// move leaves the old destination in place.
		if err := a.nativeMove.MoveNode(ctx, src.Path(), p); err != nil {
			return nil, err
		}
	case a.nativeCopy != nil:
		if err := a.nativeCopy.CopyDocument(ctx, src.Path(), p); err != nil {
			return nil, err
		}
	default:
		return a.genericActions.CreateOrOverwriteDocument(ctx, parent, name, src, overwrite)
	}
	return a.documentTarget(parent, p), nil
}

// DeleteIfMove skips documents the store already moved natively.
func (a *fastActions) DeleteIfMove(ctx context.Context, src store.Node) error {
	if !a.move {
		return nil
	}
	if !src.IsCollection() && a.nativeMove != nil {
		return nil
	}
	return store.Delete(ctx, src)
}

// moveTree moves a whole subtree onto a missing destination with one native
// call. It reports false when the store cannot do that.
func (a *fastActions) moveTree(ctx context.Context, src store.Node, dst *MissingTarget) (bool, error) {
	if !a.move || a.nativeMove == nil {
		return false, nil
	}
	if !store.ValidName(dst.Name) {
		return true, daverrors.NewForbiddenError(dst.TargetPath(), "invalid name")
	}
	return true, a.nativeMove.MoveNode(ctx, src.Path(), dst.TargetPath())
}
