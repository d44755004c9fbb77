package engine

import (
	"context"
	"net/http"

	"github.com/marmos91/dittodav/internal/telemetry"
	daverrors "github.com/marmos91/dittodav/pkg/errors"
	"github.com/marmos91/dittodav/pkg/store"
)

// Mkcol creates a collection. An existing node is 403 and a missing parent
// collection is 409.
func (e *Engine) Mkcol(ctx context.Context, req MkcolRequest) (res Result, err error) {
	ctx, done := e.begin(ctx, telemetry.SpanMkcol, "MKCOL", req.Path)
	defer done(&res, &err)

	enter(ctx, stateResolveDestination, req.Path)
	share, p, err := e.lookup(req.Path)
	if err != nil {
		return res, err
	}
	if share.ReadOnly {
		return res, daverrors.NewForbiddenError(req.Path, "share is read-only")
	}
	sel, err := store.Resolve(ctx, share.Store, p)
	if err != nil {
		return res, err
	}
	parent, name, err := store.DirectChild(sel)
	if err != nil {
		return res, err
	}

	if err := e.checkIfTokens(req.Path, req.IfTokens); err != nil {
		return res, err
	}
	grant, err := e.acquire(ctx, newOwner(req.Owner), req.IfTokens, store.Clean(req.Path), false)
	if err != nil {
		return res, err
	}
	defer grant.Release()

	enter(ctx, stateExecute, req.Path)
	c, err := parent.CreateCollection(ctx, name)
	if err != nil {
		return res, err
	}
	e.deleteProperties(ctx, propertyKey(share.Store, c.Path()))

	return Aggregate([]Outcome{succeeded(store.Clean(req.Path), true)}, http.StatusCreated), nil
}
