package engine

import (
	"context"
	"net/http"

	"github.com/marmos91/dittodav/internal/telemetry"
	daverrors "github.com/marmos91/dittodav/pkg/errors"
	"github.com/marmos91/dittodav/pkg/store"
)

// Delete removes a node and its subtree bottom-up.
//
// Members that cannot be removed are reported in a 207 and keep their
// ancestors in place. Ancestors kept that way are not listed themselves.
func (e *Engine) Delete(ctx context.Context, req DeleteRequest) (res Result, err error) {
	ctx, done := e.begin(ctx, telemetry.SpanDelete, "DELETE", req.Path)
	defer done(&res, &err)

	enter(ctx, stateResolveSource, req.Path)
	share, p, err := e.lookup(req.Path)
	if err != nil {
		return res, err
	}
	if share.ReadOnly {
		return res, daverrors.NewForbiddenError(req.Path, "share is read-only")
	}
	node, err := resolveExisting(ctx, share.Store, p, req.Path)
	if err != nil {
		return res, err
	}
	if node.Path() == store.Clean(share.Root) {
		return res, daverrors.NewForbiddenError(req.Path, "cannot delete a share root")
	}

	if err := e.checkIfTokens(req.Path, req.IfTokens); err != nil {
		return res, err
	}
	grant, err := e.acquire(ctx, newOwner(req.Owner), req.IfTokens, store.Clean(req.Path), true)
	if err != nil {
		return res, err
	}
	defer grant.Release()

	enter(ctx, stateExecute, req.Path)
	var outcomes []Outcome
	e.removeTree(ctx, node, store.Clean(req.Path), &outcomes, true)

	res = Aggregate(outcomes, http.StatusNoContent)
	res.Failures = withoutDependencies(res.Failures)
	return res, nil
}

// removeTree deletes n bottom-up, recording one outcome per node with n
// first. Collections kept because a member failed are recorded as 424,
// except the root which stays successful so the failures surface as 207.
func (e *Engine) removeTree(ctx context.Context, n store.Node, href string, outcomes *[]Outcome, root bool) bool {
	idx := len(*outcomes)
	*outcomes = append(*outcomes, succeeded(href, false))

	if err := ctx.Err(); err != nil {
		(*outcomes)[idx] = failed(href, err)
		return false
	}

	if c, ok := n.(*store.Collection); ok {
		children, err := c.List(ctx)
		if err != nil {
			(*outcomes)[idx] = failed(href, daverrors.ForbiddenWithCause(href, err))
			return false
		}
		complete := true
		for _, child := range children {
			if !e.removeTree(ctx, child, childHref(href, child.Name()), outcomes, false) {
				complete = false
			}
		}
		if !complete {
			if !root {
				(*outcomes)[idx] = Outcome{Path: href, Status: http.StatusFailedDependency}
			}
			return false
		}
	}

	if err := store.Delete(ctx, n); err != nil {
		(*outcomes)[idx] = failed(href, daverrors.ForbiddenWithCause(href, err))
		return false
	}
	e.deleteProperties(ctx, propertyKey(n.Store(), n.Path()))
	return true
}

func withoutDependencies(failures []Outcome) []Outcome {
	kept := failures[:0]
	for _, o := range failures {
		if o.Status != http.StatusFailedDependency {
			kept = append(kept, o)
		}
	}
	if len(kept) == 0 {
		return nil
	}
	return kept
}
