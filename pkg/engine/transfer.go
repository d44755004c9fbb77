package engine

import (
	"context"
	"net/http"

	"github.com/marmos91/dittodav/internal/logger"
	"github.com/marmos91/dittodav/internal/telemetry"
	daverrors "github.com/marmos91/dittodav/pkg/errors"
	"github.com/marmos91/dittodav/pkg/props"
	"github.com/marmos91/dittodav/pkg/registry"
	"github.com/marmos91/dittodav/pkg/store"
)

// Copy reproduces the source node, or with Depth infinity its whole subtree,
// at the destination.
//
// **Process:**
//
//  1. Init: validate Depth and settle Overwrite (header wins over the
//     configured default)
//  2. ResolveSource: a missing source is 404
//  3. ResolveDestination: pick the strategy, reject a destination inside
//     the source or containing it (403), a missing intermediate collection
//     (409) and an existing destination without Overwrite (412)
//  4. AcquireLock: implicit deep lock on the destination
//  5. Plan: re-resolve the destination under the lock
//  6. Execute: depth-first walk, one Outcome per node
//  7. Finalize: release the lock and aggregate
//
// The returned error is set for failures before Execute. Failures during
// Execute are reported through Result.
func (e *Engine) Copy(ctx context.Context, req TransferRequest) (Result, error) {
	return e.transfer(ctx, req, false)
}

// Move is Copy followed by removal of each source node once it has been
// reproduced. A document's source is removed right after its copy, a
// collection's after all of its members moved. Nodes that failed, and their
// ancestors, stay at the source.
//
// MOVE only accepts Depth infinity. The source share root cannot be moved.
func (e *Engine) Move(ctx context.Context, req TransferRequest) (Result, error) {
	return e.transfer(ctx, req, true)
}

// destinationPlan is the outcome of ResolveDestination.
type destinationPlan struct {
	actions TargetActions

	// path is the destination in the strategy's namespace.
	path string

	// href is the destination as outcomes report it.
	href string

	// lockPath is the URL path locked on this server, "" for remote
	// destinations.
	lockPath string
}

func (e *Engine) transfer(ctx context.Context, req TransferRequest, move bool) (res Result, err error) {
	method, spanName := "COPY", telemetry.SpanCopy
	if move {
		method, spanName = "MOVE", telemetry.SpanMove
	}

	overwrite := e.config.OverwriteDefault
	if req.Overwrite != nil {
		overwrite = *req.Overwrite
	}

	ctx, done := e.begin(ctx, spanName, method, req.Source,
		telemetry.Destination(req.Destination.String()),
		telemetry.Depth(req.Depth.String()),
		telemetry.Overwrite(overwrite))
	defer done(&res, &err)

	switch {
	case req.Depth == DepthOne:
		return res, daverrors.NewBadRequestError("Depth: 1 is not allowed for " + method)
	case move && req.Depth != DepthInfinity:
		return res, daverrors.NewBadRequestError("MOVE requires Depth: infinity")
	}
	owner := newOwner(req.Owner)

	// ResolveSource
	enter(ctx, stateResolveSource, req.Source)
	srcShare, srcPath, err := e.lookup(req.Source)
	if err != nil {
		return res, err
	}
	if move && srcShare.ReadOnly {
		return res, daverrors.NewForbiddenError(req.Source, "share is read-only")
	}
	src, err := resolveExisting(ctx, srcShare.Store, srcPath, req.Source)
	if err != nil {
		return res, err
	}
	if move && src.Path() == store.Clean(srcShare.Root) {
		return res, daverrors.NewForbiddenError(req.Source, "cannot move a share root")
	}

	// ResolveDestination
	enter(ctx, stateResolveDestination, req.Destination.String())
	plan, err := e.planDestination(ctx, srcShare, src, req.Destination, move)
	if err != nil {
		return res, err
	}
	if e.metrics != nil {
		e.metrics.RecordStrategy(plan.actions.Name())
	}
	telemetry.SetAttributes(ctx, telemetry.Strategy(plan.actions.Name()))
	if _, err := e.resolveTarget(ctx, plan, overwrite); err != nil {
		return res, err
	}

	// AcquireLock
	var tokenPaths []string
	if plan.lockPath != "" {
		tokenPaths = []string{plan.lockPath, store.Dir(plan.lockPath)}
	}
	if err := e.checkIfTokens(req.Source, req.IfTokens, tokenPaths...); err != nil {
		return res, err
	}
	if plan.lockPath != "" {
		grant, err := e.acquire(ctx, owner, req.IfTokens, plan.lockPath, true)
		if err != nil {
			return res, err
		}
		defer grant.Release()
	}
	if move {
		grant, err := e.acquire(ctx, owner, req.IfTokens, store.Clean(req.Source), true)
		if err != nil {
			return res, err
		}
		defer grant.Release()
	}

	// Plan
	enter(ctx, statePlan, plan.path)
	target, err := e.resolveTarget(ctx, plan, overwrite)
	if err != nil {
		return res, err
	}
	depth := req.Depth
	if depth != DepthZero {
		depth = DepthInfinity
	}

	// Execute
	enter(ctx, stateExecute, plan.path)
	x := &execution{
		engine:     e,
		actions:    plan.actions,
		move:       move,
		overwrite:  overwrite,
		depth:      depth,
		srcStoreID: srcShare.Store.ID(),
	}
	x.run(ctx, src, target, plan.href)

	return Aggregate(x.outcomes, http.StatusNoContent), nil
}

// resolveExisting resolves p and fails with NotFound unless a node exists.
func resolveExisting(ctx context.Context, s store.Store, p, href string) (store.Node, error) {
	sel, err := store.Resolve(ctx, s, p)
	if err != nil {
		return nil, err
	}
	switch sel := sel.(type) {
	case store.FoundDocument:
		return sel.Document, nil
	case store.FoundCollection:
		return sel.Collection, nil
	default:
		return nil, daverrors.NewNotFoundError(store.Clean(href))
	}
}

// resolveTarget resolves the destination root and enforces Overwrite.
func (e *Engine) resolveTarget(ctx context.Context, plan *destinationPlan, overwrite bool) (Target, error) {
	target, err := plan.actions.Resolve(ctx, plan.path)
	if err != nil {
		return nil, err
	}
	if _, missing := target.(*MissingTarget); !missing && !overwrite {
		return nil, daverrors.NewPreconditionFailedError(plan.href, "destination exists and Overwrite is F")
	}
	return target, nil
}

// planDestination chooses the strategy for a destination.
//
// Remote destinations go to the remote factory first. When there is none or
// it declines, the generic strategy runs against the local share that
// matches the destination path, and 502 is returned if no share does.
func (e *Engine) planDestination(ctx context.Context, srcShare *registry.Share, src store.Node, dest Destination, move bool) (*destinationPlan, error) {
	if !dest.IsRemote() {
		share, rel, err := e.registry.Lookup(dest.Path)
		if err != nil {
			return nil, daverrors.NewForbiddenError(store.Clean(dest.Path), "destination is outside every share")
		}
		return e.localPlan(srcShare, src, share, rel, move, true)
	}

	if e.remote != nil {
		actions, err := e.remote.NewActions(ctx, dest.URL, move)
		if err != nil {
			return nil, daverrors.Wrap(daverrors.ErrBadGateway, dest.String(), err)
		}
		if actions != nil {
			return &destinationPlan{
				actions: actions,
				path:    store.Clean(dest.URL.Path),
				href:    dest.URL.String(),
			}, nil
		}
	}

	logger.DebugCtx(ctx, "remote destination declined, trying local shares", logger.KeyDestination, dest.String())
	share, rel, err := e.registry.Lookup(dest.URL.Path)
	if err != nil {
		return nil, daverrors.New(daverrors.ErrBadGateway, dest.String(), "destination is on another server")
	}
	return e.localPlan(srcShare, src, share, rel, move, false)
}

func (e *Engine) localPlan(srcShare *registry.Share, src store.Node, share *registry.Share, rel string, move, allowFast bool) (*destinationPlan, error) {
	href := store.Clean(joinShare(share.Name, rel))
	if share.ReadOnly {
		return nil, daverrors.NewForbiddenError(href, "share is read-only")
	}

	p := share.StorePath(rel)
	sameStore := share.Store.ID() == srcShare.Store.ID()
	if sameStore && store.IsWithin(p, src.Path()) {
		return nil, daverrors.NewForbiddenError(href, "destination is the source or inside it")
	}
	if sameStore && store.IsWithin(src.Path(), p) {
		return nil, daverrors.NewForbiddenError(href, "destination contains the source")
	}

	var actions TargetActions
	if allowFast && sameStore && e.config.Mode == ModeFastest {
		actions = newFastActions(share.Store, e.copier, move)
	} else {
		actions = newGenericActions(share.Store, e.copier, move)
	}
	return &destinationPlan{actions: actions, path: p, href: href, lockPath: href}, nil
}

func joinShare(shareName, rel string) string {
	if shareName == "/" {
		return rel
	}
	return shareName + rel
}

// ============================================================================
// Execute
// ============================================================================
//
// An existing destination accepted with Overwrite T is deleted with its
// whole subtree before the source is reproduced, so the result mirrors the
// source exactly.

// execution is the per-request state of a recursive copy or move.
type execution struct {
	engine     *Engine
	actions    TargetActions
	move       bool
	overwrite  bool
	depth      Depth
	srcStoreID string
	outcomes   []Outcome
}

func (x *execution) record(o Outcome) int {
	x.outcomes = append(x.outcomes, o)
	return len(x.outcomes) - 1
}

func (x *execution) fail(href string, err error) bool {
	x.record(failed(href, daverrors.ForbiddenWithCause(href, err)))
	return false
}

func (x *execution) run(ctx context.Context, src store.Node, target Target, href string) {
	if fa, ok := x.actions.(*fastActions); ok && x.depth == DepthInfinity {
		if missing, isMissing := target.(*MissingTarget); isMissing {
			x.moveTree(ctx, fa, src, missing, href)
			if len(x.outcomes) > 0 {
				return
			}
		}
	}
	x.node(ctx, src, target, href)
}

// moveTree moves the whole source in one native call when possible. It
// records nothing when the store cannot.
func (x *execution) moveTree(ctx context.Context, fa *fastActions, src store.Node, dst *MissingTarget, href string) {
	var paths []string
	if x.engine.props != nil && x.move {
		paths = subtreePaths(ctx, src)
	}

	handled, err := fa.moveTree(ctx, src, dst)
	if !handled {
		return
	}
	if err != nil {
		x.fail(href, err)
		return
	}

	srcRoot, dstRoot := src.Path(), dst.TargetPath()
	for _, p := range paths {
		moved := store.Join(dstRoot, p[len(srcRoot):])
		x.followProperties(ctx, p, moved)
	}
	x.record(succeeded(href, true))
}

// node reproduces src at target. It reports whether src and its whole
// subtree were reproduced.
func (x *execution) node(ctx context.Context, src store.Node, target Target, href string) bool {
	if err := ctx.Err(); err != nil {
		x.record(failed(href, err))
		return false
	}
	switch n := src.(type) {
	case *store.Document:
		return x.document(ctx, n, target, href)
	case *store.Collection:
		return x.collection(ctx, n, target, href)
	default:
		return x.fail(href, daverrors.New(daverrors.ErrIOError, src.Path(), "unknown node type"))
	}
}

func (x *execution) document(ctx context.Context, src *store.Document, target Target, href string) bool {
	var parent *CollectionTarget
	var name string
	existed, replaceDoc := false, false

	switch t := target.(type) {
	case *MissingTarget:
		parent, name = t.Parent, t.Name
	case *DocumentTarget:
		if !x.overwrite {
			return x.fail(href, daverrors.NewConflictError(href, "destination exists"))
		}
		parent, name = t.Parent, store.Base(t.Path)
		existed, replaceDoc = true, true
	case *CollectionTarget:
		if !x.overwrite {
			return x.fail(href, daverrors.NewConflictError(href, "destination exists"))
		}
		if t.Parent == nil {
			return x.fail(href, daverrors.NewForbiddenError(href, "cannot replace the store root"))
		}
		if err := x.replace(ctx, t); err != nil {
			return x.fail(href, err)
		}
		parent, name = t.Parent, store.Base(t.Path)
		existed = true
	}

	dt, err := x.actions.CreateOrOverwriteDocument(ctx, parent, name, src, replaceDoc)
	if err != nil {
		return x.fail(href, err)
	}
	if err := x.actions.DeleteIfMove(ctx, src); err != nil {
		return x.fail(href, err)
	}
	x.followProperties(ctx, src.Path(), dt.Path)
	x.record(succeeded(href, !existed))
	return true
}

func (x *execution) collection(ctx context.Context, src *store.Collection, target Target, href string) bool {
	var ct *CollectionTarget
	existed := false

	switch t := target.(type) {
	case *MissingTarget:
		c, err := x.actions.CreateCollection(ctx, t.Parent, t.Name)
		if err != nil {
			return x.fail(href, err)
		}
		ct = c
	case *CollectionTarget:
		// An existing collection is replaced, never merged into.
		if !x.overwrite {
			return x.fail(href, daverrors.NewConflictError(href, "destination exists"))
		}
		if t.Parent == nil {
			return x.fail(href, daverrors.NewForbiddenError(href, "cannot replace the store root"))
		}
		if err := x.replace(ctx, t); err != nil {
			return x.fail(href, err)
		}
		c, err := x.actions.CreateCollection(ctx, t.Parent, store.Base(t.Path))
		if err != nil {
			return x.fail(href, err)
		}
		ct, existed = c, true
	case *DocumentTarget:
		if !x.overwrite {
			return x.fail(href, daverrors.NewConflictError(href, "destination exists"))
		}
		if err := x.replace(ctx, t); err != nil {
			return x.fail(href, err)
		}
		c, err := x.actions.CreateCollection(ctx, t.Parent, store.Base(t.Path))
		if err != nil {
			return x.fail(href, err)
		}
		ct, existed = c, true
	}

	// Recorded before the members so the root outcome stays first.
	idx := x.record(succeeded(href, !existed))

	complete := true
	if x.depth == DepthInfinity {
		children, err := src.List(ctx)
		if err != nil {
			x.outcomes[idx] = failed(href, daverrors.ForbiddenWithCause(href, err))
			return false
		}
		for _, child := range children {
			childRef := childHref(href, child.Name())
			childTarget, err := x.actions.Child(ctx, ct, child.Name())
			if err != nil {
				x.fail(childRef, err)
				complete = false
				continue
			}
			if !x.node(ctx, child, childTarget, childRef) {
				complete = false
			}
		}
	}
	if !complete {
		return false
	}

	if err := x.actions.DeleteIfMove(ctx, src); err != nil {
		x.outcomes[idx] = failed(href, daverrors.ForbiddenWithCause(href, err))
		return false
	}
	x.followProperties(ctx, src.Path(), ct.Path)
	return true
}

// replace deletes an existing destination node with its whole subtree, and
// the property records of local nodes with it.
func (x *execution) replace(ctx context.Context, t Target) error {
	var local store.Node
	switch t := t.(type) {
	case *CollectionTarget:
		if t.Collection != nil {
			local = t.Collection
		}
	case *DocumentTarget:
		if t.Document != nil {
			local = t.Document
		}
	}

	var paths []string
	if local != nil && x.engine.props != nil {
		paths = subtreePaths(ctx, local)
	}
	if err := x.actions.DeleteTarget(ctx, t); err != nil {
		return err
	}
	for _, p := range paths {
		x.engine.deleteProperties(ctx, propertyKey(local.Store(), p))
	}
	return nil
}

// subtreePaths lists n and its descendants. A failed walk is logged and the
// paths gathered so far are returned.
func subtreePaths(ctx context.Context, n store.Node) []string {
	var paths []string
	err := store.Walk(ctx, n, func(n store.Node) error {
		paths = append(paths, n.Path())
		return nil
	})
	if err != nil {
		logger.WarnCtx(ctx, "failed to list subtree for properties", logger.KeyPath, n.Path(), logger.Err(err))
	}
	return paths
}

// followProperties makes the property record of a source node follow it to
// the destination. Property failures never fail the node.
func (x *execution) followProperties(ctx context.Context, srcPath, dstPath string) {
	ps := x.engine.props
	if ps == nil {
		return
	}
	srcKey := props.Key{StoreID: x.srcStoreID, Path: store.Clean(srcPath)}

	var err error
	switch {
	case x.actions.StoreID() == "":
		if x.move {
			err = ps.Delete(ctx, srcKey)
		}
	case x.move:
		err = ps.Move(ctx, srcKey, props.Key{StoreID: x.actions.StoreID(), Path: store.Clean(dstPath)})
	default:
		err = ps.Copy(ctx, srcKey, props.Key{StoreID: x.actions.StoreID(), Path: store.Clean(dstPath)})
	}
	if err != nil {
		logger.WarnCtx(ctx, "failed to update properties", logger.KeyPath, dstPath, logger.Err(err))
	}
}
