package engine

import (
	"context"
	"time"

	"github.com/marmos91/dittodav/internal/logger"
	"github.com/marmos91/dittodav/internal/telemetry"
	daverrors "github.com/marmos91/dittodav/pkg/errors"
	"github.com/marmos91/dittodav/pkg/lock"
	"github.com/marmos91/dittodav/pkg/store"
)

// LockResult is the outcome of a LOCK request.
type LockResult struct {
	Lock *lock.Lock

	// Created is true when the LOCK created an empty document at an
	// unmapped path.
	Created bool
}

// Lock grants an explicit lock on req.Path. Locking an unmapped path whose
// parent exists creates an empty document there.
func (e *Engine) Lock(ctx context.Context, req LockRequest) (*LockResult, error) {
	ctx, span := telemetry.StartDAVSpan(ctx, telemetry.SpanLock, "LOCK", req.Path)
	defer span.End()

	if e.locks == nil {
		return nil, daverrors.New(daverrors.ErrNotImplemented, req.Path, "locking is disabled")
	}
	share, p, err := e.lookup(req.Path)
	if err != nil {
		return nil, err
	}
	sel, err := store.Resolve(ctx, share.Store, p)
	if err != nil {
		return nil, err
	}

	var parent *store.Collection
	var name string
	switch sel.(type) {
	case store.FoundDocument, store.FoundCollection:
	default:
		if share.ReadOnly {
			return nil, daverrors.NewForbiddenError(req.Path, "share is read-only")
		}
		parent, name, err = store.DirectChild(sel)
		if err != nil {
			return nil, err
		}
	}

	l, err := e.locks.Lock(ctx, lock.Request{
		Path:    store.Clean(req.Path),
		Deep:    req.Deep,
		Scope:   req.Scope,
		Owner:   req.Owner,
		Timeout: req.Timeout,
	})
	if err != nil {
		return nil, err
	}

	created := false
	if parent != nil {
		if _, err := parent.CreateDocument(ctx, name); err != nil {
			e.locks.Release(ctx, l.Path, l.Token)
			return nil, err
		}
		created = true
	}

	telemetry.SetAttributes(ctx, telemetry.LockToken(l.Token))
	logger.InfoCtx(ctx, "lock granted",
		logger.KeyPath, l.Root,
		logger.KeyLockToken, l.Token,
		logger.KeyLockScope, l.Scope.String(),
		logger.KeyLockOwner, l.Owner)
	return &LockResult{Lock: l, Created: created}, nil
}

// RefreshLock renews the first active lock among tokens that covers p.
func (e *Engine) RefreshLock(ctx context.Context, p string, tokens []string, timeout time.Duration) (*lock.Lock, error) {
	if e.locks == nil {
		return nil, daverrors.New(daverrors.ErrNotImplemented, p, "locking is disabled")
	}
	if len(tokens) == 0 {
		return nil, daverrors.NewBadRequestError("lock refresh requires an If header")
	}
	for _, t := range tokens {
		if l, err := e.locks.Refresh(ctx, store.Clean(p), t, timeout); err == nil {
			return l, nil
		}
	}
	return nil, daverrors.NewPreconditionFailedError(p, "no lock to refresh")
}

// Unlock releases an explicit lock. A token that names no lock, or a lock
// that does not cover p, is 409 and leaves every lock in place. Without a
// lock manager UNLOCK is 501.
func (e *Engine) Unlock(ctx context.Context, p, token string) error {
	ctx, span := telemetry.StartDAVSpan(ctx, telemetry.SpanUnlock, "UNLOCK", p, telemetry.LockToken(token))
	defer span.End()

	if e.locks == nil {
		return daverrors.New(daverrors.ErrNotImplemented, p, "locking is disabled")
	}

	switch e.locks.Release(ctx, store.Clean(p), token) {
	case lock.Released:
		logger.InfoCtx(ctx, "lock released", logger.KeyPath, p, logger.KeyLockToken, token)
		return nil
	case lock.Conflict:
		return daverrors.NewConflictError(p, "lock does not cover the request path")
	default:
		return daverrors.New(daverrors.ErrLockNotFound, p, "lock token does not match an active lock")
	}
}

// Discover returns the explicit locks covering p.
func (e *Engine) Discover(p string) []*lock.Lock {
	if e.locks == nil {
		return nil
	}
	return e.locks.Discover(p)
}
