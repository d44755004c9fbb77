package engine

import (
	"context"
	"net/http"

	"github.com/marmos91/dittodav/internal/logger"
	"github.com/marmos91/dittodav/internal/telemetry"
	daverrors "github.com/marmos91/dittodav/pkg/errors"
	"github.com/marmos91/dittodav/pkg/store"
)

// Put writes the request body to a document through the adaptive stream
// copier.
//
// A collection at the path, or a path ending in a slash, is 405. A missing
// parent collection is 404 and a document in the middle of the path is 409.
// If-Match and If-None-Match are evaluated under the lock. The previous
// content survives a failed upload. The result is 201 for a new document
// and 200 for a replaced one.
func (e *Engine) Put(ctx context.Context, req PutRequest) (res Result, err error) {
	ctx, done := e.begin(ctx, telemetry.SpanPut, "PUT", req.Path)
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
	var target string
	switch s := sel.(type) {
	case store.FoundCollection:
		return res, daverrors.NewMethodNotAllowedError(req.Path, "cannot PUT to a collection")
	case store.MissingCollection:
		return res, daverrors.NewMethodNotAllowedError(req.Path, "PUT cannot create a collection")
	case store.FoundDocument:
		target = s.Document.Path()
	case store.MissingDocumentOrCollection:
		if len(s.Missing) != 1 {
			return res, daverrors.New(daverrors.ErrNotFound, req.Path, "parent collection does not exist")
		}
		if !store.ValidName(s.Name()) {
			return res, daverrors.NewForbiddenError(req.Path, "invalid name")
		}
		target = s.Parent.ChildPath(s.Name())
	}

	if err := e.checkIfTokens(req.Path, req.IfTokens); err != nil {
		return res, err
	}
	grant, err := e.acquire(ctx, newOwner(req.Owner), req.IfTokens, store.Clean(req.Path), false)
	if err != nil {
		return res, err
	}
	defer grant.Release()

	enter(ctx, statePlan, target)
	info, err := share.Store.Stat(ctx, target)
	exists := err == nil
	if err != nil && !daverrors.IsNotFoundError(err) {
		return res, err
	}
	if exists && info.IsCollection {
		return res, daverrors.NewMethodNotAllowedError(req.Path, "cannot PUT to a collection")
	}
	var etag string
	if exists {
		etag = e.etagFor(ctx, share.Store, info)
	}
	if err := checkPreconditions(req.Path, req.IfMatch, req.IfNoneMatch, exists, etag); err != nil {
		return res, err
	}

	enter(ctx, stateExecute, target)
	w, err := share.Store.OpenWrite(ctx, target)
	if err != nil {
		return res, err
	}
	copied, err := e.copier.Copy(ctx, w, req.Body, req.ContentLength)
	if err != nil {
		if abortErr := w.Abort(); abortErr != nil {
			logger.WarnCtx(ctx, "failed to abort upload", logger.KeyPath, target, logger.Err(abortErr))
		}
		return res, err
	}
	if err := w.Close(); err != nil {
		return res, daverrors.Wrap(daverrors.ErrIOError, req.Path, err)
	}
	telemetry.SetAttributes(ctx, telemetry.BytesWritten(copied.Written))

	res = Aggregate([]Outcome{succeeded(store.Clean(req.Path), !exists)}, http.StatusOK)
	res.ETag = e.refreshETag(ctx, share.Store, target)
	return res, nil
}

// refreshETag issues a new entity tag after a write.
func (e *Engine) refreshETag(ctx context.Context, s store.Store, p string) string {
	if e.props != nil {
		etag, err := e.props.RefreshETag(ctx, propertyKey(s, p))
		if err == nil {
			return etag
		}
		logger.WarnCtx(ctx, "failed to refresh etag", logger.KeyPath, p, logger.Err(err))
	}
	info, err := s.Stat(ctx, p)
	if err != nil {
		return ""
	}
	return e.etagFor(ctx, s, info)
}
