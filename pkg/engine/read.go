package engine

import (
	"context"
	"io"

	daverrors "github.com/marmos91/dittodav/pkg/errors"
	"github.com/marmos91/dittodav/pkg/store"
)

// Entry describes a document served by GET and HEAD.
type Entry struct {
	Info store.Info
	ETag string
}

// Stat returns the document at urlPath. Collections are 405.
func (e *Engine) Stat(ctx context.Context, urlPath string) (*Entry, error) {
	share, p, err := e.lookup(urlPath)
	if err != nil {
		return nil, err
	}
	info, err := share.Store.Stat(ctx, store.Clean(p))
	if err != nil {
		return nil, err
	}
	if info.IsCollection {
		return nil, daverrors.NewMethodNotAllowedError(urlPath, "collections have no content")
	}
	return &Entry{Info: info, ETag: e.etagFor(ctx, share.Store, info)}, nil
}

// Open returns the document at urlPath and its content.
func (e *Engine) Open(ctx context.Context, urlPath string) (*Entry, io.ReadCloser, error) {
	entry, err := e.Stat(ctx, urlPath)
	if err != nil {
		return nil, nil, err
	}
	share, p, err := e.lookup(urlPath)
	if err != nil {
		return nil, nil, err
	}
	r, err := share.Store.OpenRead(ctx, store.Clean(p))
	if err != nil {
		return nil, nil, err
	}
	return entry, r, nil
}
