package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/marmos91/dittodav/internal/logger"
	daverrors "github.com/marmos91/dittodav/pkg/errors"
	"github.com/marmos91/dittodav/pkg/store"
)

// etagFor returns the entity tag of a document. The property store's tag
// wins; without one a tag is derived from size and modification time.
func (e *Engine) etagFor(ctx context.Context, s store.Store, info store.Info) string {
	if e.props != nil {
		etag, err := e.props.ETag(ctx, propertyKey(s, info.Path))
		if err != nil {
			logger.WarnCtx(ctx, "failed to read etag", logger.KeyPath, info.Path, logger.Err(err))
		}
		if etag != "" {
			return etag
		}
	}
	return fmt.Sprintf(`"%x-%x"`, info.ModTime.UnixNano(), info.Size)
}

// checkPreconditions evaluates If-Match and If-None-Match against the
// current state of a document.
func checkPreconditions(p string, ifMatch, ifNoneMatch []string, exists bool, etag string) error {
	if len(ifMatch) > 0 {
		if !exists || !matchesAny(ifMatch, etag) {
			return daverrors.NewPreconditionFailedError(p, "If-Match failed")
		}
	}
	if len(ifNoneMatch) > 0 && exists && matchesAny(ifNoneMatch, etag) {
		return daverrors.NewPreconditionFailedError(p, "If-None-Match failed")
	}
	return nil
}

// matchesAny reports whether etag matches one of tags. "*" matches any
// existing entity. Weak prefixes are ignored.
func matchesAny(tags []string, etag string) bool {
	etag = strings.TrimPrefix(etag, "W/")
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "*" || strings.TrimPrefix(t, "W/") == etag {
			return true
		}
	}
	return false
}
