// Package webdav serves the WebDAV methods over HTTP on top of the mutation
// engine.
//
// The handler parses WebDAV headers and XML bodies, hands a typed request to
// the engine and renders its Result: a plain status for uniform outcomes, a
// 207 Multi-Status listing failed members otherwise.
//
// Import graph: errors <- store <- lock <- engine <- webdav <- server
package webdav

import (
	"context"
	"errors"
	"io"
	"mime"
	"net"
	"net/http"
	"path"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/marmos91/dittodav/internal/logger"
	"github.com/marmos91/dittodav/internal/telemetry"
	"github.com/marmos91/dittodav/pkg/engine"
	daverrors "github.com/marmos91/dittodav/pkg/errors"
)

// maxLockInfoSize bounds LOCK request bodies.
const maxLockInfoSize = 1 << 20

// Methods lists the methods served, in Allow header order.
var Methods = []string{
	http.MethodOptions, http.MethodGet, http.MethodHead, http.MethodPut, http.MethodDelete,
	"MKCOL", "COPY", "MOVE", "LOCK", "UNLOCK",
}

func init() {
	for _, m := range []string{"MKCOL", "COPY", "MOVE", "LOCK", "UNLOCK"} {
		chi.RegisterMethod(m)
	}
}

// Handler is the WebDAV http.Handler.
type Handler struct {
	engine *engine.Engine
	router chi.Router
}

// NewHandler creates a handler executing requests on e.
func NewHandler(e *engine.Engine) *Handler {
	h := &Handler{engine: e}
	r := chi.NewRouter()
	h.Mount(r)
	h.router = r
	return h
}

// Mount registers the WebDAV routes on r, below every other route of r.
func (h *Handler) Mount(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(logContext)
		r.Options("/*", h.handleOptions)
		r.Get("/*", h.handleGet)
		r.Head("/*", h.handleHead)
		r.Put("/*", h.handlePut)
		r.Delete("/*", h.handleDelete)
		r.Method("MKCOL", "/*", http.HandlerFunc(h.handleMkcol))
		r.Method("COPY", "/*", http.HandlerFunc(h.handleCopy))
		r.Method("MOVE", "/*", http.HandlerFunc(h.handleMove))
		r.Method("LOCK", "/*", http.HandlerFunc(h.handleLock))
		r.Method("UNLOCK", "/*", http.HandlerFunc(h.handleUnlock))
	})
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

// logContext attaches the request-scoped LogContext and labels profile
// samples with the method.
func logContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clientIP := r.RemoteAddr
		if host, _, err := net.SplitHostPort(clientIP); err == nil {
			clientIP = host
		}
		lc := logger.NewLogContext(middleware.GetReqID(r.Context()), r.Method, clientIP)
		telemetry.ProfileRequest(r.Context(), r.Method, func(ctx context.Context) {
			next.ServeHTTP(w, r.WithContext(logger.WithContext(ctx, lc)))
		})
	})
}

// ============================================================================
// Read methods
// ============================================================================

func (h *Handler) handleOptions(w http.ResponseWriter, r *http.Request) {
	dav := "1"
	if h.engine.LockManager() != nil {
		dav = "1, 2"
	}
	w.Header().Set("DAV", dav)
	w.Header().Set("Allow", strings.Join(Methods, ", "))
	w.Header().Set("MS-Author-Via", "DAV")
	w.Header().Set("Content-Length", "0")
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) handleHead(w http.ResponseWriter, r *http.Request) {
	entry, err := h.engine.Stat(r.Context(), r.URL.Path)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	setEntryHeaders(w, entry)
	if notModified(r, entry) {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("Content-Length", strconv.FormatInt(entry.Info.Size, 10))
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	entry, body, err := h.engine.Open(r.Context(), r.URL.Path)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	defer func() { _ = body.Close() }()

	setEntryHeaders(w, entry)
	if notModified(r, entry) {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("Content-Length", strconv.FormatInt(entry.Info.Size, 10))
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, body); err != nil {
		logger.WarnCtx(r.Context(), "GET body copy interrupted", logger.KeyPath, r.URL.Path, logger.Err(err))
	}
}

func setEntryHeaders(w http.ResponseWriter, entry *engine.Entry) {
	contentType := mime.TypeByExtension(path.Ext(entry.Info.Path))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	if entry.ETag != "" {
		w.Header().Set("ETag", entry.ETag)
	}
	if !entry.Info.ModTime.IsZero() {
		w.Header().Set("Last-Modified", entry.Info.ModTime.UTC().Format(http.TimeFormat))
	}
}

func notModified(r *http.Request, entry *engine.Entry) bool {
	tags := parseETags(r.Header.Get("If-None-Match"))
	if len(tags) == 0 || entry.ETag == "" {
		return false
	}
	for _, t := range tags {
		if t == "*" || strings.TrimPrefix(t, "W/") == strings.TrimPrefix(entry.ETag, "W/") {
			return true
		}
	}
	return false
}

// ============================================================================
// Mutating methods
// ============================================================================

func (h *Handler) handleCopy(w http.ResponseWriter, r *http.Request) {
	h.transfer(w, r, false)
}

func (h *Handler) handleMove(w http.ResponseWriter, r *http.Request) {
	h.transfer(w, r, true)
}

func (h *Handler) transfer(w http.ResponseWriter, r *http.Request, move bool) {
	dest, err := parseDestination(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	depth, err := parseDepth(r.Header.Get(HeaderDepth), engine.DepthInfinity)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	overwrite, err := parseOverwrite(r.Header.Get(HeaderOverwrite))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	req := engine.TransferRequest{
		Source:      r.URL.Path,
		Destination: dest,
		Depth:       depth,
		Overwrite:   overwrite,
		IfTokens:    parseIfTokens(r.Header.Get(HeaderIf)),
	}

	var res engine.Result
	if move {
		res, err = h.engine.Move(r.Context(), req)
	} else {
		res, err = h.engine.Copy(r.Context(), req)
	}
	h.writeResult(w, r, res, err)
}

func (h *Handler) handlePut(w http.ResponseWriter, r *http.Request) {
	res, err := h.engine.Put(r.Context(), engine.PutRequest{
		Path:          r.URL.Path,
		Body:          r.Body,
		ContentLength: contentLength(r),
		IfMatch:       parseETags(r.Header.Get("If-Match")),
		IfNoneMatch:   parseETags(r.Header.Get("If-None-Match")),
		IfTokens:      parseIfTokens(r.Header.Get(HeaderIf)),
	})
	h.writeResult(w, r, res, err)
}

func (h *Handler) handleMkcol(w http.ResponseWriter, r *http.Request) {
	if hasBody(r) {
		h.writeError(w, r, daverrors.New(daverrors.ErrUnsupportedMediaType, r.URL.Path, "MKCOL request bodies are not supported"))
		return
	}
	res, err := h.engine.Mkcol(r.Context(), engine.MkcolRequest{
		Path:     r.URL.Path,
		IfTokens: parseIfTokens(r.Header.Get(HeaderIf)),
	})
	h.writeResult(w, r, res, err)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	depth, err := parseDepth(r.Header.Get(HeaderDepth), engine.DepthInfinity)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if depth != engine.DepthInfinity {
		h.writeError(w, r, daverrors.NewBadRequestError("DELETE requires Depth: infinity"))
		return
	}
	res, err := h.engine.Delete(r.Context(), engine.DeleteRequest{
		Path:     r.URL.Path,
		IfTokens: parseIfTokens(r.Header.Get(HeaderIf)),
	})
	h.writeResult(w, r, res, err)
}

// ============================================================================
// Lock methods
// ============================================================================

func (h *Handler) handleLock(w http.ResponseWriter, r *http.Request) {
	timeout := parseTimeout(r.Header.Get(HeaderTimeout))

	// A LOCK without a body refreshes the locks named in the If header.
	if !hasBody(r) {
		l, err := h.engine.RefreshLock(r.Context(), r.URL.Path, parseIfTokens(r.Header.Get(HeaderIf)), timeout)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		writeLockDiscovery(w, http.StatusOK, l)
		return
	}

	depth, err := parseDepth(r.Header.Get(HeaderDepth), engine.DepthInfinity)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if depth == engine.DepthOne {
		h.writeError(w, r, daverrors.NewBadRequestError("Depth: 1 is not allowed for LOCK"))
		return
	}
	info, err := parseLockInfo(http.MaxBytesReader(w, r.Body, maxLockInfoSize))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	res, err := h.engine.Lock(r.Context(), engine.LockRequest{
		Path:    r.URL.Path,
		Deep:    depth == engine.DepthInfinity,
		Scope:   info.scope(),
		Owner:   info.owner(),
		Timeout: timeout,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	status := http.StatusOK
	if res.Created {
		status = http.StatusCreated
	}
	w.Header().Set(HeaderLockToken, "<"+res.Lock.Token+">")
	writeLockDiscovery(w, status, res.Lock)
}

func (h *Handler) handleUnlock(w http.ResponseWriter, r *http.Request) {
	token, err := parseLockToken(r.Header.Get(HeaderLockToken))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.engine.Unlock(r.Context(), r.URL.Path, token); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ============================================================================
// Responses
// ============================================================================

// writeResult renders an engine Result. A failed root is reported with its
// own status; failed members of a successful root produce a 207.
func (h *Handler) writeResult(w http.ResponseWriter, r *http.Request, res engine.Result, err error) {
	if err == nil {
		err = res.Err()
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if res.Status == http.StatusMultiStatus {
		writeMultiStatus(w, res.Failures)
		return
	}
	if res.ETag != "" {
		w.Header().Set("ETag", res.ETag)
	}
	w.WriteHeader(res.Status)
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := daverrors.StatusOf(err)
	if status >= http.StatusInternalServerError {
		logger.ErrorCtx(r.Context(), "request failed", logger.KeyPath, r.URL.Path, logger.KeyStatus, status, logger.Err(err))
	} else {
		logger.DebugCtx(r.Context(), "request rejected", logger.KeyPath, r.URL.Path, logger.KeyStatus, status, logger.Err(err))
	}

	if status == http.StatusLocked {
		writeLocked(w, errorPath(err, r.URL.Path))
		return
	}
	http.Error(w, http.StatusText(status), status)
}

// errorPath returns the path a DavError names, or fallback.
func errorPath(err error, fallback string) string {
	var davErr *daverrors.DavError
	if errors.As(err, &davErr) && davErr.Path != "" {
		return davErr.Path
	}
	return fallback
}
