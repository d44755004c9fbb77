package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/marmos91/dittodav/internal/logger"
	"github.com/marmos91/dittodav/pkg/registry"
	"github.com/marmos91/dittodav/pkg/server/handlers"
	"github.com/marmos91/dittodav/pkg/webdav"
)

// NewRouter creates the chi router serving WebDAV and the health endpoints.
//
// The router is configured with:
//   - Request ID middleware for request tracking
//   - Real IP extraction for proper client identification
//   - Custom request logging using the internal logger
//   - Panic recovery to prevent server crashes
//
// There is no request timeout middleware: COPY and MOVE of large trees run
// as long as they need and stop when the client goes away.
//
// Routes:
//   - GET /health - Liveness check
//   - GET /health/ready - Readiness check
//   - GET /health/stores - Detailed store health
//   - everything else - WebDAV
func NewRouter(config Config, registry *registry.Registry, dav *webdav.Handler) http.Handler {
	r := chi.NewRouter()

	// Middleware stack - order matters
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	if config.IsHealthEnabled() {
		healthHandler := handlers.NewHealthHandler(registry)
		r.Route("/health", func(r chi.Router) {
			r.Get("/", healthHandler.Liveness)
			r.Get("/ready", healthHandler.Readiness)
			r.Get("/stores", healthHandler.Stores)
		})
	}

	dav.Mount(r)
	return r
}

// requestLogger logs request start at DEBUG and completion at INFO using
// the internal logger.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := middleware.GetReqID(r.Context())

		logger.Debug("request started",
			logger.KeyRequestID, requestID,
			logger.KeyMethod, r.Method,
			logger.KeyPath, r.URL.Path,
			logger.KeyClientIP, r.RemoteAddr,
		)

		// Wrap response writer to capture status code
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		logger.Info("request completed",
			logger.KeyRequestID, requestID,
			logger.KeyMethod, r.Method,
			logger.KeyPath, r.URL.Path,
			logger.KeyStatus, ww.Status(),
			"bytes", ww.BytesWritten(),
			logger.DurationMs(start),
		)
	})
}
