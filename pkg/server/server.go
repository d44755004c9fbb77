// Package server runs the WebDAV HTTP server.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/marmos91/dittodav/internal/logger"
	"github.com/marmos91/dittodav/pkg/registry"
	"github.com/marmos91/dittodav/pkg/webdav"
)

// DefaultShutdownTimeout bounds graceful shutdown when Start's context is
// cancelled.
const DefaultShutdownTimeout = 30 * time.Second

// Server serves WebDAV and the health endpoints over HTTP.
//
// The server supports graceful shutdown: in-flight requests, including
// long COPY and MOVE operations, get up to the shutdown timeout to finish.
type Server struct {
	server          *http.Server
	config          Config
	shutdownTimeout time.Duration
	shutdownOnce    sync.Once
}

// Option configures a Server.
type Option func(*Server)

// WithShutdownTimeout sets how long Start waits for in-flight requests
// after its context is cancelled.
func WithShutdownTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.shutdownTimeout = d
		}
	}
}

// NewServer creates a new WebDAV HTTP server.
//
// The server is created in a stopped state. Call Start() to begin serving
// requests. Defaults are applied here so a server created directly (e.g.
// in tests) works; this is idempotent with the defaults applied during
// config loading.
func NewServer(config Config, registry *registry.Registry, dav *webdav.Handler, opts ...Option) *Server {
	config.ApplyDefaults()

	s := &Server{
		server: &http.Server{
			Addr:              fmt.Sprintf(":%d", config.Port),
			Handler:           NewRouter(config, registry, dav),
			ReadHeaderTimeout: config.ReadHeaderTimeout,
			ReadTimeout:       config.ReadTimeout,
			WriteTimeout:      config.WriteTimeout,
			IdleTimeout:       config.IdleTimeout,
		},
		config:          config,
		shutdownTimeout: DefaultShutdownTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start listens on the configured port and blocks until the context is
// cancelled or the server fails. Cancellation triggers graceful shutdown.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return fmt.Errorf("WebDAV server failed to listen: %w", err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until the context is cancelled or the
// server fails.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	errChan := make(chan error, 1)
	go func() {
		logger.Info("WebDAV server listening", "address", ln.Addr().String())
		if s.config.IsHealthEnabled() {
			logger.Debug("health endpoints available",
				"health", fmt.Sprintf("http://%s/health", ln.Addr()),
				"ready", fmt.Sprintf("http://%s/health/ready", ln.Addr()),
				"stores", fmt.Sprintf("http://%s/health/stores", ln.Addr()),
			)
		}

		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			select {
			case errChan <- err:
			default:
			}
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("WebDAV server shutdown signal received")
		// Don't use the cancelled ctx as it would cause immediate shutdown
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		return s.Stop(shutdownCtx)
	case err := <-errChan:
		return fmt.Errorf("WebDAV server failed: %w", err)
	}
}

// Stop initiates graceful shutdown. It is safe to call multiple times and
// concurrently with Start.
func (s *Server) Stop(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		logger.Debug("WebDAV server shutdown initiated")

		if err := s.server.Shutdown(ctx); err != nil {
			shutdownErr = fmt.Errorf("WebDAV server shutdown error: %w", err)
			logger.Error("WebDAV server shutdown error", logger.Err(err))
		} else {
			logger.Info("WebDAV server stopped gracefully")
		}
	})
	return shutdownErr
}

// Port returns the configured TCP port.
func (s *Server) Port() int {
	return s.config.Port
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}
