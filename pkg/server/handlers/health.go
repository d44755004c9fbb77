// Package handlers implements the health endpoints served next to WebDAV.
package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/marmos91/dittodav/pkg/registry"
	"github.com/marmos91/dittodav/pkg/store"
)

// storeCheckTimeout bounds the per-request store health checks.
const storeCheckTimeout = 5 * time.Second

// HealthHandler handles health check endpoints.
//
// Health endpoints are unauthenticated and provide:
//   - Liveness check: Is the server process running?
//   - Readiness check: Is at least one share being served?
//   - Store health: Detailed health status of all stores
type HealthHandler struct {
	registry  *registry.Registry
	startedAt time.Time
}

// NewHealthHandler creates a new health handler.
//
// The registry parameter may be nil, in which case readiness and store
// health checks will return unhealthy status.
func NewHealthHandler(registry *registry.Registry) *HealthHandler {
	return &HealthHandler{registry: registry, startedAt: time.Now()}
}

// Liveness handles GET /health. It succeeds as long as the HTTP server is
// responsive.
func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	uptime := time.Since(h.startedAt)
	respond(w, http.StatusOK, map[string]any{
		"service":    "dittodav",
		"started_at": h.startedAt.UTC().Format(time.RFC3339),
		"uptime":     uptime.Round(time.Second).String(),
		"uptime_sec": int64(uptime.Seconds()),
	})
}

// Readiness handles GET /health/ready. It returns 503 until the registry
// holds at least one share.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	if h.registry == nil {
		respondError(w, http.StatusServiceUnavailable, "registry not initialized")
		return
	}

	shareCount := h.registry.CountShares()
	if shareCount == 0 {
		respondError(w, http.StatusServiceUnavailable, "no shares configured")
		return
	}

	respond(w, http.StatusOK, map[string]any{
		"shares": shareCount,
		"stores": len(h.registry.ListStores()),
	})
}

// StoreHealth represents the health status of a single store.
type StoreHealth struct {
	Name    string   `json:"name"`
	Type    string   `json:"type"`
	Shares  []string `json:"shares"`
	Status  string   `json:"status"`
	Error   string   `json:"error,omitempty"`
	Latency string   `json:"latency,omitempty"`
}

// StoresResponse represents the detailed store health response.
type StoresResponse struct {
	Stores []StoreHealth `json:"stores"`
}

// Stores handles GET /health/stores.
//
// Stores implementing store.HealthChecker are checked; the others are
// reported healthy as long as they are registered. Returns 503 if any
// store is unhealthy.
func (h *HealthHandler) Stores(w http.ResponseWriter, r *http.Request) {
	if h.registry == nil {
		respondError(w, http.StatusServiceUnavailable, "registry not initialized")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), storeCheckTimeout)
	defer cancel()

	response := StoresResponse{Stores: make([]StoreHealth, 0)}
	allHealthy := true

	for _, name := range h.registry.ListStores() {
		health := StoreHealth{
			Name:   name,
			Shares: h.registry.ListSharesUsingStore(name),
		}

		s, err := h.registry.GetStore(name)
		if err != nil {
			health.Status = "unhealthy"
			health.Error = err.Error()
			allHealthy = false
			response.Stores = append(response.Stores, health)
			continue
		}
		health.Type = s.Type()

		if err := checkStore(ctx, s, &health); err != nil {
			health.Status = "unhealthy"
			health.Error = err.Error()
			allHealthy = false
		} else {
			health.Status = "healthy"
		}

		response.Stores = append(response.Stores, health)
	}

	if allHealthy {
		respond(w, http.StatusOK, response)
	} else {
		respond(w, http.StatusServiceUnavailable, response)
	}
}

func checkStore(ctx context.Context, s store.Store, health *StoreHealth) error {
	hc, ok := s.(store.HealthChecker)
	if !ok {
		return nil
	}
	start := time.Now()
	err := hc.HealthCheck(ctx)
	health.Latency = time.Since(start).String()
	return err
}
