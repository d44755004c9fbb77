package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/marmos91/dittodav/pkg/registry"
	"github.com/marmos91/dittodav/pkg/store"
	"github.com/marmos91/dittodav/pkg/store/memory"
)

// sickStore is a memory store whose health check always fails.
type sickStore struct {
	store.Store
}

func (s *sickStore) HealthCheck(context.Context) error {
	return errors.New("backend unreachable")
}

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) Response {
	t.Helper()
	var resp Response
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	return resp
}

func TestLiveness_ReturnsOK(t *testing.T) {
	handler := NewHealthHandler(nil)
	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()

	handler.Liveness(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status %d, got %d", http.StatusOK, w.Code)
	}

	resp := decodeResponse(t, w)
	if resp.Status != "healthy" {
		t.Errorf("Expected status 'healthy', got '%s'", resp.Status)
	}

	data, ok := resp.Data.(map[string]interface{})
	if !ok {
		t.Fatalf("Expected Data to be a map, got %T", resp.Data)
	}
	if data["service"] != "dittodav" {
		t.Errorf("Expected service 'dittodav', got '%v'", data["service"])
	}
	if _, ok := data["started_at"].(string); !ok {
		t.Errorf("Expected started_at string, got %T", data["started_at"])
	}
	if _, ok := data["uptime_sec"].(float64); !ok {
		t.Errorf("Expected uptime_sec number, got %T", data["uptime_sec"])
	}
}

func TestReadiness_NoRegistry_Returns503(t *testing.T) {
	handler := NewHealthHandler(nil)
	req := httptest.NewRequest("GET", "/health/ready", nil)
	w := httptest.NewRecorder()

	handler.Readiness(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected status %d, got %d", http.StatusServiceUnavailable, w.Code)
	}

	resp := decodeResponse(t, w)
	if resp.Error != "registry not initialized" {
		t.Errorf("Expected error 'registry not initialized', got '%s'", resp.Error)
	}
}

func TestReadiness_NoShares_Returns503(t *testing.T) {
	handler := NewHealthHandler(registry.NewRegistry())
	req := httptest.NewRequest("GET", "/health/ready", nil)
	w := httptest.NewRecorder()

	handler.Readiness(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected status %d, got %d", http.StatusServiceUnavailable, w.Code)
	}

	resp := decodeResponse(t, w)
	if resp.Error != "no shares configured" {
		t.Errorf("Expected error 'no shares configured', got '%s'", resp.Error)
	}
}

func TestReadiness_WithShares_ReturnsOK(t *testing.T) {
	reg := registry.NewRegistry()
	if err := reg.RegisterStore("main", memory.New()); err != nil {
		t.Fatalf("Failed to register store: %v", err)
	}
	if err := reg.AddShare(context.Background(), &registry.ShareConfig{Name: "/docs", Store: "main"}); err != nil {
		t.Fatalf("Failed to add share: %v", err)
	}

	handler := NewHealthHandler(reg)
	req := httptest.NewRequest("GET", "/health/ready", nil)
	w := httptest.NewRecorder()

	handler.Readiness(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status %d, got %d", http.StatusOK, w.Code)
	}

	resp := decodeResponse(t, w)
	data, ok := resp.Data.(map[string]interface{})
	if !ok {
		t.Fatalf("Expected Data to be a map, got %T", resp.Data)
	}
	if data["shares"].(float64) != 1 {
		t.Errorf("Expected 1 share, got %v", data["shares"])
	}
	if data["stores"].(float64) != 1 {
		t.Errorf("Expected 1 store, got %v", data["stores"])
	}
}

func TestStores_NoRegistry_Returns503(t *testing.T) {
	handler := NewHealthHandler(nil)
	req := httptest.NewRequest("GET", "/health/stores", nil)
	w := httptest.NewRecorder()

	handler.Stores(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected status %d, got %d", http.StatusServiceUnavailable, w.Code)
	}
}

func TestStores_WithHealthyStores_ReturnsOK(t *testing.T) {
	reg := registry.NewRegistry()
	if err := reg.RegisterStore("main", memory.New()); err != nil {
		t.Fatalf("Failed to register store: %v", err)
	}

	handler := NewHealthHandler(reg)
	req := httptest.NewRequest("GET", "/health/stores", nil)
	w := httptest.NewRecorder()

	handler.Stores(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status %d, got %d", http.StatusOK, w.Code)
	}

	resp := decodeResponse(t, w)
	if resp.Status != "healthy" {
		t.Errorf("Expected status 'healthy', got '%s'", resp.Status)
	}
}

func TestStores_WithFailingStore_Returns503(t *testing.T) {
	reg := registry.NewRegistry()
	if err := reg.RegisterStore("main", memory.New()); err != nil {
		t.Fatalf("Failed to register store: %v", err)
	}
	if err := reg.RegisterStore("sick", &sickStore{Store: memory.New()}); err != nil {
		t.Fatalf("Failed to register store: %v", err)
	}

	handler := NewHealthHandler(reg)
	req := httptest.NewRequest("GET", "/health/stores", nil)
	w := httptest.NewRecorder()

	handler.Stores(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected status %d, got %d", http.StatusServiceUnavailable, w.Code)
	}

	resp := decodeResponse(t, w)
	if resp.Status != "unhealthy" {
		t.Errorf("Expected status 'unhealthy', got '%s'", resp.Status)
	}

	data := resp.Data.(map[string]interface{})
	stores := data["stores"].([]interface{})
	if len(stores) != 2 {
		t.Fatalf("Expected 2 stores, got %d", len(stores))
	}
	for _, s := range stores {
		entry := s.(map[string]interface{})
		if entry["name"] == "sick" && entry["error"] != "backend unreachable" {
			t.Errorf("Expected sick store error, got %v", entry["error"])
		}
	}
}

func TestResponse_StatusFollowsCode(t *testing.T) {
	w := httptest.NewRecorder()
	respond(w, http.StatusServiceUnavailable, map[string]any{"stores": 0})

	if got := w.Header().Get("Cache-Control"); got != "no-store" {
		t.Errorf("Expected Cache-Control no-store, got %q", got)
	}
	if got := w.Header().Get("Content-Type"); got != "application/json" {
		t.Errorf("Expected JSON content type, got %q", got)
	}

	resp := decodeResponse(t, w)
	if resp.Status != "unhealthy" {
		t.Errorf("Expected status 'unhealthy' for 503, got '%s'", resp.Status)
	}
	if resp.Data == nil {
		t.Error("Expected data to be kept on an unhealthy response")
	}
	if resp.Timestamp.IsZero() {
		t.Error("Expected a timestamp")
	}
}
