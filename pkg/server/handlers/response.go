package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"time"

	"github.com/marmos91/dittodav/internal/logger"
)

const (
	statusHealthy   = "healthy"
	statusUnhealthy = "unhealthy"
)

// Response is the body of every /health endpoint. Status is "healthy" for
// a 2xx code and "unhealthy" otherwise.
type Response struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// respond writes data wrapped in a Response.
func respond(w http.ResponseWriter, code int, data any) {
	writeResponse(w, code, Response{Data: data})
}

// respondError writes a Response carrying only an error message.
func respondError(w http.ResponseWriter, code int, msg string) {
	writeResponse(w, code, Response{Error: msg})
}

func writeResponse(w http.ResponseWriter, code int, resp Response) {
	resp.Status = statusUnhealthy
	if code >= 200 && code < 300 {
		resp.Status = statusHealthy
	}
	resp.Timestamp = time.Now().UTC()

	// Encode first so a failure can still become a 500.
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(resp); err != nil {
		logger.Error("Failed to encode health response", logger.Err(err))
		http.Error(w, `{"status":"error","error":"failed to encode response"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(code)
	_, _ = w.Write(buf.Bytes())
}
