package commands

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/marmos91/dittodav/pkg/server/handlers"
)

func TestFetchStatus(t *testing.T) {
	client := &http.Client{Timeout: time.Second}

	t.Run("Healthy", func(t *testing.T) {
		h := handlers.NewHealthHandler(nil)
		srv := httptest.NewServer(http.HandlerFunc(h.Liveness))
		defer srv.Close()

		status := fetchStatus(client, srv.URL+"/")
		assert.True(t, status.Running)
		assert.True(t, status.Healthy)
		assert.NotEmpty(t, status.StartedAt)
		assert.Equal(t, "0s", status.Uptime)
		assert.Equal(t, "running", status.Rows()[0][0])
	})

	t.Run("InvalidBody", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("<html>"))
		}))
		defer srv.Close()

		status := fetchStatus(client, srv.URL)
		assert.True(t, status.Running)
		assert.False(t, status.Healthy)
		assert.Equal(t, "unhealthy", status.Rows()[0][0])
	})

	t.Run("NotRunning", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()

		status := fetchStatus(client, url)
		assert.False(t, status.Running)
		assert.Equal(t, "stopped", status.Rows()[0][0])
	})
}
