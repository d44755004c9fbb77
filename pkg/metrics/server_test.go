package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigDefaults(t *testing.T) {
	var cfg Config
	cfg.ApplyDefaults()
	assert.Equal(t, 9090, cfg.Port)

	cfg = Config{Port: 9100}
	cfg.ApplyDefaults()
	assert.Equal(t, 9100, cfg.Port)
}

func TestHandler(t *testing.T) {
	// Before InitRegistry the endpoint reports metrics as disabled.
	require.False(t, IsEnabled())
	srv := httptest.NewServer(NewHandler())
	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	_ = resp.Body.Close()
	srv.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	InitRegistry()
	InitRegistry()
	require.True(t, IsEnabled())

	srv = httptest.NewServer(NewHandler())
	defer srv.Close()

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "go_goroutines")

	resp, err = http.Get(srv.URL + "/nope")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
