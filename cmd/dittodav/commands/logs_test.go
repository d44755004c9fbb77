package commands

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// syncBuffer is a bytes.Buffer safe to read while followLogs writes to it.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func writeLog(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dittodav.log")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0644))
	return path
}

// ============================================================================
// Timestamps
// ============================================================================

func TestExtractTimestamp(t *testing.T) {
	t.Run("Text", func(t *testing.T) {
		ts, ok := extractTimestamp("[2026-03-04 10:11:12] [INFO] request completed method=COPY status=201")
		require.True(t, ok)
		assert.Equal(t, time.Date(2026, 3, 4, 10, 11, 12, 0, time.Local), ts)
	})

	t.Run("JSON", func(t *testing.T) {
		ts, ok := extractTimestamp(`{"time":"2026-03-04T10:11:12.5Z","level":"INFO","msg":"request completed"}`)
		require.True(t, ok)
		assert.True(t, ts.Equal(time.Date(2026, 3, 4, 10, 11, 12, 500_000_000, time.UTC)))
	})

	t.Run("Unparsable", func(t *testing.T) {
		for _, line := range []string{"", "goroutine 1 [running]:", `{"msg":"no time"}`, "[not a time] x"} {
			_, ok := extractTimestamp(line)
			assert.False(t, ok, line)
		}
	})
}

// ============================================================================
// showLogs
// ============================================================================

func TestShowLogs(t *testing.T) {
	path := writeLog(t,
		"[2026-03-04 10:00:00] [INFO] request completed method=PUT status=201",
		"[2026-03-04 10:05:00] [INFO] request completed method=COPY status=204",
		"[2026-03-04 10:10:00] [WARN] request completed method=MOVE status=423",
		"[2026-03-04 10:15:00] [INFO] request completed method=COPY status=201",
	)

	t.Run("LastLines", func(t *testing.T) {
		var out bytes.Buffer
		require.NoError(t, showLogs(&out, path, 2, logFilter{}))
		lines := strings.Split(strings.TrimSpace(out.String()), "\n")
		require.Len(t, lines, 2)
		assert.Contains(t, lines[0], "method=MOVE")
		assert.Contains(t, lines[1], "10:15:00")
	})

	t.Run("AllLines", func(t *testing.T) {
		var out bytes.Buffer
		require.NoError(t, showLogs(&out, path, 0, logFilter{}))
		assert.Len(t, strings.Split(strings.TrimSpace(out.String()), "\n"), 4)
	})

	t.Run("Since", func(t *testing.T) {
		var out bytes.Buffer
		since := time.Date(2026, 3, 4, 10, 10, 0, 0, time.Local)
		require.NoError(t, showLogs(&out, path, 0, logFilter{since: since}))
		lines := strings.Split(strings.TrimSpace(out.String()), "\n")
		require.Len(t, lines, 2)
		assert.Contains(t, lines[0], "10:10:00")
	})

	t.Run("Method", func(t *testing.T) {
		var out bytes.Buffer
		require.NoError(t, showLogs(&out, path, 0, logFilter{method: "copy"}))
		lines := strings.Split(strings.TrimSpace(out.String()), "\n")
		require.Len(t, lines, 2)
		for _, line := range lines {
			assert.Contains(t, line, "method=COPY")
		}
	})

	t.Run("MethodJSON", func(t *testing.T) {
		jsonPath := writeLog(t,
			`{"time":"2026-03-04T10:00:00Z","level":"INFO","msg":"request completed","method":"MKCOL"}`,
			`{"time":"2026-03-04T10:01:00Z","level":"INFO","msg":"request completed","method":"DELETE"}`,
		)
		var out bytes.Buffer
		require.NoError(t, showLogs(&out, jsonPath, 0, logFilter{method: "MKCOL"}))
		assert.Equal(t, 1, strings.Count(out.String(), "\n"))
		assert.Contains(t, out.String(), `"method":"MKCOL"`)
	})

	t.Run("MissingFile", func(t *testing.T) {
		err := showLogs(&bytes.Buffer{}, filepath.Join(t.TempDir(), "absent.log"), 10, logFilter{})
		assert.Error(t, err)
	})
}

// ============================================================================
// followLogs
// ============================================================================

func TestFollowLogs(t *testing.T) {
	path := writeLog(t,
		"[2026-03-04 10:00:00] [INFO] request completed method=PUT status=201",
		"[2026-03-04 10:01:00] [INFO] request completed method=COPY status=201",
	)

	ctx, cancel := context.WithCancel(context.Background())
	var out syncBuffer
	done := make(chan error, 1)
	go func() { done <- followLogs(ctx, &out, path, 1, logFilter{}) }()

	assert.Eventually(t, func() bool {
		return strings.Contains(out.String(), "method=COPY")
	}, 5*time.Second, 10*time.Millisecond)
	assert.NotContains(t, out.String(), "method=PUT")

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
	require.NoError(t, err)
	_, err = f.WriteString("[2026-03-04 10:02:00] [INFO] request completed method=MOVE ")
	require.NoError(t, err)
	_, err = f.WriteString("status=204\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	assert.Eventually(t, func() bool {
		return strings.Contains(out.String(), "method=MOVE status=204\n")
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("followLogs did not stop after cancel")
	}
}
