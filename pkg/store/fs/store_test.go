package fs

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	daverrors "github.com/marmos91/dittodav/pkg/errors"
)

func TestNew(t *testing.T) {
	t.Run("CreatesBaseDir", func(t *testing.T) {
		base := filepath.Join(t.TempDir(), "nested", "root")
		s, err := NewWithPath(base)
		require.NoError(t, err)

		fi, err := os.Stat(base)
		require.NoError(t, err)
		assert.True(t, fi.IsDir())
		assert.Equal(t, "filesystem", s.Type())
	})

	t.Run("EmptyBasePath", func(t *testing.T) {
		_, err := New(Config{})
		assert.Error(t, err)
	})

	t.Run("BaseIsFile", func(t *testing.T) {
		file := filepath.Join(t.TempDir(), "file")
		require.NoError(t, os.WriteFile(file, []byte("x"), 0644))
		_, err := New(Config{BasePath: file})
		assert.Error(t, err)
	})

	t.Run("SameDirectorySameID", func(t *testing.T) {
		base := t.TempDir()
		a, err := NewWithPath(base)
		require.NoError(t, err)
		b, err := NewWithPath(base + "/.")
		require.NoError(t, err)
		assert.Equal(t, a.ID(), b.ID())
	})
}

func TestPathsStayInsideBase(t *testing.T) {
	base := t.TempDir()
	s, err := NewWithPath(base)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(base, "etc", "passwd"), s.osPath("/../../etc/passwd"))
}

func TestTempFilesHiddenFromList(t *testing.T) {
	ctx := context.Background()
	s, err := NewWithPath(t.TempDir())
	require.NoError(t, err)

	w, err := s.OpenWrite(ctx, "/pending.txt")
	require.NoError(t, err)
	_, err = io.WriteString(w, "in flight")
	require.NoError(t, err)

	infos, err := s.List(ctx, "/")
	require.NoError(t, err)
	assert.Empty(t, infos)

	require.NoError(t, w.Close())
	infos, err = s.List(ctx, "/")
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, "/pending.txt", infos[0].Path)

	entries, err := os.ReadDir(s.basePath)
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, strings.HasPrefix(e.Name(), tempPrefix), "temp file left behind: %s", e.Name())
	}
}

func TestFileMode(t *testing.T) {
	ctx := context.Background()
	cfg := DefaultConfig(t.TempDir())
	cfg.FileMode = 0600
	s, err := New(cfg)
	require.NoError(t, err)

	w, err := s.OpenWrite(ctx, "/secret")
	require.NoError(t, err)
	require.NoError(t, w.Close())

	fi, err := os.Stat(s.osPath("/secret"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), fi.Mode().Perm())
}

func TestHealthCheck(t *testing.T) {
	base := filepath.Join(t.TempDir(), "root")
	s, err := NewWithPath(base)
	require.NoError(t, err)

	assert.NoError(t, s.HealthCheck(context.Background()))

	require.NoError(t, os.RemoveAll(base))
	assert.Error(t, s.HealthCheck(context.Background()))
}

func TestClosed(t *testing.T) {
	s, err := NewWithPath(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, err = s.Stat(context.Background(), "/")
	assert.True(t, daverrors.HasCode(err, daverrors.ErrStoreClosed))
}
