// Package propstest provides a behaviour suite shared by every props.Store
// implementation.
package propstest

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/dittodav/pkg/props"
)

// Factory returns a fresh, empty store for one test.
type Factory func(t *testing.T) props.Store

// RunSuite runs the shared behaviour tests against stores from factory.
func RunSuite(t *testing.T, factory Factory) {
	t.Run("MissingKeyIsEmpty", func(t *testing.T) { testMissingKey(t, factory) })
	t.Run("SetGetRemove", func(t *testing.T) { testSetGetRemove(t, factory) })
	t.Run("Copy", func(t *testing.T) { testCopy(t, factory) })
	t.Run("Move", func(t *testing.T) { testMove(t, factory) })
	t.Run("Delete", func(t *testing.T) { testDelete(t, factory) })
	t.Run("ETags", func(t *testing.T) { testETags(t, factory) })
}

var (
	src = props.Key{StoreID: "memory:1", Path: "/a.txt"}
	dst = props.Key{StoreID: "memory:1", Path: "/b.txt"}
)

func testMissingKey(t *testing.T, factory Factory) {
	ctx := context.Background()
	s := factory(t)

	got, err := s.Get(ctx, src)
	require.NoError(t, err)
	assert.Empty(t, got)

	etag, err := s.ETag(ctx, src)
	require.NoError(t, err)
	assert.Empty(t, etag)

	assert.NoError(t, s.Remove(ctx, src, "{DAV:}x"))
	assert.NoError(t, s.Delete(ctx, src))
}

func testSetGetRemove(t *testing.T, factory Factory) {
	ctx := context.Background()
	s := factory(t)

	require.NoError(t, s.Set(ctx, src, "{urn:x}author", "alice"))
	require.NoError(t, s.Set(ctx, src, "{urn:x}title", "report"))

	got, err := s.Get(ctx, src)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"{urn:x}author": "alice", "{urn:x}title": "report"}, got)

	// Mutating the returned map must not leak into the store.
	got["{urn:x}author"] = "mallory"

	require.NoError(t, s.Remove(ctx, src, "{urn:x}title"))
	got, err = s.Get(ctx, src)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"{urn:x}author": "alice"}, got)
}

func testCopy(t *testing.T, factory Factory) {
	ctx := context.Background()
	s := factory(t)

	require.NoError(t, s.Set(ctx, src, "{urn:x}author", "alice"))
	srcTag, err := s.RefreshETag(ctx, src)
	require.NoError(t, err)
	require.NoError(t, s.Set(ctx, dst, "{urn:x}stale", "yes"))

	require.NoError(t, s.Copy(ctx, src, dst))

	got, err := s.Get(ctx, dst)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"{urn:x}author": "alice"}, got)

	dstTag, err := s.ETag(ctx, dst)
	require.NoError(t, err)
	assert.NotEmpty(t, dstTag)
	assert.NotEqual(t, srcTag, dstTag)

	kept, err := s.Get(ctx, src)
	require.NoError(t, err)
	assert.Equal(t, "alice", kept["{urn:x}author"])
}

func testMove(t *testing.T, factory Factory) {
	ctx := context.Background()
	s := factory(t)

	require.NoError(t, s.Set(ctx, src, "{urn:x}author", "alice"))
	require.NoError(t, s.Move(ctx, src, dst))

	got, err := s.Get(ctx, dst)
	require.NoError(t, err)
	assert.Equal(t, "alice", got["{urn:x}author"])

	gone, err := s.Get(ctx, src)
	require.NoError(t, err)
	assert.Empty(t, gone)

	etag, err := s.ETag(ctx, dst)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(etag, `"`))
}

func testDelete(t *testing.T, factory Factory) {
	ctx := context.Background()
	s := factory(t)

	require.NoError(t, s.Set(ctx, src, "{urn:x}author", "alice"))
	_, err := s.RefreshETag(ctx, src)
	require.NoError(t, err)

	require.NoError(t, s.Delete(ctx, src))

	got, err := s.Get(ctx, src)
	require.NoError(t, err)
	assert.Empty(t, got)
	etag, err := s.ETag(ctx, src)
	require.NoError(t, err)
	assert.Empty(t, etag)
}

func testETags(t *testing.T, factory Factory) {
	ctx := context.Background()
	s := factory(t)

	first, err := s.RefreshETag(ctx, src)
	require.NoError(t, err)
	second, err := s.RefreshETag(ctx, src)
	require.NoError(t, err)
	assert.NotEqual(t, first, second)

	current, err := s.ETag(ctx, src)
	require.NoError(t, err)
	assert.Equal(t, second, current)

	other := props.Key{StoreID: "memory:2", Path: src.Path}
	etag, err := s.ETag(ctx, other)
	require.NoError(t, err)
	assert.Empty(t, etag, "records are scoped by store")
}
