package remote

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/studio-b12/gowebdav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/dittodav/pkg/engine"
	daverrors "github.com/marmos91/dittodav/pkg/errors"
	"github.com/marmos91/dittodav/pkg/registry"
	"github.com/marmos91/dittodav/pkg/store"
	"github.com/marmos91/dittodav/pkg/store/memory"
)

// ============================================================================
// Fake client
// ============================================================================

type fakeNode struct {
	dir  bool
	data []byte
}

type fakeInfo struct {
	name string
	node *fakeNode
}

func (i fakeInfo) Name() string       { return i.name }
func (i fakeInfo) Size() int64        { return int64(len(i.node.data)) }
func (i fakeInfo) Mode() os.FileMode  { return 0o644 }
func (i fakeInfo) ModTime() time.Time { return time.Time{} }
func (i fakeInfo) IsDir() bool        { return i.node.dir }
func (i fakeInfo) Sys() any           { return nil }

// fakeClient is an in-memory remote server keyed by client path.
type fakeClient struct {
	mu         sync.Mutex
	nodes      map[string]*fakeNode
	connectErr error
	failWrite  string

	// rejectWrite fails the PUT before any of the body is read.
	rejectWrite string
}

func newFakeClient() *fakeClient {
	return &fakeClient{nodes: map[string]*fakeNode{"/": {dir: true}}}
}

func notFound(op, p string) error {
	return &os.PathError{Op: op, Path: p, Err: gowebdav.StatusError{Status: http.StatusNotFound}}
}

func (c *fakeClient) Connect() error { return c.connectErr }

func (c *fakeClient) Stat(p string) (os.FileInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	n, ok := c.nodes[store.Clean(p)]
	if !ok {
		return nil, notFound("Stat", p)
	}
	return fakeInfo{name: path.Base(p), node: n}, nil
}

func (c *fakeClient) Mkdir(p string, _ os.FileMode) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	p = store.Clean(p)
	if parent, ok := c.nodes[path.Dir(p)]; !ok || !parent.dir {
		return &os.PathError{Op: "Mkdir", Path: p, Err: gowebdav.StatusError{Status: http.StatusConflict}}
	}
	c.nodes[p] = &fakeNode{dir: true}
	return nil
}

func (c *fakeClient) WriteStream(p string, stream io.Reader, _ os.FileMode) error {
	if store.Clean(p) == c.rejectWrite {
		return &os.PathError{Op: "WriteStream", Path: p, Err: gowebdav.StatusError{Status: http.StatusForbidden}}
	}
	data, err := io.ReadAll(stream)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	p = store.Clean(p)
	if p == c.failWrite {
		return &os.PathError{Op: "WriteStream", Path: p, Err: gowebdav.StatusError{Status: http.StatusInsufficientStorage}}
	}
	c.nodes[p] = &fakeNode{data: data}
	return nil
}

func (c *fakeClient) RemoveAll(p string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	p = store.Clean(p)
	if _, ok := c.nodes[p]; !ok {
		return notFound("RemoveAll", p)
	}
	for k := range c.nodes {
		if store.IsWithin(k, p) {
			delete(c.nodes, k)
		}
	}
	return nil
}

func (c *fakeClient) node(p string) (*fakeNode, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	n, ok := c.nodes[p]
	return n, ok
}

// ============================================================================
// Test Helpers
// ============================================================================

const remoteBase = "http://remote.example/dav"

func newTestFactory(t *testing.T, client Client) *Factory {
	t.Helper()
	f, err := NewFactory(Config{
		Enabled:   true,
		Endpoints: []Endpoint{{Name: "backup", URL: remoteBase}},
	}, nil, WithClientFunc(func(Endpoint) Client { return client }))
	require.NoError(t, err)
	return f
}

func newTestEngine(t *testing.T, f engine.RemoteActionsFactory) (*engine.Engine, *memory.Store) {
	t.Helper()
	s := memory.New()
	reg := registry.NewRegistry()
	require.NoError(t, reg.RegisterStore("mem", s))
	require.NoError(t, reg.AddShare(context.Background(), &registry.ShareConfig{Name: "/", Store: "mem"}))
	return engine.New(reg, engine.DefaultConfig(), engine.WithRemoteFactory(f)), s
}

func writeDoc(t *testing.T, s store.Store, p, content string) {
	t.Helper()
	w, err := s.OpenWrite(context.Background(), p)
	require.NoError(t, err)
	_, err = w.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, w.Close())
}

func seedTree(t *testing.T, s store.Store) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, s.Mkdir(ctx, "/src"))
	require.NoError(t, s.Mkdir(ctx, "/src/sub"))
	writeDoc(t, s, "/src/a.txt", "alpha")
	writeDoc(t, s, "/src/sub/b.txt", "bravo")
}

func remoteDest(t *testing.T, p string) engine.Destination {
	t.Helper()
	u, err := url.Parse(remoteBase + p)
	require.NoError(t, err)
	return engine.Destination{URL: u}
}

func boolPtr(b bool) *bool { return &b }

// ============================================================================
// Factory Tests
// ============================================================================

func TestFactoryMatching(t *testing.T) {
	f := newTestFactory(t, newFakeClient())
	ctx := context.Background()

	tests := []struct {
		name     string
		dest     string
		accepted bool
	}{
		{"UnderBase", "http://remote.example/dav/x", true},
		{"BaseItself", "http://remote.example/dav", true},
		{"HostCaseInsensitive", "http://REMOTE.example/dav/x", true},
		{"OtherHost", "http://elsewhere.example/dav/x", false},
		{"OtherScheme", "https://remote.example/dav/x", false},
		{"OutsideBase", "http://remote.example/other/x", false},
		{"PrefixNotSegment", "http://remote.example/davx", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, err := url.Parse(tt.dest)
			require.NoError(t, err)
			actions, err := f.NewActions(ctx, u, false)
			require.NoError(t, err)
			if tt.accepted {
				require.NotNil(t, actions)
				assert.Equal(t, engine.StrategyRemote, actions.Name())
				assert.Empty(t, actions.StoreID())
			} else {
				assert.Nil(t, actions)
			}
		})
	}
}

func TestFactoryRejectsRelativeURL(t *testing.T) {
	_, err := NewFactory(Config{Endpoints: []Endpoint{{Name: "bad", URL: "/dav"}}}, nil)
	assert.Error(t, err)
}

func TestFactoryConnectFailureIsBadGateway(t *testing.T) {
	client := newFakeClient()
	client.connectErr = errors.New("connection refused")
	e, s := newTestEngine(t, newTestFactory(t, client))
	seedTree(t, s)

	_, err := e.Copy(context.Background(), engine.TransferRequest{
		Source:      "/src",
		Destination: remoteDest(t, "/dst"),
		Depth:       engine.DepthInfinity,
	})
	require.Error(t, err)
	assert.Equal(t, http.StatusBadGateway, daverrors.StatusOf(err))
}

// ============================================================================
// Transfer Tests
// ============================================================================

func TestCopyTreeToRemote(t *testing.T) {
	client := newFakeClient()
	e, s := newTestEngine(t, newTestFactory(t, client))
	seedTree(t, s)

	res, err := e.Copy(context.Background(), engine.TransferRequest{
		Source:      "/src",
		Destination: remoteDest(t, "/dst"),
		Depth:       engine.DepthInfinity,
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, res.Status)
	assert.Equal(t, 4, res.Nodes)

	dst, ok := client.node("/dst")
	require.True(t, ok)
	assert.True(t, dst.dir)

	a, ok := client.node("/dst/a.txt")
	require.True(t, ok)
	assert.Equal(t, "alpha", string(a.data))

	b, ok := client.node("/dst/sub/b.txt")
	require.True(t, ok)
	assert.Equal(t, "bravo", string(b.data))

	_, err = s.Stat(context.Background(), "/src/sub/b.txt")
	assert.NoError(t, err, "copy keeps the source")
}

func TestMoveToRemoteRemovesSource(t *testing.T) {
	client := newFakeClient()
	e, s := newTestEngine(t, newTestFactory(t, client))
	seedTree(t, s)

	res, err := e.Move(context.Background(), engine.TransferRequest{
		Source:      "/src",
		Destination: remoteDest(t, "/dst"),
		Depth:       engine.DepthInfinity,
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, res.Status)

	_, err = s.Stat(context.Background(), "/src")
	assert.True(t, daverrors.IsNotFoundError(err))
	_, ok := client.node("/dst/sub/b.txt")
	assert.True(t, ok)
}

func TestCopyToRemoteOverwrite(t *testing.T) {
	client := newFakeClient()
	e, s := newTestEngine(t, newTestFactory(t, client))
	writeDoc(t, s, "/a.txt", "new")
	client.nodes["/a.txt"] = &fakeNode{data: []byte("old")}

	t.Run("OverwriteFalse", func(t *testing.T) {
		_, err := e.Copy(context.Background(), engine.TransferRequest{
			Source:      "/a.txt",
			Destination: remoteDest(t, "/a.txt"),
			Overwrite:   boolPtr(false),
		})
		require.Error(t, err)
		assert.Equal(t, http.StatusPreconditionFailed, daverrors.StatusOf(err))

		n, _ := client.node("/a.txt")
		assert.Equal(t, "old", string(n.data))
	})

	t.Run("OverwriteTrue", func(t *testing.T) {
		res, err := e.Copy(context.Background(), engine.TransferRequest{
			Source:      "/a.txt",
			Destination: remoteDest(t, "/a.txt"),
			Overwrite:   boolPtr(true),
		})
		require.NoError(t, err)
		assert.Equal(t, http.StatusNoContent, res.Status)

		n, _ := client.node("/a.txt")
		assert.Equal(t, "new", string(n.data))
	})
}

func TestCopyToRemoteMissingParent(t *testing.T) {
	client := newFakeClient()
	e, s := newTestEngine(t, newTestFactory(t, client))
	writeDoc(t, s, "/a.txt", "x")

	_, err := e.Copy(context.Background(), engine.TransferRequest{
		Source:      "/a.txt",
		Destination: remoteDest(t, "/missing/a.txt"),
	})
	require.Error(t, err)
	assert.Equal(t, http.StatusConflict, daverrors.StatusOf(err))
}

func TestCopyToRemotePartialFailure(t *testing.T) {
	client := newFakeClient()
	client.failWrite = "/dst/a.txt"
	e, s := newTestEngine(t, newTestFactory(t, client))
	seedTree(t, s)

	res, err := e.Copy(context.Background(), engine.TransferRequest{
		Source:      "/src",
		Destination: remoteDest(t, "/dst"),
		Depth:       engine.DepthInfinity,
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusMultiStatus, res.Status)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, remoteBase+"/dst/a.txt", res.Failures[0].Path)
	assert.Equal(t, http.StatusBadGateway, res.Failures[0].Status)

	_, ok := client.node("/dst/sub/b.txt")
	assert.True(t, ok, "other members are still copied")
}

func TestCopyToRemoteRejectedBeforeBody(t *testing.T) {
	client := newFakeClient()
	client.rejectWrite = "/dst.txt"
	e, s := newTestEngine(t, newTestFactory(t, client))
	writeDoc(t, s, "/a.txt", strings.Repeat("x", 256<<10))

	for range 20 {
		res, err := e.Copy(context.Background(), engine.TransferRequest{
			Source:      "/a.txt",
			Destination: remoteDest(t, "/dst.txt"),
			Depth:       engine.DepthInfinity,
		})
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadGateway, res.Status)
	}
	_, ok := client.node("/dst.txt")
	assert.False(t, ok)
}

func TestDeclinedDestinationFallsBackToLocalShare(t *testing.T) {
	e, s := newTestEngine(t, newTestFactory(t, newFakeClient()))
	writeDoc(t, s, "/a.txt", "local")

	u, err := url.Parse("http://this-server.example/b.txt")
	require.NoError(t, err)
	res, err := e.Copy(context.Background(), engine.TransferRequest{
		Source:      "/a.txt",
		Destination: engine.Destination{URL: u},
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, res.Status)

	info, err := s.Stat(context.Background(), "/b.txt")
	require.NoError(t, err)
	assert.Equal(t, int64(len("local")), info.Size)
}

// ============================================================================
// gowebdav Client Tests
// ============================================================================

// davBackend is a minimal WebDAV server for the real gowebdav client. It
// answers MKCOL on an existing collection with 201.
type davBackend struct {
	mu     sync.Mutex
	prefix string
	nodes  map[string]*fakeNode
}

func (b *davBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p := store.Clean(strings.TrimPrefix(r.URL.Path, b.prefix))

	b.mu.Lock()
	defer b.mu.Unlock()

	switch r.Method {
	case http.MethodOptions:
		w.Header().Set("DAV", "1")
		w.WriteHeader(http.StatusOK)
	case "PROPFIND":
		n, ok := b.nodes[p]
		if !ok {
			http.NotFound(w, r)
			return
		}
		prop := `<D:resourcetype><D:collection/></D:resourcetype>`
		if !n.dir {
			prop = fmt.Sprintf(`<D:resourcetype/><D:getcontentlength>%d</D:getcontentlength>`, len(n.data))
		}
		w.Header().Set("Content-Type", `application/xml; charset="utf-8"`)
		w.WriteHeader(http.StatusMultiStatus)
		_, _ = fmt.Fprintf(w, `<?xml version="1.0" encoding="utf-8"?>`+
			`<D:multistatus xmlns:D="DAV:"><D:response><D:href>%s</D:href>`+
			`<D:propstat><D:prop>%s</D:prop><D:status>HTTP/1.1 200 OK</D:status></D:propstat>`+
			`</D:response></D:multistatus>`, r.URL.Path, prop)
	case "MKCOL":
		b.nodes[p] = &fakeNode{dir: true}
		w.WriteHeader(http.StatusCreated)
	case http.MethodPut:
		data, err := io.ReadAll(r.Body)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		b.nodes[p] = &fakeNode{data: data}
		w.WriteHeader(http.StatusCreated)
	case http.MethodDelete:
		delete(b.nodes, p)
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func TestGowebdavClient(t *testing.T) {
	backend := &davBackend{prefix: "/dav", nodes: map[string]*fakeNode{"/": {dir: true}}}
	srv := httptest.NewServer(backend)
	defer srv.Close()

	f, err := NewFactory(Config{
		Enabled:   true,
		Endpoints: []Endpoint{{Name: "test", URL: srv.URL + "/dav", Timeout: 5 * time.Second}},
	}, nil)
	require.NoError(t, err)

	e, s := newTestEngine(t, f)
	writeDoc(t, s, "/report.txt", "quarterly numbers")

	u, err := url.Parse(srv.URL + "/dav/report.txt")
	require.NoError(t, err)
	res, err := e.Copy(context.Background(), engine.TransferRequest{
		Source:      "/report.txt",
		Destination: engine.Destination{URL: u},
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, res.Status)

	backend.mu.Lock()
	n, ok := backend.nodes["/report.txt"]
	backend.mu.Unlock()
	require.True(t, ok)
	assert.True(t, bytes.Equal([]byte("quarterly numbers"), n.data))

	actions, err := f.NewActions(context.Background(), u, false)
	require.NoError(t, err)
	target, err := actions.Resolve(context.Background(), "/dav/report.txt")
	require.NoError(t, err)
	assert.IsType(t, &engine.DocumentTarget{}, target)

	target, err = actions.Resolve(context.Background(), "/dav/absent.txt")
	require.NoError(t, err)
	assert.IsType(t, &engine.MissingTarget{}, target)
}
