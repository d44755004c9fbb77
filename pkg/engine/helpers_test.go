package engine

import (
	"context"
	"errors"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/marmos91/dittodav/pkg/registry"
	"github.com/marmos91/dittodav/pkg/store"
	"github.com/marmos91/dittodav/pkg/store/memory"
)

// ============================================================================
// Fixture
// ============================================================================

type fixture struct {
	t      *testing.T
	ctx    context.Context
	store  store.Store
	reg    *registry.Registry
	engine *Engine
}

// newFixture serves one in-memory store as the catch-all share "/".
func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	return newFixtureWith(t, memory.New(), DefaultConfig(), opts...)
}

func newFixtureWith(t *testing.T, s store.Store, cfg Config, opts ...Option) *fixture {
	t.Helper()
	ctx := context.Background()
	reg := registry.NewRegistry()
	require.NoError(t, reg.RegisterStore("main", s))
	require.NoError(t, reg.AddShare(ctx, &registry.ShareConfig{Name: "/", Store: "main"}))
	return &fixture{
		t:      t,
		ctx:    ctx,
		store:  s,
		reg:    reg,
		engine: New(reg, cfg, opts...),
	}
}

func (f *fixture) mkdir(paths ...string) {
	f.t.Helper()
	for _, p := range paths {
		require.NoError(f.t, f.store.Mkdir(f.ctx, p))
	}
}

func (f *fixture) write(p, content string) {
	f.t.Helper()
	w, err := f.store.OpenWrite(f.ctx, p)
	require.NoError(f.t, err)
	_, err = w.Write([]byte(content))
	require.NoError(f.t, err)
	require.NoError(f.t, w.Close())
}

func (f *fixture) read(p string) string {
	f.t.Helper()
	r, err := f.store.OpenRead(f.ctx, p)
	require.NoError(f.t, err)
	defer func() { _ = r.Close() }()
	data, err := io.ReadAll(r)
	require.NoError(f.t, err)
	return string(data)
}

func (f *fixture) exists(p string) bool {
	_, err := f.store.Stat(f.ctx, p)
	return err == nil
}

// tree lists the subtree under root relative to it. Collections end with
// a slash and documents carry their content.
func (f *fixture) tree(root string) []string {
	f.t.Helper()
	sel, err := store.Resolve(f.ctx, f.store, root)
	require.NoError(f.t, err)

	var node store.Node
	switch s := sel.(type) {
	case store.FoundCollection:
		node = s.Collection
	case store.FoundDocument:
		node = s.Document
	default:
		f.t.Fatalf("%s does not exist", root)
	}

	var entries []string
	require.NoError(f.t, store.Walk(f.ctx, node, func(n store.Node) error {
		rel := strings.TrimPrefix(n.Path(), store.Clean(root))
		if n.IsCollection() {
			entries = append(entries, rel+"/")
		} else {
			entries = append(entries, rel+"="+f.read(n.Path()))
		}
		return nil
	}))
	sort.Strings(entries)
	return entries
}

// seed builds a tree of the given depth under root. Every collection holds
// two documents and, above the last level, two sub-collections.
func (f *fixture) seed(root string, depth int) {
	f.t.Helper()
	f.mkdir(root)
	f.write(store.Join(root, "one.txt"), root+"/one")
	f.write(store.Join(root, "two.txt"), root+"/two")
	if depth == 0 {
		return
	}
	f.seed(store.Join(root, "left"), depth-1)
	f.seed(store.Join(root, "right"), depth-1)
}

func boolPtr(b bool) *bool { return &b }

// ============================================================================
// Store wrappers
// ============================================================================

var errInjected = errors.New("injected failure")

// faultyStore fails writes and removals of selected paths. Embedding the
// interface hides native copy and move, so the engine streams bytes.
type faultyStore struct {
	store.Store
	failWrite  map[string]bool
	failRemove map[string]bool
}

func newFaultyStore() *faultyStore {
	return &faultyStore{
		Store:      memory.New(),
		failWrite:  map[string]bool{},
		failRemove: map[string]bool{},
	}
}

func (s *faultyStore) OpenWrite(ctx context.Context, p string) (store.DocumentWriter, error) {
	if s.failWrite[store.Clean(p)] {
		return nil, errInjected
	}
	return s.Store.OpenWrite(ctx, p)
}

func (s *faultyStore) Remove(ctx context.Context, p string) error {
	if s.failRemove[store.Clean(p)] {
		return errInjected
	}
	return s.Store.Remove(ctx, p)
}

// failingMover is a memory store whose native move always fails.
type failingMover struct {
	*memory.Store
}

func (s *failingMover) MoveNode(context.Context, string, string) error {
	return errInjected
}

// blockingStore holds the first OpenRead until release is closed.
type blockingStore struct {
	store.Store
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func newBlockingStore() *blockingStore {
	return &blockingStore{
		Store:   memory.New(),
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
}

func (s *blockingStore) OpenRead(ctx context.Context, p string) (io.ReadCloser, error) {
	first := false
	s.once.Do(func() {
		first = true
		close(s.entered)
	})
	if first {
		select {
		case <-s.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return s.Store.OpenRead(ctx, p)
}

// ============================================================================
// Metrics recorder
// ============================================================================

type recordingMetrics struct {
	mu         sync.Mutex
	operations map[string]int
	strategies []string
	succeeded  int
	failed     int
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{operations: map[string]int{}}
}

func (m *recordingMetrics) ObserveOperation(method string, status int, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.operations[method] = status
}

func (m *recordingMetrics) RecordNodes(_ string, succeeded, failed int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.succeeded += succeeded
	m.failed += failed
}

func (m *recordingMetrics) RecordStrategy(strategy string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.strategies = append(m.strategies, strategy)
}
