package config

import (
	"context"
	"net/http"
	"path/filepath"
	"strings"
	"testing"

	"github.com/marmos91/dittodav/pkg/engine"
	"github.com/marmos91/dittodav/pkg/lock"
)

func putDocument(t *testing.T, e *engine.Engine, p, body string) {
	t.Helper()
	res, err := e.Put(context.Background(), engine.PutRequest{
		Path:          p,
		Body:          strings.NewReader(body),
		ContentLength: int64(len(body)),
	})
	if err != nil {
		t.Fatalf("Put %s failed: %v", p, err)
	}
	if res.Status != http.StatusCreated {
		t.Fatalf("Expected 201 for %s, got %d", p, res.Status)
	}
}

func TestInitialize_Defaults(t *testing.T) {
	rt, err := Initialize(context.Background(), GetDefaultConfig(), nil)
	if err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	defer func() { _ = rt.Close() }()

	if rt.DB != nil {
		t.Error("Expected no database for the default config")
	}
	if rt.Engine.LockManager() == nil {
		t.Error("Expected a lock manager when locking is enabled")
	}

	putDocument(t, rt.Engine, "/hello.txt", "hi")
	if _, err := rt.Engine.Stat(context.Background(), "/hello.txt"); err != nil {
		t.Errorf("Stat after Put failed: %v", err)
	}
}

func TestInitialize_LockingDisabled(t *testing.T) {
	cfg := GetDefaultConfig()
	disabled := false
	cfg.Lock.Enabled = &disabled

	rt, err := Initialize(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	defer func() { _ = rt.Close() }()

	if rt.Engine.LockManager() != nil {
		t.Error("Expected no lock manager when locking is disabled")
	}
}

func TestInitialize_FilesystemShares(t *testing.T) {
	dir := t.TempDir()
	cfg := GetDefaultConfig()
	cfg.Stores = map[string]StoreConfig{
		"files": {Type: "filesystem", Filesystem: FilesystemStoreConfig{Path: filepath.Join(dir, "files")}},
	}
	cfg.Shares = []ShareConfig{{Name: "/docs", Store: "files"}}

	rt, err := Initialize(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	defer func() { _ = rt.Close() }()

	putDocument(t, rt.Engine, "/docs/a.txt", "content")

	if _, err := rt.Engine.Stat(context.Background(), "/other/a.txt"); err == nil {
		t.Error("Expected paths outside every share to fail")
	}
}

func TestInitialize_MissingShareRoot(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Shares = []ShareConfig{{Name: "/", Store: "default", Root: "/does/not/exist"}}

	if _, err := Initialize(context.Background(), cfg, nil); err == nil {
		t.Fatal("Expected error for a share rooted at a missing collection")
	}
}

func TestInitialize_PersistedLocksSurviveRestart(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Database.Path = filepath.Join(t.TempDir(), "state")
	cfg.Lock.Persist = true
	cfg.Properties.Type = "badger"

	rt, err := Initialize(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	if rt.DB == nil {
		t.Fatal("Expected the state database to be opened")
	}

	res, err := rt.Engine.Lock(context.Background(), engine.LockRequest{
		Path:    "/locked.txt",
		Scope:   lock.ScopeExclusive,
		Timeout: lock.Infinite,
	})
	if err != nil {
		t.Fatalf("Lock failed: %v", err)
	}
	token := res.Lock.Token

	if err := rt.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	// The memory store forgets the document, but the lock is restored.
	rt, err = Initialize(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("Second Initialize failed: %v", err)
	}
	defer func() { _ = rt.Close() }()

	if _, ok := rt.Engine.LockManager().Get(token); !ok {
		t.Errorf("Expected lock %s to be restored", token)
	}
}

func TestInitialize_SQLiteProperties(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Properties.Type = "sqlite"
	cfg.Properties.SQLitePath = filepath.Join(t.TempDir(), "props.db")

	rt, err := Initialize(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	if rt.DB != nil {
		t.Error("Expected no badger database for sqlite properties")
	}
	if len(rt.closers) != 1 {
		t.Errorf("Expected the sqlite store to be owned by the runtime, got %d closers", len(rt.closers))
	}

	putDocument(t, rt.Engine, "/doc.txt", "content")

	if err := rt.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
}
