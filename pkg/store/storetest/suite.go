package storetest

import (
	"io"
	"testing"

	"github.com/marmos91/dittodav/pkg/store"
)

// StoreFactory creates a fresh, empty store for each test.
type StoreFactory func(t *testing.T) store.Store

// RunConformanceSuite runs the full conformance suite against the provided
// factory. Each test gets a fresh store instance.
//
// The suite covers three categories:
//   - CollectionOps: mkdir, listing, nesting, non-empty removal
//   - DocumentOps: write, read back, overwrite, abort, type mismatches
//   - NativeOps: CopyDocument and MoveNode when the backend has them
func RunConformanceSuite(t *testing.T, factory StoreFactory) {
	t.Helper()

	t.Run("CollectionOps", func(t *testing.T) {
		runCollectionOpsTests(t, factory)
	})

	t.Run("DocumentOps", func(t *testing.T) {
		runDocumentOpsTests(t, factory)
	})

	t.Run("NativeOps", func(t *testing.T) {
		runNativeOpsTests(t, factory)
	})
}

// writeDocument writes content to p and commits it.
func writeDocument(t *testing.T, s store.Store, p, content string) {
	t.Helper()

	w, err := s.OpenWrite(t.Context(), p)
	if err != nil {
		t.Fatalf("OpenWrite(%q) failed: %v", p, err)
	}
	if _, err := io.WriteString(w, content); err != nil {
		t.Fatalf("Write(%q) failed: %v", p, err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close(%q) failed: %v", p, err)
	}
}

// readDocument returns the content of the document at p.
func readDocument(t *testing.T, s store.Store, p string) string {
	t.Helper()

	r, err := s.OpenRead(t.Context(), p)
	if err != nil {
		t.Fatalf("OpenRead(%q) failed: %v", p, err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("ReadAll(%q) failed: %v", p, err)
	}
	return string(data)
}

// mkdir creates the collection at p.
func mkdir(t *testing.T, s store.Store, p string) {
	t.Helper()

	if err := s.Mkdir(t.Context(), p); err != nil {
		t.Fatalf("Mkdir(%q) failed: %v", p, err)
	}
}
