package storetest

import (
	"testing"

	daverrors "github.com/marmos91/dittodav/pkg/errors"
	"github.com/marmos91/dittodav/pkg/store"
)

// runNativeOpsTests runs the optional native operation tests. Backends
// without the capability skip them.
func runNativeOpsTests(t *testing.T, factory StoreFactory) {
	t.Run("CopyDocument", func(t *testing.T) { testCopyDocument(t, factory) })
	t.Run("MoveDocument", func(t *testing.T) { testMoveDocument(t, factory) })
	t.Run("MoveCollection", func(t *testing.T) { testMoveCollection(t, factory) })
	t.Run("MoveReplacesDocument", func(t *testing.T) { testMoveReplacesDocument(t, factory) })
	t.Run("MoveOntoCollection", func(t *testing.T) { testMoveOntoCollection(t, factory) })
	t.Run("MoveIntoItself", func(t *testing.T) { testMoveIntoItself(t, factory) })
}

func copier(t *testing.T, s store.Store) store.NativeCopier {
	t.Helper()
	c, ok := s.(store.NativeCopier)
	if !ok {
		t.Skipf("%s store has no native copy", s.Type())
	}
	return c
}

func mover(t *testing.T, s store.Store) store.NativeMover {
	t.Helper()
	m, ok := s.(store.NativeMover)
	if !ok {
		t.Skipf("%s store has no native move", s.Type())
	}
	return m
}

func testCopyDocument(t *testing.T, factory StoreFactory) {
	s := factory(t)
	c := copier(t, s)
	writeDocument(t, s, "/src.txt", "payload")
	mkdir(t, s, "/dst")

	if err := c.CopyDocument(t.Context(), "/src.txt", "/dst/copy.txt"); err != nil {
		t.Fatalf("CopyDocument failed: %v", err)
	}
	if got := readDocument(t, s, "/dst/copy.txt"); got != "payload" {
		t.Errorf("copy content = %q, want payload", got)
	}
	if got := readDocument(t, s, "/src.txt"); got != "payload" {
		t.Errorf("source content = %q, want payload", got)
	}
}

func testMoveDocument(t *testing.T, factory StoreFactory) {
	s := factory(t)
	m := mover(t, s)
	writeDocument(t, s, "/src.txt", "payload")

	if err := m.MoveNode(t.Context(), "/src.txt", "/moved.txt"); err != nil {
		t.Fatalf("MoveNode failed: %v", err)
	}
	if got := readDocument(t, s, "/moved.txt"); got != "payload" {
		t.Errorf("moved content = %q, want payload", got)
	}
	if _, err := s.Stat(t.Context(), "/src.txt"); !daverrors.IsNotFoundError(err) {
		t.Errorf("source after move: got %v, want NotFound", err)
	}
}

func testMoveCollection(t *testing.T, factory StoreFactory) {
	s := factory(t)
	m := mover(t, s)
	mkdir(t, s, "/tree")
	mkdir(t, s, "/tree/sub")
	writeDocument(t, s, "/tree/a.txt", "a")
	writeDocument(t, s, "/tree/sub/b.txt", "b")

	if err := m.MoveNode(t.Context(), "/tree", "/renamed"); err != nil {
		t.Fatalf("MoveNode failed: %v", err)
	}
	if got := readDocument(t, s, "/renamed/a.txt"); got != "a" {
		t.Errorf("/renamed/a.txt = %q, want a", got)
	}
	if got := readDocument(t, s, "/renamed/sub/b.txt"); got != "b" {
		t.Errorf("/renamed/sub/b.txt = %q, want b", got)
	}
	if _, err := s.Stat(t.Context(), "/tree"); !daverrors.IsNotFoundError(err) {
		t.Errorf("source after move: got %v, want NotFound", err)
	}
}

func testMoveReplacesDocument(t *testing.T, factory StoreFactory) {
	s := factory(t)
	m := mover(t, s)
	writeDocument(t, s, "/a.txt", "a")
	writeDocument(t, s, "/b.txt", "b")

	if err := m.MoveNode(t.Context(), "/a.txt", "/b.txt"); err != nil {
		t.Fatalf("MoveNode onto document failed: %v", err)
	}
	if got := readDocument(t, s, "/b.txt"); got != "a" {
		t.Errorf("destination content = %q, want a", got)
	}
	if _, err := s.Stat(t.Context(), "/a.txt"); !daverrors.IsNotFoundError(err) {
		t.Errorf("source after move: got %v, want NotFound", err)
	}
}

func testMoveOntoCollection(t *testing.T, factory StoreFactory) {
	s := factory(t)
	m := mover(t, s)
	writeDocument(t, s, "/a.txt", "a")
	mkdir(t, s, "/dir")

	err := m.MoveNode(t.Context(), "/a.txt", "/dir")
	if !daverrors.HasCode(err, daverrors.ErrAlreadyExists) {
		t.Errorf("MoveNode onto collection: got %v, want AlreadyExists", err)
	}
	if got := readDocument(t, s, "/a.txt"); got != "a" {
		t.Errorf("source content = %q, want a", got)
	}
}

func testMoveIntoItself(t *testing.T, factory StoreFactory) {
	s := factory(t)
	m := mover(t, s)
	mkdir(t, s, "/tree")

	err := m.MoveNode(t.Context(), "/tree", "/tree/inner")
	if !daverrors.HasCode(err, daverrors.ErrForbidden) {
		t.Errorf("MoveNode into itself: got %v, want Forbidden", err)
	}
}
