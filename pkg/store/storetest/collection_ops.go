package storetest

import (
	"testing"

	daverrors "github.com/marmos91/dittodav/pkg/errors"
)

// runCollectionOpsTests runs all collection conformance tests.
func runCollectionOpsTests(t *testing.T, factory StoreFactory) {
	t.Run("RootExists", func(t *testing.T) { testRootExists(t, factory) })
	t.Run("Mkdir", func(t *testing.T) { testMkdir(t, factory) })
	t.Run("MkdirExisting", func(t *testing.T) { testMkdirExisting(t, factory) })
	t.Run("MkdirMissingParent", func(t *testing.T) { testMkdirMissingParent(t, factory) })
	t.Run("ListSorted", func(t *testing.T) { testListSorted(t, factory) })
	t.Run("ListDocument", func(t *testing.T) { testListDocument(t, factory) })
	t.Run("RemoveEmpty", func(t *testing.T) { testRemoveEmpty(t, factory) })
	t.Run("RemoveNonEmpty", func(t *testing.T) { testRemoveNonEmpty(t, factory) })
	t.Run("RemoveRoot", func(t *testing.T) { testRemoveRoot(t, factory) })
}

func testRootExists(t *testing.T, factory StoreFactory) {
	s := factory(t)

	info, err := s.Stat(t.Context(), "/")
	if err != nil {
		t.Fatalf("Stat(/) failed: %v", err)
	}
	if !info.IsCollection {
		t.Error("root should be a collection")
	}
	if info.Path != "/" {
		t.Errorf("Path = %q, want /", info.Path)
	}
}

func testMkdir(t *testing.T, factory StoreFactory) {
	s := factory(t)
	mkdir(t, s, "/a")
	mkdir(t, s, "/a/b")

	info, err := s.Stat(t.Context(), "/a/b")
	if err != nil {
		t.Fatalf("Stat(/a/b) failed: %v", err)
	}
	if !info.IsCollection {
		t.Error("/a/b should be a collection")
	}
	if info.Name() != "b" {
		t.Errorf("Name = %q, want b", info.Name())
	}
}

func testMkdirExisting(t *testing.T, factory StoreFactory) {
	s := factory(t)
	mkdir(t, s, "/a")

	err := s.Mkdir(t.Context(), "/a")
	if !daverrors.HasCode(err, daverrors.ErrAlreadyExists) {
		t.Errorf("Mkdir existing: got %v, want AlreadyExists", err)
	}
}

func testMkdirMissingParent(t *testing.T, factory StoreFactory) {
	s := factory(t)

	err := s.Mkdir(t.Context(), "/missing/child")
	if !daverrors.HasCode(err, daverrors.ErrConflict) {
		t.Errorf("Mkdir missing parent: got %v, want Conflict", err)
	}
}

func testListSorted(t *testing.T, factory StoreFactory) {
	s := factory(t)
	mkdir(t, s, "/dir")
	writeDocument(t, s, "/dir/c.txt", "c")
	mkdir(t, s, "/dir/b")
	writeDocument(t, s, "/dir/a.txt", "a")
	writeDocument(t, s, "/dir/b/nested.txt", "nested")

	infos, err := s.List(t.Context(), "/dir")
	if err != nil {
		t.Fatalf("List(/dir) failed: %v", err)
	}

	want := []struct {
		path         string
		isCollection bool
	}{
		{"/dir/a.txt", false},
		{"/dir/b", true},
		{"/dir/c.txt", false},
	}
	if len(infos) != len(want) {
		t.Fatalf("List returned %d entries, want %d: %+v", len(infos), len(want), infos)
	}
	for i, w := range want {
		if infos[i].Path != w.path || infos[i].IsCollection != w.isCollection {
			t.Errorf("entry %d = {%s %v}, want {%s %v}", i, infos[i].Path, infos[i].IsCollection, w.path, w.isCollection)
		}
	}
}

func testListDocument(t *testing.T, factory StoreFactory) {
	s := factory(t)
	writeDocument(t, s, "/a.txt", "a")

	_, err := s.List(t.Context(), "/a.txt")
	if !daverrors.HasCode(err, daverrors.ErrNotCollection) {
		t.Errorf("List document: got %v, want NotCollection", err)
	}
}

func testRemoveEmpty(t *testing.T, factory StoreFactory) {
	s := factory(t)
	mkdir(t, s, "/a")

	if err := s.Remove(t.Context(), "/a"); err != nil {
		t.Fatalf("Remove(/a) failed: %v", err)
	}
	if _, err := s.Stat(t.Context(), "/a"); !daverrors.IsNotFoundError(err) {
		t.Errorf("Stat after Remove: got %v, want NotFound", err)
	}
}

func testRemoveNonEmpty(t *testing.T, factory StoreFactory) {
	s := factory(t)
	mkdir(t, s, "/a")
	writeDocument(t, s, "/a/doc.txt", "x")

	err := s.Remove(t.Context(), "/a")
	if !daverrors.HasCode(err, daverrors.ErrNotEmpty) {
		t.Errorf("Remove non-empty: got %v, want NotEmpty", err)
	}
	if got := readDocument(t, s, "/a/doc.txt"); got != "x" {
		t.Errorf("member content = %q, want x", got)
	}
}

func testRemoveRoot(t *testing.T, factory StoreFactory) {
	s := factory(t)

	err := s.Remove(t.Context(), "/")
	if !daverrors.HasCode(err, daverrors.ErrForbidden) {
		t.Errorf("Remove root: got %v, want Forbidden", err)
	}
}
