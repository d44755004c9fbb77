package storetest

import (
	"io"
	"testing"

	daverrors "github.com/marmos91/dittodav/pkg/errors"
)

// runDocumentOpsTests runs all document conformance tests.
func runDocumentOpsTests(t *testing.T, factory StoreFactory) {
	t.Run("WriteAndRead", func(t *testing.T) { testWriteAndRead(t, factory) })
	t.Run("Overwrite", func(t *testing.T) { testOverwrite(t, factory) })
	t.Run("AbortKeepsPrevious", func(t *testing.T) { testAbortKeepsPrevious(t, factory) })
	t.Run("AbortNewLeavesNothing", func(t *testing.T) { testAbortNewLeavesNothing(t, factory) })
	t.Run("WriteMissingParent", func(t *testing.T) { testWriteMissingParent(t, factory) })
	t.Run("WriteOntoCollection", func(t *testing.T) { testWriteOntoCollection(t, factory) })
	t.Run("ReadCollection", func(t *testing.T) { testReadCollection(t, factory) })
	t.Run("ReadMissing", func(t *testing.T) { testReadMissing(t, factory) })
	t.Run("StatSize", func(t *testing.T) { testStatSize(t, factory) })
	t.Run("StatBelowDocument", func(t *testing.T) { testStatBelowDocument(t, factory) })
	t.Run("RemoveDocument", func(t *testing.T) { testRemoveDocument(t, factory) })
}

func testWriteAndRead(t *testing.T, factory StoreFactory) {
	s := factory(t)
	writeDocument(t, s, "/hello.txt", "hello world")

	if got := readDocument(t, s, "/hello.txt"); got != "hello world" {
		t.Errorf("content = %q, want %q", got, "hello world")
	}
}

func testOverwrite(t *testing.T, factory StoreFactory) {
	s := factory(t)
	writeDocument(t, s, "/doc.txt", "first version, longer")
	writeDocument(t, s, "/doc.txt", "second")

	if got := readDocument(t, s, "/doc.txt"); got != "second" {
		t.Errorf("content = %q, want second", got)
	}
}

func testAbortKeepsPrevious(t *testing.T, factory StoreFactory) {
	s := factory(t)
	writeDocument(t, s, "/doc.txt", "original")

	w, err := s.OpenWrite(t.Context(), "/doc.txt")
	if err != nil {
		t.Fatalf("OpenWrite failed: %v", err)
	}
	if _, err := io.WriteString(w, "partial"); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if err := w.Abort(); err != nil {
		t.Fatalf("Abort failed: %v", err)
	}

	if got := readDocument(t, s, "/doc.txt"); got != "original" {
		t.Errorf("content after Abort = %q, want original", got)
	}
}

func testAbortNewLeavesNothing(t *testing.T, factory StoreFactory) {
	s := factory(t)

	w, err := s.OpenWrite(t.Context(), "/new.txt")
	if err != nil {
		t.Fatalf("OpenWrite failed: %v", err)
	}
	if _, err := io.WriteString(w, "partial"); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if err := w.Abort(); err != nil {
		t.Fatalf("Abort failed: %v", err)
	}

	if _, err := s.Stat(t.Context(), "/new.txt"); !daverrors.IsNotFoundError(err) {
		t.Errorf("Stat after Abort: got %v, want NotFound", err)
	}
	infos, err := s.List(t.Context(), "/")
	if err != nil {
		t.Fatalf("List(/) failed: %v", err)
	}
	if len(infos) != 0 {
		t.Errorf("root has %d members after Abort, want 0: %+v", len(infos), infos)
	}
}

func testWriteMissingParent(t *testing.T, factory StoreFactory) {
	s := factory(t)

	_, err := s.OpenWrite(t.Context(), "/missing/doc.txt")
	if !daverrors.HasCode(err, daverrors.ErrConflict) {
		t.Errorf("OpenWrite missing parent: got %v, want Conflict", err)
	}
}

func testWriteOntoCollection(t *testing.T, factory StoreFactory) {
	s := factory(t)
	mkdir(t, s, "/dir")

	_, err := s.OpenWrite(t.Context(), "/dir")
	if !daverrors.HasCode(err, daverrors.ErrIsCollection) {
		t.Errorf("OpenWrite collection: got %v, want IsCollection", err)
	}
}

func testReadCollection(t *testing.T, factory StoreFactory) {
	s := factory(t)
	mkdir(t, s, "/dir")

	_, err := s.OpenRead(t.Context(), "/dir")
	if !daverrors.HasCode(err, daverrors.ErrIsCollection) {
		t.Errorf("OpenRead collection: got %v, want IsCollection", err)
	}
}

func testReadMissing(t *testing.T, factory StoreFactory) {
	s := factory(t)

	_, err := s.OpenRead(t.Context(), "/nope.txt")
	if !daverrors.IsNotFoundError(err) {
		t.Errorf("OpenRead missing: got %v, want NotFound", err)
	}
}

func testStatSize(t *testing.T, factory StoreFactory) {
	s := factory(t)
	writeDocument(t, s, "/sized.bin", "0123456789")

	info, err := s.Stat(t.Context(), "/sized.bin")
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if info.IsCollection {
		t.Error("document reported as collection")
	}
	if info.Size != 10 {
		t.Errorf("Size = %d, want 10", info.Size)
	}
}

func testStatBelowDocument(t *testing.T, factory StoreFactory) {
	s := factory(t)
	writeDocument(t, s, "/file.txt", "x")

	_, err := s.Stat(t.Context(), "/file.txt/child")
	if !daverrors.IsNotFoundError(err) {
		t.Errorf("Stat below document: got %v, want NotFound", err)
	}
}

func testRemoveDocument(t *testing.T, factory StoreFactory) {
	s := factory(t)
	writeDocument(t, s, "/doc.txt", "x")

	if err := s.Remove(t.Context(), "/doc.txt"); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if err := s.Remove(t.Context(), "/doc.txt"); !daverrors.IsNotFoundError(err) {
		t.Errorf("second Remove: got %v, want NotFound", err)
	}
}
