package store

import (
	"context"
	"strings"

	daverrors "github.com/marmos91/dittodav/pkg/errors"
)

// Selection is the result of resolving a path. It is one of FoundDocument,
// FoundCollection, MissingDocumentOrCollection or MissingCollection; consumers
// switch over the concrete type.
type Selection interface {
	// Path returns the resolved path.
	Path() string
	isSelection()
}

// FoundDocument is an existing document.
type FoundDocument struct {
	Document *Document
}

// FoundCollection is an existing collection.
type FoundCollection struct {
	Collection *Collection
}

// MissingDocumentOrCollection is a path that does not exist. Parent is the
// deepest existing collection and Missing lists the segments below it.
type MissingDocumentOrCollection struct {
	Parent  *Collection
	Missing []string
}

// MissingCollection is like MissingDocumentOrCollection for a path that was
// written with a trailing slash, so only a collection can be created there.
type MissingCollection struct {
	Parent  *Collection
	Missing []string
}

func (FoundDocument) isSelection()               {}
func (FoundCollection) isSelection()             {}
func (MissingDocumentOrCollection) isSelection() {}
func (MissingCollection) isSelection()           {}

func (s FoundDocument) Path() string   { return s.Document.Path() }
func (s FoundCollection) Path() string { return s.Collection.Path() }
func (s MissingDocumentOrCollection) Path() string {
	return Join(s.Parent.Path(), s.Missing...)
}
func (s MissingCollection) Path() string {
	return Join(s.Parent.Path(), s.Missing...)
}

// Name returns the name of the node that would be created.
func (s MissingDocumentOrCollection) Name() string { return s.Missing[len(s.Missing)-1] }

// Name returns the name of the collection that would be created.
func (s MissingCollection) Name() string { return s.Missing[len(s.Missing)-1] }

// DirectChild returns the parent collection when exactly one segment is
// missing. More than one missing segment means an intermediate collection is
// absent, which is a Conflict.
func DirectChild(sel Selection) (*Collection, string, error) {
	var parent *Collection
	var missing []string
	switch s := sel.(type) {
	case MissingDocumentOrCollection:
		parent, missing = s.Parent, s.Missing
	case MissingCollection:
		parent, missing = s.Parent, s.Missing
	case FoundDocument, FoundCollection:
		return nil, "", daverrors.NewAlreadyExistsError(sel.Path())
	default:
		panic("store: unknown selection type")
	}
	if len(missing) != 1 {
		return nil, "", daverrors.NewConflictError(sel.Path(), "intermediate collection is missing")
	}
	return parent, missing[0], nil
}

// Resolve resolves p against s.
//
// An existing node yields FoundDocument or FoundCollection. A missing node
// yields MissingDocumentOrCollection (or MissingCollection when p ends with a
// slash) anchored at the deepest existing collection. A document in the
// middle of p is a Conflict.
func Resolve(ctx context.Context, s Store, p string) (Selection, error) {
	trailing := len(p) > 1 && strings.HasSuffix(p, "/")
	clean := Clean(p)

	info, err := s.Stat(ctx, clean)
	if err == nil {
		return found(s, info), nil
	}
	if !daverrors.IsNotFoundError(err) {
		return nil, err
	}

	segs := Split(clean)
	parent, err := Root(ctx, s)
	if err != nil {
		return nil, err
	}

	for i, seg := range segs {
		info, err := s.Stat(ctx, Join(parent.Path(), seg))
		if daverrors.IsNotFoundError(err) {
			missing := append([]string(nil), segs[i:]...)
			if trailing {
				return MissingCollection{Parent: parent, Missing: missing}, nil
			}
			return MissingDocumentOrCollection{Parent: parent, Missing: missing}, nil
		}
		if err != nil {
			return nil, err
		}
		if !info.IsCollection {
			return nil, daverrors.NewConflictError(clean, "path traverses a document")
		}
		parent = &Collection{store: s, info: info}
	}

	// The full path vanished between the first Stat and the walk.
	return nil, daverrors.NewNotFoundError(clean)
}

func found(s Store, info Info) Selection {
	if info.IsCollection {
		return FoundCollection{Collection: &Collection{store: s, info: info}}
	}
	return FoundDocument{Document: &Document{store: s, info: info}}
}
