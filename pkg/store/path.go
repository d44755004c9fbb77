package store

import (
	"path"
	"strings"
)

// Clean returns the canonical rooted form of p: leading slash, no trailing
// slash, no dot segments.
func Clean(p string) string {
	return path.Clean("/" + p)
}

// Split returns the segments of p. The root has none.
func Split(p string) []string {
	p = Clean(p)
	if p == "/" {
		return nil
	}
	return strings.Split(p[1:], "/")
}

// Join appends names to a rooted parent path.
func Join(parent string, names ...string) string {
	return Clean(path.Join(append([]string{parent}, names...)...))
}

// Base returns the last segment of p, or "" for the root.
func Base(p string) string {
	p = Clean(p)
	if p == "/" {
		return ""
	}
	return path.Base(p)
}

// Dir returns the parent path of p. The root is its own parent.
func Dir(p string) string {
	return path.Dir(Clean(p))
}

// IsWithin reports whether p equals root or lies below it.
func IsWithin(p, root string) bool {
	p, root = Clean(p), Clean(root)
	if p == root || root == "/" {
		return true
	}
	return strings.HasPrefix(p, root+"/")
}

// ValidName reports whether name can be used as a single path segment.
func ValidName(name string) bool {
	return name != "" && name != "." && name != ".." && !strings.ContainsAny(name, "/\x00")
}
