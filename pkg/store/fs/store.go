// Package fs provides a store backed by a local directory tree.
package fs

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	daverrors "github.com/marmos91/dittodav/pkg/errors"
	"github.com/marmos91/dittodav/pkg/store"
)

// tempPrefix marks in-flight writes. Such files are hidden from List.
const tempPrefix = ".davtmp-"

// Config holds configuration for the filesystem store.
type Config struct {
	// BasePath is the directory that maps to the store root.
	BasePath string

	// CreateDir creates the base directory if it doesn't exist.
	// Default: true
	CreateDir bool

	// DirMode is the permission mode for created directories.
	// Default: 0755
	DirMode os.FileMode

	// FileMode is the permission mode for created files.
	// Default: 0644
	FileMode os.FileMode
}

// DefaultConfig returns the default configuration.
func DefaultConfig(basePath string) Config {
	return Config{
		BasePath:  basePath,
		CreateDir: true,
		DirMode:   0755,
		FileMode:  0644,
	}
}

// Store is a filesystem-backed implementation of store.Store.
type Store struct {
	mu       sync.RWMutex
	basePath string
	dirMode  os.FileMode
	fileMode os.FileMode
	closed   bool
}

var (
	_ store.Store         = (*Store)(nil)
	_ store.NativeCopier  = (*Store)(nil)
	_ store.NativeMover   = (*Store)(nil)
	_ store.HealthChecker = (*Store)(nil)
)

// New creates a filesystem store with the given configuration.
func New(cfg Config) (*Store, error) {
	if cfg.BasePath == "" {
		return nil, errors.New("base path is required")
	}
	if cfg.DirMode == 0 {
		cfg.DirMode = 0755
	}
	if cfg.FileMode == 0 {
		cfg.FileMode = 0644
	}

	if cfg.CreateDir {
		if err := os.MkdirAll(cfg.BasePath, cfg.DirMode); err != nil {
			return nil, err
		}
	}

	abs, err := filepath.Abs(cfg.BasePath)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, errors.New("base path is not a directory")
	}

	return &Store{
		basePath: abs,
		dirMode:  cfg.DirMode,
		fileMode: cfg.FileMode,
	}, nil
}

// NewWithPath creates a filesystem store with default configuration.
func NewWithPath(basePath string) (*Store, error) {
	return New(DefaultConfig(basePath))
}

// ID is derived from the absolute base path, so two shares over the same
// directory are recognised as one physical store.
func (s *Store) ID() string   { return "filesystem:" + s.basePath }
func (s *Store) Type() string { return "filesystem" }

// osPath maps a store path to a filesystem path. Clean removes dot segments,
// so the result never escapes basePath.
func (s *Store) osPath(p string) string {
	return filepath.Join(s.basePath, filepath.FromSlash(store.Clean(p)))
}

func (s *Store) checkOpen() error {
	if s.closed {
		return daverrors.NewStoreClosedError()
	}
	return nil
}

// mapErr converts os errors to the shared taxonomy.
func mapErr(p string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, fs.ErrNotExist), errors.Is(err, syscall.ENOTDIR):
		return daverrors.NewNotFoundError(p)
	case errors.Is(err, syscall.ENOTEMPTY):
		// Checked before ErrExist, which also matches ENOTEMPTY.
		return daverrors.NewNotEmptyError(p)
	case errors.Is(err, fs.ErrExist):
		return daverrors.NewAlreadyExistsError(p)
	case errors.Is(err, fs.ErrPermission):
		return daverrors.Wrap(daverrors.ErrForbidden, p, err)
	default:
		return daverrors.Wrap(daverrors.ErrIOError, p, err)
	}
}

func toInfo(p string, fi fs.FileInfo) store.Info {
	info := store.Info{
		Path:         store.Clean(p),
		IsCollection: fi.IsDir(),
		ModTime:      fi.ModTime(),
	}
	if !fi.IsDir() {
		info.Size = fi.Size()
	}
	return info
}

// Stat returns the node at p.
func (s *Store) Stat(ctx context.Context, p string) (store.Info, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.checkOpen(); err != nil {
		return store.Info{}, err
	}
	fi, err := os.Stat(s.osPath(p))
	if err != nil {
		return store.Info{}, mapErr(p, err)
	}
	return toInfo(p, fi), nil
}

// List returns the direct members of the collection at p.
func (s *Store) List(ctx context.Context, p string) ([]store.Info, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(s.osPath(p))
	if err != nil {
		if fi, statErr := os.Stat(s.osPath(p)); statErr == nil && !fi.IsDir() {
			return nil, daverrors.NewNotCollectionError(p)
		}
		return nil, mapErr(p, err)
	}

	infos := make([]store.Info, 0, len(entries))
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), tempPrefix) {
			continue
		}
		fi, err := e.Info()
		if err != nil {
			// Removed between ReadDir and Info.
			continue
		}
		infos = append(infos, toInfo(store.Join(p, e.Name()), fi))
	}
	return infos, nil
}

// checkParent verifies the parent of p is an existing directory.
func (s *Store) checkParent(p string) error {
	fi, err := os.Stat(filepath.Dir(s.osPath(p)))
	if err != nil || !fi.IsDir() {
		return daverrors.NewConflictError(p, "parent collection does not exist")
	}
	return nil
}

// Mkdir creates a collection.
func (s *Store) Mkdir(ctx context.Context, p string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.checkOpen(); err != nil {
		return err
	}
	if err := s.checkParent(p); err != nil {
		return err
	}
	return mapErr(p, os.Mkdir(s.osPath(p), s.dirMode))
}

// OpenRead opens a document for reading.
func (s *Store) OpenRead(ctx context.Context, p string) (io.ReadCloser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	f, err := os.Open(s.osPath(p))
	if err != nil {
		return nil, mapErr(p, err)
	}
	fi, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, mapErr(p, err)
	}
	if fi.IsDir() {
		_ = f.Close()
		return nil, daverrors.NewIsCollectionError(p)
	}
	return f, nil
}

// OpenWrite writes to a hidden temporary file that is renamed over the
// target on Close.
func (s *Store) OpenWrite(ctx context.Context, p string) (store.DocumentWriter, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	target := s.osPath(p)
	if fi, err := os.Stat(target); err == nil && fi.IsDir() {
		return nil, daverrors.NewIsCollectionError(p)
	}
	if err := s.checkParent(p); err != nil {
		return nil, err
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), tempPrefix+"*")
	if err != nil {
		return nil, mapErr(p, err)
	}
	return &fileWriter{file: tmp, target: target, path: p, mode: s.fileMode}, nil
}

type fileWriter struct {
	file   *os.File
	target string
	path   string
	mode   os.FileMode
	done   bool
}

func (w *fileWriter) Write(p []byte) (int, error) {
	return w.file.Write(p)
}

func (w *fileWriter) Close() error {
	if w.done {
		return nil
	}
	w.done = true

	tmpName := w.file.Name()
	if err := w.file.Close(); err != nil {
		_ = os.Remove(tmpName)
		return mapErr(w.path, err)
	}
	if err := os.Chmod(tmpName, w.mode); err != nil {
		_ = os.Remove(tmpName)
		return mapErr(w.path, err)
	}
	if err := os.Rename(tmpName, w.target); err != nil {
		_ = os.Remove(tmpName)
		if fi, statErr := os.Stat(w.target); statErr == nil && fi.IsDir() {
			return daverrors.NewIsCollectionError(w.path)
		}
		return mapErr(w.path, err)
	}
	return nil
}

func (w *fileWriter) Abort() error {
	if w.done {
		return nil
	}
	w.done = true
	_ = w.file.Close()
	return os.Remove(w.file.Name())
}

// Remove deletes a document or an empty directory.
func (s *Store) Remove(ctx context.Context, p string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.checkOpen(); err != nil {
		return err
	}
	if store.Clean(p) == "/" {
		return daverrors.NewForbiddenError(p, "cannot remove the root collection")
	}
	return mapErr(p, os.Remove(s.osPath(p)))
}

// CopyDocument copies a file through a temporary file in the destination
// directory. io.Copy between two *os.File values uses copy_file_range on
// Linux, so the bytes never reach user space.
func (s *Store) CopyDocument(ctx context.Context, src, dst string) error {
	r, err := s.OpenRead(ctx, src)
	if err != nil {
		return err
	}
	defer r.Close()

	w, err := s.OpenWrite(ctx, dst)
	if err != nil {
		return err
	}
	fw := w.(*fileWriter)
	if _, err := io.Copy(fw.file, r); err != nil {
		_ = w.Abort()
		return mapErr(dst, err)
	}
	return w.Close()
}

// MoveNode renames a file or directory.
func (s *Store) MoveNode(ctx context.Context, src, dst string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.checkOpen(); err != nil {
		return err
	}
	if store.Clean(src) == "/" || store.IsWithin(dst, src) {
		return daverrors.NewForbiddenError(dst, "cannot move a collection into itself")
	}
	srcInfo, err := os.Lstat(s.osPath(src))
	if err != nil {
		return mapErr(src, err)
	}
	// rename(2) replaces a regular file atomically.
	if dstInfo, err := os.Lstat(s.osPath(dst)); err == nil && (dstInfo.IsDir() || srcInfo.IsDir()) {
		return daverrors.NewAlreadyExistsError(dst)
	}
	if err := s.checkParent(dst); err != nil {
		return err
	}
	return mapErr(dst, os.Rename(s.osPath(src), s.osPath(dst)))
}

// HealthCheck verifies the base directory is still accessible.
func (s *Store) HealthCheck(ctx context.Context) error {
	fi, err := os.Stat(s.basePath)
	if err != nil {
		return err
	}
	if !fi.IsDir() {
		return errors.New("base path is not a directory")
	}
	return nil
}

// Close marks the store as closed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
