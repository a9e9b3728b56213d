// Package cache stores build artifacts under the working directory.
// Writes go to a temporary file that is renamed into place, so readers never
// observe a partially written artifact.
package cache

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	billy "github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
)

// Store reads and writes artifacts relative to a filesystem root.
type Store struct {
	fs billy.Filesystem
}

// New returns a Store rooted at dir on the local disk.
func New(dir string) *Store {
	return &Store{fs: osfs.New(dir)}
}

// NewWithFS wraps an existing billy filesystem (e.g. memfs in tests).
func NewWithFS(fs billy.Filesystem) *Store {
	return &Store{fs: fs}
}

// FS exposes the underlying filesystem.
func (s *Store) FS() billy.Filesystem { return s.fs }

// Exists reports whether rel names an existing file or directory.
func (s *Store) Exists(rel string) (bool, error) {
	_, err := s.fs.Stat(rel)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, err
}

// Lookup returns the artifact at rel. ok is false when it does not exist.
func (s *Store) Lookup(rel string) (data []byte, ok bool, err error) {
	f, err := s.fs.Open(rel)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, err
	}
	defer f.Close()

	data, err = io.ReadAll(f)
	if err != nil {
		return nil, false, fmt.Errorf("read %s: %w", rel, err)
	}
	return data, true, nil
}

// Store writes data to rel, creating parent directories.
func (s *Store) Store(rel string, data []byte) error {
	dir := filepath.Dir(rel)
	if err := s.fs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	tmp, err := s.fs.TempFile(dir, "."+filepath.Base(rel)+".tmp-")
	if err != nil {
		return fmt.Errorf("create temp file for %s: %w", rel, err)
	}
	name := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = s.fs.Remove(name)
		return fmt.Errorf("write %s: %w", rel, err)
	}
	if err := tmp.Close(); err != nil {
		_ = s.fs.Remove(name)
		return fmt.Errorf("close %s: %w", rel, err)
	}
	if err := s.fs.Rename(name, rel); err != nil {
		_ = s.fs.Remove(name)
		return fmt.Errorf("rename into %s: %w", rel, err)
	}
	return nil
}

// Remove deletes rel. Missing files are not an error.
func (s *Store) Remove(rel string) error {
	err := s.fs.Remove(rel)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
