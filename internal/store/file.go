// SPDX-License-Identifier: MPL-2.0

package store

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

// FileStore keeps a Snapshot in a TOML file. Saves go through a temporary
// file and a rename so a crash never leaves a truncated file behind.
type FileStore struct {
	path string
}

// NewFileStore returns a FileStore for path. The file is created on the
// first Save.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: filepath.Clean(path)}
}

// Path returns the file location.
func (f *FileStore) Path() string { return f.path }

// Load reads the file.
func (f *FileStore) Load() (Snapshot, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return Snapshot{}, ErrNotFound
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("read %s: %w", f.path, err)
	}

	var snap Snapshot
	if err := toml.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("%w: parse %s: %w", ErrInvalidSnapshot, f.path, err)
	}
	return snap, nil
}

// Save replaces the file with snap.
func (f *FileStore) Save(snap Snapshot) error {
	data, err := toml.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(f.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temporary file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }() // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write %s: %w", tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		return fmt.Errorf("replace %s: %w", f.path, err)
	}
	return nil
}

// Close is a no-op.
func (f *FileStore) Close() error { return nil }
