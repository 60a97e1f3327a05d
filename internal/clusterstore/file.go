package clusterstore

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/golang/snappy"
)

// FileStore persists a snapshot to a local path using the
// write-tempfile-then-rename discipline so a crash mid-write never leaves a
// truncated file in place of a good one.
type FileStore struct {
	Path string
}

// NewFileStore returns a FileStore writing to path.
func NewFileStore(path string) *FileStore {
	return &FileStore{Path: path}
}

// Save writes data, snappy-compressed, atomically.
func (f *FileStore) Save(data []byte) error {
	compressed := snappy.Encode(nil, data)

	dir := filepath.Dir(f.Path)
	tmp, err := os.CreateTemp(dir, filepath.Base(f.Path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("clusterstore: create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op once the rename below succeeds

	if _, err := tmp.Write(compressed); err != nil {
		tmp.Close()
		return fmt.Errorf("clusterstore: write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("clusterstore: fsync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("clusterstore: close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, f.Path); err != nil {
		return fmt.Errorf("clusterstore: rename temp file into place: %w", err)
	}
	return nil
}

// Load reads and decompresses the snapshot, or ErrNotFound if none exists.
func (f *FileStore) Load() ([]byte, error) {
	raw, err := os.ReadFile(f.Path)
	if os.IsNotExist(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("clusterstore: read snapshot file: %w", err)
	}
	data, err := snappy.Decode(nil, raw)
	if err != nil {
		return nil, fmt.Errorf("clusterstore: decompress snapshot: %w", err)
	}
	return data, nil
}
