package build

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/syssam/cppgen"
)

// FileStore keeps the snapshot in a msgpack file.
type FileStore struct {
	path string
}

// NewFileStore returns a store for the snapshot file at path.
func NewFileStore(path string) *FileStore { return &FileStore{path: path} }

// Path returns the snapshot file path.
func (s *FileStore) Path() string { return s.path }

// Load decodes the snapshot file. A missing file is an empty snapshot.
func (s *FileStore) Load(context.Context) (*Snapshot, error) {
	b, err := os.ReadFile(s.path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return &Snapshot{Version: snapshotVersion}, nil
	case err != nil:
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	var snap Snapshot
	if err := msgpack.Unmarshal(b, &snap); err != nil {
		return nil, cppgen.NewCacheError(s.path, "decode snapshot", err)
	}
	return &snap, nil
}

// Save encodes the snapshot and replaces the file.
func (s *FileStore) Save(_ context.Context, snap *Snapshot) error {
	b, err := msgpack.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	return WriteFile(s.path, b)
}

// Close implements Store.
func (s *FileStore) Close() error { return nil }
