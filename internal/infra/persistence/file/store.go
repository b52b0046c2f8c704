// Package file persists the room snapshot as a single indented JSON document
// on local disk. Every save rewrites the whole document through a temporary
// file that is fsynced and renamed over the target, so a crash mid-write
// leaves the previous snapshot readable.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"supplywatch/pkg/domain"
)

var _ domain.Backend = (*Store)(nil)

// DefaultPath is used when NewStore receives an empty path.
const DefaultPath = "rooms_data.json"

// Store is the local-durable backend.
type Store struct {
	mu   sync.Mutex
	path string
}

// NewStore returns a file-backed store, creating the parent directory if needed.
// The file itself is created on the first Save.
func NewStore(path string) (*Store, error) {
	if path == "" {
		path = DefaultPath
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	return &Store{path: path}, nil
}

func (s *Store) Driver() domain.Driver { return domain.DriverFile }

// Path returns the configured document path.
func (s *Store) Path() string { return s.path }

// Load reads the document. A missing file yields an empty snapshot.
func (s *Store) Load(_ context.Context) (domain.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return domain.Snapshot{}, nil
	}
	if err != nil {
		return nil, domain.NewStorageError(domain.DriverFile, "load", err)
	}
	snapshot := domain.Snapshot{}
	if len(b) == 0 {
		return snapshot, nil
	}
	if err := jsonUnmarshal(b, &snapshot); err != nil {
		return nil, domain.NewStorageError(domain.DriverFile, "load", fmt.Errorf("decode %s: %w", s.path, err))
	}
	return snapshot, nil
}

// Save replaces the document with snapshot.
func (s *Store) Save(ctx context.Context, snapshot domain.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return domain.NewStorageError(domain.DriverFile, "save", err)
	}
	if snapshot == nil {
		snapshot = domain.Snapshot{}
	}
	b, err := jsonMarshal(snapshot)
	if err != nil {
		return domain.NewStorageError(domain.DriverFile, "save", fmt.Errorf("encode: %w", err))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.NewStorageError(domain.DriverFile, "save", writeAtomic(s.path, b))
}

// Close is a no-op; the store holds no open handles between calls.
func (s *Store) Close() error { return nil }

func writeAtomic(path string, data []byte) (retErr error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	defer func() {
		if retErr != nil {
			_ = os.Remove(tmp.Name())
		}
	}()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return err
	}
	// atomically move into place
	if err := os.Rename(tmp.Name(), path); err != nil {
		return err
	}
	return syncDir(filepath.Dir(path))
}

// syncDir flushes the rename to disk where the platform allows it.
func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return nil
	}
	defer func() { _ = d.Close() }()
	_ = d.Sync()
	return nil
}

// isolate json usage to allow later replacement minimal diff.
var (
	jsonMarshal   = func(v any) ([]byte, error) { return json.MarshalIndent(v, "", "  ") }
	jsonUnmarshal = func(b []byte, v any) error { return json.Unmarshal(b, v) }
)
