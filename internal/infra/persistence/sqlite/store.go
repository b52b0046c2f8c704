// Package sqlite persists the room snapshot as a JSON document row inside an
// embedded SQLite database file.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"supplywatch/pkg/domain"

	_ "modernc.org/sqlite" // pure go sqlite driver
)

var _ domain.Backend = (*Store)(nil)

// DefaultPath is used when NewStore receives an empty path.
const DefaultPath = "supplywatch.db"

// Store keeps the whole snapshot in a single row of the state table, keyed by
// the collection name. Each Save upserts that row inside a transaction.
type Store struct {
	db         *sql.DB
	mu         sync.Mutex
	path       string
	collection string
}

// NewStore opens (or creates) the SQLite file at path and ensures the state table exists.
func NewStore(path, collection string) (*Store, error) {
	if path == "" {
		path = DefaultPath
	}
	if collection == "" {
		collection = domain.DefaultCollection
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS state (
		bucket TEXT PRIMARY KEY,
		payload BLOB NOT NULL
	)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create state table: %w", err)
	}
	return &Store{db: db, path: path, collection: collection}, nil
}

func (s *Store) Driver() domain.Driver { return domain.DriverSQLite }

// Load decodes the collection row; no row means an empty snapshot.
func (s *Store) Load(ctx context.Context) (domain.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var payload []byte
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM state WHERE bucket = ?`, s.collection).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Snapshot{}, nil
	}
	if err != nil {
		return nil, domain.NewStorageError(domain.DriverSQLite, "load", fmt.Errorf("select state: %w", err))
	}
	snapshot := domain.Snapshot{}
	if len(payload) == 0 {
		return snapshot, nil
	}
	if err := json.Unmarshal(payload, &snapshot); err != nil {
		return nil, domain.NewStorageError(domain.DriverSQLite, "load", fmt.Errorf("decode %s: %w", s.collection, err))
	}
	return snapshot, nil
}

// Save upserts the collection row with the encoded snapshot.
func (s *Store) Save(ctx context.Context, snapshot domain.Snapshot) error {
	return domain.NewStorageError(domain.DriverSQLite, "save", s.persist(ctx, snapshot))
}

func (s *Store) persist(ctx context.Context, snapshot domain.Snapshot) (retErr error) {
	if snapshot == nil {
		snapshot = domain.Snapshot{}
	}
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("encode %s: %w", s.collection, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()
	if _, err = tx.ExecContext(ctx, `INSERT INTO state(bucket,payload) VALUES(?,?) ON CONFLICT(bucket) DO UPDATE SET payload=excluded.payload`, s.collection, data); err != nil {
		return fmt.Errorf("upsert %s: %w", s.collection, err)
	}
	return tx.Commit()
}

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// Path returns the configured database path.
func (s *Store) Path() string { return s.path }
