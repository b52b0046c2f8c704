// Package badger provides an embedded key-value persistence backend. Each room
// is stored under its own key below a collection prefix and a snapshot save
// replaces the whole prefix in a single transaction.
package badger

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"supplywatch/pkg/domain"
)

// DefaultDir is used when no directory is configured.
const DefaultDir = "supplywatch-badger"

var _ domain.Backend = (*Store)(nil)

type Store struct {
	db     *badger.DB
	dir    string
	prefix []byte
}

// NewStore opens (or creates) a badger database in dir.
func NewStore(dir, collection string) (*Store, error) {
	if dir == "" {
		dir = DefaultDir
	}
	if collection == "" {
		collection = domain.DefaultCollection
	}
	db, err := badger.Open(badger.DefaultOptions(dir).WithLoggingLevel(badger.ERROR))
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return &Store{db: db, dir: dir, prefix: []byte(collection + "/")}, nil
}

func (s *Store) Driver() domain.Driver { return domain.DriverBadger }

// Dir returns the database directory.
func (s *Store) Dir() string { return s.dir }

func (s *Store) key(id string) []byte {
	k := make([]byte, 0, len(s.prefix)+len(id))
	k = append(k, s.prefix...)
	return append(k, id...)
}

// Load reads every room under the collection prefix.
func (s *Store) Load(ctx context.Context) (domain.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, domain.NewStorageError(domain.DriverBadger, "load", err)
	}
	snapshot := domain.Snapshot{}
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = s.prefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			var room domain.Room
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &room)
			}); err != nil {
				return fmt.Errorf("decode %s: %w", item.Key(), err)
			}
			id := string(item.Key()[len(s.prefix):])
			if room.ID == "" {
				room.ID = id
			}
			snapshot[id] = room
		}
		return nil
	})
	if err != nil {
		return nil, domain.NewStorageError(domain.DriverBadger, "load", err)
	}
	return snapshot, nil
}

// Save writes every room and deletes keys no longer present, atomically.
func (s *Store) Save(ctx context.Context, snapshot domain.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return domain.NewStorageError(domain.DriverBadger, "save", err)
	}
	encoded := make(map[string][]byte, len(snapshot))
	for id, room := range snapshot {
		b, err := json.Marshal(room)
		if err != nil {
			return domain.NewStorageError(domain.DriverBadger, "save", fmt.Errorf("encode %s: %w", id, err))
		}
		encoded[id] = b
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		var stale [][]byte
		opts := badger.DefaultIteratorOptions
		opts.Prefix = s.prefix
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		for it.Rewind(); it.Valid(); it.Next() {
			key := it.Item().KeyCopy(nil)
			if _, keep := encoded[string(key[len(s.prefix):])]; !keep {
				stale = append(stale, key)
			}
		}
		it.Close()
		for _, key := range stale {
			if err := txn.Delete(key); err != nil {
				return err
			}
		}
		for id, b := range encoded {
			if err := txn.Set(s.key(id), b); err != nil {
				return err
			}
		}
		return nil
	})
	return domain.NewStorageError(domain.DriverBadger, "save", err)
}

func (s *Store) Close() error {
	return s.db.Close()
}
