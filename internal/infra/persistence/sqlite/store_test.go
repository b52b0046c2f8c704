package sqlite

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"supplywatch/pkg/domain"
)

func TestSQLiteStorePersistAndReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.db")
	store, err := NewStore(path, "")
	if err != nil {
		t.Fatalf("new sqlite store: %v", err)
	}
	ctx := context.Background()
	empty, err := store.Load(ctx)
	if err != nil || len(empty) != 0 {
		t.Fatalf("expected empty snapshot on fresh db: %v %+v", err, empty)
	}
	created := domain.NewTimestamp(time.Date(2024, 12, 1, 8, 0, 0, 0, time.UTC))
	snapshot := domain.Snapshot{"AAAA0001": {ID: "AAAA0001", Name: "Persist", Category: "restroom", Supplies: domain.DefaultSupplies(), CreatedAt: created}}
	if err := store.Save(ctx, snapshot); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("db file missing: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reloaded, err := NewStore(path, "")
	if err != nil {
		t.Fatalf("reload sqlite store: %v", err)
	}
	defer func() { _ = reloaded.Close() }()
	got, err := reloaded.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	room, ok := got["AAAA0001"]
	if !ok || room.Name != "Persist" || !room.CreatedAt.Equal(created.Time) {
		t.Fatalf("expected persisted room, got %+v", got)
	}
	if reloaded.Path() != path {
		t.Fatalf("expected path %s, got %s", path, reloaded.Path())
	}
	if reloaded.DB() == nil {
		t.Fatalf("expected db handle")
	}
}

func TestSQLiteStoreSaveOverwritesCollection(t *testing.T) {
	ctx := context.Background()
	store, err := NewStore(filepath.Join(t.TempDir(), "s.db"), "rooms")
	if err != nil {
		t.Fatalf("new sqlite store: %v", err)
	}
	defer func() { _ = store.Close() }()
	if err := store.Save(ctx, domain.Snapshot{"A": {ID: "A"}, "B": {ID: "B"}}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := store.Save(ctx, domain.Snapshot{"B": {ID: "B"}}); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected wholesale replacement, got %+v", got)
	}
	var rows int
	if err := store.DB().QueryRow(`SELECT COUNT(*) FROM state`).Scan(&rows); err != nil {
		t.Fatalf("count: %v", err)
	}
	if rows != 1 {
		t.Fatalf("expected a single state row, got %d", rows)
	}
}

func TestSQLiteStorePersistError(t *testing.T) {
	store, err := NewStore(filepath.Join(t.TempDir(), "closed.db"), "")
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	_ = store.DB().Close()
	err = store.Save(context.Background(), domain.Snapshot{})
	if !errors.Is(err, domain.ErrStorageUnavailable) {
		t.Fatalf("expected storage unavailable after closing db, got %v", err)
	}
	if _, err := store.Load(context.Background()); !errors.Is(err, domain.ErrStorageUnavailable) {
		t.Fatalf("expected storage unavailable on load, got %v", err)
	}
}
