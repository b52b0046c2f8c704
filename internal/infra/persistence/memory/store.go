// Package memory provides an in-memory persistence backend used for tests and
// ephemeral environments. Nothing survives a process restart.
package memory

import (
	"context"
	"errors"
	"sync"

	"supplywatch/pkg/domain"
)

// Compile-time contract assertion ensuring the store satisfies the domain interface.
var _ domain.Backend = (*Store)(nil)

// ErrInjected is returned by Load/Save while a failure is injected.
var ErrInjected = errors.New("injected memory backend failure")

// Store keeps the last saved snapshot in memory.
type Store struct {
	mu       sync.Mutex
	snapshot domain.Snapshot
	saves    int
	failLoad bool
	failSave bool
}

// NewStore returns an empty in-memory store.
func NewStore() *Store {
	return &Store{snapshot: domain.Snapshot{}}
}

// NewStoreWith returns a store seeded with a copy of snapshot.
func NewStoreWith(snapshot domain.Snapshot) *Store {
	return &Store{snapshot: snapshot.Clone()}
}

func (s *Store) Driver() domain.Driver { return domain.DriverMemory }

// Load returns a copy of the stored snapshot.
func (s *Store) Load(_ context.Context) (domain.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failLoad {
		return nil, domain.NewStorageError(domain.DriverMemory, "load", ErrInjected)
	}
	return s.snapshot.Clone(), nil
}

// Save replaces the stored snapshot with a copy of snapshot.
func (s *Store) Save(_ context.Context, snapshot domain.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failSave {
		return domain.NewStorageError(domain.DriverMemory, "save", ErrInjected)
	}
	s.snapshot = snapshot.Clone()
	s.saves++
	return nil
}

// Close is a no-op.
func (s *Store) Close() error { return nil }

// Saves returns the number of successful Save calls.
func (s *Store) Saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

// FailSaves toggles injected Save failures.
func (s *Store) FailSaves(fail bool) {
	s.mu.Lock()
	s.failSave = fail
	s.mu.Unlock()
}

// FailLoads toggles injected Load failures.
func (s *Store) FailLoads(fail bool) {
	s.mu.Lock()
	s.failLoad = fail
	s.mu.Unlock()
}
