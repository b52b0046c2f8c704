package domain

import "context"

// Driver identifies a concrete persistence backend.
type Driver string

const (
	DriverMemory   Driver = "memory"   // in-memory only (tests / ephemeral)
	DriverFile     Driver = "file"     // JSON document on local disk
	DriverSQLite   Driver = "sqlite"   // embedded sqlite file
	DriverBadger   Driver = "badger"   // embedded badger key-value directory
	DriverPostgres Driver = "postgres" // PostgreSQL server
	DriverS3       Driver = "s3"       // S3-compatible object store
)

// Remote reports whether the driver talks to a store outside the process host.
func (d Driver) Remote() bool {
	return d == DriverPostgres || d == DriverS3
}

// DefaultCollection is the fixed document path the snapshot is stored under.
const DefaultCollection = "rooms"

// Snapshot is the full registry state keyed by room identifier.
type Snapshot map[string]Room

// Clone deep-copies the snapshot.
func (s Snapshot) Clone() Snapshot {
	out := make(Snapshot, len(s))
	for id, room := range s {
		out[id] = room.Clone()
	}
	return out
}

// Backend persists registry snapshots wholesale. Load on a store that has
// never been written returns an empty snapshot. Failures are *StorageError.
type Backend interface {
	Driver() Driver
	Load(ctx context.Context) (Snapshot, error)
	Save(ctx context.Context, snapshot Snapshot) error
	Close() error
}
