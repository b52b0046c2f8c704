package core

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"supplywatch/internal/config"
	"supplywatch/internal/infra/persistence/postgres"
	pgtestutil "supplywatch/internal/infra/persistence/postgres/testutil"
	"supplywatch/pkg/domain"
)

func Test_OpenBackend_Local_Drivers(t *testing.T) {
	dir := t.TempDir()
	cases := []struct {
		name string
		cfg  config.Storage
		want domain.Driver
	}{
		{"default is file", config.Storage{DataFile: filepath.Join(dir, "default.json")}, domain.DriverFile},
		{"memory", config.Storage{Driver: "memory"}, domain.DriverMemory},
		{"file", config.Storage{Driver: "file", DataFile: filepath.Join(dir, "rooms.json")}, domain.DriverFile},
		{"sqlite", config.Storage{Driver: "sqlite", SQLitePath: filepath.Join(dir, "rooms.db")}, domain.DriverSQLite},
		{"badger", config.Storage{Driver: "badger", BadgerDir: filepath.Join(dir, "badger")}, domain.DriverBadger},
		{"s3", config.Storage{Driver: "s3", S3Bucket: "rooms", S3AccessKeyID: "AKIA", S3SecretAccessKey: "secret"}, domain.DriverS3},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := require.New(t)
			backend, err := OpenBackend(context.Background(), tc.cfg)
			req.NoError(err)
			defer func() { _ = backend.Close() }()
			req.Equal(tc.want, backend.Driver())
		})
	}
}

func Test_OpenBackend_Postgres(t *testing.T) {
	req := require.New(t)
	db, _ := pgtestutil.NewStubDB()
	restore := postgres.OverrideSQLOpen(func(_, _ string) (*sql.DB, error) { return db, nil })
	defer restore()

	backend, err := OpenBackend(context.Background(), config.Storage{Driver: "postgres", PostgresDSN: "postgres://stub"})

	req.NoError(err)
	req.Equal(domain.DriverPostgres, backend.Driver())
	req.True(backend.Driver().Remote())
}

func Test_OpenBackend_Errors(t *testing.T) {
	req := require.New(t)

	backend, err := OpenBackend(context.Background(), config.Storage{Driver: "mongo"})
	req.Error(err)
	req.Nil(backend)

	backend, err = OpenBackend(context.Background(), config.Storage{Driver: "s3"})
	req.ErrorContains(err, "bucket")
	req.Nil(backend)
}

func Test_Backends_Are_Interchangeable(t *testing.T) {
	dir := t.TempDir()
	for _, st := range []config.Storage{
		{Driver: "file", DataFile: filepath.Join(dir, "swap.json")},
		{Driver: "sqlite", SQLitePath: filepath.Join(dir, "swap.db")},
		{Driver: "badger", BadgerDir: filepath.Join(dir, "swap-badger")},
	} {
		t.Run(st.Driver, func(t *testing.T) {
			req := require.New(t)
			ctx := context.Background()

			// Given a registry that made some changes
			backend, err := OpenBackend(ctx, st)
			req.NoError(err)
			reg, err := NewRegistry(ctx, backend, nil, fixedClock())
			req.NoError(err)
			room, err := reg.CreateRoom(ctx, CreateRoomInput{Name: ptr("Swap")})
			req.NoError(err)
			_, err = reg.ReportSupply(ctx, room.ID, "soap", domain.StatusEmpty)
			req.NoError(err)
			req.NoError(backend.Close())

			// When a new registry starts on the same store
			reopened, err := OpenBackend(ctx, st)
			req.NoError(err)
			defer func() { _ = reopened.Close() }()
			restarted, err := NewRegistry(ctx, reopened, nil)
			req.NoError(err)

			// Then it sees the same state
			got, err := restarted.GetRoom(room.ID)
			req.NoError(err)
			req.Equal("Swap", got.Name)
			req.Equal(domain.StatusEmpty, got.Supplies["soap"].Status)
			req.Equal("2025-03-14 09:26:53", got.CreatedAt.String())
		})
	}
}
