package core

import (
	"context"
	"fmt"

	"supplywatch/internal/config"
	"supplywatch/internal/infra/persistence/badger"
	"supplywatch/internal/infra/persistence/file"
	"supplywatch/internal/infra/persistence/memory"
	"supplywatch/internal/infra/persistence/postgres"
	"supplywatch/internal/infra/persistence/s3"
	"supplywatch/internal/infra/persistence/sqlite"
	"supplywatch/pkg/domain"
)

// OpenBackend selects a persistence backend from explicit configuration. The
// choice is fixed for the process lifetime. Defaults to the local file store
// when the driver is unset.
//
//	memory   ephemeral, nothing survives restart
//	file     JSON document at DataFile (default rooms_data.json)
//	sqlite   single-row document in SQLitePath
//	badger   key per room in BadgerDir
//	postgres JSONB document row, PostgresDSN required
//	s3       JSON object <collection>.json in S3Bucket
func OpenBackend(ctx context.Context, cfg config.Storage) (domain.Backend, error) {
	driver := domain.Driver(cfg.Driver)
	if driver == "" {
		driver = domain.DriverFile
	}
	var (
		backend domain.Backend
		err     error
	)
	switch driver {
	case domain.DriverMemory:
		backend = memory.NewStore()
	case domain.DriverFile:
		backend, err = asBackend(file.NewStore(cfg.DataFile))
	case domain.DriverSQLite:
		backend, err = asBackend(sqlite.NewStore(cfg.SQLitePath, cfg.Collection))
	case domain.DriverBadger:
		backend, err = asBackend(badger.NewStore(cfg.BadgerDir, cfg.Collection))
	case domain.DriverPostgres:
		backend, err = asBackend(postgres.NewStore(ctx, cfg.PostgresDSN, cfg.Collection))
	case domain.DriverS3:
		backend, err = asBackend(s3.New(ctx, s3.Config{
			Region:          cfg.S3Region,
			Bucket:          cfg.S3Bucket,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
			PathStyle:       cfg.S3PathStyle,
			Collection:      cfg.Collection,
		}))
	default:
		return nil, fmt.Errorf("unknown storage driver %s", driver)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s backend: %w", driver, err)
	}
	return backend, nil
}

// asBackend keeps a failed constructor from producing a non-nil interface
// around a nil store.
func asBackend[T domain.Backend](store T, err error) (domain.Backend, error) {
	if err != nil {
		return nil, err
	}
	return store, nil
}
