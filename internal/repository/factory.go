package repository

import (
	"context"
	"fmt"

	"github.com/debemdeboas/draftbox/internal/config"
	"github.com/debemdeboas/draftbox/internal/db"
)

type Kind string

const (
	KindRemoteTable Kind = "remote-table"
	KindS3          Kind = "s3"
	KindSQLite      Kind = "sqlite"
	KindMemory      Kind = "memory"
)

// Select reports which backend cfg enables. The remote table wins when both
// its credential and container id are present; the ephemeral store is used
// when nothing is configured.
func Select(cfg config.StorageConfig) Kind {
	switch {
	case cfg.Remote.Enabled():
		return KindRemoteTable
	case cfg.S3.Enabled():
		return KindS3
	case cfg.SQLite.Enabled():
		return KindSQLite
	default:
		return KindMemory
	}
}

// New builds the backend chosen by Select. It is meant to be called once at
// startup.
func New(ctx context.Context, cfg config.StorageConfig) (Repository, Kind, error) {
	kind := Select(cfg)

	switch kind {
	case KindRemoteTable:
		return NewTableRepository(cfg.Remote), kind, nil

	case KindS3:
		client, err := NewS3Client(ctx, cfg.S3)
		if err != nil {
			return nil, kind, err
		}
		return NewS3Repository(client, cfg.S3.Bucket, cfg.S3.Prefix), kind, nil

	case KindSQLite:
		sqlite := db.NewSQLite(cfg.SQLite.Path)
		if err := sqlite.InitDB(); err != nil {
			return nil, kind, fmt.Errorf("error initializing sqlite backend: %w", err)
		}
		return NewSQLiteRepository(sqlite), kind, nil

	default:
		return SharedMemoryRepository(), kind, nil
	}
}
