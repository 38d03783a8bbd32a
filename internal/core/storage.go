package core

import (
	"context"
	"fmt"

	"humans/internal/infra/persistence/memory"
	"humans/internal/infra/persistence/postgres"
	"humans/internal/infra/persistence/sqlite"
)

// StorageDriver identifies a concrete persistent storage implementation.
type StorageDriver string

const (
	StorageMemory   StorageDriver = "memory"   // in-memory only (tests / ephemeral)
	StorageSQLite   StorageDriver = "sqlite"   // embedded sqlite file
	StoragePostgres StorageDriver = "postgres" // PostgreSQL server
)

// StorageConfig selects and parameterises a backend.
type StorageConfig struct {
	Driver      StorageDriver
	SQLitePath  string
	PostgresDSN string
}

// OpenPersistentStore opens the configured backend. An empty driver
// defaults to sqlite. Relational backends apply their schema on open.
func OpenPersistentStore(ctx context.Context, cfg StorageConfig) (PersistentStore, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = StorageSQLite
	}
	switch driver {
	case StorageMemory:
		return memory.NewStore(), nil
	case StorageSQLite:
		return sqlite.NewStore(cfg.SQLitePath)
	case StoragePostgres:
		return postgres.NewStore(ctx, cfg.PostgresDSN)
	default:
		return nil, fmt.Errorf("unknown storage driver %s", driver)
	}
}
