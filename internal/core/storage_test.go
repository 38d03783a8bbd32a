package core

import (
	"context"
	"path/filepath"
	"testing"

	"humans/internal/infra/persistence/memory"
	"humans/internal/infra/persistence/sqlite"
)

func TestOpenPersistentStoreMemory(t *testing.T) {
	store, err := OpenPersistentStore(context.Background(), StorageConfig{Driver: StorageMemory})
	if err != nil {
		t.Fatalf("open memory store: %v", err)
	}
	if _, ok := store.(*memory.Store); !ok {
		t.Fatalf("expected *memory.Store, got %T", store)
	}
}

func TestOpenPersistentStoreDefaultsToSQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "humans.db")
	store, err := OpenPersistentStore(context.Background(), StorageConfig{SQLitePath: path})
	if err != nil {
		t.Fatalf("open sqlite store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	sqliteStore, ok := store.(*sqlite.Store)
	if !ok {
		t.Fatalf("expected *sqlite.Store, got %T", store)
	}
	if sqliteStore.Path() != path {
		t.Fatalf("expected path %s, got %s", path, sqliteStore.Path())
	}

	svc := NewService(store)
	route, created, err := svc.ResolveRouteInterest(context.Background(), londonParis())
	if err != nil || !created {
		t.Fatalf("resolve on sqlite: created=%v err=%v", created, err)
	}
	again, created, err := svc.ResolveRouteInterest(context.Background(), londonParis())
	if err != nil || created || again.ID != route.ID {
		t.Fatalf("expected reuse on sqlite: created=%v err=%v", created, err)
	}
}

func TestOpenPersistentStoreUnknownDriver(t *testing.T) {
	if _, err := OpenPersistentStore(context.Background(), StorageConfig{Driver: "cassandra"}); err == nil {
		t.Fatalf("expected error for unknown driver")
	}
}

func TestOpenPersistentStorePostgresUnreachable(t *testing.T) {
	cfg := StorageConfig{Driver: StoragePostgres, PostgresDSN: "postgres://127.0.0.1:1/humans?sslmode=disable&connect_timeout=1"}
	if _, err := OpenPersistentStore(context.Background(), cfg); err == nil {
		t.Fatalf("expected error for unreachable postgres")
	}
}
