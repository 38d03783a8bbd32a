// Package postgres provides the Postgres backend built on the shared
// relational store. The schema bundle is applied on startup.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver
	"github.com/jmoiron/sqlx"

	"humans/internal/entitymodel/sqlbundle"
	"humans/internal/infra/persistence/sqlstore"
	"humans/pkg/domain"
)

// Compile-time contract assertion ensuring the store satisfies the domain interface.
var _ domain.PersistentStore = (*Store)(nil)

const (
	defaultDriver = "pgx"
	// Default DSN keeps parity with OpenPersistentStore defaults while allowing overrides via env.
	defaultDSN = "postgres://localhost/humans?sslmode=disable"

	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
)

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

// Dialect describes Postgres to the shared store.
var Dialect = sqlstore.Dialect{
	Name:                  "postgres",
	BindType:              sqlx.DOLLAR,
	LikeOperator:          "ILIKE",
	IsUniqueViolation:     func(err error) bool { return hasCode(err, codeUniqueViolation) },
	IsForeignKeyViolation: func(err error) bool { return hasCode(err, codeForeignKeyViolation) },
}

func hasCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}

// Store is the Postgres-backed persistent store.
type Store struct {
	*sqlstore.Store
}

// NewStore opens a Postgres-backed store using the provided DSN (falls back to defaultDSN)
// and applies the schema bundle.
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		dsn = defaultDSN
	}
	openMu.Lock()
	db, err := sqlOpen(defaultDriver, dsn)
	openMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if err := sqlstore.ApplyDDL(ctx, db, sqlbundle.Postgres()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{Store: sqlstore.New(sqlx.NewDb(db, defaultDriver), Dialect)}, nil
}

// OverrideSQLOpen swaps the sqlOpen function for tests and returns a restore function.
func OverrideSQLOpen(fn func(driverName, dataSourceName string) (*sql.DB, error)) func() {
	openMu.Lock()
	defer openMu.Unlock()
	prev := sqlOpen
	sqlOpen = fn
	return func() {
		openMu.Lock()
		defer openMu.Unlock()
		sqlOpen = prev
	}
}
