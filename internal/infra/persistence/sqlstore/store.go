// Package sqlstore implements the domain persistence contracts over
// database/sql using sqlx. Backend packages supply the driver and Dialect.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"humans/internal/entitymodel/sqlbundle"
	"humans/pkg/domain"
)

// Compile-time contract assertion ensuring the store satisfies the domain interface.
var _ domain.PersistentStore = (*Store)(nil)

// Store persists domain records in normalized relational tables.
type Store struct {
	db      *sqlx.DB
	dialect Dialect
	nowFn   func() time.Time
}

// New wraps an open database handle.
func New(db *sqlx.DB, dialect Dialect) *Store {
	return &Store{
		db:      db,
		dialect: dialect,
		nowFn:   func() time.Time { return time.Now().UTC() },
	}
}

// DB exposes the underlying handle for integration testing hooks.
func (s *Store) DB() *sqlx.DB { return s.db }

// Dialect returns the backend dialect.
func (s *Store) Dialect() Dialect { return s.dialect }

// SetNowFunc overrides the clock used for records that arrive without timestamps.
func (s *Store) SetNowFunc(fn func() time.Time) {
	if fn != nil {
		s.nowFn = fn
	}
}

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

// Execer is the subset of database handles ApplyDDL needs.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// ApplyDDL executes every statement of a schema bundle.
func ApplyDDL(ctx context.Context, db Execer, ddl string) error {
	for _, stmt := range sqlbundle.SplitStatements(ddl) {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("execute ddl: %w", err)
		}
	}
	return nil
}

// RunInTransaction executes fn within a database transaction. The
// transaction commits when fn returns nil and rolls back otherwise.
func (s *Store) RunInTransaction(ctx context.Context, fn func(domain.Transaction) error) (retErr error) {
	sqlTx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			if rbErr := sqlTx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) && retErr == nil {
				retErr = fmt.Errorf("rollback: %w", rbErr)
			}
		}
	}()
	tx := &transaction{
		queries: queries{q: sqlTx, d: s.dialect},
		now:     s.nowFn(),
	}
	if err := fn(tx); err != nil {
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	committed = true
	return nil
}

// View executes fn against the connection pool. Views are safe for
// concurrent use, so callers may fan lookups out across goroutines.
func (s *Store) View(ctx context.Context, fn func(domain.TransactionView) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(queries{q: s.db, d: s.dialect})
}
