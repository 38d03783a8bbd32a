// Package sqlite provides the embedded SQLite backend built on the shared
// relational store.
package sqlite

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	msqlite "modernc.org/sqlite" // pure go sqlite driver
	sqlite3 "modernc.org/sqlite/lib"

	"humans/internal/entitymodel/sqlbundle"
	"humans/internal/infra/persistence/sqlstore"
	"humans/pkg/domain"
)

// Compile-time contract assertion ensuring the store satisfies the domain interface.
var _ domain.PersistentStore = (*Store)(nil)

const (
	driverName  = "sqlite"
	defaultPath = "humans.db"
	// MemoryPath opens a private in-memory database.
	MemoryPath = ":memory:"
	// Foreign keys are off by default in SQLite; the time format keeps
	// timestamps lexically sortable.
	dsnOptions = "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_time_format=sqlite"
)

func init() {
	sqlx.BindDriver(driverName, sqlx.QUESTION)
}

// Dialect describes SQLite to the shared store. LIKE is ASCII
// case-insensitive by default.
var Dialect = sqlstore.Dialect{
	Name:                  "sqlite",
	BindType:              sqlx.QUESTION,
	LikeOperator:          "LIKE",
	IsUniqueViolation:     isUniqueViolation,
	IsForeignKeyViolation: isForeignKeyViolation,
}

func errorCode(err error) (int, bool) {
	var se *msqlite.Error
	if !errors.As(err, &se) {
		return 0, false
	}
	return se.Code(), true
}

func isUniqueViolation(err error) bool {
	code, ok := errorCode(err)
	return ok && code == sqlite3.SQLITE_CONSTRAINT_UNIQUE
}

func isForeignKeyViolation(err error) bool {
	code, ok := errorCode(err)
	return ok && code == sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY
}

// Store is the SQLite-backed persistent store.
type Store struct {
	*sqlstore.Store
	path string
}

// NewStore opens (creating when needed) the database at path and applies the schema.
func NewStore(path string) (*Store, error) {
	if path == "" {
		path = defaultPath
	}
	if path != MemoryPath {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("create dirs: %w", err)
		}
	}
	db, err := sqlx.Open(driverName, path+"?"+dsnOptions)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// A single connection serializes writers and keeps in-memory databases alive.
	db.SetMaxOpenConns(1)
	if err := sqlstore.ApplyDDL(context.Background(), db, sqlbundle.SQLite()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{Store: sqlstore.New(db, Dialect), path: path}, nil
}

// Path returns the configured database path.
func (s *Store) Path() string { return s.path }
