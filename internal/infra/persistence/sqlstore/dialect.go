package sqlstore

import (
	"strings"

	"github.com/jmoiron/sqlx"
)

// Dialect captures the differences between relational backends.
type Dialect struct {
	// Name is used in error messages.
	Name string
	// BindType is the sqlx placeholder style queries are rebound to.
	BindType int
	// LikeOperator is the case-insensitive pattern operator (LIKE or ILIKE).
	LikeOperator string
	// IsUniqueViolation reports whether err is a unique constraint failure.
	IsUniqueViolation func(error) bool
	// IsForeignKeyViolation reports whether err is a foreign key failure.
	IsForeignKeyViolation func(error) bool
}

func (d Dialect) rebind(query string) string {
	return sqlx.Rebind(d.BindType, query)
}

func (d Dialect) uniqueViolation(err error) bool {
	return err != nil && d.IsUniqueViolation != nil && d.IsUniqueViolation(err)
}

func (d Dialect) foreignKeyViolation(err error) bool {
	return err != nil && d.IsForeignKeyViolation != nil && d.IsForeignKeyViolation(err)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// ContainsPattern turns a raw query into a LIKE pattern matching any value
// that contains it. Wildcards in the query are matched literally.
func ContainsPattern(query string) string {
	return "%" + likeEscaper.Replace(query) + "%"
}
