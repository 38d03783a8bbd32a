package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks input that cannot be processed as supplied.
	ErrValidation = errors.New("validation failed")
	// ErrConflict marks a write refused because other records depend on the target.
	ErrConflict = errors.New("conflict")
	// ErrDuplicateRoute is returned by stores when a route interest insert
	// collides with an existing 4-tuple.
	ErrDuplicateRoute = errors.New("route interest already exists")
)

// ErrNotFound is returned when a referenced record does not exist.
type ErrNotFound struct {
	Entity EntityType
	ID     string
}

func (e ErrNotFound) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// NotFound constructs an ErrNotFound for the entity and id.
func NotFound(entity EntityType, id string) error {
	return ErrNotFound{Entity: entity, ID: id}
}

// IsNotFound reports whether err wraps an ErrNotFound, optionally restricted
// to the supplied entity types.
func IsNotFound(err error, entities ...EntityType) bool {
	var nf ErrNotFound
	if !errors.As(err, &nf) {
		return false
	}
	if len(entities) == 0 {
		return true
	}
	for _, entity := range entities {
		if nf.Entity == entity {
			return true
		}
	}
	return false
}
