package repository

import "errors"

var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("entity not found")

	// ErrConflict is returned when a guarded update matched no row because
	// another writer changed the entity first.
	ErrConflict = errors.New("concurrent modification")
)
