package repository

import "errors"

var (
	// ErrNotFound is returned when the store holds no facility document
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when an optimistic version check fails
	ErrConflict = errors.New("conflict: document was modified by another writer")
)
