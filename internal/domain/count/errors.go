package count

import "errors"

var (
	// ErrNotFound indicates the store holds no facility document yet.
	ErrNotFound = errors.New("facility document not found")
	// ErrInvalidDocument indicates a document failed validation at the store boundary.
	ErrInvalidDocument = errors.New("invalid count document")
	// ErrInsufficientHistory indicates fewer than two completed counts exist.
	ErrInsufficientHistory = errors.New("at least two completed counts are required")
)
