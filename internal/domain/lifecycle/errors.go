package lifecycle

import (
	"errors"
	"fmt"
)

// StateError reports an operation that is not allowed in the current count state.
// errors.Is matches on Code, so callers can compare against the sentinels below.
type StateError struct {
	Code    string
	Message string
}

func (e *StateError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *StateError) Is(target error) bool {
	t, ok := target.(*StateError)
	return ok && t.Code == e.Code
}

var (
	ErrCountInProgress     = &StateError{Code: "COUNT_IN_PROGRESS", Message: "a count is already in progress"}
	ErrNoCountInProgress   = &StateError{Code: "NO_COUNT_IN_PROGRESS", Message: "no count is in progress"}
	ErrItemIndexOutOfRange = &StateError{Code: "ITEM_INDEX_OUT_OF_RANGE", Message: "item index is out of range"}

	// ErrStoreInconsistent means a compensating write failed and the stored
	// documents may not match the audit trail.
	ErrStoreInconsistent = errors.New("store is inconsistent; operator reset required")
	ErrNotBootstrapped   = errors.New("facility has not been initialised")
	ErrUnknownLocation   = errors.New("unknown location")
)

// PersistenceError wraps a failed store operation.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persisting %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
