package audit

import (
	"errors"
	"fmt"
)

var (
	ErrEntryNotFound    = errors.New("audit entry not found")
	ErrInvalidRetention = errors.New("retention days must be positive")
	ErrInvalidFilter    = errors.New("invalid audit filter")
	ErrEntryTooLarge    = errors.New("audit entry too large")
)

// WriteError reports a failed append. The operation that triggered the
// audit event must not be treated as recorded.
type WriteError struct {
	Operation Operation
	Err       error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("audit write %s: %v", e.Operation, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}
