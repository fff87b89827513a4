package mcp

import (
	"errors"
	"fmt"

	"github.com/rpggio/stockcount/internal/domain/audit"
	"github.com/rpggio/stockcount/internal/domain/count"
	"github.com/rpggio/stockcount/internal/domain/lifecycle"
	"github.com/rpggio/stockcount/internal/repository"
)

// APIError represents an MCP error response.
type APIError struct {
	Code         string `json:"code"`
	Message      string `json:"message"`
	Details      any    `json:"details,omitempty"`
	RecoveryHint string `json:"recovery_hint,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *APIError) CodeValue() string {
	return e.Code
}

func (e *APIError) MessageValue() string {
	return e.Message
}

func (e *APIError) DetailsValue() any {
	return e.Details
}

func (e *APIError) RecoveryHintValue() string {
	return e.RecoveryHint
}

func invalidParams(msg string) *APIError {
	return &APIError{Code: "INVALID_PARAMS", Message: msg, RecoveryHint: "Check the tool input schema"}
}

// MapError maps domain errors to MCP error codes.
func MapError(err error) *APIError {
	if err == nil {
		return nil
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	var (
		stateErr   *lifecycle.StateError
		writeErr   *audit.WriteError
		persistErr *lifecycle.PersistenceError
	)
	switch {
	case errors.Is(err, lifecycle.ErrStoreInconsistent):
		return &APIError{Code: "STORE_INCONSISTENT", Message: err.Error(), RecoveryHint: "Reconcile the store, then call clear_inconsistent"}
	case errors.As(err, &stateErr):
		return &APIError{Code: stateErr.Code, Message: stateErr.Message, RecoveryHint: stateHint(stateErr.Code)}
	case errors.Is(err, lifecycle.ErrUnknownLocation):
		return &APIError{Code: "UNKNOWN_LOCATION", Message: err.Error(), RecoveryHint: "Call list_locations for valid ids"}
	case errors.Is(err, lifecycle.ErrNotBootstrapped), errors.Is(err, repository.ErrNotFound), errors.Is(err, count.ErrNotFound):
		return &APIError{Code: "NOT_BOOTSTRAPPED", Message: "facility has not been initialised", RecoveryHint: "Configure a facility seed and restart the server"}
	case errors.Is(err, count.ErrInsufficientHistory):
		return &APIError{Code: "INSUFFICIENT_HISTORY", Message: err.Error(), RecoveryHint: "Complete at least two counts"}
	case errors.Is(err, repository.ErrConflict):
		return &APIError{Code: "CONFLICT", Message: "document modified by another writer", RecoveryHint: "Retry the operation"}
	case errors.Is(err, count.ErrInvalidDocument):
		return &APIError{Code: "INVALID_DOCUMENT", Message: err.Error()}
	case errors.Is(err, audit.ErrEntryNotFound):
		return &APIError{Code: "AUDIT_ENTRY_NOT_FOUND", Message: err.Error(), RecoveryHint: "Check the entry id with query_audit_logs"}
	case errors.Is(err, audit.ErrInvalidRetention):
		return &APIError{Code: "INVALID_RETENTION", Message: err.Error(), RecoveryHint: "Pass retention_days greater than zero"}
	case errors.Is(err, audit.ErrInvalidFilter):
		return &APIError{Code: "INVALID_FILTER", Message: err.Error(), RecoveryHint: "Use YYYY-MM-DD dates with start before end"}
	case errors.As(err, &writeErr):
		return &APIError{Code: "AUDIT_WRITE_FAILED", Message: err.Error(), RecoveryHint: "The operation was rolled back; retry once the audit directory is writable"}
	case errors.As(err, &persistErr):
		return &APIError{Code: "PERSISTENCE_FAILED", Message: err.Error(), RecoveryHint: "The operation was not applied; retry"}
	default:
		return nil
	}
}

func stateHint(code string) string {
	switch code {
	case lifecycle.ErrCountInProgress.Code:
		return "Complete the active count first"
	case lifecycle.ErrNoCountInProgress.Code:
		return "Call start_count first"
	case lifecycle.ErrItemIndexOutOfRange.Code:
		return "Call list_items for valid indexes"
	default:
		return ""
	}
}
