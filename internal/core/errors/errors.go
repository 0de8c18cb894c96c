package errors

import "errors"

// Sentinel errors for the engine's three failure classes. All of them bubble
// to the caller; only ErrConflict is retried internally (bounded) before
// surfacing. Storage failures are never collapsed into empty results; a
// caller must be able to tell "no data" from "data lost".
var (
	// ErrValidation marks malformed or missing identifiers on input.
	// Rejected before any write; the caller must fix the input.
	ErrValidation = errors.New("validation failed")

	// ErrStorage marks an underlying persistence failure (timeout,
	// connection loss). Propagated unchanged; retry policy is a caller concern.
	ErrStorage = errors.New("storage failure")

	// ErrConflict marks an optimistic-concurrency conflict on an atomic
	// increment or latch flip. Safe to retry with the same logical event.
	ErrConflict = errors.New("concurrent update conflict")
)

const (
	HttpInternalError       = "internal_error"
	HttpInvalidJsonError    = "invalid_json"
	HttpValidationError     = "validation_failed"
	HttpDuplicateEventError = "duplicate_event"
	HttpConflictError       = "conflict"
)

// ErrorResponse is the error response body for all HTTP endpoints.
type ErrorResponse struct {
	ErrorType string      `json:"error_type"`
	Message   string      `json:"message"`
	Details   interface{} `json:"details,omitempty"`
}
