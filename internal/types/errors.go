package types

import "fmt"

// ErrorCode is a typed string for categorizing application errors.
type ErrorCode string

// Error code constants covering the pipeline failure taxonomy. Components
// MUST use these constants instead of hardcoded strings so that callers can
// branch on failure class without string matching.
const (
	// Transient upstream failures: network errors, timeouts, non-2xx
	// responses. Retried with backoff, recorded per location, never fatal
	// to the run.
	ErrCodeUpstreamUnavailable ErrorCode = "upstream_unavailable"
	ErrCodeUpstreamRateLimited ErrorCode = "upstream_rate_limited"

	// Structurally invalid response body. Local to one location.
	ErrCodePayloadMalformed ErrorCode = "payload_malformed"

	// Legitimate "no data for this location" outcome. Logged, non-fatal.
	ErrCodePayloadEmpty ErrorCode = "payload_empty"

	// Zero usable records reaching aggregation. The only data condition
	// surfaced as a run-level failure.
	ErrCodeNoData ErrorCode = "no_data"

	// Storage failures: per-batch insert errors are logged and skipped;
	// connection-level failures abort the run at startup.
	ErrCodeStorageInsert ErrorCode = "storage_insert_failed"
	ErrCodeInternalDB    ErrorCode = "internal_database_error"

	// Configuration errors are fatal at startup, before any network
	// activity.
	ErrCodeConfigInvalid ErrorCode = "config_invalid"

	ErrCodeInternalUnexpected ErrorCode = "internal_unexpected_error"
)

// AppError is the standard application error type used throughout the
// pipeline. All component errors are expressed as AppError to enable
// consistent logging and failure-class branching.
type AppError struct {
	Code    ErrorCode      `json:"code"`
	Message string         `json:"message"`
	Err     error          `json:"-"`
	Details map[string]any `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/errors.As support.
func (e *AppError) Unwrap() error {
	return e.Err
}

// WithDetails returns a copy of the error with the provided details merged
// in, leaving the original untouched.
func (e *AppError) WithDetails(details map[string]any) *AppError {
	merged := make(map[string]any, len(e.Details)+len(details))
	for k, v := range e.Details {
		merged[k] = v
	}
	for k, v := range details {
		merged[k] = v
	}
	return &AppError{
		Code:    e.Code,
		Message: e.Message,
		Err:     e.Err,
		Details: merged,
	}
}

// NewAppError creates a new AppError with the given code, message, and
// optional underlying error. This is the standard constructor for domain
// errors.
func NewAppError(code ErrorCode, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}
