package dto

import "net/http"

// Error codes surfaced on the wire. These mirror the domain error codes so a
// client can branch on them without parsing messages.
const (
	ErrCodeUnknown              = "UNKNOWN"
	ErrCodeInternal             = "INTERNAL"
	ErrCodeNotFound             = "NOT_FOUND"
	ErrCodeAlreadyExists        = "ALREADY_EXISTS"
	ErrCodeInvalidInput         = "INVALID_INPUT"
	ErrCodeConcurrencyConflict  = "CONCURRENCY_CONFLICT"
	ErrCodeAuthenticationFailed = "AUTHENTICATION_FAILED"
	ErrCodeValidationFailed     = "VALIDATION_FAILED"
	ErrCodeRateLimited          = "RATE_LIMITED"
	ErrCodeConflictPending      = "CONFLICT_PENDING_REVIEW"
	ErrCodeTransientFailure     = "TRANSIENT_FAILURE"
	ErrCodeRequestTooLarge      = "REQUEST_TOO_LARGE"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeUnknown:  http.StatusInternalServerError,
	ErrCodeInternal: http.StatusInternalServerError,

	ErrCodeNotFound:            http.StatusNotFound,
	ErrCodeAlreadyExists:       http.StatusConflict,
	ErrCodeConcurrencyConflict: http.StatusConflict,

	ErrCodeInvalidInput:     http.StatusBadRequest,
	ErrCodeValidationFailed: http.StatusBadRequest,

	ErrCodeAuthenticationFailed: http.StatusUnauthorized,
	ErrCodeRateLimited:          http.StatusTooManyRequests,

	// A parked conflict is not a client mistake; the update was received
	// and queued, so 409 tells the caller the stored state did not change.
	ErrCodeConflictPending: http.StatusConflict,

	// A degraded dependency asks the sender to redeliver later.
	ErrCodeTransientFailure: http.StatusServiceUnavailable,

	ErrCodeRequestTooLarge: http.StatusRequestEntityTooLarge,
}

// GetHTTPStatus returns the HTTP status code for an error code, defaulting
// to 500 for codes with no mapping
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}
