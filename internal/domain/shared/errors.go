package shared

// DomainError represents a domain-level error
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// Common domain errors
var (
	ErrNotFound             = NewDomainError("NOT_FOUND", "Resource not found")
	ErrAlreadyExists        = NewDomainError("ALREADY_EXISTS", "Resource already exists")
	ErrInvalidInput         = NewDomainError("INVALID_INPUT", "Invalid input provided")
	ErrConcurrencyConflict  = NewDomainError("CONCURRENCY_CONFLICT", "Resource was modified by another process")
	ErrAuthenticationFailed = NewDomainError("AUTHENTICATION_FAILED", "Signature verification failed")
	ErrValidationFailed     = NewDomainError("VALIDATION_FAILED", "Payload failed structural validation")
	ErrRateLimited          = NewDomainError("RATE_LIMITED", "Too many requests for this platform")
	ErrConflictPending      = NewDomainError("CONFLICT_PENDING_REVIEW", "Update queued for manual conflict review")
	ErrTransientFailure     = NewDomainError("TRANSIENT_FAILURE", "Downstream dependency temporarily unavailable")
)
