package domain

import "fmt"

// DomainError represents a domain-specific error
type DomainError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new DomainError
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     nil,
	}
}

// NewDomainErrorWithCause creates a new DomainError with an underlying cause
func NewDomainErrorWithCause(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Common domain error codes
const (
	ErrCodeValidation    = "VALIDATION_ERROR"
	ErrCodeNotFound      = "NOT_FOUND"
	ErrCodeInternalError = "INTERNAL_ERROR"
	ErrCodeUnavailable   = "UNAVAILABLE"
	ErrCodeUnauthorized  = "UNAUTHORIZED"
)

// Validation errors
var (
	ErrEmptyQuery          = NewDomainError(ErrCodeValidation, "query cannot be empty")
	ErrMissingSessionID    = NewDomainError(ErrCodeValidation, "session id is required")
	ErrNotSelect           = NewDomainError(ErrCodeValidation, "generated query is not a SELECT")
	ErrInvalidIngestSource = NewDomainError(ErrCodeValidation, "invalid ingest source")
)

// Authorization errors
var (
	ErrInvalidAdminToken = NewDomainError(ErrCodeUnauthorized, "invalid admin token")
)

// Provider errors
var (
	// ErrThrottled marks a provider rate-limit or resource-exhaustion response.
	ErrThrottled = NewDomainError(ErrCodeUnavailable, "provider throttled the request")
	// ErrNotConfigured is returned by optional collaborators that were not set up.
	ErrNotConfigured = NewDomainError(ErrCodeUnavailable, "collaborator not configured")
)
