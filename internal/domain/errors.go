package domain

import (
	"errors"
	"fmt"
)

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

// Is matches another DomainError with the same code and message, so a
// sentinel still matches after a cause has been attached with WithCause.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code && e.Message == t.Message
}

// WithCause returns a copy of the error carrying err as its cause
func (e *DomainError) WithCause(err error) *DomainError {
	return NewDomainErrorWithCause(e.Code, e.Message, err)
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

// AsDomainError extracts the outermost DomainError from an error chain
func AsDomainError(err error) (*DomainError, bool) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr, true
	}
	return nil, false
}

// Common domain error codes
const (
	ErrCodeValidation        = "VALIDATION_ERROR"
	ErrCodeNotFound          = "NOT_FOUND"
	ErrCodeUnauthorized      = "UNAUTHORIZED"
	ErrCodeInternalError     = "INTERNAL_ERROR"
	ErrCodeInvalidOperation  = "INVALID_OPERATION"
	ErrCodeCorruptIndex      = "CORRUPT_INDEX"
	ErrCodeUpstream          = "UPSTREAM_ERROR"
	ErrCodeMissingCredential = "MISSING_CREDENTIAL"
)

// Source errors
var (
	ErrDirectoryNotFound = NewDomainError(ErrCodeNotFound, "source directory not found")
	ErrNoDocumentsFound  = NewDomainError(ErrCodeNotFound, "no documents found in source directory")
)

// Index errors
var (
	ErrIndexNotFound     = NewDomainError(ErrCodeNotFound, "persisted index not found")
	ErrCorruptIndex      = NewDomainError(ErrCodeCorruptIndex, "persisted index is corrupt")
	ErrEmptyIndex        = NewDomainError(ErrCodeInvalidOperation, "index contains no entries")
	ErrDimensionMismatch = NewDomainError(ErrCodeCorruptIndex, "embedding dimensionality does not match index")
	ErrProviderMismatch  = NewDomainError(ErrCodeCorruptIndex, "index was built by a different embedding provider")
)

// Provider errors
var (
	ErrEmbeddingProvider = NewDomainError(ErrCodeUpstream, "embedding provider call failed")
	ErrLanguageModel     = NewDomainError(ErrCodeUpstream, "language model call failed")
)

// Configuration errors
var (
	ErrMissingCredential = NewDomainError(ErrCodeMissingCredential, "required credential not configured")
)

// Validation errors
var (
	ErrMissingRequiredField = NewDomainError(ErrCodeValidation, "missing required field")
	ErrInvalidSymbol        = NewDomainError(ErrCodeValidation, "invalid stock symbol")
)

// Authorization errors
var (
	ErrInvalidAPIKey = NewDomainError(ErrCodeUnauthorized, "invalid api key")
)
