package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents a Jarvis error code.
type ErrorCode string

const (
	ErrConfiguration  ErrorCode = "CONFIGURATION"   // 400
	ErrInvalidRequest ErrorCode = "INVALID_REQUEST" // 400
	ErrNotFound       ErrorCode = "NOT_FOUND"       // 404
	ErrRemoteService  ErrorCode = "REMOTE_SERVICE"  // 502
	ErrInternal       ErrorCode = "INTERNAL"        // 500
)

// JarvisError represents a structured error with code, status, and details.
type JarvisError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any

	// Err is the underlying cause, if any. Never rendered to clients.
	Err error
}

// Error implements the error interface.
func (e *JarvisError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *JarvisError) Unwrap() error {
	return e.Err
}

// NewConfiguration creates a 400 error for missing credentials or settings.
// Configuration errors are never retried.
func NewConfiguration(msg string) *JarvisError {
	return &JarvisError{
		Code:    ErrConfiguration,
		Status:  400,
		Message: msg,
	}
}

// NewInvalidRequest creates a 400 error for malformed or missing input.
func NewInvalidRequest(msg string) *JarvisError {
	return &JarvisError{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewNotFound creates a 404 error for when a capture cannot be found.
func NewNotFound(identifier string) *JarvisError {
	return &JarvisError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("capture not found: %s", identifier),
		Details: map[string]any{"identifier": identifier},
	}
}

// NewRemoteService creates a 502 error for a failed call to an external service.
// upstreamStatus is the HTTP status returned by the service, or 0 for
// transport failures.
func NewRemoteService(service string, upstreamStatus int, err error) *JarvisError {
	msg := fmt.Sprintf("%s request failed", service)
	if upstreamStatus > 0 {
		msg = fmt.Sprintf("%s returned HTTP %d", service, upstreamStatus)
	} else if err != nil {
		msg = fmt.Sprintf("%s request failed: %v", service, err)
	}
	details := map[string]any{"service": service}
	if upstreamStatus > 0 {
		details["upstream_status"] = upstreamStatus
	}
	return &JarvisError{
		Code:    ErrRemoteService,
		Status:  502,
		Message: msg,
		Details: details,
		Err:     err,
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
func NewInternal(err error) *JarvisError {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return &JarvisError{
		Code:    ErrInternal,
		Status:  500,
		Message: msg,
		Err:     err,
	}
}

// Is checks if err is (or wraps) a JarvisError with the given code.
func Is(err error, code ErrorCode) bool {
	var jErr *JarvisError
	if stderrors.As(err, &jErr) {
		return jErr.Code == code
	}
	return false
}

// As returns the JarvisError in err's chain, if any.
func As(err error) (*JarvisError, bool) {
	var jErr *JarvisError
	if stderrors.As(err, &jErr) {
		return jErr, true
	}
	return nil, false
}
