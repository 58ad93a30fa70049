package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents stable error codes for all failure modes
type ErrorCode string

const (
	// MalformedRequest indicates no request line could be located in the buffer
	MalformedRequest ErrorCode = "MALFORMED_REQUEST"
	// FilesystemError indicates canonicalization or read failure on an existing path
	FilesystemError ErrorCode = "FILESYSTEM_ERROR"
	// TransportError indicates a socket read or write failed
	TransportError ErrorCode = "TRANSPORT_ERROR"
	// ConfigInvalid indicates a configuration value failed validation
	ConfigInvalid ErrorCode = "CONFIG_INVALID"
	// InternalError indicates unexpected error
	InternalError ErrorCode = "INTERNAL_ERROR"
)

// ServeError represents an fserve error with a stable code and an optional cause
type ServeError struct {
	Code    ErrorCode   `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
	cause   error       // Underlying error (not exported to JSON)
}

// New creates a new ServeError
func New(code ErrorCode, message string, cause error) *ServeError {
	return &ServeError{
		Code:    code,
		Message: message,
		cause:   cause,
	}
}

// Error implements the error interface
func (e *ServeError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *ServeError) Unwrap() error {
	return e.cause
}

// WithDetails adds details to the error
func (e *ServeError) WithDetails(details interface{}) *ServeError {
	e.Details = details
	return e
}

// Filesystem wraps a failed filesystem operation on path.
func Filesystem(op, path string, cause error) *ServeError {
	return New(FilesystemError, op+" "+path, cause).WithDetails(map[string]string{
		"op":   op,
		"path": path,
	})
}

// CodeOf returns the code of the first ServeError in err's chain, or
// InternalError when the chain carries none.
func CodeOf(err error) ErrorCode {
	var se *ServeError
	if stderrors.As(err, &se) {
		return se.Code
	}
	return InternalError
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code ErrorCode) bool {
	if err == nil {
		return false
	}
	return CodeOf(err) == code
}
