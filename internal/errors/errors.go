package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents stable error codes for all failure modes
type ErrorCode string

const (
	// ParseFailure indicates the request did not match the supported grammar
	ParseFailure ErrorCode = "PARSE_FAILURE"
	// ValidationFailure indicates a missing or empty required parameter
	ValidationFailure ErrorCode = "VALIDATION_FAILURE"
	// SchemaMissing indicates a transform referenced a schema that does not exist
	SchemaMissing ErrorCode = "SCHEMA_MISSING"
	// NotFound indicates the requested document id is unknown
	NotFound ErrorCode = "NOT_FOUND"
	// UnknownResource indicates a path outside the known document types
	UnknownResource ErrorCode = "UNKNOWN_RESOURCE"
	// MethodNotAllowed indicates a known path with an unsupported verb
	MethodNotAllowed ErrorCode = "METHOD_NOT_ALLOWED"
	// StorageFailure indicates a backend I/O error
	StorageFailure ErrorCode = "STORAGE_FAILURE"
	// InternalError indicates unexpected error
	InternalError ErrorCode = "INTERNAL_ERROR"
)

// HybridError represents a server error with code, message and optional cause
type HybridError struct {
	Code    ErrorCode
	Message string
	cause   error // Underlying error
}

// New creates a new HybridError
func New(code ErrorCode, message string, cause error) *HybridError {
	return &HybridError{
		Code:    code,
		Message: message,
		cause:   cause,
	}
}

// Newf creates a HybridError without a cause from a format string
func Newf(code ErrorCode, format string, args ...interface{}) *HybridError {
	return &HybridError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Error implements the error interface
func (e *HybridError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *HybridError) Unwrap() error {
	return e.cause
}

// Storage wraps a backend error as a StorageFailure
func Storage(op string, cause error) *HybridError {
	return New(StorageFailure, op, cause)
}

// Parse wraps a grammar violation as a ParseFailure
func Parse(message string, cause error) *HybridError {
	return New(ParseFailure, message, cause)
}

// CodeOf returns the code of the first HybridError in err's chain,
// or InternalError when there is none.
func CodeOf(err error) ErrorCode {
	var he *HybridError
	if stderrors.As(err, &he) {
		return he.Code
	}
	return InternalError
}

// Is reports whether err carries the given code
func Is(err error, code ErrorCode) bool {
	var he *HybridError
	return stderrors.As(err, &he) && he.Code == code
}

// StatusFor maps error codes to numeric response status codes
func StatusFor(code ErrorCode) int {
	switch code {
	case ValidationFailure:
		return 400
	case UnknownResource:
		return 400
	case SchemaMissing:
		return 404
	case NotFound:
		return 404
	case MethodNotAllowed:
		return 405
	case ParseFailure, StorageFailure, InternalError:
		return 500
	default:
		return 500
	}
}
