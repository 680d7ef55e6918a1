// Package errors defines common error types for heap-snapshot.
package errors

import (
	"errors"
	"fmt"
)

// Error codes for the application.
const (
	CodeUnknown           = "UNKNOWN_ERROR"
	CodeParseError        = "PARSE_ERROR"
	CodeCorruptRecord     = "CORRUPT_RECORD"
	CodeUnsupportedFormat = "UNSUPPORTED_FORMAT"
	CodeInvalidInput      = "INVALID_INPUT"
	CodeNotFound          = "NOT_FOUND"
	CodeConfigError       = "CONFIG_ERROR"
	CodeStorageError      = "STORAGE_ERROR"
	CodeDatabaseError     = "DATABASE_ERROR"
	CodeMisuse            = "MISUSE"
)

// AppError represents an application error with a code and message.
type AppError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *AppError) Unwrap() error {
	return e.Err
}

// Is reports whether target is an AppError with the same code.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// New creates a new AppError.
func New(code string, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Newf creates a new AppError with a formatted message.
func Newf(code string, format string, args ...interface{}) *AppError {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap wraps an existing error with an AppError.
func Wrap(code string, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Common error instances, usable as errors.Is targets.
var (
	ErrParseError        = New(CodeParseError, "parse error")
	ErrCorruptRecord     = New(CodeCorruptRecord, "corrupt record")
	ErrUnsupportedFormat = New(CodeUnsupportedFormat, "unsupported format")
	ErrInvalidInput      = New(CodeInvalidInput, "invalid input")
	ErrNotFound          = New(CodeNotFound, "not found")
	ErrConfigError       = New(CodeConfigError, "configuration error")
	ErrStorageError      = New(CodeStorageError, "storage error")
	ErrDatabaseError     = New(CodeDatabaseError, "database error")
	ErrMisuse            = New(CodeMisuse, "api misuse")
)

// IsCorruptRecord checks if the error is a corrupt record error.
func IsCorruptRecord(err error) bool {
	return errors.Is(err, ErrCorruptRecord)
}

// IsNotFound checks if the error is a not-found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsMisuse checks if the error reports a caller bug.
func IsMisuse(err error) bool {
	return errors.Is(err, ErrMisuse)
}

// GetErrorCode extracts the error code from an error.
func GetErrorCode(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeUnknown
}

// GetErrorMessage extracts the error message from an error.
func GetErrorMessage(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	if err != nil {
		return err.Error()
	}
	return ""
}
