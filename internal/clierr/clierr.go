// Package clierr defines structured error types for CLI commands.
// Errors carry a machine-readable code, a human-readable message,
// and optional details for scripts consuming --json output.
package clierr

import (
	"errors"
	"fmt"
	"strconv"
)

// Error codes are uppercase and underscore-separated. They stay stable across minor versions.
const (
	TaskNotFound       = "TASK_NOT_FOUND"
	HomeNotFound       = "HOME_NOT_FOUND"
	HomeAlreadyExists  = "HOME_ALREADY_EXISTS"
	InvalidInput       = "INVALID_INPUT"
	InvalidStatus      = "INVALID_STATUS"
	InvalidPriority    = "INVALID_PRIORITY"
	InvalidDate        = "INVALID_DATE"
	InvalidTaskID      = "INVALID_TASK_ID"
	ValidationError    = "VALIDATION_ERROR"
	InvalidTransition  = "INVALID_TRANSITION"
	InvalidOperation   = "INVALID_OPERATION"
	NoChanges          = "NO_CHANGES"
	ConfirmationReq    = "CONFIRMATION_REQUIRED"
	SyncIncomplete     = "SYNC_INCOMPLETE"
	StorageError       = "STORAGE_ERROR"
	InternalError      = "INTERNAL_ERROR"
)

// Error represents a structured CLI error with a machine-readable code.
type Error struct {
	Code    string
	Message string
	Details map[string]any
}

// Error implements the error interface.
func (e *Error) Error() string { return e.Message }

// New creates an Error with the given code and message.
func New(code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf creates an Error with a formatted message.
func Newf(code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithDetails returns the error with the given details map attached.
func (e *Error) WithDetails(details map[string]any) *Error {
	e.Details = details
	return e
}

// ExitCode returns 2 for internal and storage errors, 1 for all others.
func (e *Error) ExitCode() int {
	if e.Code == InternalError || e.Code == StorageError {
		return 2 //nolint:mnd // exit code 2 for errors the user cannot fix
	}
	return 1
}

// HasCode reports whether err is, or wraps, an *Error with the given code.
func HasCode(err error, code string) bool {
	var ce *Error
	return errors.As(err, &ce) && ce.Code == code
}

// SilentError signals an exit code without additional output.
// Used by batch operations where results are already written to stdout.
type SilentError struct {
	Code int
}

// Error implements the error interface.
func (e *SilentError) Error() string { return "exit " + strconv.Itoa(e.Code) }
