package output

import (
	"errors"
	"fmt"
)

// CLIError represents a user-facing error with an optional suggested fix.
type CLIError struct {
	Message string // what went wrong
	Cause   error  // underlying error (optional)
	Fix     string // suggested fix (optional)
}

// Error implements the error interface.
func (e *CLIError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying error.
func (e *CLIError) Unwrap() error {
	return e.Cause
}

// NewError creates a new CLIError with just a message.
func NewError(message string) *CLIError {
	return &CLIError{Message: message}
}

// NewErrorWithFix creates a new CLIError with a message and suggested fix.
func NewErrorWithFix(message, fix string) *CLIError {
	return &CLIError{Message: message, Fix: fix}
}

// WrapError wraps an existing error with a message and optional fix.
func WrapError(err error, message string) *CLIError {
	return &CLIError{Message: message, Cause: err}
}

// WrapErrorWithFix wraps an existing error with a message and suggested fix.
func WrapErrorWithFix(err error, message, fix string) *CLIError {
	return &CLIError{Message: message, Cause: err, Fix: fix}
}

type reportedError struct {
	err error
}

func (e *reportedError) Error() string { return e.err.Error() }
func (e *reportedError) Unwrap() error { return e.err }

// Reported marks err as already carried by the command's stdout result, for
// example a scan report followed by a findings exit code. PrintError does
// not emit a second JSON document for it.
func Reported(err error) error {
	if err == nil {
		return nil
	}
	return &reportedError{err: err}
}

// IsReported reports whether err, or an error it wraps, was marked with Reported.
func IsReported(err error) bool {
	var r *reportedError
	return errors.As(err, &r)
}

// PrintError reports a command failure. In text mode it logs the error and
// any suggested fix to stderr. In JSON mode it writes an error envelope to
// stdout, unless the error was already reported there.
func PrintError(err error) {
	if err == nil {
		return
	}
	if JSONMode {
		if !IsReported(err) {
			JSONError(err)
		}
		return
	}

	Error(err.Error())
	var cliErr *CLIError
	if errors.As(err, &cliErr) && cliErr.Fix != "" {
		if NoColor() {
			Info("Fix: " + cliErr.Fix)
		} else {
			Info("💡 " + cliErr.Fix)
		}
	}
}
