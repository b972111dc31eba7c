package launchcli

import (
	"errors"
	"fmt"
)

// Exit codes for launcher commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Workers failed to start, are unhealthy, etc.
	ExitCommandError = 2 // Command error (bad flags, unreadable registry, etc.)
)

// ExitError represents an error with a specific exit code.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error. A nil error is success;
// an error that is not an ExitError reports ExitFailure.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}
