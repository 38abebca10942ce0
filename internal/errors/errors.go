// Package errors defines the coded errors wpstatus reports. Callers branch on
// the code with IsCode instead of matching message text.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Error codes for categorizing failures
const (
	// ErrParse marks a malformed line in the wpctl status dump.
	ErrParse = "PARSE"
	// ErrUnavailable marks a wpctl or pw-mon binary that could not be run.
	ErrUnavailable = "UNAVAILABLE"
	// ErrEmpty marks a query that returned no sinks or no sources.
	ErrEmpty = "EMPTY"
	// ErrStream marks the end of the pw-mon event stream.
	ErrStream = "STREAM"
	// ErrConfig marks an invalid configuration value.
	ErrConfig = "CONFIG"
)

// Error is a structured error with a code, a message, an optional hint and
// an optional cause.
type Error struct {
	Code       string
	Message    string
	Suggestion string
	Cause      error
}

// New creates a new structured error.
func New(code, message, suggestion string) *Error {
	return &Error{
		Code:       code,
		Message:    message,
		Suggestion: suggestion,
	}
}

// Wrap wraps err with a code and message.
func Wrap(err error, code, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// WrapWithSuggestion wraps err with a code, a message and a hint for the user.
func WrapWithSuggestion(err error, code, message, suggestion string) *Error {
	return &Error{
		Code:       code,
		Message:    message,
		Suggestion: suggestion,
		Cause:      err,
	}
}

// Error renders "message: cause" with the suggestion on a second line.
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Message)
	if e.Cause != nil {
		fmt.Fprintf(&b, ": %s", e.Cause.Error())
	}
	if e.Suggestion != "" {
		fmt.Fprintf(&b, "\n  %s", e.Suggestion)
	}
	return b.String()
}

// Unwrap returns the underlying cause for use with errors.Is/errors.As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// IsCode reports whether any *Error in err's chain carries code.
func IsCode(err error, code string) bool {
	for err != nil {
		var e *Error
		if !errors.As(err, &e) {
			return false
		}
		if e.Code == code {
			return true
		}
		err = e.Cause
	}
	return false
}

// Is forwards to the standard library so callers need only one errors import.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As forwards to the standard library so callers need only one errors import.
func As(err error, target any) bool {
	return errors.As(err, target)
}
