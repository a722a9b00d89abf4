// Package errors provides shared error types that map to CLI exit codes and
// classify the HTTP responses skiller receives from GitHub.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind represents the category of an error, which determines the CLI exit code.
type Kind int

const (
	// KindInvalidArgs represents invalid input arguments.
	// CLI exit code: 2
	KindInvalidArgs Kind = iota

	// KindNotFound represents a missing repository, ref, path or installation.
	// CLI exit code: 3
	KindNotFound

	// KindConflict represents an installation that already exists.
	// CLI exit code: 6
	KindConflict

	// KindInternal represents a database or filesystem error.
	// CLI exit code: 5
	KindInternal

	// KindNetwork represents a transport failure talking to the source host.
	// CLI exit code: 7
	KindNetwork

	// KindEgressBlocked represents an intermediary (proxy or firewall)
	// refusing outbound access to the source host.
	// CLI exit code: 8
	KindEgressBlocked

	// KindGeneral represents a general error that doesn't fit other categories.
	// CLI exit code: 1
	KindGeneral
)

// String returns a human-readable name for the error kind.
func (k Kind) String() string {
	switch k {
	case KindInvalidArgs:
		return "InvalidArgs"
	case KindNotFound:
		return "NotFound"
	case KindConflict:
		return "Conflict"
	case KindInternal:
		return "Internal"
	case KindNetwork:
		return "Network"
	case KindEgressBlocked:
		return "EgressBlocked"
	case KindGeneral:
		return "General"
	default:
		return "Unknown"
	}
}

// ExitCode returns the CLI exit code for the kind.
func (k Kind) ExitCode() int {
	switch k {
	case KindInvalidArgs:
		return 2
	case KindNotFound:
		return 3
	case KindInternal:
		return 5
	case KindConflict:
		return 6
	case KindNetwork:
		return 7
	case KindEgressBlocked:
		return 8
	default:
		return 1
	}
}

// Error represents a structured error with kind, message, cause, and optional details.
type Error struct {
	Kind       Kind
	Message    string
	Cause      error
	Details    map[string]interface{}
	Suggestion string // Optional suggestion for resolving the error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying cause, enabling errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// CLIExitCode returns the appropriate CLI exit code for this error.
func (e *Error) CLIExitCode() int {
	return e.Kind.ExitCode()
}

// WithDetails adds details to the error and returns it for chaining.
func (e *Error) WithDetails(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// WithSuggestion adds a suggestion to the error and returns it for chaining.
func (e *Error) WithSuggestion(suggestion string) *Error {
	e.Suggestion = suggestion
	return e
}

// Constructor functions

// NotFound creates an error for missing resources.
func NotFound(format string, args ...interface{}) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

// InvalidArgs creates an error for invalid arguments.
func InvalidArgs(format string, args ...interface{}) *Error {
	return &Error{Kind: KindInvalidArgs, Message: fmt.Sprintf(format, args...)}
}

// Conflict creates an error for an installation that already exists.
func Conflict(format string, args ...interface{}) *Error {
	return &Error{Kind: KindConflict, Message: fmt.Sprintf(format, args...)}
}

// Internal creates an error for internal/database errors.
func Internal(format string, args ...interface{}) *Error {
	return &Error{Kind: KindInternal, Message: fmt.Sprintf(format, args...)}
}

// General creates a general error.
func General(format string, args ...interface{}) *Error {
	return &Error{Kind: KindGeneral, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps an existing error with a specific kind and message.
func Wrap(err error, kind Kind, format string, args ...interface{}) *Error {
	return &Error{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
		Cause:   err,
	}
}

// WrapInternal wraps an error as an internal error.
func WrapInternal(err error, format string, args ...interface{}) *Error {
	return Wrap(err, KindInternal, format, args...)
}

// FromHTTPStatus maps a status code returned by the source host (not a proxy)
// to an error kind.
func FromHTTPStatus(status int) Kind {
	switch {
	case status == http.StatusNotFound || status == http.StatusGone:
		return KindNotFound
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		return KindInvalidArgs
	case status == http.StatusTooManyRequests || status >= 500:
		return KindNetwork
	default:
		return KindGeneral
	}
}

// Helper functions for extracting error information

// GetKind extracts the Kind from an error chain, returning KindGeneral if no
// *Error is present.
func GetKind(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindGeneral
}

// GetCLIExitCode extracts the CLI exit code from an error chain.
func GetCLIExitCode(err error) int {
	return GetKind(err).ExitCode()
}

// GetSuggestion returns the first suggestion found in the error chain.
func GetSuggestion(err error) string {
	for err != nil {
		if e, ok := err.(*Error); ok && e.Suggestion != "" {
			return e.Suggestion
		}
		err = errors.Unwrap(err)
	}
	return ""
}

// Is returns true if the error chain contains an *Error of the specified kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
