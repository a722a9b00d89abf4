package cli

import (
	"errors"
	"fmt"
	"strings"

	serrors "github.com/spetersoncode/skiller/internal/errors"
)

// SkillerError is a CLI-level error with an exit code and optional suggestion.
// Errors from the internal packages use the shared errors.Error type instead;
// both are understood by ExitCode and FormatErrorMessage.
type SkillerError struct {
	Code       int
	Message    string
	Cause      error
	Suggestion string
}

func (e *SkillerError) Error() string {
	var b strings.Builder
	b.WriteString(e.Message)
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

func (e *SkillerError) Unwrap() error {
	return e.Cause
}

// Kind returns the shared error kind matching the exit code, for the
// attempt ledger.
func (e *SkillerError) Kind() serrors.Kind {
	switch e.Code {
	case ExitInvalidArgs:
		return serrors.KindInvalidArgs
	case ExitNotFound:
		return serrors.KindNotFound
	case ExitInternalError:
		return serrors.KindInternal
	case ExitConflict:
		return serrors.KindConflict
	case ExitNetworkError:
		return serrors.KindNetwork
	case ExitEgressBlocked:
		return serrors.KindEgressBlocked
	default:
		return serrors.KindGeneral
	}
}

// FormatError returns the error message with suggestion if present
func (e *SkillerError) FormatError() string {
	return formatWithSuggestion(e.Error(), e.Suggestion)
}

// ExitCode returns the exit code for any error.
func ExitCode(err error) int {
	var sharedErr *serrors.Error
	if errors.As(err, &sharedErr) {
		return sharedErr.CLIExitCode()
	}

	var serr *SkillerError
	if errors.As(err, &serr) {
		return serr.Code
	}
	return ExitGeneralError
}

// errorKind returns the kind of any error.
func errorKind(err error) serrors.Kind {
	var sharedErr *serrors.Error
	if errors.As(err, &sharedErr) {
		return sharedErr.Kind
	}
	var serr *SkillerError
	if errors.As(err, &serr) {
		return serr.Kind()
	}
	return serrors.KindGeneral
}

// errorSuggestion returns the suggestion attached to any error.
func errorSuggestion(err error) string {
	if s := serrors.GetSuggestion(err); s != "" {
		return s
	}
	var serr *SkillerError
	if errors.As(err, &serr) {
		return serr.Suggestion
	}
	return ""
}

// FormatErrorMessage returns formatted error with suggestion if available.
func FormatErrorMessage(err error) string {
	var sharedErr *serrors.Error
	if errors.As(err, &sharedErr) {
		return formatWithSuggestion(sharedErr.Error(), serrors.GetSuggestion(err))
	}

	var serr *SkillerError
	if errors.As(err, &serr) {
		return serr.FormatError()
	}
	return "Error: " + err.Error()
}

func formatWithSuggestion(msg, suggestion string) string {
	var b strings.Builder
	b.WriteString("Error: ")
	b.WriteString(msg)
	if suggestion != "" {
		b.WriteString("\n\nSuggestion: ")
		b.WriteString(suggestion)
	}
	return b.String()
}

// Error constructors with proper exit codes

// ErrInvalidArgs creates an error for invalid arguments (exit code 2)
func ErrInvalidArgs(format string, args ...interface{}) error {
	return &SkillerError{
		Code:    ExitInvalidArgs,
		Message: fmt.Sprintf(format, args...),
	}
}

// ErrInvalidArgsWithSuggestion creates an error for invalid arguments with a suggestion
func ErrInvalidArgsWithSuggestion(suggestion, format string, args ...interface{}) error {
	return &SkillerError{
		Code:       ExitInvalidArgs,
		Message:    fmt.Sprintf(format, args...),
		Suggestion: suggestion,
	}
}

// ErrNotFoundWithSuggestion creates a not found error with a suggestion
func ErrNotFoundWithSuggestion(suggestion, format string, args ...interface{}) error {
	return &SkillerError{
		Code:       ExitNotFound,
		Message:    fmt.Sprintf(format, args...),
		Suggestion: suggestion,
	}
}

// ErrDatabase creates an error for database operations (exit code 5)
func ErrDatabase(cause error, format string, args ...interface{}) error {
	return &SkillerError{
		Code:    ExitInternalError,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// ErrConflictWithSuggestion creates a conflict error with a suggestion (exit code 6)
func ErrConflictWithSuggestion(suggestion, format string, args ...interface{}) error {
	return &SkillerError{
		Code:       ExitConflict,
		Message:    fmt.Sprintf(format, args...),
		Suggestion: suggestion,
	}
}

// ErrGeneralWithCause creates a general error with a cause
func ErrGeneralWithCause(cause error, format string, args ...interface{}) error {
	return &SkillerError{
		Code:    ExitGeneralError,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// Common suggestions
const (
	SuggestListSkills = "Run 'skiller list' to see installed skills."
	SuggestConfigInit = "Run 'skiller config init --force' to write a valid sample file."
)
