package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestKindString(t *testing.T) {
	tests := []struct {
		kind     Kind
		expected string
	}{
		{KindInvalidArgs, "InvalidArgs"},
		{KindNotFound, "NotFound"},
		{KindConflict, "Conflict"},
		{KindInternal, "Internal"},
		{KindNetwork, "Network"},
		{KindEgressBlocked, "EgressBlocked"},
		{KindGeneral, "General"},
		{Kind(99), "Unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := tt.kind.String(); got != tt.expected {
				t.Errorf("Kind.String() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestErrorWithCause(t *testing.T) {
	cause := errors.New("disk full")
	err := WrapInternal(cause, "failed to write skill")

	expected := "failed to write skill: disk full"
	if err.Error() != expected {
		t.Errorf("Error() = %q, want %q", err.Error(), expected)
	}
	if !errors.Is(err, cause) {
		t.Error("errors.Is(err, cause) = false, want true")
	}
}

func TestCLIExitCode(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		expected int
	}{
		{"InvalidArgs", InvalidArgs("Missing --path for GitHub URL."), 2},
		{"NotFound", NotFound("not found"), 3},
		{"Internal", Internal("db error"), 5},
		{"Conflict", Conflict("already installed"), 6},
		{"Network", Wrap(errors.New("timeout"), KindNetwork, "fetch"), 7},
		{"EgressBlocked", Wrap(errors.New("403"), KindEgressBlocked, "tunnel"), 8},
		{"General", General("general error"), 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.CLIExitCode(); got != tt.expected {
				t.Errorf("CLIExitCode() = %d, want %d", got, tt.expected)
			}
		})
	}
}

func TestFromHTTPStatus(t *testing.T) {
	tests := []struct {
		status   int
		expected Kind
	}{
		{http.StatusNotFound, KindNotFound},
		{http.StatusGone, KindNotFound},
		{http.StatusUnprocessableEntity, KindInvalidArgs},
		{http.StatusTooManyRequests, KindNetwork},
		{http.StatusBadGateway, KindNetwork},
		{http.StatusUnauthorized, KindGeneral},
		{http.StatusForbidden, KindGeneral},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			if got := FromHTTPStatus(tt.status); got != tt.expected {
				t.Errorf("FromHTTPStatus(%d) = %v, want %v", tt.status, got, tt.expected)
			}
		})
	}
}

func TestWithDetailsAndSuggestion(t *testing.T) {
	err := NotFound("skill not found").
		WithDetails("repo", "acme/skills").
		WithDetails("path", "skills/pdf").
		WithSuggestion("Run 'skiller probe acme/skills' to list refs")

	if len(err.Details) != 2 {
		t.Errorf("len(Details) = %d, want 2", len(err.Details))
	}
	if err.Details["repo"] != "acme/skills" {
		t.Errorf("Details[repo] = %v, want %q", err.Details["repo"], "acme/skills")
	}
	if err.Suggestion != "Run 'skiller probe acme/skills' to list refs" {
		t.Errorf("Suggestion = %q", err.Suggestion)
	}
}

func TestGetKindThroughWrapping(t *testing.T) {
	inner := Wrap(errors.New("refused"), KindEgressBlocked, "CONNECT tunnel failed, response 403")
	outer := fmt.Errorf("install failed: %w", inner)

	if got := GetKind(outer); got != KindEgressBlocked {
		t.Errorf("GetKind() = %v, want %v", got, KindEgressBlocked)
	}
	if got := GetCLIExitCode(outer); got != 8 {
		t.Errorf("GetCLIExitCode() = %d, want 8", got)
	}
	if got := GetKind(errors.New("plain")); got != KindGeneral {
		t.Errorf("GetKind(plain) = %v, want %v", got, KindGeneral)
	}
}

func TestGetSuggestion(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", InvalidArgs("bad").WithSuggestion("try --repo"))
	if got := GetSuggestion(err); got != "try --repo" {
		t.Errorf("GetSuggestion() = %q, want %q", got, "try --repo")
	}
	if got := GetSuggestion(errors.New("plain")); got != "" {
		t.Errorf("GetSuggestion(plain) = %q, want empty", got)
	}
}

func TestIs(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		kind     Kind
		expected bool
	}{
		{"matching kind", NotFound("not found"), KindNotFound, true},
		{"non-matching kind", NotFound("not found"), KindInvalidArgs, false},
		{"wrapped", fmt.Errorf("x: %w", Conflict("exists")), KindConflict, true},
		{"standard error", errors.New("standard"), KindNotFound, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Is(tt.err, tt.kind); got != tt.expected {
				t.Errorf("Is() = %v, want %v", got, tt.expected)
			}
		})
	}
}
