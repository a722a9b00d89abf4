package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// Outcome is the result of one command invocation.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailed  Outcome = "failed"
)

// IsValid returns true if the outcome is valid.
func (o Outcome) IsValid() bool {
	switch o {
	case OutcomeSuccess, OutcomeFailed:
		return true
	}
	return false
}

// Attempt records one invocation of a mutating or network command and its
// single result.
type Attempt struct {
	ID        int64     `json:"id"`
	Command   string    `json:"command"`
	Args      string    `json:"args"`
	Source    string    `json:"source,omitempty"`
	Outcome   Outcome   `json:"outcome"`
	ErrorKind string    `json:"error_kind,omitempty"`
	Message   string    `json:"message"`
	Details   string    `json:"details,omitempty"` // JSON string
	CreatedAt time.Time `json:"created_at"`
}

// Validate validates the attempt.
func (a *Attempt) Validate() error {
	if a.Command == "" {
		return fmt.Errorf("attempt command cannot be empty")
	}
	if !a.Outcome.IsValid() {
		return fmt.Errorf("invalid outcome: %s", a.Outcome)
	}
	if a.Outcome == OutcomeFailed && a.ErrorKind == "" {
		return fmt.Errorf("failed attempt requires an error kind")
	}
	return nil
}

// GetDetails parses the JSON details into a map.
func (a *Attempt) GetDetails() (map[string]interface{}, error) {
	if a.Details == "" {
		return nil, nil
	}
	var details map[string]interface{}
	if err := json.Unmarshal([]byte(a.Details), &details); err != nil {
		return nil, fmt.Errorf("failed to parse details: %w", err)
	}
	return details, nil
}

// SetDetails sets the details from a map.
func (a *Attempt) SetDetails(details map[string]interface{}) error {
	if len(details) == 0 {
		a.Details = ""
		return nil
	}
	data, err := json.Marshal(details)
	if err != nil {
		return fmt.Errorf("failed to marshal details: %w", err)
	}
	a.Details = string(data)
	return nil
}
