// Package models defines the domain models for skiller.
package models

import (
	"fmt"
	"time"
)

// Installation is one skill installed into one harness directory.
type Installation struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Owner       string    `json:"owner"`
	Repo        string    `json:"repo"`
	Ref         string    `json:"ref,omitempty"`
	Commit      string    `json:"commit"`
	Path        string    `json:"path"`
	Harness     string    `json:"harness"`
	TargetDir   string    `json:"target_dir"`
	FileCount   int       `json:"file_count"`
	// Exclude holds the --exclude patterns the skill was installed with.
	Exclude     []string  `json:"exclude,omitempty"`
	InstalledAt time.Time `json:"installed_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// FullName returns owner/repo.
func (i *Installation) FullName() string {
	return i.Owner + "/" + i.Repo
}

// ShortCommit returns the first 7 characters of the commit.
func (i *Installation) ShortCommit() string {
	if len(i.Commit) > 7 {
		return i.Commit[:7]
	}
	return i.Commit
}

// Validate validates the installation fields.
func (i *Installation) Validate() error {
	if i.Name == "" {
		return fmt.Errorf("installation name cannot be empty")
	}
	if i.Owner == "" || i.Repo == "" {
		return fmt.Errorf("installation repository is required")
	}
	if i.Harness == "" {
		return fmt.Errorf("installation harness is required")
	}
	if i.TargetDir == "" {
		return fmt.Errorf("installation target directory is required")
	}
	return nil
}
