package db

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/spetersoncode/skiller/internal/models"
)

// AttemptRepo provides database operations for the attempt ledger.
type AttemptRepo struct {
	db *sql.DB
}

// NewAttemptRepo creates a new AttemptRepo.
func NewAttemptRepo(db *sql.DB) *AttemptRepo {
	return &AttemptRepo{db: db}
}

// Record stores an attempt.
func (r *AttemptRepo) Record(a *models.Attempt) error {
	if err := a.Validate(); err != nil {
		return fmt.Errorf("invalid attempt: %w", err)
	}

	query := `
		INSERT INTO attempts (command, args, source, outcome, error_kind, message, details, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	now := time.Now()
	result, err := r.db.Exec(query,
		a.Command, a.Args, nullString(a.Source), a.Outcome, nullString(a.ErrorKind),
		a.Message, nullString(a.Details), FormatTime(now),
	)
	if err != nil {
		return fmt.Errorf("failed to record attempt: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get attempt id: %w", err)
	}
	a.ID = id
	a.CreatedAt = now
	return nil
}

// AttemptFilter defines filters for listing attempts.
type AttemptFilter struct {
	Command string
	Outcome models.Outcome
	Limit   int
}

// List retrieves attempts newest first.
func (r *AttemptRepo) List(filter AttemptFilter) ([]*models.Attempt, error) {
	query := `
		SELECT id, command, args, source, outcome, error_kind, message, details, created_at
		FROM attempts WHERE 1=1
	`
	var args []interface{}
	if filter.Command != "" {
		query += ` AND command = ?`
		args = append(args, filter.Command)
	}
	if filter.Outcome != "" {
		query += ` AND outcome = ?`
		args = append(args, filter.Outcome)
	}
	query += ` ORDER BY id DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list attempts: %w", err)
	}
	defer rows.Close()

	var attempts []*models.Attempt
	for rows.Next() {
		var a models.Attempt
		var source, kind, details sql.NullString
		if err := rows.Scan(&a.ID, &a.Command, &a.Args, &source, &a.Outcome, &kind,
			&a.Message, &details, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan attempt: %w", err)
		}
		a.Source = source.String
		a.ErrorKind = kind.String
		a.Details = details.String
		attempts = append(attempts, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating attempts: %w", err)
	}
	return attempts, nil
}

// Count returns the number of recorded attempts.
func (r *AttemptRepo) Count() (int, error) {
	var n int
	if err := r.db.QueryRow(`SELECT COUNT(*) FROM attempts`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count attempts: %w", err)
	}
	return n, nil
}
