package db

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spetersoncode/skiller/internal/models"
)

// InstallRepo provides database operations for installations.
type InstallRepo struct {
	db *sql.DB
}

// NewInstallRepo creates a new InstallRepo.
func NewInstallRepo(db *sql.DB) *InstallRepo {
	return &InstallRepo{db: db}
}

const installColumns = `id, name, description, owner, repo, ref, commit_sha, path,
	harness, target_dir, file_count, exclude, installed_at, updated_at`

// Upsert records an installation, replacing any previous record of the same
// skill in the same harness. The original ID and install time are kept.
func (r *InstallRepo) Upsert(i *models.Installation) error {
	if err := i.Validate(); err != nil {
		return fmt.Errorf("invalid installation: %w", err)
	}

	existing, err := r.Get(i.Name, i.Harness)
	if err != nil {
		return err
	}

	now := time.Now()
	if existing != nil {
		i.ID = existing.ID
		i.InstalledAt = existing.InstalledAt
	} else {
		if i.ID == "" {
			i.ID = uuid.NewString()
		}
		i.InstalledAt = now
	}
	i.UpdatedAt = now

	exclude, err := encodeExclude(i.Exclude)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO installations (` + installColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (name, harness) DO UPDATE SET
			description = excluded.description,
			owner = excluded.owner,
			repo = excluded.repo,
			ref = excluded.ref,
			commit_sha = excluded.commit_sha,
			path = excluded.path,
			target_dir = excluded.target_dir,
			file_count = excluded.file_count,
			exclude = excluded.exclude,
			updated_at = excluded.updated_at
	`
	_, err = r.db.Exec(query,
		i.ID, i.Name, nullString(i.Description), i.Owner, i.Repo, nullString(i.Ref),
		i.Commit, i.Path, i.Harness, i.TargetDir, i.FileCount, exclude,
		FormatTime(i.InstalledAt), FormatTime(i.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save installation: %w", err)
	}
	return nil
}

// Get retrieves the installation of a skill in a harness, or nil.
func (r *InstallRepo) Get(name, harness string) (*models.Installation, error) {
	query := `SELECT ` + installColumns + ` FROM installations WHERE name = ? AND harness = ?`
	return r.scanOne(r.db.QueryRow(query, name, harness))
}

// ListByName retrieves every installation of a skill across harnesses.
func (r *InstallRepo) ListByName(name string) ([]*models.Installation, error) {
	query := `SELECT ` + installColumns + ` FROM installations WHERE name = ? ORDER BY harness`
	rows, err := r.db.Query(query, name)
	if err != nil {
		return nil, fmt.Errorf("failed to list installations: %w", err)
	}
	defer rows.Close()
	return r.scanMany(rows)
}

// List retrieves all installations, optionally limited to one harness.
func (r *InstallRepo) List(harness string) ([]*models.Installation, error) {
	query := `SELECT ` + installColumns + ` FROM installations`
	var args []interface{}
	if harness != "" {
		query += ` WHERE harness = ?`
		args = append(args, harness)
	}
	query += ` ORDER BY name, harness`

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list installations: %w", err)
	}
	defer rows.Close()
	return r.scanMany(rows)
}

// Delete removes the record of a skill in a harness.
func (r *InstallRepo) Delete(name, harness string) error {
	result, err := r.db.Exec(`DELETE FROM installations WHERE name = ? AND harness = ?`, name, harness)
	if err != nil {
		return fmt.Errorf("failed to delete installation: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("installation not found")
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanInstallation(row rowScanner) (*models.Installation, error) {
	var i models.Installation
	var desc, ref, exclude sql.NullString
	err := row.Scan(&i.ID, &i.Name, &desc, &i.Owner, &i.Repo, &ref, &i.Commit, &i.Path,
		&i.Harness, &i.TargetDir, &i.FileCount, &exclude, &i.InstalledAt, &i.UpdatedAt)
	if err != nil {
		return nil, err
	}
	i.Description = desc.String
	i.Ref = ref.String
	if exclude.Valid {
		if err := json.Unmarshal([]byte(exclude.String), &i.Exclude); err != nil {
			return nil, fmt.Errorf("invalid exclude patterns for %s: %w", i.Name, err)
		}
	}
	return &i, nil
}

// encodeExclude stores exclude patterns as a JSON array; none is NULL.
func encodeExclude(patterns []string) (sql.NullString, error) {
	if len(patterns) == 0 {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(patterns)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("failed to encode exclude patterns: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func (r *InstallRepo) scanOne(row *sql.Row) (*models.Installation, error) {
	i, err := scanInstallation(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan installation: %w", err)
	}
	return i, nil
}

func (r *InstallRepo) scanMany(rows *sql.Rows) ([]*models.Installation, error) {
	var out []*models.Installation
	for rows.Next() {
		i, err := scanInstallation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan installation: %w", err)
		}
		out = append(out, i)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating installations: %w", err)
	}
	return out, nil
}
