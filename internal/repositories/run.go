package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/isrcx/internal/models"
	"github.com/desertthunder/isrcx/internal/shared"
)

const runColumns = `id, playlist_id, playlist_name, source, total, found, not_found, failed, submitted, status, error, started_at, finished_at, created_at, updated_at`

// RunRepository implements models.Repository[*models.Run] for run history.
type RunRepository struct {
	db *sql.DB
}

// NewRunRepository creates a new RunRepository with the given database connection
func NewRunRepository(db *sql.DB) *RunRepository {
	return &RunRepository{db: db}
}

// Create inserts run with a generated ID.
func (r *RunRepository) Create(run *models.Run) error {
	if run.ID() == "" {
		run.SetID(shared.GenerateID())
	}
	if err := run.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	query := `INSERT INTO runs (` + runColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.Exec(query,
		run.ID(),
		run.PlaylistID,
		run.PlaylistName,
		run.Source,
		run.Total,
		run.Found,
		run.NotFound,
		run.Failed,
		run.Submitted,
		string(run.Status),
		run.Error,
		run.StartedAt,
		nullTime(run.FinishedAt),
		run.CreatedAt(),
		run.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}
	return nil
}

// Get retrieves a run by ID.
func (r *RunRepository) Get(id string) (*models.Run, error) {
	run, err := scanRun(r.db.QueryRow(`SELECT `+runColumns+` FROM runs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: run %s", ErrNotFound, id)
	}
	return run, err
}

// Update stores the counters, status and finish time of run.
func (r *RunRepository) Update(run *models.Run) error {
	if err := run.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now().UTC()
	run.SetUpdatedAt(now)

	query := `
		UPDATE runs
		SET playlist_id = ?, playlist_name = ?, total = ?, found = ?, not_found = ?, failed = ?, submitted = ?,
		    status = ?, error = ?, finished_at = ?, updated_at = ?
		WHERE id = ?
	`
	result, err := r.db.Exec(query,
		run.PlaylistID,
		run.PlaylistName,
		run.Total,
		run.Found,
		run.NotFound,
		run.Failed,
		run.Submitted,
		string(run.Status),
		run.Error,
		nullTime(run.FinishedAt),
		now,
		run.ID(),
	)
	if err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}
	if err := affected(result); err != nil {
		return fmt.Errorf("failed to update run %s: %w", run.ID(), err)
	}
	return nil
}

// Finish marks run as finished with status and stores it.
func (r *RunRepository) Finish(run *models.Run, status models.RunStatus, runErr error) error {
	finished := time.Now().UTC()
	run.FinishedAt = &finished
	run.Status = status
	if runErr != nil {
		run.Error = runErr.Error()
	}
	return r.Update(run)
}

// Delete removes a run by ID.
func (r *RunRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	if err := affected(result); err != nil {
		return fmt.Errorf("failed to delete run %s: %w", id, err)
	}
	return nil
}

// List returns runs, newest first. Supported criteria: "status" (models.RunStatus or string), "limit" (int).
func (r *RunRepository) List(criteria map[string]any) ([]*models.Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE 1 = 1`
	args := []any{}

	switch status := criteria["status"].(type) {
	case models.RunStatus:
		query += " AND status = ?"
		args = append(args, string(status))
	case string:
		if status != "" {
			query += " AND status = ?"
			args = append(args, status)
		}
	}

	query += " ORDER BY started_at DESC"

	if limit, ok := criteria["limit"].(int); ok && limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []*models.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return runs, nil
}

func scanRun(s scanner) (*models.Run, error) {
	var (
		run        models.Run
		id         string
		status     string
		finishedAt sql.NullTime
		createdAt  time.Time
		updatedAt  time.Time
	)

	err := s.Scan(
		&id,
		&run.PlaylistID,
		&run.PlaylistName,
		&run.Source,
		&run.Total,
		&run.Found,
		&run.NotFound,
		&run.Failed,
		&run.Submitted,
		&status,
		&run.Error,
		&run.StartedAt,
		&finishedAt,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan run: %w", err)
	}

	run.SetID(id)
	run.SetCreatedAt(createdAt)
	run.SetUpdatedAt(updatedAt)
	run.Status = models.RunStatus(status)
	if finishedAt.Valid {
		t := finishedAt.Time
		run.FinishedAt = &t
	}
	return &run, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
