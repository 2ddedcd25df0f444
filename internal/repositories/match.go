package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/isrcx/internal/models"
)

// MatchRepository implements models.Repository[*models.Match].
type MatchRepository struct {
	db *sql.DB
}

// NewMatchRepository creates a new MatchRepository with the given database connection
func NewMatchRepository(db *sql.DB) *MatchRepository {
	return &MatchRepository{db: db}
}

// Create inserts a match, replacing any previous resolution of the same identifier.
func (r *MatchRepository) Create(match *models.Match) error {
	if err := match.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	query := `
		INSERT INTO matches (identifier, uri, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(identifier) DO UPDATE SET uri = excluded.uri, updated_at = excluded.updated_at
	`

	if _, err := r.db.Exec(query, match.ID(), match.URI, match.CreatedAt(), match.UpdatedAt()); err != nil {
		return fmt.Errorf("failed to insert match: %w", err)
	}
	return nil
}

// Get retrieves the match for identifier.
func (r *MatchRepository) Get(identifier string) (*models.Match, error) {
	query := `SELECT identifier, uri, created_at, updated_at FROM matches WHERE identifier = ?`
	match, err := scanMatch(r.db.QueryRow(query, identifier))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: match %s", ErrNotFound, identifier)
	}
	return match, err
}

// Update changes the URI of an existing match.
func (r *MatchRepository) Update(match *models.Match) error {
	if err := match.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now().UTC()
	match.SetUpdatedAt(now)

	result, err := r.db.Exec(`UPDATE matches SET uri = ?, updated_at = ? WHERE identifier = ?`, match.URI, now, match.ID())
	if err != nil {
		return fmt.Errorf("failed to update match: %w", err)
	}
	if err := affected(result); err != nil {
		return fmt.Errorf("failed to update match %s: %w", match.ID(), err)
	}
	return nil
}

// Delete evicts identifier from the cache.
func (r *MatchRepository) Delete(identifier string) error {
	result, err := r.db.Exec(`DELETE FROM matches WHERE identifier = ?`, identifier)
	if err != nil {
		return fmt.Errorf("failed to delete match: %w", err)
	}
	if err := affected(result); err != nil {
		return fmt.Errorf("failed to delete match %s: %w", identifier, err)
	}
	return nil
}

// List returns matches ordered by identifier. Supported criteria: "uri" (string), "limit" (int).
func (r *MatchRepository) List(criteria map[string]any) ([]*models.Match, error) {
	query := `SELECT identifier, uri, created_at, updated_at FROM matches WHERE 1 = 1`
	args := []any{}

	if uri, ok := criteria["uri"].(string); ok && uri != "" {
		query += " AND uri = ?"
		args = append(args, uri)
	}

	query += " ORDER BY identifier ASC"

	if limit, ok := criteria["limit"].(int); ok && limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query matches: %w", err)
	}
	defer rows.Close()

	var matches []*models.Match
	for rows.Next() {
		match, err := scanMatch(rows)
		if err != nil {
			return nil, err
		}
		matches = append(matches, match)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return matches, nil
}

// Count returns the number of cached matches.
func (r *MatchRepository) Count() (int, error) {
	var n int
	if err := r.db.QueryRow(`SELECT COUNT(*) FROM matches`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count matches: %w", err)
	}
	return n, nil
}

// Clear removes every cached match and returns how many were removed.
func (r *MatchRepository) Clear() (int64, error) {
	result, err := r.db.Exec(`DELETE FROM matches`)
	if err != nil {
		return 0, fmt.Errorf("failed to clear matches: %w", err)
	}
	return result.RowsAffected()
}

func scanMatch(s scanner) (*models.Match, error) {
	var (
		identifier string
		uri        string
		createdAt  time.Time
		updatedAt  time.Time
	)

	if err := s.Scan(&identifier, &uri, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan match: %w", err)
	}

	match := models.NewMatch(identifier, uri)
	match.SetCreatedAt(createdAt)
	match.SetUpdatedAt(updatedAt)
	return match, nil
}
