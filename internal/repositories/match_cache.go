package repositories

import (
	"context"
	"errors"

	"github.com/desertthunder/isrcx/internal/models"
)

// MatchCacheAdapter implements tasks.MatchCache using MatchRepository.
//
// A missing identifier is a cache miss, not an error.
type MatchCacheAdapter struct {
	repo *MatchRepository
}

// NewMatchCacheAdapter creates a new MatchCacheAdapter with the given repository
func NewMatchCacheAdapter(repo *MatchRepository) *MatchCacheAdapter {
	return &MatchCacheAdapter{repo: repo}
}

func (a *MatchCacheAdapter) Get(ctx context.Context, identifier string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	match, err := a.repo.Get(identifier)
	if errors.Is(err, ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return match.URI, true, nil
}

func (a *MatchCacheAdapter) Put(ctx context.Context, identifier, uri string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return a.repo.Create(models.NewMatch(identifier, uri))
}
