package repositories

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/desertthunder/isrcx/internal/models"
	"github.com/desertthunder/isrcx/internal/shared"
)

// setupTestDB creates a SQLite database in a temp dir with migrations applied
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := shared.OpenDatabase(shared.DatabaseConfig{Path: filepath.Join(t.TempDir(), "test.db")})
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestMatchRepository(t *testing.T) {
	t.Run("Create And Get", func(t *testing.T) {
		repo := NewMatchRepository(setupTestDB(t))

		if err := repo.Create(models.NewMatch("USUM71703861", "spotify:track:1")); err != nil {
			t.Fatalf("failed to create match: %v", err)
		}

		match, err := repo.Get("USUM71703861")
		if err != nil {
			t.Fatalf("failed to get match: %v", err)
		}
		if match.URI != "spotify:track:1" {
			t.Errorf("expected uri spotify:track:1, got %s", match.URI)
		}
	})

	t.Run("Create Replaces Existing", func(t *testing.T) {
		repo := NewMatchRepository(setupTestDB(t))

		repo.Create(models.NewMatch("X", "spotify:track:old"))
		if err := repo.Create(models.NewMatch("X", "spotify:track:new")); err != nil {
			t.Fatalf("failed to upsert match: %v", err)
		}

		match, _ := repo.Get("X")
		if match.URI != "spotify:track:new" {
			t.Errorf("expected replaced uri, got %s", match.URI)
		}
		if n, _ := repo.Count(); n != 1 {
			t.Errorf("expected 1 match, got %d", n)
		}
	})

	t.Run("Get Missing", func(t *testing.T) {
		repo := NewMatchRepository(setupTestDB(t))
		if _, err := repo.Get("missing"); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("Validation", func(t *testing.T) {
		repo := NewMatchRepository(setupTestDB(t))
		if err := repo.Create(models.NewMatch("X", "")); err == nil {
			t.Error("expected validation error")
		}
	})

	t.Run("Update", func(t *testing.T) {
		repo := NewMatchRepository(setupTestDB(t))
		match := models.NewMatch("X", "spotify:track:1")
		repo.Create(match)

		match.URI = "spotify:track:2"
		if err := repo.Update(match); err != nil {
			t.Fatalf("failed to update: %v", err)
		}
		got, _ := repo.Get("X")
		if got.URI != "spotify:track:2" {
			t.Errorf("expected updated uri, got %s", got.URI)
		}

		if err := repo.Update(models.NewMatch("missing", "u")); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		repo := NewMatchRepository(setupTestDB(t))
		repo.Create(models.NewMatch("X", "spotify:track:1"))

		if err := repo.Delete("X"); err != nil {
			t.Fatalf("failed to delete: %v", err)
		}
		if err := repo.Delete("X"); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound on second delete, got %v", err)
		}
	})

	t.Run("List And Clear", func(t *testing.T) {
		repo := NewMatchRepository(setupTestDB(t))
		for _, id := range []string{"C", "A", "B"} {
			repo.Create(models.NewMatch(id, "spotify:track:"+id))
		}

		matches, err := repo.List(map[string]any{})
		if err != nil {
			t.Fatalf("failed to list: %v", err)
		}
		if len(matches) != 3 || matches[0].Identifier() != "A" {
			t.Errorf("expected 3 matches ordered by identifier, got %d", len(matches))
		}

		limited, _ := repo.List(map[string]any{"limit": 2})
		if len(limited) != 2 {
			t.Errorf("expected 2 matches, got %d", len(limited))
		}

		byURI, _ := repo.List(map[string]any{"uri": "spotify:track:B"})
		if len(byURI) != 1 || byURI[0].Identifier() != "B" {
			t.Errorf("expected match B, got %v", byURI)
		}

		removed, err := repo.Clear()
		if err != nil || removed != 3 {
			t.Errorf("expected 3 removed, got %d (%v)", removed, err)
		}
	})
}

func TestMatchCacheAdapter(t *testing.T) {
	ctx := context.Background()
	cache := NewMatchCacheAdapter(NewMatchRepository(setupTestDB(t)))

	if _, ok, err := cache.Get(ctx, "X"); ok || err != nil {
		t.Errorf("expected miss, got ok=%v err=%v", ok, err)
	}

	if err := cache.Put(ctx, "X", "spotify:track:1"); err != nil {
		t.Fatalf("failed to put: %v", err)
	}

	uri, ok, err := cache.Get(ctx, "X")
	if err != nil || !ok || uri != "spotify:track:1" {
		t.Errorf("expected hit, got %q ok=%v err=%v", uri, ok, err)
	}

	cctx, cancel := context.WithCancel(ctx)
	cancel()
	if _, _, err := cache.Get(cctx, "X"); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestRunRepository(t *testing.T) {
	t.Run("Create And Finish", func(t *testing.T) {
		repo := NewRunRepository(setupTestDB(t))
		run := models.NewRun("Imported", "tracks.csv")

		if err := repo.Create(run); err != nil {
			t.Fatalf("failed to create run: %v", err)
		}
		if run.ID() == "" {
			t.Fatal("run ID should be set after creation")
		}

		run.PlaylistID = "pl-1"
		run.Total, run.Found, run.NotFound, run.Failed = 3, 2, 1, 1
		run.Submitted = 2
		if err := repo.Finish(run, models.RunCompleted, nil); err != nil {
			t.Fatalf("failed to finish run: %v", err)
		}

		got, err := repo.Get(run.ID())
		if err != nil {
			t.Fatalf("failed to get run: %v", err)
		}
		if got.Status != models.RunCompleted || got.Found != 2 || got.Failed != 1 || got.Submitted != 2 || got.PlaylistID != "pl-1" {
			t.Errorf("unexpected run %+v", got)
		}
		if got.FinishedAt == nil {
			t.Error("expected finish time")
		}
		if !got.StartedAt.Equal(run.StartedAt) {
			t.Errorf("expected start %v, got %v", run.StartedAt, got.StartedAt)
		}
	})

	t.Run("Finish With Error", func(t *testing.T) {
		repo := NewRunRepository(setupTestDB(t))
		run := models.NewRun("Imported", "tracks.csv")
		repo.Create(run)

		if err := repo.Finish(run, models.RunFailed, errors.New("chunk 2 failed")); err != nil {
			t.Fatalf("failed to finish run: %v", err)
		}
		got, _ := repo.Get(run.ID())
		if got.Error != "chunk 2 failed" || got.Status != models.RunFailed {
			t.Errorf("unexpected run %+v", got)
		}
	})

	t.Run("Get Missing", func(t *testing.T) {
		repo := NewRunRepository(setupTestDB(t))
		if _, err := repo.Get("missing"); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("Invalid Counts Rejected", func(t *testing.T) {
		repo := NewRunRepository(setupTestDB(t))
		run := models.NewRun("Imported", "tracks.csv")
		run.Total, run.Found = 2, 1
		if err := repo.Create(run); err == nil {
			t.Error("expected validation error")
		}
	})

	t.Run("List", func(t *testing.T) {
		repo := NewRunRepository(setupTestDB(t))
		base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

		for i, status := range []models.RunStatus{models.RunCompleted, models.RunDryRun, models.RunCompleted} {
			run := models.NewRun("Run", "tracks.csv")
			run.StartedAt = base.Add(time.Duration(i) * time.Hour)
			run.Status = status
			if err := repo.Create(run); err != nil {
				t.Fatalf("failed to create run: %v", err)
			}
		}

		runs, err := repo.List(map[string]any{})
		if err != nil {
			t.Fatalf("failed to list runs: %v", err)
		}
		if len(runs) != 3 {
			t.Fatalf("expected 3 runs, got %d", len(runs))
		}
		if !runs[0].StartedAt.After(runs[2].StartedAt) {
			t.Error("expected newest run first")
		}

		completed, _ := repo.List(map[string]any{"status": models.RunCompleted})
		if len(completed) != 2 {
			t.Errorf("expected 2 completed runs, got %d", len(completed))
		}

		limited, _ := repo.List(map[string]any{"limit": 1})
		if len(limited) != 1 {
			t.Errorf("expected 1 run, got %d", len(limited))
		}
	})

	t.Run("Delete", func(t *testing.T) {
		repo := NewRunRepository(setupTestDB(t))
		run := models.NewRun("Imported", "tracks.csv")
		repo.Create(run)

		if err := repo.Delete(run.ID()); err != nil {
			t.Fatalf("failed to delete run: %v", err)
		}
		if err := repo.Delete(run.ID()); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})
}
