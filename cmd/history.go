package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/isrcx/internal/models"
	"github.com/desertthunder/isrcx/internal/repositories"
	"github.com/desertthunder/isrcx/internal/shared"
	"github.com/urfave/cli/v3"
)

// runView is the JSON shape of a stored run.
type runView struct {
	ID           string     `json:"id"`
	PlaylistID   string     `json:"playlist_id,omitempty"`
	PlaylistName string     `json:"playlist_name,omitempty"`
	Source       string     `json:"source"`
	Status       string     `json:"status"`
	Total        int        `json:"total"`
	Found        int        `json:"found"`
	NotFound     int        `json:"not_found"`
	Failed       int        `json:"failed"`
	Submitted    int        `json:"submitted"`
	Error        string     `json:"error,omitempty"`
	StartedAt    time.Time  `json:"started_at"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
}

func newRunView(run *models.Run) runView {
	return runView{
		ID:           run.ID(),
		PlaylistID:   run.PlaylistID,
		PlaylistName: run.PlaylistName,
		Source:       run.Source,
		Status:       string(run.Status),
		Total:        run.Total,
		Found:        run.Found,
		NotFound:     run.NotFound,
		Failed:       run.Failed,
		Submitted:    run.Submitted,
		Error:        run.Error,
		StartedAt:    run.StartedAt,
		FinishedAt:   run.FinishedAt,
	}
}

// History lists recorded runs, newest first.
func (r *Runner) History(ctx context.Context, cmd *cli.Command) error {
	db, err := r.database()
	if err != nil {
		return err
	}

	runs, err := repositories.NewRunRepository(db).List(map[string]any{
		"status": cmd.String("status"),
		"limit":  cmd.Int("limit"),
	})
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		views := make([]runView, 0, len(runs))
		for _, run := range runs {
			views = append(views, newRunView(run))
		}
		return r.writeJSON(views, cmd.Bool("pretty"))
	}

	if len(runs) == 0 {
		return r.writePlain("No runs recorded yet.\n")
	}

	rows := make([][]string, 0, len(runs))
	for _, run := range runs {
		rows = append(rows, []string{
			shortID(run.ID()),
			run.StartedAt.Local().Format("2006-01-02 15:04"),
			run.PlaylistName,
			string(run.Status),
			strconv.Itoa(run.Total),
			strconv.Itoa(run.Found),
			strconv.Itoa(run.NotFound),
			formatElapsed(run.Duration()),
		})
	}

	r.writePlain("%s\n", renderTable(
		[]string{"ID", "Started", "Playlist", "Status", "Rows", "Found", "Not found", "Elapsed"},
		rows, 4, 5, 6, 7,
	))
	return nil
}

// HistoryShow prints one run in full. Unambiguous ID prefixes are accepted.
func (r *Runner) HistoryShow(ctx context.Context, cmd *cli.Command) error {
	id := cmd.String("id")
	if id == "" {
		return fmt.Errorf("%w: --id flag is required", shared.ErrMissingArgument)
	}

	db, err := r.database()
	if err != nil {
		return err
	}

	repo := repositories.NewRunRepository(db)
	run, err := repo.Get(id)
	if errors.Is(err, repositories.ErrNotFound) {
		run, err = findRunByPrefix(repo, id)
	}
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(newRunView(run), true)
	}

	r.writePlain("Run:       %s\n", run.ID())
	r.writePlain("Source:    %s\n", run.Source)
	r.writePlain("Playlist:  %s\n", run.PlaylistName)
	if run.PlaylistID != "" {
		r.writePlain("Spotify:   https://open.spotify.com/playlist/%s\n", run.PlaylistID)
	}
	r.writePlain("Status:    %s\n", run.Status)
	r.writePlain("Rows:      %d (%d found, %d not found, %d failed)\n", run.Total, run.Found, run.NotFound, run.Failed)
	r.writePlain("Added:     %d\n", run.Submitted)
	r.writePlain("Started:   %s\n", run.StartedAt.Local().Format(time.RFC1123))
	if run.FinishedAt != nil {
		r.writePlain("Elapsed:   %s\n", formatElapsed(run.Duration()))
	}
	if run.Error != "" {
		r.writePlain("Error:     %s\n", run.Error)
	}
	return nil
}

func findRunByPrefix(repo *repositories.RunRepository, prefix string) (*models.Run, error) {
	runs, err := repo.List(nil)
	if err != nil {
		return nil, err
	}

	var found *models.Run
	for _, run := range runs {
		if strings.HasPrefix(run.ID(), prefix) {
			if found != nil {
				return nil, fmt.Errorf("%w: run ID prefix %q is ambiguous", shared.ErrInvalidArgument, prefix)
			}
			found = run
		}
	}
	if found == nil {
		return nil, fmt.Errorf("run %s: %w", prefix, repositories.ErrNotFound)
	}
	return found, nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func formatElapsed(d time.Duration) string {
	if d <= 0 {
		return "-"
	}
	return d.Round(time.Second).String()
}

func historyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "Show previous playlist runs",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "status",
				Usage: "Only show runs with this status (running, completed, no_matches, dry_run, failed)",
			},
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Maximum number of runs to show",
				Value: 20,
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output as JSON",
			},
			&cli.BoolFlag{
				Name:  "pretty",
				Usage: "Indent JSON output",
			},
		},
		Action: r.History,
		Commands: []*cli.Command{
			{
				Name:  "show",
				Usage: "Show a single run",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "id",
						Usage:    "Run ID or unique prefix",
						Required: true,
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output as JSON",
					},
				},
				Action: r.HistoryShow,
			},
		},
	}
}
