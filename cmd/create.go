package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/desertthunder/isrcx/internal/formatter"
	"github.com/desertthunder/isrcx/internal/metrics"
	"github.com/desertthunder/isrcx/internal/models"
	"github.com/desertthunder/isrcx/internal/repositories"
	"github.com/desertthunder/isrcx/internal/retry"
	"github.com/desertthunder/isrcx/internal/shared"
	"github.com/desertthunder/isrcx/internal/source"
	"github.com/desertthunder/isrcx/internal/tasks"
	"github.com/desertthunder/isrcx/internal/ui"
	"github.com/urfave/cli/v3"
)

// Create reads identifiers from a CSV file, looks each one up on Spotify and
// adds the matches to a new playlist.
//
// Missing --csv and --name values are prompted for on stdin.
func (r *Runner) Create(ctx context.Context, cmd *cli.Command) error {
	path := cmd.String("csv")
	name := cmd.String("name")
	dryRun := cmd.Bool("dry-run")
	column := cmd.String("column")
	if column == "" {
		column = r.config.Lookup.Column
	}

	var err error
	if path == "" {
		if path, err = r.prompt("CSV file path"); err != nil {
			return err
		}
	}

	src := source.NewCSV(path, column)
	columns, err := src.Columns()
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	r.logger.Info("available columns", "columns", columns)

	total, err := src.Count()
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	if name == "" && !dryRun {
		if name, err = r.prompt("Playlist name"); err != nil {
			return err
		}
	}

	catalog, err := r.spotify(ctx)
	if err != nil {
		return err
	}
	defer r.saveToken()

	recorder := metrics.NewRecorder()
	updates := make(chan tasks.ProgressUpdate, 256)
	observer := tasks.MultiObserver{tasks.NewChannelObserver(updates), recorder}

	invoker := retry.New(r.policy(),
		retry.WithLogger(shared.WithLogger(r.logger, "component", "retry")),
		retry.WithSleeper(r.sleep),
		retry.WithNotifier(func(a retry.Attempt) {
			observer.OnProgress(tasks.Retry, 1)
			recorder.ObserveRetry(a)
		}),
	)

	var db *sql.DB
	if r.config.Lookup.Cache || cmd.Bool("history") {
		if db, err = r.database(); err != nil {
			r.logger.Warn("database unavailable, continuing without cache and history", "error", err)
		}
	}

	lookupOpts := tasks.LookupOptions{
		Throttle: r.config.Lookup.Throttle.Duration,
		Observer: observer,
		Logger:   shared.WithLogger(r.logger, "component", "lookup"),
		Sleep:    r.sleep,
	}
	if db != nil && r.config.Lookup.Cache && !cmd.Bool("no-cache") {
		lookupOpts.Cache = repositories.NewMatchCacheAdapter(repositories.NewMatchRepository(db))
	}

	engineLogger := shared.WithLogger(r.logger, "component", "engine")
	lookup := tasks.NewLookupStage(catalog, invoker, lookupOpts)
	submit := tasks.NewBatchSubmitter(catalog, invoker, r.config.Submit.ChunkSize, observer, shared.WithLogger(r.logger, "component", "submit"))
	engine := tasks.NewPlaylistEngine(catalog, invoker, lookup, submit, observer, engineLogger)

	var runs *repositories.RunRepository
	var run *models.Run
	if db != nil && cmd.Bool("history") {
		runs = repositories.NewRunRepository(db)
		run = models.NewRun(name, path)
		if err := runs.Create(run); err != nil {
			r.logger.Warn("failed to record run", "error", err)
			runs = nil
		}
	}

	console := ui.NewConsole(r.progress, ui.IsTerminal(r.progress))
	rendered := make(chan struct{})
	go func() {
		console.Consume(updates)
		close(rendered)
	}()

	result, runErr := engine.Run(ctx, src.Requests(), tasks.RunOptions{
		Name:   name,
		Public: !cmd.Bool("private"),
		DryRun: dryRun,
		Total:  total,
	})
	close(updates)
	<-rendered

	if result != nil {
		recorder.ObserveRun(result.FinishedAt.Sub(result.StartedAt))
	}
	if runs != nil {
		r.finishRun(runs, run, result, runErr)
	}
	if err := r.writeArtifacts(cmd, recorder, result); err != nil {
		return err
	}

	if runErr != nil && !errors.Is(runErr, shared.ErrNoMatches) {
		if errors.Is(runErr, shared.ErrTokenExpired) {
			r.writePlainln("%s", ui.Warning("Authorization expired. Run 'isrcx auth' and try again."))
		}
		if result != nil && result.Tally != nil {
			r.output.Write(formatter.SummaryToText(result))
		}
		return runErr
	}

	if cmd.Bool("json") {
		if err := r.writeJSON(formatter.NewRunSummary(result), cmd.Bool("pretty")); err != nil {
			return err
		}
		return runErr
	}

	switch {
	case runErr != nil && result.DryRun:
		r.writePlainln("%s", ui.Warning("No tracks found. Dry run complete."))
	case runErr != nil:
		r.writePlainln("%s", ui.Warning("No tracks found. Nothing was added to the playlist."))
	case result.DryRun:
		r.writePlainln("%s", ui.Title("Dry run complete"))
	default:
		r.writePlainln("%s", ui.Success(fmt.Sprintf("Playlist '%s' created successfully!", result.Playlist.Name)))
	}
	r.output.Write(formatter.SummaryToText(result))
	return runErr
}

// policy maps the retry config onto a [retry.Policy].
func (r *Runner) policy() retry.Policy {
	return retry.Policy{
		MaxAttempts:       r.config.Retry.MaxAttempts,
		BaseDelay:         r.config.Retry.BaseDelay.Duration,
		DefaultRetryAfter: r.config.Retry.DefaultRetryAfter.Duration,
		FailFast:          r.config.Retry.FailFast,
	}
}

// finishRun copies the outcome of a pipeline run into its history record.
func (r *Runner) finishRun(runs *repositories.RunRepository, run *models.Run, result *tasks.RunResult, runErr error) {
	status := models.RunCompleted
	switch {
	case errors.Is(runErr, shared.ErrNoMatches):
		status, runErr = models.RunNoMatches, nil
	case runErr != nil:
		status = models.RunFailed
	case result.DryRun:
		status = models.RunDryRun
	}

	if result != nil {
		if result.Playlist != nil {
			run.PlaylistID = result.Playlist.ID
			run.PlaylistName = result.Playlist.Name
		}
		run.Total = result.Summary.Total
		run.Found = result.Summary.Found
		run.NotFound = result.Summary.NotFound
		run.Failed = result.Summary.Failed
		run.Submitted = result.Submitted
	}

	if err := runs.Finish(run, status, runErr); err != nil {
		r.logger.Warn("failed to update run history", "run", run.ID(), "error", err)
	}
}

// writeArtifacts writes the per-row report and the metrics textfile when requested.
func (r *Runner) writeArtifacts(cmd *cli.Command, recorder *metrics.Recorder, result *tasks.RunResult) error {
	if path := cmd.String("report"); path != "" && result != nil && result.Tally != nil {
		if err := formatter.WriteReportFile(path, result.Tally.Results); err != nil {
			return err
		}
		r.logger.Info("report written", "path", path, "rows", len(result.Tally.Results))
	}

	if path := cmd.String("metrics-file"); path != "" {
		if err := recorder.WriteToTextfile(path); err != nil {
			return err
		}
		r.logger.Info("metrics written", "path", path)
	}
	return nil
}

func createCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "create",
		Usage: "Create a Spotify playlist from the ISRC codes in a CSV file",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "csv",
				Aliases: []string{"f"},
				Usage:   "CSV file to read (prompted when omitted)",
			},
			&cli.StringFlag{
				Name:    "name",
				Aliases: []string{"n"},
				Usage:   "Name of the new playlist (prompted when omitted)",
			},
			&cli.StringFlag{
				Name:  "column",
				Usage: "Header of the column holding the ISRC codes (default from config, then ISRC)",
			},
			&cli.BoolFlag{
				Name:  "private",
				Usage: "Create a private playlist",
			},
			&cli.BoolFlag{
				Name:  "dry-run",
				Usage: "Look up tracks without creating a playlist",
			},
			&cli.BoolFlag{
				Name:  "no-cache",
				Usage: "Ignore and do not update the local match cache",
			},
			&cli.BoolFlag{
				Name:  "history",
				Usage: "Record the run in the local database",
				Value: true,
			},
			&cli.StringFlag{
				Name:  "report",
				Usage: "Write a CSV report with the outcome of every row",
			},
			&cli.StringFlag{
				Name:  "metrics-file",
				Usage: "Write run metrics in Prometheus text format",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Print the summary as JSON",
			},
			&cli.BoolFlag{
				Name:  "pretty",
				Usage: "Indent JSON output",
				Value: true,
			},
		},
		Action: r.Create,
	}
}
