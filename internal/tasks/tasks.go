// package tasks implements the playlist creation pipeline.
//
// The core abstraction is PlaylistEngine, which creates a playlist, looks up
// every identifier and submits the matches in bounded chunks.
// Stages emit progress through an Observer for non-blocking status reporting to the CLI.
package tasks

import (
	"context"
	"fmt"
	"io"
	"iter"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/isrcx/internal/retry"
	"github.com/desertthunder/isrcx/internal/services"
	"github.com/desertthunder/isrcx/internal/shared"
)

// RunOptions describes the playlist to build.
type RunOptions struct {
	Name   string
	Public bool
	DryRun bool // look up only, create nothing
	Total  int  // expected number of requests for progress display, 0 if unknown
}

// RunResult contains all data from a run. It is returned alongside errors
// with whatever was collected before the failure.
type RunResult struct {
	Owner      *services.SpotifyUser
	Playlist   *services.Playlist // nil on dry runs or when creation failed
	Tally      *OutcomeTally
	Summary    Summary
	Submitted  int // items added to the playlist
	DryRun     bool
	StartedAt  time.Time
	FinishedAt time.Time
}

// PlaylistEngine runs the create, lookup and submit stages in sequence.
type PlaylistEngine struct {
	catalog  services.Catalog
	invoker  *retry.Invoker
	lookup   *LookupStage
	submit   *BatchSubmitter
	observer Observer
	logger   *log.Logger
	now      func() time.Time
}

// NewPlaylistEngine creates an engine over catalog. Lookups and submissions use
// the stages given; both must share the catalog.
func NewPlaylistEngine(catalog services.Catalog, invoker *retry.Invoker, lookup *LookupStage, submit *BatchSubmitter, observer Observer, logger *log.Logger) *PlaylistEngine {
	if invoker == nil {
		invoker = retry.New(retry.DefaultPolicy())
	}
	if lookup == nil {
		lookup = NewLookupStage(catalog, invoker, LookupOptions{Observer: observer, Logger: logger})
	}
	if submit == nil {
		submit = NewBatchSubmitter(catalog, invoker, services.MaxItemsPerRequest, observer, logger)
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &PlaylistEngine{
		catalog:  catalog,
		invoker:  invoker,
		lookup:   lookup,
		submit:   submit,
		observer: observerOrNop(observer),
		logger:   logger,
		now:      time.Now,
	}
}

// Run creates the playlist, looks up every request and adds the matches.
//
// When nothing matches the playlist is left empty and the returned error wraps
// [shared.ErrNoMatches]; the result is still complete.
func (e *PlaylistEngine) Run(ctx context.Context, requests iter.Seq2[LookupRequest, error], opts RunOptions) (*RunResult, error) {
	if e.catalog == nil {
		return nil, fmt.Errorf("%w: catalog service not initialized", shared.ErrServiceUnavailable)
	}
	if opts.Name == "" && !opts.DryRun {
		return nil, fmt.Errorf("%w: playlist name is required", shared.ErrMissingArgument)
	}

	result := &RunResult{DryRun: opts.DryRun, StartedAt: e.now()}
	defer func() { result.FinishedAt = e.now() }()

	if !opts.DryRun {
		playlist, err := e.createPlaylist(ctx, result, opts)
		if err != nil {
			return result, err
		}
		result.Playlist = playlist
		e.observer.OnProgress(CreatePlaylist, 1)
		e.logger.Infof("created playlist %s (%s)", playlist.Name, playlist.ID)
	}

	if opts.Total > 0 {
		e.observer.OnProgress(Planned, opts.Total)
	}

	tally, err := e.lookup.LookupAll(ctx, requests)
	result.Tally = tally
	if tally != nil {
		result.Summary = tally.Summary()
	}
	if err != nil {
		return result, fmt.Errorf("lookup stopped after %d requests: %w", result.Summary.Total, err)
	}

	if len(tally.Matched) == 0 {
		return result, fmt.Errorf("%w: %d identifiers searched", shared.ErrNoMatches, result.Summary.Total)
	}

	if opts.DryRun {
		return result, nil
	}

	added, err := e.submit.Submit(ctx, result.Playlist.ID, tally.Matched)
	result.Submitted = added
	if err != nil {
		return result, err
	}

	return result, nil
}

func (e *PlaylistEngine) createPlaylist(ctx context.Context, result *RunResult, opts RunOptions) (*services.Playlist, error) {
	owner, err := retry.Call(ctx, e.invoker, e.catalog.CurrentUser)
	if err != nil {
		return nil, fmt.Errorf("failed to get current user: %w", err)
	}
	result.Owner = owner

	playlist, err := retry.Call(ctx, e.invoker, func(ctx context.Context) (*services.Playlist, error) {
		return e.catalog.CreatePlaylist(ctx, owner.ID, opts.Name, opts.Public)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create playlist %q: %w", opts.Name, err)
	}
	return playlist, nil
}
