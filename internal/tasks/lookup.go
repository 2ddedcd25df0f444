package tasks

import (
	"context"
	"fmt"
	"io"
	"iter"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/isrcx/internal/retry"
	"github.com/desertthunder/isrcx/internal/services"
)

// DefaultThrottle is the pause after every completed search call.
const DefaultThrottle = 100 * time.Millisecond

// TrackSearcher is the part of [services.Catalog] used by lookups.
type TrackSearcher interface {
	SearchTracks(ctx context.Context, query string, limit int) (*services.SpotifySearchResponse, error)
}

// MatchCache persists identifier to item resolutions across runs.
//
// Implemented by repositories.MatchRepository.
type MatchCache interface {
	Get(ctx context.Context, identifier string) (string, bool, error)
	Put(ctx context.Context, identifier, uri string) error
}

// LookupOptions configures a [LookupStage]. Zero values select defaults.
type LookupOptions struct {
	Throttle time.Duration // negative disables the pause
	Cache    MatchCache
	Observer Observer
	Logger   *log.Logger
	Sleep    retry.Sleeper
}

// LookupStage resolves identifiers to catalog items one request at a time.
type LookupStage struct {
	searcher TrackSearcher
	invoker  *retry.Invoker
	throttle time.Duration
	cache    MatchCache
	observer Observer
	logger   *log.Logger
	sleep    retry.Sleeper
}

// NewLookupStage creates a lookup stage that searches through invoker.
func NewLookupStage(searcher TrackSearcher, invoker *retry.Invoker, opts LookupOptions) *LookupStage {
	s := &LookupStage{
		searcher: searcher,
		invoker:  invoker,
		throttle: opts.Throttle,
		cache:    opts.Cache,
		observer: observerOrNop(opts.Observer),
		logger:   opts.Logger,
		sleep:    opts.Sleep,
	}
	if s.invoker == nil {
		s.invoker = retry.New(retry.DefaultPolicy())
	}
	if s.throttle == 0 {
		s.throttle = DefaultThrottle
	}
	if s.logger == nil {
		s.logger = log.New(io.Discard)
	}
	if s.sleep == nil {
		s.sleep = retry.SleepWithContext
	}
	return s
}

// SearchQuery builds the catalog query for an identifier.
func SearchQuery(identifier string) string {
	return "isrc:" + identifier
}

// LookupAll processes requests in order and returns the tally.
//
// An error from the sequence or a cancelled context stops the stage; the tally
// collected so far is returned with the error.
func (s *LookupStage) LookupAll(ctx context.Context, requests iter.Seq2[LookupRequest, error]) (*OutcomeTally, error) {
	tally := NewOutcomeTally()

	for req, err := range requests {
		if err != nil {
			return tally, fmt.Errorf("failed to read input: %w", err)
		}
		if err := ctx.Err(); err != nil {
			return tally, err
		}

		result := s.Lookup(ctx, req)
		if result.Status == StatusFailed && ctx.Err() != nil {
			return tally, ctx.Err()
		}

		tally.Record(result)
		s.report(result)
	}

	return tally, nil
}

// Lookup resolves a single request. It never returns an error; failures are
// reported as [StatusFailed] results.
func (s *LookupStage) Lookup(ctx context.Context, req LookupRequest) LookupResult {
	result := LookupResult{Request: req, Status: StatusNotFound}

	if strings.TrimSpace(req.Identifier) == "" {
		s.logger.Debugf("row %d: empty identifier", req.Row)
		return result
	}

	if uri, ok := s.cached(ctx, req.Identifier); ok {
		result.Status = StatusMatched
		result.Ref = MatchedItem(uri)
		result.Cached = true
		return result
	}

	resp, err := retry.Call(ctx, s.invoker, func(ctx context.Context) (*services.SpotifySearchResponse, error) {
		return s.searcher.SearchTracks(ctx, SearchQuery(req.Identifier), 1)
	})
	if err != nil {
		s.logger.Errorf("lookup failed for %s (row %d): %v", req.Identifier, req.Row, err)
		result.Status = StatusFailed
		result.Err = err
		return result
	}

	s.observer.OnProgress(Searched, 1)
	if s.throttle > 0 {
		// cancellation is picked up before the next request
		_ = s.sleep(ctx, s.throttle)
	}

	uri := firstURI(resp)
	if uri == "" {
		s.logger.Debugf("no match for %s (row %d)", req.Identifier, req.Row)
		return result
	}

	result.Status = StatusMatched
	result.Ref = MatchedItem(uri)
	s.store(ctx, req.Identifier, uri)
	return result
}

// firstURI returns the URI of the first result, or "" when the response has
// no usable match (missing container, no items, nil entry, empty URI).
func firstURI(resp *services.SpotifySearchResponse) string {
	if resp == nil || resp.Tracks == nil || len(resp.Tracks.Items) == 0 {
		return ""
	}
	first := resp.Tracks.Items[0]
	if first == nil {
		return ""
	}
	return first.URI
}

func (s *LookupStage) cached(ctx context.Context, identifier string) (string, bool) {
	if s.cache == nil {
		return "", false
	}
	uri, ok, err := s.cache.Get(ctx, identifier)
	if err != nil {
		s.logger.Warnf("match cache read failed for %s: %v", identifier, err)
		return "", false
	}
	return uri, ok && uri != ""
}

func (s *LookupStage) store(ctx context.Context, identifier, uri string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Put(ctx, identifier, uri); err != nil {
		s.logger.Warnf("match cache write failed for %s: %v", identifier, err)
	}
}

func (s *LookupStage) report(result LookupResult) {
	switch result.Status {
	case StatusMatched:
		if result.Cached {
			s.observer.OnProgress(Cached, 1)
		}
		s.observer.OnProgress(Found, 1)
	case StatusFailed:
		s.observer.OnProgress(Failed, 1)
		s.observer.OnProgress(NotFound, 1)
	default:
		s.observer.OnProgress(NotFound, 1)
	}
}
