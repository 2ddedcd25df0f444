package tasks

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"net/http"
	"testing"
	"time"

	"github.com/desertthunder/isrcx/internal/retry"
	"github.com/desertthunder/isrcx/internal/services"
	"github.com/desertthunder/isrcx/internal/shared"
	tu "github.com/desertthunder/isrcx/internal/testing"
)

var (
	errTimeout  = fmt.Errorf("%w: read timeout", shared.ErrTimeout)
	errGateway  = &services.APIError{StatusCode: http.StatusBadGateway}
	errLimited  = &services.APIError{StatusCode: http.StatusTooManyRequests, Wait: 3 * time.Second, HasWait: true}
	errBadInput = &services.APIError{StatusCode: http.StatusBadRequest, Message: "invalid uri"}
)

func requestsOf(ids ...string) iter.Seq2[LookupRequest, error] {
	return func(yield func(LookupRequest, error) bool) {
		for i, id := range ids {
			if !yield(LookupRequest{Row: i + 1, Identifier: id}, nil) {
				return
			}
		}
	}
}

func newInvoker(rec *tu.SleepRecorder, policy retry.Policy) *retry.Invoker {
	return retry.New(policy, retry.WithSleeper(rec.Sleep))
}

// countingObserver tallies events per kind.
type countingObserver map[Phase]int

func (c countingObserver) OnProgress(kind Phase, delta int) { c[kind] += delta }

// memoryCache is an in-memory [MatchCache].
type memoryCache struct {
	entries map[string]string
	getErr  error
	puts    int
}

func (m *memoryCache) Get(ctx context.Context, identifier string) (string, bool, error) {
	if m.getErr != nil {
		return "", false, m.getErr
	}
	uri, ok := m.entries[identifier]
	return uri, ok, nil
}

func (m *memoryCache) Put(ctx context.Context, identifier, uri string) error {
	m.entries[identifier] = uri
	m.puts++
	return nil
}

func TestOutcomeTally(t *testing.T) {
	t.Run("Counts Sum To Processed", func(t *testing.T) {
		tally := NewOutcomeTally()
		tally.RecordFound("u1")
		tally.RecordNotFound()
		tally.RecordFailed(errTimeout)
		tally.RecordFound("u2")

		s := tally.Summary()
		if s.Found != 2 || s.NotFound != 2 || s.Failed != 1 || s.Total != 4 {
			t.Errorf("unexpected summary %+v", s)
		}
		if s.Found+s.NotFound != s.Total {
			t.Errorf("found + not_found != total: %+v", s)
		}
		if len(tally.Matched) != 2 || tally.Matched[0] != "u1" || tally.Matched[1] != "u2" {
			t.Errorf("unexpected matched list %v", tally.Matched)
		}
		if len(tally.Errors) != 1 {
			t.Errorf("expected one recorded error, got %d", len(tally.Errors))
		}
	})

	t.Run("Record Keeps Results", func(t *testing.T) {
		tally := NewOutcomeTally()
		tally.Record(LookupResult{Status: StatusMatched, Ref: "u1"})
		tally.Record(LookupResult{Status: StatusNotFound})
		tally.Record(LookupResult{Status: StatusFailed, Err: errTimeout})

		if len(tally.Results) != 3 {
			t.Fatalf("expected 3 results, got %d", len(tally.Results))
		}
		if tally.Failed != 1 || tally.NotFound != 2 || tally.Found != 1 {
			t.Errorf("unexpected counters %+v", tally.Summary())
		}
	})

	t.Run("Match Rate", func(t *testing.T) {
		if got := (Summary{}).MatchRate(); got != 0 {
			t.Errorf("expected 0 for empty summary, got %v", got)
		}
		if got := (Summary{Found: 1, Total: 4}).MatchRate(); got != 25 {
			t.Errorf("expected 25, got %v", got)
		}
	})
}

func TestChunk(t *testing.T) {
	tests := []struct {
		name   string
		length int
		size   int
		sizes  []int
	}{
		{"empty", 0, 100, nil},
		{"single", 1, 100, []int{1}},
		{"exact", 100, 100, []int{100}},
		{"one over", 101, 100, []int{100, 1}},
		{"several", 250, 100, []int{100, 100, 50}},
		{"small size", 5, 2, []int{2, 2, 1}},
		{"zero size", 3, 0, []int{1, 1, 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items := make([]int, tt.length)
			for i := range items {
				items[i] = i
			}

			chunks := Chunk(items, tt.size)
			if len(chunks) != len(tt.sizes) {
				t.Fatalf("expected %d chunks, got %d", len(tt.sizes), len(chunks))
			}

			next := 0
			for i, chunk := range chunks {
				if len(chunk) != tt.sizes[i] {
					t.Errorf("chunk %d: expected %d items, got %d", i, tt.sizes[i], len(chunk))
				}
				for _, v := range chunk {
					if v != next {
						t.Fatalf("chunk %d: expected item %d, got %d", i, next, v)
					}
					next++
				}
			}
			if next != tt.length {
				t.Errorf("chunks cover %d items, want %d", next, tt.length)
			}
		})
	}
}

func TestLookupStage(t *testing.T) {
	ctx := context.Background()

	t.Run("Match, Empty And Transient Recovery", func(t *testing.T) {
		catalog := tu.NewMockCatalog(map[string]string{"A1": "ref:A1", "A3": "ref:A3"})
		catalog.SearchErrors["A3"] = []error{errTimeout, errTimeout}
		rec := &tu.SleepRecorder{}
		obs := countingObserver{}

		stage := NewLookupStage(catalog, newInvoker(rec, retry.DefaultPolicy()), LookupOptions{
			Observer: obs,
			Sleep:    rec.Sleep,
		})
		tally, err := stage.LookupAll(ctx, requestsOf("A1", "A2", "A3"))
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if tally.Found != 2 || tally.NotFound != 1 {
			t.Errorf("expected found=2 not_found=1, got %+v", tally.Summary())
		}
		if len(tally.Matched) != 2 || tally.Matched[0] != "ref:A1" || tally.Matched[1] != "ref:A3" {
			t.Errorf("expected [ref:A1 ref:A3], got %v", tally.Matched)
		}
		if len(catalog.SearchCalls) != 5 {
			t.Errorf("expected 5 search calls, got %d", len(catalog.SearchCalls))
		}
		if catalog.SearchCalls[0] != "isrc:A1" {
			t.Errorf("unexpected query %s", catalog.SearchCalls[0])
		}
		if rec.Count(time.Second) != 1 || rec.Count(2*time.Second) != 1 {
			t.Errorf("expected backoff sleeps of 1s and 2s, got %v", rec.Durations)
		}
		if rec.Count(DefaultThrottle) != 3 {
			t.Errorf("expected a throttle after each of 3 searches, got %v", rec.Durations)
		}
		if obs[Found] != 2 || obs[NotFound] != 1 || obs[Searched] != 3 {
			t.Errorf("unexpected progress events %v", obs)
		}
	})

	t.Run("Response Shapes", func(t *testing.T) {
		tests := []struct {
			name string
			resp *services.SpotifySearchResponse
		}{
			{"missing container", &services.SpotifySearchResponse{}},
			{"no items", &services.SpotifySearchResponse{Tracks: &services.SpotifyTrackPage{}}},
			{"nil entry", &services.SpotifySearchResponse{Tracks: &services.SpotifyTrackPage{Items: []*services.SpotifyTrack{nil}}}},
			{"empty uri", &services.SpotifySearchResponse{Tracks: &services.SpotifyTrackPage{Items: []*services.SpotifyTrack{{ID: "x"}}}}},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				catalog := tu.NewMockCatalog(nil)
				catalog.Responses["X"] = tt.resp
				rec := &tu.SleepRecorder{}

				stage := NewLookupStage(catalog, newInvoker(rec, retry.DefaultPolicy()), LookupOptions{Sleep: rec.Sleep})
				result := stage.Lookup(ctx, LookupRequest{Row: 1, Identifier: "X"})
				if result.Status != StatusNotFound {
					t.Errorf("expected not_found, got %s", result.Status)
				}
				if result.Err != nil {
					t.Errorf("expected no error, got %v", result.Err)
				}
			})
		}
	})

	t.Run("Exhausted Lookup Counts As Not Found", func(t *testing.T) {
		catalog := tu.NewMockCatalog(map[string]string{"B1": "ref:B1", "B2": "ref:B2"})
		catalog.SearchErrors["B1"] = []error{errGateway, errGateway, errGateway, errGateway, errGateway}
		rec := &tu.SleepRecorder{}
		obs := countingObserver{}

		stage := NewLookupStage(catalog, newInvoker(rec, retry.DefaultPolicy()), LookupOptions{Observer: obs, Sleep: rec.Sleep})
		tally, err := stage.LookupAll(ctx, requestsOf("B1", "B2"))
		if err != nil {
			t.Fatalf("expected the run to continue, got %v", err)
		}

		s := tally.Summary()
		if s.Found != 1 || s.NotFound != 1 || s.Failed != 1 || s.Total != 2 {
			t.Errorf("unexpected summary %+v", s)
		}
		failed := tally.Results[0]
		if failed.Status != StatusFailed || !errors.Is(failed.Err, shared.ErrRetriesExhausted) {
			t.Errorf("expected exhausted failure, got %+v", failed)
		}
		if obs[Failed] != 1 || obs[NotFound] != 1 {
			t.Errorf("unexpected progress events %v", obs)
		}
	})

	t.Run("Rate Limit Honors Advisory Wait", func(t *testing.T) {
		catalog := tu.NewMockCatalog(map[string]string{"C1": "ref:C1"})
		catalog.SearchErrors["C1"] = []error{errLimited}
		rec := &tu.SleepRecorder{}

		stage := NewLookupStage(catalog, newInvoker(rec, retry.DefaultPolicy()), LookupOptions{Sleep: rec.Sleep})
		result := stage.Lookup(ctx, LookupRequest{Row: 1, Identifier: "C1"})
		if result.Status != StatusMatched {
			t.Fatalf("expected match after rate limit, got %s (%v)", result.Status, result.Err)
		}
		if rec.Count(3*time.Second) != 1 {
			t.Errorf("expected one 3s advisory sleep, got %v", rec.Durations)
		}
	})

	t.Run("Permanent Error With Fail Fast", func(t *testing.T) {
		catalog := tu.NewMockCatalog(nil)
		catalog.SearchErrors["D1"] = []error{errBadInput}
		rec := &tu.SleepRecorder{}
		policy := retry.DefaultPolicy()
		policy.FailFast = true

		stage := NewLookupStage(catalog, newInvoker(rec, policy), LookupOptions{Sleep: rec.Sleep})
		result := stage.Lookup(ctx, LookupRequest{Row: 1, Identifier: "D1"})
		if result.Status != StatusFailed || !errors.Is(result.Err, shared.ErrPermanent) {
			t.Errorf("expected permanent failure, got %+v", result)
		}
		if len(catalog.SearchCalls) != 1 {
			t.Errorf("expected a single call, got %d", len(catalog.SearchCalls))
		}
	})

	t.Run("Empty Identifier Skips Search", func(t *testing.T) {
		catalog := tu.NewMockCatalog(nil)
		stage := NewLookupStage(catalog, nil, LookupOptions{Throttle: -1})
		result := stage.Lookup(ctx, LookupRequest{Row: 1, Identifier: "  "})
		if result.Status != StatusNotFound {
			t.Errorf("expected not_found, got %s", result.Status)
		}
		if len(catalog.SearchCalls) != 0 {
			t.Errorf("expected no search calls, got %v", catalog.SearchCalls)
		}
	})

	t.Run("Cache", func(t *testing.T) {
		catalog := tu.NewMockCatalog(map[string]string{"E2": "ref:E2"})
		cache := &memoryCache{entries: map[string]string{"E1": "ref:E1"}}
		rec := &tu.SleepRecorder{}
		obs := countingObserver{}

		stage := NewLookupStage(catalog, newInvoker(rec, retry.DefaultPolicy()), LookupOptions{Cache: cache, Observer: obs, Sleep: rec.Sleep})
		tally, err := stage.LookupAll(ctx, requestsOf("E1", "E2"))
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if tally.Found != 2 {
			t.Errorf("expected 2 matches, got %d", tally.Found)
		}
		if len(catalog.SearchCalls) != 1 || catalog.SearchCalls[0] != "isrc:E2" {
			t.Errorf("expected only E2 to be searched, got %v", catalog.SearchCalls)
		}
		if !tally.Results[0].Cached || tally.Results[1].Cached {
			t.Errorf("unexpected cached flags %+v", tally.Results)
		}
		if cache.entries["E2"] != "ref:E2" || cache.puts != 1 {
			t.Errorf("expected E2 to be stored, got %v", cache.entries)
		}
		if len(rec.Durations) != 1 {
			t.Errorf("expected a single throttle sleep, got %v", rec.Durations)
		}
		if obs[Cached] != 1 {
			t.Errorf("expected one cached event, got %v", obs)
		}
	})

	t.Run("Cache Read Error Falls Back To Search", func(t *testing.T) {
		catalog := tu.NewMockCatalog(map[string]string{"F1": "ref:F1"})
		cache := &memoryCache{entries: map[string]string{}, getErr: errors.New("database is locked")}

		stage := NewLookupStage(catalog, nil, LookupOptions{Cache: cache, Throttle: -1})
		result := stage.Lookup(ctx, LookupRequest{Row: 1, Identifier: "F1"})
		if result.Status != StatusMatched || result.Cached {
			t.Errorf("expected searched match, got %+v", result)
		}
	})

	t.Run("Input Error Stops Stage", func(t *testing.T) {
		catalog := tu.NewMockCatalog(map[string]string{"G1": "ref:G1"})
		readErr := errors.New("unexpected EOF")
		requests := func(yield func(LookupRequest, error) bool) {
			if !yield(LookupRequest{Row: 1, Identifier: "G1"}, nil) {
				return
			}
			yield(LookupRequest{}, readErr)
		}

		stage := NewLookupStage(catalog, nil, LookupOptions{Throttle: -1})
		tally, err := stage.LookupAll(ctx, requests)
		if !errors.Is(err, readErr) {
			t.Fatalf("expected input error, got %v", err)
		}
		if tally.Found != 1 {
			t.Errorf("expected partial tally, got %+v", tally.Summary())
		}
	})

	t.Run("Cancelled Context", func(t *testing.T) {
		catalog := tu.NewMockCatalog(map[string]string{"H1": "ref:H1"})
		cctx, cancel := context.WithCancel(ctx)
		cancel()

		stage := NewLookupStage(catalog, nil, LookupOptions{Throttle: -1})
		tally, err := stage.LookupAll(cctx, requestsOf("H1"))
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
		if tally.Processed() != 0 || len(catalog.SearchCalls) != 0 {
			t.Errorf("expected nothing processed, got %+v", tally.Summary())
		}
	})
}

func TestBatchSubmitter(t *testing.T) {
	ctx := context.Background()

	items := func(n int) []MatchedItem {
		out := make([]MatchedItem, n)
		for i := range out {
			out[i] = MatchedItem(fmt.Sprintf("spotify:track:%d", i))
		}
		return out
	}

	t.Run("Empty Input Makes No Calls", func(t *testing.T) {
		catalog := tu.NewMockCatalog(nil)
		submitter := NewBatchSubmitter(catalog, nil, 100, nil, nil)
		if n, err := submitter.Submit(ctx, "pl", nil); err != nil || n != 0 {
			t.Fatalf("expected 0 and no error, got %d, %v", n, err)
		}
		if len(catalog.AddCalls) != 0 {
			t.Errorf("expected no calls, got %d", len(catalog.AddCalls))
		}
	})

	t.Run("Partitions In Order", func(t *testing.T) {
		catalog := tu.NewMockCatalog(nil)
		obs := countingObserver{}
		submitter := NewBatchSubmitter(catalog, nil, 100, obs, nil)

		n, err := submitter.Submit(ctx, "pl", items(250))
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if n != 250 {
			t.Errorf("expected 250 accepted, got %d", n)
		}
		if len(catalog.AddCalls) != 3 {
			t.Fatalf("expected 3 calls, got %d", len(catalog.AddCalls))
		}
		for i, want := range []int{100, 100, 50} {
			if len(catalog.AddCalls[i]) != want {
				t.Errorf("call %d: expected %d items, got %d", i, want, len(catalog.AddCalls[i]))
			}
		}
		if catalog.AddCalls[1][0] != "spotify:track:100" {
			t.Errorf("expected second chunk to start at item 100, got %s", catalog.AddCalls[1][0])
		}
		if obs[SubmitChunk] != 250 {
			t.Errorf("expected 250 submitted items reported, got %d", obs[SubmitChunk])
		}
	})

	t.Run("Chunk Size Clamped To API Ceiling", func(t *testing.T) {
		for _, size := range []int{0, -1, 500} {
			submitter := NewBatchSubmitter(tu.NewMockCatalog(nil), nil, size, nil, nil)
			if submitter.ChunkSize() != services.MaxItemsPerRequest {
				t.Errorf("size %d: expected %d, got %d", size, services.MaxItemsPerRequest, submitter.ChunkSize())
			}
		}
		if got := NewBatchSubmitter(tu.NewMockCatalog(nil), nil, 25, nil, nil).ChunkSize(); got != 25 {
			t.Errorf("expected 25, got %d", got)
		}
	})

	t.Run("Transient Chunk Failure Recovers", func(t *testing.T) {
		catalog := tu.NewMockCatalog(nil)
		catalog.AddErrors = []error{errGateway}
		rec := &tu.SleepRecorder{}

		submitter := NewBatchSubmitter(catalog, newInvoker(rec, retry.DefaultPolicy()), 100, nil, nil)
		if n, err := submitter.Submit(ctx, "pl", items(10)); err != nil || n != 10 {
			t.Fatalf("expected 10 and no error, got %d, %v", n, err)
		}
		if len(catalog.AddCalls) != 2 {
			t.Errorf("expected retry to resubmit the chunk, got %d calls", len(catalog.AddCalls))
		}
	})

	t.Run("Exhausted Chunk Aborts Without Rollback", func(t *testing.T) {
		catalog := tu.NewMockCatalog(nil)
		// first chunk succeeds, second fails every attempt
		catalog.AddErrors = []error{nil, errGateway, errGateway, errGateway, errGateway, errGateway}
		rec := &tu.SleepRecorder{}

		submitter := NewBatchSubmitter(catalog, newInvoker(rec, retry.DefaultPolicy()), 100, nil, nil)
		n, err := submitter.Submit(ctx, "pl", items(250))
		if !errors.Is(err, shared.ErrRetriesExhausted) {
			t.Fatalf("expected retries exhausted, got %v", err)
		}
		if n != 100 {
			t.Errorf("expected 100 accepted before the failure, got %d", n)
		}

		var exhausted *retry.RetriesExhaustedError
		if !errors.As(err, &exhausted) || exhausted.Attempts != 5 {
			t.Errorf("expected attempt count in error, got %v", err)
		}
		if len(catalog.AddCalls) != 6 {
			t.Errorf("expected 1 + 5 calls and no third chunk, got %d", len(catalog.AddCalls))
		}
		if len(catalog.AddCalls[0]) != 100 {
			t.Errorf("expected first chunk kept, got %d items", len(catalog.AddCalls[0]))
		}
	})
}

func TestPlaylistEngine(t *testing.T) {
	ctx := context.Background()

	newEngine := func(catalog *tu.MockCatalog, obs Observer) *PlaylistEngine {
		rec := &tu.SleepRecorder{}
		inv := newInvoker(rec, retry.DefaultPolicy())
		lookup := NewLookupStage(catalog, inv, LookupOptions{Observer: obs, Sleep: rec.Sleep})
		submit := NewBatchSubmitter(catalog, inv, 100, obs, nil)
		return NewPlaylistEngine(catalog, inv, lookup, submit, obs, nil)
	}

	t.Run("Run", func(t *testing.T) {
		catalog := tu.NewMockCatalog(map[string]string{"A1": "ref:A1", "A3": "ref:A3"})
		obs := countingObserver{}

		result, err := newEngine(catalog, obs).Run(ctx, requestsOf("A1", "A2", "A3"), RunOptions{Name: "Imported", Total: 3})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if result.Playlist == nil || result.Playlist.Name != "Imported" {
			t.Fatalf("expected created playlist, got %+v", result.Playlist)
		}
		if result.Owner.ID != "test-user" {
			t.Errorf("expected owner test-user, got %s", result.Owner.ID)
		}
		if result.Summary.Found != 2 || result.Summary.NotFound != 1 || result.Submitted != 2 {
			t.Errorf("unexpected result %+v", result.Summary)
		}
		if len(catalog.AddCalls) != 1 || catalog.AddCalls[0][0] != "ref:A1" || catalog.AddCalls[0][1] != "ref:A3" {
			t.Errorf("unexpected submissions %v", catalog.AddCalls)
		}
		if obs[Planned] != 3 || obs[CreatePlaylist] != 1 {
			t.Errorf("unexpected progress events %v", obs)
		}
		if result.FinishedAt.Before(result.StartedAt) {
			t.Error("expected finish time after start time")
		}
	})

	t.Run("No Matches", func(t *testing.T) {
		catalog := tu.NewMockCatalog(nil)

		result, err := newEngine(catalog, nil).Run(ctx, requestsOf("Z1", "Z2"), RunOptions{Name: "Empty"})
		if !errors.Is(err, shared.ErrNoMatches) {
			t.Fatalf("expected ErrNoMatches, got %v", err)
		}
		if result.Playlist == nil {
			t.Error("expected playlist to be created before lookups")
		}
		if result.Summary.NotFound != 2 {
			t.Errorf("expected 2 not found, got %+v", result.Summary)
		}
		if len(catalog.AddCalls) != 0 {
			t.Errorf("expected no submissions, got %d", len(catalog.AddCalls))
		}
	})

	t.Run("Dry Run", func(t *testing.T) {
		catalog := tu.NewMockCatalog(map[string]string{"A1": "ref:A1"})

		result, err := newEngine(catalog, nil).Run(ctx, requestsOf("A1"), RunOptions{DryRun: true})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if result.Playlist != nil || len(catalog.Created) != 0 || len(catalog.AddCalls) != 0 {
			t.Errorf("expected nothing created, got %+v", result)
		}
		if result.Summary.Found != 1 {
			t.Errorf("expected 1 match, got %+v", result.Summary)
		}
	})

	t.Run("Missing Name", func(t *testing.T) {
		_, err := newEngine(tu.NewMockCatalog(nil), nil).Run(ctx, requestsOf("A1"), RunOptions{})
		if !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
	})

	t.Run("Create Playlist Retries", func(t *testing.T) {
		catalog := tu.NewMockCatalog(map[string]string{"A1": "ref:A1"})
		catalog.CreateErrors = []error{errGateway}

		result, err := newEngine(catalog, nil).Run(ctx, requestsOf("A1"), RunOptions{Name: "Retry"})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if result.Playlist == nil || len(catalog.Created) != 1 {
			t.Errorf("expected playlist after retry, got %+v", result.Playlist)
		}
	})

	t.Run("Submit Failure Keeps Result", func(t *testing.T) {
		known := make(map[string]string, 150)
		ids := make([]string, 150)
		for i := range ids {
			ids[i] = fmt.Sprintf("ID%03d", i)
			known[ids[i]] = "ref:" + ids[i]
		}
		catalog := tu.NewMockCatalog(known)
		// first chunk accepted, second fails every attempt
		catalog.AddErrors = []error{nil, errGateway, errGateway, errGateway, errGateway, errGateway}

		result, err := newEngine(catalog, nil).Run(ctx, requestsOf(ids...), RunOptions{Name: "Broken"})
		if !errors.Is(err, shared.ErrRetriesExhausted) {
			t.Fatalf("expected retries exhausted, got %v", err)
		}
		if result.Summary.Found != 150 {
			t.Errorf("expected 150 found, got %d", result.Summary.Found)
		}
		if result.Submitted != 100 {
			t.Errorf("expected first chunk counted as submitted, got %d", result.Submitted)
		}
	})

	t.Run("Submit Failure On First Chunk", func(t *testing.T) {
		catalog := tu.NewMockCatalog(map[string]string{"A1": "ref:A1"})
		catalog.AddErrors = []error{errBadInput, errBadInput, errBadInput, errBadInput, errBadInput}

		result, err := newEngine(catalog, nil).Run(ctx, requestsOf("A1"), RunOptions{Name: "Broken"})
		if !errors.Is(err, shared.ErrRetriesExhausted) {
			t.Fatalf("expected retries exhausted, got %v", err)
		}
		if result.Summary.Found != 1 || result.Submitted != 0 {
			t.Errorf("unexpected result %+v", result)
		}
	})
}

func TestChannelObserver(t *testing.T) {
	t.Run("Delivers Updates", func(t *testing.T) {
		ch := make(chan ProgressUpdate, 1)
		NewChannelObserver(ch).OnProgress(SubmitChunk, 42)

		update := <-ch
		if update.Phase != SubmitChunk || update.Delta != 42 {
			t.Errorf("unexpected update %+v", update)
		}
		if update.Message != "Added 42 tracks to playlist" {
			t.Errorf("unexpected message %q", update.Message)
		}
	})

	t.Run("Never Blocks", func(t *testing.T) {
		ch := make(chan ProgressUpdate)
		done := make(chan struct{})
		go func() {
			NewChannelObserver(ch).OnProgress(Found, 1)
			close(done)
		}()

		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("observer blocked on a full channel")
		}
	})

	t.Run("Nil Channel", func(t *testing.T) {
		NewChannelObserver(nil).OnProgress(Found, 1)
	})

	t.Run("Multi Observer", func(t *testing.T) {
		a, b := countingObserver{}, countingObserver{}
		MultiObserver{a, nil, b}.OnProgress(Found, 2)
		if a[Found] != 2 || b[Found] != 2 {
			t.Errorf("expected both observers updated, got %v %v", a, b)
		}
	})
}
