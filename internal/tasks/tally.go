package tasks

// MatchedItem is an opaque catalog reference (a track URI) ready to be added to a playlist.
type MatchedItem string

// LookupStatus is the outcome of a single lookup.
type LookupStatus int

const (
	StatusMatched LookupStatus = iota
	StatusNotFound
	StatusFailed // retries exhausted or permanent error, counted as not found
)

func (s LookupStatus) String() string {
	switch s {
	case StatusMatched:
		return "matched"
	case StatusNotFound:
		return "not_found"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// LookupRequest is one input row.
type LookupRequest struct {
	Row        int    // 1-based data row in the source
	Identifier string // ISRC, passed through verbatim
}

// LookupResult is produced exactly once per [LookupRequest].
type LookupResult struct {
	Request LookupRequest
	Status  LookupStatus
	Ref     MatchedItem // set when Status is StatusMatched
	Cached  bool        // resolved from the match cache
	Err     error       // set when Status is StatusFailed
}

// Summary is a snapshot of an [OutcomeTally].
type Summary struct {
	Found    int
	NotFound int // includes Failed
	Failed   int
	Total    int
}

// MatchRate returns the percentage of processed requests that matched.
func (s Summary) MatchRate() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Found) / float64(s.Total) * 100
}

// OutcomeTally accumulates lookup outcomes. It has a single writer and no locking.
//
// Found + NotFound always equals the number of recorded requests.
type OutcomeTally struct {
	Found    int
	NotFound int
	Failed   int
	Matched  []MatchedItem  // in input order
	Results  []LookupResult // one per recorded request
	Errors   []error        // causes of failed lookups
}

// NewOutcomeTally creates an empty tally.
func NewOutcomeTally() *OutcomeTally {
	return &OutcomeTally{}
}

// RecordFound counts a match and appends ref to the matched list.
func (t *OutcomeTally) RecordFound(ref MatchedItem) {
	t.Found++
	t.Matched = append(t.Matched, ref)
}

// RecordNotFound counts a lookup that returned no usable match.
func (t *OutcomeTally) RecordNotFound() {
	t.NotFound++
}

// RecordFailed counts a lookup that could not be completed. It is also a not-found.
func (t *OutcomeTally) RecordFailed(err error) {
	t.NotFound++
	t.Failed++
	if err != nil {
		t.Errors = append(t.Errors, err)
	}
}

// Record dispatches result to the matching counter and keeps it in Results.
func (t *OutcomeTally) Record(result LookupResult) {
	switch result.Status {
	case StatusMatched:
		t.RecordFound(result.Ref)
	case StatusFailed:
		t.RecordFailed(result.Err)
	default:
		t.RecordNotFound()
	}
	t.Results = append(t.Results, result)
}

// Processed returns the number of recorded requests.
func (t *OutcomeTally) Processed() int {
	return t.Found + t.NotFound
}

func (t *OutcomeTally) Summary() Summary {
	return Summary{
		Found:    t.Found,
		NotFound: t.NotFound,
		Failed:   t.Failed,
		Total:    t.Processed(),
	}
}
