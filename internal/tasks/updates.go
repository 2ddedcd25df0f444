package tasks

import (
	"fmt"
)

// ProgressUpdate represents a progress event during a run.
//
// Used to send real-time updates to the CLI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Kind of event
	Delta   int    // Counter increment
	Message string // Human-readable message for display
}

// Phase enumerates progress event kinds.
type Phase int

const (
	Planned Phase = iota
	Searched
	Found
	NotFound
	Failed
	Cached
	Retry
	CreatePlaylist
	SubmitChunk
)

func (p Phase) String() string {
	switch p {
	case Planned:
		return "planned"
	case Searched:
		return "searched"
	case Found:
		return "found"
	case NotFound:
		return "not_found"
	case Failed:
		return "failed"
	case Cached:
		return "cached"
	case Retry:
		return "retry"
	case CreatePlaylist:
		return "create_playlist"
	case SubmitChunk:
		return "submit_chunk"
	default:
		return ""
	}
}

// newUpdate builds the display form of a (kind, delta) event.
func newUpdate(kind Phase, delta int) ProgressUpdate {
	u := ProgressUpdate{Phase: kind, Delta: delta}
	switch kind {
	case Planned:
		u.Message = fmt.Sprintf("Looking up %d identifiers...", delta)
	case Searched:
		u.Message = "Search request completed"
	case Found:
		u.Message = "Track found"
	case NotFound:
		u.Message = "Track not found"
	case Failed:
		u.Message = "Lookup failed after retries"
	case Cached:
		u.Message = "Match reused from cache"
	case Retry:
		u.Message = "Retrying request..."
	case CreatePlaylist:
		u.Message = "Playlist created"
	case SubmitChunk:
		u.Message = fmt.Sprintf("Added %d tracks to playlist", delta)
	}
	return u
}
