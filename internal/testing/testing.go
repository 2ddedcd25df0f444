// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/isrcx/internal/services"
)

// MockCatalog is a scripted test double for [services.Catalog].
//
// Identifiers found in Tracks resolve to their URI, Responses overrides the raw
// search response, and queued errors are returned (one per call) before either.
type MockCatalog struct {
	mu sync.Mutex

	User         *services.SpotifyUser
	Tracks       map[string]string
	Responses    map[string]*services.SpotifySearchResponse
	SearchErrors map[string][]error
	AddErrors    []error
	CreateErrors []error
	UserErrors   []error

	SearchCalls []string
	AddCalls    [][]string
	Created     []*services.Playlist
}

// NewMockCatalog returns a catalog owned by "test-user" that knows tracks.
func NewMockCatalog(tracks map[string]string) *MockCatalog {
	if tracks == nil {
		tracks = map[string]string{}
	}
	return &MockCatalog{
		User:         &services.SpotifyUser{ID: "test-user", DisplayName: "Test User"},
		Tracks:       tracks,
		Responses:    map[string]*services.SpotifySearchResponse{},
		SearchErrors: map[string][]error{},
	}
}

func pop(queue *[]error) error {
	if len(*queue) == 0 {
		return nil
	}
	err := (*queue)[0]
	*queue = (*queue)[1:]
	return err
}

func (m *MockCatalog) CurrentUser(ctx context.Context) (*services.SpotifyUser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := pop(&m.UserErrors); err != nil {
		return nil, err
	}
	return m.User, nil
}

func (m *MockCatalog) CreatePlaylist(ctx context.Context, ownerID, name string, public bool) (*services.Playlist, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := pop(&m.CreateErrors); err != nil {
		return nil, err
	}
	pl := &services.Playlist{ID: "playlist-" + name, Name: name, Public: public}
	m.Created = append(m.Created, pl)
	return pl, nil
}

func (m *MockCatalog) SearchTracks(ctx context.Context, query string, limit int) (*services.SpotifySearchResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SearchCalls = append(m.SearchCalls, query)

	identifier := strings.TrimPrefix(query, "isrc:")
	if queue := m.SearchErrors[identifier]; len(queue) > 0 {
		err := pop(&queue)
		m.SearchErrors[identifier] = queue
		if err != nil {
			return nil, err
		}
	}

	if resp, ok := m.Responses[identifier]; ok {
		return resp, nil
	}

	page := &services.SpotifyTrackPage{Items: []*services.SpotifyTrack{}}
	if uri, ok := m.Tracks[identifier]; ok {
		page.Items = append(page.Items, &services.SpotifyTrack{URI: uri, ExternalIDs: services.ExternalIDs{ISRC: identifier}})
		page.Total = 1
	}
	return &services.SpotifySearchResponse{Tracks: page}, nil
}

func (m *MockCatalog) AddItems(ctx context.Context, playlistID string, uris []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.AddCalls = append(m.AddCalls, append([]string(nil), uris...))
	return pop(&m.AddErrors)
}

func (m *MockCatalog) Name() string { return "mock" }

// SleepRecorder is a retry.Sleeper that records durations instead of sleeping.
type SleepRecorder struct {
	mu        sync.Mutex
	Durations []time.Duration
}

func (r *SleepRecorder) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Durations = append(r.Durations, d)
	return nil
}

// Count returns how many sleeps of exactly d were recorded.
func (r *SleepRecorder) Count(d time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, got := range r.Durations {
		if got == d {
			n++
		}
	}
	return n
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}

func MustWriteFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write file %s: %v", path, err)
	}
}
