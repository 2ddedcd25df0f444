// package models defines the persisted data model for playlist runs and cached matches
package models

import (
	"fmt"
	"time"
)

// Model defines the base interface for all persistent models.
// Implementations are Run and Match.
type Model interface {
	ID() string           // ID returns the unique identifier for this model
	CreatedAt() time.Time // CreatedAt returns when this model was created
	UpdatedAt() time.Time // UpdatedAt returns when this model was last updated
	Validate() error      // Validate checks if the model's data is valid and returns an error if not
}

// Repository defines the interface for data access operations.
// Implementations handle database interactions for specific model types.
type Repository[T Model] interface {
	Create(model T) error                      // Create inserts a new model into the database
	Get(id string) (T, error)                  // Get retrieves a model by its ID
	Update(model T) error                      // Update modifies an existing model in the database
	Delete(id string) error                    // Delete removes a model from the database by its ID
	List(criteria map[string]any) ([]T, error) // List retrieves all models matching the given criteria
}

// BaseModel carries identity and timestamps shared by every entity.
type BaseModel struct {
	id        string
	createdAt time.Time
	updatedAt time.Time
}

func newBaseModel(id string) BaseModel {
	now := time.Now().UTC()
	return BaseModel{id: id, createdAt: now, updatedAt: now}
}

func (b *BaseModel) ID() string               { return b.id }
func (b *BaseModel) CreatedAt() time.Time     { return b.createdAt }
func (b *BaseModel) UpdatedAt() time.Time     { return b.updatedAt }
func (b *BaseModel) SetID(id string)          { b.id = id }
func (b *BaseModel) SetCreatedAt(t time.Time) { b.createdAt = t }
func (b *BaseModel) SetUpdatedAt(t time.Time) { b.updatedAt = t }

// Match is a cached identifier to catalog URI resolution. Its ID is the identifier.
type Match struct {
	BaseModel
	URI string
}

// NewMatch creates a match for identifier.
func NewMatch(identifier, uri string) *Match {
	return &Match{BaseModel: newBaseModel(identifier), URI: uri}
}

// Identifier returns the looked up identifier.
func (m *Match) Identifier() string { return m.id }

func (m *Match) Validate() error {
	if m.id == "" {
		return fmt.Errorf("identifier is required")
	}
	if m.URI == "" {
		return fmt.Errorf("uri is required")
	}
	return nil
}

// RunStatus is the lifecycle state of a [Run].
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunNoMatches RunStatus = "no_matches"
	RunDryRun    RunStatus = "dry_run"
	RunFailed    RunStatus = "failed"
)

// Run records one playlist creation attempt and its outcome counts.
type Run struct {
	BaseModel
	PlaylistID   string
	PlaylistName string
	Source       string
	Total        int
	Found        int
	NotFound     int
	Failed       int
	Submitted    int
	Status       RunStatus
	Error        string
	StartedAt    time.Time
	FinishedAt   *time.Time
}

// NewRun creates a running [Run] for source. The ID is assigned on create.
func NewRun(playlistName, source string) *Run {
	r := &Run{
		BaseModel:    newBaseModel(""),
		PlaylistName: playlistName,
		Source:       source,
		Status:       RunRunning,
	}
	r.StartedAt = r.createdAt
	return r
}

// Duration returns the elapsed run time, zero while running.
func (r *Run) Duration() time.Duration {
	if r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

func (r *Run) Validate() error {
	if r.Source == "" {
		return fmt.Errorf("source is required")
	}
	switch r.Status {
	case RunRunning, RunCompleted, RunNoMatches, RunDryRun, RunFailed:
	default:
		return fmt.Errorf("invalid status: %q", r.Status)
	}
	if r.Found < 0 || r.NotFound < 0 || r.Failed < 0 {
		return fmt.Errorf("counts must not be negative")
	}
	if r.Found+r.NotFound != r.Total {
		return fmt.Errorf("found (%d) + not found (%d) must equal total (%d)", r.Found, r.NotFound, r.Total)
	}
	if r.Failed > r.NotFound {
		return fmt.Errorf("failed (%d) exceeds not found (%d)", r.Failed, r.NotFound)
	}
	return nil
}
