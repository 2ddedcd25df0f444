// package services defines interface Catalog for the remote music catalog and implements it for the Spotify Web API
package services

import (
	"context"
)

// Catalog is the remote service boundary used to build a playlist from track identifiers.
type Catalog interface {
	// CurrentUser returns the profile of the authenticated user, who owns created playlists.
	CurrentUser(ctx context.Context) (*SpotifyUser, error)

	// CreatePlaylist creates an empty playlist owned by ownerID.
	CreatePlaylist(ctx context.Context, ownerID, name string, public bool) (*Playlist, error)

	// SearchTracks runs a catalog search restricted to tracks.
	SearchTracks(ctx context.Context, query string, limit int) (*SpotifySearchResponse, error)

	// AddItems appends track URIs to a playlist. At most [MaxItemsPerRequest] URIs per call.
	AddItems(ctx context.Context, playlistID string, uris []string) error

	// Name returns the name of the service (e.g., "Spotify")
	Name() string
}

// MaxItemsPerRequest is the API ceiling on URIs accepted by one add-items call.
const MaxItemsPerRequest = 100

// Playlist represents a music playlist from any service
type Playlist struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	TrackCount  int    `json:"track_count"`
	Public      bool   `json:"public"`
	URL         string `json:"url"`
}
