// Package services defines the [Catalog] interface for the remote music catalog and implements it for Spotify.
//
// # Spotify Implementation
//
// [SpotifyService] uses OAuth2 for authentication with automatic token refresh.
// The [oauth2.Config.Client] refreshes expired access tokens using the stored refresh token.
//
// Requests can be capped client-side with a token bucket limiter ([WithRateLimit]).
//
// # Error Handling
//
// Non-2xx responses become [*APIError], which carries the status code and the
// Retry-After advisory and describes its own retry classification:
//   - 429 : rate limited, matches [shared.ErrRateLimited]
//   - 5xx : server unavailable, matches [shared.ErrServiceUnavailable]
//   - 401 : token expired, matches [shared.ErrTokenExpired] (permanent)
//   - other 4xx : permanent, matches [shared.ErrAPIRequest]
//
// Transport failures are returned wrapped and classify as transient.
//
// # API Mappings
//
// Search results are returned close to the wire shape ([SpotifySearchResponse])
// so callers can tell a missing result container apart from an empty one.
package services
