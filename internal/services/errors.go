package services

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/isrcx/internal/retry"
	"github.com/desertthunder/isrcx/internal/shared"
)

// APIError is a non-2xx response from the Spotify Web API.
type APIError struct {
	StatusCode int
	Message    string
	Wait       time.Duration // parsed Retry-After header
	HasWait    bool
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("spotify API error: status %d", e.StatusCode)
	}
	return fmt.Sprintf("spotify API error: status %d: %s", e.StatusCode, e.Message)
}

// Unwrap maps the status onto the shared sentinel errors.
func (e *APIError) Unwrap() error {
	switch {
	case e.StatusCode == http.StatusTooManyRequests:
		return shared.ErrRateLimited
	case e.StatusCode == http.StatusUnauthorized:
		return shared.ErrTokenExpired
	case e.StatusCode >= http.StatusInternalServerError:
		return shared.ErrServiceUnavailable
	default:
		return shared.ErrAPIRequest
	}
}

// RetryKind implements the classification hook used by [retry.Classify].
func (e *APIError) RetryKind() retry.Kind {
	switch {
	case e.StatusCode == http.StatusTooManyRequests:
		return retry.KindRateLimited
	case e.StatusCode >= http.StatusInternalServerError:
		return retry.KindServerUnavailable
	case e.StatusCode == http.StatusRequestTimeout:
		return retry.KindTransient
	default:
		return retry.KindPermanent
	}
}

// RetryAfter returns the advisory wait sent with the response.
func (e *APIError) RetryAfter() (time.Duration, bool) {
	return e.Wait, e.HasWait
}

// parseRetryAfter accepts delta-seconds or an HTTP date.
func parseRetryAfter(value string, now time.Time) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds < 0 {
			return 0, false
		}
		return time.Duration(seconds) * time.Second, true
	}
	if at, err := http.ParseTime(value); err == nil {
		if wait := at.Sub(now); wait > 0 {
			return wait, true
		}
		return 0, true
	}
	return 0, false
}
