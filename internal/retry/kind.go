package retry

import (
	"errors"
	"time"

	"github.com/desertthunder/isrcx/internal/shared"
)

// Kind is the retry classification of a failed attempt.
type Kind int

const (
	KindTransient Kind = iota
	KindRateLimited
	KindServerUnavailable
	KindPermanent
)

func (k Kind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindRateLimited:
		return "rate_limited"
	case KindServerUnavailable:
		return "server_unavailable"
	case KindPermanent:
		return "permanent"
	default:
		return "unknown"
	}
}

type classified interface {
	RetryKind() Kind
}

type advisory interface {
	RetryAfter() (time.Duration, bool)
}

// Classify reports how the invoker should treat err.
func Classify(err error) Kind {
	if err == nil {
		return KindTransient
	}

	var c classified
	if errors.As(err, &c) {
		return c.RetryKind()
	}

	switch {
	case errors.Is(err, shared.ErrRateLimited):
		return KindRateLimited
	case errors.Is(err, shared.ErrServiceUnavailable):
		return KindServerUnavailable
	case errors.Is(err, shared.ErrPermanent),
		errors.Is(err, shared.ErrNotAuthenticated),
		errors.Is(err, shared.ErrAuthFailed):
		return KindPermanent
	}

	// timeouts, connection resets and unknown failures
	return KindTransient
}

// RetryAfter extracts the advisory wait carried by err, if any.
func RetryAfter(err error) (time.Duration, bool) {
	var a advisory
	if errors.As(err, &a) {
		return a.RetryAfter()
	}
	return 0, false
}
