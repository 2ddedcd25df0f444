package retry

import "time"

const (
	DefaultMaxAttempts = 5
	DefaultBaseDelay   = time.Second
	DefaultRetryAfter  = time.Second
)

// Policy is the retry budget and backoff schedule applied to a single call.
type Policy struct {
	MaxAttempts int
	// BaseDelay is the backoff unit; attempt n (zero-based) waits BaseDelay * 2^n.
	BaseDelay time.Duration
	// DefaultRetryAfter is used when a rate limited response has no advisory wait.
	DefaultRetryAfter time.Duration
	// FailFast stops on [KindPermanent] errors instead of retrying them.
	FailFast bool
}

// DefaultPolicy returns five attempts on a one second backoff unit.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:       DefaultMaxAttempts,
		BaseDelay:         DefaultBaseDelay,
		DefaultRetryAfter: DefaultRetryAfter,
	}
}

func (p Policy) withDefaults() Policy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = DefaultMaxAttempts
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = DefaultBaseDelay
	}
	if p.DefaultRetryAfter <= 0 {
		p.DefaultRetryAfter = DefaultRetryAfter
	}
	return p
}

// Backoff returns the exponential delay for a zero-based attempt index.
func (p Policy) Backoff(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt > 30 {
		attempt = 30
	}
	return p.BaseDelay * time.Duration(1<<uint(attempt))
}

// Delay returns how long to wait after attempt failed with err of the given kind.
func (p Policy) Delay(kind Kind, err error, attempt int) time.Duration {
	if kind == KindRateLimited {
		if wait, ok := RetryAfter(err); ok {
			return wait
		}
		return p.DefaultRetryAfter
	}
	return p.Backoff(attempt)
}
