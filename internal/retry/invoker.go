package retry

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/charmbracelet/log"
)

// Sleeper blocks for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// Attempt describes a failed attempt that is about to be retried.
type Attempt struct {
	Number int // one-based number of the failed attempt
	Max    int
	Kind   Kind
	Delay  time.Duration
	Err    error
}

// Notifier is called before each backoff sleep.
type Notifier func(Attempt)

// Invoker runs operations under a [Policy].
type Invoker struct {
	policy Policy
	logger *log.Logger
	sleep  Sleeper
	notify Notifier
}

// Option customizes an [Invoker].
type Option func(*Invoker)

// WithLogger sets the logger used for retry notices.
func WithLogger(l *log.Logger) Option {
	return func(i *Invoker) {
		if l != nil {
			i.logger = l
		}
	}
}

// WithSleeper overrides how backoff sleeps are performed (useful for tests).
func WithSleeper(s Sleeper) Option {
	return func(i *Invoker) {
		if s != nil {
			i.sleep = s
		}
	}
}

// WithNotifier registers a callback for every retry.
func WithNotifier(n Notifier) Option {
	return func(i *Invoker) {
		i.notify = n
	}
}

// New creates an [Invoker] for policy; zero fields fall back to [DefaultPolicy] values.
func New(policy Policy, opts ...Option) *Invoker {
	inv := &Invoker{
		policy: policy.withDefaults(),
		logger: log.New(io.Discard),
		sleep:  SleepWithContext,
	}
	for _, opt := range opts {
		opt(inv)
	}
	return inv
}

// Policy returns the effective policy.
func (i *Invoker) Policy() Policy {
	return i.policy
}

// Do runs op until it succeeds or the attempt budget is spent.
func (i *Invoker) Do(ctx context.Context, op func(context.Context) error) error {
	p := i.policy
	var last error

	for attempt := 0; attempt < p.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := op(ctx)
		if err == nil {
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			return err
		}
		last = err

		kind := Classify(err)
		if kind == KindPermanent && p.FailFast {
			i.logger.Error("request failed permanently", "attempt", attempt+1, "error", err)
			return &PermanentError{Attempt: attempt + 1, Err: err}
		}
		if attempt == p.MaxAttempts-1 {
			break
		}

		delay := p.Delay(kind, err, attempt)
		i.report(Attempt{Number: attempt + 1, Max: p.MaxAttempts, Kind: kind, Delay: delay, Err: err})

		if err := i.sleep(ctx, delay); err != nil {
			return err
		}
	}

	i.logger.Error("giving up", "attempts", p.MaxAttempts, "error", last)
	return &RetriesExhaustedError{Attempts: p.MaxAttempts, Last: last}
}

func (i *Invoker) report(a Attempt) {
	switch a.Kind {
	case KindRateLimited:
		i.logger.Warnf("rate limit exceeded, retrying after %v (%d/%d)", a.Delay, a.Number, a.Max)
	case KindServerUnavailable:
		i.logger.Warnf("server unavailable, retrying in %v (%d/%d)", a.Delay, a.Number, a.Max)
	default:
		i.logger.Warnf("request failed: %v, retrying in %v (%d/%d)", a.Err, a.Delay, a.Number, a.Max)
	}
	if i.notify != nil {
		i.notify(a)
	}
}

// Call runs op through inv and returns its value.
func Call[T any](ctx context.Context, inv *Invoker, op func(context.Context) (T, error)) (T, error) {
	var out T
	err := inv.Do(ctx, func(ctx context.Context) error {
		v, err := op(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}

// SleepWithContext blocks for the given duration, returning early if the
// context is cancelled.
func SleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
