package retry

import (
	"fmt"

	"github.com/desertthunder/isrcx/internal/shared"
)

// RetriesExhaustedError is returned once every attempt of a call has failed.
//
// It matches [shared.ErrRetriesExhausted] with errors.Is and unwraps to the last attempt's error.
type RetriesExhaustedError struct {
	Attempts int
	Last     error
}

func (e *RetriesExhaustedError) Error() string {
	return fmt.Sprintf("failed after %d attempts: %v", e.Attempts, e.Last)
}

func (e *RetriesExhaustedError) Unwrap() []error {
	return []error{shared.ErrRetriesExhausted, e.Last}
}

// PermanentError is returned without further attempts when [Policy.FailFast] is set.
type PermanentError struct {
	Attempt int
	Err     error
}

func (e *PermanentError) Error() string {
	return fmt.Sprintf("non-retriable failure on attempt %d: %v", e.Attempt, e.Err)
}

func (e *PermanentError) Unwrap() []error {
	return []error{shared.ErrPermanent, e.Err}
}
