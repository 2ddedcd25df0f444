// Package retry implements the request retry policy shared by every call to the catalog.
//
// # Classification
//
// [Classify] maps an error onto a [Kind]:
//   - [KindRateLimited] : the service asked us to come back later (HTTP 429), honouring its advisory wait
//   - [KindServerUnavailable] : upstream gateway or server failures (HTTP 5xx)
//   - [KindTransient] : timeouts, transport errors and anything unrecognised
//   - [KindPermanent] : malformed requests and auth failures (HTTP 4xx)
//
// Errors describe themselves by implementing RetryKind() [Kind] and,
// optionally, RetryAfter() (time.Duration, bool).
//
// # Policy
//
// An [Invoker] runs an operation up to [Policy.MaxAttempts] times. Rate limited
// attempts sleep for exactly the advisory duration. Every other failure sleeps
// BaseDelay * 2^attempt, attempt being zero-based. Permanent failures are retried
// like transient ones unless [Policy.FailFast] is set.
//
// When the budget is spent the invoker returns a [*RetriesExhaustedError]
// carrying the attempt count and the last underlying error.
package retry
