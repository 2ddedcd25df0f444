// Package tasks builds a playlist from a sequence of track identifiers.
//
// # Pipeline
//
// [PlaylistEngine.Run] drives three stages on a single goroutine:
//
//  1. Resolve the owner and create the destination playlist (skipped on dry runs)
//  2. [LookupStage.LookupAll] searches the catalog once per identifier, in input order,
//     and records each outcome in an [OutcomeTally]
//  3. [BatchSubmitter.Submit] adds the matched items in chunks of at most 100
//
// Every remote call goes through a [retry.Invoker]. A lookup that exhausts its
// retries is counted as not found and the run continues; a chunk that exhausts
// its retries aborts the run and leaves earlier chunks in place.
//
// # Progress Reporting
//
// Stages report counters through an injected [Observer] as (kind, delta) pairs.
// [ChannelObserver] forwards them as [ProgressUpdate] values using select with
// default so a slow renderer never blocks the pipeline.
//
// # Match Caching
//
// The optional [MatchCache] short-circuits lookups for identifiers resolved in an
// earlier run. Cache errors are logged and otherwise ignored.
package tasks
