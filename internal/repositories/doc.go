// Package repositories implements SQLite persistence for isrcx.
//
//   - [MatchRepository] : CRUD for cached identifier resolutions ([models.Match])
//   - [MatchCacheAdapter] : exposes [MatchRepository] as a tasks.MatchCache
//   - [RunRepository] : run history ([models.Run]) for the history command
//
// The schema is created by shared.RunMigrations.
package repositories
