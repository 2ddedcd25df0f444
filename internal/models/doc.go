// Package models defines the persistent entities of isrcx and the repository contract.
//
//   - [Match] : identifier to catalog URI resolution reused across runs
//   - [Run] : one playlist creation attempt with its found / not found counts
//
// Both embed [BaseModel] for identity and timestamps and implement [Model].
// The [Repository] interface defines standard CRUD operations for database access.
package models
