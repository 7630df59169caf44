// Package internal holds the Atelier server internals.
//
// The internal tree is organized by responsibility:
// - api: HTTP handlers, middleware, problem rendering, and routing
// - realtime: connection registry, change-feed listener, and broadcast subscriber
// - storage: database access and repositories (Postgres)
// - cache: read-through Redis cache
// - signing: time-boxed signed URL issuing and verification
// - auth, config, metrics: shared infrastructure
//
// Code in internal/ is not meant for external import.
package internal
