// Package store provides the Redis-backed refresh-token registry.
//
// # Schema
//
// Each live refresh token is a string key refresh_token:{jti} whose value is the
// owning user ID and whose TTL equals the token's remaining lifetime. Each user
// has a set user_refresh_tokens:{user_id} indexing the jti values issued to
// them. The index may outlive its records; readers treat stale members as
// harmless.
//
// # Architecture boundaries
//
// This package owns the [Store] (Redis operations) only. It does NOT decode
// tokens or decide whether a rotation is allowed; those responsibilities belong
// to the Authority in the root package.
//
// # What this package must NOT do
//
//   - Import tokenauth or jwt (no upward imports).
//   - Store token strings; only identifiers are persisted.
package store
