// Package tokenauth provides the token lifecycle engine for the hotel platform:
// stateless JWT access tokens carrying the caller's hotel roles, and rotating
// refresh tokens whose identifiers are tracked in Redis so they can be revoked.
//
// The package is designed for concurrent server workloads: Authority methods are
// safe to call from multiple goroutines after initialization through
// [Builder.Build].
//
// # Architecture boundaries
//
// tokenauth is the public surface. It exposes [Authority], [Builder], [Config]
// and value types ([TokenPair], [MetricsSnapshot]). Flow orchestration and
// audit dispatch live under internal/; the codec, store, principal and gateway
// packages are usable on their own.
//
// # What this package must NOT do
//
//   - Track access tokens server-side. They stay valid until exp.
//   - Perform I/O outside of Authority methods (construction via Builder only
//     allocates until Build).
//   - Import any sub-package that re-imports tokenauth (no import cycles).
//
// # Performance contract
//
// Issuance is one Redis round trip. Rotation is three (check, revoke, save).
// Decoding never touches Redis.
package tokenauth
