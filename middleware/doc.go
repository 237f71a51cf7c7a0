// Package middleware exposes net/http adapters for the two sides of the
// identity handoff.
//
// # Handlers
//
//   - [Gateway] verifies the access token at the edge and forwards the
//     principal as X-User-Id, X-System-Role and X-Hotels headers.
//   - [RequirePrincipal] rebuilds the principal from those headers inside an
//     internal service.
//   - [RequireHotel] checks hotel membership for the hotel named by a request
//     header.
//   - [TraceID] assigns the X-Trace-ID used in error bodies and logs.
//
// # What this package must NOT do
//
//   - Touch the token store. Access tokens are trusted until exp.
//   - Make authorization decisions beyond membership of the requested hotel.
package middleware
