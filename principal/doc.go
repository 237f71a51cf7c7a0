// Package principal defines the authenticated identity carried by access tokens:
// the user ID, the system-wide role, and the per-hotel role list.
//
// # Immutability
//
// A [Principal] is built only through [New], which validates every field and
// copies the hotel list. Accessors return copies, so a principal handed to the
// token authority cannot be changed afterwards by the caller.
//
// # Header handoff
//
// The API gateway forwards a verified principal to internal services as the
// X-User-Id, X-System-Role and X-Hotels headers. [FromHeaders] re-validates
// those headers on the receiving side; transport is never trusted.
//
// # What this package must NOT do
//
//   - Import jwt, store, or the root tokenauth package.
//   - Make authorization decisions beyond hotel membership lookup.
package principal
