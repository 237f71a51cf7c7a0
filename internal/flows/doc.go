// Package flows contains pure-function orchestrators for every Authority operation.
//
// Each flow function (RunIssue, RunRotate, RunRevoke, RunRevokeAll) accepts a
// typed dependency struct and returns a result carrying a failure kind. The
// root package maps failure kinds to sentinel errors, metrics and audit events,
// which keeps the Authority type thin.
//
// # Architecture boundaries
//
// Flow functions coordinate calls to the token codec and the token store. They
// do NOT own either resource; ownership stays with the Authority.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import tokenauth (to avoid import cycles).
//   - Perform I/O directly; all I/O is mediated through dependency interfaces.
package flows
