// Package audit delivers token lifecycle events to a Sink off the request path.
//
// The Authority decides which events exist and what they carry; this package
// only buffers and delivers them. A full buffer either drops (counted and
// logged) or makes the caller wait, depending on Config.DropIfFull. Close
// drains whatever is queued before returning.
package audit
