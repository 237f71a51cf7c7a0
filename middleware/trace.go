package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

// HeaderTraceID carries the request trace identifier end to end.
const HeaderTraceID = "X-Trace-ID"

type traceIDContextKey struct{}

// TraceID keeps a client supplied X-Trace-ID or assigns a new UUID, echoes it
// on the response and stores it in the request context.
func TraceID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(HeaderTraceID)
		if id == "" {
			id = uuid.NewString()
			r.Header.Set(HeaderTraceID, id)
		}
		w.Header().Set(HeaderTraceID, id)

		ctx := context.WithValue(r.Context(), traceIDContextKey{}, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// TraceIDFromRequest returns the trace ID assigned by TraceID, falling back to
// the request header.
func TraceIDFromRequest(r *http.Request) string {
	if id, ok := r.Context().Value(traceIDContextKey{}).(string); ok {
		return id
	}
	return r.Header.Get(HeaderTraceID)
}
