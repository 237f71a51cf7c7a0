package tokenauth

import "context"

// requestMeta is the per-request data the Authority copies into audit events.
type requestMeta struct {
	clientIP  string
	requestID string
}

type requestMetaKey struct{}

func metaFrom(ctx context.Context) requestMeta {
	if ctx == nil {
		return requestMeta{}
	}
	m, _ := ctx.Value(requestMetaKey{}).(requestMeta)
	return m
}

// WithClientIP records the caller's address on ctx for audit events.
func WithClientIP(ctx context.Context, ip string) context.Context {
	m := metaFrom(ctx)
	m.clientIP = ip
	return context.WithValue(ctx, requestMetaKey{}, m)
}

// WithRequestID records a request or trace identifier on ctx so audit events
// can be correlated with access logs.
func WithRequestID(ctx context.Context, id string) context.Context {
	m := metaFrom(ctx)
	m.requestID = id
	return context.WithValue(ctx, requestMetaKey{}, m)
}

func clientIPFromContext(ctx context.Context) string { return metaFrom(ctx).clientIP }

func requestIDFromContext(ctx context.Context) string { return metaFrom(ctx).requestID }
