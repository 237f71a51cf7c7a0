package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/hotelcast/tokenauth/gateway"
	"github.com/hotelcast/tokenauth/principal"
	"go.uber.org/zap"
)

// AccessCookieName is the cookie the auth service sets for access tokens.
const AccessCookieName = "access_token"

type principalContextKey struct{}

// PrincipalFromContext returns the principal stored by Gateway or
// RequirePrincipal.
func PrincipalFromContext(ctx context.Context) (principal.Principal, bool) {
	p, ok := ctx.Value(principalContextKey{}).(principal.Principal)
	return p, ok
}

// WithPrincipal stores p in ctx.
func WithPrincipal(ctx context.Context, p principal.Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, p)
}

// Verifier is implemented by [gateway.Verifier].
type Verifier interface {
	Verify(raw string) (principal.Principal, error)
}

// GatewayOptions configures Gateway.
type GatewayOptions struct {
	// CookieName overrides AccessCookieName.
	CookieName string
	// PublicPaths are exact request paths forwarded without a token. Identity
	// headers are still stripped from them.
	PublicPaths []string
	Logger      *zap.Logger
}

// Gateway authenticates every request except PublicPaths with the access
// token from the cookie or an Authorization: Bearer header. Client supplied
// identity headers are always stripped; on success they are replaced with the
// verified principal.
func Gateway(verifier Verifier, opts GatewayOptions) func(http.Handler) http.Handler {
	cookieName := opts.CookieName
	if cookieName == "" {
		cookieName = AccessCookieName
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	public := make(map[string]struct{}, len(opts.PublicPaths))
	for _, p := range opts.PublicPaths {
		public[p] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal.StripHeaders(r.Header)
			if _, ok := public[r.URL.Path]; ok {
				next.ServeHTTP(w, r)
				return
			}

			token, ok := accessToken(r, cookieName)
			if !ok {
				writeError(w, r, http.StatusUnauthorized, TypeAuthorization, CodeMissingToken, "missing access token")
				return
			}

			p, err := verifier.Verify(token)
			if err != nil {
				code, message := CodeInvalidToken, "invalid access token"
				if errors.Is(err, gateway.ErrExpired) {
					code, message = CodeTokenExpired, "access token expired"
				}
				logger.Debug("access token rejected",
					zap.String("trace_id", TraceIDFromRequest(r)),
					zap.String("path", r.URL.Path),
					zap.Error(err),
				)
				writeError(w, r, http.StatusUnauthorized, TypeAuthorization, code, message)
				return
			}

			if err := principal.WriteHeaders(r.Header, p); err != nil {
				logger.Error("write identity headers", zap.Error(err))
				writeError(w, r, http.StatusInternalServerError, TypeInternal, CodeInternal, "internal error")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
		})
	}
}

func accessToken(r *http.Request, cookieName string) (string, bool) {
	if c, err := r.Cookie(cookieName); err == nil && c.Value != "" {
		return c.Value, true
	}
	return bearerToken(r.Header.Get("Authorization"))
}

// bearerToken matches the scheme case-insensitively (RFC 6750).
func bearerToken(value string) (string, bool) {
	scheme, token, ok := strings.Cut(value, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}

	token = strings.TrimSpace(token)
	if token == "" {
		return "", false
	}

	return token, true
}
