package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/hotelcast/tokenauth/principal"
)

// HeaderHotelID names the hotel a request operates on.
const HeaderHotelID = "X-Hotel-Id"

// RequirePrincipal rebuilds the principal from the gateway's handoff headers.
// Requests without valid headers get 401.
func RequirePrincipal() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := PrincipalFromContext(r.Context()); ok {
				next.ServeHTTP(w, r)
				return
			}
			p, err := principal.FromHeaders(r.Header)
			if err != nil {
				writeError(w, r, http.StatusUnauthorized, TypeAuthorization, CodeMissingIdentity, "missing or malformed identity")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
		})
	}
}

// RequireHotel rejects requests whose principal has no role in the hotel named
// by headerName (HeaderHotelID when empty). It must run after Gateway or
// RequirePrincipal.
func RequireHotel(headerName string) func(http.Handler) http.Handler {
	if headerName == "" {
		headerName = HeaderHotelID
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := PrincipalFromContext(r.Context())
			if !ok {
				writeError(w, r, http.StatusUnauthorized, TypeAuthorization, CodeMissingIdentity, "missing identity")
				return
			}

			hotelID, err := strconv.ParseInt(strings.TrimSpace(r.Header.Get(headerName)), 10, 64)
			if err != nil || hotelID <= 0 {
				writeError(w, r, http.StatusBadRequest, TypeValidation, CodeBadRequest, "missing or malformed "+headerName+" header")
				return
			}
			if _, ok := p.HotelRole(hotelID); !ok {
				writeError(w, r, http.StatusForbidden, TypeForbidden, CodeHotelForbidden, "no access to hotel")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
