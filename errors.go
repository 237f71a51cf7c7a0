package tokenauth

import (
	"errors"

	"github.com/hotelcast/tokenauth/jwt"
	"github.com/hotelcast/tokenauth/principal"
	"github.com/hotelcast/tokenauth/store"
)

var (
	// ErrInvalidToken is returned for any token that fails verification or
	// cannot serve the requested operation.
	ErrInvalidToken = jwt.ErrInvalidToken
	// ErrExpired is joined with ErrInvalidToken when the exp claim has lapsed.
	ErrExpired = jwt.ErrExpired
	// ErrMalformed is joined with ErrInvalidToken for structurally broken tokens.
	ErrMalformed = jwt.ErrMalformed
	// ErrUnsupportedTokenType is returned when token_type is neither access nor refresh.
	ErrUnsupportedTokenType = jwt.ErrUnsupportedTokenType
	// ErrRevoked is returned when a refresh token is no longer live in the store,
	// including when a concurrent rotation consumed it first.
	ErrRevoked = errors.New("token revoked")
	// ErrStore is returned when the token store cannot complete an operation.
	ErrStore = errors.New("token store failure")
	// ErrAuthorization is returned when forwarded identity is missing or malformed.
	ErrAuthorization = principal.ErrAuthorization
	// ErrInvalidPrincipal is returned when a principal fails validation.
	ErrInvalidPrincipal = principal.ErrInvalidPrincipal
	// ErrInvalidConfig is returned by Build when the configuration is rejected.
	ErrInvalidConfig = errors.New("invalid configuration")
)

// IsAuthFailure reports whether err belongs to the authorization-failure class:
// every token, principal and header error. Store failures are not included.
func IsAuthFailure(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, ErrInvalidToken),
		errors.Is(err, ErrExpired),
		errors.Is(err, ErrMalformed),
		errors.Is(err, ErrUnsupportedTokenType),
		errors.Is(err, ErrRevoked),
		errors.Is(err, ErrAuthorization),
		errors.Is(err, ErrInvalidPrincipal):
		return true
	default:
		return false
	}
}

// IsStoreFailure reports whether err was caused by the token store.
func IsStoreFailure(err error) bool {
	return errors.Is(err, ErrStore) || errors.Is(err, store.ErrUnavailable)
}
