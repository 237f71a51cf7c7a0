package jwt

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/hotelcast/tokenauth/principal"
)

// TokenType is the token_type discriminator carried by every token.
type TokenType string

const (
	TypeAccess  TokenType = "access"
	TypeRefresh TokenType = "refresh"
)

// AccessClaims carries the full principal so downstream services never need a
// directory round-trip. They are never persisted server-side.
type AccessClaims struct {
	TokenType  TokenType               `json:"token_type"`
	SystemRole principal.SystemRole    `json:"system_role"`
	Hotels     []principal.HotelAccess `json:"hotels"`
	jwt.RegisteredClaims
}

// Principal rebuilds the validated principal from the claims.
func (c *AccessClaims) Principal() (principal.Principal, error) {
	userID, err := principal.ParseSubject(c.Subject)
	if err != nil {
		return principal.Principal{}, err
	}
	return principal.New(userID, c.SystemRole, c.Hotels)
}

// RefreshClaims identify a refresh token. The jti (RegisteredClaims.ID) is the
// only server-side handle.
type RefreshClaims struct {
	TokenType TokenType `json:"token_type"`
	jwt.RegisteredClaims
}

// JTI returns the refresh token identifier.
func (c *RefreshClaims) JTI() string { return c.ID }

// Claims is the decoded form of a token: exactly one of Access or Refresh is
// set, matching Type.
type Claims struct {
	Type    TokenType
	Access  *AccessClaims
	Refresh *RefreshClaims
}

// AccessFor builds unsigned access claims for p.
func AccessFor(p principal.Principal) Claims {
	return Claims{
		Type: TypeAccess,
		Access: &AccessClaims{
			TokenType:        TypeAccess,
			SystemRole:       p.SystemRole(),
			Hotels:           p.Hotels(),
			RegisteredClaims: jwt.RegisteredClaims{Subject: p.Subject()},
		},
	}
}

// RefreshFor builds unsigned refresh claims for p.
func RefreshFor(p principal.Principal) Claims {
	return Claims{
		Type: TypeRefresh,
		Refresh: &RefreshClaims{
			TokenType:        TypeRefresh,
			RegisteredClaims: jwt.RegisteredClaims{Subject: p.Subject()},
		},
	}
}

// Subject returns the sub claim of whichever variant is set.
func (c Claims) Subject() string {
	switch {
	case c.Access != nil:
		return c.Access.Subject
	case c.Refresh != nil:
		return c.Refresh.Subject
	default:
		return ""
	}
}

// ExpiresAt returns the exp claim, or the zero time when absent.
func (c Claims) ExpiresAt() time.Time {
	var exp *jwt.NumericDate
	switch {
	case c.Access != nil:
		exp = c.Access.ExpiresAt
	case c.Refresh != nil:
		exp = c.Refresh.ExpiresAt
	}
	if exp == nil {
		return time.Time{}
	}
	return exp.Time
}
