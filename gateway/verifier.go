package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/golang-jwt/jwt/v5"
	tokenjwt "github.com/hotelcast/tokenauth/jwt"
	"github.com/hotelcast/tokenauth/principal"
)

var (
	// ErrInvalidToken matches every verification failure.
	ErrInvalidToken = tokenjwt.ErrInvalidToken
	// ErrExpired is joined with ErrInvalidToken for lapsed tokens.
	ErrExpired = tokenjwt.ErrExpired
)

// Decoder verifies a token's signature and expiry and returns its raw claims.
// [tokenjwt.Manager] implements it.
type Decoder interface {
	DecodeMap(token string) (jwt.MapClaims, error)
}

// Verifier validates access tokens presented to the gateway.
type Verifier struct {
	decoder Decoder
}

// NewVerifier returns a Verifier backed by decoder.
func NewVerifier(decoder Decoder) *Verifier {
	return &Verifier{decoder: decoder}
}

// Verify runs Decode, ValidateShape and ExtractHotelAccess in order and builds
// the principal. Every failure matches ErrInvalidToken.
func (v *Verifier) Verify(raw string) (principal.Principal, error) {
	claims, err := v.Decode(raw)
	if err != nil {
		return principal.Principal{}, err
	}
	userID, role, err := ValidateShape(claims)
	if err != nil {
		return principal.Principal{}, err
	}
	hotels, err := ExtractHotelAccess(claims)
	if err != nil {
		return principal.Principal{}, err
	}

	p, err := principal.New(userID, role, hotels)
	if err != nil {
		return principal.Principal{}, errors.Join(ErrInvalidToken, err)
	}
	return p, nil
}

// Decode verifies signature and expiry only.
func (v *Verifier) Decode(raw string) (jwt.MapClaims, error) {
	if raw == "" {
		return nil, fmt.Errorf("%w: empty token", ErrInvalidToken)
	}
	claims, err := v.decoder.DecodeMap(raw)
	if err != nil {
		if errors.Is(err, ErrInvalidToken) {
			return nil, err
		}
		return nil, errors.Join(ErrInvalidToken, err)
	}
	return claims, nil
}

// ValidateShape requires sub and system_role and a token_type of "access".
func ValidateShape(claims jwt.MapClaims) (int64, principal.SystemRole, error) {
	tokenType, _ := claims["token_type"].(string)
	if tokenjwt.TokenType(tokenType) != tokenjwt.TypeAccess {
		return 0, "", fmt.Errorf("%w: not an access token", ErrInvalidToken)
	}

	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return 0, "", fmt.Errorf("%w: missing sub", ErrInvalidToken)
	}
	userID, err := principal.ParseSubject(sub)
	if err != nil {
		return 0, "", errors.Join(ErrInvalidToken, err)
	}

	role, ok := claims["system_role"].(string)
	if !ok || role == "" {
		return 0, "", fmt.Errorf("%w: missing system_role", ErrInvalidToken)
	}
	return userID, principal.SystemRole(role), nil
}

// ExtractHotelAccess parses the hotels claim. A missing claim or one that is
// not a list of {id, user_role} objects is rejected rather than read as empty.
func ExtractHotelAccess(claims jwt.MapClaims) ([]principal.HotelAccess, error) {
	raw, ok := claims["hotels"]
	if !ok {
		return nil, fmt.Errorf("%w: missing hotels", ErrInvalidToken)
	}
	list, ok := raw.([]interface{})
	if !ok {
		return nil, fmt.Errorf("%w: hotels is not a list", ErrInvalidToken)
	}

	hotels := make([]principal.HotelAccess, 0, len(list))
	for i, item := range list {
		entry, ok := item.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("%w: hotels[%d] is not an object", ErrInvalidToken, i)
		}
		id, err := claimInt64(entry["id"])
		if err != nil {
			return nil, fmt.Errorf("%w: hotels[%d].id: %v", ErrInvalidToken, i, err)
		}
		role, ok := entry["user_role"].(string)
		if !ok {
			return nil, fmt.Errorf("%w: hotels[%d].user_role is not a string", ErrInvalidToken, i)
		}
		hotels = append(hotels, principal.HotelAccess{HotelID: id, Role: principal.HotelRole(role)})
	}
	return hotels, nil
}

func claimInt64(v interface{}) (int64, error) {
	switch n := v.(type) {
	case json.Number:
		return n.Int64()
	case float64:
		if n != math.Trunc(n) || n > math.MaxInt64 || n < math.MinInt64 {
			return 0, fmt.Errorf("not an integer: %v", n)
		}
		return int64(n), nil
	case nil:
		return 0, errors.New("missing")
	default:
		return 0, fmt.Errorf("unexpected type %T", v)
	}
}
