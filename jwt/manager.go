package jwt

import (
	"crypto/ed25519"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/hotelcast/tokenauth/principal"
)

var (
	// ErrInvalidToken covers bad signatures, unexpected algorithms and missing required claims.
	ErrInvalidToken = errors.New("invalid token")
	// ErrExpired is returned when the exp claim has lapsed.
	ErrExpired = errors.New("token expired")
	// ErrMalformed is returned for structurally invalid tokens or payloads.
	ErrMalformed = errors.New("malformed token")
	// ErrUnsupportedTokenType is returned when token_type is neither access nor refresh.
	ErrUnsupportedTokenType = errors.New("unsupported token type")
)

// Algorithm names a signing algorithm using its JOSE identifier.
type Algorithm string

const (
	AlgHS256 Algorithm = "HS256"
	AlgHS384 Algorithm = "HS384"
	AlgHS512 Algorithm = "HS512"
	AlgEdDSA Algorithm = "EdDSA"
)

// Config holds the deployment-provided signing material and lifetimes.
type Config struct {
	Algorithm  Algorithm
	Secret     []byte
	PrivateKey []byte
	PublicKey  []byte
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	Issuer     string
	Audience   string
	Leeway     time.Duration

	// Clock overrides time.Now for stamping and validation.
	Clock func() time.Time
}

// Manager signs and verifies tokens for one algorithm and key set.
type Manager struct {
	config    Config
	method    jwt.SigningMethod
	signKey   interface{}
	verifyKey interface{}
}

// NewManager validates cfg and prepares the signing keys.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	if cfg.Algorithm == "" {
		cfg.Algorithm = AlgHS256
	}
	cfg.Issuer = strings.TrimSpace(cfg.Issuer)
	cfg.Audience = strings.TrimSpace(cfg.Audience)

	m := &Manager{config: cfg}
	switch cfg.Algorithm {
	case AlgHS256, AlgHS384, AlgHS512:
		if len(cfg.Secret) == 0 {
			return nil, fmt.Errorf("%s requires a secret", cfg.Algorithm)
		}
		m.method = jwt.GetSigningMethod(string(cfg.Algorithm))
		m.signKey = cfg.Secret
		m.verifyKey = cfg.Secret
	case AlgEdDSA:
		m.method = jwt.SigningMethodEdDSA
		if len(cfg.PrivateKey) > 0 {
			priv, err := parseEdPrivateKey(cfg.PrivateKey)
			if err != nil {
				return nil, err
			}
			m.signKey = priv
			m.verifyKey = priv.Public()
		}
		if len(cfg.PublicKey) > 0 {
			pub, err := parseEdPublicKey(cfg.PublicKey)
			if err != nil {
				return nil, err
			}
			m.verifyKey = pub
		}
		if m.verifyKey == nil {
			return nil, errors.New("EdDSA requires a public or private key")
		}
	default:
		return nil, fmt.Errorf("unsupported signing algorithm %q", cfg.Algorithm)
	}

	return m, nil
}

// AccessTTL returns the configured access-token lifetime.
func (m *Manager) AccessTTL() time.Duration { return m.config.AccessTTL }

// RefreshTTL returns the configured refresh-token lifetime.
func (m *Manager) RefreshTTL() time.Duration { return m.config.RefreshTTL }

// EncodeAccess signs access claims for p with the configured access lifetime.
func (m *Manager) EncodeAccess(p principal.Principal) (string, Claims, error) {
	return m.Encode(AccessFor(p), m.config.AccessTTL)
}

// EncodeRefresh signs refresh claims for p with the configured refresh
// lifetime. Every call stamps a new jti.
func (m *Manager) EncodeRefresh(p principal.Principal) (string, Claims, error) {
	return m.Encode(RefreshFor(p), m.config.RefreshTTL)
}

// Encode stamps exp = now + lifetime (and a fresh jti for refresh claims),
// signs the result and returns the token together with the stamped claims.
// The input claims are not modified.
func (m *Manager) Encode(claims Claims, lifetime time.Duration) (string, Claims, error) {
	if lifetime <= 0 {
		return "", Claims{}, errors.New("token lifetime must be positive")
	}
	if m.signKey == nil {
		return "", Claims{}, errors.New("manager has no signing key")
	}

	now := m.now()
	registered := jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(now.Add(lifetime)),
		IssuedAt:  jwt.NewNumericDate(now),
		Issuer:    m.config.Issuer,
	}
	if m.config.Audience != "" {
		registered.Audience = jwt.ClaimStrings{m.config.Audience}
	}

	var (
		payload jwt.Claims
		stamped Claims
	)
	switch claims.Type {
	case TypeAccess:
		if claims.Access == nil || claims.Access.Subject == "" {
			return "", Claims{}, errors.New("access claims require a subject")
		}
		c := *claims.Access
		c.TokenType = TypeAccess
		c.Hotels = append(make([]principal.HotelAccess, 0, len(c.Hotels)), c.Hotels...)
		registered.Subject = c.Subject
		c.RegisteredClaims = registered
		payload = &c
		stamped = Claims{Type: TypeAccess, Access: &c}
	case TypeRefresh:
		if claims.Refresh == nil || claims.Refresh.Subject == "" {
			return "", Claims{}, errors.New("refresh claims require a subject")
		}
		c := *claims.Refresh
		c.TokenType = TypeRefresh
		registered.Subject = c.Subject
		registered.ID = uuid.NewString()
		c.RegisteredClaims = registered
		payload = &c
		stamped = Claims{Type: TypeRefresh, Refresh: &c}
	default:
		return "", Claims{}, fmt.Errorf("%w: %q", ErrUnsupportedTokenType, claims.Type)
	}

	token, err := jwt.NewWithClaims(m.method, payload).SignedString(m.signKey)
	if err != nil {
		return "", Claims{}, err
	}
	return token, stamped, nil
}

// Decode verifies signature and expiry, then parses the payload into the shape
// selected by token_type.
func (m *Manager) Decode(token string) (Claims, error) {
	raw, err := m.DecodeMap(token)
	if err != nil {
		return Claims{}, err
	}

	discriminator, ok := raw["token_type"]
	if !ok {
		return Claims{}, fmt.Errorf("%w: missing token_type", ErrMalformed)
	}
	tokenType, ok := discriminator.(string)
	if !ok {
		return Claims{}, fmt.Errorf("%w: token_type is not a string", ErrMalformed)
	}

	switch TokenType(tokenType) {
	case TypeAccess:
		var c AccessClaims
		if err := remarshal(raw, &c); err != nil {
			return Claims{}, err
		}
		if c.Subject == "" {
			return Claims{}, fmt.Errorf("%w: missing sub", ErrMalformed)
		}
		return Claims{Type: TypeAccess, Access: &c}, nil
	case TypeRefresh:
		var c RefreshClaims
		if err := remarshal(raw, &c); err != nil {
			return Claims{}, err
		}
		if c.Subject == "" {
			return Claims{}, fmt.Errorf("%w: missing sub", ErrMalformed)
		}
		return Claims{Type: TypeRefresh, Refresh: &c}, nil
	default:
		return Claims{}, fmt.Errorf("%w: %q", ErrUnsupportedTokenType, tokenType)
	}
}

// DecodeMap verifies algorithm, signature, expiry and (when configured) issuer
// and audience, and returns the raw claim set without interpreting it.
func (m *Manager) DecodeMap(token string) (jwt.MapClaims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{m.method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithJSONNumber(),
	}
	if m.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(m.config.Leeway))
	}
	if m.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(m.config.Issuer))
	}
	if m.config.Audience != "" {
		options = append(options, jwt.WithAudience(m.config.Audience))
	}
	if m.config.Clock != nil {
		options = append(options, jwt.WithTimeFunc(m.config.Clock))
	}

	claims := jwt.MapClaims{}
	parsed, err := jwt.NewParser(options...).ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != m.method.Alg() {
			return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
		}
		return m.verifyKey, nil
	})
	if err != nil {
		return nil, classify(err)
	}
	if !parsed.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (m *Manager) now() time.Time {
	if m.config.Clock != nil {
		return m.config.Clock()
	}
	return time.Now()
}

func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: %v", ErrExpired, err)
	case errors.Is(err, jwt.ErrTokenMalformed):
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	default:
		return fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
}

func remarshal(raw jwt.MapClaims, out interface{}) error {
	data, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return nil
}

func parseEdPrivateKey(key []byte) (ed25519.PrivateKey, error) {
	if len(key) == ed25519.PrivateKeySize {
		return ed25519.PrivateKey(key), nil
	}
	parsed, err := jwt.ParseEdPrivateKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 private key")
	}
	edKey, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, errors.New("invalid ed25519 private key type")
	}
	return edKey, nil
}

func parseEdPublicKey(key []byte) (ed25519.PublicKey, error) {
	if len(key) == ed25519.PublicKeySize {
		return ed25519.PublicKey(key), nil
	}
	parsed, err := jwt.ParseEdPublicKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 public key")
	}
	edKey, ok := parsed.(ed25519.PublicKey)
	if !ok {
		return nil, errors.New("invalid ed25519 public key type")
	}
	return edKey, nil
}
