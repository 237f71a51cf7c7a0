package tokenauth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hotelcast/tokenauth/jwt"
)

// Config is the full Authority configuration. Build it from DefaultConfig and
// override the fields the deployment provides.
type Config struct {
	JWT     JWTConfig
	Store   StoreConfig
	Audit   AuditConfig
	Metrics MetricsConfig
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig holds the signing material and token lifetimes.
type JWTConfig struct {
	Algorithm  string // "HS256" (default), "HS384", "HS512" or "EdDSA"
	Secret     []byte
	PrivateKey []byte
	PublicKey  []byte
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	Issuer     string
	Audience   string
	Leeway     time.Duration
}

/*
====================================
STORE CONFIG
====================================
*/

// StoreConfig controls the Redis-backed token store built by WithRedis.
type StoreConfig struct {
	KeyPrefix        string
	OperationTimeout time.Duration
}

// AuditConfig controls the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls in-process counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns the production defaults: HS256, 15 minute access
// tokens and 24 hour refresh tokens. The signing secret is left empty.
func DefaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			Algorithm:  string(jwt.AlgHS256),
			AccessTTL:  15 * time.Minute,
			RefreshTTL: 24 * time.Hour,
		},
		Store: StoreConfig{
			OperationTimeout: 2 * time.Second,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.Secret = cloneBytes(cfg.JWT.Secret)
	out.JWT.PrivateKey = cloneBytes(cfg.JWT.PrivateKey)
	out.JWT.PublicKey = cloneBytes(cfg.JWT.PublicKey)
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

func (c JWTConfig) managerConfig() jwt.Config {
	return jwt.Config{
		Algorithm:  jwt.Algorithm(c.Algorithm),
		Secret:     c.Secret,
		PrivateKey: c.PrivateKey,
		PublicKey:  c.PublicKey,
		AccessTTL:  c.AccessTTL,
		RefreshTTL: c.RefreshTTL,
		Issuer:     c.Issuer,
		Audience:   c.Audience,
		Leeway:     c.Leeway,
	}
}

/*
====================================
VALIDATION
====================================
*/

// Validate rejects configurations the Authority cannot run with.
func (c *Config) Validate() error {
	// JWT
	if c.JWT.AccessTTL <= 0 {
		return errors.New("JWT AccessTTL must be > 0")
	}
	if c.JWT.RefreshTTL <= 0 {
		return errors.New("JWT RefreshTTL must be > 0")
	}
	if c.JWT.Leeway < 0 || c.JWT.Leeway > 2*time.Minute {
		return errors.New("JWT Leeway must be between 0 and 2m")
	}

	switch jwt.Algorithm(c.JWT.Algorithm) {
	case jwt.AlgHS256, jwt.AlgHS384, jwt.AlgHS512:
		if len(c.JWT.Secret) == 0 {
			return fmt.Errorf("%s requires Secret", c.JWT.Algorithm)
		}
	case jwt.AlgEdDSA:
		if len(c.JWT.PrivateKey) == 0 {
			return errors.New("EdDSA requires PrivateKey")
		}
	default:
		return fmt.Errorf("unsupported JWT algorithm %q", c.JWT.Algorithm)
	}

	// Store
	if c.Store.OperationTimeout < 0 {
		return errors.New("Store OperationTimeout must be >= 0")
	}
	if strings.ContainsAny(c.Store.KeyPrefix, " \t\r\n") {
		return errors.New("Store KeyPrefix must not contain whitespace")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when audit is enabled")
	}

	// Metrics
	if c.Metrics.EnableLatencyHistograms && !c.Metrics.Enabled {
		return errors.New("Metrics EnableLatencyHistograms requires Metrics Enabled")
	}

	return nil
}

/*
====================================
LINT
====================================
*/

// LintWarning is a configuration smell that does not prevent Build.
type LintWarning struct {
	Code    string
	Message string
}

// LintResult is the ordered list of warnings produced by Lint.
type LintResult []LintWarning

// Codes returns the warning codes in order.
func (r LintResult) Codes() []string {
	codes := make([]string, 0, len(r))
	for _, w := range r {
		codes = append(codes, w.Code)
	}
	return codes
}

const minHMACSecretLen = 32

// Lint reports valid-but-risky settings.
func (c *Config) Lint() LintResult {
	var ws LintResult
	add := func(code, msg string) {
		ws = append(ws, LintWarning{Code: code, Message: msg})
	}

	switch jwt.Algorithm(c.JWT.Algorithm) {
	case jwt.AlgHS256, jwt.AlgHS384, jwt.AlgHS512:
		if n := len(c.JWT.Secret); n > 0 && n < minHMACSecretLen {
			add("hmac_secret_short", fmt.Sprintf("HMAC secret is %d bytes; use at least %d", n, minHMACSecretLen))
		}
	}
	if c.JWT.AccessTTL >= c.JWT.RefreshTTL {
		add("access_outlives_refresh", "access token lifetime is not shorter than the refresh token lifetime")
	}
	if c.JWT.AccessTTL > time.Hour {
		add("access_ttl_long", "access tokens cannot be revoked; keep their lifetime short")
	}
	if c.JWT.Leeway > 60*time.Second {
		add("leeway_large", "leeway above 60s extends every token's effective lifetime")
	}
	if c.JWT.Issuer == "" || c.JWT.Audience == "" {
		add("issuer_audience_unset", "issuer and audience checks are disabled")
	}
	if !c.Audit.Enabled {
		add("audit_disabled", "token lifecycle events are not audited")
	}

	return ws
}
