package tokenauth

import (
	"testing"
	"time"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantValid bool
	}{
		{
			name:      "test config valid",
			mutate:    func(*Config) {},
			wantValid: true,
		},
		{
			name: "jwt leeway valid",
			mutate: func(c *Config) {
				c.JWT.Leeway = 45 * time.Second
			},
			wantValid: true,
		},
		{
			name: "jwt leeway invalid",
			mutate: func(c *Config) {
				c.JWT.Leeway = 3 * time.Minute
			},
			wantValid: false,
		},
		{
			name: "jwt leeway negative",
			mutate: func(c *Config) {
				c.JWT.Leeway = -time.Second
			},
			wantValid: false,
		},
		{
			name: "access ttl zero",
			mutate: func(c *Config) {
				c.JWT.AccessTTL = 0
			},
			wantValid: false,
		},
		{
			name: "refresh ttl negative",
			mutate: func(c *Config) {
				c.JWT.RefreshTTL = -time.Hour
			},
			wantValid: false,
		},
		{
			name: "hmac without secret",
			mutate: func(c *Config) {
				c.JWT.Secret = nil
			},
			wantValid: false,
		},
		{
			name: "hs512 valid",
			mutate: func(c *Config) {
				c.JWT.Algorithm = "HS512"
			},
			wantValid: true,
		},
		{
			name: "eddsa without private key",
			mutate: func(c *Config) {
				c.JWT.Algorithm = "EdDSA"
			},
			wantValid: false,
		},
		{
			name: "algorithm unsupported",
			mutate: func(c *Config) {
				c.JWT.Algorithm = "RS256"
			},
			wantValid: false,
		},
		{
			name: "store timeout negative",
			mutate: func(c *Config) {
				c.Store.OperationTimeout = -time.Second
			},
			wantValid: false,
		},
		{
			name: "store prefix with whitespace",
			mutate: func(c *Config) {
				c.Store.KeyPrefix = "hotel cast:"
			},
			wantValid: false,
		},
		{
			name: "store prefix valid",
			mutate: func(c *Config) {
				c.Store.KeyPrefix = "hotelcast:"
			},
			wantValid: true,
		},
		{
			name: "audit buffer zero",
			mutate: func(c *Config) {
				c.Audit.Enabled = true
				c.Audit.BufferSize = 0
			},
			wantValid: false,
		},
		{
			name: "histograms without metrics",
			mutate: func(c *Config) {
				c.Metrics.EnableLatencyHistograms = true
			},
			wantValid: false,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := testConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.wantValid && err != nil {
				t.Fatalf("expected valid config, got %v", err)
			}
			if !tc.wantValid && err == nil {
				t.Fatal("expected invalid config")
			}
		})
	}
}

func TestDefaultConfigNeedsSecret(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected default config without a secret to be rejected")
	}
	if cfg.JWT.AccessTTL != 15*time.Minute || cfg.JWT.RefreshTTL != 24*time.Hour {
		t.Fatalf("unexpected default lifetimes %v / %v", cfg.JWT.AccessTTL, cfg.JWT.RefreshTTL)
	}
}

func TestWithConfigCopiesKeyMaterial(t *testing.T) {
	cfg := testConfig()
	secret := append([]byte(nil), testSecret...)
	cfg.JWT.Secret = secret

	b := New().WithConfig(cfg)
	secret[0] = 'X'

	if b.config.JWT.Secret[0] == 'X' {
		t.Fatal("builder must not alias the caller's secret")
	}
}
