// Package config loads process configuration for the binaries from a .env
// file and the environment through viper.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/hotelcast/tokenauth"
	"github.com/hotelcast/tokenauth/internal/redisclient"
	"github.com/spf13/viper"
)

// Config holds everything cmd/authd and cmd/gatewayd read at startup.
type Config struct {
	App      AppConfig
	JWT      JWTConfig
	Redis    RedisConfig
	Database DatabaseConfig
	Cookie   CookieConfig
	Gateway  GatewayConfig
	Audit    AuditConfig
}

type AppConfig struct {
	Environment string
	LogLevel    string
	HTTPAddr    string
}

// IsProduction reports whether APP_ENV is "production".
func (a AppConfig) IsProduction() bool {
	return strings.EqualFold(a.Environment, "production")
}

type JWTConfig struct {
	Secret     string
	Algorithm  string
	PrivateKey string
	PublicKey  string
	Issuer     string
	Audience   string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	Leeway     time.Duration
}

type RedisConfig struct {
	Host             string
	Port             int
	Password         string
	DB               int
	PoolSize         int
	OperationTimeout time.Duration
	KeyPrefix        string
}

// Addr returns the Redis address
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// Client returns the connection settings for redisclient.Connect.
func (r RedisConfig) Client() redisclient.Config {
	cfg := redisclient.DefaultConfig()
	cfg.Addr = r.Addr()
	cfg.Password = r.Password
	cfg.DB = r.DB
	if r.PoolSize > 0 {
		cfg.PoolSize = r.PoolSize
	}
	return cfg
}

type DatabaseConfig struct {
	User     string
	Password string
	Host     string
	Port     int
	Name     string
	SSLMode  string
	MaxConns int32
}

// DSN returns the PostgreSQL connection URL.
func (d DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password),
		Host:     fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:     "/" + d.Name,
		RawQuery: "sslmode=" + url.QueryEscape(d.SSLMode),
	}
	return u.String()
}

type CookieConfig struct {
	Secure bool
	Domain string
}

// GatewayConfig lists the upstreams the gateway proxies to. PublicPaths are
// exact request paths forwarded without an access token.
type GatewayConfig struct {
	Upstreams   []Upstream
	PublicPaths []string
}

// Upstream maps a path prefix to a backend URL.
type Upstream struct {
	Prefix string
	URL    *url.URL
}

type AuditConfig struct {
	Enabled bool
}

// Load reads .env from the working directory when present, then the
// environment.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")

	// A missing .env is fine; the environment may carry everything.
	_ = v.ReadInConfig()

	return load(v)
}

// LoadFile reads the given env file, then the environment.
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("env")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return load(v)
}

func load(v *viper.Viper) (*Config, error) {
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	cfg := &Config{}
	if err := bindConfig(v, cfg); err != nil {
		return nil, fmt.Errorf("failed to bind config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	// App defaults
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("HTTP_ADDR", ":8080")

	// JWT defaults
	v.SetDefault("JWT_HASH_ALGORITHM", "HS256")
	v.SetDefault("ACCESS_TOKEN_EXPIRE_MINUTES", 15)
	v.SetDefault("REFRESH_TOKEN_EXPIRE_MINUTES", 1440)
	v.SetDefault("JWT_LEEWAY", "0s")

	// Redis defaults
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REDIS_POOL_SIZE", 100)
	v.SetDefault("REDIS_OPERATION_TIMEOUT", "2s")

	// Database defaults
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_NAME", "hotelcast")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("DB_MAX_CONNS", 20)

	v.SetDefault("COOKIE_SECURE", false)
	v.SetDefault("AUDIT_ENABLED", true)

	// Gateway defaults
	v.SetDefault("GATEWAY_PUBLIC_PATHS", "/auth/login,/auth/refresh,/auth/logout")
}

func bindConfig(v *viper.Viper, cfg *Config) error {
	// App
	cfg.App.Environment = v.GetString("APP_ENV")
	cfg.App.LogLevel = v.GetString("LOG_LEVEL")
	cfg.App.HTTPAddr = v.GetString("HTTP_ADDR")

	// JWT
	cfg.JWT.Secret = v.GetString("JWT_SECRET_KEY")
	cfg.JWT.Algorithm = v.GetString("JWT_HASH_ALGORITHM")
	cfg.JWT.PrivateKey = v.GetString("JWT_PRIVATE_KEY")
	cfg.JWT.PublicKey = v.GetString("JWT_PUBLIC_KEY")
	cfg.JWT.Issuer = v.GetString("JWT_ISSUER")
	cfg.JWT.Audience = v.GetString("JWT_AUDIENCE")
	cfg.JWT.AccessTTL = time.Duration(v.GetInt("ACCESS_TOKEN_EXPIRE_MINUTES")) * time.Minute
	cfg.JWT.RefreshTTL = time.Duration(v.GetInt("REFRESH_TOKEN_EXPIRE_MINUTES")) * time.Minute
	cfg.JWT.Leeway = v.GetDuration("JWT_LEEWAY")

	// Redis
	cfg.Redis.Host = v.GetString("REDIS_HOST")
	cfg.Redis.Port = v.GetInt("REDIS_PORT")
	cfg.Redis.Password = v.GetString("REDIS_PASSWORD")
	cfg.Redis.DB = v.GetInt("REDIS_DB")
	cfg.Redis.PoolSize = v.GetInt("REDIS_POOL_SIZE")
	cfg.Redis.OperationTimeout = v.GetDuration("REDIS_OPERATION_TIMEOUT")
	cfg.Redis.KeyPrefix = v.GetString("REDIS_KEY_PREFIX")

	// Database
	cfg.Database.User = v.GetString("DB_USER")
	cfg.Database.Password = v.GetString("DB_PASSWORD")
	cfg.Database.Host = v.GetString("DB_HOST")
	cfg.Database.Port = v.GetInt("DB_PORT")
	cfg.Database.Name = v.GetString("DB_NAME")
	cfg.Database.SSLMode = v.GetString("DB_SSLMODE")
	cfg.Database.MaxConns = v.GetInt32("DB_MAX_CONNS")

	// Cookies
	cfg.Cookie.Secure = v.GetBool("COOKIE_SECURE")
	cfg.Cookie.Domain = v.GetString("COOKIE_DOMAIN")
	if cfg.App.IsProduction() {
		cfg.Cookie.Secure = true
	}

	cfg.Audit.Enabled = v.GetBool("AUDIT_ENABLED")

	// Gateway
	upstreams, err := parseUpstreams(v.GetString("GATEWAY_UPSTREAMS"))
	if err != nil {
		return err
	}
	cfg.Gateway.Upstreams = upstreams

	public, err := parsePublicPaths(v.GetString("GATEWAY_PUBLIC_PATHS"))
	if err != nil {
		return err
	}
	cfg.Gateway.PublicPaths = public

	return nil
}

// parsePublicPaths reads "/path,/path".
func parsePublicPaths(raw string) ([]string, error) {
	var out []string
	for _, p := range strings.Split(raw, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if !strings.HasPrefix(p, "/") {
			return nil, fmt.Errorf("GATEWAY_PUBLIC_PATHS entry %q must start with /", p)
		}
		out = append(out, p)
	}
	return out, nil
}

// parseUpstreams reads "prefix=url,prefix=url".
func parseUpstreams(raw string) ([]Upstream, error) {
	var out []Upstream
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		prefix, target, ok := strings.Cut(part, "=")
		if !ok {
			return nil, fmt.Errorf("GATEWAY_UPSTREAMS entry %q: want prefix=url", part)
		}
		prefix = strings.TrimSpace(prefix)
		if !strings.HasPrefix(prefix, "/") {
			return nil, fmt.Errorf("GATEWAY_UPSTREAMS prefix %q must start with /", prefix)
		}
		u, err := url.Parse(strings.TrimSpace(target))
		if err != nil || u.Scheme == "" || u.Host == "" {
			return nil, fmt.Errorf("GATEWAY_UPSTREAMS url %q is not absolute", target)
		}
		out = append(out, Upstream{Prefix: prefix, URL: u})
	}
	return out, nil
}

// Validate checks the settings every binary needs.
func (c *Config) Validate() error {
	if c.JWT.AccessTTL <= 0 || c.JWT.RefreshTTL <= 0 {
		return errors.New("token lifetimes must be positive")
	}
	switch strings.ToUpper(c.JWT.Algorithm) {
	case "HS256", "HS384", "HS512":
		if c.JWT.Secret == "" {
			return errors.New("JWT_SECRET_KEY is required")
		}
	case "EDDSA":
		if c.JWT.PrivateKey == "" && c.JWT.PublicKey == "" {
			return errors.New("JWT_PRIVATE_KEY or JWT_PUBLIC_KEY is required for EdDSA")
		}
	default:
		return fmt.Errorf("unsupported JWT_HASH_ALGORITHM %q", c.JWT.Algorithm)
	}
	if c.Redis.Port <= 0 || c.Redis.Port > 65535 {
		return fmt.Errorf("invalid redis port: %d", c.Redis.Port)
	}
	return nil
}

// TokenConfig maps the loaded settings onto the Authority configuration.
func (c *Config) TokenConfig() tokenauth.Config {
	out := tokenauth.DefaultConfig()
	out.JWT.Algorithm = canonicalAlgorithm(c.JWT.Algorithm)
	out.JWT.Issuer = c.JWT.Issuer
	out.JWT.Audience = c.JWT.Audience
	out.JWT.AccessTTL = c.JWT.AccessTTL
	out.JWT.RefreshTTL = c.JWT.RefreshTTL
	out.JWT.Leeway = c.JWT.Leeway
	if c.JWT.Secret != "" {
		out.JWT.Secret = []byte(c.JWT.Secret)
	}
	if c.JWT.PrivateKey != "" {
		out.JWT.PrivateKey = []byte(c.JWT.PrivateKey)
	}
	if c.JWT.PublicKey != "" {
		out.JWT.PublicKey = []byte(c.JWT.PublicKey)
	}

	out.Store.KeyPrefix = c.Redis.KeyPrefix
	if c.Redis.OperationTimeout > 0 {
		out.Store.OperationTimeout = c.Redis.OperationTimeout
	}
	out.Audit.Enabled = c.Audit.Enabled
	out.Metrics.Enabled = true
	out.Metrics.EnableLatencyHistograms = true
	return out
}

func canonicalAlgorithm(alg string) string {
	if strings.EqualFold(alg, "EdDSA") {
		return "EdDSA"
	}
	return strings.ToUpper(alg)
}
