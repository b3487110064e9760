// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// HTTPAddr is the address the HTTP server listens on (e.g. :8080).
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// DatabaseURL is the Postgres DSN; empty until DB is wired.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// JWTAccessSecret is the symmetric HS256 signing secret for access tokens. Required.
	JWTAccessSecret string `mapstructure:"JWT_ACCESS_SECRET"`
	// JWTAccessTTL is the access token lifetime (e.g. "15m").
	JWTAccessTTL string `mapstructure:"JWT_ACCESS_TTL"`
	// JWTRefreshTTL is the refresh session lifetime (e.g. "168h" for 7d).
	JWTRefreshTTL string `mapstructure:"JWT_REFRESH_TTL"`
	// CookieNameRefresh is the name of the http-only refresh cookie.
	CookieNameRefresh string `mapstructure:"COOKIE_NAME_REFRESH"`
	// SecureCookies sets the Secure flag on the refresh cookie. Must be true when Env is production.
	SecureCookies bool `mapstructure:"SECURE_COOKIES"`
	// CORSOrigin is the allowed browser origin; credentials are always allowed so the refresh cookie is sent.
	CORSOrigin string `mapstructure:"CORS_ORIGIN"`
	// Env is the application environment (e.g. "development", "production").
	Env string `mapstructure:"APP_ENV"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env. Returns an error if required fields are invalid.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("JWT_ACCESS_SECRET", "")
	v.SetDefault("JWT_ACCESS_TTL", "15m")
	v.SetDefault("JWT_REFRESH_TTL", "168h") // 7d
	v.SetDefault("COOKIE_NAME_REFRESH", "tt_refresh")
	v.SetDefault("SECURE_COOKIES", false)
	v.SetDefault("CORS_ORIGIN", "http://localhost:3000")
	v.SetDefault("APP_ENV", "")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.HTTPAddr == "" {
		return nil, errors.New("config: HTTP_ADDR must be set")
	}
	if cfg.JWTAccessSecret == "" {
		return nil, errors.New("config: JWT_ACCESS_SECRET must be set")
	}
	if cfg.CookieNameRefresh == "" {
		return nil, errors.New("config: COOKIE_NAME_REFRESH must be set")
	}
	if !cfg.SecureCookies && cfg.Env == "production" {
		return nil, errors.New("config: SECURE_COOKIES must be true when APP_ENV=production")
	}

	return &cfg, nil
}

// AccessTTL parses JWTAccessTTL as a time.Duration. Returns 15m if unset or invalid.
func (c *Config) AccessTTL() time.Duration {
	d, err := time.ParseDuration(c.JWTAccessTTL)
	if err != nil || d <= 0 {
		return 15 * time.Minute
	}
	return d
}

// RefreshTTL parses JWTRefreshTTL as a time.Duration. Returns 168h if unset or invalid.
func (c *Config) RefreshTTL() time.Duration {
	d, err := time.ParseDuration(c.JWTRefreshTTL)
	if err != nil || d <= 0 {
		return 168 * time.Hour
	}
	return d
}
