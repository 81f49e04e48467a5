// Package config loads service configuration from YAML with environment
// variable overrides. Secrets (signing secret, database DSN) are usually
// supplied through the environment; the file carries everything else.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Auth      AuthConfig      `yaml:"auth"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Addr                string `yaml:"addr"`
	ReadTimeoutSeconds  int    `yaml:"read_timeout_seconds"`
	WriteTimeoutSeconds int    `yaml:"write_timeout_seconds"`
	IdleTimeoutSeconds  int    `yaml:"idle_timeout_seconds"`
}

// DatabaseConfig contains Postgres settings. An empty DSN runs the service
// with the in-memory revocation ledger and no credential store (useful for
// local development of the routing layer only).
type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

// AuthConfig contains the token lifecycle settings.
type AuthConfig struct {
	SigningSecret             string `yaml:"signing_secret"`
	Issuer                    string `yaml:"issuer"`
	AccessTokenTTLSeconds     int    `yaml:"access_token_ttl_seconds"`
	RefreshTokenTTLSeconds    int    `yaml:"refresh_token_ttl_seconds"`
	ClockSkewToleranceSeconds int    `yaml:"clock_skew_tolerance_seconds"`
	BumpGenerationOnReuse     *bool  `yaml:"bump_generation_on_reuse"`
}

// RateLimitConfig throttles credential endpoints per client IP. Set
// trust_proxy_headers only when a trusted proxy fronts the service;
// X-Forwarded-For is ignored otherwise.
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled"`
	PerSecond         int  `yaml:"per_second"`
	Burst             int  `yaml:"burst"`
	TrustProxyHeaders bool `yaml:"trust_proxy_headers"`
}

// Default returns the configuration defaults applied before file and
// environment values.
func Default() Config {
	bump := true
	return Config{
		Server: ServerConfig{
			Addr:                ":8080",
			ReadTimeoutSeconds:  15,
			WriteTimeoutSeconds: 15,
			IdleTimeoutSeconds:  60,
		},
		Auth: AuthConfig{
			Issuer:                    "gatekit",
			AccessTokenTTLSeconds:     30 * 60,
			RefreshTokenTTLSeconds:    7 * 24 * 60 * 60,
			ClockSkewToleranceSeconds: 5,
			BumpGenerationOnReuse:     &bump,
		},
		RateLimit: RateLimitConfig{
			Enabled:   true,
			PerSecond: 5,
			Burst:     10,
		},
	}
}

// Load reads the optional YAML file at path, applies environment overrides
// and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// applyEnv overrides file values with GATEKIT_* environment variables.
func (c *Config) applyEnv() {
	if v := os.Getenv("GATEKIT_LISTEN_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("GATEKIT_PG_DSN"); v != "" {
		c.Database.DSN = v
	}
	if v := os.Getenv("GATEKIT_SIGNING_SECRET"); v != "" {
		c.Auth.SigningSecret = v
	}
	if v := os.Getenv("GATEKIT_ISSUER"); v != "" {
		c.Auth.Issuer = v
	}
	if v, ok := envInt("GATEKIT_ACCESS_TOKEN_TTL_SECONDS"); ok {
		c.Auth.AccessTokenTTLSeconds = v
	}
	if v, ok := envInt("GATEKIT_REFRESH_TOKEN_TTL_SECONDS"); ok {
		c.Auth.RefreshTokenTTLSeconds = v
	}
	if v, ok := envInt("GATEKIT_CLOCK_SKEW_TOLERANCE_SECONDS"); ok {
		c.Auth.ClockSkewToleranceSeconds = v
	}
}

func envInt(name string) (int, bool) {
	raw := os.Getenv(name)
	if raw == "" {
		return 0, false
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return v, true
}

// Validate checks invariants the rest of the service relies on.
func (c *Config) Validate() error {
	if c.Auth.SigningSecret == "" {
		return errors.New("config: auth.signing_secret is required")
	}
	if c.Auth.AccessTokenTTLSeconds <= 0 {
		return errors.New("config: auth.access_token_ttl_seconds must be positive")
	}
	if c.Auth.RefreshTokenTTLSeconds <= 0 {
		return errors.New("config: auth.refresh_token_ttl_seconds must be positive")
	}
	if c.Auth.RefreshTokenTTLSeconds <= c.Auth.AccessTokenTTLSeconds {
		return errors.New("config: refresh token ttl must exceed access token ttl")
	}
	if c.Auth.ClockSkewToleranceSeconds < 0 {
		return errors.New("config: auth.clock_skew_tolerance_seconds must not be negative")
	}
	if c.RateLimit.Enabled && (c.RateLimit.PerSecond <= 0 || c.RateLimit.Burst <= 0) {
		return errors.New("config: rate_limit requires positive per_second and burst")
	}
	return nil
}

// AccessTokenTTL returns the access token lifetime as a duration.
func (c *Config) AccessTokenTTL() time.Duration {
	return time.Duration(c.Auth.AccessTokenTTLSeconds) * time.Second
}

// RefreshTokenTTL returns the refresh token lifetime as a duration.
func (c *Config) RefreshTokenTTL() time.Duration {
	return time.Duration(c.Auth.RefreshTokenTTLSeconds) * time.Second
}

// ClockSkewTolerance returns the permitted clock drift as a duration.
func (c *Config) ClockSkewTolerance() time.Duration {
	return time.Duration(c.Auth.ClockSkewToleranceSeconds) * time.Second
}

// BumpOnReuse reports whether refresh reuse triggers a defensive global
// logout.
func (c *Config) BumpOnReuse() bool {
	if c.Auth.BumpGenerationOnReuse == nil {
		return true
	}
	return *c.Auth.BumpGenerationOnReuse
}
