package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaultsAndFile(t *testing.T) {
	path := writeConfig(t, `
server:
  addr: ":9090"
auth:
  signing_secret: "file-secret"
  access_token_ttl_seconds: 600
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Addr != ":9090" {
		t.Fatalf("addr=%q", cfg.Server.Addr)
	}
	if cfg.Auth.SigningSecret != "file-secret" {
		t.Fatalf("secret=%q", cfg.Auth.SigningSecret)
	}
	if cfg.AccessTokenTTL() != 10*time.Minute {
		t.Fatalf("access ttl=%v", cfg.AccessTokenTTL())
	}
	// Untouched fields keep their defaults.
	if cfg.RefreshTokenTTL() != 7*24*time.Hour {
		t.Fatalf("refresh ttl=%v", cfg.RefreshTokenTTL())
	}
	if cfg.ClockSkewTolerance() != 5*time.Second {
		t.Fatalf("skew=%v", cfg.ClockSkewTolerance())
	}
	if !cfg.BumpOnReuse() {
		t.Fatal("bump on reuse should default to true")
	}
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
auth:
  signing_secret: "file-secret"
`)
	t.Setenv("GATEKIT_SIGNING_SECRET", "env-secret")
	t.Setenv("GATEKIT_LISTEN_ADDR", ":7070")
	t.Setenv("GATEKIT_ACCESS_TOKEN_TTL_SECONDS", "120")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Auth.SigningSecret != "env-secret" {
		t.Fatalf("secret=%q", cfg.Auth.SigningSecret)
	}
	if cfg.Server.Addr != ":7070" {
		t.Fatalf("addr=%q", cfg.Server.Addr)
	}
	if cfg.Auth.AccessTokenTTLSeconds != 120 {
		t.Fatalf("access ttl=%d", cfg.Auth.AccessTokenTTLSeconds)
	}
}

func TestLoadMissingSecret(t *testing.T) {
	path := writeConfig(t, `
server:
  addr: ":9090"
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for missing signing secret")
	}
}

func TestValidate(t *testing.T) {
	base := func() Config {
		cfg := Default()
		cfg.Auth.SigningSecret = "x"
		return cfg
	}

	cfg := base()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	cfg = base()
	cfg.Auth.AccessTokenTTLSeconds = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("zero access ttl accepted")
	}

	cfg = base()
	cfg.Auth.RefreshTokenTTLSeconds = cfg.Auth.AccessTokenTTLSeconds
	if err := cfg.Validate(); err == nil {
		t.Fatal("refresh ttl <= access ttl accepted")
	}

	cfg = base()
	cfg.Auth.ClockSkewToleranceSeconds = -1
	if err := cfg.Validate(); err == nil {
		t.Fatal("negative skew accepted")
	}

	cfg = base()
	cfg.RateLimit = RateLimitConfig{Enabled: true, PerSecond: 0, Burst: 10}
	if err := cfg.Validate(); err == nil {
		t.Fatal("zero rate limit accepted")
	}
}

func TestLoadBadFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
	path := writeConfig(t, "::: not yaml {{{")
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for invalid yaml")
	}
}

func TestBumpOnReuseExplicitFalse(t *testing.T) {
	path := writeConfig(t, `
auth:
  signing_secret: "x"
  bump_generation_on_reuse: false
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.BumpOnReuse() {
		t.Fatal("explicit false ignored")
	}
}
