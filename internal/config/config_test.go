package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultRequiresJWTSecret(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err == nil {
		t.Fatal("defaults without a JWT secret should not validate")
	}
	cfg.Auth.JWTSecret = "s3cret"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestLoadAppliesFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := []byte(`
server:
  addr: ":9999"
auth:
  jwt_secret: from-file
redis:
  addr: localhost:6379
  ttl_seconds: 60
`)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("WAITROOM_JWT_SECRET", "from-env")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Addr != ":9999" {
		t.Fatalf("addr = %s, want :9999", cfg.Server.Addr)
	}
	if cfg.Auth.JWTSecret != "from-env" {
		t.Fatalf("jwt secret = %s, env should win", cfg.Auth.JWTSecret)
	}
	if cfg.RedisTTL().Seconds() != 60 {
		t.Fatalf("redis ttl = %s, want 60s", cfg.RedisTTL())
	}
	if cfg.RateLimit.RequestsPerSecond != 20 {
		t.Fatalf("rps = %d, want default 20", cfg.RateLimit.RequestsPerSecond)
	}
}

func TestLoadOrDefaultMissingFile(t *testing.T) {
	t.Setenv("WAITROOM_JWT_SECRET", "env-secret")
	t.Setenv("WAITROOM_ADDR", ":7777")

	cfg, err := LoadOrDefault(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Addr != ":7777" {
		t.Fatalf("addr = %s, want :7777", cfg.Server.Addr)
	}
	if cfg.Auth.JWTSecret != "env-secret" {
		t.Fatalf("jwt secret = %s, want env-secret", cfg.Auth.JWTSecret)
	}
}
