package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Storage.Type != "memory" {
		t.Errorf("storage type = %q, want memory", cfg.Storage.Type)
	}
	if cfg.Auth.TokenTTL != time.Hour {
		t.Errorf("token ttl = %s, want 1h", cfg.Auth.TokenTTL)
	}
	if cfg.Auth.BcryptCost != 12 {
		t.Errorf("bcrypt cost = %d, want 12", cfg.Auth.BcryptCost)
	}
	if !cfg.Observability.Metrics.Enabled || cfg.Observability.Metrics.Path != "/metrics" {
		t.Errorf("metrics config = %+v", cfg.Observability.Metrics)
	}
	pg := cfg.Storage.Postgres
	if pg.MaxConns != 16 || pg.MinConns != 2 || pg.MaxConnLifetime != 30*time.Minute {
		t.Errorf("postgres pool defaults = %+v", pg)
	}
}

func TestLoadYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
server:
  port: 9090
storage:
  postgres:
    max_conns: 8
    min_conns: 1
    max_conn_lifetime: 10m
auth:
  token_ttl: 30m
  bcrypt_cost: 10
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatalf("writing config file: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Auth.TokenTTL != 30*time.Minute {
		t.Errorf("token ttl = %s, want 30m", cfg.Auth.TokenTTL)
	}
	if cfg.Auth.BcryptCost != 10 {
		t.Errorf("bcrypt cost = %d, want 10", cfg.Auth.BcryptCost)
	}
	pg := cfg.Storage.Postgres
	if pg.MaxConns != 8 || pg.MinConns != 1 || pg.MaxConnLifetime != 10*time.Minute {
		t.Errorf("postgres pool settings = %+v", pg)
	}
	// Unset fields keep their defaults.
	if cfg.Storage.Type != "memory" {
		t.Errorf("storage type = %q, want memory", cfg.Storage.Type)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("TRAILHUB_PORT", "7070")
	t.Setenv("TRAILHUB_STORAGE", "postgres")
	t.Setenv("TRAILHUB_POSTGRES_DSN", "postgres://localhost/trailhub")
	t.Setenv("TRAILHUB_TOKEN_TTL", "15m")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != 7070 {
		t.Errorf("port = %d, want 7070", cfg.Server.Port)
	}
	if cfg.Storage.Type != "postgres" || cfg.Storage.Postgres.DSN != "postgres://localhost/trailhub" {
		t.Errorf("storage = %+v", cfg.Storage)
	}
	if cfg.Auth.TokenTTL != 15*time.Minute {
		t.Errorf("token ttl = %s, want 15m", cfg.Auth.TokenTTL)
	}
}

func TestSigningKeyFileReference(t *testing.T) {
	path := filepath.Join(t.TempDir(), "signing.key")
	if err := os.WriteFile(path, []byte("c2VjcmV0LXNpZ25pbmcta2V5\n"), 0o600); err != nil {
		t.Fatalf("writing key file: %v", err)
	}
	t.Setenv("TRAILHUB_SIGNING_KEY_FILE", path)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Auth.SigningKey != "c2VjcmV0LXNpZ25pbmcta2V5" {
		t.Errorf("signing key = %q, want trimmed file content", cfg.Auth.SigningKey)
	}
}

func TestSigningKeyFileMissing(t *testing.T) {
	t.Setenv("TRAILHUB_SIGNING_KEY_FILE", filepath.Join(t.TempDir(), "does-not-exist"))
	if _, err := Load(""); err == nil {
		t.Error("Load succeeded with a missing signing key file")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid defaults", func(*Config) {}, ""},
		{"bad port", func(c *Config) { c.Server.Port = 0 }, "server.port"},
		{"bad storage type", func(c *Config) { c.Storage.Type = "redis" }, "storage.type"},
		{"postgres without dsn", func(c *Config) { c.Storage.Type = "postgres" }, "storage.postgres.dsn"},
		{"zero ttl", func(c *Config) { c.Auth.TokenTTL = 0 }, "auth.token_ttl"},
		{"bcrypt cost too low", func(c *Config) { c.Auth.BcryptCost = 3 }, "auth.bcrypt_cost"},
		{"bcrypt cost too high", func(c *Config) { c.Auth.BcryptCost = 32 }, "auth.bcrypt_cost"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() = %v, want mention of %s", err, tt.wantErr)
			}
		})
	}
}

func TestValidateCollectsAllErrors(t *testing.T) {
	cfg := Defaults()
	cfg.Server.Port = -1
	cfg.Auth.TokenTTL = 0

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() = nil")
	}
	for _, want := range []string{"server.port", "auth.token_ttl"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
}
