package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadFileAndDefaults(t *testing.T) {
	path := writeFile(t, `
service:
  http_port: 9090
dependencies:
  postgres_url: postgres://localhost/caseflow
  kafka_brokers:
    - broker-1:9092
escrow:
  auto_release_days: 7
`)
	t.Setenv("JWT_SECRET", "test-secret")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTPPort != 9090 {
		t.Fatalf("expected port 9090, got %d", cfg.HTTPPort)
	}
	if cfg.DatabaseURL != "postgres://localhost/caseflow" {
		t.Fatalf("unexpected database url %q", cfg.DatabaseURL)
	}
	if len(cfg.KafkaBrokers) != 1 || cfg.KafkaBrokers[0] != "broker-1:9092" {
		t.Fatalf("unexpected brokers %v", cfg.KafkaBrokers)
	}
	if cfg.AutoReleaseDays != 7 {
		t.Fatalf("expected 7 auto-release days, got %d", cfg.AutoReleaseDays)
	}
	if cfg.OutboxPollInterval != 5*time.Second {
		t.Fatalf("expected default poll interval, got %v", cfg.OutboxPollInterval)
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := writeFile(t, `
dependencies:
  postgres_url: postgres://localhost/fromfile
`)
	t.Setenv("DATABASE_URL", "postgres://localhost/fromenv")
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("HTTP_PORT", "7000")
	t.Setenv("KAFKA_BROKERS", "b1:9092, b2:9092")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DatabaseURL != "postgres://localhost/fromenv" {
		t.Fatalf("env should win, got %q", cfg.DatabaseURL)
	}
	if cfg.HTTPPort != 7000 {
		t.Fatalf("expected port 7000, got %d", cfg.HTTPPort)
	}
	if len(cfg.KafkaBrokers) != 2 || cfg.KafkaBrokers[1] != "b2:9092" {
		t.Fatalf("unexpected brokers %v", cfg.KafkaBrokers)
	}
}

func TestLoadRequiresSecrets(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("JWT_SECRET", "")

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing DATABASE_URL")
	}

	t.Setenv("DATABASE_URL", "postgres://localhost/x")
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing JWT_SECRET")
	}
}
