package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the resolved runtime configuration for the engine.
// It merges file defaults and environment overrides so local runs and
// deployed runs share one code path.
type Config struct {
	HTTPPort    int
	DatabaseURL string

	JWTSecret string

	KafkaBrokers []string

	OutboxPollInterval  time.Duration
	AutoReleaseInterval time.Duration
	AutoReleaseDays     int

	ShutdownTimeout time.Duration
}

// configFile mirrors the YAML schema used by configs/default.yaml.
type configFile struct {
	Service struct {
		HTTPPort int `yaml:"http_port"`
	} `yaml:"service"`
	Dependencies struct {
		PostgresURL  string   `yaml:"postgres_url"`
		KafkaBrokers []string `yaml:"kafka_brokers"`
	} `yaml:"dependencies"`
	Escrow struct {
		AutoReleaseDays int `yaml:"auto_release_days"`
	} `yaml:"escrow"`
}

// Load resolves configuration in priority order: defaults -> file -> env.
func Load(path string) (Config, error) {
	cfg := Config{
		HTTPPort:            8080,
		OutboxPollInterval:  5 * time.Second,
		AutoReleaseInterval: time.Minute,
		AutoReleaseDays:     14,
		ShutdownTimeout:     15 * time.Second,
	}

	if raw, err := os.ReadFile(path); err == nil {
		var f configFile
		if unmarshalErr := yaml.Unmarshal(raw, &f); unmarshalErr != nil {
			return Config{}, fmt.Errorf("config: parse file: %w", unmarshalErr)
		}
		if f.Service.HTTPPort > 0 {
			cfg.HTTPPort = f.Service.HTTPPort
		}
		if f.Dependencies.PostgresURL != "" {
			cfg.DatabaseURL = f.Dependencies.PostgresURL
		}
		if len(f.Dependencies.KafkaBrokers) > 0 {
			cfg.KafkaBrokers = f.Dependencies.KafkaBrokers
		}
		if f.Escrow.AutoReleaseDays > 0 {
			cfg.AutoReleaseDays = f.Escrow.AutoReleaseDays
		}
	}

	cfg.DatabaseURL = envOrDefault("DATABASE_URL", cfg.DatabaseURL)
	cfg.JWTSecret = envOrDefault("JWT_SECRET", cfg.JWTSecret)
	cfg.KafkaBrokers = envCSV("KAFKA_BROKERS", cfg.KafkaBrokers)
	cfg.HTTPPort = envInt("HTTP_PORT", cfg.HTTPPort)
	cfg.AutoReleaseDays = envInt("AUTO_RELEASE_DAYS", cfg.AutoReleaseDays)
	cfg.OutboxPollInterval = time.Duration(envInt("OUTBOX_POLL_SECONDS", int(cfg.OutboxPollInterval.Seconds()))) * time.Second
	cfg.AutoReleaseInterval = time.Duration(envInt("AUTO_RELEASE_SCAN_SECONDS", int(cfg.AutoReleaseInterval.Seconds()))) * time.Second

	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("config: missing DATABASE_URL")
	}
	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("config: missing JWT_SECRET")
	}

	return cfg, nil
}

func envOrDefault(name, fallback string) string {
	if value := os.Getenv(name); value != "" {
		return value
	}
	return fallback
}

func envInt(name string, fallback int) int {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

func envCSV(name string, fallback []string) []string {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	parts := make([]string, 0)
	for _, part := range strings.Split(raw, ",") {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		parts = append(parts, trimmed)
	}
	if len(parts) == 0 {
		return fallback
	}
	return parts
}
