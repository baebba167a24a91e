package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Divergence.DefaultAlpha != "0.58" {
		t.Errorf("DefaultAlpha = %q", cfg.Divergence.DefaultAlpha)
	}
	if cfg.Divergence.NormalizationMode != "all-present" {
		t.Errorf("NormalizationMode = %q", cfg.Divergence.NormalizationMode)
	}
	if cfg.Redis.Enabled || cfg.Postgres.Enabled || cfg.Kafka.Enabled {
		t.Error("external dependencies should be disabled by default")
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := `
server:
  port: 9000
divergence:
  defaultAlpha: inf
  normalizationMode: exclusive
  computeTimeout: 3s
redis:
  enabled: true
  cacheTTL: 1m
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("RTD_SERVER_PORT", "9100")
	t.Setenv("RTD_KAFKA_BROKERS", "a:9092,b:9092")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 9100 {
		t.Errorf("env override not applied: port = %d", cfg.Server.Port)
	}
	if cfg.Divergence.DefaultAlpha != "inf" || cfg.Divergence.NormalizationMode != "exclusive" {
		t.Errorf("divergence = %+v", cfg.Divergence)
	}
	if cfg.Divergence.ComputeTimeout != 3*time.Second {
		t.Errorf("ComputeTimeout = %v", cfg.Divergence.ComputeTimeout)
	}
	if !cfg.Redis.Enabled || cfg.Redis.CacheTTL != time.Minute {
		t.Errorf("redis = %+v", cfg.Redis)
	}
	if len(cfg.Kafka.Brokers) != 2 || cfg.Kafka.Brokers[1] != "b:9092" {
		t.Errorf("brokers = %v", cfg.Kafka.Brokers)
	}
	if cfg.Divergence.MaxItems != 1_000_000 {
		t.Errorf("unset field lost its default: MaxItems = %d", cfg.Divergence.MaxItems)
	}
}

func TestLoadRejectsUnknownMode(t *testing.T) {
	t.Setenv("RTD_DIVERGENCE_NORMALIZATION_MODE", "intersect")
	if _, err := Load(""); err == nil {
		t.Fatal("expected error for unknown normalization mode")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestDSN(t *testing.T) {
	p := PostgresConfig{Host: "db", Port: 5433, User: "u", Password: "p", Database: "d", SSLMode: "require"}
	want := "host=db port=5433 user=u password=p dbname=d sslmode=require"
	if got := p.DSN(); got != want {
		t.Errorf("DSN() = %q, want %q", got, want)
	}
}
