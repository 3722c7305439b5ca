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
	if cfg.Engine.InlineThreshold != 4000 {
		t.Errorf("Engine.InlineThreshold = %d, want 4000", cfg.Engine.InlineThreshold)
	}
	if cfg.Engine.RequestTimeout != 2*time.Second {
		t.Errorf("Engine.RequestTimeout = %v, want 2s", cfg.Engine.RequestTimeout)
	}
	if cfg.Kafka.Topics.TrackUpdates != "track-updates" {
		t.Errorf("Kafka.Topics.TrackUpdates = %q", cfg.Kafka.Topics.TrackUpdates)
	}
	if len(cfg.Scanner.Extensions) == 0 {
		t.Error("Scanner.Extensions empty")
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte(`
server:
  port: 9999
engine:
  inlineThreshold: 100
  requestTimeout: 500ms
scanner:
  musicDir: /media/dj
`)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 9999 {
		t.Errorf("Server.Port = %d, want 9999", cfg.Server.Port)
	}
	if cfg.Engine.InlineThreshold != 100 {
		t.Errorf("Engine.InlineThreshold = %d, want 100", cfg.Engine.InlineThreshold)
	}
	if cfg.Engine.RequestTimeout != 500*time.Millisecond {
		t.Errorf("Engine.RequestTimeout = %v, want 500ms", cfg.Engine.RequestTimeout)
	}
	if cfg.Scanner.MusicDir != "/media/dj" {
		t.Errorf("Scanner.MusicDir = %q", cfg.Scanner.MusicDir)
	}
	// Untouched sections keep their defaults.
	if cfg.Redis.Addr != "localhost:6379" {
		t.Errorf("Redis.Addr = %q, want default", cfg.Redis.Addr)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("expected error for missing config file")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("TS_SERVER_PORT", "7070")
	t.Setenv("TS_POSTGRES_HOST", "db.internal")
	t.Setenv("TS_KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("TS_ENGINE_INLINE_THRESHOLD", "250")
	t.Setenv("TS_SCANNER_MUSIC_DIR", "/mnt/usb")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 7070 {
		t.Errorf("Server.Port = %d, want 7070", cfg.Server.Port)
	}
	if cfg.Postgres.Host != "db.internal" {
		t.Errorf("Postgres.Host = %q", cfg.Postgres.Host)
	}
	if len(cfg.Kafka.Brokers) != 2 || cfg.Kafka.Brokers[1] != "k2:9092" {
		t.Errorf("Kafka.Brokers = %v", cfg.Kafka.Brokers)
	}
	if cfg.Engine.InlineThreshold != 250 {
		t.Errorf("Engine.InlineThreshold = %d, want 250", cfg.Engine.InlineThreshold)
	}
	if cfg.Scanner.MusicDir != "/mnt/usb" {
		t.Errorf("Scanner.MusicDir = %q", cfg.Scanner.MusicDir)
	}
}

func TestEnvOverrideIgnoresInvalidNumbers(t *testing.T) {
	t.Setenv("TS_SERVER_PORT", "not-a-port")
	t.Setenv("TS_ENGINE_INLINE_THRESHOLD", "-5")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want default 8080", cfg.Server.Port)
	}
	if cfg.Engine.InlineThreshold != 4000 {
		t.Errorf("Engine.InlineThreshold = %d, want default 4000", cfg.Engine.InlineThreshold)
	}
}

func TestPostgresDSN(t *testing.T) {
	p := PostgresConfig{
		Host: "localhost", Port: 5432,
		User: "ts", Password: "pw", Database: "tracksearch", SSLMode: "disable",
	}
	want := "host=localhost port=5432 user=ts password=pw dbname=tracksearch sslmode=disable"
	if got := p.DSN(); got != want {
		t.Errorf("DSN = %q, want %q", got, want)
	}
}
