package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadWritesAndReadsDefaultConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	cfg, gotPath, err := Load(nil, path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if gotPath != path {
		t.Fatalf("expected path %q, got %q", path, gotPath)
	}
	if cfg.Addr != ":8080" {
		t.Fatalf("expected default addr, got %q", cfg.Addr)
	}

	// The default config file was written out for editing.
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected config file to exist: %v", err)
	}
}

func TestLoadReadsExplicitConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := []byte("addr: \":9090\"\nlog_level: debug\njwt_ttl: 1h\n")
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, err := Load(nil, path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Addr != ":9090" {
		t.Fatalf("expected addr from file, got %q", cfg.Addr)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("expected log level from file, got %q", cfg.LogLevel)
	}
	if cfg.JWTTTL != time.Hour {
		t.Fatalf("expected jwt ttl from file, got %v", cfg.JWTTTL)
	}
	// Untouched keys keep their defaults.
	if cfg.DatabasePath != "chatterbox.db" {
		t.Fatalf("expected default database path, got %q", cfg.DatabasePath)
	}
}

func TestUpdateFromSkipsZeroValues(t *testing.T) {
	cfg := Default()
	cfg.UpdateFrom(Config{Addr: ":7070"})

	if cfg.Addr != ":7070" {
		t.Fatalf("expected override applied, got %q", cfg.Addr)
	}
	if cfg.ShutdownTimeout != 5*time.Second {
		t.Fatalf("zero override clobbered shutdown timeout: %v", cfg.ShutdownTimeout)
	}
}
