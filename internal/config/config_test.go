package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Addr() != "127.0.0.1:8417" {
		t.Errorf("Addr() = %q", cfg.Addr())
	}
	if cfg.DBPath != "paylink.db" {
		t.Errorf("DBPath = %q", cfg.DBPath)
	}
	if cfg.ResolveCallbackURL() != "http://127.0.0.1:8417/auth/callback" {
		t.Errorf("ResolveCallbackURL() = %q", cfg.ResolveCallbackURL())
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "paylink.yaml")
	content := "host: 0.0.0.0\nport: \"9000\"\ndb_path: /tmp/test.db\ncallback_url: https://example.com/auth/callback\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Addr() != "0.0.0.0:9000" {
		t.Errorf("Addr() = %q", cfg.Addr())
	}
	if cfg.DBPath != "/tmp/test.db" {
		t.Errorf("DBPath = %q", cfg.DBPath)
	}
	if cfg.ResolveCallbackURL() != "https://example.com/auth/callback" {
		t.Errorf("ResolveCallbackURL() = %q", cfg.ResolveCallbackURL())
	}
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "paylink.yaml")
	if err := os.WriteFile(path, []byte("port: \"9000\"\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PAYLINK_PORT", "9100")
	t.Setenv("PAYLINK_DB", "/tmp/env.db")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Port != "9100" {
		t.Errorf("Port = %q, want env override", cfg.Port)
	}
	if cfg.DBPath != "/tmp/env.db" {
		t.Errorf("DBPath = %q, want env override", cfg.DBPath)
	}
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "paylink.yaml")
	if err := os.WriteFile(path, []byte("host: [unclosed"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("Load() with malformed yaml should fail")
	}
}
