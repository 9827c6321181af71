package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTempConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeTempConfig(t, "user_id: \"7\"\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.UserID != "7" {
		t.Fatalf("user_id = %q", cfg.UserID)
	}
	if cfg.ChatEndpoint() != "http://localhost:8000/api/v1/chat/stream" {
		t.Fatalf("chat endpoint = %q", cfg.ChatEndpoint())
	}
	if cfg.NotifyPollSpec != "@every 5m" {
		t.Fatalf("poll spec = %q", cfg.NotifyPollSpec)
	}
	if cfg.SessionTTLHours != 72 {
		t.Fatalf("session ttl = %d", cfg.SessionTTLHours)
	}
}

func TestLoadNormalizesURLs(t *testing.T) {
	path := writeTempConfig(t, "backend_base_url: https://shop.example.com/\nchat_path: api/chat\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ChatEndpoint() != "https://shop.example.com/api/chat" {
		t.Fatalf("chat endpoint = %q", cfg.ChatEndpoint())
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	path := writeTempConfig(t, "backend_base_url: http://file-wins.example\nuser_id: \"1\"\n")
	t.Setenv("SHOPMATE_BACKEND_URL", "http://env-wins.example")
	t.Setenv("SHOPMATE_USER_ID", "42")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.BackendBaseURL != "http://env-wins.example" {
		t.Fatalf("backend url = %q", cfg.BackendBaseURL)
	}
	if cfg.UserID != "42" {
		t.Fatalf("user_id = %q", cfg.UserID)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("missing config must not fail: %v", err)
	}
	if cfg.BackendBaseURL != "http://localhost:8000" {
		t.Fatalf("backend url = %q", cfg.BackendBaseURL)
	}
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := writeTempConfig(t, "backend_base_url: [unclosed\n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected a parse error")
	}
}
