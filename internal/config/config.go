package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	defaultBackendBaseURL = "http://localhost:8000"
	defaultChatPath       = "/api/v1/chat/stream"
	defaultPollSpec       = "@every 5m"
)

// Config is the storefront client configuration, loaded from config.yaml.
// Connection-ish values can be overridden by environment variables so a
// checked-in config never has to carry per-user endpoints.
type Config struct {
	BackendBaseURL string `yaml:"backend_base_url"`
	ChatPath       string `yaml:"chat_path"`
	UserID         string `yaml:"user_id"`

	RedisURL        string `yaml:"redis_url"`
	SessionTTLHours int    `yaml:"session_ttl_hours"`

	AddressSearchURL string `yaml:"address_search_url"`

	NotifySocketURL string `yaml:"notify_socket_url"`
	NotifyPollSpec  string `yaml:"notify_poll_spec"`

	TrackingEnabled bool `yaml:"tracking_enabled"`

	LogFile string `yaml:"log_file"`
	DataDir string `yaml:"data_dir"`
}

func Load(path string) (Config, error) {
	if strings.TrimSpace(path) == "" {
		path = "config.yaml"
	}
	var cfg Config
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
		}
	case os.IsNotExist(err):
		// Defaults plus environment are enough to run against a local
		// backend.
	default:
		return Config{}, err
	}
	cfg.applyEnv()
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := strings.TrimSpace(os.Getenv("SHOPMATE_BACKEND_URL")); v != "" {
		c.BackendBaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv("SHOPMATE_USER_ID")); v != "" {
		c.UserID = v
	}
	if v := strings.TrimSpace(os.Getenv("SHOPMATE_REDIS_URL")); v != "" {
		c.RedisURL = v
	}
}

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.BackendBaseURL) == "" {
		c.BackendBaseURL = defaultBackendBaseURL
	}
	c.BackendBaseURL = strings.TrimRight(strings.TrimSpace(c.BackendBaseURL), "/")
	if strings.TrimSpace(c.ChatPath) == "" {
		c.ChatPath = defaultChatPath
	}
	if !strings.HasPrefix(c.ChatPath, "/") {
		c.ChatPath = "/" + c.ChatPath
	}
	if strings.TrimSpace(c.NotifyPollSpec) == "" {
		c.NotifyPollSpec = defaultPollSpec
	}
	if c.SessionTTLHours <= 0 {
		c.SessionTTLHours = 72
	}
	if strings.TrimSpace(c.DataDir) == "" {
		if home, err := os.UserHomeDir(); err == nil {
			c.DataDir = filepath.Join(home, ".shopmate")
		} else {
			c.DataDir = ".shopmate"
		}
	}
}

// ChatEndpoint is the full streaming chat URL.
func (c Config) ChatEndpoint() string {
	return c.BackendBaseURL + c.ChatPath
}
