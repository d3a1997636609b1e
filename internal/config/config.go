// Package config loads daemon configuration from an optional YAML file with
// environment overrides.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the daemon's runtime configuration.
type Config struct {
	Host   string `yaml:"host"`
	Port   string `yaml:"port"`
	DBPath string `yaml:"db_path"`
	// CallbackURL is the redirect target registered with the providers;
	// when empty it is derived from host and port.
	CallbackURL string `yaml:"callback_url"`
}

// Load reads the config file at path if it exists, then applies environment
// overrides and defaults. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// defaults only
		case err != nil:
			return nil, fmt.Errorf("read config file: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config file: %w", err)
			}
		}
	}

	if v := os.Getenv("PAYLINK_HOST"); v != "" {
		cfg.Host = v
	}
	if v := os.Getenv("PAYLINK_PORT"); v != "" {
		cfg.Port = v
	}
	if v := os.Getenv("PAYLINK_DB"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("PAYLINK_CALLBACK_URL"); v != "" {
		cfg.CallbackURL = v
	}

	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == "" {
		cfg.Port = "8417"
	}
	if cfg.DBPath == "" {
		cfg.DBPath = "paylink.db"
	}
	return cfg, nil
}

// Addr is the listen address.
func (c *Config) Addr() string {
	return c.Host + ":" + c.Port
}

// ResolveCallbackURL is the OAuth redirect target the daemon serves.
func (c *Config) ResolveCallbackURL() string {
	if c.CallbackURL != "" {
		return c.CallbackURL
	}
	return fmt.Sprintf("http://%s/auth/callback", c.Addr())
}
