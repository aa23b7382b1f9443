// Copyright 2026 The Nook Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads nook's YAML configuration.
//
// Configuration comes from a single file named by either the
// NOOK_CONFIG environment variable (via [Load]) or a --config flag
// (via [LoadFile]). There are no fallbacks and no automatic file
// discovery, so the effective configuration is always auditable from
// the command line or environment alone.
//
// ${VAR} and ${VAR:-default} patterns in path fields are expanded
// after loading. No other environment variables override config
// values.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/nook-im/nook/lib/ref"
)

// EnvVar names the environment variable that points at the config
// file for [Load].
const EnvVar = "NOOK_CONFIG"

// DefaultRetryBackoffMS is the connect retry delay used when a
// rate-limited homeserver does not supply a retry_after_ms hint.
const DefaultRetryBackoffMS = 5000

// Config is the full nook configuration.
type Config struct {
	// Homeserver is the Matrix server to connect to.
	Homeserver HomeserverConfig `yaml:"homeserver"`

	// Identity is the account nook logs in as.
	Identity IdentityConfig `yaml:"identity"`

	// Room is the single room the panel is bound to.
	Room RoomConfig `yaml:"room"`

	// Retry tunes the connect retry controller.
	Retry RetryConfig `yaml:"retry"`

	// Log configures structured log output.
	Log LogConfig `yaml:"log"`
}

// HomeserverConfig identifies the Matrix homeserver.
type HomeserverConfig struct {
	// URL is the base URL (e.g., "https://matrix.example.org").
	URL string `yaml:"url"`
}

// IdentityConfig holds the login identity. The password itself never
// appears in the config file — only a path to it.
type IdentityConfig struct {
	// UserID is the full Matrix user ID (e.g., "@panel:example.org").
	UserID string `yaml:"user_id"`

	// PasswordFile is a path to a file containing the password, or
	// "-" to read one line from stdin. Empty means prompt
	// interactively.
	PasswordFile string `yaml:"password_file,omitempty"`
}

// RoomConfig binds the panel to its one room.
type RoomConfig struct {
	// ID is the Matrix room ID (e.g., "!abc123:example.org").
	ID string `yaml:"id"`
}

// RetryConfig tunes connect retry behavior.
type RetryConfig struct {
	// DefaultBackoffMS is the delay before retrying a rate-limited
	// connect when the server sends no retry_after_ms hint.
	// Zero means DefaultRetryBackoffMS.
	DefaultBackoffMS int `yaml:"default_backoff_ms,omitempty"`
}

// LogConfig configures slog output.
type LogConfig struct {
	// Output is a file path for JSON log records. Empty discards
	// logs (the TUI owns the terminal, so stderr is not usable
	// while the panel runs).
	Output string `yaml:"output,omitempty"`

	// Level is "debug", "info", "warn", or "error". Empty means
	// "info".
	Level string `yaml:"level,omitempty"`
}

// Default returns a Config with development defaults: a localhost
// homeserver and the standard retry backoff. Identity and room must
// still be filled in.
func Default() *Config {
	return &Config{
		Homeserver: HomeserverConfig{URL: "http://localhost:8008"},
		Retry:      RetryConfig{DefaultBackoffMS: DefaultRetryBackoffMS},
		Log:        LogConfig{Level: "info"},
	}
}

// Load reads the config file named by the NOOK_CONFIG environment
// variable.
func Load() (*Config, error) {
	path := os.Getenv(EnvVar)
	if path == "" {
		return nil, fmt.Errorf("config: %s is not set", EnvVar)
	}
	return LoadFile(path)
}

// LoadFile reads and validates a config file.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	config := Default()
	decoder := yaml.NewDecoder(strings.NewReader(string(data)))
	decoder.KnownFields(true)
	if err := decoder.Decode(config); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	config.expand()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return config, nil
}

// expand performs ${VAR} and ${VAR:-default} expansion on path
// fields.
func (c *Config) expand() {
	c.Identity.PasswordFile = expandVars(c.Identity.PasswordFile)
	c.Log.Output = expandVars(c.Log.Output)
}

func expandVars(value string) string {
	return os.Expand(value, func(name string) string {
		if variable, fallback, ok := strings.Cut(name, ":-"); ok {
			if v := os.Getenv(variable); v != "" {
				return v
			}
			return fallback
		}
		return os.Getenv(name)
	})
}

// Validate checks that the required fields are present and
// structurally valid.
func (c *Config) Validate() error {
	if c.Homeserver.URL == "" {
		return fmt.Errorf("homeserver.url is required")
	}
	if c.Identity.UserID == "" {
		return fmt.Errorf("identity.user_id is required")
	}
	if _, err := ref.ParseUserID(c.Identity.UserID); err != nil {
		return fmt.Errorf("identity.user_id: %w", err)
	}
	if c.Room.ID == "" {
		return fmt.Errorf("room.id is required")
	}
	if _, err := ref.ParseRoomID(c.Room.ID); err != nil {
		return fmt.Errorf("room.id: %w", err)
	}
	if c.Retry.DefaultBackoffMS < 0 {
		return fmt.Errorf("retry.default_backoff_ms must not be negative")
	}
	switch c.Log.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level %q is not one of debug, info, warn, error", c.Log.Level)
	}
	return nil
}
