// Copyright 2026 The Nook Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nook.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config fixture: %v", err)
	}
	return path
}

const validConfig = `
homeserver:
  url: https://matrix.example.org
identity:
  user_id: "@panel:example.org"
  password_file: /run/secrets/nook-password
room:
  id: "!abc123:example.org"
`

func TestLoadFile(t *testing.T) {
	config, err := LoadFile(writeConfig(t, validConfig))
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}

	if config.Homeserver.URL != "https://matrix.example.org" {
		t.Errorf("homeserver URL = %q", config.Homeserver.URL)
	}
	if config.Identity.UserID != "@panel:example.org" {
		t.Errorf("user ID = %q", config.Identity.UserID)
	}
	if config.Room.ID != "!abc123:example.org" {
		t.Errorf("room ID = %q", config.Room.ID)
	}
	// Defaults survive a partial file.
	if config.Retry.DefaultBackoffMS != DefaultRetryBackoffMS {
		t.Errorf("default backoff = %d, want %d", config.Retry.DefaultBackoffMS, DefaultRetryBackoffMS)
	}
	if config.Log.Level != "info" {
		t.Errorf("log level = %q, want info", config.Log.Level)
	}
}

func TestLoadFileRejectsUnknownFields(t *testing.T) {
	_, err := LoadFile(writeConfig(t, validConfig+"\nsurprise: true\n"))
	if err == nil {
		t.Fatal("expected error for unknown top-level field")
	}
}

func TestValidation(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"missing homeserver", func(c *Config) { c.Homeserver.URL = "" }, "homeserver.url"},
		{"missing user", func(c *Config) { c.Identity.UserID = "" }, "identity.user_id"},
		{"malformed user", func(c *Config) { c.Identity.UserID = "panel" }, "identity.user_id"},
		{"missing room", func(c *Config) { c.Room.ID = "" }, "room.id"},
		{"malformed room", func(c *Config) { c.Room.ID = "general" }, "room.id"},
		{"negative backoff", func(c *Config) { c.Retry.DefaultBackoffMS = -1 }, "default_backoff_ms"},
		{"bad log level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			config := Default()
			config.Identity.UserID = "@panel:example.org"
			config.Room.ID = "!abc123:example.org"
			tc.mutate(config)

			err := config.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("error %q does not mention %q", err, tc.wantErr)
			}
		})
	}
}

func TestExpansion(t *testing.T) {
	t.Setenv("NOOK_TEST_SECRETS", "/tmp/secrets")
	config, err := LoadFile(writeConfig(t, `
homeserver:
  url: https://matrix.example.org
identity:
  user_id: "@panel:example.org"
  password_file: ${NOOK_TEST_SECRETS}/password
room:
  id: "!abc123:example.org"
log:
  output: ${NOOK_TEST_MISSING:-/var/log}/nook.log
`))
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if config.Identity.PasswordFile != "/tmp/secrets/password" {
		t.Errorf("password file = %q", config.Identity.PasswordFile)
	}
	if config.Log.Output != "/var/log/nook.log" {
		t.Errorf("log output = %q (default fallback not applied)", config.Log.Output)
	}
}

func TestLoadRequiresEnvVar(t *testing.T) {
	t.Setenv(EnvVar, "")
	if _, err := Load(); err == nil {
		t.Fatal("expected error when NOOK_CONFIG is unset")
	}
}
