// Copyright 2026 The Michel Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides configuration loading for the Michel bridge.
//
// Configuration is loaded from a single YAML file specified by:
//   - MICHEL_CONFIG environment variable, or
//   - --config flag passed to the command
//
// There are no fallbacks or automatic discovery. This ensures
// deterministic, auditable configuration with no hidden overrides.
// Secrets (the Matrix password, the Seerr API key, the webhook auth
// token) are never stored in the config file itself; the file holds
// paths to files containing them, loaded into locked memory at startup.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/oknozor/michel-bot/lib/ref"
)

// Config is the master configuration for the bridge.
type Config struct {
	// Matrix configures the homeserver connection and the support room.
	Matrix MatrixConfig `yaml:"matrix"`

	// Webhook configures the HTTP listener for Seerr notifications.
	Webhook WebhookConfig `yaml:"webhook"`

	// Seerr configures the ticket service API client.
	Seerr SeerrConfig `yaml:"seerr"`

	// Database configures persistent issue state.
	Database DatabaseConfig `yaml:"database"`

	// Ops configures the local operations socket.
	Ops OpsConfig `yaml:"ops"`

	// Log configures structured logging.
	Log LogConfig `yaml:"log"`
}

// MatrixConfig configures the homeserver connection.
type MatrixConfig struct {
	// HomeserverURL is the base URL of the Matrix homeserver
	// (e.g., https://matrix.example.org). Required.
	HomeserverURL string `yaml:"homeserver_url"`

	// Username is the localpart or full user ID the bridge logs in as.
	// Required.
	Username string `yaml:"username"`

	// PasswordFile is the path to a file containing the account
	// password. "-" reads the password from stdin. Required.
	PasswordFile string `yaml:"password_file"`

	// RoomAlias is the alias of the support room the bridge posts to
	// (e.g., #support:example.org). Required.
	RoomAlias string `yaml:"room_alias"`

	// AdminUsers lists the Matrix user IDs allowed to issue thread
	// commands. Messages from anyone else are ignored.
	AdminUsers []string `yaml:"admin_users"`
}

// WebhookConfig configures the inbound webhook listener.
type WebhookConfig struct {
	// ListenAddress is the TCP address the webhook server binds
	// (e.g., ":8383"). Default: 127.0.0.1:8383.
	ListenAddress string `yaml:"listen_address"`

	// AuthTokenFile is the path to a file containing the shared token
	// Seerr sends in the Authorization header. Empty disables webhook
	// authentication (only safe behind a trusted reverse proxy).
	AuthTokenFile string `yaml:"auth_token_file"`
}

// SeerrConfig configures the ticket service client.
type SeerrConfig struct {
	// BaseURL is the base URL of the Seerr instance
	// (e.g., https://seerr.example.org). Required.
	BaseURL string `yaml:"base_url"`

	// APIKeyFile is the path to a file containing the Seerr API key.
	// "-" reads the key from stdin. Required.
	APIKeyFile string `yaml:"api_key_file"`
}

// DatabaseConfig configures persistent issue state.
type DatabaseConfig struct {
	// Path is the SQLite database file.
	// Default: ${HOME}/.local/state/michel/issues.db
	Path string `yaml:"path"`
}

// OpsConfig configures the local operations socket.
type OpsConfig struct {
	// SocketPath is the Unix socket path for operational queries.
	// Default: /run/michel/ops.sock
	SocketPath string `yaml:"socket_path"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	// Level is the minimum log level: debug, info, warn, error.
	// Default: info.
	Level string `yaml:"level"`
}

// Default returns the default configuration. These defaults are a base
// before loading the config file, not a fallback - the config file is
// required.
func Default() *Config {
	return &Config{
		Webhook: WebhookConfig{
			ListenAddress: "127.0.0.1:8383",
		},
		Database: DatabaseConfig{
			Path: "${HOME}/.local/state/michel/issues.db",
		},
		Ops: OpsConfig{
			SocketPath: "/run/michel/ops.sock",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from the MICHEL_CONFIG environment variable.
// There are no fallbacks - if MICHEL_CONFIG is not set, this fails.
func Load() (*Config, error) {
	configPath := os.Getenv("MICHEL_CONFIG")
	if configPath == "" {
		return nil, fmt.Errorf("MICHEL_CONFIG environment variable not set; " +
			"set it to the path of your michel.yaml config file, or use --config flag")
	}
	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path. The config
// file is the single source of truth; environment variables do not
// override config values. The only expansion performed is ${HOME} in
// the database path for portability.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	cfg.Database.Path = os.Expand(cfg.Database.Path, func(name string) string {
		if name == "HOME" {
			return os.Getenv("HOME")
		}
		return ""
	})

	return cfg, nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Matrix.HomeserverURL == "" {
		errs = append(errs, fmt.Errorf("matrix.homeserver_url is required"))
	} else if _, err := url.Parse(c.Matrix.HomeserverURL); err != nil {
		errs = append(errs, fmt.Errorf("matrix.homeserver_url: %w", err))
	}
	if c.Matrix.Username == "" {
		errs = append(errs, fmt.Errorf("matrix.username is required"))
	}
	if c.Matrix.PasswordFile == "" {
		errs = append(errs, fmt.Errorf("matrix.password_file is required"))
	}
	if c.Matrix.RoomAlias == "" {
		errs = append(errs, fmt.Errorf("matrix.room_alias is required"))
	} else if _, err := ref.ParseRoomAlias(c.Matrix.RoomAlias); err != nil {
		errs = append(errs, fmt.Errorf("matrix.room_alias: %w", err))
	}
	for _, raw := range c.Matrix.AdminUsers {
		if _, err := ref.ParseUserID(raw); err != nil {
			errs = append(errs, fmt.Errorf("matrix.admin_users: %w", err))
		}
	}
	if len(c.Matrix.AdminUsers) == 0 {
		errs = append(errs, fmt.Errorf("matrix.admin_users must list at least one user"))
	}

	if c.Webhook.ListenAddress == "" {
		errs = append(errs, fmt.Errorf("webhook.listen_address is required"))
	}

	if c.Seerr.BaseURL == "" {
		errs = append(errs, fmt.Errorf("seerr.base_url is required"))
	} else if _, err := url.Parse(c.Seerr.BaseURL); err != nil {
		errs = append(errs, fmt.Errorf("seerr.base_url: %w", err))
	}
	if c.Seerr.APIKeyFile == "" {
		errs = append(errs, fmt.Errorf("seerr.api_key_file is required"))
	}

	if c.Database.Path == "" {
		errs = append(errs, fmt.Errorf("database.path is required"))
	}
	if c.Ops.SocketPath == "" {
		errs = append(errs, fmt.Errorf("ops.socket_path is required"))
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level must be one of: debug, info, warn, error"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// AdminSet returns the admin user list as a lookup set. Call Validate
// first; unparseable entries are skipped here.
func (c *Config) AdminSet() map[ref.UserID]struct{} {
	admins := make(map[ref.UserID]struct{}, len(c.Matrix.AdminUsers))
	for _, raw := range c.Matrix.AdminUsers {
		userID, err := ref.ParseUserID(raw)
		if err != nil {
			continue
		}
		admins[userID] = struct{}{}
	}
	return admins
}
