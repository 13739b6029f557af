// Copyright 2026 The Recall Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides configuration loading for Recall.
//
// Configuration is loaded from a single file specified by:
//   - RECALL_CONFIG environment variable, or
//   - --config flag passed to the command
//
// There are no fallbacks or automatic discovery. This ensures deterministic,
// auditable configuration with no hidden overrides. The only expansion
// performed is ${VAR} and ${VAR:-default} substitution, so tokens can live
// in the environment rather than on disk.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the master configuration for Recall.
type Config struct {
	// Server configures the connection to the Recall server.
	Server ServerConfig `yaml:"server"`

	// Paths configures local file locations.
	Paths PathsConfig `yaml:"paths"`

	// UI configures the terminal interface.
	UI UIConfig `yaml:"ui"`

	// Log configures background logging.
	Log LogConfig `yaml:"log"`
}

// ServerConfig configures the connection to the Recall server.
type ServerConfig struct {
	// URL is the server base URL, e.g. https://notes.example.com.
	URL string `yaml:"url"`

	// AccessToken is sent as a bearer token on every request.
	// Usually written as ${RECALL_TOKEN} so the secret stays out of
	// the file.
	AccessToken string `yaml:"access_token"`

	// Model names a specific model for assistant turns. Empty uses the
	// server's configured default.
	Model string `yaml:"model"`

	// RequestTimeout bounds non-streaming API calls.
	// Default: 15s. Streaming turns are unbounded (cancel to stop).
	RequestTimeout string `yaml:"request_timeout"`
}

// PathsConfig configures local file locations.
type PathsConfig struct {
	// Root is the base directory for Recall data.
	// Default: ~/.cache/recall
	Root string `yaml:"root"`

	// Database is the local SQLite database holding drafts and the
	// offline transcript cache.
	// Default: ${RECALL_ROOT}/recall.db
	Database string `yaml:"database"`
}

// UIConfig configures the terminal interface.
type UIConfig struct {
	// ShowThinking renders the assistant's reasoning blocks.
	// Default: true.
	ShowThinking bool `yaml:"show_thinking"`

	// CompactTimestamps shortens session timestamps in the picker.
	CompactTimestamps bool `yaml:"compact_timestamps"`
}

// LogConfig configures background logging.
type LogConfig struct {
	// File receives JSONL log records. Empty disables file logging;
	// in TUI mode records still reach the on-screen log line.
	File string `yaml:"file"`

	// Level is the minimum level: debug, info, warn, error.
	// Default: info.
	Level string `yaml:"level"`
}

// Default returns the default configuration. These defaults ensure all
// fields have sensible zero-values before the config file is merged in;
// only server.url has no usable default.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	defaultRoot := filepath.Join(homeDir, ".cache", "recall")

	return &Config{
		Server: ServerConfig{
			RequestTimeout: "15s",
		},
		Paths: PathsConfig{
			Root:     defaultRoot,
			Database: filepath.Join(defaultRoot, "recall.db"),
		},
		UI: UIConfig{
			ShowThinking: true,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from the RECALL_CONFIG environment variable.
// There are no fallbacks: if RECALL_CONFIG is not set, this fails.
func Load() (*Config, error) {
	configPath := os.Getenv("RECALL_CONFIG")
	if configPath == "" {
		return nil, fmt.Errorf("RECALL_CONFIG environment variable not set; " +
			"set it to the path of your recall.yaml config file, or use --config flag")
	}
	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path, merging it
// over [Default] and expanding ${VAR} patterns.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	cfg.expandVariables()
	return cfg, nil
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"RECALL_ROOT": c.Paths.Root,
		"HOME":        os.Getenv("HOME"),
	}

	c.Paths.Root = expandVars(c.Paths.Root, vars)
	vars["RECALL_ROOT"] = c.Paths.Root // Update for dependent paths.

	c.Paths.Database = expandVars(c.Paths.Database, vars)
	c.Server.URL = expandVars(c.Server.URL, vars)
	c.Server.AccessToken = expandVars(c.Server.AccessToken, vars)
	c.Log.File = expandVars(c.Log.File, vars)
}

// expandVars expands ${VAR} and ${VAR:-default} patterns.
var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		// Check provided vars first, then environment.
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.URL == "" {
		errs = append(errs, fmt.Errorf("server.url is required"))
	} else if parsed, err := url.Parse(c.Server.URL); err != nil || parsed.Scheme == "" || parsed.Host == "" {
		errs = append(errs, fmt.Errorf("server.url is not a valid URL: %s", c.Server.URL))
	}

	if c.Server.RequestTimeout != "" {
		if _, err := time.ParseDuration(c.Server.RequestTimeout); err != nil {
			errs = append(errs, fmt.Errorf("server.request_timeout is not a duration: %s", c.Server.RequestTimeout))
		}
	}

	if c.Paths.Root == "" {
		errs = append(errs, fmt.Errorf("paths.root is required"))
	}
	if c.Paths.Database == "" {
		errs = append(errs, fmt.Errorf("paths.database is required"))
	}

	validLevels := []string{"debug", "info", "warn", "error"}
	if !contains(validLevels, c.Log.Level) {
		errs = append(errs, fmt.Errorf("log.level must be one of: %v", validLevels))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// RequestTimeout returns the parsed non-streaming request bound. Call
// after [Config.Validate]; an unparseable value falls back to zero,
// meaning no bound.
func (c *Config) RequestTimeout() time.Duration {
	if c.Server.RequestTimeout == "" {
		return 0
	}
	timeout, err := time.ParseDuration(c.Server.RequestTimeout)
	if err != nil {
		return 0
	}
	return timeout
}

// ParsedLevel returns the minimum slog level. Call after
// [Config.Validate]; an unrecognized value falls back to info.
func (l LogConfig) ParsedLevel() slog.Level {
	switch l.Level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func contains(values []string, value string) bool {
	for _, candidate := range values {
		if candidate == value {
			return true
		}
	}
	return false
}
