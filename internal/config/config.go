// Copyright (c) 2025 Kyle Marwood
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config handles ollamaweb configuration loading and persistence.
//
// Configuration lives at ~/.ollamaweb/config.toml. Defaults are applied
// first, the file (if present) is layered on top, and environment
// variables override both.
package config

import (
	"bytes"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/kmarwood/ollamaweb/internal/util"
)

// =============================================================================
// CONFIG STRUCTURE
// =============================================================================

// Config is the top-level ollamaweb configuration.
type Config struct {
	// Version is the config schema version.
	Version string `toml:"version" json:"version"`

	// Server configures the HTTP server.
	Server ServerConfig `toml:"server" json:"server"`

	// Backend configures the Ollama backend connection.
	Backend BackendConfig `toml:"backend" json:"backend"`

	// Storage configures local persistence.
	Storage StorageConfig `toml:"storage" json:"storage"`

	// UI configures terminal client appearance.
	UI UIConfig `toml:"ui" json:"ui"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	// Port is the TCP port the server listens on.
	Port int `toml:"port" json:"port"`
}

// BackendConfig contains Ollama backend settings.
type BackendConfig struct {
	// URL is the base URL of the Ollama server.
	URL string `toml:"url" json:"url"`

	// DefaultModel is used when a request does not name a model.
	DefaultModel string `toml:"default_model" json:"default_model"`

	// TimeoutSecs bounds non-streaming backend requests.
	TimeoutSecs int `toml:"timeout_secs" json:"timeout_secs"`

	// IdleReadTimeoutSecs aborts a stream when no bytes arrive for this long.
	IdleReadTimeoutSecs int `toml:"idle_read_timeout_secs" json:"idle_read_timeout_secs"`
}

// StorageConfig contains persistence settings.
type StorageConfig struct {
	// DatabasePath is the sqlite database file. Empty means
	// ~/.ollamaweb/ollamaweb.db.
	DatabasePath string `toml:"database_path" json:"database_path"`
}

// UIConfig contains terminal client settings.
type UIConfig struct {
	// Theme selects the color theme (dark, light, auto).
	Theme string `toml:"theme" json:"theme"`

	// ShowTokens displays token counts after each response.
	ShowTokens bool `toml:"show_tokens" json:"show_tokens"`

	// CompactMode reduces vertical padding in the chat view.
	CompactMode bool `toml:"compact_mode" json:"compact_mode"`
}

// =============================================================================
// DEFAULT CONFIGURATION
// =============================================================================

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Version: "1.0.0",

		Server: ServerConfig{
			Port: 8787,
		},

		Backend: BackendConfig{
			URL:                 "http://127.0.0.1:11434",
			DefaultModel:        "llama3.2",
			TimeoutSecs:         30,
			IdleReadTimeoutSecs: 90,
		},

		Storage: StorageConfig{
			DatabasePath: "",
		},

		UI: UIConfig{
			Theme:       "dark",
			ShowTokens:  true,
			CompactMode: false,
		},
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the ollamaweb configuration directory path.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".ollamaweb"), nil
}

// ConfigPath returns the path to the TOML config file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// DatabasePath resolves the sqlite database path, falling back to the
// default location under the config directory.
func (c *Config) DatabasePath() (string, error) {
	if c.Storage.DatabasePath != "" {
		return c.Storage.DatabasePath, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "ollamaweb.db"), nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load loads configuration from ~/.ollamaweb/config.toml.
// Missing files are not an error: defaults plus environment overrides
// are returned instead.
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}
	if _, statErr := os.Stat(path); statErr != nil {
		cfg := Default()
		cfg.ApplyEnvOverrides()
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("invalid config: %w", err)
		}
		return cfg, nil
	}
	return LoadFromPath(path)
}

// LoadFromPath loads configuration from a specific TOML file with full
// validation.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	cfg.ApplyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// ApplyEnvOverrides applies environment variable overrides.
func (c *Config) ApplyEnvOverrides() {
	// OLLAMAWEB_PORT
	if port := os.Getenv("OLLAMAWEB_PORT"); port != "" {
		if n, err := strconv.Atoi(port); err == nil {
			c.Server.Port = n
		}
	}

	// OLLAMAWEB_OLLAMA_URL
	if u := os.Getenv("OLLAMAWEB_OLLAMA_URL"); u != "" {
		c.Backend.URL = u
	}

	// OLLAMAWEB_MODEL
	if model := os.Getenv("OLLAMAWEB_MODEL"); model != "" {
		c.Backend.DefaultModel = model
	}

	// OLLAMAWEB_DB
	if db := os.Getenv("OLLAMAWEB_DB"); db != "" {
		c.Storage.DatabasePath = db
	}

	// OLLAMAWEB_THEME
	if theme := os.Getenv("OLLAMAWEB_THEME"); theme != "" {
		c.UI.Theme = theme
	}
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save writes the configuration to the default TOML file.
// The write is atomic and the file is created with 0600 permissions.
func Save(cfg *Config) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

// SaveTOML writes the configuration to a TOML file at path.
func SaveTOML(cfg *Config, path string) error {
	var buf bytes.Buffer
	fmt.Fprintln(&buf, "# ollamaweb configuration file")
	fmt.Fprintln(&buf, "# Generated by ollamaweb - edit with care")
	fmt.Fprintln(&buf, "")

	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if err := util.AtomicWriteFileMkdir(path, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	var errs ValidateErrors

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, ValidationError{
			Field:   "server.port",
			Message: fmt.Sprintf("must be between 1 and 65535, got %d", c.Server.Port),
		})
	}

	if c.Backend.URL == "" {
		errs = append(errs, ValidationError{
			Field:   "backend.url",
			Message: "cannot be empty",
		})
	} else if u, err := url.Parse(c.Backend.URL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, ValidationError{
			Field:   "backend.url",
			Message: fmt.Sprintf("invalid URL '%s'", c.Backend.URL),
		})
	}

	if c.Backend.DefaultModel == "" {
		errs = append(errs, ValidationError{
			Field:   "backend.default_model",
			Message: "cannot be empty",
		})
	}

	if c.Backend.TimeoutSecs <= 0 {
		errs = append(errs, ValidationError{
			Field:   "backend.timeout_secs",
			Message: "must be positive",
		})
	}

	if c.Backend.IdleReadTimeoutSecs <= 0 {
		errs = append(errs, ValidationError{
			Field:   "backend.idle_read_timeout_secs",
			Message: "must be positive",
		})
	}

	validThemes := map[string]bool{"dark": true, "light": true, "auto": true}
	if !validThemes[strings.ToLower(c.UI.Theme)] {
		errs = append(errs, ValidationError{
			Field:   "ui.theme",
			Message: fmt.Sprintf("invalid theme '%s', must be one of: dark, light, auto", c.UI.Theme),
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}
