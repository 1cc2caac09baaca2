// Copyright (c) 2025 Kyle Marwood
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func TestDefaultValues(t *testing.T) {
	cfg := Default()

	if cfg.Server.Port != 8787 {
		t.Errorf("expected default port 8787, got %d", cfg.Server.Port)
	}
	if cfg.Backend.URL != "http://127.0.0.1:11434" {
		t.Errorf("unexpected backend URL: %s", cfg.Backend.URL)
	}
	if cfg.Backend.DefaultModel != "llama3.2" {
		t.Errorf("unexpected default model: %s", cfg.Backend.DefaultModel)
	}
	if cfg.Backend.IdleReadTimeoutSecs != 90 {
		t.Errorf("unexpected idle read timeout: %d", cfg.Backend.IdleReadTimeoutSecs)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"bad port", func(c *Config) { c.Server.Port = 0 }, "server.port"},
		{"port too high", func(c *Config) { c.Server.Port = 70000 }, "server.port"},
		{"empty url", func(c *Config) { c.Backend.URL = "" }, "backend.url"},
		{"relative url", func(c *Config) { c.Backend.URL = "not-a-url" }, "backend.url"},
		{"empty model", func(c *Config) { c.Backend.DefaultModel = "" }, "backend.default_model"},
		{"zero timeout", func(c *Config) { c.Backend.TimeoutSecs = 0 }, "backend.timeout_secs"},
		{"bad theme", func(c *Config) { c.UI.Theme = "solarized" }, "ui.theme"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.field) {
				t.Errorf("expected error naming %s, got: %v", tt.field, err)
			}
		})
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	cfg := Default()
	cfg.Server.Port = 9090
	cfg.Backend.DefaultModel = "mistral"
	cfg.UI.Theme = "light"

	if err := SaveTOML(cfg, path); err != nil {
		t.Fatalf("SaveTOML failed: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat failed: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("expected 0600 permissions, got %o", perm)
	}

	loaded, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath failed: %v", err)
	}
	if loaded.Server.Port != 9090 {
		t.Errorf("expected port 9090, got %d", loaded.Server.Port)
	}
	if loaded.Backend.DefaultModel != "mistral" {
		t.Errorf("expected model mistral, got %s", loaded.Backend.DefaultModel)
	}
	if loaded.UI.Theme != "light" {
		t.Errorf("expected theme light, got %s", loaded.UI.Theme)
	}
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	partial := "[server]\nport = 9999\n"
	if err := os.WriteFile(path, []byte(partial), 0600); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath failed: %v", err)
	}
	if cfg.Server.Port != 9999 {
		t.Errorf("expected port 9999, got %d", cfg.Server.Port)
	}
	// Untouched sections keep their defaults.
	if cfg.Backend.URL != "http://127.0.0.1:11434" {
		t.Errorf("expected default backend URL, got %s", cfg.Backend.URL)
	}
}

func TestLoadRejectsInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	bad := "[server]\nport = -1\n"
	if err := os.WriteFile(path, []byte(bad), 0600); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	if _, err := LoadFromPath(path); err == nil {
		t.Fatal("expected validation error for negative port")
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("OLLAMAWEB_PORT", "7000")
	t.Setenv("OLLAMAWEB_OLLAMA_URL", "http://192.168.1.10:11434")
	t.Setenv("OLLAMAWEB_MODEL", "codellama")

	cfg := Default()
	cfg.ApplyEnvOverrides()

	if cfg.Server.Port != 7000 {
		t.Errorf("expected port 7000, got %d", cfg.Server.Port)
	}
	if cfg.Backend.URL != "http://192.168.1.10:11434" {
		t.Errorf("unexpected backend URL: %s", cfg.Backend.URL)
	}
	if cfg.Backend.DefaultModel != "codellama" {
		t.Errorf("unexpected model: %s", cfg.Backend.DefaultModel)
	}
}

func TestWatcherReloadsOnChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := SaveTOML(Default(), path); err != nil {
		t.Fatalf("SaveTOML failed: %v", err)
	}

	var gotPort atomic.Int64
	reloaded := make(chan struct{}, 1)

	w, err := NewWatcher(path, func(cfg *Config) {
		gotPort.Store(int64(cfg.Server.Port))
		select {
		case reloaded <- struct{}{}:
		default:
		}
	})
	if err != nil {
		t.Fatalf("NewWatcher failed: %v", err)
	}
	w.debounce = 50 * time.Millisecond
	defer w.Close()

	if err := w.Watch(); err != nil {
		t.Fatalf("Watch failed: %v", err)
	}

	updated := Default()
	updated.Server.Port = 9191
	if err := SaveTOML(updated, path); err != nil {
		t.Fatalf("SaveTOML failed: %v", err)
	}

	select {
	case <-reloaded:
		if gotPort.Load() != 9191 {
			t.Errorf("expected reloaded port 9191, got %d", gotPort.Load())
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for config reload")
	}
}

func TestWatcherIgnoresBadEdit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := SaveTOML(Default(), path); err != nil {
		t.Fatalf("SaveTOML failed: %v", err)
	}

	var calls atomic.Int64
	w, err := NewWatcher(path, func(*Config) { calls.Add(1) })
	if err != nil {
		t.Fatalf("NewWatcher failed: %v", err)
	}
	w.debounce = 50 * time.Millisecond
	defer w.Close()

	if err := w.Watch(); err != nil {
		t.Fatalf("Watch failed: %v", err)
	}

	if err := os.WriteFile(path, []byte("port = ["), 0600); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	time.Sleep(500 * time.Millisecond)
	if calls.Load() != 0 {
		t.Errorf("expected no reload callback on invalid config, got %d", calls.Load())
	}
}
