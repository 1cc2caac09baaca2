// Copyright (c) 2025 Kyle Marwood
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/kmarwood/ollamaweb/internal/model"
)

// ============================================================================
// SETTINGS
// ============================================================================

// Defaults seeded on first open. SetSetting overrides stick across
// reopens; seeding only fills missing keys.
var defaultSettings = []model.Setting{
	model.NewSetting(model.SettingTemperature, 0.7),
	model.NewSetting(model.SettingMaxTokens, 1024),
	model.NewSetting(model.SettingSystemPrompt, "You are a helpful AI assistant."),
	model.NewSetting(model.SettingAutoSave, true),
}

func (s *Store) seedDefaults() error {
	for _, def := range defaultSettings {
		_, err := s.db.Exec(
			`INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
			 ON CONFLICT(key) DO NOTHING`,
			def.Key, string(def.Value), def.UpdatedAt.UnixNano())
		if err != nil {
			return fmt.Errorf("seed setting %q: %w", def.Key, err)
		}
	}
	return nil
}

// GetSetting returns the setting for key, or ErrNotFound.
func (s *Store) GetSetting(key string) (model.Setting, error) {
	var (
		value     string
		updatedAt int64
	)
	err := s.db.QueryRow(`SELECT value, updated_at FROM settings WHERE key = ?`, key).
		Scan(&value, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Setting{}, fmt.Errorf("setting %q: %w", key, ErrNotFound)
	}
	if err != nil {
		return model.Setting{}, fmt.Errorf("query setting: %w", err)
	}
	return model.Setting{
		Key:       key,
		Value:     json.RawMessage(value),
		UpdatedAt: time.Unix(0, updatedAt),
	}, nil
}

// SetSetting inserts or replaces the setting, refreshing its
// updated_at. The value must be valid JSON.
func (s *Store) SetSetting(setting model.Setting) error {
	if setting.Key == "" {
		return fmt.Errorf("%w: empty setting key", ErrInvalidInput)
	}
	if !json.Valid(setting.Value) {
		return fmt.Errorf("%w: setting %q value is not valid JSON", ErrInvalidInput, setting.Key)
	}
	_, err := s.db.Exec(
		`INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		setting.Key, string(setting.Value), time.Now().UnixNano())
	if err != nil {
		return fmt.Errorf("set setting: %w", err)
	}
	return nil
}

// ListSettings returns all settings sorted by key.
func (s *Store) ListSettings() ([]model.Setting, error) {
	rows, err := s.db.Query(`SELECT key, value, updated_at FROM settings ORDER BY key ASC`)
	if err != nil {
		return nil, fmt.Errorf("query settings: %w", err)
	}
	defer rows.Close()

	var out []model.Setting
	for rows.Next() {
		var (
			key, value string
			updatedAt  int64
		)
		if err := rows.Scan(&key, &value, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan setting: %w", err)
		}
		out = append(out, model.Setting{
			Key:       key,
			Value:     json.RawMessage(value),
			UpdatedAt: time.Unix(0, updatedAt),
		})
	}
	return out, rows.Err()
}
