// Copyright (c) 2025 Kyle Marwood
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"encoding/json"
	"time"
)

// ============================================================================
// SETTINGS
// ============================================================================

// Well-known setting keys. The store seeds defaults for these on first
// open; clients may add further keys freely.
const (
	SettingTemperature  = "temperature"
	SettingMaxTokens    = "max_tokens"
	SettingSystemPrompt = "system_prompt"
	SettingAutoSave     = "auto_save"
)

// Setting is a single key/value preference. Value holds arbitrary JSON
// so numbers, booleans, and strings all round-trip unchanged. The key
// is the identity; UpdatedAt tracks the last write.
type Setting struct {
	Key       string          `json:"key"`
	Value     json.RawMessage `json:"value"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// NewSetting marshals v into a Setting for key. Marshal errors are
// impossible for the plain scalar types settings hold, so they panic.
func NewSetting(key string, v any) Setting {
	raw, err := json.Marshal(v)
	if err != nil {
		panic("model: unmarshalable setting value: " + err.Error())
	}
	return Setting{Key: key, Value: raw, UpdatedAt: time.Now()}
}

// Float returns the setting decoded as a float64, or fallback when the
// value is not a JSON number.
func (s Setting) Float(fallback float64) float64 {
	var f float64
	if err := json.Unmarshal(s.Value, &f); err != nil {
		return fallback
	}
	return f
}

// Int returns the setting decoded as an int, or fallback.
func (s Setting) Int(fallback int) int {
	var n int
	if err := json.Unmarshal(s.Value, &n); err != nil {
		return fallback
	}
	return n
}

// String returns the setting decoded as a string, or fallback.
func (s Setting) String(fallback string) string {
	var str string
	if err := json.Unmarshal(s.Value, &str); err != nil {
		return fallback
	}
	return str
}

// Bool returns the setting decoded as a bool, or fallback.
func (s Setting) Bool(fallback bool) bool {
	var b bool
	if err := json.Unmarshal(s.Value, &b); err != nil {
		return fallback
	}
	return b
}
