// Copyright (c) 2025 Kyle Marwood
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"encoding/json"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestTitleFromContent(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"short content", "Hello there", "Hello there"},
		{"empty content", "   \n  ", "New Conversation"},
		{"first line only", "\nWhat is Go?\nSecond line", "What is Go?"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TitleFromContent(tt.content); got != tt.want {
				t.Errorf("TitleFromContent(%q) = %q, want %q", tt.content, got, tt.want)
			}
		})
	}

	t.Run("long content keeps first 50 runes plus ellipsis", func(t *testing.T) {
		long := strings.Repeat("x", 80)
		got := TitleFromContent(long)
		if utf8.RuneCountInString(got) != 53 {
			t.Errorf("title has %d runes, want 53", utf8.RuneCountInString(got))
		}
		if !strings.HasPrefix(got, strings.Repeat("x", 50)) {
			t.Errorf("truncated title %q lost part of the prompt", got)
		}
		if !strings.HasSuffix(got, "...") {
			t.Errorf("truncated title %q missing ellipsis", got)
		}
	})

	t.Run("exactly 50 runes stays untouched", func(t *testing.T) {
		exact := strings.Repeat("y", 50)
		if got := TitleFromContent(exact); got != exact {
			t.Errorf("TitleFromContent(%q) = %q, want unchanged", exact, got)
		}
	})
}

func TestConversationID(t *testing.T) {
	id := NewConversationID()
	if !IsConversationID(id) {
		t.Errorf("generated ID %q not recognized", id)
	}
	if IsConversationID("conv_nothex!") {
		t.Error("non-hex suffix accepted")
	}
	if IsConversationID("msg_a1b2c3d4") {
		t.Error("wrong prefix accepted")
	}

	// Two IDs should differ.
	if other := NewConversationID(); other == id {
		t.Errorf("two generated IDs collide: %q", id)
	}
}

func TestRoleValid(t *testing.T) {
	for _, r := range []Role{RoleUser, RoleAssistant, RoleSystem} {
		if !r.Valid() {
			t.Errorf("role %q should be valid", r)
		}
	}
	if Role("robot").Valid() {
		t.Error("unknown role accepted")
	}
}

func TestSettingAccessors(t *testing.T) {
	if got := NewSetting(SettingTemperature, 0.7).Float(0); got != 0.7 {
		t.Errorf("Float = %v, want 0.7", got)
	}
	if got := NewSetting(SettingMaxTokens, 1024).Int(0); got != 1024 {
		t.Errorf("Int = %v, want 1024", got)
	}
	if got := NewSetting(SettingSystemPrompt, "be brief").String(""); got != "be brief" {
		t.Errorf("String = %q, want be brief", got)
	}
	if got := NewSetting(SettingAutoSave, true).Bool(false); !got {
		t.Error("Bool = false, want true")
	}

	// Type mismatch falls back.
	s := NewSetting("k", "not a number")
	if got := s.Float(1.5); got != 1.5 {
		t.Errorf("mismatched Float = %v, want fallback 1.5", got)
	}
}

func TestStreamFrameJSON(t *testing.T) {
	data, err := json.Marshal(ContentFrame("Hel"))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `{"content":"Hel","done":false}` {
		t.Errorf("content frame = %s", data)
	}

	data, _ = json.Marshal(DoneFrame())
	if string(data) != `{"content":"","done":true}` {
		t.Errorf("done frame = %s", data)
	}

	data, _ = json.Marshal(ErrorFrame("backend unreachable"))
	if string(data) != `{"content":"","done":false,"error":"backend unreachable"}` {
		t.Errorf("error frame = %s", data)
	}
}

func TestModelRecordSizeHuman(t *testing.T) {
	m := ModelRecord{Size: 4_100_000_000}
	if got := m.SizeHuman(); !strings.Contains(got, "GB") {
		t.Errorf("SizeHuman = %q, want GB unit", got)
	}
	if got := (ModelRecord{}).SizeHuman(); got != "unknown" {
		t.Errorf("zero SizeHuman = %q, want unknown", got)
	}
}
