// Copyright (c) 2025 Kyle Marwood
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"errors"
	"testing"
	"time"

	"github.com/kmarwood/ollamaweb/internal/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestConversationLifecycle(t *testing.T) {
	s := openTestStore(t)

	c := model.NewConversation("First chat", "llama3.2")
	if err := s.CreateConversation(c); err != nil {
		t.Fatalf("CreateConversation: %v", err)
	}

	got, err := s.GetConversation(c.ID)
	if err != nil {
		t.Fatalf("GetConversation: %v", err)
	}
	if got.Title != "First chat" || got.Model != "llama3.2" {
		t.Errorf("got %+v", got)
	}

	if err := s.DeleteConversation(c.ID); err != nil {
		t.Fatalf("DeleteConversation: %v", err)
	}
	if _, err := s.GetConversation(c.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("after delete, err = %v, want ErrNotFound", err)
	}
}

func TestGetConversationNotFound(t *testing.T) {
	s := openTestStore(t)
	if _, err := s.GetConversation("conv_missing1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
	if err := s.DeleteConversation("conv_missing1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("delete err = %v, want ErrNotFound", err)
	}
	if err := s.TouchConversation("conv_missing1", ""); !errors.Is(err, ErrNotFound) {
		t.Errorf("touch err = %v, want ErrNotFound", err)
	}
}

func TestListConversationsOrder(t *testing.T) {
	s := openTestStore(t)

	older := model.NewConversation("older", "llama3.2")
	older.CreatedAt = time.Now().Add(-2 * time.Hour)
	older.UpdatedAt = older.CreatedAt
	newer := model.NewConversation("newer", "llama3.2")

	if err := s.CreateConversation(older); err != nil {
		t.Fatal(err)
	}
	if err := s.CreateConversation(newer); err != nil {
		t.Fatal(err)
	}

	list, err := s.ListConversations()
	if err != nil {
		t.Fatalf("ListConversations: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("got %d conversations, want 2", len(list))
	}
	if list[0].Title != "newer" || list[1].Title != "older" {
		t.Errorf("order = [%s, %s], want [newer, older]", list[0].Title, list[1].Title)
	}

	// Touching the older conversation moves it to the front.
	if err := s.TouchConversation(older.ID, ""); err != nil {
		t.Fatalf("TouchConversation: %v", err)
	}
	list, _ = s.ListConversations()
	if list[0].ID != older.ID {
		t.Errorf("after touch, first = %s, want %s", list[0].ID, older.ID)
	}
}

func TestMessagesOrderAndCascade(t *testing.T) {
	s := openTestStore(t)

	c := model.NewConversation("chat", "llama3.2")
	if err := s.CreateConversation(c); err != nil {
		t.Fatal(err)
	}

	first := model.NewUserMessage(c.ID, "hello")
	first.Timestamp = time.Now().Add(-time.Minute)
	second := model.NewAssistantMessage(c.ID, "hi there")

	// Insert out of order; reads must come back chronological.
	if err := s.CreateMessage(second); err != nil {
		t.Fatalf("CreateMessage: %v", err)
	}
	if err := s.CreateMessage(first); err != nil {
		t.Fatalf("CreateMessage: %v", err)
	}

	msgs, err := s.GetMessages(c.ID)
	if err != nil {
		t.Fatalf("GetMessages: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want 2", len(msgs))
	}
	if msgs[0].Content != "hello" || msgs[1].Content != "hi there" {
		t.Errorf("order = [%s, %s]", msgs[0].Content, msgs[1].Content)
	}

	// Deleting the conversation removes its messages.
	if err := s.DeleteConversation(c.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := s.GetMessages(c.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("messages after delete: err = %v, want ErrNotFound", err)
	}
}

func TestCreateMessageValidation(t *testing.T) {
	s := openTestStore(t)

	c := model.NewConversation("chat", "llama3.2")
	if err := s.CreateConversation(c); err != nil {
		t.Fatal(err)
	}

	bad := model.NewUserMessage(c.ID, "x")
	bad.Role = "robot"
	if err := s.CreateMessage(bad); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("invalid role err = %v, want ErrInvalidInput", err)
	}

	orphan := model.NewUserMessage("conv_deadbeef", "x")
	if err := s.CreateMessage(orphan); !errors.Is(err, ErrNotFound) {
		t.Errorf("orphan message err = %v, want ErrNotFound", err)
	}
}

func TestUpsertModelPreservesID(t *testing.T) {
	s := openTestStore(t)

	if err := s.UpsertModel(model.ModelRecord{Name: "llama3.2", Size: 100, IsAvailable: true}); err != nil {
		t.Fatalf("UpsertModel: %v", err)
	}
	before, err := s.GetModel("llama3.2")
	if err != nil {
		t.Fatal(err)
	}

	if err := s.UpsertModel(model.ModelRecord{Name: "llama3.2", Size: 200, IsAvailable: true}); err != nil {
		t.Fatalf("UpsertModel update: %v", err)
	}
	after, err := s.GetModel("llama3.2")
	if err != nil {
		t.Fatal(err)
	}

	if after.ID != before.ID {
		t.Errorf("upsert changed ID: %s -> %s", before.ID, after.ID)
	}
	if after.Size != 200 {
		t.Errorf("size = %d, want 200", after.Size)
	}
}

func TestMarkModelsUnavailable(t *testing.T) {
	s := openTestStore(t)

	for _, name := range []string{"llama3.2", "mistral", "phi3"} {
		if err := s.UpsertModel(model.ModelRecord{Name: name, IsAvailable: true}); err != nil {
			t.Fatal(err)
		}
	}

	if err := s.MarkModelsUnavailable([]string{"llama3.2"}); err != nil {
		t.Fatalf("MarkModelsUnavailable: %v", err)
	}

	list, _ := s.ListModels()
	for _, m := range list {
		want := m.Name == "llama3.2"
		if m.IsAvailable != want {
			t.Errorf("model %s available = %v, want %v", m.Name, m.IsAvailable, want)
		}
	}
}

func TestDeleteModel(t *testing.T) {
	s := openTestStore(t)

	if err := s.DeleteModel("nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
	if err := s.UpsertModel(model.ModelRecord{Name: "mistral"}); err != nil {
		t.Fatal(err)
	}
	if err := s.DeleteModel("mistral"); err != nil {
		t.Fatalf("DeleteModel: %v", err)
	}
}

func TestSettingsSeededDefaults(t *testing.T) {
	s := openTestStore(t)

	temp, err := s.GetSetting(model.SettingTemperature)
	if err != nil {
		t.Fatalf("GetSetting: %v", err)
	}
	if got := temp.Float(0); got != 0.7 {
		t.Errorf("temperature = %v, want 0.7", got)
	}

	tokens, _ := s.GetSetting(model.SettingMaxTokens)
	if got := tokens.Int(0); got != 1024 {
		t.Errorf("max_tokens = %v, want 1024", got)
	}

	autoSave, _ := s.GetSetting(model.SettingAutoSave)
	if !autoSave.Bool(false) {
		t.Error("auto_save default should be true")
	}
}

func TestSetSettingRoundTrip(t *testing.T) {
	s := openTestStore(t)

	if err := s.SetSetting(model.NewSetting(model.SettingTemperature, 0.2)); err != nil {
		t.Fatalf("SetSetting: %v", err)
	}
	got, err := s.GetSetting(model.SettingTemperature)
	if err != nil {
		t.Fatal(err)
	}
	if got.Float(0) != 0.2 {
		t.Errorf("temperature = %v, want 0.2", got.Float(0))
	}
	if got.UpdatedAt.IsZero() {
		t.Error("expected UpdatedAt to be set on write")
	}

	// Overwriting refreshes the timestamp.
	first := got.UpdatedAt
	if err := s.SetSetting(model.NewSetting(model.SettingTemperature, 0.9)); err != nil {
		t.Fatalf("SetSetting: %v", err)
	}
	got, err = s.GetSetting(model.SettingTemperature)
	if err != nil {
		t.Fatal(err)
	}
	if got.UpdatedAt.Before(first) {
		t.Errorf("UpdatedAt = %v, want >= %v", got.UpdatedAt, first)
	}

	// Invalid JSON is rejected.
	bad := model.Setting{Key: "broken", Value: []byte("{not json")}
	if err := s.SetSetting(bad); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("invalid JSON err = %v, want ErrInvalidInput", err)
	}

	if _, err := s.GetSetting("never_set"); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing setting err = %v, want ErrNotFound", err)
	}
}

func TestListSettings(t *testing.T) {
	s := openTestStore(t)
	list, err := s.ListSettings()
	if err != nil {
		t.Fatalf("ListSettings: %v", err)
	}
	if len(list) != 4 {
		t.Errorf("got %d seeded settings, want 4", len(list))
	}
	for i := 1; i < len(list); i++ {
		if list[i-1].Key >= list[i].Key {
			t.Errorf("settings not sorted: %s before %s", list[i-1].Key, list[i].Key)
		}
	}
}
