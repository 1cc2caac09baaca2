// Copyright (c) 2025 Kyle Marwood
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"crypto/rand"
	"encoding/hex"
	"strings"
	"time"

	"github.com/kmarwood/ollamaweb/internal/util"
)

// ============================================================================
// CONVERSATIONS
// ============================================================================

// titleMaxRunes bounds auto-generated conversation titles.
const titleMaxRunes = 50

// DefaultTitle names a conversation until its first user message
// supplies a real title.
const DefaultTitle = "New Conversation"

// Conversation groups an ordered sequence of messages under one model.
type Conversation struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Model     string    `json:"model"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewConversation creates a conversation with a fresh ID and timestamps.
func NewConversation(title, modelName string) Conversation {
	now := time.Now()
	return Conversation{
		ID:        NewConversationID(),
		Title:     title,
		Model:     modelName,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// NewConversationID returns a short random identifier like "conv_a1b2c3d4".
func NewConversationID() string {
	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand never fails on supported platforms; fall back to
		// a time-derived suffix just in case.
		return "conv_" + hex.EncodeToString([]byte(time.Now().Format("0405")))
	}
	return "conv_" + hex.EncodeToString(buf)
}

// TitleFromContent derives a conversation title from the first user
// message: the first non-empty line. Longer lines keep their first 50
// runes and gain a "..." marker.
func TitleFromContent(content string) string {
	line := util.FirstLine(content)
	if line == "" {
		return DefaultTitle
	}
	runes := []rune(line)
	if len(runes) <= titleMaxRunes {
		return line
	}
	return string(runes[:titleMaxRunes]) + "..."
}

// IsConversationID reports whether id looks like a generated
// conversation identifier.
func IsConversationID(id string) bool {
	if !strings.HasPrefix(id, "conv_") {
		return false
	}
	suffix := strings.TrimPrefix(id, "conv_")
	if len(suffix) != 8 {
		return false
	}
	_, err := hex.DecodeString(suffix)
	return err == nil
}
