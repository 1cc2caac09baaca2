// Copyright (c) 2025 Kyle Marwood
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat provides the chat view component for the TUI.
//
// This file defines all Bubble Tea message types used by the chat
// interface. Messages are organized into the following categories:
//   - Streaming: stream start, completion, errors, and render ticks
//   - Backend: health checks and model listing
//   - Conversation: creation and history loading
//
// All message types follow Bubble Tea conventions and are immutable.
package chat

import (
	"time"

	"github.com/kmarwood/ollamaweb/internal/model"
)

// =============================================================================
// STREAMING MESSAGES
// =============================================================================

// StreamCompleteMsg signals that streaming finished cleanly.
type StreamCompleteMsg struct {
	Gen     int
	Content string
}

// StreamErrorMsg signals an error during streaming.
type StreamErrorMsg struct {
	Gen   int
	Error error
}

// StreamTickMsg drives batched token rendering at a capped frame rate.
type StreamTickMsg struct {
	Time time.Time
}

// =============================================================================
// BACKEND MESSAGES
// =============================================================================

// BackendStatusMsg reports server and Ollama connection status.
type BackendStatusMsg struct {
	ServerUp  bool
	OllamaUp  bool
	Error     error
}

// ModelsLoadedMsg delivers the model catalog.
type ModelsLoadedMsg struct {
	Models []model.ModelRecord
	Error  error
}

// =============================================================================
// CONVERSATION MESSAGES
// =============================================================================

// ConversationCreatedMsg confirms a new conversation.
type ConversationCreatedMsg struct {
	Conversation *model.Conversation
	Error        error
}

// HistoryLoadedMsg delivers a conversation's message history.
type HistoryLoadedMsg struct {
	ConversationID string
	Messages       []model.Message
	Error          error
}

// UserMessageSavedMsg confirms the user turn was persisted.
type UserMessageSavedMsg struct {
	Gen     int
	Message *model.Message
	Error   error
}
