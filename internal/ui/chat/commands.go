// Copyright (c) 2025 Kyle Marwood
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat provides the chat view component for the TUI.
//
// This file contains the tea.Cmd constructors that talk to the
// ollamaweb server. Each command captures what it needs up front so no
// goroutine touches the model.
package chat

import (
	"context"
	"errors"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/kmarwood/ollamaweb/internal/client"
	"github.com/kmarwood/ollamaweb/internal/model"
)

// =============================================================================
// BACKEND COMMANDS
// =============================================================================

// checkBackendCmd checks server and Ollama health.
func checkBackendCmd(api *client.Client) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		ollamaUp, err := api.Health(ctx)
		if err != nil {
			return BackendStatusMsg{ServerUp: false, OllamaUp: false, Error: err}
		}
		return BackendStatusMsg{ServerUp: true, OllamaUp: ollamaUp}
	}
}

// loadModelsCmd fetches the model catalog.
func loadModelsCmd(api *client.Client) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		models, err := api.ListModels(ctx)
		return ModelsLoadedMsg{Models: models, Error: err}
	}
}

// =============================================================================
// CONVERSATION COMMANDS
// =============================================================================

// createConversationCmd starts a fresh conversation on the server.
func createConversationCmd(api *client.Client, modelName string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		conv, err := api.CreateConversation(ctx, "", modelName)
		if err != nil {
			return ConversationCreatedMsg{Error: err}
		}
		return ConversationCreatedMsg{Conversation: &conv}
	}
}

// loadHistoryCmd fetches a conversation's messages.
func loadHistoryCmd(api *client.Client, conversationID string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		msgs, err := api.GetMessages(ctx, conversationID)
		return HistoryLoadedMsg{
			ConversationID: conversationID,
			Messages:       msgs,
			Error:          err,
		}
	}
}

// saveUserMessageCmd persists the user turn before streaming starts.
func saveUserMessageCmd(api *client.Client, conversationID, content string, gen int) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		msg, err := api.CreateMessage(ctx, conversationID, model.RoleUser, content)
		if err != nil {
			return UserMessageSavedMsg{Gen: gen, Error: err}
		}
		return UserMessageSavedMsg{Gen: gen, Message: &msg}
	}
}

// =============================================================================
// STREAMING COMMAND
// =============================================================================

// startStreamCmd runs the chat stream, writing tokens into the shared
// StreamingBuffer. The Update loop drains the buffer on stream ticks;
// the command's return value only signals completion or failure.
func startStreamCmd(api *client.Client, buffer *StreamingBuffer, cancelMgr *cancelManager, conversationID, modelName string, gen int) tea.Cmd {
	ctx, cancel := context.WithCancel(context.Background())
	cancelMgr.set(cancel)

	return func() tea.Msg {
		var streamErr error
		var accumulated strings.Builder

		err := api.Chat(ctx, conversationID, client.ChatOptions{Model: modelName}, func(frame model.StreamFrame) {
			if frame.Error != "" {
				streamErr = errors.New(frame.Error)
				return
			}
			if frame.Content != "" {
				accumulated.WriteString(frame.Content)
				buffer.Write(frame.Content)
			}
		})

		if err != nil {
			return StreamErrorMsg{Gen: gen, Error: err}
		}
		if streamErr != nil {
			return StreamErrorMsg{Gen: gen, Error: streamErr}
		}

		return StreamCompleteMsg{Gen: gen, Content: accumulated.String()}
	}
}
