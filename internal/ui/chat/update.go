// Copyright (c) 2025 Kyle Marwood
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat provides the chat view component for the TUI.
package chat

import (
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/kmarwood/ollamaweb/internal/model"
)

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		return m.handleResize(msg)

	case tea.KeyMsg:
		return m.handleKey(msg)

	case BackendStatusMsg:
		m.serverUp = msg.ServerUp
		m.ollamaUp = msg.OllamaUp
		if msg.Error != nil {
			m.lastError = msg.Error.Error()
		}
		return m, nil

	case ModelsLoadedMsg:
		if msg.Error == nil {
			m.models = msg.Models
		}
		return m, nil

	case ConversationCreatedMsg:
		return m.handleConversationCreated(msg)

	case HistoryLoadedMsg:
		return m.handleHistoryLoaded(msg)

	case UserMessageSavedMsg:
		return m.handleUserMessageSaved(msg)

	case StreamTickMsg:
		return m.handleStreamTick(msg)

	case StreamCompleteMsg:
		return m.handleStreamComplete(msg)

	case StreamErrorMsg:
		return m.handleStreamError(msg)

	case spinner.TickMsg:
		if m.state == StateStreaming || m.state == StateSubmitting {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}
		return m, nil
	}

	// Delegate remaining messages to the focused components.
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)

	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

// =============================================================================
// KEY HANDLING
// =============================================================================

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		m.cancelMgr.cancel()
		return m, tea.Quit

	case "esc":
		if m.state == StateStreaming {
			// Abort the in-flight stream. The server discards the
			// partial assistant output, so the draft is dropped too.
			m.streamGen++
			m.finishStream()
			m.lastError = "Generation canceled."
			m.updateViewport()
			return m, nil
		}
		return m, nil

	case "ctrl+n":
		if m.state != StateReady {
			return m, nil
		}
		m.transcript = nil
		m.conversationID = ""
		m.title = model.DefaultTitle
		m.lastError = ""
		m.updateViewport()
		return m, createConversationCmd(m.api, m.modelName)

	case "enter":
		return m.handleSubmit()

	case "pgup":
		m.viewport.HalfViewUp()
		return m, nil

	case "pgdown":
		m.viewport.HalfViewDown()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// handleSubmit validates input and kicks off the user-turn save.
func (m Model) handleSubmit() (tea.Model, tea.Cmd) {
	if m.state != StateReady || m.conversationID == "" {
		return m, nil
	}

	content := strings.TrimSpace(m.input.Value())
	if content == "" {
		return m, nil
	}

	m.input.SetValue("")
	m.lastError = ""
	m.state = StateSubmitting
	m.streamGen++

	// Optimistic transcript entry. The server copy is authoritative;
	// on save failure the entry is rolled back.
	m.transcript = append(m.transcript, model.Message{
		ConversationID: m.conversationID,
		Role:           model.RoleUser,
		Content:        content,
		Timestamp:      time.Now(),
	})
	m.updateViewport()
	m.viewport.GotoBottom()

	return m, tea.Batch(
		saveUserMessageCmd(m.api, m.conversationID, content, m.streamGen),
		m.spinner.Tick,
	)
}

// =============================================================================
// MESSAGE HANDLERS
// =============================================================================

func (m Model) handleResize(msg tea.WindowSizeMsg) (tea.Model, tea.Cmd) {
	m.width = msg.Width
	m.height = msg.Height
	if m.theme != nil {
		m.theme.Resize(msg.Width, msg.Height)
	}

	// Header, input and status bar each take a row plus borders.
	const chromeHeight = 6
	m.viewport.Width = msg.Width
	m.viewport.Height = max(msg.Height-chromeHeight, 3)
	m.input.Width = max(msg.Width-4, 20)

	m.updateViewport()
	return m, nil
}

func (m Model) handleConversationCreated(msg ConversationCreatedMsg) (tea.Model, tea.Cmd) {
	if msg.Error != nil {
		m.lastError = "Could not create conversation: " + msg.Error.Error()
		m.updateViewport()
		return m, nil
	}
	m.conversationID = msg.Conversation.ID
	m.title = msg.Conversation.Title
	return m, nil
}

func (m Model) handleHistoryLoaded(msg HistoryLoadedMsg) (tea.Model, tea.Cmd) {
	if msg.Error != nil || msg.ConversationID != m.conversationID {
		return m, nil
	}
	m.transcript = msg.Messages
	m.updateViewport()
	m.viewport.GotoBottom()
	return m, nil
}

func (m Model) handleUserMessageSaved(msg UserMessageSavedMsg) (tea.Model, tea.Cmd) {
	if msg.Gen != m.streamGen {
		return m, nil
	}

	if msg.Error != nil {
		// Roll back the optimistic entry.
		if n := len(m.transcript); n > 0 && m.transcript[n-1].Role == model.RoleUser {
			m.transcript = m.transcript[:n-1]
		}
		m.state = StateReady
		m.lastError = "Could not send message: " + msg.Error.Error()
		m.updateViewport()
		m.input.Focus()
		return m, textinput.Blink
	}

	// Replace the optimistic entry with the persisted one.
	if n := len(m.transcript); n > 0 && m.transcript[n-1].Role == model.RoleUser {
		m.transcript[n-1] = *msg.Message
	}

	// The server titles the conversation from the first prompt; mirror
	// that in the header without waiting for a refetch.
	if m.title == model.DefaultTitle {
		m.title = model.TitleFromContent(msg.Message.Content)
	}

	m.state = StateStreaming
	m.isThinking = true
	m.thinkingStart = time.Now()
	m.streamingBuffer.Reset()
	m.draft = ""

	return m, tea.Batch(
		startStreamCmd(m.api, m.streamingBuffer, m.cancelMgr, m.conversationID, m.modelName, m.streamGen),
		streamTickCmd(),
		m.spinner.Tick,
	)
}

// handleStreamTick drains the streaming buffer at 30fps.
func (m Model) handleStreamTick(StreamTickMsg) (tea.Model, tea.Cmd) {
	if m.state != StateStreaming {
		return m, nil
	}

	if content, ok := m.streamingBuffer.Flush(); ok {
		m.isThinking = false
		m.appendDraft(content)
	}

	return m, streamTickCmd()
}

func (m Model) handleStreamComplete(msg StreamCompleteMsg) (tea.Model, tea.Cmd) {
	if msg.Gen != m.streamGen {
		return m, nil
	}

	// Show the accumulated content immediately, then replace the
	// transcript with the committed messages from the server so IDs
	// and timestamps are authoritative.
	m.transcript = append(m.transcript, model.Message{
		ConversationID: m.conversationID,
		Role:           model.RoleAssistant,
		Content:        msg.Content,
		Timestamp:      time.Now(),
	})

	m.finishStream()
	m.updateViewport()
	m.viewport.GotoBottom()

	return m, tea.Batch(loadHistoryCmd(m.api, m.conversationID), textinput.Blink)
}

func (m Model) handleStreamError(msg StreamErrorMsg) (tea.Model, tea.Cmd) {
	if msg.Gen != m.streamGen {
		return m, nil
	}

	// The server discards partial output on stream failure, so the
	// draft is dropped rather than promoted to the transcript.
	m.finishStream()
	m.lastError = "Streaming error: " + msg.Error.Error()
	m.updateViewport()

	return m, textinput.Blink
}
