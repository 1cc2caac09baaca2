// Copyright (c) 2025 Kyle Marwood
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat provides the chat view component for the TUI.
package chat

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/kmarwood/ollamaweb/internal/model"
)

// View renders the chat view.
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(m.renderHeader())
	b.WriteString("\n")
	b.WriteString(m.viewport.View())
	b.WriteString("\n")
	b.WriteString(m.renderInput())
	b.WriteString("\n")
	b.WriteString(m.renderStatusBar())

	return m.theme.App.Render(b.String())
}

// =============================================================================
// HEADER
// =============================================================================

func (m Model) renderHeader() string {
	title := m.theme.HeaderTitle.Render(m.title)
	subtitle := m.theme.HeaderSubtitle.Render(" " + m.modelName)
	return m.theme.Header.Width(max(m.width, 20)).Render(title + subtitle)
}

// =============================================================================
// MESSAGE TRANSCRIPT
// =============================================================================

// renderMessages renders the transcript plus any in-flight draft into
// viewport content.
func (m Model) renderMessages() string {
	var parts []string

	for _, msg := range m.transcript {
		parts = append(parts, m.renderMessage(msg.Role, msg.Content))
	}

	if m.state == StateStreaming {
		if m.isThinking {
			parts = append(parts, m.theme.ThinkingText.Render(m.spinner.View()+" Thinking..."))
		} else {
			parts = append(parts, m.renderMessage(model.RoleAssistant, m.draft))
		}
	}

	if m.lastError != "" {
		errBox := m.theme.ErrorBox.Render(
			m.theme.ErrorTitle.Render("Error") + "\n" +
				m.theme.ErrorMessage.Render(m.lastError))
		parts = append(parts, errBox)
	}

	if len(parts) == 0 {
		return m.theme.ThinkingText.Render("Send a message to get started.")
	}

	return strings.Join(parts, "\n\n")
}

func (m Model) renderMessage(role model.Role, content string) string {
	width := max(m.viewport.Width-6, 20)

	switch role {
	case model.RoleUser:
		label := m.theme.UserLabel.Render("You")
		body := m.theme.UserBubble.Width(width).Render(content)
		return label + "\n" + body
	case model.RoleAssistant:
		label := m.theme.AssistantLabel.Render(m.modelName)
		body := m.theme.AssistantBubble.Width(width).Render(content)
		return label + "\n" + body
	default:
		return m.theme.SystemText.Render(content)
	}
}

// =============================================================================
// INPUT AREA
// =============================================================================

func (m Model) renderInput() string {
	if m.state != StateReady {
		busy := m.theme.InputPlaceholder.Render(m.spinner.View() + " Waiting for response... (Esc to cancel)")
		return m.theme.InputContainer.Width(max(m.width-2, 20)).Render(busy)
	}
	return m.theme.InputContainer.Width(max(m.width-2, 20)).Render(m.input.View())
}

// =============================================================================
// STATUS BAR
// =============================================================================

func (m Model) renderStatusBar() string {
	var backend string
	if m.serverUp && m.ollamaUp {
		backend = m.theme.BackendOnline.Render("online")
	} else if m.serverUp {
		backend = m.theme.BackendOffline.Render("ollama offline")
	} else {
		backend = m.theme.BackendOffline.Render("server offline")
	}

	modelCount := m.theme.TokenCount.Render(fmt.Sprintf("%d models", len(m.models)))

	shortcuts := lipgloss.JoinHorizontal(lipgloss.Top,
		m.theme.ShortcutKey.Render("Enter"), m.theme.ShortcutDesc.Render(" send  "),
		m.theme.ShortcutKey.Render("Ctrl+N"), m.theme.ShortcutDesc.Render(" new  "),
		m.theme.ShortcutKey.Render("Esc"), m.theme.ShortcutDesc.Render(" cancel  "),
		m.theme.ShortcutKey.Render("Ctrl+C"), m.theme.ShortcutDesc.Render(" quit"),
	)

	left := backend + m.theme.ShortcutDesc.Render(" | ") + modelCount
	return m.theme.StatusBar.Width(max(m.width, 20)).Render(left + "   " + shortcuts)
}
