// Copyright (c) 2025 Kyle Marwood
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat provides the chat view component for the TUI.
package chat

import (
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/kmarwood/ollamaweb/internal/client"
	"github.com/kmarwood/ollamaweb/internal/model"
	"github.com/kmarwood/ollamaweb/internal/ui/styles"
)

// =============================================================================
// CHAT STATE
// =============================================================================

// State represents the current state of the chat view.
type State int

const (
	StateReady      State = iota // Ready for input
	StateSubmitting              // Persisting the user turn
	StateStreaming               // Receiving streaming response
)

// =============================================================================
// CHAT MODEL
// =============================================================================

// Model is the Bubble Tea model for the chat view.
type Model struct {
	// State
	state State

	// Styling
	theme *styles.Theme

	// Dimensions
	width  int
	height int

	// API client for the ollamaweb server
	api *client.Client

	// Conversation state
	conversationID string
	title          string
	modelName      string
	transcript     []model.Message

	// In-flight assistant output, not yet persisted server-side.
	// Plain string: Bubble Tea copies the model on every Update, which
	// rules out strings.Builder here.
	draft string

	// Stream generation counter. Each new stream bumps it; messages
	// carrying a stale generation are dropped so a canceled stream
	// cannot write into the next one.
	streamGen int

	// Streaming optimization
	streamingBuffer *StreamingBuffer
	cancelMgr       *cancelManager

	// Backend status
	serverUp bool
	ollamaUp bool

	// Model catalog for the status bar
	models []model.ModelRecord

	// UI components
	viewport viewport.Model
	input    textinput.Model
	spinner  spinner.Model

	// Error state
	lastError string

	// Thinking state
	isThinking    bool
	thinkingStart time.Time
}

// New creates a new chat model talking to the given API client.
func New(theme *styles.Theme, api *client.Client, modelName string) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Type a message..."
	ti.CharLimit = 4096
	ti.Focus()

	vp := viewport.New(80, 20)
	vp.SetContent("")

	sp := spinner.New()
	sp.Spinner = spinner.Spinner{
		Frames: []string{"|", "/", "-", "\\"},
		FPS:    time.Second / 30,
	}

	return Model{
		state:           StateReady,
		theme:           theme,
		api:             api,
		modelName:       modelName,
		title:           model.DefaultTitle,
		viewport:        vp,
		input:           ti,
		spinner:         sp,
		streamingBuffer: NewStreamingBuffer(),
		cancelMgr:       newCancelManager(),
	}
}

// =============================================================================
// BUBBLE TEA INTERFACE
// =============================================================================

// Init initializes the model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		textinput.Blink,
		checkBackendCmd(m.api),
		loadModelsCmd(m.api),
		createConversationCmd(m.api, m.modelName),
	)
}

// View renders the chat view. Implemented in view.go.

// =============================================================================
// HELPERS
// =============================================================================

// appendDraft adds streamed content to the in-flight assistant message
// and refreshes the viewport.
func (m *Model) appendDraft(content string) {
	m.draft += content
	m.updateViewport()
	m.viewport.GotoBottom()
}

// finishStream resets streaming state back to ready.
func (m *Model) finishStream() {
	m.state = StateReady
	m.isThinking = false
	m.draft = ""
	m.streamingBuffer.Reset()
	m.cancelMgr.cancel()
	m.input.Focus()
}

func (m *Model) updateViewport() {
	m.viewport.SetContent(m.renderMessages())
}

// ConversationID returns the active conversation ID, empty until the
// bootstrap create completes.
func (m *Model) ConversationID() string {
	return m.conversationID
}

// ModelName returns the model used for new turns.
func (m *Model) ModelName() string {
	return m.modelName
}
