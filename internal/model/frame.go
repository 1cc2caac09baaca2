// Copyright (c) 2025 Kyle Marwood
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

// ============================================================================
// STREAM FRAMES
// ============================================================================

// StreamFrame is one SSE data payload on the chat completion stream.
// Content and Done are always emitted so consumers can distinguish an
// empty delta from a terminal frame without checking for absent keys.
// Error appears only on mid-stream failures.
type StreamFrame struct {
	Content string `json:"content"`
	Done    bool   `json:"done"`
	Error   string `json:"error,omitempty"`
}

// ContentFrame builds a frame carrying a text delta.
func ContentFrame(content string) StreamFrame {
	return StreamFrame{Content: content}
}

// DoneFrame builds the terminal frame of a successful stream.
func DoneFrame() StreamFrame {
	return StreamFrame{Done: true}
}

// ErrorFrame builds a frame reporting a mid-stream failure.
func ErrorFrame(msg string) StreamFrame {
	return StreamFrame{Error: msg}
}
