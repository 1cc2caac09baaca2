// Copyright (c) 2025 Kyle Marwood
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/kmarwood/ollamaweb/internal/model"
	"github.com/kmarwood/ollamaweb/internal/ollama"
	"github.com/kmarwood/ollamaweb/internal/store"
	"github.com/kmarwood/ollamaweb/internal/util"
)

// ============================================================================
// STREAM RELAY
// ============================================================================

type chatRequest struct {
	Model       string  `json:"model"`
	Temperature float64 `json:"temperature,omitempty"`
	MaxTokens   int     `json:"max_tokens,omitempty"`
}

// handleChat handles POST /api/conversations/{id}/chat. It bridges one
// inbound request to one SSE stream: history is loaded from the store,
// tokens are relayed from the backend as they arrive, and exactly one
// assistant message is persisted per successful stream. On failure the
// partial reply is discarded and an error frame is sent instead.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req chatRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	if req.Temperature < MinTemperature || req.Temperature > MaxTemperature {
		s.writeError(w, http.StatusBadRequest,
			fmt.Sprintf("temperature must be between %.1f and %.1f", MinTemperature, MaxTemperature))
		return
	}
	if req.MaxTokens < 0 || req.MaxTokens > MaxTokensLimit {
		s.writeError(w, http.StatusBadRequest,
			fmt.Sprintf("max_tokens must be between 0 and %d", MaxTokensLimit))
		return
	}

	conv, err := s.store.GetConversation(id)
	if errors.Is(err, store.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "Conversation not found")
		return
	}
	if err != nil {
		log.Printf("STORE_ERROR | op=get_conversation id=%s error=%v", id, err)
		s.writeError(w, http.StatusInternalServerError, "Failed to load conversation")
		return
	}

	history, err := s.store.GetMessages(id)
	if err != nil {
		log.Printf("STORE_ERROR | op=get_messages id=%s error=%v", id, err)
		s.writeError(w, http.StatusInternalServerError, "Failed to load messages")
		return
	}

	modelName := req.Model
	if modelName == "" {
		modelName = conv.Model
	}

	// SSE headers. X-Accel-Buffering disables proxy buffering so tokens
	// reach the browser as they arrive.
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeError(w, http.StatusInternalServerError, "Streaming not supported")
		return
	}

	messages := s.buildBackendMessages(history)
	opts := s.buildOptions(req)

	start := time.Now()
	var accumulator strings.Builder

	streamErr := s.backend.ChatStream(r.Context(), modelName, messages, opts,
		func(chunk ollama.StreamChunk) {
			if chunk.Content == "" {
				return
			}
			accumulator.WriteString(chunk.Content)
			s.sendFrame(w, flusher, model.ContentFrame(chunk.Content))
		})

	if streamErr != nil {
		// Partial output is discarded: silence over corruption.
		log.Printf("STREAM_ERROR | conversation=%s model=%s partial=%q error=%v",
			id, modelName, logPreview(accumulator.String()), streamErr)
		s.sendFrame(w, flusher, model.ErrorFrame(streamErr.Error()))
		return
	}

	reply := accumulator.String()
	if reply != "" {
		msg := model.NewAssistantMessage(id, reply)
		if err := s.store.CreateMessage(msg); err != nil {
			log.Printf("STORE_ERROR | op=persist_assistant conversation=%s error=%v", id, err)
			s.sendFrame(w, flusher, model.ErrorFrame("failed to save assistant message"))
			return
		}
	}

	s.sendFrame(w, flusher, model.DoneFrame())
	log.Printf("STREAM_COMPLETE | conversation=%s model=%s chars=%d latency=%.3fs",
		id, modelName, accumulator.Len(), time.Since(start).Seconds())
}

// buildBackendMessages converts stored history to the backend wire
// format, prefixed with the configured system prompt when one is set.
func (s *Server) buildBackendMessages(history []model.Message) []ollama.Message {
	messages := make([]ollama.Message, 0, len(history)+1)

	if setting, err := s.store.GetSetting(model.SettingSystemPrompt); err == nil {
		if prompt := setting.String(""); prompt != "" {
			messages = append(messages, ollama.Message{Role: "system", Content: prompt})
		}
	}
	for _, m := range history {
		messages = append(messages, ollama.Message{
			Role:    string(m.Role),
			Content: m.Content,
		})
	}
	return messages
}

// buildOptions resolves generation parameters: request values win,
// stored settings fill the gaps.
func (s *Server) buildOptions(req chatRequest) *ollama.Options {
	opts := &ollama.Options{
		Temperature: req.Temperature,
		NumPredict:  req.MaxTokens,
	}
	if opts.Temperature == 0 {
		if setting, err := s.store.GetSetting(model.SettingTemperature); err == nil {
			opts.Temperature = setting.Float(0.7)
		}
	}
	if opts.NumPredict == 0 {
		if setting, err := s.store.GetSetting(model.SettingMaxTokens); err == nil {
			opts.NumPredict = setting.Int(1024)
		}
	}
	return opts
}

// sendFrame writes one SSE data frame and flushes it immediately.
func (s *Server) sendFrame(w http.ResponseWriter, flusher http.Flusher, frame model.StreamFrame) {
	data, err := json.Marshal(frame)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "data: %s\n\n", data)
	flusher.Flush()
}

// logPreview truncates content for log lines.
func logPreview(content string) string {
	return util.TruncateRunes(content, 50)
}
