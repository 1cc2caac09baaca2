// Copyright (c) 2025 Kyle Marwood
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package server exposes the chat API over HTTP.
//
// Endpoints:
//   - GET    /api/health                      - Backend reachability
//   - GET    /api/conversations               - List conversations
//   - POST   /api/conversations               - Create a conversation
//   - DELETE /api/conversations/{id}          - Delete with cascade
//   - GET    /api/conversations/{id}/messages - List messages
//   - POST   /api/conversations/{id}/messages - Append a message
//   - POST   /api/conversations/{id}/chat     - Streaming chat (SSE)
//   - GET    /api/models                      - Catalog sync + list
//   - POST   /api/models/pull                 - Pull a model
//   - DELETE /api/models/{name}               - Delete a model
//   - GET    /api/settings                    - List settings
//   - PUT    /api/settings/{key}              - Upsert a setting
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/kmarwood/ollamaweb/internal/model"
	"github.com/kmarwood/ollamaweb/internal/ollama"
	"github.com/kmarwood/ollamaweb/internal/store"
)

// ============================================================================
// CONSTANTS
// ============================================================================

const (
	// DefaultPort is the default port for the HTTP server.
	DefaultPort = 8787

	// MaxRequestBodySize caps request bodies to prevent abuse (1MB).
	MaxRequestBodySize = 1 * 1024 * 1024

	// MaxContentLength is the maximum length of a single message.
	MaxContentLength = 100000

	// MaxTokensLimit is the maximum value for the max_tokens parameter.
	MaxTokensLimit = 128000

	// MinTemperature and MaxTemperature bound the temperature parameter.
	MinTemperature = 0.0
	MaxTemperature = 2.0

	// Version is the server version.
	Version = "0.1.0"
)

// ============================================================================
// SERVER
// ============================================================================

// Server is the HTTP API server.
type Server struct {
	port    int
	router  *http.ServeMux
	server  *http.Server
	store   *store.Store
	backend *ollama.Client
}

// NewServer creates a Server bound to the given store and inference
// backend. If port is 0, the default port (8787) is used.
func NewServer(port int, st *store.Store, backend *ollama.Client) *Server {
	if port == 0 {
		port = DefaultPort
	}
	if backend == nil {
		backend = ollama.NewClient()
	}

	s := &Server{
		port:    port,
		router:  http.NewServeMux(),
		store:   st,
		backend: backend,
	}
	s.setupRoutes()
	return s
}

// Port returns the server port.
func (s *Server) Port() int {
	return s.port
}

// Handler returns the routed handler without the middleware chain.
// Exposed for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.router.HandleFunc("GET /api/health", s.handleHealth)

	s.router.HandleFunc("GET /api/conversations", s.handleListConversations)
	s.router.HandleFunc("POST /api/conversations", s.handleCreateConversation)
	s.router.HandleFunc("DELETE /api/conversations/{id}", s.handleDeleteConversation)
	s.router.HandleFunc("GET /api/conversations/{id}/messages", s.handleListMessages)
	s.router.HandleFunc("POST /api/conversations/{id}/messages", s.handleCreateMessage)
	s.router.HandleFunc("POST /api/conversations/{id}/chat", s.handleChat)

	s.router.HandleFunc("GET /api/models", s.handleModels)
	s.router.HandleFunc("POST /api/models/pull", s.handlePullModel)
	s.router.HandleFunc("DELETE /api/models/{name}", s.handleDeleteModel)

	s.router.HandleFunc("GET /api/settings", s.handleListSettings)
	s.router.HandleFunc("PUT /api/settings/{key}", s.handleSetSetting)
}

// ============================================================================
// SERVER LIFECYCLE
// ============================================================================

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("127.0.0.1:%d", s.port)

	handler := Chain(
		RecoveryMiddleware(),
		SecurityHeadersMiddleware(),
		LoggingMiddleware(log.Default()),
		RateLimitMiddleware(DefaultRateLimiter()),
		CORSMiddleware(DefaultCORSConfig()),
	)(s.router)

	s.server = &http.Server{
		Addr:        addr,
		Handler:     handler,
		ReadTimeout: 30 * time.Second,
		// No WriteTimeout: chat streams are open-ended.
		IdleTimeout: 120 * time.Second,
	}

	log.Printf("SERVER_START | addr=%s version=%s backend=%s", addr, Version, s.backend.BaseURL())
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	log.Printf("SERVER_SHUTDOWN | starting graceful shutdown")
	return s.server.Shutdown(ctx)
}

// ============================================================================
// HEALTH HANDLER
// ============================================================================

// handleHealth handles GET /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	reachable := s.backend.CheckHealth(ctx) == nil
	s.writeJSON(w, http.StatusOK, map[string]bool{"ollama": reachable})
}

// ============================================================================
// CONVERSATION HANDLERS
// ============================================================================

type createConversationRequest struct {
	Title string `json:"title"`
	Model string `json:"model"`
}

// handleListConversations handles GET /api/conversations.
func (s *Server) handleListConversations(w http.ResponseWriter, r *http.Request) {
	conversations, err := s.store.ListConversations()
	if err != nil {
		log.Printf("STORE_ERROR | op=list_conversations error=%v", err)
		s.writeError(w, http.StatusInternalServerError, "Failed to list conversations")
		return
	}
	if conversations == nil {
		conversations = []model.Conversation{}
	}
	s.writeJSON(w, http.StatusOK, conversations)
}

// handleCreateConversation handles POST /api/conversations.
func (s *Server) handleCreateConversation(w http.ResponseWriter, r *http.Request) {
	var req createConversationRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	if req.Model == "" {
		s.writeError(w, http.StatusBadRequest, "model is required")
		return
	}
	if req.Title == "" {
		req.Title = model.DefaultTitle
	}

	conv := model.NewConversation(req.Title, req.Model)
	if err := s.store.CreateConversation(conv); err != nil {
		log.Printf("STORE_ERROR | op=create_conversation error=%v", err)
		s.writeError(w, http.StatusInternalServerError, "Failed to create conversation")
		return
	}
	s.writeJSON(w, http.StatusCreated, conv)
}

// handleDeleteConversation handles DELETE /api/conversations/{id}.
func (s *Server) handleDeleteConversation(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	err := s.store.DeleteConversation(id)
	if errors.Is(err, store.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "Conversation not found")
		return
	}
	if err != nil {
		log.Printf("STORE_ERROR | op=delete_conversation id=%s error=%v", id, err)
		s.writeError(w, http.StatusInternalServerError, "Failed to delete conversation")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ============================================================================
// MESSAGE HANDLERS
// ============================================================================

type createMessageRequest struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// handleListMessages handles GET /api/conversations/{id}/messages.
func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	messages, err := s.store.GetMessages(id)
	if errors.Is(err, store.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "Conversation not found")
		return
	}
	if err != nil {
		log.Printf("STORE_ERROR | op=list_messages id=%s error=%v", id, err)
		s.writeError(w, http.StatusInternalServerError, "Failed to list messages")
		return
	}
	if messages == nil {
		messages = []model.Message{}
	}
	s.writeJSON(w, http.StatusOK, messages)
}

// handleCreateMessage handles POST /api/conversations/{id}/messages.
func (s *Server) handleCreateMessage(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req createMessageRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	role := model.Role(req.Role)
	if !role.Valid() {
		s.writeError(w, http.StatusBadRequest, "role must be one of user, assistant, system")
		return
	}
	if req.Content == "" {
		s.writeError(w, http.StatusBadRequest, "content is required")
		return
	}
	if len(req.Content) > MaxContentLength {
		s.writeError(w, http.StatusBadRequest,
			fmt.Sprintf("content exceeds maximum length of %d", MaxContentLength))
		return
	}

	msg := model.NewMessage(id, role, req.Content)
	err := s.store.CreateMessage(msg)
	if errors.Is(err, store.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "Conversation not found")
		return
	}
	if err != nil {
		log.Printf("STORE_ERROR | op=create_message id=%s error=%v", id, err)
		s.writeError(w, http.StatusInternalServerError, "Failed to create message")
		return
	}

	if role == model.RoleUser {
		s.maybeRetitle(id, req.Content)
	}

	s.writeJSON(w, http.StatusCreated, msg)
}

// maybeRetitle derives the conversation title from the first user
// message. Only conversations still carrying the default title are
// renamed, so explicit titles and later messages are left alone.
func (s *Server) maybeRetitle(id, content string) {
	conv, err := s.store.GetConversation(id)
	if err != nil || conv.Title != model.DefaultTitle {
		return
	}
	title := model.TitleFromContent(content)
	if title == model.DefaultTitle {
		return
	}
	if err := s.store.TouchConversation(id, title); err != nil {
		log.Printf("STORE_ERROR | op=retitle_conversation id=%s error=%v", id, err)
	}
}

// ============================================================================
// SETTINGS HANDLERS
// ============================================================================

// handleListSettings handles GET /api/settings.
func (s *Server) handleListSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := s.store.ListSettings()
	if err != nil {
		log.Printf("STORE_ERROR | op=list_settings error=%v", err)
		s.writeError(w, http.StatusInternalServerError, "Failed to list settings")
		return
	}
	if settings == nil {
		settings = []model.Setting{}
	}
	s.writeJSON(w, http.StatusOK, settings)
}

// handleSetSetting handles PUT /api/settings/{key}.
func (s *Server) handleSetSetting(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")

	var req struct {
		Value json.RawMessage `json:"value"`
	}
	if !s.decodeBody(w, r, &req) {
		return
	}
	if len(req.Value) == 0 {
		s.writeError(w, http.StatusBadRequest, "value is required")
		return
	}

	setting := model.Setting{Key: key, Value: req.Value}
	if err := s.store.SetSetting(setting); err != nil {
		if errors.Is(err, store.ErrInvalidInput) {
			s.writeError(w, http.StatusBadRequest, "value must be valid JSON")
			return
		}
		log.Printf("STORE_ERROR | op=set_setting key=%s error=%v", key, err)
		s.writeError(w, http.StatusInternalServerError, "Failed to save setting")
		return
	}

	// Echo the stored record so the response carries the write time.
	saved, err := s.store.GetSetting(key)
	if err != nil {
		saved = setting
	}
	s.writeJSON(w, http.StatusOK, saved)
}

// ============================================================================
// HELPERS
// ============================================================================

// decodeBody decodes a size-limited JSON request body into v. Writes the
// error response itself and returns false on failure.
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBodySize)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			s.writeError(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("Request body exceeds maximum size of %d bytes", MaxRequestBodySize))
			return false
		}
		log.Printf("BAD_REQUEST | path=%s error=%v", r.URL.Path, err)
		s.writeError(w, http.StatusBadRequest, "Invalid request format")
		return false
	}
	return true
}

// writeJSON writes a JSON response.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]any{
		"error": map[string]any{
			"message": message,
			"code":    status,
		},
	})
}
