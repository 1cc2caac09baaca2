// Copyright (c) 2025 Kyle Marwood
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package client is a typed HTTP client for the chat API. The TUI and
// the REPL talk to the server through it instead of issuing raw
// requests.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/kmarwood/ollamaweb/internal/model"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrNotFound is returned for 404 responses.
	ErrNotFound = errors.New("not found")

	// ErrServerUnavailable is returned when the server cannot be reached.
	ErrServerUnavailable = errors.New("server unavailable")
)

// APIError carries the server's structured error payload.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

// =============================================================================
// CLIENT
// =============================================================================

// Client talks to one chat API server. Safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a client for the given base URL, e.g.
// "http://127.0.0.1:8787".
func New(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Health reports whether the inference backend is reachable through
// the server. Never returns an error for a degraded backend, only for
// an unreachable server.
func (c *Client) Health(ctx context.Context) (bool, error) {
	var resp struct {
		Ollama bool `json:"ollama"`
	}
	if err := c.get(ctx, "/api/health", &resp); err != nil {
		return false, err
	}
	return resp.Ollama, nil
}

// =============================================================================
// CONVERSATIONS
// =============================================================================

// ListConversations returns all conversations, most recent first.
func (c *Client) ListConversations(ctx context.Context) ([]model.Conversation, error) {
	var out []model.Conversation
	if err := c.get(ctx, "/api/conversations", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateConversation creates a conversation with the given title and
// model.
func (c *Client) CreateConversation(ctx context.Context, title, modelName string) (model.Conversation, error) {
	var out model.Conversation
	body := map[string]string{"title": title, "model": modelName}
	if err := c.post(ctx, "/api/conversations", body, &out); err != nil {
		return model.Conversation{}, err
	}
	return out, nil
}

// DeleteConversation deletes a conversation and its messages.
func (c *Client) DeleteConversation(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/conversations/"+id, nil, nil)
}

// =============================================================================
// MESSAGES
// =============================================================================

// GetMessages returns a conversation's messages in chronological order.
func (c *Client) GetMessages(ctx context.Context, conversationID string) ([]model.Message, error) {
	var out []model.Message
	if err := c.get(ctx, "/api/conversations/"+conversationID+"/messages", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateMessage appends a message to a conversation.
func (c *Client) CreateMessage(ctx context.Context, conversationID string, role model.Role, content string) (model.Message, error) {
	var out model.Message
	body := map[string]string{"role": string(role), "content": content}
	if err := c.post(ctx, "/api/conversations/"+conversationID+"/messages", body, &out); err != nil {
		return model.Message{}, err
	}
	return out, nil
}

// =============================================================================
// MODELS
// =============================================================================

// ListModels returns the model catalog, synced against the backend.
func (c *Client) ListModels(ctx context.Context) ([]model.ModelRecord, error) {
	var out []model.ModelRecord
	if err := c.get(ctx, "/api/models", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// PullModel asks the server to download a model.
func (c *Client) PullModel(ctx context.Context, name string) error {
	return c.post(ctx, "/api/models/pull", map[string]string{"name": name}, nil)
}

// DeleteModel removes a model from the backend and the catalog.
func (c *Client) DeleteModel(ctx context.Context, name string) error {
	return c.do(ctx, http.MethodDelete, "/api/models/"+name, nil, nil)
}

// =============================================================================
// SETTINGS
// =============================================================================

// ListSettings returns all settings.
func (c *Client) ListSettings(ctx context.Context) ([]model.Setting, error) {
	var out []model.Setting
	if err := c.get(ctx, "/api/settings", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SetSetting upserts one setting.
func (c *Client) SetSetting(ctx context.Context, key string, value any) error {
	return c.do(ctx, http.MethodPut, "/api/settings/"+key, map[string]any{"value": value}, nil)
}

// =============================================================================
// HELPERS
// =============================================================================

func (c *Client) get(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPost, path, body, out)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrServerUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode >= 400 {
		return decodeAPIError(resp)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	var payload struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err == nil && payload.Error.Message != "" {
		return &APIError{Status: resp.StatusCode, Message: payload.Error.Message}
	}
	return &APIError{Status: resp.StatusCode, Message: resp.Status}
}
