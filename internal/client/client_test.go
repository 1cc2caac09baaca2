// Copyright (c) 2025 Kyle Marwood
// SPDX-License-Identifier: AGPL-3.0-or-later

package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kmarwood/ollamaweb/internal/model"
)

func TestSSEReader(t *testing.T) {
	body := "data: {\"content\":\"Hel\",\"done\":false}\n\n" +
		": comment line\n" +
		"data: {\"content\":\"lo\",\"done\":false}\n\n" +
		"data: {\"content\":\"\",\"done\":true}\n\n"

	reader := NewSSEReader(strings.NewReader(body))

	var events []string
	for {
		data, err := reader.ReadEvent()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("ReadEvent: %v", err)
		}
		events = append(events, string(data))
	}

	want := []string{
		`{"content":"Hel","done":false}`,
		`{"content":"lo","done":false}`,
		`{"content":"","done":true}`,
	}
	if len(events) != len(want) {
		t.Fatalf("got %d events %v, want %d", len(events), events, len(want))
	}
	for i := range want {
		if events[i] != want[i] {
			t.Errorf("event %d = %q, want %q", i, events[i], want[i])
		}
	}
}

func TestSSEReaderTrailingEventBeforeEOF(t *testing.T) {
	// Final event not terminated by a blank line.
	reader := NewSSEReader(strings.NewReader("data: {\"content\":\"\",\"done\":true}\n"))
	data, err := reader.ReadEvent()
	if err != nil {
		t.Fatalf("ReadEvent: %v", err)
	}
	if string(data) != `{"content":"","done":true}` {
		t.Errorf("data = %s", data)
	}
	if _, err := reader.ReadEvent(); err != io.EOF {
		t.Errorf("second read err = %v, want EOF", err)
	}
}

func TestChatFrameSequence(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/conversations/conv_abc12345/chat" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"content\":\"Hel\",\"done\":false}\n\n")
		fmt.Fprint(w, "data: {\"content\":\"lo\",\"done\":false}\n\n")
		fmt.Fprint(w, "data: {\"content\":\"\",\"done\":true}\n\n")
	}))
	defer srv.Close()

	c := New(srv.URL)
	var frames []model.StreamFrame
	err := c.Chat(context.Background(), "conv_abc12345", ChatOptions{},
		func(f model.StreamFrame) { frames = append(frames, f) })
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}

	if len(frames) != 3 {
		t.Fatalf("got %d frames, want 3: %+v", len(frames), frames)
	}
	if frames[0].Content != "Hel" || frames[1].Content != "lo" || !frames[2].Done {
		t.Errorf("frames = %+v", frames)
	}
}

func TestChatErrorFrame(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"error\":\"backend unreachable\"}\n\n")
	}))
	defer srv.Close()

	c := New(srv.URL)
	var frames []model.StreamFrame
	err := c.Chat(context.Background(), "conv_abc12345", ChatOptions{},
		func(f model.StreamFrame) { frames = append(frames, f) })
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if len(frames) != 1 || frames[0].Error != "backend unreachable" {
		t.Errorf("frames = %+v", frames)
	}
}

func TestChatNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	c := New(srv.URL)
	err := c.Chat(context.Background(), "conv_missing1", ChatOptions{}, func(model.StreamFrame) {})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestCRUDRoundTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.Method + " " + r.URL.Path {
		case "POST /api/conversations":
			w.WriteHeader(http.StatusCreated)
			fmt.Fprint(w, `{"id":"conv_abc12345","title":"Test","model":"llama3.2"}`)
		case "GET /api/conversations":
			fmt.Fprint(w, `[{"id":"conv_abc12345","title":"Test","model":"llama3.2"}]`)
		case "GET /api/health":
			fmt.Fprint(w, `{"ollama":true}`)
		case "PUT /api/settings/temperature":
			fmt.Fprint(w, `{"key":"temperature","value":0.5}`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := New(srv.URL)
	ctx := context.Background()

	conv, err := c.CreateConversation(ctx, "Test", "llama3.2")
	if err != nil {
		t.Fatalf("CreateConversation: %v", err)
	}
	if conv.ID != "conv_abc12345" {
		t.Errorf("conv = %+v", conv)
	}

	list, err := c.ListConversations(ctx)
	if err != nil || len(list) != 1 {
		t.Errorf("list = %v, err = %v", list, err)
	}

	ok, err := c.Health(ctx)
	if err != nil || !ok {
		t.Errorf("health = %v, err = %v", ok, err)
	}

	if err := c.SetSetting(ctx, "temperature", 0.5); err != nil {
		t.Errorf("SetSetting: %v", err)
	}
}

func TestAPIErrorDecoding(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":{"message":"model is required","code":400}}`)
	}))
	defer srv.Close()

	c := New(srv.URL)
	_, err := c.CreateConversation(context.Background(), "x", "")

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want *APIError", err)
	}
	if apiErr.Status != http.StatusBadRequest || apiErr.Message != "model is required" {
		t.Errorf("apiErr = %+v", apiErr)
	}
}

func TestServerUnavailable(t *testing.T) {
	c := New("http://127.0.0.1:1")
	_, err := c.ListConversations(context.Background())
	if !errors.Is(err, ErrServerUnavailable) {
		t.Errorf("err = %v, want ErrServerUnavailable", err)
	}
}
