// Copyright (c) 2025 Kyle Marwood
// SPDX-License-Identifier: AGPL-3.0-or-later

package ollama

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

// newFakeBackend starts an httptest server that streams the given
// fragments as Ollama ndjson chat lines.
func newFakeBackend(t *testing.T, fragments []string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/":
			w.WriteHeader(http.StatusOK)
		case "/api/tags":
			fmt.Fprint(w, `{"models":[{"name":"llama3.2","size":100},{"name":"mistral","size":200}]}`)
		case "/api/chat":
			w.Header().Set("Content-Type", "application/x-ndjson")
			for _, frag := range fragments {
				fmt.Fprintf(w, `{"model":"llama3.2","message":{"role":"assistant","content":%q},"done":false}`+"\n", frag)
			}
			fmt.Fprint(w, `{"model":"llama3.2","message":{"role":"assistant","content":""},"done":true,"eval_count":5}`+"\n")
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(baseURL string) *Client {
	return NewClientWithConfig(&ClientConfig{
		BaseURL:         baseURL,
		Timeout:         5 * time.Second,
		IdleReadTimeout: 5 * time.Second,
	})
}

func TestCheckHealth(t *testing.T) {
	srv := newFakeBackend(t, nil)
	client := newTestClient(srv.URL)

	if err := client.CheckHealth(context.Background()); err != nil {
		t.Errorf("CheckHealth against live backend: %v", err)
	}

	srv.Close()
	if err := client.CheckHealth(context.Background()); !IsNotRunning(err) {
		t.Errorf("CheckHealth against dead backend: %v, want not-running", err)
	}
}

func TestListModels(t *testing.T) {
	srv := newFakeBackend(t, nil)
	client := newTestClient(srv.URL)

	models := client.ListModels(context.Background())
	if len(models) != 2 {
		t.Fatalf("got %d models, want 2", len(models))
	}
	if models[0].Name != "llama3.2" || models[0].Size != 100 {
		t.Errorf("first model = %+v", models[0])
	}
}

func TestListModelsFailsSoft(t *testing.T) {
	client := newTestClient("http://127.0.0.1:1")
	if models := client.ListModels(context.Background()); len(models) != 0 {
		t.Errorf("dead backend returned %d models, want 0", len(models))
	}
}

func TestChatStreamAccumulates(t *testing.T) {
	srv := newFakeBackend(t, []string{"Hel", "lo"})
	client := newTestClient(srv.URL)

	var chunks []StreamChunk
	err := client.ChatStream(context.Background(), "llama3.2",
		[]Message{{Role: "user", Content: "hi"}}, nil,
		func(c StreamChunk) { chunks = append(chunks, c) })
	if err != nil {
		t.Fatalf("ChatStream: %v", err)
	}

	acc := NewStreamAccumulator()
	for _, c := range chunks {
		acc.Add(c)
	}
	if got := acc.Content(); got != "Hello" {
		t.Errorf("accumulated = %q, want Hello", got)
	}
	if !acc.IsDone() {
		t.Error("accumulator not done after final chunk")
	}
	last := chunks[len(chunks)-1]
	if !last.Done || last.CompletionTokens != 5 {
		t.Errorf("final chunk = %+v", last)
	}
}

func TestStreamReaderSkipsMalformedLines(t *testing.T) {
	body := strings.Join([]string{
		`{"message":{"content":"Hel"},"done":false}`,
		`{garbage not json`,
		``,
		`{"message":{"content":"lo"},"done":false}`,
		`{"message":{"content":""},"done":true}`,
	}, "\n") + "\n"

	reader := NewStreamReader(strings.NewReader(body))
	var contents []string
	err := reader.Process(context.Background(), func(c StreamChunk) {
		contents = append(contents, c.Content)
	})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if reader.Accumulated() != "Hello" {
		t.Errorf("accumulated = %q, want Hello", reader.Accumulated())
	}
	// Malformed and blank lines produce no chunks.
	if len(contents) != 3 {
		t.Errorf("got %d chunks, want 3", len(contents))
	}
}

func TestStreamReaderEOFWithoutDone(t *testing.T) {
	body := `{"message":{"content":"partial"},"done":false}` + "\n"
	reader := NewStreamReader(strings.NewReader(body))

	err := reader.Process(context.Background(), func(StreamChunk) {})
	if err != nil {
		t.Errorf("EOF should end the stream cleanly, got %v", err)
	}
	if reader.Accumulated() != "partial" {
		t.Errorf("accumulated = %q", reader.Accumulated())
	}
}

func TestChatStreamModelNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	err := client.ChatStream(context.Background(), "nope", nil, nil, func(StreamChunk) {})
	if !IsModelNotFound(err) {
		t.Errorf("err = %v, want model-not-found", err)
	}
}

func TestChatStreamBackendErrorMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, `{"error":"model requires more system memory"}`)
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	err := client.ChatStream(context.Background(), "big", nil, nil, func(StreamChunk) {})
	if err == nil || !strings.Contains(err.Error(), "more system memory") {
		t.Errorf("err = %v, want backend message surfaced", err)
	}
}

func TestChatStreamCancellation(t *testing.T) {
	started := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, `{"message":{"content":"x"},"done":false}`+"\n")
		w.(http.Flusher).Flush()
		close(started)
		<-r.Context().Done()
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		cancel()
	}()

	err := client.ChatStream(ctx, "llama3.2", nil, nil, func(StreamChunk) {})
	if err == nil {
		t.Error("cancelled stream returned nil error")
	}
}

func TestChatStreamChanDeliversError(t *testing.T) {
	client := newTestClient("http://127.0.0.1:1")
	ch := client.ChatStreamChan(context.Background(), "llama3.2", nil, nil)

	var last StreamChunk
	for chunk := range ch {
		last = chunk
	}
	if last.Error == nil {
		t.Fatal("expected error chunk from dead backend")
	}
	if !errors.As(last.Error, new(*ClientError)) {
		t.Errorf("error type = %T", last.Error)
	}
}

func TestDeleteModel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete || r.URL.Path != "/api/delete" {
			http.NotFound(w, r)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	if err := client.DeleteModel(context.Background(), "mistral"); err != nil {
		t.Errorf("DeleteModel: %v", err)
	}
}
