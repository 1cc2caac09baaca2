// Copyright (c) 2025 Kyle Marwood
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kmarwood/ollamaweb/internal/client"
	"github.com/kmarwood/ollamaweb/internal/config"
)

// =============================================================================
// MARKDOWN RENDERING TESTS
// =============================================================================

func TestRenderMarkdown_PlainFallback(t *testing.T) {
	saved := markdownRenderer
	markdownRenderer = nil
	defer func() { markdownRenderer = saved }()

	input := "# Heading\n\nSome **bold** text."
	if got := renderMarkdown(input); got != input {
		t.Errorf("expected passthrough without renderer, got %q", got)
	}
}

func TestRenderMarkdown_NonEmpty(t *testing.T) {
	if markdownRenderer == nil {
		t.Skip("glamour renderer unavailable")
	}

	got := renderMarkdown("Hello **world**")
	if !strings.Contains(got, "world") {
		t.Errorf("rendered output lost content: %q", got)
	}
}

// =============================================================================
// FORMAT HELPER TESTS
// =============================================================================

func TestFormatNumber(t *testing.T) {
	tests := []struct {
		n    int
		want string
	}{
		{0, "0"},
		{999, "999"},
		{1000, "1,000"},
		{1234567, "1,234,567"},
	}

	for _, tt := range tests {
		if got := formatNumber(tt.n); got != tt.want {
			t.Errorf("formatNumber(%d) = %q, want %q", tt.n, got, tt.want)
		}
	}
}

// =============================================================================
// EXPORT COMMAND TESTS
// =============================================================================

func TestExportWorksWithDegradedBackend(t *testing.T) {
	// Server up, Ollama down. Export reads the store and must not care.
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ollama":false}`))
	})
	mux.HandleFunc("GET /api/conversations", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[]`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	err := HandleExport(config.Default(), ExportArgs{ServerURL: srv.URL})
	if err != nil {
		t.Errorf("export with degraded backend: %v", err)
	}
}

func TestExportRequiresReachableServer(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	err := HandleExport(config.Default(), ExportArgs{ServerURL: srv.URL})
	if err == nil {
		t.Error("expected error when the server is unreachable")
	}
}

// =============================================================================
// SLASH COMMAND TESTS
// =============================================================================

func newTestSession() *ChatSession {
	return &ChatSession{
		API:            client.New("http://127.0.0.1:0"),
		ConversationID: "conv_abcd1234",
		Model:          "llama3.2",
		Quiet:          true,
		StartTime:      time.Now(),
	}
}

func TestSlashCommand_Quit(t *testing.T) {
	session := newTestSession()

	for _, cmd := range []string{"/quit", "/q", "/exit"} {
		cont, err := handleSlashCommand(cmd, session)
		if err != nil {
			t.Errorf("%s returned error: %v", cmd, err)
		}
		if cont {
			t.Errorf("%s should end the session", cmd)
		}
	}
}

func TestSlashCommand_Unknown(t *testing.T) {
	session := newTestSession()

	cont, err := handleSlashCommand("/bogus", session)
	if err == nil {
		t.Error("expected error for unknown command")
	}
	if !cont {
		t.Error("unknown command should not end the session")
	}
}

func TestSlashCommand_ModelShowsCurrent(t *testing.T) {
	session := newTestSession()

	cont, err := handleSlashCommand("/model", session)
	if err != nil {
		t.Fatalf("/model: %v", err)
	}
	if !cont {
		t.Error("/model should not end the session")
	}
	if session.Model != "llama3.2" {
		t.Errorf("bare /model must not change the model, got %s", session.Model)
	}
}

func TestSlashCommand_ModelSwitch(t *testing.T) {
	session := newTestSession()

	// Catalog lookup fails against the dead endpoint; the switch still
	// happens with a warning.
	cont, err := handleSlashCommand("/model mistral", session)
	if err != nil {
		t.Fatalf("/model mistral: %v", err)
	}
	if !cont {
		t.Error("/model should not end the session")
	}
	if session.Model != "mistral" {
		t.Errorf("model = %s, want mistral", session.Model)
	}
}

func TestSlashCommand_HelpVariants(t *testing.T) {
	session := newTestSession()

	for _, cmd := range []string{"/help", "/h", "/?", "/"} {
		cont, err := handleSlashCommand(cmd, session)
		if err != nil {
			t.Errorf("%s returned error: %v", cmd, err)
		}
		if !cont {
			t.Errorf("%s should not end the session", cmd)
		}
	}
}
