// Copyright (c) 2025 Kyle Marwood
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"

	"github.com/kmarwood/ollamaweb/internal/config"
	"github.com/kmarwood/ollamaweb/internal/ollama"
)

// =============================================================================
// MARKDOWN RENDERING
// =============================================================================

// markdownRenderer is the global glamour renderer for markdown output.
var markdownRenderer *glamour.TermRenderer

func init() {
	var err error
	markdownRenderer, err = glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(80),
	)
	if err != nil {
		// Fall back to plain text if renderer initialization fails
		markdownRenderer = nil
	}
}

// renderMarkdown renders markdown content for terminal display.
// Returns the original content if rendering fails or the renderer is
// unavailable.
func renderMarkdown(content string) string {
	if markdownRenderer == nil {
		return content
	}

	rendered, err := markdownRenderer.Render(content)
	if err != nil {
		return content
	}
	return rendered
}

// displayResponse prints a response, rendering markdown only when stdout
// is a TTY so piped output stays clean.
func displayResponse(response string) {
	if IsStdoutTTY() {
		fmt.Print(renderMarkdown(response))
	} else {
		fmt.Print(response)
	}
}

// streamToStdout writes a single token without buffering.
func streamToStdout(token string) {
	fmt.Print(token)
}

// =============================================================================
// ASK COMMAND
// =============================================================================

// AskArgs holds the options for a one-shot question.
type AskArgs struct {
	Model  string
	Prompt string
	Quiet  bool
}

// HandleAsk sends a single prompt straight to the Ollama backend and
// prints the response. It does not touch the server or the database, so
// it works even when ollamaweb serve is not running.
func HandleAsk(cfg *config.Config, args AskArgs) error {
	prompt := strings.TrimSpace(args.Prompt)
	if prompt == "" {
		return fmt.Errorf("nothing to ask: provide a prompt")
	}

	client := ollama.NewClientWithConfig(&ollama.ClientConfig{
		BaseURL:         cfg.Backend.URL,
		DefaultModel:    cfg.Backend.DefaultModel,
		Timeout:         time.Duration(cfg.Backend.TimeoutSecs) * time.Second,
		IdleReadTimeout: time.Duration(cfg.Backend.IdleReadTimeoutSecs) * time.Second,
	})

	ctx := context.Background()
	if err := client.CheckHealth(ctx); err != nil {
		return fmt.Errorf("Ollama is not running at %s. Start it with: ollama serve", cfg.Backend.URL)
	}

	modelName := args.Model
	if modelName == "" {
		modelName = cfg.Backend.DefaultModel
	}

	messages := []ollama.Message{
		{Role: "user", Content: prompt},
	}

	// Collect and render at the end on a TTY; stream raw tokens when piped.
	useMarkdown := IsStdoutTTY()

	start := time.Now()
	accumulator := ollama.NewStreamAccumulator()
	var promptTokens, completionTokens int

	err := client.ChatStream(ctx, modelName, messages, nil, func(chunk ollama.StreamChunk) {
		if chunk.Error != nil {
			fmt.Fprintf(os.Stderr, "\n%s %v\n", errorStyle.Render("[Error]"), chunk.Error)
			return
		}

		if !useMarkdown {
			streamToStdout(chunk.Content)
		}
		accumulator.Add(chunk)

		if chunk.Done {
			promptTokens = chunk.PromptTokens
			completionTokens = chunk.CompletionTokens
		}
	})
	if err != nil {
		return fmt.Errorf("streaming failed: %w", err)
	}
	if streamErr := accumulator.Err(); streamErr != nil {
		return fmt.Errorf("generation failed: %w", streamErr)
	}

	if useMarkdown {
		displayResponse(accumulator.Content())
	}
	fmt.Println()

	if !args.Quiet {
		fmt.Fprintf(os.Stderr, "%s %s | %s tokens | %s\n",
			infoStyle.Render("[Stats]"),
			commandStyle.Render(modelName),
			formatNumber(promptTokens+completionTokens),
			time.Since(start).Round(time.Millisecond))
	}

	return nil
}

// formatNumber formats an integer with comma separators.
func formatNumber(n int) string {
	if n < 1000 {
		return fmt.Sprintf("%d", n)
	}

	s := fmt.Sprintf("%d", n)
	result := make([]byte, 0, len(s)+len(s)/3)

	for i, c := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			result = append(result, ',')
		}
		result = append(result, byte(c))
	}

	return string(result)
}
