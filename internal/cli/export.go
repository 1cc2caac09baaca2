// Copyright (c) 2025 Kyle Marwood
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/kmarwood/ollamaweb/internal/client"
	"github.com/kmarwood/ollamaweb/internal/config"
	"github.com/kmarwood/ollamaweb/internal/export"
)

// =============================================================================
// EXPORT COMMAND
// =============================================================================

// ExportArgs holds the options for exporting a conversation.
type ExportArgs struct {
	ServerURL      string
	ConversationID string
	Format         string
	OutputDir      string
}

// HandleExport writes a stored conversation to a file. With no
// conversation ID it lists the conversations available for export.
func HandleExport(cfg *config.Config, args ExportArgs) error {
	serverURL := args.ServerURL
	if serverURL == "" {
		serverURL = fmt.Sprintf("http://127.0.0.1:%d", cfg.Server.Port)
	}
	api := client.New(serverURL)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Only server reachability matters here; exports read the store
	// and never touch the inference backend.
	if _, err := api.Health(ctx); err != nil {
		return fmt.Errorf("ollamaweb server is not reachable. Start it with: ollamaweb serve")
	}

	if args.ConversationID == "" {
		return listExportable(ctx, api)
	}

	conversations, err := api.ListConversations(ctx)
	if err != nil {
		return fmt.Errorf("list conversations: %w", err)
	}

	idx := -1
	for i, conv := range conversations {
		if conv.ID == args.ConversationID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("conversation %s not found", args.ConversationID)
	}

	messages, err := api.GetMessages(ctx, args.ConversationID)
	if err != nil {
		return fmt.Errorf("load messages: %w", err)
	}

	opts := export.DefaultOptions()
	if args.OutputDir != "" {
		opts.OutputDir = args.OutputDir
	}

	format := args.Format
	if format == "" {
		format = "markdown"
	}
	exporter, err := export.ForFormat(format, opts)
	if err != nil {
		return err
	}

	path, err := export.ExportToFile(conversations[idx], messages, exporter, opts)
	if err != nil {
		return err
	}

	fmt.Printf("%s Exported %d messages to %s\n",
		commandStyle.Render("[OK]"),
		len(messages),
		commandStyle.Render(path))
	return nil
}

// listExportable prints the conversations available for export.
func listExportable(ctx context.Context, api *client.Client) error {
	conversations, err := api.ListConversations(ctx)
	if err != nil {
		return fmt.Errorf("list conversations: %w", err)
	}
	if len(conversations) == 0 {
		fmt.Println(infoStyle.Render("[No conversations to export]"))
		return nil
	}

	fmt.Println()
	fmt.Println(summaryHeaderStyle.Render("Conversations"))
	fmt.Println(infoStyle.Render(strings.Repeat("─", 20)))
	for _, conv := range conversations {
		title := conv.Title
		if title == "" {
			title = "(untitled)"
		}
		fmt.Printf("  %s  %s  %s\n",
			commandStyle.Render(conv.ID),
			title,
			infoStyle.Render(humanize.Time(conv.UpdatedAt)))
	}
	fmt.Println()
	fmt.Println(infoStyle.Render("Run: ollamaweb export -id <conversation-id>"))
	return nil
}
