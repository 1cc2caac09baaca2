// ollamaweb - a web and terminal chat client for local Ollama models.
//
// Copyright (c) 2025 Kyle Marwood
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/kmarwood/ollamaweb/internal/cli"
	"github.com/kmarwood/ollamaweb/internal/client"
	"github.com/kmarwood/ollamaweb/internal/config"
	"github.com/kmarwood/ollamaweb/internal/ollama"
	"github.com/kmarwood/ollamaweb/internal/server"
	"github.com/kmarwood/ollamaweb/internal/store"
	"github.com/kmarwood/ollamaweb/internal/ui/chat"
	"github.com/kmarwood/ollamaweb/internal/ui/styles"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func main() {
	args := os.Args[1:]

	cmd := ""
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		cmd = args[0]
		args = args[1:]
	}

	var err error
	switch cmd {
	case "", "tui":
		err = runTUI(args)
	case "serve":
		err = runServe(args)
	case "ask":
		err = runAsk(args)
	case "chat":
		err = runChat(args)
	case "export":
		err = runExport(args)
	case "version":
		fmt.Printf("ollamaweb %s (commit %s, built %s)\n", Version, GitCommit, BuildDate)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", cmd)
		printUsage()
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Print(`ollamaweb - chat with local Ollama models

Usage:
  ollamaweb [tui]           Start the terminal chat interface (default)
  ollamaweb serve           Run the web chat server
  ollamaweb ask <prompt>    Ask a one-shot question (no server needed)
  ollamaweb chat            Interactive REPL against a running server
  ollamaweb export          Export a conversation to markdown or JSON
  ollamaweb version         Print version information

Flags (serve):
  -port N        Listen port (default from config)
  -db PATH       SQLite database path
  -watch         Reload config.toml on change

Flags (ask, chat, tui):
  -model NAME    Model to use
  -server URL    Server address (chat, tui)
  -quiet         Suppress stats output
`)
}

// =============================================================================
// SERVE
// =============================================================================

func runServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	port := fs.Int("port", 0, "listen port")
	dbPath := fs.String("db", "", "sqlite database path")
	watch := fs.Bool("watch", false, "reload config.toml on change")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *dbPath != "" {
		cfg.Storage.DatabasePath = *dbPath
	}

	path, err := cfg.DatabasePath()
	if err != nil {
		return fmt.Errorf("resolve database path: %w", err)
	}

	st, err := store.Open(path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	backend := ollama.NewClientWithConfig(&ollama.ClientConfig{
		BaseURL:         cfg.Backend.URL,
		DefaultModel:    cfg.Backend.DefaultModel,
		Timeout:         time.Duration(cfg.Backend.TimeoutSecs) * time.Second,
		IdleReadTimeout: time.Duration(cfg.Backend.IdleReadTimeoutSecs) * time.Second,
	})

	srv := server.NewServer(cfg.Server.Port, st, backend)

	if *watch {
		cfgPath, err := config.ConfigPath()
		if err == nil {
			w, werr := config.NewWatcher(cfgPath, func(next *config.Config) {
				// Port and storage changes need a restart; backend and
				// UI settings apply to new requests.
				log.Printf("CONFIG_APPLIED | backend_url=%s model=%s",
					next.Backend.URL, next.Backend.DefaultModel)
			})
			if werr != nil {
				log.Printf("CONFIG_WATCH_UNAVAILABLE | error=%v", werr)
			} else if werr = w.Watch(); werr != nil {
				log.Printf("CONFIG_WATCH_UNAVAILABLE | error=%v", werr)
			} else {
				defer w.Close()
			}
		}
	}

	// Serve until interrupted, then drain for up to 10 seconds.
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		log.Printf("SERVER_SHUTDOWN | signal=%s", sig)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(ctx)
	}
}

// =============================================================================
// ASK
// =============================================================================

func runAsk(args []string) error {
	fs := flag.NewFlagSet("ask", flag.ExitOnError)
	modelName := fs.String("model", "", "model to use")
	quiet := fs.Bool("quiet", false, "suppress stats output")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	return cli.HandleAsk(cfg, cli.AskArgs{
		Model:  *modelName,
		Prompt: strings.Join(fs.Args(), " "),
		Quiet:  *quiet,
	})
}

// =============================================================================
// CHAT
// =============================================================================

func runChat(args []string) error {
	fs := flag.NewFlagSet("chat", flag.ExitOnError)
	modelName := fs.String("model", "", "model to use")
	serverURL := fs.String("server", "", "server address")
	quiet := fs.Bool("quiet", false, "suppress stats output")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	return cli.HandleChat(cfg, cli.ChatArgs{
		ServerURL: *serverURL,
		Model:     *modelName,
		Quiet:     *quiet,
	})
}

// =============================================================================
// EXPORT
// =============================================================================

func runExport(args []string) error {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	id := fs.String("id", "", "conversation ID")
	format := fs.String("format", "markdown", "output format (markdown or json)")
	out := fs.String("out", "", "output directory")
	serverURL := fs.String("server", "", "server address")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	return cli.HandleExport(cfg, cli.ExportArgs{
		ServerURL:      *serverURL,
		ConversationID: *id,
		Format:         *format,
		OutputDir:      *out,
	})
}

// =============================================================================
// TUI
// =============================================================================

func runTUI(args []string) error {
	fs := flag.NewFlagSet("tui", flag.ExitOnError)
	modelName := fs.String("model", "", "model to use")
	serverURL := fs.String("server", "", "server address")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if !cli.IsTTY() {
		return fmt.Errorf("the TUI needs a terminal; try 'ollamaweb ask' for piped use")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	addr := *serverURL
	if addr == "" {
		addr = fmt.Sprintf("http://127.0.0.1:%d", cfg.Server.Port)
	}
	name := *modelName
	if name == "" {
		name = cfg.Backend.DefaultModel
	}

	api := client.New(addr)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	up, err := api.Health(ctx)
	cancel()
	if err != nil {
		return fmt.Errorf("ollamaweb server is not reachable at %s. Start it with: ollamaweb serve", addr)
	}
	if !up {
		// Server is up but Ollama is not; the status bar tracks this.
		fmt.Fprintln(os.Stderr, "Warning: inference backend is unavailable. Start it with: ollama serve")
	}

	m := chat.New(styles.NewTheme(), api, name)
	program := tea.NewProgram(m, tea.WithAltScreen())
	_, err = program.Run()
	return err
}
