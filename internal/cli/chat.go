// Copyright (c) 2025 Kyle Marwood
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/peterh/liner"

	"github.com/kmarwood/ollamaweb/internal/client"
	"github.com/kmarwood/ollamaweb/internal/config"
	"github.com/kmarwood/ollamaweb/internal/model"
	"github.com/kmarwood/ollamaweb/internal/util"
)

// =============================================================================
// INPUT HISTORY
// =============================================================================

// ChatCLI provides input history and line editing for interactive chat.
type ChatCLI struct {
	line        *liner.State
	historyFile string
}

// NewChatCLI creates a ChatCLI with history loaded from the config
// directory.
func NewChatCLI() *ChatCLI {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	configDir, err := config.ConfigDir()
	if err != nil {
		configDir = os.TempDir()
	}

	c := &ChatCLI{
		line:        line,
		historyFile: filepath.Join(configDir, "chat_history"),
	}
	c.LoadHistory()
	return c
}

// LoadHistory loads input history from file.
func (c *ChatCLI) LoadHistory() {
	if f, err := os.Open(c.historyFile); err == nil {
		c.line.ReadHistory(f)
		f.Close()
	}
}

// ReadInput reads a line of input with the given prompt. Arrow keys
// navigate history.
func (c *ChatCLI) ReadInput(prompt string) (string, error) {
	input, err := c.line.Prompt(prompt)
	if err != nil {
		return "", err
	}

	if strings.TrimSpace(input) != "" {
		c.line.AppendHistory(input)
	}
	return input, nil
}

// SaveHistory persists input history with owner-only permissions.
func (c *ChatCLI) SaveHistory() {
	dir := filepath.Dir(c.historyFile)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return
	}

	f, err := os.OpenFile(c.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return
	}
	defer f.Close()

	c.line.WriteHistory(f)
}

// Close saves history and releases the terminal.
func (c *ChatCLI) Close() {
	c.SaveHistory()
	c.line.Close()
}

// =============================================================================
// SESSION STATE
// =============================================================================

// ChatArgs holds the options for an interactive chat session.
type ChatArgs struct {
	ServerURL string
	Model     string
	Quiet     bool
}

// ChatSession holds the state of one interactive chat session against a
// running ollamaweb server.
type ChatSession struct {
	API            *client.Client
	ConversationID string
	Model          string
	Quiet          bool

	// Local view of the transcript, kept in sync with the server.
	Transcript []model.Message

	StartTime  time.Time
	TurnCount  int
	CancelFunc context.CancelFunc

	InputCLI *ChatCLI
}

// NewChatSession creates a session against the server at args.ServerURL.
func NewChatSession(cfg *config.Config, args ChatArgs) *ChatSession {
	serverURL := args.ServerURL
	if serverURL == "" {
		serverURL = fmt.Sprintf("http://127.0.0.1:%d", cfg.Server.Port)
	}

	modelName := args.Model
	if modelName == "" {
		modelName = cfg.Backend.DefaultModel
	}

	return &ChatSession{
		API:       client.New(serverURL),
		Model:     modelName,
		Quiet:     args.Quiet,
		StartTime: time.Now(),
		InputCLI:  NewChatCLI(),
	}
}

// =============================================================================
// CHAT HANDLER
// =============================================================================

// HandleChat runs the interactive REPL. It needs a running ollamaweb
// server; conversations started here show up in the web UI too.
func HandleChat(cfg *config.Config, args ChatArgs) error {
	session := NewChatSession(cfg, args)
	defer session.InputCLI.Close()

	ctx := context.Background()
	up, err := session.API.Health(ctx)
	if err != nil {
		return fmt.Errorf("ollamaweb server is not reachable. Start it with: ollamaweb serve")
	}
	if !up {
		// Degraded backend: turns will fail until Ollama comes back,
		// but the session itself still works.
		fmt.Fprintf(os.Stderr, "%s Inference backend is unavailable. Start it with: ollama serve\n",
			warningStyle.Render("[Warning]"))
	}

	conv, err := session.API.CreateConversation(ctx, "", session.Model)
	if err != nil {
		return fmt.Errorf("create conversation: %w", err)
	}
	session.ConversationID = conv.ID
	session.Model = conv.Model

	if !session.Quiet {
		printWelcome(session)
	}

	// First Ctrl+C during generation cancels the stream instead of
	// killing the process.
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		for range sigChan {
			if session.CancelFunc != nil {
				session.CancelFunc()
				session.CancelFunc = nil
				fmt.Fprintln(os.Stderr, "\n"+warningStyle.Render("[Cancelled]"))
			}
		}
	}()

	for {
		input, err := session.InputCLI.ReadInput(promptStyle.Render("ollamaweb> "))
		if err != nil {
			// Ctrl+C at the prompt or EOF (Ctrl+D) ends the session.
			if !errors.Is(err, liner.ErrPromptAborted) && !errors.Is(err, io.EOF) {
				fmt.Fprintf(os.Stderr, "%s %v\n", errorStyle.Render("[Error]"), err)
			}
			fmt.Println()
			printExitSummary(session)
			return nil
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}

		if strings.HasPrefix(input, "/") {
			shouldContinue, err := handleSlashCommand(input, session)
			if err != nil {
				fmt.Fprintf(os.Stderr, "%s %v\n", errorStyle.Render("[Error]"), err)
			}
			if !shouldContinue {
				printExitSummary(session)
				return nil
			}
			continue
		}

		if strings.EqualFold(input, "exit") || strings.EqualFold(input, "quit") {
			printExitSummary(session)
			return nil
		}

		if err := processMessage(session, input); err != nil {
			fmt.Fprintf(os.Stderr, "%s %v\n", errorStyle.Render("[Error]"), err)
		}
	}
}

// =============================================================================
// MESSAGE PROCESSING
// =============================================================================

// processMessage persists the user turn, streams the reply, and prints it.
func processMessage(session *ChatSession, input string) error {
	ctx, cancel := context.WithCancel(context.Background())
	session.CancelFunc = cancel
	defer func() {
		session.CancelFunc = nil
		cancel()
	}()

	userMsg, err := session.API.CreateMessage(ctx, session.ConversationID, model.RoleUser, input)
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	session.Transcript = append(session.Transcript, userMsg)

	// Collect and render markdown at the end on a TTY; stream raw
	// tokens when piped.
	useMarkdown := IsStdoutTTY()

	fmt.Println()

	start := time.Now()
	var reply strings.Builder
	var streamErr error

	err = session.API.Chat(ctx, session.ConversationID, client.ChatOptions{Model: session.Model},
		func(frame model.StreamFrame) {
			if frame.Error != "" {
				streamErr = errors.New(frame.Error)
				return
			}
			if frame.Content != "" {
				reply.WriteString(frame.Content)
				if !useMarkdown {
					streamToStdout(frame.Content)
				}
			}
		})
	if err != nil {
		return fmt.Errorf("streaming failed: %w", err)
	}
	if streamErr != nil {
		// The server discarded the partial reply, so drop it here too.
		return fmt.Errorf("generation failed: %w", streamErr)
	}

	if useMarkdown {
		displayResponse(reply.String())
	}
	fmt.Println()
	fmt.Println()

	session.Transcript = append(session.Transcript,
		model.NewMessage(session.ConversationID, model.RoleAssistant, reply.String()))
	session.TurnCount++

	if !session.Quiet {
		fmt.Fprintf(os.Stderr, "%s %s | %s\n",
			infoStyle.Render("[Stats]"),
			commandStyle.Render(session.Model),
			time.Since(start).Round(time.Millisecond))
	}

	return nil
}

// =============================================================================
// SLASH COMMANDS
// =============================================================================

// handleSlashCommand processes slash commands. Returns false when the
// session should end.
func handleSlashCommand(cmd string, session *ChatSession) (bool, error) {
	parts := strings.Fields(cmd)
	if len(parts) == 0 {
		return true, nil
	}

	command := strings.ToLower(parts[0])
	args := parts[1:]

	switch command {
	case "/help", "/h", "/?", "/":
		printHelp()
		return true, nil

	case "/new", "/clear", "/c":
		return handleNewCommand(session)

	case "/model", "/m":
		return handleModelCommand(session, args)

	case "/models":
		return handleModelsCommand(session)

	case "/history":
		printHistory(session)
		return true, nil

	case "/status", "/s":
		printStatus(session)
		return true, nil

	case "/quit", "/q", "/exit":
		return false, nil

	default:
		return true, fmt.Errorf("unknown command: %s (type /help for commands)", command)
	}
}

// handleNewCommand starts a fresh conversation on the server.
func handleNewCommand(session *ChatSession) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conv, err := session.API.CreateConversation(ctx, "", session.Model)
	if err != nil {
		return true, fmt.Errorf("create conversation: %w", err)
	}

	session.ConversationID = conv.ID
	session.Transcript = session.Transcript[:0]
	fmt.Println(commandStyle.Render("[New conversation]") + " " + infoStyle.Render(conv.ID))
	return true, nil
}

// handleModelCommand shows or switches the session model.
func handleModelCommand(session *ChatSession, args []string) (bool, error) {
	if len(args) == 0 {
		fmt.Printf("%s Current model: %s\n",
			infoStyle.Render("[Model]"),
			commandStyle.Render(session.Model))
		return true, nil
	}

	newModel := args[0]

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	known := false
	if models, err := session.API.ListModels(ctx); err == nil {
		for _, m := range models {
			if m.Name == newModel {
				known = true
				break
			}
		}
	}
	if !known {
		fmt.Fprintf(os.Stderr, "%s Model '%s' not in the catalog, will attempt to use anyway\n",
			warningStyle.Render("[Warning]"), newModel)
	}

	session.Model = newModel
	fmt.Printf("%s Switched to model: %s\n", commandStyle.Render("[OK]"), newModel)
	return true, nil
}

// handleModelsCommand lists the server's model catalog.
func handleModelsCommand(session *ChatSession) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	models, err := session.API.ListModels(ctx)
	if err != nil {
		return true, fmt.Errorf("list models: %w", err)
	}
	if len(models) == 0 {
		fmt.Println(infoStyle.Render("[No models installed]"))
		return true, nil
	}

	fmt.Println()
	fmt.Println(summaryHeaderStyle.Render("Installed Models"))
	fmt.Println(infoStyle.Render(strings.Repeat("─", 20)))
	for _, m := range models {
		marker := " "
		if m.Name == session.Model {
			marker = commandStyle.Render("*")
		}
		status := ""
		if !m.IsAvailable {
			status = " " + warningStyle.Render("(unavailable)")
		}
		fmt.Printf("  %s %s  %s%s\n", marker, commandStyle.Render(m.Name),
			infoStyle.Render(m.SizeHuman()), status)
	}
	fmt.Println()
	return true, nil
}

// =============================================================================
// DISPLAY FUNCTIONS
// =============================================================================

// printWelcome prints the session banner.
func printWelcome(session *ChatSession) {
	fmt.Println()
	fmt.Println(welcomeStyle.Render("ollamaweb interactive chat"))
	fmt.Println(infoStyle.Render(strings.Repeat("─", 30)))
	fmt.Printf("%s %s\n", infoStyle.Render("Model:"), commandStyle.Render(session.Model))
	fmt.Printf("%s %s\n", infoStyle.Render("Conversation:"), commandStyle.Render(session.ConversationID))
	fmt.Println()
	fmt.Println(infoStyle.Render("Type your message and press Enter. Commands: /help, /quit"))
	fmt.Println()
}

// printHelp prints available commands.
func printHelp() {
	fmt.Println()
	fmt.Println(summaryHeaderStyle.Render("Available Commands"))
	fmt.Println(infoStyle.Render(strings.Repeat("─", 20)))
	fmt.Println()

	commands := []struct {
		cmd  string
		desc string
	}{
		{"/help, /h", "Show this help"},
		{"/new, /clear", "Start a new conversation"},
		{"/model [name]", "Show or switch model"},
		{"/models", "List installed models"},
		{"/history", "Show conversation history"},
		{"/status, /s", "Show session statistics"},
		{"/quit, /q", "Exit chat"},
	}

	for _, c := range commands {
		fmt.Printf("  %s  %s\n",
			commandStyle.Render(fmt.Sprintf("%-15s", c.cmd)),
			infoStyle.Render(c.desc))
	}

	fmt.Println()
	fmt.Println(infoStyle.Render("Tip: Ctrl+C cancels current generation, Ctrl+D exits"))
	fmt.Println()
}

// printStatus prints session statistics.
func printStatus(session *ChatSession) {
	elapsed := time.Since(session.StartTime).Round(time.Second)

	fmt.Println()
	fmt.Println(summaryHeaderStyle.Render("Session Status"))
	fmt.Println(infoStyle.Render(strings.Repeat("─", 20)))
	fmt.Println()

	fmt.Printf("  %s %s\n", infoStyle.Render("Model:"), commandStyle.Render(session.Model))
	fmt.Printf("  %s %s\n", infoStyle.Render("Conversation:"), session.ConversationID)
	fmt.Printf("  %s %s\n", infoStyle.Render("Duration:"), elapsed.String())
	fmt.Printf("  %s %d turns, %d messages\n",
		infoStyle.Render("History:"), session.TurnCount, len(session.Transcript))
	fmt.Println()
}

// printHistory prints the local view of the transcript.
func printHistory(session *ChatSession) {
	if len(session.Transcript) == 0 {
		fmt.Println(infoStyle.Render("[No messages yet]"))
		return
	}

	fmt.Println()
	fmt.Println(summaryHeaderStyle.Render("Conversation History"))
	fmt.Println(infoStyle.Render(strings.Repeat("─", 25)))
	fmt.Println()

	for i, msg := range session.Transcript {
		var role string
		switch msg.Role {
		case model.RoleUser:
			role = promptStyle.Render("You")
		case model.RoleAssistant:
			role = welcomeStyle.Render("AI")
		default:
			role = warningStyle.Render("System")
		}

		content := strings.ReplaceAll(util.TruncateRunes(msg.Content, 100), "\n", " ")
		fmt.Printf("  %d. %s: %s\n", i+1, role, content)
	}
	fmt.Println()
}

// printExitSummary prints a short summary when the session ends.
func printExitSummary(session *ChatSession) {
	if session.Quiet || session.TurnCount == 0 {
		return
	}

	elapsed := time.Since(session.StartTime).Round(time.Second)
	fmt.Printf("%s %d turns in %s. Conversation saved as %s.\n",
		infoStyle.Render("[Session]"),
		session.TurnCount,
		elapsed,
		commandStyle.Render(session.ConversationID))
}
