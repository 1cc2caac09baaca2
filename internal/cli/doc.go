// Copyright (c) 2025 Kyle Marwood
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements the terminal commands for ollamaweb.
//
//   - ask: a one-shot question sent straight to the Ollama backend.
//     Nothing is persisted; it works without a running server.
//   - chat: an interactive REPL against a running ollamaweb server.
//     Turns are persisted server-side and show up in the web UI.
//   - export: writes a stored conversation to markdown or JSON.
//
// Output is TTY-aware: on a terminal responses are rendered as markdown
// via glamour, while piped output receives raw tokens as they stream.
package cli
