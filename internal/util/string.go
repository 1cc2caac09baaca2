// Copyright (c) 2025 Kyle Marwood
// SPDX-License-Identifier: AGPL-3.0-or-later

package util

import (
	"strings"

	"github.com/mattn/go-runewidth"
)

// ============================================================================
// STRING TRUNCATION
// ============================================================================

// TruncateRunes truncates s to at most maxRunes runes, appending "..."
// when truncation occurs. Safe for multi-byte UTF-8 input.
func TruncateRunes(s string, maxRunes int) string {
	if maxRunes <= 3 {
		runes := []rune(s)
		if len(runes) <= maxRunes {
			return s
		}
		return string(runes[:maxRunes])
	}

	runes := []rune(s)
	if len(runes) <= maxRunes {
		return s
	}
	return string(runes[:maxRunes-3]) + "..."
}

// TruncateWidth truncates s to at most maxWidth terminal cells, appending
// "..." when truncation occurs. Wide runes (CJK, emoji) count as two cells.
func TruncateWidth(s string, maxWidth int) string {
	if runewidth.StringWidth(s) <= maxWidth {
		return s
	}
	if maxWidth <= 3 {
		return runewidth.Truncate(s, maxWidth, "")
	}
	return runewidth.Truncate(s, maxWidth, "...")
}

// FirstLine returns the first non-empty line of s, trimmed of surrounding
// whitespace. Returns "" when s has no non-empty lines.
func FirstLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			return line
		}
	}
	return ""
}
