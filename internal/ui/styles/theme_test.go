// Copyright (c) 2025 Kyle Marwood
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"strings"
	"testing"
)

func TestNewTheme(t *testing.T) {
	theme := NewTheme()
	if theme == nil {
		t.Fatal("NewTheme returned nil")
	}

	// Styles must render without panicking even on a dumb terminal.
	out := theme.UserBubble.Render("hello")
	if !strings.Contains(out, "hello") {
		t.Errorf("rendered output missing content: %q", out)
	}
}

func TestThemeResize(t *testing.T) {
	theme := NewTheme()
	theme.Resize(120, 40)
	if theme.Width != 120 || theme.Height != 40 {
		t.Errorf("resize not applied: %dx%d", theme.Width, theme.Height)
	}
}

func TestStatusIndicators(t *testing.T) {
	if !strings.Contains(RenderSuccess("done"), "[OK]") {
		t.Error("success indicator missing")
	}
	if !strings.Contains(RenderError("failed"), "[X]") {
		t.Error("error indicator missing")
	}
	if !strings.Contains(RenderWarning("careful"), "[!]") {
		t.Error("warning indicator missing")
	}
	if !strings.Contains(RenderInfo("note"), "[i]") {
		t.Error("info indicator missing")
	}
}
