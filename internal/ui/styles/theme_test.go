// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
)

func TestNewThemeFor_GlamourStyle(t *testing.T) {
	if got := NewThemeFor(true).GlamourStyle(); got != GlamourDark {
		t.Errorf("dark theme glamour style = %q, want %q", got, GlamourDark)
	}
	if got := NewThemeFor(false).GlamourStyle(); got != GlamourLight {
		t.Errorf("light theme glamour style = %q, want %q", got, GlamourLight)
	}
}

func TestThemeStylesRender(t *testing.T) {
	theme := NewThemeFor(true)

	styles := []struct {
		name  string
		style lipgloss.Style
	}{
		{"Header", theme.Header},
		{"UserLabel", theme.UserLabel},
		{"AssistantLabel", theme.AssistantLabel},
		{"Panel", theme.Panel},
		{"StatusBar", theme.StatusBar},
		{"TableHeader", theme.TableHeader},
	}
	for _, s := range styles {
		if !strings.Contains(s.style.Render("test"), "test") {
			t.Errorf("%s style lost its content", s.name)
		}
	}
}

func TestHighlightColor(t *testing.T) {
	if got := HighlightColor("Yellow"); got != highlightColors["yellow"] {
		t.Errorf("HighlightColor(Yellow) = %v", got)
	}
	if got := HighlightColor(" pink "); got != highlightColors["pink"] {
		t.Errorf("HighlightColor(pink) = %v", got)
	}
	if got := HighlightColor("#123456"); got != lipgloss.Color("#123456") {
		t.Errorf("hex colors should pass through, got %v", got)
	}
	if got := HighlightColor("chartreuse-ish"); got != highlightColors["yellow"] {
		t.Errorf("unknown names should fall back to yellow, got %v", got)
	}
}

func TestRenderStatusIndicators(t *testing.T) {
	tests := []struct {
		render func(string) string
		want   string
	}{
		{RenderSuccess, StatusIndicators.Success},
		{RenderError, StatusIndicators.Error},
		{RenderWarning, StatusIndicators.Warning},
		{RenderInfo, StatusIndicators.Info},
	}
	for _, tt := range tests {
		out := tt.render("imported")
		if !strings.Contains(out, tt.want) || !strings.Contains(out, "imported") {
			t.Errorf("render output %q missing %q", out, tt.want)
		}
	}
}
