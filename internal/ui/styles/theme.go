// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Glamour standard style names.
const (
	GlamourDark  = "dark"
	GlamourLight = "light"
)

// Theme holds all the styled components for the application.
// It detects the terminal's background and color capability once.
type Theme struct {
	IsDark       bool
	HasTrueColor bool
	ColorProfile termenv.Profile

	// ==========================================================================
	// CHAT
	// ==========================================================================

	Header      lipgloss.Style
	HeaderTitle lipgloss.Style
	HeaderDoc   lipgloss.Style

	UserLabel      lipgloss.Style
	UserText       lipgloss.Style
	AssistantLabel lipgloss.Style
	CommandLine    lipgloss.Style
	ErrorText      lipgloss.Style

	InputContainer lipgloss.Style
	InputPrompt    lipgloss.Style

	Spinner      lipgloss.Style
	ThinkingText lipgloss.Style

	// ==========================================================================
	// PAGE PANEL
	// ==========================================================================

	Panel      lipgloss.Style
	PanelTitle lipgloss.Style
	PanelLabel lipgloss.Style
	PanelValue lipgloss.Style
	PanelEmpty lipgloss.Style

	// ==========================================================================
	// STATUS BAR
	// ==========================================================================

	StatusBar    lipgloss.Style
	ShortcutKey  lipgloss.Style
	ShortcutDesc lipgloss.Style

	// ==========================================================================
	// TABLES
	// ==========================================================================

	TableHeader lipgloss.Style
	TableCell   lipgloss.Style
	TableMuted  lipgloss.Style
}

// NewTheme creates a theme for the current terminal.
func NewTheme() *Theme {
	profile := termenv.ColorProfile()
	return newTheme(termenv.HasDarkBackground(), profile)
}

// NewThemeFor creates a theme for a known background, skipping detection.
func NewThemeFor(dark bool) *Theme {
	return newTheme(dark, termenv.ColorProfile())
}

func newTheme(dark bool, profile termenv.Profile) *Theme {
	t := &Theme{
		IsDark:       dark,
		HasTrueColor: profile == termenv.TrueColor,
		ColorProfile: profile,
	}
	t.initStyles()
	return t
}

// GlamourStyle returns the glamour standard style matching the background.
func (t *Theme) GlamourStyle() string {
	if t.IsDark {
		return GlamourDark
	}
	return GlamourLight
}

// Swatch renders a block in a highlight color.
func (t *Theme) Swatch(color string) string {
	return lipgloss.NewStyle().Foreground(HighlightColor(color)).Render("██")
}

func (t *Theme) initStyles() {
	t.Header = lipgloss.NewStyle().
		Bold(true).
		Background(SurfaceDim).
		Padding(0, 1)
	t.HeaderTitle = lipgloss.NewStyle().Bold(true).Foreground(Cyan)
	t.HeaderDoc = lipgloss.NewStyle().Foreground(TextSecondary).Italic(true)

	t.UserLabel = lipgloss.NewStyle().Bold(true).Foreground(Cyan)
	t.UserText = lipgloss.NewStyle().Foreground(TextPrimary)
	t.AssistantLabel = lipgloss.NewStyle().Bold(true).Foreground(Purple)
	t.CommandLine = lipgloss.NewStyle().Foreground(Emerald).PaddingLeft(2)
	t.ErrorText = lipgloss.NewStyle().Foreground(Rose).Bold(true)

	t.InputContainer = lipgloss.NewStyle().
		BorderStyle(lipgloss.NormalBorder()).
		BorderTop(true).
		BorderForeground(Overlay).
		Padding(0, 1)
	t.InputPrompt = lipgloss.NewStyle().Foreground(Cyan).Bold(true)

	t.Spinner = lipgloss.NewStyle().Foreground(Purple)
	t.ThinkingText = lipgloss.NewStyle().Foreground(TextSecondary).Italic(true)

	t.Panel = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Overlay).
		Padding(0, 1)
	t.PanelTitle = lipgloss.NewStyle().Bold(true).Foreground(Purple)
	t.PanelLabel = lipgloss.NewStyle().Foreground(TextSecondary)
	t.PanelValue = lipgloss.NewStyle().Foreground(TextPrimary).Bold(true)
	t.PanelEmpty = lipgloss.NewStyle().Foreground(TextMuted).Italic(true)

	t.StatusBar = lipgloss.NewStyle().
		Background(SurfaceDim).
		Foreground(TextSecondary).
		Padding(0, 1)
	t.ShortcutKey = lipgloss.NewStyle().Foreground(Cyan).Bold(true)
	t.ShortcutDesc = lipgloss.NewStyle().Foreground(TextMuted)

	t.TableHeader = lipgloss.NewStyle().Bold(true).Foreground(Purple)
	t.TableCell = lipgloss.NewStyle().Foreground(TextPrimary)
	t.TableMuted = lipgloss.NewStyle().Foreground(TextMuted)
}
