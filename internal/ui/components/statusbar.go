// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/pagetutor/internal/ui/styles"
)

// =============================================================================
// STATUS
// =============================================================================

// Status is the exchange state shown in the status bar.
type Status int

const (
	StatusIdle Status = iota
	StatusStreaming
	StatusError
)

// String returns the human-readable status name.
func (s Status) String() string {
	switch s {
	case StatusStreaming:
		return "Streaming"
	case StatusError:
		return "Error"
	default:
		return "Ready"
	}
}

// =============================================================================
// STATUS BAR
// =============================================================================

// StatusBar is the bottom line of the chat program.
type StatusBar struct {
	theme    *styles.Theme
	width    int
	provider string
	model    string
	status   Status
	commands int
}

// NewStatusBar creates a status bar.
func NewStatusBar(theme *styles.Theme) *StatusBar {
	return &StatusBar{theme: theme}
}

// SetWidth sets the bar width.
func (s *StatusBar) SetWidth(width int) { s.width = width }

// SetProvider sets the provider and model names.
func (s *StatusBar) SetProvider(provider, model string) {
	s.provider = provider
	s.model = model
}

// SetStatus sets the exchange state.
func (s *StatusBar) SetStatus(status Status) { s.status = status }

// Status returns the exchange state.
func (s *StatusBar) Status() Status { return s.status }

// AddCommands adds to the count of commands applied this session.
func (s *StatusBar) AddCommands(n int) { s.commands += n }

// View renders the bar. Shortcuts are dropped first when space runs out.
func (s *StatusBar) View() string {
	t := s.theme

	left := []string{s.statusBadge()}
	if s.provider != "" {
		name := s.provider
		if s.model != "" {
			name += ":" + s.model
		}
		left = append(left, t.PanelValue.Render(name))
	}
	left = append(left, t.PanelLabel.Render("cmds "+strconv.Itoa(s.commands)))
	leftView := strings.Join(left, t.ShortcutDesc.Render(" | "))

	shortcuts := t.ShortcutKey.Render("enter") + t.ShortcutDesc.Render(" ask  ") +
		t.ShortcutKey.Render("ctrl+l") + t.ShortcutDesc.Render(" clear  ") +
		t.ShortcutKey.Render("esc") + t.ShortcutDesc.Render(" cancel  ") +
		t.ShortcutKey.Render("ctrl+c") + t.ShortcutDesc.Render(" quit")

	inner := s.width - 2
	gap := inner - lipgloss.Width(leftView) - lipgloss.Width(shortcuts)
	line := leftView
	if gap >= 1 {
		line += strings.Repeat(" ", gap) + shortcuts
	}
	return t.StatusBar.Width(max(s.width, 0)).Render(line)
}

func (s *StatusBar) statusBadge() string {
	switch s.status {
	case StatusStreaming:
		return lipgloss.NewStyle().Foreground(styles.Purple).Bold(true).Render(s.status.String())
	case StatusError:
		return lipgloss.NewStyle().Foreground(styles.Rose).Bold(true).Render(styles.StatusIndicators.Error + " " + s.status.String())
	default:
		return lipgloss.NewStyle().Foreground(styles.Emerald).Bold(true).Render(s.status.String())
	}
}
