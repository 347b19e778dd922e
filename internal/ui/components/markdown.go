// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"

	"github.com/jeranaias/pagetutor/internal/ui/styles"
)

// DefaultWrap is the word wrap used before the terminal width is known.
const DefaultWrap = 80

// =============================================================================
// MARKDOWN RENDERER
// =============================================================================

// Markdown renders tutor replies as styled terminal markdown. Renderers are
// built lazily per wrap width. Rendering falls back to the plain text when
// glamour fails, so a reply is never lost.
type Markdown struct {
	style string

	mu        sync.Mutex
	renderers map[int]*glamour.TermRenderer
}

// NewMarkdown creates a renderer using the theme's glamour style.
func NewMarkdown(theme *styles.Theme) *Markdown {
	return &Markdown{style: theme.GlamourStyle(), renderers: make(map[int]*glamour.TermRenderer)}
}

// Style returns the glamour style name in use.
func (m *Markdown) Style() string {
	return m.style
}

// Render renders content wrapped at width columns.
func (m *Markdown) Render(content string, width int) string {
	if strings.TrimSpace(content) == "" {
		return ""
	}
	r, err := m.renderer(width)
	if err != nil {
		return content
	}
	out, err := r.Render(content)
	if err != nil {
		return content
	}
	return strings.Trim(out, "\n")
}

func (m *Markdown) renderer(width int) (*glamour.TermRenderer, error) {
	if width <= 0 {
		width = DefaultWrap
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.renderers[width]; ok {
		return r, nil
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(m.style),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return nil, err
	}
	m.renderers[width] = r
	return r, nil
}
