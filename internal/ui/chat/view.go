// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/pagetutor/internal/storage"
	"github.com/jeranaias/pagetutor/internal/ui/styles"
)

// View implements tea.Model.
func (m Model) View() string {
	t := m.theme

	doc := "no document"
	if m.cfg.Index != nil {
		doc = m.cfg.Index.Name()
	}
	header := t.Header.Width(m.width).Render(t.HeaderTitle.Render("pagetutor") + "  " + t.HeaderDoc.Render(doc))

	body := m.viewport.View()
	if m.showPanel {
		body = lipgloss.JoinHorizontal(lipgloss.Top, body, m.panel.View())
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		body,
		m.spinner.View(),
		t.InputContainer.Width(m.width).Render(m.input.View()),
		m.status.View(),
	)
}

// renderEntries renders the conversation. Finished replies go through
// glamour; a streaming reply is shown as plain wrapped text.
func (m Model) renderEntries(width int) string {
	t := m.theme
	if len(m.entries) == 0 {
		return t.PanelEmpty.Render("Ask a question about the document. The tutor will turn pages and highlight as it explains.")
	}

	textWidth := max(width-2, 10)
	blocks := make([]string, 0, len(m.entries))
	for _, e := range m.entries {
		var b strings.Builder
		if e.role == storage.RoleUser {
			b.WriteString(t.UserLabel.Render("You"))
			b.WriteString("\n")
			b.WriteString(t.UserText.Width(textWidth).Render(e.text))
		} else {
			b.WriteString(t.AssistantLabel.Render("Tutor"))
			if e.text != "" {
				b.WriteString("\n")
				if e.done {
					b.WriteString(m.markdown.Render(e.text, textWidth))
				} else {
					b.WriteString(t.UserText.Width(textWidth).Render(e.text))
				}
			}
			for _, c := range e.commands {
				b.WriteString("\n")
				b.WriteString(t.CommandLine.Render("-> " + c))
			}
			if e.err != "" {
				b.WriteString("\n")
				b.WriteString(t.ErrorText.Render(styles.StatusIndicators.Error + " " + e.err))
			}
		}
		blocks = append(blocks, b.String())
	}
	return strings.Join(blocks, "\n\n")
}
