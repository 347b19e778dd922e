// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/pagetutor/internal/highlight"
	"github.com/jeranaias/pagetutor/internal/ui/styles"
	"github.com/jeranaias/pagetutor/internal/util"
	"github.com/jeranaias/pagetutor/internal/viewer"
)

// PanelWidth is the default side panel width in columns, borders included.
const PanelWidth = 34

// maxPanelHighlights bounds the highlight rows listed for the current page.
const maxPanelHighlights = 8

// =============================================================================
// PAGE PANEL
// =============================================================================

// PagePanel shows what the viewer displays: the document, the current page
// and the active highlights.
type PagePanel struct {
	theme  *styles.Theme
	width  int
	height int
	snap   viewer.Snapshot
}

// NewPagePanel creates an empty panel.
func NewPagePanel(theme *styles.Theme) *PagePanel {
	return &PagePanel{theme: theme, width: PanelWidth}
}

// SetSize sets the outer panel size.
func (p *PagePanel) SetSize(width, height int) {
	p.width = width
	p.height = height
}

// SetSnapshot replaces the displayed viewer state.
func (p *PagePanel) SetSnapshot(s viewer.Snapshot) {
	p.snap = s
}

// View renders the panel.
func (p *PagePanel) View() string {
	t := p.theme
	inner := p.width - 4
	if inner < 10 {
		inner = 10
	}

	var b strings.Builder
	b.WriteString(t.PanelTitle.Render("Page"))
	b.WriteString("\n")

	doc := p.snap.Document
	if doc == "" {
		doc = "(none)"
	}
	b.WriteString(p.row("document", util.TruncateWidth(doc, inner-10)))

	if p.snap.CurrentPage > 0 {
		b.WriteString(p.row("showing", strconv.Itoa(p.snap.CurrentPage)))
	} else {
		b.WriteString(p.row("showing", "-"))
	}
	if p.snap.PendingPage > 0 {
		b.WriteString(p.row("pending", strconv.Itoa(p.snap.PendingPage)))
	}
	if len(p.snap.Mounted) > 0 {
		pages := make([]int, len(p.snap.Mounted))
		for i, m := range p.snap.Mounted {
			pages[i] = m.Page
		}
		b.WriteString(p.row("mounted", util.TruncateWidth(fmtPages(pages), inner-10)))
	}
	if p.snap.Queued > 0 {
		b.WriteString(p.row("queued", strconv.Itoa(p.snap.Queued)))
	}

	b.WriteString("\n")
	b.WriteString(t.PanelTitle.Render("Highlights"))
	b.WriteString("\n")
	b.WriteString(p.highlights(inner))

	style := t.Panel.Width(p.width - 2)
	if p.height > 2 {
		style = style.Height(p.height - 2)
	}
	return style.Render(b.String())
}

func (p *PagePanel) row(label, value string) string {
	return p.theme.PanelLabel.Render(padRight(label, 9)) + " " + p.theme.PanelValue.Render(value) + "\n"
}

// highlights lists the current page's highlights first, then a count per
// other page.
func (p *PagePanel) highlights(inner int) string {
	t := p.theme
	if len(p.snap.Highlights) == 0 {
		return t.PanelEmpty.Render("none")
	}

	byPage := make(map[int][]highlight.Highlight)
	var pages []int
	for _, h := range p.snap.Highlights {
		if _, ok := byPage[h.Page]; !ok {
			pages = append(pages, h.Page)
		}
		byPage[h.Page] = append(byPage[h.Page], h)
	}

	var lines []string
	current := byPage[p.snap.CurrentPage]
	for i, h := range current {
		if i == maxPanelHighlights {
			lines = append(lines, t.PanelEmpty.Render("+"+strconv.Itoa(len(current)-i)+" more"))
			break
		}
		lines = append(lines, t.Swatch(h.Color)+" "+t.TableCell.Render(util.TruncateWidth(describeBox(h), inner-3)))
	}
	for _, pg := range pages {
		if pg == p.snap.CurrentPage {
			continue
		}
		lines = append(lines, t.PanelLabel.Render("p."+strconv.Itoa(pg)+": "+strconv.Itoa(len(byPage[pg]))+" highlight(s)"))
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func describeBox(h highlight.Highlight) string {
	return "x" + fmtFloat(h.Rect.X, 2) + " y" + fmtFloat(h.Rect.Y, 2) + " " + fmtFloat(h.Rect.W, 2) + "x" + fmtFloat(h.Rect.H, 2)
}
