// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strconv"
	"strings"

	"github.com/jeranaias/pagetutor/internal/geometry"
	"github.com/jeranaias/pagetutor/internal/layout"
	"github.com/jeranaias/pagetutor/internal/ui/styles"
	"github.com/jeranaias/pagetutor/internal/util"
)

// RunTextWidth is the column budget for run text in RunTable.
const RunTextWidth = 32

// =============================================================================
// RUN TABLE
// =============================================================================

// RunTable renders one row per resolved box: the run it came from, its
// offsets, the normalized box and the box in display pixels. An empty match
// list renders a single "no match" line.
func RunTable(theme *styles.Theme, page layout.Page, v geometry.Viewport, matches []geometry.Match) string {
	if len(matches) == 0 {
		return theme.TableMuted.Render("no match on page " + strconv.Itoa(page.Number))
	}

	header := []string{"#", "run", "offsets", "text", "box (normalized)", "box (px)"}
	rows := make([][]string, 0, len(matches))
	for i, m := range matches {
		r := page.Runs[m.Run]
		b := m.Box
		pw, ph := v.PageWidth*v.Scale, v.PageHeight*v.Scale
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			strconv.Itoa(m.Run),
			strconv.Itoa(r.Start) + "-" + strconv.Itoa(r.End),
			strconv.Quote(util.TruncateWidth(r.Text, RunTextWidth)),
			fmtFloat(b.X, 4) + " " + fmtFloat(b.Y, 4) + " " + fmtFloat(b.W, 4) + " " + fmtFloat(b.H, 4),
			fmtFloat(b.X*pw, 1) + " " + fmtFloat(b.Y*ph, 1) + " " + fmtFloat(b.W*pw, 1) + " " + fmtFloat(b.H*ph, 1),
		})
	}

	widths := make([]int, len(header))
	for i, h := range header {
		widths[i] = util.DisplayWidth(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			widths[i] = max(widths[i], util.DisplayWidth(cell))
		}
	}

	var b strings.Builder
	b.WriteString(theme.TableHeader.Render(joinRow(header, widths)))
	b.WriteString("\n")
	for _, row := range rows {
		b.WriteString(theme.TableCell.Render(joinRow(row, widths)))
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func joinRow(cells []string, widths []int) string {
	padded := make([]string, len(cells))
	for i, c := range cells {
		if i == len(cells)-1 {
			padded[i] = c
			continue
		}
		padded[i] = padRight(c, widths[i])
	}
	return strings.Join(padded, "  ")
}
