// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package geometry

import (
	"strings"

	"golang.org/x/text/cases"

	"github.com/jeranaias/pagetutor/internal/command"
	"github.com/jeranaias/pagetutor/internal/highlight"
	"github.com/jeranaias/pagetutor/internal/layout"
	"github.com/jeranaias/pagetutor/internal/util"
)

// Viewport describes how a page is currently displayed: its display scale
// (rendered width over native width) and its native size in PDF units.
type Viewport struct {
	Scale      float64
	PageWidth  float64
	PageHeight float64
}

// ViewportFor returns the viewport of page p at display scale s.
func ViewportFor(p layout.Page, s float64) Viewport {
	return Viewport{Scale: s, PageWidth: p.Width, PageHeight: p.Height}
}

// Valid reports whether boxes can be normalized against v.
func (v Viewport) Valid() bool {
	return v.Scale > 0 && v.PageWidth > 0 && v.PageHeight > 0
}

// Match is one selected run and its normalized display box.
type Match struct {
	Run int // index into the page runs
	Box command.Box
}

// Resolve returns the boxes that loc selects among runs. A substring
// locator yields at most one box: the first run containing the text, case
// folded. An offset locator yields one box per selected run, in run order.
// No match, or an invalid viewport, yields nil.
func Resolve(loc command.Locator, runs []layout.TextRun, v Viewport) []command.Box {
	matches := ResolveRuns(loc, runs, v)
	if len(matches) == 0 {
		return nil
	}
	boxes := make([]command.Box, len(matches))
	for i, m := range matches {
		boxes[i] = m.Box
	}
	return boxes
}

// ResolveRuns is Resolve keeping track of which run produced each box.
func ResolveRuns(loc command.Locator, runs []layout.TextRun, v Viewport) []Match {
	if !v.Valid() {
		return nil
	}
	var matches []Match
	for _, i := range Select(loc, runs) {
		matches = append(matches, Match{Run: i, Box: RunBox(runs[i], v)})
	}
	return matches
}

// Select returns the indexes of the runs loc selects, in run order.
func Select(loc command.Locator, runs []layout.TextRun) []int {
	switch l := loc.(type) {
	case command.Substring:
		if i := FindSubstring(l.Text, runs); i >= 0 {
			return []int{i}
		}
	case command.OffsetRange:
		var sel []int
		for i, r := range runs {
			if r.Overlaps(l.Start, l.End) {
				sel = append(sel, i)
			}
		}
		return sel
	}
	return nil
}

// FindSubstring returns the index of the first run whose text contains
// text under Unicode case folding, or -1. Empty text matches nothing.
func FindSubstring(text string, runs []layout.TextRun) int {
	if text == "" {
		return -1
	}
	fold := cases.Fold()
	needle := fold.String(text)
	for i, r := range runs {
		if strings.Contains(fold.String(r.Text), needle) {
			return i
		}
	}
	return -1
}

// RunBox maps a run into display space at v and normalizes it. The run
// transform places the text baseline; the box extends one run height above
// it. A run without a height uses the rendered font size instead.
func RunBox(r layout.TextRun, v Viewport) command.Box {
	m := r.Transform.Multiply(layout.ViewportMatrix(v.Scale, v.PageHeight))

	h := r.Height * v.Scale
	if h <= 0 {
		h = m.FontHeight()
	}
	w := r.Width * v.Scale

	pw := v.PageWidth * v.Scale
	ph := v.PageHeight * v.Scale
	return command.Box{
		X: m[4] / pw,
		Y: (m[5] - h) / ph,
		W: w / pw,
		H: h / ph,
	}.Clamp()
}

// ResolveCommand resolves a HighlightText command against its page at the
// given display scale and returns the highlights it produces.
func ResolveCommand(cmd command.HighlightText, page layout.Page, scale float64) []highlight.Highlight {
	boxes := Resolve(cmd.Locator, page.Runs, ViewportFor(page, scale))
	if len(boxes) == 0 {
		return nil
	}
	out := make([]highlight.Highlight, len(boxes))
	for i, b := range boxes {
		out[i] = highlight.New(cmd.Page, b, cmd.Color)
	}
	return out
}

// MatchedText returns the page text a locator refers to, for diagnostics.
func MatchedText(loc command.Locator, page layout.Page) string {
	switch l := loc.(type) {
	case command.Substring:
		if i := FindSubstring(l.Text, page.Runs); i >= 0 {
			return page.Runs[i].Text
		}
	case command.OffsetRange:
		base := 0
		if len(page.Runs) > 0 {
			base = page.Runs[0].Start
		}
		return util.SafeSubstring(page.Text(), l.Start-base, l.End-base)
	}
	return ""
}
