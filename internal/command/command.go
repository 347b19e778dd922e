// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package command

import "fmt"

// DefaultColor is used when a highlight command omits its color.
const DefaultColor = "yellow"

// Action names as they appear on the wire.
const (
	ActionGoToPage        = "goToPage"
	ActionHighlightRect   = "highlightRect"
	ActionHighlightText   = "highlightText"
	ActionClearHighlights = "clearHighlights"
)

// =============================================================================
// COMMAND VARIANTS
// =============================================================================

// Command is a viewer-control instruction. The set of implementations is
// closed: only the variants in this package satisfy it.
type Command interface {
	// Action returns the wire action name.
	Action() string

	sealed()
}

// GoToPage asks the viewer to navigate to a 1-based page.
type GoToPage struct {
	Page int
}

// HighlightRect highlights an explicit normalized rectangle.
type HighlightRect struct {
	Page  int
	Rect  Box
	Color string
}

// HighlightText highlights text located on a page. The locator is resolved
// to geometry before it reaches the highlight state.
type HighlightText struct {
	Page    int
	Locator Locator
	Color   string
}

// ClearHighlights removes highlights from one page, or from every page when
// Page is zero.
type ClearHighlights struct {
	Page int
}

func (GoToPage) Action() string        { return ActionGoToPage }
func (HighlightRect) Action() string   { return ActionHighlightRect }
func (HighlightText) Action() string   { return ActionHighlightText }
func (ClearHighlights) Action() string { return ActionClearHighlights }

func (GoToPage) sealed()        {}
func (HighlightRect) sealed()   {}
func (HighlightText) sealed()   {}
func (ClearHighlights) sealed() {}

// AllPages reports whether the clear applies to every page.
func (c ClearHighlights) AllPages() bool {
	return c.Page == 0
}

// TargetPage returns the page a command addresses, or 0 for a global clear.
func TargetPage(cmd Command) int {
	switch c := cmd.(type) {
	case GoToPage:
		return c.Page
	case HighlightRect:
		return c.Page
	case HighlightText:
		return c.Page
	case ClearHighlights:
		return c.Page
	}
	return 0
}

// =============================================================================
// LOCATORS
// =============================================================================

// Locator identifies the text a HighlightText command targets.
type Locator interface {
	locator()
}

// Substring locates the first run containing Text, compared case-insensitively.
type Substring struct {
	Text string
}

// OffsetRange locates runs by character offset within the page text.
type OffsetRange struct {
	Start int
	End   int
}

func (Substring) locator()   {}
func (OffsetRange) locator() {}

func (s Substring) String() string {
	return fmt.Sprintf("text %q", s.Text)
}

func (r OffsetRange) String() string {
	return fmt.Sprintf("offsets [%d,%d)", r.Start, r.End)
}

// =============================================================================
// BOX
// =============================================================================

// Box is a rectangle expressed as fractions of page width and height, with
// the origin at the top-left corner of the page.
type Box struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// Valid reports whether every component lies in [0,1].
func (b Box) Valid() bool {
	return unit(b.X) && unit(b.Y) && unit(b.W) && unit(b.H)
}

// Clamp returns b with every component forced into [0,1] and the extent
// trimmed so the box does not run past the page edge.
func (b Box) Clamp() Box {
	out := Box{X: clamp01(b.X), Y: clamp01(b.Y), W: clamp01(b.W), H: clamp01(b.H)}
	if out.X+out.W > 1 {
		out.W = 1 - out.X
	}
	if out.Y+out.H > 1 {
		out.H = 1 - out.Y
	}
	return out
}

func unit(v float64) bool {
	return v >= 0 && v <= 1
}

func clamp01(v float64) float64 {
	switch {
	case v < 0 || v != v:
		return 0
	case v > 1:
		return 1
	}
	return v
}

// colorOrDefault applies the default highlight color.
func colorOrDefault(c string) string {
	if c == "" {
		return DefaultColor
	}
	return c
}
