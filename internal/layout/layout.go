// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package layout

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// =============================================================================
// TEXT RUN
// =============================================================================

// TextRun is a contiguous span of extracted page text with a known offset
// range and rendering transform. Start and End count code points.
type TextRun struct {
	Text      string  `json:"text"`
	Start     int     `json:"startOffset"`
	End       int     `json:"endOffset"`
	Transform Matrix  `json:"transform"`
	Width     float64 `json:"width"`
	Height    float64 `json:"height"`
}

// Len returns the run length in code points.
func (r TextRun) Len() int {
	return utf8.RuneCountInString(r.Text)
}

// Overlaps reports whether the run is selected by the range [start, end)
// under the test !(End < start || Start > end). A run that only touches the
// range at a boundary offset is selected.
func (r TextRun) Overlaps(start, end int) bool {
	return !(r.End < start || r.Start > end)
}

// =============================================================================
// PAGE
// =============================================================================

// Page is the extracted layout of one page. Width and Height are the native
// page size in PDF units at extraction time.
type Page struct {
	Number int       `json:"page"`
	Width  float64   `json:"width"`
	Height float64   `json:"height"`
	Runs   []TextRun `json:"runs"`
}

// Validation errors.
var (
	ErrBadPageNumber = errors.New("page number must be >= 1")
	ErrBadPageSize   = errors.New("page size must be positive")
)

// RunError reports a run that breaks the offset contract.
type RunError struct {
	Page   int
	Index  int
	Reason string
}

func (e *RunError) Error() string {
	return fmt.Sprintf("page %d run %d: %s", e.Page, e.Index, e.Reason)
}

// Validate checks numbering, size, and that run offsets are contiguous,
// non-overlapping, and consistent with the run text.
func (p Page) Validate() error {
	if p.Number < 1 {
		return ErrBadPageNumber
	}
	if p.Width <= 0 || p.Height <= 0 {
		return ErrBadPageSize
	}

	next := 0
	if len(p.Runs) > 0 {
		next = p.Runs[0].Start
	}
	for i, r := range p.Runs {
		switch {
		case r.Start < 0:
			return &RunError{Page: p.Number, Index: i, Reason: "negative start offset"}
		case r.Start != next:
			return &RunError{Page: p.Number, Index: i, Reason: fmt.Sprintf("starts at %d, want %d", r.Start, next)}
		case r.End-r.Start != r.Len():
			return &RunError{Page: p.Number, Index: i, Reason: fmt.Sprintf("offset span %d does not match text length %d", r.End-r.Start, r.Len())}
		}
		next = r.End
	}
	return nil
}

// Text returns the page text the run offsets index into.
func (p Page) Text() string {
	var b strings.Builder
	for _, r := range p.Runs {
		b.WriteString(r.Text)
	}
	return b.String()
}

// =============================================================================
// BUILDER
// =============================================================================

// Builder appends runs in reading order and assigns their offsets.
type Builder struct {
	page   Page
	cursor int
}

// NewBuilder starts a page with its native size.
func NewBuilder(number int, width, height float64) *Builder {
	return &Builder{page: Page{Number: number, Width: width, Height: height}}
}

// Add appends a run. Text is normalized to NFC so offsets agree with what a
// reader sees; empty text is skipped.
func (b *Builder) Add(text string, transform Matrix, width, height float64) *Builder {
	text = norm.NFC.String(text)
	n := utf8.RuneCountInString(text)
	if n == 0 {
		return b
	}
	b.page.Runs = append(b.page.Runs, TextRun{
		Text:      text,
		Start:     b.cursor,
		End:       b.cursor + n,
		Transform: transform,
		Width:     width,
		Height:    height,
	})
	b.cursor += n
	return b
}

// Separator appends text that occupies offsets but has no geometry of its
// own, such as the space inserted between extracted items.
func (b *Builder) Separator(text string) *Builder {
	if len(b.page.Runs) == 0 || text == "" {
		return b
	}
	last := &b.page.Runs[len(b.page.Runs)-1]
	last.Text += text
	n := utf8.RuneCountInString(text)
	last.End += n
	b.cursor += n
	return b
}

// Build returns the page. The builder may keep appending afterwards.
func (b *Builder) Build() Page {
	p := b.page
	p.Runs = append([]TextRun(nil), b.page.Runs...)
	return p
}
