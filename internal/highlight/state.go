// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package highlight

import (
	"sort"
	"sync"

	"github.com/jeranaias/pagetutor/internal/command"
)

// Highlight is one rectangle on one page. It is a value; State hands out
// copies only.
type Highlight struct {
	Page  int         `json:"page"`
	Rect  command.Box `json:"rect"`
	Color string      `json:"color"`
}

// New creates a highlight, applying the default color.
func New(page int, rect command.Box, color string) Highlight {
	if color == "" {
		color = command.DefaultColor
	}
	return Highlight{Page: page, Rect: rect, Color: color}
}

// Change describes the effect of one Apply. Page is 0 when every page was
// affected.
type Change struct {
	Page    int
	Added   int
	Removed int
}

// Empty reports whether the change altered nothing.
func (c Change) Empty() bool {
	return c.Added == 0 && c.Removed == 0
}

// =============================================================================
// STATE
// =============================================================================

// State is the set of active highlights per page. It is safe for
// concurrent use.
type State struct {
	mu       sync.RWMutex
	pages    map[int][]Highlight
	onChange []func(Change)
}

// NewState creates an empty state.
func NewState() *State {
	return &State{pages: make(map[int][]Highlight)}
}

// OnChange registers fn to run after every Apply or Reset that alters the
// state. It is called without the lock held.
func (s *State) OnChange(fn func(Change)) {
	s.mu.Lock()
	s.onChange = append(s.onChange, fn)
	s.mu.Unlock()
}

// Apply mutates the state for cmd. For HighlightText, boxes are the
// resolved rectangles; other variants ignore them.
//
//   - HighlightRect appends its rectangle.
//   - HighlightText appends one highlight per box.
//   - ClearHighlights empties one page, or all pages when Page is 0.
//   - GoToPage has no effect.
func (s *State) Apply(cmd command.Command, boxes ...command.Box) Change {
	s.mu.Lock()

	var ch Change
	switch c := cmd.(type) {
	case command.HighlightRect:
		ch.Page = c.Page
		s.pages[c.Page] = append(s.pages[c.Page], New(c.Page, c.Rect, c.Color))
		ch.Added = 1

	case command.HighlightText:
		ch.Page = c.Page
		for _, b := range boxes {
			s.pages[c.Page] = append(s.pages[c.Page], New(c.Page, b, c.Color))
		}
		ch.Added = len(boxes)

	case command.ClearHighlights:
		ch.Page = c.Page
		if c.AllPages() {
			for _, hs := range s.pages {
				ch.Removed += len(hs)
			}
			s.pages = make(map[int][]Highlight)
		} else {
			ch.Removed = len(s.pages[c.Page])
			delete(s.pages, c.Page)
		}

	case command.GoToPage:
		ch.Page = c.Page
	}

	listeners := s.onChange
	s.mu.Unlock()

	if !ch.Empty() {
		for _, fn := range listeners {
			fn(ch)
		}
	}
	return ch
}

// Page returns a copy of the highlights on page p, in insertion order.
func (s *State) Page(p int) []Highlight {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Highlight(nil), s.pages[p]...)
}

// All returns every highlight ordered by page, then insertion order.
func (s *State) All() []Highlight {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pages := make([]int, 0, len(s.pages))
	for p := range s.pages {
		pages = append(pages, p)
	}
	sort.Ints(pages)

	var out []Highlight
	for _, p := range pages {
		out = append(out, s.pages[p]...)
	}
	return out
}

// Pages returns the page numbers that have highlights, ascending.
func (s *State) Pages() []int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]int, 0, len(s.pages))
	for p, hs := range s.pages {
		if len(hs) > 0 {
			out = append(out, p)
		}
	}
	sort.Ints(out)
	return out
}

// Len returns the total number of highlights.
func (s *State) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, hs := range s.pages {
		n += len(hs)
	}
	return n
}

// Reset removes every highlight, as a full viewer reset does.
func (s *State) Reset() {
	s.Apply(command.ClearHighlights{})
}
