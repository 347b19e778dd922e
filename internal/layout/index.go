// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package layout

import (
	"sort"
	"strconv"
	"strings"
	"sync"
)

// Index is the text layout of one loaded document, keyed by page number.
// It is safe for concurrent use.
type Index struct {
	mu    sync.RWMutex
	name  string
	pages map[int]Page
}

// NewIndex creates an empty index for the named document.
func NewIndex(name string) *Index {
	return &Index{name: name, pages: make(map[int]Page)}
}

// Name returns the document name.
func (i *Index) Name() string {
	return i.name
}

// Put stores or replaces a page after validating it.
func (i *Index) Put(p Page) error {
	if err := p.Validate(); err != nil {
		return err
	}
	i.mu.Lock()
	i.pages[p.Number] = p
	i.mu.Unlock()
	return nil
}

// Page returns the layout for page n.
func (i *Index) Page(n int) (Page, bool) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	p, ok := i.pages[n]
	return p, ok
}

// Pages returns every page in page order.
func (i *Index) Pages() []Page {
	i.mu.RLock()
	defer i.mu.RUnlock()

	out := make([]Page, 0, len(i.pages))
	for _, p := range i.pages {
		out = append(out, p)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Number < out[b].Number })
	return out
}

// Len returns the number of pages.
func (i *Index) Len() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return len(i.pages)
}

// Text returns the whole document text, one line block per page in page
// order, prefixed with a page marker so a model can cite page numbers.
func (i *Index) Text() string {
	var b strings.Builder
	for _, p := range i.Pages() {
		b.WriteString("[Page ")
		b.WriteString(strconv.Itoa(p.Number))
		b.WriteString("]\n")
		b.WriteString(p.Text())
		b.WriteString("\n")
	}
	return b.String()
}
