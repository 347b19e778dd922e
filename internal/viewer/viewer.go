// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package viewer

import (
	"log"
	"sort"
	"sync"

	"github.com/jeranaias/pagetutor/internal/bus"
	"github.com/jeranaias/pagetutor/internal/command"
	"github.com/jeranaias/pagetutor/internal/geometry"
	"github.com/jeranaias/pagetutor/internal/highlight"
	"github.com/jeranaias/pagetutor/internal/layout"
)

// Option configures a Viewer.
type Option func(*Viewer)

// WithState uses an existing highlight state.
func WithState(s *highlight.State) Option {
	return func(v *Viewer) { v.state = s }
}

// WithLogger sets the diagnostics logger.
func WithLogger(l *log.Logger) Option {
	return func(v *Viewer) { v.logger = l }
}

// WithAutoMount treats every page as mounted at the given display scale.
func WithAutoMount(scale float64) Option {
	return func(v *Viewer) {
		if scale > 0 {
			v.autoScale = scale
		}
	}
}

// =============================================================================
// VIEWER
// =============================================================================

// Viewer applies commands against a document index and a set of mounted
// pages. It is safe for concurrent use.
type Viewer struct {
	mu        sync.Mutex
	index     *layout.Index
	state     *highlight.State
	logger    *log.Logger
	autoScale float64

	current int
	pending int
	mounted map[int]float64
	queued  map[int][]command.HighlightText

	onNavigate []func(page int)

	bus   *bus.Bus
	token bus.Token
}

// New creates a viewer over idx. idx may be nil until SetIndex is called;
// text highlights then miss.
func New(idx *layout.Index, opts ...Option) *Viewer {
	v := &Viewer{
		index:   idx,
		mounted: make(map[int]float64),
		queued:  make(map[int][]command.HighlightText),
	}
	for _, opt := range opts {
		opt(v)
	}
	if v.state == nil {
		v.state = highlight.NewState()
	}
	if v.logger == nil {
		v.logger = log.Default()
	}
	return v
}

// Attach subscribes the viewer to b. A viewer is attached to at most one bus.
func (v *Viewer) Attach(b *bus.Bus) {
	v.Detach()
	tok := b.Subscribe(v.Handle)

	v.mu.Lock()
	v.bus, v.token = b, tok
	v.mu.Unlock()
}

// Detach removes the viewer's subscription, if any.
func (v *Viewer) Detach() {
	v.mu.Lock()
	b, tok := v.bus, v.token
	v.bus, v.token = nil, ""
	v.mu.Unlock()

	if b != nil {
		b.Unsubscribe(tok)
	}
}

// SetIndex replaces the document layout and clears all viewer state.
func (v *Viewer) SetIndex(idx *layout.Index) {
	v.mu.Lock()
	v.index = idx
	v.current, v.pending = 0, 0
	v.queued = make(map[int][]command.HighlightText)
	v.mu.Unlock()

	v.state.Reset()
}

// OnNavigate registers fn to run when the current page changes.
func (v *Viewer) OnNavigate(fn func(page int)) {
	v.mu.Lock()
	v.onNavigate = append(v.onNavigate, fn)
	v.mu.Unlock()
}

// State returns the highlight state the renderer reads.
func (v *Viewer) State() *highlight.State {
	return v.state
}

// Handle applies one command. It is the viewer's bus handler.
func (v *Viewer) Handle(cmd command.Command) {
	switch c := cmd.(type) {
	case command.GoToPage:
		v.goTo(c.Page)

	case command.HighlightRect:
		v.state.Apply(c)

	case command.ClearHighlights:
		v.mu.Lock()
		if c.AllPages() {
			v.queued = make(map[int][]command.HighlightText)
		} else {
			delete(v.queued, c.Page)
		}
		v.mu.Unlock()
		v.state.Apply(c)

	case command.HighlightText:
		v.mu.Lock()
		scale, ok := v.scaleLocked(c.Page)
		if !ok {
			v.queued[c.Page] = append(v.queued[c.Page], c)
			v.mu.Unlock()
			return
		}
		idx := v.index
		v.mu.Unlock()

		v.highlightText(idx, c, scale)
	}
}

// Mount signals that page is present at the given display scale. Pending
// navigation to it completes, and queued text highlights are resolved.
func (v *Viewer) Mount(page int, scale float64) {
	if page < 1 || scale <= 0 {
		return
	}

	v.mu.Lock()
	v.mounted[page] = scale
	queued := v.queued[page]
	delete(v.queued, page)
	idx := v.index
	navigated := v.pending == page
	if navigated {
		v.current, v.pending = page, 0
	}
	listeners := v.onNavigate
	v.mu.Unlock()

	if navigated {
		for _, fn := range listeners {
			fn(page)
		}
	}
	for _, c := range queued {
		v.highlightText(idx, c, scale)
	}
}

// Unmount signals that page is no longer rendered.
func (v *Viewer) Unmount(page int) {
	v.mu.Lock()
	delete(v.mounted, page)
	v.mu.Unlock()
}

// SetScale records a new display scale for a mounted page. Existing
// highlights are normalized and need no update.
func (v *Viewer) SetScale(page int, scale float64) {
	if scale <= 0 {
		return
	}
	v.mu.Lock()
	if _, ok := v.mounted[page]; ok {
		v.mounted[page] = scale
	}
	v.mu.Unlock()
}

// CurrentPage returns the page last navigated to, or 0.
func (v *Viewer) CurrentPage() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.current
}

// PendingPage returns a navigation target that has not mounted yet, or 0.
func (v *Viewer) PendingPage() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.pending
}

// Reset clears highlights, queued work, and navigation.
func (v *Viewer) Reset() {
	v.mu.Lock()
	v.current, v.pending = 0, 0
	v.queued = make(map[int][]command.HighlightText)
	v.mu.Unlock()

	v.state.Reset()
}

// =============================================================================
// INTERNALS
// =============================================================================

func (v *Viewer) scaleLocked(page int) (float64, bool) {
	if s, ok := v.mounted[page]; ok {
		return s, true
	}
	if v.autoScale > 0 {
		return v.autoScale, true
	}
	return 0, false
}

func (v *Viewer) goTo(page int) {
	v.mu.Lock()
	_, present := v.scaleLocked(page)
	if !present {
		v.pending = page
		v.mu.Unlock()
		v.logger.Printf("NAVIGATE_PENDING | page=%d", page)
		return
	}
	v.current, v.pending = page, 0
	listeners := v.onNavigate
	v.mu.Unlock()

	for _, fn := range listeners {
		fn(page)
	}
}

func (v *Viewer) highlightText(idx *layout.Index, c command.HighlightText, scale float64) {
	if idx == nil {
		v.logger.Printf("RESOLVER_MISS | page=%d reason=no-document", c.Page)
		return
	}
	page, ok := idx.Page(c.Page)
	if !ok {
		v.logger.Printf("RESOLVER_MISS | page=%d reason=no-layout", c.Page)
		return
	}

	boxes := geometry.Resolve(c.Locator, page.Runs, geometry.ViewportFor(page, scale))
	if len(boxes) == 0 {
		v.logger.Printf("RESOLVER_MISS | page=%d locator=%v", c.Page, c.Locator)
		return
	}
	v.state.Apply(c, boxes...)
}

// =============================================================================
// SNAPSHOT
// =============================================================================

// MountedPage is a page present in the renderer.
type MountedPage struct {
	Page  int     `json:"page"`
	Scale float64 `json:"scale"`
}

// Snapshot is the JSON view of a viewer for HTTP clients and UIs.
type Snapshot struct {
	Document    string                `json:"document,omitempty"`
	CurrentPage int                   `json:"currentPage"`
	PendingPage int                   `json:"pendingPage,omitempty"`
	Mounted     []MountedPage         `json:"mounted"`
	Queued      int                   `json:"queued"`
	Highlights  []highlight.Highlight `json:"highlights"`
}

// Snapshot returns the current viewer state.
func (v *Viewer) Snapshot() Snapshot {
	v.mu.Lock()
	snap := Snapshot{
		CurrentPage: v.current,
		PendingPage: v.pending,
		Mounted:     make([]MountedPage, 0, len(v.mounted)),
	}
	if v.index != nil {
		snap.Document = v.index.Name()
	}
	for p, s := range v.mounted {
		snap.Mounted = append(snap.Mounted, MountedPage{Page: p, Scale: s})
	}
	for _, q := range v.queued {
		snap.Queued += len(q)
	}
	v.mu.Unlock()

	sort.Slice(snap.Mounted, func(a, b int) bool { return snap.Mounted[a].Page < snap.Mounted[b].Page })
	snap.Highlights = v.state.All()
	if snap.Highlights == nil {
		snap.Highlights = []highlight.Highlight{}
	}
	return snap
}
