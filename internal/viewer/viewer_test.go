// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package viewer

import (
	"bytes"
	"log"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/pagetutor/internal/bus"
	"github.com/jeranaias/pagetutor/internal/command"
	"github.com/jeranaias/pagetutor/internal/decoder"
	"github.com/jeranaias/pagetutor/internal/geometry"
	"github.com/jeranaias/pagetutor/internal/layout"
)

func biologyIndex(t *testing.T) *layout.Index {
	t.Helper()
	idx := layout.NewIndex("biology.pdf")
	require.NoError(t, idx.Put(layout.Page{
		Number: 5,
		Width:  612,
		Height: 792,
		Runs: []layout.TextRun{
			{Text: "Osmosis is the diffusion ", Start: 120, End: 145, Transform: layout.Matrix{12, 0, 0, 12, 72, 600}, Width: 150, Height: 12},
			{Text: "of water across membranes", Start: 145, End: 170, Transform: layout.Matrix{12, 0, 0, 12, 72, 585}, Width: 160, Height: 12},
		},
	}))
	require.NoError(t, idx.Put(layout.NewBuilder(3, 612, 792).
		Add("Cells are the basic unit of life.", layout.Matrix{12, 0, 0, 12, 72, 700}, 200, 12).
		Build()))
	return idx
}

func quietLogger(buf *bytes.Buffer) Option {
	return WithLogger(log.New(buf, "", 0))
}

// feedAll runs fragments through a fresh decoder and publishes every command.
func feedAll(b *bus.Bus, fragments ...string) [][]command.Command {
	d := decoder.New()
	var perFragment [][]command.Command
	for _, f := range fragments {
		cmds := d.Feed(f)
		for _, c := range cmds {
			b.Publish(c)
		}
		perFragment = append(perFragment, cmds)
	}
	return perFragment
}

// =============================================================================
// STREAM TO VIEWER
// =============================================================================

func TestStreamNavigatesOnClosingTag(t *testing.T) {
	var logs bytes.Buffer
	v := New(biologyIndex(t), WithAutoMount(1), quietLogger(&logs))
	b := bus.New()
	v.Attach(b)

	got := feedAll(b,
		"Sure, it's on page 3. ",
		`<cmd>{"action":`,
		`"goToPage","page":3}</cmd>`,
	)

	assert.Empty(t, got[0])
	assert.Empty(t, got[1])
	require.Equal(t, []command.Command{command.GoToPage{Page: 3}}, got[2])
	assert.Equal(t, 3, v.CurrentPage())
	assert.Zero(t, v.State().Len())
}

func TestOffsetHighlightResolvesAtDisplayScale(t *testing.T) {
	var logs bytes.Buffer
	idx := biologyIndex(t)
	v := New(idx, quietLogger(&logs))
	b := bus.New()
	v.Attach(b)
	v.Mount(5, 1.5)

	b.Publish(command.HighlightText{Page: 5, Locator: command.OffsetRange{Start: 120, End: 130}})

	hs := v.State().Page(5)
	require.Len(t, hs, 1)
	page, _ := idx.Page(5)
	assert.Equal(t, geometry.RunBox(page.Runs[0], geometry.ViewportFor(page, 1.5)), hs[0].Rect)
	assert.Equal(t, command.DefaultColor, hs[0].Color)
	assert.Empty(t, logs.String())
}

func TestSequentialRectsAreAdditive(t *testing.T) {
	var logs bytes.Buffer
	v := New(biologyIndex(t), WithAutoMount(1), quietLogger(&logs))
	b := bus.New()
	v.Attach(b)

	feedAll(b,
		`<cmd>{"action":"highlightRect","page":2,"rect":[0.1,0.2,0.3,0.05]}</cmd>`,
		` and `,
		`<cmd>{"action":"highlightRect","page":2,"rect":[0.1,0.4,0.3,0.05],"color":"blue"}</cmd>`,
	)

	hs := v.State().Page(2)
	require.Len(t, hs, 2)
	assert.Equal(t, command.Box{X: 0.1, Y: 0.2, W: 0.3, H: 0.05}, hs[0].Rect)
	assert.Equal(t, "yellow", hs[0].Color)
	assert.Equal(t, "blue", hs[1].Color)
}

// =============================================================================
// PAGE PRESENCE
// =============================================================================

func TestNavigationWaitsForMount(t *testing.T) {
	var logs bytes.Buffer
	v := New(biologyIndex(t), quietLogger(&logs))
	var navigated []int
	v.OnNavigate(func(p int) { navigated = append(navigated, p) })

	v.Handle(command.GoToPage{Page: 3})
	assert.Zero(t, v.CurrentPage())
	assert.Equal(t, 3, v.PendingPage())
	assert.Contains(t, logs.String(), "NAVIGATE_PENDING | page=3")

	v.Mount(2, 1)
	assert.Zero(t, v.CurrentPage())

	v.Mount(3, 1)
	assert.Equal(t, 3, v.CurrentPage())
	assert.Zero(t, v.PendingPage())
	assert.Equal(t, []int{3}, navigated)
}

func TestTextHighlightQueuedUntilMount(t *testing.T) {
	var logs bytes.Buffer
	v := New(biologyIndex(t), quietLogger(&logs))

	v.Handle(command.HighlightText{Page: 5, Locator: command.Substring{Text: "water"}, Color: "green"})
	v.Handle(command.HighlightText{Page: 5, Locator: command.OffsetRange{Start: 150, End: 155}})
	assert.Zero(t, v.State().Len())
	assert.Equal(t, 2, v.Snapshot().Queued)

	v.Mount(5, 2)

	hs := v.State().Page(5)
	require.Len(t, hs, 2)
	assert.Equal(t, "green", hs[0].Color)
	assert.Equal(t, "yellow", hs[1].Color)
	assert.Zero(t, v.Snapshot().Queued)
}

func TestClearDropsQueuedText(t *testing.T) {
	var logs bytes.Buffer
	v := New(biologyIndex(t), quietLogger(&logs))

	v.Handle(command.HighlightText{Page: 5, Locator: command.Substring{Text: "osmosis"}})
	v.Handle(command.ClearHighlights{Page: 5})
	v.Mount(5, 1)

	assert.Empty(t, v.State().Page(5))
}

func TestResolverMissIsLogged(t *testing.T) {
	var logs bytes.Buffer
	v := New(biologyIndex(t), WithAutoMount(1), quietLogger(&logs))

	v.Handle(command.HighlightText{Page: 5, Locator: command.Substring{Text: "mitochondria"}})
	v.Handle(command.HighlightText{Page: 40, Locator: command.OffsetRange{Start: 0, End: 4}})

	assert.Zero(t, v.State().Len())
	assert.Contains(t, logs.String(), "RESOLVER_MISS | page=5")
	assert.Contains(t, logs.String(), "RESOLVER_MISS | page=40 reason=no-layout")
}

func TestScaleChangeKeepsNormalizedBoxes(t *testing.T) {
	var logs bytes.Buffer
	v := New(biologyIndex(t), quietLogger(&logs))
	v.Mount(5, 1)
	v.Handle(command.HighlightText{Page: 5, Locator: command.OffsetRange{Start: 120, End: 130}})

	v.SetScale(5, 3)
	v.Handle(command.HighlightText{Page: 5, Locator: command.OffsetRange{Start: 120, End: 130}})

	hs := v.State().Page(5)
	require.Len(t, hs, 2)
	assert.InDelta(t, hs[0].Rect.X, hs[1].Rect.X, 1e-9)
	assert.InDelta(t, hs[0].Rect.Y, hs[1].Rect.Y, 1e-9)
	assert.Equal(t, []MountedPage{{Page: 5, Scale: 3}}, v.Snapshot().Mounted)

	v.Unmount(5)
	v.SetScale(5, 2)
	assert.Empty(t, v.Snapshot().Mounted)
}

// =============================================================================
// BUS LIFECYCLE
// =============================================================================

func TestDetachStopsDelivery(t *testing.T) {
	var logs bytes.Buffer
	v := New(biologyIndex(t), WithAutoMount(1), quietLogger(&logs))
	b := bus.New()

	v.Attach(b)
	v.Attach(b)
	require.Equal(t, 1, b.Len(), "re-attaching replaces the subscription")

	v.Detach()
	assert.Zero(t, b.Len())

	b.Publish(command.GoToPage{Page: 3})
	assert.Zero(t, v.CurrentPage())
}

func TestSnapshotAndReset(t *testing.T) {
	var logs bytes.Buffer
	v := New(biologyIndex(t), WithAutoMount(1), quietLogger(&logs))
	v.Handle(command.GoToPage{Page: 5})
	v.Handle(command.HighlightRect{Page: 5, Rect: command.Box{X: 0.1, Y: 0.1, W: 0.1, H: 0.1}})

	snap := v.Snapshot()
	assert.Equal(t, "biology.pdf", snap.Document)
	assert.Equal(t, 5, snap.CurrentPage)
	assert.Len(t, snap.Highlights, 1)

	v.Reset()
	snap = v.Snapshot()
	assert.Zero(t, snap.CurrentPage)
	assert.NotNil(t, snap.Highlights)
	assert.Empty(t, snap.Highlights)
}

func TestSetIndexClearsState(t *testing.T) {
	var logs bytes.Buffer
	v := New(nil, WithAutoMount(1), quietLogger(&logs))

	v.Handle(command.HighlightText{Page: 5, Locator: command.Substring{Text: "osmosis"}})
	assert.Contains(t, logs.String(), "reason=no-document")

	v.Handle(command.HighlightRect{Page: 1, Rect: command.Box{W: 0.5, H: 0.5}})
	v.SetIndex(biologyIndex(t))
	assert.Zero(t, v.State().Len())

	v.Handle(command.HighlightText{Page: 5, Locator: command.Substring{Text: "osmosis"}})
	assert.Equal(t, 1, v.State().Len())
}
