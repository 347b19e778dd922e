// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/pagetutor/internal/bus"
	"github.com/jeranaias/pagetutor/internal/command"
	"github.com/jeranaias/pagetutor/internal/layout"
	"github.com/jeranaias/pagetutor/internal/storage"
	"github.com/jeranaias/pagetutor/internal/tutor"
	"github.com/jeranaias/pagetutor/internal/ui/components"
	"github.com/jeranaias/pagetutor/internal/ui/styles"
	"github.com/jeranaias/pagetutor/internal/viewer"
)

const osmosisReply = `Osmosis is the diffusion of water. ` +
	`<cmd>{"action":"goToPage","page":5}</cmd>` +
	`See the highlight.` +
	`<cmd>{"action":"highlightText","page":5,"start":120,"end":130,"color":"yellow"}</cmd>`

type fixture struct {
	viewer      *viewer.Viewer
	transcripts *storage.TranscriptStore
	logs        bytes.Buffer
}

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
	return idx
}

func newModel(t *testing.T, provider tutor.Provider, mutate func(*Config)) (Model, *fixture) {
	t.Helper()
	f := &fixture{}
	logger := log.New(&f.logs, "", 0)

	idx := biologyIndex(t)
	b := bus.New()
	f.viewer = viewer.New(idx, viewer.WithAutoMount(1.5), viewer.WithLogger(logger))
	f.viewer.Attach(b)

	trans, err := storage.NewTranscriptStoreWithDir(t.TempDir())
	require.NoError(t, err)
	f.transcripts = trans

	cfg := Config{
		Theme:       styles.NewThemeFor(true),
		Session:     tutor.NewSession(b, tutor.WithLogger(logger)),
		Provider:    provider,
		Model:       "test",
		Viewer:      f.viewer,
		Index:       idx,
		DocumentID:  "doc-1",
		Transcripts: trans,
		Logger:      logger,
	}
	if mutate != nil {
		mutate(&cfg)
	}

	m := New(cfg)
	next, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	return next.(Model), f
}

// runCmd executes cmd and any batch it expands to, returning every message.
func runCmd(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	msg := cmd()
	if batch, ok := msg.(tea.BatchMsg); ok {
		var out []tea.Msg
		for _, c := range batch {
			out = append(out, runCmd(c)...)
		}
		return out
	}
	return []tea.Msg{msg}
}

func exchangeDone(t *testing.T, msgs []tea.Msg) ExchangeDoneMsg {
	t.Helper()
	for _, msg := range msgs {
		if done, ok := msg.(ExchangeDoneMsg); ok {
			return done
		}
	}
	t.Fatal("no ExchangeDoneMsg produced")
	return ExchangeDoneMsg{}
}

// ask types question, presses enter and returns the model and its command.
func ask(t *testing.T, m Model, question string) (Model, tea.Cmd) {
	t.Helper()
	m.input.SetValue(question)
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	return next.(Model), cmd
}

func update(m Model, msg tea.Msg) Model {
	next, _ := m.Update(msg)
	return next.(Model)
}

// =============================================================================
// EXCHANGE
// =============================================================================

func TestChat_AskStreamsAndDrivesViewer(t *testing.T) {
	m, f := newModel(t, tutor.StaticProvider{Fragments: tutor.Chunk(osmosisReply, 9)}, nil)

	m, cmd := ask(t, m, "What is osmosis?")
	require.True(t, m.streaming)
	require.Len(t, m.entries, 2)
	assert.Empty(t, m.input.Value())

	m = update(m, exchangeDone(t, runCmd(cmd)))

	require.False(t, m.streaming)
	last := m.entries[1]
	assert.Equal(t, "Osmosis is the diffusion of water. See the highlight.", last.text)
	assert.Equal(t, []string{"go to page 5", "highlight yellow offsets [120,130) on page 5"}, last.commands)
	assert.Empty(t, last.err)

	snap := f.viewer.Snapshot()
	assert.Equal(t, 5, snap.CurrentPage)
	assert.Len(t, snap.Highlights, 1)

	view := m.View()
	assert.Contains(t, view, "-> go to page 5")
	assert.Contains(t, view, "biology.pdf")

	msgs, err := f.transcripts.List("doc-1")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "What is osmosis?", msgs[0].Text)
	assert.Len(t, msgs[1].Commands, 2)
}

func TestChat_StreamTickMovesBufferedText(t *testing.T) {
	m, _ := newModel(t, tutor.StaticProvider{}, nil)
	m, _ = ask(t, m, "What is osmosis?")

	m.buffer.Write("Osmosis is ")
	time.Sleep(40 * time.Millisecond)
	next, cmd := m.Update(StreamTickMsg{Time: time.Now()})
	m = next.(Model)

	assert.Equal(t, "Osmosis is ", m.entries[1].text)
	assert.NotNil(t, cmd, "ticks continue while streaming")
	assert.Contains(t, m.View(), "Thinking")
}

func TestChat_CancelEndsExchange(t *testing.T) {
	m, _ := newModel(t, tutor.StaticProvider{Fragments: []string{"never shown"}}, nil)
	m, cmd := ask(t, m, "What is osmosis?")

	m = update(m, tea.KeyMsg{Type: tea.KeyEsc})
	done := exchangeDone(t, runCmd(cmd))
	require.True(t, errors.Is(done.Err, context.Canceled))

	m = update(m, done)
	assert.False(t, m.streaming)
	assert.Equal(t, "cancelled", m.entries[1].err)
	assert.Equal(t, components.StatusIdle, m.status.Status())
}

func TestChat_IgnoresStaleReplies(t *testing.T) {
	m, _ := newModel(t, tutor.StaticProvider{}, nil)
	m, _ = ask(t, m, "What is osmosis?")

	m = update(m, ExchangeDoneMsg{ID: m.exchange + 1, Reply: tutor.Reply{Visible: "stale"}})
	assert.True(t, m.streaming)
	assert.Empty(t, m.entries[1].text)
}

type failingProvider struct{}

func (failingProvider) Open(context.Context, tutor.Prompt) (tutor.Source, error) {
	return nil, errors.New("connection refused")
}
func (failingProvider) Name() string { return "broken" }

func TestChat_ProviderFailureIsShownOnce(t *testing.T) {
	m, f := newModel(t, failingProvider{}, nil)
	m, cmd := ask(t, m, "What is osmosis?")
	m = update(m, exchangeDone(t, runCmd(cmd)))

	assert.Equal(t, "broken: connection refused", m.entries[1].err)
	assert.Equal(t, components.StatusError, m.status.Status())

	msgs, err := f.transcripts.List("doc-1")
	require.NoError(t, err)
	assert.Empty(t, msgs, "failed exchanges are not recorded")
}

func TestChat_NoProvider(t *testing.T) {
	m, _ := newModel(t, nil, nil)
	m, cmd := ask(t, m, "What is osmosis?")
	done := exchangeDone(t, runCmd(cmd))
	assert.ErrorIs(t, done.Err, ErrNoProvider)
}

// =============================================================================
// KEYS AND HISTORY
// =============================================================================

func TestChat_EmptySubmitDoesNothing(t *testing.T) {
	m, _ := newModel(t, tutor.StaticProvider{}, nil)
	m, cmd := ask(t, m, "   ")
	assert.Nil(t, cmd)
	assert.False(t, m.streaming)
	assert.Empty(t, m.entries)
}

func TestChat_ClearResetsConversationAndHighlights(t *testing.T) {
	m, f := newModel(t, tutor.StaticProvider{Fragments: []string{osmosisReply}}, nil)
	m, cmd := ask(t, m, "What is osmosis?")
	m = update(m, exchangeDone(t, runCmd(cmd)))
	require.Len(t, f.viewer.Snapshot().Highlights, 1)

	m = update(m, tea.KeyMsg{Type: tea.KeyCtrlL})
	assert.Empty(t, m.entries)
	assert.Empty(t, f.viewer.Snapshot().Highlights)
}

func TestChat_QuitCancelsExchange(t *testing.T) {
	m, _ := newModel(t, tutor.StaticProvider{}, nil)
	m, _ = ask(t, m, "What is osmosis?")

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}

func TestChat_History(t *testing.T) {
	raw, err := command.Encode(command.GoToPage{Page: 5})
	require.NoError(t, err)

	m, _ := newModel(t, tutor.StaticProvider{}, func(cfg *Config) {
		cfg.History = []storage.Message{
			{Role: storage.RoleUser, Text: "What is osmosis?"},
			{Role: storage.RoleAssistant, Text: "See page 5.", Commands: []json.RawMessage{raw}},
		}
	})

	require.Len(t, m.entries, 2)
	assert.Equal(t, []string{"go to page 5"}, m.entries[1].commands)
	assert.Contains(t, m.View(), "What is osmosis?")
}

func TestChat_NarrowTerminalHidesPanel(t *testing.T) {
	m, _ := newModel(t, tutor.StaticProvider{}, nil)
	m = update(m, tea.WindowSizeMsg{Width: 60, Height: 20})
	assert.False(t, m.showPanel)
	assert.Equal(t, 60, m.viewport.Width)
	assert.NotContains(t, m.View(), "Highlights")
}

// =============================================================================
// STREAMING BUFFER
// =============================================================================

func TestStreamingBuffer(t *testing.T) {
	sb := NewStreamingBuffer()

	_, ok := sb.Flush()
	assert.False(t, ok, "empty buffer never flushes")

	sb.Write("a")
	sb.Write("")
	assert.Equal(t, 1, sb.Pending())
	_, ok = sb.Flush()
	assert.False(t, ok, "one fragment waits for the frame interval")

	text, ok := sb.ForceFlush()
	assert.True(t, ok)
	assert.Equal(t, "a", text)

	for i := 0; i < 15; i++ {
		sb.Write("x")
	}
	text, ok = sb.Flush()
	assert.True(t, ok, "a full batch flushes immediately")
	assert.Len(t, text, 15)

	sb.Write("y")
	sb.Reset()
	assert.Zero(t, sb.Pending())
}
