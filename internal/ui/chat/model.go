// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"io"
	"log"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/pagetutor/internal/command"
	"github.com/jeranaias/pagetutor/internal/layout"
	"github.com/jeranaias/pagetutor/internal/storage"
	"github.com/jeranaias/pagetutor/internal/tutor"
	"github.com/jeranaias/pagetutor/internal/ui/components"
	"github.com/jeranaias/pagetutor/internal/ui/styles"
	"github.com/jeranaias/pagetutor/internal/viewer"
)

// ErrNoProvider is reported when the program has no model provider.
var ErrNoProvider = errors.New("no model provider configured")

const (
	defaultWidth  = 100
	defaultHeight = 30

	// minPanelWidth is the narrowest terminal that still shows the panel.
	minPanelWidth = 80
)

// =============================================================================
// CONFIG
// =============================================================================

// Config wires the program to a tutor session and a document.
type Config struct {
	Theme    *styles.Theme
	Session  *tutor.Session
	Provider tutor.Provider
	Model    string

	// Viewer must be attached to the session's bus for the panel to follow
	// replies.
	Viewer *viewer.Viewer
	Index  *layout.Index

	// DocumentID enables transcript recording when Transcripts is set.
	DocumentID  string
	Transcripts *storage.TranscriptStore
	History     []storage.Message

	Logger *log.Logger
}

// =============================================================================
// MODEL
// =============================================================================

type entry struct {
	role     string
	text     string
	commands []string
	err      string
	done     bool
}

// Model is the Bubble Tea model of the chat program.
type Model struct {
	cfg   Config
	theme *styles.Theme
	keys  KeyMap

	input    textinput.Model
	viewport viewport.Model
	spinner  components.Spinner
	panel    *components.PagePanel
	status   *components.StatusBar
	markdown *components.Markdown

	entries   []entry
	streaming bool
	exchange  int
	buffer    *StreamingBuffer
	cancel    context.CancelFunc

	width     int
	height    int
	showPanel bool
}

// New creates a chat model.
func New(cfg Config) Model {
	if cfg.Theme == nil {
		cfg.Theme = styles.NewTheme()
	}
	if cfg.Logger == nil {
		cfg.Logger = log.New(io.Discard, "", 0)
	}
	theme := cfg.Theme

	ti := textinput.New()
	ti.Placeholder = "Ask about the document..."
	ti.Prompt = "> "
	ti.PromptStyle = theme.InputPrompt
	ti.CharLimit = 4000
	ti.Focus()

	status := components.NewStatusBar(theme)
	if cfg.Provider != nil {
		status.SetProvider(cfg.Provider.Name(), cfg.Model)
	}

	m := Model{
		cfg:      cfg,
		theme:    theme,
		keys:     DefaultKeyMap(),
		input:    ti,
		viewport: viewport.New(defaultWidth, defaultHeight),
		spinner:  components.NewSpinner(theme, "Thinking"),
		panel:    components.NewPagePanel(theme),
		status:   status,
		markdown: components.NewMarkdown(theme),
		buffer:   NewStreamingBuffer(),
		entries:  historyEntries(cfg.History),
	}
	m.resize(defaultWidth, defaultHeight)
	return m
}

// Run starts the program in the alternate screen and blocks until it exits.
func Run(cfg Config) error {
	p := tea.NewProgram(New(cfg), tea.WithAltScreen(), tea.WithMouseCellMotion())
	_, err := p.Run()
	return err
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.MouseMsg:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case StreamTickMsg:
		return m.handleStreamTick()

	case ExchangeDoneMsg:
		return m.handleExchangeDone(msg)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// =============================================================================
// KEYS
// =============================================================================

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		if m.cancel != nil {
			m.cancel()
		}
		return m, tea.Quit

	case key.Matches(msg, m.keys.Cancel):
		if m.streaming && m.cancel != nil {
			m.cancel()
		}
		return m, nil

	case key.Matches(msg, m.keys.Clear):
		if m.streaming {
			return m, nil
		}
		m.entries = nil
		if m.cfg.Viewer != nil {
			m.cfg.Viewer.Handle(command.ClearHighlights{})
		}
		m.refresh()
		return m, nil

	case key.Matches(msg, m.keys.PageUp):
		m.viewport.HalfViewUp()
		return m, nil

	case key.Matches(msg, m.keys.PageDown):
		m.viewport.HalfViewDown()
		return m, nil

	case key.Matches(msg, m.keys.Submit):
		return m.submit()
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// =============================================================================
// EXCHANGE
// =============================================================================

func (m Model) submit() (tea.Model, tea.Cmd) {
	question := strings.TrimSpace(m.input.Value())
	if question == "" || m.streaming {
		return m, nil
	}

	var docText string
	if m.cfg.Index != nil {
		docText = m.cfg.Index.Text()
	}
	prompt, err := tutor.BuildPrompt(question, docText)
	if err != nil {
		return m, nil
	}

	m.input.SetValue("")
	m.entries = append(m.entries,
		entry{role: storage.RoleUser, text: question, done: true},
		entry{role: storage.RoleAssistant},
	)

	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.exchange++
	m.streaming = true
	m.buffer.Reset()
	m.status.SetStatus(components.StatusStreaming)
	m.refresh()

	spin := m.spinner.Start()
	return m, tea.Batch(spin, streamTickCmd(), m.exchangeCmd(ctx, m.exchange, question, prompt))
}

// exchangeCmd runs one exchange off the render loop. Visible prose goes to
// the streaming buffer; commands go to the bus as they decode.
func (m Model) exchangeCmd(ctx context.Context, id int, question string, prompt tutor.Prompt) tea.Cmd {
	sess := m.cfg.Session
	provider := m.cfg.Provider
	buf := m.buffer
	transcripts := m.cfg.Transcripts
	docID := m.cfg.DocumentID
	logger := m.cfg.Logger

	return func() tea.Msg {
		if sess == nil || provider == nil {
			return ExchangeDoneMsg{ID: id, Err: ErrNoProvider}
		}
		reply, err := sess.Ask(ctx, provider, prompt, buf.Write)
		if err == nil && transcripts != nil && docID != "" {
			if _, terr := transcripts.Append(docID, storage.Message{Role: storage.RoleUser, Text: question}); terr != nil {
				logger.Printf("TRANSCRIPT_FAILED | doc=%s err=%v", docID, terr)
			} else if reply.Visible != "" || len(reply.Commands) > 0 {
				if _, terr := transcripts.Append(docID, storage.NewAssistantMessage(reply.Visible, reply.Commands)); terr != nil {
					logger.Printf("TRANSCRIPT_FAILED | doc=%s err=%v", docID, terr)
				}
			}
		}
		return ExchangeDoneMsg{ID: id, Reply: reply, Err: err}
	}
}

func (m Model) handleStreamTick() (tea.Model, tea.Cmd) {
	if !m.streaming {
		return m, nil
	}
	if text, ok := m.buffer.Flush(); ok {
		m.last().text += text
	}
	m.refresh()
	return m, streamTickCmd()
}

func (m Model) handleExchangeDone(msg ExchangeDoneMsg) (tea.Model, tea.Cmd) {
	if msg.ID != m.exchange || !m.streaming {
		return m, nil
	}
	m.streaming = false
	m.cancel = nil
	m.spinner.Stop()
	m.buffer.Reset()

	last := m.last()
	last.text = msg.Reply.Visible
	last.commands = describeAll(msg.Reply.Commands)
	last.done = true
	m.status.AddCommands(len(msg.Reply.Commands))

	switch {
	case msg.Err == nil:
		m.status.SetStatus(components.StatusIdle)
	case errors.Is(msg.Err, context.Canceled):
		last.err = "cancelled"
		m.status.SetStatus(components.StatusIdle)
	default:
		last.err = msg.Err.Error()
		m.status.SetStatus(components.StatusError)
	}

	m.refresh()
	return m, nil
}

// =============================================================================
// HELPERS
// =============================================================================

// last returns the entry being streamed into.
func (m *Model) last() *entry {
	return &m.entries[len(m.entries)-1]
}

func (m *Model) resize(width, height int) {
	m.width, m.height = width, height
	m.showPanel = width >= minPanelWidth

	panelWidth := 0
	if m.showPanel {
		panelWidth = components.PanelWidth
	}
	// header, spinner line, input (border + line), status bar
	bodyHeight := max(height-5, 3)

	m.viewport.Width = max(width-panelWidth, 10)
	m.viewport.Height = bodyHeight
	m.panel.SetSize(panelWidth, bodyHeight)
	m.status.SetWidth(width)
	m.input.Width = max(width-6, 10)
	m.refresh()
}

// refresh re-renders the conversation and pulls the viewer state into the
// panel.
func (m *Model) refresh() {
	if m.cfg.Viewer != nil {
		m.panel.SetSnapshot(m.cfg.Viewer.Snapshot())
	}
	m.viewport.SetContent(m.renderEntries(m.viewport.Width))
	m.viewport.GotoBottom()
}

func describeAll(cmds []command.Command) []string {
	out := make([]string, len(cmds))
	for i, c := range cmds {
		out[i] = command.Describe(c)
	}
	return out
}

// historyEntries turns a stored transcript into finished entries.
func historyEntries(history []storage.Message) []entry {
	var out []entry
	for _, msg := range history {
		e := entry{role: msg.Role, text: msg.Text, done: true}
		for _, raw := range msg.Commands {
			if cmd, err := command.Parse(raw); err == nil {
				e.commands = append(e.commands, command.Describe(cmd))
			}
		}
		out = append(out, e)
	}
	return out
}
