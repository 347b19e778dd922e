// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// chat.go - interactive tutoring.
//
// The default is the Bubble Tea program in internal/ui/chat. --plain, or a
// stdin that is not a terminal, gives a line REPL with history instead:
//
//	/clear      Clear every highlight
//	/page       Show the current page and its highlights
//	/history    Show the document transcript
//	/quit       Leave (also exit, quit, Ctrl+D)

package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"

	"github.com/jeranaias/pagetutor/internal/command"
	"github.com/jeranaias/pagetutor/internal/config"
	"github.com/jeranaias/pagetutor/internal/layout"
	"github.com/jeranaias/pagetutor/internal/library"
	"github.com/jeranaias/pagetutor/internal/storage"
	"github.com/jeranaias/pagetutor/internal/tutor"
	"github.com/jeranaias/pagetutor/internal/ui/chat"
	"github.com/jeranaias/pagetutor/internal/ui/styles"
)

const historyFileName = "chat_history"

// =============================================================================
// CHAT COMMAND
// =============================================================================

func runChat(a Args) error {
	e, err := newEnv(a)
	if err != nil {
		return err
	}
	defer e.Close()

	lib, err := e.openLibrary()
	if err != nil {
		return err
	}
	defer lib.Close()

	info, idx, err := e.loadDocument(context.Background(), lib, a.Doc)
	if err != nil {
		return err
	}
	provider, model, err := providerFactory(e.cfg)
	if err != nil {
		return NewCommandError("chat", "connect", e.cfg.LLM.Provider, err)
	}
	if err := checkProvider(context.Background(), provider); err != nil {
		return NewCommandError("chat", "connect", provider.Name(), err)
	}

	ts, err := e.transcripts()
	if err != nil {
		e.logger.Printf("TRANSCRIPT_FAILED | doc=%s err=%v", info.ID, err)
	}
	var history []storage.Message
	if ts != nil {
		if history, err = ts.List(info.ID); err != nil {
			e.logger.Printf("TRANSCRIPT_FAILED | doc=%s err=%v", info.ID, err)
		}
	}

	r := e.newRig(idx)
	defer r.Close()

	e.logger.Printf("CHAT_START | doc=%s provider=%s model=%s plain=%t", info.ID, provider.Name(), model, a.Plain)

	if a.Plain || !IsTTY() || !IsStdoutTTY() {
		repl := &plainChat{
			env:         e,
			rig:         r,
			provider:    provider,
			info:        info,
			index:       idx,
			transcripts: ts,
			theme:       styles.NewTheme(),
		}
		return repl.run()
	}

	return chat.Run(chat.Config{
		Theme:       styles.NewTheme(),
		Session:     r.session,
		Provider:    provider,
		Model:       model,
		Viewer:      r.viewer,
		Index:       idx,
		DocumentID:  info.ID,
		Transcripts: ts,
		History:     history,
		Logger:      e.logger,
	})
}

// =============================================================================
// LINE INPUT
// =============================================================================

// lineReader is the REPL's input: liner on a terminal, a scanner otherwise.
type lineReader interface {
	ReadInput(prompt string) (string, error)
	Close()
}

// ChatCLI provides input history and line editing for the REPL.
type ChatCLI struct {
	line        *liner.State
	historyFile string
}

// NewChatCLI creates a line editor and loads saved history.
func NewChatCLI() *ChatCLI {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	configDir, err := config.ConfigDir()
	if err != nil {
		configDir = os.TempDir()
	}
	c := &ChatCLI{line: line, historyFile: filepath.Join(configDir, historyFileName)}
	c.LoadHistory()
	return c
}

// LoadHistory loads command history from file.
func (c *ChatCLI) LoadHistory() {
	if f, err := os.Open(c.historyFile); err == nil {
		c.line.ReadHistory(f)
		f.Close()
	}
}

// ReadInput reads a line, adding non-empty input to history.
func (c *ChatCLI) ReadInput(prompt string) (string, error) {
	input, err := c.line.Prompt(prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(input) != "" {
		c.line.AppendHistory(input)
	}
	return input, nil
}

// SaveHistory persists history, readable only by the owner.
func (c *ChatCLI) SaveHistory() {
	if err := os.MkdirAll(filepath.Dir(c.historyFile), 0700); err != nil {
		return
	}
	f, err := os.OpenFile(c.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return
	}
	defer f.Close()
	c.line.WriteHistory(f)
}

// Close saves history and restores the terminal.
func (c *ChatCLI) Close() {
	c.SaveHistory()
	c.line.Close()
}

// scanReader reads lines from a non-terminal stdin.
type scanReader struct {
	scanner *bufio.Scanner
}

func (s *scanReader) ReadInput(prompt string) (string, error) {
	fmt.Fprint(stdout, prompt)
	if !s.scanner.Scan() {
		if err := s.scanner.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return s.scanner.Text(), nil
}

func (s *scanReader) Close() {}

// =============================================================================
// REPL
// =============================================================================

type plainChat struct {
	env         *env
	rig         *rig
	provider    tutor.Provider
	info        library.DocumentInfo
	index       *layout.Index
	transcripts *storage.TranscriptStore
	theme       *styles.Theme

	// newReader is overridden in tests.
	newReader func() lineReader
}

func (c *plainChat) reader() lineReader {
	if c.newReader != nil {
		return c.newReader()
	}
	if IsTTY() {
		return NewChatCLI()
	}
	return &scanReader{scanner: bufio.NewScanner(stdin)}
}

func (c *plainChat) run() error {
	in := c.reader()
	defer in.Close()

	if !c.env.args.Quiet {
		fmt.Fprintf(stdout, "%s %s\n", TitleStyle.Render("pagetutor"), DimStyle.Render(c.info.Name))
		fmt.Fprintln(stdout, DimStyle.Render("/page /clear /history /quit"))
	}

	prompt := "tutor> "
	for {
		input, err := in.ReadInput(prompt)
		if err != nil {
			fmt.Fprintln(stdout)
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}

		input = strings.TrimSpace(input)
		switch {
		case input == "":
			continue
		case input == "exit" || input == "quit":
			return nil
		case strings.HasPrefix(input, "/"):
			if !c.slash(input) {
				return nil
			}
			continue
		}

		if err := c.ask(input); err != nil {
			fmt.Fprintf(stderr, "%s %v\n", ErrorStyle.Render("[ERROR]"), err)
		}
	}
}

// slash runs a REPL command and reports whether to keep going.
func (c *plainChat) slash(input string) bool {
	switch strings.Fields(input)[0] {
	case "/quit", "/q", "/exit":
		return false
	case "/clear", "/c":
		c.rig.bus.Publish(command.ClearHighlights{})
		fmt.Fprintln(stdout, SuccessStyle.Render("[OK]")+" highlights cleared")
	case "/page", "/p":
		snap := c.rig.viewer.Snapshot()
		if snap.CurrentPage > 0 {
			fmt.Fprintf(stdout, "%s%d\n", RenderLabel("Page"), snap.CurrentPage)
		}
		if len(snap.Highlights) == 0 {
			fmt.Fprintln(stdout, DimStyle.Render("no highlights"))
		}
		for _, h := range snap.Highlights {
			fmt.Fprintln(stdout, "  "+formatHighlight(c.theme, h))
		}
	case "/history", "/h":
		c.printHistory()
	default:
		fmt.Fprintln(stdout, WarningStyle.Render("unknown command: "+input))
	}
	return true
}

func (c *plainChat) printHistory() {
	if c.transcripts == nil {
		return
	}
	msgs, err := c.transcripts.List(c.info.ID)
	if err != nil {
		fmt.Fprintf(stderr, "%s %v\n", ErrorStyle.Render("[ERROR]"), err)
		return
	}
	if len(msgs) == 0 {
		fmt.Fprintln(stdout, DimStyle.Render("no history"))
		return
	}
	for _, m := range msgs {
		label := "You"
		if m.Role == storage.RoleAssistant {
			label = "Tutor"
		}
		fmt.Fprintf(stdout, "%s %s\n", RenderLabel(label), m.Text)
		for _, raw := range m.Commands {
			if cmd, err := command.Parse(raw); err == nil {
				fmt.Fprintf(stdout, "%s -> %s\n", RenderLabel(""), command.Describe(cmd))
			}
		}
	}
}

// ask streams one exchange. Ctrl+C during the reply cancels the exchange
// and returns to the prompt.
func (c *plainChat) ask(question string) error {
	prompt, err := tutor.BuildPrompt(question, c.index.Text())
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if timeout := c.env.cfg.LLM.TimeoutDuration(); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	reply, err := c.rig.session.Ask(ctx, c.provider, prompt, func(text string) {
		fmt.Fprint(stdout, text)
	})
	fmt.Fprintln(stdout)
	if errors.Is(err, context.Canceled) {
		fmt.Fprintln(stdout, WarningStyle.Render("[cancelled]"))
		return nil
	}
	if err != nil {
		return err
	}

	for _, cmd := range reply.Commands {
		fmt.Fprintln(stdout, DimStyle.Render("  -> "+command.Describe(cmd)))
	}
	if c.transcripts != nil {
		recordExchange(c.env, c.info.ID, question, reply)
	}
	return nil
}

