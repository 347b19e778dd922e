// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/jeranaias/pagetutor/internal/command"
	"github.com/jeranaias/pagetutor/internal/highlight"
	"github.com/jeranaias/pagetutor/internal/storage"
	"github.com/jeranaias/pagetutor/internal/tutor"
	"github.com/jeranaias/pagetutor/internal/ui/components"
	"github.com/jeranaias/pagetutor/internal/ui/styles"
	"github.com/jeranaias/pagetutor/internal/viewer"
)

// =============================================================================
// ASK COMMAND
// =============================================================================

// runAsk runs one exchange against a stored document. The viewer treats
// every page as mounted at the configured scale, so text highlights resolve
// immediately and the applied state can be printed after the reply.
func runAsk(a Args) error {
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	info, idx, err := e.loadDocument(ctx, lib, a.Doc)
	if err != nil {
		return err
	}
	provider, model, err := providerFactory(e.cfg)
	if err != nil {
		return NewCommandError("ask", "connect", e.cfg.LLM.Provider, err)
	}
	if err := checkProvider(ctx, provider); err != nil {
		return NewCommandError("ask", "connect", provider.Name(), err)
	}
	prompt, err := tutor.BuildPrompt(a.Question, idx.Text())
	if err != nil {
		return &ValidationError{Field: "question", Reason: err.Error()}
	}

	r := e.newRig(idx)
	defer r.Close()

	if timeout := e.cfg.LLM.TimeoutDuration(); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	e.logger.Printf("ASK | doc=%s provider=%s model=%s", info.ID, provider.Name(), model)

	// A pipe gets prose as it arrives; a terminal gets rendered markdown once
	// the reply is complete.
	live := !a.JSON && !IsStdoutTTY()
	var sink tutor.Sink
	if live {
		sink = func(text string) { fmt.Fprint(stdout, text) }
	}

	reply, err := r.session.Ask(ctx, provider, prompt, sink)
	if live {
		fmt.Fprintln(stdout)
	}
	if err != nil {
		return NewCommandError("ask", "exchange", provider.Name(), err)
	}

	recordExchange(e, info.ID, a.Question, reply)
	snap := r.viewer.Snapshot()

	if a.JSON {
		data := AskData{
			Document:   info.Name,
			Question:   a.Question,
			Reply:      reply.Visible,
			Commands:   storage.NewAssistantMessage("", reply.Commands).Commands,
			Dropped:    reply.Dropped,
			Page:       snap.CurrentPage,
			Highlights: snap.Highlights,
		}
		if data.Commands == nil {
			data.Commands = []json.RawMessage{}
		}
		return NewJSONResponse("ask", data).Print()
	}

	theme := styles.NewTheme()
	if !live {
		md := components.NewMarkdown(theme)
		fmt.Fprintln(stdout, md.Render(reply.Visible, GetTerminalWidth()))
	}
	if !a.Quiet {
		printApplied(theme, reply, snap)
	}
	return nil
}

// recordExchange appends the question and reply to the document transcript.
// Failures are logged; the reply was already shown.
func recordExchange(e *env, docID, question string, reply tutor.Reply) {
	ts, err := e.transcripts()
	if err != nil {
		e.logger.Printf("TRANSCRIPT_FAILED | doc=%s err=%v", docID, err)
		return
	}
	if _, err := ts.Append(docID, storage.Message{Role: storage.RoleUser, Text: question}); err != nil {
		e.logger.Printf("TRANSCRIPT_FAILED | doc=%s err=%v", docID, err)
		return
	}
	if reply.Visible == "" && len(reply.Commands) == 0 {
		return
	}
	if _, err := ts.Append(docID, storage.NewAssistantMessage(reply.Visible, reply.Commands)); err != nil {
		e.logger.Printf("TRANSCRIPT_FAILED | doc=%s err=%v", docID, err)
	}
}

// printApplied lists the commands a reply dispatched and the highlights
// that resulted.
func printApplied(theme *styles.Theme, reply tutor.Reply, snap viewer.Snapshot) {
	if len(reply.Commands) == 0 && len(snap.Highlights) == 0 {
		return
	}

	fmt.Fprintln(stdout)
	fmt.Fprintln(stdout, SectionStyle.Render("Commands"))
	for _, cmd := range reply.Commands {
		fmt.Fprintf(stdout, "  -> %s\n", command.Describe(cmd))
	}
	if reply.Dropped > 0 {
		fmt.Fprintln(stdout, WarningStyle.Render(fmt.Sprintf("  %d malformed command(s) dropped", reply.Dropped)))
	}

	if snap.CurrentPage > 0 {
		fmt.Fprintf(stdout, "%s%d\n", RenderLabel("Page"), snap.CurrentPage)
	}
	fmt.Fprintln(stdout, SectionStyle.Render("Highlights"))
	if len(snap.Highlights) == 0 {
		fmt.Fprintln(stdout, DimStyle.Render("  none"))
		return
	}
	for _, h := range snap.Highlights {
		fmt.Fprintln(stdout, "  "+formatHighlight(theme, h))
	}
}

func formatHighlight(theme *styles.Theme, h highlight.Highlight) string {
	parts := []string{
		theme.Swatch(h.Color),
		fmt.Sprintf("p.%d", h.Page),
		fmt.Sprintf("x%.3f y%.3f %.3fx%.3f", h.Rect.X, h.Rect.Y, h.Rect.W, h.Rect.H),
		DimStyle.Render(h.Color),
	}
	return strings.Join(parts, " ")
}
