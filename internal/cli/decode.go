// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	chromaStyles "github.com/alecthomas/chroma/v2/styles"

	"github.com/jeranaias/pagetutor/internal/command"
	"github.com/jeranaias/pagetutor/internal/tutor"
	"github.com/jeranaias/pagetutor/internal/ui/styles"
)

// defaultDecodeChunk is small enough that tags regularly straddle fragments.
const defaultDecodeChunk = 16

// =============================================================================
// DECODE COMMAND
// =============================================================================

// runDecode replays a saved reply through the stream decoder, fed in
// fixed-size fragments the way a provider delivers it, and prints what a
// client would see: the commands in dispatch order and the prose.
func runDecode(a Args) error {
	e, err := newEnv(a)
	if err != nil {
		return err
	}
	defer e.Close()

	text, err := readDecodeInput(a.File)
	if err != nil {
		return err
	}

	// No bus: commands are collected, not dispatched.
	sess := tutor.NewSession(nil, tutor.WithLogger(e.logger))
	src := tutor.NewStaticSource(tutor.Chunk(text, a.Chunk)...)
	reply, err := sess.Exchange(context.Background(), src, nil)
	if err != nil {
		return NewCommandError("decode", "replay", a.File, err)
	}

	raw := make([]json.RawMessage, 0, len(reply.Commands))
	for _, cmd := range reply.Commands {
		data, err := command.Encode(cmd)
		if err != nil {
			return NewCommandError("decode", "encode", cmd.Action(), err)
		}
		raw = append(raw, data)
	}

	if a.JSON {
		return NewJSONResponse("decode", DecodeData{Commands: raw, Visible: reply.Visible, Dropped: reply.Dropped}).Print()
	}

	if !a.Quiet {
		fmt.Fprintln(stdout, SectionStyle.Render(fmt.Sprintf("Commands (%d)", len(raw))))
	}
	dark := styles.NewTheme().IsDark
	for i, data := range raw {
		var pretty bytes.Buffer
		if err := json.Indent(&pretty, data, "", "  "); err != nil {
			pretty.Reset()
			pretty.Write(data)
		}
		if !a.Quiet {
			fmt.Fprintf(stdout, "%s %s\n", DimStyle.Render(fmt.Sprintf("#%d", i+1)), command.Describe(reply.Commands[i]))
		}
		fmt.Fprintln(stdout, highlightJSON(pretty.String(), dark))
	}
	if reply.Dropped > 0 {
		fmt.Fprintln(stdout, WarningStyle.Render(fmt.Sprintf("%d malformed command(s) dropped", reply.Dropped)))
	}

	if !a.Quiet {
		fmt.Fprintln(stdout, SectionStyle.Render("Prose"))
	}
	fmt.Fprintln(stdout, reply.Visible)
	return nil
}

func readDecodeInput(path string) (string, error) {
	if path == "" || path == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", NewCommandError("decode", "read", "stdin", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return "", &NotFoundError{Resource: "file", ID: path}
	}
	if err != nil {
		return "", NewCommandError("decode", "read", path, err)
	}
	return string(data), nil
}

// highlightJSON colors code for the terminal. Without color support the
// text is returned unchanged.
func highlightJSON(code string, dark bool) string {
	if !ColorsEnabled() {
		return code
	}

	lexer := lexers.Get("json")
	if lexer == nil {
		lexer = lexers.Fallback
	}
	lexer = chroma.Coalesce(lexer)

	name := "monokai"
	if !dark {
		name = "github"
	}
	style := chromaStyles.Get(name)
	if style == nil {
		style = chromaStyles.Fallback
	}

	formatter := formatters.Get("terminal256")
	if formatter == nil {
		formatter = formatters.Fallback
	}

	iterator, err := lexer.Tokenise(nil, code)
	if err != nil {
		return code
	}
	var buf strings.Builder
	if err := formatter.Format(&buf, style, iterator); err != nil {
		return code
	}
	return strings.TrimRight(buf.String(), "\n")
}
