// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/jeranaias/pagetutor/internal/claude"
	"github.com/jeranaias/pagetutor/internal/library"
)

// =============================================================================
// ARG PARSER TESTS (args.go)
// =============================================================================

func TestArgParser_BasicParsing(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		bools    []string
		wantSub  string
		validate func(*testing.T, *ArgParser)
	}{
		{
			name:    "simple subcommand",
			args:    []string{"docs"},
			wantSub: "docs",
		},
		{
			name:    "subcommand with flag",
			args:    []string{"locate", "--page", "5"},
			wantSub: "locate",
			validate: func(t *testing.T, p *ArgParser) {
				if p.Flag("page") != "5" {
					t.Errorf("Flag(page) = %q, want %q", p.Flag("page"), "5")
				}
			},
		},
		{
			name:    "flag with equals",
			args:    []string{"locate", "--text=cell wall"},
			wantSub: "locate",
			validate: func(t *testing.T, p *ArgParser) {
				if p.Flag("text") != "cell wall" {
					t.Errorf("Flag(text) = %q, want %q", p.Flag("text"), "cell wall")
				}
			},
		},
		{
			name:    "undeclared flag swallows the next word",
			args:    []string{"ask", "--json", "what", "is", "osmosis"},
			wantSub: "ask",
			validate: func(t *testing.T, p *ArgParser) {
				if p.Flag("json") != "what" {
					t.Errorf("Flag(json) = %q, want %q", p.Flag("json"), "what")
				}
			},
		},
		{
			name:    "declared bool never takes a value",
			args:    []string{"ask", "--json", "what", "is", "osmosis"},
			bools:   []string{"json"},
			wantSub: "ask",
			validate: func(t *testing.T, p *ArgParser) {
				if !p.BoolFlag("json") {
					t.Error("BoolFlag(json) should be true")
				}
				if got := JoinPositionalArgs(p, 1); got != "what is osmosis" {
					t.Errorf("question = %q, want %q", got, "what is osmosis")
				}
			},
		},
		{
			name:    "double dash ends flags",
			args:    []string{"ask", "--", "--why", "is", "it"},
			wantSub: "ask",
			validate: func(t *testing.T, p *ArgParser) {
				if got := JoinPositionalArgs(p, 1); got != "--why is it" {
					t.Errorf("question = %q, want %q", got, "--why is it")
				}
			},
		},
		{
			name:    "negative numbers are values",
			args:    []string{"locate", "--start", "-4"},
			wantSub: "locate",
			validate: func(t *testing.T, p *ArgParser) {
				n, err := p.FlagInt("start")
				if err != nil || n != -4 {
					t.Errorf("FlagInt(start) = %d, %v; want -4", n, err)
				}
			},
		},
		{
			name:    "lone dash is positional",
			args:    []string{"decode", "-"},
			wantSub: "decode",
			validate: func(t *testing.T, p *ArgParser) {
				if p.Positional(1) != "-" {
					t.Errorf("Positional(1) = %q, want %q", p.Positional(1), "-")
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parser := NewArgParser(tt.args, tt.bools...)
			if parser.Subcommand() != tt.wantSub {
				t.Errorf("Subcommand() = %q, want %q", parser.Subcommand(), tt.wantSub)
			}
			if tt.validate != nil {
				tt.validate(t, parser)
			}
		})
	}
}

func TestArgParser_FlagFloat(t *testing.T) {
	p := NewArgParser([]string{"locate", "--scale", "1.5", "--bad", "x"})

	if f, err := p.FlagFloat("scale", 1); err != nil || f != 1.5 {
		t.Errorf("FlagFloat(scale) = %v, %v; want 1.5", f, err)
	}
	if f, err := p.FlagFloat("missing", 2); err != nil || f != 2 {
		t.Errorf("FlagFloat(missing) = %v, %v; want default 2", f, err)
	}
	if _, err := p.FlagFloat("bad", 0); err == nil {
		t.Error("FlagFloat(bad) should fail")
	}
}

func TestArgParser_HasFlagAndDefaults(t *testing.T) {
	p := NewArgParser([]string{"serve", "--addr", ":9000", "--no-watch"}, "no-watch")

	if !p.HasFlag("addr") || !p.HasFlag("--no-watch") {
		t.Error("HasFlag should see both flags")
	}
	if p.HasFlag("config") {
		t.Error("HasFlag(config) should be false")
	}
	if got := p.FlagOrDefault("config", "default.toml"); got != "default.toml" {
		t.Errorf("FlagOrDefault = %q", got)
	}
}

func TestArgParser_EmptyArgs(t *testing.T) {
	p := NewArgParser(nil)
	if p.Subcommand() != "" || p.PositionalCount() != 0 {
		t.Errorf("empty parser has subcommand %q and %d positionals", p.Subcommand(), p.PositionalCount())
	}
	if len(p.PositionalFrom(1)) != 0 {
		t.Error("PositionalFrom past the end should be empty")
	}
}

func TestParseIntWithValidation(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"5", 5, false},
		{"", 0, true},
		{"0", 0, true},
		{"-2", 0, true},
		{"five", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseIntWithValidation(tt.in, "page")
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseIntWithValidation(%q) = %d, %v", tt.in, got, err)
		}
	}
}

// =============================================================================
// PARSE TESTS (cli.go)
// =============================================================================

func TestParse(t *testing.T) {
	tests := []struct {
		name        string
		args        []string
		wantCommand Command
		validate    func(*testing.T, Args)
	}{
		{
			name:        "no arguments shows help",
			args:        nil,
			wantCommand: CmdHelp,
		},
		{
			name:        "ask with json before the question",
			args:        []string{"ask", "--json", "what", "is", "osmosis?", "--doc", "biology"},
			wantCommand: CmdAsk,
			validate: func(t *testing.T, a Args) {
				if a.Question != "what is osmosis?" {
					t.Errorf("Question = %q", a.Question)
				}
				if !a.JSON || a.Doc != "biology" {
					t.Errorf("JSON = %v, Doc = %q", a.JSON, a.Doc)
				}
			},
		},
		{
			name:        "chat plain",
			args:        []string{"chat", "--doc", "biology", "--plain", "-v"},
			wantCommand: CmdChat,
			validate: func(t *testing.T, a Args) {
				if !a.Plain || !a.Verbose || a.Doc != "biology" {
					t.Errorf("got %+v", a)
				}
			},
		},
		{
			name:        "serve with address",
			args:        []string{"serve", "--addr", "0.0.0.0:9000", "--no-watch"},
			wantCommand: CmdServe,
			validate: func(t *testing.T, a Args) {
				if a.Addr != "0.0.0.0:9000" || !a.NoWatch {
					t.Errorf("Addr = %q, NoWatch = %v", a.Addr, a.NoWatch)
				}
			},
		},
		{
			name:        "locate by text",
			args:        []string{"locate", "--doc", "biology", "--page", "5", "--text", "water", "--scale", "2"},
			wantCommand: CmdLocate,
			validate: func(t *testing.T, a Args) {
				if a.Page != 5 || a.Text != "water" || a.Scale != 2 || a.Range {
					t.Errorf("got %+v", a)
				}
			},
		},
		{
			name:        "locate by offsets",
			args:        []string{"locate", "--doc", "biology", "--page", "5", "--start", "120", "--end", "130"},
			wantCommand: CmdLocate,
			validate: func(t *testing.T, a Args) {
				if !a.Range || a.Start != 120 || a.End != 130 {
					t.Errorf("got %+v", a)
				}
			},
		},
		{
			name:        "decode defaults",
			args:        []string{"decode"},
			wantCommand: CmdDecode,
			validate: func(t *testing.T, a Args) {
				if a.Chunk != defaultDecodeChunk || a.File != "" {
					t.Errorf("Chunk = %d, File = %q", a.Chunk, a.File)
				}
			},
		},
		{
			name:        "config defaults to show",
			args:        []string{"config", "--config", "/tmp/x.toml"},
			wantCommand: CmdConfig,
			validate: func(t *testing.T, a Args) {
				if a.Subcommand != "show" || a.ConfigPath != "/tmp/x.toml" {
					t.Errorf("Subcommand = %q, ConfigPath = %q", a.Subcommand, a.ConfigPath)
				}
			},
		},
		{
			name:        "command help flag",
			args:        []string{"locate", "--help"},
			wantCommand: CmdHelp,
			validate: func(t *testing.T, a Args) {
				if a.HelpTopic != "locate" {
					t.Errorf("HelpTopic = %q", a.HelpTopic)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := Parse(tt.args)
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			if a.Command != tt.wantCommand {
				t.Errorf("Command = %v, want %v", a.Command, tt.wantCommand)
			}
			if tt.validate != nil {
				tt.validate(t, a)
			}
		})
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"unknown command", []string{"frobnicate"}},
		{"ask without question", []string{"ask", "--doc", "biology"}},
		{"import without file", []string{"import"}},
		{"docs delete without ref", []string{"docs", "delete"}},
		{"docs bad subcommand", []string{"docs", "purge"}},
		{"search without words", []string{"search"}},
		{"locate without doc", []string{"locate", "--page", "5", "--text", "x"}},
		{"locate without page", []string{"locate", "--doc", "d", "--text", "x"}},
		{"locate without locator", []string{"locate", "--doc", "d", "--page", "5"}},
		{"locate with both locators", []string{"locate", "--doc", "d", "--page", "5", "--text", "x", "--start", "1", "--end", "2"}},
		{"locate with half a range", []string{"locate", "--doc", "d", "--page", "5", "--start", "1"}},
		{"locate with empty range", []string{"locate", "--doc", "d", "--page", "5", "--start", "9", "--end", "9"}},
		{"locate with negative start", []string{"locate", "--doc", "d", "--page", "5", "--start", "-1", "--end", "9"}},
		{"decode bad chunk", []string{"decode", "--chunk", "0"}},
		{"config set without value", []string{"config", "set", "llm.model"}},
		{"config unknown subcommand", []string{"config", "reset"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.args)
			if err == nil {
				t.Fatal("Parse() should fail")
			}
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Errorf("error %T is not a *ValidationError", err)
			}
			if GetExitCode(err) != ExitUsageError {
				t.Errorf("GetExitCode() = %d, want %d", GetExitCode(err), ExitUsageError)
			}
		})
	}
}

// =============================================================================
// ERROR TESTS (errors.go)
// =============================================================================

func TestGetExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitSuccess},
		{"not found", &NotFoundError{Resource: "document", ID: "x"}, ExitNotFoundError},
		{"library not found", fmt.Errorf("resolve: %w", library.ErrNotFound), ExitNotFoundError},
		{"missing api key", NewCommandError("ask", "connect", "claude", claude.ErrNoAPIKey), ExitConfigError},
		{"deadline", fmt.Errorf("exchange: %w", context.DeadlineExceeded), ExitTimeoutError},
		{"refused", errors.New("dial tcp 127.0.0.1:11434: connection refused"), ExitNetworkError},
		{"other", errors.New("boom"), ExitGeneralError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GetExitCode(tt.err); got != tt.want {
				t.Errorf("GetExitCode() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestValidationErrorMessage(t *testing.T) {
	err := ErrInvalidFormat("--page", "five", "--page 5")
	msg := err.Error()
	for _, want := range []string{"invalid --page", "(got: five)", "Example: --page 5"} {
		if !strings.Contains(msg, want) {
			t.Errorf("message %q missing %q", msg, want)
		}
	}
}

// =============================================================================
// BENCHMARKS
// =============================================================================

func BenchmarkArgParser(b *testing.B) {
	args := []string{"locate", "--doc", "biology", "--page", "5", "--text", "water", "--json"}
	for i := 0; i < b.N; i++ {
		NewArgParser(args, boolFlags...)
	}
}
