// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli parses the pagetutor command line and runs its commands.
//
// Every command handler returns its error; Run's caller displays it once and
// exits with GetExitCode.
package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/jeranaias/pagetutor/internal/export"
)

// Build information, set with -ldflags at release time.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// =============================================================================
// COMMANDS
// =============================================================================

// Command identifies a top-level command.
type Command int

const (
	CmdHelp Command = iota
	CmdAsk
	CmdChat
	CmdServe
	CmdImport
	CmdDocs
	CmdSearch
	CmdLocate
	CmdDecode
	CmdExport
	CmdConfig
	CmdVersion
)

var commandNames = map[string]Command{
	"help":    CmdHelp,
	"ask":     CmdAsk,
	"chat":    CmdChat,
	"serve":   CmdServe,
	"import":  CmdImport,
	"docs":    CmdDocs,
	"search":  CmdSearch,
	"locate":  CmdLocate,
	"decode":  CmdDecode,
	"export":  CmdExport,
	"config":  CmdConfig,
	"version": CmdVersion,
}

// String returns the command's name.
func (c Command) String() string {
	for name, cmd := range commandNames {
		if cmd == c {
			return name
		}
	}
	return "unknown"
}

// boolFlags never take a value.
var boolFlags = []string{"json", "quiet", "q", "verbose", "v", "plain", "help", "h", "no-watch"}

// Args holds everything a command needs from the command line.
type Args struct {
	Command Command

	// Global flags
	Quiet      bool
	Verbose    bool
	JSON       bool
	ConfigPath string

	// Document reference: a library id or name (ask, chat, locate, search)
	Doc string

	Question string
	Plain    bool

	// locate
	Page  int
	Text  string
	Start int
	End   int
	Range bool
	Scale float64

	// import, decode
	File  string
	Chunk int

	// export
	Format string
	OutDir string

	// serve
	Addr    string
	NoWatch bool

	// search
	Query string
	Limit int

	// docs and config subcommands
	Subcommand string
	Key        string
	Value      string

	// HelpTopic is the command named by "help <cmd>" or "<cmd> --help".
	HelpTopic string
}

// =============================================================================
// USAGE
// =============================================================================

const usageText = `pagetutor - ask questions about a document and watch the answer on the page

Usage:
  pagetutor <command> [flags]

Commands:
  ask <question> --doc <ref>   One-shot question; prints the reply and what it highlighted
  chat --doc <ref> [--plain]   Interactive tutor (TUI, or a line REPL with --plain)
  serve [--addr host:port]     HTTP API and websocket command stream
  import <file>                Store a layout document in the library
  docs [delete <ref>]          List or delete library documents
  search <words> [--doc <ref>] Full-text search over library pages
  locate --doc <ref> --page N (--text T | --start S --end E) [--scale F]
                               Resolve a locator against a page and print the boxes
  decode [file] [--chunk N]    Run a reply through the command decoder
  export --doc <ref> [--format md|html|json] [--out DIR|-]
                               Write a document's transcript to a file
  config show|path|init|get|set
  version
  help [command]

Global flags:
  --config <path>   Config file (default ~/.pagetutor/config.toml)
  --json            Machine-readable output
  -q, --quiet       Less output
  -v, --verbose     Log to stderr
`

var commandUsage = map[Command]string{
	CmdAsk:    "pagetutor ask \"what does the figure on page 3 show?\" --doc biology",
	CmdChat:   "pagetutor chat --doc biology [--plain]",
	CmdServe:  "pagetutor serve [--addr 127.0.0.1:8787] [--no-watch]",
	CmdImport: "pagetutor import biology.json",
	CmdDocs:   "pagetutor docs [delete <id|name>]",
	CmdSearch: "pagetutor search mitochondria [--doc biology] [--limit 10]",
	CmdLocate: "pagetutor locate --doc biology --page 5 --text \"cell wall\" [--scale 1.5]",
	CmdDecode: "pagetutor decode reply.txt [--chunk 16]",
	CmdExport: "pagetutor export --doc biology [--format md|html|json] [--out ./exports]",
	CmdConfig: "pagetutor config show|path|init|get <key>|set <key> <value>",
}

// PrintUsage writes the top-level usage, or a command's usage line.
func PrintUsage(topic string) {
	if cmd, ok := commandNames[topic]; ok {
		if u, ok := commandUsage[cmd]; ok {
			fmt.Fprintln(stdout, "Usage: "+u)
			return
		}
	}
	fmt.Fprint(stdout, usageText)
}

// PrintVersion writes build information.
func PrintVersion() {
	fmt.Fprintf(stdout, "pagetutor %s (commit %s, built %s)\n", Version, GitCommit, BuildDate)
}

// =============================================================================
// PARSING
// =============================================================================

// Parse turns argv (without the program name) into Args.
func Parse(argv []string) (Args, error) {
	p := NewArgParser(argv, boolFlags...)

	var a Args
	parseGlobalFlags(p, &a)

	name := p.Subcommand()
	if name == "" {
		a.Command = CmdHelp
		return a, nil
	}
	cmd, ok := commandNames[name]
	if !ok {
		return a, &ValidationError{
			Field:   "command",
			Value:   name,
			Reason:  "unknown command",
			Example: "pagetutor help",
		}
	}
	a.Command = cmd

	if p.BoolFlag("help") || p.BoolFlag("h") {
		a.HelpTopic = name
		a.Command = CmdHelp
		return a, nil
	}

	var err error
	switch cmd {
	case CmdHelp:
		a.HelpTopic = p.Positional(1)
	case CmdAsk:
		err = parseAskArgs(p, &a)
	case CmdChat:
		a.Doc = p.Flag("doc")
		a.Plain = p.BoolFlag("plain")
	case CmdServe:
		a.Addr = p.Flag("addr")
		a.NoWatch = p.BoolFlag("no-watch")
	case CmdImport:
		a.File = p.Positional(1)
		if a.File == "" {
			err = ErrMissingArgument("file", commandUsage[CmdImport])
		}
	case CmdDocs:
		a.Subcommand = p.Positional(1)
		a.Doc = p.Positional(2)
		if a.Subcommand != "" && a.Subcommand != "list" && a.Subcommand != "delete" {
			err = ErrInvalidFormat("docs subcommand", a.Subcommand, commandUsage[CmdDocs])
		} else if a.Subcommand == "delete" && a.Doc == "" {
			err = ErrMissingArgument("document", commandUsage[CmdDocs])
		}
	case CmdSearch:
		err = parseSearchArgs(p, &a)
	case CmdLocate:
		err = parseLocateArgs(p, &a)
	case CmdDecode:
		err = parseDecodeArgs(p, &a)
	case CmdExport:
		a.Doc = p.Flag("doc")
		a.Format = p.FlagOrDefault("format", "md")
		a.OutDir = p.FlagOrDefault("out", ".")
		if a.Doc == "" {
			err = ErrMissingArgument("--doc", commandUsage[CmdExport])
		} else if _, ferr := export.ForFormat(a.Format, nil); ferr != nil {
			err = ErrInvalidFormat("--format", a.Format, commandUsage[CmdExport])
		}
	case CmdConfig:
		err = parseConfigArgs(p, &a)
	}
	return a, err
}

func parseGlobalFlags(p *ArgParser, a *Args) {
	a.Quiet = p.BoolFlag("quiet") || p.BoolFlag("q")
	a.Verbose = p.BoolFlag("verbose") || p.BoolFlag("v")
	a.JSON = p.BoolFlag("json")
	a.ConfigPath = p.Flag("config")
}

func parseAskArgs(p *ArgParser, a *Args) error {
	a.Question = strings.TrimSpace(JoinPositionalArgs(p, 1))
	a.Doc = p.Flag("doc")
	if a.Question == "" {
		return ErrMissingArgument("question", commandUsage[CmdAsk])
	}
	return nil
}

func parseSearchArgs(p *ArgParser, a *Args) error {
	a.Query = strings.TrimSpace(JoinPositionalArgs(p, 1))
	a.Doc = p.Flag("doc")
	if a.Query == "" {
		return ErrMissingArgument("query", commandUsage[CmdSearch])
	}
	if p.HasFlag("limit") {
		n, err := ParseIntWithValidation(p.Flag("limit"), "limit")
		if err != nil {
			return ErrInvalidFormat("limit", p.Flag("limit"), commandUsage[CmdSearch])
		}
		a.Limit = n
	}
	return nil
}

func parseLocateArgs(p *ArgParser, a *Args) error {
	a.Doc = p.Flag("doc")
	if a.Doc == "" {
		return ErrMissingArgument("--doc", commandUsage[CmdLocate])
	}

	page, err := ParseIntWithValidation(p.Flag("page"), "page")
	if err != nil {
		return ErrInvalidFormat("--page", p.Flag("page"), commandUsage[CmdLocate])
	}
	a.Page = page

	if a.Scale, err = p.FlagFloat("scale", 0); err != nil || a.Scale < 0 {
		return ErrInvalidFormat("--scale", p.Flag("scale"), "--scale 1.5")
	}

	a.Text = p.Flag("text")
	hasStart, hasEnd := p.HasFlag("start"), p.HasFlag("end")
	switch {
	case a.Text != "" && (hasStart || hasEnd):
		return &ValidationError{Field: "locator", Reason: "use --text or --start/--end, not both", Example: commandUsage[CmdLocate]}
	case a.Text != "":
		return nil
	case hasStart != hasEnd:
		return &ValidationError{Field: "locator", Reason: "--start and --end go together", Example: "--start 120 --end 130"}
	case !hasStart:
		return ErrMissingArgument("--text or --start/--end", commandUsage[CmdLocate])
	}

	if a.Start, err = p.FlagInt("start"); err != nil {
		return ErrInvalidFormat("--start", p.Flag("start"), "--start 120")
	}
	if a.End, err = p.FlagInt("end"); err != nil {
		return ErrInvalidFormat("--end", p.Flag("end"), "--end 130")
	}
	if a.Start < 0 || a.End <= a.Start {
		return &ValidationError{
			Field:  "offsets",
			Value:  strconv.Itoa(a.Start) + "-" + strconv.Itoa(a.End),
			Reason: "need 0 <= start < end",
		}
	}
	a.Range = true
	return nil
}

func parseDecodeArgs(p *ArgParser, a *Args) error {
	a.File = p.Positional(1)
	a.Chunk = defaultDecodeChunk
	if p.HasFlag("chunk") {
		n, err := ParseIntWithValidation(p.Flag("chunk"), "chunk")
		if err != nil {
			return ErrInvalidFormat("--chunk", p.Flag("chunk"), commandUsage[CmdDecode])
		}
		a.Chunk = n
	}
	return nil
}

func parseConfigArgs(p *ArgParser, a *Args) error {
	a.Subcommand = p.Positional(1)
	if a.Subcommand == "" {
		a.Subcommand = "show"
	}
	a.Key = p.Positional(2)
	a.Value = strings.Join(p.PositionalFrom(3), " ")

	switch a.Subcommand {
	case "show", "path", "init":
		return nil
	case "get":
		if a.Key == "" {
			return ErrMissingArgument("key", "pagetutor config get llm.model")
		}
		return nil
	case "set":
		if a.Key == "" || p.PositionalCount() < 4 {
			return ErrMissingArgument("key and value", "pagetutor config set llm.model llama3.1:8b")
		}
		return nil
	}
	return ErrInvalidFormat("config subcommand", a.Subcommand, commandUsage[CmdConfig])
}

// =============================================================================
// DISPATCH
// =============================================================================

// Run executes the parsed command.
func Run(a Args) error {
	switch a.Command {
	case CmdAsk:
		return runAsk(a)
	case CmdChat:
		return runChat(a)
	case CmdServe:
		return runServe(a)
	case CmdImport:
		return runImport(a)
	case CmdDocs:
		return runDocs(a)
	case CmdSearch:
		return runSearch(a)
	case CmdLocate:
		return runLocate(a)
	case CmdDecode:
		return runDecode(a)
	case CmdExport:
		return runExport(a)
	case CmdConfig:
		return runConfig(a)
	case CmdVersion:
		if a.JSON {
			return NewJSONResponse("version", map[string]string{
				"version": Version, "commit": GitCommit, "built": BuildDate,
			}).Print()
		}
		PrintVersion()
		return nil
	default:
		PrintUsage(a.HelpTopic)
		return nil
	}
}
