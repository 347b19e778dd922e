// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/jeranaias/pagetutor/internal/bus"
	"github.com/jeranaias/pagetutor/internal/claude"
	"github.com/jeranaias/pagetutor/internal/command"
	"github.com/jeranaias/pagetutor/internal/config"
	"github.com/jeranaias/pagetutor/internal/layout"
	"github.com/jeranaias/pagetutor/internal/library"
	"github.com/jeranaias/pagetutor/internal/ollama"
	"github.com/jeranaias/pagetutor/internal/storage"
	"github.com/jeranaias/pagetutor/internal/tutor"
	"github.com/jeranaias/pagetutor/internal/viewer"
)

// logFileName is written in the config directory when --verbose is off, so
// log lines never land in the middle of a reply or the TUI.
const logFileName = "pagetutor.log"

// providerFactory builds the model provider. Tests replace it.
var providerFactory = newProvider

// =============================================================================
// ENVIRONMENT
// =============================================================================

// env is the state shared by command handlers: loaded config and logger.
type env struct {
	args    Args
	cfg     *config.Config
	logger  *log.Logger
	logFile *os.File
}

func newEnv(a Args) (*env, error) {
	cfg, err := loadConfig(a.ConfigPath)
	if err != nil {
		return nil, err
	}
	config.SetGlobal(cfg)

	e := &env{args: a, cfg: cfg}
	e.logger = e.openLogger()
	return e, nil
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFrom(path)
	}
	return config.Load()
}

func (e *env) openLogger() *log.Logger {
	if e.args.Verbose {
		return log.New(stderr, "", log.LstdFlags)
	}
	dir, err := config.ConfigDir()
	if err != nil {
		return log.New(io.Discard, "", 0)
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return log.New(io.Discard, "", 0)
	}
	f, err := os.OpenFile(filepath.Join(dir, logFileName), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return log.New(io.Discard, "", 0)
	}
	e.logFile = f
	return log.New(f, "", log.LstdFlags)
}

// Close releases the log file.
func (e *env) Close() {
	if e.logFile != nil {
		e.logFile.Close()
	}
}

// =============================================================================
// COLLABORATORS
// =============================================================================

func (e *env) openLibrary() (*library.Store, error) {
	path := e.cfg.Library.DBPath
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, NewCommandError(e.args.Command.String(), "open library", path, err)
	}
	lib, err := library.Open(path)
	if err != nil {
		return nil, NewCommandError(e.args.Command.String(), "open library", path, err)
	}
	return lib, nil
}

func (e *env) transcripts() (*storage.TranscriptStore, error) {
	ts, err := storage.NewTranscriptStoreWithDir(e.cfg.Library.TranscriptsDir)
	if err != nil {
		return nil, err
	}
	if e.cfg.Tutor.History > 0 {
		ts.MaxMessages = e.cfg.Tutor.History
	}
	return ts, nil
}

// loadDocument resolves ref by id or name and loads its layout index.
func (e *env) loadDocument(ctx context.Context, lib *library.Store, ref string) (library.DocumentInfo, *layout.Index, error) {
	if ref == "" {
		return library.DocumentInfo{}, nil, ErrMissingArgument("--doc", "--doc <id|name>")
	}
	info, err := lib.Resolve(ctx, ref)
	if errors.Is(err, library.ErrNotFound) {
		return library.DocumentInfo{}, nil, &NotFoundError{Resource: "document", ID: ref}
	}
	if err != nil {
		return library.DocumentInfo{}, nil, err
	}
	idx, err := lib.LoadIndex(ctx, info.ID)
	if err != nil {
		return library.DocumentInfo{}, nil, NewCommandError(e.args.Command.String(), "load", info.Name, err)
	}
	return info, idx, nil
}

// rig is a bus with a viewer attached and a tutor session publishing on
// it. The viewer treats every page as mounted at the configured scale, since
// a terminal has no renderer to report presence.
type rig struct {
	bus     *bus.Bus
	viewer  *viewer.Viewer
	session *tutor.Session
}

func (e *env) newRig(idx *layout.Index) *rig {
	b := bus.New()
	b.OnPanic(func(tok bus.Token, cmd command.Command, recovered any) {
		e.logger.Printf("HANDLER_PANIC | action=%s token=%s err=%v", cmd.Action(), tok, recovered)
	})
	v := viewer.New(idx, viewer.WithAutoMount(e.cfg.Viewer.DefaultScale), viewer.WithLogger(e.logger))
	v.Attach(b)

	sess := tutor.NewSession(b,
		tutor.WithRateLimit(e.cfg.Tutor.RequestsPerMinute),
		tutor.WithLogger(e.logger),
	)
	return &rig{bus: b, viewer: v, session: sess}
}

func (r *rig) Close() {
	r.viewer.Detach()
}

// newProvider builds the configured model provider and returns it with the
// model name it will use.
func newProvider(cfg *config.Config) (tutor.Provider, string, error) {
	switch cfg.LLM.Provider {
	case config.ProviderClaude:
		c, err := claude.NewClient(claude.Config{
			APIKey:     cfg.LLM.APIKey,
			BaseURL:    cfg.LLM.BaseURL,
			Model:      cfg.LLM.Model,
			MaxRetries: -1,
		})
		if err != nil {
			return nil, "", err
		}
		return tutor.ClaudeProvider{Client: c}, c.Model(), nil
	default:
		c := ollama.NewClientWithConfig(&ollama.ClientConfig{
			BaseURL:      cfg.LLM.BaseURL,
			Timeout:      cfg.LLM.TimeoutDuration(),
			DefaultModel: cfg.LLM.Model,
		})
		model := cfg.LLM.Model
		if model == "" {
			model = ollama.DefaultModel
		}
		return tutor.OllamaProvider{Client: c, Model: cfg.LLM.Model}, model, nil
	}
}
