// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jeranaias/pagetutor/internal/library"
	"github.com/jeranaias/pagetutor/internal/server"
)

const shutdownTimeout = 10 * time.Second

// =============================================================================
// SERVE COMMAND
// =============================================================================

// runServe starts the HTTP server. When an import directory is configured,
// layout files dropped into it are stored and any cached copy in the server
// is invalidated.
func runServe(a Args) error {
	e, err := newEnv(a)
	if err != nil {
		return err
	}
	defer e.Close()

	// The server is a long-running process; its log goes to stderr.
	logger := log.New(stderr, "", log.LstdFlags)

	lib, err := e.openLibrary()
	if err != nil {
		return err
	}
	defer lib.Close()

	ts, err := e.transcripts()
	if err != nil {
		return NewCommandError("serve", "open transcripts", e.cfg.Library.TranscriptsDir, err)
	}

	provider, model, err := providerFactory(e.cfg)
	if err != nil {
		return NewCommandError("serve", "connect", e.cfg.LLM.Provider, err)
	}
	// The server still starts so the model can be brought up later.
	if err := checkProvider(context.Background(), provider); err != nil {
		logger.Printf("PROVIDER_UNAVAILABLE | provider=%s err=%v", provider.Name(), err)
	}

	addr := e.cfg.Server.Addr
	if a.Addr != "" {
		addr = a.Addr
	}

	srv := server.New(server.Config{
		Addr:              addr,
		Provider:          provider,
		Library:           lib,
		Transcripts:       ts,
		APIKey:            e.cfg.Server.APIKey,
		CORSOrigins:       e.cfg.Server.CORSOrigins,
		RateLimit:         e.cfg.Server.RateLimit,
		RequestsPerMinute: e.cfg.Tutor.RequestsPerMinute,
		SessionTTL:        e.cfg.Server.SessionTTLDuration(),
		Logger:            logger,
	})
	logger.Printf("SERVE | provider=%s model=%s library=%s", provider.Name(), model, lib.Path())

	if dir := e.cfg.Library.ImportDir; dir != "" && !a.NoWatch {
		w, err := startWatcher(lib, dir, srv, logger)
		if err != nil {
			return NewCommandError("serve", "watch", dir, err)
		}
		defer w.Close()
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sig)

	select {
	case err := <-errCh:
		return err
	case s := <-sig:
		logger.Printf("SIGNAL | sig=%s", s)
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return <-errCh
}

func startWatcher(lib *library.Store, dir string, srv *server.Server, logger *log.Logger) (*library.Watcher, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	w, err := library.NewWatcher(lib, dir, library.DefaultDebounce)
	if err != nil {
		return nil, err
	}
	w.SetLogger(logger)
	w.OnImport(func(name, id string) {
		srv.InvalidateDocument(id)
	})
	if err := w.Start(); err != nil {
		w.Close()
		return nil, err
	}
	logger.Printf("WATCH | dir=%s", dir)
	return w, nil
}
