// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/patrickmn/go-cache"

	"github.com/jeranaias/pagetutor/internal/bus"
	"github.com/jeranaias/pagetutor/internal/command"
	"github.com/jeranaias/pagetutor/internal/layout"
	"github.com/jeranaias/pagetutor/internal/library"
	"github.com/jeranaias/pagetutor/internal/storage"
	"github.com/jeranaias/pagetutor/internal/tutor"
	"github.com/jeranaias/pagetutor/internal/viewer"
)

const (
	// DefaultAddr is the listen address when none is configured.
	DefaultAddr = "127.0.0.1:8787"

	// maxBodyBytes bounds JSON request bodies. Layout documents are the
	// largest payload.
	maxBodyBytes = 32 << 20

	indexCacheTTL = 10 * time.Minute
)

// ============================================================================
// CONFIG
// ============================================================================

// Config wires the server to its collaborators. Nil collaborators disable
// the routes that need them.
type Config struct {
	Addr string

	Provider    tutor.Provider
	Library     *library.Store
	Transcripts *storage.TranscriptStore

	// APIKey enables bearer authentication when set.
	APIKey      string
	CORSOrigins []string

	// RateLimit is requests per minute per client IP (0 = unlimited).
	RateLimit int

	// RequestsPerMinute paces outbound model requests (0 = unlimited).
	RequestsPerMinute int

	SessionTTL time.Duration

	// AutoMountScale mounts pages on navigation at this scale, for clients
	// that never report page presence. Zero waits for /api/viewer/mount.
	AutoMountScale float64

	Logger *log.Logger
}

// ============================================================================
// SERVER
// ============================================================================

// Server exposes the tutor, the document library and the viewer over HTTP
// and pushes bus commands to websocket clients.
type Server struct {
	cfg    Config
	logger *log.Logger

	bus      *bus.Bus
	viewer   *viewer.Viewer
	tutor    *tutor.Session
	hub      *Hub
	hubToken bus.Token
	sessions *sessionStore
	indexes  *cache.Cache
	started  time.Time

	// docMu guards docID, the document loaded into the viewer.
	docMu sync.Mutex
	docID string

	handler http.Handler
	server  *http.Server
}

// New creates a server from cfg.
func New(cfg Config) *Server {
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}

	b := bus.New()
	b.OnPanic(func(tok bus.Token, cmd command.Command, recovered any) {
		logger.Printf("HANDLER_PANIC | action=%s token=%s err=%v", cmd.Action(), tok, recovered)
	})

	vopts := []viewer.Option{viewer.WithLogger(logger)}
	if cfg.AutoMountScale > 0 {
		vopts = append(vopts, viewer.WithAutoMount(cfg.AutoMountScale))
	}
	v := viewer.New(nil, vopts...)
	v.Attach(b)

	cors := DefaultCORSConfig(cfg.CORSOrigins)
	hub := NewHub(cors, logger)

	s := &Server{
		cfg:      cfg,
		logger:   logger,
		bus:      b,
		viewer:   v,
		tutor:    tutor.NewSession(b, tutor.WithRateLimit(cfg.RequestsPerMinute), tutor.WithLogger(logger)),
		hub:      hub,
		hubToken: b.Subscribe(hub.Broadcast),
		sessions: newSessionStore(cfg.SessionTTL),
		indexes:  cache.New(indexCacheTTL, indexCacheTTL),
		started:  time.Now(),
	}
	s.handler = s.routes(cors)
	return s
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Bus returns the server's command bus.
func (s *Server) Bus() *bus.Bus {
	return s.bus
}

// Viewer returns the server-side viewer.
func (s *Server) Viewer() *viewer.Viewer {
	return s.viewer
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	return s.cfg.Addr
}

// InvalidateDocument drops a cached index so the next request reloads it.
func (s *Server) InvalidateDocument(id string) {
	s.indexes.Delete(id)

	s.docMu.Lock()
	loaded := s.docID == id
	if loaded {
		s.docID = ""
	}
	s.docMu.Unlock()
	if loaded {
		s.viewer.SetIndex(nil)
	}
}

// ============================================================================
// ROUTES
// ============================================================================

func (s *Server) routes(cors *CORSConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(LoggingMiddleware(s.logger))
	r.Use(middleware.Recoverer)
	r.Use(SecurityHeadersMiddleware())
	r.Use(CORSMiddleware(cors))
	r.Use(RateLimitMiddleware(s.cfg.RateLimit))
	r.Use(AuthMiddleware(s.cfg.APIKey))

	r.Get("/health", s.handleHealth)
	r.Get("/ws", s.hub.ServeWS)

	r.Route("/api", func(r chi.Router) {
		r.Post("/chat", s.handleChat)
		r.Get("/chat/messages", s.handleMessages)
		r.Get("/session", s.handleSession)

		r.Route("/documents", func(r chi.Router) {
			r.Get("/", s.handleListDocuments)
			r.Post("/", s.handleCreateDocument)
			r.Get("/{id}", s.handleGetDocument)
			r.Delete("/{id}", s.handleDeleteDocument)
		})
		r.Get("/search", s.handleSearch)

		r.Route("/viewer", func(r chi.Router) {
			r.Get("/", s.handleViewer)
			r.Post("/mount", s.handleMount)
			r.Post("/command", s.handleCommand)
		})
	})

	return r
}

// ============================================================================
// SERVER LIFECYCLE
// ============================================================================

// Start listens on the configured address. It blocks until the server stops.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:        s.cfg.Addr,
		Handler:     s.handler,
		ReadTimeout: 30 * time.Second,
		IdleTimeout: 120 * time.Second,
	}

	s.logger.Printf("SERVER_START | addr=%s", s.cfg.Addr)
	err := s.server.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown disconnects websocket clients and stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Printf("SERVER_SHUTDOWN | clients=%d", s.hub.Len())

	s.bus.Unsubscribe(s.hubToken)
	s.hub.Close()
	s.viewer.Detach()

	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// ============================================================================
// HELPERS
// ============================================================================

// loadDocument resolves ref to a document, loads its index into the viewer
// and returns it.
func (s *Server) loadDocument(ctx context.Context, ref string) (library.DocumentInfo, *layout.Index, error) {
	info, err := s.cfg.Library.Resolve(ctx, ref)
	if err != nil {
		return library.DocumentInfo{}, nil, err
	}

	var idx *layout.Index
	if v, ok := s.indexes.Get(info.ID); ok {
		idx = v.(*layout.Index)
	} else {
		if idx, err = s.cfg.Library.LoadIndex(ctx, info.ID); err != nil {
			return library.DocumentInfo{}, nil, err
		}
		s.indexes.Set(info.ID, idx, cache.DefaultExpiration)
	}

	s.docMu.Lock()
	changed := s.docID != info.ID
	s.docID = info.ID
	s.docMu.Unlock()
	if changed {
		s.viewer.SetIndex(idx)
	}
	return info, idx, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v)
}
