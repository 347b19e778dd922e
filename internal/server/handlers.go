// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/jeranaias/pagetutor/internal/bus"
	"github.com/jeranaias/pagetutor/internal/command"
	"github.com/jeranaias/pagetutor/internal/layout"
	"github.com/jeranaias/pagetutor/internal/library"
	"github.com/jeranaias/pagetutor/internal/storage"
	"github.com/jeranaias/pagetutor/internal/tutor"
)

// ============================================================================
// CHAT
// ============================================================================

// ChatRequest is the body of POST /api/chat.
type ChatRequest struct {
	Message    string `json:"message"`
	PDFText    string `json:"pdfText,omitempty"`
	DocumentID string `json:"documentId,omitempty"`
}

// ChatErrorText ends a chat body whose reply was cut off by a transport
// failure.
const ChatErrorText = "\n\n❌ Error contacting AI."

// handleChat streams the raw reply, command tags included, as plain text.
// Decoded commands are published on the bus while the reply streams.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req ChatRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.logger.Printf("CHAT_FAILED | reason=decode err=%v", err)
		http.Error(w, "Error handling request", http.StatusInternalServerError)
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		http.Error(w, "Missing user message", http.StatusBadRequest)
		return
	}

	sess := s.sessions.load(w, r)
	ref := req.DocumentID
	if ref == "" {
		ref = sess.DocumentID
	}

	text := req.PDFText
	var docID string
	if ref != "" && s.cfg.Library != nil {
		info, idx, err := s.loadDocument(ctx, ref)
		switch {
		case errors.Is(err, library.ErrNotFound):
			http.Error(w, "Document not found", http.StatusNotFound)
			return
		case err != nil:
			s.logger.Printf("CHAT_FAILED | reason=load_document doc=%s err=%v", ref, err)
			http.Error(w, "Error handling request", http.StatusInternalServerError)
			return
		}
		docID = info.ID
		if strings.TrimSpace(text) == "" {
			text = idx.Text()
		}
	}

	prompt, err := tutor.BuildPrompt(req.Message, text)
	if err != nil || s.cfg.Provider == nil {
		s.logger.Printf("CHAT_FAILED | reason=no_provider err=%v", err)
		http.Error(w, "Error handling request", http.StatusInternalServerError)
		return
	}

	src, err := s.tutor.Open(ctx, s.cfg.Provider, prompt)
	if err != nil {
		s.logger.Printf("EXCHANGE_FAILED | stage=open err=%v", err)
		http.Error(w, "Error handling request", http.StatusInternalServerError)
		return
	}
	defer src.Close()

	s.sessions.update(sess.ID, func(cs *ClientSession) {
		cs.LastQuestion = req.Message
		if docID != "" {
			cs.DocumentID = docID
		}
	})

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)

	tee := tutor.Tee(src, func(fragment string) {
		io.WriteString(w, fragment)
		if flusher != nil {
			flusher.Flush()
		}
	})
	reply, err := s.tutor.Exchange(ctx, tee, nil)
	if err != nil {
		// The status is already sent, so the failure is reported in the
		// body. A client that went away gets nothing.
		if ctx.Err() == nil {
			io.WriteString(w, ChatErrorText)
			if flusher != nil {
				flusher.Flush()
			}
		}
		s.logger.Printf("EXCHANGE_FAILED | stage=stream doc=%s err=%v", docID, err)
		return
	}

	s.recordExchange(docID, req.Message, reply)
}

func (s *Server) recordExchange(docID, question string, reply tutor.Reply) {
	if s.cfg.Transcripts == nil || docID == "" {
		return
	}
	if _, err := s.cfg.Transcripts.Append(docID, storage.Message{Role: storage.RoleUser, Text: question}); err != nil {
		s.logger.Printf("TRANSCRIPT_FAILED | doc=%s err=%v", docID, err)
		return
	}
	if reply.Visible == "" && len(reply.Commands) == 0 {
		return
	}
	msg := storage.NewAssistantMessage(reply.Visible, reply.Commands)
	if _, err := s.cfg.Transcripts.Append(docID, msg); err != nil {
		s.logger.Printf("TRANSCRIPT_FAILED | doc=%s err=%v", docID, err)
	}
}

// handleMessages returns a document's transcript, oldest first. pdfId is
// accepted as an alias of documentId.
func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	ref := r.URL.Query().Get("documentId")
	if ref == "" {
		ref = r.URL.Query().Get("pdfId")
	}
	if ref == "" {
		writeError(w, http.StatusBadRequest, "Missing documentId")
		return
	}
	if s.cfg.Transcripts == nil {
		writeError(w, http.StatusServiceUnavailable, "Transcripts unavailable")
		return
	}

	docID := ref
	if s.cfg.Library != nil {
		if info, err := s.cfg.Library.Resolve(r.Context(), ref); err == nil {
			docID = info.ID
		}
	}

	msgs, err := s.cfg.Transcripts.List(docID)
	switch {
	case errors.Is(err, storage.ErrInvalidDocumentID):
		writeError(w, http.StatusBadRequest, "Invalid documentId")
		return
	case err != nil:
		s.logger.Printf("TRANSCRIPT_FAILED | doc=%s err=%v", docID, err)
		writeError(w, http.StatusInternalServerError, "Server error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": msgs})
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.sessions.load(w, r))
}

// ============================================================================
// DOCUMENTS
// ============================================================================

func (s *Server) requireLibrary(w http.ResponseWriter) bool {
	if s.cfg.Library == nil {
		writeError(w, http.StatusServiceUnavailable, "Library unavailable")
		return false
	}
	return true
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	if !s.requireLibrary(w) {
		return
	}
	docs, err := s.cfg.Library.ListDocuments(r.Context())
	if err != nil {
		s.logger.Printf("LIBRARY_FAILED | op=list err=%v", err)
		writeError(w, http.StatusInternalServerError, "Server error")
		return
	}
	if docs == nil {
		docs = []library.DocumentInfo{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": docs})
}

// handleCreateDocument stores a layout document. A document with the same
// name is replaced and keeps its id.
func (s *Server) handleCreateDocument(w http.ResponseWriter, r *http.Request) {
	if !s.requireLibrary(w) {
		return
	}
	doc, err := layout.Decode(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if doc.Name == "" {
		writeError(w, http.StatusBadRequest, "Missing data")
		return
	}

	id, err := s.cfg.Library.SaveDocument(r.Context(), doc)
	if err != nil {
		s.logger.Printf("LIBRARY_FAILED | op=save name=%s err=%v", doc.Name, err)
		writeError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}
	s.InvalidateDocument(id)

	writeJSON(w, http.StatusCreated, map[string]any{"id": id, "name": doc.Name, "pages": len(doc.Pages)})
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	if !s.requireLibrary(w) {
		return
	}
	info, err := s.cfg.Library.Resolve(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, library.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Document not found")
		return
	} else if err != nil {
		writeError(w, http.StatusInternalServerError, "Server error")
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	if !s.requireLibrary(w) {
		return
	}
	id := chi.URLParam(r, "id")
	err := s.cfg.Library.DeleteDocument(r.Context(), id)
	if errors.Is(err, library.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Document not found")
		return
	} else if err != nil {
		s.logger.Printf("LIBRARY_FAILED | op=delete id=%s err=%v", id, err)
		writeError(w, http.StatusInternalServerError, "Server error")
		return
	}
	s.InvalidateDocument(id)
	if s.cfg.Transcripts != nil {
		s.cfg.Transcripts.Delete(id)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if !s.requireLibrary(w) {
		return
	}
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	hits, err := s.cfg.Library.Search(r.Context(), q.Get("documentId"), q.Get("q"), limit)
	if err != nil {
		s.logger.Printf("LIBRARY_FAILED | op=search err=%v", err)
		writeError(w, http.StatusInternalServerError, "Server error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"hits": hits})
}

// ============================================================================
// VIEWER
// ============================================================================

func (s *Server) handleViewer(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.viewer.Snapshot())
}

// MountRequest is the renderer's page-presence signal.
type MountRequest struct {
	Page    int     `json:"page"`
	Scale   float64 `json:"scale"`
	Unmount bool    `json:"unmount,omitempty"`
}

func (s *Server) handleMount(w http.ResponseWriter, r *http.Request) {
	var req MountRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if req.Page < 1 {
		writeError(w, http.StatusBadRequest, "page must be >= 1")
		return
	}

	if req.Unmount {
		s.viewer.Unmount(req.Page)
	} else {
		if req.Scale <= 0 {
			writeError(w, http.StatusBadRequest, "scale must be positive")
			return
		}
		s.viewer.Mount(req.Page, req.Scale)
	}
	writeJSON(w, http.StatusOK, s.viewer.Snapshot())
}

// CommandResponse reports the delivery of a posted command.
type CommandResponse struct {
	Action    string   `json:"action"`
	Delivered int      `json:"delivered"`
	Failures  []string `json:"failures,omitempty"`
}

// handleCommand publishes one wire command on the bus.
func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 64<<10))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid body")
		return
	}
	cmd, err := command.Parse(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, deliveryResponse(cmd, s.bus.Publish(cmd)))
}

func deliveryResponse(cmd command.Command, d bus.Delivery) CommandResponse {
	resp := CommandResponse{Action: cmd.Action(), Delivered: d.Delivered}
	for _, f := range d.Failures {
		resp.Failures = append(resp.Failures, f.Err.Error())
	}
	return resp
}

// ============================================================================
// HEALTH
// ============================================================================

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status   string `json:"status"`
	Provider string `json:"provider,omitempty"`
	Library  bool   `json:"library"`
	Clients  int    `json:"clients"`
	Sessions int    `json:"sessions"`
	Uptime   string `json:"uptime"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:   "ok",
		Library:  s.cfg.Library != nil,
		Clients:  s.hub.Len(),
		Sessions: s.sessions.len(),
		Uptime:   time.Since(s.started).Round(time.Second).String(),
	}
	if s.cfg.Provider != nil {
		resp.Provider = s.cfg.Provider.Name()
	}
	writeJSON(w, http.StatusOK, resp)
}
