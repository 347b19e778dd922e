// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/pagetutor/internal/layout"
	"github.com/jeranaias/pagetutor/internal/library"
	"github.com/jeranaias/pagetutor/internal/storage"
	"github.com/jeranaias/pagetutor/internal/tutor"
	"github.com/jeranaias/pagetutor/internal/viewer"
)

// =============================================================================
// FIXTURES
// =============================================================================

const osmosisReply = `Osmosis is covered on page 5. ` +
	`<cmd>{"action":"goToPage","page":5}</cmd>` +
	`<cmd>{"action":"highlightText","page":5,"start":120,"end":130}</cmd>`

func biology() *layout.Document {
	p5 := layout.Page{
		Number: 5,
		Width:  612,
		Height: 792,
		Runs: []layout.TextRun{
			{Text: "Osmosis is the diffusion ", Start: 120, End: 145, Transform: layout.Matrix{12, 0, 0, 12, 72, 600}, Width: 150, Height: 12},
			{Text: "of water across membranes", Start: 145, End: 170, Transform: layout.Matrix{12, 0, 0, 12, 72, 585}, Width: 160, Height: 12},
		},
	}
	p1 := layout.NewBuilder(1, 612, 792).
		Add("Cells are the basic unit of life.", layout.Matrix{12, 0, 0, 12, 72, 700}, 200, 12).
		Build()
	return &layout.Document{Name: "biology", Pages: []layout.Page{p1, p5}}
}

type fixture struct {
	srv   *Server
	store *library.Store
	trans *storage.TranscriptStore
	logs  *bytes.Buffer
	docID string
}

func newFixture(t *testing.T, mutate func(*Config)) *fixture {
	t.Helper()
	dir := t.TempDir()

	store, err := library.Open(filepath.Join(dir, "library.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	id, err := store.SaveDocument(context.Background(), biology())
	require.NoError(t, err)

	trans, err := storage.NewTranscriptStoreWithDir(filepath.Join(dir, "transcripts"))
	require.NoError(t, err)

	var logs bytes.Buffer
	cfg := Config{
		Provider:       tutor.StaticProvider{Fragments: tutor.Chunk(osmosisReply, 7)},
		Library:        store,
		Transcripts:    trans,
		CORSOrigins:    []string{"http://localhost:3000"},
		AutoMountScale: 1.5,
		Logger:         log.New(&logs, "", 0),
	}
	if mutate != nil {
		mutate(&cfg)
	}

	srv := New(cfg)
	t.Cleanup(func() { srv.Shutdown(context.Background()) })
	return &fixture{srv: srv, store: store, trans: trans, logs: &logs, docID: id}
}

func (f *fixture) do(method, path, body string, headers ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

// =============================================================================
// CHAT
// =============================================================================

func TestChat_StreamsRawReplyAndDrivesViewer(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.do("POST", "/api/chat", `{"message":"What is osmosis?","documentId":"biology"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "text/plain; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, osmosisReply, rec.Body.String(), "the raw stream keeps the command tags")

	snap := f.srv.Viewer().Snapshot()
	assert.Equal(t, "biology", snap.Document)
	assert.Equal(t, 5, snap.CurrentPage)
	require.Len(t, snap.Highlights, 1)
	assert.Equal(t, 5, snap.Highlights[0].Page)
	assert.Equal(t, "yellow", snap.Highlights[0].Color)
}

func TestChat_RecordsTranscript(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.do("POST", "/api/chat", `{"message":"What is osmosis?","documentId":"`+f.docID+`"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do("GET", "/api/chat/messages?documentId=biology", "")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody[struct {
		Messages []storage.Message `json:"messages"`
	}](t, rec)
	require.Len(t, body.Messages, 2)
	assert.Equal(t, storage.RoleUser, body.Messages[0].Role)
	assert.Equal(t, "What is osmosis?", body.Messages[0].Text)
	assert.Equal(t, "Osmosis is covered on page 5.", body.Messages[1].Text)
	assert.Len(t, body.Messages[1].Commands, 2)
}

func TestChat_Errors(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.do("POST", "/api/chat", `{"pdfText":"x"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Missing user message\n", rec.Body.String())

	rec = f.do("POST", "/api/chat", `{not json`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Error handling request\n", rec.Body.String())

	rec = f.do("POST", "/api/chat", `{"message":"hi","documentId":"chemistry"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

type brokenProvider struct{}

func (brokenProvider) Open(context.Context, tutor.Prompt) (tutor.Source, error) {
	return nil, errors.New("connection refused")
}
func (brokenProvider) Name() string { return "broken" }

func TestChat_ProviderFailureBeforeStreaming(t *testing.T) {
	f := newFixture(t, func(c *Config) { c.Provider = brokenProvider{} })

	rec := f.do("POST", "/api/chat", `{"message":"hi","pdfText":"notes"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Error handling request\n", rec.Body.String())
	assert.Contains(t, f.logs.String(), "EXCHANGE_FAILED")
}

func TestChat_TransportFailureAfterStreaming(t *testing.T) {
	src := tutor.NewStaticSource("Partial answer <cmd>{\"action\":\"goTo")
	src.Err = errors.New("stream reset")
	f := newFixture(t, func(c *Config) { c.Provider = sourceProvider{src} })

	rec := f.do("POST", "/api/chat", `{"message":"hi","documentId":"biology"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Partial answer <cmd>{\"action\":\"goTo"+ChatErrorText, rec.Body.String(),
		"a cut-off reply ends with one error line")
	assert.Equal(t, 1, strings.Count(rec.Body.String(), "Error contacting AI."))
	assert.Contains(t, f.logs.String(), "EXCHANGE_FAILED | stage=stream")
	assert.Equal(t, 0, f.srv.Viewer().CurrentPage())

	msgs, err := f.trans.List(f.docID)
	require.NoError(t, err)
	assert.Empty(t, msgs, "a failed exchange is not recorded")
}

func TestChat_TransportFailureAfterCompleteCommand(t *testing.T) {
	src := tutor.NewStaticSource("Osmosis is on page ", `<cmd>{"action":"goToPage","page":5}</cmd>`)
	src.Err = errors.New("connection reset")
	f := newFixture(t, func(c *Config) { c.Provider = sourceProvider{src} })

	rec := f.do("POST", "/api/chat", `{"message":"What is osmosis?","documentId":"biology"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasSuffix(rec.Body.String(), ChatErrorText))
	assert.Equal(t, 5, f.srv.Viewer().CurrentPage(), "commands dispatched before the failure stay applied")

	rec = f.do("GET", "/api/chat/messages?documentId="+f.docID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"messages":[]}`, rec.Body.String())
}

type sourceProvider struct{ src tutor.Source }

func (p sourceProvider) Open(context.Context, tutor.Prompt) (tutor.Source, error) { return p.src, nil }
func (sourceProvider) Name() string                                               { return "source" }

func TestChat_SessionRemembersDocument(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.do("POST", "/api/chat", `{"message":"first","documentId":"biology"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	cookies := rec.Result().Cookies()
	require.NotEmpty(t, cookies)
	assert.Equal(t, SessionCookie, cookies[0].Name)

	req := httptest.NewRequest("POST", "/api/chat", strings.NewReader(`{"message":"second"}`))
	req.AddCookie(cookies[0])
	rec = httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	msgs, err := f.trans.List(f.docID)
	require.NoError(t, err)
	assert.Len(t, msgs, 4, "the second question lands in the session's document")

	req = httptest.NewRequest("GET", "/api/session", nil)
	req.AddCookie(cookies[0])
	rec = httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(rec, req)
	sess := decodeBody[ClientSession](t, rec)
	assert.Equal(t, f.docID, sess.DocumentID)
	assert.Equal(t, "second", sess.LastQuestion)
}

func TestMessages_RequiresDocumentID(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.do("GET", "/api/chat/messages", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do("GET", "/api/chat/messages?documentId=unknown", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"messages":[]}`, rec.Body.String())
}

func TestMessages_AcceptsPDFIDAlias(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.do("POST", "/api/chat", `{"message":"What is osmosis?","documentId":"biology"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do("GET", "/api/chat/messages?pdfId="+f.docID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody[struct {
		Messages []storage.Message `json:"messages"`
	}](t, rec)
	assert.Len(t, body.Messages, 2)
}

// =============================================================================
// DOCUMENTS
// =============================================================================

func TestDocuments_CreateListGetDelete(t *testing.T) {
	f := newFixture(t, nil)

	doc := biology()
	doc.Name = "chemistry"
	data, err := json.Marshal(doc)
	require.NoError(t, err)

	rec := f.do("POST", "/api/documents", string(data))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decodeBody[map[string]any](t, rec)
	id := created["id"].(string)
	assert.Equal(t, float64(2), created["pages"])

	rec = f.do("GET", "/api/documents", "")
	require.Equal(t, http.StatusOK, rec.Code)
	list := decodeBody[struct {
		Documents []library.DocumentInfo `json:"documents"`
	}](t, rec)
	assert.Len(t, list.Documents, 2)

	rec = f.do("GET", "/api/documents/chemistry", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, id, decodeBody[library.DocumentInfo](t, rec).ID)

	rec = f.do("DELETE", "/api/documents/"+id, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = f.do("DELETE", "/api/documents/"+id, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDocuments_RejectsInvalidLayout(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.do("POST", "/api/documents", `{"name":"empty","pages":[]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do("POST", "/api/documents", `{"pages":[{"number":1,"width":10,"height":10,"runs":[]}]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDocuments_LibraryUnavailable(t *testing.T) {
	f := newFixture(t, func(c *Config) { c.Library = nil })

	rec := f.do("GET", "/api/documents", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestSearch(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.do("GET", "/api/search?q=membranes", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody[struct {
		Hits []library.Hit `json:"hits"`
	}](t, rec)
	require.Len(t, body.Hits, 1)
	assert.Equal(t, 5, body.Hits[0].Page)
}

// =============================================================================
// VIEWER
// =============================================================================

func TestViewer_MountThenCommand(t *testing.T) {
	f := newFixture(t, func(c *Config) { c.AutoMountScale = 0 })

	// Load the document into the viewer.
	rec := f.do("POST", "/api/chat", `{"message":"load","documentId":"biology"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	snap := f.srv.Viewer().Snapshot()
	assert.Equal(t, 5, snap.PendingPage, "page 5 is not mounted yet")
	assert.Equal(t, 1, snap.Queued)

	rec = f.do("POST", "/api/viewer/mount", `{"page":5,"scale":2}`)
	require.Equal(t, http.StatusOK, rec.Code)
	snap = decodeBody[viewer.Snapshot](t, rec)
	assert.Equal(t, 5, snap.CurrentPage)
	assert.Len(t, snap.Highlights, 1)

	rec = f.do("POST", "/api/viewer/command", `{"action":"highlightRect","page":5,"rect":[0.1,0.1,0.2,0.05],"color":"green"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeBody[CommandResponse](t, rec)
	assert.Equal(t, "highlightRect", resp.Action)
	assert.Equal(t, 2, resp.Delivered, "viewer and websocket hub")

	rec = f.do("GET", "/api/viewer", "")
	snap = decodeBody[viewer.Snapshot](t, rec)
	assert.Len(t, snap.Highlights, 2)

	rec = f.do("POST", "/api/viewer/command", `{"action":"clearHighlights"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, f.srv.Viewer().Snapshot().Highlights)
}

func TestViewer_BadRequests(t *testing.T) {
	f := newFixture(t, nil)

	assert.Equal(t, http.StatusBadRequest, f.do("POST", "/api/viewer/mount", `{"page":0,"scale":1}`).Code)
	assert.Equal(t, http.StatusBadRequest, f.do("POST", "/api/viewer/mount", `{"page":2,"scale":0}`).Code)
	assert.Equal(t, http.StatusBadRequest, f.do("POST", "/api/viewer/command", `{"action":"explode"}`).Code)
	assert.Equal(t, http.StatusBadRequest, f.do("POST", "/api/viewer/command", `not json`).Code)
}

// =============================================================================
// MIDDLEWARE
// =============================================================================

func TestAuth(t *testing.T) {
	f := newFixture(t, func(c *Config) { c.APIKey = "secret" })

	assert.Equal(t, http.StatusOK, f.do("GET", "/health", "").Code, "health is open")
	assert.Equal(t, http.StatusUnauthorized, f.do("GET", "/api/viewer", "").Code)
	assert.Equal(t, http.StatusUnauthorized, f.do("GET", "/api/viewer", "", "Authorization", "Basic abc").Code)
	assert.Equal(t, http.StatusUnauthorized, f.do("GET", "/api/viewer", "", "Authorization", "Bearer wrong").Code)
	assert.Equal(t, http.StatusOK, f.do("GET", "/api/viewer", "", "Authorization", "Bearer secret").Code)
}

func TestValidateBearerToken(t *testing.T) {
	assert.True(t, ValidateBearerToken("abc", "abc"))
	assert.False(t, ValidateBearerToken("abc", "abd"))
	assert.False(t, ValidateBearerToken("", ""))
}

func TestCORS(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.do("OPTIONS", "/api/chat", "", "Origin", "http://localhost:3000")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = f.do("GET", "/health", "", "Origin", "http://evil.example")
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRateLimit(t *testing.T) {
	f := newFixture(t, func(c *Config) { c.RateLimit = 2 })

	assert.Equal(t, http.StatusOK, f.do("GET", "/health", "").Code)
	assert.Equal(t, http.StatusOK, f.do("GET", "/health", "").Code)
	assert.Equal(t, http.StatusTooManyRequests, f.do("GET", "/health", "").Code)
}

func TestLoggingMiddleware_Format(t *testing.T) {
	f := newFixture(t, nil)
	f.do("GET", "/health", "")
	assert.Regexp(t, `\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2} \| GET /health \| 200 \| \d+\.\d{3}s`, f.logs.String())
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name   string
		remote string
		xff    string
		want   string
	}{
		{"direct", "203.0.113.9:5000", "", "203.0.113.9"},
		{"untrusted proxy ignored", "203.0.113.9:5000", "1.2.3.4", "203.0.113.9"},
		{"trusted proxy", "127.0.0.1:5000", "1.2.3.4, 10.0.0.1", "1.2.3.4"},
		{"invalid forwarded", "127.0.0.1:5000", "not-an-ip", "127.0.0.1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/", nil)
			r.RemoteAddr = tt.remote
			if tt.xff != "" {
				r.Header.Set("X-Forwarded-For", tt.xff)
			}
			assert.Equal(t, tt.want, GetClientIP(r))
		})
	}
}

// =============================================================================
// WEBSOCKET
// =============================================================================

func TestWebsocket_ReceivesPublishedCommands(t *testing.T) {
	f := newFixture(t, nil)
	ts := httptest.NewServer(f.srv.Handler())
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return f.srv.hub.Len() == 1 }, 2*time.Second, 10*time.Millisecond)

	resp, err := http.Post(ts.URL+"/api/viewer/command", "application/json", strings.NewReader(`{"action":"goToPage","page":3}`))
	require.NoError(t, err)
	resp.Body.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.JSONEq(t, `{"action":"goToPage","page":3}`, string(msg))

	f.srv.hub.Close()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err = conn.ReadMessage()
	assert.Error(t, err, "closing the hub disconnects clients")
}

func TestHealth(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.do("GET", "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	h := decodeBody[HealthResponse](t, rec)
	assert.Equal(t, "ok", h.Status)
	assert.Equal(t, "static", h.Provider)
	assert.True(t, h.Library)
}
