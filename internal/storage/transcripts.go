// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jeranaias/pagetutor/internal/command"
	"github.com/jeranaias/pagetutor/internal/util"
)

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// =============================================================================
// TRANSCRIPT TYPES
// =============================================================================

// Message is one persisted turn. Commands holds the wire JSON of each
// command the reply dispatched.
type Message struct {
	ID        string            `json:"id"`
	Role      string            `json:"role"`
	Text      string            `json:"text"`
	Commands  []json.RawMessage `json:"commands,omitempty"`
	CreatedAt time.Time         `json:"createdAt"`
}

// Transcript is the stored history of one document.
type Transcript struct {
	DocumentID string    `json:"documentId"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
	Messages   []Message `json:"messages"`
}

// TranscriptMeta summarizes a transcript for listing.
type TranscriptMeta struct {
	DocumentID   string    `json:"documentId"`
	UpdatedAt    time.Time `json:"updatedAt"`
	MessageCount int       `json:"messageCount"`
	Preview      string    `json:"preview"` // first user message, truncated
}

// NewAssistantMessage builds an assistant message from a reply's visible
// text and the commands it dispatched.
func NewAssistantMessage(text string, cmds []command.Command) Message {
	msg := Message{Role: RoleAssistant, Text: text}
	for _, c := range cmds {
		if raw, err := command.Encode(c); err == nil {
			msg.Commands = append(msg.Commands, raw)
		}
	}
	return msg
}

// =============================================================================
// TRANSCRIPT STORE
// =============================================================================

// TranscriptStore keeps one JSON file per document.
type TranscriptStore struct {
	// BaseDir is the directory for storing transcripts
	// Default: ~/.pagetutor/transcripts/
	BaseDir string

	// MaxMessages trims the oldest messages of a transcript (0 = unlimited)
	MaxMessages int

	mu sync.Mutex
}

// NewTranscriptStore creates a store in the default location.
func NewTranscriptStore() (*TranscriptStore, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}
	return NewTranscriptStoreWithDir(filepath.Join(homeDir, ".pagetutor", "transcripts"))
}

// NewTranscriptStoreWithDir creates a store with a custom directory.
func NewTranscriptStoreWithDir(baseDir string) (*TranscriptStore, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, err
	}
	return &TranscriptStore{BaseDir: baseDir, MaxMessages: 500}, nil
}

// Append adds msg to the document's transcript, assigning an ID and time
// when unset, and returns the stored message.
func (s *TranscriptStore) Append(docID string, msg Message) (Message, error) {
	if err := validateID(docID); err != nil {
		return Message{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tr, err := s.load(docID)
	if err == ErrTranscriptNotFound {
		tr = &Transcript{DocumentID: docID}
	} else if err != nil {
		return Message{}, err
	}

	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	tr.Messages = append(tr.Messages, msg)
	if s.MaxMessages > 0 && len(tr.Messages) > s.MaxMessages {
		tr.Messages = tr.Messages[len(tr.Messages)-s.MaxMessages:]
	}

	tr.UpdatedAt = time.Now()
	if tr.CreatedAt.IsZero() {
		tr.CreatedAt = tr.UpdatedAt
	}

	// RELIABILITY: Atomic write with fsync prevents data loss on crash
	if err := util.AtomicWriteJSON(s.filePath(docID), tr, 0644); err != nil {
		return Message{}, err
	}
	return msg, nil
}

// List returns a document's messages ordered by creation time. A document
// without a transcript has no messages.
func (s *TranscriptStore) List(docID string) ([]Message, error) {
	if err := validateID(docID); err != nil {
		return nil, err
	}

	s.mu.Lock()
	tr, err := s.load(docID)
	s.mu.Unlock()

	if err == ErrTranscriptNotFound {
		return []Message{}, nil
	}
	if err != nil {
		return nil, err
	}

	msgs := tr.Messages
	sort.SliceStable(msgs, func(i, j int) bool {
		return msgs[i].CreatedAt.Before(msgs[j].CreatedAt)
	})
	return msgs, nil
}

// Delete removes a document's transcript.
func (s *TranscriptStore) Delete(docID string) error {
	if err := validateID(docID); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.filePath(docID)); err != nil {
		if os.IsNotExist(err) {
			return ErrTranscriptNotFound
		}
		return err
	}
	return nil
}

// Documents lists stored transcripts, most recently updated first.
func (s *TranscriptStore) Documents() ([]TranscriptMeta, error) {
	entries, err := os.ReadDir(s.BaseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []TranscriptMeta{}, nil
		}
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	metas := []TranscriptMeta{}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		tr, err := s.load(strings.TrimSuffix(entry.Name(), ".json"))
		if err != nil {
			continue // Skip corrupted files
		}

		meta := TranscriptMeta{
			DocumentID:   tr.DocumentID,
			UpdatedAt:    tr.UpdatedAt,
			MessageCount: len(tr.Messages),
		}
		for _, m := range tr.Messages {
			if m.Role == RoleUser {
				meta.Preview = util.TruncateWidth(strings.ReplaceAll(m.Text, "\n", " "), 80)
				break
			}
		}
		metas = append(metas, meta)
	}

	sort.Slice(metas, func(i, j int) bool {
		return metas[i].UpdatedAt.After(metas[j].UpdatedAt)
	})
	return metas, nil
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

func (s *TranscriptStore) filePath(docID string) string {
	return filepath.Join(s.BaseDir, docID+".json")
}

func (s *TranscriptStore) load(docID string) (*Transcript, error) {
	data, err := os.ReadFile(s.filePath(docID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrTranscriptNotFound
		}
		return nil, err
	}

	var tr Transcript
	if err := json.Unmarshal(data, &tr); err != nil {
		return nil, err
	}
	return &tr, nil
}

// validateID rejects ids that could escape BaseDir.
func validateID(id string) error {
	if id == "" || id == "." || id == ".." || strings.ContainsAny(id, `/\`) || strings.ContainsRune(id, 0) {
		return ErrInvalidDocumentID
	}
	return nil
}

// =============================================================================
// ERRORS
// =============================================================================

// ErrTranscriptNotFound is returned when a document has no transcript.
var ErrTranscriptNotFound = &TranscriptError{Message: "transcript not found"}

// ErrInvalidDocumentID is returned for ids that are empty or contain path
// separators.
var ErrInvalidDocumentID = &TranscriptError{Message: "invalid document id"}

// TranscriptError represents a transcript-related error.
type TranscriptError struct {
	Message string
}

// Error implements the error interface.
func (e *TranscriptError) Error() string {
	return e.Message
}

// Is implements errors.Is support for comparing transcript errors.
func (e *TranscriptError) Is(target error) bool {
	t, ok := target.(*TranscriptError)
	if !ok {
		return false
	}
	return e.Message == t.Message
}
