// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jeranaias/pagetutor/internal/command"
	"github.com/jeranaias/pagetutor/internal/storage"
)

// =============================================================================
// EXPORT INTERFACE
// =============================================================================

// Exporter renders a transcript in one format.
type Exporter interface {
	Export(t *Transcript) ([]byte, error)

	// FileExtension returns the extension including the dot.
	FileExtension() string

	MimeType() string
}

// Transcript is the exportable history of one document.
type Transcript struct {
	DocumentID   string            `json:"documentId"`
	DocumentName string            `json:"documentName"`
	Pages        int               `json:"pages,omitempty"`
	Messages     []storage.Message `json:"messages"`
}

// Validation errors.
var (
	ErrNilTranscript = errors.New("transcript is nil")
	ErrNoMessages    = errors.New("transcript has no messages")
)

func (t *Transcript) validate() error {
	if t == nil {
		return ErrNilTranscript
	}
	if len(t.Messages) == 0 {
		return ErrNoMessages
	}
	return nil
}

// title is the document name, or its id when unnamed.
func (t *Transcript) title() string {
	if t.DocumentName != "" {
		return t.DocumentName
	}
	return t.DocumentID
}

// =============================================================================
// EXPORT OPTIONS
// =============================================================================

// Options configures export behavior.
type Options struct {
	// OutputDir is where ToFile writes. Default: current directory
	OutputDir string

	// IncludeMetadata adds a header with the document and message count.
	IncludeMetadata bool

	// IncludeTimestamps adds a time to every message.
	IncludeTimestamps bool

	// IncludeCommands lists the commands each reply issued.
	IncludeCommands bool

	// Theme for HTML export ("light" or "dark"). Default: "dark"
	Theme string
}

// DefaultOptions returns default export options.
func DefaultOptions() *Options {
	return &Options{
		OutputDir:         ".",
		IncludeMetadata:   true,
		IncludeTimestamps: true,
		IncludeCommands:   true,
		Theme:             "dark",
	}
}

// ForFormat returns the exporter for a format name: markdown (md), html
// (htm) or json.
func ForFormat(format string, opts *Options) (Exporter, error) {
	switch strings.ToLower(format) {
	case "markdown", "md", "":
		return NewMarkdownExporter(opts), nil
	case "html", "htm":
		return NewHTMLExporter(opts), nil
	case "json":
		return NewJSONExporter(opts), nil
	}
	return nil, fmt.Errorf("unsupported export format: %s", format)
}

// =============================================================================
// EXPORT FUNCTIONS
// =============================================================================

// ToFile renders t with exporter and writes it under opts.OutputDir. The
// file name is derived from the document name and the current time.
func ToFile(t *Transcript, exporter Exporter, opts *Options) (string, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	content, err := exporter.Export(t)
	if err != nil {
		return "", fmt.Errorf("export failed: %w", err)
	}

	filename := fmt.Sprintf("transcript_%s_%s%s",
		sanitizeFilename(t.title()),
		time.Now().Format("20060102_150405"),
		exporter.FileExtension(),
	)

	dir := opts.OutputDir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}

	path := filepath.Join(dir, filename)
	if err := os.WriteFile(path, content, 0644); err != nil {
		return "", fmt.Errorf("write file: %w", err)
	}
	return path, nil
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// sanitizeFilename replaces characters that are invalid in file names on
// any platform.
func sanitizeFilename(s string) string {
	const maxLen = 50
	if runes := []rune(s); len(runes) > maxLen {
		s = string(runes[:maxLen])
	}

	var b strings.Builder
	for _, r := range s {
		switch {
		case strings.ContainsRune(`/\:*?"<>|`, r):
			b.WriteRune('-')
		case r == ' ' || r == '\t' || r == '\n' || r == '\r':
			b.WriteRune('_')
		case r < 32 || r == 127:
			b.WriteRune('-')
		default:
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "transcript"
	}
	return b.String()
}

// describeCommands renders the stored wire commands of a message. A stored
// command that no longer parses is shown raw.
func describeCommands(raw []json.RawMessage) []string {
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		cmd, err := command.Parse(r)
		if err != nil {
			out = append(out, string(r))
			continue
		}
		out = append(out, command.Describe(cmd))
	}
	return out
}

// roleLabel returns the display label for a message role.
func roleLabel(role string) string {
	switch role {
	case storage.RoleUser:
		return "Student"
	case storage.RoleAssistant:
		return "Tutor"
	case "":
		return "Unknown"
	}
	runes := []rune(role)
	return strings.ToUpper(string(runes[0])) + string(runes[1:])
}

// formatTimestamp formats a timestamp for display.
func formatTimestamp(t time.Time) string {
	return t.Format("2006-01-02 15:04:05")
}

// formatShortTimestamp formats a timestamp for inline display.
func formatShortTimestamp(t time.Time) string {
	return t.Format("15:04:05")
}

// span returns the first and last message times.
func (t *Transcript) span() (time.Time, time.Time) {
	first, last := t.Messages[0].CreatedAt, t.Messages[0].CreatedAt
	for _, m := range t.Messages[1:] {
		if m.CreatedAt.Before(first) {
			first = m.CreatedAt
		}
		if m.CreatedAt.After(last) {
			last = m.CreatedAt
		}
	}
	return first, last
}
