// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/pagetutor/internal/storage"
)

func sampleTranscript() *Transcript {
	at := time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)
	return &Transcript{
		DocumentID:   "doc-1",
		DocumentName: "Biology: Cells",
		Pages:        12,
		Messages: []storage.Message{
			{ID: "m1", Role: storage.RoleUser, Text: "What is <osmosis>?", CreatedAt: at},
			{
				ID:   "m2",
				Role: storage.RoleAssistant,
				Text: "Osmosis is the diffusion of water.\n\nSee page 5.",
				Commands: []json.RawMessage{
					json.RawMessage(`{"action":"goToPage","page":5}`),
					json.RawMessage(`{"action":"highlightText","page":5,"text":"osmosis","color":"green"}`),
					json.RawMessage(`{"action":"explode"}`),
				},
				CreatedAt: at.Add(3 * time.Second),
			},
		},
	}
}

func TestMarkdownExport(t *testing.T) {
	out, err := NewMarkdownExporter(nil).Export(sampleTranscript())
	require.NoError(t, err)
	md := string(out)

	assert.True(t, strings.HasPrefix(md, "---\n"))
	assert.Contains(t, md, `title: "Biology: Cells"`)
	assert.Contains(t, md, "document: doc-1")
	assert.Contains(t, md, "messages: 2")
	assert.Contains(t, md, "- **Pages**: 12")
	assert.Contains(t, md, "### Student <sub>09:30:00</sub>")
	assert.Contains(t, md, "### Tutor <sub>09:30:03</sub>")
	assert.Contains(t, md, "- go to page 5")
	assert.Contains(t, md, `- highlight green text "osmosis" on page 5`)
	assert.Contains(t, md, `- {"action":"explode"}`)
	assert.Less(t, strings.Index(md, "Student"), strings.Index(md, "Tutor"))
}

func TestMarkdownExport_Options(t *testing.T) {
	opts := &Options{}
	out, err := NewMarkdownExporter(opts).Export(sampleTranscript())
	require.NoError(t, err)
	md := string(out)

	assert.False(t, strings.HasPrefix(md, "---\n"))
	assert.Contains(t, md, "### Student\n")
	assert.NotContains(t, md, "Session Information")
	assert.NotContains(t, md, "go to page 5")
}

func TestHTMLExport_EscapesAndThemes(t *testing.T) {
	out, err := NewHTMLExporter(&Options{Theme: "light", IncludeCommands: true}).Export(sampleTranscript())
	require.NoError(t, err)
	page := string(out)

	assert.Contains(t, page, `<body class="light-theme">`)
	assert.Contains(t, page, "What is &lt;osmosis&gt;?")
	assert.NotContains(t, page, "<osmosis>")
	assert.Contains(t, page, "<p>See page 5.</p>")
	assert.Contains(t, page, "<li>go to page 5</li>")

	out, err = NewHTMLExporter(&Options{Theme: "neon"}).Export(sampleTranscript())
	require.NoError(t, err)
	assert.Contains(t, string(out), `<body class="dark-theme">`)
}

func TestJSONExport_RoundTrips(t *testing.T) {
	out, err := NewJSONExporter(nil).Export(sampleTranscript())
	require.NoError(t, err)

	var back Transcript
	require.NoError(t, json.Unmarshal(out, &back))
	assert.Equal(t, "doc-1", back.DocumentID)
	require.Len(t, back.Messages, 2)
	assert.Len(t, back.Messages[1].Commands, 3)
}

func TestExport_Validation(t *testing.T) {
	for _, e := range []Exporter{NewMarkdownExporter(nil), NewHTMLExporter(nil), NewJSONExporter(nil)} {
		_, err := e.Export(nil)
		assert.ErrorIs(t, err, ErrNilTranscript)
		_, err = e.Export(&Transcript{DocumentID: "x"})
		assert.ErrorIs(t, err, ErrNoMessages)
	}
}

func TestForFormat(t *testing.T) {
	tests := []struct {
		format string
		ext    string
	}{
		{"", ".md"},
		{"markdown", ".md"},
		{"MD", ".md"},
		{"html", ".html"},
		{"htm", ".html"},
		{"json", ".json"},
	}
	for _, tt := range tests {
		e, err := ForFormat(tt.format, nil)
		require.NoError(t, err, tt.format)
		assert.Equal(t, tt.ext, e.FileExtension(), tt.format)
	}

	_, err := ForFormat("pdf", nil)
	assert.Error(t, err)
}

func TestToFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	path, err := ToFile(sampleTranscript(), NewJSONExporter(nil), &Options{OutputDir: dir})
	require.NoError(t, err)

	assert.Equal(t, dir, filepath.Dir(path))
	assert.True(t, strings.HasPrefix(filepath.Base(path), "transcript_Biology-_Cells_"))
	assert.True(t, strings.HasSuffix(path, ".json"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"documentName": "Biology: Cells"`)

	_, err = ToFile(&Transcript{}, NewJSONExporter(nil), &Options{OutputDir: dir})
	assert.ErrorIs(t, err, ErrNoMessages)
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", "transcript"},
		{"a/b\\c", "a-b-c"},
		{"two words", "two_words"},
		{"bell\a", "bell-"},
		{"ok-name.v2", "ok-name.v2"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, sanitizeFilename(tt.in), "%q", tt.in)
	}
	assert.Equal(t, strings.Repeat("x", 50), sanitizeFilename(strings.Repeat("x", 80)))
}
