// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package library

import (
	"bytes"
	"context"
	"log"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/pagetutor/internal/layout"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "db", "library.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

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

// =============================================================================
// STORE
// =============================================================================

func TestStore_SaveAndLoadRoundTrip(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	doc := biology()

	id, err := s.SaveDocument(ctx, doc)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	idx, err := s.LoadIndex(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "biology", idx.Name())
	assert.Equal(t, 2, idx.Len())

	p5, ok := idx.Page(5)
	require.True(t, ok)
	assert.Equal(t, doc.Pages[1], p5)
}

func TestStore_SaveSameNameReplaces(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	id1, err := s.SaveDocument(ctx, biology())
	require.NoError(t, err)

	smaller := biology()
	smaller.Pages = smaller.Pages[:1]
	id2, err := s.SaveDocument(ctx, smaller)
	require.NoError(t, err)

	assert.Equal(t, id1, id2)
	idx, err := s.LoadIndex(ctx, id1)
	require.NoError(t, err)
	assert.Equal(t, 1, idx.Len())

	docs, err := s.ListDocuments(ctx)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, 1, docs[0].Pages)
}

func TestStore_RejectsInvalidDocuments(t *testing.T) {
	s := openStore(t)

	_, err := s.SaveDocument(context.Background(), &layout.Document{Name: "empty"})
	require.ErrorIs(t, err, layout.ErrNoPages)

	bad := biology()
	bad.Pages[0].Number = 0
	_, err = s.SaveDocument(context.Background(), bad)
	require.ErrorIs(t, err, layout.ErrBadPageNumber)
}

func TestStore_FindResolveDelete(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	id, err := s.SaveDocument(ctx, biology())
	require.NoError(t, err)

	byName, err := s.FindByName(ctx, "biology")
	require.NoError(t, err)
	assert.Equal(t, id, byName.ID)

	for _, ref := range []string{id, "biology"} {
		info, err := s.Resolve(ctx, ref)
		require.NoError(t, err, ref)
		assert.Equal(t, id, info.ID)
	}

	require.NoError(t, s.DeleteDocument(ctx, id))
	_, err = s.LoadIndex(ctx, id)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.DeleteDocument(ctx, id), ErrNotFound)

	hits, err := s.Search(ctx, "", "osmosis", 0)
	require.NoError(t, err)
	assert.Empty(t, hits, "deleting a document removes its search text")
}

func TestStore_ListOrdered(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	for _, name := range []string{"b", "a"} {
		doc := biology()
		doc.Name = name
		_, err := s.SaveDocument(ctx, doc)
		require.NoError(t, err)
	}

	docs, err := s.ListDocuments(ctx)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, 2, docs[0].Pages)
}

// =============================================================================
// SEARCH
// =============================================================================

func TestStore_Search(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	id, err := s.SaveDocument(ctx, biology())
	require.NoError(t, err)

	hits, err := s.Search(ctx, id, "water membranes", 5)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, 5, hits[0].Page)
	assert.Contains(t, hits[0].Snippet, "[water]")

	hits, err = s.Search(ctx, "", `cells" OR "x`, 5)
	require.NoError(t, err, "quotes in user input are escaped")
	assert.Empty(t, hits)

	hits, err = s.Search(ctx, "", "   ", 5)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestBuildFTSQuery(t *testing.T) {
	assert.Equal(t, `"water" "cycle"`, buildFTSQuery(" water  cycle "))
	assert.Equal(t, `"a""b"`, buildFTSQuery(`a"b`))
	assert.Equal(t, "", buildFTSQuery(""))
}

// =============================================================================
// WATCHER
// =============================================================================

func TestWatcher_ImportsNewAndExistingFiles(t *testing.T) {
	s := openStore(t)
	dir := t.TempDir()

	existing := biology()
	existing.Name = ""
	require.NoError(t, layout.SaveFile(filepath.Join(dir, "chemistry.json"), existing))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0644))

	w, err := NewWatcher(s, dir, 30*time.Millisecond)
	require.NoError(t, err)
	var logs bytes.Buffer
	w.SetLogger(log.New(&logs, "", 0))

	imported := make(chan string, 4)
	w.OnImport(func(name, id string) { imported <- name })
	require.NoError(t, w.Start())
	t.Cleanup(func() { w.Close() })

	waitFor := func(want string) {
		t.Helper()
		select {
		case got := <-imported:
			assert.Equal(t, want, got)
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out waiting for %s; log:\n%s", want, logs.String())
		}
	}
	waitFor("chemistry")

	require.NoError(t, layout.SaveFile(filepath.Join(dir, "physics.json.zst"), biology()))
	waitFor("biology")

	docs, err := s.ListDocuments(context.Background())
	require.NoError(t, err)
	assert.Len(t, docs, 2)
}

func TestWatcher_LogsBadFiles(t *testing.T) {
	s := openStore(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.json"), []byte("{nope"), 0644))

	w, err := NewWatcher(s, dir, 20*time.Millisecond)
	require.NoError(t, err)

	var logs bytes.Buffer
	done := make(chan struct{})
	w.SetLogger(log.New(writerFunc(func(p []byte) (int, error) {
		logs.Write(p)
		if bytes.Contains(p, []byte("IMPORT_FAILED")) {
			select {
			case <-done:
			default:
				close(done)
			}
		}
		return len(p), nil
	}), "", 0))
	require.NoError(t, w.Start())
	defer w.Close()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("expected an import failure")
	}
	assert.Contains(t, logs.String(), "broken.json")
}

func TestNewWatcher_RequiresDirectory(t *testing.T) {
	s := openStore(t)
	file := filepath.Join(t.TempDir(), "f")
	require.NoError(t, os.WriteFile(file, nil, 0644))

	_, err := NewWatcher(s, file, 0)
	require.Error(t, err)
	_, err = NewWatcher(s, filepath.Join(t.TempDir(), "missing"), 0)
	require.Error(t, err)
}

type writerFunc func(p []byte) (int, error)

func (f writerFunc) Write(p []byte) (int, error) { return f(p) }
