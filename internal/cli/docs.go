// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/jeranaias/pagetutor/internal/layout"
	"github.com/jeranaias/pagetutor/internal/library"
	"github.com/jeranaias/pagetutor/internal/util"
)

// =============================================================================
// IMPORT COMMAND
// =============================================================================

// runImport stores a layout file. Importing a name that already exists
// replaces its pages and keeps its id.
func runImport(a Args) error {
	e, err := newEnv(a)
	if err != nil {
		return err
	}
	defer e.Close()

	doc, err := layout.LoadFile(a.File)
	if errors.Is(err, os.ErrNotExist) {
		return &NotFoundError{Resource: "file", ID: a.File}
	}
	if err != nil {
		return NewCommandError("import", "read", a.File, err)
	}

	lib, err := e.openLibrary()
	if err != nil {
		return err
	}
	defer lib.Close()

	id, err := lib.SaveDocument(context.Background(), doc)
	if err != nil {
		return NewCommandError("import", "save", doc.Name, err)
	}
	e.logger.Printf("IMPORT | name=%s id=%s pages=%d", doc.Name, id, len(doc.Pages))

	data := ImportData{ID: id, Name: doc.Name, Pages: len(doc.Pages)}
	if a.JSON {
		return NewJSONResponse("import", data).Print()
	}
	fmt.Fprintf(stdout, "%s imported %s (%s) %s\n",
		SuccessStyle.Render("[OK]"), data.Name, pluralize(data.Pages, "page"), DimStyle.Render(data.ID))
	return nil
}

// =============================================================================
// DOCS COMMAND
// =============================================================================

func runDocs(a Args) error {
	e, err := newEnv(a)
	if err != nil {
		return err
	}
	defer e.Close()

	lib, err := e.openLibrary()
	if err != nil {
		return err
	}
	defer lib.Close()

	ctx := context.Background()
	if a.Subcommand == "delete" {
		return deleteDocument(ctx, e, lib, a.Doc)
	}

	docs, err := lib.ListDocuments(ctx)
	if err != nil {
		return NewCommandError("docs", "list", "library query failed", err)
	}
	if a.JSON {
		return NewJSONResponse("docs", DocsData{Documents: docs}).Print()
	}
	if len(docs) == 0 {
		fmt.Fprintln(stdout, DimStyle.Render("No documents. Add one with: pagetutor import <file>"))
		return nil
	}

	rows := [][]string{{"ID", "NAME", "PAGES", "UPDATED"}}
	for _, d := range docs {
		rows = append(rows, []string{
			d.ID,
			util.TruncateWidth(d.Name, 40),
			strconv.Itoa(d.Pages),
			d.UpdatedAt.Local().Format("2006-01-02 15:04"),
		})
	}
	lines := formatColumns(rows)
	fmt.Fprintln(stdout, SectionStyle.Render(lines[0]))
	for _, l := range lines[1:] {
		fmt.Fprintln(stdout, l)
	}
	return nil
}

func deleteDocument(ctx context.Context, e *env, lib *library.Store, ref string) error {
	info, err := lib.Resolve(ctx, ref)
	if errors.Is(err, library.ErrNotFound) {
		return &NotFoundError{Resource: "document", ID: ref}
	}
	if err != nil {
		return err
	}
	if err := lib.DeleteDocument(ctx, info.ID); err != nil {
		return NewCommandError("docs", "delete", info.Name, err)
	}
	if ts, err := e.transcripts(); err == nil {
		if err := ts.Delete(info.ID); err != nil {
			e.logger.Printf("TRANSCRIPT_FAILED | doc=%s err=%v", info.ID, err)
		}
	}
	e.logger.Printf("DELETE | name=%s id=%s", info.Name, info.ID)

	if e.args.JSON {
		return NewJSONResponse("docs", map[string]string{"deleted": info.ID}).Print()
	}
	fmt.Fprintf(stdout, "%s deleted %s\n", SuccessStyle.Render("[OK]"), info.Name)
	return nil
}

// =============================================================================
// SEARCH COMMAND
// =============================================================================

func runSearch(a Args) error {
	e, err := newEnv(a)
	if err != nil {
		return err
	}
	defer e.Close()

	lib, err := e.openLibrary()
	if err != nil {
		return err
	}
	defer lib.Close()

	ctx := context.Background()
	var docID string
	names := map[string]string{}
	if a.Doc != "" {
		info, err := lib.Resolve(ctx, a.Doc)
		if errors.Is(err, library.ErrNotFound) {
			return &NotFoundError{Resource: "document", ID: a.Doc}
		}
		if err != nil {
			return err
		}
		docID = info.ID
		names[info.ID] = info.Name
	} else if docs, err := lib.ListDocuments(ctx); err == nil {
		for _, d := range docs {
			names[d.ID] = d.Name
		}
	}

	hits, err := lib.Search(ctx, docID, a.Query, a.Limit)
	if err != nil {
		return NewCommandError("search", "query", a.Query, err)
	}
	if a.JSON {
		return NewJSONResponse("search", hits).Print()
	}
	if len(hits) == 0 {
		fmt.Fprintln(stdout, DimStyle.Render("no matches for "+strconv.Quote(a.Query)))
		return nil
	}
	for _, h := range hits {
		name := names[h.DocumentID]
		if name == "" {
			name = h.DocumentID
		}
		fmt.Fprintf(stdout, "%s %s\n",
			TitleStyle.Render(fmt.Sprintf("%s p.%d", name, h.Page)),
			strings.Join(strings.Fields(h.Snippet), " "))
	}
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

// formatColumns pads every cell but the last to its column's display width.
func formatColumns(rows [][]string) []string {
	var widths []int
	for _, row := range rows {
		for i, cell := range row {
			if i >= len(widths) {
				widths = append(widths, 0)
			}
			widths[i] = max(widths[i], runewidth.StringWidth(cell))
		}
	}

	lines := make([]string, len(rows))
	for r, row := range rows {
		cells := make([]string, len(row))
		for i, cell := range row {
			if i == len(row)-1 {
				cells[i] = cell
				continue
			}
			cells[i] = runewidth.FillRight(cell, widths[i])
		}
		lines[r] = strings.Join(cells, "  ")
	}
	return lines
}

func pluralize(n int, word string) string {
	if n == 1 {
		return "1 " + word
	}
	return strconv.Itoa(n) + " " + word + "s"
}
