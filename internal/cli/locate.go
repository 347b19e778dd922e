// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/jeranaias/pagetutor/internal/command"
	"github.com/jeranaias/pagetutor/internal/geometry"
	"github.com/jeranaias/pagetutor/internal/ui/components"
	"github.com/jeranaias/pagetutor/internal/ui/styles"
)

// =============================================================================
// LOCATE COMMAND
// =============================================================================

// runLocate resolves a locator against one stored page and prints the
// boxes a highlightText command with it would produce.
func runLocate(a Args) error {
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

	info, idx, err := e.loadDocument(context.Background(), lib, a.Doc)
	if err != nil {
		return err
	}
	page, ok := idx.Page(a.Page)
	if !ok {
		return &NotFoundError{Resource: "page", ID: info.Name + " p." + strconv.Itoa(a.Page)}
	}

	scale := a.Scale
	if scale == 0 {
		scale = e.cfg.Viewer.DefaultScale
	}

	var loc command.Locator = command.Substring{Text: a.Text}
	if a.Range {
		loc = command.OffsetRange{Start: a.Start, End: a.End}
	}

	v := geometry.ViewportFor(page, scale)
	matches := geometry.ResolveRuns(loc, page.Runs, v)
	if len(matches) == 0 {
		e.logger.Printf("RESOLVER_MISS | page=%d locator=%v", a.Page, loc)
	}

	if a.JSON {
		data := LocateData{Page: page.Number, Scale: scale, Matches: []LocateMatch{}}
		pw, ph := v.PageWidth*v.Scale, v.PageHeight*v.Scale
		for _, m := range matches {
			r := page.Runs[m.Run]
			b := m.Box
			data.Matches = append(data.Matches, LocateMatch{
				Run:   m.Run,
				Start: r.Start,
				End:   r.End,
				Text:  r.Text,
				Box:   [4]float64{b.X, b.Y, b.W, b.H},
				Pixel: [4]float64{b.X * pw, b.Y * ph, b.W * pw, b.H * ph},
			})
		}
		return NewJSONResponse("locate", data).Print()
	}

	if !a.Quiet {
		fmt.Fprintf(stdout, "%s %s p.%d  %s  scale %s\n",
			TitleStyle.Render("locate"), info.Name, page.Number, loc, strconv.FormatFloat(scale, 'f', -1, 64))
		if text := geometry.MatchedText(loc, page); text != "" {
			fmt.Fprintf(stdout, "%s%q\n", RenderLabel("Matched"), text)
		}
	}
	fmt.Fprintln(stdout, components.RunTable(styles.NewTheme(), page, v, matches))
	return nil
}
