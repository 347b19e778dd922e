// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"

	"github.com/jeranaias/pagetutor/internal/export"
)

// =============================================================================
// EXPORT COMMAND
// =============================================================================

// runExport writes a document's transcript in the requested format. An
// --out of "-" writes to stdout instead of a file.
func runExport(a Args) error {
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

	info, _, err := e.loadDocument(context.Background(), lib, a.Doc)
	if err != nil {
		return err
	}

	ts, err := e.transcripts()
	if err != nil {
		return NewCommandError("export", "open transcripts", e.cfg.Library.TranscriptsDir, err)
	}
	msgs, err := ts.List(info.ID)
	if err != nil {
		return NewCommandError("export", "read transcript", info.Name, err)
	}
	if len(msgs) == 0 {
		return &NotFoundError{Resource: "transcript", ID: info.Name}
	}

	t := &export.Transcript{DocumentID: info.ID, DocumentName: info.Name, Pages: info.Pages, Messages: msgs}
	opts := export.DefaultOptions()
	opts.OutputDir = a.OutDir
	exporter, err := export.ForFormat(a.Format, opts)
	if err != nil {
		return ErrInvalidFormat("--format", a.Format, commandUsage[CmdExport])
	}

	if a.OutDir == "-" {
		content, err := exporter.Export(t)
		if err != nil {
			return NewCommandError("export", "render", info.Name, err)
		}
		_, err = stdout.Write(content)
		return err
	}

	path, err := export.ToFile(t, exporter, opts)
	if err != nil {
		return NewCommandError("export", "write", a.OutDir, err)
	}
	e.logger.Printf("EXPORT | doc=%s format=%s path=%s messages=%d", info.ID, a.Format, path, len(msgs))

	if a.JSON {
		return NewJSONResponse("export", map[string]any{"path": path, "messages": len(msgs)}).Print()
	}
	fmt.Fprintf(stdout, "%s exported %s to %s\n", SuccessStyle.Render("[OK]"), pluralize(len(msgs), "message"), path)
	return nil
}
