// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package export writes a document's tutoring transcript to a file.
//
// # Supported Formats
//
//   - Markdown: questions, replies and the commands each reply issued
//   - HTML: the same content as a standalone page, light or dark
//   - JSON: the stored messages verbatim, commands in wire form
//
// # Usage
//
//	t := &export.Transcript{DocumentID: info.ID, DocumentName: info.Name, Messages: msgs}
//	path, err := export.ToFile(t, export.NewMarkdownExporter(nil), nil)
package export
