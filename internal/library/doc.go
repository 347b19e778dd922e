// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package library stores document layouts in SQLite.
//
// Each page's text runs are kept as a zstd-compressed JSON blob, and page
// text is mirrored into an FTS5 table for search. A Watcher imports layout
// files dropped into a directory.
//
// # Usage
//
//	store, err := library.Open(filepath.Join(dir, "library.db"))
//	id, err := store.SaveDocument(ctx, doc)
//	idx, err := store.LoadIndex(ctx, id)
package library
