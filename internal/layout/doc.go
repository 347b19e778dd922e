// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package layout holds the per-page text layout captured at extraction time.
//
// Each page is an ordered list of TextRuns. A run carries its text, its
// character-offset range within the page text, the affine transform that
// places it in PDF user space, and its extent. Offsets count Unicode code
// points and are contiguous: run i ends where run i+1 starts.
//
// # Key Types
//
//   - Matrix: 6-element affine transform [a b c d e f]
//   - TextRun: one positioned span of page text
//   - Page: a page's native size and its runs
//   - Builder: assigns contiguous offsets while runs are appended
//   - Index: concurrent-safe page lookup for a loaded document
//   - Document: on-disk JSON form produced by the extraction collaborator
//
// # Usage
//
//	b := layout.NewBuilder(5, 612, 792)
//	b.Add("Osmosis is the", layout.Matrix{12, 0, 0, 12, 72, 700}, 80, 12)
//	page := b.Build()
//
//	idx := layout.NewIndex("biology.pdf")
//	idx.Put(page)
package layout
