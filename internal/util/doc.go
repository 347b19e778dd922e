// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small helpers shared across pagetutor.
//
// # Key Functions
//
// File Operations:
//   - AtomicWriteFile: Crash-safe file writing with fsync
//   - AtomicWriteJSON: Indented JSON written through AtomicWriteFile
//
// String Utilities:
//   - SafeSubstring: code-point indexed slicing, matching layout offsets
//   - TruncateWidth: display-width truncation for terminal tables
//   - DisplayWidth: terminal column count
//
// # Usage
//
//	// Slice page text by layout offsets
//	excerpt := util.SafeSubstring(page.Text(), run.Start, run.End)
//
//	// Write files atomically to prevent data loss
//	err := util.AtomicWriteFile(path, data, 0644)
package util
