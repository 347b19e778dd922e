// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage persists tutoring transcripts.
//
// Each document has one transcript: a JSON file holding its messages in the
// order they were exchanged. Writes are atomic, so a crash leaves either the
// previous transcript or the new one.
//
// # Usage
//
//	store, err := storage.NewTranscriptStoreWithDir(dir)
//	msg, err := store.Append(docID, storage.Message{Role: storage.RoleUser, Text: q})
//	history, err := store.List(docID)
//
// # Storage Location
//
// Transcripts are stored in ~/.pagetutor/transcripts/ by default.
package storage
