// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package server provides the pagetutor HTTP API.
//
// # Endpoints
//
//   - POST   /api/chat                 - Ask the tutor; streams the raw reply as text/plain
//   - GET    /api/chat/messages        - Transcript of a document (?documentId=)
//   - GET    /api/session              - The caller's session
//   - GET    /api/documents            - List stored layout documents
//   - POST   /api/documents            - Store a layout document
//   - GET    /api/documents/{id}       - Document metadata
//   - DELETE /api/documents/{id}       - Delete a document and its transcript
//   - GET    /api/search               - Full-text page search (?q=&documentId=)
//   - GET    /api/viewer               - Viewer snapshot
//   - POST   /api/viewer/mount         - Page presence signal from the renderer
//   - POST   /api/viewer/command       - Publish one wire command
//   - GET    /ws                       - Websocket push of every bus command
//   - GET    /health                   - Health check
//
// # Middleware
//
//   - Request IDs and panic recovery (chi)
//   - Request logging
//   - CORS
//   - Per-IP rate limiting (httprate)
//   - Optional bearer token authentication with constant-time comparison
//
// # Usage
//
//	srv := server.New(server.Config{
//		Addr:     "127.0.0.1:8787",
//		Provider: tutor.OllamaProvider{Client: ollama.NewClient()},
//		Library:  store,
//	})
//	if err := srv.Start(); err != nil {
//		log.Fatal(err)
//	}
package server
