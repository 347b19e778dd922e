// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat is the interactive tutor: a Bubble Tea program that asks
// questions about one document and streams the tutor's reply while the
// reply's commands drive the viewer.
//
// # Layout
//
//	+----------------------------------------------+------------------+
//	| header: pagetutor | document                                     |
//	| conversation (viewport)                      | page panel       |
//	|                                              |  showing 5       |
//	|                                              |  highlights      |
//	| spinner                                                          |
//	| > input                                                          |
//	| status bar                                                       |
//	+------------------------------------------------------------------+
//
// # Streaming
//
// Each question runs as one tea.Cmd. The exchange goroutine writes
// visible prose into a StreamingBuffer, and a 30fps tick moves buffered
// text into the conversation and refreshes the page panel from the viewer.
// Commands reach the viewer through the bus as they decode, so the panel
// follows the reply while it streams.
//
// # Keys
//
//	enter       ask
//	esc         cancel the running exchange
//	ctrl+l      clear the conversation (and the viewer's highlights)
//	pgup/pgdown scroll
//	ctrl+c      quit
package chat
