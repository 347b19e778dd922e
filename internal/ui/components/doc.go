// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package components provides the UI pieces shared by the pagetutor chat
program and the command line.

# Components

Markdown (markdown.go) - glamour renderer for tutor replies, styled dark or
light to match the terminal.

PagePanel (pagepanel.go) - side panel showing the viewer's current page,
mounted pages and active highlights.

StatusBar (statusbar.go) - bottom bar with provider, document and shortcuts.

Spinner (spinner.go) - "Thinking" indicator with elapsed time.

RunTable (table.go) - table of resolved highlight boxes with the text runs
that produced them. Run text is truncated by display width.

All components take a *styles.Theme and hold no global state.
*/
package components
