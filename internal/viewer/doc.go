// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package viewer applies bus commands to a document being displayed.
//
// A Viewer stands between the command bus and a rendering surface. It
// tracks which pages are mounted and at what display scale, resolves
// text-anchored highlights through the geometry package once their page is
// present, and keeps the resulting rectangles in a highlight.State that a
// renderer reads.
//
// # Page Presence
//
// Renderers call Mount when a page appears and SetScale when its rendered
// width changes. Navigation to a page that has not mounted yet is recorded
// as pending, and text highlights for it are queued and replayed on Mount.
// A viewer created WithAutoMount treats every page as present at a fixed
// scale, which suits headless use.
package viewer
