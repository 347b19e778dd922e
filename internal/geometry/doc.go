// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package geometry resolves text locators into normalized highlight boxes.
//
// Layout is captured once, at extraction time, in PDF user space. Pages
// are displayed at a scale chosen independently by the renderer. Resolve
// maps each selected run through its transform and the current display
// viewport, then divides by the scaled page size so the boxes are fractions
// of the page, independent of resolution.
//
// Resolve is a pure function with no caching; calling it again with the
// same arguments yields the same boxes.
package geometry
