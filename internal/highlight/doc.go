// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package highlight holds the active highlight rectangles of a viewer.
//
// State is mutated only through Apply with an already-resolved command:
// text locators must be turned into boxes before they get here. Highlights
// are additive and never deduplicated; the same command applied twice
// yields two overlapping entries.
package highlight
