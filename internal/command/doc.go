// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package command defines the closed set of viewer-control commands an
// assistant can embed in its reply, and their JSON wire form.
//
// # Key Types
//
//   - Command: sealed interface implemented only by the four variants
//   - GoToPage, HighlightRect, HighlightText, ClearHighlights: the variants
//   - Locator: Substring or OffsetRange text target of a HighlightText
//   - Box: rectangle normalized to [0,1] of page width and height
//
// # Wire Form
//
// Each command travels as a JSON object wrapped in a sentinel tag:
//
//	<cmd>{"action":"goToPage","page":3}</cmd>
//	<cmd>{"action":"highlightRect","page":2,"rect":[0.1,0.2,0.3,0.05],"color":"green"}</cmd>
//	<cmd>{"action":"highlightText","page":5,"start":120,"end":130}</cmd>
//	<cmd>{"action":"highlightText","page":5,"text":"osmosis"}</cmd>
//	<cmd>{"action":"clearHighlights","page":5}</cmd>
//
// Parse validates a payload at the boundary and returns one of the
// variants or an error; callers that follow the drop policy simply ignore
// the error.
package command
