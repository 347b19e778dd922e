// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package styles provides the visual styling system for the pagetutor
// terminal interfaces.
//
// Colors are lipgloss AdaptiveColors, so one palette serves light and dark
// terminals. A Theme detects the background once with termenv and picks the
// matching glamour style for rendered replies.
//
// # Usage
//
//	theme := styles.NewTheme()
//	fmt.Println(theme.UserLabel.Render("You"))
//	fmt.Println(theme.Swatch("yellow"), "page 5")
//
// Highlight color names sent by the tutor ("yellow", "pink", ...) map to
// swatches through HighlightColor. Hex colors are passed through.
package styles
