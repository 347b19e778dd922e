// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package command

import (
	"encoding/json"
	"fmt"
)

// Sentinel tags that delimit a command inside streamed text.
const (
	OpenTag  = "<cmd>"
	CloseTag = "</cmd>"
)

// wire is the JSON shape shared by all actions.
type wire struct {
	Action string    `json:"action"`
	Page   int       `json:"page,omitempty"`
	Rect   []float64 `json:"rect,omitempty"`
	Text   string    `json:"text,omitempty"`
	Start  *int      `json:"start,omitempty"`
	End    *int      `json:"end,omitempty"`
	Color  string    `json:"color,omitempty"`
}

// Encode returns the canonical wire JSON for cmd.
func Encode(cmd Command) ([]byte, error) {
	w := wire{Action: cmd.Action()}

	switch c := cmd.(type) {
	case GoToPage:
		w.Page = c.Page
	case HighlightRect:
		w.Page = c.Page
		w.Rect = []float64{c.Rect.X, c.Rect.Y, c.Rect.W, c.Rect.H}
		w.Color = colorOrDefault(c.Color)
	case HighlightText:
		w.Page = c.Page
		w.Color = colorOrDefault(c.Color)
		switch loc := c.Locator.(type) {
		case Substring:
			w.Text = loc.Text
		case OffsetRange:
			start, end := loc.Start, loc.End
			w.Start, w.End = &start, &end
		default:
			return nil, fmt.Errorf("encode %s: unsupported locator %T", w.Action, c.Locator)
		}
	case ClearHighlights:
		w.Page = c.Page
	default:
		return nil, fmt.Errorf("encode: unsupported command %T", cmd)
	}

	return json.Marshal(w)
}

// Wrap returns cmd in its tagged wire form, ready to embed in a reply.
func Wrap(cmd Command) (string, error) {
	data, err := Encode(cmd)
	if err != nil {
		return "", err
	}
	return OpenTag + string(data) + CloseTag, nil
}

// Describe returns a short human-readable summary of cmd for logs and UIs.
func Describe(cmd Command) string {
	switch c := cmd.(type) {
	case GoToPage:
		return fmt.Sprintf("go to page %d", c.Page)
	case HighlightRect:
		return fmt.Sprintf("highlight %s rect on page %d", colorOrDefault(c.Color), c.Page)
	case HighlightText:
		return fmt.Sprintf("highlight %s %v on page %d", colorOrDefault(c.Color), c.Locator, c.Page)
	case ClearHighlights:
		if c.AllPages() {
			return "clear all highlights"
		}
		return fmt.Sprintf("clear highlights on page %d", c.Page)
	}
	return "unknown command"
}
