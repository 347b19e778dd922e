// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package command

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrMalformed is returned when a payload is not a JSON object or has no
	// string action field.
	ErrMalformed = errors.New("malformed command payload")

	// ErrUnknownAction is returned for an action outside the closed set.
	ErrUnknownAction = errors.New("unknown command action")
)

// FieldError reports a required field that is missing, mistyped, or out of
// range for a recognized action.
type FieldError struct {
	Action string
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: field %q %s", e.Action, e.Field, e.Reason)
}

// =============================================================================
// PARSE
// =============================================================================

// fields holds the raw members of a payload object.
type fields map[string]json.RawMessage

// Parse validates a JSON payload and maps it onto a Command variant.
// Surrounding whitespace is ignored.
func Parse(payload []byte) (Command, error) {
	payload = bytes.TrimSpace(payload)
	if len(payload) == 0 || payload[0] != '{' {
		return nil, ErrMalformed
	}

	var f fields
	if err := json.Unmarshal(payload, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	raw, ok := f.get("action")
	if !ok {
		return nil, ErrMalformed
	}
	var action string
	if err := json.Unmarshal(raw, &action); err != nil {
		return nil, ErrMalformed
	}

	switch action {
	case ActionGoToPage:
		return parseGoToPage(f)
	case ActionHighlightRect:
		return parseHighlightRect(f)
	case ActionHighlightText:
		return parseHighlightText(f)
	case ActionClearHighlights:
		return parseClearHighlights(f)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownAction, action)
}

// ParseString is Parse for string payloads.
func ParseString(payload string) (Command, error) {
	return Parse([]byte(payload))
}

func parseGoToPage(f fields) (Command, error) {
	page, err := f.page(ActionGoToPage, true)
	if err != nil {
		return nil, err
	}
	return GoToPage{Page: page}, nil
}

func parseHighlightRect(f fields) (Command, error) {
	page, err := f.page(ActionHighlightRect, true)
	if err != nil {
		return nil, err
	}
	rect, err := f.rect(ActionHighlightRect)
	if err != nil {
		return nil, err
	}
	color, err := f.color(ActionHighlightRect)
	if err != nil {
		return nil, err
	}
	return HighlightRect{Page: page, Rect: rect, Color: color}, nil
}

func parseHighlightText(f fields) (Command, error) {
	page, err := f.page(ActionHighlightText, true)
	if err != nil {
		return nil, err
	}
	color, err := f.color(ActionHighlightText)
	if err != nil {
		return nil, err
	}

	start, hasStart, err := f.int(ActionHighlightText, "start")
	if err != nil {
		return nil, err
	}
	end, hasEnd, err := f.int(ActionHighlightText, "end")
	if err != nil {
		return nil, err
	}

	// Offset form wins when both forms are present.
	if hasStart || hasEnd {
		switch {
		case !hasStart:
			return nil, &FieldError{Action: ActionHighlightText, Field: "start", Reason: "is required with end"}
		case !hasEnd:
			return nil, &FieldError{Action: ActionHighlightText, Field: "end", Reason: "is required with start"}
		case start < 0:
			return nil, &FieldError{Action: ActionHighlightText, Field: "start", Reason: "must be non-negative"}
		case end < start:
			return nil, &FieldError{Action: ActionHighlightText, Field: "end", Reason: "must not precede start"}
		}
		return HighlightText{Page: page, Locator: OffsetRange{Start: start, End: end}, Color: color}, nil
	}

	raw, ok := f.get("text")
	if !ok {
		return nil, &FieldError{Action: ActionHighlightText, Field: "text", Reason: "or start/end is required"}
	}
	var text string
	if err := json.Unmarshal(raw, &text); err != nil {
		return nil, &FieldError{Action: ActionHighlightText, Field: "text", Reason: "must be a string"}
	}
	if text == "" {
		return nil, &FieldError{Action: ActionHighlightText, Field: "text", Reason: "must not be empty"}
	}
	return HighlightText{Page: page, Locator: Substring{Text: text}, Color: color}, nil
}

func parseClearHighlights(f fields) (Command, error) {
	page, err := f.page(ActionClearHighlights, false)
	if err != nil {
		return nil, err
	}
	return ClearHighlights{Page: page}, nil
}

// =============================================================================
// FIELD HELPERS
// =============================================================================

// get returns a member, treating JSON null as absent.
func (f fields) get(name string) (json.RawMessage, bool) {
	raw, ok := f[name]
	if !ok || string(raw) == "null" {
		return nil, false
	}
	return raw, true
}

// int reads an integral JSON number.
func (f fields) int(action, name string) (int, bool, error) {
	raw, ok := f.get(name)
	if !ok {
		return 0, false, nil
	}
	var v float64
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0, true, &FieldError{Action: action, Field: name, Reason: "must be a number"}
	}
	if v != math.Trunc(v) || math.Abs(v) > math.MaxInt32 {
		return 0, true, &FieldError{Action: action, Field: name, Reason: "must be an integer"}
	}
	return int(v), true, nil
}

// page reads a 1-based page number.
func (f fields) page(action string, required bool) (int, error) {
	page, ok, err := f.int(action, "page")
	if err != nil {
		return 0, err
	}
	if !ok {
		if required {
			return 0, &FieldError{Action: action, Field: "page", Reason: "is required"}
		}
		return 0, nil
	}
	if page < 1 {
		return 0, &FieldError{Action: action, Field: "page", Reason: "must be >= 1"}
	}
	return page, nil
}

func (f fields) rect(action string) (Box, error) {
	raw, ok := f.get("rect")
	if !ok {
		return Box{}, &FieldError{Action: action, Field: "rect", Reason: "is required"}
	}
	var v []float64
	if err := json.Unmarshal(raw, &v); err != nil || len(v) != 4 {
		return Box{}, &FieldError{Action: action, Field: "rect", Reason: "must be [x,y,w,h]"}
	}
	box := Box{X: v[0], Y: v[1], W: v[2], H: v[3]}
	if !box.Valid() {
		return Box{}, &FieldError{Action: action, Field: "rect", Reason: "values must lie in [0,1]"}
	}
	return box, nil
}

func (f fields) color(action string) (string, error) {
	raw, ok := f.get("color")
	if !ok {
		return DefaultColor, nil
	}
	var c string
	if err := json.Unmarshal(raw, &c); err != nil {
		return "", &FieldError{Action: action, Field: "color", Reason: "must be a string"}
	}
	return colorOrDefault(c), nil
}
