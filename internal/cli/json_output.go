// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// json_output.go - machine-readable output for --json.

package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/jeranaias/pagetutor/internal/highlight"
	"github.com/jeranaias/pagetutor/internal/library"
)

// JSONResponse is the envelope every command prints in JSON mode.
type JSONResponse struct {
	// Success indicates whether the command completed successfully
	Success bool `json:"success"`

	// Data contains the command-specific response data
	Data interface{} `json:"data"`

	// Error contains the error message if Success is false, null otherwise
	Error *string `json:"error"`

	// Timestamp is the RFC3339 time the response was generated
	Timestamp string `json:"timestamp"`

	Command string `json:"command,omitempty"`
}

// NewJSONResponse creates a new successful JSON response.
func NewJSONResponse(command string, data interface{}) *JSONResponse {
	return &JSONResponse{
		Success:   true,
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Command:   command,
	}
}

// NewJSONErrorResponse creates a new error JSON response.
func NewJSONErrorResponse(command string, err error) *JSONResponse {
	errStr := err.Error()
	return &JSONResponse{
		Error:     &errStr,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Command:   command,
	}
}

// Print writes the response to stdout, indented.
func (r *JSONResponse) Print() error {
	encoder := json.NewEncoder(stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(r)
}

// OutputJSON runs handler and prints its data in an envelope.
func OutputJSON(command string, handler func() (interface{}, error)) error {
	data, err := handler()
	if err != nil {
		NewJSONErrorResponse(command, err).Print()
		return err
	}
	return NewJSONResponse(command, data).Print()
}

// StderrPrint prints human-readable progress to stderr, where it does not
// mix with JSON output.
func StderrPrint(format string, args ...interface{}) {
	fmt.Fprintf(stderr, format, args...)
}

// =============================================================================
// COMMAND DATA
// =============================================================================

// AskData is the result of the ask command.
type AskData struct {
	Document   string                `json:"document"`
	Question   string                `json:"question"`
	Reply      string                `json:"reply"`
	Commands   []json.RawMessage     `json:"commands"`
	Dropped    int                   `json:"dropped"`
	Page       int                   `json:"page"`
	Highlights []highlight.Highlight `json:"highlights"`
}

// ImportData is the result of the import command.
type ImportData struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Pages int    `json:"pages"`
}

// DocsData is the result of the docs command.
type DocsData struct {
	Documents []library.DocumentInfo `json:"documents"`
}

// LocateData is the result of the locate command.
type LocateData struct {
	Page    int           `json:"page"`
	Scale   float64       `json:"scale"`
	Matches []LocateMatch `json:"matches"`
}

// LocateMatch is one resolved run.
type LocateMatch struct {
	Run   int        `json:"run"`
	Start int        `json:"start"`
	End   int        `json:"end"`
	Text  string     `json:"text"`
	Box   [4]float64 `json:"rect"`
	Pixel [4]float64 `json:"px"`
}

// DecodeData is the result of the decode command.
type DecodeData struct {
	Commands []json.RawMessage `json:"commands"`
	Visible  string            `json:"visible"`
	Dropped  int               `json:"dropped"`
}
