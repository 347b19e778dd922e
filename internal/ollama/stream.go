// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ollama

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"time"
)

// =============================================================================
// STREAM READER
// =============================================================================

// StreamReader parses a streaming /api/chat body one NDJSON line at a time.
type StreamReader struct {
	reader *bufio.Reader
	// PERFORMANCE: strings.Builder avoids quadratic allocations
	accumulator strings.Builder
	model       string
	done        bool
}

// NewStreamReader creates a new stream reader from an io.Reader.
func NewStreamReader(r io.Reader) *StreamReader {
	return &StreamReader{reader: bufio.NewReader(r)}
}

// ReadChunk returns the next parsed line. Blank and malformed lines are
// skipped. It returns io.EOF after the final chunk or at end of input.
func (s *StreamReader) ReadChunk() (StreamChunk, error) {
	for {
		if s.done {
			return StreamChunk{}, io.EOF
		}

		line, err := s.reader.ReadBytes('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return StreamChunk{}, &ClientError{Type: ErrTypeStream, Message: "stream interrupted", Cause: err}
		}
		atEOF := err != nil

		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			if atEOF {
				s.done = true
				return StreamChunk{}, io.EOF
			}
			continue
		}

		var response ChatResponse
		if jsonErr := json.Unmarshal(line, &response); jsonErr != nil {
			// Skip malformed lines
			if atEOF {
				s.done = true
				return StreamChunk{}, io.EOF
			}
			continue
		}
		if response.Error != "" {
			s.done = true
			return StreamChunk{}, &ClientError{Type: ErrTypeStream, Message: response.Error}
		}

		if response.Model != "" {
			s.model = response.Model
		}
		s.accumulator.WriteString(response.Message.Content)

		chunk := StreamChunk{
			Content: response.Message.Content,
			Done:    response.Done,
			Model:   s.model,
		}
		if response.Done {
			chunk.DoneReason = response.DoneReason
			chunk.TotalDuration = time.Duration(response.TotalDuration)
			chunk.EvalDuration = time.Duration(response.EvalDuration)
			chunk.PromptTokens = response.PromptEvalCount
			chunk.CompletionTokens = response.EvalCount
		}
		if response.Done || atEOF {
			s.done = true
		}
		return chunk, nil
	}
}

// Accumulated returns all content read so far.
func (s *StreamReader) Accumulated() string {
	return s.accumulator.String()
}

// Model returns the model name reported by the stream.
func (s *StreamReader) Model() string {
	return s.model
}

// =============================================================================
// FRAGMENT STREAM
// =============================================================================

// FragmentStream yields the text fragments of a streaming chat reply.
// Empty content lines are skipped, so every fragment is non-empty.
type FragmentStream struct {
	body   io.ReadCloser
	reader *StreamReader
	final  StreamChunk
}

// NewFragmentStream wraps a streaming response body.
func NewFragmentStream(body io.ReadCloser) *FragmentStream {
	return &FragmentStream{body: body, reader: NewStreamReader(body)}
}

// Next returns the next fragment, or io.EOF when the reply is complete.
func (f *FragmentStream) Next(ctx context.Context) (string, error) {
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		chunk, err := f.reader.ReadChunk()
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return "", ctxErr
			}
			return "", err
		}
		if chunk.Done {
			f.final = chunk
		}
		if chunk.Content != "" {
			return chunk.Content, nil
		}
	}
}

// Final returns the statistics chunk once the stream has completed.
func (f *FragmentStream) Final() StreamChunk {
	return f.final
}

// Text returns everything streamed so far.
func (f *FragmentStream) Text() string {
	return f.reader.Accumulated()
}

// Close releases the response body.
func (f *FragmentStream) Close() error {
	return f.body.Close()
}
