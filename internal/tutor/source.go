// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tutor

import (
	"context"
	"io"
	"unicode/utf8"

	"github.com/jeranaias/pagetutor/internal/claude"
	"github.com/jeranaias/pagetutor/internal/ollama"
)

// Source is a pull-based iterator over reply fragments. Next returns io.EOF
// once the reply is complete.
type Source interface {
	Next(ctx context.Context) (string, error)
	Close() error
}

// Provider opens a Source for a prompt.
type Provider interface {
	Open(ctx context.Context, p Prompt) (Source, error)
	Name() string
}

// =============================================================================
// STATIC SOURCE
// =============================================================================

// StaticSource replays fixed fragments. Err, when set, is returned after the
// last fragment instead of io.EOF.
type StaticSource struct {
	fragments []string
	next      int
	Err       error
}

// NewStaticSource creates a source over fragments.
func NewStaticSource(fragments ...string) *StaticSource {
	return &StaticSource{fragments: fragments}
}

// Next implements Source.
func (s *StaticSource) Next(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if s.next >= len(s.fragments) {
		if s.Err != nil {
			return "", s.Err
		}
		return "", io.EOF
	}
	f := s.fragments[s.next]
	s.next++
	return f, nil
}

// Close implements Source.
func (s *StaticSource) Close() error { return nil }

// Tee returns a Source that passes every fragment of src to fn before
// returning it.
func Tee(src Source, fn func(fragment string)) Source {
	return &teeSource{Source: src, fn: fn}
}

type teeSource struct {
	Source
	fn func(string)
}

func (t *teeSource) Next(ctx context.Context) (string, error) {
	f, err := t.Source.Next(ctx)
	if err == nil {
		t.fn(f)
	}
	return f, err
}

// Chunk splits text into fragments of at most size bytes without breaking
// a UTF-8 sequence.
func Chunk(text string, size int) []string {
	if size <= 0 {
		size = 1
	}
	var out []string
	for len(text) > 0 {
		n := size
		if n >= len(text) {
			n = len(text)
		} else {
			for n > 0 && !utf8.RuneStart(text[n]) {
				n--
			}
			if n == 0 {
				_, n = utf8.DecodeRuneInString(text)
			}
		}
		out = append(out, text[:n])
		text = text[n:]
	}
	return out
}

// StaticProvider answers every prompt with the same fragments.
type StaticProvider struct {
	Fragments []string
}

// Open implements Provider.
func (p StaticProvider) Open(ctx context.Context, _ Prompt) (Source, error) {
	return NewStaticSource(p.Fragments...), nil
}

// Name implements Provider.
func (StaticProvider) Name() string { return "static" }

// =============================================================================
// MODEL PROVIDERS
// =============================================================================

// OllamaProvider streams replies from a local Ollama server.
type OllamaProvider struct {
	Client *ollama.Client
	Model  string
}

// Open implements Provider.
func (p OllamaProvider) Open(ctx context.Context, prompt Prompt) (Source, error) {
	stream, err := p.Client.ChatStream(ctx, p.Model, []ollama.Message{
		ollama.NewSystemMessage(prompt.System),
		ollama.NewUserMessage(prompt.User),
	})
	if err != nil {
		return nil, err
	}
	return stream, nil
}

// Name implements Provider.
func (p OllamaProvider) Name() string { return "ollama" }

// ClaudeProvider streams replies from the Anthropic API.
type ClaudeProvider struct {
	Client *claude.Client
}

// Open implements Provider.
func (p ClaudeProvider) Open(ctx context.Context, prompt Prompt) (Source, error) {
	return p.Client.Stream(ctx, prompt.System, prompt.User), nil
}

// Name implements Provider.
func (p ClaudeProvider) Name() string { return "claude" }
