// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package claude

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"
)

// ErrNoAPIKey is returned when a client is created without credentials.
var ErrNoAPIKey = errors.New("claude: no API key configured")

// DefaultMaxTokens bounds a single reply.
const DefaultMaxTokens = 4096

// Config holds the client settings.
type Config struct {
	APIKey    string
	Model     string // empty selects the latest Sonnet
	BaseURL   string // empty uses the public endpoint
	MaxTokens int64
	// MaxRetries is passed to the SDK; negative keeps its default.
	MaxRetries int
}

// Client wraps the Anthropic SDK client.
type Client struct {
	client    *anthropic.Client
	model     string
	maxTokens int64
}

// NewClient creates a client from cfg.
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, ErrNoAPIKey
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.MaxRetries >= 0 {
		opts = append(opts, option.WithMaxRetries(cfg.MaxRetries))
	}

	model := cfg.Model
	if model == "" {
		model = string(anthropic.ModelClaude3_5SonnetLatest)
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}

	return &Client{
		client:    anthropic.NewClient(opts...),
		model:     model,
		maxTokens: maxTokens,
	}, nil
}

// Model returns the model the client requests.
func (c *Client) Model() string {
	return c.model
}

// Stream starts a streaming reply to a single user turn.
func (c *Client) Stream(ctx context.Context, system, user string) *FragmentStream {
	stream := c.client.Messages.NewStreaming(ctx, anthropic.MessageNewParams{
		Model:     anthropic.F(anthropic.Model(c.model)),
		MaxTokens: anthropic.F(c.maxTokens),
		System: anthropic.F([]anthropic.TextBlockParam{
			anthropic.NewTextBlock(system),
		}),
		Messages: anthropic.F([]anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(user)),
		}),
	})
	return &FragmentStream{stream: stream}
}

// =============================================================================
// FRAGMENT STREAM
// =============================================================================

// FragmentStream yields the text deltas of a streaming reply.
type FragmentStream struct {
	stream *ssestream.Stream[anthropic.MessageStreamEvent]
	done   bool
}

// Next returns the next text fragment, or io.EOF at the end of the reply.
func (f *FragmentStream) Next(ctx context.Context) (string, error) {
	if f.done {
		return "", io.EOF
	}
	for f.stream.Next() {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		event := f.stream.Current()
		switch delta := event.Delta.(type) {
		case anthropic.ContentBlockDeltaEventDelta:
			if delta.Text != "" {
				return delta.Text, nil
			}
		}
	}
	f.done = true

	if err := f.stream.Err(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", fmt.Errorf("claude stream: %w", err)
	}
	return "", io.EOF
}

// Close releases the underlying connection.
func (f *FragmentStream) Close() error {
	return f.stream.Close()
}
