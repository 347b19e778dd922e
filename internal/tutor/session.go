// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tutor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/jeranaias/pagetutor/internal/bus"
	"github.com/jeranaias/pagetutor/internal/command"
	"github.com/jeranaias/pagetutor/internal/decoder"
	"github.com/jeranaias/pagetutor/internal/util"
)

// Reply is the outcome of an exchange.
type Reply struct {
	Raw      string            // every fragment, concatenated
	Visible  string            // Raw without command regions, trimmed
	Commands []command.Command // in dispatch order
	Dropped  int               // command regions discarded as invalid
}

// ExchangeError reports a transport failure part way through a reply.
// Commands already dispatched stay applied.
type ExchangeError struct {
	Partial Reply
	Err     error
}

func (e *ExchangeError) Error() string {
	return fmt.Sprintf("exchange failed after %d bytes: %v", len(e.Partial.Raw), e.Err)
}

func (e *ExchangeError) Unwrap() error {
	return e.Err
}

// Sink receives displayable prose as it streams.
type Sink func(visible string)

// Option configures a Session.
type Option func(*Session)

// WithRateLimit paces outbound requests to perMinute. Zero disables pacing.
func WithRateLimit(perMinute int) Option {
	return func(s *Session) {
		if perMinute > 0 {
			s.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), 1)
		} else {
			s.limiter = nil
		}
	}
}

// WithLogger sets the diagnostics logger.
func WithLogger(l *log.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// WithMaxPayload sets the decoder's unterminated payload limit.
func WithMaxPayload(n int) Option {
	return func(s *Session) { s.maxPayload = n }
}

// =============================================================================
// SESSION
// =============================================================================

// Session runs exchanges against one bus. Exchanges on the same session
// may run concurrently; each uses its own decoder.
type Session struct {
	bus        *bus.Bus
	limiter    *rate.Limiter
	logger     *log.Logger
	maxPayload int
}

// NewSession creates a session publishing on b.
func NewSession(b *bus.Bus, opts ...Option) *Session {
	s := &Session{bus: b, logger: log.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open waits for the rate limiter and opens a source from p for prompt.
func (s *Session) Open(ctx context.Context, p Provider, prompt Prompt) (Source, error) {
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit: %w", err)
		}
	}

	src, err := p.Open(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", p.Name(), err)
	}
	return src, nil
}

// Ask opens a source from p for prompt and runs the exchange.
func (s *Session) Ask(ctx context.Context, p Provider, prompt Prompt, sink Sink) (Reply, error) {
	src, err := s.Open(ctx, p, prompt)
	if err != nil {
		return Reply{}, err
	}
	defer src.Close()

	return s.Exchange(ctx, src, sink)
}

// Exchange drains src through a fresh decoder. Each decoded command is
// published before the next fragment is read, and prose goes to sink
// (which may be nil). A source error ends the exchange with an
// *ExchangeError carrying what arrived before it; any half-received
// command is discarded.
func (s *Session) Exchange(ctx context.Context, src Source, sink Sink) (Reply, error) {
	dec := decoder.New()
	if s.maxPayload > 0 {
		dec.SetMaxPayload(s.maxPayload)
	}
	dec.OnDrop(func(payload string, err error) {
		s.logger.Printf("CMD_DROPPED | reason=%v payload=%q", err, util.SafeSubstring(payload, 0, 120))
	})

	var (
		raw     strings.Builder
		shown   strings.Builder
		visible decoder.VisibleText
		reply   Reply
	)
	emit := func(text string) {
		shown.WriteString(text)
		if sink != nil && text != "" {
			sink(text)
		}
	}

	for {
		fragment, err := src.Next(ctx)
		if err != nil {
			emit(visible.Flush())
			reply.Raw = raw.String()
			reply.Visible = strings.TrimSpace(shown.String())
			reply.Dropped = dec.Drops()

			if errors.Is(err, io.EOF) {
				if pending := dec.Pending(); strings.Contains(pending, command.OpenTag) {
					s.logger.Printf("CMD_DROPPED | reason=unterminated payload=%q", util.SafeSubstring(pending, 0, 120))
				}
				return reply, nil
			}
			dec.Reset()
			s.logger.Printf("EXCHANGE_FAILED | bytes=%d err=%v", raw.Len(), err)
			return reply, &ExchangeError{Partial: reply, Err: err}
		}

		raw.WriteString(fragment)
		emit(visible.Write(fragment))

		for _, cmd := range dec.Feed(fragment) {
			reply.Commands = append(reply.Commands, cmd)
			if s.bus == nil {
				continue
			}
			if d := s.bus.Publish(cmd); !d.OK() {
				for _, f := range d.Failures {
					s.logger.Printf("HANDLER_FAILED | action=%s token=%s err=%v", cmd.Action(), f.Token, f.Err)
				}
			}
		}
	}
}
