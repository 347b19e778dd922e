// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package bus

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/jeranaias/pagetutor/internal/command"
)

// Handler receives published commands.
type Handler func(cmd command.Command)

// Token identifies a subscription. Tokens are never reused.
type Token string

// PanicFunc observes a handler that panicked during delivery.
type PanicFunc func(tok Token, cmd command.Command, recovered any)

// HandlerFailure records one handler that panicked during a Publish.
type HandlerFailure struct {
	Token Token
	Err   error
}

// Delivery summarizes a single Publish.
type Delivery struct {
	Delivered int
	Failures  []HandlerFailure
}

// OK reports whether every handler returned normally.
func (d Delivery) OK() bool {
	return len(d.Failures) == 0
}

type subscription struct {
	token   Token
	handler Handler
}

// =============================================================================
// BUS
// =============================================================================

// Bus is an ordered subscriber registry. It is safe for concurrent use; the
// lock guards only the registry, so handlers may subscribe, unsubscribe, or
// publish from inside a delivery.
type Bus struct {
	mu      sync.RWMutex
	subs    []subscription
	onPanic PanicFunc
}

// New creates an empty bus.
func New() *Bus {
	return &Bus{}
}

// Subscribe registers h after all existing handlers and returns the token
// that removes it.
func (b *Bus) Subscribe(h Handler) Token {
	if h == nil {
		panic("bus: nil handler")
	}
	tok := Token(uuid.NewString())

	b.mu.Lock()
	// Copy-on-write so an in-flight Publish keeps iterating its snapshot.
	subs := make([]subscription, len(b.subs), len(b.subs)+1)
	copy(subs, b.subs)
	b.subs = append(subs, subscription{token: tok, handler: h})
	b.mu.Unlock()

	return tok
}

// Unsubscribe removes the handler registered under tok. It returns false if
// the token is unknown or already removed.
func (b *Bus) Unsubscribe(tok Token) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, s := range b.subs {
		if s.token != tok {
			continue
		}
		subs := make([]subscription, 0, len(b.subs)-1)
		subs = append(subs, b.subs[:i]...)
		subs = append(subs, b.subs[i+1:]...)
		b.subs = subs
		return true
	}
	return false
}

// OnPanic registers a hook for handler panics, typically a logger.
func (b *Bus) OnPanic(fn PanicFunc) {
	b.mu.Lock()
	b.onPanic = fn
	b.mu.Unlock()
}

// Publish delivers cmd to every handler registered when the call began, in
// registration order. Handler panics are recovered and reported in the
// returned Delivery.
func (b *Bus) Publish(cmd command.Command) Delivery {
	b.mu.RLock()
	subs := b.subs
	onPanic := b.onPanic
	b.mu.RUnlock()

	var d Delivery
	for _, s := range subs {
		if err := deliver(s.handler, cmd); err != nil {
			d.Failures = append(d.Failures, HandlerFailure{Token: s.token, Err: err})
			if onPanic != nil {
				onPanic(s.token, cmd, err.(*PanicError).Value)
			}
			continue
		}
		d.Delivered++
	}
	return d
}

// Len returns the number of registered handlers.
func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// PanicError wraps a value recovered from a handler.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("handler panicked: %v", e.Value)
}

func deliver(h Handler, cmd command.Command) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r}
		}
	}()
	h(cmd)
	return nil
}
