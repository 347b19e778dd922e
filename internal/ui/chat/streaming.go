// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// =============================================================================
// STREAMING BUFFER
// =============================================================================

// StreamingBuffer batches visible prose between the exchange goroutine and
// the render loop. Text is released when batchSize fragments are pending
// or minFlush has passed since the last release.
type StreamingBuffer struct {
	mu        sync.Mutex
	buffer    strings.Builder
	fragments int
	lastFlush time.Time
	batchSize int
	minFlush  time.Duration
}

// NewStreamingBuffer creates a buffer releasing at most 30 times a second.
func NewStreamingBuffer() *StreamingBuffer {
	return &StreamingBuffer{
		batchSize: 15,
		minFlush:  33 * time.Millisecond,
		lastFlush: time.Now(),
	}
}

// Write adds a fragment. Safe for use from any goroutine.
func (sb *StreamingBuffer) Write(fragment string) {
	if fragment == "" {
		return
	}
	sb.mu.Lock()
	sb.buffer.WriteString(fragment)
	sb.fragments++
	sb.mu.Unlock()
}

// Flush returns pending text when a release is due.
func (sb *StreamingBuffer) Flush() (string, bool) {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	if sb.buffer.Len() == 0 {
		return "", false
	}
	if sb.fragments < sb.batchSize && time.Since(sb.lastFlush) < sb.minFlush {
		return "", false
	}
	return sb.takeLocked(), true
}

// ForceFlush returns all pending text regardless of timing.
func (sb *StreamingBuffer) ForceFlush() (string, bool) {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	if sb.buffer.Len() == 0 {
		return "", false
	}
	return sb.takeLocked(), true
}

// Reset discards pending text.
func (sb *StreamingBuffer) Reset() {
	sb.mu.Lock()
	sb.buffer.Reset()
	sb.fragments = 0
	sb.lastFlush = time.Now()
	sb.mu.Unlock()
}

// Pending returns the number of buffered fragments.
func (sb *StreamingBuffer) Pending() int {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	return sb.fragments
}

func (sb *StreamingBuffer) takeLocked() string {
	out := sb.buffer.String()
	sb.buffer.Reset()
	sb.fragments = 0
	sb.lastFlush = time.Now()
	return out
}

// streamTickCmd schedules the next render tick.
func streamTickCmd() tea.Cmd {
	return tea.Tick(33*time.Millisecond, func(t time.Time) tea.Msg {
		return StreamTickMsg{Time: t}
	})
}
