// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"time"

	"github.com/jeranaias/pagetutor/internal/tutor"
)

// =============================================================================
// EXCHANGE MESSAGES
// =============================================================================

// ExchangeDoneMsg ends an exchange. Err is set on provider, transport or
// cancellation failures; Reply holds whatever arrived before it.
type ExchangeDoneMsg struct {
	ID    int
	Reply tutor.Reply
	Err   error
}

// StreamTickMsg drives batched rendering while a reply streams.
type StreamTickMsg struct {
	Time time.Time
}
