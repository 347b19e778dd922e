// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package decoder

import (
	"errors"
	"strings"

	"github.com/jeranaias/pagetutor/internal/command"
)

// DefaultMaxPayload bounds how much text an unterminated <cmd> region may
// hold before it is abandoned.
const DefaultMaxPayload = 64 * 1024

// ErrPayloadTooLarge is reported to the drop handler when an open tag never
// closes within the payload limit.
var ErrPayloadTooLarge = errors.New("command payload exceeds limit")

// DropFunc observes a dropped command region.
type DropFunc func(payload string, err error)

// =============================================================================
// DECODER
// =============================================================================

// Decoder holds the pending buffer for one stream. The zero value is an
// empty decoder with the default payload limit. A Decoder is not safe for concurrent use: Feed is meant
// to be called from the single goroutine reading the stream.
type Decoder struct {
	buf string

	// cursor is the first byte of buf not yet scanned for the tag currently
	// being looked for.
	cursor int

	// open is the index of an unmatched open tag when hasOpen is set.
	open    int
	hasOpen bool

	maxPayload int
	drops      int
	onDrop     DropFunc
}

// New creates a decoder with an empty buffer.
func New() *Decoder {
	return &Decoder{maxPayload: DefaultMaxPayload}
}

// SetMaxPayload changes the unterminated-payload limit. Values <= 0 restore
// the default.
func (d *Decoder) SetMaxPayload(n int) {
	if n <= 0 {
		n = DefaultMaxPayload
	}
	d.maxPayload = n
}

// limit is the payload cap in effect; zero means the default.
func (d *Decoder) limit() int {
	if d.maxPayload <= 0 {
		return DefaultMaxPayload
	}
	return d.maxPayload
}

// OnDrop registers a handler for dropped regions.
func (d *Decoder) OnDrop(fn DropFunc) {
	d.onDrop = fn
}

// Feed appends a fragment and returns every command whose closing tag is now
// in the buffer, in stream order. It never fails: invalid regions are
// dropped and scanning continues after them.
func (d *Decoder) Feed(fragment string) []command.Command {
	d.buf += fragment

	var out []command.Command
	for {
		if !d.hasOpen {
			i := strings.Index(d.buf[d.cursor:], command.OpenTag)
			if i < 0 {
				d.discard(len(d.buf) - partialSuffix(d.buf, command.OpenTag))
				d.cursor = 0
				return out
			}
			d.open = d.cursor + i
			d.hasOpen = true
			d.cursor = d.open + len(command.OpenTag)
		}

		j := strings.Index(d.buf[d.cursor:], command.CloseTag)
		if j < 0 {
			bodyStart := d.open + len(command.OpenTag)
			if len(d.buf)-bodyStart > d.limit() {
				d.drop(d.buf[bodyStart:], ErrPayloadTooLarge)
				d.cursor = bodyStart
				d.hasOpen = false
				continue
			}
			// A close tag split across fragments can begin at most
			// len(CloseTag)-1 bytes before the end.
			d.cursor = max(bodyStart, len(d.buf)-len(command.CloseTag)+1)
			d.discard(d.open)
			return out
		}

		end := d.cursor + j
		payload := d.buf[d.open+len(command.OpenTag) : end]
		d.cursor = end + len(command.CloseTag)
		d.hasOpen = false

		cmd, err := command.ParseString(payload)
		if err != nil {
			d.drop(payload, err)
			continue
		}
		out = append(out, cmd)
	}
}

// Reset discards any buffered text. Call it when a stream ends or fails.
func (d *Decoder) Reset() {
	d.buf = ""
	d.cursor = 0
	d.hasOpen = false
	d.drops = 0
}

// Pending returns the buffered text that has not yet resolved into a
// command or been discarded.
func (d *Decoder) Pending() string {
	return d.buf
}

// Drops returns the number of regions dropped since the last Reset.
func (d *Decoder) Drops() int {
	return d.drops
}

// discard removes the first n bytes of the buffer.
func (d *Decoder) discard(n int) {
	if n <= 0 {
		return
	}
	d.buf = d.buf[n:]
	d.cursor -= n
	if d.cursor < 0 {
		d.cursor = 0
	}
	if d.hasOpen {
		d.open -= n
	}
}

func (d *Decoder) drop(payload string, err error) {
	d.drops++
	if d.onDrop != nil {
		d.onDrop(payload, err)
	}
}

// partialSuffix returns the length of the longest proper prefix of tag that
// s ends with.
func partialSuffix(s, tag string) int {
	n := min(len(tag)-1, len(s))
	for k := n; k > 0; k-- {
		if strings.HasSuffix(s, tag[:k]) {
			return k
		}
	}
	return 0
}
