// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package decoder

import (
	"strings"

	"github.com/jeranaias/pagetutor/internal/command"
)

// Remove deletes every complete <cmd>...</cmd> region from text. An
// unterminated trailing region is left in place.
func Remove(text string) string {
	var b strings.Builder
	for {
		i := strings.Index(text, command.OpenTag)
		if i < 0 {
			break
		}
		j := strings.Index(text[i+len(command.OpenTag):], command.CloseTag)
		if j < 0 {
			break
		}
		b.WriteString(text[:i])
		text = text[i+len(command.OpenTag)+j+len(command.CloseTag):]
	}
	b.WriteString(text)
	return b.String()
}

// Strip returns the human-readable reply: text without command regions,
// trimmed. Use it before display or speech synthesis.
func Strip(text string) string {
	return strings.TrimSpace(Remove(text))
}

// =============================================================================
// VISIBLE TEXT
// =============================================================================

// VisibleText splits a live stream into prose that is safe to show now.
// Text that could be the start of a command tag is withheld until the next
// fragment settles it, so raw command JSON never reaches the screen.
type VisibleText struct {
	pending string
	inCmd   bool
}

// Write consumes a fragment and returns the prose it releases.
func (v *VisibleText) Write(fragment string) string {
	v.pending += fragment

	var out strings.Builder
	for {
		if v.inCmd {
			j := strings.Index(v.pending, command.CloseTag)
			if j < 0 {
				v.pending = v.pending[len(v.pending)-partialSuffix(v.pending, command.CloseTag):]
				return out.String()
			}
			v.pending = v.pending[j+len(command.CloseTag):]
			v.inCmd = false
			continue
		}

		i := strings.Index(v.pending, command.OpenTag)
		if i < 0 {
			keep := partialSuffix(v.pending, command.OpenTag)
			out.WriteString(v.pending[:len(v.pending)-keep])
			v.pending = v.pending[len(v.pending)-keep:]
			return out.String()
		}
		out.WriteString(v.pending[:i])
		v.pending = v.pending[i+len(command.OpenTag):]
		v.inCmd = true
	}
}

// Flush returns withheld prose at end of stream and resets the splitter.
// An unterminated command region is dropped.
func (v *VisibleText) Flush() string {
	var rest string
	if !v.inCmd {
		rest = v.pending
	}
	v.pending = ""
	v.inCmd = false
	return rest
}
