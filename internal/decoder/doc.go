// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package decoder extracts viewer commands from a live text stream.
//
// An assistant reply arrives as fragments of arbitrary size, and a
// <cmd>...</cmd> region may be split across any number of them. Decoder
// buffers undecoded text between Feed calls so command boundaries are
// independent of fragment boundaries.
//
// # Key Types
//
//   - Decoder: per-stream buffer that turns fragments into commands
//   - VisibleText: per-stream splitter that yields only human-readable prose
//
// # Usage
//
//	dec := decoder.New()
//	for {
//	    frag, err := src.Next(ctx)
//	    if err == io.EOF {
//	        break
//	    }
//	    for _, cmd := range dec.Feed(frag) {
//	        bus.Publish(cmd)
//	    }
//	}
//
// Malformed or unknown payloads are dropped and never stall decoding. Use
// OnDrop to observe them.
package decoder
