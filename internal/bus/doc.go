// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package bus fans viewer commands out to every registered subscriber.
//
// Commands reach the bus from two places: the stream decoder, while an
// assistant reply is arriving, and UI actions that issue commands directly.
// Publish delivers synchronously, in registration order, and a panicking
// handler never prevents delivery to the handlers after it.
//
// The bus is a fan-out, not a queue: a subscriber registered after Publish
// returns never sees that command.
//
// # Usage
//
//	b := bus.New()
//	tok := b.Subscribe(func(cmd command.Command) {
//	    viewer.Handle(cmd)
//	})
//	defer b.Unsubscribe(tok)
//
//	b.Publish(command.GoToPage{Page: 3})
package bus
