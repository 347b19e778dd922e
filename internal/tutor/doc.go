// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package tutor runs one question-and-answer exchange with a language model.
//
// An exchange pulls text fragments from a Source, feeds them through a fresh
// stream decoder, publishes every decoded command on the bus, and hands the
// prose to a sink for display. Commands take effect while the reply is still
// streaming.
//
// # Usage
//
//	prompt, err := tutor.BuildPrompt(question, idx.Text())
//	if err != nil {
//	    return err
//	}
//	session := tutor.NewSession(b, tutor.WithRateLimit(20))
//	reply, err := session.Ask(ctx, provider, prompt, func(s string) {
//	    fmt.Print(s)
//	})
package tutor
