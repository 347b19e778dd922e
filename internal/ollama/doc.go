// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ollama provides the HTTP client for a local Ollama server.
//
// The tutor consumes replies as a sequence of text fragments. ChatStream
// posts to /api/chat with streaming enabled and returns a FragmentStream,
// a pull-based iterator over the message.content pieces of the NDJSON
// response.
//
// # Usage
//
//	client := ollama.NewClient()
//	stream, err := client.ChatStream(ctx, "llama3.1:8b", messages)
//	if err != nil {
//	    return err
//	}
//	defer stream.Close()
//	for {
//	    fragment, err := stream.Next(ctx)
//	    if err == io.EOF {
//	        break
//	    }
//	    if err != nil {
//	        return err
//	    }
//	    fmt.Print(fragment)
//	}
package ollama
