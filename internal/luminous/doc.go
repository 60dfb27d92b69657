// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package luminous provides the HTTP client for the Luminous chat server.
//
// The server exposes an OpenAI-compatible streaming completions endpoint
// plus a small chat persistence API:
//
//	POST   /v1/chat/completions      streaming completion (text/event-stream)
//	GET    /v1/models                model list
//	GET    /api/chats                chat list, newest first
//	DELETE /api/chats                delete every chat
//	GET    /api/chats/{id}           chat with messages
//	PATCH  /api/chats/{id}           rename / record last model
//	DELETE /api/chats/{id}           delete one chat
//	POST   /api/chats/save           replace a chat and its messages
//	POST   /api/chats/{id}/stop      cancel a running turn server-side
//	GET    /api/chats/{id}/events    re-attach to a running turn
//	POST   /api/memory/reset         clear long-term memory
//
// Streaming calls return an *sse.Reader that the caller must Close.
//
// Example:
//
//	client := luminous.NewClientWithConfig(&luminous.ClientConfig{BaseURL: url})
//	stream, err := client.StreamCompletion(ctx, req)
//	if err != nil {
//	    return err
//	}
//	defer stream.Close()
//	err = stream.Each(func(f sse.Frame) error { ... })
package luminous
