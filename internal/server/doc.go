// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package server implements a replay backend that speaks the Luminous wire
// protocol.
//
// The server answers completions from a Script instead of a model: each
// response is a list of steps (reasoning, content, activity events,
// redaction, errors, usage, or a hold that blocks until the stream is
// stopped). It persists chats the way the real backend does, runs deep
// research turns as background tasks that can be re-attached through the
// events endpoint, and records what clients sent so tests can assert on it.
//
// Endpoints:
//   - POST   /v1/chat/completions   - Scripted SSE completion
//   - GET    /v1/models             - Configured models
//   - GET    /api/chats             - Chat list, newest first
//   - DELETE /api/chats             - Delete every chat
//   - POST   /api/chats/save        - Replace a chat and its messages
//   - GET    /api/chats/{id}        - One chat with messages
//   - PATCH  /api/chats/{id}        - Rename or set the last model
//   - DELETE /api/chats/{id}        - Delete one chat
//   - GET    /api/chats/{id}/events - Re-attach to a running research task
//   - POST   /api/chats/{id}/stop   - Stop generation and drop the last turn
//   - POST   /api/memory/reset      - Accepted and ignored
//   - GET    /health                - Health check
//
// Scripts are TOML files:
//
//	[[response]]
//	match = "hello"
//
//	[[response.steps]]
//	reasoning = "<think>greeting</think>"
//
//	[[response.steps]]
//	content = "Hi there, you said {{input}}"
package server
