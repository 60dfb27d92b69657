// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package sse decodes the server-sent event stream of a chat completion.
//
// The server writes one JSON payload per frame:
//
//	data: {"choices":[{"delta":{"content":"Hi"}}]}
//
//	data: [DONE]
//
// Decoder turns arbitrarily chunked bytes into Frames and produces the same
// frames no matter where the chunk boundaries fall. Reader wraps a response
// body with context cancellation.
//
// Frame policy:
//   - a payload that is not valid JSON is dropped and the stream continues
//   - a payload with a non-empty "error" field ends the stream with a
//     *ProtocolError
//   - {"__redact__": true, "message": "..."} is a redaction frame: the caller
//     must discard everything accumulated for the current message
//   - "data: [DONE]" ends the stream
package sse
