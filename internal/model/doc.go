// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for chats and messages.
//
// # Key Types
//
//   - Message: one transcript entry with a role, plain or multimodal content
//     and a client-side MessageID
//   - Content: a plain string or an ordered list of ContentParts, encoded on
//     the wire exactly as the chat completions API expects
//   - Transcript: the ordered messages of the open chat, addressed by id
//   - Chat, ChatMeta: chat records exchanged with the chat store
//   - ModelInfo: an entry of the server's model list
//
// MessageIDs are assigned by the Transcript, grow monotonically and are
// never reused, so views keyed by id stay valid across truncation.
//
// # Usage
//
//	tr := model.NewTranscript(chat.Messages)
//	id := tr.Append(model.NewUserMessage("hello", ""))
//	removed := tr.TruncateAt(id) // drops the message and everything after it
package model
