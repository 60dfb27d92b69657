// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small helpers shared by the luminous packages.
//
// # Key Functions
//
// Text:
//   - TruncateRunes: UTF-8 safe truncation with ellipsis
//   - TruncateWidth: display-width aware truncation for terminal columns
//   - ChatTitle: derives a chat title from the first user message
//
// Files:
//   - AtomicWriteFile: crash-safe file writing with fsync
//
// # Usage
//
//	title := util.ChatTitle(input)            // "New Conversation" when empty
//	cell := util.TruncateWidth(title, 30)     // fits a 30-column list cell
//	err := util.AtomicWriteFile(path, data, 0600)
package util
