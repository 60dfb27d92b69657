// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package export writes chats to files.
//
// Assistant messages are split the way the chat view shows them: thoughts,
// research activity, the research plan and the answer. The synthetic plan
// approval turn is folded into the plan it approves.
//
// # Supported Formats
//
//   - Markdown: Human-readable, thoughts in collapsible blocks
//   - JSON: Machine-readable with the split message parts
//   - HTML: Single self-contained page
//
// # Usage
//
//	path, err := export.Export(chat, "md", export.DefaultOptions())
package export
