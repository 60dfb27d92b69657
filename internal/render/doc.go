// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package render turns streamed assistant deltas into terminal output.

A MessageView follows one assistant row through its phases:

	Thinking  -> no deltas yet
	Reasoning -> reasoning text (or a research activity) present
	Content   -> non-whitespace answer content present

Phases only move forward within a turn. A redaction frame clears the
accumulated text and snaps the view back to Thinking (or Reasoning when the
activity feed already has entries) while a "correcting" indicator is shown.

Research activities arriving as standalone reasoning fragments are routed to
an ActivityFeed instead of the thought panel. Markdown is formatted through a
Formatter; GlamourFormatter is used in the terminal and PlainFormatter for
piped output and tests.
*/
package render
