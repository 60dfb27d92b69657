// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package turn owns the conversation state of one chat view.

The Controller is a reducer: every user action and every stream callback is
an Event passed to Dispatch, which mutates the transcript and row list and
returns the Effects (HTTP calls) the caller must perform. The Controller does
no I/O itself, so its transitions can be tested without a server.

	Idle --Submit/ApprovePlan/Retry/Resume--> Generating
	Generating --StreamEnded/Stop--> Idle

A Runner performs effects: each stream runs in its own goroutine and reports
frames back as FrameReceived events, in arrival order, through a send
function (tea.Program.Send in the TUI). RunSync drives both from one
goroutine for the headless CLI and tests.

Every transcript message has exactly one row with the same id. Rows without
a transcript entry (the in-flight placeholder, inline errors, the "stopped"
marker) are ephemeral.
*/
package turn
