// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package chat provides the chat view of the luminous TUI.

The view is a Bubble Tea model wrapped around a turn.Controller. Key presses
and slash commands become controller events; the effects the controller
returns are handed to a turn.Runner, whose stream goroutines feed events back
through a channel that the model drains one message at a time.

# Key Components

## Model (model.go)

Holds the controller, the runner and the bubbles widgets:
  - textarea for the input box (alt+enter inserts a newline)
  - viewport for the transcript
  - spinner for the live thinking and research indicators
  - help for the short key summary in the status bar

## Streaming (streaming.go)

The event pump between the runner and the Bubble Tea loop, and the repaint
throttle that caps redraws while frames arrive.

## Commands (commands.go)

Slash commands: /new, /chats, /load, /model, /research, /approve, /export,
/copy and the rest listed by /help.

## View Rendering (view.go)

Header with the chat title and mode badges, the transcript, the chat and
model pickers, the input box and the status bar.

# Usage

	m := chat.New(chat.Options{Config: cfg, Backend: client, Store: client})
	p := tea.NewProgram(m, tea.WithAltScreen())
	_, err := p.Run()
	m.Close()
*/
package chat
