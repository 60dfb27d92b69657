// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"github.com/jeranaias/luminous-tui/internal/config"
	"github.com/jeranaias/luminous-tui/internal/model"
	"github.com/jeranaias/luminous-tui/internal/turn"
)

// =============================================================================
// STREAMING MESSAGES
// =============================================================================

// turnEventMsg carries an event a stream goroutine produced.
type turnEventMsg struct {
	Event turn.Event
}

// repaintMsg is the tick of the repaint throttle.
type repaintMsg struct{}

// =============================================================================
// BACKEND MESSAGES
// =============================================================================

// chatsMsg delivers the chat list.
type chatsMsg struct {
	Chats []model.ChatMeta
	Err   error
}

// chatMsg delivers a chat opened from the list or by /load.
type chatMsg struct {
	Chat *model.Chat
	Err  error
}

// modelsMsg delivers the models offered by the server.
type modelsMsg struct {
	Models []model.ModelInfo
	Err    error

	// Open shows the model picker.
	Open bool
}

// doneMsg reports a finished background call with a status line.
type doneMsg struct {
	Status string
	Err    error

	// Refresh reloads the chat list afterwards.
	Refresh bool
}

// syncedMsg is sent when the runner synced a chat, so the list can be
// refreshed while it is open.
type syncedMsg struct {
	Chat model.Chat
}

// =============================================================================
// CONFIG MESSAGES
// =============================================================================

// configMsg delivers a reloaded config file.
type configMsg struct {
	Config *config.Config
	Err    error
}
