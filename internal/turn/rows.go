// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package turn

import (
	"github.com/jeranaias/luminous-tui/internal/model"
	"github.com/jeranaias/luminous-tui/internal/render"
)

// RowKind is what a row displays.
type RowKind int

const (
	RowUser RowKind = iota
	RowAssistant
	RowStopped
	RowNotice
)

// Row is the view projection of one transcript message or one ephemeral
// indicator.
type Row struct {
	// ID is the transcript id; zero for ephemeral rows.
	ID   model.MessageID
	Kind RowKind

	// Hidden rows are not drawn (the synthetic plan approval turn).
	Hidden    bool
	Ephemeral bool

	// Message is set for user rows.
	Message model.Message

	// View is set for assistant rows.
	View *render.MessageView

	// Text is set for notice rows.
	Text string
}

// rows is the ordered row list of a chat view.
type rows []*Row

// indexOf returns the position of the row with id, or -1.
func (r rows) indexOf(id model.MessageID) int {
	if id == 0 {
		return -1
	}
	for i, row := range r {
		if row.ID == id {
			return i
		}
	}
	return -1
}

// ids returns the ids of non-ephemeral rows in order.
func (r rows) ids() []model.MessageID {
	out := make([]model.MessageID, 0, len(r))
	for _, row := range r {
		if !row.Ephemeral {
			out = append(out, row.ID)
		}
	}
	return out
}
