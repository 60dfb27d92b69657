// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package turn

import (
	"github.com/jeranaias/luminous-tui/internal/luminous"
	"github.com/jeranaias/luminous-tui/internal/model"
	"github.com/jeranaias/luminous-tui/internal/sse"
)

// TurnID identifies one stream. Events carrying a stale id are ignored.
type TurnID uint64

// =============================================================================
// EVENTS
// =============================================================================

// Event is an input to Controller.Dispatch.
type Event interface {
	isEvent()
}

// Submit sends the text in the input box, optionally with an image data URL.
type Submit struct {
	Text  string
	Image string
}

// ApprovePlan approves the pending research plan. An empty Plan approves the
// plan as proposed; a non-empty one carries the user's edits.
type ApprovePlan struct {
	Plan string
}

// Resume re-attaches to a turn still running on the server.
type Resume struct {
	ChatID string
}

// Stop aborts the running turn.
type Stop struct{}

// Edit removes a user message and everything after it and hands its text
// back to the input box.
type Edit struct {
	ID model.MessageID
}

// Delete removes a message and everything after it.
type Delete struct {
	ID model.MessageID
}

// Retry regenerates the answer at ID. A non-empty Model switches the
// selected model first.
type Retry struct {
	ID    model.MessageID
	Model model.ModelInfo
}

// FrameReceived delivers one stream frame.
type FrameReceived struct {
	Turn  TurnID
	Frame sse.Frame
}

// StreamEnded reports the end of a stream. Err is nil after [DONE] or a
// clean end of body.
type StreamEnded struct {
	Turn TurnID
	Err  error
}

// NewChat clears the view. Temporary chats are never persisted.
type NewChat struct {
	Temporary bool
}

// ChatLoaded replaces the view with a stored chat.
type ChatLoaded struct {
	Chat *model.Chat
}

// SetModel selects the model for the next turn.
type SetModel struct {
	Model model.ModelInfo
}

// Mode is a toggle of the chat view.
type Mode int

const (
	ModeMemory Mode = iota
	ModeDeepResearch
	ModeTemporary
)

// SetMode switches a toggle.
type SetMode struct {
	Mode Mode
	On   bool
}

// SetSearchDepth selects "regular" or "deep" research.
type SetSearchDepth struct {
	Depth string
}

// SetVisionModel selects the model research uses to read images.
type SetVisionModel struct {
	Model string
}

// Renamed records a new title for the current chat.
type Renamed struct {
	Title string
}

func (Submit) isEvent()         {}
func (ApprovePlan) isEvent()    {}
func (Resume) isEvent()         {}
func (Stop) isEvent()           {}
func (Edit) isEvent()           {}
func (Delete) isEvent()         {}
func (Retry) isEvent()          {}
func (FrameReceived) isEvent()  {}
func (StreamEnded) isEvent()    {}
func (NewChat) isEvent()        {}
func (ChatLoaded) isEvent()     {}
func (SetModel) isEvent()       {}
func (SetMode) isEvent()        {}
func (SetSearchDepth) isEvent() {}
func (SetVisionModel) isEvent() {}
func (Renamed) isEvent()        {}

// =============================================================================
// EFFECTS
// =============================================================================

// Effect is an output of Controller.Dispatch to be performed by a Runner.
type Effect interface {
	isEffect()
}

// StartStream opens a stream for Turn: a completion when Request is set,
// otherwise the event stream of ResumeChatID.
type StartStream struct {
	Turn         TurnID
	Request      *luminous.CompletionRequest
	ResumeChatID string

	// Prior, when set, is saved before the request is sent. The server
	// appends the trailing user message of the request itself.
	Prior *model.Chat
}

// CancelStream cancels the stream of Turn.
type CancelStream struct {
	Turn TurnID
}

// NotifyStop tells the server to abort and roll back the turn of ChatID.
type NotifyStop struct {
	ChatID string
}

// SyncChat reconciles the stored chat after a change. Save is true when the
// server does not already have the transcript (edits, deletes, local
// storage).
type SyncChat struct {
	Chat model.Chat
	Save bool
}

// RestoreInput puts text and an image back into the input box.
type RestoreInput struct {
	Text  string
	Image string
}

// Notice is a message for the user that is not part of the transcript.
type Notice struct {
	Text string
}

func (StartStream) isEffect()  {}
func (CancelStream) isEffect() {}
func (NotifyStop) isEffect()   {}
func (SyncChat) isEffect()     {}
func (RestoreInput) isEffect() {}
func (Notice) isEffect()       {}
