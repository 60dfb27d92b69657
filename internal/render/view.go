// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package render turns streamed assistant deltas into terminal output.
//
// This file implements MessageView, the state of one assistant row: the
// reasoning and content accumulators, the incremental content scanner, the
// activity feed, redaction and finalization.
package render

import (
	"strings"

	"github.com/jeranaias/luminous-tui/internal/content"
	"github.com/jeranaias/luminous-tui/internal/sse"
)

// Phase is the display state of an in-flight assistant message.
type Phase int

const (
	PhaseThinking Phase = iota
	PhaseReasoning
	PhaseContent
)

// String returns the phase name.
func (p Phase) String() string {
	switch p {
	case PhaseThinking:
		return "thinking"
	case PhaseReasoning:
		return "reasoning"
	case PhaseContent:
		return "content"
	default:
		return "unknown"
	}
}

const (
	// DefaultCorrectingText is shown after a redaction without a message.
	DefaultCorrectingText = "Fixing formatting..."

	// EmptyPlaceholder is shown when a finished turn produced nothing.
	EmptyPlaceholder = "[No content received]"
)

// Update reports what changed in a view after Apply.
type Update struct {
	PhaseChanged bool
	PlanAppeared bool
	Activity     bool
}

// MessageView accumulates the deltas of one assistant turn.
type MessageView struct {
	// Model is the model name shown under the answer.
	Model string

	phase     Phase
	reasoning strings.Builder // raw, persisted
	display   strings.Builder // reasoning minus routed activities
	content   strings.Builder
	scanner   *content.Scanner

	feed       *ActivityFeed
	plan       string
	planShown  bool
	approved   bool
	correcting string
	errText    string
	final      bool
	usage      *sse.Usage

	// frozen is the answer text of a view rebuilt from history.
	frozen *string

	// ThoughtsExpanded shows the thought body of a finalized view.
	ThoughtsExpanded bool

	// paint cache
	lastCleaned   string
	lastFormatted string
	lastWidth     int
	last          string
}

// NewMessageView creates the view of a new assistant placeholder. Deep
// research views get an activity feed.
func NewMessageView(deepResearch bool) *MessageView {
	v := &MessageView{scanner: content.NewScanner()}
	if deepResearch {
		v.feed = NewActivityFeed()
	}
	return v
}

// Phase returns the current phase.
func (v *MessageView) Phase() Phase { return v.phase }

// Feed returns the activity feed, nil outside deep research mode.
func (v *MessageView) Feed() *ActivityFeed { return v.feed }

// Final reports whether Finalize was called.
func (v *MessageView) Final() bool { return v.final }

// Correcting returns the redaction indicator text, "" when not shown.
func (v *MessageView) Correcting() string { return v.correcting }

// Err returns the inline error text, "" when none.
func (v *MessageView) Err() string { return v.errText }

// Usage returns the token usage reported by the stream, if any.
func (v *MessageView) Usage() *sse.Usage { return v.usage }

// PlanShown reports whether the plan affordance has been rendered.
func (v *MessageView) PlanShown() bool { return v.planShown }

// Plan returns the current research plan text.
func (v *MessageView) Plan() string { return v.plan }

// SetPlanApproved marks the plan as approved.
func (v *MessageView) SetPlanApproved(approved bool) { v.approved = approved }

// PlanApproved reports whether the plan was approved.
func (v *MessageView) PlanApproved() bool { return v.approved }

// Reasoning returns the raw reasoning accumulator.
func (v *MessageView) Reasoning() string { return v.reasoning.String() }

// Content returns the raw content accumulator.
func (v *MessageView) Content() string { return v.content.String() }

// Apply feeds one delta into the view.
func (v *MessageView) Apply(d sse.Delta) Update {
	if d.Empty() {
		return Update{}
	}
	prev := v.phase
	var u Update
	v.correcting = ""

	if r := d.ReasoningContent; r != "" {
		routed := false
		if v.feed != nil {
			if ev, ok := content.DecodeActivity(r); ok {
				v.feed.Add(ev)
				u.Activity = true
				routed = true
			}
		}
		v.reasoning.WriteString(r)
		if !routed {
			v.display.WriteString(r)
		}
		if v.phase == PhaseThinking {
			v.phase = PhaseReasoning
		}
	}

	if c := d.Content; c != "" {
		v.content.WriteString(c)
		v.scanner.WriteString(c)
		if v.phase != PhaseContent && strings.TrimSpace(v.content.String()) != "" {
			v.phase = PhaseContent
		}
		if v.phase == PhaseContent {
			if ex := v.scanner.Extracted(); ex.HasPlan() {
				v.plan = ex.PlanText()
				if !v.planShown {
					v.planShown = true
					u.PlanAppeared = true
				}
			}
		}
	}

	u.PhaseChanged = v.phase != prev
	return u
}

// SetUsage records the usage frame of the stream.
func (v *MessageView) SetUsage(u *sse.Usage) {
	v.usage = u
}

// Redact discards everything accumulated so far and shows the correcting
// indicator until the next delta.
func (v *MessageView) Redact(message string) {
	v.reasoning.Reset()
	v.display.Reset()
	v.content.Reset()
	v.scanner.Reset()
	v.lastCleaned, v.lastFormatted = "", ""

	if message == "" {
		message = DefaultCorrectingText
	}
	v.correcting = message

	v.phase = PhaseThinking
	if v.feed != nil && v.feed.Len() > 0 {
		v.phase = PhaseReasoning
	}
}

// Fail finalizes the view with an inline error.
func (v *MessageView) Fail(msg string) {
	v.errText = msg
	v.finish()
}

// Finalize ends the turn normally.
func (v *MessageView) Finalize() {
	if v.frozen != nil {
		v.finish()
		return
	}
	if ex := content.ParseContent(v.content.String()); ex.HasPlan() {
		v.plan = ex.PlanText()
		v.planShown = true
	}
	v.finish()
}

func (v *MessageView) finish() {
	v.final = true
	v.correcting = ""
	if v.feed != nil {
		v.feed.Finish()
	}
}

// Empty reports whether no reasoning or content was received.
func (v *MessageView) Empty() bool {
	return v.reasoning.Len() == 0 && v.content.Len() == 0
}

// Thoughts returns the human readable thought text: reasoning with think
// tags stripped, followed by think regions found in the content.
func (v *MessageView) Thoughts() string {
	parts := make([]string, 0, 2)
	if t := strings.TrimSpace(content.StripThinkTags(v.display.String())); t != "" {
		parts = append(parts, t)
	}
	if t := v.scanner.Extracted().Thoughts; t != "" {
		parts = append(parts, t)
	}
	return strings.Join(parts, "\n")
}

// Cleaned returns the answer text with think and plan regions removed.
func (v *MessageView) Cleaned() string {
	if v.frozen != nil {
		return *v.frozen
	}
	return v.scanner.Extracted().Cleaned
}

// FinalContent returns the persisted form of the turn.
func (v *MessageView) FinalContent() string {
	return content.CombineReasoning(v.reasoning.String(), v.content.String())
}
