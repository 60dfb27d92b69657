// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package render

import (
	"strings"

	"github.com/jeranaias/luminous-tui/internal/content"
	"github.com/jeranaias/luminous-tui/internal/model"
)

// HistoryOptions controls how a stored assistant message is rebuilt.
type HistoryOptions struct {
	// DeepResearch decodes research activities out of the thoughts.
	DeepResearch bool

	// PlanApproved marks the plan as approved, which is the case when the
	// next message is the synthetic approval turn.
	PlanApproved bool
}

// RenderHistorical builds a finalized view for a stored assistant message.
func RenderHistorical(msg model.Message, opts HistoryOptions) *MessageView {
	v := NewMessageView(false)
	v.Model = msg.Model
	v.final = true

	ex := content.ParseContent(msg.Text())
	thoughts := ex.Thoughts
	if thoughts != "" {
		v.reasoning.WriteString(thoughts)
	}

	if opts.DeepResearch {
		var raw []string
		for _, seg := range content.Tokenize(msg.Text()) {
			if seg.Kind != content.SegmentActivity {
				continue
			}
			if v.feed == nil {
				v.feed = NewActivityFeed()
			}
			v.feed.Add(*seg.Activity)
			raw = append(raw, seg.Text)
		}
		if v.feed != nil {
			v.feed.Finish()
		}
		v.display.WriteString(content.StripActivities(thoughts, raw))
	} else {
		v.display.WriteString(strings.TrimSpace(content.StripThinkTags(thoughts)))
	}

	v.content.WriteString(ex.Cleaned)
	cleaned := ex.Cleaned
	v.frozen = &cleaned
	if ex.Cleaned != "" {
		v.phase = PhaseContent
	} else if thoughts != "" {
		v.phase = PhaseReasoning
	}

	if ex.HasPlan() {
		v.plan = ex.PlanText()
		v.planShown = true
		v.approved = opts.PlanApproved
	}
	return v
}
