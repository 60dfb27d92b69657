// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package content

import (
	"strings"
)

// Tag delimiters of the embedded sub-languages.
const (
	ThinkOpen  = "<think>"
	ThinkClose = "</think>"
	PlanOpen   = "<research_plan>"
	PlanClose  = "</research_plan>"
)

// PlanApprovedMessage is the synthetic user turn sent when a research plan
// is approved. A plan followed by this user message counts as approved when
// a chat is reloaded.
const PlanApprovedMessage = "Plan Approved. Proceed with research."

// Extracted is the split form of a raw assistant message.
type Extracted struct {
	// Thoughts holds all <think> bodies joined by newlines, trimmed.
	Thoughts string

	// Cleaned is the remaining answer text, trimmed.
	Cleaned string

	// Plan is the body of the first <research_plan> region, verbatim.
	// Nil when the text has no plan.
	Plan *string
}

// HasPlan reports whether a research plan was found.
func (e Extracted) HasPlan() bool {
	return e.Plan != nil
}

// PlanText returns the plan body or "" when there is none.
func (e Extracted) PlanText() string {
	if e.Plan == nil {
		return ""
	}
	return *e.Plan
}

// ParseContent splits raw into thoughts, cleaned answer text and plan.
//
// Every <think> region is consumed, including an unterminated trailing one
// which runs to the end of the string. Only the first <research_plan> region
// of the remaining text is honored; an unterminated one runs to the end of
// the string. A second plan region stays in Cleaned as literal text.
func ParseContent(raw string) Extracted {
	var bodies []string
	var work strings.Builder
	work.Grow(len(raw))

	rest := raw
	for {
		open := strings.Index(rest, ThinkOpen)
		if open < 0 {
			work.WriteString(rest)
			break
		}
		work.WriteString(rest[:open])
		rest = rest[open+len(ThinkOpen):]

		end := strings.Index(rest, ThinkClose)
		if end < 0 {
			bodies = append(bodies, rest)
			break
		}
		bodies = append(bodies, rest[:end])
		rest = rest[end+len(ThinkClose):]
	}

	cleaned, plan := cutPlan(work.String())
	return Extracted{
		Thoughts: strings.TrimSpace(strings.Join(bodies, "\n")),
		Cleaned:  strings.TrimSpace(cleaned),
		Plan:     plan,
	}
}

// cutPlan removes the first research plan region from text.
func cutPlan(text string) (string, *string) {
	open := strings.Index(text, PlanOpen)
	if open < 0 {
		return text, nil
	}
	before := text[:open]
	rest := text[open+len(PlanOpen):]

	end := strings.Index(rest, PlanClose)
	if end < 0 {
		plan := rest
		return before, &plan
	}
	plan := rest[:end]
	return before + rest[end+len(PlanClose):], &plan
}

// CombineReasoning builds the persisted form of an assistant message. When
// reasoning is present it is embedded ahead of the answer in a think region
// so that ParseContent recovers the same split on reload.
func CombineReasoning(reasoning, answer string) string {
	if reasoning == "" {
		return answer
	}
	return ThinkOpen + "\n" + reasoning + "\n" + ThinkClose + "\n" + answer
}

// StripThinkTags removes literal <think> and </think> tags from text.
func StripThinkTags(text string) string {
	if !strings.Contains(text, "think>") {
		return text
	}
	text = strings.ReplaceAll(text, ThinkOpen, "")
	return strings.ReplaceAll(text, ThinkClose, "")
}
