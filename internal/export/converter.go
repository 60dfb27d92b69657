// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"strings"

	"github.com/jeranaias/luminous-tui/internal/content"
	"github.com/jeranaias/luminous-tui/internal/model"
	"github.com/jeranaias/luminous-tui/internal/render"
)

// =============================================================================
// CONVERSION UTILITIES
// =============================================================================

// Entry is one exported message, split into the parts the chat view shows.
type Entry struct {
	Role  string `json:"role"`
	Model string `json:"model,omitempty"`

	// Text is the user text, or the answer of an assistant message.
	Text  string `json:"text"`
	Image bool   `json:"image,omitempty"`

	Thoughts     string   `json:"thoughts,omitempty"`
	Activity     []string `json:"activity,omitempty"`
	Plan         string   `json:"plan,omitempty"`
	PlanApproved bool     `json:"plan_approved,omitempty"`
}

// Entries converts the messages of chat. Plan approval turns are dropped
// and mark the plan before them approved.
func Entries(chat *model.Chat) []Entry {
	out := make([]Entry, 0, len(chat.Messages))
	for _, msg := range chat.Messages {
		if msg.IsText(model.RoleUser, content.PlanApprovedMessage) {
			if n := len(out); n > 0 && out[n-1].Plan != "" {
				out[n-1].PlanApproved = true
			}
			continue
		}
		out = append(out, convert(msg, bool(chat.DeepResearchMode)))
	}
	return out
}

func convert(msg model.Message, deepResearch bool) Entry {
	e := Entry{Role: string(msg.Role), Model: msg.Model}
	if msg.Role != model.RoleAssistant {
		e.Text = msg.Text()
		e.Image = msg.Content.HasImage()
		if e.Image && e.Text == model.ImagePlaceholder {
			e.Text = ""
		}
		return e
	}

	ex := content.ParseContent(msg.Text())
	e.Text = ex.Cleaned
	e.Plan = strings.TrimSpace(ex.PlanText())

	thoughts := ex.Thoughts
	if deepResearch {
		events, raw := content.ExtractActivities(thoughts)
		for _, ev := range events {
			icon, line := render.Describe(ev)
			if line == "" {
				continue
			}
			e.Activity = append(e.Activity, icon+" "+line)
		}
		e.Thoughts = content.StripActivities(thoughts, raw)
	} else {
		e.Thoughts = strings.TrimSpace(content.StripThinkTags(thoughts))
	}
	return e
}

// roleLabel returns a display label for a role.
func roleLabel(role string) string {
	switch role {
	case "":
		return "Unknown"
	case string(model.RoleUser):
		return "[User]"
	case string(model.RoleAssistant):
		return "[Assistant]"
	case string(model.RoleSystem):
		return "[System]"
	default:
		runes := []rune(role)
		return strings.ToUpper(string(runes[0])) + string(runes[1:])
	}
}
