// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package render

import (
	"fmt"
	"strings"

	"github.com/jeranaias/luminous-tui/internal/model"
	"github.com/jeranaias/luminous-tui/internal/ui/styles"
)

const (
	thinkingTitle = "Thinking"
	thoughtTitle  = "Thought Process"
	stoppedText   = "Generation stopped."
)

// Renderer holds what painting needs besides the view itself.
type Renderer struct {
	Theme     *styles.Theme
	Formatter Formatter
	Width     int

	// Spinner is the current frame of the live indicators.
	Spinner string

	// AssistantName labels assistant rows.
	AssistantName string

	// HideUsage drops the token count from the model line.
	HideUsage bool
}

// NewRenderer creates a renderer. A nil theme uses PlainTheme and a nil
// formatter uses PlainFormatter.
func NewRenderer(theme *styles.Theme, f Formatter, width int) *Renderer {
	if theme == nil {
		theme = styles.PlainTheme()
	}
	if f == nil {
		f = PlainFormatter{}
	}
	return &Renderer{Theme: theme, Formatter: f, Width: width, AssistantName: "Luminous"}
}

func (r *Renderer) bodyWidth() int {
	if r.Width < 24 {
		return 20
	}
	return r.Width - 4
}

// =============================================================================
// ASSISTANT ROWS
// =============================================================================

// Paint renders the view. changed is false when the output is identical to
// the previous call, so callers can skip redrawing.
func (v *MessageView) Paint(r *Renderer) (string, bool) {
	t := r.Theme
	width := r.bodyWidth()
	var b strings.Builder

	b.WriteString(t.AssistantLabel.Render(r.AssistantName))
	b.WriteString("\n")

	if v.feed != nil && (v.feed.Len() > 0 || v.feed.Live) {
		b.WriteString(r.feed(v.feed, width))
		b.WriteString("\n")
	}

	if thoughts := v.Thoughts(); thoughts != "" {
		b.WriteString(r.thoughts(v, thoughts, width))
		b.WriteString("\n")
	}

	switch {
	case v.correcting != "":
		b.WriteString(t.Correcting.Render(v.correcting))
		b.WriteString("\n")
	case v.errText != "":
		b.WriteString(t.InlineError.Render("API Error: " + v.errText))
		b.WriteString("\n")
	case v.final && v.Empty():
		b.WriteString(t.Placeholder.Render(EmptyPlaceholder))
		b.WriteString("\n")
	case v.phase == PhaseContent || v.final:
		if answer := v.answer(r, width); answer != "" {
			b.WriteString(answer)
			b.WriteString("\n")
		}
	case v.feed == nil:
		b.WriteString(t.Placeholder.Render(strings.TrimSpace(r.Spinner + " " + thinkingTitle + "...")))
		b.WriteString("\n")
	}

	if v.planShown && v.errText == "" {
		b.WriteString(r.plan(v, width))
		b.WriteString("\n")
	}

	if v.final && v.Model != "" && v.errText == "" {
		b.WriteString(t.ModelLabel.Render(v.Model))
		if !r.HideUsage && v.usage != nil && v.usage.TotalTokens > 0 {
			b.WriteString(t.ModelLabel.Render(fmt.Sprintf(" - %d tokens", v.usage.TotalTokens)))
		}
		b.WriteString("\n")
	}

	out := strings.TrimRight(b.String(), "\n")
	changed := out != v.last
	v.last = out
	return out, changed
}

// answer formats the cleaned content, reusing the previous result when the
// text and width are unchanged.
func (v *MessageView) answer(r *Renderer, width int) string {
	cleaned := v.Cleaned()
	if cleaned == v.lastCleaned && width == v.lastWidth && v.lastFormatted != "" {
		return v.lastFormatted
	}
	v.lastCleaned = cleaned
	v.lastWidth = width
	v.lastFormatted = r.Formatter.Format(cleaned, width)
	return v.lastFormatted
}

func (r *Renderer) thoughts(v *MessageView, thoughts string, width int) string {
	t := r.Theme
	active := !v.final && v.phase == PhaseReasoning
	if active {
		header := t.ThoughtHeaderActive.Render(strings.TrimSpace(r.Spinner + " " + thinkingTitle))
		return header + "\n" + t.ThoughtBody.Render(r.Formatter.Format(thoughts, width-2))
	}

	header := t.ThoughtHeader.Render(thoughtTitle)
	if v.final && !v.ThoughtsExpanded {
		lines := strings.Count(thoughts, "\n") + 1
		return header + " " + t.Placeholder.Render(fmt.Sprintf("(%d lines, ctrl+t to expand)", lines))
	}
	return header + "\n" + t.ThoughtBody.Render(r.Formatter.Format(thoughts, width-2))
}

func (r *Renderer) feed(f *ActivityFeed, width int) string {
	t := r.Theme
	inner := width - 4
	lines := make([]string, 0, f.Len()+1)

	for _, slot := range f.Slots() {
		icon, line := Describe(slot.First())
		style := t.FeedStep
		if slot.Done() {
			style = t.FeedDone
		}
		lines = append(lines, style.Render(icon+" "+line))

		for _, ev := range slot.Events[1:] {
			_, detail := Describe(ev)
			lines = append(lines, t.FeedDetail.Render(detail))
			for _, res := range resultLines(ev, inner-4) {
				lines = append(lines, t.FeedDetail.Render("  "+res))
			}
		}
	}
	if f.Live {
		lines = append(lines, t.LiveIndicator.Render(strings.TrimSpace(r.Spinner+" "+LiveText)))
	}
	return t.FeedBox.Width(width).Render(strings.Join(lines, "\n"))
}

func (r *Renderer) plan(v *MessageView, width int) string {
	t := r.Theme
	box := t.PlanBox
	hint := "ctrl+a approve  /plan edit"
	title := "Research Plan"
	if v.approved {
		box = t.PlanBoxApproved
		hint = ""
		title = "Research Plan (approved)"
	} else if !v.final {
		hint = ""
	}

	body := t.PlanTitle.Render(title) + "\n" + r.Formatter.Format(v.plan, width-4)
	if hint != "" {
		body += "\n" + t.PlanHint.Render(hint)
	}
	return box.Width(width).Render(body)
}

// =============================================================================
// OTHER ROWS
// =============================================================================

// User renders a user message.
func (r *Renderer) User(msg model.Message) string {
	t := r.Theme
	text := msg.Text()
	if msg.Content.HasImage() {
		text = strings.TrimSpace(text + "\n" + t.Attachment.Render("[image attached]"))
	}
	return t.UserLabel.Render("You") + "\n" + t.UserText.Width(r.bodyWidth()).Render(text)
}

// Stopped renders the indicator row left by a stopped turn.
func (r *Renderer) Stopped() string {
	return r.Theme.Stopped.Render(stoppedText)
}

// Notice renders an informational row.
func (r *Renderer) Notice(text string) string {
	return r.Theme.Notice.Render(text)
}
