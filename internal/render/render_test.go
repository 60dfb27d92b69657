// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package render

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/luminous-tui/internal/model"
	"github.com/jeranaias/luminous-tui/internal/sse"
)

func activity(typ, data string) string {
	return `{"__deep_research_activity__": true, "type": "` + typ + `", "data": ` + data + `}`
}

func plainRenderer() *Renderer {
	return NewRenderer(nil, PlainFormatter{}, 80)
}

// =============================================================================
// PHASES
// =============================================================================

func TestPhaseTransitions(t *testing.T) {
	v := NewMessageView(false)
	assert.Equal(t, PhaseThinking, v.Phase())

	u := v.Apply(sse.Delta{ReasoningContent: "<think>step1</think>"})
	assert.True(t, u.PhaseChanged)
	assert.Equal(t, PhaseReasoning, v.Phase())

	u = v.Apply(sse.Delta{Content: "   "})
	assert.False(t, u.PhaseChanged, "whitespace is not real content")
	assert.Equal(t, PhaseReasoning, v.Phase())

	u = v.Apply(sse.Delta{Content: "42"})
	assert.True(t, u.PhaseChanged)
	assert.Equal(t, PhaseContent, v.Phase())

	v.Apply(sse.Delta{ReasoningContent: "more"})
	assert.Equal(t, PhaseContent, v.Phase(), "phase never regresses")

	assert.Equal(t, "step1more", v.Thoughts())
	assert.Equal(t, "42", v.Cleaned())
}

func TestEmptyDeltaIsIgnored(t *testing.T) {
	v := NewMessageView(false)
	v.Redact("")
	assert.Equal(t, Update{}, v.Apply(sse.Delta{}))
	assert.Equal(t, DefaultCorrectingText, v.Correcting(), "empty delta keeps the indicator")
}

func TestThinkInContent(t *testing.T) {
	v := NewMessageView(false)
	for _, c := range []string{"<thi", "nk>hidden", "</think>", "answer"} {
		v.Apply(sse.Delta{Content: c})
	}
	assert.Equal(t, "hidden", v.Thoughts())
	assert.Equal(t, "answer", v.Cleaned())
}

// =============================================================================
// ACTIVITY ROUTING
// =============================================================================

func TestActivityRouting(t *testing.T) {
	v := NewMessageView(true)
	search := activity("search", `{"query": "go {generics}", "step_id": "s1"}`)
	results := activity("search_results", `{"results": [{"title": "A"}, {"title": "B"}], "step_id": "s1"}`)
	status := activity("status", `{"message": "Reading sources"}`)

	u := v.Apply(sse.Delta{ReasoningContent: search})
	assert.True(t, u.Activity)
	assert.Equal(t, PhaseReasoning, v.Phase(), "an activity leaves the thinking state")

	v.Apply(sse.Delta{ReasoningContent: results})
	v.Apply(sse.Delta{ReasoningContent: status})
	v.Apply(sse.Delta{ReasoningContent: "plain thought"})

	feed := v.Feed()
	require.NotNil(t, feed)
	assert.Equal(t, 2, feed.Len(), "events with the same step share a slot")
	assert.Equal(t, 3, feed.Events())
	assert.Len(t, feed.Slots()[0].Events, 2)
	assert.True(t, feed.Slots()[0].Done())

	assert.Equal(t, "plain thought", v.Thoughts(), "activities never reach the thought panel")
	assert.Contains(t, v.Reasoning(), search, "activities are kept for persistence")
}

func TestActivityWithoutFeedIsPlainReasoning(t *testing.T) {
	v := NewMessageView(false)
	frag := activity("status", `{"message": "x"}`)
	u := v.Apply(sse.Delta{ReasoningContent: frag})
	assert.False(t, u.Activity)
	assert.Nil(t, v.Feed())
	assert.Equal(t, frag, v.Thoughts())
}

func TestDescribe(t *testing.T) {
	tests := []struct {
		frag string
		want string
	}{
		{activity("search", `{"query": "q"}`), "Searching: q"},
		{activity("search", `{"query": "q", "displayMessage": "Looking up q"}`), "Looking up q"},
		{activity("search_results", `{"results": [{}]}`), "Found 1 result"},
		{activity("search_results", `{"results": []}`), "Found 0 results"},
		{activity("visit", `{"url": "https://a.example"}`), "Reading https://a.example"},
		{activity("visit_complete", `{"url": "https://a.example", "chars": 1200}`), "Read https://a.example (1200 chars)"},
		{activity("planning", `{"message": "Drafting", "state": "thinking"}`), "Drafting"},
		{activity("custom", `{"n": 1}`), `custom n=1`},
	}
	for _, tt := range tests {
		v := NewMessageView(true)
		v.Apply(sse.Delta{ReasoningContent: tt.frag})
		require.Equal(t, 1, v.Feed().Len(), tt.frag)
		_, line := Describe(v.Feed().Slots()[0].First())
		assert.Equal(t, tt.want, line)
	}
}

// =============================================================================
// PLAN
// =============================================================================

func TestPlanAppearsOnce(t *testing.T) {
	v := NewMessageView(true)
	u := v.Apply(sse.Delta{Content: "Here: <research_plan>Title: X"})
	assert.True(t, u.PlanAppeared)
	assert.Equal(t, "Title: X", v.Plan())

	u = v.Apply(sse.Delta{Content: "\nStep 1</research_plan>"})
	assert.False(t, u.PlanAppeared)
	assert.Equal(t, "Title: X\nStep 1", v.Plan(), "plan text stays current")
	assert.Equal(t, "Here:", v.Cleaned())
}

// =============================================================================
// REDACTION
// =============================================================================

func TestRedaction(t *testing.T) {
	v := NewMessageView(true)
	v.Apply(sse.Delta{ReasoningContent: activity("status", `{"message": "working"}`)})
	v.Apply(sse.Delta{ReasoningContent: "draft"})
	v.Apply(sse.Delta{Content: "bad | table"})

	v.Redact("")
	assert.Equal(t, DefaultCorrectingText, v.Correcting())
	assert.Equal(t, "", v.Content())
	assert.Equal(t, "", v.Reasoning())
	assert.Equal(t, "", v.Cleaned())
	assert.Equal(t, PhaseReasoning, v.Phase(), "feed entries keep the reasoning state")
	assert.Equal(t, 1, v.Feed().Len())

	out, _ := v.Paint(plainRenderer())
	assert.Contains(t, out, DefaultCorrectingText)
	assert.NotContains(t, out, "bad | table")

	v.Apply(sse.Delta{Content: "good"})
	assert.Equal(t, "", v.Correcting())
	assert.Equal(t, "good", v.FinalContent())
}

func TestRedactionWithoutFeed(t *testing.T) {
	v := NewMessageView(false)
	v.Apply(sse.Delta{Content: "abc"})
	v.Redact("Validating output")
	assert.Equal(t, PhaseThinking, v.Phase())
	assert.Equal(t, "Validating output", v.Correcting())
}

// =============================================================================
// FINALIZATION AND PAINT
// =============================================================================

func TestFinalizeEmpty(t *testing.T) {
	v := NewMessageView(true)
	v.Finalize()
	out, _ := v.Paint(plainRenderer())
	assert.Contains(t, out, EmptyPlaceholder)
	assert.NotContains(t, out, LiveText)
	assert.False(t, v.Feed().Live)
}

func TestFinalContent(t *testing.T) {
	v := NewMessageView(false)
	v.Apply(sse.Delta{ReasoningContent: "R"})
	v.Apply(sse.Delta{Content: "C"})
	assert.Equal(t, "<think>\nR\n</think>\nC", v.FinalContent())

	w := NewMessageView(false)
	w.Apply(sse.Delta{Content: "only"})
	assert.Equal(t, "only", w.FinalContent())
}

func TestPaintLabels(t *testing.T) {
	r := plainRenderer()
	v := NewMessageView(false)
	v.Model = "m1"

	v.Apply(sse.Delta{ReasoningContent: "step1"})
	out, changed := v.Paint(r)
	assert.True(t, changed)
	assert.Contains(t, out, "Thinking")

	_, changed = v.Paint(r)
	assert.False(t, changed, "identical output is not repainted")

	v.Apply(sse.Delta{Content: "42"})
	out, changed = v.Paint(r)
	assert.True(t, changed)
	assert.Contains(t, out, "Thought Process")
	assert.Contains(t, out, "42")

	v.Finalize()
	out, _ = v.Paint(r)
	assert.Contains(t, out, "m1")
	assert.Contains(t, out, "ctrl+t to expand")
}

func TestPaintError(t *testing.T) {
	v := NewMessageView(false)
	v.Apply(sse.Delta{Content: "partial"})
	v.Fail("boom")
	out, _ := v.Paint(plainRenderer())
	assert.Contains(t, out, "API Error: boom")
	assert.NotContains(t, out, "partial")
}

func TestFormatterCaching(t *testing.T) {
	f := &countingFormatter{}
	r := NewRenderer(nil, f, 80)
	v := NewMessageView(false)
	v.Apply(sse.Delta{Content: "hello"})
	v.Paint(r)
	v.Paint(r)
	assert.Equal(t, 1, f.calls)
}

type countingFormatter struct{ calls int }

func (c *countingFormatter) Format(md string, _ int) string {
	c.calls++
	return strings.TrimSpace(md)
}

// =============================================================================
// HISTORY
// =============================================================================

func TestRenderHistorical(t *testing.T) {
	raw := "<think>\n" + activity("search", `{"query": "q", "step_id": "a"}`) + "I should look\n</think>\n" +
		"Answer <research_plan>P</research_plan>"
	msg := model.NewAssistantMessage(raw, "m1")

	v := RenderHistorical(msg, HistoryOptions{DeepResearch: true, PlanApproved: true})
	require.NotNil(t, v.Feed())
	assert.Equal(t, 1, v.Feed().Len())
	assert.False(t, v.Feed().Live)
	assert.Equal(t, "I should look", v.Thoughts())
	assert.Equal(t, "Answer", v.Cleaned())
	assert.Equal(t, "P", v.Plan())
	assert.True(t, v.PlanApproved())

	out, _ := v.Paint(plainRenderer())
	assert.Contains(t, out, "approved")
	assert.Contains(t, out, "m1")
}

func TestRenderHistoricalActivitiesAcrossThinkRegions(t *testing.T) {
	raw := "<think>" + `quoting "}{" ` + activity("search", `{"query": "q", "step_id": "a"}`) + "</think>\n" +
		"<think>" + activity("visit", `{"url": "https://a.example", "step_id": "b"}`) + " reading</think>\nDone"
	msg := model.NewAssistantMessage(raw, "m1")

	v := RenderHistorical(msg, HistoryOptions{DeepResearch: true})
	require.NotNil(t, v.Feed())
	assert.Equal(t, 2, v.Feed().Len())
	assert.NotContains(t, v.Thoughts(), "__deep_research_activity__")
	assert.Contains(t, v.Thoughts(), "reading")
	assert.Equal(t, "Done", v.Cleaned())
}

func TestRenderHistoricalKeepsSecondPlan(t *testing.T) {
	msg := model.NewAssistantMessage("<research_plan>A</research_plan>x<research_plan>B</research_plan>", "")
	v := RenderHistorical(msg, HistoryOptions{})
	assert.Equal(t, "A", v.Plan())
	assert.Equal(t, "x<research_plan>B</research_plan>", v.Cleaned())
}

func TestRenderHistoricalPlainMode(t *testing.T) {
	frag := activity("status", `{"message": "m"}`)
	msg := model.NewAssistantMessage("<think>"+frag+"</think>ok", "")
	v := RenderHistorical(msg, HistoryOptions{})
	assert.Nil(t, v.Feed())
	assert.Equal(t, frag, v.Thoughts())
	assert.Equal(t, "ok", v.Cleaned())
}
