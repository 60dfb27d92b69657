// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package turn

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/luminous-tui/internal/content"
	"github.com/jeranaias/luminous-tui/internal/luminous"
	"github.com/jeranaias/luminous-tui/internal/model"
	"github.com/jeranaias/luminous-tui/internal/render"
	"github.com/jeranaias/luminous-tui/internal/sse"
)

var (
	modelOne    = model.ModelInfo{ID: "m1", Name: "Model One"}
	visionModel = model.ModelInfo{ID: "v1", Name: "Vision", Vision: true}
)

func newTestController(opts ...func(*Settings)) *Controller {
	s := Settings{
		Configured: true,
		Model:      modelOne,
		Sampling: luminous.Sampling{
			Temperature: 0.7, TopP: 0.95, MaxTokens: 4096, TopK: 40, MinP: 0.05, Reasoning: "medium",
		},
	}
	for _, o := range opts {
		o(&s)
	}
	return NewController(s, WithIDFunc(func() string { return "chat-1" }))
}

func deltaFrame(turn TurnID, reasoning, text string) FrameReceived {
	return FrameReceived{Turn: turn, Frame: sse.Frame{
		Kind:  sse.KindDelta,
		Delta: sse.Delta{Content: text, ReasoningContent: reasoning},
	}}
}

// startStream returns the single StartStream among effects.
func startStream(t *testing.T, effects []Effect) StartStream {
	t.Helper()
	require.Len(t, effects, 1)
	s, ok := effects[0].(StartStream)
	require.True(t, ok, "expected StartStream, got %T", effects[0])
	return s
}

// answer runs a complete turn that replies with text.
func answer(t *testing.T, c *Controller, input, text string) {
	t.Helper()
	s := startStream(t, c.Dispatch(Submit{Text: input}))
	c.Dispatch(deltaFrame(s.Turn, "", text))
	c.Dispatch(StreamEnded{Turn: s.Turn})
	require.NoError(t, c.CheckRows())
}

func visible(c *Controller) []Row {
	var out []Row
	for _, r := range c.Rows() {
		if !r.Hidden {
			out = append(out, r)
		}
	}
	return out
}

// =============================================================================
// SUBMIT
// =============================================================================

func TestSubmitBuildsRequest(t *testing.T) {
	c := newTestController(func(s *Settings) { s.SystemPrompt = "be brief"; s.MemoryMode = true })
	s := startStream(t, c.Dispatch(Submit{Text: "  hello  "}))

	req := s.Request
	require.NotNil(t, req)
	assert.Equal(t, "m1", req.Model)
	assert.Equal(t, "Model One", req.LastModelName)
	require.NotNil(t, req.ChatID)
	assert.Equal(t, "chat-1", *req.ChatID)
	assert.True(t, req.MemoryMode)
	assert.Nil(t, req.ApprovedPlan)
	require.Len(t, req.Messages, 2)
	assert.Equal(t, model.RoleSystem, req.Messages[0].Role)
	assert.Equal(t, "hello", req.Messages[1].Text())
	require.NotNil(t, req.Sampling)
	assert.Equal(t, "medium", req.Sampling.Reasoning)

	assert.True(t, c.IsGenerating())
	assert.Equal(t, "hello", c.Title())
	assert.NoError(t, c.CheckRows())
}

func TestSubmitDeepResearchRequest(t *testing.T) {
	c := newTestController(func(s *Settings) {
		s.DeepResearch = true
		s.VisionModel = "v1"
		s.Sampling.Reasoning = "none"
	})
	req := startStream(t, c.Dispatch(Submit{Text: "topic"})).Request
	assert.True(t, req.DeepResearchMode)
	assert.Nil(t, req.Sampling)
	require.NotNil(t, req.SearchDepthMode)
	assert.Equal(t, "regular", *req.SearchDepthMode)
	require.NotNil(t, req.VisionModel)
	assert.Equal(t, "v1", *req.VisionModel)
}

func TestSubmitReasoningOff(t *testing.T) {
	c := newTestController(func(s *Settings) { s.Sampling.Reasoning = "none" })
	req := startStream(t, c.Dispatch(Submit{Text: "x"})).Request
	assert.Equal(t, luminous.ReasoningOff, req.Sampling.Reasoning)
}

func TestSubmitHistoryWindow(t *testing.T) {
	c := newTestController(func(s *Settings) { s.History = 3 })
	answer(t, c, "q1", "a1")
	answer(t, c, "q2", "a2")
	req := startStream(t, c.Dispatch(Submit{Text: "q3"})).Request
	require.Len(t, req.Messages, 3)
	assert.Equal(t, "q2", req.Messages[0].Text())
}

func TestSubmitTemporaryChatHasNoID(t *testing.T) {
	c := newTestController(func(s *Settings) { s.Temporary = true })
	req := startStream(t, c.Dispatch(Submit{Text: "x"})).Request
	assert.Nil(t, req.ChatID)
	assert.Equal(t, "", c.ChatID())
}

func TestSubmitGuards(t *testing.T) {
	c := newTestController(func(s *Settings) { s.Configured = false })
	assert.Equal(t, []Effect{Notice{Text: NoticeNotConfigured}}, c.Dispatch(Submit{Text: "x"}))

	c = newTestController(func(s *Settings) { s.Model = model.ModelInfo{} })
	assert.Equal(t, []Effect{Notice{Text: NoticeNoModel}}, c.Dispatch(Submit{Text: "x"}))

	c = newTestController()
	assert.Nil(t, c.Dispatch(Submit{Text: "   "}))
	assert.Equal(t, []Effect{Notice{Text: NoticeVision}},
		c.Dispatch(Submit{Text: "look", Image: "data:image/png;base64,AAA"}))
	assert.Equal(t, 0, c.transcript.Len())

	c.Dispatch(SetModel{Model: visionModel})
	s := startStream(t, c.Dispatch(Submit{Text: "look", Image: "data:image/png;base64,AAA"}))
	assert.True(t, s.Request.HasVision)
	c.Dispatch(StreamEnded{Turn: s.Turn})

	// The chat now contains an image; a text-only model is refused.
	c.Dispatch(SetModel{Model: modelOne})
	assert.Equal(t, []Effect{Notice{Text: NoticeVision}}, c.Dispatch(Submit{Text: "more"}))
}

func TestSubmitIgnoredWhileGenerating(t *testing.T) {
	c := newTestController()
	startStream(t, c.Dispatch(Submit{Text: "a"}))
	assert.Nil(t, c.Dispatch(Submit{Text: "b"}))
	assert.Equal(t, 1, c.transcript.Len())
}

// =============================================================================
// STREAM EVENTS
// =============================================================================

func TestStreamCompletes(t *testing.T) {
	c := newTestController()
	s := startStream(t, c.Dispatch(Submit{Text: "hello"}))

	c.Dispatch(deltaFrame(s.Turn, "<think>hm</think>", ""))
	assert.Equal(t, render.PhaseReasoning, c.Current().Phase())
	c.Dispatch(deltaFrame(s.Turn, "", "Hi"))
	assert.Equal(t, render.PhaseContent, c.Current().Phase())

	effects := c.Dispatch(StreamEnded{Turn: s.Turn, Err: io.EOF})
	require.Len(t, effects, 1)
	sync, ok := effects[0].(SyncChat)
	require.True(t, ok)
	assert.False(t, sync.Save)
	assert.Equal(t, "chat-1", sync.Chat.ID)

	msgs := c.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "<think>\n<think>hm</think>\n</think>\nHi", msgs[1].Text())
	assert.Equal(t, "Model One", msgs[1].Model)
	assert.False(t, c.IsGenerating())
	assert.NoError(t, c.CheckRows())
}

func TestStaleEventsIgnored(t *testing.T) {
	c := newTestController()
	s := startStream(t, c.Dispatch(Submit{Text: "a"}))
	c.Dispatch(Stop{})
	s2 := startStream(t, c.Dispatch(Submit{Text: "b"}))
	require.NotEqual(t, s.Turn, s2.Turn)

	c.Dispatch(deltaFrame(s.Turn, "", "old"))
	assert.Nil(t, c.Dispatch(StreamEnded{Turn: s.Turn}))
	assert.True(t, c.IsGenerating())
	assert.Equal(t, "", c.Current().Content())
}

func TestStreamFailureShowsInlineError(t *testing.T) {
	c := newTestController()
	s := startStream(t, c.Dispatch(Submit{Text: "a"}))
	c.Dispatch(StreamEnded{Turn: s.Turn, Err: &luminous.APIError{Status: 500, Message: "API Error: Internal Server Error"}})

	rows := c.Rows()
	last := rows[len(rows)-1]
	assert.Equal(t, "Internal Server Error", last.View.Err())
	assert.True(t, last.Ephemeral)
	assert.Equal(t, 1, c.transcript.Len(), "failed answers are not added")
	assert.NoError(t, c.CheckRows())
}

func TestStreamCanceledKeepsPartial(t *testing.T) {
	c := newTestController()
	s := startStream(t, c.Dispatch(Submit{Text: "a"}))
	c.Dispatch(deltaFrame(s.Turn, "", "part"))
	c.Dispatch(StreamEnded{Turn: s.Turn, Err: context.Canceled})
	assert.False(t, c.IsGenerating())
	assert.Equal(t, "", c.Rows()[1].View.Err())
}

func TestErrorText(t *testing.T) {
	assert.Equal(t, "boom", ErrorText(&sse.ProtocolError{Message: "boom"}))
	assert.Equal(t, "Bad Gateway", ErrorText(&luminous.APIError{Status: 502, Message: "API Error: Bad Gateway"}))
	assert.Equal(t, "plain", ErrorText(errors.New("plain")))
}

// =============================================================================
// STOP
// =============================================================================

func TestStopIsIdempotent(t *testing.T) {
	c := newTestController()
	answer(t, c, "q1", "a1")
	s := startStream(t, c.Dispatch(Submit{Text: "q2"}))
	c.Dispatch(deltaFrame(s.Turn, "", "partial"))

	first := c.Dispatch(Stop{})
	assert.Equal(t, []Effect{CancelStream{Turn: s.Turn}, NotifyStop{ChatID: "chat-1"}}, first)
	rowsAfter := c.Rows()
	msgsAfter := c.Messages()

	assert.Nil(t, c.Dispatch(Stop{}))
	assert.Equal(t, rowsAfter, c.Rows())
	assert.Equal(t, msgsAfter, c.Messages())

	require.Len(t, msgsAfter, 2)
	require.Len(t, rowsAfter, 3)
	assert.Equal(t, RowStopped, rowsAfter[2].Kind)
	assert.True(t, rowsAfter[2].Ephemeral)
	assert.NoError(t, c.CheckRows())
}

func TestStopTemporaryDoesNotNotify(t *testing.T) {
	c := newTestController(func(s *Settings) { s.Temporary = true })
	s := startStream(t, c.Dispatch(Submit{Text: "q"}))
	assert.Equal(t, []Effect{CancelStream{Turn: s.Turn}}, c.Dispatch(Stop{}))
}

// =============================================================================
// EDIT / DELETE / RETRY
// =============================================================================

func TestEditRestoresInput(t *testing.T) {
	c := newTestController()
	answer(t, c, "q1", "a1")
	answer(t, c, "q2", "a2")
	ids := c.transcript.IDs()

	effects := c.Dispatch(Edit{ID: ids[2]})
	require.Len(t, effects, 2)
	assert.Equal(t, RestoreInput{Text: "q2"}, effects[0])
	sync := effects[1].(SyncChat)
	assert.True(t, sync.Save)
	assert.Len(t, sync.Chat.Messages, 2)
	assert.Equal(t, 2, c.transcript.Len())
	assert.NoError(t, c.CheckRows())

	// Assistant messages cannot be edited.
	assert.Nil(t, c.Dispatch(Edit{ID: ids[1]}))
}

func TestEditImageOnlyMessage(t *testing.T) {
	c := newTestController(func(s *Settings) { s.Model = visionModel })
	s := startStream(t, c.Dispatch(Submit{Image: "data:image/png;base64,AAA"}))
	c.Dispatch(StreamEnded{Turn: s.Turn})

	effects := c.Dispatch(Edit{ID: c.transcript.IDs()[0]})
	assert.Equal(t, RestoreInput{Text: "", Image: "data:image/png;base64,AAA"}, effects[0])
}

func TestDeleteTruncates(t *testing.T) {
	c := newTestController()
	answer(t, c, "q1", "a1")
	answer(t, c, "q2", "a2")
	ids := c.transcript.IDs()

	c.Dispatch(Delete{ID: ids[1]})
	assert.Equal(t, 1, c.transcript.Len())
	assert.NoError(t, c.CheckRows())
	assert.Nil(t, c.Dispatch(Delete{ID: ids[3]}), "unknown ids are ignored")
}

func TestRetryAssistant(t *testing.T) {
	c := newTestController()
	answer(t, c, "q1", "a1")
	ids := c.transcript.IDs()

	other := model.ModelInfo{ID: "m2", Name: "Model Two"}
	s := startStream(t, c.Dispatch(Retry{ID: ids[1], Model: other}))
	assert.Equal(t, "m2", s.Request.Model)
	require.NotNil(t, s.Prior)
	assert.Empty(t, s.Prior.Messages, "the server re-adds the user message")
	assert.Len(t, s.Request.Messages, 1)
	assert.NoError(t, c.CheckRows())
}

func TestRetryUserKeepsMessage(t *testing.T) {
	c := newTestController()
	answer(t, c, "q1", "a1")
	answer(t, c, "q2", "a2")
	ids := c.transcript.IDs()

	s := startStream(t, c.Dispatch(Retry{ID: ids[2]}))
	require.Len(t, s.Request.Messages, 3)
	assert.Equal(t, "q2", s.Request.Messages[2].Text())
	require.NotNil(t, s.Prior)
	assert.Len(t, s.Prior.Messages, 2)
	assert.NoError(t, c.CheckRows())
}

func TestRetryWithoutUserMessageKeepsTranscript(t *testing.T) {
	c := newTestController()
	chat := &model.Chat{
		ChatMeta: model.ChatMeta{ID: "c3", Title: "Greeting"},
		Messages: []model.Message{model.NewAssistantMessage("Welcome!", "Model One")},
	}
	c.Dispatch(ChatLoaded{Chat: chat})
	ids := c.transcript.IDs()
	require.Len(t, ids, 1)

	effects := c.Dispatch(Retry{ID: ids[0]})
	assert.Equal(t, []Effect{Notice{Text: NoticeNothingRetry}}, effects)
	assert.Equal(t, 1, c.transcript.Len(), "a refused retry must not truncate")
	assert.Len(t, c.Rows(), 1)
	assert.False(t, c.IsGenerating())
	assert.NoError(t, c.CheckRows())
}

func TestEditDeleteRetryIgnoredWhileGenerating(t *testing.T) {
	c := newTestController()
	answer(t, c, "q1", "a1")
	ids := c.transcript.IDs()
	startStream(t, c.Dispatch(Submit{Text: "q2"}))

	before := c.Messages()
	assert.Nil(t, c.Dispatch(Edit{ID: ids[0]}))
	assert.Nil(t, c.Dispatch(Delete{ID: ids[0]}))
	assert.Nil(t, c.Dispatch(Retry{ID: ids[1]}))
	assert.Nil(t, c.Dispatch(NewChat{}))
	assert.Equal(t, before, c.Messages())
	assert.NoError(t, c.CheckRows())
}

// =============================================================================
// RESEARCH PLANS
// =============================================================================

func TestPlanApproval(t *testing.T) {
	c := newTestController(func(s *Settings) { s.DeepResearch = true })
	s := startStream(t, c.Dispatch(Submit{Text: "topic"}))
	c.Dispatch(deltaFrame(s.Turn, "", "Plan:\n<research_plan>Title: X</research_plan>"))
	assert.Equal(t, "Title: X", c.PendingPlan())
	c.Dispatch(StreamEnded{Turn: s.Turn})
	visibleBefore := len(visible(c))

	a := startStream(t, c.Dispatch(ApprovePlan{}))
	require.NotNil(t, a.Request.ApprovedPlan)
	assert.Equal(t, "Title: X", *a.Request.ApprovedPlan)
	last := a.Request.Messages[len(a.Request.Messages)-1]
	assert.Equal(t, content.PlanApprovedMessage, last.Text())
	assert.Equal(t, "", c.PendingPlan())
	assert.Equal(t, visibleBefore+1, len(visible(c)), "only the new assistant row is visible")
	assert.True(t, c.Rows()[1].View.PlanApproved())

	// Stopping the approval turn puts the plan back.
	c.Dispatch(Stop{})
	assert.Equal(t, "Title: X", c.PendingPlan())
	assert.False(t, c.Rows()[1].View.PlanApproved())
	assert.NoError(t, c.CheckRows())
}

func TestApproveEditedPlan(t *testing.T) {
	c := newTestController(func(s *Settings) { s.DeepResearch = true })
	assert.Equal(t, []Effect{Notice{Text: NoticeNoPlan}}, c.Dispatch(ApprovePlan{}))

	a := startStream(t, c.Dispatch(ApprovePlan{Plan: "edited"}))
	assert.Equal(t, "edited", *a.Request.ApprovedPlan)
}

// =============================================================================
// LOADING
// =============================================================================

func TestChatLoaded(t *testing.T) {
	c := newTestController()
	chat := &model.Chat{
		ChatMeta: model.ChatMeta{ID: "c9", Title: "Old", DeepResearchMode: true, LastModel: "Model One"},
		Messages: []model.Message{
			model.NewUserMessage("topic", ""),
			model.NewAssistantMessage("<research_plan>P1</research_plan>", "Model One"),
			model.NewUserMessage(content.PlanApprovedMessage, ""),
			model.NewAssistantMessage("report", "Model One"),
			model.NewUserMessage("again", ""),
			model.NewAssistantMessage("<research_plan>P2</research_plan>", "Model One"),
		},
	}
	assert.Nil(t, c.Dispatch(ChatLoaded{Chat: chat}))

	assert.Equal(t, "c9", c.ChatID())
	assert.Equal(t, "Old", c.Title())
	assert.True(t, c.Settings().DeepResearch)
	assert.NoError(t, c.CheckRows())

	rows := c.Rows()
	assert.True(t, rows[2].Hidden)
	assert.True(t, rows[1].View.PlanApproved())
	assert.Equal(t, "P2", c.PendingPlan())
}

func TestChatLoadedResumesRunningResearch(t *testing.T) {
	c := newTestController()
	chat := &model.Chat{
		ChatMeta:          model.ChatMeta{ID: "c9", DeepResearchMode: true},
		IsResearchRunning: true,
		Messages:          []model.Message{model.NewUserMessage("topic", "")},
	}
	s := startStream(t, c.Dispatch(ChatLoaded{Chat: chat}))
	assert.Equal(t, "c9", s.ResumeChatID)
	assert.Nil(t, s.Request)
	assert.True(t, c.IsGenerating())
	assert.NoError(t, c.CheckRows())
}

func TestTemporaryModeOnlyOnEmptyChat(t *testing.T) {
	c := newTestController()
	assert.Nil(t, c.Dispatch(SetMode{Mode: ModeTemporary, On: true}))
	assert.True(t, c.Settings().Temporary)
	c.Dispatch(SetMode{Mode: ModeTemporary, On: false})

	answer(t, c, "q", "a")
	assert.Equal(t, []Effect{Notice{Text: NoticeTemporary}}, c.Dispatch(SetMode{Mode: ModeTemporary, On: true}))

	c.Dispatch(NewChat{Temporary: true})
	assert.True(t, c.Settings().Temporary)
	assert.Equal(t, 0, c.transcript.Len())
}
