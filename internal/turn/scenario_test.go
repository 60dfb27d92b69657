// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package turn

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/luminous-tui/internal/content"
	"github.com/jeranaias/luminous-tui/internal/luminous"
	"github.com/jeranaias/luminous-tui/internal/model"
	"github.com/jeranaias/luminous-tui/internal/server"
	"github.com/jeranaias/luminous-tui/internal/sse"
)

// replay starts a replay server answering with script and returns it with a
// client pointed at it.
func replay(t *testing.T, script string) (*server.Server, *luminous.Client) {
	t.Helper()
	sc, err := server.ParseScript(script)
	require.NoError(t, err)
	srv := server.New().WithScript(sc)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
		ts.Close()
	})
	return srv, luminous.NewClientWithConfig(&luminous.ClientConfig{BaseURL: ts.URL})
}

func lastRow(c *Controller) Row {
	rows := c.Rows()
	return rows[len(rows)-1]
}

func TestScenarioPlainChat(t *testing.T) {
	srv, client := replay(t, `
[[response]]
[[response.steps]]
content = "Hi"
[[response.steps]]
content = " there"
`)
	c := newTestController()
	ctx := context.Background()

	ui := RunSync(ctx, c, client, client, Submit{Text: "hello"})
	assert.Empty(t, ui)
	assert.False(t, c.IsGenerating())

	msgs := c.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "Hi there", msgs[1].Text())
	assert.Equal(t, "Hi there", lastRow(c).View.Cleaned())
	assert.NoError(t, c.CheckRows())

	chat, err := srv.Store().GetChat(ctx, "chat-1")
	require.NoError(t, err)
	require.Len(t, chat.Messages, 2)
	assert.Equal(t, "hello", chat.Title)
	assert.Equal(t, "Hi there", chat.Messages[1].Text())
}

func TestScenarioReasoning(t *testing.T) {
	_, client := replay(t, `
[[response]]
[[response.steps]]
reasoning = "<think>step1</think>"
[[response.steps]]
content = "42"
`)
	c := newTestController()
	RunSync(context.Background(), c, client, client, Submit{Text: "answer?"})

	v := lastRow(c).View
	assert.Equal(t, "step1", v.Thoughts())
	assert.Equal(t, "42", v.Cleaned())
	assert.Equal(t, content.CombineReasoning("<think>step1</think>", "42"), c.Messages()[1].Text())
}

func TestScenarioResearchPlanApproval(t *testing.T) {
	srv, client := replay(t, `
[[response]]
mode = "research"
[[response.steps]]
content = "Here is my plan.\n<research_plan>Title: X</research_plan>"

[[response]]
mode = "approved"
[[response.steps]]
[response.steps.activity]
type = "search"
data = { step_id = "s1", query = "x" }
[[response.steps]]
content = "Report"
`)
	c := newTestController(func(s *Settings) { s.DeepResearch = true })
	ctx := context.Background()

	RunSync(ctx, c, client, client, Submit{Text: "research X"})
	require.Equal(t, "Title: X", c.PendingPlan())
	visibleUsers := countVisible(c, RowUser)

	RunSync(ctx, c, client, client, ApprovePlan{})
	assert.Equal(t, "", c.PendingPlan())
	assert.Equal(t, visibleUsers, countVisible(c, RowUser), "the approval turn is hidden")

	reqs := srv.Requests()
	require.Len(t, reqs, 2)
	require.NotNil(t, reqs[1].ApprovedPlan)
	assert.Equal(t, "Title: X", *reqs[1].ApprovedPlan)
	assert.Nil(t, reqs[1].Sampling)

	v := lastRow(c).View
	assert.Equal(t, "Report", v.Cleaned())
	require.NotNil(t, v.Feed())
	assert.Equal(t, 1, v.Feed().Len())
	assert.True(t, c.Rows()[1].View.PlanApproved())
	assert.NoError(t, c.CheckRows())

	require.Eventually(t, func() bool {
		chat, err := srv.Store().GetChat(ctx, "chat-1")
		return err == nil && len(chat.Messages) == 4
	}, 2*time.Second, 10*time.Millisecond)
}

func countVisible(c *Controller, kind RowKind) int {
	n := 0
	for _, r := range c.Rows() {
		if r.Kind == kind && !r.Hidden {
			n++
		}
	}
	return n
}

func TestScenarioRedaction(t *testing.T) {
	_, client := replay(t, `
[[response]]
[[response.steps]]
content = "bad **format"
[[response.steps]]
redact = true
redact_message = "Fixing formatting..."
[[response.steps]]
content = "good"
`)
	c := newTestController()
	s := NewSync(c, client, client, RunnerOptions{})
	defer s.Close()

	var sawRedact bool
	s.OnEvent = func(ev Event) {
		f, ok := ev.(FrameReceived)
		if !ok || f.Frame.Kind != sse.KindRedact {
			return
		}
		sawRedact = true
		v := c.Current()
		require.NotNil(t, v)
		assert.NotEmpty(t, v.Correcting())
		assert.Equal(t, "", v.Content())
	}
	s.Run(context.Background(), Submit{Text: "format please"})
	s.Runner.Wait()

	assert.True(t, sawRedact)
	v := lastRow(c).View
	assert.Equal(t, "", v.Correcting())
	assert.Equal(t, "good", v.Cleaned())
	assert.Equal(t, "good", c.Messages()[1].Text())
}

func TestScenarioStopTwice(t *testing.T) {
	srv, client := replay(t, `
[[response]]
[[response.steps]]
content = "partial"
[[response.steps]]
hold = true
[[response.steps]]
content = " never"
`)
	c := newTestController()
	s := NewSync(c, client, client, RunnerOptions{})
	defer s.Close()
	ctx := context.Background()

	s.Send(ctx, Submit{Text: "go"})
	_, ok := s.Step(ctx)
	require.True(t, ok)
	assert.Equal(t, "partial", c.Current().Content())

	s.Send(ctx, Stop{})
	s.Send(ctx, Stop{})
	s.Runner.Wait()

	rows := c.Rows()
	require.Len(t, rows, 1)
	assert.Equal(t, RowStopped, rows[0].Kind)
	assert.Empty(t, c.Messages())
	assert.False(t, c.IsGenerating())
	assert.Equal(t, 1, srv.StopCalls("chat-1"))

	chat, err := srv.Store().GetChat(ctx, "chat-1")
	require.NoError(t, err)
	assert.Empty(t, chat.Messages)
}

func TestScenarioRetryWithAnotherModel(t *testing.T) {
	srv, client := replay(t, `
[[response]]
[[response.steps]]
content = "You said: {{input}}"
`)
	c := newTestController()
	ctx := context.Background()
	RunSync(ctx, c, client, client, Submit{Text: "one"})
	ids := c.transcript.IDs()

	other := model.ModelInfo{ID: "m2", Name: "Model Two"}
	RunSync(ctx, c, client, client, Retry{ID: ids[1], Model: other})

	msgs := c.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "Model Two", msgs[1].Model)

	chat, err := srv.Store().GetChat(ctx, "chat-1")
	require.NoError(t, err)
	require.Len(t, chat.Messages, 2, "the retried turn replaces the old one")
	assert.Equal(t, "Model Two", chat.Messages[1].Model)
	assert.Equal(t, "Model Two", chat.LastModel)
}

func TestScenarioServerError(t *testing.T) {
	_, client := replay(t, `
[[response]]
[[response.steps]]
content = "half"
[[response.steps]]
error = "model crashed"
`)
	c := newTestController()
	RunSync(context.Background(), c, client, client, Submit{Text: "x"})

	assert.Equal(t, "model crashed", lastRow(c).View.Err())
	assert.Len(t, c.Messages(), 1)
	assert.NoError(t, c.CheckRows())
}
