// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/luminous-tui/internal/model"
	"github.com/jeranaias/luminous-tui/internal/server"
	"github.com/jeranaias/luminous-tui/internal/turn"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		input string
		name  string
		args  []string
	}{
		{"/help", "help", []string{}},
		{"  /Model  replay-small ", "model", []string{"replay-small"}},
		{"/rename My new title", "rename", []string{"My", "new", "title"}},
		{"/", "", nil},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			name, args := parseCommand(tt.input)
			assert.Equal(t, tt.name, name)
			if tt.args == nil {
				assert.Nil(t, args)
			} else {
				assert.Equal(t, tt.args, append([]string{}, args...))
			}
		})
	}
}

func TestCommandAliases(t *testing.T) {
	for _, c := range commands {
		assert.Same(t, commandByName[c.Name], findCommand(c.Name))
		for _, a := range c.Aliases {
			assert.Equal(t, c.Name, commandByName[a].Name, "alias %s", a)
		}
	}
}

func findCommand(name string) *Command {
	for i := range commands {
		if commands[i].Name == name {
			return &commands[i]
		}
	}
	return nil
}

func TestOnOff(t *testing.T) {
	on, err := onOff(nil, false)
	require.NoError(t, err)
	assert.True(t, on, "no argument toggles")

	on, err = onOff([]string{"OFF"}, true)
	require.NoError(t, err)
	assert.False(t, on)

	_, err = onOff([]string{"maybe"}, true)
	assert.Error(t, err)
}

func TestUnknownCommand(t *testing.T) {
	h := newHarness(t, echoScript)
	h.send("/frobnicate")
	assert.True(t, h.m.statusErr)
	assert.Contains(t, h.m.status, "/frobnicate")
	assert.Empty(t, h.m.input.Value())
	assert.Empty(t, h.srv.Requests(), "commands are never sent")
}

func TestModeCommands(t *testing.T) {
	h := newHarness(t, echoScript)

	h.send("/research")
	assert.True(t, h.m.ctrl.Settings().DeepResearch)
	assert.Equal(t, "Deep research on.", h.m.status)

	h.send("/research off")
	assert.False(t, h.m.ctrl.Settings().DeepResearch)

	h.send("/memory on")
	assert.True(t, h.m.ctrl.Settings().MemoryMode)

	h.send("/depth deep")
	assert.Equal(t, "deep", h.m.ctrl.Settings().SearchDepth)

	h.send("/depth sideways")
	assert.True(t, h.m.statusErr)
	assert.Equal(t, "deep", h.m.ctrl.Settings().SearchDepth)

	h.send("/research maybe")
	assert.True(t, h.m.statusErr)
	assert.False(t, h.m.ctrl.Settings().DeepResearch)

	h.send("/vision-model replay-vision")
	assert.Equal(t, "replay-vision", h.m.ctrl.Settings().VisionModel)
}

func TestTempCommand(t *testing.T) {
	h := newHarness(t, echoScript)
	h.send("/temp")
	assert.True(t, h.m.ctrl.Settings().Temporary)
	assert.Contains(t, h.view(), "temporary")

	h.send("hello")
	h.drain()
	assert.Empty(t, h.m.ctrl.ChatID(), "temporary chats have no id")
}

func (h *harness) view() string {
	return h.m.View()
}

func TestModelCommand(t *testing.T) {
	h := newHarness(t, echoScript)

	h.send("/model replay-vision")
	s := h.m.ctrl.Settings()
	assert.Equal(t, "replay-vision", s.Model.ID)
	assert.False(t, s.Model.Vision, "unknown until the list is loaded")

	// The picker is opened once the list arrives.
	cmd := h.send("/model")
	require.NotNil(t, cmd)
	h.run(cmd)
	require.Equal(t, StateModels, h.m.state)
	require.Len(t, h.m.models, 2)
	assert.Equal(t, "Replay Small", h.m.models[0].DisplayName())
	assert.Equal(t, 1, h.m.cursor, "cursor starts on the selected model")
	assert.True(t, h.m.ctrl.Settings().Model.Vision)
	assert.Contains(t, h.view(), "(selected)")

	h.runes("k")
	h.key(tea.KeyEnter)
	assert.Equal(t, StateChat, h.m.state)
	assert.Equal(t, "replay-small", h.m.ctrl.Settings().Model.ID)
	assert.Equal(t, "Model: Replay Small", h.m.status)
}

func TestModelsAutoSelect(t *testing.T) {
	h := newHarness(t, echoScript)
	h.m.ctrl.UpdateSettings(turn.Settings{Configured: true})

	h.update(modelsMsg{Models: []model.ModelInfo{{ID: "zeta"}, {ID: "alpha"}}})
	assert.Equal(t, "alpha", h.m.ctrl.Settings().Model.ID)
	assert.Equal(t, StateChat, h.m.state)
}

func TestModelsError(t *testing.T) {
	h := newHarness(t, echoScript)
	h.update(modelsMsg{Err: assert.AnError, Open: true})
	assert.True(t, h.m.statusErr)
	assert.Equal(t, StateChat, h.m.state)
}

func TestImageCommand(t *testing.T) {
	h := newHarness(t, echoScript)
	path := filepath.Join(t.TempDir(), "pic.png")
	png := append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 32)...)
	require.NoError(t, os.WriteFile(path, png, 0o600))

	h.send("/image " + path)
	assert.True(t, strings.HasPrefix(h.m.image, "data:image/png;base64,"))
	assert.Equal(t, "pic.png", h.m.imageName)
	assert.Contains(t, h.view(), "[image: pic.png]")

	// The default model cannot see images.
	h.send("what is this?")
	assert.False(t, h.m.ctrl.IsGenerating())
	assert.Equal(t, turn.NoticeVision, h.m.status)
	assert.NotEmpty(t, h.m.image, "the attachment is kept")

	h.send("/image clear")
	assert.Empty(t, h.m.image)
	assert.Empty(t, h.m.imageName)

	h.send("/image " + filepath.Join(t.TempDir(), "missing.png"))
	assert.True(t, h.m.statusErr)
}

func TestImageSentWithVisionModel(t *testing.T) {
	h := newHarness(t, echoScript)
	path := filepath.Join(t.TempDir(), "pic.png")
	require.NoError(t, os.WriteFile(path, append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 32)...), 0o600))

	h.update(modelsMsg{Models: server.DefaultModels})
	h.send("/model replay-vision")
	h.send("/image " + path)
	h.send("describe")
	require.True(t, h.m.ctrl.IsGenerating())
	assert.Empty(t, h.m.image, "the attachment goes with the message")
	h.drain()

	reqs := h.srv.Requests()
	require.Len(t, reqs, 1)
	last := reqs[0].Messages[len(reqs[0].Messages)-1]
	assert.True(t, last.Content.HasImage())
}

const planScript = `
[[response]]
mode = "research"
[[response.steps]]
content = "Here is my plan.\n<research_plan>Title: X</research_plan>"

[[response]]
mode = "approved"
[[response.steps]]
content = "Report"
`

func TestPlanEditApproval(t *testing.T) {
	h := newHarness(t, planScript)
	h.send("/research on")
	h.send("research X")
	h.drain()
	require.Equal(t, "Title: X", h.m.ctrl.PendingPlan())
	assert.Contains(t, h.view(), "approve plan")

	h.send("/plan edit")
	require.True(t, h.m.editingPlan)
	assert.Equal(t, "Title: X", h.m.input.Value())

	h.send("Title: Y")
	assert.False(t, h.m.editingPlan)
	require.True(t, h.m.ctrl.IsGenerating())
	h.drain()

	assert.Empty(t, h.m.ctrl.PendingPlan())
	assert.Equal(t, "Report", h.lastAssistant().View.Cleaned())
	reqs := h.srv.Requests()
	require.Len(t, reqs, 2)
	require.NotNil(t, reqs[1].ApprovedPlan)
	assert.Equal(t, "Title: Y", *reqs[1].ApprovedPlan)
}

func TestPlanEditCancelled(t *testing.T) {
	h := newHarness(t, planScript)
	h.send("/research on")
	h.send("research X")
	h.drain()

	h.send("/plan edit")
	h.key(tea.KeyEsc)
	assert.False(t, h.m.editingPlan)
	assert.Empty(t, h.m.input.Value())
	assert.Equal(t, "Title: X", h.m.ctrl.PendingPlan())
}

func TestApproveKey(t *testing.T) {
	h := newHarness(t, planScript)
	h.send("/research on")
	h.send("research X")
	h.drain()

	h.key(tea.KeyCtrlA)
	require.True(t, h.m.ctrl.IsGenerating())
	h.drain()
	assert.Equal(t, "Title: X", *h.srv.Requests()[1].ApprovedPlan)
}

func TestPlanEditWithoutPlan(t *testing.T) {
	h := newHarness(t, echoScript)
	h.send("/plan edit")
	assert.False(t, h.m.editingPlan)
	assert.Equal(t, turn.NoticeNoPlan, h.m.status)
}

func TestExportCommand(t *testing.T) {
	h := newHarness(t, echoScript)

	cmd := h.send("/export json")
	require.NotNil(t, cmd)
	done, ok := cmd().(doneMsg)
	require.True(t, ok)
	assert.EqualError(t, done.Err, "nothing to export yet")

	h.send("hello")
	h.drain()

	cmd = h.send("/export json")
	require.NotNil(t, cmd)
	done = cmd().(doneMsg)
	require.NoError(t, done.Err)
	path := strings.TrimPrefix(done.Status, "Exported to ")
	assert.Equal(t, h.m.opts.ExportDir, filepath.Dir(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Hi there")

	h.update(done)
	assert.Equal(t, done.Status, h.m.status)

	assert.Nil(t, h.send("/export pdf"))
	assert.True(t, h.m.statusErr)
}

func TestChatPicker(t *testing.T) {
	h := newHarness(t, echoScript)
	h.send("hello")
	h.drain()
	id := h.m.ctrl.ChatID()
	h.m.runner.Wait()

	h.send("/new")
	assert.Empty(t, h.m.ctrl.Messages())

	cmd := h.send("/chats")
	require.Equal(t, StateChats, h.m.state)
	h.run(cmd)
	require.Len(t, h.m.chats, 1)
	assert.Equal(t, id, h.m.chats[0].ID)
	assert.Contains(t, h.view(), "hello")

	cmd = h.key(tea.KeyEnter)
	assert.Equal(t, StateChat, h.m.state)
	h.run(cmd)

	assert.Equal(t, id, h.m.ctrl.ChatID())
	assert.Equal(t, "hello", h.m.ctrl.Title())
	require.Len(t, h.m.ctrl.Messages(), 2)
	assert.Contains(t, h.view(), "Hi there")
}

func TestDeleteChatFromPicker(t *testing.T) {
	h := newHarness(t, echoScript)
	h.send("hello")
	h.drain()
	h.m.runner.Wait()

	h.run(h.send("/chats"))
	require.Len(t, h.m.chats, 1)

	cmd := h.runes("d")
	require.NotNil(t, cmd)
	assert.Empty(t, h.m.ctrl.Messages(), "deleting the open chat starts a new one")

	done := cmd().(doneMsg)
	require.NoError(t, done.Err)
	assert.True(t, done.Refresh)
	h.run(h.update(done))
	assert.Empty(t, h.m.chats)
}

func TestRenameCommand(t *testing.T) {
	h := newHarness(t, echoScript)
	h.send("hello")
	h.drain()
	h.m.runner.Wait()

	cmd := h.send("/rename Better title")
	assert.Equal(t, "Better title", h.m.ctrl.Title())
	require.NotNil(t, cmd)
	done := cmd().(doneMsg)
	require.NoError(t, done.Err)

	chat, err := h.srv.Store().GetChat(h.m.ctx, h.m.ctrl.ChatID())
	require.NoError(t, err)
	assert.Equal(t, "Better title", chat.Title)
}

func TestLoadCommandUnknownChat(t *testing.T) {
	h := newHarness(t, echoScript)
	h.run(h.send("/load nope"))
	assert.True(t, h.m.statusErr)
	assert.True(t, strings.HasPrefix(h.m.status, "Load:"))
}

func TestResetMemoryCommand(t *testing.T) {
	h := newHarness(t, echoScript)
	cmd := h.send("/reset-memory")
	require.NotNil(t, cmd)
	done := cmd().(doneMsg)
	require.NoError(t, done.Err)
	assert.Equal(t, "Memory cleared.", done.Status)
}

func TestQuitCommand(t *testing.T) {
	h := newHarness(t, echoScript)
	cmd := h.send("/quit")
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}
