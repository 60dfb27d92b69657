// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/luminous-tui/internal/config"
	"github.com/jeranaias/luminous-tui/internal/export"
	"github.com/jeranaias/luminous-tui/internal/model"
	"github.com/jeranaias/luminous-tui/internal/storage"
	"github.com/jeranaias/luminous-tui/internal/turn"
	"github.com/jeranaias/luminous-tui/internal/util"
)

// =============================================================================
// COMMAND HANDLER REGISTRY
// =============================================================================

// CommandHandler handles one slash command. It may return a command for
// work that leaves the Update loop.
type CommandHandler func(m *Model, args []string) tea.Cmd

// Command describes a slash command for dispatch and /help.
type Command struct {
	Name    string
	Aliases []string
	Args    string
	Desc    string
	Handler CommandHandler
}

// commands is filled in init since /help reads it.
var (
	commands      []Command
	commandByName map[string]*Command
)

func init() {
	commands = []Command{
		{Name: "help", Aliases: []string{"h", "?"}, Desc: "Show commands and keys", Handler: handleHelpCommand},
		{Name: "new", Aliases: []string{"n"}, Desc: "Start a new chat", Handler: handleNewCommand},
		{Name: "temp", Desc: "Start a temporary chat that is never saved", Handler: handleTempCommand},
		{Name: "chats", Aliases: []string{"list"}, Desc: "Browse saved chats", Handler: handleChatsCommand},
		{Name: "load", Args: "<id>", Desc: "Open a saved chat", Handler: handleLoadCommand},
		{Name: "rename", Args: "<title>", Desc: "Rename the current chat", Handler: handleRenameCommand},
		{Name: "delete-chat", Args: "[id]", Desc: "Delete a chat (default: the current one)", Handler: handleDeleteChatCommand},
		{Name: "clear-chats", Desc: "Delete every saved chat", Handler: handleClearChatsCommand},
		{Name: "model", Aliases: []string{"m"}, Args: "[id]", Desc: "Select a model or list them", Handler: handleModelCommand},
		{Name: "research", Args: "[on|off]", Desc: "Toggle deep research", Handler: handleResearchCommand},
		{Name: "memory", Args: "[on|off]", Desc: "Toggle memory mode", Handler: handleMemoryCommand},
		{Name: "depth", Args: "<regular|deep>", Desc: "Set the research search depth", Handler: handleDepthCommand},
		{Name: "vision-model", Args: "<id>", Desc: "Set the model research uses for images", Handler: handleVisionModelCommand},
		{Name: "reset-memory", Desc: "Clear the server's memory", Handler: handleResetMemoryCommand},
		{Name: "image", Aliases: []string{"img"}, Args: "<path|clear>", Desc: "Attach an image to the next message", Handler: handleImageCommand},
		{Name: "plan", Args: "edit", Desc: "Edit the pending research plan", Handler: handlePlanCommand},
		{Name: "approve", Desc: "Approve the pending research plan", Handler: handleApproveCommand},
		{Name: "edit", Desc: "Edit the last message", Handler: handleEditCommand},
		{Name: "retry", Aliases: []string{"r"}, Args: "[model]", Desc: "Regenerate the last answer", Handler: handleRetryCommand},
		{Name: "delete", Desc: "Delete the last turn", Handler: handleDeleteCommand},
		{Name: "stop", Desc: "Stop the running turn", Handler: handleStopCommand},
		{Name: "thoughts", Aliases: []string{"t"}, Desc: "Expand or collapse thoughts", Handler: handleThoughtsCommand},
		{Name: "export", Aliases: []string{"e"}, Args: "[md|json|html]", Desc: "Export the chat to a file", Handler: handleExportCommand},
		{Name: "copy", Desc: "Copy the last answer", Handler: handleCopyCommand},
		{Name: "quit", Aliases: []string{"q", "exit"}, Desc: "Quit", Handler: handleQuitCommand},
	}
	commandByName = make(map[string]*Command)
	for i := range commands {
		c := &commands[i]
		commandByName[c.Name] = c
		for _, a := range c.Aliases {
			commandByName[a] = c
		}
	}
}

// parseCommand splits "/name args..." into the lowercased name and args.
func parseCommand(input string) (string, []string) {
	fields := strings.Fields(strings.TrimPrefix(strings.TrimSpace(input), "/"))
	if len(fields) == 0 {
		return "", nil
	}
	return strings.ToLower(fields[0]), fields[1:]
}

// runCommand executes a slash command.
func (m *Model) runCommand(input string) tea.Cmd {
	name, args := parseCommand(input)
	cmd, ok := commandByName[name]
	if !ok {
		m.setError(fmt.Sprintf("Unknown command /%s. Type /help for the list.", name))
		return nil
	}
	return cmd.Handler(m, args)
}

// onOff parses an optional on/off argument; no argument toggles current.
func onOff(args []string, current bool) (bool, error) {
	if len(args) == 0 {
		return !current, nil
	}
	switch strings.ToLower(args[0]) {
	case "on", "true", "yes", "1":
		return true, nil
	case "off", "false", "no", "0":
		return false, nil
	}
	return current, fmt.Errorf("expected on or off, got %q", args[0])
}

func enabled(on bool) string {
	if on {
		return "on"
	}
	return "off"
}

// =============================================================================
// COMMAND HANDLERS
// =============================================================================

func handleHelpCommand(m *Model, _ []string) tea.Cmd {
	m.state = StateHelp
	return nil
}

func handleQuitCommand(_ *Model, _ []string) tea.Cmd {
	return tea.Quit
}

func handleNewCommand(m *Model, _ []string) tea.Cmd {
	m.newChat(false)
	return nil
}

func handleTempCommand(m *Model, _ []string) tea.Cmd {
	m.newChat(true)
	return nil
}

func handleChatsCommand(m *Model, _ []string) tea.Cmd {
	return m.openChats()
}

func handleLoadCommand(m *Model, args []string) tea.Cmd {
	if len(args) == 0 {
		m.setError("Usage: /load <id>")
		return nil
	}
	return m.fetchChat(args[0])
}

func handleRenameCommand(m *Model, args []string) tea.Cmd {
	title := strings.TrimSpace(strings.Join(args, " "))
	if title == "" {
		m.setError("Usage: /rename <title>")
		return nil
	}
	m.dispatch(turn.Renamed{Title: title})
	id := m.ctrl.ChatID()
	if id == "" || m.ctrl.Settings().Temporary || m.opts.Store == nil {
		m.setStatus("Renamed.")
		return nil
	}
	store := m.opts.Store
	return m.background(func(ctx context.Context) doneMsg {
		err := store.PatchChat(ctx, id, model.ChatPatch{Title: &title})
		return doneMsg{Status: "Renamed.", Err: err, Refresh: true}
	})
}

func handleDeleteChatCommand(m *Model, args []string) tea.Cmd {
	id := m.ctrl.ChatID()
	if len(args) > 0 {
		id = args[0]
	}
	if id == "" {
		m.setError("Nothing to delete.")
		return nil
	}
	return m.deleteChat(id)
}

func handleClearChatsCommand(m *Model, _ []string) tea.Cmd {
	if m.opts.Store == nil {
		return nil
	}
	if m.ctrl.IsGenerating() {
		m.setError("Stop the running turn first.")
		return nil
	}
	m.newChat(false)
	store := m.opts.Store
	return m.background(func(ctx context.Context) doneMsg {
		return doneMsg{Status: "All chats deleted.", Err: store.ClearChats(ctx), Refresh: true}
	})
}

func handleModelCommand(m *Model, args []string) tea.Cmd {
	if len(args) == 0 {
		if len(m.models) > 0 {
			m.openModels()
			return nil
		}
		return m.fetchModels(true)
	}
	want := strings.Join(args, " ")
	for _, info := range m.models {
		if strings.EqualFold(info.ID, want) || strings.EqualFold(info.Name, want) {
			m.selectModel(info)
			return nil
		}
	}
	m.selectModel(model.ModelInfo{ID: want})
	return nil
}

func handleResearchCommand(m *Model, args []string) tea.Cmd {
	on, err := onOff(args, m.ctrl.Settings().DeepResearch)
	if err != nil {
		m.setError(err.Error())
		return nil
	}
	m.dispatch(turn.SetMode{Mode: turn.ModeDeepResearch, On: on})
	m.setStatus("Deep research " + enabled(on) + ".")
	return nil
}

func handleMemoryCommand(m *Model, args []string) tea.Cmd {
	on, err := onOff(args, m.ctrl.Settings().MemoryMode)
	if err != nil {
		m.setError(err.Error())
		return nil
	}
	m.dispatch(turn.SetMode{Mode: turn.ModeMemory, On: on})
	m.setStatus("Memory " + enabled(on) + ".")
	return nil
}

func handleDepthCommand(m *Model, args []string) tea.Cmd {
	if len(args) == 0 || (args[0] != "regular" && args[0] != "deep") {
		m.setError("Usage: /depth <regular|deep>")
		return nil
	}
	m.dispatch(turn.SetSearchDepth{Depth: args[0]})
	m.setStatus("Search depth: " + args[0] + ".")
	return nil
}

func handleVisionModelCommand(m *Model, args []string) tea.Cmd {
	id := strings.Join(args, " ")
	m.dispatch(turn.SetVisionModel{Model: id})
	if id == "" {
		m.setStatus("Research vision model cleared.")
	} else {
		m.setStatus("Research vision model: " + id + ".")
	}
	return nil
}

func handleResetMemoryCommand(m *Model, _ []string) tea.Cmd {
	if m.opts.Memory == nil {
		m.setError("This backend has no memory to reset.")
		return nil
	}
	mem := m.opts.Memory
	return m.background(func(ctx context.Context) doneMsg {
		return doneMsg{Status: "Memory cleared.", Err: mem.ResetMemory(ctx)}
	})
}

func handleImageCommand(m *Model, args []string) tea.Cmd {
	path := strings.TrimSpace(strings.Join(args, " "))
	switch path {
	case "":
		m.setError("Usage: /image <path|clear>")
		return nil
	case "clear":
		m.image, m.imageName = "", ""
		m.setStatus("Attachment removed.")
		return nil
	}
	url, err := util.ImageDataURL(storage.ExpandHome(path))
	if err != nil {
		m.setError("Image: " + err.Error())
		return nil
	}
	m.image, m.imageName = url, filepath.Base(path)
	m.setStatus("Attached " + m.imageName + ".")
	return nil
}

func handlePlanCommand(m *Model, args []string) tea.Cmd {
	if len(args) == 0 || args[0] != "edit" {
		m.setError("Usage: /plan edit")
		return nil
	}
	plan := m.ctrl.PendingPlan()
	if plan == "" || m.ctrl.IsGenerating() {
		m.setError(turn.NoticeNoPlan)
		return nil
	}
	m.editingPlan = true
	m.input.SetValue(strings.TrimSpace(plan))
	m.input.CursorEnd()
	m.setStatus("Editing plan: enter approves, esc cancels.")
	return nil
}

func handleApproveCommand(m *Model, _ []string) tea.Cmd {
	m.approve("")
	return nil
}

func handleEditCommand(m *Model, _ []string) tea.Cmd {
	m.editLast()
	return nil
}

func handleRetryCommand(m *Model, args []string) tea.Cmd {
	var info model.ModelInfo
	if len(args) > 0 {
		want := strings.Join(args, " ")
		info = model.ModelInfo{ID: want}
		for _, mi := range m.models {
			if strings.EqualFold(mi.ID, want) || strings.EqualFold(mi.Name, want) {
				info = mi
				break
			}
		}
		if m.cfg.IsVisionModel(info.ID) {
			info.Vision = true
		}
	}
	m.retryLast(info)
	return nil
}

func handleDeleteCommand(m *Model, _ []string) tea.Cmd {
	m.deleteLast()
	return nil
}

func handleStopCommand(m *Model, _ []string) tea.Cmd {
	if m.ctrl.IsGenerating() {
		m.stop()
	}
	return nil
}

func handleThoughtsCommand(m *Model, _ []string) tea.Cmd {
	m.toggleThoughts()
	return nil
}

func handleExportCommand(m *Model, args []string) tea.Cmd {
	format := "md"
	if len(args) > 0 {
		format = args[0]
	}
	if _, err := export.ForFormat(format, nil); err != nil {
		m.setError(err.Error())
		return nil
	}
	chat := m.ctrl.Snapshot()
	opts := export.DefaultOptions()
	if m.opts.ExportDir != "" {
		opts.OutputDir = m.opts.ExportDir
	}
	if m.cfg.UI.Theme == "light" {
		opts.Theme = "light"
	}
	opts.IncludeThoughts = m.cfg.UI.ShowThoughts
	return func() tea.Msg {
		path, err := export.Export(&chat, format, opts)
		if err != nil {
			if errors.Is(err, export.ErrEmptyChat) {
				return doneMsg{Err: errors.New("nothing to export yet")}
			}
			return doneMsg{Err: err}
		}
		return doneMsg{Status: "Exported to " + path}
	}
}

func handleCopyCommand(m *Model, _ []string) tea.Cmd {
	return m.copyAnswer()
}

// =============================================================================
// BACKGROUND COMMANDS
// =============================================================================

// background runs fn off the Update loop with the request timeout.
func (m *Model) background(fn func(ctx context.Context) doneMsg) tea.Cmd {
	parent := m.ctx
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(parent, requestTimeout)
		defer cancel()
		return fn(ctx)
	}
}

func (m *Model) fetchChats() tea.Cmd {
	store, parent := m.opts.Store, m.ctx
	if store == nil {
		return nil
	}
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(parent, requestTimeout)
		defer cancel()
		chats, err := store.ListChats(ctx)
		return chatsMsg{Chats: chats, Err: err}
	}
}

func (m *Model) fetchChat(id string) tea.Cmd {
	store, parent := m.opts.Store, m.ctx
	if store == nil {
		return nil
	}
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(parent, requestTimeout)
		defer cancel()
		chat, err := store.GetChat(ctx, id)
		return chatMsg{Chat: chat, Err: err}
	}
}

// fetchModels lists the models; open shows the picker afterwards.
func (m *Model) fetchModels(open bool) tea.Cmd {
	src, parent := m.opts.Models, m.ctx
	if src == nil {
		m.setError("This backend does not list models.")
		return nil
	}
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(parent, requestTimeout)
		defer cancel()
		models, err := src.ListModels(ctx)
		return modelsMsg{Models: models, Err: err, Open: open}
	}
}

func (m *Model) openChats() tea.Cmd {
	if m.opts.Store == nil {
		m.setError("No chat storage configured.")
		return nil
	}
	m.state = StateChats
	m.cursor = 0
	return m.fetchChats()
}

func (m *Model) openModels() {
	m.state = StateModels
	m.cursor = 0
	current := m.ctrl.Settings().Model.ID
	for i, info := range m.models {
		if info.ID == current {
			m.cursor = i
		}
	}
}

func (m *Model) deleteChat(id string) tea.Cmd {
	if m.opts.Store == nil {
		return nil
	}
	if id == m.ctrl.ChatID() {
		if m.ctrl.IsGenerating() {
			m.setError("Stop the running turn first.")
			return nil
		}
		m.newChat(false)
	}
	store := m.opts.Store
	return m.background(func(ctx context.Context) doneMsg {
		return doneMsg{Status: "Chat deleted.", Err: store.DeleteChat(ctx, id), Refresh: true}
	})
}

func (m *Model) copyAnswer() tea.Cmd {
	text := m.lastAnswer()
	if text == "" {
		m.setError("No answer to copy.")
		return nil
	}
	return func() tea.Msg {
		if err := clipboard.WriteAll(text); err != nil {
			return doneMsg{Err: fmt.Errorf("copy: %w", err)}
		}
		return doneMsg{Status: "Copied last answer."}
	}
}

// watchConfig starts the config watcher. Reloads arrive through the pump.
func (m *Model) watchConfig() tea.Cmd {
	ctx, path, p, logger := m.ctx, m.opts.ConfigPath, m.pump, m.logger
	return func() tea.Msg {
		err := config.Watch(ctx, path, config.DefaultWatchDebounce, func(cfg *config.Config, err error) {
			p.post(configMsg{Config: cfg, Err: err})
		})
		if err != nil {
			logger.Warn("config watch failed", "path", path, "error", err)
		}
		return nil
	}
}

// =============================================================================
// RESULT HANDLERS
// =============================================================================

func (m Model) handleChats(msg chatsMsg) (tea.Model, tea.Cmd) {
	if msg.Err != nil {
		m.setError("Chats: " + msg.Err.Error())
		m.state = StateChat
		return m, nil
	}
	m.chats = msg.Chats
	if m.cursor >= len(m.chats) {
		m.cursor = max(len(m.chats)-1, 0)
	}
	return m, nil
}

func (m Model) handleChat(msg chatMsg) (tea.Model, tea.Cmd) {
	if msg.Err != nil {
		m.setError("Load: " + msg.Err.Error())
		return m, nil
	}
	if m.ctrl.IsGenerating() {
		m.setError("Stop the running turn first.")
		return m, nil
	}
	m.dispatch(turn.ChatLoaded{Chat: msg.Chat})
	m.state = StateChat
	m.editingPlan = false
	m.expanded = false
	m.setStatus("Opened " + m.ctrl.Title() + ".")
	m.follow = true
	m.refresh()
	return m, nil
}

func (m Model) handleModels(msg modelsMsg) (tea.Model, tea.Cmd) {
	if msg.Err != nil {
		m.setError("Models: " + msg.Err.Error())
		return m, nil
	}
	m.models = append([]model.ModelInfo(nil), msg.Models...)
	sort.SliceStable(m.models, func(i, j int) bool {
		return strings.ToLower(m.models[i].DisplayName()) < strings.ToLower(m.models[j].DisplayName())
	})

	current := m.ctrl.Settings().Model
	switch {
	case current.ID != "":
		for _, info := range m.models {
			if info.ID == current.ID {
				m.selectModel(info)
				m.status = ""
				break
			}
		}
	case len(m.models) > 0:
		m.selectModel(m.models[0])
		m.status = ""
	}

	if msg.Open {
		if len(m.models) == 0 {
			m.setError("The server offers no models.")
			return m, nil
		}
		m.openModels()
	}
	return m, nil
}
