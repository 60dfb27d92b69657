// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/luminous-tui/internal/config"
	"github.com/jeranaias/luminous-tui/internal/logging"
	"github.com/jeranaias/luminous-tui/internal/model"
	"github.com/jeranaias/luminous-tui/internal/render"
	"github.com/jeranaias/luminous-tui/internal/turn"
	"github.com/jeranaias/luminous-tui/internal/ui/styles"
)

// requestTimeout bounds the list, load and model calls of the view.
const requestTimeout = 15 * time.Second

// State is the screen the view shows.
type State int

const (
	StateChat State = iota
	StateChats
	StateModels
	StateHelp
)

// ModelSource lists the models the server offers.
type ModelSource interface {
	ListModels(ctx context.Context) ([]model.ModelInfo, error)
}

// MemoryResetter clears the server's long term memory.
type MemoryResetter interface {
	ResetMemory(ctx context.Context) error
}

// Options configures a chat view.
type Options struct {
	Config *config.Config

	// ConfigPath is watched for edits when ui.auto_reload is set.
	ConfigPath string

	Backend turn.Backend
	Store   turn.ChatStore
	Models  ModelSource
	Memory  MemoryResetter

	// PersistTurns saves every finished turn through Store; set for local
	// storage.
	PersistTurns bool

	// ChatID is opened on start.
	ChatID string

	// ExportDir receives /export files; defaults to the working directory.
	ExportDir string

	Theme  *styles.Theme
	Logger *slog.Logger
}

// =============================================================================
// MODEL
// =============================================================================

// Model is the Bubble Tea model of the chat view.
type Model struct {
	opts   Options
	cfg    *config.Config
	theme  *styles.Theme
	keys   KeyMap
	logger *slog.Logger

	ctrl     *turn.Controller
	runner   *turn.Runner
	pump     *pump
	renderer *render.Renderer

	viewport viewport.Model
	input    textarea.Model
	spinner  spinner.Model
	help     help.Model

	state  State
	width  int
	height int
	ready  bool

	// pickers
	chats  []model.ChatMeta
	models []model.ModelInfo
	cursor int

	// pending attachment
	image     string
	imageName string

	// editingPlan routes the next submit to plan approval.
	editingPlan bool

	status    string
	statusErr bool
	expanded  bool
	follow    bool
	repaint   throttle

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a chat view.
func New(opts Options) Model {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	theme := opts.Theme
	if theme == nil {
		theme = themeFor(cfg.UI.Theme)
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.L()
	}
	logger = logger.With("component", "ui")

	p := newPump()
	ctx, cancel := context.WithCancel(context.Background())

	runner := turn.NewRunner(opts.Backend, opts.Store, p.send, turn.RunnerOptions{
		PersistTurns: opts.PersistTurns,
		OnSync:       func(c model.Chat) { p.post(syncedMsg{Chat: c}) },
		Logger:       logger,
	})

	renderer := render.NewRenderer(theme, formatterFor(cfg), 80)
	renderer.HideUsage = !cfg.UI.ShowUsage

	ta := textarea.New()
	ta.Placeholder = "Message Luminous... (/help for commands)"
	ta.Prompt = "> "
	ta.ShowLineNumbers = false
	ta.CharLimit = 0
	ta.SetHeight(3)
	ta.KeyMap.InsertNewline = key.NewBinding(key.WithKeys("alt+enter", "ctrl+j"))
	ta.Focus()

	sp := spinner.New(spinner.WithSpinner(styles.LineSpinner.Bubble()))

	h := help.New()
	h.ShortSeparator = "  "

	m := Model{
		opts:     opts,
		cfg:      cfg,
		theme:    theme,
		keys:     DefaultKeyMap(),
		logger:   logger,
		ctrl:     turn.NewController(turn.SettingsFromConfig(cfg)),
		runner:   runner,
		pump:     p,
		renderer: renderer,
		viewport: viewport.New(80, 20),
		input:    ta,
		spinner:  sp,
		help:     h,
		ctx:      ctx,
		cancel:   cancel,
	}
	m.refresh()
	return m
}

// themeFor returns the theme named by ui.theme.
func themeFor(name string) *styles.Theme {
	if name == "plain" {
		return styles.PlainTheme()
	}
	return styles.NewTheme()
}

// formatterFor returns the markdown formatter for the config.
func formatterFor(cfg *config.Config) render.Formatter {
	if !cfg.UI.Markdown {
		return render.PlainFormatter{}
	}
	switch cfg.UI.Theme {
	case "plain":
		return render.PlainFormatter{}
	case "auto":
		return render.NewGlamourFormatter("")
	default:
		return render.NewGlamourFormatter(cfg.UI.Theme)
	}
}

// Init starts the event pump, the spinner and the initial loads.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{textarea.Blink, m.spinner.Tick, m.pump.next()}
	if m.opts.Models != nil {
		cmds = append(cmds, m.fetchModels(false))
	}
	if m.opts.ChatID != "" && m.opts.Store != nil {
		cmds = append(cmds, m.fetchChat(m.opts.ChatID))
	}
	if m.opts.ConfigPath != "" && m.cfg.UI.AutoReload {
		cmds = append(cmds, m.watchConfig())
	}
	return tea.Batch(cmds...)
}

// Close cancels running streams and waits for queued saves. Call it after
// the program exits.
func (m Model) Close() {
	m.cancel()
	m.pump.close()
	m.runner.Close()
}

// Controller returns the turn controller of the view.
func (m Model) Controller() *turn.Controller { return m.ctrl }

// =============================================================================
// UPDATE
// =============================================================================

// Update handles Bubble Tea messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.handleResize(msg)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.MouseMsg:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd

	case turnEventMsg:
		return m.handleTurnEvent(msg)

	case repaintMsg:
		if m.repaint.fire() {
			m.refresh()
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		if !m.ctrl.IsGenerating() {
			return m, cmd
		}
		m.renderer.Spinner = m.spinner.View()
		return m, tea.Batch(cmd, m.repaint.mark())

	case chatsMsg:
		return m.handleChats(msg)

	case chatMsg:
		return m.handleChat(msg)

	case modelsMsg:
		return m.handleModels(msg)

	case doneMsg:
		if msg.Err != nil {
			m.setError(msg.Err.Error())
		} else if msg.Status != "" {
			m.setStatus(msg.Status)
		}
		if msg.Refresh && m.state == StateChats {
			return m, m.fetchChats()
		}
		return m, nil

	case syncedMsg:
		if m.state == StateChats {
			return m, tea.Batch(m.pump.next(), m.fetchChats())
		}
		return m, m.pump.next()

	case configMsg:
		m.applyConfig(msg)
		return m, m.pump.next()
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) handleResize(msg tea.WindowSizeMsg) {
	m.width, m.height = msg.Width, msg.Height
	m.theme.SetSize(msg.Width, msg.Height)
	m.help.Width = msg.Width

	m.input.SetWidth(msg.Width - 2)
	vpHeight := msg.Height - headerHeight - m.input.Height() - statusHeight - 2
	if vpHeight < 3 {
		vpHeight = 3
	}
	m.viewport.Width = msg.Width
	m.viewport.Height = vpHeight
	m.renderer.Width = msg.Width
	m.ready = true
	m.refresh()
}

// handleTurnEvent applies an event from a stream goroutine. Frames repaint
// through the throttle; everything else repaints at once.
func (m Model) handleTurnEvent(msg turnEventMsg) (tea.Model, tea.Cmd) {
	cmds := []tea.Cmd{m.pump.next()}
	m.dispatch(msg.Event)
	if _, ok := msg.Event.(turn.FrameReceived); ok {
		cmds = append(cmds, m.repaint.mark())
	} else {
		m.refresh()
	}
	return m, tea.Batch(cmds...)
}

// =============================================================================
// KEY HANDLING
// =============================================================================

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.state {
	case StateChats, StateModels:
		return m.handlePickerKey(msg)
	case StateHelp:
		m.state = StateChat
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		if msg.String() == "ctrl+c" && m.ctrl.IsGenerating() {
			m.stop()
			return m, nil
		}
		return m, tea.Quit

	case key.Matches(msg, m.keys.Stop):
		switch {
		case m.ctrl.IsGenerating():
			m.stop()
		case m.editingPlan:
			m.editingPlan = false
			m.input.Reset()
			m.setStatus("Plan edit cancelled.")
		default:
			m.status = ""
		}
		return m, nil

	case key.Matches(msg, m.keys.Submit):
		return m, m.submit()

	case key.Matches(msg, m.keys.Approve):
		m.approve("")
		return m, nil

	case key.Matches(msg, m.keys.Thoughts):
		m.toggleThoughts()
		return m, nil

	case key.Matches(msg, m.keys.Retry):
		m.retryLast(model.ModelInfo{})
		return m, nil

	case key.Matches(msg, m.keys.Edit):
		m.editLast()
		return m, nil

	case key.Matches(msg, m.keys.NewChat):
		m.newChat(false)
		return m, nil

	case key.Matches(msg, m.keys.Chats):
		return m, m.openChats()

	case key.Matches(msg, m.keys.Copy):
		return m, m.copyAnswer()

	case key.Matches(msg, m.keys.PageUp):
		m.viewport.ViewUp()
		return m, nil

	case key.Matches(msg, m.keys.PageDown):
		m.viewport.ViewDown()
		return m, nil

	case key.Matches(msg, m.keys.Help):
		m.state = StateHelp
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) handlePickerKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	n := len(m.chats)
	if m.state == StateModels {
		n = len(m.models)
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Back):
		m.state = StateChat
	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(msg, m.keys.Down):
		if m.cursor < n-1 {
			m.cursor++
		}
	case key.Matches(msg, m.keys.Select):
		if m.cursor >= n {
			return m, nil
		}
		picker := m.state
		m.state = StateChat
		if picker == StateModels {
			m.selectModel(m.models[m.cursor])
			return m, nil
		}
		return m, m.fetchChat(m.chats[m.cursor].ID)
	case key.Matches(msg, m.keys.Delete):
		if m.state == StateChats && m.cursor < n {
			return m, m.deleteChat(m.chats[m.cursor].ID)
		}
	}
	return m, nil
}

// =============================================================================
// ACTIONS
// =============================================================================

// dispatch sends ev to the controller and performs the effects.
func (m *Model) dispatch(ev turn.Event) {
	effects := m.runner.Perform(m.ctx, m.ctrl.Dispatch(ev))
	for _, eff := range effects {
		switch e := eff.(type) {
		case turn.Notice:
			m.setError(e.Text)
		case turn.RestoreInput:
			m.input.SetValue(e.Text)
			m.input.CursorEnd()
			m.image = e.Image
			m.imageName = ""
			if e.Image != "" {
				m.imageName = "image"
			}
		}
	}
}

// submit sends the input box. Slash commands are run instead.
func (m *Model) submit() tea.Cmd {
	raw := m.input.Value()
	text := strings.TrimSpace(raw)

	if m.editingPlan {
		if m.ctrl.IsGenerating() {
			return nil
		}
		m.editingPlan = false
		m.input.Reset()
		m.approve(text)
		return nil
	}
	if strings.HasPrefix(text, "/") {
		m.input.Reset()
		return m.runCommand(text)
	}
	if text == "" && m.image == "" {
		return nil
	}
	if m.ctrl.IsGenerating() {
		return nil
	}

	m.status = ""
	m.dispatch(turn.Submit{Text: text, Image: m.image})
	if m.ctrl.IsGenerating() {
		m.input.Reset()
		m.image, m.imageName = "", ""
		m.follow = true
	}
	m.refresh()
	return nil
}

func (m *Model) stop() {
	m.dispatch(turn.Stop{})
	m.setStatus("Generation stopped.")
	m.refresh()
}

func (m *Model) approve(plan string) {
	if m.ctrl.IsGenerating() {
		return
	}
	m.dispatch(turn.ApprovePlan{Plan: plan})
	m.follow = true
	m.refresh()
}

func (m *Model) newChat(temporary bool) {
	if m.ctrl.IsGenerating() {
		m.setError("Stop the running turn first.")
		return
	}
	m.dispatch(turn.NewChat{Temporary: temporary})
	m.input.Reset()
	m.image, m.imageName = "", ""
	m.editingPlan = false
	if temporary {
		m.setStatus("Temporary chat: nothing is saved.")
	} else {
		m.status = ""
	}
	m.refresh()
}

func (m *Model) selectModel(info model.ModelInfo) {
	if m.cfg.IsVisionModel(info.ID) {
		info.Vision = true
	}
	m.dispatch(turn.SetModel{Model: info})
	m.setStatus("Model: " + info.DisplayName())
}

// lastRow returns the last visible transcript row of kind, or false.
func (m *Model) lastRow(kinds ...turn.RowKind) (turn.Row, bool) {
	rows := m.ctrl.Rows()
	for i := len(rows) - 1; i >= 0; i-- {
		r := rows[i]
		if r.Hidden || r.Ephemeral {
			continue
		}
		for _, k := range kinds {
			if r.Kind == k {
				return r, true
			}
		}
	}
	return turn.Row{}, false
}

func (m *Model) retryLast(info model.ModelInfo) {
	row, ok := m.lastRow(turn.RowUser, turn.RowAssistant)
	if !ok {
		m.setError(turn.NoticeNothingRetry)
		return
	}
	m.dispatch(turn.Retry{ID: row.ID, Model: info})
	m.follow = true
	m.refresh()
}

func (m *Model) editLast() {
	row, ok := m.lastRow(turn.RowUser)
	if !ok {
		return
	}
	m.dispatch(turn.Edit{ID: row.ID})
	m.refresh()
}

func (m *Model) deleteLast() {
	row, ok := m.lastRow(turn.RowUser)
	if !ok {
		return
	}
	m.dispatch(turn.Delete{ID: row.ID})
	m.refresh()
}

func (m *Model) toggleThoughts() {
	m.expanded = !m.expanded
	m.refresh()
}

// lastAnswer returns the answer text of the last assistant row.
func (m *Model) lastAnswer() string {
	row, ok := m.lastRow(turn.RowAssistant)
	if !ok || row.View == nil {
		return ""
	}
	return row.View.Cleaned()
}

func (m *Model) applyConfig(msg configMsg) {
	if msg.Err != nil {
		m.setError("Config reload failed: " + msg.Err.Error())
		m.logger.Warn("config reload failed", "error", msg.Err)
		return
	}
	m.cfg = msg.Config
	config.SetGlobal(msg.Config)
	m.ctrl.UpdateSettings(turn.Reconfigure(m.ctrl.Settings(), msg.Config))
	m.renderer.Formatter = formatterFor(msg.Config)
	m.renderer.HideUsage = !msg.Config.UI.ShowUsage
	m.logger.Info("config reloaded")
	m.setStatus("Config reloaded.")
	m.refresh()
}

func (m *Model) setStatus(s string) {
	m.status, m.statusErr = s, false
}

func (m *Model) setError(s string) {
	m.status, m.statusErr = s, true
}

// =============================================================================
// TRANSCRIPT
// =============================================================================

// refresh repaints the transcript into the viewport. The view follows new
// output while it is scrolled to the bottom.
func (m *Model) refresh() {
	if m.ctrl.IsGenerating() {
		m.renderer.Spinner = m.spinner.View()
	} else {
		m.renderer.Spinner = ""
	}
	follow := m.follow || m.viewport.AtBottom()
	m.viewport.SetContent(m.transcript())
	if follow {
		m.viewport.GotoBottom()
	}
	m.follow = false
}

func (m *Model) transcript() string {
	rows := m.ctrl.Rows()
	parts := make([]string, 0, len(rows))
	for _, r := range rows {
		if r.Hidden {
			continue
		}
		switch r.Kind {
		case turn.RowUser:
			parts = append(parts, m.renderer.User(r.Message))
		case turn.RowAssistant:
			r.View.ThoughtsExpanded = m.expanded
			out, _ := r.View.Paint(m.renderer)
			parts = append(parts, out)
		case turn.RowStopped:
			parts = append(parts, m.renderer.Stopped())
		case turn.RowNotice:
			parts = append(parts, m.renderer.Notice(r.Text))
		}
	}
	if len(parts) == 0 {
		return m.welcome()
	}
	return strings.Join(parts, "\n\n")
}
