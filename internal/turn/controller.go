// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package turn owns the conversation state of one chat view.
//
// This file implements the Controller reducer. Every user action and stream
// callback arrives as an Event; Dispatch updates the id-addressed transcript
// and row list and returns Effects for the caller to perform. Only one turn
// is in flight at a time, and edit, delete and retry are ignored until it
// ends.
package turn

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jeranaias/luminous-tui/internal/content"
	"github.com/jeranaias/luminous-tui/internal/luminous"
	"github.com/jeranaias/luminous-tui/internal/model"
	"github.com/jeranaias/luminous-tui/internal/render"
	"github.com/jeranaias/luminous-tui/internal/sse"
	"github.com/jeranaias/luminous-tui/internal/util"
)

// Notices shown when a send is refused.
const (
	NoticeNotConfigured = "No server configured. Set one with: luminous config set server.url <url>"
	NoticeNoModel       = "Select a model first (/model)."
	NoticeVision        = "This conversation contains images. You must select a model with vision capabilities."
	NoticeNoPlan        = "No research plan to approve."
	NoticeNothingRetry  = "Nothing to retry."
	NoticeTemporary     = "Temporary mode can only be changed on an empty chat."
)

// DefaultHistory is the number of transcript messages sent with a request.
const DefaultHistory = 20

// Settings are the user choices that shape the next request.
type Settings struct {
	Configured   bool
	Model        model.ModelInfo
	SystemPrompt string

	MemoryMode   bool
	DeepResearch bool
	SearchDepth  string
	VisionModel  string
	Temporary    bool

	// Sampling.Reasoning holds the configured level ("none", "low", ...).
	Sampling luminous.Sampling
	History  int
}

// session is the state of the turn being generated.
type session struct {
	turn      TurnID
	view      *render.MessageView
	row       *Row
	modelName string

	// set when the turn approves a plan, so a stop can revert it
	approved *string
	planRow  *Row
}

// Controller holds the transcript, rows and generation state of a chat view.
// It is not safe for concurrent use; one goroutine dispatches all events.
type Controller struct {
	settings   Settings
	transcript *model.Transcript
	rows       rows

	chatID    string
	title     string
	lastModel string

	plan    string
	planRow *Row

	sess     *session
	lastTurn TurnID

	newID func() string
	now   func() time.Time
}

// Option configures a Controller.
type Option func(*Controller)

// WithIDFunc sets the generator of new chat ids.
func WithIDFunc(fn func() string) Option {
	return func(c *Controller) { c.newID = fn }
}

// WithClock sets the clock used for chat timestamps.
func WithClock(fn func() time.Time) Option {
	return func(c *Controller) { c.now = fn }
}

// NewController creates an idle controller with an empty chat.
func NewController(settings Settings, opts ...Option) *Controller {
	c := &Controller{
		settings:   settings,
		transcript: model.NewTranscript(nil),
		newID:      uuid.NewString,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// =============================================================================
// ACCESSORS
// =============================================================================

// Settings returns the current settings.
func (c *Controller) Settings() Settings { return c.settings }

// UpdateSettings replaces the settings, e.g. after a config reload. The
// temporary flag of the open chat is kept.
func (c *Controller) UpdateSettings(s Settings) {
	s.Temporary = c.settings.Temporary
	c.settings = s
}

// IsGenerating reports whether a turn is in flight.
func (c *Controller) IsGenerating() bool { return c.sess != nil }

// Turn returns the id of the turn in flight, or zero.
func (c *Controller) Turn() TurnID {
	if c.sess == nil {
		return 0
	}
	return c.sess.turn
}

// Current returns the view of the turn in flight, or nil.
func (c *Controller) Current() *render.MessageView {
	if c.sess == nil {
		return nil
	}
	return c.sess.view
}

// ChatID returns the id of the open chat; "" before the first message.
func (c *Controller) ChatID() string { return c.chatID }

// Title returns the title of the open chat.
func (c *Controller) Title() string {
	if c.title == "" {
		return util.DefaultChatTitle
	}
	return c.title
}

// PendingPlan returns the research plan awaiting approval, if any.
func (c *Controller) PendingPlan() string { return c.plan }

// Messages returns a copy of the transcript.
func (c *Controller) Messages() []model.Message { return c.transcript.Messages() }

// Message returns the transcript message with id.
func (c *Controller) Message(id model.MessageID) (model.Message, bool) {
	return c.transcript.Get(id)
}

// Rows returns a copy of the row list.
func (c *Controller) Rows() []Row {
	out := make([]Row, len(c.rows))
	for i, r := range c.rows {
		out[i] = *r
	}
	return out
}

// CheckRows verifies that non-ephemeral rows mirror the transcript.
func (c *Controller) CheckRows() error {
	rowIDs := c.rows.ids()
	msgIDs := c.transcript.IDs()
	if len(rowIDs) != len(msgIDs) {
		return fmt.Errorf("turn: %d rows for %d messages", len(rowIDs), len(msgIDs))
	}
	for i := range rowIDs {
		if rowIDs[i] != msgIDs[i] {
			return fmt.Errorf("turn: row %d has id %d, message has %d", i, rowIDs[i], msgIDs[i])
		}
	}
	return nil
}

// Snapshot returns the open chat as stored by the backend.
func (c *Controller) Snapshot() model.Chat {
	return model.Chat{
		ChatMeta: model.ChatMeta{
			ID:               c.chatID,
			Title:            c.Title(),
			Timestamp:        model.Timestamp(c.now()),
			MemoryMode:       model.Flag(c.settings.MemoryMode),
			DeepResearchMode: model.Flag(c.settings.DeepResearch),
			IsVision:         model.Flag(c.hasImage()),
			LastModel:        c.lastModel,
		},
		Messages: c.transcript.Messages(),
	}
}

func (c *Controller) hasImage() bool {
	for _, m := range c.transcript.Messages() {
		if m.Content.HasImage() {
			return true
		}
	}
	return false
}

// persistentID returns the chat id the server stores turns under, or "" for
// temporary chats.
func (c *Controller) persistentID() string {
	if c.settings.Temporary {
		return ""
	}
	return c.chatID
}

// =============================================================================
// DISPATCH
// =============================================================================

// Dispatch applies one event and returns the effects to perform.
func (c *Controller) Dispatch(ev Event) []Effect {
	switch ev := ev.(type) {
	case Submit:
		return c.submit(ev)
	case ApprovePlan:
		return c.approvePlan(ev)
	case Resume:
		return c.resume(ev.ChatID)
	case Stop:
		return c.stop()
	case Edit:
		return c.edit(ev.ID)
	case Delete:
		return c.delete(ev.ID)
	case Retry:
		return c.retry(ev)
	case FrameReceived:
		c.frame(ev)
		return nil
	case StreamEnded:
		return c.ended(ev)
	case NewChat:
		c.newChat(ev.Temporary)
		return nil
	case ChatLoaded:
		return c.load(ev.Chat)
	case SetModel:
		c.settings.Model = ev.Model
		return nil
	case SetMode:
		return c.setMode(ev)
	case SetSearchDepth:
		c.settings.SearchDepth = ev.Depth
		return nil
	case SetVisionModel:
		c.settings.VisionModel = ev.Model
		return nil
	case Renamed:
		c.title = ev.Title
		return nil
	}
	return nil
}

// checkReady returns a notice when a request cannot be sent.
func (c *Controller) checkReady(withImage bool) []Effect {
	switch {
	case !c.settings.Configured:
		return []Effect{Notice{Text: NoticeNotConfigured}}
	case c.settings.Model.ID == "":
		return []Effect{Notice{Text: NoticeNoModel}}
	case (withImage || c.hasImage()) && !c.settings.Model.Vision:
		return []Effect{Notice{Text: NoticeVision}}
	}
	return nil
}

// ensureChat allocates the chat id and title on the first message.
func (c *Controller) ensureChat(text string) {
	if c.chatID == "" && !c.settings.Temporary {
		c.chatID = c.newID()
	}
	if c.title == "" {
		c.title = util.ChatTitle(text)
	}
}

// begin appends the assistant placeholder and starts a session.
func (c *Controller) begin() *session {
	c.lastTurn++
	view := render.NewMessageView(c.settings.DeepResearch)
	row := &Row{Kind: RowAssistant, Ephemeral: true, View: view}
	c.rows = append(c.rows, row)
	c.sess = &session{
		turn:      c.lastTurn,
		view:      view,
		row:       row,
		modelName: c.settings.Model.DisplayName(),
	}
	return c.sess
}

func (c *Controller) submit(ev Submit) []Effect {
	if c.sess != nil {
		return nil
	}
	text := strings.TrimSpace(ev.Text)
	if text == "" && ev.Image == "" {
		return nil
	}
	if eff := c.checkReady(ev.Image != ""); eff != nil {
		return eff
	}

	c.ensureChat(text)
	id := c.transcript.Append(model.NewUserMessage(text, ev.Image))
	msg, _ := c.transcript.Get(id)
	c.rows = append(c.rows, &Row{ID: id, Kind: RowUser, Message: msg})
	c.plan, c.planRow = "", nil

	req := c.buildRequest(nil)
	s := c.begin()
	return []Effect{StartStream{Turn: s.turn, Request: &req}}
}

func (c *Controller) approvePlan(ev ApprovePlan) []Effect {
	if c.sess != nil {
		return nil
	}
	plan := ev.Plan
	if plan == "" {
		plan = c.plan
	}
	if strings.TrimSpace(plan) == "" {
		return []Effect{Notice{Text: NoticeNoPlan}}
	}
	if eff := c.checkReady(false); eff != nil {
		return eff
	}

	c.ensureChat(content.PlanApprovedMessage)
	id := c.transcript.Append(model.NewUserMessage(content.PlanApprovedMessage, ""))
	msg, _ := c.transcript.Get(id)
	c.rows = append(c.rows, &Row{ID: id, Kind: RowUser, Message: msg, Hidden: true})

	planRow := c.planRow
	if planRow != nil {
		planRow.View.SetPlanApproved(true)
	}
	c.plan, c.planRow = "", nil

	approved := plan
	req := c.buildRequest(&approved)
	s := c.begin()
	s.approved = &approved
	s.planRow = planRow
	return []Effect{StartStream{Turn: s.turn, Request: &req}}
}

func (c *Controller) resume(chatID string) []Effect {
	if c.sess != nil {
		return nil
	}
	if chatID == "" {
		chatID = c.chatID
	}
	if chatID == "" {
		return nil
	}
	if !c.settings.Configured {
		return []Effect{Notice{Text: NoticeNotConfigured}}
	}
	s := c.begin()
	if c.lastModel != "" && c.settings.Model.ID == "" {
		s.modelName = c.lastModel
	}
	return []Effect{StartStream{Turn: s.turn, ResumeChatID: chatID}}
}

// stop aborts the running turn: the last user message and everything after
// it are removed and a single stopped marker is left in their place.
func (c *Controller) stop() []Effect {
	s := c.sess
	if s == nil {
		return nil
	}
	c.sess = nil

	effects := []Effect{CancelStream{Turn: s.turn}}
	if last, ok := c.transcript.LastOf(model.RoleUser); ok {
		c.transcript.TruncateAt(last.ID)
		c.dropRowsFrom(last.ID)
	}
	c.removeRow(s.row)
	c.rows = append(c.rows, &Row{Kind: RowStopped, Ephemeral: true})

	if s.approved != nil {
		c.plan = *s.approved
		c.planRow = s.planRow
		if s.planRow != nil {
			s.planRow.View.SetPlanApproved(false)
		}
	}

	if id := c.persistentID(); id != "" {
		effects = append(effects, NotifyStop{ChatID: id})
	}
	return effects
}

func (c *Controller) edit(id model.MessageID) []Effect {
	if c.sess != nil {
		return nil
	}
	msg, ok := c.transcript.Get(id)
	if !ok || msg.Role != model.RoleUser {
		return nil
	}
	if i := c.rows.indexOf(id); i >= 0 && c.rows[i].Hidden {
		return nil
	}

	c.truncateAt(id)
	text := msg.Text()
	if text == model.ImagePlaceholder && msg.Content.HasImage() {
		text = ""
	}
	effects := []Effect{RestoreInput{Text: text, Image: msg.Content.Image()}}
	return append(effects, c.saveEffects()...)
}

func (c *Controller) delete(id model.MessageID) []Effect {
	if c.sess != nil {
		return nil
	}
	if _, ok := c.transcript.Get(id); !ok {
		return nil
	}
	c.truncateAt(id)
	return c.saveEffects()
}

func (c *Controller) retry(ev Retry) []Effect {
	if c.sess != nil {
		return nil
	}
	msg, ok := c.transcript.Get(ev.ID)
	if !ok {
		return nil
	}
	if ev.Model.ID != "" {
		c.settings.Model = ev.Model
	}
	if eff := c.checkReady(false); eff != nil {
		return eff
	}

	switch msg.Role {
	case model.RoleAssistant:
		// The answer must follow a user message to have something to resend.
		i := c.transcript.Index(ev.ID)
		if i < 1 || c.transcript.Messages()[i-1].Role != model.RoleUser {
			return []Effect{Notice{Text: NoticeNothingRetry}}
		}
		c.truncateAt(ev.ID)
	case model.RoleUser:
		c.transcript.TruncateAfter(ev.ID)
		if i := c.rows.indexOf(ev.ID); i >= 0 {
			c.rows = c.rows[:i+1]
		}
		c.recomputePlan()
	default:
		return nil
	}

	var prior *model.Chat
	if c.persistentID() != "" {
		snap := c.Snapshot()
		snap.Messages = snap.Messages[:len(snap.Messages)-1]
		prior = &snap
	}

	req := c.buildRequest(nil)
	s := c.begin()
	return []Effect{StartStream{Turn: s.turn, Request: &req, Prior: prior}}
}

func (c *Controller) frame(ev FrameReceived) {
	s := c.sess
	if s == nil || ev.Turn != s.turn {
		return
	}
	f := ev.Frame
	if f.Usage != nil {
		s.view.SetUsage(f.Usage)
	}
	switch f.Kind {
	case sse.KindDelta:
		s.view.Apply(f.Delta)
		if s.view.PlanShown() && s.approved == nil {
			c.plan, c.planRow = s.view.Plan(), s.row
		}
	case sse.KindRedact:
		s.view.Redact(f.RedactMessage)
	}
}

func (c *Controller) ended(ev StreamEnded) []Effect {
	s := c.sess
	if s == nil || ev.Turn != s.turn {
		return nil
	}
	c.sess = nil

	err := ev.Err
	if errors.Is(err, io.EOF) {
		err = nil
	}
	switch {
	case err == nil:
		s.view.Model = s.modelName
		s.view.Finalize()
		id := c.transcript.Append(model.NewAssistantMessage(s.view.FinalContent(), s.modelName))
		s.row.ID = id
		s.row.Ephemeral = false
		c.lastModel = s.modelName
		if s.view.PlanShown() {
			c.plan, c.planRow = s.view.Plan(), s.row
		}
		if id := c.persistentID(); id != "" {
			return []Effect{SyncChat{Chat: c.Snapshot()}}
		}
	case luminous.IsCanceled(err):
		s.view.Finalize()
	default:
		s.view.Fail(ErrorText(err))
	}
	return nil
}

func (c *Controller) newChat(temporary bool) {
	if c.sess != nil {
		return
	}
	c.reset()
	c.settings.Temporary = temporary
}

func (c *Controller) reset() {
	c.transcript.Reset()
	c.rows = nil
	c.chatID, c.title, c.lastModel = "", "", ""
	c.plan, c.planRow = "", nil
}

func (c *Controller) load(chat *model.Chat) []Effect {
	if c.sess != nil || chat == nil {
		return nil
	}
	c.reset()
	c.chatID = chat.ID
	c.title = chat.Title
	c.lastModel = chat.LastModel
	c.settings.Temporary = false
	c.settings.MemoryMode = bool(chat.MemoryMode)
	c.settings.DeepResearch = bool(chat.DeepResearchMode)

	c.transcript = model.NewTranscript(chat.Messages)
	msgs := c.transcript.Messages()
	for i, m := range msgs {
		switch m.Role {
		case model.RoleUser:
			c.rows = append(c.rows, &Row{
				ID:      m.ID,
				Kind:    RowUser,
				Message: m,
				Hidden:  m.IsText(model.RoleUser, content.PlanApprovedMessage),
			})
		case model.RoleAssistant:
			approved := i+1 < len(msgs) && msgs[i+1].IsText(model.RoleUser, content.PlanApprovedMessage)
			view := render.RenderHistorical(m, render.HistoryOptions{
				DeepResearch: c.settings.DeepResearch,
				PlanApproved: approved,
			})
			c.rows = append(c.rows, &Row{ID: m.ID, Kind: RowAssistant, View: view})
		default:
			c.rows = append(c.rows, &Row{ID: m.ID, Kind: RowNotice, Message: m, Text: m.Text(), Hidden: true})
		}
	}
	c.recomputePlan()

	if chat.IsResearchRunning {
		return c.resume(chat.ID)
	}
	return nil
}

func (c *Controller) setMode(ev SetMode) []Effect {
	switch ev.Mode {
	case ModeMemory:
		c.settings.MemoryMode = ev.On
	case ModeDeepResearch:
		c.settings.DeepResearch = ev.On
	case ModeTemporary:
		if c.transcript.Len() > 0 || c.sess != nil {
			return []Effect{Notice{Text: NoticeTemporary}}
		}
		c.settings.Temporary = ev.On
		if ev.On {
			c.chatID = ""
		}
	}
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

// truncateAt removes the message with id and everything after it from both
// the transcript and the rows.
func (c *Controller) truncateAt(id model.MessageID) {
	c.transcript.TruncateAt(id)
	c.dropRowsFrom(id)
	c.recomputePlan()
}

func (c *Controller) dropRowsFrom(id model.MessageID) {
	if i := c.rows.indexOf(id); i >= 0 {
		c.rows = c.rows[:i]
	}
}

func (c *Controller) removeRow(row *Row) {
	for i, r := range c.rows {
		if r == row {
			c.rows = append(c.rows[:i], c.rows[i+1:]...)
			return
		}
	}
}

// recomputePlan makes the plan of the last assistant message pending when it
// has not been approved.
func (c *Controller) recomputePlan() {
	c.plan, c.planRow = "", nil
	for i := len(c.rows) - 1; i >= 0; i-- {
		r := c.rows[i]
		if r.Ephemeral || r.Kind == RowNotice {
			continue
		}
		if r.Kind != RowAssistant {
			return
		}
		if r.View.PlanShown() && !r.View.PlanApproved() {
			c.plan, c.planRow = r.View.Plan(), r
		}
		return
	}
}

func (c *Controller) saveEffects() []Effect {
	if c.persistentID() == "" {
		return nil
	}
	return []Effect{SyncChat{Chat: c.Snapshot(), Save: true}}
}

// ErrorText returns the inline text of a failed turn.
func ErrorText(err error) string {
	var apiErr *luminous.APIError
	if errors.As(err, &apiErr) {
		return strings.TrimPrefix(apiErr.Message, "API Error: ")
	}
	var protoErr *sse.ProtocolError
	if errors.As(err, &protoErr) {
		return protoErr.Message
	}
	return err.Error()
}
