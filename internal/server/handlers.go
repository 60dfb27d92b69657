// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/jeranaias/luminous-tui/internal/logging"
	"github.com/jeranaias/luminous-tui/internal/luminous"
	"github.com/jeranaias/luminous-tui/internal/model"
	"github.com/jeranaias/luminous-tui/internal/storage"
	"github.com/jeranaias/luminous-tui/internal/util"
)

// persistTimeout bounds store writes that must survive a disconnected
// client.
const persistTimeout = 5 * time.Second

// ============================================================================
// COMPLETIONS
// ============================================================================

// handleCompletions handles POST /v1/chat/completions.
func (s *Server) handleCompletions(w http.ResponseWriter, r *http.Request) {
	var req luminous.CompletionRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	s.rec.request(req)
	log := logging.FromContext(r.Context())

	modelName := req.LastModelName
	if modelName == "" {
		modelName = req.Model
	}

	chatID := ""
	if req.ChatID != nil && *req.ChatID != "" {
		chatID = *req.ChatID
		if err := s.persistUserTurn(r.Context(), chatID, modelName, &req); err != nil {
			log.Error("persisting user turn failed", "chat_id", chatID, "error", err)
			s.writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}

	script := s.currentScript()
	resp := script.Match(&req)
	newPlayer := func(emit func(string) error, hold func(context.Context) error) *player {
		p := &player{
			resp:   resp,
			input:  lastUserText(req.Messages),
			delay:  time.Duration(script.StepDelayMS) * time.Millisecond,
			chunks: newChunker(req.Model),
			emit:   emit,
			hold:   hold,
		}
		if chatID != "" {
			p.complete = func(acc *accumulator) { s.persistAnswer(chatID, modelName, acc) }
		}
		return p
	}

	out, err := newSSEWriter(w)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if req.DeepResearchMode && chatID != "" {
		t := s.tasks.start(chatID, func(ctx context.Context, t *task) {
			p := newPlayer(t.publish, func(ctx context.Context) error {
				return s.waitGate(ctx, chatID)
			})
			s.runTask(ctx, t, p)
		})
		if err := t.subscribe(r.Context(), out.send); err != nil {
			log.Debug("research stream detached", "chat_id", chatID, "error", err)
		}
		return
	}

	p := newPlayer(out.send, func(ctx context.Context) error {
		return s.waitGate(ctx, chatID)
	})
	if err := p.play(r.Context()); err != nil {
		// Disconnected clients do not get their partial answer persisted.
		log.Debug("stream ended early", "chat_id", chatID, "error", err)
	}
}

// runTask plays a research response into t.
func (s *Server) runTask(ctx context.Context, t *task, p *player) {
	log := s.logger.With("chat_id", t.chatID)
	err := p.play(ctx)
	switch {
	case err != nil:
		log.Info("research task interrupted", "error", err)
		t.finish(taskInterrupted)
	case p.errText != "":
		log.Warn("research task failed", "error", p.errText)
		t.finish(taskFailed)
	default:
		t.finish(taskCompleted)
	}
}

// persistUserTurn upserts the chat and stores the trailing user message.
func (s *Server) persistUserTurn(ctx context.Context, chatID, modelName string, req *luminous.CompletionRequest) error {
	if len(req.Messages) == 0 || req.Messages[len(req.Messages)-1].Role != model.RoleUser {
		return nil
	}
	user := req.Messages[len(req.Messages)-1]
	store := s.Store()

	meta := model.ChatMeta{
		ID:               chatID,
		MemoryMode:       model.Flag(req.MemoryMode),
		DeepResearchMode: model.Flag(req.DeepResearchMode),
		LastModel:        modelName,
	}
	existing, err := store.GetChat(ctx, chatID)
	switch {
	case err == nil:
		meta.Title = existing.Title
		meta.IsVision = existing.IsVision
	case !errors.Is(err, storage.ErrChatNotFound):
		return err
	}
	if meta.Title == "" {
		meta.Title = util.ChatTitle(user.Text())
	}
	if !req.DeepResearchMode && hasImage(req.Messages) {
		meta.IsVision = true
	}
	if req.DeepResearchMode {
		meta.IsVision = false
	}

	if err := store.UpsertMeta(ctx, meta); err != nil {
		return err
	}
	return store.AppendMessage(ctx, chatID, user)
}

func (s *Server) persistAnswer(chatID, modelName string, acc *accumulator) {
	text := acc.message()
	if text == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := s.Store().AppendMessage(ctx, chatID, model.NewAssistantMessage(text, modelName)); err != nil {
		s.logger.Warn("persisting answer failed", "chat_id", chatID, "error", err)
	}
}

func hasImage(msgs []model.Message) bool {
	for _, m := range msgs {
		if m.Content.HasImage() {
			return true
		}
	}
	return false
}

// handleEvents handles GET /api/chats/{id}/events.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	chatID := chi.URLParam(r, "id")
	out, err := newSSEWriter(w)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	t, ok := s.tasks.get(chatID)
	if !ok {
		out.send("[DONE]")
		return
	}
	if err := t.subscribe(r.Context(), out.send); err != nil {
		logging.FromContext(r.Context()).Debug("events stream detached", "chat_id", chatID, "error", err)
	}
}

// handleStop handles POST /api/chats/{id}/stop.
func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	chatID := chi.URLParam(r, "id")
	s.rec.stop(chatID)
	s.tasks.stop(chatID)
	if err := s.Store().DeleteLastTurn(r.Context(), chatID); err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeSuccess(w)
}

// ============================================================================
// MODELS
// ============================================================================

type modelCapabilities struct {
	Vision bool `json:"vision"`
}

type modelEntry struct {
	ID           string            `json:"id"`
	Object       string            `json:"object"`
	OwnedBy      string            `json:"owned_by"`
	DisplayName  string            `json:"display_name,omitempty"`
	Capabilities modelCapabilities `json:"capabilities"`
}

// handleModels handles GET /v1/models.
func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	models := s.models
	s.mu.RUnlock()

	data := make([]modelEntry, 0, len(models))
	for _, m := range models {
		data = append(data, modelEntry{
			ID:           m.ID,
			Object:       "model",
			OwnedBy:      "luminous",
			DisplayName:  m.Name,
			Capabilities: modelCapabilities{Vision: m.Vision},
		})
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"object": "list", "data": data})
}

// ============================================================================
// CHATS
// ============================================================================

// handleListChats handles GET /api/chats.
func (s *Server) handleListChats(w http.ResponseWriter, r *http.Request) {
	chats, err := s.Store().ListChats(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, chats)
}

// handleClearChats handles DELETE /api/chats.
func (s *Server) handleClearChats(w http.ResponseWriter, r *http.Request) {
	if err := s.Store().ClearChats(r.Context()); err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeSuccess(w)
}

// handleGetChat handles GET /api/chats/{id}.
func (s *Server) handleGetChat(w http.ResponseWriter, r *http.Request) {
	chatID := chi.URLParam(r, "id")
	chat, err := s.Store().GetChat(r.Context(), chatID)
	if errors.Is(err, storage.ErrChatNotFound) {
		s.writeError(w, http.StatusNotFound, "Chat not found")
		return
	}
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	chat.IsResearchRunning = s.tasks.isRunning(chatID)
	s.writeJSON(w, http.StatusOK, chat)
}

// saveRequest is the body of POST /api/chats/save. A missing messages
// field keeps the stored messages.
type saveRequest struct {
	ChatID           string           `json:"chat_id"`
	Title            string           `json:"title"`
	Messages         *[]model.Message `json:"messages"`
	MemoryMode       model.Flag       `json:"memory_mode"`
	DeepResearchMode model.Flag       `json:"deep_research_mode"`
	IsVision         model.Flag       `json:"is_vision"`
	LastModel        string           `json:"last_model"`
}

// handleSaveChat handles POST /api/chats/save.
func (s *Server) handleSaveChat(w http.ResponseWriter, r *http.Request) {
	var req saveRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	if req.ChatID == "" {
		s.writeError(w, http.StatusBadRequest, "Missing chat_id")
		return
	}
	meta := model.ChatMeta{
		ID:               req.ChatID,
		Title:            req.Title,
		MemoryMode:       req.MemoryMode,
		DeepResearchMode: req.DeepResearchMode,
		IsVision:         req.IsVision,
		LastModel:        req.LastModel,
	}

	var err error
	if req.Messages == nil {
		err = s.Store().UpsertMeta(r.Context(), meta)
	} else {
		err = s.Store().SaveChat(r.Context(), model.Chat{ChatMeta: meta, Messages: *req.Messages})
	}
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeSuccess(w)
}

// handlePatchChat handles PATCH /api/chats/{id}.
func (s *Server) handlePatchChat(w http.ResponseWriter, r *http.Request) {
	var patch model.ChatPatch
	if !s.decodeBody(w, r, &patch) {
		return
	}
	if patch.Empty() {
		s.writeError(w, http.StatusBadRequest, "Missing fields")
		return
	}
	err := s.Store().PatchChat(r.Context(), chi.URLParam(r, "id"), patch)
	if errors.Is(err, storage.ErrChatNotFound) {
		s.writeError(w, http.StatusNotFound, "Chat not found")
		return
	}
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeSuccess(w)
}

// handleDeleteChat handles DELETE /api/chats/{id}.
func (s *Server) handleDeleteChat(w http.ResponseWriter, r *http.Request) {
	chatID := chi.URLParam(r, "id")
	s.tasks.stop(chatID)
	if err := s.Store().DeleteChat(r.Context(), chatID); err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeSuccess(w)
}

// handleMemoryReset handles POST /api/memory/reset. The replay server
// keeps no long-term memory.
func (s *Server) handleMemoryReset(w http.ResponseWriter, r *http.Request) {
	s.writeSuccess(w)
}
