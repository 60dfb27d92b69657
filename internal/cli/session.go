// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// session.go - Headless chat session shared by ask and repl.

package cli

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/jeranaias/luminous-tui/internal/config"
	"github.com/jeranaias/luminous-tui/internal/model"
	"github.com/jeranaias/luminous-tui/internal/turn"
)

// chatSession drives one turn controller from the calling goroutine and
// prints every turn as it streams.
type chatSession struct {
	cfg     *config.Config
	backend *backend
	ctrl    *turn.Controller
	sync    *turn.Sync
	printer *streamPrinter
}

// newChatSession creates a session writing answers to out and activity to
// info. info may be nil.
func newChatSession(cfg *config.Config, b *backend, args Args, out, info io.Writer) *chatSession {
	ctrl := newController(cfg, args)
	s := &chatSession{
		cfg:     cfg,
		backend: b,
		ctrl:    ctrl,
		sync: turn.NewSync(ctrl, b.client, b.store, turn.RunnerOptions{
			PersistTurns: b.persistTurns(),
		}),
		printer: newStreamPrinter(out, info),
	}
	s.sync.OnEvent = func(turn.Event) {
		s.printer.Update(ctrl.Current())
	}
	return s
}

// Close waits for pending saves and releases the runner.
func (s *chatSession) Close() {
	s.sync.Runner.Wait()
	s.sync.Close()
}

// Do dispatches ev and, when it starts a turn, streams the turn to the
// end. A refusal by the controller is returned as a NoticeError.
func (s *chatSession) Do(ctx context.Context, ev turn.Event) error {
	s.printer.Reset()
	ui := s.sync.Send(ctx, ev)
	if !s.ctrl.IsGenerating() {
		if text, ok := noticeOf(ui); ok {
			return &NoticeError{Text: text}
		}
		return nil
	}
	for {
		if _, ok := s.sync.Step(ctx); !ok {
			break
		}
	}
	s.printer.Finish(lastAssistant(s.ctrl))
	return nil
}

// Open loads a saved chat. A research task still running on the server is
// followed until it ends.
func (s *chatSession) Open(ctx context.Context, id string) error {
	chat, err := s.backend.store.GetChat(ctx, id)
	if err != nil {
		return err
	}
	return s.Do(ctx, turn.ChatLoaded{Chat: chat})
}

// EnsureModel selects a model when none is configured: the first one the
// server offers, or the first vision model when vision is needed. A
// configured model is looked up so its vision flag is known.
func (s *chatSession) EnsureModel(ctx context.Context, vision bool) error {
	current := s.ctrl.Settings().Model
	if current.ID != "" && (current.Vision || !vision) {
		return nil
	}

	models, err := s.backend.client.ListModels(ctx)
	if err != nil {
		if current.ID != "" {
			return nil
		}
		return fmt.Errorf("list models: %w", err)
	}
	sortModels(models)

	for _, m := range models {
		if current.ID != "" {
			if m.ID == current.ID {
				s.ctrl.Dispatch(turn.SetModel{Model: m})
				return nil
			}
			continue
		}
		if !vision || m.Vision {
			s.ctrl.Dispatch(turn.SetModel{Model: m})
			return nil
		}
	}
	if current.ID != "" {
		return nil
	}
	return &NoticeError{Text: turn.NoticeNoModel}
}

// sortModels orders models by display name.
func sortModels(models []model.ModelInfo) {
	sort.SliceStable(models, func(i, j int) bool {
		return strings.ToLower(models[i].DisplayName()) < strings.ToLower(models[j].DisplayName())
	})
}
