// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jeranaias/luminous-tui/internal/model"
)

// MemoryStore is a Store held in memory. It is safe for concurrent use.
type MemoryStore struct {
	mu    sync.RWMutex
	chats map[string]*model.Chat
	now   func() time.Time
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		chats: make(map[string]*model.Chat),
		now:   time.Now,
	}
}

// ListChats returns chat metadata, newest first.
func (s *MemoryStore) ListChats(ctx context.Context) ([]model.ChatMeta, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	metas := make([]model.ChatMeta, 0, len(s.chats))
	for _, c := range s.chats {
		metas = append(metas, c.ChatMeta)
	}
	sort.Slice(metas, func(i, j int) bool {
		if metas[i].Timestamp != metas[j].Timestamp {
			return metas[i].Timestamp > metas[j].Timestamp
		}
		return metas[i].ID < metas[j].ID
	})
	return metas, nil
}

// GetChat returns a copy of the chat.
func (s *MemoryStore) GetChat(ctx context.Context, id string) (*model.Chat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.chats[id]
	if !ok {
		return nil, ErrChatNotFound
	}
	out := *c
	out.Messages = append([]model.Message{}, c.Messages...)
	return &out, nil
}

// SaveChat upserts the metadata and replaces the messages.
func (s *MemoryStore) SaveChat(ctx context.Context, chat model.Chat) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	meta := chat.ChatMeta
	touch(&meta, s.now)
	s.chats[chat.ID] = &model.Chat{
		ChatMeta: meta,
		Messages: stripIDs(chat.Messages),
	}
	return nil
}

// UpsertMeta creates or updates metadata only.
func (s *MemoryStore) UpsertMeta(ctx context.Context, meta model.ChatMeta) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	touch(&meta, s.now)
	if c, ok := s.chats[meta.ID]; ok {
		c.ChatMeta = meta
		return nil
	}
	s.chats[meta.ID] = &model.Chat{ChatMeta: meta, Messages: []model.Message{}}
	return nil
}

// PatchChat updates the title and/or last model.
func (s *MemoryStore) PatchChat(ctx context.Context, id string, patch model.ChatPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.chats[id]
	if !ok {
		return ErrChatNotFound
	}
	if patch.Title != nil {
		c.Title = *patch.Title
	}
	if patch.LastModel != nil {
		c.LastModel = *patch.LastModel
	}
	return nil
}

// AppendMessage adds a message to an existing chat.
func (s *MemoryStore) AppendMessage(ctx context.Context, chatID string, msg model.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.chats[chatID]
	if !ok {
		return ErrChatNotFound
	}
	msg.ID = 0
	c.Messages = append(c.Messages, msg)
	return nil
}

// DeleteLastTurn drops the last user message and its replies.
func (s *MemoryStore) DeleteLastTurn(ctx context.Context, chatID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.chats[chatID]
	if !ok {
		return nil
	}
	if i := lastTurnIndex(c.Messages); i >= 0 {
		c.Messages = c.Messages[:i]
	}
	return nil
}

// DeleteChat removes a chat. Unknown ids are ignored.
func (s *MemoryStore) DeleteChat(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.chats, id)
	return nil
}

// ClearChats removes every chat.
func (s *MemoryStore) ClearChats(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chats = make(map[string]*model.Chat)
	return nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error { return nil }

func stripIDs(msgs []model.Message) []model.Message {
	out := make([]model.Message, len(msgs))
	for i, m := range msgs {
		m.ID = 0
		out[i] = m
	}
	return out
}
