// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jeranaias/luminous-tui/internal/luminous"
	"github.com/jeranaias/luminous-tui/internal/model"
	"github.com/jeranaias/luminous-tui/internal/util"
)

// ErrChatNotFound is returned for unknown chat ids. It is the same value the
// HTTP client returns, so callers can check one error for both backends.
var ErrChatNotFound = luminous.ErrChatNotFound

// MemoryPath selects the in-memory store in Open.
const MemoryPath = ":memory:"

// Store persists chats.
type Store interface {
	ListChats(ctx context.Context) ([]model.ChatMeta, error)
	GetChat(ctx context.Context, id string) (*model.Chat, error)

	// SaveChat upserts the metadata and replaces all messages.
	SaveChat(ctx context.Context, chat model.Chat) error
	PatchChat(ctx context.Context, id string, patch model.ChatPatch) error
	DeleteChat(ctx context.Context, id string) error
	ClearChats(ctx context.Context) error

	// UpsertMeta creates or updates chat metadata and leaves messages alone.
	UpsertMeta(ctx context.Context, meta model.ChatMeta) error

	// AppendMessage adds one message to the end of a chat.
	AppendMessage(ctx context.Context, chatID string, msg model.Message) error

	// DeleteLastTurn removes the most recent user message and everything
	// after it.
	DeleteLastTurn(ctx context.Context, chatID string) error

	Close() error
}

// Open returns a SQLiteStore at path, or a MemoryStore for "" and
// MemoryPath. A leading "~/" expands to the home directory.
func Open(path string) (Store, error) {
	if path == "" || path == MemoryPath {
		return NewMemoryStore(), nil
	}
	return NewSQLite(ExpandHome(path))
}

// ExpandHome replaces a leading "~/" with the user's home directory.
func ExpandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}

// lastTurnIndex returns the index of the last user message, or -1.
func lastTurnIndex(msgs []model.Message) int {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == model.RoleUser {
			return i
		}
	}
	return -1
}

// touch moves a chat to the top of the list, like every write on the
// backend does.
func touch(meta *model.ChatMeta, now func() time.Time) {
	meta.Timestamp = model.Timestamp(now())
	if meta.Title == "" {
		meta.Title = util.DefaultChatTitle
	}
}
