// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/jeranaias/luminous-tui/internal/model"
)

// SQLiteStore is a Store backed by a sqlite database file.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time

	// writeMu serializes writers so concurrent saves never hit SQLITE_BUSY.
	writeMu sync.Mutex
}

// NewSQLite opens (and creates if needed) the database at dbPath.
func NewSQLite(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	dsn := "file:" + dbPath +
		"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &SQLiteStore{db: db, now: time.Now}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS chats (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		timestamp REAL NOT NULL,
		memory_mode INTEGER NOT NULL DEFAULT 0,
		deep_research_mode INTEGER NOT NULL DEFAULT 0,
		is_vision INTEGER NOT NULL DEFAULT 0,
		last_model TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_chats_timestamp ON chats(timestamp);

	CREATE TABLE IF NOT EXISTS messages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		chat_id TEXT NOT NULL REFERENCES chats(id) ON DELETE CASCADE,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		model TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_messages_chat ON messages(chat_id, id);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ListChats returns chat metadata, newest first.
func (s *SQLiteStore) ListChats(ctx context.Context) ([]model.ChatMeta, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, timestamp, memory_mode, deep_research_mode, is_vision, last_model
		FROM chats ORDER BY timestamp DESC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("query chats: %w", err)
	}
	defer rows.Close()

	metas := []model.ChatMeta{}
	for rows.Next() {
		meta, err := scanMeta(rows)
		if err != nil {
			return nil, err
		}
		metas = append(metas, meta)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chats: %w", err)
	}
	return metas, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMeta(row scanner) (model.ChatMeta, error) {
	var (
		meta                 model.ChatMeta
		memory, deep, vision int
		lastModel            sql.NullString
	)
	err := row.Scan(&meta.ID, &meta.Title, &meta.Timestamp, &memory, &deep, &vision, &lastModel)
	if err != nil {
		return meta, err
	}
	meta.MemoryMode = memory != 0
	meta.DeepResearchMode = deep != 0
	meta.IsVision = vision != 0
	meta.LastModel = lastModel.String
	return meta, nil
}

// GetChat returns a chat with its messages.
func (s *SQLiteStore) GetChat(ctx context.Context, id string) (*model.Chat, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, title, timestamp, memory_mode, deep_research_mode, is_vision, last_model
		FROM chats WHERE id = ?`, id)
	meta, err := scanMeta(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrChatNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan chat row: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT role, content, model FROM messages WHERE chat_id = ? ORDER BY id ASC`, id)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	chat := &model.Chat{ChatMeta: meta, Messages: []model.Message{}}
	for rows.Next() {
		var (
			role, raw string
			modelName sql.NullString
		)
		if err := rows.Scan(&role, &raw, &modelName); err != nil {
			return nil, fmt.Errorf("scan message row: %w", err)
		}
		msg := model.Message{Role: model.Role(role), Model: modelName.String}
		if err := json.Unmarshal([]byte(raw), &msg.Content); err != nil {
			// Rows written by other tools may hold bare text.
			msg.Content = model.TextContent(raw)
		}
		chat.Messages = append(chat.Messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	return chat, nil
}

const upsertChat = `
	INSERT INTO chats (id, title, timestamp, memory_mode, deep_research_mode, is_vision, last_model)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		title = excluded.title,
		timestamp = excluded.timestamp,
		memory_mode = excluded.memory_mode,
		deep_research_mode = excluded.deep_research_mode,
		is_vision = excluded.is_vision,
		last_model = COALESCE(excluded.last_model, chats.last_model)`

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *SQLiteStore) upsert(ctx context.Context, ex execer, meta model.ChatMeta) error {
	touch(&meta, s.now)
	var lastModel any
	if meta.LastModel != "" {
		lastModel = meta.LastModel
	}
	_, err := ex.ExecContext(ctx, upsertChat,
		meta.ID, meta.Title, meta.Timestamp,
		boolInt(bool(meta.MemoryMode)), boolInt(bool(meta.DeepResearchMode)), boolInt(bool(meta.IsVision)),
		lastModel)
	if err != nil {
		return fmt.Errorf("upsert chat: %w", err)
	}
	return nil
}

func insertMessage(ctx context.Context, ex execer, chatID string, msg model.Message) error {
	raw, err := json.Marshal(msg.Content)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}
	var modelName any
	if msg.Model != "" {
		modelName = msg.Model
	}
	_, err = ex.ExecContext(ctx,
		`INSERT INTO messages (chat_id, role, content, model) VALUES (?, ?, ?, ?)`,
		chatID, string(msg.Role), string(raw), modelName)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

// SaveChat upserts the metadata and replaces the messages in one
// transaction.
func (s *SQLiteStore) SaveChat(ctx context.Context, chat model.Chat) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.upsert(ctx, tx, chat.ChatMeta); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE chat_id = ?`, chat.ID); err != nil {
		return fmt.Errorf("clear messages: %w", err)
	}
	for _, msg := range chat.Messages {
		if err := insertMessage(ctx, tx, chat.ID, msg); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// UpsertMeta creates or updates metadata only.
func (s *SQLiteStore) UpsertMeta(ctx context.Context, meta model.ChatMeta) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.upsert(ctx, s.db, meta)
}

// PatchChat updates the title and/or last model.
func (s *SQLiteStore) PatchChat(ctx context.Context, id string, patch model.ChatPatch) error {
	if patch.Empty() {
		return nil
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE chats SET
			title = COALESCE(?, title),
			last_model = COALESCE(?, last_model)
		WHERE id = ?`, nullable(patch.Title), nullable(patch.LastModel), id)
	if err != nil {
		return fmt.Errorf("patch chat: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrChatNotFound
	}
	return nil
}

// AppendMessage adds a message to an existing chat.
func (s *SQLiteStore) AppendMessage(ctx context.Context, chatID string, msg model.Message) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM chats WHERE id = ?`, chatID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("lookup chat: %w", err)
	}
	if exists == 0 {
		return ErrChatNotFound
	}
	return insertMessage(ctx, s.db, chatID, msg)
}

// DeleteLastTurn drops the last user message and its replies.
func (s *SQLiteStore) DeleteLastTurn(ctx context.Context, chatID string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		DELETE FROM messages
		WHERE chat_id = ? AND id >= (
			SELECT MAX(id) FROM messages WHERE chat_id = ? AND role = 'user'
		)`, chatID, chatID)
	if err != nil {
		return fmt.Errorf("delete last turn: %w", err)
	}
	return nil
}

// DeleteChat removes a chat and its messages.
func (s *SQLiteStore) DeleteChat(ctx context.Context, id string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	for _, q := range []string{`DELETE FROM messages WHERE chat_id = ?`, `DELETE FROM chats WHERE id = ?`} {
		if _, err := s.db.ExecContext(ctx, q, id); err != nil {
			return fmt.Errorf("delete chat: %w", err)
		}
	}
	return nil
}

// ClearChats removes every chat.
func (s *SQLiteStore) ClearChats(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	for _, q := range []string{`DELETE FROM messages`, `DELETE FROM chats`} {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("clear chats: %w", err)
		}
	}
	return nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullable(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}
