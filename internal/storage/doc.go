// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage persists chats and their messages.
//
// Two implementations share the Store interface:
//
//   - MemoryStore keeps chats in a map and is used by the replay server
//     and by tests.
//   - SQLiteStore keeps chats in a sqlite database (modernc.org/sqlite, no
//     cgo) and backs standalone mode, where the client stores chats itself
//     instead of asking the backend.
//
// # Usage
//
//	store, err := storage.Open("~/.luminous/chats.db")
//	if err != nil {
//		return err
//	}
//	defer store.Close()
//
//	chats, err := store.ListChats(ctx)
//
// The record layout follows the backend: a chats table with the metadata
// flags and a messages table ordered by insertion. Message content is kept
// as JSON so multimodal messages survive a round trip.
package storage
