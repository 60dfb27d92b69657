// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package logging writes structured JSON logs for luminous.
//
// The TUI owns stdout, so logs go to a daily file under ~/.luminous/logs
// (luminous-YYYY-MM-DD.log) that rotates by size. String attributes pass
// through redactors that strip base64 image payloads and bearer tokens.
//
//	logging.Init(logging.Config{Level: "debug"})
//	defer logging.Shutdown()
//	logging.L().Info("stream started", "chat_id", id)
//
// Before Init, L returns a logger that discards everything.
package logging
