// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for luminous.
//
// # Key Types
//
//   - Config: Main configuration structure with all settings
//   - SamplingConfig: Generation parameters sent with regular chats
//   - StorageConfig: Where chats are kept (backend or local sqlite)
//
// # Configuration Precedence
//
// Configuration is loaded from (in order of precedence):
//   - Environment variables (LUMINOUS_*)
//   - .env in the working directory, then ~/.luminous/.env
//   - ~/.luminous/config.toml (or $LUMINOUS_CONFIG)
//   - Built-in defaults
//
// # Usage
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	_ = cfg.Set("sampling.temperature", "0.2")
//
// The TUI calls Watch to pick up edits to the file while it runs.
package config
