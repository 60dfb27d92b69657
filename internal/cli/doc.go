// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli provides command-line parsing and execution for luminous.
//
// Without a command luminous starts the full screen chat view. The other
// commands work headless and print plain text, or JSON with --json.
//
// # Key Types
//
//   - Command: Enumeration of the CLI commands
//   - Args: Parsed command-line arguments with global and command flags
//   - ArgParser: Flag and positional parsing for subcommands
//   - JSONResponse: Envelope of every --json output
//
// # Usage
//
//	cmd, args := cli.Parse(os.Args[1:])
//	os.Exit(cli.Run(cmd, args))
//
// # Commands Overview
//
//   - ask: Single question, streamed to stdout
//   - repl: Line based interactive chat
//   - chats: List, show, export and delete saved chats
//   - serve: Local replay server speaking the chat API
//   - config: Show and change configuration
//   - version: Version information
//
// Errors are returned to Run, which prints them and maps them to exit
// codes (see errors.go).
package cli
