// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// backend.go - Config loading and backend setup shared by the commands.

package cli

import (
	"fmt"
	"time"

	"github.com/jeranaias/luminous-tui/internal/config"
	"github.com/jeranaias/luminous-tui/internal/logging"
	"github.com/jeranaias/luminous-tui/internal/luminous"
	"github.com/jeranaias/luminous-tui/internal/storage"
	"github.com/jeranaias/luminous-tui/internal/turn"
)

// loadConfig loads the config file named by --config, or the default one,
// and applies the global flags. It also installs the result as the global
// config. path is the file that was (or would be) read.
func loadConfig(args Args) (cfg *config.Config, path string, err error) {
	if args.ConfigPath != "" {
		path = args.ConfigPath
		cfg, err = config.LoadFromPath(path)
	} else {
		if path, err = config.ConfigPath(); err != nil {
			return nil, "", &ConfigError{Err: err}
		}
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, "", &ConfigError{Err: err}
	}

	applyFlags(cfg, args)
	if err := cfg.Validate(); err != nil {
		return nil, "", &ConfigError{Err: err}
	}
	config.SetGlobal(cfg)
	return cfg, path, nil
}

// applyFlags overrides config values with command line flags.
func applyFlags(cfg *config.Config, args Args) {
	if args.Server != "" {
		cfg.Server.URL = args.Server
	}
	if args.Model != "" {
		cfg.Model.Default = args.Model
	}
	if args.Research {
		cfg.Research.DeepResearch = true
	}
	if args.Memory {
		cfg.Research.MemoryMode = true
	}
	if args.Verbose {
		cfg.Logging.Level = "debug"
	}
}

// initLogging starts the file logger. A failure is reported and logging
// stays disabled.
func initLogging(cfg *config.Config, quiet bool) {
	err := logging.Init(logging.Config{
		Level: cfg.Logging.Level,
		Dir:   storage.ExpandHome(cfg.Logging.Dir),
	})
	if err != nil && !quiet {
		StderrPrintf("%s logging disabled: %v\n", WarningStyle.Render("Warning:"), err)
	}
}

// =============================================================================
// BACKEND
// =============================================================================

// backend bundles the API client with the chat store in use. In local
// storage mode chats live in sqlite and every finished turn is saved by the
// client.
type backend struct {
	client *luminous.Client
	store  turn.ChatStore
	local  storage.Store
}

func openBackend(cfg *config.Config) (*backend, error) {
	client := luminous.NewClientWithConfig(&luminous.ClientConfig{
		BaseURL:   cfg.Server.URL,
		Timeout:   time.Duration(cfg.Server.TimeoutSecs) * time.Second,
		UserAgent: "luminous/" + Version,
	})
	b := &backend{client: client, store: client}

	if cfg.Storage.Mode == config.StorageLocal {
		st, err := storage.Open(cfg.Storage.Path)
		if err != nil {
			return nil, fmt.Errorf("open chat store: %w", err)
		}
		b.local, b.store = st, st
	}
	return b, nil
}

// persistTurns reports whether the client saves finished turns itself.
func (b *backend) persistTurns() bool {
	return b.local != nil
}

func (b *backend) Close() error {
	if b.local != nil {
		return b.local.Close()
	}
	return nil
}

// newController creates a turn controller for the config and flags.
func newController(cfg *config.Config, args Args) *turn.Controller {
	c := turn.NewController(turn.SettingsFromConfig(cfg))
	if args.Temporary {
		c.Dispatch(turn.NewChat{Temporary: true})
	}
	return c
}
