// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// tui.go - Starts the full screen chat view.

package cli

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/luminous-tui/internal/logging"
	"github.com/jeranaias/luminous-tui/internal/turn"
	"github.com/jeranaias/luminous-tui/internal/ui/chat"
)

// RunTUI runs the Bubble Tea chat view until the user quits.
func RunTUI(args Args) error {
	cfg, path, err := loadConfig(args)
	if err != nil {
		return err
	}
	initLogging(cfg, args.Quiet)
	defer logging.Shutdown()

	b, err := openBackend(cfg)
	if err != nil {
		return err
	}
	defer b.Close()

	m := chat.New(chat.Options{
		Config:       cfg,
		ConfigPath:   path,
		Backend:      b.client,
		Store:        b.store,
		Models:       b.client,
		Memory:       b.client,
		PersistTurns: b.persistTurns(),
		ChatID:       args.ChatID,
	})
	defer m.Close()

	if args.Temporary {
		m.Controller().Dispatch(turn.NewChat{Temporary: true})
	}

	logging.L().Info("tui started", "server", cfg.Server.URL, "storage", cfg.Storage.Mode)

	p := tea.NewProgram(
		m,
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
	)
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("run tui: %w", err)
	}
	return nil
}
