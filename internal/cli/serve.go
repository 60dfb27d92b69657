// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// serve.go - Runs the local replay server.
//
// Command: serve
// Short:   Serve scripted answers over the chat API
// Aliases: server
//
// Flags:
//   --addr HOST:PORT     Listen address (default: serve.addr)
//   --script FILE        TOML replay script (default: built-in demo)
//   --db FILE            Persist chats in sqlite (default: memory)
//   --cors               Allow browser clients on localhost
//   --rate-limit         Limit each client to 20 requests per second

package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jeranaias/luminous-tui/internal/config"
	"github.com/jeranaias/luminous-tui/internal/logging"
	"github.com/jeranaias/luminous-tui/internal/server"
	"github.com/jeranaias/luminous-tui/internal/storage"
)

// shutdownTimeout bounds the graceful shutdown of the replay server.
const shutdownTimeout = 5 * time.Second

// HandleServeCommand handles the "serve" command.
func HandleServeCommand(args Args) error {
	cfg, _, err := loadConfig(args)
	if err != nil {
		return err
	}
	initLogging(cfg, args.Quiet)
	defer logging.Shutdown()

	srv, addr, err := newReplayServer(cfg, args)
	if err != nil {
		return err
	}
	defer srv.Store().Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe(addr) }()

	if !args.Quiet {
		StderrPrintf("%s Serving on http://%s (Ctrl+C to stop)\n", SuccessStyle.Render("[OK]"), addr)
	}

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}

// newReplayServer builds the server from config and flags and returns it
// with the listen address.
func newReplayServer(cfg *config.Config, args Args) (*server.Server, string, error) {
	p := NewArgParser(args.Raw)
	addr := p.FlagOrDefault("addr", cfg.Serve.Addr)
	scriptPath := p.FlagOrDefault("script", cfg.Serve.Script)
	dbPath := p.FlagOrDefault("db", cfg.Serve.Database)

	script := server.DefaultScript()
	if scriptPath != "" {
		var err error
		if script, err = server.LoadScript(storage.ExpandHome(scriptPath)); err != nil {
			return nil, "", &ConfigError{Err: err}
		}
	}

	store, err := storage.Open(dbPath)
	if err != nil {
		return nil, "", NewCommandError("serve", "open", dbPath, err)
	}

	srv := server.New().WithScript(script).WithStore(store)
	if !args.Quiet {
		srv = srv.WithLogger(logging.New(os.Stderr, cfg.Logging.Level))
	}
	if p.BoolFlag("cors") {
		srv = srv.WithCORS(server.DefaultCORSConfig())
	}
	if p.BoolFlag("rate-limit") {
		srv = srv.WithRateLimit(server.DefaultRateLimiter())
	}
	return srv, addr, nil
}
