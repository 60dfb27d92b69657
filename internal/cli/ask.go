// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// ask.go - Single query command handler.
//
// Command: ask [question]
// Short:   Ask a single question
//
// Examples:
//   luminous ask "What is the capital of France?"
//   luminous ask --json "Summarize RFC 9110"
//   luminous ask --research --approve "state of RISC-V laptops"
//   luminous ask -i chart.png "What does this chart show?"
//   cat notes.md | luminous ask
//
// The answer streams to stdout. Research activity goes to stderr so that
// piped output carries only the answer.

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/jeranaias/luminous-tui/internal/config"
	"github.com/jeranaias/luminous-tui/internal/logging"
	"github.com/jeranaias/luminous-tui/internal/turn"
	"github.com/jeranaias/luminous-tui/internal/util"
)

const askUsage = `luminous ask "question" [-i image] [--approve]`

// maxStdinQuestion caps a question read from a pipe.
const maxStdinQuestion = 1 << 20

// HandleAskCommand handles the "ask" command.
func HandleAskCommand(args Args) error {
	cfg, _, err := loadConfig(args)
	if err != nil {
		return err
	}
	initLogging(cfg, true)
	defer logging.Shutdown()

	question := strings.TrimSpace(args.Query)
	if question == "" && !IsTTY() {
		data, err := io.ReadAll(io.LimitReader(os.Stdin, maxStdinQuestion))
		if err != nil {
			return fmt.Errorf("read stdin: %w", err)
		}
		question = strings.TrimSpace(string(data))
		if question != "" && !args.Quiet && !args.JSON {
			StderrPrintf("%s Read question from stdin (%d bytes)\n", DimStyle.Render("[+]"), len(data))
		}
	}
	if question == "" {
		return ErrMissingArgument("question", askUsage)
	}
	args.Query = question

	b, err := openBackend(cfg)
	if err != nil {
		return err
	}
	defer b.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out, info := io.Writer(os.Stdout), io.Writer(os.Stderr)
	if args.JSON {
		out, info = io.Discard, nil
	} else if args.Quiet {
		info = nil
	}

	data, err := runAsk(ctx, cfg, b, args, out, info)
	if args.JSON {
		if err != nil && data == nil {
			return err
		}
		resp := NewJSONResponse("ask", data)
		if err != nil {
			resp.Success = false
			resp.Error = err.Error()
		}
		if perr := resp.Print(); perr != nil {
			return perr
		}
		if err != nil {
			return &ReportedError{Err: err}
		}
		return nil
	}
	return err
}

// runAsk asks args.Query and streams the answer. With args.Approve a
// proposed research plan is approved and the research streamed as well.
// The returned data describes the last turn even when it failed.
func runAsk(ctx context.Context, cfg *config.Config, b *backend, args Args, out, info io.Writer) (*AskData, error) {
	s := newChatSession(cfg, b, args, out, info)
	defer s.Close()

	if args.ChatID != "" {
		if err := s.Open(ctx, args.ChatID); err != nil {
			return nil, err
		}
	}

	var image string
	if args.Image != "" {
		var err error
		if image, err = util.ImageDataURL(args.Image); err != nil {
			return nil, &UsageError{Message: err.Error(), Usage: askUsage}
		}
	}
	if err := s.EnsureModel(ctx, image != ""); err != nil {
		return nil, err
	}

	if err := s.Do(ctx, turn.Submit{Text: args.Query, Image: image}); err != nil {
		return nil, err
	}
	if plan := s.ctrl.PendingPlan(); plan != "" && args.Approve && ctx.Err() == nil {
		if info != nil {
			fmt.Fprintln(info, DimStyle.Render("[OK] Plan approved, researching..."))
		}
		if err := s.Do(ctx, turn.ApprovePlan{Plan: plan}); err != nil {
			return nil, err
		}
	}

	v := lastAssistant(s.ctrl)
	data := &AskData{
		ChatID: s.ctrl.ChatID(),
		Model:  s.ctrl.Settings().Model.ID,
		Plan:   s.ctrl.PendingPlan(),
	}
	if s.ctrl.Settings().Temporary {
		data.ChatID = ""
	}
	if v == nil {
		return data, nil
	}
	data.Answer = v.Cleaned()
	data.Thoughts = v.Thoughts()
	data.Sources = sources(v)
	data.Error = v.Err()

	switch {
	case data.Error != "":
		return data, &ReportedError{Err: errors.New(data.Error)}
	case ctx.Err() != nil:
		return data, &ReportedError{Err: errors.New("interrupted")}
	}
	return data, nil
}
