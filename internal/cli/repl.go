// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// repl.go - Line based interactive chat.
//
// Command: repl
// Short:   Interactive chat without the full screen view
// Aliases: chat
//
// Uses liner for line editing and a history file in the config directory.
// Ctrl+C stops the running turn; at the prompt it exits, as does Ctrl+D.

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/peterh/liner"

	"github.com/jeranaias/luminous-tui/internal/config"
	"github.com/jeranaias/luminous-tui/internal/export"
	"github.com/jeranaias/luminous-tui/internal/logging"
	"github.com/jeranaias/luminous-tui/internal/model"
	"github.com/jeranaias/luminous-tui/internal/storage"
	"github.com/jeranaias/luminous-tui/internal/turn"
	"github.com/jeranaias/luminous-tui/internal/util"
)

// =============================================================================
// INPUT HISTORY
// =============================================================================

// lineReader provides input history and line editing.
type lineReader struct {
	line        *liner.State
	historyFile string
}

func newLineReader() *lineReader {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	dir, err := config.ConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	r := &lineReader{line: line, historyFile: filepath.Join(dir, "repl_history")}
	if f, err := os.Open(r.historyFile); err == nil {
		r.line.ReadHistory(f)
		f.Close()
	}
	return r
}

// ReadLine reads one line. Non-empty input is added to the history.
func (r *lineReader) ReadLine(prompt string) (string, error) {
	input, err := r.line.Prompt(prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(input) != "" {
		r.line.AppendHistory(input)
	}
	return input, nil
}

// Close saves the history with owner-only permissions and restores the
// terminal.
func (r *lineReader) Close() {
	if err := os.MkdirAll(filepath.Dir(r.historyFile), 0700); err == nil {
		if f, err := os.OpenFile(r.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600); err == nil {
			r.line.WriteHistory(f)
			f.Close()
		}
	}
	r.line.Close()
}

// =============================================================================
// COMMAND
// =============================================================================

// HandleReplCommand handles the "repl" command.
func HandleReplCommand(args Args) error {
	cfg, _, err := loadConfig(args)
	if err != nil {
		return err
	}
	initLogging(cfg, true)
	defer logging.Shutdown()

	b, err := openBackend(cfg)
	if err != nil {
		return err
	}
	defer b.Close()

	r := &repl{
		out:     os.Stdout,
		exports: ".",
	}
	r.session = newChatSession(cfg, b, args, os.Stdout, os.Stderr)
	defer r.session.Close()

	ctx := context.Background()
	if err := r.session.EnsureModel(ctx, false); err != nil {
		var notice *NoticeError
		if !errors.As(err, &notice) {
			StderrPrintf("%s %v\n", WarningStyle.Render("[Warning]"), err)
		}
	}
	if args.ChatID != "" {
		if err := r.session.Open(ctx, args.ChatID); err != nil {
			return err
		}
	}

	lines := newLineReader()
	defer lines.Close()

	r.printWelcome()
	for {
		input, err := lines.ReadLine(PromptStyle.Render("luminous> "))
		if err != nil {
			// Ctrl+C at the prompt (liner.ErrPromptAborted), Ctrl+D or a
			// closed stdin all end the session.
			fmt.Fprintln(r.out)
			return nil
		}
		if !r.handle(input) {
			return nil
		}
	}
}

// =============================================================================
// REPL
// =============================================================================

// repl handles the lines typed into the interactive chat.
type repl struct {
	session *chatSession
	out     io.Writer
	exports string
}

// handle processes one input line. It returns false to exit.
func (r *repl) handle(input string) bool {
	input = strings.TrimSpace(input)
	switch {
	case input == "":
		return true
	case strings.EqualFold(input, "exit"), strings.EqualFold(input, "quit"):
		return false
	case strings.HasPrefix(input, "/"):
		cont, err := r.command(input)
		if err != nil {
			fmt.Fprintf(r.out, "%s %v\n", ErrorStyle.Render("[Error]"), err)
		}
		return cont
	}

	if err := r.turn(turn.Submit{Text: input}); err != nil {
		fmt.Fprintf(r.out, "%s %v\n", ErrorStyle.Render("[Error]"), err)
	}
	return true
}

// turn runs ev with Ctrl+C bound to stopping it.
func (r *repl) turn(ev turn.Event) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	err := r.session.Do(ctx, ev)
	if ctx.Err() != nil {
		fmt.Fprintln(r.out, WarningStyle.Render("[Stopped]"))
	}
	return err
}

// command handles a slash command. It returns false to exit.
func (r *repl) command(input string) (bool, error) {
	fields := strings.Fields(input)
	name, args := strings.ToLower(fields[0]), fields[1:]
	ctrl := r.session.ctrl
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout(r.session.cfg))
	defer cancel()

	switch name {
	case "/", "/help", "/h", "/?":
		r.printHelp()

	case "/quit", "/q", "/exit":
		return false, nil

	case "/new", "/n":
		ctrl.Dispatch(turn.NewChat{})
		r.ok("New chat")

	case "/temp":
		ctrl.Dispatch(turn.NewChat{Temporary: true})
		r.ok("Temporary chat, nothing will be saved")

	case "/research":
		on, err := parseOnOff(args, ctrl.Settings().DeepResearch)
		if err != nil {
			return true, err
		}
		ctrl.Dispatch(turn.SetMode{Mode: turn.ModeDeepResearch, On: on})
		r.ok("Deep research " + onOffText(on))

	case "/memory":
		on, err := parseOnOff(args, ctrl.Settings().MemoryMode)
		if err != nil {
			return true, err
		}
		ctrl.Dispatch(turn.SetMode{Mode: turn.ModeMemory, On: on})
		r.ok("Memory " + onOffText(on))

	case "/depth":
		if len(args) != 1 || !validDepth(args[0]) {
			return true, errors.New("usage: /depth regular|deep")
		}
		ctrl.Dispatch(turn.SetSearchDepth{Depth: strings.ToLower(args[0])})
		r.ok("Search depth " + strings.ToLower(args[0]))

	case "/model", "/m":
		return true, r.model(ctx, args)

	case "/image", "/img":
		if len(args) == 0 {
			return true, errors.New("usage: /image <path> [message]")
		}
		image, err := util.ImageDataURL(args[0])
		if err != nil {
			return true, err
		}
		if err := r.session.EnsureModel(ctx, true); err != nil {
			return true, err
		}
		text := strings.Join(args[1:], " ")
		if text == "" {
			text = "Describe this image."
		}
		return true, r.turn(turn.Submit{Text: text, Image: image})

	case "/approve", "/a":
		plan := ctrl.PendingPlan()
		if plan == "" {
			return true, errors.New(turn.NoticeNoPlan)
		}
		return true, r.turn(turn.ApprovePlan{Plan: plan})

	case "/retry", "/r":
		msg, ok := lastOf(ctrl, model.RoleAssistant)
		if !ok {
			return true, errors.New(turn.NoticeNothingRetry)
		}
		return true, r.turn(turn.Retry{ID: msg.ID})

	case "/thoughts", "/t":
		v := lastAssistant(ctrl)
		if v == nil || v.Thoughts() == "" {
			r.info("No thoughts for the last answer")
			return true, nil
		}
		fmt.Fprintln(r.out, DimStyle.Render(v.Thoughts()))

	case "/export", "/e":
		format := "md"
		if len(args) > 0 {
			format = args[0]
		}
		chat := ctrl.Snapshot()
		opts := export.DefaultOptions()
		opts.OutputDir = r.exports
		path, err := export.Export(&chat, format, opts)
		if err != nil {
			return true, err
		}
		r.ok("Exported to " + path)

	case "/chats", "/list":
		chats, err := r.session.backend.store.ListChats(ctx)
		if err != nil {
			return true, err
		}
		fmt.Fprint(r.out, storage.FormatChatList(chats, GetTerminalWidth()))

	case "/load":
		if len(args) != 1 {
			return true, errors.New("usage: /load <id>")
		}
		if err := r.session.Open(ctx, args[0]); err != nil {
			return true, err
		}
		r.ok("Opened " + ctrl.Title())

	case "/status", "/s":
		r.printStatus()

	default:
		return true, fmt.Errorf("unknown command: %s (type /help for commands)", name)
	}
	return true, nil
}

// model selects args[0] or lists the models the server offers.
func (r *repl) model(ctx context.Context, args []string) error {
	models, err := r.session.backend.client.ListModels(ctx)
	if err != nil {
		return err
	}
	sortModels(models)
	current := r.session.ctrl.Settings().Model

	if len(args) == 0 {
		for _, m := range models {
			mark := "  "
			if m.ID == current.ID {
				mark = "* "
			}
			line := mark + m.DisplayName()
			if m.Vision {
				line += DimStyle.Render(" (vision)")
			}
			fmt.Fprintln(r.out, line)
		}
		return nil
	}

	for _, m := range models {
		if strings.EqualFold(m.ID, args[0]) || strings.EqualFold(m.Name, args[0]) {
			r.session.ctrl.Dispatch(turn.SetModel{Model: m})
			r.ok("Switched to model: " + m.DisplayName())
			return nil
		}
	}
	return fmt.Errorf("unknown model: %s (type /model to list)", args[0])
}

// =============================================================================
// DISPLAY
// =============================================================================

func (r *repl) ok(msg string) {
	fmt.Fprintln(r.out, SuccessStyle.Render("[OK]")+" "+msg)
}

func (r *repl) info(msg string) {
	fmt.Fprintln(r.out, DimStyle.Render(msg))
}

func (r *repl) printWelcome() {
	s := r.session.ctrl.Settings()
	fmt.Fprintln(r.out)
	fmt.Fprintln(r.out, TitleStyle.Render("luminous interactive chat"))
	fmt.Fprintln(r.out, RenderSeparator(30))
	if !s.Configured {
		fmt.Fprintln(r.out, WarningStyle.Render(turn.NoticeNotConfigured))
	}
	r.printStatus()
	fmt.Fprintln(r.out)
	r.info("Type your message and press Enter. Commands: /help, /quit")
	fmt.Fprintln(r.out)
}

func (r *repl) printStatus() {
	ctrl := r.session.ctrl
	s := ctrl.Settings()
	modelName := s.Model.DisplayName()
	if modelName == "" {
		modelName = "none (/model)"
	}
	fmt.Fprintf(r.out, "%s %s\n", RenderLabel("Model:"), modelName)
	fmt.Fprintf(r.out, "%s %s\n", RenderLabel("Chat:"), ctrl.Title())
	fmt.Fprintf(r.out, "%s %s\n", RenderLabel("Deep research:"), onOffText(s.DeepResearch))
	fmt.Fprintf(r.out, "%s %s\n", RenderLabel("Memory:"), onOffText(s.MemoryMode))
	if s.Temporary {
		fmt.Fprintf(r.out, "%s %s\n", RenderLabel("Temporary:"), "on")
	}
	if plan := ctrl.PendingPlan(); plan != "" {
		fmt.Fprintf(r.out, "%s %s\n", RenderLabel("Plan:"), "waiting for /approve")
	}
}

func (r *repl) printHelp() {
	fmt.Fprintln(r.out)
	fmt.Fprintln(r.out, TitleStyle.Render("Available Commands"))
	fmt.Fprintln(r.out, RenderSeparator(20))

	commands := []struct {
		cmd  string
		desc string
	}{
		{"/help, /h", "Show this help"},
		{"/new, /n", "Start a new chat"},
		{"/temp", "Start a temporary chat"},
		{"/research [on|off]", "Toggle deep research"},
		{"/memory [on|off]", "Toggle memory mode"},
		{"/depth regular|deep", "Set the research search depth"},
		{"/model [id]", "Show or switch model"},
		{"/image <path> [msg]", "Send a message with an image"},
		{"/approve, /a", "Approve the pending research plan"},
		{"/retry, /r", "Regenerate the last answer"},
		{"/thoughts, /t", "Print the thoughts of the last answer"},
		{"/export [md|json|html]", "Export the chat to a file"},
		{"/chats", "List saved chats"},
		{"/load <id>", "Open a saved chat"},
		{"/status, /s", "Show the chat settings"},
		{"/quit, /q", "Exit"},
	}
	for _, c := range commands {
		fmt.Fprintf(r.out, "  %-24s %s\n", c.cmd, DimStyle.Render(c.desc))
	}
	fmt.Fprintln(r.out)
	r.info("Tip: Ctrl+C stops the current answer, Ctrl+D exits")
	fmt.Fprintln(r.out)
}

// =============================================================================
// HELPERS
// =============================================================================

// requestTimeout bounds the non-streaming calls of a slash command.
func requestTimeout(cfg *config.Config) time.Duration {
	if cfg.Server.TimeoutSecs > 0 {
		return time.Duration(cfg.Server.TimeoutSecs) * time.Second
	}
	return 30 * time.Second
}

func lastOf(c *turn.Controller, role model.Role) (model.Message, bool) {
	msgs := c.Messages()
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == role {
			return msgs[i], true
		}
	}
	return model.Message{}, false
}

func parseOnOff(args []string, current bool) (bool, error) {
	if len(args) == 0 {
		return !current, nil
	}
	switch strings.ToLower(args[0]) {
	case "on", "true", "yes", "1":
		return true, nil
	case "off", "false", "no", "0":
		return false, nil
	}
	return current, fmt.Errorf("expected on or off, got %q", args[0])
}

func onOffText(on bool) string {
	if on {
		return "on"
	}
	return "off"
}

func validDepth(d string) bool {
	switch strings.ToLower(d) {
	case "regular", "deep":
		return true
	}
	return false
}
