// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// chats.go - Saved chat management.
//
// Command: chats [subcommand]
// Short:   List, show, export or delete saved chats
// Aliases: ls
//
// Subcommands:
//   list (default)       List saved chats, newest first
//   show <id>            Print a chat as markdown
//   export <id>          Export a chat to a file
//   delete <id>          Delete a chat
//   clear --confirm      Delete every chat
//
// Chats come from the server, or from the local sqlite file when
// storage.mode is "local".

package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/jeranaias/luminous-tui/internal/config"
	"github.com/jeranaias/luminous-tui/internal/export"
	"github.com/jeranaias/luminous-tui/internal/logging"
	"github.com/jeranaias/luminous-tui/internal/model"
	"github.com/jeranaias/luminous-tui/internal/storage"
	"github.com/jeranaias/luminous-tui/internal/turn"
)

const chatsUsage = "luminous chats [list|show <id>|export <id> [--format md|json|html] [--output DIR]|delete <id>|clear --confirm]"

// HandleChatsCommand handles the "chats" command.
func HandleChatsCommand(args Args) error {
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

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout(cfg))
	defer cancel()
	return runChats(ctx, cfg, b.store, args, os.Stdout)
}

// runChats executes a chats subcommand against store.
func runChats(ctx context.Context, cfg *config.Config, store turn.ChatStore, args Args, out io.Writer) error {
	p := NewArgParser(args.Raw)
	id := p.Positional(1)

	switch p.Subcommand() {
	case "", "list", "ls":
		return listChats(ctx, store, args, out)

	case "show", "cat":
		if id == "" {
			return ErrMissingArgument("chat id", chatsUsage)
		}
		return showChat(ctx, store, id, args, out)

	case "export":
		if id == "" {
			return ErrMissingArgument("chat id", chatsUsage)
		}
		chat, err := store.GetChat(ctx, id)
		if err != nil {
			return err
		}
		opts := export.DefaultOptions()
		opts.OutputDir = storage.ExpandHome(p.FlagOrDefault("output", "."))
		opts.IncludeThoughts = !p.BoolFlag("no-thoughts")
		if cfg.UI.Theme == "light" {
			opts.Theme = "light"
		}
		path, err := export.Export(chat, p.FlagOrDefault("format", "md"), opts)
		if err != nil {
			return NewCommandError("chats", "export", id, err)
		}
		if args.JSON {
			return NewJSONResponse("chats export", map[string]string{"id": id, "path": path}).Write(out)
		}
		fmt.Fprintf(out, "%s Exported to %s\n", SuccessStyle.Render("[OK]"), path)
		return nil

	case "delete", "rm":
		if id == "" {
			return ErrMissingArgument("chat id", chatsUsage)
		}
		if err := store.DeleteChat(ctx, id); err != nil {
			return err
		}
		if args.JSON {
			return NewJSONResponse("chats delete", map[string]string{"id": id}).Write(out)
		}
		fmt.Fprintf(out, "%s Deleted %s\n", SuccessStyle.Render("[OK]"), id)
		return nil

	case "clear":
		if !p.BoolFlag("confirm") {
			return &UsageError{Message: "clear deletes every chat; pass --confirm", Usage: "luminous chats clear --confirm"}
		}
		if err := store.ClearChats(ctx); err != nil {
			return err
		}
		if args.JSON {
			return NewJSONResponse("chats clear", nil).Write(out)
		}
		fmt.Fprintf(out, "%s All chats deleted\n", SuccessStyle.Render("[OK]"))
		return nil

	default:
		return ErrUnknownSubcommand("chats", p.Subcommand(), chatsUsage)
	}
}

func listChats(ctx context.Context, store turn.ChatStore, args Args, out io.Writer) error {
	chats, err := store.ListChats(ctx)
	if err != nil {
		return err
	}
	if args.JSON {
		items := make([]ChatListItem, 0, len(chats))
		for _, c := range chats {
			items = append(items, chatListItem(c))
		}
		return NewJSONResponse("chats list", items).Write(out)
	}
	fmt.Fprint(out, storage.FormatChatList(chats, GetTerminalWidth()))
	if len(chats) == 0 {
		fmt.Fprintln(out)
	}
	return nil
}

func showChat(ctx context.Context, store turn.ChatStore, id string, args Args, out io.Writer) error {
	chat, err := store.GetChat(ctx, id)
	if err != nil {
		return err
	}
	if args.JSON {
		return NewJSONResponse("chats show", chat).Write(out)
	}
	md, err := export.NewMarkdownExporter(export.DefaultOptions()).Export(chat)
	if err != nil {
		return NewCommandError("chats", "show", id, err)
	}
	fmt.Fprint(out, renderMarkdown(string(md), GetTerminalWidth()))
	return nil
}

func chatListItem(c model.ChatMeta) ChatListItem {
	return ChatListItem{
		ID:           c.ID,
		Title:        c.Title,
		Updated:      c.Time().UTC(),
		DeepResearch: bool(c.DeepResearchMode),
		Memory:       bool(c.MemoryMode),
		Vision:       bool(c.IsVision),
		LastModel:    c.LastModel,
	}
}
