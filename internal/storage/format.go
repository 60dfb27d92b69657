// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"strings"

	"github.com/jeranaias/luminous-tui/internal/model"
	"github.com/jeranaias/luminous-tui/internal/util"
)

const (
	listIDWidth   = 10
	listTimeWidth = 16
	listModeWidth = 6
)

// FormatChatList renders chat metadata as a fixed width table for the
// chats command. width bounds the title column; zero means 80 columns.
func FormatChatList(chats []model.ChatMeta, width int) string {
	if len(chats) == 0 {
		return "No chats found."
	}
	if width <= 0 {
		width = 80
	}
	titleWidth := width - listIDWidth - listTimeWidth - listModeWidth - 3
	if titleWidth < 10 {
		titleWidth = 10
	}

	var sb strings.Builder
	rule := strings.Repeat("-", listIDWidth+listTimeWidth+listModeWidth+titleWidth+3)
	sb.WriteString(util.PadWidth("ID", listIDWidth) + " " + util.PadWidth("Updated", listTimeWidth) + " " +
		util.PadWidth("Mode", listModeWidth) + " Title\n")
	sb.WriteString(rule + "\n")

	for _, c := range chats {
		sb.WriteString(util.PadWidth(c.ID, listIDWidth) + " ")
		sb.WriteString(util.PadWidth(c.Time().Format("2006-01-02 15:04"), listTimeWidth) + " ")
		sb.WriteString(util.PadWidth(modeTag(c), listModeWidth) + " ")
		sb.WriteString(util.TruncateWidth(c.Title, titleWidth) + "\n")
	}
	return sb.String()
}

func modeTag(c model.ChatMeta) string {
	var tag string
	if c.DeepResearchMode {
		tag += "R"
	}
	if c.MemoryMode {
		tag += "M"
	}
	if c.IsVision {
		tag += "V"
	}
	if tag == "" {
		return "-"
	}
	return tag
}
