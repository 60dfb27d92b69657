// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/luminous-tui/internal/util"
)

// Layout constants.
const (
	headerHeight = 1
	statusHeight = 1
)

// =============================================================================
// MAIN VIEW
// =============================================================================

// View renders the chat view.
func (m Model) View() string {
	if !m.ready {
		return "Starting luminous..."
	}

	var body string
	switch m.state {
	case StateChats:
		body = m.renderChats()
	case StateModels:
		body = m.renderModels()
	case StateHelp:
		body = m.renderHelp()
	default:
		body = m.viewport.View()
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		m.renderHeader(),
		body,
		m.theme.InputContainer.Width(m.width).Render(m.input.View()),
		m.renderStatus(),
	)
}

// =============================================================================
// HEADER
// =============================================================================

func (m Model) renderHeader() string {
	t := m.theme
	s := m.ctrl.Settings()

	left := t.HeaderTitle.Render("Luminous") + " " + util.TruncateWidth(m.ctrl.Title(), max(m.width/2, 10))

	var badges []string
	if s.DeepResearch {
		badges = append(badges, t.Badge.Render("research:"+depthLabel(s.SearchDepth)))
	}
	if s.MemoryMode {
		badges = append(badges, t.Badge.Render("memory"))
	}
	if s.Temporary {
		badges = append(badges, t.BadgeTemp.Render("temporary"))
	}
	if s.Model.Vision {
		badges = append(badges, t.BadgeVision.Render("vision"))
	}

	modelName := s.Model.DisplayName()
	if modelName == "" {
		modelName = "no model"
	}
	right := strings.Join(badges, "") + " " + t.StatusValue.Render(modelName)

	gap := m.width - lipgloss.Width(left) - lipgloss.Width(right) - 2
	if gap < 1 {
		gap = 1
	}
	return t.Header.Width(m.width).Render(left + strings.Repeat(" ", gap) + right)
}

func depthLabel(depth string) string {
	if depth == "" {
		return "regular"
	}
	return depth
}

// =============================================================================
// STATUS BAR
// =============================================================================

func (m Model) renderStatus() string {
	t := m.theme

	var parts []string
	if m.imageName != "" {
		parts = append(parts, t.Attachment.Render("[image: "+m.imageName+"]"))
	}
	if m.ctrl.PendingPlan() != "" && !m.ctrl.IsGenerating() && !m.editingPlan {
		parts = append(parts, t.ShortcutKey.Render("C-a")+" "+t.ShortcutDesc.Render("approve plan"))
	}

	switch {
	case m.status != "" && m.statusErr:
		parts = append(parts, t.InlineError.Render(m.status))
	case m.status != "":
		parts = append(parts, t.Notice.Render(m.status))
	case m.state == StateChats:
		parts = append(parts, m.help.ShortHelpView(m.keys.pickerKeys(true)))
	case m.state == StateModels:
		parts = append(parts, m.help.ShortHelpView(m.keys.pickerKeys(false)))
	default:
		parts = append(parts, m.help.ShortHelpView(m.keys.ShortHelp()))
	}

	line := strings.Join(parts, "  ")
	return t.StatusBar.Width(m.width).Render(util.TruncateWidth(line, max(m.width-2, 10)))
}

// =============================================================================
// PICKERS
// =============================================================================

func (m Model) renderChats() string {
	t := m.theme
	var b strings.Builder
	b.WriteString(t.PlanTitle.Render("Chats") + "\n\n")
	if len(m.chats) == 0 {
		b.WriteString(t.Placeholder.Render("No saved chats."))
		return m.fill(b.String())
	}

	start, end := m.window(len(m.chats))
	for i := start; i < end; i++ {
		c := m.chats[i]
		meta := c.Time().Format("2006-01-02 15:04")
		if c.DeepResearchMode {
			meta += "  research"
		}
		title := util.TruncateWidth(c.Title, max(m.width-lipgloss.Width(meta)-8, 10))
		line := title + "  " + t.ChatMeta.Render(meta)
		if i == m.cursor {
			b.WriteString(t.ChatItemSelected.Render(line))
		} else {
			b.WriteString(t.ChatItem.Render(line))
		}
		b.WriteString("\n")
	}
	return m.fill(b.String())
}

func (m Model) renderModels() string {
	t := m.theme
	current := m.ctrl.Settings().Model.ID

	var b strings.Builder
	b.WriteString(t.PlanTitle.Render("Models") + "\n\n")
	start, end := m.window(len(m.models))
	for i := start; i < end; i++ {
		info := m.models[i]
		line := info.DisplayName()
		if info.Name != "" && info.Name != info.ID {
			line += "  " + t.ChatMeta.Render(info.ID)
		}
		if info.Vision {
			line += " " + t.BadgeVision.Render("vision")
		}
		if info.ID == current {
			line += " " + t.ChatMeta.Render("(selected)")
		}
		if i == m.cursor {
			b.WriteString(t.ChatItemSelected.Render(line))
		} else {
			b.WriteString(t.ChatItem.Render(line))
		}
		b.WriteString("\n")
	}
	return m.fill(b.String())
}

// window returns the visible slice of a list of n items around the cursor.
func (m Model) window(n int) (int, int) {
	rows := m.viewport.Height - 2
	if rows < 1 {
		rows = 1
	}
	start := 0
	if m.cursor >= rows {
		start = m.cursor - rows + 1
	}
	return start, min(start+rows, n)
}

// =============================================================================
// HELP
// =============================================================================

func (m Model) renderHelp() string {
	t := m.theme
	var b strings.Builder
	b.WriteString(t.PlanTitle.Render("Keys") + "\n")
	b.WriteString(m.help.FullHelpView(m.keys.FullHelp()) + "\n\n")
	b.WriteString(t.PlanTitle.Render("Commands") + "\n")
	for _, c := range commands {
		name := "/" + c.Name
		if c.Args != "" {
			name += " " + c.Args
		}
		b.WriteString(fmt.Sprintf("%s %s\n", t.ShortcutKey.Render(util.PadWidth(name, 26)), t.ShortcutDesc.Render(c.Desc)))
	}
	b.WriteString("\n" + t.Placeholder.Render("Press any key to close."))
	return m.fill(b.String())
}

// fill pads s to the viewport height so the input stays in place.
func (m Model) fill(s string) string {
	return lipgloss.NewStyle().Height(m.viewport.Height).MaxHeight(m.viewport.Height).Render(s)
}

// welcome is shown in an empty chat.
func (m *Model) welcome() string {
	t := m.theme
	lines := []string{
		t.HeaderTitle.Render("Luminous"),
		"",
		t.Notice.Render("Type a message and press enter. alt+enter inserts a newline."),
		t.Notice.Render("/research toggles deep research, /model picks a model, /help lists everything."),
	}
	if !m.ctrl.Settings().Configured {
		lines = append(lines, "", t.InlineError.Render("No server configured: luminous config set server.url <url>"))
	}
	return strings.Join(lines, "\n")
}
