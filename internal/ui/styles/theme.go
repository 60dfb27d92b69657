// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Theme holds all the styled components for the application.
// It detects the terminal's color capability and adjusts accordingly.
type Theme struct {
	// Terminal capabilities
	IsDark       bool
	HasTrueColor bool
	ColorProfile termenv.Profile

	// Layout dimensions
	Width  int
	Height int

	// ==========================================================================
	// HEADER
	// ==========================================================================

	Header      lipgloss.Style
	HeaderTitle lipgloss.Style
	Badge       lipgloss.Style
	BadgeVision lipgloss.Style
	BadgeTemp   lipgloss.Style

	// ==========================================================================
	// MESSAGE ROWS
	// ==========================================================================

	UserLabel      lipgloss.Style
	UserText       lipgloss.Style
	AssistantLabel lipgloss.Style
	ModelLabel     lipgloss.Style
	Placeholder    lipgloss.Style
	InlineError    lipgloss.Style
	Stopped        lipgloss.Style
	Notice         lipgloss.Style

	// ==========================================================================
	// THOUGHT PANEL
	// ==========================================================================

	ThoughtHeader       lipgloss.Style
	ThoughtHeaderActive lipgloss.Style
	ThoughtBody         lipgloss.Style

	// ==========================================================================
	// ACTIVITY FEED
	// ==========================================================================

	FeedBox       lipgloss.Style
	FeedStep      lipgloss.Style
	FeedDetail    lipgloss.Style
	FeedDone      lipgloss.Style
	LiveIndicator lipgloss.Style
	Correcting    lipgloss.Style

	// ==========================================================================
	// RESEARCH PLAN
	// ==========================================================================

	PlanBox         lipgloss.Style
	PlanBoxApproved lipgloss.Style
	PlanTitle       lipgloss.Style
	PlanHint        lipgloss.Style

	// ==========================================================================
	// CHAT LIST, INPUT, STATUS BAR
	// ==========================================================================

	ChatItem         lipgloss.Style
	ChatItemSelected lipgloss.Style
	ChatMeta         lipgloss.Style

	InputContainer   lipgloss.Style
	InputPrompt      lipgloss.Style
	InputPlaceholder lipgloss.Style
	Attachment       lipgloss.Style

	StatusBar    lipgloss.Style
	StatusKey    lipgloss.Style
	StatusValue  lipgloss.Style
	ShortcutKey  lipgloss.Style
	ShortcutDesc lipgloss.Style
}

// NewTheme creates a new theme with all styles configured.
func NewTheme() *Theme {
	colorProfile := termenv.ColorProfile()
	t := &Theme{
		IsDark:       termenv.HasDarkBackground(),
		HasTrueColor: colorProfile == termenv.TrueColor,
		ColorProfile: colorProfile,
	}
	t.initStyles()
	return t
}

// PlainTheme returns a theme without colors, for non-interactive output and
// tests.
func PlainTheme() *Theme {
	t := &Theme{ColorProfile: termenv.Ascii}
	t.initStyles()
	r := lipgloss.NewRenderer(io.Discard)
	r.SetColorProfile(termenv.Ascii)
	r.SetHasDarkBackground(true)
	t.forEach(func(s *lipgloss.Style) {
		*s = s.Renderer(r)
	})
	return t
}

func (t *Theme) initStyles() {
	// Header
	t.Header = lipgloss.NewStyle().
		Background(SurfaceDim).
		Padding(0, 1)
	t.HeaderTitle = lipgloss.NewStyle().
		Bold(true).
		Foreground(Violet)
	t.Badge = lipgloss.NewStyle().
		Foreground(Violet).
		Padding(0, 1)
	t.BadgeVision = lipgloss.NewStyle().
		Foreground(Cyan).
		Padding(0, 1)
	t.BadgeTemp = lipgloss.NewStyle().
		Foreground(Amber).
		Padding(0, 1)

	// Message rows
	t.UserLabel = lipgloss.NewStyle().
		Bold(true).
		Foreground(Cyan)
	t.UserText = lipgloss.NewStyle().
		Foreground(TextPrimary).
		BorderStyle(lipgloss.NormalBorder()).
		BorderLeft(true).
		BorderForeground(Cyan).
		PaddingLeft(1)
	t.AssistantLabel = lipgloss.NewStyle().
		Bold(true).
		Foreground(Violet)
	t.ModelLabel = lipgloss.NewStyle().
		Foreground(TextMuted).
		Italic(true)
	t.Placeholder = lipgloss.NewStyle().
		Foreground(TextMuted).
		Italic(true)
	t.InlineError = lipgloss.NewStyle().
		Foreground(Rose)
	t.Stopped = lipgloss.NewStyle().
		Foreground(Rose).
		Italic(true)
	t.Notice = lipgloss.NewStyle().
		Foreground(TextSecondary).
		Italic(true)

	// Thought panel
	t.ThoughtHeader = lipgloss.NewStyle().
		Foreground(TextSecondary).
		Bold(true)
	t.ThoughtHeaderActive = lipgloss.NewStyle().
		Foreground(Violet).
		Bold(true)
	t.ThoughtBody = lipgloss.NewStyle().
		Foreground(TextSecondary).
		BorderStyle(lipgloss.NormalBorder()).
		BorderLeft(true).
		BorderForeground(Overlay).
		PaddingLeft(1)

	// Activity feed
	t.FeedBox = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(VioletDeep).
		Padding(0, 1)
	t.FeedStep = lipgloss.NewStyle().
		Foreground(TextPrimary)
	t.FeedDetail = lipgloss.NewStyle().
		Foreground(TextMuted).
		PaddingLeft(2)
	t.FeedDone = lipgloss.NewStyle().
		Foreground(Emerald)
	t.LiveIndicator = lipgloss.NewStyle().
		Foreground(Violet).
		Italic(true)
	t.Correcting = lipgloss.NewStyle().
		Foreground(Amber).
		Italic(true)

	// Research plan
	t.PlanBox = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Violet).
		Padding(0, 1)
	t.PlanBoxApproved = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Emerald).
		Padding(0, 1)
	t.PlanTitle = lipgloss.NewStyle().
		Bold(true).
		Foreground(Violet)
	t.PlanHint = lipgloss.NewStyle().
		Foreground(TextMuted).
		Italic(true)

	// Chat list
	t.ChatItem = lipgloss.NewStyle().
		Foreground(TextPrimary).
		PaddingLeft(2)
	t.ChatItemSelected = lipgloss.NewStyle().
		Foreground(Cyan).
		Bold(true).
		BorderStyle(lipgloss.NormalBorder()).
		BorderLeft(true).
		BorderForeground(Cyan).
		PaddingLeft(1)
	t.ChatMeta = lipgloss.NewStyle().
		Foreground(TextMuted)

	// Input
	t.InputContainer = lipgloss.NewStyle().
		BorderStyle(lipgloss.NormalBorder()).
		BorderTop(true).
		BorderForeground(Overlay)
	t.InputPrompt = lipgloss.NewStyle().
		Foreground(Cyan).
		Bold(true)
	t.InputPlaceholder = lipgloss.NewStyle().
		Foreground(TextMuted).
		Italic(true)
	t.Attachment = lipgloss.NewStyle().
		Foreground(Cyan).
		Italic(true)

	// Status bar
	t.StatusBar = lipgloss.NewStyle().
		Background(SurfaceDim).
		Foreground(TextSecondary).
		Padding(0, 1)
	t.StatusKey = lipgloss.NewStyle().
		Foreground(TextMuted)
	t.StatusValue = lipgloss.NewStyle().
		Foreground(TextPrimary).
		Bold(true)
	t.ShortcutKey = lipgloss.NewStyle().
		Foreground(Cyan).
		Bold(true)
	t.ShortcutDesc = lipgloss.NewStyle().
		Foreground(TextMuted)
}

// forEach visits every style field.
func (t *Theme) forEach(fn func(*lipgloss.Style)) {
	for _, s := range []*lipgloss.Style{
		&t.Header, &t.HeaderTitle, &t.Badge, &t.BadgeVision, &t.BadgeTemp,
		&t.UserLabel, &t.UserText, &t.AssistantLabel, &t.ModelLabel, &t.Placeholder,
		&t.InlineError, &t.Stopped, &t.Notice,
		&t.ThoughtHeader, &t.ThoughtHeaderActive, &t.ThoughtBody,
		&t.FeedBox, &t.FeedStep, &t.FeedDetail, &t.FeedDone, &t.LiveIndicator, &t.Correcting,
		&t.PlanBox, &t.PlanBoxApproved, &t.PlanTitle, &t.PlanHint,
		&t.ChatItem, &t.ChatItemSelected, &t.ChatMeta,
		&t.InputContainer, &t.InputPrompt, &t.InputPlaceholder, &t.Attachment,
		&t.StatusBar, &t.StatusKey, &t.StatusValue, &t.ShortcutKey, &t.ShortcutDesc,
	} {
		fn(s)
	}
}

// SetSize updates the theme dimensions for responsive layouts.
func (t *Theme) SetSize(width, height int) {
	t.Width = width
	t.Height = height
}

// ContentWidth returns the usable width for message bodies.
func (t *Theme) ContentWidth() int {
	w := t.Width - 4
	if w < 20 {
		return 20
	}
	return w
}

// GetLayoutMode returns the current layout mode based on width.
func (t *Theme) GetLayoutMode() LayoutMode {
	if t.Width < 60 {
		return LayoutNarrow
	}
	if t.Width < 100 {
		return LayoutMedium
	}
	return LayoutWide
}

// LayoutMode represents the current responsive layout mode.
type LayoutMode int

const (
	LayoutNarrow LayoutMode = iota // < 60 columns
	LayoutMedium                   // 60-100 columns
	LayoutWide                     // > 100 columns
)
