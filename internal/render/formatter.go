// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package render

import (
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
)

// Formatter converts markdown to display text for a given width.
type Formatter interface {
	Format(markdown string, width int) string
}

// =============================================================================
// GLAMOUR
// =============================================================================

// GlamourFormatter renders markdown with glamour. Renderers are built lazily
// and cached per width since construction loads the style sheet.
type GlamourFormatter struct {
	// Style is a glamour style name ("dark", "light", "notty"); empty selects
	// the style from the terminal background.
	Style string

	mu        sync.Mutex
	renderers map[int]*glamour.TermRenderer
}

// NewGlamourFormatter creates a formatter using the named style.
func NewGlamourFormatter(style string) *GlamourFormatter {
	return &GlamourFormatter{Style: style, renderers: make(map[int]*glamour.TermRenderer)}
}

func (g *GlamourFormatter) renderer(width int) *glamour.TermRenderer {
	g.mu.Lock()
	defer g.mu.Unlock()

	if r, ok := g.renderers[width]; ok {
		return r
	}
	styleOpt := glamour.WithAutoStyle()
	if g.Style != "" && g.Style != "auto" {
		styleOpt = glamour.WithStandardStyle(g.Style)
	}
	r, err := glamour.NewTermRenderer(styleOpt, glamour.WithWordWrap(width))
	if err != nil {
		// Cache the failure too so we don't retry on every delta.
		r = nil
	}
	if g.renderers == nil {
		g.renderers = make(map[int]*glamour.TermRenderer)
	}
	g.renderers[width] = r
	return r
}

// Format renders markdown. The input is returned unchanged when glamour fails.
func (g *GlamourFormatter) Format(markdown string, width int) string {
	if strings.TrimSpace(markdown) == "" {
		return ""
	}
	r := g.renderer(width)
	if r == nil {
		return markdown
	}
	out, err := r.Render(markdown)
	if err != nil {
		return markdown
	}
	return strings.Trim(out, "\n")
}

// =============================================================================
// PLAIN
// =============================================================================

// PlainFormatter returns markdown as-is, trimmed. Width is ignored.
type PlainFormatter struct{}

// Format implements Formatter.
func (PlainFormatter) Format(markdown string, _ int) string {
	return strings.TrimSpace(markdown)
}
