// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// output.go - Plain streaming output of the headless commands.

package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/glamour"

	"github.com/jeranaias/luminous-tui/internal/content"
	"github.com/jeranaias/luminous-tui/internal/render"
	"github.com/jeranaias/luminous-tui/internal/turn"
)

// =============================================================================
// STREAM PRINTER
// =============================================================================

// streamPrinter writes a streaming answer to plain writers. The answer goes
// to out as it grows; activity lines go to info. When a redaction rewrites
// text that was already printed, the new text is printed on a fresh line.
type streamPrinter struct {
	out  io.Writer
	info io.Writer

	answer string
	lines  []string
}

func newStreamPrinter(out, info io.Writer) *streamPrinter {
	return &streamPrinter{out: out, info: info}
}

// Update prints what changed in v since the last call.
func (p *streamPrinter) Update(v *render.MessageView) {
	if v == nil {
		return
	}
	if p.info != nil {
		p.activity(v.Feed())
	}

	text := v.Cleaned()
	switch {
	case text == p.answer:
	case strings.HasPrefix(text, p.answer):
		io.WriteString(p.out, text[len(p.answer):])
	default:
		if p.answer != "" {
			fmt.Fprintln(p.out)
		}
		io.WriteString(p.out, text)
	}
	p.answer = text
}

func (p *streamPrinter) activity(feed *render.ActivityFeed) {
	if feed == nil {
		return
	}
	for i, slot := range feed.Slots() {
		icon, line := render.Describe(slot.Latest())
		if i < len(p.lines) {
			if p.lines[i] == line {
				continue
			}
			p.lines[i] = line
		} else {
			p.lines = append(p.lines, line)
		}
		fmt.Fprintln(p.info, DimStyle.Render(icon+" "+line))
	}
}

// Finish prints the rest of a finished turn: the proposed plan and the
// inline error.
func (p *streamPrinter) Finish(v *render.MessageView) {
	if v == nil {
		return
	}
	p.Update(v)
	if p.answer != "" && !strings.HasSuffix(p.answer, "\n") {
		fmt.Fprintln(p.out)
	}
	if v.PlanShown() {
		fmt.Fprintln(p.out)
		fmt.Fprintln(p.out, TitleStyle.Render("Research plan"))
		fmt.Fprintln(p.out, strings.TrimSpace(v.Plan()))
	}
	if e := v.Err(); e != "" {
		fmt.Fprintln(p.out, ErrorStyle.Render("Error: ")+e)
	}
}

// Reset prepares the printer for the next turn.
func (p *streamPrinter) Reset() {
	p.answer = ""
	p.lines = p.lines[:0]
}

// =============================================================================
// HELPERS
// =============================================================================

// lastAssistant returns the view of the newest assistant row.
func lastAssistant(c *turn.Controller) *render.MessageView {
	rows := c.Rows()
	for i := len(rows) - 1; i >= 0; i-- {
		if rows[i].Kind == turn.RowAssistant && rows[i].View != nil {
			return rows[i].View
		}
	}
	return nil
}

// noticeOf returns the first notice among effects.
func noticeOf(effects []turn.Effect) (string, bool) {
	for _, e := range effects {
		if n, ok := e.(turn.Notice); ok {
			return n.Text, true
		}
	}
	return "", false
}

// sources lists the pages read or found during research, in order and
// without duplicates.
func sources(v *render.MessageView) []string {
	feed := v.Feed()
	if feed == nil {
		return nil
	}
	seen := make(map[string]bool)
	var out []string
	add := func(url string) {
		if url != "" && !seen[url] {
			seen[url] = true
			out = append(out, url)
		}
	}
	for _, slot := range feed.Slots() {
		for _, ev := range slot.Events {
			switch ev.Type {
			case content.ActivityVisit, content.ActivityVisitComplete:
				add(ev.String("url"))
			case content.ActivitySearchResults:
				for _, r := range ev.Results() {
					if u, ok := r["url"].(string); ok {
						add(u)
					}
				}
			}
		}
	}
	return out
}

// =============================================================================
// MARKDOWN RENDERING
// =============================================================================

// renderMarkdown renders markdown for the terminal. It returns the input
// unchanged when stdout is not a terminal or rendering fails.
func renderMarkdown(md string, width int) string {
	if !IsStdoutTTY() {
		return md
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return md
	}
	out, err := r.Render(md)
	if err != nil {
		return md
	}
	return out
}
