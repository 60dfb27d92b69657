// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"fmt"
	"strings"
	"time"

	"github.com/jeranaias/luminous-tui/internal/model"
)

// =============================================================================
// MARKDOWN EXPORTER
// =============================================================================

// MarkdownExporter exports chats to Markdown format.
type MarkdownExporter struct {
	options *Options
}

// NewMarkdownExporter creates a new Markdown exporter.
func NewMarkdownExporter(opts *Options) *MarkdownExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &MarkdownExporter{options: opts}
}

// Export converts a chat to Markdown format.
func (e *MarkdownExporter) Export(chat *model.Chat) ([]byte, error) {
	if err := validate(chat); err != nil {
		return nil, err
	}
	entries := Entries(chat)

	var sb strings.Builder

	if e.options.IncludeMetadata {
		sb.WriteString("---\n")
		fmt.Fprintf(&sb, "title: %s\n", escapeYAML(chat.Title))
		if chat.ID != "" {
			fmt.Fprintf(&sb, "id: %s\n", escapeYAML(chat.ID))
		}
		if chat.LastModel != "" {
			fmt.Fprintf(&sb, "model: %s\n", escapeYAML(chat.LastModel))
		}
		if chat.Timestamp > 0 {
			fmt.Fprintf(&sb, "date: %s\n", chat.Time().Format(time.RFC3339))
		}
		if m := modes(chat); len(m) > 0 {
			fmt.Fprintf(&sb, "modes: [%s]\n", strings.Join(m, ", "))
		}
		fmt.Fprintf(&sb, "messages: %d\n", len(entries))
		fmt.Fprintf(&sb, "exported: %s\n", e.options.now().Format(time.RFC3339))
		sb.WriteString("generator: luminous\n")
		sb.WriteString("---\n\n")
	}

	fmt.Fprintf(&sb, "# %s\n\n", escapeMarkdown(chat.Title))

	for i, entry := range entries {
		label := roleLabel(entry.Role)
		if entry.Model != "" && e.options.IncludeMetadata {
			fmt.Fprintf(&sb, "### %s <sub>%s</sub>\n\n", label, entry.Model)
		} else {
			fmt.Fprintf(&sb, "### %s\n\n", label)
		}

		if e.options.IncludeThoughts {
			e.writeThoughts(&sb, entry)
		}
		if entry.Image {
			sb.WriteString("*[image attached]*\n\n")
		}
		if entry.Plan != "" {
			sb.WriteString("#### Research Plan")
			if entry.PlanApproved {
				sb.WriteString(" (approved)")
			}
			sb.WriteString("\n\n")
			sb.WriteString(quote(entry.Plan))
			sb.WriteString("\n\n")
		}
		if text := strings.TrimSpace(entry.Text); text != "" {
			sb.WriteString(text)
			sb.WriteString("\n\n")
		}

		if i < len(entries)-1 {
			sb.WriteString("---\n\n")
		}
	}

	fmt.Fprintf(&sb, "\n---\n\n*Exported from luminous on %s*\n",
		e.options.now().Format("January 2, 2006 at 3:04 PM"))
	return []byte(sb.String()), nil
}

func (e *MarkdownExporter) writeThoughts(sb *strings.Builder, entry Entry) {
	if entry.Thoughts == "" && len(entry.Activity) == 0 {
		return
	}
	sb.WriteString("<details>\n<summary>Thoughts</summary>\n\n")
	for _, line := range entry.Activity {
		fmt.Fprintf(sb, "- %s\n", line)
	}
	if len(entry.Activity) > 0 && entry.Thoughts != "" {
		sb.WriteString("\n")
	}
	if entry.Thoughts != "" {
		sb.WriteString(quote(entry.Thoughts))
		sb.WriteString("\n")
	}
	sb.WriteString("\n</details>\n\n")
}

// FileExtension returns the file extension for Markdown.
func (e *MarkdownExporter) FileExtension() string {
	return ".md"
}

// MimeType returns the MIME type for Markdown.
func (e *MarkdownExporter) MimeType() string {
	return "text/markdown"
}

// =============================================================================
// ESCAPING HELPERS
// =============================================================================

// quote prefixes every line with "> ".
func quote(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	for i, l := range lines {
		if l == "" {
			lines[i] = ">"
		} else {
			lines[i] = "> " + l
		}
	}
	return strings.Join(lines, "\n")
}

// escapeMarkdown escapes characters that would break formatting in headings.
func escapeMarkdown(s string) string {
	s = strings.ReplaceAll(s, "#", "\\#")
	s = strings.ReplaceAll(s, "*", "\\*")
	s = strings.ReplaceAll(s, "_", "\\_")
	s = strings.ReplaceAll(s, "[", "\\[")
	s = strings.ReplaceAll(s, "]", "\\]")
	return s
}

// escapeYAML quotes a value that contains YAML syntax.
func escapeYAML(s string) string {
	if strings.ContainsAny(s, ":#|>@`\"'[]{}!%&*\n\r\\") || strings.HasPrefix(s, " ") || strings.HasSuffix(s, " ") {
		s = strings.ReplaceAll(s, "\\", "\\\\")
		s = strings.ReplaceAll(s, "\"", "\\\"")
		s = strings.ReplaceAll(s, "\n", "\\n")
		s = strings.ReplaceAll(s, "\r", "\\r")
		return fmt.Sprintf("\"%s\"", s)
	}
	return s
}
