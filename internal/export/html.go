// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"fmt"
	"html"
	"regexp"
	"strings"

	"github.com/jeranaias/luminous-tui/internal/model"
)

// =============================================================================
// HTML EXPORTER
// =============================================================================

// HTMLExporter exports chats to a self-contained HTML page.
type HTMLExporter struct {
	options *Options
}

// NewHTMLExporter creates a new HTML exporter.
func NewHTMLExporter(opts *Options) *HTMLExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &HTMLExporter{options: opts}
}

// Export converts a chat to HTML format.
func (e *HTMLExporter) Export(chat *model.Chat) ([]byte, error) {
	if err := validate(chat); err != nil {
		return nil, err
	}
	theme := e.options.Theme
	if theme != "light" {
		theme = "dark"
	}

	var sb strings.Builder
	sb.WriteString("<!DOCTYPE html>\n<html lang=\"en\">\n<head>\n")
	sb.WriteString("    <meta charset=\"UTF-8\">\n")
	sb.WriteString("    <meta name=\"viewport\" content=\"width=device-width, initial-scale=1.0\">\n")
	fmt.Fprintf(&sb, "    <title>%s</title>\n", html.EscapeString(chat.Title))
	sb.WriteString("    <meta name=\"generator\" content=\"luminous\">\n")
	sb.WriteString(css)
	sb.WriteString("</head>\n")
	fmt.Fprintf(&sb, "<body class=\"%s-theme\">\n", theme)
	sb.WriteString("    <div class=\"container\">\n")

	if e.options.IncludeMetadata {
		e.renderHeader(&sb, chat)
	}

	sb.WriteString("        <main class=\"conversation\">\n")
	for _, entry := range Entries(chat) {
		e.renderEntry(&sb, entry)
	}
	sb.WriteString("        </main>\n")

	sb.WriteString("        <footer class=\"footer\">\n")
	fmt.Fprintf(&sb, "            <p>Exported from <strong>luminous</strong> on %s</p>\n",
		e.options.now().Format("January 2, 2006 at 3:04 PM"))
	sb.WriteString("        </footer>\n    </div>\n</body>\n</html>\n")

	return []byte(sb.String()), nil
}

// FileExtension returns the file extension for HTML.
func (e *HTMLExporter) FileExtension() string {
	return ".html"
}

// MimeType returns the MIME type for HTML.
func (e *HTMLExporter) MimeType() string {
	return "text/html"
}

// =============================================================================
// RENDERING FUNCTIONS
// =============================================================================

func (e *HTMLExporter) renderHeader(sb *strings.Builder, chat *model.Chat) {
	sb.WriteString("        <header class=\"header\">\n")
	fmt.Fprintf(sb, "            <h1>%s</h1>\n", html.EscapeString(chat.Title))
	sb.WriteString("            <div class=\"metadata\">\n")
	if chat.LastModel != "" {
		fmt.Fprintf(sb, "                <span class=\"meta-item\"><strong>Model:</strong> %s</span>\n", html.EscapeString(chat.LastModel))
	}
	if chat.Timestamp > 0 {
		fmt.Fprintf(sb, "                <span class=\"meta-item\"><strong>Updated:</strong> %s</span>\n", formatTimestamp(chat.Time()))
	}
	if m := modes(chat); len(m) > 0 {
		fmt.Fprintf(sb, "                <span class=\"meta-item\"><strong>Modes:</strong> %s</span>\n", strings.Join(m, ", "))
	}
	sb.WriteString("            </div>\n        </header>\n")
}

func (e *HTMLExporter) renderEntry(sb *strings.Builder, entry Entry) {
	roleClass := strings.ToLower(entry.Role)
	fmt.Fprintf(sb, "            <div class=\"message %s-message\">\n", html.EscapeString(roleClass))
	sb.WriteString("                <div class=\"message-header\">\n")
	fmt.Fprintf(sb, "                    <span class=\"role-label\">%s</span>\n", html.EscapeString(roleLabel(entry.Role)))
	if entry.Model != "" && e.options.IncludeMetadata {
		fmt.Fprintf(sb, "                    <span class=\"model\">%s</span>\n", html.EscapeString(entry.Model))
	}
	sb.WriteString("                </div>\n")

	sb.WriteString("                <div class=\"message-content\">\n")
	if e.options.IncludeThoughts && (entry.Thoughts != "" || len(entry.Activity) > 0) {
		sb.WriteString("<details class=\"thoughts\"><summary>Thoughts</summary>\n")
		if len(entry.Activity) > 0 {
			sb.WriteString("<ul class=\"activity\">\n")
			for _, line := range entry.Activity {
				fmt.Fprintf(sb, "<li>%s</li>\n", html.EscapeString(line))
			}
			sb.WriteString("</ul>\n")
		}
		if entry.Thoughts != "" {
			sb.WriteString(formatContent(entry.Thoughts))
			sb.WriteString("\n")
		}
		sb.WriteString("</details>\n")
	}
	if entry.Image {
		sb.WriteString("<p class=\"image-note\">[image attached]</p>\n")
	}
	if entry.Plan != "" {
		status := ""
		if entry.PlanApproved {
			status = " <span class=\"success\">(approved)</span>"
		}
		fmt.Fprintf(sb, "<div class=\"plan\"><div class=\"plan-title\">Research Plan%s</div>\n", status)
		sb.WriteString(formatContent(entry.Plan))
		sb.WriteString("\n</div>\n")
	}
	if entry.Text != "" {
		sb.WriteString(formatContent(entry.Text))
		sb.WriteString("\n")
	}
	sb.WriteString("                </div>\n            </div>\n")
}

// =============================================================================
// CONTENT FORMATTING
// =============================================================================

var (
	codeBlockRegex  = regexp.MustCompile("```([a-zA-Z0-9_+-]*)\n([\\s\\S]*?)```")
	inlineCodeRegex = regexp.MustCompile("`([^`\n]+)`")
)

// formatContent escapes text and turns fenced code, inline code and blank
// line separated paragraphs into HTML.
func formatContent(text string) string {
	var out strings.Builder
	rest := text
	for {
		loc := codeBlockRegex.FindStringSubmatchIndex(rest)
		if loc == nil {
			out.WriteString(paragraphs(rest))
			break
		}
		out.WriteString(paragraphs(rest[:loc[0]]))
		lang := rest[loc[2]:loc[3]]
		code := rest[loc[4]:loc[5]]
		out.WriteString("<div class=\"code-block\">")
		if lang != "" {
			fmt.Fprintf(&out, "<div class=\"code-lang\">%s</div>", html.EscapeString(lang))
		}
		fmt.Fprintf(&out, "<pre><code class=\"language-%s\">%s</code></pre></div>\n",
			html.EscapeString(lang), html.EscapeString(strings.TrimRight(code, "\n")))
		rest = rest[loc[1]:]
	}
	return strings.TrimSpace(out.String())
}

func paragraphs(text string) string {
	var out strings.Builder
	for _, para := range strings.Split(text, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		escaped := html.EscapeString(para)
		escaped = inlineCodeRegex.ReplaceAllString(escaped, "<code class=\"inline-code\">$1</code>")
		escaped = strings.ReplaceAll(escaped, "\n", "<br>\n")
		fmt.Fprintf(&out, "<p>%s</p>\n", escaped)
	}
	return out.String()
}

// =============================================================================
// EMBEDDED CSS
// =============================================================================

const css = `    <style>
        * { margin: 0; padding: 0; box-sizing: border-box; }

        :root {
            --font-sans: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, "Helvetica Neue", Arial, sans-serif;
            --font-mono: "SF Mono", "Monaco", "Inconsolata", "Fira Code", "Source Code Pro", monospace;
        }

        .dark-theme {
            --bg-primary: #1a1b26;
            --bg-secondary: #24283b;
            --bg-tertiary: #414868;
            --text-primary: #c0caf5;
            --text-muted: #565f89;
            --border-color: #414868;
            --user-bg: #1f2335;
            --code-bg: #1a1b26;
            --accent-blue: #7aa2f7;
            --accent-green: #9ece6a;
            --accent-purple: #bb9af7;
        }

        .light-theme {
            --bg-primary: #ffffff;
            --bg-secondary: #f7f8fa;
            --bg-tertiary: #e1e4e8;
            --text-primary: #24292e;
            --text-muted: #6a737d;
            --border-color: #e1e4e8;
            --user-bg: #f6f8fa;
            --code-bg: #f6f8fa;
            --accent-blue: #0366d6;
            --accent-green: #22863a;
            --accent-purple: #6f42c1;
        }

        body {
            font-family: var(--font-sans);
            line-height: 1.6;
            color: var(--text-primary);
            background: var(--bg-primary);
            padding: 20px;
        }

        .container { max-width: 900px; margin: 0 auto; background: var(--bg-secondary); border-radius: 12px; }
        .header { padding: 32px; background: var(--bg-tertiary); }
        .header h1 { font-size: 28px; margin-bottom: 12px; }
        .metadata { display: flex; flex-wrap: wrap; gap: 16px; font-size: 14px; }
        .conversation { padding: 24px 32px; }
        .message { margin-bottom: 24px; padding: 20px; border-radius: 8px; border-left: 4px solid transparent; }
        .user-message { background: var(--user-bg); border-left-color: var(--accent-blue); }
        .assistant-message { border-left-color: var(--accent-green); }
        .system-message { background: var(--bg-tertiary); border-left-color: var(--accent-purple); }
        .message-header { display: flex; justify-content: space-between; margin-bottom: 12px; font-size: 14px; }
        .role-label { font-weight: 600; }
        .model { color: var(--text-muted); font-family: var(--font-mono); font-size: 13px; }
        .message-content p { margin-bottom: 12px; }
        .thoughts { margin-bottom: 12px; color: var(--text-muted); }
        .thoughts summary { cursor: pointer; }
        .activity { margin: 8px 0 8px 20px; font-family: var(--font-mono); font-size: 13px; }
        .plan { margin: 12px 0; padding: 12px; border: 1px solid var(--accent-purple); border-radius: 8px; }
        .plan-title { font-weight: 600; margin-bottom: 8px; }
        .code-block { margin: 16px 0; border-radius: 8px; background: var(--code-bg); border: 1px solid var(--border-color); }
        .code-lang { padding: 6px 16px; font-size: 12px; text-transform: uppercase; background: var(--bg-tertiary); }
        .code-block pre { padding: 16px; overflow-x: auto; }
        .code-block code, .inline-code { font-family: var(--font-mono); font-size: 14px; }
        .inline-code { padding: 2px 6px; background: var(--code-bg); border-radius: 4px; color: var(--accent-purple); }
        .success { color: var(--accent-green); }
        .footer { padding: 20px 32px; text-align: center; font-size: 14px; color: var(--text-muted); }

        @media print {
            body { padding: 0; }
            .message { page-break-inside: avoid; }
        }
    </style>
`
