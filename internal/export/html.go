// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/jeranaias/pagetutor/internal/storage"
)

// =============================================================================
// HTML EXPORTER
// =============================================================================

// HTMLExporter exports transcripts to a standalone HTML page with embedded CSS.
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

// Export converts a transcript to HTML.
func (e *HTMLExporter) Export(t *Transcript) ([]byte, error) {
	if err := t.validate(); err != nil {
		return nil, err
	}

	theme := e.options.Theme
	if theme != "light" {
		theme = "dark"
	}
	first, _ := t.span()

	var sb strings.Builder
	sb.WriteString("<!DOCTYPE html>\n")
	sb.WriteString("<html lang=\"en\">\n")
	sb.WriteString("<head>\n")
	sb.WriteString("    <meta charset=\"UTF-8\">\n")
	sb.WriteString("    <meta name=\"viewport\" content=\"width=device-width, initial-scale=1.0\">\n")
	fmt.Fprintf(&sb, "    <title>%s</title>\n", html.EscapeString(t.title()))
	sb.WriteString("    <meta name=\"generator\" content=\"pagetutor\">\n")
	fmt.Fprintf(&sb, "    <meta name=\"date\" content=\"%s\">\n", first.Format(time.RFC3339))
	sb.WriteString(css)
	sb.WriteString("</head>\n")
	fmt.Fprintf(&sb, "<body class=\"%s-theme\">\n", theme)
	sb.WriteString("    <div class=\"container\">\n")

	if e.options.IncludeMetadata {
		e.renderHeader(&sb, t)
	}

	sb.WriteString("        <main class=\"conversation\">\n")
	for i := range t.Messages {
		e.renderMessage(&sb, &t.Messages[i])
	}
	sb.WriteString("        </main>\n")

	sb.WriteString("        <footer class=\"footer\">\n")
	fmt.Fprintf(&sb, "            <p>Exported from pagetutor on %s</p>\n", time.Now().Format("January 2, 2006 at 3:04 PM"))
	sb.WriteString("        </footer>\n")
	sb.WriteString("    </div>\n")
	sb.WriteString("</body>\n")
	sb.WriteString("</html>\n")

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

func (e *HTMLExporter) renderHeader(sb *strings.Builder, t *Transcript) {
	first, _ := t.span()
	sb.WriteString("        <header class=\"header\">\n")
	fmt.Fprintf(sb, "            <h1>%s</h1>\n", html.EscapeString(t.title()))
	sb.WriteString("            <div class=\"metadata\">\n")
	if t.Pages > 0 {
		fmt.Fprintf(sb, "                <span class=\"meta-item\"><strong>Pages:</strong> %d</span>\n", t.Pages)
	}
	fmt.Fprintf(sb, "                <span class=\"meta-item\"><strong>Started:</strong> %s</span>\n", formatTimestamp(first))
	fmt.Fprintf(sb, "                <span class=\"meta-item\"><strong>Messages:</strong> %d</span>\n", len(t.Messages))
	sb.WriteString("            </div>\n")
	sb.WriteString("        </header>\n")
}

func (e *HTMLExporter) renderMessage(sb *strings.Builder, msg *storage.Message) {
	fmt.Fprintf(sb, "            <div class=\"message %s-message\">\n", html.EscapeString(strings.ToLower(msg.Role)))

	sb.WriteString("                <div class=\"message-header\">\n")
	fmt.Fprintf(sb, "                    <span class=\"role-label\">%s</span>\n", roleLabel(msg.Role))
	if e.options.IncludeTimestamps {
		fmt.Fprintf(sb, "                    <span class=\"timestamp\">%s</span>\n", formatShortTimestamp(msg.CreatedAt))
	}
	sb.WriteString("                </div>\n")

	sb.WriteString("                <div class=\"message-content\">\n")
	for _, para := range strings.Split(strings.TrimSpace(msg.Text), "\n\n") {
		if para = strings.TrimSpace(para); para != "" {
			fmt.Fprintf(sb, "                    <p>%s</p>\n", strings.ReplaceAll(html.EscapeString(para), "\n", "<br>"))
		}
	}
	sb.WriteString("                </div>\n")

	if e.options.IncludeCommands && len(msg.Commands) > 0 {
		sb.WriteString("                <ul class=\"commands\">\n")
		for _, d := range describeCommands(msg.Commands) {
			fmt.Fprintf(sb, "                    <li>%s</li>\n", html.EscapeString(d))
		}
		sb.WriteString("                </ul>\n")
	}

	sb.WriteString("            </div>\n")
}

// =============================================================================
// EMBEDDED CSS
// =============================================================================

const css = `    <style>
        * { margin: 0; padding: 0; box-sizing: border-box; }
        body { font-family: -apple-system, "Segoe UI", Roboto, sans-serif; line-height: 1.6; }
        .dark-theme { background: #1e1e2e; color: #cdd6f4; }
        .light-theme { background: #ffffff; color: #1e1e2e; }
        .container { max-width: 860px; margin: 0 auto; padding: 2rem 1rem; }
        .header { margin-bottom: 2rem; border-bottom: 1px solid #585b70; padding-bottom: 1rem; }
        .metadata { display: flex; gap: 1.5rem; font-size: 0.9rem; opacity: 0.8; }
        .message { margin-bottom: 1.5rem; padding: 1rem; border-radius: 8px; }
        .dark-theme .user-message { background: #313244; }
        .dark-theme .assistant-message { background: #181825; }
        .light-theme .user-message { background: #eff1f5; }
        .light-theme .assistant-message { background: #f8f8fc; }
        .message-header { display: flex; justify-content: space-between; margin-bottom: 0.5rem; }
        .role-label { font-weight: 600; }
        .timestamp { font-size: 0.8rem; opacity: 0.6; }
        .message-content p { margin-bottom: 0.75rem; }
        .commands { font-size: 0.85rem; opacity: 0.8; padding-left: 1.25rem; }
        .footer { margin-top: 2rem; font-size: 0.8rem; opacity: 0.6; text-align: center; }
    </style>
`
