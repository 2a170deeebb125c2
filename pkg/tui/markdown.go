package tui

import (
	"strings"

	"github.com/charmbracelet/glamour"
)

// renderMarkdown renders a protocol description constrained to width
// columns. It falls back to the raw text if glamour fails.
func renderMarkdown(md string, width int) string {
	if strings.TrimSpace(md) == "" {
		return ""
	}
	if width < 20 {
		width = 20
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
	// Glamour pads with blank lines; trim for inline use.
	return strings.Trim(out, "\n")
}
