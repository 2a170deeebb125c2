package result

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/finlay-adaptyvbio/adaptyv-lab-ui/pkg/protocol"
)

// Command status glyphs.
const (
	GlyphPassed    = "✓"
	GlyphFailed    = "✗"
	GlyphCollapsed = "▸"
	GlyphExpanded  = "▾"
	GlyphWarning   = "!"
)

var (
	colorGreen  = lipgloss.Color("42")
	colorRed    = lipgloss.Color("196")
	colorYellow = lipgloss.Color("214")
	colorCyan   = lipgloss.Color("51")
	colorDim    = lipgloss.Color("240")
)

var (
	summaryStyle = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	passedStyle  = lipgloss.NewStyle().Foreground(colorGreen).Bold(true)
	failedStyle  = lipgloss.NewStyle().Foreground(colorRed).Bold(true)
	errorStyle   = lipgloss.NewStyle().Foreground(colorRed)
	warnStyle    = lipgloss.NewStyle().Foreground(colorYellow)
	dataKeyStyle = lipgloss.NewStyle().Foreground(colorCyan)
	dimStyle     = lipgloss.NewStyle().Foreground(colorDim)
)

// Renderer writes a View as text. With Styled false the output is plain.
type Renderer struct {
	Styled bool
	// Cursor highlights one entry (-1 for none); used by interactive views.
	Cursor int
}

func (r Renderer) paint(s lipgloss.Style, text string) string {
	if !r.Styled {
		return text
	}
	return s.Render(text)
}

// Render returns the text rendering of v.
func (r Renderer) Render(v View) string {
	var b strings.Builder
	summary := fmt.Sprintf("Status: %s   Commands: %d   Succeeded: %d   Failed: %d",
		displayStatus(v.Status), v.CommandCount, v.Succeeded, v.Failed)
	b.WriteString(r.paint(summaryStyle, summary))
	b.WriteByte('\n')
	if v.Mismatch {
		b.WriteString(r.paint(warnStyle, fmt.Sprintf("%s received %d results for %d declared commands",
			GlyphWarning, len(v.Entries), v.CommandCount)))
		b.WriteByte('\n')
	}
	for _, e := range v.Entries {
		r.renderEntry(&b, e)
	}
	return b.String()
}

func (r Renderer) renderEntry(b *strings.Builder, e Entry) {
	glyph, style := GlyphPassed, passedStyle
	if !e.Succeeded {
		glyph, style = GlyphFailed, failedStyle
	}
	cursor := "  "
	if r.Cursor == e.Index {
		cursor = "> "
	}
	line := fmt.Sprintf("%s%s Command %d  %s", cursor, r.paint(style, glyph), e.Index+1, r.paint(style, displayStatus(e.Status)))
	if e.Expandable {
		marker := GlyphCollapsed
		if e.Expanded {
			marker = GlyphExpanded
		}
		line += r.paint(dimStyle, fmt.Sprintf("  %s data (%d)", marker, len(e.Data)))
	}
	b.WriteString(line)
	b.WriteByte('\n')

	for _, msg := range e.Errors {
		b.WriteString("      ")
		b.WriteString(r.paint(errorStyle, "error: "+msg))
		b.WriteByte('\n')
	}
	if e.Expanded {
		keys := make([]string, 0, len(e.Data))
		for k := range e.Data {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		for _, k := range keys {
			fmt.Fprintf(b, "      %s: %s\n", r.paint(dataKeyStyle, k), FormatData(e.Data[k]))
		}
	}
}

func displayStatus(s string) string {
	if s == "" {
		return "UNKNOWN"
	}
	return s
}

// FormatData renders a data value compactly.
func FormatData(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}

// WriteText renders v to w.
func WriteText(w io.Writer, v View, styled bool) error {
	_, err := io.WriteString(w, Renderer{Styled: styled, Cursor: -1}.Render(v))
	return err
}

// WriteJSON writes the raw result as indented JSON.
func WriteJSON(w io.Writer, r *protocol.ProtocolResult) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// ParseExpansion interprets an operator expansion spec for n commands:
// "all", "none" (or empty), or a comma-separated list of 1-based indices.
func ParseExpansion(spec string, n int) (Expansion, error) {
	switch strings.ToLower(strings.TrimSpace(spec)) {
	case "", "none":
		return nil, nil
	case "all":
		return All(n), nil
	}
	var e Expansion
	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		i, err := strconv.Atoi(part)
		if err != nil || i < 1 {
			return nil, fmt.Errorf("invalid command index %q", part)
		}
		e = e.Set(i-1, true)
	}
	return e, nil
}
