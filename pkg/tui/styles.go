// Package tui implements the interactive protocol runner: a catalog browser,
// a parameter form derived from each protocol's schema, and a run panel
// with live progress and per-command results.
package tui

import "github.com/charmbracelet/lipgloss"

// Glyphs convey meaning without relying on color alone.
const (
	GlyphCursor   = "▸"
	GlyphPassed   = "✓"
	GlyphFailed   = "✗"
	GlyphRequired = "*"
	GlyphOn       = "●"
	GlyphOff      = "○"
	GlyphSlider   = "◆"
	GlyphTrack    = "─"
)

// Palette adapts to terminal capabilities via lipgloss.
var (
	colorGreen   = lipgloss.Color("42")
	colorRed     = lipgloss.Color("196")
	colorYellow  = lipgloss.Color("214")
	colorBlue    = lipgloss.Color("39")
	colorCyan    = lipgloss.Color("51")
	colorDim     = lipgloss.Color("240")
	colorWhite   = lipgloss.Color("255")
	colorMagenta = lipgloss.Color("201")
)

// --- Header styles ---

var headerStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(colorCyan).
	Padding(0, 1)

var modeBadgeStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(lipgloss.Color("0")).
	Background(colorYellow).
	Padding(0, 1)

// --- Catalog list styles ---

var (
	itemNormal = lipgloss.NewStyle().
			Foreground(colorWhite)

	itemCurrent = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorYellow)

	tagStyle = lipgloss.NewStyle().
			Foreground(colorMagenta)

	tagActiveStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("0")).
			Background(colorMagenta).
			Padding(0, 1)
)

// --- Panel styles ---

var (
	panelBorder = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorDim).
			Padding(0, 1)

	panelFocused = panelBorder.
			BorderForeground(colorCyan)

	panelTitle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorCyan)
)

// --- Form styles ---

var (
	labelStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorBlue)

	labelFocused = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorYellow)

	valueStyle = lipgloss.NewStyle().
			Foreground(colorWhite)

	hintStyle = lipgloss.NewStyle().
			Foreground(colorDim)

	fieldErrorStyle = lipgloss.NewStyle().
			Foreground(colorRed)

	buttonStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("0")).
			Background(colorCyan).
			Padding(0, 2)

	buttonFocused = buttonStyle.
			Background(colorYellow)

	buttonDisabled = lipgloss.NewStyle().
			Foreground(colorDim).
			Background(lipgloss.Color("236")).
			Padding(0, 2)
)

// --- Run status styles ---

var (
	statusPassedStyle = lipgloss.NewStyle().
				Foreground(colorGreen).
				Bold(true)

	statusFailedStyle = lipgloss.NewStyle().
				Foreground(colorRed).
				Bold(true)

	statusRunningStyle = lipgloss.NewStyle().
				Foreground(colorYellow)

	statusIdleStyle = lipgloss.NewStyle().
			Foreground(colorDim)
)

// --- Key bar styles ---

var (
	keyStyle = lipgloss.NewStyle().
			Foreground(colorCyan).
			Bold(true)

	keyDescStyle = lipgloss.NewStyle().
			Foreground(colorDim)

	keyBarStyle = lipgloss.NewStyle().
			Padding(0, 1)
)

// --- Notices ---

var (
	noticeSuccessStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(colorGreen).
				Foreground(colorGreen).
				Padding(0, 1)

	noticeFailureStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(colorRed).
				Foreground(colorRed).
				Padding(0, 1)
)

var errorStyle = lipgloss.NewStyle().
	Foreground(colorRed).
	Bold(true)
