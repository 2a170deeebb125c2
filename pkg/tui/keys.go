package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
)

// keyMap holds all TUI key bindings.
type keyMap struct {
	Open      key.Binding
	Back      key.Binding
	Up        key.Binding
	Down      key.Binding
	Next      key.Binding
	Prev      key.Binding
	Left      key.Binding
	Right     key.Binding
	Toggle    key.Binding
	Search    key.Binding
	Tag       key.Binding
	Reload    key.Binding
	Simulate  key.Binding
	Reset     key.Binding
	Quit      key.Binding
	ForceQuit key.Binding
}

var keys = keyMap{
	Open: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("enter", "open"),
	),
	Back: key.NewBinding(
		key.WithKeys("esc"),
		key.WithHelp("esc", "back"),
	),
	Up: key.NewBinding(
		key.WithKeys("up", "k"),
		key.WithHelp("↑/k", "up"),
	),
	Down: key.NewBinding(
		key.WithKeys("down", "j"),
		key.WithHelp("↓/j", "down"),
	),
	Next: key.NewBinding(
		key.WithKeys("tab", "down"),
		key.WithHelp("tab", "next"),
	),
	Prev: key.NewBinding(
		key.WithKeys("shift+tab", "up"),
		key.WithHelp("shift+tab", "prev"),
	),
	Left: key.NewBinding(
		key.WithKeys("left"),
		key.WithHelp("←", "less"),
	),
	Right: key.NewBinding(
		key.WithKeys("right"),
		key.WithHelp("→", "more"),
	),
	Toggle: key.NewBinding(
		key.WithKeys(" "),
		key.WithHelp("space", "toggle"),
	),
	Search: key.NewBinding(
		key.WithKeys("/"),
		key.WithHelp("/", "search"),
	),
	Tag: key.NewBinding(
		key.WithKeys("t"),
		key.WithHelp("t", "tag"),
	),
	Reload: key.NewBinding(
		key.WithKeys("r"),
		key.WithHelp("r", "reload"),
	),
	Simulate: key.NewBinding(
		key.WithKeys("ctrl+t"),
		key.WithHelp("ctrl+t", "simulate"),
	),
	Reset: key.NewBinding(
		key.WithKeys("ctrl+r"),
		key.WithHelp("ctrl+r", "reset"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
	ForceQuit: key.NewBinding(
		key.WithKeys("ctrl+c"),
		key.WithHelp("ctrl+c", "quit"),
	),
}

// matchKey checks if a key message matches a key.Binding.
func matchKey(msg tea.KeyMsg, binding key.Binding) bool {
	return key.Matches(msg, binding)
}

// keyBarText renders the context-sensitive key hint string.
func keyBarText(s screen, searching, resultsFocused bool) string {
	var bindings []key.Binding
	switch {
	case searching:
		return hint("enter", "apply") + "  " + hint("esc", "clear")
	case s == screenCatalog:
		bindings = []key.Binding{keys.Open, keys.Up, keys.Down, keys.Search, keys.Tag, keys.Reload, keys.Quit}
	case resultsFocused:
		return hint("↑↓", "command") + "  " + hint("enter", "expand") + "  " +
			hint("tab", "fields") + "  " + hint("ctrl+r", "reset") + "  " + hint("esc", "back")
	default:
		return hint("tab", "next") + "  " + hint("←→", "adjust") + "  " + hint("space", "toggle") + "  " +
			hint("enter", "run") + "  " + hint("ctrl+t", "simulate") + "  " +
			hint("ctrl+r", "reset") + "  " + hint("esc", "back")
	}
	parts := make([]string, len(bindings))
	for i, b := range bindings {
		h := b.Help()
		parts[i] = hint(h.Key, h.Desc)
	}
	return strings.Join(parts, "  ")
}

func hint(k, desc string) string {
	return keyStyle.Render(k) + keyDescStyle.Render(":"+desc)
}
