package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// searchBar is the catalog's inline search field.
type searchBar struct {
	active  bool
	input   textinput.Model
	query   string // committed or live search term
	matches int
}

func newSearchBar() searchBar {
	ti := textinput.New()
	ti.Placeholder = "Search protocols..."
	ti.CharLimit = 256
	ti.Width = 40
	ti.Prompt = "/ "
	ti.PromptStyle = lipgloss.NewStyle().Foreground(colorCyan).Bold(true)
	return searchBar{input: ti}
}

// Open activates the search bar, keeping the previous query for editing.
func (s *searchBar) Open() tea.Cmd {
	s.active = true
	s.input.SetValue(s.query)
	s.input.CursorEnd()
	return s.input.Focus()
}

// Close deactivates the search bar and clears the query.
func (s *searchBar) Close() {
	s.active = false
	s.input.Blur()
	s.input.Reset()
	s.query = ""
}

// Update handles key events while the search bar is active.
// closed: Esc cleared the search. committed: Enter kept the query.
func (s *searchBar) Update(msg tea.KeyMsg) (closed bool, committed bool, cmd tea.Cmd) {
	switch msg.String() {
	case "esc":
		s.Close()
		return true, false, nil
	case "enter":
		s.query = s.input.Value()
		s.active = false
		s.input.Blur()
		return false, true, nil
	}

	s.input, cmd = s.input.Update(msg)
	// Live update the query for incremental search.
	s.query = s.input.Value()
	return false, false, cmd
}

// Query returns the current search query.
func (s *searchBar) Query() string {
	return s.query
}

// IsActive reports whether the search bar is accepting input.
func (s *searchBar) IsActive() bool {
	return s.active
}

// HasQuery reports whether a search is applied, even after closing.
func (s *searchBar) HasQuery() bool {
	return s.query != ""
}

// SetMatches records the number of protocols the query matched.
func (s *searchBar) SetMatches(n int) {
	s.matches = n
}

// View renders the search bar.
func (s *searchBar) View() string {
	if !s.active && !s.HasQuery() {
		return ""
	}

	var result string
	if s.active {
		result = s.input.View()
	} else {
		result = keyDescStyle.Render("/" + s.query)
	}

	if s.HasQuery() {
		if s.matches > 0 {
			result += "  " + lipgloss.NewStyle().Foreground(colorGreen).Render(
				fmt.Sprintf("%d %s", s.matches, pluralize(s.matches, "match", "matches")))
		} else {
			result += "  " + lipgloss.NewStyle().Foreground(colorRed).Render("no matches")
		}
	}
	return result
}

func pluralize(n int, singular, plural string) string {
	if n == 1 {
		return singular
	}
	return plural
}

// HighlightContent returns content with case-insensitive matches of query
// highlighted, and the number of matches found.
func HighlightContent(content, query string) (string, int) {
	if query == "" {
		return content, 0
	}

	lower := strings.ToLower(content)
	lowerQuery := strings.ToLower(query)

	count := strings.Count(lower, lowerQuery)
	if count == 0 || len(lower) != len(content) {
		// Case folding changed byte offsets; leave the text alone.
		return content, count
	}

	highlightStyle := lipgloss.NewStyle().
		Background(colorYellow).
		Foreground(lipgloss.Color("0")).
		Bold(true)

	var result strings.Builder
	remaining := content
	remainingLower := lower

	for {
		idx := strings.Index(remainingLower, lowerQuery)
		if idx < 0 {
			result.WriteString(remaining)
			break
		}
		result.WriteString(remaining[:idx])
		// Preserve the original case of the match.
		result.WriteString(highlightStyle.Render(remaining[idx : idx+len(lowerQuery)]))
		remaining = remaining[idx+len(lowerQuery):]
		remainingLower = remainingLower[idx+len(lowerQuery):]
	}

	return result.String(), count
}
