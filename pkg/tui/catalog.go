package tui

import (
	"fmt"
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/finlay-adaptyvbio/adaptyv-lab-ui/pkg/catalog"
	"github.com/finlay-adaptyvbio/adaptyv-lab-ui/pkg/protocol"
)

// catalogPanel lists protocols with text search and a tag filter.
type catalogPanel struct {
	all     []protocol.Protocol
	visible []protocol.Protocol
	tags    []string
	tag     int // index into tags; -1 for all
	cursor  int
	search  searchBar
	loaded  bool
	err     string

	width  int
	height int
}

func newCatalogPanel() catalogPanel {
	return catalogPanel{tag: -1, search: newSearchBar()}
}

// SetProtocols replaces the catalog and reapplies the current filters.
func (c *catalogPanel) SetProtocols(ps []protocol.Protocol) {
	c.all = ps
	c.tags = catalog.Tags(ps)
	if c.tag >= len(c.tags) {
		c.tag = -1
	}
	c.loaded = true
	c.err = ""
	c.refilter()
}

// SetError records a load failure.
func (c *catalogPanel) SetError(msg string) {
	c.loaded = true
	c.err = msg
}

// Tag returns the active tag filter, or "".
func (c *catalogPanel) Tag() string {
	if c.tag < 0 || c.tag >= len(c.tags) {
		return ""
	}
	return c.tags[c.tag]
}

// CycleTag advances the tag filter: all → first tag → ... → all.
func (c *catalogPanel) CycleTag() {
	c.tag++
	if c.tag >= len(c.tags) {
		c.tag = -1
	}
	c.refilter()
}

func (c *catalogPanel) refilter() {
	c.visible = catalog.Search(c.all, catalog.Query{Text: c.search.Query(), Tag: c.Tag()})
	c.search.SetMatches(len(c.visible))
	if c.cursor >= len(c.visible) {
		c.cursor = max(0, len(c.visible)-1)
	}
}

func (c *catalogPanel) CursorUp() {
	if c.cursor > 0 {
		c.cursor--
	}
}

func (c *catalogPanel) CursorDown() {
	if c.cursor < len(c.visible)-1 {
		c.cursor++
	}
}

// Selected returns the protocol under the cursor.
func (c *catalogPanel) Selected() (protocol.Protocol, bool) {
	if c.cursor < 0 || c.cursor >= len(c.visible) {
		return protocol.Protocol{}, false
	}
	return c.visible[c.cursor], true
}

// View renders the protocol list.
func (c *catalogPanel) View() string {
	var b strings.Builder

	if len(c.tags) > 0 {
		b.WriteString(hintStyle.Render("Tags: "))
		if c.Tag() == "" {
			b.WriteString(tagActiveStyle.Render("all"))
		} else {
			b.WriteString(tagStyle.Render("all"))
		}
		for i, t := range c.tags {
			b.WriteString(" ")
			if i == c.tag {
				b.WriteString(tagActiveStyle.Render(t))
			} else {
				b.WriteString(tagStyle.Render(t))
			}
		}
		b.WriteString("\n\n")
	}

	switch {
	case !c.loaded:
		b.WriteString(statusRunningStyle.Render("Loading protocols..."))
	case c.err != "":
		b.WriteString(errorStyle.Render(c.err))
		b.WriteString("\n" + hintStyle.Render("Press r to retry."))
	case len(c.all) == 0:
		b.WriteString(hintStyle.Render("No protocols available."))
	case len(c.visible) == 0:
		b.WriteString(hintStyle.Render("No protocols match the current filter."))
	default:
		c.renderItems(&b)
	}

	if sv := c.search.View(); sv != "" {
		b.WriteString("\n\n" + sv)
	}
	return b.String()
}

func (c *catalogPanel) renderItems(b *strings.Builder) {
	descWidth := max(c.width-8, 20)

	// Each item takes three lines; scroll to keep the cursor visible.
	per := 3
	rows := max((c.height-6)/per, 1)
	start := 0
	if c.cursor >= rows {
		start = c.cursor - rows + 1
	}
	end := min(start+rows, len(c.visible))

	for i := start; i < end; i++ {
		p := c.visible[i]
		name, _ := HighlightContent(p.Name, c.search.Query())
		prefix := "  "
		style := itemNormal
		if i == c.cursor {
			prefix = itemCurrent.Render(GlyphCursor) + " "
			style = itemCurrent
		}
		line := prefix + style.Render(name) + " " + hintStyle.Render("("+p.ID+")")
		if len(p.Tags) > 0 {
			line += " " + tagStyle.Render(strings.Join(p.Tags, " "))
		}
		b.WriteString(line + "\n")
		desc := strings.TrimSpace(p.Description)
		if nl := strings.IndexByte(desc, '\n'); nl >= 0 {
			desc = desc[:nl]
		}
		fmt.Fprintf(b, "    %s\n", hintStyle.Render(runewidth.Truncate(desc, descWidth, "…")))
		if i < end-1 {
			b.WriteString("\n")
		}
	}
	if len(c.visible) > rows {
		fmt.Fprintf(b, "\n%s", hintStyle.Render(fmt.Sprintf("%d of %d", c.cursor+1, len(c.visible))))
	}
}
