package catalog

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/finlay-adaptyvbio/adaptyv-lab-ui/pkg/protocol"
)

const maxDescriptionWidth = 48

// WriteTable writes an aligned protocol listing. Column widths are measured
// in display cells so wide glyphs in names stay aligned.
func WriteTable(w io.Writer, protocols []protocol.Protocol) error {
	header := []string{"ID", "NAME", "PARAMS", "TAGS", "DESCRIPTION"}
	rows := [][]string{header}
	for _, p := range protocols {
		rows = append(rows, []string{
			p.ID,
			p.Name,
			strconv.Itoa(p.ParamsSchema.Len()),
			strings.Join(p.Tags, ","),
			runewidth.Truncate(firstLine(p.Description), maxDescriptionWidth, "…"),
		})
	}

	widths := make([]int, len(header))
	for _, row := range rows {
		for i, cell := range row {
			if cw := runewidth.StringWidth(cell); cw > widths[i] {
				widths[i] = cw
			}
		}
	}

	for _, row := range rows {
		var b strings.Builder
		for i, cell := range row {
			if i == len(row)-1 {
				b.WriteString(cell)
				break
			}
			b.WriteString(runewidth.FillRight(cell, widths[i]))
			b.WriteString("  ")
		}
		if _, err := fmt.Fprintln(w, strings.TrimRight(b.String(), " ")); err != nil {
			return err
		}
	}
	return nil
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
