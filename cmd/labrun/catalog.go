package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"

	"github.com/finlay-adaptyvbio/adaptyv-lab-ui/pkg/catalog"
	"github.com/finlay-adaptyvbio/adaptyv-lab-ui/pkg/client"
	"github.com/finlay-adaptyvbio/adaptyv-lab-ui/pkg/form"
	"github.com/finlay-adaptyvbio/adaptyv-lab-ui/pkg/protocol"
)

// --- list ---

type listOptions struct {
	query  string
	tag    string
	where  string
	output string
}

var listOpts listOptions

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List protocols in the catalog",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := setup(cmd)
		if err != nil {
			return err
		}
		return listProtocols(cmd.Context(), e.client, listOpts, cmd.OutOrStdout())
	},
}

func initListFlags() {
	listCmd.Flags().StringVarP(&listOpts.query, "query", "q", "", "Case-insensitive text matched against name, description and tags")
	listCmd.Flags().StringVar(&listOpts.tag, "tag", "", "Only protocols carrying this exact tag")
	listCmd.Flags().StringVar(&listOpts.where, "where", "", `Filter expression, e.g. '"plates" in tags && param_count > 2'`)
	listCmd.Flags().StringVarP(&listOpts.output, "output", "o", "table", "Output format: table or json")
}

func listProtocols(ctx context.Context, svc client.Service, opts listOptions, w io.Writer) error {
	filter, err := catalog.CompileFilter(opts.where)
	if err != nil {
		return err
	}
	ps, err := svc.ListProtocols(ctx)
	if err != nil {
		return err
	}
	ps = catalog.Search(ps, catalog.Query{Text: opts.query, Tag: opts.tag})
	if ps, err = filter.Apply(ps); err != nil {
		return err
	}

	switch opts.output {
	case "json":
		if ps == nil {
			ps = []protocol.Protocol{}
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(ps)
	case "table", "":
		if len(ps) == 0 {
			fmt.Fprintln(w, "No protocols match.")
			return nil
		}
		return catalog.WriteTable(w, ps)
	}
	return fmt.Errorf("unknown output format %q: use table or json", opts.output)
}

// --- show ---

var (
	showOutput string
	showPlain  bool
)

var showCmd = &cobra.Command{
	Use:   "show [protocol-id]",
	Short: "Show a protocol and its parameter form",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := setup(cmd)
		if err != nil {
			return err
		}
		p, err := lookupProtocol(cmd.Context(), e.client, args[0])
		if err != nil {
			return err
		}
		if showOutput == "json" {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(p)
		}
		return showProtocol(cmd.OutOrStdout(), p, !showPlain)
	},
}

func initShowFlags() {
	showCmd.Flags().StringVarP(&showOutput, "output", "o", "text", "Output format: text or json")
	showCmd.Flags().BoolVar(&showPlain, "plain", false, "Print the description without markdown rendering")
}

// showProtocol prints the protocol header, its description and the form
// plan derived from its parameter schema.
func showProtocol(w io.Writer, p *protocol.Protocol, markdown bool) error {
	fmt.Fprintf(w, "%s (%s)\n", p.Name, p.ID)
	if len(p.Tags) > 0 {
		fmt.Fprintf(w, "Tags: %s\n", strings.Join(p.Tags, ", "))
	}
	if desc := strings.TrimSpace(p.Description); desc != "" {
		if markdown {
			if r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(80)); err == nil {
				if out, err := r.Render(desc); err == nil {
					desc = strings.TrimRight(out, "\n")
				}
			}
		}
		fmt.Fprintf(w, "\n%s\n", desc)
	}

	plan := form.Interpret(p.ParamsSchema)
	fmt.Fprintln(w, "\nParameters:")
	if plan.Len() == 0 {
		fmt.Fprintln(w, "  (none)")
		return nil
	}
	writePlan(w, plan)
	return nil
}

// writePlan prints one aligned row per field: name, kind, control and
// constraints.
func writePlan(w io.Writer, plan *form.Plan) {
	rows := [][]string{{"NAME", "KIND", "CONTROL", "DEFAULT", "CONSTRAINTS"}}
	for _, f := range plan.Fields {
		name := f.Name
		if f.Required {
			name += " *"
		}
		def := ""
		if f.HasDefault {
			def = form.FormatValue(f.Default)
		}
		rows = append(rows, []string{name, f.Kind.String(), string(f.Control.Kind), def, constraints(f)})
	}

	widths := make([]int, len(rows[0]))
	for _, row := range rows {
		for i, cell := range row {
			widths[i] = max(widths[i], runewidth.StringWidth(cell))
		}
	}
	for _, row := range rows {
		var b strings.Builder
		b.WriteString("  ")
		for i, cell := range row {
			if i == len(row)-1 {
				b.WriteString(cell)
				break
			}
			b.WriteString(runewidth.FillRight(cell, widths[i]) + "  ")
		}
		fmt.Fprintln(w, strings.TrimRight(b.String(), " "))
	}
}

func constraints(f form.Field) string {
	c := f.Control
	var parts []string
	if len(c.Options) > 0 {
		parts = append(parts, "one of "+strings.Join(c.Options, "|"))
	}
	switch {
	case c.Min != nil && c.Max != nil:
		parts = append(parts, fmt.Sprintf("%s..%s", form.FormatValue(*c.Min), form.FormatValue(*c.Max)))
	case c.Min != nil:
		parts = append(parts, ">= "+form.FormatValue(*c.Min))
	case c.Max != nil:
		parts = append(parts, "<= "+form.FormatValue(*c.Max))
	}
	if c.Kind == form.ControlRange {
		parts = append(parts, "step "+form.FormatValue(c.Step))
	}
	return strings.Join(parts, ", ")
}
