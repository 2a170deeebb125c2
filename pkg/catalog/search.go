package catalog

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/agnivade/levenshtein"
	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/finlay-adaptyvbio/adaptyv-lab-ui/pkg/protocol"
)

// Query narrows a catalog listing. Empty fields match everything.
type Query struct {
	// Text matches case-insensitively against name, description and tags.
	Text string
	// Tag requires an exact tag.
	Tag string
}

// Matches reports whether p satisfies q.
func (q Query) Matches(p protocol.Protocol) bool {
	if q.Tag != "" && !p.HasTag(q.Tag) {
		return false
	}
	text := strings.ToLower(strings.TrimSpace(q.Text))
	if text == "" {
		return true
	}
	if strings.Contains(strings.ToLower(p.Name), text) ||
		strings.Contains(strings.ToLower(p.Description), text) {
		return true
	}
	for _, tag := range p.Tags {
		if strings.Contains(strings.ToLower(tag), text) {
			return true
		}
	}
	return false
}

// Search returns the protocols matching q, preserving order.
func Search(protocols []protocol.Protocol, q Query) []protocol.Protocol {
	var out []protocol.Protocol
	for _, p := range protocols {
		if q.Matches(p) {
			out = append(out, p)
		}
	}
	return out
}

// Tags returns every tag in the catalog once, in first-seen order.
func Tags(protocols []protocol.Protocol) []string {
	seen := make(map[string]bool)
	var tags []string
	for _, p := range protocols {
		for _, t := range p.Tags {
			if !seen[t] {
				seen[t] = true
				tags = append(tags, t)
			}
		}
	}
	return tags
}

// ---------------------------------------------------------------------------
// Expression filters
// ---------------------------------------------------------------------------

// Filter is a compiled boolean expression over protocol fields, e.g.
//
//	"liquid-handling" in tags && param_count > 2
//
// Variables: id, name, description, tags, params (names), required,
// param_count.
type Filter struct {
	src     string
	program *vm.Program
}

func filterEnv(p protocol.Protocol) map[string]any {
	tags := p.Tags
	if tags == nil {
		tags = []string{}
	}
	required := p.ParamsSchema.Required
	if required == nil {
		required = []string{}
	}
	return map[string]any{
		"id":          p.ID,
		"name":        p.Name,
		"description": p.Description,
		"tags":        tags,
		"params":      p.ParamsSchema.Names(),
		"required":    required,
		"param_count": p.ParamsSchema.Len(),
	}
}

// CompileFilter compiles src. An empty expression matches everything.
func CompileFilter(src string) (*Filter, error) {
	src = strings.TrimSpace(src)
	if src == "" {
		return &Filter{}, nil
	}
	program, err := expr.Compile(src, expr.Env(filterEnv(protocol.Protocol{})), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("compile filter %q: %w", src, err)
	}
	return &Filter{src: src, program: program}, nil
}

// Match evaluates the filter against p.
func (f *Filter) Match(p protocol.Protocol) (bool, error) {
	if f.program == nil {
		return true, nil
	}
	output, err := expr.Run(f.program, filterEnv(p))
	if err != nil {
		return false, fmt.Errorf("eval filter %q: %w", f.src, err)
	}
	result, ok := output.(bool)
	if !ok {
		return false, fmt.Errorf("filter %q did not return bool (got %T)", f.src, output)
	}
	return result, nil
}

// Apply returns the protocols for which the filter holds.
func (f *Filter) Apply(protocols []protocol.Protocol) ([]protocol.Protocol, error) {
	var out []protocol.Protocol
	for _, p := range protocols {
		ok, err := f.Match(p)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, p)
		}
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// Suggestions
// ---------------------------------------------------------------------------

// Suggest returns up to n protocol ids close to id, nearest first.
func Suggest(id string, protocols []protocol.Protocol, n int) []string {
	type candidate struct {
		id   string
		dist int
	}
	want := strings.ToLower(id)
	limit := max(2, len(want)/3)
	var cands []candidate
	for _, p := range protocols {
		d := levenshtein.ComputeDistance(want, strings.ToLower(p.ID))
		if d <= limit || strings.Contains(strings.ToLower(p.ID), want) {
			cands = append(cands, candidate{id: p.ID, dist: d})
		}
	}
	slices.SortFunc(cands, func(a, b candidate) int {
		if c := cmp.Compare(a.dist, b.dist); c != 0 {
			return c
		}
		return cmp.Compare(a.id, b.id)
	})
	var out []string
	for _, c := range cands {
		if len(out) == n {
			break
		}
		out = append(out, c.id)
	}
	return out
}
