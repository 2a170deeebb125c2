package result

import (
	"github.com/finlay-adaptyvbio/adaptyv-lab-ui/pkg/protocol"
)

// Entry is the view of one command result.
type Entry struct {
	Index     int
	Status    string
	Succeeded bool
	// Errors are always shown, regardless of expansion.
	Errors []string
	Data   map[string]any
	// Expandable is true only when Data is non-empty.
	Expandable bool
	Expanded   bool
}

// View is the aggregated, render-ready form of a ProtocolResult.
type View struct {
	Status       string
	CommandCount int
	Entries      []Entry
	Succeeded    int
	Failed       int
	// Mismatch is set when the number of results differs from CommandCount.
	Mismatch bool
}

// Build aggregates r under the given expansion. A nil result yields an
// empty view. Missing errors or data on a command are treated as empty.
func Build(r *protocol.ProtocolResult, e Expansion) View {
	if r == nil {
		return View{}
	}
	v := View{
		Status:       r.Status,
		CommandCount: r.CommandCount,
		Entries:      make([]Entry, 0, len(r.Results)),
		Mismatch:     len(r.Results) != r.CommandCount,
	}
	for i, cmd := range r.Results {
		errs := cmd.Errors
		if errs == nil {
			errs = []string{}
		}
		data := cmd.Data
		if data == nil {
			data = map[string]any{}
		}
		expandable := len(data) > 0
		entry := Entry{
			Index:      i,
			Status:     cmd.Status,
			Succeeded:  cmd.Succeeded(),
			Errors:     errs,
			Data:       data,
			Expandable: expandable,
			Expanded:   expandable && e.IsExpanded(i),
		}
		if entry.Succeeded {
			v.Succeeded++
		} else {
			v.Failed++
		}
		v.Entries = append(v.Entries, entry)
	}
	return v
}
