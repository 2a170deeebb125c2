package serve

import (
	"maps"
	"strings"

	"github.com/finlay-adaptyvbio/adaptyv-lab-ui/pkg/catalog"
	"github.com/finlay-adaptyvbio/adaptyv-lab-ui/pkg/form"
	"github.com/finlay-adaptyvbio/adaptyv-lab-ui/pkg/protocol"
)

// StatusFailed is the overall status of a simulated run with a failed
// command.
const StatusFailed = "FAILED"

// Simulate builds the result of a simulated run. Schema defaults fill
// parameters the request omits. Scripted commands have "{{name}}"
// placeholders resolved against the parameters; a protocol without a script
// yields a single successful command echoing its parameters.
func Simulate(e *catalog.Entry, params map[string]any) *protocol.ProtocolResult {
	values := map[string]any(form.Interpret(e.ParamsSchema).Defaults())
	maps.Copy(values, params)

	var results []protocol.CommandResult
	if e.Simulation == nil || len(e.Simulation.Commands) == 0 {
		results = []protocol.CommandResult{{
			Status: protocol.StatusSuccess,
			Errors: []string{},
			Data:   maps.Clone(values),
		}}
	} else {
		sub := newSubstituter(values)
		for _, cmd := range e.Simulation.Commands {
			status := cmd.Status
			if status == "" {
				status = protocol.StatusSuccess
			}
			errs := make([]string, 0, len(cmd.Errors))
			for _, msg := range cmd.Errors {
				errs = append(errs, sub.text(msg))
			}
			data := make(map[string]any, len(cmd.Data)+1)
			if cmd.Name != "" {
				data["command"] = cmd.Name
			}
			for k, v := range cmd.Data {
				data[k] = sub.value(v)
			}
			results = append(results, protocol.CommandResult{Status: status, Errors: errs, Data: data})
		}
	}

	status := protocol.StatusSuccess
	if e.Simulation != nil && e.Simulation.Status != "" {
		status = e.Simulation.Status
	} else {
		for _, r := range results {
			if !r.Succeeded() {
				status = StatusFailed
				break
			}
		}
	}
	return &protocol.ProtocolResult{
		Status:       status,
		CommandCount: len(results),
		Results:      results,
	}
}

type substituter struct {
	values   map[string]any
	replacer *strings.Replacer
}

func newSubstituter(values map[string]any) *substituter {
	pairs := make([]string, 0, 2*len(values))
	for k, v := range values {
		pairs = append(pairs, "{{"+k+"}}", form.FormatValue(v))
	}
	return &substituter{values: values, replacer: strings.NewReplacer(pairs...)}
}

// text resolves every placeholder in s to its formatted value.
func (s *substituter) text(str string) string {
	return s.replacer.Replace(str)
}

// value resolves placeholders inside v. A string that is exactly one
// placeholder takes the parameter's value with its original type.
func (s *substituter) value(v any) any {
	switch t := v.(type) {
	case string:
		if name, ok := strings.CutPrefix(t, "{{"); ok {
			if name, ok = strings.CutSuffix(name, "}}"); ok && !strings.Contains(name, "{{") {
				if pv, found := s.values[name]; found {
					return pv
				}
			}
		}
		return s.text(t)
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, inner := range t {
			out[k] = s.value(inner)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, inner := range t {
			out[i] = s.value(inner)
		}
		return out
	default:
		return v
	}
}

