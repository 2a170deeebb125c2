package form

import (
	"maps"

	"github.com/finlay-adaptyvbio/adaptyv-lab-ui/pkg/protocol"
)

// Values is the operator-filled parameter mapping sent with a run.
// Values are string, float64, bool, []string or []any.
type Values map[string]any

// Clone returns a shallow copy of v.
func (v Values) Clone() Values {
	if v == nil {
		return Values{}
	}
	return maps.Clone(v)
}

// Field is one interpreted parameter.
type Field struct {
	Name        string
	Label       string
	Description string
	Kind        Kind
	Required    bool
	Default     any
	HasDefault  bool
	Control     Control
	Schema      protocol.ParameterSchema
}

// Plan is the interpreted form for one protocol. Field order is schema order.
type Plan struct {
	Fields []Field
	index  map[string]int
}

// Interpret derives a Plan from a parameter set schema. It never fails:
// unusable schema fragments degrade to permissive fields.
func Interpret(s protocol.ParameterSetSchema) *Plan {
	plan := &Plan{index: make(map[string]int, s.Len())}
	s.Each(func(name string, p protocol.ParameterSchema) {
		kind := Classify(p)
		label := p.Title
		if label == "" {
			label = name
		}
		plan.index[name] = len(plan.Fields)
		plan.Fields = append(plan.Fields, Field{
			Name:        name,
			Label:       label,
			Description: p.Description,
			Kind:        kind,
			Required:    s.IsRequired(name),
			Default:     p.Default,
			HasDefault:  p.HasDefault,
			Control:     buildControl(p, kind),
			Schema:      p,
		})
	})
	return plan
}

// Len returns the number of fields.
func (p *Plan) Len() int { return len(p.Fields) }

// Field returns the named field.
func (p *Plan) Field(name string) (Field, bool) {
	i, ok := p.index[name]
	if !ok {
		return Field{}, false
	}
	return p.Fields[i], true
}

// Names returns field names in order.
func (p *Plan) Names() []string {
	names := make([]string, len(p.Fields))
	for i, f := range p.Fields {
		names[i] = f.Name
	}
	return names
}

// Defaults returns exactly the parameters that declare a default, with the
// default copied verbatim.
func (p *Plan) Defaults() Values {
	v := Values{}
	for _, f := range p.Fields {
		if f.HasDefault {
			v[f.Name] = f.Default
		}
	}
	return v
}
