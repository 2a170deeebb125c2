// Package protocol defines the catalog and execution wire types: protocols,
// their declarative parameter schemas, and structured run results.
package protocol

import (
	"slices"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// ---------------------------------------------------------------------------
// Protocol
// ---------------------------------------------------------------------------

// Protocol is a named, parameterized device-control routine. Protocols are
// owned by the catalog service and treated as read-only.
type Protocol struct {
	ID           string             `json:"id"                 yaml:"id"`
	Name         string             `json:"name"               yaml:"name"`
	Description  string             `json:"description"        yaml:"description"`
	Tags         []string           `json:"tags,omitempty"     yaml:"tags,omitempty"`
	ParamsSchema ParameterSetSchema `json:"params_schema"      yaml:"params_schema"`
}

// HasTag reports whether the protocol carries the given tag.
func (p Protocol) HasTag(tag string) bool {
	return slices.Contains(p.Tags, tag)
}

// ---------------------------------------------------------------------------
// Parameter schemas
// ---------------------------------------------------------------------------

// Parameter types recognised by the form layer. Anything else is treated as
// an unconstrained value.
const (
	TypeString  = "string"
	TypeNumber  = "number"
	TypeInteger = "integer"
	TypeBoolean = "boolean"
	TypeArray   = "array"
)

// ParameterSchema describes one named input of a protocol.
type ParameterSchema struct {
	Type             string       `json:"type"`
	Title            string       `json:"title,omitempty"`
	Description      string       `json:"description,omitempty"`
	Default          any          `json:"default,omitempty"`
	HasDefault       bool         `json:"-"`
	Enum             []string     `json:"enum,omitempty"`
	Minimum          *float64     `json:"minimum,omitempty"`
	Maximum          *float64     `json:"maximum,omitempty"`
	ExclusiveMinimum *float64     `json:"exclusiveMinimum,omitempty"`
	ExclusiveMaximum *float64     `json:"exclusiveMaximum,omitempty"`
	Items            *ItemsSchema `json:"items,omitempty"`
}

// ItemsSchema describes the element type of an array parameter.
type ItemsSchema struct {
	Type string `json:"type,omitempty"`
}

// ParameterSetSchema is the params_schema of a protocol: an insertion-ordered
// mapping from parameter name to schema plus the set of required names.
// Iteration order is document order and drives on-screen field order.
type ParameterSetSchema struct {
	Type        string
	Title       string
	Description string
	Properties  *orderedmap.OrderedMap[string, ParameterSchema]
	Required    []string
}

// NewParameterSetSchema returns an empty object schema ready for Add.
func NewParameterSetSchema() ParameterSetSchema {
	return ParameterSetSchema{
		Type:       "object",
		Properties: orderedmap.New[string, ParameterSchema](),
	}
}

// Add appends (or replaces in place) a named parameter.
func (s *ParameterSetSchema) Add(name string, p ParameterSchema) {
	if s.Properties == nil {
		s.Properties = orderedmap.New[string, ParameterSchema]()
	}
	s.Properties.Set(name, p)
}

// Len returns the number of declared parameters.
func (s ParameterSetSchema) Len() int {
	if s.Properties == nil {
		return 0
	}
	return s.Properties.Len()
}

// Names returns parameter names in document order.
func (s ParameterSetSchema) Names() []string {
	names := make([]string, 0, s.Len())
	s.Each(func(name string, _ ParameterSchema) {
		names = append(names, name)
	})
	return names
}

// Each calls fn for every parameter in document order.
func (s ParameterSetSchema) Each(fn func(name string, p ParameterSchema)) {
	if s.Properties == nil {
		return
	}
	for pair := s.Properties.Oldest(); pair != nil; pair = pair.Next() {
		fn(pair.Key, pair.Value)
	}
}

// Lookup returns the schema for name.
func (s ParameterSetSchema) Lookup(name string) (ParameterSchema, bool) {
	if s.Properties == nil {
		return ParameterSchema{}, false
	}
	return s.Properties.Get(name)
}

// IsRequired reports whether name is in the required set.
func (s ParameterSetSchema) IsRequired(name string) bool {
	return slices.Contains(s.Required, name)
}

// ---------------------------------------------------------------------------
// Results
// ---------------------------------------------------------------------------

// StatusSuccess is the command status reported for a successful step.
const StatusSuccess = "SUCCESS"

// ProtocolResult is the structured outcome of one protocol run.
// len(Results) == CommandCount is expected but not guaranteed.
type ProtocolResult struct {
	Status       string          `json:"status"`
	CommandCount int             `json:"command_count"`
	Results      []CommandResult `json:"results"`
}

// CommandResult is the outcome of one atomic command within a run.
type CommandResult struct {
	Status string         `json:"status"`
	Errors []string       `json:"errors"`
	Data   map[string]any `json:"data"`
}

// Succeeded reports whether the command finished with StatusSuccess.
func (c CommandResult) Succeeded() bool {
	return c.Status == StatusSuccess
}
