package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
)

// JSONSchema describes params_schema for reflection. The ordered property
// map is opaque to the reflector, so the shape is spelled out here.
func (ParameterSetSchema) JSONSchema() *jsonschema.Schema {
	props := jsonschema.NewProperties()
	props.Set("type", &jsonschema.Schema{Type: "string", Const: "object"})
	props.Set("title", &jsonschema.Schema{Type: "string"})
	props.Set("description", &jsonschema.Schema{Type: "string"})
	props.Set("properties", &jsonschema.Schema{
		Type:                 "object",
		Description:          "Parameter schemas keyed by name, in display order",
		AdditionalProperties: &jsonschema.Schema{Type: "object"},
	})
	props.Set("required", &jsonschema.Schema{
		Type:  "array",
		Items: &jsonschema.Schema{Type: "string"},
	})
	return &jsonschema.Schema{
		Type:       "object",
		Properties: props,
	}
}

// GenerateProtocolJSONSchema produces a JSON Schema document for a single
// catalog protocol using invopop/jsonschema.
func GenerateProtocolJSONSchema() ([]byte, error) {
	r := new(jsonschema.Reflector)
	r.DoNotReference = false

	s := r.Reflect(&Protocol{})
	s.ID = "https://github.com/finlay-adaptyvbio/adaptyv-lab-ui/schemas/protocol-v1.json"
	s.Title = "Lab Protocol v1"
	s.Description = "Schema for protocol catalog entries"

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal protocol schema: %w", err)
	}
	return data, nil
}

// GenerateResultJSONSchema produces a JSON Schema document for run results.
func GenerateResultJSONSchema() ([]byte, error) {
	r := new(jsonschema.Reflector)
	r.DoNotReference = false

	s := r.Reflect(&ProtocolResult{})
	s.ID = "https://github.com/finlay-adaptyvbio/adaptyv-lab-ui/schemas/result-v1.json"
	s.Title = "Lab Protocol Result v1"
	s.Description = "Schema for protocol run results"

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal result schema: %w", err)
	}
	return data, nil
}
