package protocol

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"gopkg.in/yaml.v3"
)

const serialDilutionJSON = `{
  "id": "serial-dilution",
  "name": "Serial Dilution",
  "description": "Dilute a sample across a plate",
  "tags": ["liquid-handling", "plates"],
  "params_schema": {
    "type": "object",
    "properties": {
      "volume": {"type": "number", "minimum": 10, "maximum": 500, "default": 100},
      "plate": {"type": "string", "enum": ["96", "384"], "default": "96"},
      "mix": {"type": "boolean", "default": true},
      "wells": {"type": "array", "items": {"type": "string"}},
      "cycles": {"type": "integer", "minimum": 1, "maximum": 12}
    },
    "required": ["volume", "plate"]
  }
}`

// TestDecodeProtocolPreservesOrder verifies properties keep document order.
func TestDecodeProtocolPreservesOrder(t *testing.T) {
	var p Protocol
	if err := json.Unmarshal([]byte(serialDilutionJSON), &p); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	want := []string{"volume", "plate", "mix", "wells", "cycles"}
	if diff := cmp.Diff(want, p.ParamsSchema.Names()); diff != "" {
		t.Errorf("Names() mismatch (-want +got):\n%s", diff)
	}
	if !p.ParamsSchema.IsRequired("plate") {
		t.Error("plate should be required")
	}
	if p.ParamsSchema.IsRequired("mix") {
		t.Error("mix should not be required")
	}
	if !p.HasTag("plates") {
		t.Error("HasTag(plates) = false, want true")
	}

	vol, ok := p.ParamsSchema.Lookup("volume")
	if !ok {
		t.Fatal("volume not found")
	}
	if vol.Minimum == nil || *vol.Minimum != 10 {
		t.Errorf("volume.minimum = %v, want 10", vol.Minimum)
	}
	if !vol.HasDefault || vol.Default != float64(100) {
		t.Errorf("volume.default = %v (has=%v), want 100", vol.Default, vol.HasDefault)
	}

	wells, _ := p.ParamsSchema.Lookup("wells")
	if wells.Items == nil || wells.Items.Type != TypeString {
		t.Errorf("wells.items = %+v, want string items", wells.Items)
	}
}

// TestDecodeParameterLenient checks that mistyped members degrade to zero values.
func TestDecodeParameterLenient(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want func(t *testing.T, p ParameterSchema)
	}{
		{
			name: "non-object fragment",
			in:   `"oops"`,
			want: func(t *testing.T, p ParameterSchema) {
				if p.Type != "" || p.HasDefault {
					t.Errorf("got %+v, want zero schema", p)
				}
			},
		},
		{
			name: "string minimum ignored",
			in:   `{"type":"number","minimum":"ten","maximum":5}`,
			want: func(t *testing.T, p ParameterSchema) {
				if p.Minimum != nil {
					t.Errorf("minimum = %v, want nil", *p.Minimum)
				}
				if p.Maximum == nil || *p.Maximum != 5 {
					t.Errorf("maximum = %v, want 5", p.Maximum)
				}
			},
		},
		{
			name: "type union",
			in:   `{"type":["null","integer"]}`,
			want: func(t *testing.T, p ParameterSchema) {
				if p.Type != TypeInteger {
					t.Errorf("type = %q, want %q", p.Type, TypeInteger)
				}
			},
		},
		{
			name: "explicit null default",
			in:   `{"type":"string","default":null}`,
			want: func(t *testing.T, p ParameterSchema) {
				if !p.HasDefault || p.Default != nil {
					t.Errorf("default = %v (has=%v), want explicit nil", p.Default, p.HasDefault)
				}
			},
		},
		{
			name: "draft 4 boolean exclusivity",
			in:   `{"type":"number","minimum":0,"exclusiveMinimum":true}`,
			want: func(t *testing.T, p ParameterSchema) {
				if p.ExclusiveMinimum == nil || *p.ExclusiveMinimum != 0 {
					t.Errorf("exclusiveMinimum = %v, want 0", p.ExclusiveMinimum)
				}
			},
		},
		{
			name: "numeric enum stringified",
			in:   `{"enum":[1,2.5,"x",null]}`,
			want: func(t *testing.T, p ParameterSchema) {
				if diff := cmp.Diff([]string{"1", "2.5", "x"}, p.Enum); diff != "" {
					t.Errorf("enum mismatch (-want +got):\n%s", diff)
				}
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var p ParameterSchema
			if err := json.Unmarshal([]byte(tt.in), &p); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			tt.want(t, p)
		})
	}
}

// TestDecodeSetSchemaMalformedProperties keeps the protocol usable when
// properties is not an object.
func TestDecodeSetSchemaMalformedProperties(t *testing.T) {
	var p Protocol
	in := `{"id":"x","name":"X","description":"","params_schema":{"properties":[1,2],"required":"volume"}}`
	if err := json.Unmarshal([]byte(in), &p); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if p.ParamsSchema.Len() != 0 {
		t.Errorf("Len() = %d, want 0", p.ParamsSchema.Len())
	}
	if len(p.ParamsSchema.Required) != 0 {
		t.Errorf("Required = %v, want empty", p.ParamsSchema.Required)
	}
}

// TestSetSchemaRoundTripKeepsOrder marshals and re-reads a schema.
func TestSetSchemaRoundTripKeepsOrder(t *testing.T) {
	s := NewParameterSetSchema()
	s.Add("zeta", ParameterSchema{Type: TypeString})
	s.Add("alpha", ParameterSchema{Type: TypeBoolean, Default: nil, HasDefault: true})
	s.Required = []string{"zeta"}

	data, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(data), `"default":null`) {
		t.Errorf("marshal dropped explicit null default: %s", data)
	}

	var back ParameterSetSchema
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if diff := cmp.Diff([]string{"zeta", "alpha"}, back.Names()); diff != "" {
		t.Errorf("Names() mismatch (-want +got):\n%s", diff)
	}
}

// TestDecodeYAMLProtocol exercises the YAML path used by catalog files.
func TestDecodeYAMLProtocol(t *testing.T) {
	in := `id: plate-wash
name: Plate Wash
description: Wash a plate
params_schema:
  type: object
  properties:
    cycles:
      type: integer
      minimum: 1
      maximum: 5
      default: 3
    buffer:
      type: string
      enum: [PBS, TBS]
  required: [cycles]
`
	var p Protocol
	if err := yaml.Unmarshal([]byte(in), &p); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if diff := cmp.Diff([]string{"cycles", "buffer"}, p.ParamsSchema.Names()); diff != "" {
		t.Errorf("Names() mismatch (-want +got):\n%s", diff)
	}
	cycles, _ := p.ParamsSchema.Lookup("cycles")
	if cycles.Default != float64(3) {
		t.Errorf("cycles.default = %#v, want float64(3)", cycles.Default)
	}
	if !p.ParamsSchema.IsRequired("cycles") {
		t.Error("cycles should be required")
	}
}

// TestDecodeResult checks lenient decoding of run results.
func TestDecodeResult(t *testing.T) {
	in := `{
  "status": "SUCCESS",
  "command_count": 3,
  "results": [
    {"status": "SUCCESS", "errors": [], "data": {"volume": 50}},
    {"status": "FAILED", "errors": "tip not found", "data": 7},
    "garbage"
  ]
}`
	var r ProtocolResult
	if err := json.Unmarshal([]byte(in), &r); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if r.CommandCount != 3 {
		t.Errorf("CommandCount = %d, want 3", r.CommandCount)
	}
	if len(r.Results) != 3 {
		t.Fatalf("len(Results) = %d, want 3", len(r.Results))
	}
	if !r.Results[0].Succeeded() {
		t.Error("Results[0] should succeed")
	}
	if diff := cmp.Diff([]string{"tip not found"}, r.Results[1].Errors); diff != "" {
		t.Errorf("Results[1].Errors mismatch (-want +got):\n%s", diff)
	}
	if r.Results[1].Data["value"] != float64(7) {
		t.Errorf("Results[1].Data = %v, want value=7", r.Results[1].Data)
	}
	if r.Results[2].Status != "" || len(r.Results[2].Errors) != 0 {
		t.Errorf("Results[2] = %+v, want empty command", r.Results[2])
	}
}

func TestDecodeResultRejectsNonObject(t *testing.T) {
	var r ProtocolResult
	err := json.Unmarshal([]byte(`[1,2,3]`), &r)
	if !errors.Is(err, ErrMalformedResult) {
		t.Errorf("err = %v, want ErrMalformedResult", err)
	}
}
