package protocol

import (
	"encoding/json"
	"strings"
	"testing"
)

func dilutionSchema(t *testing.T) ParameterSetSchema {
	t.Helper()
	var p Protocol
	if err := json.Unmarshal([]byte(serialDilutionJSON), &p); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return p.ParamsSchema
}

func TestValidateParams(t *testing.T) {
	schema := dilutionSchema(t)
	tests := []struct {
		name     string
		params   map[string]any
		wantErrs int
		wantPath string
	}{
		{
			name:   "valid",
			params: map[string]any{"volume": 100, "plate": "96", "mix": true},
		},
		{
			name:     "below minimum",
			params:   map[string]any{"volume": 5, "plate": "96"},
			wantErrs: 1,
			wantPath: "volume",
		},
		{
			name:     "not in enum",
			params:   map[string]any{"volume": 50, "plate": "1536"},
			wantErrs: 1,
			wantPath: "plate",
		},
		{
			name:     "missing required",
			params:   map[string]any{"volume": 50},
			wantErrs: 1,
		},
		{
			name:     "fractional integer",
			params:   map[string]any{"volume": 50, "plate": "96", "cycles": 2.5},
			wantErrs: 1,
			wantPath: "cycles",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := ValidateParams(schema, tt.params)
			if len(errs) != tt.wantErrs {
				t.Fatalf("got %d errors, want %d: %v", len(errs), tt.wantErrs, errs)
			}
			if tt.wantPath != "" && errs[0].Path != tt.wantPath {
				t.Errorf("Path = %q, want %q", errs[0].Path, tt.wantPath)
			}
		})
	}
}

func TestGenerateProtocolJSONSchema(t *testing.T) {
	data, err := GenerateProtocolJSONSchema()
	if err != nil {
		t.Fatalf("GenerateProtocolJSONSchema: %v", err)
	}
	for _, want := range []string{`"params_schema"`, `"Lab Protocol v1"`} {
		if !strings.Contains(string(data), want) {
			t.Errorf("schema missing %s", want)
		}
	}

	// The generated schema must accept a real catalog entry.
	var doc any
	if err := json.Unmarshal([]byte(serialDilutionJSON), &doc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if errs := ValidateDocument(data, "protocol.json", doc); len(errs) != 0 {
		t.Errorf("catalog entry rejected: %v", errs)
	}
}

func TestGenerateResultJSONSchema(t *testing.T) {
	data, err := GenerateResultJSONSchema()
	if err != nil {
		t.Fatalf("GenerateResultJSONSchema: %v", err)
	}
	if !strings.Contains(string(data), `"command_count"`) {
		t.Error("schema missing command_count")
	}
}
