package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/invopop/jsonschema"
	"gopkg.in/yaml.v3"

	"github.com/finlay-adaptyvbio/adaptyv-lab-ui/pkg/protocol"
)

// Issue is a single catalog validation finding.
type Issue struct {
	Phase    string `json:"phase"` // structural, semantic, domain
	Path     string `json:"path"`
	Message  string `json:"message"`
	Severity string `json:"severity"` // error, warning
}

func (i *Issue) Error() string {
	return fmt.Sprintf("[%s] %s: %s", i.Phase, i.Path, i.Message)
}

// GenerateJSONSchema produces a JSON Schema document for catalog files.
func GenerateJSONSchema() ([]byte, error) {
	r := new(jsonschema.Reflector)
	r.DoNotReference = false

	s := r.Reflect(&File{})
	s.ID = "https://github.com/finlay-adaptyvbio/adaptyv-lab-ui/schemas/catalog-v1.json"
	s.Title = "Lab Protocol Catalog v1"
	s.Description = "Schema for labrun catalog documents"

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal catalog schema: %w", err)
	}
	return data, nil
}

// ValidateFile runs the validation pipeline on a catalog file:
// structural (strict decode), semantic (JSON Schema) and domain rules.
func ValidateFile(path string) (*File, []*Issue) {
	cf, err := LoadFile(path)
	if err != nil {
		return nil, []*Issue{{Phase: "structural", Message: err.Error(), Severity: "error"}}
	}

	var issues []*Issue
	doc, err := genericDocument(path)
	if err != nil {
		issues = append(issues, &Issue{Phase: "semantic", Message: err.Error(), Severity: "error"})
	} else {
		issues = append(issues, validateSemantic(doc)...)
	}
	issues = append(issues, ValidateDomain(cf)...)
	return cf, issues
}

// genericDocument re-reads path as plain JSON values for schema validation.
func genericDocument(path string) (any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	var raw any
	if strings.EqualFold(filepath.Ext(path), ".json") {
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("parse catalog: %w", err)
		}
		return raw, nil
	}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	// Round-trip through JSON so numbers and maps take JSON shapes.
	b, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("convert catalog: %w", err)
	}
	var doc any
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("convert catalog: %w", err)
	}
	return doc, nil
}

func validateSemantic(doc any) []*Issue {
	schemaJSON, err := GenerateJSONSchema()
	if err != nil {
		return []*Issue{{Phase: "semantic", Message: err.Error(), Severity: "error"}}
	}
	var issues []*Issue
	for _, ve := range protocol.ValidateDocument(schemaJSON, "catalog-v1.json", doc) {
		issues = append(issues, &Issue{
			Phase:    "semantic",
			Path:     ve.Path,
			Message:  ve.Message,
			Severity: "error",
		})
	}
	return issues
}

// ValidateDomain checks rules the schema cannot express.
func ValidateDomain(cf *File) []*Issue {
	var issues []*Issue
	add := func(path, severity, format string, args ...any) {
		issues = append(issues, &Issue{
			Phase:    "domain",
			Path:     path,
			Message:  fmt.Sprintf(format, args...),
			Severity: severity,
		})
	}

	seen := make(map[string]int)
	for i, e := range cf.Protocols {
		base := fmt.Sprintf("protocols[%d]", i)
		if e.ID == "" {
			add(base+".id", "error", "protocol id is empty")
		} else if prev, dup := seen[e.ID]; dup {
			add(base+".id", "error", "duplicate protocol id %q (first at protocols[%d])", e.ID, prev)
		} else {
			seen[e.ID] = i
		}

		schema := e.ParamsSchema
		for _, name := range schema.Required {
			if _, ok := schema.Lookup(name); !ok {
				add(base+".params_schema.required", "warning", "required parameter %q is not declared", name)
			}
		}
		schema.Each(func(name string, p protocol.ParameterSchema) {
			path := fmt.Sprintf("%s.params_schema.properties.%s", base, name)
			switch p.Type {
			case protocol.TypeString, protocol.TypeNumber, protocol.TypeInteger,
				protocol.TypeBoolean, protocol.TypeArray:
			case "":
				add(path+".type", "warning", "parameter has no type; any value will be accepted")
			default:
				add(path+".type", "warning", "unsupported type %q; any value will be accepted", p.Type)
			}
			if p.Minimum != nil && p.Maximum != nil && *p.Minimum > *p.Maximum {
				add(path, "warning", "minimum %v exceeds maximum %v; bounds will be ignored", *p.Minimum, *p.Maximum)
			}
		})

		if e.Simulation != nil && e.Simulation.Delay != "" {
			if _, err := time.ParseDuration(e.Simulation.Delay); err != nil {
				add(base+".simulation.delay", "error", "invalid delay %q: %v", e.Simulation.Delay, err)
			}
		}
	}
	return issues
}

// HasErrors reports whether any issue has error severity.
func HasErrors(issues []*Issue) bool {
	for _, i := range issues {
		if i.Severity == "error" {
			return true
		}
	}
	return false
}
