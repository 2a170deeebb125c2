package protocol

import (
	"encoding/json"
	"fmt"
	"strings"

	sjsonschema "github.com/santhosh-tekuri/jsonschema/v6"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// ValidationError is one schema violation with its instance location.
type ValidationError struct {
	Path    string `json:"path"` // slash-joined instance location, e.g. "0/params_schema"
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	if e.Path == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

var printer = message.NewPrinter(language.English)

// ValidateParams checks a parameter mapping against a protocol's
// params_schema, compiled as a JSON Schema document.
func ValidateParams(schema ParameterSetSchema, params map[string]any) []*ValidationError {
	schemaJSON, err := json.Marshal(schema)
	if err != nil {
		return []*ValidationError{{Message: fmt.Sprintf("marshal params schema: %v", err)}}
	}
	if params == nil {
		params = map[string]any{}
	}
	// Round-trip so numbers are float64 like any decoded request body.
	data, err := json.Marshal(params)
	if err != nil {
		return []*ValidationError{{Message: fmt.Sprintf("marshal params: %v", err)}}
	}
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return []*ValidationError{{Message: fmt.Sprintf("unmarshal params: %v", err)}}
	}
	return ValidateDocument(schemaJSON, "params.json", doc)
}

// ValidateDocument compiles schemaJSON and validates doc against it,
// returning every leaf violation.
func ValidateDocument(schemaJSON []byte, resource string, doc any) []*ValidationError {
	var schemaDoc any
	if err := json.Unmarshal(schemaJSON, &schemaDoc); err != nil {
		return []*ValidationError{{Message: fmt.Sprintf("unmarshal schema: %v", err)}}
	}

	c := sjsonschema.NewCompiler()
	if err := c.AddResource(resource, schemaDoc); err != nil {
		return []*ValidationError{{Message: fmt.Sprintf("add schema resource: %v", err)}}
	}
	sch, err := c.Compile(resource)
	if err != nil {
		return []*ValidationError{{Message: fmt.Sprintf("compile schema: %v", err)}}
	}

	if err := sch.Validate(doc); err != nil {
		ve, ok := err.(*sjsonschema.ValidationError)
		if !ok {
			return []*ValidationError{{Message: err.Error()}}
		}
		var errs []*ValidationError
		for _, cause := range flattenValidationErrors(ve) {
			errs = append(errs, &ValidationError{
				Path:    strings.Join(cause.InstanceLocation, "/"),
				Message: cause.ErrorKind.LocalizedString(printer),
			})
		}
		return errs
	}
	return nil
}

// flattenValidationErrors recursively collects all leaf validation errors.
func flattenValidationErrors(ve *sjsonschema.ValidationError) []*sjsonschema.ValidationError {
	if len(ve.Causes) == 0 {
		return []*sjsonschema.ValidationError{ve}
	}
	var flat []*sjsonschema.ValidationError
	for _, cause := range ve.Causes {
		flat = append(flat, flattenValidationErrors(cause)...)
	}
	return flat
}
