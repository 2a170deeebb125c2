package form

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrUnknownField is returned when an assignment names a parameter the
// plan does not declare.
var ErrUnknownField = errors.New("unknown parameter")

// Parse converts operator text into a typed value for the field. An empty
// (or all-whitespace) input returns nil, meaning "unset".
func (f Field) Parse(raw string) (any, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	return parsers[f.Kind](raw)
}

type parser func(raw string) (any, error)

var parsers = [...]parser{
	KindUnknown:     parseText,
	KindString:      parseText,
	KindEnum:        parseText,
	KindNumber:      parseNumber,
	KindInteger:     parseNumber,
	KindBoolean:     parseBool,
	KindStringArray: parseList,
	KindArray:       parseList,
}

func parseText(raw string) (any, error) {
	return raw, nil
}

func parseNumber(raw string) (any, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return nil, fmt.Errorf("%q is not a number", raw)
	}
	return f, nil
}

func parseBool(raw string) (any, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "true", "t", "1", "yes", "y", "on", "enabled":
		return true, nil
	case "false", "f", "0", "no", "n", "off", "disabled":
		return false, nil
	}
	return nil, fmt.Errorf("%q is not a boolean", raw)
}

// parseList accepts a JSON array or a comma-separated list.
func parseList(raw string) (any, error) {
	trimmed := strings.TrimSpace(raw)
	if strings.HasPrefix(trimmed, "[") {
		var items []any
		if err := json.Unmarshal([]byte(trimmed), &items); err != nil {
			return nil, fmt.Errorf("invalid list: %w", err)
		}
		return stringsIfAll(items), nil
	}
	var items []string
	for _, part := range strings.Split(trimmed, ",") {
		if part = strings.TrimSpace(part); part != "" {
			items = append(items, part)
		}
	}
	return items, nil
}

func stringsIfAll(items []any) any {
	out := make([]string, 0, len(items))
	for _, item := range items {
		s, ok := item.(string)
		if !ok {
			return items
		}
		out = append(out, s)
	}
	return out
}

// Format renders a value for display or re-editing.
func (f Field) Format(v any) string {
	return FormatValue(v)
}

// FormatValue is best-effort string coercion for any form value.
func FormatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case []string:
		return strings.Join(t, ", ")
	case []any:
		parts := make([]string, len(t))
		for i, item := range t {
			parts[i] = FormatValue(item)
		}
		return strings.Join(parts, ", ")
	}
	if n, ok := toFloat(v); ok {
		return formatNumber(n)
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}

// ParseAssignment splits "name=value".
func ParseAssignment(s string) (name, value string, err error) {
	name, value, ok := strings.Cut(s, "=")
	name = strings.TrimSpace(name)
	if !ok || name == "" {
		return "", "", fmt.Errorf("invalid assignment %q: want name=value", s)
	}
	return name, value, nil
}

// Set parses raw for the named field and stores it in values. An empty raw
// value removes the entry.
func (p *Plan) Set(values Values, name, raw string) error {
	f, ok := p.Field(name)
	if !ok {
		return fmt.Errorf("%w %q", ErrUnknownField, name)
	}
	v, err := f.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	if v == nil {
		delete(values, name)
		return nil
	}
	values[name] = v
	return nil
}

// Assign applies a "name=value" assignment to values.
func (p *Plan) Assign(values Values, assignment string) error {
	name, raw, err := ParseAssignment(assignment)
	if err != nil {
		return err
	}
	return p.Set(values, name, raw)
}

// LoadValuesFile reads a parameter mapping from a JSON or YAML file.
func LoadValuesFile(path string) (Values, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read params file: %w", err)
	}
	var values Values
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		if err := json.Unmarshal(data, &values); err != nil {
			return nil, fmt.Errorf("parse params file %s: %w", path, err)
		}
	default:
		var raw map[string]any
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("parse params file %s: %w", path, err)
		}
		// Round-trip through JSON so numbers match the wire shape.
		b, err := json.Marshal(raw)
		if err != nil {
			return nil, fmt.Errorf("parse params file %s: %w", path, err)
		}
		if err := json.Unmarshal(b, &values); err != nil {
			return nil, fmt.Errorf("parse params file %s: %w", path, err)
		}
	}
	if values == nil {
		values = Values{}
	}
	return values, nil
}
