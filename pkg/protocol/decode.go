package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	orderedmap "github.com/wk8/go-ordered-map/v2"
	"gopkg.in/yaml.v3"
)

// ErrMalformedResult is returned when a run result body is not a JSON object.
var ErrMalformedResult = errors.New("malformed protocol result")

var errNotObject = errors.New("not a JSON object")

// Decoding is deliberately lenient. A malformed fragment degrades to a
// zero-valued schema rather than failing the whole catalog.

// ---------------------------------------------------------------------------
// ParameterSchema
// ---------------------------------------------------------------------------

// UnmarshalJSON decodes a parameter schema, ignoring fields of the wrong type.
func (p *ParameterSchema) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		*p = ParameterSchema{}
		return nil
	}
	*p = parameterFromMap(raw)
	return nil
}

// UnmarshalYAML decodes a parameter schema from a YAML catalog document.
func (p *ParameterSchema) UnmarshalYAML(node *yaml.Node) error {
	var raw any
	if err := node.Decode(&raw); err != nil {
		*p = ParameterSchema{}
		return nil
	}
	m, ok := normalizeYAML(raw).(map[string]any)
	if !ok {
		*p = ParameterSchema{}
		return nil
	}
	*p = parameterFromMap(m)
	return nil
}

// MarshalJSON keeps an explicit null default, which omitempty would drop.
func (p ParameterSchema) MarshalJSON() ([]byte, error) {
	type wire struct {
		Type             string          `json:"type,omitempty"`
		Title            string          `json:"title,omitempty"`
		Description      string          `json:"description,omitempty"`
		Default          json.RawMessage `json:"default,omitempty"`
		Enum             []string        `json:"enum,omitempty"`
		Minimum          *float64        `json:"minimum,omitempty"`
		Maximum          *float64        `json:"maximum,omitempty"`
		ExclusiveMinimum *float64        `json:"exclusiveMinimum,omitempty"`
		ExclusiveMaximum *float64        `json:"exclusiveMaximum,omitempty"`
		Items            *ItemsSchema    `json:"items,omitempty"`
	}
	w := wire{
		Type:             p.Type,
		Title:            p.Title,
		Description:      p.Description,
		Enum:             p.Enum,
		Minimum:          p.Minimum,
		Maximum:          p.Maximum,
		ExclusiveMinimum: p.ExclusiveMinimum,
		ExclusiveMaximum: p.ExclusiveMaximum,
		Items:            p.Items,
	}
	if p.HasDefault || p.Default != nil {
		b, err := json.Marshal(p.Default)
		if err != nil {
			return nil, fmt.Errorf("marshal default: %w", err)
		}
		w.Default = b
	}
	return json.Marshal(w)
}

func parameterFromMap(raw map[string]any) ParameterSchema {
	var p ParameterSchema

	switch t := raw["type"].(type) {
	case string:
		p.Type = t
	case []any:
		// ["integer", "null"] style unions: first non-null member wins.
		for _, v := range t {
			if s, ok := v.(string); ok && s != "null" {
				p.Type = s
				break
			}
		}
	}

	p.Title, _ = raw["title"].(string)
	p.Description, _ = raw["description"].(string)

	if v, ok := raw["default"]; ok {
		p.Default = v
		p.HasDefault = true
	}

	if values, ok := raw["enum"].([]any); ok {
		for _, v := range values {
			if s, ok := scalarString(v); ok {
				p.Enum = append(p.Enum, s)
			}
		}
	}

	p.Minimum = numberOf(raw["minimum"])
	p.Maximum = numberOf(raw["maximum"])

	// Draft 4 used boolean exclusivity flags on top of minimum/maximum.
	switch v := raw["exclusiveMinimum"].(type) {
	case bool:
		if v && p.Minimum != nil {
			m := *p.Minimum
			p.ExclusiveMinimum = &m
		}
	default:
		p.ExclusiveMinimum = numberOf(v)
	}
	switch v := raw["exclusiveMaximum"].(type) {
	case bool:
		if v && p.Maximum != nil {
			m := *p.Maximum
			p.ExclusiveMaximum = &m
		}
	default:
		p.ExclusiveMaximum = numberOf(v)
	}

	if items, ok := raw["items"].(map[string]any); ok {
		t, _ := items["type"].(string)
		p.Items = &ItemsSchema{Type: t}
	}

	return p
}

// numberOf returns v as a float64 when it is numeric.
func numberOf(v any) *float64 {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case uint64:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return nil
		}
		f = parsed
	default:
		return nil
	}
	return &f
}

func scalarString(v any) (string, bool) {
	switch s := v.(type) {
	case string:
		return s, true
	case bool:
		return strconv.FormatBool(s), true
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64), true
	case int:
		return strconv.Itoa(s), true
	}
	return "", false
}

// normalizeYAML converts yaml.v3 decode output into the shapes
// encoding/json produces: string-keyed maps and float64 numbers.
func normalizeYAML(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = normalizeYAML(val)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[fmt.Sprint(k)] = normalizeYAML(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = normalizeYAML(val)
		}
		return out
	case int:
		return float64(t)
	case int64:
		return float64(t)
	case uint64:
		return float64(t)
	}
	return v
}

// ---------------------------------------------------------------------------
// ParameterSetSchema
// ---------------------------------------------------------------------------

// UnmarshalJSON decodes params_schema preserving property order.
func (s *ParameterSetSchema) UnmarshalJSON(data []byte) error {
	*s = ParameterSetSchema{Properties: orderedmap.New[string, ParameterSchema]()}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil
	}
	_ = json.Unmarshal(raw["type"], &s.Type)
	_ = json.Unmarshal(raw["title"], &s.Title)
	_ = json.Unmarshal(raw["description"], &s.Description)

	if props, ok := raw["properties"]; ok {
		decoded, err := decodeOrderedProperties(props)
		if err == nil {
			s.Properties = decoded
		}
	}

	if req, ok := raw["required"]; ok {
		var values []any
		if err := json.Unmarshal(req, &values); err == nil {
			s.Required = requiredNames(values)
		}
	}
	return nil
}

func decodeOrderedProperties(data []byte) (*orderedmap.OrderedMap[string, ParameterSchema], error) {
	props := orderedmap.New[string, ParameterSchema]()
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, errNotObject
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		name, _ := tok.(string)
		var p ParameterSchema
		if err := dec.Decode(&p); err != nil {
			return nil, err
		}
		props.Set(name, p)
	}
	return props, nil
}

func requiredNames(values []any) []string {
	var names []string
	for _, v := range values {
		if s, ok := v.(string); ok {
			names = append(names, s)
		}
	}
	return names
}

// UnmarshalYAML decodes params_schema from a YAML mapping node in order.
func (s *ParameterSetSchema) UnmarshalYAML(node *yaml.Node) error {
	*s = ParameterSetSchema{Properties: orderedmap.New[string, ParameterSchema]()}
	if node.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, val := node.Content[i], node.Content[i+1]
		switch key.Value {
		case "type":
			s.Type = scalarValue(val)
		case "title":
			s.Title = scalarValue(val)
		case "description":
			s.Description = scalarValue(val)
		case "properties":
			if val.Kind != yaml.MappingNode {
				continue
			}
			for j := 0; j+1 < len(val.Content); j += 2 {
				var p ParameterSchema
				_ = p.UnmarshalYAML(val.Content[j+1])
				s.Properties.Set(val.Content[j].Value, p)
			}
		case "required":
			var values []any
			if err := val.Decode(&values); err == nil {
				s.Required = requiredNames(values)
			}
		}
	}
	return nil
}

func scalarValue(n *yaml.Node) string {
	if n.Kind != yaml.ScalarNode {
		return ""
	}
	return n.Value
}

// MarshalJSON writes params_schema with properties in document order.
func (s ParameterSetSchema) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	typ := s.Type
	if typ == "" {
		typ = "object"
	}
	buf.WriteString(`{"type":`)
	writeJSON(&buf, typ)
	if s.Title != "" {
		buf.WriteString(`,"title":`)
		writeJSON(&buf, s.Title)
	}
	if s.Description != "" {
		buf.WriteString(`,"description":`)
		writeJSON(&buf, s.Description)
	}
	buf.WriteString(`,"properties":{`)
	first := true
	var err error
	s.Each(func(name string, p ParameterSchema) {
		if err != nil {
			return
		}
		if !first {
			buf.WriteByte(',')
		}
		first = false
		writeJSON(&buf, name)
		buf.WriteByte(':')
		var b []byte
		b, err = p.MarshalJSON()
		buf.Write(b)
	})
	if err != nil {
		return nil, fmt.Errorf("marshal properties: %w", err)
	}
	buf.WriteByte('}')
	if len(s.Required) > 0 {
		buf.WriteString(`,"required":`)
		writeJSON(&buf, s.Required)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func writeJSON(buf *bytes.Buffer, v any) {
	b, _ := json.Marshal(v)
	buf.Write(b)
}

// ---------------------------------------------------------------------------
// Results
// ---------------------------------------------------------------------------

// UnmarshalJSON decodes a run result. Only a non-object body is an error;
// missing or mistyped members fall back to zero values.
func (r *ProtocolResult) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil || raw == nil {
		return ErrMalformedResult
	}
	*r = ProtocolResult{Results: []CommandResult{}}
	_ = json.Unmarshal(raw["status"], &r.Status)

	var count any
	if err := json.Unmarshal(raw["command_count"], &count); err == nil {
		if n := numberOf(count); n != nil {
			r.CommandCount = int(*n)
		}
	}

	var items []json.RawMessage
	if err := json.Unmarshal(raw["results"], &items); err == nil {
		for _, item := range items {
			var c CommandResult
			_ = c.UnmarshalJSON(item)
			r.Results = append(r.Results, c)
		}
	}
	return nil
}

// UnmarshalJSON decodes one command result. Errors may arrive as a single
// string; a non-object data payload is wrapped under "value".
func (c *CommandResult) UnmarshalJSON(data []byte) error {
	*c = CommandResult{Errors: []string{}, Data: map[string]any{}}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil
	}
	c.Status, _ = raw["status"].(string)

	switch errs := raw["errors"].(type) {
	case string:
		c.Errors = append(c.Errors, errs)
	case []any:
		for _, e := range errs {
			if s, ok := e.(string); ok {
				c.Errors = append(c.Errors, s)
				continue
			}
			b, _ := json.Marshal(e)
			c.Errors = append(c.Errors, string(b))
		}
	}

	switch d := raw["data"].(type) {
	case nil:
	case map[string]any:
		c.Data = d
	default:
		c.Data = map[string]any{"value": d}
	}
	return nil
}
