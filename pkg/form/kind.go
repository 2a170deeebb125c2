// Package form turns a protocol's parameter schema into an input plan:
// ordered fields with a control kind, defaults, value coercion, and a
// validation model reporting per-field errors.
package form

import "github.com/finlay-adaptyvbio/adaptyv-lab-ui/pkg/protocol"

// Kind is the closed set of parameter categories. Every per-type decision
// (validation, control, parsing) is a table lookup on Kind.
type Kind int

const (
	KindUnknown Kind = iota
	KindString
	KindEnum
	KindNumber
	KindInteger
	KindBoolean
	KindStringArray
	KindArray
)

var kindNames = [...]string{
	KindUnknown:     "unknown",
	KindString:      "string",
	KindEnum:        "enum",
	KindNumber:      "number",
	KindInteger:     "integer",
	KindBoolean:     "boolean",
	KindStringArray: "string-array",
	KindArray:       "array",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "unknown"
	}
	return kindNames[k]
}

// Numeric reports whether values of this kind are numbers.
func (k Kind) Numeric() bool {
	return k == KindNumber || k == KindInteger
}

// Classify maps a parameter schema onto its Kind. It is the only place that
// inspects the raw schema type.
func Classify(p protocol.ParameterSchema) Kind {
	switch p.Type {
	case protocol.TypeString:
		if len(p.Enum) > 0 {
			return KindEnum
		}
		return KindString
	case protocol.TypeNumber:
		return KindNumber
	case protocol.TypeInteger:
		return KindInteger
	case protocol.TypeBoolean:
		return KindBoolean
	case protocol.TypeArray:
		if p.Items != nil && p.Items.Type == protocol.TypeString {
			return KindStringArray
		}
		return KindArray
	}
	return KindUnknown
}
