package form

import (
	"fmt"
	"math"
	"reflect"
	"slices"
	"strconv"
	"strings"
)

// Error codes reported in FieldError.Code.
const (
	CodeRequired         = "required"
	CodeType             = "type"
	CodeEnum             = "enum"
	CodeInteger          = "integer"
	CodeMinimum          = "minimum"
	CodeMaximum          = "maximum"
	CodeExclusiveMinimum = "exclusiveMinimum"
	CodeExclusiveMaximum = "exclusiveMaximum"
)

// FieldError is a single validation failure for one field.
type FieldError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// FieldErrors collects validation failures in field order.
type FieldErrors []FieldError

func (e FieldErrors) Error() string {
	msgs := make([]string, len(e))
	for i, fe := range e {
		msgs[i] = fe.Error()
	}
	return strings.Join(msgs, "; ")
}

// For returns the first error for the named field, if any.
func (e FieldErrors) For(name string) (FieldError, bool) {
	for _, fe := range e {
		if fe.Field == name {
			return fe, true
		}
	}
	return FieldError{}, false
}

// Validate checks values against every field of the plan. It returns nil
// when all fields pass. Values for names the plan does not declare are
// ignored.
func (p *Plan) Validate(values Values) FieldErrors {
	var errs FieldErrors
	for _, f := range p.Fields {
		v, present := values[f.Name]
		if fe := f.Validate(v, present); fe != nil {
			errs = append(errs, *fe)
		}
	}
	return errs
}

// Validate checks one value. present is false when the field is unset.
func (f Field) Validate(v any, present bool) *FieldError {
	if !present || isEmpty(v) {
		if f.Required {
			return f.fail(CodeRequired, "is required")
		}
		return nil
	}
	return validators[f.Kind](f, v)
}

func (f Field) fail(code, msg string) *FieldError {
	return &FieldError{Field: f.Name, Code: code, Message: msg}
}

type validator func(f Field, v any) *FieldError

var validators = [...]validator{
	KindUnknown:     acceptAny,
	KindString:      validateString,
	KindEnum:        validateEnum,
	KindNumber:      validateNumber,
	KindInteger:     validateInteger,
	KindBoolean:     validateBoolean,
	KindStringArray: validateStringArray,
	KindArray:       validateArray,
}

func acceptAny(Field, any) *FieldError { return nil }

func validateString(f Field, v any) *FieldError {
	if _, ok := v.(string); !ok {
		return f.fail(CodeType, "must be text")
	}
	return nil
}

func validateEnum(f Field, v any) *FieldError {
	s, ok := v.(string)
	if !ok || !slices.Contains(f.Schema.Enum, s) {
		return f.fail(CodeEnum, "must be one of "+strings.Join(f.Schema.Enum, ", "))
	}
	return nil
}

func validateNumber(f Field, v any) *FieldError {
	n, ok := toFloat(v)
	if !ok {
		return f.fail(CodeType, "must be a number")
	}
	return checkBounds(f, n)
}

func validateInteger(f Field, v any) *FieldError {
	n, ok := toFloat(v)
	if !ok {
		return f.fail(CodeType, "must be a number")
	}
	if n != math.Trunc(n) {
		return f.fail(CodeInteger, "must be a whole number")
	}
	return checkBounds(f, n)
}

func checkBounds(f Field, n float64) *FieldError {
	lo, hi := bounds(f.Schema)
	if lo != nil && n < *lo {
		return f.fail(CodeMinimum, "must be at least "+formatNumber(*lo))
	}
	if hi != nil && n > *hi {
		return f.fail(CodeMaximum, "must be at most "+formatNumber(*hi))
	}
	xlo, xhi := exclusiveBounds(f.Schema)
	if xlo != nil && n <= *xlo {
		return f.fail(CodeExclusiveMinimum, "must be greater than "+formatNumber(*xlo))
	}
	if xhi != nil && n >= *xhi {
		return f.fail(CodeExclusiveMaximum, "must be less than "+formatNumber(*xhi))
	}
	return nil
}

func validateBoolean(f Field, v any) *FieldError {
	if _, ok := v.(bool); !ok {
		return f.fail(CodeType, "must be true or false")
	}
	return nil
}

func validateStringArray(f Field, v any) *FieldError {
	switch items := v.(type) {
	case []string:
		return nil
	case []any:
		for _, item := range items {
			if _, ok := item.(string); !ok {
				return f.fail(CodeType, "must be a list of text values")
			}
		}
		return nil
	}
	return f.fail(CodeType, "must be a list of text values")
}

func validateArray(f Field, v any) *FieldError {
	if reflect.ValueOf(v).Kind() != reflect.Slice {
		return f.fail(CodeType, "must be a list")
	}
	return nil
}

// isEmpty treats nil, "" and empty lists as unset.
func isEmpty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case []string:
		return len(t) == 0
	case []any:
		return len(t) == 0
	}
	return false
}

// toFloat accepts the numeric shapes produced by JSON, YAML and the parser.
// NaN and infinities are rejected.
func toFloat(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int32:
		f = float64(n)
	case int64:
		f = float64(n)
	case uint:
		f = float64(n)
	case uint64:
		f = float64(n)
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
