package form

import (
	"math"

	"github.com/finlay-adaptyvbio/adaptyv-lab-ui/pkg/protocol"
)

// ControlKind is the widget category assigned to a field.
type ControlKind string

const (
	ControlText   ControlKind = "text"
	ControlSelect ControlKind = "select"
	ControlRange  ControlKind = "range"
	ControlNumber ControlKind = "number"
	ControlToggle ControlKind = "toggle"
	ControlList   ControlKind = "list"
)

// Toggle labels shown next to a boolean control.
const (
	LabelEnabled  = "Enabled"
	LabelDisabled = "Disabled"
)

// Control describes how a field is edited.
//
// For ControlRange, Min and Max are inclusive display bounds; exclusive
// schema bounds only affect validation. For ControlNumber they are soft
// bounds and either may be nil.
type Control struct {
	Kind    ControlKind
	Options []string
	Min     *float64
	Max     *float64
	Step    float64
}

// RangeStep returns the slider step for the given inclusive bounds.
func RangeStep(lo, hi float64) float64 {
	if hi-lo > 100 {
		return 5
	}
	return 1
}

// ToggleLabel returns the label reflecting a boolean control's value.
func ToggleLabel(on bool) string {
	if on {
		return LabelEnabled
	}
	return LabelDisabled
}

// Position returns the slider position for v: v itself when numeric and
// within bounds, else the nearest bound, else the minimum.
func (c Control) Position(v any) float64 {
	f, ok := toFloat(v)
	if !ok {
		if c.Min != nil {
			return *c.Min
		}
		return 0
	}
	return c.clamp(f)
}

// Nudge moves v by steps increments of Step, clamped to the bounds.
func (c Control) Nudge(v any, steps int) float64 {
	step := c.Step
	if step == 0 {
		step = 1
	}
	return c.clamp(c.Position(v) + float64(steps)*step)
}

func (c Control) clamp(f float64) float64 {
	if c.Min != nil {
		f = math.Max(f, *c.Min)
	}
	if c.Max != nil {
		f = math.Min(f, *c.Max)
	}
	return f
}

// bounds returns the usable inclusive bounds of p. Contradictory bounds
// (minimum > maximum) are dropped together.
func bounds(p protocol.ParameterSchema) (lo, hi *float64) {
	lo, hi = p.Minimum, p.Maximum
	if lo != nil && hi != nil && *lo > *hi {
		return nil, nil
	}
	return lo, hi
}

// exclusiveBounds applies the same degradation to exclusive bounds.
func exclusiveBounds(p protocol.ParameterSchema) (lo, hi *float64) {
	lo, hi = p.ExclusiveMinimum, p.ExclusiveMaximum
	if lo != nil && hi != nil && *lo >= *hi {
		return nil, nil
	}
	return lo, hi
}

type controlBuilder func(p protocol.ParameterSchema, k Kind) Control

var controlBuilders = [...]controlBuilder{
	KindUnknown:     textControl,
	KindString:      textControl,
	KindEnum:        selectControl,
	KindNumber:      numericControl,
	KindInteger:     numericControl,
	KindBoolean:     toggleControl,
	KindStringArray: listControl,
	KindArray:       listControl,
}

func buildControl(p protocol.ParameterSchema, k Kind) Control {
	return controlBuilders[k](p, k)
}

func textControl(protocol.ParameterSchema, Kind) Control {
	return Control{Kind: ControlText}
}

func selectControl(p protocol.ParameterSchema, _ Kind) Control {
	return Control{Kind: ControlSelect, Options: append([]string(nil), p.Enum...)}
}

func numericControl(p protocol.ParameterSchema, k Kind) Control {
	lo, hi := bounds(p)
	if lo != nil && hi != nil {
		return Control{Kind: ControlRange, Min: lo, Max: hi, Step: RangeStep(*lo, *hi)}
	}
	step := 1.0
	if k == KindNumber {
		step = 0.1
	}
	return Control{Kind: ControlNumber, Min: lo, Max: hi, Step: step}
}

func toggleControl(protocol.ParameterSchema, Kind) Control {
	return Control{Kind: ControlToggle}
}

func listControl(protocol.ParameterSchema, Kind) Control {
	return Control{Kind: ControlList}
}
