package prompt

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/finlay-adaptyvbio/adaptyv-lab-ui/pkg/form"
)

// Unset is the extra choice offered by optional select prompts.
const Unset = "(unset)"

// Filler asks for every field of a plan in order.
type Filler struct {
	driver Driver
}

// NewFiller returns a Filler using d. A nil driver prompts on the terminal.
func NewFiller(d Driver) *Filler {
	if d == nil {
		d = NewSurveyDriver()
	}
	return &Filler{driver: d}
}

// Fill prompts for each field, offering the current value (or the schema
// default) as the answer to accept. The returned values are a new mapping;
// an empty answer for an optional field leaves it unset.
func (f *Filler) Fill(ctx context.Context, plan *form.Plan, values form.Values) (form.Values, error) {
	out := values.Clone()
	for _, field := range plan.Fields {
		current, ok := out[field.Name]
		if !ok && field.HasDefault {
			current = field.Default
		}
		v, err := f.ask(ctx, field, current)
		if err != nil {
			return nil, err
		}
		if v == nil {
			delete(out, field.Name)
			continue
		}
		out[field.Name] = v
	}
	return out, nil
}

func (f *Filler) ask(ctx context.Context, field form.Field, current any) (any, error) {
	switch field.Control.Kind {
	case form.ControlToggle:
		return f.askToggle(ctx, field, current)
	case form.ControlSelect:
		return f.askSelect(ctx, field, current)
	default:
		return f.askInput(ctx, field, current)
	}
}

func (f *Filler) askToggle(ctx context.Context, field form.Field, current any) (any, error) {
	on, _ := current.(bool)
	return f.driver.Confirm(ctx, ConfirmConfig{
		Message: message(field),
		Default: on,
		Help:    help(field),
	})
}

func (f *Filler) askSelect(ctx context.Context, field form.Field, current any) (any, error) {
	options := slices.Clone(field.Control.Options)
	if !field.Required {
		options = append([]string{Unset}, options...)
	}
	def := slices.Index(options, form.FormatValue(current))
	if def < 0 {
		def = 0
	}
	i, err := f.driver.Select(ctx, SelectConfig{
		Message:      message(field),
		Options:      options,
		DefaultIndex: def,
		Help:         help(field),
	})
	if err != nil {
		return nil, err
	}
	if i < 0 || i >= len(options) || options[i] == Unset {
		return nil, nil
	}
	return options[i], nil
}

// askInput handles text, number, range and list controls. Answers are
// parsed and validated; invalid answers are reported and asked again.
func (f *Filler) askInput(ctx context.Context, field form.Field, current any) (any, error) {
	check := func(raw string) (any, error) {
		v, err := field.Parse(raw)
		if err != nil {
			return nil, err
		}
		if fe := field.Validate(v, v != nil); fe != nil {
			return nil, fe
		}
		return v, nil
	}
	def := form.FormatValue(current)
	for {
		raw, err := f.driver.Input(ctx, InputConfig{
			Message: message(field),
			Default: def,
			Help:    help(field),
			Validator: func(s string) error {
				_, err := check(s)
				return err
			},
		})
		if err != nil {
			return nil, err
		}
		v, err := check(raw)
		if err == nil {
			return v, nil
		}
		if err := f.driver.Info(ctx, fmt.Sprintf("Invalid %s: %v", field.Name, err)); err != nil {
			return nil, err
		}
	}
}

func message(field form.Field) string {
	if field.Required {
		return field.Label + " *"
	}
	return field.Label
}

// help describes the expected input: the description plus any bounds.
func help(field form.Field) string {
	var parts []string
	if field.Description != "" {
		parts = append(parts, field.Description)
	}
	c := field.Control
	switch {
	case c.Min != nil && c.Max != nil:
		parts = append(parts, fmt.Sprintf("between %s and %s", form.FormatValue(*c.Min), form.FormatValue(*c.Max)))
	case c.Min != nil:
		parts = append(parts, "at least "+form.FormatValue(*c.Min))
	case c.Max != nil:
		parts = append(parts, "at most "+form.FormatValue(*c.Max))
	}
	if c.Kind == form.ControlList {
		parts = append(parts, "comma-separated")
	}
	return strings.Join(parts, "; ")
}
