package models

import (
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// DateLayout is the wire format for date values.
const DateLayout = "2006-01-02"

// Value is the tagged logical value of one dynamic attribute. Exactly the
// slot matching Type carries meaning; Present distinguishes a stored zero
// from an absent value.
type Value struct {
	Type     DataType
	Text     string
	Int      int64
	Date     time.Time
	Bool     bool
	RangeMin *float64
	RangeMax *float64
	Choices  []string
	Present  bool
}

// NoValue is the absence marker for a schema of the given datatype.
func NoValue(t DataType) Value {
	return Value{Type: t}
}

// TextValue wraps a text attribute value.
func TextValue(s string) Value {
	return Value{Type: TypeText, Text: s, Present: true}
}

// IntValue wraps an integer attribute value.
func IntValue(n int64) Value {
	return Value{Type: TypeInt, Int: n, Present: true}
}

// DateValue wraps a date attribute value.
func DateValue(t time.Time) Value {
	return Value{Type: TypeDate, Date: t, Present: true}
}

// BoolValue wraps a boolean attribute value.
func BoolValue(b bool) Value {
	return Value{Type: TypeBool, Bool: b, Present: true}
}

// RangeValue wraps a numeric range; either bound may be nil (open end).
func RangeValue(min, max *float64) Value {
	return Value{Type: TypeRange, RangeMin: min, RangeMax: max, Present: true}
}

// ChoiceValue wraps a multi-choice selection by choice names.
func ChoiceValue(names ...string) Value {
	return Value{Type: TypeMany, Choices: names, Present: true}
}

// IsZero reports whether the value is absent or empty in the falsy sense
// used by iteration and write suppression: empty text, zero int, zero
// time, false, unbounded range, no selections.
func (v Value) IsZero() bool {
	if !v.Present {
		return true
	}
	switch v.Type {
	case TypeText:
		return v.Text == ""
	case TypeInt:
		return v.Int == 0
	case TypeDate:
		return v.Date.IsZero()
	case TypeBool:
		return !v.Bool
	case TypeRange:
		return v.RangeMin == nil && v.RangeMax == nil
	case TypeMany:
		return len(v.Choices) == 0
	}
	return true
}

// Equal reports whether two values are indistinguishable in storage.
func (v Value) Equal(o Value) bool {
	if v.Type != o.Type {
		return false
	}
	if v.IsZero() || o.IsZero() {
		return v.IsZero() == o.IsZero()
	}
	switch v.Type {
	case TypeText:
		return v.Text == o.Text
	case TypeInt:
		return v.Int == o.Int
	case TypeDate:
		return v.Date.Equal(o.Date)
	case TypeBool:
		return v.Bool == o.Bool
	case TypeRange:
		return floatPtrEqual(v.RangeMin, o.RangeMin) && floatPtrEqual(v.RangeMax, o.RangeMax)
	case TypeMany:
		if len(v.Choices) != len(o.Choices) {
			return false
		}
		for i := range v.Choices {
			if v.Choices[i] != o.Choices[i] {
				return false
			}
		}
		return true
	}
	return false
}

// ChoiceNames normalizes the value into a selection sequence: a many value
// yields its choices, any other non-empty value is wrapped into a single
// selection by its text rendering.
func (v Value) ChoiceNames() []string {
	if v.Type == TypeMany {
		return v.Choices
	}
	if v.IsZero() {
		return nil
	}
	return []string{fmt.Sprintf("%v", v.Interface())}
}

// Interface converts the value to its plain JSON-facing representation.
func (v Value) Interface() interface{} {
	if !v.Present {
		return nil
	}
	switch v.Type {
	case TypeText:
		return v.Text
	case TypeInt:
		return v.Int
	case TypeDate:
		return v.Date.Format(DateLayout)
	case TypeBool:
		return v.Bool
	case TypeRange:
		return []interface{}{floatPtrValue(v.RangeMin), floatPtrValue(v.RangeMax)}
	case TypeMany:
		return v.Choices
	}
	return nil
}

// CoerceValue converts a decoded JSON value into a typed Value for the
// given datatype. nil yields the absence marker.
func CoerceValue(t DataType, raw interface{}) (Value, error) {
	if raw == nil {
		return NoValue(t), nil
	}
	switch t {
	case TypeText:
		s, ok := raw.(string)
		if !ok {
			return Value{}, fmt.Errorf("text attribute expects a string, got %T", raw)
		}
		return TextValue(s), nil
	case TypeInt:
		n, err := coerceInt(raw)
		if err != nil {
			return Value{}, err
		}
		return IntValue(n), nil
	case TypeDate:
		s, ok := raw.(string)
		if !ok {
			return Value{}, fmt.Errorf("date attribute expects a %q string, got %T", DateLayout, raw)
		}
		d, err := time.Parse(DateLayout, s)
		if err != nil {
			return Value{}, fmt.Errorf("invalid date value %q: %w", s, err)
		}
		return DateValue(d), nil
	case TypeBool:
		b, ok := raw.(bool)
		if !ok {
			return Value{}, fmt.Errorf("boolean attribute expects true/false, got %T", raw)
		}
		return BoolValue(b), nil
	case TypeRange:
		pair, ok := raw.([]interface{})
		if !ok || len(pair) != 2 {
			return Value{}, fmt.Errorf("range attribute expects a two-element [min, max] array")
		}
		min, err := coerceFloatPtr(pair[0])
		if err != nil {
			return Value{}, err
		}
		max, err := coerceFloatPtr(pair[1])
		if err != nil {
			return Value{}, err
		}
		return RangeValue(min, max), nil
	case TypeMany:
		switch val := raw.(type) {
		case string:
			// scalar selection wraps into a single-element sequence
			return ChoiceValue(val), nil
		case []interface{}:
			names := make([]string, 0, len(val))
			for _, item := range val {
				s, ok := item.(string)
				if !ok {
					return Value{}, fmt.Errorf("multi-choice attribute expects choice names, got %T", item)
				}
				names = append(names, s)
			}
			return ChoiceValue(names...), nil
		case []string:
			return ChoiceValue(val...), nil
		default:
			return Value{}, fmt.Errorf("multi-choice attribute expects a name or list of names, got %T", raw)
		}
	}
	return Value{}, fmt.Errorf("unsupported schema datatype: %q", t)
}

func coerceInt(raw interface{}) (int64, error) {
	switch n := raw.(type) {
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case float64:
		if n != math.Trunc(n) {
			return 0, fmt.Errorf("integer attribute expects a whole number, got %v", n)
		}
		return int64(n), nil
	case json.Number:
		return n.Int64()
	default:
		return 0, fmt.Errorf("integer attribute expects a number, got %T", raw)
	}
}

// FloatBound converts one range bound into an optional float: nil means
// an open end.
func FloatBound(raw interface{}) (*float64, error) {
	return coerceFloatPtr(raw)
}

func coerceFloatPtr(raw interface{}) (*float64, error) {
	if raw == nil {
		return nil, nil
	}
	switch n := raw.(type) {
	case *float64:
		return n, nil
	case float64:
		return &n, nil
	case int:
		f := float64(n)
		return &f, nil
	case int64:
		f := float64(n)
		return &f, nil
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return nil, err
		}
		return &f, nil
	default:
		return nil, fmt.Errorf("range bound expects a number or null, got %T", raw)
	}
}

func floatPtrEqual(a, b *float64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func floatPtrValue(p *float64) interface{} {
	if p == nil {
		return nil
	}
	return *p
}
