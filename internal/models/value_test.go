package models

import (
	"testing"
	"time"
)

func TestValueIsZero(t *testing.T) {
	cases := []struct {
		name  string
		value Value
		want  bool
	}{
		{"absent", NoValue(TypeText), true},
		{"empty text", TextValue(""), true},
		{"text", TextValue("hi"), false},
		{"zero int", IntValue(0), true},
		{"int", IntValue(-3), false},
		{"false bool", BoolValue(false), true},
		{"true bool", BoolValue(true), false},
		{"zero date", DateValue(time.Time{}), true},
		{"date", DateValue(time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)), false},
		{"open range", RangeValue(nil, nil), true},
		{"bounded range", RangeValue(f(2), nil), false},
		{"no choices", ChoiceValue(), true},
		{"choices", ChoiceValue("red"), false},
	}

	for _, tc := range cases {
		if got := tc.value.IsZero(); got != tc.want {
			t.Errorf("%s: IsZero() = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestValueEqual(t *testing.T) {
	if !TextValue("a").Equal(TextValue("a")) {
		t.Error("Expected equal text values")
	}
	if TextValue("a").Equal(TextValue("b")) {
		t.Error("Expected unequal text values")
	}
	if TextValue("a").Equal(IntValue(1)) {
		t.Error("Expected cross-type values to be unequal")
	}

	// empty and absent are indistinguishable in storage
	if !TextValue("").Equal(NoValue(TypeText)) {
		t.Error("Expected empty text to equal absence")
	}

	if !RangeValue(f(1), f(5)).Equal(RangeValue(f(1), f(5))) {
		t.Error("Expected equal ranges")
	}
	if RangeValue(f(1), nil).Equal(RangeValue(f(1), f(5))) {
		t.Error("Expected open range to differ from bounded")
	}
}

func TestValueChoiceNames(t *testing.T) {
	names := ChoiceValue("red", "green").ChoiceNames()
	if len(names) != 2 || names[0] != "red" || names[1] != "green" {
		t.Errorf("Expected [red green], got %v", names)
	}

	// a scalar selection wraps into a single-element sequence
	names = TextValue("blue").ChoiceNames()
	if len(names) != 1 || names[0] != "blue" {
		t.Errorf("Expected [blue], got %v", names)
	}

	if names := NoValue(TypeText).ChoiceNames(); names != nil {
		t.Errorf("Expected nil for absent value, got %v", names)
	}
}

func TestCoerceValue(t *testing.T) {
	v, err := CoerceValue(TypeDate, "2024-05-01")
	if err != nil {
		t.Fatalf("Unexpected date error: %v", err)
	}
	if v.Date.Year() != 2024 || v.Date.Month() != time.May {
		t.Errorf("Unexpected date: %v", v.Date)
	}

	if _, err := CoerceValue(TypeDate, "05/01/2024"); err == nil {
		t.Error("Expected error for wrong date layout")
	}

	v, err = CoerceValue(TypeRange, []interface{}{float64(2), nil})
	if err != nil {
		t.Fatalf("Unexpected range error: %v", err)
	}
	if v.RangeMin == nil || *v.RangeMin != 2 || v.RangeMax != nil {
		t.Errorf("Unexpected range bounds: %v %v", v.RangeMin, v.RangeMax)
	}

	if _, err := CoerceValue(TypeRange, []interface{}{float64(2)}); err == nil {
		t.Error("Expected error for one-element range")
	}

	v, err = CoerceValue(TypeMany, "red")
	if err != nil {
		t.Fatalf("Unexpected many error: %v", err)
	}
	if len(v.Choices) != 1 || v.Choices[0] != "red" {
		t.Errorf("Expected single wrapped choice, got %v", v.Choices)
	}

	v, err = CoerceValue(TypeInt, float64(42))
	if err != nil {
		t.Fatalf("Unexpected int error: %v", err)
	}
	if v.Int != 42 {
		t.Errorf("Expected 42, got %d", v.Int)
	}

	if _, err := CoerceValue(TypeInt, float64(4.5)); err == nil {
		t.Error("Expected error for fractional int")
	}

	v, err = CoerceValue(TypeBool, nil)
	if err != nil {
		t.Fatalf("Unexpected nil error: %v", err)
	}
	if v.Present {
		t.Error("Expected absence marker for nil")
	}
}

func f(v float64) *float64 {
	return &v
}
