package eav

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMustOverride signals a programming-contract violation: an entity kind
// was used without supplying its schema source. Fatal at first use, never
// retried.
var ErrMustOverride = errors.New("entity kinds must override SchemataForModel with a schema query for their kind")

// RangeOverlapLookup is the only sub-lookup supported by range schemas and
// the default when none is given.
const RangeOverlapLookup = "overlaps"

// UnknownAttributeError rejects a filter/exclude/create keyword that names
// neither a static field nor a schema. Surfaced, never silently dropped:
// swallowing a filter term would corrupt query semantics.
type UnknownAttributeError struct {
	Kind     string
	Names    []string
	Fields   []string
	Schemata []string
}

func (e *UnknownAttributeError) Error() string {
	return fmt.Sprintf("cannot resolve %q on %s: available fields: (%s); available schemata: (%s)",
		strings.Join(e.Names, `", "`), e.Kind,
		strings.Join(e.Fields, ", "), strings.Join(e.Schemata, ", "))
}

// AttributeNotFoundError mirrors "no such attribute" semantics for a read
// of a dynamic member matching no schema.
type AttributeNotFoundError struct {
	Kind string
	Name string
}

func (e *AttributeNotFoundError) Error() string {
	return fmt.Sprintf("%s does not have attribute named %q", e.Kind, e.Name)
}

// UnsupportedLookupError rejects a range lookup requesting an operator
// other than overlap.
type UnsupportedLookupError struct {
	Schema string
	Lookup string
}

func (e *UnsupportedLookupError) Error() string {
	return fmt.Sprintf("range schema %q only supports lookup %q, got %q", e.Schema, RangeOverlapLookup, e.Lookup)
}

// RangeTypeError rejects a range lookup value that is not a two-element
// structure at all.
type RangeTypeError struct {
	Value interface{}
}

func (e *RangeTypeError) Error() string {
	return fmt.Sprintf("range value must be a (min, max) pair, either possibly nil; got %T", e.Value)
}

// RangeShapeError rejects a range lookup value with the wrong arity.
type RangeShapeError struct {
	Len int
}

func (e *RangeShapeError) Error() string {
	return fmt.Sprintf("range value must hold exactly two elements (min, max), got %d", e.Len)
}

// UnknownChoiceError rejects a multi-choice selection outside the schema's
// available choices.
type UnknownChoiceError struct {
	Schema    string
	Got       string
	Available []string
}

func (e *UnknownChoiceError) Error() string {
	return fmt.Sprintf("cannot save %s: expected subset of [%s], got %q",
		e.Schema, strings.Join(e.Available, ", "), e.Got)
}
