package models

import (
	"fmt"
	"time"
)

// Attribute is one stored value row for one (entity, schema[, choice])
// triple. Exactly one value slot is active per row, selected by the owning
// schema's datatype; all other slots stay null. The natural key
// (entity_kind, entity_id, schema_id, choice_id) is enforced by a unique
// index.
type Attribute struct {
	AttrID     uint64  `gorm:"primaryKey;autoIncrement" json:"id"`
	EntityKind string  `gorm:"size:64;not null;uniqueIndex:idx_attr_natural,priority:1;index:idx_attr_entity,priority:1" json:"entityKind"`
	EntityID   uint64  `gorm:"not null;uniqueIndex:idx_attr_natural,priority:2;index:idx_attr_entity,priority:2" json:"entityId"`
	SchemaID   uint64  `gorm:"not null;uniqueIndex:idx_attr_natural,priority:3" json:"schemaId"`
	ChoiceID   *uint64 `gorm:"uniqueIndex:idx_attr_natural,priority:4" json:"choiceId,omitempty"`

	// references is spelled out: the key field names also exist on the
	// related types, which would otherwise bind these as has-one against
	// attr_id instead of belongs-to
	Schema *Schema `gorm:"foreignKey:SchemaID;references:SchemaID" json:"schema,omitempty"`
	Choice *Choice `gorm:"foreignKey:ChoiceID;references:ChoiceID" json:"choice,omitempty"`

	ValueText     *string    `gorm:"type:text" json:"valueText,omitempty"`
	ValueInt      *int64     `json:"valueInt,omitempty"`
	ValueDate     *time.Time `json:"valueDate,omitempty"`
	ValueBool     *bool      `json:"valueBool,omitempty"`
	ValueRangeMin *float64   `json:"valueRangeMin,omitempty"`
	ValueRangeMax *float64   `json:"valueRangeMax,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TableName overrides the table name for Attribute
func (Attribute) TableName() string {
	return "eav_attributes"
}

// EntityRef returns the tagged polymorphic reference this row points at.
func (a *Attribute) EntityRef() EntityRef {
	return EntityRef{Kind: a.EntityKind, ID: a.EntityID}
}

// Value resolves the logical value from the physical slot selected by the
// schema datatype. This is the single choke point between "logical value"
// and "storage slot"; the query translator's generated predicates rely on
// the same slot mapping.
func (a *Attribute) Value() Value {
	if a.Schema == nil {
		return Value{}
	}
	switch a.Schema.Datatype {
	case TypeText:
		if a.ValueText == nil {
			return NoValue(TypeText)
		}
		return TextValue(*a.ValueText)
	case TypeInt:
		if a.ValueInt == nil {
			return NoValue(TypeInt)
		}
		return IntValue(*a.ValueInt)
	case TypeDate:
		if a.ValueDate == nil {
			return NoValue(TypeDate)
		}
		return DateValue(*a.ValueDate)
	case TypeBool:
		if a.ValueBool == nil {
			return NoValue(TypeBool)
		}
		return BoolValue(*a.ValueBool)
	case TypeRange:
		if a.ValueRangeMin == nil && a.ValueRangeMax == nil {
			return NoValue(TypeRange)
		}
		return RangeValue(a.ValueRangeMin, a.ValueRangeMax)
	case TypeMany:
		if a.Choice == nil {
			return NoValue(TypeMany)
		}
		return ChoiceValue(a.Choice.Name)
	}
	return Value{}
}

// SetValue writes the logical value into the slot selected by the schema
// datatype, clearing the other slots. Multi-choice rows are keyed by
// ChoiceID instead and reject value writes here.
func (a *Attribute) SetValue(v Value) error {
	if a.Schema == nil {
		return fmt.Errorf("attribute row has no schema to route the value by")
	}
	a.ValueText = nil
	a.ValueInt = nil
	a.ValueDate = nil
	a.ValueBool = nil
	a.ValueRangeMin = nil
	a.ValueRangeMax = nil
	if !v.Present {
		return nil
	}
	switch a.Schema.Datatype {
	case TypeText:
		text := v.Text
		a.ValueText = &text
	case TypeInt:
		n := v.Int
		a.ValueInt = &n
	case TypeDate:
		d := v.Date
		a.ValueDate = &d
	case TypeBool:
		b := v.Bool
		a.ValueBool = &b
	case TypeRange:
		a.ValueRangeMin = v.RangeMin
		a.ValueRangeMax = v.RangeMax
	case TypeMany:
		// selection is expressed by the row's choice reference
	default:
		return fmt.Errorf("unsupported schema datatype: %q", a.Schema.Datatype)
	}
	return nil
}

// SlotColumn maps a datatype to its physical value column. Exhaustive by
// construction so a renamed column cannot silently diverge between the
// write path and generated query predicates.
func SlotColumn(t DataType) (string, error) {
	switch t {
	case TypeText:
		return "value_text", nil
	case TypeInt:
		return "value_int", nil
	case TypeDate:
		return "value_date", nil
	case TypeBool:
		return "value_bool", nil
	case TypeRange:
		return "", fmt.Errorf("range datatype spans value_range_min/value_range_max, not a single slot")
	case TypeMany:
		return "", fmt.Errorf("multi-choice datatype stores selections as choice references, not a value slot")
	}
	return "", fmt.Errorf("unsupported schema datatype: %q", t)
}
