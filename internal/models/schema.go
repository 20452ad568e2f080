package models

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"gorm.io/gorm"
)

// DataType selects the physical storage slot an attribute value lives in.
type DataType string

const (
	TypeText  DataType = "text"
	TypeInt   DataType = "int"
	TypeDate  DataType = "date"
	TypeBool  DataType = "bool"
	TypeRange DataType = "range"
	TypeMany  DataType = "many"
)

// DataTypes lists every supported datatype in declaration order.
var DataTypes = []DataType{TypeText, TypeInt, TypeDate, TypeBool, TypeRange, TypeMany}

// Valid reports whether d is one of the supported datatypes.
func (d DataType) Valid() bool {
	switch d {
	case TypeText, TypeInt, TypeDate, TypeBool, TypeRange, TypeMany:
		return true
	}
	return false
}

// Schema is the metadata record for one dynamic attribute: its stable name,
// datatype and admin flags. Name is the lookup key used by the accessor and
// the query translator; it is derived from Title when left blank and must
// stay stable once Attribute rows reference the schema.
type Schema struct {
	SchemaID   uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	EntityKind string    `gorm:"size:64;not null;index:idx_schema_kind_name,unique" json:"entityKind"`
	Name       string    `gorm:"size:100;index:idx_schema_kind_name,unique" json:"name"`
	Title      string    `gorm:"size:100;not null" json:"title"`
	HelpText   string    `gorm:"size:250" json:"helpText,omitempty"`
	Datatype   DataType  `gorm:"size:8;not null" json:"datatype"`
	Required   bool      `json:"required"`
	Searched   bool      `json:"searched"`
	Filtered   bool      `json:"filtered"`
	Sortable   bool      `json:"sortable"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
	Choices    []Choice  `gorm:"foreignKey:SchemaID" json:"choices,omitempty"`
}

// TableName overrides the table name for Schema
func (Schema) TableName() string {
	return "eav_schemas"
}

// BeforeSave derives the slug name from the title when absent and rejects
// unknown datatypes before they reach storage.
func (s *Schema) BeforeSave(tx *gorm.DB) error {
	if s.Name == "" {
		s.Name = SlugifyName(s.Title)
	}
	if s.Name == "" {
		return fmt.Errorf("schema requires a name or a title to derive one from")
	}
	if !s.Datatype.Valid() {
		return fmt.Errorf("unsupported schema datatype: %q", s.Datatype)
	}
	return nil
}

// Choice is one selectable option of a multi-choice schema. Name is the
// stable slug used in lookups and stored selections; Title is what the
// user sees.
type Choice struct {
	ChoiceID  uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	SchemaID  uint64    `gorm:"not null;index:idx_choice_schema_name,unique" json:"schemaId"`
	Name      string    `gorm:"size:100;index:idx_choice_schema_name,unique" json:"name"`
	Title     string    `gorm:"size:100;not null" json:"title"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TableName overrides the table name for Choice
func (Choice) TableName() string {
	return "eav_choices"
}

// BeforeSave derives the slug name from the title when absent.
func (c *Choice) BeforeSave(tx *gorm.DB) error {
	if c.Name == "" {
		c.Name = SlugifyName(c.Title)
	}
	if c.Name == "" {
		return fmt.Errorf("choice requires a name or a title to derive one from")
	}
	return nil
}

// ChoicePair is one (name, title) entry from Schema.GetChoices.
type ChoicePair struct {
	Name  string `json:"name"`
	Title string `json:"title"`
}

// GetChoices returns the ordered (name, title) pairs available for a
// multi-choice schema. Names are lookup keys, titles are display values.
func (s *Schema) GetChoices(db *gorm.DB) ([]ChoicePair, error) {
	var choices []Choice
	if err := db.Where("schema_id = ?", s.SchemaID).Order("name").Find(&choices).Error; err != nil {
		return nil, err
	}
	pairs := make([]ChoicePair, 0, len(choices))
	for _, c := range choices {
		pairs = append(pairs, ChoicePair{Name: c.Name, Title: c.Title})
	}
	return pairs, nil
}

// GetAttrs fetches all attribute rows stored for this schema and entity.
func (s *Schema) GetAttrs(db *gorm.DB, ref EntityRef) ([]Attribute, error) {
	var attrs []Attribute
	err := db.Preload("Choice").
		Where("entity_kind = ? AND entity_id = ? AND schema_id = ?", ref.Kind, ref.ID, s.SchemaID).
		Order("attr_id").
		Find(&attrs).Error
	if err != nil {
		return nil, err
	}
	for i := range attrs {
		attrs[i].Schema = s
	}
	return attrs, nil
}

// SlugifyName turns an arbitrary title into an identifier-safe slug:
// lower-cased, with every run of non-alphanumeric characters collapsed
// into a single underscore ("I can haz it" -> "i_can_haz_it").
func SlugifyName(title string) string {
	var b strings.Builder
	lastUnderscore := true // suppress leading underscores
	for _, r := range strings.ToLower(title) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			lastUnderscore = false
		} else if !lastUnderscore {
			b.WriteRune('_')
			lastUnderscore = true
		}
	}
	return strings.TrimRight(b.String(), "_")
}
