package models

import (
	"time"

	"gorm.io/gorm"
)

// Entity kind tags used in attribute rows and the loader registry.
const (
	KindItem   = "item"
	KindRubric = "rubric"
)

// Rubric is a catalog category. It is entity-capable: rubric-kind schemas
// attach dynamic attributes to it, and item lookups can recurse into them
// through the rubric relation.
type Rubric struct {
	RubricID  uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	Title     string    `gorm:"size:100;not null" json:"title"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TableName overrides the table name for Rubric
func (Rubric) TableName() string {
	return "rubrics"
}

// EntityRef returns the tagged reference for attribute rows.
func (r *Rubric) EntityRef() EntityRef {
	return EntityRef{Kind: KindRubric, ID: r.RubricID}
}

// SchemataForModel returns the schemas applicable to every rubric.
func (r *Rubric) SchemataForModel(db *gorm.DB) ([]Schema, error) {
	return SchemataForKind(db, KindRubric)
}

// SchemataForInstance narrows the model schemata per instance; rubrics
// use them all.
func (r *Rubric) SchemataForInstance(schemata []Schema) []Schema {
	return schemata
}

// CheckEAVAllowed reports whether attributes may attach to this rubric.
func (r *Rubric) CheckEAVAllowed() bool {
	return true
}

// Item is a catalog record: a fixed title/price core plus an open-ended
// set of dynamic attributes. AttrDigest caches the current non-empty
// attribute map as JSON for cheap read-side rendering; it is refreshed on
// every attribute save.
type Item struct {
	ItemID     uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	Title      string    `gorm:"size:100;not null" json:"title"`
	Price      float64   `json:"price"`
	RubricID   *uint64   `json:"rubricId,omitempty"`
	Rubric     *Rubric   `gorm:"foreignKey:RubricID;references:RubricID" json:"rubric,omitempty"`
	AttrDigest JSON      `gorm:"type:json" json:"attrDigest,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// TableName overrides the table name for Item
func (Item) TableName() string {
	return "items"
}

// EntityRef returns the tagged reference for attribute rows.
func (i *Item) EntityRef() EntityRef {
	return EntityRef{Kind: KindItem, ID: i.ItemID}
}

// SchemataForModel returns the schemas applicable to every item.
func (i *Item) SchemataForModel(db *gorm.DB) ([]Schema, error) {
	return SchemataForKind(db, KindItem)
}

// SchemataForInstance narrows the model schemata per instance; items use
// them all.
func (i *Item) SchemataForInstance(schemata []Schema) []Schema {
	return schemata
}

// CheckEAVAllowed reports whether attributes may attach to this item.
func (i *Item) CheckEAVAllowed() bool {
	return true
}

// SchemataForKind loads the schema set owned by one entity kind in the
// deterministic (title, name) order the save path iterates in.
func SchemataForKind(db *gorm.DB, kind string) ([]Schema, error) {
	var schemata []Schema
	err := db.Preload("Choices").
		Where("entity_kind = ?", kind).
		Order("title, name").
		Find(&schemata).Error
	return schemata, err
}

func init() {
	RegisterKind(KindItem, func(db *gorm.DB, id uint64) (interface{}, error) {
		var item Item
		if err := db.Preload("Rubric").First(&item, id).Error; err != nil {
			return nil, err
		}
		return &item, nil
	})
	RegisterKind(KindRubric, func(db *gorm.DB, id uint64) (interface{}, error) {
		var rubric Rubric
		if err := db.First(&rubric, id).Error; err != nil {
			return nil, err
		}
		return &rubric, nil
	})
}
