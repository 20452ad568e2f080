// data.go
//
// Test fixture builders for attribute schemas and catalog records.

package helpers

import (
	"testing"

	"gorm.io/gorm"

	"github.com/attrkit/eavdb/internal/models"
)

// CreateTestSchema creates an attribute schema for the given entity kind
func CreateTestSchema(t *testing.T, db *gorm.DB, kind, title string, datatype models.DataType) *models.Schema {
	t.Helper()
	schema := models.Schema{
		EntityKind: kind,
		Title:      title,
		Datatype:   datatype,
		Filtered:   true,
	}
	if err := db.Create(&schema).Error; err != nil {
		t.Fatalf("Failed to create schema %q: %v", title, err)
	}
	return &schema
}

// CreateTestChoiceSchema creates a multi-choice schema with the given options
func CreateTestChoiceSchema(t *testing.T, db *gorm.DB, kind, title string, choiceTitles ...string) *models.Schema {
	t.Helper()
	schema := CreateTestSchema(t, db, kind, title, models.TypeMany)
	for _, choiceTitle := range choiceTitles {
		choice := models.Choice{SchemaID: schema.SchemaID, Title: choiceTitle}
		if err := db.Create(&choice).Error; err != nil {
			t.Fatalf("Failed to create choice %q: %v", choiceTitle, err)
		}
		schema.Choices = append(schema.Choices, choice)
	}
	return schema
}

// CreateTestRubric creates a catalog rubric
func CreateTestRubric(t *testing.T, db *gorm.DB, title string) *models.Rubric {
	t.Helper()
	rubric := models.Rubric{Title: title}
	if err := db.Create(&rubric).Error; err != nil {
		t.Fatalf("Failed to create rubric %q: %v", title, err)
	}
	return &rubric
}

// CreateTestItem creates a catalog item, optionally attached to a rubric
func CreateTestItem(t *testing.T, db *gorm.DB, title string, price float64, rubric *models.Rubric) *models.Item {
	t.Helper()
	item := models.Item{Title: title, Price: price}
	if rubric != nil {
		item.RubricID = &rubric.RubricID
	}
	if err := db.Create(&item).Error; err != nil {
		t.Fatalf("Failed to create item %q: %v", title, err)
	}
	return &item
}
