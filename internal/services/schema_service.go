package services

import (
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/attrkit/eavdb/internal/models"
	"github.com/attrkit/eavdb/internal/types"
)

// ChoiceInput represents input for one multi-choice option
type ChoiceInput struct {
	Title string `json:"title"`
}

// SchemaInput represents input for schema create/update operations
type SchemaInput struct {
	EntityKind string                      `json:"entityKind"`
	Title      string                      `json:"title"`
	HelpText   string                      `json:"helpText,omitempty"`
	Datatype   models.DataType             `json:"datatype"`
	Required   bool                        `json:"required"`
	Searched   bool                        `json:"searched"`
	Filtered   bool                        `json:"filtered"`
	Sortable   bool                        `json:"sortable"`
	Choices    types.FlexList[ChoiceInput] `json:"choices,omitempty"`
}

// GetSchemata retrieves attribute schemas, optionally filtered by entity kind
func GetSchemata(db *gorm.DB, entityKind string) ([]models.Schema, error) {
	var schemata []models.Schema
	query := db.Session(&gorm.Session{Logger: db.Logger.LogMode(logger.Silent)}).
		Preload("Choices", func(db *gorm.DB) *gorm.DB {
			return db.Order("name, title")
		}).
		Order("title, name")

	if entityKind != "" {
		query = query.Where("entity_kind = ?", entityKind)
	}

	if err := query.Find(&schemata).Error; err != nil {
		return nil, err
	}
	return schemata, nil
}

// GetSchema retrieves one attribute schema with its choices
func GetSchema(db *gorm.DB, schemaID uint64) (*models.Schema, error) {
	var schema models.Schema
	err := db.Session(&gorm.Session{Logger: db.Logger.LogMode(logger.Silent)}).
		Preload("Choices").
		First(&schema, schemaID).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("not found")
		}
		return nil, err
	}
	return &schema, nil
}

// CreateSchema creates an attribute schema and its choices in one transaction
func CreateSchema(db *gorm.DB, input SchemaInput) (*models.Schema, error) {
	if input.EntityKind == "" || input.Title == "" {
		return nil, fmt.Errorf("entityKind and title are required")
	}
	if !input.Datatype.Valid() {
		return nil, fmt.Errorf("invalid datatype %q", input.Datatype)
	}
	if input.Datatype == models.TypeMany && len(input.Choices) == 0 {
		return nil, fmt.Errorf("multi-choice schema requires at least one choice")
	}
	if input.Datatype != models.TypeMany && len(input.Choices) > 0 {
		return nil, fmt.Errorf("choices are only valid for %q schemas", models.TypeMany)
	}

	schema := models.Schema{
		EntityKind: input.EntityKind,
		Title:      input.Title,
		HelpText:   input.HelpText,
		Datatype:   input.Datatype,
		Required:   input.Required,
		Searched:   input.Searched,
		Filtered:   input.Filtered,
		Sortable:   input.Sortable,
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&schema).Error; err != nil {
			return err
		}
		for _, choice := range input.Choices.Slice() {
			c := models.Choice{SchemaID: schema.SchemaID, Title: choice.Title}
			if err := tx.Create(&c).Error; err != nil {
				return err
			}
			schema.Choices = append(schema.Choices, c)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &schema, nil
}

// UpdateSchema updates schema metadata. The generated name and the
// datatype are frozen once any attribute row references the schema,
// since stored values are keyed and typed by them.
func UpdateSchema(db *gorm.DB, schemaID uint64, input SchemaInput) (*models.Schema, error) {
	var schema models.Schema

	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&schema, schemaID).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return fmt.Errorf("not found")
			}
			return err
		}

		referenced, err := schemaReferenced(tx, schemaID)
		if err != nil {
			return err
		}

		if input.Datatype != "" && input.Datatype != schema.Datatype {
			if referenced {
				return fmt.Errorf("in use")
			}
			if !input.Datatype.Valid() {
				return fmt.Errorf("invalid datatype %q", input.Datatype)
			}
			schema.Datatype = input.Datatype
		}
		if input.Title != "" && input.Title != schema.Title {
			newName := models.SlugifyName(input.Title)
			if newName != schema.Name {
				if referenced {
					return fmt.Errorf("in use")
				}
				schema.Name = newName
			}
			schema.Title = input.Title
		}
		schema.HelpText = input.HelpText
		schema.Required = input.Required
		schema.Searched = input.Searched
		schema.Filtered = input.Filtered
		schema.Sortable = input.Sortable

		return tx.Save(&schema).Error
	})
	if err != nil {
		return nil, err
	}
	return &schema, nil
}

// DeleteSchema removes a schema and its choices. Deletion is refused
// while any attribute row references the schema.
func DeleteSchema(db *gorm.DB, schemaID uint64) error {
	return db.Transaction(func(tx *gorm.DB) error {
		var schema models.Schema
		if err := tx.First(&schema, schemaID).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return fmt.Errorf("not found")
			}
			return err
		}

		referenced, err := schemaReferenced(tx, schemaID)
		if err != nil {
			return err
		}
		if referenced {
			return fmt.Errorf("in use")
		}

		if err := tx.Where("schema_id = ?", schemaID).Delete(&models.Choice{}).Error; err != nil {
			return err
		}
		return tx.Delete(&schema).Error
	})
}

// AddChoice appends one option to a multi-choice schema
func AddChoice(db *gorm.DB, schemaID uint64, input ChoiceInput) (*models.Choice, error) {
	var schema models.Schema
	if err := db.First(&schema, schemaID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("not found")
		}
		return nil, err
	}
	if schema.Datatype != models.TypeMany {
		return nil, fmt.Errorf("choices are only valid for %q schemas", models.TypeMany)
	}

	choice := models.Choice{SchemaID: schemaID, Title: input.Title}
	if err := db.Create(&choice).Error; err != nil {
		return nil, err
	}
	return &choice, nil
}

// DeleteChoice removes one option. Deletion is refused while any
// attribute row still selects the choice.
func DeleteChoice(db *gorm.DB, choiceID uint64) error {
	return db.Transaction(func(tx *gorm.DB) error {
		var choice models.Choice
		if err := tx.First(&choice, choiceID).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return fmt.Errorf("not found")
			}
			return err
		}

		var count int64
		if err := tx.Model(&models.Attribute{}).
			Where("choice_id = ?", choiceID).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return fmt.Errorf("in use")
		}

		return tx.Delete(&choice).Error
	})
}

// schemaReferenced reports whether any attribute row uses the schema
func schemaReferenced(tx *gorm.DB, schemaID uint64) (bool, error) {
	var count int64
	err := tx.Model(&models.Attribute{}).
		Where("schema_id = ?", schemaID).
		Count(&count).Error
	return count > 0, err
}
