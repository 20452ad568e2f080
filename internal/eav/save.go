package eav

import (
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/attrkit/eavdb/internal/models"
)

// SaveAttr persists one attribute value for one entity. Multi-choice
// schemas replace their full selection set; everything else goes through
// the scalar path with write suppression. The caller supplies the
// transaction: the multi-choice delete-then-reinsert must not be split
// across transactions or concurrent readers could observe an empty
// selection window.
func SaveAttr(tx *gorm.DB, entity Entity, schema *models.Schema, value models.Value) error {
	if schema.Datatype == models.TypeMany {
		return saveManyAttr(tx, entity, schema, value)
	}
	return saveSingleAttr(tx, entity, schema, value, nil, false)
}

// saveSingleAttr creates or updates the attribute row keyed by the entity
// reference, the schema and an optional choice discriminator. Unchanged
// values on existing rows are skipped; createNulls forces the write even
// for empty values (the multi-choice path needs selected rows persisted
// regardless of value emptiness).
func saveSingleAttr(tx *gorm.DB, entity Entity, schema *models.Schema, value models.Value, choice *models.Choice, createNulls bool) error {
	ref := entity.EntityRef()

	query := tx.Where("entity_kind = ? AND entity_id = ? AND schema_id = ?", ref.Kind, ref.ID, schema.SchemaID)
	if choice != nil {
		query = query.Where("choice_id = ?", choice.ChoiceID)
	} else {
		query = query.Where("choice_id IS NULL")
	}

	var attr models.Attribute
	err := query.First(&attr).Error
	missing := errors.Is(err, gorm.ErrRecordNotFound)
	if err != nil && !missing {
		return err
	}
	if missing {
		attr = models.Attribute{
			EntityKind: ref.Kind,
			EntityID:   ref.ID,
			SchemaID:   schema.SchemaID,
		}
		if choice != nil {
			attr.ChoiceID = &choice.ChoiceID
		}
	}
	attr.Schema = schema
	attr.Choice = choice

	if !createNulls && value.Equal(attr.Value()) {
		// unchanged existing row, or nothing stored and nothing to store
		return nil
	}
	if err := attr.SetValue(value); err != nil {
		return err
	}
	// Schema/Choice are attached for value routing only; the write must
	// not touch their rows
	return tx.Omit(clause.Associations).Save(&attr).Error
}

// saveManyAttr atomically replaces the selection set for (entity, schema):
// drop every row for the pair, then re-create one row per intended choice.
// Simple over incremental; the rows after save are exactly the intended
// selections, with no stale leftovers possible.
func saveManyAttr(tx *gorm.DB, entity Entity, schema *models.Schema, value models.Value) error {
	ref := entity.EntityRef()

	if err := tx.Where("entity_kind = ? AND entity_id = ? AND schema_id = ?",
		ref.Kind, ref.ID, schema.SchemaID).Delete(&models.Attribute{}).Error; err != nil {
		return err
	}

	names := value.ChoiceNames()
	if len(names) == 0 {
		return nil
	}

	var choices []models.Choice
	if err := tx.Where("schema_id = ?", schema.SchemaID).Order("name").Find(&choices).Error; err != nil {
		return err
	}
	byName := make(map[string]*models.Choice, len(choices))
	available := make([]string, 0, len(choices))
	for i := range choices {
		byName[choices[i].Name] = &choices[i]
		available = append(available, choices[i].Name)
	}

	for _, name := range names {
		choice, ok := byName[name]
		if !ok {
			return &UnknownChoiceError{Schema: schema.Name, Got: name, Available: available}
		}
		if err := saveSingleAttr(tx, entity, schema, models.ChoiceValue(name), choice, true); err != nil {
			return err
		}
	}
	return nil
}
