package services

import (
	"encoding/json"
	"fmt"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/hints"

	"github.com/attrkit/eavdb/internal/eav"
	"github.com/attrkit/eavdb/internal/models"
	"github.com/attrkit/eavdb/internal/types"
)

// ItemResult represents the API output format for one catalog item:
// the static fields plus the flattened dynamic attribute map
type ItemResult map[string]interface{}

// ItemInput represents input for item create operations
type ItemInput struct {
	Title      string                 `json:"title"`
	Price      float64                `json:"price"`
	RubricID   *uint64                `json:"rubricId,omitempty"`
	Attributes map[string]interface{} `json:"attributes,omitempty"`
}

// QueryInput represents an attribute-aware item query: filter lookups
// are conjoined, exclude lookups are each negated independently
type QueryInput struct {
	Filter  eav.Lookups      `json:"filter,omitempty"`
	Exclude eav.Lookups      `json:"exclude,omitempty"`
	Limit   types.FlexUint64 `json:"limit,omitempty"`
}

// defaultQueryLimit caps unbounded item queries
const defaultQueryLimit = 100

// GetRubrics retrieves all rubrics ordered by title
func GetRubrics(db *gorm.DB) ([]models.Rubric, error) {
	var rubrics []models.Rubric
	err := db.Session(&gorm.Session{Logger: db.Logger.LogMode(logger.Silent)}).
		Order("title").
		Find(&rubrics).Error
	if err != nil {
		return nil, err
	}
	return rubrics, nil
}

// CreateRubric creates a catalog rubric
func CreateRubric(db *gorm.DB, title string) (*models.Rubric, error) {
	if title == "" {
		return nil, fmt.Errorf("title is required")
	}
	rubric := models.Rubric{Title: title}
	if err := db.Create(&rubric).Error; err != nil {
		return nil, err
	}
	return &rubric, nil
}

// GetItem retrieves one item with its rubric and dynamic attributes
func GetItem(db *gorm.DB, itemID uint64) (ItemResult, error) {
	var item models.Item
	err := db.Session(&gorm.Session{Logger: db.Logger.LogMode(logger.Silent)}).
		Preload("Rubric").
		First(&item, itemID).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("not found")
		}
		return nil, err
	}
	return reduceItem(db, &item)
}

// CreateItem builds an item from a mixed field/attribute keyword set.
// Unknown attribute names are refused before anything persists.
func CreateItem(db *gorm.DB, input ItemInput) (ItemResult, error) {
	if input.Title == "" {
		return nil, fmt.Errorf("title is required")
	}

	kwargs := map[string]interface{}{
		"title": input.Title,
		"price": input.Price,
	}
	if input.RubricID != nil {
		kwargs["rubric_id"] = *input.RubricID
	}
	for name, value := range input.Attributes {
		kwargs[name] = value
	}

	manager := eav.NewManager(db, &models.Item{})
	entity, err := manager.Create(kwargs)
	if err != nil {
		return nil, err
	}

	item := entity.(*models.Item)
	if err := refreshDigest(db, item); err != nil {
		return nil, err
	}
	return reduceItem(db, item)
}

// SetItemAttributes coerces and stages the given attribute values on an
// item, persists them in one transaction, and refreshes the digest.
// A multi-choice value replaces the whole selection.
func SetItemAttributes(db *gorm.DB, itemID uint64, attributes map[string]interface{}) (ItemResult, error) {
	var item models.Item
	if err := db.First(&item, itemID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("not found")
		}
		return nil, err
	}

	accessor := eav.NewAccessor(db, &item)
	for name, raw := range attributes {
		schema, err := accessor.Schema(name)
		if err != nil {
			return nil, err
		}
		value, err := models.CoerceValue(schema.Datatype, raw)
		if err != nil {
			return nil, err
		}
		accessor.Set(name, value)
	}

	if err := accessor.Save(); err != nil {
		return nil, err
	}
	if err := refreshDigest(db, &item); err != nil {
		return nil, err
	}
	return reduceItem(db, &item)
}

// QueryItems translates the filter and exclude lookups and returns the
// matching items with their attributes
func QueryItems(db *gorm.DB, input QueryInput) ([]ItemResult, error) {
	manager := eav.NewManager(db, &models.Item{})

	query := db.Session(&gorm.Session{Logger: db.Logger.LogMode(logger.Silent)}).
		Model(&models.Item{}).
		Clauses(hints.CommentBefore("select", "attribute filtered"))

	query, err := manager.ApplyFilter(query, input.Filter)
	if err != nil {
		return nil, err
	}
	query, err = manager.ApplyExclude(query, input.Exclude)
	if err != nil {
		return nil, err
	}

	limit := int(input.Limit.Uint64())
	if limit <= 0 {
		limit = defaultQueryLimit
	}

	var items []models.Item
	if err := query.Preload("Rubric").
		Order("items.item_id").
		Limit(limit).
		Find(&items).Error; err != nil {
		return nil, err
	}

	results := make([]ItemResult, 0, len(items))
	for i := range items {
		result, err := reduceItem(db, &items[i])
		if err != nil {
			return nil, err
		}
		results = append(results, result)
	}
	return results, nil
}

// reduceItem converts an item and its attribute rows to API output
func reduceItem(db *gorm.DB, item *models.Item) (ItemResult, error) {
	accessor := eav.NewAccessor(db, item)
	attributes, err := accessor.ValueMap()
	if err != nil {
		return nil, err
	}

	result := ItemResult{
		"id":         item.ItemID,
		"title":      item.Title,
		"price":      item.Price,
		"attributes": attributes,
	}
	if item.Rubric != nil {
		result["rubric"] = map[string]interface{}{
			"id":    item.Rubric.RubricID,
			"title": item.Rubric.Title,
		}
	} else if item.RubricID != nil {
		result["rubricId"] = *item.RubricID
	}
	return result, nil
}

// refreshDigest rewrites the item's cached attribute JSON from the
// current attribute rows
func refreshDigest(db *gorm.DB, item *models.Item) error {
	accessor := eav.NewAccessor(db, item)
	attributes, err := accessor.ValueMap()
	if err != nil {
		return err
	}
	digest, err := json.Marshal(attributes)
	if err != nil {
		return err
	}
	item.AttrDigest = models.JSON{JSON: datatypes.JSON(digest)}
	return db.Model(item).Update("attr_digest", item.AttrDigest).Error
}
