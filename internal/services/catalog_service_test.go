package services

import (
	"encoding/json"
	"errors"
	"testing"

	"gorm.io/gorm"

	"github.com/attrkit/eavdb/internal/eav"
	"github.com/attrkit/eavdb/internal/models"
	"github.com/attrkit/eavdb/internal/types"
)

// setupCatalogDB seeds the usual item schemas alongside the bare database
func setupCatalogDB(t *testing.T) *gorm.DB {
	t.Helper()
	db := setupTestDB(t)
	for _, in := range []SchemaInput{
		{EntityKind: models.KindItem, Title: "Color", Datatype: models.TypeText, Filtered: true},
		{EntityKind: models.KindItem, Title: "Tags", Datatype: models.TypeMany, Filtered: true,
			Choices: types.FlexList[ChoiceInput]{{Title: "New"}, {Title: "Sale"}}},
	} {
		if _, err := CreateSchema(db, in); err != nil {
			t.Fatalf("Failed to create schema %q: %v", in.Title, err)
		}
	}
	return db
}

func TestCreateRubricAndList(t *testing.T) {
	db := setupTestDB(t)

	if _, err := CreateRubric(db, ""); err == nil {
		t.Errorf("Expected an error for a blank title")
	}
	if _, err := CreateRubric(db, "Mugs"); err != nil {
		t.Fatalf("Failed to create rubric: %v", err)
	}
	if _, err := CreateRubric(db, "Bags"); err != nil {
		t.Fatalf("Failed to create rubric: %v", err)
	}

	rubrics, err := GetRubrics(db)
	if err != nil {
		t.Fatalf("Failed to get rubrics: %v", err)
	}
	if len(rubrics) != 2 || rubrics[0].Title != "Bags" {
		t.Errorf("Expected [Bags Mugs], got %v", rubrics)
	}
}

func TestCreateItemWithAttributes(t *testing.T) {
	db := setupCatalogDB(t)
	rubric, err := CreateRubric(db, "Mugs")
	if err != nil {
		t.Fatalf("Failed to create rubric: %v", err)
	}

	result, err := CreateItem(db, ItemInput{
		Title:    "Red Mug",
		Price:    9.5,
		RubricID: &rubric.RubricID,
		Attributes: map[string]interface{}{
			"color": "red",
			"tags":  []interface{}{"new", "sale"},
		},
	})
	if err != nil {
		t.Fatalf("Failed to create item: %v", err)
	}
	if result["title"] != "Red Mug" || result["price"] != 9.5 {
		t.Errorf("Unexpected item result: %v", result)
	}

	attrs, ok := result["attributes"].(map[string]interface{})
	if !ok {
		t.Fatalf("Expected an attributes map, got %T", result["attributes"])
	}
	if attrs["color"] != "red" {
		t.Errorf("Expected color red, got %v", attrs["color"])
	}
	tags, _ := attrs["tags"].([]string)
	if len(tags) != 2 {
		t.Errorf("Expected two tags, got %v", attrs["tags"])
	}

	// digest caches the attribute map on the row itself
	var item models.Item
	if err := db.First(&item, result["id"]).Error; err != nil {
		t.Fatalf("Failed to reload item: %v", err)
	}
	var digest map[string]interface{}
	if err := json.Unmarshal([]byte(item.AttrDigest.JSON), &digest); err != nil {
		t.Fatalf("Failed to decode digest: %v", err)
	}
	if digest["color"] != "red" {
		t.Errorf("Expected digest color red, got %v", digest["color"])
	}
}

func TestCreateItemRejectsUnknownAttribute(t *testing.T) {
	db := setupCatalogDB(t)

	_, err := CreateItem(db, ItemInput{
		Title:      "Mug",
		Attributes: map[string]interface{}{"colour": "red"},
	})
	var unknown *eav.UnknownAttributeError
	if !errors.As(err, &unknown) {
		t.Fatalf("Expected UnknownAttributeError, got %v", err)
	}

	var n int64
	if err := db.Model(&models.Item{}).Count(&n).Error; err != nil {
		t.Fatalf("Failed to count items: %v", err)
	}
	if n != 0 {
		t.Errorf("Expected no persisted items, got %d", n)
	}
}

func TestGetItemNotFound(t *testing.T) {
	db := setupCatalogDB(t)
	if _, err := GetItem(db, 42); err == nil || err.Error() != "not found" {
		t.Errorf("Expected not found, got %v", err)
	}
}

func TestSetItemAttributesRefreshesDigest(t *testing.T) {
	db := setupCatalogDB(t)

	created, err := CreateItem(db, ItemInput{Title: "Mug", Price: 5})
	if err != nil {
		t.Fatalf("Failed to create item: %v", err)
	}
	itemID := created["id"].(uint64)

	result, err := SetItemAttributes(db, itemID, map[string]interface{}{
		"color": "blue",
		"tags":  []interface{}{"sale"},
	})
	if err != nil {
		t.Fatalf("Failed to set attributes: %v", err)
	}
	attrs := result["attributes"].(map[string]interface{})
	if attrs["color"] != "blue" {
		t.Errorf("Expected color blue, got %v", attrs["color"])
	}

	// a multi-choice value replaces the previous selection wholesale
	result, err = SetItemAttributes(db, itemID, map[string]interface{}{
		"tags": []interface{}{"new"},
	})
	if err != nil {
		t.Fatalf("Failed to replace tags: %v", err)
	}
	attrs = result["attributes"].(map[string]interface{})
	tags, _ := attrs["tags"].([]string)
	if len(tags) != 1 || tags[0] != "new" {
		t.Errorf("Expected [new], got %v", attrs["tags"])
	}

	var item models.Item
	if err := db.First(&item, itemID).Error; err != nil {
		t.Fatalf("Failed to reload item: %v", err)
	}
	var digest map[string]interface{}
	if err := json.Unmarshal([]byte(item.AttrDigest.JSON), &digest); err != nil {
		t.Fatalf("Failed to decode digest: %v", err)
	}
	if digest["color"] != "blue" {
		t.Errorf("Expected digest color blue, got %v", digest["color"])
	}

	if _, err := SetItemAttributes(db, itemID, map[string]interface{}{"colour": "red"}); err == nil {
		t.Errorf("Expected an error for an unknown attribute name")
	}
	if _, err := SetItemAttributes(db, 9999, nil); err == nil || err.Error() != "not found" {
		t.Errorf("Expected not found, got %v", err)
	}
}

func TestQueryItems(t *testing.T) {
	db := setupCatalogDB(t)

	mustCreate := func(title string, price float64, attrs map[string]interface{}) uint64 {
		t.Helper()
		result, err := CreateItem(db, ItemInput{Title: title, Price: price, Attributes: attrs})
		if err != nil {
			t.Fatalf("Failed to create item %q: %v", title, err)
		}
		return result["id"].(uint64)
	}

	redID := mustCreate("Red Mug", 5, map[string]interface{}{"color": "red", "tags": []interface{}{"new"}})
	blueID := mustCreate("Blue Mug", 20, map[string]interface{}{"color": "blue"})
	bareID := mustCreate("Bare Mug", 5, nil)

	queryIDs := func(input QueryInput) []uint64 {
		t.Helper()
		results, err := QueryItems(db, input)
		if err != nil {
			t.Fatalf("Failed to query items: %v", err)
		}
		ids := make([]uint64, 0, len(results))
		for _, r := range results {
			ids = append(ids, r["id"].(uint64))
		}
		return ids
	}

	got := queryIDs(QueryInput{Filter: eav.Lookups{"color": "red"}})
	if len(got) != 1 || got[0] != redID {
		t.Errorf("filter: expected [%d], got %v", redID, got)
	}

	got = queryIDs(QueryInput{Exclude: eav.Lookups{"color": "red"}})
	if len(got) != 2 || got[0] != blueID || got[1] != bareID {
		t.Errorf("exclude: expected [%d %d], got %v", blueID, bareID, got)
	}

	got = queryIDs(QueryInput{Filter: eav.Lookups{"price__lte": 10.0}, Limit: types.FlexUint64(1)})
	if len(got) != 1 || got[0] != redID {
		t.Errorf("limit: expected [%d], got %v", redID, got)
	}

	if _, err := QueryItems(db, QueryInput{Filter: eav.Lookups{"colour": "red"}}); err == nil {
		t.Errorf("Expected an error for an unknown lookup")
	}
}
