package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/attrkit/eavdb/internal/models"
	"github.com/attrkit/eavdb/internal/services"
	"github.com/attrkit/eavdb/internal/types"
	"github.com/attrkit/eavdb/tests/helpers"
)

// setupTestApp wires the API routes onto an in-memory database, without
// the auth middleware so handler behavior tests stay self-contained
func setupTestApp(t *testing.T) (*fiber.App, *gorm.DB) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	err = db.AutoMigrate(
		&models.Schema{},
		&models.Choice{},
		&models.Attribute{},
		&models.Rubric{},
		&models.Item{},
	)
	if err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}

	schemaHandler := &SchemaHandler{DB: db}
	catalogHandler := &CatalogHandler{DB: db}

	app := fiber.New()
	api := app.Group("/api")

	api.Get("/schemas", schemaHandler.GetSchemata)
	api.Post("/schemas", schemaHandler.CreateSchema)
	api.Get("/schemas/:id", schemaHandler.GetSchema)
	api.Put("/schemas/:id", schemaHandler.UpdateSchema)
	api.Delete("/schemas/:id", schemaHandler.DeleteSchema)
	api.Post("/schemas/:id/choices", schemaHandler.AddChoice)
	api.Delete("/schemas/choices/:id", schemaHandler.DeleteChoice)

	api.Get("/catalog/rubrics", catalogHandler.GetRubrics)
	api.Post("/catalog/rubrics", catalogHandler.CreateRubric)
	api.Get("/catalog/items/:id", catalogHandler.GetItem)
	api.Post("/catalog/items", catalogHandler.CreateItem)
	api.Put("/catalog/items/:id/attributes", catalogHandler.SetItemAttributes)
	api.Post("/catalog/items/query", catalogHandler.QueryItems)

	return app, db
}

func jsonRequest(t *testing.T, method, url string, body interface{}) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("Failed to encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, url, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// mutationEnvelope mirrors the success response wrapper
type mutationEnvelope struct {
	OK   bool                   `json:"ok"`
	Data map[string]interface{} `json:"data"`
}

func TestSchemaLifecycle(t *testing.T) {
	app, _ := setupTestApp(t)

	resp, err := app.Test(jsonRequest(t, "GET", "/api/schemas", nil))
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	helpers.AssertStatus(t, resp, fiber.StatusNoContent)
	helpers.AssertNoContent(t, resp)

	resp, err = app.Test(jsonRequest(t, "POST", "/api/schemas", map[string]interface{}{
		"entityKind": "item",
		"title":      "Main colors",
		"datatype":   "many",
		"filtered":   true,
		"choices":    []map[string]string{{"title": "Red"}, {"title": "Green"}},
	}))
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	helpers.AssertStatus(t, resp, fiber.StatusOK)
	var created mutationEnvelope
	helpers.ParseJSON(t, resp, &created)
	if !created.OK {
		t.Fatalf("Expected ok response, got %+v", created)
	}
	if created.Data["name"] != "main_colors" {
		t.Errorf("Expected derived name main_colors, got %v", created.Data["name"])
	}
	schemaID := int(created.Data["id"].(float64))

	resp, err = app.Test(jsonRequest(t, "GET", "/api/schemas?kind=item", nil))
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	helpers.AssertStatus(t, resp, fiber.StatusOK)
	var listed []map[string]interface{}
	helpers.ParseJSON(t, resp, &listed)
	if len(listed) != 1 {
		t.Fatalf("Expected 1 schema, got %d", len(listed))
	}

	resp, err = app.Test(jsonRequest(t, "PUT", schemaURL(schemaID), map[string]interface{}{
		"datatype": "many",
		"helpText": "pick any",
		"filtered": true,
	}))
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	helpers.AssertStatus(t, resp, fiber.StatusOK)

	resp, err = app.Test(jsonRequest(t, "DELETE", schemaURL(schemaID), nil))
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	helpers.AssertStatus(t, resp, fiber.StatusOK)

	resp, err = app.Test(jsonRequest(t, "GET", schemaURL(schemaID), nil))
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	helpers.AssertStatus(t, resp, fiber.StatusNotFound)
}

func schemaURL(id int) string {
	return "/api/schemas/" + strconv.Itoa(id)
}

func TestSchemaValidation(t *testing.T) {
	app, _ := setupTestApp(t)

	resp, err := app.Test(jsonRequest(t, "POST", "/api/schemas", map[string]interface{}{
		"entityKind": "item",
		"title":      "Color",
		"datatype":   "float",
	}))
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	helpers.AssertStatus(t, resp, fiber.StatusBadRequest)

	resp, err = app.Test(jsonRequest(t, "GET", "/api/schemas/abc", nil))
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	helpers.AssertStatus(t, resp, fiber.StatusBadRequest)

	resp, err = app.Test(jsonRequest(t, "GET", "/api/schemas/42", nil))
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	helpers.AssertStatus(t, resp, fiber.StatusNotFound)
}

func TestSchemaConflicts(t *testing.T) {
	app, db := setupTestApp(t)

	schema, err := services.CreateSchema(db, services.SchemaInput{
		EntityKind: models.KindItem, Title: "Colors", Datatype: models.TypeMany,
		Choices: types.FlexList[services.ChoiceInput]{{Title: "Red"}},
	})
	if err != nil {
		t.Fatalf("Failed to create schema: %v", err)
	}
	attr := models.Attribute{
		EntityKind: models.KindItem,
		EntityID:   1,
		SchemaID:   schema.SchemaID,
		ChoiceID:   &schema.Choices[0].ChoiceID,
	}
	if err := db.Create(&attr).Error; err != nil {
		t.Fatalf("Failed to create attribute row: %v", err)
	}

	resp, err := app.Test(jsonRequest(t, "PUT", schemaURL(int(schema.SchemaID)), map[string]interface{}{
		"datatype": "text",
	}))
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	helpers.AssertStatus(t, resp, fiber.StatusConflict)

	resp, err = app.Test(jsonRequest(t, "DELETE", schemaURL(int(schema.SchemaID)), nil))
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	helpers.AssertStatus(t, resp, fiber.StatusConflict)

	resp, err = app.Test(jsonRequest(t, "DELETE", "/api/schemas/choices/"+strconv.Itoa(int(schema.Choices[0].ChoiceID)), nil))
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	helpers.AssertStatus(t, resp, fiber.StatusConflict)
}

func TestCatalogEndpoints(t *testing.T) {
	app, db := setupTestApp(t)

	for _, in := range []services.SchemaInput{
		{EntityKind: models.KindItem, Title: "Color", Datatype: models.TypeText, Filtered: true},
		{EntityKind: models.KindItem, Title: "Tags", Datatype: models.TypeMany, Filtered: true,
			Choices: types.FlexList[services.ChoiceInput]{{Title: "New"}, {Title: "Sale"}}},
	} {
		if _, err := services.CreateSchema(db, in); err != nil {
			t.Fatalf("Failed to create schema %q: %v", in.Title, err)
		}
	}

	resp, err := app.Test(jsonRequest(t, "POST", "/api/catalog/rubrics", map[string]string{"title": "Mugs"}))
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	helpers.AssertStatus(t, resp, fiber.StatusOK)
	var rubric mutationEnvelope
	helpers.ParseJSON(t, resp, &rubric)
	rubricID := rubric.Data["id"].(float64)

	resp, err = app.Test(jsonRequest(t, "POST", "/api/catalog/items", map[string]interface{}{
		"title":    "Red Mug",
		"price":    9.5,
		"rubricId": rubricID,
		"attributes": map[string]interface{}{
			"color": "red",
			"tags":  []string{"new"},
		},
	}))
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	helpers.AssertStatus(t, resp, fiber.StatusOK)
	var created mutationEnvelope
	helpers.ParseJSON(t, resp, &created)
	itemID := int(created.Data["id"].(float64))

	resp, err = app.Test(jsonRequest(t, "GET", "/api/catalog/items/"+strconv.Itoa(itemID), nil))
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	helpers.AssertStatus(t, resp, fiber.StatusOK)
	var item map[string]interface{}
	helpers.ParseJSON(t, resp, &item)
	attrs, ok := item["attributes"].(map[string]interface{})
	if !ok || attrs["color"] != "red" {
		t.Errorf("Expected color red in attributes, got %v", item["attributes"])
	}

	resp, err = app.Test(jsonRequest(t, "GET", "/api/catalog/items/9999", nil))
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	helpers.AssertStatus(t, resp, fiber.StatusNotFound)

	resp, err = app.Test(jsonRequest(t, "PUT", "/api/catalog/items/"+strconv.Itoa(itemID)+"/attributes", map[string]interface{}{
		"color": "blue",
	}))
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	helpers.AssertStatus(t, resp, fiber.StatusOK)

	// a name outside the entity's schema set is an absent attribute
	resp, err = app.Test(jsonRequest(t, "PUT", "/api/catalog/items/"+strconv.Itoa(itemID)+"/attributes", map[string]interface{}{
		"colour": "blue",
	}))
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	helpers.AssertStatus(t, resp, fiber.StatusNotFound)

	resp, err = app.Test(jsonRequest(t, "POST", "/api/catalog/items/query", map[string]interface{}{
		"filter": map[string]interface{}{"color": "blue"},
	}))
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	helpers.AssertStatus(t, resp, fiber.StatusOK)
	var results []map[string]interface{}
	helpers.ParseJSON(t, resp, &results)
	if len(results) != 1 {
		t.Fatalf("Expected 1 match, got %d", len(results))
	}

	resp, err = app.Test(jsonRequest(t, "POST", "/api/catalog/items/query", map[string]interface{}{
		"filter": map[string]interface{}{"color": "green"},
	}))
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	helpers.AssertStatus(t, resp, fiber.StatusNoContent)

	resp, err = app.Test(jsonRequest(t, "POST", "/api/catalog/items/query", map[string]interface{}{
		"filter": map[string]interface{}{"colour": "red"},
	}))
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	helpers.AssertStatus(t, resp, fiber.StatusBadRequest)
}
