// catalog.go
//
// Catalog routes: rubrics, items, and attribute-aware item queries.

package handlers

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/attrkit/eavdb/internal/services"
	"github.com/attrkit/eavdb/internal/utils"
)

// CatalogHandler handles catalog routes
type CatalogHandler struct {
	DB *gorm.DB
}

// GetRubrics handles GET /api/catalog/rubrics
// @Summary List rubrics
// @Description List all catalog rubrics
// @Tags Catalog
// @Accept json
// @Produce json
// @Success 200 {array} models.Rubric
// @Failure 500 {object} utils.ErrorResponseStruct
// @Router /catalog/rubrics [get]
func (h *CatalogHandler) GetRubrics(c *fiber.Ctx) error {
	rubrics, err := services.GetRubrics(h.DB)
	if err != nil {
		return utils.ErrorResponse(c, err.Error(), fiber.StatusInternalServerError, "getRubrics")
	}

	if len(rubrics) == 0 {
		return c.SendStatus(fiber.StatusNoContent)
	}

	return c.Status(fiber.StatusOK).JSON(rubrics)
}

// CreateRubric handles POST /api/catalog/rubrics
// @Summary Create rubric
// @Description Create a catalog rubric
// @Tags Catalog
// @Accept json
// @Produce json
// @Param body body object true "Rubric title"
// @Success 200 {object} utils.SuccessResponseStruct
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 500 {object} utils.ErrorResponseStruct
// @Router /catalog/rubrics [post]
func (h *CatalogHandler) CreateRubric(c *fiber.Ctx) error {
	var body struct {
		Title string `json:"title"`
	}
	if err := c.BodyParser(&body); err != nil || body.Title == "" {
		return utils.ErrorResponse(c, "Invalid input", fiber.StatusBadRequest, "catalog.validation.input")
	}

	rubric, err := services.CreateRubric(h.DB, body.Title)
	if err != nil {
		return utils.ErrorResponse(c, err.Error(), fiber.StatusInternalServerError, "createRubric")
	}

	return utils.MutationSuccessResponse(c, rubric)
}

// GetItem handles GET /api/catalog/items/:id
// @Summary Get item
// @Description Get one item with its rubric and dynamic attributes
// @Tags Catalog
// @Accept json
// @Produce json
// @Param id path int true "Item ID"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} utils.ErrorResponseStruct
// @Failure 500 {object} utils.ErrorResponseStruct
// @Router /catalog/items/{id} [get]
func (h *CatalogHandler) GetItem(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return utils.ErrorResponse(c, "Invalid item id", fiber.StatusBadRequest, "catalog.validation.input")
	}

	result, err := services.GetItem(h.DB, id)
	if err != nil {
		if err.Error() == "not found" {
			return utils.NotFoundResponse(c, fmt.Sprintf("Item %d not found", id))
		}
		return utils.ErrorResponse(c, err.Error(), fiber.StatusInternalServerError, "getItem")
	}

	return c.Status(fiber.StatusOK).JSON(result)
}

// CreateItem handles POST /api/catalog/items
// @Summary Create item
// @Description Create an item from static fields plus dynamic attributes
// @Tags Catalog
// @Accept json
// @Produce json
// @Param body body services.ItemInput true "Item definition"
// @Success 200 {object} utils.SuccessResponseStruct
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 500 {object} utils.ErrorResponseStruct
// @Router /catalog/items [post]
func (h *CatalogHandler) CreateItem(c *fiber.Ctx) error {
	var input services.ItemInput
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, "Invalid input", fiber.StatusBadRequest, "catalog.validation.input")
	}

	result, err := services.CreateItem(h.DB, input)
	if err != nil {
		if isInputError(err) {
			return utils.ErrorResponse(c, err.Error(), fiber.StatusBadRequest, "createItem")
		}
		if err.Error() == "title is required" {
			return utils.ErrorResponse(c, err.Error(), fiber.StatusBadRequest, "catalog.validation.input")
		}
		return utils.ErrorResponse(c, err.Error(), fiber.StatusInternalServerError, "createItem")
	}

	return utils.MutationSuccessResponse(c, result)
}

// SetItemAttributes handles PUT /api/catalog/items/:id/attributes
// @Summary Set item attributes
// @Description Set dynamic attribute values; a multi-choice value replaces the whole selection
// @Tags Catalog
// @Accept json
// @Produce json
// @Param id path int true "Item ID"
// @Param body body object true "Attribute name to value map"
// @Success 200 {object} utils.SuccessResponseStruct
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Failure 500 {object} utils.ErrorResponseStruct
// @Router /catalog/items/{id}/attributes [put]
func (h *CatalogHandler) SetItemAttributes(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return utils.ErrorResponse(c, "Invalid item id", fiber.StatusBadRequest, "catalog.validation.input")
	}

	var attributes map[string]interface{}
	if err := c.BodyParser(&attributes); err != nil || len(attributes) == 0 {
		return utils.ErrorResponse(c, "Invalid input", fiber.StatusBadRequest, "catalog.validation.input")
	}

	result, err := services.SetItemAttributes(h.DB, id, attributes)
	if err != nil {
		if err.Error() == "not found" {
			return utils.NotFoundResponse(c, fmt.Sprintf("Item %d not found", id))
		}
		if isAttrNotFound(err) {
			return utils.NotFoundResponse(c, err.Error())
		}
		if isInputError(err) {
			return utils.ErrorResponse(c, err.Error(), fiber.StatusBadRequest, "setItemAttributes")
		}
		return utils.ErrorResponse(c, err.Error(), fiber.StatusInternalServerError, "setItemAttributes")
	}

	return utils.MutationSuccessResponse(c, result)
}

// QueryItems handles POST /api/catalog/items/query
// @Summary Query items
// @Description Query items by static fields and dynamic attributes; filter lookups are conjoined, exclude lookups each negated independently
// @Tags Catalog
// @Accept json
// @Produce json
// @Param body body services.QueryInput true "Filter and exclude lookups"
// @Success 200 {array} map[string]interface{}
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 500 {object} utils.ErrorResponseStruct
// @Router /catalog/items/query [post]
func (h *CatalogHandler) QueryItems(c *fiber.Ctx) error {
	var input services.QueryInput
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, "Invalid input", fiber.StatusBadRequest, "catalog.validation.input")
	}

	results, err := services.QueryItems(h.DB, input)
	if err != nil {
		if isInputError(err) {
			return utils.ErrorResponse(c, err.Error(), fiber.StatusBadRequest, "queryItems")
		}
		return utils.ErrorResponse(c, err.Error(), fiber.StatusInternalServerError, "queryItems")
	}

	if len(results) == 0 {
		return c.SendStatus(fiber.StatusNoContent)
	}

	return c.Status(fiber.StatusOK).JSON(results)
}
