// schema.go
//
// Attribute schema administration routes.

package handlers

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/attrkit/eavdb/internal/services"
	"github.com/attrkit/eavdb/internal/utils"
)

// SchemaHandler handles attribute schema administration routes
type SchemaHandler struct {
	DB *gorm.DB
}

// GetSchemata handles GET /api/schemas?kind=...
// @Summary List attribute schemas
// @Description List attribute schemas, optionally filtered by entity kind
// @Tags Schemas
// @Accept json
// @Produce json
// @Param kind query string false "Entity kind filter"
// @Success 200 {array} models.Schema
// @Failure 500 {object} utils.ErrorResponseStruct
// @Router /schemas [get]
func (h *SchemaHandler) GetSchemata(c *fiber.Ctx) error {
	kind := c.Query("kind")

	schemata, err := services.GetSchemata(h.DB, kind)
	if err != nil {
		return utils.ErrorResponse(c, err.Error(), fiber.StatusInternalServerError, "getSchemata")
	}

	if len(schemata) == 0 {
		return c.SendStatus(fiber.StatusNoContent)
	}

	return c.Status(fiber.StatusOK).JSON(schemata)
}

// GetSchema handles GET /api/schemas/:id
// @Summary Get attribute schema
// @Description Get one attribute schema with its choices
// @Tags Schemas
// @Accept json
// @Produce json
// @Param id path int true "Schema ID"
// @Success 200 {object} models.Schema
// @Failure 404 {object} utils.ErrorResponseStruct
// @Failure 500 {object} utils.ErrorResponseStruct
// @Router /schemas/{id} [get]
func (h *SchemaHandler) GetSchema(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return utils.ErrorResponse(c, "Invalid schema id", fiber.StatusBadRequest, "schema.validation.input")
	}

	schema, err := services.GetSchema(h.DB, id)
	if err != nil {
		if err.Error() == "not found" {
			return utils.NotFoundResponse(c, fmt.Sprintf("Schema %d not found", id))
		}
		return utils.ErrorResponse(c, err.Error(), fiber.StatusInternalServerError, "getSchema")
	}

	return c.Status(fiber.StatusOK).JSON(schema)
}

// CreateSchema handles POST /api/schemas
// @Summary Create attribute schema
// @Description Create an attribute schema and its choices
// @Tags Schemas
// @Accept json
// @Produce json
// @Param body body services.SchemaInput true "Schema definition"
// @Success 200 {object} utils.SuccessResponseStruct
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 500 {object} utils.ErrorResponseStruct
// @Router /schemas [post]
func (h *SchemaHandler) CreateSchema(c *fiber.Ctx) error {
	var input services.SchemaInput
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, "Invalid input", fiber.StatusBadRequest, "schema.validation.input")
	}

	schema, err := services.CreateSchema(h.DB, input)
	if err != nil {
		return utils.ErrorResponse(c, err.Error(), fiber.StatusBadRequest, "createSchema")
	}

	return utils.MutationSuccessResponse(c, schema)
}

// UpdateSchema handles PUT /api/schemas/:id
// @Summary Update attribute schema
// @Description Update schema metadata; name and datatype are frozen once referenced
// @Tags Schemas
// @Accept json
// @Produce json
// @Param id path int true "Schema ID"
// @Param body body services.SchemaInput true "Schema definition"
// @Success 200 {object} utils.SuccessResponseStruct
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Failure 409 {object} utils.ErrorResponseStruct
// @Failure 500 {object} utils.ErrorResponseStruct
// @Router /schemas/{id} [put]
func (h *SchemaHandler) UpdateSchema(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return utils.ErrorResponse(c, "Invalid schema id", fiber.StatusBadRequest, "schema.validation.input")
	}

	var input services.SchemaInput
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, "Invalid input", fiber.StatusBadRequest, "schema.validation.input")
	}

	schema, err := services.UpdateSchema(h.DB, id, input)
	if err != nil {
		switch err.Error() {
		case "not found":
			return utils.NotFoundResponse(c, fmt.Sprintf("Schema %d not found", id))
		case "in use":
			return utils.ConflictResponse(c, "Schema name and datatype are frozen while attribute values reference it")
		}
		return utils.ErrorResponse(c, err.Error(), fiber.StatusBadRequest, "updateSchema")
	}

	return utils.MutationSuccessResponse(c, schema)
}

// DeleteSchema handles DELETE /api/schemas/:id
// @Summary Delete attribute schema
// @Description Delete a schema and its choices; refused while referenced
// @Tags Schemas
// @Accept json
// @Produce json
// @Param id path int true "Schema ID"
// @Success 200 {object} utils.SuccessResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Failure 409 {object} utils.ErrorResponseStruct
// @Failure 500 {object} utils.ErrorResponseStruct
// @Router /schemas/{id} [delete]
func (h *SchemaHandler) DeleteSchema(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return utils.ErrorResponse(c, "Invalid schema id", fiber.StatusBadRequest, "schema.validation.input")
	}

	if err := services.DeleteSchema(h.DB, id); err != nil {
		switch err.Error() {
		case "not found":
			return utils.NotFoundResponse(c, fmt.Sprintf("Schema %d not found", id))
		case "in use":
			return utils.ConflictResponse(c, "Schema still has attribute values; delete them first")
		}
		return utils.ErrorResponse(c, err.Error(), fiber.StatusInternalServerError, "deleteSchema")
	}

	return utils.MutationSuccessResponse(c, nil)
}

// AddChoice handles POST /api/schemas/:id/choices
// @Summary Add choice
// @Description Append one option to a multi-choice schema
// @Tags Schemas
// @Accept json
// @Produce json
// @Param id path int true "Schema ID"
// @Param body body services.ChoiceInput true "Choice definition"
// @Success 200 {object} utils.SuccessResponseStruct
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Failure 500 {object} utils.ErrorResponseStruct
// @Router /schemas/{id}/choices [post]
func (h *SchemaHandler) AddChoice(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return utils.ErrorResponse(c, "Invalid schema id", fiber.StatusBadRequest, "schema.validation.input")
	}

	var input services.ChoiceInput
	if err := c.BodyParser(&input); err != nil || input.Title == "" {
		return utils.ErrorResponse(c, "Invalid input", fiber.StatusBadRequest, "schema.validation.input")
	}

	choice, err := services.AddChoice(h.DB, id, input)
	if err != nil {
		if err.Error() == "not found" {
			return utils.NotFoundResponse(c, fmt.Sprintf("Schema %d not found", id))
		}
		return utils.ErrorResponse(c, err.Error(), fiber.StatusBadRequest, "addChoice")
	}

	return utils.MutationSuccessResponse(c, choice)
}

// DeleteChoice handles DELETE /api/schemas/choices/:id
// @Summary Delete choice
// @Description Remove one option; refused while selected by attribute values
// @Tags Schemas
// @Accept json
// @Produce json
// @Param id path int true "Choice ID"
// @Success 200 {object} utils.SuccessResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Failure 409 {object} utils.ErrorResponseStruct
// @Failure 500 {object} utils.ErrorResponseStruct
// @Router /schemas/choices/{id} [delete]
func (h *SchemaHandler) DeleteChoice(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return utils.ErrorResponse(c, "Invalid choice id", fiber.StatusBadRequest, "schema.validation.input")
	}

	if err := services.DeleteChoice(h.DB, id); err != nil {
		switch err.Error() {
		case "not found":
			return utils.NotFoundResponse(c, fmt.Sprintf("Choice %d not found", id))
		case "in use":
			return utils.ConflictResponse(c, "Choice is still selected by attribute values")
		}
		return utils.ErrorResponse(c, err.Error(), fiber.StatusInternalServerError, "deleteChoice")
	}

	return utils.MutationSuccessResponse(c, nil)
}
