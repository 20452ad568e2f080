// health.go
//
// Service health route.

package handlers

import (
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/attrkit/eavdb/internal/config"
	"github.com/attrkit/eavdb/internal/services"
)

// HealthHandler handles the health route
type HealthHandler struct {
	Config *config.Config
	DB     *gorm.DB
}

// GetHealth handles GET /api/health
// @Summary Health check
// @Description Check database and authorizer connectivity
// @Tags Health
// @Accept json
// @Produce json
// @Success 200 {object} services.HealthCheckResult
// @Failure 503 {object} services.HealthCheckResult
// @Router /health [get]
func (h *HealthHandler) GetHealth(c *fiber.Ctx) error {
	result := services.HealthCheck(h.Config, h.DB)
	status := fiber.StatusOK
	if result.Status != "healthy" {
		status = fiber.StatusServiceUnavailable
	}
	return c.Status(status).JSON(result)
}
