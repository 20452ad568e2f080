package middleware

import (
	"fmt"

	"github.com/gofiber/fiber/v2"

	"github.com/attrkit/eavdb/internal/config"
	"github.com/attrkit/eavdb/internal/services"
	"github.com/attrkit/eavdb/internal/types"
)

// AuthAdmin validates that the request has admin role authorization.
// Schema administration routes are admin-gated.
func AuthAdmin() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return authorize(c, []string{"admin"}, "schema.authorization.admin")
	}
}

// AuthUser validates that the request has user role authorization
func AuthUser() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return authorize(c, []string{"user"}, "catalog.authorization.user")
	}
}

// authorize performs the authorization check
func authorize(c *fiber.Ctx, roles []string, errorType string) error {
	// Lazily initialize the Authorizer client from the incoming request
	if !services.IsAuthorizerInitialized() {
		cfg, err := config.Load()
		if err != nil {
			return &types.CustomError{
				Code:    fiber.StatusInternalServerError,
				Message: fmt.Sprintf("Configuration error: %v", err),
				Type:    errorType,
			}
		}
		if err := services.InitAuthorizer(cfg, c.Protocol(), c.Hostname()); err != nil {
			return &types.CustomError{
				Code:    fiber.StatusServiceUnavailable,
				Message: fmt.Sprintf("Authorizer unavailable: %v", err),
				Type:    errorType,
			}
		}
	}

	// Get session cookie
	session := c.Cookies("cookie_session")
	if session == "" {
		return &types.CustomError{
			Code:    fiber.StatusForbidden,
			Message: "Authorizer cookie \"cookie_session\" not found",
			Type:    errorType,
		}
	}

	// Validate session
	data, err := services.ValidateSession(session, roles)
	if err != nil {
		return &types.CustomError{
			Code:    fiber.StatusForbidden,
			Message: fmt.Sprintf("Invalid session: %v", err),
			Type:    errorType,
		}
	}

	// Set user data in context
	if user, ok := data["user"]; ok {
		c.Locals("user", user)
	}

	return c.Next()
}
