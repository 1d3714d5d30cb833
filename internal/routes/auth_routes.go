package routes

import (
	"github.com/labstack/echo/v4"

	"sitepilot/internal/handlers"
)

// SetupAuthRoutes mounts registration and login on base, and the current-user
// endpoint behind requireAuth.
func SetupAuthRoutes(base *echo.Group, h *handlers.AuthHandler, requireAuth echo.MiddlewareFunc) {
	auth := base.Group("/auth")

	// Public routes (no auth required)
	auth.POST("/register", h.Register)
	auth.POST("/login", h.Login)

	auth.GET("/me", h.GetMe, requireAuth)
}
