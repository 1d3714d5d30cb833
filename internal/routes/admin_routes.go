package routes

import (
	"github.com/labstack/echo/v4"

	"sitepilot/internal/api/middleware"
	"sitepilot/internal/handlers"
)

func SetupAdminRoutes(api *echo.Group, h *handlers.AdminHandler) {
	admin := api.Group("/admin", middleware.RequireAdmin())

	admin.POST("/reconcile", h.Reconcile)
}
