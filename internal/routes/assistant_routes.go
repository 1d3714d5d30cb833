package routes

import (
	"github.com/labstack/echo/v4"

	"sitepilot/internal/api/middleware"
	"sitepilot/internal/handlers"
	"sitepilot/internal/permissions"
)

func SetupAssistantRoutes(api *echo.Group, h *handlers.AssistantHandler) {
	assistant := api.Group("/ai-assistant", middleware.RequireCapabilities(permissions.AIAssist))

	assistant.POST("/generate", h.Generate)
	assistant.POST("/batch-process", h.BatchProcess, middleware.RequireCapabilities(permissions.BulkOperations))
}
