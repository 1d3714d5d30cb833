package routes

import (
	"github.com/labstack/echo/v4"

	"sitepilot/internal/handlers"
)

func SetupProjectRoutes(api *echo.Group, upload *handlers.UploadHandler, h *handlers.ProjectHandler) {
	projects := api.Group("/projects")

	projects.GET("", h.List)
	projects.POST("", h.Create)
	projects.POST("/create", h.Create)
	projects.POST("/upload", upload.UploadSummary)
	projects.POST("/analyze", h.Analyze)
	projects.GET("/:projectId", h.Get)
	projects.PUT("/:projectId", h.Update)
	projects.DELETE("/:projectId", h.Delete)
}
