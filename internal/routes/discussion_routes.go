package routes

import (
	"github.com/labstack/echo/v4"

	"sitepilot/internal/handlers"
)

func SetupDiscussionRoutes(api *echo.Group, h *handlers.DiscussionHandler) {
	discussions := api.Group("/discussions")

	discussions.POST("", h.Create)
	discussions.POST("/create", h.Create)
	discussions.GET("/project/:projectId", h.ListByProject)
	discussions.GET("/:discussionId", h.Get)
	discussions.DELETE("/:discussionId", h.Delete)
	discussions.POST("/:discussionId/message", h.Message)
	discussions.POST("/:discussionId/suggest-edits", h.SuggestEdits)
	discussions.POST("/:discussionId/apply-edit", h.ApplyEdit)
	discussions.POST("/:discussionId/audience", h.Audience)
	discussions.POST("/:discussionId/ab-test", h.ABTest)
}
