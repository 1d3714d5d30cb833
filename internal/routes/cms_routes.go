package routes

import (
	"github.com/labstack/echo/v4"

	"sitepilot/internal/handlers"
)

func SetupCMSRoutes(api *echo.Group, h *handlers.CMSHandler) {
	cms := api.Group("/cms")

	cms.GET("/sites", h.Sites)
	cms.GET("/sites/:siteId", h.Site)
	cms.GET("/sites/:siteId/pages", h.Pages)
	cms.GET("/sites/:siteId/collections", h.Collections)
	cms.POST("/sites/:siteId/publish", h.Publish)

	cms.GET("/collections/:collectionId/items", h.Items)
	cms.POST("/collections/:collectionId/items", h.CreateItem)
	cms.PUT("/collections/:collectionId/items/:itemId", h.UpdateItem)
	cms.POST("/collections/:collectionId/ai-content", h.AIContent)

	cms.GET("/pages/:pageId", h.Page)
	cms.PUT("/pages/:pageId", h.UpdatePage)
}
