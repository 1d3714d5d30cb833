package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/labstack/echo/v4"

	"sitepilot/internal/api/middleware"
	"sitepilot/internal/api/validator"
	"sitepilot/internal/orchestrator"
)

type CMSHandler struct {
	orch *orchestrator.Orchestrator
}

func NewCMSHandler(orch *orchestrator.Orchestrator) *CMSHandler {
	return &CMSHandler{orch: orch}
}

func rawResult(c echo.Context, status int, key string, raw json.RawMessage, err error) error {
	if err != nil {
		return err
	}
	return respond(c, status, echo.Map{key: raw})
}

// Sites lists the sites the platform token can reach
// @Summary List sites
// @Tags cms
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string]interface{} "sites"
// @Router /cms/sites [get]
func (h *CMSHandler) Sites(c echo.Context) error {
	raw, err := h.orch.Sites(c.Request().Context(), middleware.GetPrincipal(c))
	return rawResult(c, http.StatusOK, "sites", raw, err)
}

// @Summary Get a site
// @Tags cms
// @Produce json
// @Security BearerAuth
// @Param siteId path string true "Site ID"
// @Success 200 {object} map[string]interface{} "site"
// @Router /cms/sites/{siteId} [get]
func (h *CMSHandler) Site(c echo.Context) error {
	raw, err := h.orch.Site(c.Request().Context(), middleware.GetPrincipal(c), c.Param("siteId"))
	return rawResult(c, http.StatusOK, "site", raw, err)
}

// @Summary List pages of a site
// @Tags cms
// @Produce json
// @Security BearerAuth
// @Param siteId path string true "Site ID"
// @Success 200 {object} map[string]interface{} "pages"
// @Router /cms/sites/{siteId}/pages [get]
func (h *CMSHandler) Pages(c echo.Context) error {
	raw, err := h.orch.Pages(c.Request().Context(), middleware.GetPrincipal(c), c.Param("siteId"))
	return rawResult(c, http.StatusOK, "pages", raw, err)
}

// @Summary List collections of a site
// @Tags cms
// @Produce json
// @Security BearerAuth
// @Param siteId path string true "Site ID"
// @Success 200 {object} map[string]interface{} "collections"
// @Router /cms/sites/{siteId}/collections [get]
func (h *CMSHandler) Collections(c echo.Context) error {
	raw, err := h.orch.Collections(c.Request().Context(), middleware.GetPrincipal(c), c.Param("siteId"))
	return rawResult(c, http.StatusOK, "collections", raw, err)
}

// @Summary List collection items
// @Tags cms
// @Produce json
// @Security BearerAuth
// @Param collectionId path string true "Collection ID"
// @Success 200 {object} map[string]interface{} "items"
// @Router /cms/collections/{collectionId}/items [get]
func (h *CMSHandler) Items(c echo.Context) error {
	raw, err := h.orch.Items(c.Request().Context(), middleware.GetPrincipal(c), c.Param("collectionId"))
	return rawResult(c, http.StatusOK, "items", raw, err)
}

// @Summary Create a collection item
// @Tags cms
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param collectionId path string true "Collection ID"
// @Param request body validator.ItemRequest true "Item fields"
// @Success 201 {object} map[string]interface{} "item"
// @Router /cms/collections/{collectionId}/items [post]
func (h *CMSHandler) CreateItem(c echo.Context) error {
	var req validator.ItemRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	raw, err := h.orch.CreateItem(c.Request().Context(), middleware.GetPrincipal(c), c.Param("collectionId"), req.Fields)
	return rawResult(c, http.StatusCreated, "item", raw, err)
}

// @Summary Update a collection item
// @Tags cms
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param collectionId path string true "Collection ID"
// @Param itemId path string true "Item ID"
// @Param request body validator.ItemRequest true "Item fields"
// @Success 200 {object} map[string]interface{} "item"
// @Router /cms/collections/{collectionId}/items/{itemId} [put]
func (h *CMSHandler) UpdateItem(c echo.Context) error {
	var req validator.ItemRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	raw, err := h.orch.UpdateItem(c.Request().Context(), middleware.GetPrincipal(c), c.Param("collectionId"), c.Param("itemId"), req.Fields)
	return rawResult(c, http.StatusOK, "item", raw, err)
}

// AIContent writes a blog post and stores it in the collection
// @Summary Generate a CMS item
// @Tags cms
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param collectionId path string true "Collection ID"
// @Param request body validator.AIContentRequest true "Brief"
// @Success 200 {object} map[string]interface{} "item"
// @Router /cms/collections/{collectionId}/ai-content [post]
func (h *CMSHandler) AIContent(c echo.Context) error {
	var req validator.AIContentRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	raw, err := h.orch.GenerateCMSItem(c.Request().Context(), middleware.GetPrincipal(c), c.Param("collectionId"), orchestrator.BlogBrief{
		Title:    req.Title,
		Keywords: req.Keywords,
		Tone:     req.Tone,
		Length:   req.Length,
	})
	return rawResult(c, http.StatusOK, "item", raw, err)
}

// @Summary Publish a site
// @Tags cms
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param siteId path string true "Site ID"
// @Param request body validator.PublishRequest false "Domains"
// @Success 200 {object} map[string]interface{} "result"
// @Router /cms/sites/{siteId}/publish [post]
func (h *CMSHandler) Publish(c echo.Context) error {
	var req validator.PublishRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	raw, err := h.orch.Publish(c.Request().Context(), middleware.GetPrincipal(c), c.Param("siteId"), req.Domains)
	return rawResult(c, http.StatusOK, "result", raw, err)
}

// @Summary Get a page
// @Tags cms
// @Produce json
// @Security BearerAuth
// @Param pageId path string true "Page ID"
// @Success 200 {object} map[string]interface{} "page"
// @Router /cms/pages/{pageId} [get]
func (h *CMSHandler) Page(c echo.Context) error {
	raw, err := h.orch.Page(c.Request().Context(), middleware.GetPrincipal(c), c.Param("pageId"))
	return rawResult(c, http.StatusOK, "page", raw, err)
}

// @Summary Update a page
// @Tags cms
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param pageId path string true "Page ID"
// @Param request body object true "Page fields"
// @Success 200 {object} map[string]interface{} "page"
// @Router /cms/pages/{pageId} [put]
func (h *CMSHandler) UpdatePage(c echo.Context) error {
	var patch map[string]interface{}
	if err := c.Bind(&patch); err != nil || len(patch) == 0 {
		return invalidBody()
	}
	raw, err := h.orch.UpdatePage(c.Request().Context(), middleware.GetPrincipal(c), c.Param("pageId"), patch)
	return rawResult(c, http.StatusOK, "page", raw, err)
}
