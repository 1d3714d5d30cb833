package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"sitepilot/internal/api/middleware"
	"sitepilot/internal/api/validator"
	"sitepilot/internal/models"
	"sitepilot/internal/orchestrator"
)

type DiscussionHandler struct {
	orch *orchestrator.Orchestrator
}

func NewDiscussionHandler(orch *orchestrator.Orchestrator) *DiscussionHandler {
	return &DiscussionHandler{orch: orch}
}

func assistantMessage(content string) echo.Map {
	return echo.Map{"role": models.RoleAssistant, "content": content}
}

// ListByProject returns a project's discussions, most recently active first
// @Summary List discussions of a project
// @Tags discussions
// @Produce json
// @Security BearerAuth
// @Param projectId path string true "Project ID"
// @Success 200 {object} map[string]interface{} "discussions"
// @Router /discussions/project/{projectId} [get]
func (h *DiscussionHandler) ListByProject(c echo.Context) error {
	discussions, err := h.orch.ListDiscussions(c.Request().Context(), middleware.GetPrincipal(c), c.Param("projectId"))
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, echo.Map{"discussions": discussions})
}

// Get returns a discussion with its full transcript
// @Summary Get a discussion
// @Tags discussions
// @Produce json
// @Security BearerAuth
// @Param discussionId path string true "Discussion ID"
// @Success 200 {object} map[string]interface{} "discussion"
// @Router /discussions/{discussionId} [get]
func (h *DiscussionHandler) Get(c echo.Context) error {
	d, err := h.orch.GetDiscussion(c.Request().Context(), middleware.GetPrincipal(c), c.Param("discussionId"))
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, echo.Map{"discussion": d})
}

// Create opens a discussion seeded with the project context
// @Summary Create a discussion
// @Tags discussions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body validator.DiscussionRequest true "Discussion"
// @Success 201 {object} map[string]interface{} "discussion"
// @Router /discussions [post]
func (h *DiscussionHandler) Create(c echo.Context) error {
	var req validator.DiscussionRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	d, err := h.orch.OpenDiscussion(c.Request().Context(), middleware.GetPrincipal(c), req.ProjectID, req.Title)
	if err != nil {
		return err
	}
	return respond(c, http.StatusCreated, echo.Map{"discussion": d})
}

// Message sends a chat message and returns the assistant's reply
// @Summary Send a message
// @Tags discussions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param discussionId path string true "Discussion ID"
// @Param request body validator.MessageRequest true "Message"
// @Success 200 {object} map[string]interface{} "assistantMessage"
// @Router /discussions/{discussionId}/message [post]
func (h *DiscussionHandler) Message(c echo.Context) error {
	var req validator.MessageRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	reply, err := h.orch.Chat(c.Request().Context(), middleware.GetPrincipal(c), c.Param("discussionId"), req.Message)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, echo.Map{"assistantMessage": assistantMessage(reply)})
}

// SuggestEdits proposes three edits for a page element
// @Summary Suggest edits
// @Tags discussions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param discussionId path string true "Discussion ID"
// @Param request body validator.SuggestEditsRequest true "Page element"
// @Success 200 {object} map[string]interface{} "suggestions and rawResponse"
// @Router /discussions/{discussionId}/suggest-edits [post]
func (h *DiscussionHandler) SuggestEdits(c echo.Context) error {
	var req validator.SuggestEditsRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	result, err := h.orch.SuggestEdits(c.Request().Context(), middleware.GetPrincipal(c), c.Param("discussionId"), req.PageID, req.ElementType)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, echo.Map{
		"suggestions": result.Suggestions,
		"rawResponse": result.RawResponse,
	})
}

// ApplyEdit pushes an edit to the site and records it
// @Summary Apply an edit
// @Tags discussions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param discussionId path string true "Discussion ID"
// @Param request body validator.ApplyEditRequest true "Edit"
// @Success 200 {object} map[string]interface{} "change and confirmation"
// @Failure 500 {object} map[string]interface{} "The page was updated but a later step failed"
// @Router /discussions/{discussionId}/apply-edit [post]
func (h *DiscussionHandler) ApplyEdit(c echo.Context) error {
	var req validator.ApplyEditRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	result, err := h.orch.ApplyEdit(c.Request().Context(), middleware.GetPrincipal(c), c.Param("discussionId"), orchestrator.EditInput{
		PageID:          req.PageID,
		Content:         req.Content,
		Description:     req.Description,
		Element:         req.Element,
		PreviousContent: req.PreviousContent,
	})
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, echo.Map{
		"change":           result.Change,
		"assistantMessage": assistantMessage(result.Confirmation),
	})
}

// Audience reviews the site from an audience's perspective
// @Summary Audience perspective
// @Tags discussions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param discussionId path string true "Discussion ID"
// @Param request body validator.AudienceRequest true "Audience"
// @Success 200 {object} map[string]interface{} "assistantMessage"
// @Router /discussions/{discussionId}/audience [post]
func (h *DiscussionHandler) Audience(c echo.Context) error {
	var req validator.AudienceRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	reply, err := h.orch.AudiencePerspective(c.Request().Context(), middleware.GetPrincipal(c), c.Param("discussionId"), req.Audience)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, echo.Map{"assistantMessage": assistantMessage(reply)})
}

// ABTest proposes an A/B test for a page
// @Summary A/B test proposal
// @Tags discussions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param discussionId path string true "Discussion ID"
// @Param request body validator.ABTestRequest true "Page and goal"
// @Success 200 {object} map[string]interface{} "assistantMessage"
// @Router /discussions/{discussionId}/ab-test [post]
func (h *DiscussionHandler) ABTest(c echo.Context) error {
	var req validator.ABTestRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	reply, err := h.orch.ABTest(c.Request().Context(), middleware.GetPrincipal(c), c.Param("discussionId"), req.PageID, req.Goal)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, echo.Map{"assistantMessage": assistantMessage(reply)})
}

// Delete removes a discussion
// @Summary Delete a discussion
// @Tags discussions
// @Produce json
// @Security BearerAuth
// @Param discussionId path string true "Discussion ID"
// @Success 200 {object} map[string]interface{} "Discussion deleted successfully"
// @Router /discussions/{discussionId} [delete]
func (h *DiscussionHandler) Delete(c echo.Context) error {
	if err := h.orch.DeleteDiscussion(c.Request().Context(), middleware.GetPrincipal(c), c.Param("discussionId")); err != nil {
		return err
	}
	return respond(c, http.StatusOK, echo.Map{"message": "Discussion deleted successfully"})
}
