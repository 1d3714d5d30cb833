package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"sitepilot/internal/api/middleware"
	"sitepilot/internal/api/validator"
	"sitepilot/internal/gateways/llm"
	"sitepilot/internal/orchestrator"
)

type AssistantHandler struct {
	orch *orchestrator.Orchestrator
}

func NewAssistantHandler(orch *orchestrator.Orchestrator) *AssistantHandler {
	return &AssistantHandler{orch: orch}
}

func options(o *validator.GenerateOption) llm.Options {
	if o == nil {
		return llm.Options{}
	}
	return llm.Options{Model: o.Model, MaxTokens: o.MaxTokens, Temperature: o.Temperature}
}

// Generate runs a single completion
// @Summary Generate content
// @Tags ai-assistant
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body validator.GenerateRequest true "Prompt"
// @Success 200 {object} map[string]interface{} "content"
// @Router /ai-assistant/generate [post]
func (h *AssistantHandler) Generate(c echo.Context) error {
	var req validator.GenerateRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	content, err := h.orch.Generate(c.Request().Context(), middleware.GetPrincipal(c), req.Prompt, options(req.Options))
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, echo.Map{"content": content})
}

// BatchProcess fills the template per item and completes each prompt in order
// @Summary Batch generate content
// @Tags ai-assistant
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body validator.BatchRequest true "Items and template"
// @Success 200 {object} map[string]interface{} "results"
// @Router /ai-assistant/batch-process [post]
func (h *AssistantHandler) BatchProcess(c echo.Context) error {
	var req validator.BatchRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	results, err := h.orch.BatchGenerate(c.Request().Context(), middleware.GetPrincipal(c), req.Items, req.PromptTemplate, options(req.Options))
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, echo.Map{"results": results})
}
