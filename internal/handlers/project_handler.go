package handlers

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"sitepilot/internal/api/middleware"
	"sitepilot/internal/api/validator"
	"sitepilot/internal/models"
	"sitepilot/internal/orchestrator"
)

type ProjectHandler struct {
	orch *orchestrator.Orchestrator
}

func NewProjectHandler(orch *orchestrator.Orchestrator) *ProjectHandler {
	return &ProjectHandler{orch: orch}
}

// List returns the caller's projects
// @Summary List projects
// @Tags projects
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string]interface{} "projects"
// @Router /projects [get]
func (h *ProjectHandler) List(c echo.Context) error {
	projects, err := h.orch.ListProjects(c.Request().Context(), middleware.GetPrincipal(c))
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, echo.Map{"projects": projects})
}

// Get returns one project with its discussions and change history
// @Summary Get a project
// @Tags projects
// @Produce json
// @Security BearerAuth
// @Param projectId path string true "Project ID"
// @Success 200 {object} map[string]interface{} "project"
// @Failure 403 {object} map[string]interface{} "Access denied"
// @Failure 404 {object} map[string]interface{} "Project not found"
// @Router /projects/{projectId} [get]
func (h *ProjectHandler) Get(c echo.Context) error {
	project, err := h.orch.GetProject(c.Request().Context(), middleware.GetPrincipal(c), c.Param("projectId"))
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, echo.Map{"project": project})
}

// Analyze reads an uploaded brief into a structured analysis
// @Summary Analyze a project summary
// @Tags projects
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body validator.AnalyzeRequest true "Uploaded file"
// @Success 200 {object} map[string]interface{} "analysis"
// @Router /projects/analyze [post]
func (h *ProjectHandler) Analyze(c echo.Context) error {
	var req validator.AnalyzeRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	analysis, err := h.orch.AnalyzeSummary(c.Request().Context(), middleware.GetPrincipal(c), req.FileID)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, echo.Map{"analysis": analysis})
}

// Create stores a new project
// @Summary Create a project
// @Tags projects
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body validator.ProjectRequest true "Project"
// @Success 201 {object} map[string]interface{} "project"
// @Router /projects [post]
func (h *ProjectHandler) Create(c echo.Context) error {
	var req validator.ProjectRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	in := orchestrator.ProjectInput{
		Name:     req.Name,
		Summary:  req.Summary,
		SiteID:   req.SiteID,
		Analysis: req.Analysis,
	}
	if req.FileInfo != nil && req.FileInfo.FileID != "" {
		in.SummaryFile = &models.SummaryFile{
			FileID:       req.FileInfo.FileID,
			OriginalName: req.FileInfo.OriginalName,
			ContentType:  req.FileInfo.ContentType,
			Size:         req.FileInfo.Size,
			UploadDate:   time.Now().UTC(),
		}
	}

	project, err := h.orch.CreateProject(c.Request().Context(), middleware.GetPrincipal(c), in)
	if err != nil {
		return err
	}
	return respond(c, http.StatusCreated, echo.Map{"project": project})
}

// Update changes a project's name, summary or site
// @Summary Update a project
// @Tags projects
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param projectId path string true "Project ID"
// @Param request body validator.ProjectUpdateRequest true "Fields to change"
// @Success 200 {object} map[string]interface{} "project"
// @Router /projects/{projectId} [put]
func (h *ProjectHandler) Update(c echo.Context) error {
	var req validator.ProjectUpdateRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	project, err := h.orch.UpdateProject(c.Request().Context(), middleware.GetPrincipal(c), c.Param("projectId"),
		orchestrator.ProjectPatch{Name: req.Name, Summary: req.Summary, SiteID: req.SiteID})
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, echo.Map{"project": project})
}

// Delete removes a project with its discussions and history
// @Summary Delete a project
// @Tags projects
// @Produce json
// @Security BearerAuth
// @Param projectId path string true "Project ID"
// @Success 200 {object} map[string]interface{} "Project deleted successfully"
// @Router /projects/{projectId} [delete]
func (h *ProjectHandler) Delete(c echo.Context) error {
	if err := h.orch.DeleteProject(c.Request().Context(), middleware.GetPrincipal(c), c.Param("projectId")); err != nil {
		return err
	}
	return respond(c, http.StatusOK, echo.Map{"message": "Project deleted successfully"})
}
