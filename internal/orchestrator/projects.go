package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"gorm.io/datatypes"

	"sitepilot/internal/access"
	"sitepilot/internal/apperr"
	"sitepilot/internal/metrics"
	"sitepilot/internal/models"
	"sitepilot/internal/permissions"
)

const analysisPrompt = `Analyze this project summary and extract the following information:
1. Project name and brief description
2. Target audience
3. Key messaging points
4. Brand tone and voice
5. Color preferences (if mentioned)
6. Content structure needs

Format your response as a JSON object with these keys: projectName, description, targetAudience, keyMessages, brandTone, colorPreferences, contentStructure.
Only respond with valid JSON, nothing else. If information is not available, use null or empty arrays.

Here's the project summary:
%s`

// AnalyzeSummary asks the LLM for a structured reading of an uploaded brief.
// An unparseable reply yields the generic fallback analysis, not an error.
func (o *Orchestrator) AnalyzeSummary(ctx context.Context, p access.Principal, fileID string) (analysis *models.Analysis, err error) {
	defer func() { o.track("analyze_summary", err) }()

	if err := access.Require(p, permissions.AIAssist); err != nil {
		return nil, err
	}
	if strings.TrimSpace(fileID) == "" {
		return nil, apperr.Invalid("fileId is required")
	}

	data, err := o.summaries.Read(ctx, fileID)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, apperr.NotFound("Summary file not found")
	}
	if err != nil {
		return nil, fmt.Errorf("read summary %s: %w", fileID, err)
	}
	source := string(data)

	reply, err := o.llm.Complete(ctx, fmt.Sprintf(analysisPrompt, source), o.opts)
	if err != nil {
		return nil, err
	}

	result, ok := parseAnalysis(reply)
	if !ok {
		o.log.Warn("Analysis reply for %s was not valid JSON, using fallback", fileID)
		metrics.AIOutputFallbacks.WithLabelValues("analysis").Inc()
		result = fallbackAnalysis(source)
	}
	return &result, nil
}

// ProjectInput describes a new project.
type ProjectInput struct {
	Name        string
	Summary     string
	SiteID      string
	Analysis    *models.Analysis
	SummaryFile *models.SummaryFile
}

func (o *Orchestrator) CreateProject(ctx context.Context, p access.Principal, in ProjectInput) (project *models.Project, err error) {
	defer func() { o.track("create_project", err) }()

	if err := access.Require(p, permissions.Write); err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.Name) == "" || strings.TrimSpace(in.SiteID) == "" {
		return nil, apperr.Invalid("name and siteId are required")
	}

	project = &models.Project{
		Name:        in.Name,
		Summary:     in.Summary,
		SiteID:      in.SiteID,
		CreatedBy:   p.ID,
		SummaryFile: datatypes.NewJSONType(in.SummaryFile),
	}
	if in.Analysis != nil {
		project.Analysis = datatypes.NewJSONType(*in.Analysis)
	}
	if err := o.store.CreateProject(ctx, project); err != nil {
		return nil, err
	}
	project.DiscussionIDs = []string{}
	project.AppliedChanges = []models.AppliedChange{}
	o.log.Info("Project %s created by %s", project.ID, p.ID)
	return project, nil
}

// ListProjects returns the caller's projects, most recently updated first.
func (o *Orchestrator) ListProjects(ctx context.Context, p access.Principal) ([]models.Project, error) {
	if err := access.Require(p, permissions.Read); err != nil {
		return nil, err
	}
	return o.store.ListProjects(ctx, p.ID)
}

func (o *Orchestrator) GetProject(ctx context.Context, p access.Principal, id string) (*models.Project, error) {
	if err := access.Require(p, permissions.Read); err != nil {
		return nil, err
	}
	return o.ownedProject(ctx, p, id)
}

// ProjectPatch holds the fields to change; nil fields are left as they are.
type ProjectPatch struct {
	Name     *string
	Summary  *string
	SiteID   *string
	Analysis *models.Analysis
}

func (o *Orchestrator) UpdateProject(ctx context.Context, p access.Principal, id string, patch ProjectPatch) (project *models.Project, err error) {
	defer func() { o.track("update_project", err) }()

	if err := access.Require(p, permissions.Write); err != nil {
		return nil, err
	}
	project, err = o.ownedProject(ctx, p, id)
	if err != nil {
		return nil, err
	}

	if patch.Name != nil {
		if strings.TrimSpace(*patch.Name) == "" {
			return nil, apperr.Invalid("name must not be empty")
		}
		project.Name = *patch.Name
	}
	if patch.Summary != nil {
		project.Summary = *patch.Summary
	}
	if patch.SiteID != nil {
		if strings.TrimSpace(*patch.SiteID) == "" {
			return nil, apperr.Invalid("siteId must not be empty")
		}
		project.SiteID = *patch.SiteID
	}
	if patch.Analysis != nil {
		project.Analysis = datatypes.NewJSONType(*patch.Analysis)
	}

	if err := o.store.UpdateProject(ctx, project); err != nil {
		return nil, storeErr(err, "Project not found")
	}
	return project, nil
}

// DeleteProject removes the project together with its discussions, their
// messages and its change history. Only ownership is checked.
func (o *Orchestrator) DeleteProject(ctx context.Context, p access.Principal, id string) (err error) {
	defer func() { o.track("delete_project", err) }()

	if _, err := o.ownedProject(ctx, p, id); err != nil {
		return err
	}
	if err := o.store.DeleteProject(ctx, id); err != nil {
		return storeErr(err, "Project not found")
	}
	o.log.Info("Project %s deleted by %s", id, p.ID)
	return nil
}
