package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"sitepilot/internal/access"
	"sitepilot/internal/apperr"
	"sitepilot/internal/metrics"
	"sitepilot/internal/models"
	"sitepilot/internal/permissions"
)

// OpenDiscussion starts a discussion on a project, seeded with the bootstrap
// context message. The discussion and its first message are stored atomically.
func (o *Orchestrator) OpenDiscussion(ctx context.Context, p access.Principal, projectID, title string) (d *models.Discussion, err error) {
	defer func() { o.track("open_discussion", err) }()

	project, err := o.ownedProject(ctx, p, projectID)
	if err != nil {
		return nil, err
	}

	seed, err := o.conv.Bootstrap(ctx, project)
	if err != nil {
		return nil, upstream(err)
	}

	if strings.TrimSpace(title) == "" {
		title = models.DefaultDiscussionTitle
	}
	d = &models.Discussion{
		ProjectID:  project.ID,
		Title:      title,
		CreatedBy:  p.ID,
		LastActive: seed.Timestamp,
		Messages:   []models.Message{seed},
	}
	if err := o.store.CreateDiscussion(ctx, d); err != nil {
		return nil, storeErr(err, "Project not found")
	}
	return d, nil
}

func (o *Orchestrator) ListDiscussions(ctx context.Context, p access.Principal, projectID string) ([]models.Discussion, error) {
	if err := access.Require(p, permissions.Read); err != nil {
		return nil, err
	}
	if _, err := o.ownedProject(ctx, p, projectID); err != nil {
		return nil, err
	}
	return o.store.ListDiscussions(ctx, projectID)
}

func (o *Orchestrator) GetDiscussion(ctx context.Context, p access.Principal, id string) (*models.Discussion, error) {
	if err := access.Require(p, permissions.Read); err != nil {
		return nil, err
	}
	d, _, err := o.ownedDiscussion(ctx, p, id)
	return d, err
}

// Chat sends a free-form message in a discussion and returns the assistant's reply.
func (o *Orchestrator) Chat(ctx context.Context, p access.Principal, id, message string) (reply string, err error) {
	defer func() { o.track("chat", err) }()

	if err := access.Require(p, permissions.AIAssist); err != nil {
		return "", err
	}
	if strings.TrimSpace(message) == "" {
		return "", apperr.Invalid("message is required")
	}
	d, _, err := o.ownedDiscussion(ctx, p, id)
	if err != nil {
		return "", err
	}
	return o.conv.Converse(ctx, d, message)
}

// SuggestionResult carries the parsed suggestions and the reply they came from.
type SuggestionResult struct {
	Suggestions []Suggestion `json:"suggestions"`
	RawResponse string       `json:"rawResponse"`
}

const suggestEditsPrompt = `Here is the current content of the page element (%s) on page %s:
%s

Suggest exactly three improvements to this %s that fit the project goals.
Respond with a JSON array of three objects, each with the keys "description", "content" and "rationale":
- description: a short summary of the change
- content: the full replacement content
- rationale: why the change supports the project goals`

// SuggestEdits asks for three edit proposals for a page element. A reply
// without a parseable array yields no suggestions, not an error.
func (o *Orchestrator) SuggestEdits(ctx context.Context, p access.Principal, id, pageID, elementType string) (result *SuggestionResult, err error) {
	defer func() { o.track("suggest_edits", err) }()

	if err := access.Require(p, permissions.AIAssist); err != nil {
		return nil, err
	}
	if pageID == "" {
		return nil, apperr.Invalid("pageId is required")
	}
	if elementType == "" {
		elementType = "content"
	}
	d, _, err := o.ownedDiscussion(ctx, p, id)
	if err != nil {
		return nil, err
	}

	page, err := o.platform.GetPage(ctx, pageID)
	if err != nil {
		return nil, upstream(err)
	}

	reply, err := o.conv.Converse(ctx, d, fmt.Sprintf(suggestEditsPrompt, elementType, pageID, page, elementType))
	if err != nil {
		return nil, err
	}

	suggestions, ok := parseSuggestions(reply)
	if !ok {
		o.log.Warn("Suggestion reply in discussion %s had no JSON array", id)
		metrics.AIOutputFallbacks.WithLabelValues("suggestions").Inc()
	}
	return &SuggestionResult{Suggestions: suggestions, RawResponse: reply}, nil
}

// EditInput is a content change to push to a page.
type EditInput struct {
	PageID          string
	Content         string
	Description     string
	Element         string
	PreviousContent *string
}

// ApplyResult is the outcome of a successful ApplyEdit.
type ApplyResult struct {
	Change       models.AppliedChange `json:"change"`
	Confirmation string               `json:"confirmation"`
}

const applyEditPrompt = `I've applied the following change to page %s:
%s

New content:
%s

Please confirm the change and note any follow-up improvements.`

// ApplyEdit pushes a change to the platform, records it on the project and
// confirms it in the discussion. Nothing is recorded when the platform update
// fails; a failure after the update is reported as a partial workflow.
func (o *Orchestrator) ApplyEdit(ctx context.Context, p access.Principal, id string, in EditInput) (result *ApplyResult, err error) {
	defer func() { o.track("apply_edit", err) }()

	if err := access.Require(p, permissions.Write, permissions.AIAssist); err != nil {
		return nil, err
	}
	if in.PageID == "" || in.Content == "" {
		return nil, apperr.Invalid("pageId and content are required")
	}
	d, project, err := o.ownedDiscussion(ctx, p, id)
	if err != nil {
		return nil, err
	}

	if _, err := o.platform.UpdatePage(ctx, in.PageID, map[string]any{"content": in.Content}); err != nil {
		return nil, upstream(err)
	}

	change := models.AppliedChange{
		Timestamp:       o.now(),
		Description:     in.Description,
		Element:         in.Element,
		Content:         in.Content,
		PreviousContent: in.PreviousContent,
	}
	if err := o.store.AppendChange(ctx, project.ID, &change); err != nil {
		return nil, apperr.Partial("Page was updated but the change was not recorded", err)
	}

	description := in.Description
	if description == "" {
		description = "Content update"
	}
	confirmation, err := o.conv.Converse(ctx, d, fmt.Sprintf(applyEditPrompt, in.PageID, description, in.Content))
	if err != nil {
		return nil, apperr.Partial("Page was updated and recorded but the discussion was not updated", err)
	}

	o.log.Info("Applied edit to page %s for project %s", in.PageID, project.ID)
	return &ApplyResult{Change: change, Confirmation: confirmation}, nil
}

const audiencePrompt = `Review the website "%s" from the perspective of this audience: %s

The site has these pages: %s

Describe how this audience is likely to perceive the site, what will resonate with them, what may confuse or put them off, and which changes would serve them better.`

// AudiencePerspective reviews the live site from the viewpoint of an audience.
func (o *Orchestrator) AudiencePerspective(ctx context.Context, p access.Principal, id, audience string) (reply string, err error) {
	defer func() { o.track("audience_perspective", err) }()

	if err := access.Require(p, permissions.AIAssist); err != nil {
		return "", err
	}
	if strings.TrimSpace(audience) == "" {
		return "", apperr.Invalid("audience is required")
	}
	d, project, err := o.ownedDiscussion(ctx, p, id)
	if err != nil {
		return "", err
	}

	site, err := o.platform.GetSite(ctx, project.SiteID)
	if err != nil {
		return "", upstream(err)
	}
	pages, err := o.platform.ListPages(ctx, project.SiteID)
	if err != nil {
		return "", upstream(err)
	}
	titles := pageTitles(pages)
	pageList := "unknown"
	if len(titles) > 0 {
		pageList = strings.Join(titles, ", ")
	}

	return o.conv.Converse(ctx, d, fmt.Sprintf(audiencePrompt, site.DisplayName(), audience, pageList))
}

const abTestPrompt = `Here is the current content of page %s:
%s

Propose an A/B test for this page with the goal: %s
Describe the hypothesis, the variant to test against the current version, the metric to measure and how long the test should run.`

// ABTest proposes an A/B test for a page towards a goal.
func (o *Orchestrator) ABTest(ctx context.Context, p access.Principal, id, pageID, goal string) (reply string, err error) {
	defer func() { o.track("ab_test", err) }()

	if err := access.Require(p, permissions.AIAssist); err != nil {
		return "", err
	}
	if pageID == "" || strings.TrimSpace(goal) == "" {
		return "", apperr.Invalid("pageId and goal are required")
	}
	d, _, err := o.ownedDiscussion(ctx, p, id)
	if err != nil {
		return "", err
	}

	page, err := o.platform.GetPage(ctx, pageID)
	if err != nil {
		return "", upstream(err)
	}
	return o.conv.Converse(ctx, d, fmt.Sprintf(abTestPrompt, pageID, page, goal))
}

// DeleteDiscussion removes a discussion and its messages. Only ownership is checked.
func (o *Orchestrator) DeleteDiscussion(ctx context.Context, p access.Principal, id string) (err error) {
	defer func() { o.track("delete_discussion", err) }()

	if _, _, err := o.ownedDiscussion(ctx, p, id); err != nil {
		return err
	}
	return storeErr(o.store.DeleteDiscussion(ctx, id), "Discussion not found")
}
