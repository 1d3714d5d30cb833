// Package orchestrator runs the project workflows: brief analysis, projects,
// discussions, edit suggestions and application, and the CMS and assistant
// operations. Every entry point checks capabilities, then loads records, then
// checks ownership, before any gateway call or write.
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"sitepilot/internal/access"
	"sitepilot/internal/apperr"
	"sitepilot/internal/gateways/llm"
	"sitepilot/internal/gateways/platform"
	"sitepilot/internal/metrics"
	"sitepilot/internal/models"
	"sitepilot/internal/store"
	"sitepilot/internal/utils/logger"
)

// Store is the persistence the workflows need.
type Store interface {
	CreateProject(ctx context.Context, p *models.Project) error
	GetProject(ctx context.Context, id string) (*models.Project, error)
	ListProjects(ctx context.Context, ownerID string) ([]models.Project, error)
	UpdateProject(ctx context.Context, p *models.Project) error
	DeleteProject(ctx context.Context, id string) error
	AppendChange(ctx context.Context, projectID string, change *models.AppliedChange) error
	CreateDiscussion(ctx context.Context, d *models.Discussion) error
	GetDiscussion(ctx context.Context, id string) (*models.Discussion, error)
	ListDiscussions(ctx context.Context, projectID string) ([]models.Discussion, error)
	DeleteDiscussion(ctx context.Context, id string) error
}

// Platform is the website platform gateway.
type Platform interface {
	ListSites(ctx context.Context) (json.RawMessage, error)
	GetSite(ctx context.Context, siteID string) (*platform.Site, error)
	ListPages(ctx context.Context, siteID string) (json.RawMessage, error)
	GetPage(ctx context.Context, pageID string) (json.RawMessage, error)
	UpdatePage(ctx context.Context, pageID string, patch map[string]any) (json.RawMessage, error)
	ListCollections(ctx context.Context, siteID string) (json.RawMessage, error)
	ListItems(ctx context.Context, collectionID string) (json.RawMessage, error)
	CreateItem(ctx context.Context, collectionID string, fields map[string]any) (json.RawMessage, error)
	UpdateItem(ctx context.Context, collectionID, itemID string, fields map[string]any) (json.RawMessage, error)
	PublishSite(ctx context.Context, siteID string, domains []string) (json.RawMessage, error)
}

// Conversation is the transcript service every discussion flow goes through.
type Conversation interface {
	Bootstrap(ctx context.Context, project *models.Project) (models.Message, error)
	Converse(ctx context.Context, d *models.Discussion, userContent string) (string, error)
}

// SummaryReader returns the bytes of an uploaded brief.
type SummaryReader interface {
	Read(ctx context.Context, fileID string) ([]byte, error)
}

type Deps struct {
	Store        Store
	Platform     Platform
	LLM          llm.Completer
	Conversation Conversation
	Summaries    SummaryReader
	Options      llm.Options
}

type Orchestrator struct {
	store     Store
	platform  Platform
	llm       llm.Completer
	conv      Conversation
	summaries SummaryReader
	opts      llm.Options
	now       func() time.Time
	log       *logger.Logger
}

func New(d Deps) *Orchestrator {
	return &Orchestrator{
		store:     d.Store,
		platform:  d.Platform,
		llm:       d.LLM,
		conv:      d.Conversation,
		summaries: d.Summaries,
		opts:      d.Options,
		now:       func() time.Time { return time.Now().UTC() },
		log:       logger.New("orchestrator"),
	}
}

// track records the outcome of a workflow run.
func (o *Orchestrator) track(flow string, err error) {
	result := "success"
	switch {
	case err == nil:
	case apperr.Is(err, apperr.KindAuthorization):
		result = "denied"
	default:
		result = "error"
		if apperr.KindOf(err) != apperr.KindNotFound {
			o.log.Warn("%s failed: %v", flow, err)
		}
	}
	metrics.Workflows.WithLabelValues(flow, result).Inc()
}

// upstream classifies a platform gateway failure.
func upstream(err error) error {
	return apperr.Upstream(err)
}

func storeErr(err error, notFoundMsg string) error {
	if errors.Is(err, store.ErrNotFound) {
		return apperr.NotFound(notFoundMsg)
	}
	return err
}

func (o *Orchestrator) ownedProject(ctx context.Context, p access.Principal, projectID string) (*models.Project, error) {
	project, err := o.store.GetProject(ctx, projectID)
	if err != nil {
		return nil, storeErr(err, "Project not found")
	}
	if err := access.Authorize(p, project.Owner()); err != nil {
		return nil, err
	}
	return project, nil
}

// ownedDiscussion loads a discussion and authorizes the caller against its project's owner.
func (o *Orchestrator) ownedDiscussion(ctx context.Context, p access.Principal, discussionID string) (*models.Discussion, *models.Project, error) {
	d, err := o.store.GetDiscussion(ctx, discussionID)
	if err != nil {
		return nil, nil, storeErr(err, "Discussion not found")
	}
	project, err := o.ownedProject(ctx, p, d.ProjectID)
	if err != nil {
		return nil, nil, err
	}
	return d, project, nil
}
