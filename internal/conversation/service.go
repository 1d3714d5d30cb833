package conversation

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"sitepilot/internal/gateways/llm"
	"sitepilot/internal/gateways/platform"
	"sitepilot/internal/models"
	"sitepilot/internal/utils/logger"
)

// Repository persists transcript turns.
type Repository interface {
	AppendMessages(ctx context.Context, discussionID string, msgs ...models.Message) error
}

// SiteFetcher reads live site details for the bootstrap message.
type SiteFetcher interface {
	GetSite(ctx context.Context, siteID string) (*platform.Site, error)
}

type Service struct {
	repo  Repository
	sites SiteFetcher
	llm   llm.Completer
	opts  llm.Options
	now   func() time.Time
	log   *logger.Logger
}

func NewService(repo Repository, sites SiteFetcher, completer llm.Completer, opts llm.Options) *Service {
	return &Service{
		repo:  repo,
		sites: sites,
		llm:   completer,
		opts:  opts,
		now:   func() time.Time { return time.Now().UTC() },
		log:   logger.New("conversation"),
	}
}

// Bootstrap builds the system message that grounds every later turn of a new discussion.
// The site is fetched once here and never refreshed for the discussion's lifetime.
func (s *Service) Bootstrap(ctx context.Context, project *models.Project) (models.Message, error) {
	site, err := s.sites.GetSite(ctx, project.SiteID)
	if err != nil {
		return models.Message{}, err
	}

	analysis, err := json.MarshalIndent(project.Analysis.Data(), "", "  ")
	if err != nil {
		return models.Message{}, fmt.Errorf("encode analysis: %w", err)
	}

	content := fmt.Sprintf(`You are assisting with a Webflow website project based on the following analysis:
%s

The site is "%s" and its ID is: %s

Provide helpful recommendations about content, design, and structure.
When suggesting changes, explain your reasoning and how it aligns with the project goals.
Be specific in your recommendations and reference the project context.`, analysis, site.DisplayName(), project.SiteID)

	return models.Message{Role: models.RoleSystem, Content: content, Timestamp: s.now()}, nil
}

// AppendTurn adds one message to the end of the transcript.
func (s *Service) AppendTurn(ctx context.Context, d *models.Discussion, role models.MessageRole, content string) (models.Message, error) {
	msg := models.Message{DiscussionID: d.ID, Role: role, Content: content, Timestamp: s.now()}
	if err := s.repo.AppendMessages(ctx, d.ID, msg); err != nil {
		return models.Message{}, err
	}
	d.Messages = append(d.Messages, msg)
	d.LastActive = msg.Timestamp
	return msg, nil
}

// Converse sends userContent in the context of the whole transcript and returns
// the reply. The user and assistant turns are stored together, and only when
// the completion succeeds.
func (s *Service) Converse(ctx context.Context, d *models.Discussion, userContent string) (string, error) {
	user := models.Message{DiscussionID: d.ID, Role: models.RoleUser, Content: userContent, Timestamp: s.now()}

	transcript := make([]models.Message, 0, len(d.Messages)+1)
	transcript = append(transcript, d.Messages...)
	transcript = append(transcript, user)

	reply, err := s.llm.Complete(ctx, Fold(transcript), s.opts)
	if err != nil {
		return "", err
	}

	assistant := models.Message{DiscussionID: d.ID, Role: models.RoleAssistant, Content: reply, Timestamp: s.now()}
	if err := s.repo.AppendMessages(ctx, d.ID, user, assistant); err != nil {
		return "", s.log.Error("Failed to store turn for discussion %s", err, d.ID)
	}
	d.Messages = append(d.Messages, user, assistant)
	d.LastActive = assistant.Timestamp
	return reply, nil
}
