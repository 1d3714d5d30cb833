package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"sitepilot/internal/access"
	"sitepilot/internal/apperr"
	"sitepilot/internal/gateways/llm"
	"sitepilot/internal/permissions"
)

// Sites lists the sites visible to the platform token.
func (o *Orchestrator) Sites(ctx context.Context, p access.Principal) (json.RawMessage, error) {
	if err := access.Require(p, permissions.Read); err != nil {
		return nil, err
	}
	raw, err := o.platform.ListSites(ctx)
	return raw, upstream(err)
}

func (o *Orchestrator) Site(ctx context.Context, p access.Principal, siteID string) (json.RawMessage, error) {
	if err := access.Require(p, permissions.Read); err != nil {
		return nil, err
	}
	site, err := o.platform.GetSite(ctx, siteID)
	if err != nil {
		return nil, upstream(err)
	}
	return site.Raw, nil
}

func (o *Orchestrator) Pages(ctx context.Context, p access.Principal, siteID string) (json.RawMessage, error) {
	if err := access.Require(p, permissions.Read); err != nil {
		return nil, err
	}
	raw, err := o.platform.ListPages(ctx, siteID)
	return raw, upstream(err)
}

func (o *Orchestrator) Page(ctx context.Context, p access.Principal, pageID string) (json.RawMessage, error) {
	if err := access.Require(p, permissions.Read); err != nil {
		return nil, err
	}
	raw, err := o.platform.GetPage(ctx, pageID)
	return raw, upstream(err)
}

func (o *Orchestrator) UpdatePage(ctx context.Context, p access.Principal, pageID string, patch map[string]any) (json.RawMessage, error) {
	if err := access.Require(p, permissions.Write); err != nil {
		return nil, err
	}
	raw, err := o.platform.UpdatePage(ctx, pageID, patch)
	return raw, upstream(err)
}

func (o *Orchestrator) Collections(ctx context.Context, p access.Principal, siteID string) (json.RawMessage, error) {
	if err := access.Require(p, permissions.Read); err != nil {
		return nil, err
	}
	raw, err := o.platform.ListCollections(ctx, siteID)
	return raw, upstream(err)
}

func (o *Orchestrator) Items(ctx context.Context, p access.Principal, collectionID string) (json.RawMessage, error) {
	if err := access.Require(p, permissions.Read); err != nil {
		return nil, err
	}
	raw, err := o.platform.ListItems(ctx, collectionID)
	return raw, upstream(err)
}

// CreateItem adds a collection item. A retried call may create a duplicate.
func (o *Orchestrator) CreateItem(ctx context.Context, p access.Principal, collectionID string, fields map[string]any) (json.RawMessage, error) {
	if err := access.Require(p, permissions.Write); err != nil {
		return nil, err
	}
	raw, err := o.platform.CreateItem(ctx, collectionID, fields)
	return raw, upstream(err)
}

func (o *Orchestrator) UpdateItem(ctx context.Context, p access.Principal, collectionID, itemID string, fields map[string]any) (json.RawMessage, error) {
	if err := access.Require(p, permissions.Write); err != nil {
		return nil, err
	}
	raw, err := o.platform.UpdateItem(ctx, collectionID, itemID, fields)
	return raw, upstream(err)
}

func (o *Orchestrator) Publish(ctx context.Context, p access.Principal, siteID string, domains []string) (raw json.RawMessage, err error) {
	defer func() { o.track("publish", err) }()

	if err := access.Require(p, permissions.Publish); err != nil {
		return nil, err
	}
	raw, err = o.platform.PublishSite(ctx, siteID, domains)
	if err != nil {
		return nil, upstream(err)
	}
	o.log.Info("Site %s published by %s", siteID, p.ID)
	return raw, nil
}

// BlogBrief describes a generated CMS post.
type BlogBrief struct {
	Title    string
	Keywords []string
	Tone     string
	Length   int
}

const blogPostPrompt = `Create a blog post titled "%s".
Include these keywords: %s.
The tone should be %s.
Length should be approximately %d words.`

// GenerateCMSItem writes a blog post with the LLM and stores it as a new collection item.
func (o *Orchestrator) GenerateCMSItem(ctx context.Context, p access.Principal, collectionID string, brief BlogBrief) (raw json.RawMessage, err error) {
	defer func() { o.track("generate_cms_item", err) }()

	if err := access.Require(p, permissions.Write, permissions.AIAssist); err != nil {
		return nil, err
	}
	if strings.TrimSpace(brief.Title) == "" {
		return nil, apperr.Invalid("title is required")
	}
	if brief.Tone == "" {
		brief.Tone = "professional"
	}
	if brief.Length <= 0 {
		brief.Length = 800
	}

	prompt := fmt.Sprintf(blogPostPrompt, brief.Title, strings.Join(brief.Keywords, ", "), brief.Tone, brief.Length)
	content, err := o.llm.Complete(ctx, prompt, o.opts)
	if err != nil {
		return nil, err
	}

	raw, err = o.platform.CreateItem(ctx, collectionID, map[string]any{
		"title":        brief.Title,
		"content":      content,
		"publish-date": o.now().Format("2006-01-02T15:04:05.000Z07:00"),
	})
	if err != nil {
		return nil, upstream(err)
	}
	return raw, nil
}

// Generate runs a single free-form completion.
func (o *Orchestrator) Generate(ctx context.Context, p access.Principal, prompt string, opts llm.Options) (text string, err error) {
	defer func() { o.track("generate", err) }()

	if err := access.Require(p, permissions.AIAssist); err != nil {
		return "", err
	}
	if strings.TrimSpace(prompt) == "" {
		return "", apperr.Invalid("prompt is required")
	}
	return o.llm.Complete(ctx, prompt, o.merge(opts))
}

// BatchResult is the completion for one batch item.
type BatchResult struct {
	ItemID           any    `json:"itemId"`
	GeneratedContent string `json:"generatedContent"`
}

// BatchGenerate fills the template from each item and completes the prompts in
// order. The first failure aborts the batch.
func (o *Orchestrator) BatchGenerate(ctx context.Context, p access.Principal, items []map[string]any, template string, opts llm.Options) (results []BatchResult, err error) {
	defer func() { o.track("batch_generate", err) }()

	if err := access.Require(p, permissions.AIAssist, permissions.BulkOperations); err != nil {
		return nil, err
	}
	if strings.TrimSpace(template) == "" {
		return nil, apperr.Invalid("promptTemplate is required")
	}

	opts = o.merge(opts)
	results = make([]BatchResult, 0, len(items))
	for _, item := range items {
		content, err := o.llm.Complete(ctx, fillTemplate(template, item), opts)
		if err != nil {
			return nil, err
		}
		results = append(results, BatchResult{ItemID: item["id"], GeneratedContent: content})
	}
	return results, nil
}

// merge fills unset per-call options from the configured defaults.
func (o *Orchestrator) merge(opts llm.Options) llm.Options {
	if opts.Model == "" {
		opts.Model = o.opts.Model
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = o.opts.MaxTokens
	}
	if opts.Temperature <= 0 {
		opts.Temperature = o.opts.Temperature
	}
	return opts
}
