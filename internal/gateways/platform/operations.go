package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// Site is the subset of a site document the service reads; Raw keeps the full payload.
type Site struct {
	ID        string          `json:"_id"`
	Name      string          `json:"name"`
	ShortName string          `json:"shortName"`
	Raw       json.RawMessage `json:"-"`
}

// DisplayName returns the human name of the site.
func (s *Site) DisplayName() string {
	if s.Name != "" {
		return s.Name
	}
	if s.ShortName != "" {
		return s.ShortName
	}
	return s.ID
}

func (c *Client) ListSites(ctx context.Context) (json.RawMessage, error) {
	return c.do(ctx, "list_sites", http.MethodGet, "/sites", nil)
}

func (c *Client) GetSite(ctx context.Context, siteID string) (*Site, error) {
	raw, err := c.do(ctx, "get_site", http.MethodGet, pathf("/sites/%s", siteID), nil)
	if err != nil {
		return nil, err
	}
	site := &Site{Raw: raw}
	if err := json.Unmarshal(raw, site); err != nil {
		return nil, fmt.Errorf("decode site %s: %w", siteID, err)
	}
	if site.ID == "" {
		site.ID = siteID
	}
	return site, nil
}

func (c *Client) ListPages(ctx context.Context, siteID string) (json.RawMessage, error) {
	return c.do(ctx, "list_pages", http.MethodGet, pathf("/sites/%s/pages", siteID), nil)
}

func (c *Client) GetPage(ctx context.Context, pageID string) (json.RawMessage, error) {
	return c.do(ctx, "get_page", http.MethodGet, pathf("/pages/%s", pageID), nil)
}

func (c *Client) UpdatePage(ctx context.Context, pageID string, patch map[string]any) (json.RawMessage, error) {
	return c.do(ctx, "update_page", http.MethodPatch, pathf("/pages/%s", pageID), patch)
}

func (c *Client) ListCollections(ctx context.Context, siteID string) (json.RawMessage, error) {
	return c.do(ctx, "list_collections", http.MethodGet, pathf("/sites/%s/collections", siteID), nil)
}

func (c *Client) ListItems(ctx context.Context, collectionID string) (json.RawMessage, error) {
	return c.do(ctx, "list_items", http.MethodGet, pathf("/collections/%s/items", collectionID), nil)
}

// CreateItem is retried under the same conditions as every other call, so a
// retry after a lost response can create a duplicate item.
func (c *Client) CreateItem(ctx context.Context, collectionID string, fields map[string]any) (json.RawMessage, error) {
	body := map[string]any{"fields": fields}
	return c.do(ctx, "create_item", http.MethodPost, pathf("/collections/%s/items", collectionID), body)
}

func (c *Client) UpdateItem(ctx context.Context, collectionID, itemID string, fields map[string]any) (json.RawMessage, error) {
	body := map[string]any{"fields": fields}
	return c.do(ctx, "update_item", http.MethodPut, pathf("/collections/%s/items/%s", collectionID, itemID), body)
}

func (c *Client) PublishSite(ctx context.Context, siteID string, domains []string) (json.RawMessage, error) {
	if domains == nil {
		domains = []string{}
	}
	body := map[string]any{"domains": domains}
	return c.do(ctx, "publish_site", http.MethodPost, pathf("/sites/%s/publish", siteID), body)
}
