// Package llm is the gateway to the text completion API.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"sitepilot/internal/apperr"
	"sitepilot/internal/metrics"
	"sitepilot/internal/utils/logger"
)

const anthropicVersion = "2023-06-01"

// Options tune one completion. Zero values fall back to the client defaults.
type Options struct {
	Model       string  `json:"model,omitempty"`
	MaxTokens   int     `json:"maxTokens,omitempty"`
	Temperature float64 `json:"temperature,omitempty"`
}

// Completer turns a prompt into completion text.
type Completer interface {
	Complete(ctx context.Context, prompt string, opts Options) (string, error)
}

type Config struct {
	BaseURL  string
	Defaults Options
	Timeout  time.Duration
}

// Client calls the Anthropic Messages API. Each call is a single attempt.
type Client struct {
	baseURL  string
	defaults Options
	creds    *CredentialCache
	http     *http.Client
	log      *logger.Logger
}

func NewClient(cfg Config, creds *CredentialCache) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.anthropic.com"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Minute
	}
	if cfg.Defaults.MaxTokens <= 0 {
		cfg.Defaults.MaxTokens = 2000
	}
	if cfg.Defaults.Temperature <= 0 {
		cfg.Defaults.Temperature = 0.7
	}
	return &Client{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		defaults: cfg.Defaults,
		creds:    creds,
		http:     &http.Client{Timeout: cfg.Timeout},
		log:      logger.New("llm_gateway"),
	}
}

type messagesRequest struct {
	Model       string           `json:"model"`
	MaxTokens   int              `json:"max_tokens"`
	Temperature float64          `json:"temperature"`
	Messages    []requestMessage `json:"messages"`
}

type requestMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
}

type errorResponse struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// APIError is a non-200 answer from the completion API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("completion API returned %d: %s", e.StatusCode, e.Message)
}

func (c *Client) resolve(opts Options) Options {
	if opts.Model == "" {
		opts.Model = c.defaults.Model
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = c.defaults.MaxTokens
	}
	if opts.Temperature <= 0 {
		opts.Temperature = c.defaults.Temperature
	}
	return opts
}

// Complete sends prompt as a single user turn and returns the text of the reply.
// Every failure is classified as upstream unavailability.
func (c *Client) Complete(ctx context.Context, prompt string, opts Options) (string, error) {
	start := time.Now()
	text, err := c.complete(ctx, prompt, c.resolve(opts))
	metrics.LLMDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.LLMCompletions.WithLabelValues("error").Inc()
		c.log.Warn("Completion failed: %v", err)
		return "", apperr.Upstream(err)
	}
	metrics.LLMCompletions.WithLabelValues("success").Inc()
	return text, nil
}

func (c *Client) complete(ctx context.Context, prompt string, opts Options) (string, error) {
	key, err := c.creds.Get(ctx)
	if err != nil {
		return "", err
	}

	payload, err := json.Marshal(messagesRequest{
		Model:       opts.Model,
		MaxTokens:   opts.MaxTokens,
		Temperature: opts.Temperature,
		Messages:    []requestMessage{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/messages", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", key)
	req.Header.Set("Anthropic-Version", anthropicVersion)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		if resp.StatusCode == http.StatusUnauthorized {
			c.creds.Invalidate()
		}
		var errResp errorResponse
		if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Message != "" {
			return "", &APIError{StatusCode: resp.StatusCode, Message: errResp.Error.Message}
		}
		return "", &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(body))}
	}

	var parsed messagesResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}

	var text strings.Builder
	for _, block := range parsed.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return "", fmt.Errorf("empty response from API")
	}
	return text.String(), nil
}
