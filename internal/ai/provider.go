// Package ai talks to hosted text-generation APIs to produce dashboard
// insights
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/a2s-dz/gestion/internal/config"
)

// ErrNotConfigured is returned when no provider or key is set
var ErrNotConfigured = errors.New("ai provider not configured")

const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
	ProviderMistral   = "mistral"

	anthropicVersion = "2023-06-01"
	maxTokens        = 1024
)

var defaults = map[string]struct{ baseURL, model string }{
	ProviderAnthropic: {"https://api.anthropic.com", "claude-3-5-haiku-latest"},
	ProviderOpenAI:    {"https://api.openai.com", "gpt-4o-mini"},
	ProviderMistral:   {"https://api.mistral.ai", "mistral-small-latest"},
}

// Provider completes a prompt
type Provider interface {
	Name() string
	Complete(ctx context.Context, system, prompt string) (string, error)
}

// NewProvider builds the provider named in cfg. It returns ErrNotConfigured
// when the provider or the key is missing.
func NewProvider(cfg config.AIConfig) (Provider, error) {
	name := strings.ToLower(strings.TrimSpace(cfg.Provider))
	if name == "" || cfg.APIKey == "" {
		return nil, ErrNotConfigured
	}
	d, ok := defaults[name]
	if !ok {
		return nil, fmt.Errorf("unknown ai provider %q", cfg.Provider)
	}

	c := client{
		name:    name,
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    &http.Client{Timeout: cfg.Timeout},
	}
	if c.model == "" {
		c.model = d.model
	}
	if c.baseURL == "" {
		c.baseURL = d.baseURL
	}
	if c.http.Timeout <= 0 {
		c.http.Timeout = 30 * time.Second
	}

	if name == ProviderAnthropic {
		return &anthropic{c}, nil
	}
	// OpenAI and Mistral share the chat completions schema
	return &chatCompletions{c}, nil
}

type client struct {
	name    string
	apiKey  string
	model   string
	baseURL string
	http    *http.Client
}

func (c *client) Name() string { return c.name }

// post sends body as JSON and decodes a 2xx reply into out
func (c *client) post(ctx context.Context, path string, headers map[string]string, body, out interface{}) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s request failed: %w", c.name, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%s returned status %d: %s", c.name, resp.StatusCode, truncate(string(raw), 200))
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to parse %s response: %w", c.name, err)
	}
	return nil
}

// -----------------------------------------------------------------------------
// Anthropic messages API
// -----------------------------------------------------------------------------

type anthropic struct{ client }

type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	System    string             `json:"system,omitempty"`
	Messages  []anthropicMessage `json:"messages"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

func (a *anthropic) Complete(ctx context.Context, system, prompt string) (string, error) {
	var out anthropicResponse
	err := a.post(ctx, "/v1/messages", map[string]string{
		"x-api-key":         a.apiKey,
		"anthropic-version": anthropicVersion,
	}, anthropicRequest{
		Model:     a.model,
		MaxTokens: maxTokens,
		System:    system,
		Messages:  []anthropicMessage{{Role: "user", Content: prompt}},
	}, &out)
	if err != nil {
		return "", err
	}
	for _, block := range out.Content {
		if block.Type == "text" && block.Text != "" {
			return block.Text, nil
		}
	}
	return "", errors.New("empty response from anthropic")
}

// -----------------------------------------------------------------------------
// OpenAI-compatible chat completions (OpenAI, Mistral)
// -----------------------------------------------------------------------------

type chatCompletions struct{ client }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model     string        `json:"model"`
	MaxTokens int           `json:"max_tokens"`
	Messages  []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func (c *chatCompletions) Complete(ctx context.Context, system, prompt string) (string, error) {
	messages := []chatMessage{{Role: "user", Content: prompt}}
	if system != "" {
		messages = append([]chatMessage{{Role: "system", Content: system}}, messages...)
	}
	var out chatResponse
	err := c.post(ctx, "/v1/chat/completions", map[string]string{
		"Authorization": "Bearer " + c.apiKey,
	}, chatRequest{Model: c.model, MaxTokens: maxTokens, Messages: messages}, &out)
	if err != nil {
		return "", err
	}
	if len(out.Choices) == 0 || out.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("empty response from %s", c.name)
	}
	return out.Choices[0].Message.Content, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
