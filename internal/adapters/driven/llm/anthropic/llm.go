// Package anthropic generates text through the Anthropic messages API.
package anthropic

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/custodia-labs/memex/internal/adapters/driven/apiclient"
	"github.com/custodia-labs/memex/internal/core/ports/driven"
)

var _ driven.LLMService = (*LLMService)(nil)

const (
	DefaultBaseURL = "https://api.anthropic.com"
	DefaultModel   = "claude-3-5-sonnet-latest"
	DefaultTimeout = 120 * time.Second

	anthropicVersion = "2023-06-01"

	// defaultMaxTokens is sent when the caller sets none. The API requires one.
	defaultMaxTokens = 4096

	jsonSystemPrompt = "Respond with valid JSON only. Do not wrap it in prose or code fences."
)

// Config configures the adapter. APIKey is required.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

type LLMService struct {
	api   *apiclient.Client
	model string
}

type turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesRequest struct {
	Model       string   `json:"model"`
	Messages    []turn   `json:"messages"`
	MaxTokens   int      `json:"max_tokens"`
	System      string   `json:"system,omitempty"`
	Temperature float64  `json:"temperature,omitempty"`
	StopSeqs    []string `json:"stop_sequences,omitempty"`
}

type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

func NewLLMService(cfg Config) (*LLMService, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("anthropic: API key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	api := apiclient.New("anthropic", cfg.BaseURL, cfg.Timeout,
		apiclient.WithHeader("x-api-key", cfg.APIKey),
		apiclient.WithHeader("anthropic-version", anthropicVersion),
	)
	return &LLMService{api: api, model: cfg.Model}, nil
}

// Generate joins the text blocks of the reply. Overload (529) and rate
// limiting both surface as an unavailable capability.
func (s *LLMService) Generate(ctx context.Context, prompt string, opts driven.GenerateOptions) (string, error) {
	req := messagesRequest{
		Model:       s.model,
		Messages:    []turn{{Role: "user", Content: prompt}},
		MaxTokens:   opts.MaxTokens,
		Temperature: opts.Temperature,
		StopSeqs:    opts.StopWords,
	}
	if req.MaxTokens == 0 {
		req.MaxTokens = defaultMaxTokens
	}
	if opts.JSON {
		req.System = jsonSystemPrompt
	}

	var resp messagesResponse
	if err := s.api.Post(ctx, "/v1/messages", req, &resp); err != nil {
		return "", err
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return "", errors.New("anthropic: no text content returned")
	}
	return text.String(), nil
}

func (s *LLMService) ModelName() string {
	return s.model
}

// Ping lists models, which checks the key without spending tokens.
func (s *LLMService) Ping(ctx context.Context) error {
	if err := s.api.Get(ctx, "/v1/models", nil); err != nil {
		return fmt.Errorf("anthropic: ping failed: %w", err)
	}
	return nil
}

func (s *LLMService) Close() error {
	return nil
}
