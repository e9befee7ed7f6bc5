// Package openai generates text through the chat completions API. Any
// server speaking the same protocol works by changing the base URL.
package openai

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/custodia-labs/memex/internal/adapters/driven/apiclient"
	"github.com/custodia-labs/memex/internal/core/ports/driven"
)

var _ driven.LLMService = (*LLMService)(nil)

const (
	DefaultBaseURL    = "https://api.openai.com/v1"
	DefaultLLMModel   = "gpt-4o-mini"
	DefaultLLMTimeout = 120 * time.Second
)

// jsonInstruction is prepended as a system message in JSON mode. The
// json_object response format is not used because it rejects top-level
// arrays, and the split prompt asks for one.
const jsonInstruction = "Respond with valid JSON only. Do not wrap it in prose or code fences."

// LLMConfig configures the adapter. APIKey is required.
type LLMConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

type LLMService struct {
	api   *apiclient.Client
	model string
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionRequest struct {
	Model       string    `json:"model"`
	Messages    []message `json:"messages"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature float64   `json:"temperature,omitempty"`
	Stop        []string  `json:"stop,omitempty"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message message `json:"message"`
	} `json:"choices"`
}

func NewLLMService(cfg LLMConfig) (*LLMService, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai: API key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultLLMModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultLLMTimeout
	}
	return &LLMService{
		api:   apiclient.New("openai", cfg.BaseURL, cfg.Timeout, apiclient.WithBearer(cfg.APIKey)),
		model: cfg.Model,
	}, nil
}

// Generate sends prompt as a single user turn and returns the first choice.
func (s *LLMService) Generate(ctx context.Context, prompt string, opts driven.GenerateOptions) (string, error) {
	req := chatCompletionRequest{
		Model:       s.model,
		MaxTokens:   opts.MaxTokens,
		Temperature: opts.Temperature,
		Stop:        opts.StopWords,
	}
	if opts.JSON {
		req.Messages = append(req.Messages, message{Role: "system", Content: jsonInstruction})
	}
	req.Messages = append(req.Messages, message{Role: "user", Content: prompt})

	var resp chatCompletionResponse
	if err := s.api.Post(ctx, "/chat/completions", req, &resp); err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai: no choices returned")
	}
	return resp.Choices[0].Message.Content, nil
}

func (s *LLMService) ModelName() string {
	return s.model
}

// Ping lists models, which checks the key without spending tokens.
func (s *LLMService) Ping(ctx context.Context) error {
	if err := s.api.Get(ctx, "/models", nil); err != nil {
		return fmt.Errorf("openai: ping failed: %w", err)
	}
	return nil
}

func (s *LLMService) Close() error {
	return nil
}
