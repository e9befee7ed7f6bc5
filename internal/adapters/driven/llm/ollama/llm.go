// Package ollama generates text with a local Ollama server.
package ollama

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/custodia-labs/memex/internal/adapters/driven/apiclient"
	"github.com/custodia-labs/memex/internal/core/ports/driven"
)

var _ driven.LLMService = (*LLMService)(nil)

const (
	DefaultBaseURL    = "http://localhost:11434"
	DefaultLLMModel   = "llama3.2"
	DefaultLLMTimeout = 120 * time.Second
)

// LLMConfig configures the adapter. Zero fields take the defaults above.
type LLMConfig struct {
	BaseURL string
	Model   string
	Timeout time.Duration
}

// LLMService calls /api/generate without streaming.
type LLMService struct {
	api   *apiclient.Client
	model string
}

type generateRequest struct {
	Model   string   `json:"model"`
	Prompt  string   `json:"prompt"`
	Stream  bool     `json:"stream"`
	Format  string   `json:"format,omitempty"`
	Options *options `json:"options,omitempty"`
}

type options struct {
	NumPredict  int      `json:"num_predict,omitempty"`
	Temperature float64  `json:"temperature,omitempty"`
	Stop        []string `json:"stop,omitempty"`
}

// NewLLMService returns an adapter. A missing model is reported as
// unavailable, since pulling it fixes the problem.
func NewLLMService(cfg LLMConfig) *LLMService {
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
		api:   apiclient.New("ollama", cfg.BaseURL, cfg.Timeout, apiclient.WithUnavailableStatus(http.StatusNotFound)),
		model: cfg.Model,
	}
}

// Generate asks for a completion. JSON mode uses Ollama's format=json,
// which constrains decoding rather than just asking nicely.
func (s *LLMService) Generate(ctx context.Context, prompt string, opts driven.GenerateOptions) (string, error) {
	req := generateRequest{Model: s.model, Prompt: prompt}
	if opts.JSON {
		req.Format = "json"
	}
	if opts.MaxTokens > 0 || opts.Temperature > 0 || len(opts.StopWords) > 0 {
		req.Options = &options{
			NumPredict:  opts.MaxTokens,
			Temperature: opts.Temperature,
			Stop:        opts.StopWords,
		}
	}

	var resp struct {
		Response string `json:"response"`
	}
	if err := s.api.Post(ctx, "/api/generate", req, &resp); err != nil {
		return "", err
	}
	return resp.Response, nil
}

func (s *LLMService) ModelName() string {
	return s.model
}

// Ping lists local models, which needs no inference.
func (s *LLMService) Ping(ctx context.Context) error {
	if err := s.api.Get(ctx, "/api/tags", nil); err != nil {
		return fmt.Errorf("ollama: ping failed: %w", err)
	}
	return nil
}

func (s *LLMService) Close() error {
	return nil
}
