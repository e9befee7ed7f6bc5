// Package ollama embeds text with a local Ollama server.
package ollama

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/custodia-labs/memex/internal/adapters/driven/apiclient"
	"github.com/custodia-labs/memex/internal/core/ports/driven"
)

var _ driven.EmbeddingService = (*EmbeddingService)(nil)

const (
	DefaultBaseURL    = "http://localhost:11434"
	DefaultModel      = "nomic-embed-text"
	DefaultTimeout    = 30 * time.Second
	DefaultDimensions = 768 // nomic-embed-text
)

// Config configures the adapter. Zero fields take the defaults above.
type Config struct {
	BaseURL    string
	Model      string
	Timeout    time.Duration
	Dimensions int
}

// EmbeddingService uses /api/embed, which takes a whole batch per request.
type EmbeddingService struct {
	api        *apiclient.Client
	model      string
	dimensions int
}

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

func NewEmbeddingService(cfg Config) *EmbeddingService {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Dimensions == 0 {
		cfg.Dimensions = DefaultDimensions
	}
	return &EmbeddingService{
		api:        apiclient.New("ollama", cfg.BaseURL, cfg.Timeout, apiclient.WithUnavailableStatus(http.StatusNotFound)),
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
	}
}

func (s *EmbeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := s.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch returns one vector per text, in order.
func (s *EmbeddingService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	var resp struct {
		Embeddings [][]float32 `json:"embeddings"`
	}
	if err := s.api.Post(ctx, "/api/embed", embedRequest{Model: s.model, Input: texts}, &resp); err != nil {
		return nil, err
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("ollama: got %d embeddings for %d inputs", len(resp.Embeddings), len(texts))
	}
	return resp.Embeddings, nil
}

func (s *EmbeddingService) Dimensions() int {
	return s.dimensions
}

func (s *EmbeddingService) ModelName() string {
	return s.model
}

// Ping lists local models, which needs no inference.
func (s *EmbeddingService) Ping(ctx context.Context) error {
	if err := s.api.Get(ctx, "/api/tags", nil); err != nil {
		return fmt.Errorf("ollama: ping failed: %w", err)
	}
	return nil
}

func (s *EmbeddingService) Close() error {
	return nil
}
