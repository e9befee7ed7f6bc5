// Package rerank provides rerankers: an HTTP client for cross-encoder
// services and a local lexical scorer that needs no model.
package rerank

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/custodia-labs/memex/internal/adapters/driven/apiclient"
	"github.com/custodia-labs/memex/internal/core/domain"
	"github.com/custodia-labs/memex/internal/core/ports/driven"
)

// Ensure HTTPReranker implements the interface.
var _ driven.Reranker = (*HTTPReranker)(nil)

// Default configuration values.
const (
	DefaultModel   = "BAAI/bge-reranker-v2-m3"
	DefaultTimeout = 30 * time.Second
)

// Config holds configuration for the HTTP reranker.
type Config struct {
	// BaseURL is the service root; requests go to BaseURL + "/rerank" (required).
	BaseURL string

	// Model is sent with every request (default: BAAI/bge-reranker-v2-m3).
	Model string

	// APIKey is sent as a bearer token when set.
	APIKey string

	// Timeout is the request timeout (default: 30s).
	Timeout time.Duration
}

// HTTPReranker scores candidates with a cross-encoder behind a /rerank
// endpoint. Both the Cohere/Jina response shape and the bare array
// returned by text-embeddings-inference are understood.
type HTTPReranker struct {
	api   *apiclient.Client
	model string
}

type rerankRequest struct {
	Model     string   `json:"model,omitempty"`
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
	Texts     []string `json:"texts"`
	TopN      int      `json:"top_n"`
}

type rerankResult struct {
	Index          int      `json:"index"`
	RelevanceScore *float64 `json:"relevance_score"`
	Score          *float64 `json:"score"`
}

func (r rerankResult) value() (float64, bool) {
	switch {
	case r.RelevanceScore != nil:
		return *r.RelevanceScore, true
	case r.Score != nil:
		return *r.Score, true
	default:
		return 0, false
	}
}

// NewHTTPReranker creates an HTTP reranker.
func NewHTTPReranker(cfg Config) (*HTTPReranker, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("rerank: base URL is required")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &HTTPReranker{
		api:   apiclient.New("rerank", cfg.BaseURL, cfg.Timeout, apiclient.WithBearer(cfg.APIKey)),
		model: cfg.Model,
	}, nil
}

// Rerank returns one score per candidate, in input order.
func (r *HTTPReranker) Rerank(ctx context.Context, query string, candidates []string) ([]float64, error) {
	if len(candidates) == 0 {
		return []float64{}, nil
	}

	var body json.RawMessage
	err := r.api.Post(ctx, "/rerank", rerankRequest{
		Model:     r.model,
		Query:     query,
		Documents: candidates,
		Texts:     candidates,
		TopN:      len(candidates),
	}, &body)
	if err != nil {
		return nil, err
	}

	results, err := decodeResults(body)
	if err != nil {
		return nil, err
	}

	scores := make([]float64, len(candidates))
	seen := make([]bool, len(candidates))
	for _, res := range results {
		v, ok := res.value()
		if !ok || res.Index < 0 || res.Index >= len(candidates) {
			return nil, fmt.Errorf("%w: malformed rerank result %+v", domain.ErrValidation, res)
		}
		scores[res.Index] = v
		seen[res.Index] = true
	}
	for i, ok := range seen {
		if !ok {
			return nil, fmt.Errorf("%w: no rerank score for candidate %d", domain.ErrValidation, i)
		}
	}
	return scores, nil
}

func decodeResults(body []byte) ([]rerankResult, error) {
	var wrapped struct {
		Results []rerankResult `json:"results"`
	}
	if err := json.Unmarshal(body, &wrapped); err == nil && wrapped.Results != nil {
		return wrapped.Results, nil
	}
	var bare []rerankResult
	if err := json.Unmarshal(body, &bare); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return bare, nil
}

// ModelName returns the name of the rerank model being used.
func (r *HTTPReranker) ModelName() string {
	return r.model
}

// Ping scores a single trivial pair.
func (r *HTTPReranker) Ping(ctx context.Context) error {
	if _, err := r.Rerank(ctx, "ping", []string{"pong"}); err != nil {
		return fmt.Errorf("rerank: ping failed: %w", err)
	}
	return nil
}
