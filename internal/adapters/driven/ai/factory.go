// Package ai builds the embedding, LLM and rerank adapters from settings.
package ai

import (
	"fmt"

	ollamaembed "github.com/custodia-labs/memex/internal/adapters/driven/embedding/ollama"
	openaiembed "github.com/custodia-labs/memex/internal/adapters/driven/embedding/openai"
	anthropicllm "github.com/custodia-labs/memex/internal/adapters/driven/llm/anthropic"
	ollamallm "github.com/custodia-labs/memex/internal/adapters/driven/llm/ollama"
	openaillm "github.com/custodia-labs/memex/internal/adapters/driven/llm/openai"
	"github.com/custodia-labs/memex/internal/adapters/driven/refiner"
	"github.com/custodia-labs/memex/internal/adapters/driven/rerank"
	"github.com/custodia-labs/memex/internal/core/domain"
	"github.com/custodia-labs/memex/internal/core/ports/driven"
	"github.com/custodia-labs/memex/internal/logger"
)

// InitResult contains the capability adapters built from settings.
// Any field may be nil when the capability is not configured.
type InitResult struct {
	EmbeddingService driven.EmbeddingService
	LLMService       driven.LLMService
	Reranker         driven.Reranker
	Splitter         driven.SemanticSplitter
	Enricher         driven.ContextEnricher
	Warnings         []string // Non-fatal issues that left a capability unset.
}

// Close releases all resources held by InitResult.
func (r *InitResult) Close() {
	if r.EmbeddingService != nil {
		r.EmbeddingService.Close()
	}
	if r.LLMService != nil {
		r.LLMService.Close()
	}
}

// Initialise builds every configured capability. Construction errors are
// recorded as warnings so the core can run degraded. No network calls are
// made; health is tracked by the capability registry.
//
// Without an LLM the enricher falls back to a metadata prefix and no
// splitter is returned, so refinement uses mechanical windows.
func Initialise(settings *domain.AppSettings, prompts driven.PromptStore) *InitResult {
	result := &InitResult{}
	if settings == nil {
		result.Enricher = refiner.PrefixEnricher{}
		return result
	}

	embed, err := CreateEmbeddingService(&settings.Embedding)
	if err != nil {
		result.warn("embedding", err)
	}
	result.EmbeddingService = embed

	llm, err := CreateLLMService(&settings.LLM)
	if err != nil {
		result.warn("llm", err)
	}
	if llm != nil {
		llm = WithRateLimit(llm, settings.LLM.RequestsPerSecond, settings.LLM.Burst)
		splitter := refiner.NewSplitter(llm)
		enricher := refiner.NewEnricher(llm)
		if prompts != nil {
			splitter.SetPromptStore(prompts)
			enricher.SetPromptStore(prompts)
		}
		result.LLMService = llm
		result.Splitter = splitter
		result.Enricher = enricher
	} else {
		result.Enricher = refiner.PrefixEnricher{}
	}

	reranker, err := CreateReranker(&settings.Rerank)
	if err != nil {
		result.warn("rerank", err)
	}
	result.Reranker = reranker

	return result
}

func (r *InitResult) warn(capability string, err error) {
	msg := fmt.Sprintf("%s disabled: %v", capability, err)
	logger.Warn("%s", msg)
	r.Warnings = append(r.Warnings, msg)
}

// CreateEmbeddingService creates the appropriate embedding service based on settings.
// Returns nil if the provider is not configured.
func CreateEmbeddingService(settings *domain.EmbeddingSettings) (driven.EmbeddingService, error) {
	if settings == nil || !settings.IsConfigured() {
		return nil, nil
	}

	switch settings.Provider {
	case domain.AIProviderOllama:
		return createOllamaEmbedding(settings), nil

	case domain.AIProviderOpenAI:
		svc, err := createOpenAIEmbedding(settings)
		if err != nil {
			return nil, err
		}
		return svc, nil

	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", settings.Provider)
	}
}

// CreateLLMService creates the appropriate LLM service based on settings.
// Returns nil if the provider is not configured.
func CreateLLMService(settings *domain.LLMSettings) (driven.LLMService, error) {
	if settings == nil || !settings.IsConfigured() {
		return nil, nil
	}

	switch settings.Provider {
	case domain.AIProviderOllama:
		return createOllamaLLM(settings), nil

	case domain.AIProviderOpenAI:
		svc, err := createOpenAILLM(settings)
		if err != nil {
			return nil, err
		}
		return svc, nil

	case domain.AIProviderAnthropic:
		svc, err := createAnthropicLLM(settings)
		if err != nil {
			return nil, err
		}
		return svc, nil

	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", settings.Provider)
	}
}

// CreateReranker creates the reranker selected in settings.
// Returns nil if reranking is disabled.
func CreateReranker(settings *domain.RerankSettings) (driven.Reranker, error) {
	if settings == nil || settings.Provider == "" {
		return nil, nil
	}

	switch settings.Provider {
	case domain.RerankProviderLexical:
		return rerank.LexicalReranker{}, nil

	case domain.RerankProviderHTTP:
		r, err := rerank.NewHTTPReranker(rerank.Config{
			BaseURL: settings.BaseURL,
			Model:   settings.Model,
			APIKey:  settings.APIKey,
		})
		if err != nil {
			return nil, err
		}
		return r, nil

	default:
		return nil, fmt.Errorf("unsupported rerank provider: %s", settings.Provider)
	}
}

// createOllamaEmbedding creates an Ollama embedding service.
func createOllamaEmbedding(settings *domain.EmbeddingSettings) *ollamaembed.EmbeddingService {
	dimensions := domain.EmbeddingDimensions()[settings.Model]
	if dimensions == 0 {
		dimensions = ollamaembed.DefaultDimensions
	}

	return ollamaembed.NewEmbeddingService(ollamaembed.Config{
		BaseURL:    settings.BaseURL,
		Model:      settings.Model,
		Dimensions: dimensions,
	})
}

// createOpenAIEmbedding creates an OpenAI embedding service.
func createOpenAIEmbedding(settings *domain.EmbeddingSettings) (*openaiembed.EmbeddingService, error) {
	return openaiembed.NewEmbeddingService(openaiembed.Config{
		APIKey:     settings.APIKey,
		BaseURL:    settings.BaseURL,
		Model:      settings.Model,
		Dimensions: domain.EmbeddingDimensions()[settings.Model],
	})
}

// createOllamaLLM creates an Ollama LLM service.
func createOllamaLLM(settings *domain.LLMSettings) *ollamallm.LLMService {
	return ollamallm.NewLLMService(ollamallm.LLMConfig{
		BaseURL: settings.BaseURL,
		Model:   settings.Model,
	})
}

// createOpenAILLM creates an OpenAI LLM service.
func createOpenAILLM(settings *domain.LLMSettings) (*openaillm.LLMService, error) {
	return openaillm.NewLLMService(openaillm.LLMConfig{
		APIKey:  settings.APIKey,
		BaseURL: settings.BaseURL,
		Model:   settings.Model,
	})
}

// createAnthropicLLM creates an Anthropic LLM service.
func createAnthropicLLM(settings *domain.LLMSettings) (*anthropicllm.LLMService, error) {
	return anthropicllm.NewLLMService(anthropicllm.Config{
		APIKey:  settings.APIKey,
		BaseURL: settings.BaseURL,
		Model:   settings.Model,
	})
}
