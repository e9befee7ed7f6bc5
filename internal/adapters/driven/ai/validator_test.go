package ai

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/memex/internal/core/domain"
)

func TestConfigValidator_UnconfiguredIsValid(t *testing.T) {
	v := NewConfigValidator()
	ctx := context.Background()

	assert.NoError(t, v.ValidateEmbedding(ctx, nil))
	assert.NoError(t, v.ValidateEmbedding(ctx, &domain.EmbeddingSettings{Model: "nomic-embed-text"}))
	assert.NoError(t, v.ValidateLLM(ctx, nil))
	assert.NoError(t, v.ValidateLLM(ctx, &domain.LLMSettings{Model: "llama3.2"}))
	assert.NoError(t, v.ValidateRerank(ctx, &domain.RerankSettings{}))
}

func TestConfigValidator_ValidateLLM_Ollama(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/tags", r.URL.Path)
		_, _ = w.Write([]byte(`{"models":[]}`))
	}))
	defer server.Close()

	v := NewConfigValidator()
	settings := &domain.LLMSettings{Provider: domain.AIProviderOllama, BaseURL: server.URL}
	require.NoError(t, v.ValidateLLM(context.Background(), settings))

	server.Close()
	err := v.ValidateLLM(context.Background(), settings)
	assert.ErrorIs(t, err, domain.ErrCapabilityUnavailable)
}

func TestConfigValidator_ValidateEmbedding_MissingKey(t *testing.T) {
	err := NewConfigValidator().ValidateEmbedding(context.Background(), &domain.EmbeddingSettings{
		Provider: domain.AIProviderOpenAI,
		Model:    "text-embedding-3-small",
	})
	assert.Error(t, err)
}

func TestConfigValidator_ValidateRerank(t *testing.T) {
	ctx := context.Background()
	v := NewConfigValidator()

	assert.NoError(t, v.ValidateRerank(ctx, &domain.RerankSettings{Provider: domain.RerankProviderLexical}))

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"results":[{"index":0,"relevance_score":0.5}]}`))
	}))
	defer server.Close()
	settings := &domain.RerankSettings{Provider: domain.RerankProviderHTTP, BaseURL: server.URL}
	assert.NoError(t, v.ValidateRerank(ctx, settings))

	server.Close()
	assert.ErrorIs(t, v.ValidateRerank(ctx, settings), domain.ErrCapabilityUnavailable)
}

func TestConfigValidator_Timeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		<-release
	}))
	defer server.Close()
	defer close(release)

	v := &ConfigValidator{Timeout: 20 * time.Millisecond}
	start := time.Now()
	err := v.ValidateLLM(context.Background(), &domain.LLMSettings{Provider: domain.AIProviderOllama, BaseURL: server.URL})

	assert.Error(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)
}
