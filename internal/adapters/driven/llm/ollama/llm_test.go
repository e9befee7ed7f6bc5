package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/memex/internal/core/domain"
	"github.com/custodia-labs/memex/internal/core/ports/driven"
)

func TestLLMService_Generate_JSONMode(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)
		var req generateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "json", req.Format)
		assert.False(t, req.Stream)
		require.NotNil(t, req.Options)
		assert.Equal(t, 256, req.Options.NumPredict)
		_, _ = w.Write([]byte(`{"response":"[\"a\",\"b\"]","done":true}`))
	}))
	defer server.Close()

	svc := NewLLMService(LLMConfig{BaseURL: server.URL})

	out, err := svc.Generate(context.Background(), "split", driven.GenerateOptions{JSON: true, MaxTokens: 256})
	require.NoError(t, err)
	assert.Equal(t, `["a","b"]`, out)
}

func TestLLMService_Generate_NoOptions(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req generateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Nil(t, req.Options)
		assert.Empty(t, req.Format)
		_, _ = w.Write([]byte(`{"response":"hi","done":true}`))
	}))
	defer server.Close()

	out, err := NewLLMService(LLMConfig{BaseURL: server.URL}).Generate(context.Background(), "p", driven.GenerateOptions{})
	require.NoError(t, err)
	assert.Equal(t, "hi", out)
}

func TestLLMService_Generate_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	_, err := NewLLMService(LLMConfig{BaseURL: server.URL}).Generate(context.Background(), "p", driven.GenerateOptions{})
	assert.ErrorIs(t, err, domain.ErrCapabilityUnavailable)
}

func TestLLMService_Ping(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/tags", r.URL.Path)
	}))
	svc := NewLLMService(LLMConfig{BaseURL: server.URL})
	assert.NoError(t, svc.Ping(context.Background()))

	server.Close()
	assert.ErrorIs(t, svc.Ping(context.Background()), domain.ErrCapabilityUnavailable)
}
