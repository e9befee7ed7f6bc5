package anthropic

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

func TestLLMService_Generate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "key", r.Header.Get("x-api-key"))
		assert.Equal(t, anthropicVersion, r.Header.Get("anthropic-version"))
		var req messagesRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, defaultMaxTokens, req.MaxTokens)
		assert.Equal(t, jsonSystemPrompt, req.System)
		_, _ = w.Write([]byte(`{"content":[{"type":"text","text":"[\"x\"]"},{"type":"tool_use"}]}`))
	}))
	defer server.Close()

	svc, err := NewLLMService(Config{APIKey: "key", BaseURL: server.URL})
	require.NoError(t, err)

	out, err := svc.Generate(context.Background(), "split", driven.GenerateOptions{JSON: true})
	require.NoError(t, err)
	assert.Equal(t, `["x"]`, out)
}

func TestLLMService_Generate_Overloaded(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(529)
		_, _ = w.Write([]byte(`{"type":"error","error":{"type":"overloaded_error","message":"Overloaded"}}`))
	}))
	defer server.Close()

	svc, err := NewLLMService(Config{APIKey: "key", BaseURL: server.URL})
	require.NoError(t, err)

	_, err = svc.Generate(context.Background(), "p", driven.GenerateOptions{})
	require.ErrorIs(t, err, domain.ErrCapabilityUnavailable)
	assert.Contains(t, err.Error(), "Overloaded")
}

func TestLLMService_Generate_EmptyContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"content":[]}`))
	}))
	defer server.Close()

	svc, err := NewLLMService(Config{APIKey: "key", BaseURL: server.URL})
	require.NoError(t, err)

	_, err = svc.Generate(context.Background(), "p", driven.GenerateOptions{})
	assert.Error(t, err)
}

func TestNewLLMService_Defaults(t *testing.T) {
	_, err := NewLLMService(Config{})
	assert.Error(t, err)

	svc, err := NewLLMService(Config{APIKey: "key"})
	require.NoError(t, err)
	assert.Equal(t, DefaultModel, svc.ModelName())
}
