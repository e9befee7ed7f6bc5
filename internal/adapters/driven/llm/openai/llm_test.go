package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/memex/internal/core/domain"
	"github.com/custodia-labs/memex/internal/core/ports/driven"
)

func TestNewLLMService_RequiresKey(t *testing.T) {
	_, err := NewLLMService(LLMConfig{})
	assert.Error(t, err)
}

func TestLLMService_Generate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		var req chatCompletionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Messages, 2)
		assert.Equal(t, "system", req.Messages[0].Role)
		assert.Equal(t, "enrich this", req.Messages[1].Content)
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"done"},"finish_reason":"stop"}]}`))
	}))
	defer server.Close()

	svc, err := NewLLMService(LLMConfig{APIKey: "sk-test", BaseURL: server.URL})
	require.NoError(t, err)

	out, err := svc.Generate(context.Background(), "enrich this", driven.GenerateOptions{JSON: true})
	require.NoError(t, err)
	assert.Equal(t, "done", out)
}

func TestLLMService_Generate_Errors(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		unavailable bool
	}{
		{"rate limited", http.StatusTooManyRequests, `{"error":{"message":"slow down"}}`, true},
		{"bad request", http.StatusBadRequest, `{"error":{"message":"bad"}}`, false},
		{"no choices", http.StatusOK, `{"choices":[]}`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			svc, err := NewLLMService(LLMConfig{APIKey: "k", BaseURL: server.URL})
			require.NoError(t, err)

			_, err = svc.Generate(context.Background(), "p", driven.GenerateOptions{})
			require.Error(t, err)
			assert.Equal(t, tt.unavailable, errors.Is(err, domain.ErrCapabilityUnavailable))
		})
	}
}
