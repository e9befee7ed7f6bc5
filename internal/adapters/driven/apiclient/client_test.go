package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/memex/internal/core/domain"
)

func TestClient_PostDecodes(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/echo", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, "yes", r.Header.Get("X-Extra"))

		var in map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		_, _ = w.Write([]byte(`{"echo":"` + in["say"] + `"}`))
	}))
	defer server.Close()

	c := New("test", server.URL+"/", time.Second, WithBearer("tok"), WithHeader("X-Extra", "yes"))

	var out struct {
		Echo string `json:"echo"`
	}
	require.NoError(t, c.Post(context.Background(), "/v1/echo", map[string]string{"say": "hi"}, &out))
	assert.Equal(t, "hi", out.Echo)
}

func TestClient_EmptyBearerSendsNothing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
	}))
	defer server.Close()

	require.NoError(t, New("test", server.URL, time.Second, WithBearer("")).Get(context.Background(), "/", nil))
}

func TestClient_RawMessageKeepsBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[1,2,3]`))
	}))
	defer server.Close()

	var raw json.RawMessage
	require.NoError(t, New("test", server.URL, time.Second).Get(context.Background(), "/", &raw))
	assert.JSONEq(t, `[1,2,3]`, string(raw))
}

func TestClient_StatusErrors(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		extra       []int
		wantMsg     string
		unavailable bool
	}{
		{"object envelope", http.StatusBadRequest, `{"error":{"message":"bad input"}}`, nil, "bad input", false},
		{"string envelope", http.StatusUnauthorized, `{"error":"no key"}`, nil, "no key", false},
		{"plain body", http.StatusBadGateway, "upstream down", nil, "upstream down", true},
		{"rate limited", http.StatusTooManyRequests, `{}`, nil, "{}", true},
		{"overloaded", 529, `{"type":"error","error":{"message":"Overloaded"}}`, nil, "Overloaded", true},
		{"not found by default", http.StatusNotFound, `{"error":"model missing"}`, nil, "model missing", false},
		{"not found as outage", http.StatusNotFound, `{"error":"model missing"}`, []int{http.StatusNotFound}, "model missing", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			c := New("prov", server.URL, time.Second, WithUnavailableStatus(tt.extra...))
			err := c.Post(context.Background(), "/", struct{}{}, nil)

			var se *StatusError
			require.True(t, errors.As(err, &se))
			assert.Equal(t, tt.status, se.Status)
			assert.Equal(t, tt.wantMsg, se.Message)
			assert.Contains(t, err.Error(), "prov error")
			assert.Equal(t, tt.unavailable, errors.Is(err, domain.ErrCapabilityUnavailable))
		})
	}
}

func TestClient_ErrorInSuccessfulResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"error":"model is loading"}`))
	}))
	defer server.Close()

	err := New("ollama", server.URL, time.Second).Get(context.Background(), "/", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model is loading")
	assert.NotErrorIs(t, err, domain.ErrCapabilityUnavailable)
}

func TestClient_NullErrorIsIgnored(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"error":null,"ok":true}`))
	}))
	defer server.Close()

	var out struct {
		OK bool `json:"ok"`
	}
	require.NoError(t, New("test", server.URL, time.Second).Get(context.Background(), "/", &out))
	assert.True(t, out.OK)
}

func TestClient_DecodeError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	}))
	defer server.Close()

	var out struct{}
	err := New("test", server.URL, time.Second).Get(context.Background(), "/", &out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode response")
}

func TestClient_ConnectionRefusedIsUnavailable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	err := New("test", url, time.Second).Get(context.Background(), "/", nil)
	assert.ErrorIs(t, err, domain.ErrCapabilityUnavailable)
}

func TestClient_DeadlineIsNotUnavailable(t *testing.T) {
	block := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { <-block }))
	defer server.Close()
	defer close(block)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := New("test", server.URL, time.Minute).Get(ctx, "/", nil)
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrCapabilityUnavailable)
}
