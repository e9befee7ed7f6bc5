package services

import (
	"context"
	"hash/fnv"
	"strings"
	"sync"
	"unicode"

	"github.com/custodia-labs/memex/internal/core/ports/driven"
)

// --- Capability mocks shared by the service tests ---

const mockDims = 16

// mockEmbedder hashes words into a small bag-of-words vector so that
// texts sharing words have positive cosine similarity.
type mockEmbedder struct {
	mu      sync.Mutex
	err     error
	pingErr error
	calls   int
}

func (m *mockEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return bagOfWords(text), nil
}

func (m *mockEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := m.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (m *mockEmbedder) Dimensions() int               { return mockDims }
func (m *mockEmbedder) ModelName() string             { return "mock-embed" }
func (m *mockEmbedder) Ping(_ context.Context) error { return m.pingErr }
func (m *mockEmbedder) Close() error                  { return nil }

func (m *mockEmbedder) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func words(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func bagOfWords(text string) []float32 {
	v := make([]float32, mockDims)
	for _, w := range words(text) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(w))
		v[h.Sum32()%mockDims]++
	}
	return v
}

type mockSplitter struct {
	fn    func(ctx context.Context, text string) ([]string, error)
	mu    sync.Mutex
	calls int
}

func (m *mockSplitter) Split(ctx context.Context, text string) ([]string, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	return m.fn(ctx, text)
}

type mockEnricher struct {
	fn       func(ctx context.Context, req driven.EnrichRequest) (string, error)
	mu       sync.Mutex
	requests []driven.EnrichRequest
}

func (m *mockEnricher) Enrich(ctx context.Context, req driven.EnrichRequest) (string, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()
	return m.fn(ctx, req)
}

// mockReranker scores candidates by the share of query words they contain.
type mockReranker struct {
	err     error
	pingErr error
}

func (m *mockReranker) Rerank(_ context.Context, query string, candidates []string) ([]float64, error) {
	if m.err != nil {
		return nil, m.err
	}
	terms := words(query)
	scores := make([]float64, len(candidates))
	for i, c := range candidates {
		have := make(map[string]bool)
		for _, w := range words(c) {
			have[w] = true
		}
		for _, t := range terms {
			if have[t] {
				scores[i]++
			}
		}
		if len(terms) > 0 {
			scores[i] /= float64(len(terms))
		}
	}
	return scores, nil
}

func (m *mockReranker) ModelName() string             { return "mock-rerank" }
func (m *mockReranker) Ping(_ context.Context) error { return m.pingErr }

type mockLLM struct {
	pingErr error
}

func (m *mockLLM) Generate(_ context.Context, _ string, _ driven.GenerateOptions) (string, error) {
	return "", nil
}
func (m *mockLLM) ModelName() string             { return "mock-llm" }
func (m *mockLLM) Ping(_ context.Context) error { return m.pingErr }
func (m *mockLLM) Close() error                  { return nil }

type notification struct {
	event string
	data  map[string]any
}

type mockNotifier struct {
	mu     sync.Mutex
	events []notification
}

func (m *mockNotifier) Notify(_ context.Context, event string, data map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, notification{event: event, data: data})
	return nil
}

func (m *mockNotifier) eventNames() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, len(m.events))
	for i, e := range m.events {
		names[i] = e.event
	}
	return names
}

// Ensure mocks implement interfaces
var (
	_ driven.EmbeddingService = (*mockEmbedder)(nil)
	_ driven.SemanticSplitter = (*mockSplitter)(nil)
	_ driven.ContextEnricher  = (*mockEnricher)(nil)
	_ driven.Reranker         = (*mockReranker)(nil)
	_ driven.LLMService       = (*mockLLM)(nil)
	_ driven.Notifier         = (*mockNotifier)(nil)
)
