package domain

import "time"

const unknownDescription = "Unknown"

// AIProvider identifies an AI service provider for embeddings or LLM.
type AIProvider string

// Available AI providers.
const (
	// AIProviderOllama is local Ollama instance.
	AIProviderOllama AIProvider = "ollama"

	// AIProviderOpenAI is OpenAI cloud API.
	AIProviderOpenAI AIProvider = "openai"

	// AIProviderAnthropic is Anthropic cloud API.
	AIProviderAnthropic AIProvider = "anthropic"
)

// IsValid returns true if the AI provider is recognised.
func (p AIProvider) IsValid() bool {
	switch p {
	case AIProviderOllama, AIProviderOpenAI, AIProviderAnthropic:
		return true
	default:
		return false
	}
}

// RequiresAPIKey returns true if this provider needs an API key.
func (p AIProvider) RequiresAPIKey() bool {
	return p == AIProviderOpenAI || p == AIProviderAnthropic
}

// String returns the string representation.
func (p AIProvider) String() string {
	return string(p)
}

// Description returns a human-readable description of the provider.
func (p AIProvider) Description() string {
	switch p {
	case AIProviderOllama:
		return "Ollama (local)"
	case AIProviderOpenAI:
		return "OpenAI (cloud)"
	case AIProviderAnthropic:
		return "Anthropic (cloud)"
	default:
		return unknownDescription
	}
}

// RerankProvider identifies how candidates are re-scored.
type RerankProvider string

// Available rerank providers.
const (
	// RerankProviderHTTP calls a cross-encoder behind a /rerank endpoint.
	RerankProviderHTTP RerankProvider = "http"

	// RerankProviderLexical scores query term overlap locally.
	RerankProviderLexical RerankProvider = "lexical"
)

// IsValid returns true if the rerank provider is recognised.
func (p RerankProvider) IsValid() bool {
	return p == RerankProviderHTTP || p == RerankProviderLexical
}

// EmbeddingSettings holds embedding provider configuration.
type EmbeddingSettings struct {
	// Provider is the embedding service provider.
	Provider AIProvider

	// Model is the embedding model name.
	Model string

	// BaseURL is the API endpoint (for Ollama).
	BaseURL string

	// APIKey is the API key (for OpenAI).
	APIKey string
}

// IsConfigured returns true if the embedding provider is set up.
func (e EmbeddingSettings) IsConfigured() bool {
	if e.Provider != AIProviderOllama && e.Provider != AIProviderOpenAI {
		return false
	}
	if e.Provider.RequiresAPIKey() && e.APIKey == "" {
		return false
	}
	return true
}

// LLMSettings holds LLM provider configuration.
type LLMSettings struct {
	// Provider is the LLM service provider.
	Provider AIProvider

	// Model is the LLM model name.
	Model string

	// BaseURL is the API endpoint (for Ollama).
	BaseURL string

	// APIKey is the API key (for OpenAI/Anthropic).
	APIKey string

	// RequestsPerSecond throttles calls to the provider. Zero disables throttling.
	RequestsPerSecond float64

	// Burst is the number of calls allowed above the steady rate.
	Burst int
}

// IsConfigured returns true if the LLM provider is set up.
func (l LLMSettings) IsConfigured() bool {
	if !l.Provider.IsValid() {
		return false
	}
	if l.Provider.RequiresAPIKey() && l.APIKey == "" {
		return false
	}
	return true
}

// RerankSettings holds reranker configuration.
type RerankSettings struct {
	// Provider selects the reranker. Empty disables reranking.
	Provider RerankProvider

	// Model is passed to the HTTP reranker.
	Model string

	// BaseURL is the reranker endpoint root.
	BaseURL string

	// APIKey is sent as a bearer token when set.
	APIKey string
}

// IsConfigured returns true if a reranker is selected.
func (r RerankSettings) IsConfigured() bool {
	if r.Provider == RerankProviderHTTP {
		return r.BaseURL != ""
	}
	return r.Provider == RerankProviderLexical
}

// RefinementSettings holds the policy constants of the refinement engine.
type RefinementSettings struct {
	// WindowSize is the maximum pre-split window length in characters.
	WindowSize int

	// WindowOverlap is the context shared by consecutive windows.
	WindowOverlap int

	// Workers bounds the number of archives refined in parallel.
	Workers int

	// BatchLimit caps the archives considered per sweep. Zero means no cap.
	BatchLimit int

	// SplitTimeout bounds a single semantic_split call.
	SplitTimeout time.Duration

	// EnrichTimeout bounds a single context_enrich call.
	EnrichTimeout time.Duration

	// AutoApprove approves proposals as soon as they are created.
	AutoApprove bool
}

// RetrievalSettings holds the policy constants of hybrid retrieval.
type RetrievalSettings struct {
	// DenseCandidates is N, the number of nearest nodes fetched.
	DenseCandidates int

	// SparseCandidates is the number of keyword hits fetched.
	SparseCandidates int

	// PerParentCap limits the chunks shown per archive.
	PerParentCap int

	// DefaultK is the number of blocks returned when a query sets none.
	DefaultK int

	// MinRerankScore drops candidates scored below it. Zero keeps everything.
	MinRerankScore float64

	// QueryTimeout bounds the query embedding call.
	QueryTimeout time.Duration

	// RerankTimeout bounds the rerank call.
	RerankTimeout time.Duration
}

// NotificationSettings holds webhook configuration.
type NotificationSettings struct {
	// Enabled turns notifications on.
	Enabled bool

	// WebhookURL receives POSTed events.
	WebhookURL string

	// Events restricts delivery to these event names. Empty sends all.
	Events []string
}

// Wants reports whether an event should be delivered.
func (n NotificationSettings) Wants(event string) bool {
	if !n.Enabled || n.WebhookURL == "" {
		return false
	}
	if len(n.Events) == 0 {
		return true
	}
	for _, e := range n.Events {
		if e == event {
			return true
		}
	}
	return false
}

// AppSettings holds all application settings.
type AppSettings struct {
	// Embedding holds embedding provider settings.
	Embedding EmbeddingSettings

	// LLM holds LLM provider settings.
	LLM LLMSettings

	// Rerank holds reranker settings.
	Rerank RerankSettings

	// Refinement holds gardener policy.
	Refinement RefinementSettings

	// Retrieval holds hybrid retrieval policy.
	Retrieval RetrievalSettings

	// Notifications holds webhook settings.
	Notifications NotificationSettings
}

// DefaultAppSettings returns settings with sensible defaults.
// AI providers are left unconfigured; the lexical reranker works offline.
func DefaultAppSettings() AppSettings {
	return AppSettings{
		Rerank: RerankSettings{Provider: RerankProviderLexical},
		Refinement: RefinementSettings{
			WindowSize:    3000,
			WindowOverlap: 100,
			Workers:       4,
			BatchLimit:    10,
			SplitTimeout:  60 * time.Second,
			EnrichTimeout: 30 * time.Second,
		},
		Retrieval: RetrievalSettings{
			DenseCandidates:  30,
			SparseCandidates: 30,
			PerParentCap:     3,
			DefaultK:         5,
			QueryTimeout:     10 * time.Second,
			RerankTimeout:    15 * time.Second,
		},
	}
}

// DefaultEmbeddingModels returns default models for each embedding provider.
func DefaultEmbeddingModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderOllama: "nomic-embed-text",
		AIProviderOpenAI: "text-embedding-3-small",
	}
}

// DefaultLLMModels returns default models for each LLM provider.
func DefaultLLMModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderOllama:    "llama3.2",
		AIProviderOpenAI:    "gpt-4o-mini",
		AIProviderAnthropic: "claude-3-5-sonnet-latest",
	}
}

// AllEmbeddingProviders lists providers that can compute embeddings.
func AllEmbeddingProviders() []AIProvider {
	return []AIProvider{AIProviderOllama, AIProviderOpenAI}
}

// AllLLMProviders lists providers that can generate text.
func AllLLMProviders() []AIProvider {
	return []AIProvider{AIProviderOllama, AIProviderOpenAI, AIProviderAnthropic}
}

// EmbeddingDimensions returns the vector size of well-known embedding models.
func EmbeddingDimensions() map[string]int {
	return map[string]int{
		"nomic-embed-text":       768,
		"mxbai-embed-large":      1024,
		"all-minilm":             384,
		"bge-m3":                 1024,
		"text-embedding-3-small": 1536,
		"text-embedding-3-large": 3072,
		"text-embedding-ada-002": 1536,
	}
}
