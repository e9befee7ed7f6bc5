package driving

import (
	"context"

	"github.com/custodia-labs/memex/internal/core/domain"
)

// SettingsService manages application settings.
type SettingsService interface {
	// Get retrieves current application settings, with defaults filled in.
	Get() (*domain.AppSettings, error)

	// Save persists application settings.
	Save(settings *domain.AppSettings) error

	// SetEmbeddingProvider configures the embedding provider.
	SetEmbeddingProvider(provider domain.AIProvider, model, apiKey string) error

	// SetLLMProvider configures the LLM provider.
	SetLLMProvider(provider domain.AIProvider, model, apiKey string) error

	// SetRerankProvider configures the reranker.
	SetRerankProvider(provider domain.RerankProvider, model, baseURL string) error

	// GetDefaults returns default settings.
	GetDefaults() domain.AppSettings

	// SchedulerConfig returns the scheduler configuration.
	SchedulerConfig() domain.SchedulerConfig

	// Validate pings the provider currently configured for capability.
	// A capability with no provider configured is valid.
	Validate(ctx context.Context, capability domain.Capability) error
}
