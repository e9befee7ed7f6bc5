package services

import (
	"context"
	"fmt"
	"time"

	"github.com/custodia-labs/memex/internal/core/domain"
	"github.com/custodia-labs/memex/internal/core/ports/driven"
	"github.com/custodia-labs/memex/internal/core/ports/driving"
)

// Ensure SettingsService implements the interface.
var _ driving.SettingsService = (*SettingsService)(nil)

// Config keys for settings storage.
//
//nolint:gosec // G101: These are config key names, not actual credentials.
const (
	keyEmbedProvider = "embedding.provider"
	keyEmbedModel    = "embedding.model"
	keyEmbedBaseURL  = "embedding.base_url"
	keyEmbedAPIKey   = "embedding.api_key"

	keyLLMProvider = "llm.provider"
	keyLLMModel    = "llm.model"
	keyLLMBaseURL  = "llm.base_url"
	keyLLMAPIKey   = "llm.api_key"
	keyLLMRate     = "llm.requests_per_second"
	keyLLMBurst    = "llm.burst"

	keyRerankProvider = "rerank.provider"
	keyRerankModel    = "rerank.model"
	keyRerankBaseURL  = "rerank.base_url"
	keyRerankAPIKey   = "rerank.api_key"

	keyRefineWindowSize    = "refinement.window_size"
	keyRefineWindowOverlap = "refinement.window_overlap"
	keyRefineWorkers       = "refinement.workers"
	keyRefineBatchLimit    = "refinement.batch_limit"
	keyRefineSplitTimeout  = "refinement.split_timeout_seconds"
	keyRefineEnrichTimeout = "refinement.enrich_timeout_seconds"
	keyRefineAutoApprove   = "refinement.auto_approve"

	keyRetrievalDense         = "retrieval.dense_candidates"
	keyRetrievalSparse        = "retrieval.sparse_candidates"
	keyRetrievalPerParent     = "retrieval.per_parent_cap"
	keyRetrievalDefaultK      = "retrieval.default_k"
	keyRetrievalMinScore      = "retrieval.min_rerank_score"
	keyRetrievalRerankTimeout = "retrieval.rerank_timeout_seconds"

	keySchedulerEnabled        = "scheduler.enabled"
	keySchedulerRefineInterval = "scheduler.refine_interval_minutes"
	keySchedulerHealthInterval = "scheduler.health_interval_minutes"

	keyNotifyEnabled = "notifications.enable"
	keyNotifyWebhook = "notifications.webhook_url"
	keyNotifyEvents  = "notifications.events"

	defaultOllamaURL = "http://localhost:11434"
)

// SettingsService manages application settings.
type SettingsService struct {
	configStore driven.ConfigStore
	aiValidator driven.AIConfigValidator
}

// NewSettingsService creates a new settings service.
func NewSettingsService(configStore driven.ConfigStore, aiValidator driven.AIConfigValidator) *SettingsService {
	return &SettingsService{
		configStore: configStore,
		aiValidator: aiValidator,
	}
}

// Get retrieves current application settings.
func (s *SettingsService) Get() (*domain.AppSettings, error) {
	defaults := domain.DefaultAppSettings()

	settings := &domain.AppSettings{
		Embedding: domain.EmbeddingSettings{
			Provider: s.getProvider(keyEmbedProvider, defaults.Embedding.Provider),
			Model:    s.getString(keyEmbedModel, defaults.Embedding.Model),
			BaseURL:  s.configStore.GetString(keyEmbedBaseURL), // No default - empty is valid for cloud providers
			APIKey:   s.configStore.GetString(keyEmbedAPIKey),
		},
		LLM: domain.LLMSettings{
			Provider:          s.getProvider(keyLLMProvider, defaults.LLM.Provider),
			Model:             s.getString(keyLLMModel, defaults.LLM.Model),
			BaseURL:           s.configStore.GetString(keyLLMBaseURL),
			APIKey:            s.configStore.GetString(keyLLMAPIKey),
			RequestsPerSecond: s.getFloat(keyLLMRate, defaults.LLM.RequestsPerSecond),
			Burst:             s.getInt(keyLLMBurst, defaults.LLM.Burst),
		},
		Rerank: domain.RerankSettings{
			Provider: s.getRerankProvider(defaults.Rerank.Provider),
			Model:    s.getString(keyRerankModel, defaults.Rerank.Model),
			BaseURL:  s.configStore.GetString(keyRerankBaseURL),
			APIKey:   s.configStore.GetString(keyRerankAPIKey),
		},
		Refinement: domain.RefinementSettings{
			WindowSize:    s.getInt(keyRefineWindowSize, defaults.Refinement.WindowSize),
			WindowOverlap: s.getInt(keyRefineWindowOverlap, defaults.Refinement.WindowOverlap),
			Workers:       s.getInt(keyRefineWorkers, defaults.Refinement.Workers),
			BatchLimit:    s.getInt(keyRefineBatchLimit, defaults.Refinement.BatchLimit),
			SplitTimeout:  s.getSeconds(keyRefineSplitTimeout, defaults.Refinement.SplitTimeout),
			EnrichTimeout: s.getSeconds(keyRefineEnrichTimeout, defaults.Refinement.EnrichTimeout),
			AutoApprove:   s.getBool(keyRefineAutoApprove, defaults.Refinement.AutoApprove),
		},
		Retrieval: domain.RetrievalSettings{
			DenseCandidates:  s.getInt(keyRetrievalDense, defaults.Retrieval.DenseCandidates),
			SparseCandidates: s.getInt(keyRetrievalSparse, defaults.Retrieval.SparseCandidates),
			PerParentCap:     s.getInt(keyRetrievalPerParent, defaults.Retrieval.PerParentCap),
			DefaultK:         s.getInt(keyRetrievalDefaultK, defaults.Retrieval.DefaultK),
			MinRerankScore:   s.getFloat(keyRetrievalMinScore, defaults.Retrieval.MinRerankScore),
			QueryTimeout:     defaults.Retrieval.QueryTimeout,
			RerankTimeout:    s.getSeconds(keyRetrievalRerankTimeout, defaults.Retrieval.RerankTimeout),
		},
		Notifications: domain.NotificationSettings{
			Enabled:    s.getBool(keyNotifyEnabled, defaults.Notifications.Enabled),
			WebhookURL: s.configStore.GetString(keyNotifyWebhook),
			Events:     s.configStore.GetStringSlice(keyNotifyEvents),
		},
	}

	return settings, nil
}

// Save persists application settings.
func (s *SettingsService) Save(settings *domain.AppSettings) error {
	values := []struct {
		key   string
		value any
	}{
		{keyEmbedProvider, settings.Embedding.Provider.String()},
		{keyEmbedModel, settings.Embedding.Model},
		{keyEmbedBaseURL, settings.Embedding.BaseURL},
		{keyLLMProvider, settings.LLM.Provider.String()},
		{keyLLMModel, settings.LLM.Model},
		{keyLLMBaseURL, settings.LLM.BaseURL},
		{keyLLMRate, settings.LLM.RequestsPerSecond},
		{keyLLMBurst, settings.LLM.Burst},
		{keyRerankProvider, string(settings.Rerank.Provider)},
		{keyRerankModel, settings.Rerank.Model},
		{keyRerankBaseURL, settings.Rerank.BaseURL},
		{keyRefineWindowSize, settings.Refinement.WindowSize},
		{keyRefineWindowOverlap, settings.Refinement.WindowOverlap},
		{keyRefineWorkers, settings.Refinement.Workers},
		{keyRefineBatchLimit, settings.Refinement.BatchLimit},
		{keyRefineSplitTimeout, int(settings.Refinement.SplitTimeout / time.Second)},
		{keyRefineEnrichTimeout, int(settings.Refinement.EnrichTimeout / time.Second)},
		{keyRefineAutoApprove, settings.Refinement.AutoApprove},
		{keyRetrievalDense, settings.Retrieval.DenseCandidates},
		{keyRetrievalSparse, settings.Retrieval.SparseCandidates},
		{keyRetrievalPerParent, settings.Retrieval.PerParentCap},
		{keyRetrievalDefaultK, settings.Retrieval.DefaultK},
		{keyRetrievalMinScore, settings.Retrieval.MinRerankScore},
		{keyRetrievalRerankTimeout, int(settings.Retrieval.RerankTimeout / time.Second)},
		{keyNotifyEnabled, settings.Notifications.Enabled},
		{keyNotifyWebhook, settings.Notifications.WebhookURL},
	}
	for _, v := range values {
		if err := s.configStore.Set(v.key, v.value); err != nil {
			return fmt.Errorf("save %s: %w", v.key, err)
		}
	}

	// API keys are only written when set so that env-supplied keys
	// are not persisted as empty strings.
	secrets := map[string]string{
		keyEmbedAPIKey:  settings.Embedding.APIKey,
		keyLLMAPIKey:    settings.LLM.APIKey,
		keyRerankAPIKey: settings.Rerank.APIKey,
	}
	for key, value := range secrets {
		if value == "" {
			continue
		}
		if err := s.configStore.Set(key, value); err != nil {
			return fmt.Errorf("save %s: %w", key, err)
		}
	}
	if len(settings.Notifications.Events) > 0 {
		if err := s.configStore.Set(keyNotifyEvents, settings.Notifications.Events); err != nil {
			return fmt.Errorf("save %s: %w", keyNotifyEvents, err)
		}
	}

	return s.configStore.Save()
}

// SetEmbeddingProvider configures the embedding provider.
func (s *SettingsService) SetEmbeddingProvider(provider domain.AIProvider, model, apiKey string) error {
	if provider != domain.AIProviderOllama && provider != domain.AIProviderOpenAI {
		return fmt.Errorf("%w: provider %s does not support embeddings", domain.ErrInvalidInput, provider)
	}
	if provider.RequiresAPIKey() && apiKey == "" {
		return fmt.Errorf("%w: API key required for %s", domain.ErrInvalidInput, provider)
	}

	settings, err := s.Get()
	if err != nil {
		return err
	}

	settings.Embedding.Provider = provider
	settings.Embedding.Model = modelOrDefault(model, domain.DefaultEmbeddingModels()[provider])
	settings.Embedding.BaseURL = baseURLFor(provider, settings.Embedding.BaseURL)
	settings.Embedding.APIKey = apiKey

	return s.Save(settings)
}

// SetLLMProvider configures the LLM provider.
func (s *SettingsService) SetLLMProvider(provider domain.AIProvider, model, apiKey string) error {
	if !provider.IsValid() {
		return fmt.Errorf("%w: invalid LLM provider: %s", domain.ErrInvalidInput, provider)
	}
	if provider.RequiresAPIKey() && apiKey == "" {
		return fmt.Errorf("%w: API key required for %s", domain.ErrInvalidInput, provider)
	}

	settings, err := s.Get()
	if err != nil {
		return err
	}

	settings.LLM.Provider = provider
	settings.LLM.Model = modelOrDefault(model, domain.DefaultLLMModels()[provider])
	settings.LLM.BaseURL = baseURLFor(provider, settings.LLM.BaseURL)
	settings.LLM.APIKey = apiKey

	return s.Save(settings)
}

// SetRerankProvider configures the reranker. An empty provider turns
// reranking off.
func (s *SettingsService) SetRerankProvider(provider domain.RerankProvider, model, baseURL string) error {
	if provider != "" && !provider.IsValid() {
		return fmt.Errorf("%w: invalid rerank provider: %s", domain.ErrInvalidInput, provider)
	}
	if provider == domain.RerankProviderHTTP && baseURL == "" {
		return fmt.Errorf("%w: base URL required for http reranker", domain.ErrInvalidInput)
	}

	settings, err := s.Get()
	if err != nil {
		return err
	}
	settings.Rerank.Provider = provider
	settings.Rerank.Model = model
	settings.Rerank.BaseURL = baseURL
	return s.Save(settings)
}

// GetDefaults returns default settings.
func (s *SettingsService) GetDefaults() domain.AppSettings {
	return domain.DefaultAppSettings()
}

// SchedulerConfig returns the scheduler configuration.
// Returns default configuration if nothing is configured.
func (s *SettingsService) SchedulerConfig() domain.SchedulerConfig {
	cfg := domain.DefaultSchedulerConfig()

	cfg.Enabled = s.getBool(keySchedulerEnabled, cfg.Enabled)

	intervals := map[string]string{
		domain.TaskIDRefinementSweep:  keySchedulerRefineInterval,
		domain.TaskIDCapabilityHealth: keySchedulerHealthInterval,
	}
	for taskID, key := range intervals {
		taskCfg := cfg.TaskConfigs[taskID]
		if minutes := s.configStore.GetInt(key); minutes > 0 {
			taskCfg.Interval = time.Duration(minutes) * time.Minute
		} else if minutes < 0 {
			taskCfg.Enabled = false
		}
		cfg.TaskConfigs[taskID] = taskCfg
	}

	return cfg
}

// Validate pings the configured provider for capability. Without a
// validator every configuration is accepted.
func (s *SettingsService) Validate(ctx context.Context, capability domain.Capability) error {
	if s.aiValidator == nil {
		return nil
	}
	settings, err := s.Get()
	if err != nil {
		return err
	}
	switch capability {
	case domain.CapabilityEmbedding:
		return s.aiValidator.ValidateEmbedding(ctx, &settings.Embedding)
	case domain.CapabilityLLM:
		return s.aiValidator.ValidateLLM(ctx, &settings.LLM)
	case domain.CapabilityRerank:
		return s.aiValidator.ValidateRerank(ctx, &settings.Rerank)
	default:
		return fmt.Errorf("%w: unknown capability %q", domain.ErrInvalidInput, capability)
	}
}

// Helper methods for reading config with defaults.

func (s *SettingsService) getString(key, defaultVal string) string {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func (s *SettingsService) getInt(key string, defaultVal int) int {
	val := s.configStore.GetInt(key)
	if val == 0 {
		return defaultVal
	}
	return val
}

func (s *SettingsService) getBool(key string, defaultVal bool) bool {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetBool(key)
}

func (s *SettingsService) getFloat(key string, defaultVal float64) float64 {
	if val, ok := s.configStore.GetFloat(key); ok {
		return val
	}
	return defaultVal
}

func (s *SettingsService) getSeconds(key string, defaultVal time.Duration) time.Duration {
	if secs := s.configStore.GetInt(key); secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return defaultVal
}

func (s *SettingsService) getProvider(key string, defaultVal domain.AIProvider) domain.AIProvider {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal
	}
	provider := domain.AIProvider(val)
	if !provider.IsValid() {
		return defaultVal
	}
	return provider
}

func (s *SettingsService) getRerankProvider(defaultVal domain.RerankProvider) domain.RerankProvider {
	val, exists := s.configStore.Get(keyRerankProvider)
	if !exists {
		return defaultVal
	}
	str, _ := val.(string)
	provider := domain.RerankProvider(str)
	if str != "" && !provider.IsValid() {
		return defaultVal
	}
	return provider
}

func modelOrDefault(model, defaultModel string) string {
	if model != "" {
		return model
	}
	return defaultModel
}

// baseURLFor keeps a custom base URL for local providers and clears it
// for cloud providers.
func baseURLFor(provider domain.AIProvider, current string) string {
	if provider != domain.AIProviderOllama {
		return ""
	}
	if current == "" {
		return defaultOllamaURL
	}
	return current
}
