package ai

import (
	"context"
	"time"

	"github.com/custodia-labs/memex/internal/core/domain"
	"github.com/custodia-labs/memex/internal/core/ports/driven"
)

var _ driven.AIConfigValidator = (*ConfigValidator)(nil)

// defaultPingTimeout bounds a single validation round trip.
const defaultPingTimeout = 5 * time.Second

// ConfigValidator builds a throwaway adapter from the settings and pings it.
type ConfigValidator struct {
	// Timeout caps each ping. Zero means five seconds.
	Timeout time.Duration
}

// NewConfigValidator returns a validator with the default timeout.
func NewConfigValidator() *ConfigValidator {
	return &ConfigValidator{Timeout: defaultPingTimeout}
}

func (v *ConfigValidator) ValidateEmbedding(ctx context.Context, settings *domain.EmbeddingSettings) error {
	svc, err := CreateEmbeddingService(settings)
	if err != nil || svc == nil {
		return err
	}
	defer svc.Close()
	return v.ping(ctx, svc)
}

func (v *ConfigValidator) ValidateLLM(ctx context.Context, settings *domain.LLMSettings) error {
	svc, err := CreateLLMService(settings)
	if err != nil || svc == nil {
		return err
	}
	defer svc.Close()
	return v.ping(ctx, svc)
}

func (v *ConfigValidator) ValidateRerank(ctx context.Context, settings *domain.RerankSettings) error {
	r, err := CreateReranker(settings)
	if err != nil || r == nil {
		return err
	}
	return v.ping(ctx, r)
}

type pinger interface {
	Ping(ctx context.Context) error
}

func (v *ConfigValidator) ping(ctx context.Context, p pinger) error {
	timeout := v.Timeout
	if timeout <= 0 {
		timeout = defaultPingTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return p.Ping(ctx)
}
