package ai

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/custodia-labs/memex/internal/core/ports/driven"
)

// rateLimitedLLM throttles Generate calls to a provider. Ping is not
// throttled so health checks stay cheap.
type rateLimitedLLM struct {
	driven.LLMService
	limiter *rate.Limiter
}

// WithRateLimit wraps svc so Generate waits for a token from a limiter
// allowing rps calls per second with the given burst. A non-positive rps
// returns svc unchanged.
func WithRateLimit(svc driven.LLMService, rps float64, burst int) driven.LLMService {
	if svc == nil || rps <= 0 {
		return svc
	}
	if burst < 1 {
		burst = 1
	}
	return &rateLimitedLLM{
		LLMService: svc,
		limiter:    rate.NewLimiter(rate.Limit(rps), burst),
	}
}

// Generate waits for the limiter, then delegates.
func (l *rateLimitedLLM) Generate(ctx context.Context, prompt string, opts driven.GenerateOptions) (string, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limit: %w", err)
	}
	return l.LLMService.Generate(ctx, prompt, opts)
}
