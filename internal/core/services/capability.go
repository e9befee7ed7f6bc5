package services

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/memex/internal/core/domain"
	"github.com/custodia-labs/memex/internal/core/ports/driven"
	"github.com/custodia-labs/memex/internal/core/ports/driving"
	"github.com/custodia-labs/memex/internal/logger"
)

// Ensure CapabilityRegistry implements the interface.
var _ driving.CapabilityService = (*CapabilityRegistry)(nil)

// defaultPingTimeout bounds a single capability health check.
const defaultPingTimeout = 5 * time.Second

// pinger is the health-check surface shared by every capability.
type pinger interface {
	Ping(ctx context.Context) error
	ModelName() string
}

// CapabilityRegistry holds the process-wide health of the embedding, LLM
// and rerank capabilities. It is created once at start-up and injected into
// the services that call those capabilities.
type CapabilityRegistry struct {
	mu          sync.RWMutex
	status      map[domain.Capability]*domain.CapabilityStatus
	pingers     map[domain.Capability]pinger
	pingTimeout time.Duration
	now         func() time.Time
}

// NewCapabilityRegistry creates a registry. Nil services are recorded as
// not configured. Configured capabilities start out healthy.
func NewCapabilityRegistry(
	embedding driven.EmbeddingService,
	llm driven.LLMService,
	reranker driven.Reranker,
) *CapabilityRegistry {
	r := &CapabilityRegistry{
		status:      make(map[domain.Capability]*domain.CapabilityStatus),
		pingers:     make(map[domain.Capability]pinger),
		pingTimeout: defaultPingTimeout,
		now:         time.Now,
	}
	if embedding != nil {
		r.pingers[domain.CapabilityEmbedding] = embedding
	}
	if llm != nil {
		r.pingers[domain.CapabilityLLM] = llm
	}
	if reranker != nil {
		r.pingers[domain.CapabilityRerank] = reranker
	}
	for _, c := range domain.AllCapabilities() {
		st := &domain.CapabilityStatus{Capability: c}
		if p, ok := r.pingers[c]; ok {
			st.Configured = true
			st.Healthy = true
			st.Model = p.ModelName()
		}
		r.status[c] = st
	}
	return r
}

// SetPingTimeout overrides the per-capability health check timeout.
func (r *CapabilityRegistry) SetPingTimeout(d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pingTimeout = d
}

// Configured reports whether an adapter is registered for c.
func (r *CapabilityRegistry) Configured(c domain.Capability) bool {
	if r == nil {
		return false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.status[c].Configured
}

// Available reports whether c is configured and was healthy at last check.
// A nil registry treats every capability as available.
func (r *CapabilityRegistry) Available(c domain.Capability) bool {
	if r == nil {
		return true
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.status[c].Available()
}

// MarkUnavailable records a failed call to c.
func (r *CapabilityRegistry) MarkUnavailable(c domain.Capability, err error) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	st := r.status[c]
	if st.Healthy {
		logger.Warn("Capability %s marked unavailable: %v", c, err)
	}
	st.Healthy = false
	if err != nil {
		st.LastError = err.Error()
	}
	st.CheckedAt = r.now()
}

// MarkHealthy records a successful call to c.
func (r *CapabilityRegistry) MarkHealthy(c domain.Capability) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	st := r.status[c]
	if !st.Configured {
		return
	}
	st.Healthy = true
	st.LastError = ""
	st.CheckedAt = r.now()
}

// Refresh pings every configured capability in parallel.
func (r *CapabilityRegistry) Refresh(ctx context.Context) []domain.CapabilityStatus {
	r.mu.RLock()
	timeout := r.pingTimeout
	pingers := make(map[domain.Capability]pinger, len(r.pingers))
	for c, p := range r.pingers {
		pingers[c] = p
	}
	r.mu.RUnlock()

	var g errgroup.Group
	for c, p := range pingers {
		g.Go(func() error {
			pingCtx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			if err := p.Ping(pingCtx); err != nil {
				r.MarkUnavailable(c, err)
				return nil
			}
			r.MarkHealthy(c)
			return nil
		})
	}
	_ = g.Wait()

	return r.Snapshot()
}

// Snapshot returns the last known status of every capability.
func (r *CapabilityRegistry) Snapshot() []domain.CapabilityStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.CapabilityStatus, 0, len(r.status))
	for _, c := range domain.AllCapabilities() {
		out = append(out, *r.status[c])
	}
	return out
}
