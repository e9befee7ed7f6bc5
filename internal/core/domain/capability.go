package domain

import "time"

// Capability names an external collaborator the core depends on.
type Capability string

// Known capabilities.
const (
	CapabilityEmbedding Capability = "embedding"
	CapabilityLLM       Capability = "llm"
	CapabilityRerank    Capability = "rerank"
)

// AllCapabilities returns every capability in a stable order.
func AllCapabilities() []Capability {
	return []Capability{CapabilityEmbedding, CapabilityLLM, CapabilityRerank}
}

// CapabilityStatus is the last known health of a capability.
type CapabilityStatus struct {
	// Capability is the capability described.
	Capability Capability

	// Configured is true when an adapter is registered.
	Configured bool

	// Healthy is true when the last check succeeded.
	Healthy bool

	// Model is the backing model name, if known.
	Model string

	// LastError is the most recent failure message.
	LastError string

	// CheckedAt is when health was last updated.
	CheckedAt time.Time
}

// Available reports whether the capability can be called.
func (s CapabilityStatus) Available() bool {
	return s.Configured && s.Healthy
}
