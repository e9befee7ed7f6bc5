package mcp

import (
	"github.com/custodia-labs/memex/internal/core/ports/driving"
)

// Ports aggregates all driving port interfaces required by the MCP server.
// This provides a single injection point for dependency injection.
type Ports struct {
	// Retrieval answers queries.
	Retrieval driving.RetrievalService

	// Proposals creates, lists and resolves refinement proposals.
	Proposals driving.ProposalService

	// Refinement runs the gardener on demand.
	Refinement driving.RefinementService

	// Archives exposes archives and nodes as resources.
	Archives driving.ArchiveService
}

// Validate ensures all required ports are set.
// Only retrieval is required; the other tools report themselves unavailable.
func (p *Ports) Validate() error {
	if p.Retrieval == nil {
		return ErrMissingRetrievalService
	}
	return nil
}
