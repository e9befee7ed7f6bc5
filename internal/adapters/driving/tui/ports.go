// Package tui is the interactive proposal review screen behind memex review.
package tui

import (
	"errors"

	"github.com/custodia-labs/memex/internal/core/ports/driving"
)

var (
	// ErrMissingProposalService means the review screen has nothing to list.
	ErrMissingProposalService = errors.New("tui: proposal service is required")

	// ErrInvalidPorts is returned by NewApp for nil ports.
	ErrInvalidPorts = errors.New("tui: invalid ports configuration")
)

// Ports aggregates the driving ports used by the TUI.
type Ports struct {
	// Proposals lists and resolves refinement proposals.
	Proposals driving.ProposalService

	// Archives supplies the original text shown next to a proposal.
	// Optional: without it the preview shows only the proposed chunks.
	Archives driving.ArchiveService
}

// NewPorts creates a new Ports aggregate with the given services.
func NewPorts(proposals driving.ProposalService, archives driving.ArchiveService) *Ports {
	return &Ports{
		Proposals: proposals,
		Archives:  archives,
	}
}

// Validate ensures all required ports are set.
func (p *Ports) Validate() error {
	if p.Proposals == nil {
		return ErrMissingProposalService
	}
	return nil
}
