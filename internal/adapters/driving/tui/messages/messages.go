// Package messages defines Bubbletea message types for the review TUI.
package messages

import (
	"github.com/custodia-labs/memex/internal/core/domain"
)

// ViewType identifies which view is currently active.
type ViewType int

const (
	// ViewList is the pending proposal list.
	ViewList ViewType = iota
	// ViewPreview shows the chunks one proposal would write.
	ViewPreview
	// ViewHelp is the keybindings view.
	ViewHelp
)

// String returns the string representation of the view type.
func (v ViewType) String() string {
	switch v {
	case ViewList:
		return "list"
	case ViewPreview:
		return "preview"
	case ViewHelp:
		return "help"
	default:
		return "unknown"
	}
}

// ViewChanged is sent when navigating between views.
type ViewChanged struct {
	View ViewType
}

// ProposalsLoaded carries the pending proposals from the service.
type ProposalsLoaded struct {
	Proposals []*domain.Proposal
	Err       error
}

// ProposalSelected opens a proposal in the preview.
type ProposalSelected struct {
	Proposal *domain.Proposal
}

// ArchiveLoaded carries the archive a previewed proposal targets.
type ArchiveLoaded struct {
	Archive *domain.Archive
	Err     error
}

// ResolveRequested asks the list to approve or reject a proposal.
type ResolveRequested struct {
	ProposalID string
	Approve    bool
}

// ProposalResolved signals an approve or reject finished.
type ProposalResolved struct {
	Proposal *domain.Proposal
	Err      error
}

// ErrorOccurred signals that an error happened.
type ErrorOccurred struct {
	Err error
}

// Quit signals the application should exit.
type Quit struct{}
