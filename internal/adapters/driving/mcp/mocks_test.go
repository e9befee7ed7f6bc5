package mcp

import (
	"context"
	"fmt"

	"github.com/custodia-labs/memex/internal/core/domain"
	"github.com/custodia-labs/memex/internal/core/ports/driving"
)

// mockRetrievalService is a mock implementation of driving.RetrievalService.
type mockRetrievalService struct {
	result *domain.RetrievalResult
	err    error
	last   domain.RetrievalQuery
}

func (m *mockRetrievalService) Query(_ context.Context, q domain.RetrievalQuery) (*domain.RetrievalResult, error) {
	m.last = q
	if m.err != nil {
		return nil, m.err
	}
	if m.result == nil {
		return &domain.RetrievalResult{Blocks: []domain.ContextBlock{}}, nil
	}
	return m.result, nil
}

// mockProposalService is a mock implementation of driving.ProposalService.
type mockProposalService struct {
	proposals map[string]*domain.Proposal
	filter    domain.ProposalFilter
	err       error
}

func (m *mockProposalService) Create(_ context.Context, p *domain.Proposal) error {
	if m.err != nil {
		return m.err
	}
	if err := p.Validate(); err != nil {
		return err
	}
	if m.proposals == nil {
		m.proposals = make(map[string]*domain.Proposal)
	}
	for _, existing := range m.proposals {
		if existing.Status == domain.ProposalStatusPending &&
			existing.TargetArchiveID == p.TargetArchiveID && existing.Type == p.Type {
			return domain.ErrDuplicatePending
		}
	}
	if p.ID == "" {
		p.ID = fmt.Sprintf("p-%d", len(m.proposals)+1)
	}
	p.Status = domain.ProposalStatusPending
	m.proposals[p.ID] = p
	return nil
}

func (m *mockProposalService) Get(_ context.Context, id string) (*domain.Proposal, error) {
	if m.err != nil {
		return nil, m.err
	}
	p, ok := m.proposals[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return p, nil
}

func (m *mockProposalService) List(_ context.Context, f domain.ProposalFilter) ([]*domain.Proposal, error) {
	m.filter = f
	if m.err != nil {
		return nil, m.err
	}
	var out []*domain.Proposal
	for _, p := range m.proposals {
		if f.Matches(p) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *mockProposalService) Approve(ctx context.Context, id string) (*domain.Proposal, error) {
	return m.resolve(ctx, id, domain.ProposalStatusApproved)
}

func (m *mockProposalService) Reject(ctx context.Context, id string) (*domain.Proposal, error) {
	return m.resolve(ctx, id, domain.ProposalStatusRejected)
}

func (m *mockProposalService) resolve(ctx context.Context, id string, to domain.ProposalStatus) (*domain.Proposal, error) {
	p, err := m.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.Status != domain.ProposalStatusPending && p.Status != to {
		return nil, &domain.StateError{Entity: "proposal", ID: id, From: string(p.Status), To: string(to)}
	}
	p.Status = to
	return p, nil
}

// mockRefinementService is a mock implementation of driving.RefinementService.
type mockRefinementService struct {
	report   *domain.SweepReport
	proposal *domain.Proposal
	err      error
}

func (m *mockRefinementService) Sweep(context.Context) (*domain.SweepReport, error) {
	return m.report, m.err
}

func (m *mockRefinementService) RefineArchive(context.Context, string) (*domain.Proposal, error) {
	return m.proposal, m.err
}

// mockArchiveService is a mock implementation of driving.ArchiveService.
type mockArchiveService struct {
	archives map[string]*domain.Archive
	nodes    map[string][]*domain.VectorNode
}

func (m *mockArchiveService) Ingest(context.Context, driving.IngestRequest) (*domain.Archive, error) {
	return nil, domain.ErrInvalidInput
}

func (m *mockArchiveService) Get(_ context.Context, id string) (*domain.Archive, error) {
	a, ok := m.archives[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return a, nil
}

func (m *mockArchiveService) List(context.Context, domain.ArchiveFilter) ([]*domain.Archive, error) {
	return nil, nil
}

func (m *mockArchiveService) Nodes(_ context.Context, id string) ([]*domain.VectorNode, error) {
	if _, ok := m.archives[id]; !ok {
		return nil, domain.ErrNotFound
	}
	return m.nodes[id], nil
}

func (m *mockArchiveService) Node(context.Context, string) (*domain.VectorNode, error) {
	return nil, domain.ErrNotFound
}

func (m *mockArchiveService) MarkStatus(context.Context, string, domain.ArchiveStatus) error {
	return nil
}

func (m *mockArchiveService) Delete(context.Context, string) error {
	return nil
}
