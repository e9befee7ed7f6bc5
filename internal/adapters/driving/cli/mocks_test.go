package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/custodia-labs/memex/internal/core/domain"
	"github.com/custodia-labs/memex/internal/core/ports/driving"
)

var testTime = time.Date(2024, 3, 4, 9, 30, 0, 0, time.UTC)

// mockArchiveService implements driving.ArchiveService over a map.
type mockArchiveService struct {
	archives map[string]*domain.Archive
	nodes    map[string][]*domain.VectorNode
	ingested []driving.IngestRequest
	deleted  []string
}

func newMockArchiveService() *mockArchiveService {
	return &mockArchiveService{
		archives: map[string]*domain.Archive{
			"arc-1": {
				ID:        "arc-1",
				FullText:  "Standup notes. Shipped the importer.",
				MetaData:  map[string]any{domain.MetaFilename: "standup.md", domain.MetaSemanticDate: "2024-03-04"},
				Status:    domain.ArchiveStatusComplete,
				Embedding: []float32{0.1, 0.2},
				CreatedAt: testTime,
			},
		},
		nodes: map[string][]*domain.VectorNode{
			"arc-1": {
				{ID: "node-1", ParentArchiveID: "arc-1", ChunkIndex: 0, Content: "Standup notes.",
					Meta: map[string]any{domain.MetaFilename: "standup.md"}},
				{ID: "node-2", ParentArchiveID: "arc-1", ChunkIndex: 1, Content: "Shipped the importer."},
			},
		},
	}
}

func (m *mockArchiveService) Ingest(_ context.Context, req driving.IngestRequest) (*domain.Archive, error) {
	m.ingested = append(m.ingested, req)
	if req.FullText == "" {
		return nil, domain.ErrInvalidInput
	}
	a := &domain.Archive{
		ID:        "arc-new",
		FullText:  req.FullText,
		MetaData:  req.MetaData,
		Status:    domain.ArchiveStatusPending,
		CreatedAt: testTime,
	}
	m.archives[a.ID] = a
	return a, nil
}

func (m *mockArchiveService) Get(_ context.Context, id string) (*domain.Archive, error) {
	a, ok := m.archives[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return a, nil
}

func (m *mockArchiveService) List(_ context.Context, filter domain.ArchiveFilter) ([]*domain.Archive, error) {
	var out []*domain.Archive
	for _, a := range m.archives {
		if filter.Status == "" || a.Status == filter.Status {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *mockArchiveService) Nodes(_ context.Context, archiveID string) ([]*domain.VectorNode, error) {
	if _, ok := m.archives[archiveID]; !ok {
		return nil, domain.ErrNotFound
	}
	return m.nodes[archiveID], nil
}

func (m *mockArchiveService) Node(_ context.Context, id string) (*domain.VectorNode, error) {
	for _, nodes := range m.nodes {
		for _, n := range nodes {
			if n.ID == id {
				return n, nil
			}
		}
	}
	return nil, domain.ErrNotFound
}

func (m *mockArchiveService) MarkStatus(_ context.Context, id string, status domain.ArchiveStatus) error {
	a, ok := m.archives[id]
	if !ok {
		return domain.ErrNotFound
	}
	a.Status = status
	return nil
}

func (m *mockArchiveService) Delete(_ context.Context, id string) error {
	if _, ok := m.archives[id]; !ok {
		return domain.ErrNotFound
	}
	delete(m.archives, id)
	m.deleted = append(m.deleted, id)
	return nil
}

// mockProposalService implements driving.ProposalService.
type mockProposalService struct {
	proposals []*domain.Proposal
	filters   []domain.ProposalFilter
}

func newMockProposalService() *mockProposalService {
	return &mockProposalService{
		proposals: []*domain.Proposal{
			{
				ID:              "prop-1",
				Type:            domain.ProposalTypeSplit,
				TargetArchiveID: "arc-1",
				Status:          domain.ProposalStatusPending,
				Reasoning:       "semantic split into 2 chunks",
				CreatedAt:       testTime,
				Payload: domain.SplitPayload{
					ArchiveID: "arc-1",
					Chunks: []domain.ProposedChunk{
						{ChunkIndex: 0, Content: "Standup notes.", Original: "Standup notes.",
							Meta: map[string]any{domain.MetaCategory: "work"}},
						{ChunkIndex: 1, Content: "Shipped the importer.", Original: "Shipped the importer.",
							Fallbacks: []domain.FallbackReason{domain.FallbackEnrichTimeout}},
					},
				},
			},
			{
				ID:              "prop-2",
				Type:            domain.ProposalTypeDedup,
				TargetArchiveID: "arc-2",
				Status:          domain.ProposalStatusPending,
				CreatedAt:       testTime,
				Payload:         domain.DedupPayload{ArchiveID: "arc-2", DuplicateOf: "arc-1", Similarity: 0.97},
			},
		},
	}
}

func (m *mockProposalService) Create(_ context.Context, p *domain.Proposal) error {
	if err := p.Validate(); err != nil {
		return err
	}
	for _, existing := range m.proposals {
		if existing.Status == domain.ProposalStatusPending &&
			existing.TargetArchiveID == p.TargetArchiveID && existing.Type == p.Type {
			return fmt.Errorf("%w: %s proposal for archive %s", domain.ErrDuplicatePending, p.Type, p.TargetArchiveID)
		}
	}
	if p.ID == "" {
		p.ID = fmt.Sprintf("prop-%d", len(m.proposals)+1)
	}
	p.Status = domain.ProposalStatusPending
	p.CreatedAt = testTime
	m.proposals = append(m.proposals, p)
	return nil
}

func (m *mockProposalService) Get(_ context.Context, id string) (*domain.Proposal, error) {
	for _, p := range m.proposals {
		if p.ID == id {
			return p, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *mockProposalService) List(_ context.Context, filter domain.ProposalFilter) ([]*domain.Proposal, error) {
	m.filters = append(m.filters, filter)
	var out []*domain.Proposal
	for _, p := range m.proposals {
		if filter.Matches(p) {
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

func (m *mockProposalService) resolve(
	ctx context.Context, id string, status domain.ProposalStatus,
) (*domain.Proposal, error) {
	p, err := m.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.Status != domain.ProposalStatusPending {
		return nil, domain.ErrInvalidState
	}
	p.Status = status
	now := testTime
	p.ResolvedAt = &now
	return p, nil
}

// mockRefinementService implements driving.RefinementService.
type mockRefinementService struct {
	report   *domain.SweepReport
	sweepErr error
	refined  []string
}

func (m *mockRefinementService) Sweep(context.Context) (*domain.SweepReport, error) {
	return m.report, m.sweepErr
}

func (m *mockRefinementService) RefineArchive(_ context.Context, archiveID string) (*domain.Proposal, error) {
	m.refined = append(m.refined, archiveID)
	if archiveID == "missing" {
		return nil, domain.ErrNotFound
	}
	return &domain.Proposal{
		ID:              "prop-new",
		Type:            domain.ProposalTypeSplit,
		TargetArchiveID: archiveID,
		Status:          domain.ProposalStatusPending,
		CreatedAt:       testTime,
		Payload: domain.SplitPayload{ArchiveID: archiveID, Chunks: []domain.ProposedChunk{
			{ChunkIndex: 0, Content: "one"}, {ChunkIndex: 1, Content: "two"},
		}},
	}, nil
}

// mockRetrievalService implements driving.RetrievalService.
type mockRetrievalService struct {
	result  *domain.RetrievalResult
	err     error
	queries []domain.RetrievalQuery
}

func (m *mockRetrievalService) Query(_ context.Context, q domain.RetrievalQuery) (*domain.RetrievalResult, error) {
	m.queries = append(m.queries, q)
	return m.result, m.err
}

// mockCapabilityService implements driving.CapabilityService.
type mockCapabilityService struct {
	statuses []domain.CapabilityStatus
}

func (m *mockCapabilityService) Refresh(context.Context) []domain.CapabilityStatus { return m.statuses }

func (m *mockCapabilityService) Snapshot() []domain.CapabilityStatus { return m.statuses }

// mockScheduler implements driving.Scheduler.
type mockScheduler struct {
	started chan struct{}
	stopped bool
	history []domain.TaskResult
}

func (m *mockScheduler) Start(ctx context.Context) error {
	close(m.started)
	<-ctx.Done()
	return ctx.Err()
}

func (m *mockScheduler) Stop() error {
	m.stopped = true
	return nil
}

func (m *mockScheduler) History(_ context.Context, taskID string, limit int) ([]domain.TaskResult, error) {
	var out []domain.TaskResult
	for _, r := range m.history {
		if r.TaskID == taskID && len(out) < limit {
			out = append(out, r)
		}
	}
	return out, nil
}

// testServices is what setupTestServices injected.
type testServices struct {
	archives     *mockArchiveService
	proposals    *mockProposalService
	refinement   *mockRefinementService
	retrieval    *mockRetrievalService
	capabilities *mockCapabilityService
}

// setupTestServices injects mocks and returns a func restoring the previous
// services.
func setupTestServices() (*testServices, func()) {
	prev := Services{
		Archives:        archiveService,
		Proposals:       proposalService,
		Refinement:      refinementService,
		Retrieval:       retrievalService,
		Capabilities:    capabilityService,
		Settings:        settingsService,
		Scheduler:       scheduler,
		SchedulerConfig: schedulerConfig,
		Prompts:         promptWatcher,
	}

	ts := &testServices{
		archives:   newMockArchiveService(),
		proposals:  newMockProposalService(),
		refinement: &mockRefinementService{},
		retrieval:  &mockRetrievalService{result: &domain.RetrievalResult{}},
		capabilities: &mockCapabilityService{statuses: []domain.CapabilityStatus{
			{Capability: domain.CapabilityEmbedding, Configured: true, Healthy: true, Model: "nomic-embed-text"},
			{Capability: domain.CapabilityLLM, Configured: true, Model: "llama3.2", LastError: "connection refused"},
			{Capability: domain.CapabilityRerank},
		}},
	}
	SetServices(Services{
		Archives:     ts.archives,
		Proposals:    ts.proposals,
		Refinement:   ts.refinement,
		Retrieval:    ts.retrieval,
		Capabilities: ts.capabilities,
	})

	return ts, func() { SetServices(prev) }
}
