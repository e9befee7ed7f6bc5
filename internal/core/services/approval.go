package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/memex/internal/core/domain"
	"github.com/custodia-labs/memex/internal/core/ports/driven"
	"github.com/custodia-labs/memex/internal/core/ports/driving"
	"github.com/custodia-labs/memex/internal/logger"
)

// Ensure ApprovalService implements the interface.
var _ driving.ProposalService = (*ApprovalService)(nil)

// applier turns an approved proposal into the node mutation it stands for.
type applier func(ctx context.Context, p *domain.Proposal) (*domain.NodeReplacement, error)

// ApprovalService is the human-in-the-loop gate over vector node mutations.
type ApprovalService struct {
	proposals driven.ProposalStore
	archives  driven.ArchiveStore
	embedder  driven.EmbeddingService
	registry  *CapabilityRegistry
	appliers  map[domain.ProposalType]applier
	now       func() time.Time
	newID     func() string
}

// NewApprovalService creates an approval service.
// The embedder is optional, but split and enrich proposals cannot be
// approved without it.
func NewApprovalService(
	proposals driven.ProposalStore,
	archives driven.ArchiveStore,
	embedder driven.EmbeddingService,
	registry *CapabilityRegistry,
) *ApprovalService {
	s := &ApprovalService{
		proposals: proposals,
		archives:  archives,
		embedder:  embedder,
		registry:  registry,
		now:       time.Now,
		newID:     uuid.NewString,
	}
	s.appliers = map[domain.ProposalType]applier{
		domain.ProposalTypeSplit:  s.applyChunks,
		domain.ProposalTypeEnrich: s.applyChunks,
		domain.ProposalTypeDedup:  s.applyDedup,
	}
	return s
}

// Create validates and stores a new PENDING proposal.
func (s *ApprovalService) Create(ctx context.Context, proposal *domain.Proposal) error {
	if proposal == nil {
		return fmt.Errorf("%w: nil proposal", domain.ErrInvalidInput)
	}
	if proposal.ID == "" {
		proposal.ID = s.newID()
	}
	if proposal.CreatedAt.IsZero() {
		proposal.CreatedAt = s.now()
	}
	proposal.Status = domain.ProposalStatusPending
	proposal.ResolvedAt = nil
	return s.proposals.Create(ctx, proposal)
}

// Get retrieves a proposal by ID.
func (s *ApprovalService) Get(ctx context.Context, id string) (*domain.Proposal, error) {
	return s.proposals.Get(ctx, id)
}

// List returns proposals matching the filter.
func (s *ApprovalService) List(ctx context.Context, filter domain.ProposalFilter) ([]*domain.Proposal, error) {
	return s.proposals.List(ctx, filter)
}

// Approve applies a PENDING proposal and marks it APPROVED in one
// transaction. Approving an APPROVED proposal returns it unchanged.
func (s *ApprovalService) Approve(ctx context.Context, id string) (*domain.Proposal, error) {
	proposal, err := s.proposals.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	switch proposal.Status {
	case domain.ProposalStatusApproved:
		logger.Debug("Proposal %s already approved", id)
		return proposal, nil
	case domain.ProposalStatusRejected:
		return nil, &domain.StateError{
			Entity: "proposal", ID: id,
			From: string(proposal.Status), To: string(domain.ProposalStatusApproved),
		}
	}

	apply, ok := s.appliers[proposal.Type]
	if !ok {
		return nil, fmt.Errorf("%w: no applier for proposal type %q", domain.ErrInvalidInput, proposal.Type)
	}
	replacement, err := apply(ctx, proposal)
	if err != nil {
		return nil, fmt.Errorf("apply proposal %s: %w", id, err)
	}

	resolved, err := s.proposals.Resolve(ctx, id, domain.ProposalStatusApproved, replacement)
	if err != nil {
		return settleRace(resolved, domain.ProposalStatusApproved, err)
	}
	logger.Info("Proposal %s approved: %d node(s) for archive %s",
		id, len(replacement.Nodes), proposal.TargetArchiveID)
	return resolved, nil
}

// Reject marks a PENDING proposal REJECTED. Nodes are not touched.
// Rejecting a REJECTED proposal returns it unchanged.
func (s *ApprovalService) Reject(ctx context.Context, id string) (*domain.Proposal, error) {
	proposal, err := s.proposals.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	switch proposal.Status {
	case domain.ProposalStatusRejected:
		return proposal, nil
	case domain.ProposalStatusApproved:
		return nil, &domain.StateError{
			Entity: "proposal", ID: id,
			From: string(proposal.Status), To: string(domain.ProposalStatusRejected),
		}
	}

	resolved, err := s.proposals.Resolve(ctx, id, domain.ProposalStatusRejected, nil)
	if err != nil {
		return settleRace(resolved, domain.ProposalStatusRejected, err)
	}
	logger.Info("Proposal %s rejected", id)
	return resolved, nil
}

// settleRace handles a proposal resolved by someone else between our read
// and our write. Reaching the same terminal state is not an error.
func settleRace(current *domain.Proposal, want domain.ProposalStatus, err error) (*domain.Proposal, error) {
	if errors.Is(err, domain.ErrInvalidState) && current != nil && current.Status == want {
		return current, nil
	}
	return nil, err
}

// applyChunks embeds the proposed chunks and builds the replacement node set.
func (s *ApprovalService) applyChunks(ctx context.Context, p *domain.Proposal) (*domain.NodeReplacement, error) {
	var chunks []domain.ProposedChunk
	switch payload := p.Payload.(type) {
	case domain.SplitPayload:
		chunks = payload.Chunks
	case domain.EnrichPayload:
		chunks = payload.Chunks
	default:
		return nil, fmt.Errorf("%w: payload %T does not carry chunks", domain.ErrInvalidInput, p.Payload)
	}

	archive, err := s.completeArchive(ctx, p.TargetArchiveID)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: proposal has no chunks", domain.ErrValidation)
	}
	if s.embedder == nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrCapabilityUnavailable, domain.ErrEmbeddingUnavailable)
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}
	vectors, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		if errors.Is(err, domain.ErrCapabilityUnavailable) {
			s.registry.MarkUnavailable(domain.CapabilityEmbedding, err)
		}
		return nil, fmt.Errorf("embed chunks: %w", err)
	}
	if len(vectors) != len(chunks) {
		return nil, fmt.Errorf("%w: got %d embeddings for %d chunks", domain.ErrValidation, len(vectors), len(chunks))
	}
	s.registry.MarkHealthy(domain.CapabilityEmbedding)

	nodes := make([]*domain.VectorNode, len(chunks))
	for i, c := range chunks {
		meta := c.Meta
		if meta == nil {
			meta = archive.InheritableMeta()
		}
		nodes[i] = &domain.VectorNode{
			ID:              s.newID(),
			ParentArchiveID: archive.ID,
			Content:         c.Content,
			ChunkIndex:      c.ChunkIndex,
			Embedding:       vectors[i],
			Meta:            copyMeta(meta),
		}
	}
	return &domain.NodeReplacement{ArchiveID: archive.ID, Nodes: nodes}, nil
}

// applyDedup retires the nodes of a duplicate archive. The archive itself
// stays searchable through its coarse embedding and full text.
func (s *ApprovalService) applyDedup(ctx context.Context, p *domain.Proposal) (*domain.NodeReplacement, error) {
	if _, ok := p.Payload.(domain.DedupPayload); !ok {
		return nil, fmt.Errorf("%w: payload %T is not a dedup payload", domain.ErrInvalidInput, p.Payload)
	}
	archive, err := s.completeArchive(ctx, p.TargetArchiveID)
	if err != nil {
		return nil, err
	}
	return &domain.NodeReplacement{ArchiveID: archive.ID}, nil
}

func (s *ApprovalService) completeArchive(ctx context.Context, id string) (*domain.Archive, error) {
	archive, err := s.archives.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if archive.Status != domain.ArchiveStatusComplete {
		return nil, &domain.StateError{
			Entity: "archive", ID: id,
			From: string(archive.Status), To: "indexed",
		}
	}
	return archive, nil
}
