package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/memex/internal/core/domain"
	"github.com/custodia-labs/memex/internal/core/ports/driven"
	"github.com/custodia-labs/memex/internal/core/ports/driving"
	"github.com/custodia-labs/memex/internal/logger"
)

// Ensure ArchiveService implements the interface.
var _ driving.ArchiveService = (*ArchiveService)(nil)

// coarseEmbedRunes caps the text used for an archive's coarse embedding.
const coarseEmbedRunes = 8000

// ArchiveService exposes archives and nodes, and performs the minimal
// ingestion hand-off that makes an archive visible to the gardener.
type ArchiveService struct {
	archives driven.ArchiveStore
	nodes    driven.NodeStore
	embedder driven.EmbeddingService
	registry *CapabilityRegistry
	now      func() time.Time
	newID    func() string
}

// NewArchiveService creates an archive service.
// The embedder is optional; without it archives have no coarse embedding.
func NewArchiveService(
	archives driven.ArchiveStore,
	nodes driven.NodeStore,
	embedder driven.EmbeddingService,
	registry *CapabilityRegistry,
) *ArchiveService {
	return &ArchiveService{
		archives: archives,
		nodes:    nodes,
		embedder: embedder,
		registry: registry,
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// Ingest stores text as a new archive. Empty text is recorded as FAILED
// and reported as invalid input.
func (s *ArchiveService) Ingest(ctx context.Context, req driving.IngestRequest) (*domain.Archive, error) {
	archive := &domain.Archive{
		ID:        s.newID(),
		FullText:  req.FullText,
		MetaData:  copyMeta(req.MetaData),
		Status:    domain.ArchiveStatusPending,
		CreatedAt: s.now(),
	}
	if err := s.archives.Save(ctx, archive); err != nil {
		return nil, fmt.Errorf("save archive: %w", err)
	}

	if strings.TrimSpace(req.FullText) == "" {
		if err := s.MarkStatus(ctx, archive.ID, domain.ArchiveStatusFailed); err != nil {
			return nil, err
		}
		archive.Status = domain.ArchiveStatusFailed
		return archive, fmt.Errorf("%w: archive text is empty", domain.ErrInvalidInput)
	}

	if s.embedder != nil && s.registry.Available(domain.CapabilityEmbedding) {
		vec, err := s.embedder.Embed(ctx, excerpt(req.FullText, coarseEmbedRunes))
		switch {
		case err == nil:
			if err := s.archives.SetEmbedding(ctx, archive.ID, vec); err != nil {
				return nil, fmt.Errorf("save coarse embedding: %w", err)
			}
			archive.Embedding = vec
		case errors.Is(err, domain.ErrCapabilityUnavailable):
			s.registry.MarkUnavailable(domain.CapabilityEmbedding, err)
			logger.Warn("Archive %s stored without coarse embedding: %v", archive.ID, err)
		default:
			logger.Warn("Archive %s stored without coarse embedding: %v", archive.ID, err)
		}
	}

	if err := s.MarkStatus(ctx, archive.ID, domain.ArchiveStatusComplete); err != nil {
		return nil, err
	}
	archive.Status = domain.ArchiveStatusComplete
	logger.Info("Ingested archive %s (%d bytes)", archive.ID, len(archive.FullText))
	return archive, nil
}

// MarkStatus moves a PENDING archive to a terminal state exactly once.
func (s *ArchiveService) MarkStatus(ctx context.Context, id string, status domain.ArchiveStatus) error {
	if err := s.archives.SetStatus(ctx, id, status); err != nil {
		return fmt.Errorf("mark archive %s %s: %w", id, status, err)
	}
	return nil
}

// Get retrieves an archive by ID.
func (s *ArchiveService) Get(ctx context.Context, id string) (*domain.Archive, error) {
	return s.archives.Get(ctx, id)
}

// List returns archives matching the filter, newest first.
func (s *ArchiveService) List(ctx context.Context, filter domain.ArchiveFilter) ([]*domain.Archive, error) {
	return s.archives.List(ctx, filter)
}

// Nodes returns an archive's vector nodes in chunk_index order.
func (s *ArchiveService) Nodes(ctx context.Context, archiveID string) ([]*domain.VectorNode, error) {
	if _, err := s.archives.Get(ctx, archiveID); err != nil {
		return nil, err
	}
	return s.nodes.ListByArchive(ctx, archiveID)
}

// Node retrieves a single vector node.
func (s *ArchiveService) Node(ctx context.Context, id string) (*domain.VectorNode, error) {
	return s.nodes.Get(ctx, id)
}

// Delete removes an archive with its nodes and proposals.
func (s *ArchiveService) Delete(ctx context.Context, id string) error {
	if err := s.archives.Delete(ctx, id); err != nil {
		return err
	}
	logger.Info("Deleted archive %s", id)
	return nil
}
