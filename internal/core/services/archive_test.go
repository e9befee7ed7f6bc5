package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/memex/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/memex/internal/core/domain"
	"github.com/custodia-labs/memex/internal/core/ports/driving"
)

func TestArchiveService_IngestCompletesWithCoarseEmbedding(t *testing.T) {
	store := memory.NewStore()
	embedder := &mockEmbedder{}
	svc := NewArchiveService(store.ArchiveStore(), store.NodeStore(), embedder, nil)

	archive, err := svc.Ingest(context.Background(), driving.IngestRequest{
		FullText: "Quarterly budget notes",
		MetaData: map[string]any{"filename": "notes.md"},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.ArchiveStatusComplete, archive.Status)
	assert.Len(t, archive.Embedding, mockDims)

	stored, err := svc.Get(context.Background(), archive.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ArchiveStatusComplete, stored.Status)
	assert.Equal(t, "notes.md", stored.Filename())
	assert.Len(t, stored.Embedding, mockDims)
}

func TestArchiveService_IngestEmptyTextFails(t *testing.T) {
	store := memory.NewStore()
	svc := NewArchiveService(store.ArchiveStore(), store.NodeStore(), &mockEmbedder{}, nil)

	archive, err := svc.Ingest(context.Background(), driving.IngestRequest{FullText: " \n\t "})
	require.ErrorIs(t, err, domain.ErrInvalidInput)
	require.NotNil(t, archive)
	assert.Equal(t, domain.ArchiveStatusFailed, archive.Status)

	stored, err := svc.Get(context.Background(), archive.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ArchiveStatusFailed, stored.Status)
}

func TestArchiveService_IngestSurvivesEmbeddingFailure(t *testing.T) {
	store := memory.NewStore()
	embedder := &mockEmbedder{err: errors.New("connection refused")}
	svc := NewArchiveService(store.ArchiveStore(), store.NodeStore(), embedder, nil)

	archive, err := svc.Ingest(context.Background(), driving.IngestRequest{FullText: "some text"})
	require.NoError(t, err)
	assert.Equal(t, domain.ArchiveStatusComplete, archive.Status)
	assert.Empty(t, archive.Embedding)
}

func TestArchiveService_IngestTruncatesCoarseInput(t *testing.T) {
	store := memory.NewStore()
	embedder := &recordingEmbedder{}
	svc := NewArchiveService(store.ArchiveStore(), store.NodeStore(), embedder, nil)

	_, err := svc.Ingest(context.Background(), driving.IngestRequest{FullText: strings.Repeat("é", coarseEmbedRunes+50)})
	require.NoError(t, err)
	require.Len(t, embedder.texts, 1)
	assert.Equal(t, coarseEmbedRunes, len([]rune(embedder.texts[0])))
}

func TestArchiveService_SkipsEmbeddingWhenUnavailable(t *testing.T) {
	store := memory.NewStore()
	embedder := &mockEmbedder{}
	registry := NewCapabilityRegistry(embedder, nil, nil)
	registry.MarkUnavailable(domain.CapabilityEmbedding, errors.New("down"))
	svc := NewArchiveService(store.ArchiveStore(), store.NodeStore(), embedder, registry)

	archive, err := svc.Ingest(context.Background(), driving.IngestRequest{FullText: "text"})
	require.NoError(t, err)
	assert.Equal(t, domain.ArchiveStatusComplete, archive.Status)
	assert.Zero(t, embedder.callCount())
}

func TestArchiveService_MarkStatusOnlyOnce(t *testing.T) {
	store := memory.NewStore()
	svc := NewArchiveService(store.ArchiveStore(), store.NodeStore(), nil, nil)

	archive, err := svc.Ingest(context.Background(), driving.IngestRequest{FullText: "text"})
	require.NoError(t, err)

	err = svc.MarkStatus(context.Background(), archive.ID, domain.ArchiveStatusFailed)
	assert.ErrorIs(t, err, domain.ErrInvalidState)
}

func TestArchiveService_NodesAndDelete(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	embedder := &mockEmbedder{}
	svc := NewArchiveService(store.ArchiveStore(), store.NodeStore(), embedder, nil)
	svc.newID = func() string { return "arch-1" }
	approval := NewApprovalService(store.ProposalStore(), store.ArchiveStore(), embedder, nil)

	_, err := svc.Ingest(ctx, driving.IngestRequest{FullText: "one. two."})
	require.NoError(t, err)
	require.NoError(t, approval.Create(ctx, splitProposal("p1", "arch-1", "one.", "two.")))
	_, err = approval.Approve(ctx, "p1")
	require.NoError(t, err)

	nodes, err := svc.Nodes(ctx, "arch-1")
	require.NoError(t, err)
	require.Len(t, nodes, 2)
	assert.Equal(t, "one.", nodes[0].Content)

	node, err := svc.Node(ctx, nodes[1].ID)
	require.NoError(t, err)
	assert.Equal(t, 1, node.ChunkIndex)

	require.NoError(t, svc.Delete(ctx, "arch-1"))

	_, err = svc.Nodes(ctx, "arch-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = svc.Node(ctx, nodes[0].ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = approval.Get(ctx, "p1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

// recordingEmbedder records the texts it was asked to embed.
type recordingEmbedder struct {
	mockEmbedder
	texts []string
}

func (r *recordingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	r.texts = append(r.texts, text)
	return r.mockEmbedder.Embed(ctx, text)
}
