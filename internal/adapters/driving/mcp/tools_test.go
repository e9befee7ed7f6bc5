package mcp

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/memex/internal/core/domain"
)

func newTestServer(t *testing.T, ports *Ports) *Server {
	t.Helper()
	if ports.Retrieval == nil {
		ports.Retrieval = &mockRetrievalService{}
	}
	server, err := NewServer(ports)
	require.NoError(t, err)
	server.now = func() time.Time { return time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC) }
	return server
}

func pendingSplit(id, archiveID string, chunks int) *domain.Proposal {
	payload := domain.SplitPayload{ArchiveID: archiveID}
	for i := 0; i < chunks; i++ {
		payload.Chunks = append(payload.Chunks, domain.ProposedChunk{ChunkIndex: i, Content: "c"})
	}
	return &domain.Proposal{
		ID:              id,
		Type:            domain.ProposalTypeSplit,
		TargetArchiveID: archiveID,
		Payload:         payload,
		Status:          domain.ProposalStatusPending,
	}
}

func TestServer_handleQuery(t *testing.T) {
	ctx := context.Background()

	t.Run("maps blocks and passes range", func(t *testing.T) {
		retrieval := &mockRetrievalService{result: &domain.RetrievalResult{
			Blocks: []domain.ContextBlock{{
				ArchiveID: "a-1",
				Header:    map[string]any{"filename": "q3.md"},
				Score:     0.9,
				Chunks: []domain.MatchedChunk{
					{NodeID: "n-1", ChunkIndex: 0, Content: "budget", Score: 0.9},
					{NodeID: "n-2", ChunkIndex: 2, Content: "review", Score: 0.7},
				},
			}},
			Methods:  []domain.RetrievalMethod{domain.MethodDense, domain.MethodSparse, domain.MethodFusion},
			Degraded: true,
			Warnings: []string{"rerank failed"},
		}}
		server := newTestServer(t, &Ports{Retrieval: retrieval})

		_, out, err := server.handleQuery(ctx, nil, QueryInput{Query: "budget", K: 3, Range: "2024-03"})
		require.NoError(t, err)

		assert.Equal(t, "budget", retrieval.last.Text)
		assert.Equal(t, 3, retrieval.last.K)
		require.NotNil(t, retrieval.last.TimeRange)
		assert.Equal(t, time.March, retrieval.last.TimeRange.Start.Month())

		require.Equal(t, 1, out.Count)
		assert.False(t, out.Empty)
		assert.True(t, out.Degraded)
		assert.Equal(t, []string{"dense", "sparse", "fusion"}, out.Methods)
		assert.Equal(t, "a-1", out.Blocks[0].ArchiveID)
		require.Len(t, out.Blocks[0].Chunks, 2)
		assert.Equal(t, 2, out.Blocks[0].Chunks[1].ChunkIndex)
	})

	t.Run("empty result is not an error", func(t *testing.T) {
		server := newTestServer(t, &Ports{})

		_, out, err := server.handleQuery(ctx, nil, QueryInput{Query: "nothing"})
		require.NoError(t, err)
		assert.True(t, out.Empty)
		assert.NotNil(t, out.Blocks)
	})

	t.Run("bad range is invalid input", func(t *testing.T) {
		server := newTestServer(t, &Ports{})

		_, _, err := server.handleQuery(ctx, nil, QueryInput{Query: "x", Range: "someday"})
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("capability failure is labelled retryable", func(t *testing.T) {
		retrieval := &mockRetrievalService{err: fmt.Errorf("%w: both searches failed", domain.ErrCapabilityUnavailable)}
		server := newTestServer(t, &Ports{Retrieval: retrieval})

		_, _, err := server.handleQuery(ctx, nil, QueryInput{Query: "x"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "retry later")
	})
}

func TestServer_handleListProposals(t *testing.T) {
	ctx := context.Background()
	proposals := &mockProposalService{proposals: map[string]*domain.Proposal{
		"p-1": pendingSplit("p-1", "a-1", 3),
	}}
	server := newTestServer(t, &Ports{Proposals: proposals})

	_, out, err := server.handleListProposals(ctx, nil, ListProposalsInput{})
	require.NoError(t, err)
	assert.Equal(t, domain.ProposalStatusPending, proposals.filter.Status)
	assert.Equal(t, defaultProposalLimit, proposals.filter.Limit)
	require.Equal(t, 1, out.Count)
	assert.Equal(t, 3, out.Proposals[0].Chunks)
	assert.Equal(t, "split", out.Proposals[0].Type)

	_, _, err = server.handleListProposals(ctx, nil, ListProposalsInput{Status: "MAYBE"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestServer_handleApproveAndReject(t *testing.T) {
	ctx := context.Background()
	proposals := &mockProposalService{proposals: map[string]*domain.Proposal{
		"p-1": pendingSplit("p-1", "a-1", 1),
		"p-2": pendingSplit("p-2", "a-2", 1),
	}}
	server := newTestServer(t, &Ports{Proposals: proposals})

	_, out, err := server.handleApproveProposal(ctx, nil, ProposalIDInput{ID: "p-1"})
	require.NoError(t, err)
	assert.Equal(t, "APPROVED", out.Status)

	_, out, err = server.handleRejectProposal(ctx, nil, ProposalIDInput{ID: "p-2"})
	require.NoError(t, err)
	assert.Equal(t, "REJECTED", out.Status)

	_, _, err = server.handleRejectProposal(ctx, nil, ProposalIDInput{ID: "p-1"})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidState)
	assert.Contains(t, err.Error(), "invalid state")

	_, _, err = server.handleApproveProposal(ctx, nil, ProposalIDInput{ID: "missing"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestServer_handleCreateProposal(t *testing.T) {
	ctx := context.Background()
	proposals := &mockProposalService{proposals: map[string]*domain.Proposal{
		"p-0": pendingSplit("p-0", "a-1", 2),
	}}
	server := newTestServer(t, &Ports{Proposals: proposals})

	_, out, err := server.handleCreateProposal(ctx, nil, CreateProposalInput{
		Type: "dedup", ArchiveID: "a-2", DuplicateOf: "a-1", Similarity: 0.96, Reasoning: "same upload twice",
	})
	require.NoError(t, err)
	assert.Equal(t, "dedup", out.Type)
	assert.Equal(t, "PENDING", out.Status)
	assert.Equal(t, domain.DedupPayload{ArchiveID: "a-2", DuplicateOf: "a-1", Similarity: 0.96},
		proposals.proposals[out.ID].Payload)

	_, out, err = server.handleCreateProposal(ctx, nil, CreateProposalInput{
		Type: "enrich", ArchiveID: "a-1",
		Chunks: []ChunkInput{{Content: "[notes] one", Original: "one"}, {Content: "[notes] two", Original: "two"}},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, out.Chunks)
	enrich, ok := proposals.proposals[out.ID].Payload.(domain.EnrichPayload)
	require.True(t, ok)
	assert.Equal(t, 1, enrich.Chunks[1].ChunkIndex)

	// One pending proposal per archive and type.
	_, _, err = server.handleCreateProposal(ctx, nil, CreateProposalInput{
		Type: "dedup", ArchiveID: "a-2", DuplicateOf: "a-3",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrDuplicatePending)
	assert.Contains(t, err.Error(), "already pending")

	for _, input := range []CreateProposalInput{
		{Type: "merge", ArchiveID: "a-1"},
		{Type: "enrich", ArchiveID: "a-1"},
		{Type: "dedup", ArchiveID: "a-1", DuplicateOf: "a-1"},
	} {
		_, _, err := server.handleCreateProposal(ctx, nil, input)
		assert.ErrorIs(t, err, domain.ErrInvalidInput, input.Type)
	}
}

func TestServer_ProposalToolsWithoutPort(t *testing.T) {
	server := newTestServer(t, &Ports{})

	_, _, err := server.handleApproveProposal(context.Background(), nil, ProposalIDInput{ID: "p"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errNotConfigured))
}

func TestServer_handleRefine(t *testing.T) {
	ctx := context.Background()

	t.Run("sweep", func(t *testing.T) {
		report := domain.NewSweepReport(time.Now())
		report.Scanned = 4
		report.Proposed = 2
		report.Skipped = 1
		report.Deferred = 1
		report.Fallbacks[domain.FallbackSplitTimeout] = 2
		report.ProposalIDs = []string{"p-1", "p-2"}
		server := newTestServer(t, &Ports{Refinement: &mockRefinementService{report: report}})

		_, out, err := server.handleRefine(ctx, nil, RefineInput{})
		require.NoError(t, err)
		assert.Equal(t, 4, out.Scanned)
		assert.Equal(t, 2, out.Fallbacks["split_timeout"])
		assert.Equal(t, []string{"p-1", "p-2"}, out.ProposalIDs)
	})

	t.Run("single archive", func(t *testing.T) {
		refinement := &mockRefinementService{proposal: pendingSplit("p-9", "a-9", 2)}
		server := newTestServer(t, &Ports{Refinement: refinement})

		_, out, err := server.handleRefine(ctx, nil, RefineInput{ArchiveID: "a-9"})
		require.NoError(t, err)
		assert.Equal(t, []string{"p-9"}, out.ProposalIDs)
	})

	t.Run("deferred sweep", func(t *testing.T) {
		refinement := &mockRefinementService{err: domain.ErrCapabilityUnavailable}
		server := newTestServer(t, &Ports{Refinement: refinement})

		_, _, err := server.handleRefine(ctx, nil, RefineInput{})
		assert.ErrorIs(t, err, domain.ErrCapabilityUnavailable)
	})
}
