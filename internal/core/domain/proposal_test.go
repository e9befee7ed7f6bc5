package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProposal_Validate(t *testing.T) {
	valid := &Proposal{
		Type:            ProposalTypeSplit,
		TargetArchiveID: "a1",
		Payload:         SplitPayload{ArchiveID: "a1"},
	}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name string
		p    *Proposal
	}{
		{"missing target", &Proposal{Type: ProposalTypeSplit, Payload: SplitPayload{}}},
		{"unknown type", &Proposal{Type: "merge", TargetArchiveID: "a1", Payload: SplitPayload{}}},
		{"nil payload", &Proposal{Type: ProposalTypeSplit, TargetArchiveID: "a1"}},
		{"mismatched payload", &Proposal{Type: ProposalTypeSplit, TargetArchiveID: "a1", Payload: DedupPayload{}}},
		{"dedup of itself", &Proposal{Type: ProposalTypeDedup, TargetArchiveID: "a1",
			Payload: DedupPayload{DuplicateOf: "a1"}}},
		{"dedup without original", &Proposal{Type: ProposalTypeDedup, TargetArchiveID: "a1", Payload: DedupPayload{}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.p.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidInput))
		})
	}
}

func TestDecodePayload_SelectsVariantByType(t *testing.T) {
	data, err := EncodePayload(SplitPayload{
		ArchiveID: "a1",
		Chunks: []ProposedChunk{
			{ChunkIndex: 0, Content: "[report.pdf] one", Original: "one"},
			{ChunkIndex: 1, Content: "two", Original: "two", Fallbacks: []FallbackReason{FallbackEnrichTimeout}},
		},
	})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"suggested_nodes"`)

	p, err := DecodePayload(ProposalTypeSplit, data)
	require.NoError(t, err)
	split, ok := p.(SplitPayload)
	require.True(t, ok)
	assert.Len(t, split.Chunks, 2)
	assert.Equal(t, []FallbackReason{FallbackEnrichTimeout}, split.Chunks[1].Fallbacks)

	_, err = DecodePayload("merge", data)
	assert.True(t, errors.Is(err, ErrInvalidInput))
}

func TestBindPayload(t *testing.T) {
	p, err := BindPayload(DedupPayload{DuplicateOf: "a2", Similarity: 0.98}, "a1")
	require.NoError(t, err)
	assert.Equal(t, DedupPayload{ArchiveID: "a1", DuplicateOf: "a2", Similarity: 0.98}, p)

	p, err = BindPayload(EnrichPayload{ArchiveID: "a1"}, "a1")
	require.NoError(t, err)
	assert.Equal(t, "a1", p.(EnrichPayload).ArchiveID)

	_, err = BindPayload(SplitPayload{ArchiveID: "a9"}, "a1")
	assert.True(t, errors.Is(err, ErrInvalidInput))

	err = (&Proposal{
		Type: ProposalTypeEnrich, TargetArchiveID: "a1", Payload: EnrichPayload{ArchiveID: "a9"},
	}).Validate()
	assert.True(t, errors.Is(err, ErrInvalidInput))
}

func TestProposalFilter_Matches(t *testing.T) {
	p := &Proposal{Type: ProposalTypeSplit, TargetArchiveID: "a1", Status: ProposalStatusPending}

	assert.True(t, ProposalFilter{}.Matches(p))
	assert.True(t, ProposalFilter{Status: ProposalStatusPending, Type: ProposalTypeSplit}.Matches(p))
	assert.False(t, ProposalFilter{Status: ProposalStatusApproved}.Matches(p))
	assert.False(t, ProposalFilter{ArchiveID: "a2"}.Matches(p))
}

func TestStateError_IsInvalidState(t *testing.T) {
	err := &StateError{Entity: "proposal", ID: "p1", From: "REJECTED", To: "APPROVED"}
	assert.True(t, errors.Is(err, ErrInvalidState))
	assert.False(t, errors.Is(err, ErrNotFound))
	assert.Contains(t, err.Error(), "p1")

	nf := &NotFoundError{Entity: "archive", ID: "a9"}
	assert.True(t, errors.Is(nf, ErrNotFound))
}
