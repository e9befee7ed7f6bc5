package messages

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/custodia-labs/memex/internal/core/domain"
)

func TestViewType_String(t *testing.T) {
	tests := []struct {
		view ViewType
		want string
	}{
		{ViewList, "list"},
		{ViewPreview, "preview"},
		{ViewHelp, "help"},
		{ViewType(99), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.view.String())
		})
	}
}

func TestProposalsLoaded(t *testing.T) {
	t.Run("with proposals", func(t *testing.T) {
		msg := ProposalsLoaded{Proposals: []*domain.Proposal{{ID: "p1"}, {ID: "p2"}}}
		assert.Len(t, msg.Proposals, 2)
		assert.NoError(t, msg.Err)
	})

	t.Run("with error", func(t *testing.T) {
		msg := ProposalsLoaded{Err: errors.New("store closed")}
		assert.Empty(t, msg.Proposals)
		assert.EqualError(t, msg.Err, "store closed")
	})
}

func TestProposalResolved(t *testing.T) {
	p := &domain.Proposal{ID: "p1", Status: domain.ProposalStatusApproved}
	msg := ProposalResolved{Proposal: p}

	assert.Same(t, p, msg.Proposal)
	assert.Equal(t, domain.ProposalStatusApproved, msg.Proposal.Status)
}
