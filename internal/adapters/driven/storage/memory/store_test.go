package memory

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/memex/internal/core/domain"
)

func seedArchive(t *testing.T, s *Store, id, text string) *domain.Archive {
	t.Helper()
	ctx := context.Background()
	archive := &domain.Archive{ID: id, FullText: text, MetaData: map[string]any{"filename": id + ".txt"}}
	require.NoError(t, s.ArchiveStore().Save(ctx, archive))
	require.NoError(t, s.ArchiveStore().SetStatus(ctx, id, domain.ArchiveStatusComplete))
	return archive
}

func pendingSplit(id, archiveID string) *domain.Proposal {
	return &domain.Proposal{
		ID:              id,
		Type:            domain.ProposalTypeSplit,
		TargetArchiveID: archiveID,
		Payload:         domain.SplitPayload{ArchiveID: archiveID},
	}
}

func nodesFor(archiveID string, contents ...string) *domain.NodeReplacement {
	r := &domain.NodeReplacement{ArchiveID: archiveID}
	for i, c := range contents {
		r.Nodes = append(r.Nodes, &domain.VectorNode{
			ID:              fmt.Sprintf("%s-n%d", archiveID, i),
			ParentArchiveID: archiveID,
			Content:         c,
			ChunkIndex:      i,
			Embedding:       []float32{float32(i + 1), 1},
		})
	}
	return r
}

func TestArchiveStore_SaveAndGet(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	seedArchive(t, s, "a1", "hello world")

	got, err := s.ArchiveStore().Get(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, domain.ArchiveStatusComplete, got.Status)
	assert.Equal(t, "a1.txt", got.Filename())

	_, err = s.ArchiveStore().Get(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestArchiveStore_CompleteIsImmutable(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	seedArchive(t, s, "a1", "original")

	err := s.ArchiveStore().Save(ctx, &domain.Archive{ID: "a1", FullText: "edited"})
	assert.ErrorIs(t, err, domain.ErrInvalidState)

	err = s.ArchiveStore().SetStatus(ctx, "a1", domain.ArchiveStatusFailed)
	assert.ErrorIs(t, err, domain.ErrInvalidState)
}

func TestArchiveStore_ListUnrefined(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	seedArchive(t, s, "a1", "one")
	seedArchive(t, s, "a2", "two")
	require.NoError(t, s.ArchiveStore().Save(ctx, &domain.Archive{ID: "a3", FullText: "pending"}))

	require.NoError(t, s.ProposalStore().Create(ctx, pendingSplit("p1", "a1")))
	_, err := s.ProposalStore().Resolve(ctx, "p1", domain.ProposalStatusApproved, nodesFor("a1", "one"))
	require.NoError(t, err)

	got, err := s.ArchiveStore().ListUnrefined(ctx, 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "a2", got[0].ID)
}

func TestArchiveStore_ListUnrefinedSkipsPendingSplit(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	for _, id := range []string{"a1", "a2", "a3"} {
		seedArchive(t, s, id, "text")
	}
	require.NoError(t, s.ProposalStore().Create(ctx, pendingSplit("p1", "a1")))

	got, err := s.ArchiveStore().ListUnrefined(ctx, 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "a2", got[0].ID)

	_, err = s.ProposalStore().Resolve(ctx, "p1", domain.ProposalStatusRejected, nil)
	require.NoError(t, err)
	got, err = s.ArchiveStore().ListUnrefined(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, got, 3)
}

func TestArchiveStore_DeleteCascades(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	seedArchive(t, s, "a1", "one")
	require.NoError(t, s.ProposalStore().Create(ctx, pendingSplit("p1", "a1")))
	_, err := s.ProposalStore().Resolve(ctx, "p1", domain.ProposalStatusApproved, nodesFor("a1", "x", "y"))
	require.NoError(t, err)

	require.NoError(t, s.ArchiveStore().Delete(ctx, "a1"))

	count, err := s.NodeStore().CountByArchive(ctx, "a1")
	require.NoError(t, err)
	assert.Zero(t, count)
	_, err = s.ProposalStore().Get(ctx, "p1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestProposalStore_OnePendingPerType(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	seedArchive(t, s, "a1", "one")

	require.NoError(t, s.ProposalStore().Create(ctx, pendingSplit("p1", "a1")))
	err := s.ProposalStore().Create(ctx, pendingSplit("p2", "a1"))
	assert.ErrorIs(t, err, domain.ErrDuplicatePending)

	dedup := &domain.Proposal{
		ID:              "p3",
		Type:            domain.ProposalTypeDedup,
		TargetArchiveID: "a1",
		Payload:         domain.DedupPayload{ArchiveID: "a1", DuplicateOf: "a0"},
	}
	assert.NoError(t, s.ProposalStore().Create(ctx, dedup))
}

func TestProposalStore_CreateRequiresArchive(t *testing.T) {
	s := NewStore()
	err := s.ProposalStore().Create(context.Background(), pendingSplit("p1", "ghost"))
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestProposalStore_ResolveReplacesNodes(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	seedArchive(t, s, "a1", "one")

	require.NoError(t, s.ProposalStore().Create(ctx, pendingSplit("p1", "a1")))
	resolved, err := s.ProposalStore().Resolve(ctx, "p1", domain.ProposalStatusApproved, nodesFor("a1", "x", "y", "z"))
	require.NoError(t, err)
	assert.Equal(t, domain.ProposalStatusApproved, resolved.Status)
	require.NotNil(t, resolved.ResolvedAt)

	nodes, err := s.NodeStore().ListByArchive(ctx, "a1")
	require.NoError(t, err)
	require.Len(t, nodes, 3)
	for i, n := range nodes {
		assert.Equal(t, i, n.ChunkIndex)
	}

	require.NoError(t, s.ProposalStore().Create(ctx, pendingSplit("p2", "a1")))
	_, err = s.ProposalStore().Resolve(ctx, "p2", domain.ProposalStatusApproved, nodesFor("a1", "only"))
	require.NoError(t, err)

	count, err := s.NodeStore().CountByArchive(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestProposalStore_ResolveRejectsBadReplacement(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	seedArchive(t, s, "a1", "one")
	require.NoError(t, s.ProposalStore().Create(ctx, pendingSplit("p1", "a1")))

	bad := nodesFor("a1", "x", "y")
	bad.Nodes[1].ChunkIndex = 0

	_, err := s.ProposalStore().Resolve(ctx, "p1", domain.ProposalStatusApproved, bad)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	p, err := s.ProposalStore().Get(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, domain.ProposalStatusPending, p.Status)
	count, err := s.NodeStore().CountByArchive(ctx, "a1")
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestProposalStore_ResolveTerminal(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	seedArchive(t, s, "a1", "one")
	require.NoError(t, s.ProposalStore().Create(ctx, pendingSplit("p1", "a1")))

	_, err := s.ProposalStore().Resolve(ctx, "p1", domain.ProposalStatusRejected, nil)
	require.NoError(t, err)

	current, err := s.ProposalStore().Resolve(ctx, "p1", domain.ProposalStatusApproved, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidState)
	require.NotNil(t, current)
	assert.Equal(t, domain.ProposalStatusRejected, current.Status)
}

func TestKeywordIndex_NodesAndUnrefinedArchives(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	seedArchive(t, s, "a1", "irrelevant parent text")
	seedArchive(t, s, "a2", "the budget review happened in march")
	require.NoError(t, s.ProposalStore().Create(ctx, pendingSplit("p1", "a1")))
	_, err := s.ProposalStore().Resolve(ctx, "p1", domain.ProposalStatusApproved,
		nodesFor("a1", "budget budget numbers", "unrelated"))
	require.NoError(t, err)

	hits, err := s.KeywordIndex().Search(ctx, "Budget", 10)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "a1-n0", hits[0].ID)
	assert.Equal(t, domain.CandidateNode, hits[0].Kind)
	assert.Equal(t, "a2", hits[1].ID)
	assert.Equal(t, domain.CandidateArchive, hits[1].Kind)
}

func TestVectorIndex_SkipsMismatchedDimensions(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	seedArchive(t, s, "a1", "one")
	seedArchive(t, s, "a2", "two")
	require.NoError(t, s.ArchiveStore().SetEmbedding(ctx, "a1", []float32{1, 0}))
	require.NoError(t, s.ArchiveStore().SetEmbedding(ctx, "a2", []float32{1, 0, 0}))

	hits, err := s.VectorIndex().SearchArchives(ctx, []float32{1, 0}, 5)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "a1", hits[0].ID)
	assert.InDelta(t, 1.0, hits[0].Similarity, 1e-9)
}

func TestSchedulerStore_HistoryAndPrune(t *testing.T) {
	s := NewSchedulerStore()
	ctx := context.Background()

	task, err := s.GetTask(ctx, domain.TaskIDRefinementSweep)
	require.NoError(t, err)
	assert.Nil(t, task)

	require.NoError(t, s.SaveTask(ctx, &domain.ScheduledTask{ID: domain.TaskIDRefinementSweep, Enabled: true}))
	for i := 0; i < 5; i++ {
		require.NoError(t, s.RecordResult(ctx, &domain.TaskResult{
			TaskID: domain.TaskIDRefinementSweep,
			Count:  i,
		}))
	}
	require.NoError(t, s.PruneHistory(ctx, 3))

	history, err := s.GetTaskHistory(ctx, domain.TaskIDRefinementSweep, 10)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, 4, history[0].Count)
	assert.Equal(t, 2, history[2].Count)
}
