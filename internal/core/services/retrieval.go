package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/memex/internal/core/domain"
	"github.com/custodia-labs/memex/internal/core/ports/driven"
	"github.com/custodia-labs/memex/internal/core/ports/driving"
	"github.com/custodia-labs/memex/internal/logger"
)

// Ensure RetrievalService implements the interface.
var _ driving.RetrievalService = (*RetrievalService)(nil)

const (
	// rrfK is the reciprocal rank fusion constant.
	rrfK = 60

	// rerankExcerptRunes caps the archive text sent to the reranker.
	rerankExcerptRunes = 2000
)

// candidate is a node or coarse archive match before aggregation.
type candidate struct {
	kind       domain.CandidateKind
	id         string
	denseRank  int
	sparseRank int
	score      float64

	node    *domain.VectorNode
	archive *domain.Archive
}

func (c *candidate) key() string { return string(c.kind) + ":" + c.id }

func (c *candidate) content() string {
	if c.node != nil {
		return c.node.Content
	}
	return c.archive.FullText
}

func (c *candidate) chunkIndex() int {
	if c.node != nil {
		return c.node.ChunkIndex
	}
	return -1
}

// RetrievalService answers queries with parent-scoped context blocks by
// combining dense and sparse search, a hard time filter and reranking.
type RetrievalService struct {
	nodes    driven.NodeStore
	archives driven.ArchiveStore
	keyword  driven.KeywordIndex
	vector   driven.VectorIndex
	embedder driven.EmbeddingService
	reranker driven.Reranker
	registry *CapabilityRegistry
	cfg      domain.RetrievalSettings
}

// NewRetrievalService creates a retrieval service.
// The embedder and reranker are optional (can be nil).
func NewRetrievalService(
	nodes driven.NodeStore,
	archives driven.ArchiveStore,
	keyword driven.KeywordIndex,
	vector driven.VectorIndex,
	embedder driven.EmbeddingService,
	reranker driven.Reranker,
	registry *CapabilityRegistry,
	cfg domain.RetrievalSettings,
) *RetrievalService {
	defaults := domain.DefaultAppSettings().Retrieval
	if cfg.DenseCandidates <= 0 {
		cfg.DenseCandidates = defaults.DenseCandidates
	}
	if cfg.SparseCandidates <= 0 {
		cfg.SparseCandidates = defaults.SparseCandidates
	}
	if cfg.PerParentCap <= 0 {
		cfg.PerParentCap = defaults.PerParentCap
	}
	if cfg.DefaultK <= 0 {
		cfg.DefaultK = defaults.DefaultK
	}
	return &RetrievalService{
		nodes:    nodes,
		archives: archives,
		keyword:  keyword,
		vector:   vector,
		embedder: embedder,
		reranker: reranker,
		registry: registry,
		cfg:      cfg,
	}
}

// Query runs hybrid retrieval. Finding nothing returns an empty result,
// not an error.
func (s *RetrievalService) Query(ctx context.Context, q domain.RetrievalQuery) (*domain.RetrievalResult, error) {
	logger.Section("Retrieval")
	result := &domain.RetrievalResult{Blocks: []domain.ContextBlock{}}

	text := strings.TrimSpace(q.Text)
	if text == "" {
		logger.Debug("Empty query, returning no results")
		return result, nil
	}
	k := q.K
	if k <= 0 {
		k = s.cfg.DefaultK
	}
	logger.Debug("Query: %q, k=%d, range=%s", text, k, q.TimeRange)

	var dense []candidate
	var sparse []candidate
	var denseErr, sparseErr error
	var g errgroup.Group
	g.Go(func() error {
		dense, denseErr = s.denseSearch(ctx, text)
		return nil
	})
	g.Go(func() error {
		sparse, sparseErr = s.sparseSearch(ctx, text)
		return nil
	})
	_ = g.Wait()

	if denseErr != nil && sparseErr != nil {
		return nil, fmt.Errorf("retrieval: no search method succeeded: %w", errors.Join(denseErr, sparseErr))
	}
	if denseErr != nil {
		result.Degraded = true
		result.Warnings = append(result.Warnings, "dense search unavailable: "+denseErr.Error())
		logger.Warn("Dense search failed, continuing with sparse only: %v", denseErr)
	} else {
		result.Methods = append(result.Methods, domain.MethodDense)
	}
	if sparseErr != nil {
		result.Degraded = true
		result.Warnings = append(result.Warnings, "sparse search unavailable: "+sparseErr.Error())
		logger.Warn("Sparse search failed, continuing with dense only: %v", sparseErr)
	} else {
		result.Methods = append(result.Methods, domain.MethodSparse)
	}
	logger.Debug("Candidates: dense=%d sparse=%d", len(dense), len(sparse))

	candidates := union(dense, sparse)
	if err := s.hydrate(ctx, candidates); err != nil {
		return nil, err
	}
	candidates = filterByTime(candidates, q.TimeRange)
	logger.Debug("After hydration and time filter: %d", len(candidates))
	if len(candidates) == 0 {
		return result, nil
	}

	candidates = s.score(ctx, text, candidates, result)
	result.Blocks = aggregate(candidates, s.cfg.PerParentCap, k)
	logger.Info("Returning %d block(s)", len(result.Blocks))
	return result, nil
}

// denseSearch embeds the query and searches nodes and unrefined archives.
func (s *RetrievalService) denseSearch(ctx context.Context, text string) ([]candidate, error) {
	if s.embedder == nil || s.vector == nil {
		return nil, domain.ErrEmbeddingUnavailable
	}
	if !s.registry.Available(domain.CapabilityEmbedding) {
		return nil, fmt.Errorf("%w: embedding unhealthy", domain.ErrCapabilityUnavailable)
	}

	embedCtx, cancel := withTimeout(ctx, s.cfg.QueryTimeout)
	defer cancel()
	vec, err := s.embedder.Embed(embedCtx, text)
	if err != nil {
		if errors.Is(err, domain.ErrCapabilityUnavailable) {
			s.registry.MarkUnavailable(domain.CapabilityEmbedding, err)
		}
		return nil, fmt.Errorf("embed query: %w", err)
	}

	nodeHits, err := s.vector.SearchNodes(ctx, vec, s.cfg.DenseCandidates)
	if err != nil {
		return nil, fmt.Errorf("search nodes: %w", err)
	}
	archiveHits, err := s.vector.SearchArchives(ctx, vec, s.cfg.DenseCandidates)
	if err != nil {
		return nil, fmt.Errorf("search archives: %w", err)
	}

	type hit struct {
		kind domain.CandidateKind
		driven.VectorHit
	}
	hits := make([]hit, 0, len(nodeHits)+len(archiveHits))
	for _, h := range nodeHits {
		hits = append(hits, hit{domain.CandidateNode, h})
	}
	for _, h := range archiveHits {
		hits = append(hits, hit{domain.CandidateArchive, h})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Similarity > hits[j].Similarity })
	if len(hits) > s.cfg.DenseCandidates {
		hits = hits[:s.cfg.DenseCandidates]
	}

	out := make([]candidate, len(hits))
	for i, h := range hits {
		out[i] = candidate{kind: h.kind, id: h.ID, denseRank: i, sparseRank: -1}
	}
	return out, nil
}

func (s *RetrievalService) sparseSearch(ctx context.Context, text string) ([]candidate, error) {
	if s.keyword == nil {
		return nil, errors.New("keyword index unavailable")
	}
	hits, err := s.keyword.Search(ctx, text, s.cfg.SparseCandidates)
	if err != nil {
		return nil, fmt.Errorf("keyword search: %w", err)
	}
	out := make([]candidate, len(hits))
	for i, h := range hits {
		out[i] = candidate{kind: h.Kind, id: h.ID, denseRank: -1, sparseRank: i}
	}
	return out, nil
}

// union merges both candidate lists, keeping each candidate's rank in each.
func union(dense, sparse []candidate) []*candidate {
	byKey := make(map[string]*candidate, len(dense)+len(sparse))
	var out []*candidate
	for _, list := range [][]candidate{dense, sparse} {
		for i := range list {
			c := list[i]
			if existing, ok := byKey[c.key()]; ok {
				if c.denseRank >= 0 {
					existing.denseRank = c.denseRank
				}
				if c.sparseRank >= 0 {
					existing.sparseRank = c.sparseRank
				}
				continue
			}
			byKey[c.key()] = &c
			out = append(out, &c)
		}
	}
	return out
}

// hydrate loads nodes and parent archives. Candidates whose rows vanished
// since the search ran are dropped by filterByTime.
func (s *RetrievalService) hydrate(ctx context.Context, candidates []*candidate) error {
	var nodeIDs []string
	for _, c := range candidates {
		if c.kind == domain.CandidateNode {
			nodeIDs = append(nodeIDs, c.id)
		}
	}
	nodes, err := s.nodes.GetMany(ctx, nodeIDs)
	if err != nil {
		return fmt.Errorf("load nodes: %w", err)
	}
	nodeByID := make(map[string]*domain.VectorNode, len(nodes))
	for _, n := range nodes {
		nodeByID[n.ID] = n
	}

	archiveIDs := make([]string, 0, len(candidates))
	seen := make(map[string]bool)
	for _, c := range candidates {
		id := c.id
		if c.kind == domain.CandidateNode {
			n, ok := nodeByID[c.id]
			if !ok {
				continue
			}
			c.node = n
			id = n.ParentArchiveID
		}
		if !seen[id] {
			seen[id] = true
			archiveIDs = append(archiveIDs, id)
		}
	}
	archives, err := s.archives.GetMany(ctx, archiveIDs)
	if err != nil {
		return fmt.Errorf("load archives: %w", err)
	}
	archiveByID := make(map[string]*domain.Archive, len(archives))
	for _, a := range archives {
		archiveByID[a.ID] = a
	}
	for _, c := range candidates {
		switch {
		case c.node != nil:
			c.archive = archiveByID[c.node.ParentArchiveID]
		case c.kind == domain.CandidateArchive:
			c.archive = archiveByID[c.id]
		}
	}
	return nil
}

// filterByTime drops unhydrated candidates and those whose parent's
// semantic date falls outside the range.
func filterByTime(candidates []*candidate, tr *domain.TimeRange) []*candidate {
	out := candidates[:0]
	for _, c := range candidates {
		if c.archive == nil {
			continue
		}
		if tr != nil && !tr.Contains(c.archive.SemanticDate()) {
			continue
		}
		out = append(out, c)
	}
	return out
}

// score sets the authoritative score of every candidate: the reranker's
// when it works, reciprocal rank fusion otherwise.
func (s *RetrievalService) score(
	ctx context.Context, query string, candidates []*candidate, result *domain.RetrievalResult,
) []*candidate {
	scores, err := s.rerank(ctx, query, candidates)
	if err == nil {
		result.Methods = append(result.Methods, domain.MethodRerank)
		out := candidates[:0]
		for i, c := range candidates {
			c.score = scores[i]
			if s.cfg.MinRerankScore != 0 && c.score < s.cfg.MinRerankScore {
				continue
			}
			out = append(out, c)
		}
		logger.Debug("Reranked %d candidate(s), %d kept", len(scores), len(out))
		return out
	}

	if !errors.Is(err, domain.ErrRerankUnavailable) {
		result.Degraded = true
		result.Warnings = append(result.Warnings, "rerank failed, using rank fusion: "+err.Error())
		logger.Warn("Rerank failed, falling back to rank fusion: %v", err)
	}
	result.Methods = append(result.Methods, domain.MethodFusion)
	reciprocalRankFusion(candidates, rrfK)
	return candidates
}

func (s *RetrievalService) rerank(ctx context.Context, query string, candidates []*candidate) ([]float64, error) {
	if s.reranker == nil {
		return nil, domain.ErrRerankUnavailable
	}
	if !s.registry.Available(domain.CapabilityRerank) {
		return nil, fmt.Errorf("%w: rerank unhealthy", domain.ErrCapabilityUnavailable)
	}

	texts := make([]string, len(candidates))
	for i, c := range candidates {
		texts[i] = excerpt(c.content(), rerankExcerptRunes)
	}
	rerankCtx, cancel := withTimeout(ctx, s.cfg.RerankTimeout)
	defer cancel()
	scores, err := s.reranker.Rerank(rerankCtx, query, texts)
	if err != nil {
		if errors.Is(err, domain.ErrCapabilityUnavailable) {
			s.registry.MarkUnavailable(domain.CapabilityRerank, err)
		}
		return nil, err
	}
	if len(scores) != len(candidates) {
		return nil, fmt.Errorf("%w: got %d rerank scores for %d candidates",
			domain.ErrValidation, len(scores), len(candidates))
	}
	return scores, nil
}

// reciprocalRankFusion scores candidates by their ranks in the dense and
// sparse lists. k prevents top ranks from dominating.
func reciprocalRankFusion(candidates []*candidate, k int) {
	for _, c := range candidates {
		c.score = 0
		if c.denseRank >= 0 {
			c.score += 1.0 / float64(k+c.denseRank+1)
		}
		if c.sparseRank >= 0 {
			c.score += 1.0 / float64(k+c.sparseRank+1)
		}
	}
}

// aggregate groups candidates by parent archive, keeps the best perParent
// chunks of each in chunk order, and returns the top k blocks.
func aggregate(candidates []*candidate, perParent, k int) []domain.ContextBlock {
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].chunkIndex() < candidates[j].chunkIndex()
	})

	type group struct {
		archive *domain.Archive
		nodes   []*candidate
		coarse  *candidate
	}
	groups := make(map[string]*group)
	var order []string
	for _, c := range candidates {
		g, ok := groups[c.archive.ID]
		if !ok {
			g = &group{archive: c.archive}
			groups[c.archive.ID] = g
			order = append(order, c.archive.ID)
		}
		if c.node != nil {
			if len(g.nodes) < perParent {
				g.nodes = append(g.nodes, c)
			}
		} else if g.coarse == nil {
			g.coarse = c
		}
	}

	blocks := make([]domain.ContextBlock, 0, len(order))
	minChunk := make(map[string]int, len(order))
	for _, id := range order {
		g := groups[id]
		block := domain.ContextBlock{ArchiveID: id, Header: copyMeta(g.archive.MetaData)}
		if len(g.nodes) > 0 {
			// A node match wins over a stale coarse match of the same archive.
			block.Score = g.nodes[0].score
			sort.Slice(g.nodes, func(i, j int) bool { return g.nodes[i].node.ChunkIndex < g.nodes[j].node.ChunkIndex })
			for _, c := range g.nodes {
				block.Chunks = append(block.Chunks, domain.MatchedChunk{
					NodeID:     c.node.ID,
					ChunkIndex: c.node.ChunkIndex,
					Content:    c.node.Content,
					Score:      c.score,
				})
			}
			minChunk[id] = g.nodes[0].node.ChunkIndex
		} else {
			block.Coarse = true
			block.Score = g.coarse.score
			block.Chunks = []domain.MatchedChunk{{ChunkIndex: -1, Content: g.archive.FullText, Score: g.coarse.score}}
			minChunk[id] = -1
		}
		blocks = append(blocks, block)
	}

	sort.SliceStable(blocks, func(i, j int) bool {
		a, b := blocks[i], blocks[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		da, db := groups[a.ArchiveID].archive.SemanticDate(), groups[b.ArchiveID].archive.SemanticDate()
		if !da.Equal(db) {
			return da.After(db)
		}
		if minChunk[a.ArchiveID] != minChunk[b.ArchiveID] {
			return minChunk[a.ArchiveID] < minChunk[b.ArchiveID]
		}
		return a.ArchiveID < b.ArchiveID
	})
	if len(blocks) > k {
		blocks = blocks[:k]
	}
	return blocks
}

func excerpt(s string, maxRunes int) string {
	if utf8.RuneCountInString(s) <= maxRunes {
		return s
	}
	runes := []rune(s)
	return string(runes[:maxRunes])
}
