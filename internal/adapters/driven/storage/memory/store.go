// Package memory provides in-memory implementations of the driven stores.
// They back tests and ephemeral runs and share one lock so that resolving a
// proposal and replacing nodes is atomic, matching the SQLite store.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/custodia-labs/memex/internal/core/domain"
	"github.com/custodia-labs/memex/internal/core/ports/driven"
	"github.com/custodia-labs/memex/internal/vecmath"
)

// Store holds archives, nodes and proposals behind a single lock.
type Store struct {
	mu        sync.RWMutex
	archives  map[string]*domain.Archive
	order     []string
	nodes     map[string]*domain.VectorNode
	byArchive map[string][]string
	proposals map[string]*domain.Proposal
	now       func() time.Time
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		archives:  make(map[string]*domain.Archive),
		nodes:     make(map[string]*domain.VectorNode),
		byArchive: make(map[string][]string),
		proposals: make(map[string]*domain.Proposal),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// SetClock overrides the time source. Useful for testing.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// ArchiveStore returns the archive view of the store.
func (s *Store) ArchiveStore() driven.ArchiveStore { return &archiveStore{s} }

// NodeStore returns the node view of the store.
func (s *Store) NodeStore() driven.NodeStore { return &nodeStore{s} }

// ProposalStore returns the proposal view of the store.
func (s *Store) ProposalStore() driven.ProposalStore { return &proposalStore{s} }

// KeywordIndex returns a term-matching keyword index over the store.
func (s *Store) KeywordIndex() driven.KeywordIndex { return &keywordIndex{s} }

// VectorIndex returns an exact cosine index over the store.
func (s *Store) VectorIndex() driven.VectorIndex { return &vectorIndex{s} }

// ==================== Archive Store ====================

type archiveStore struct{ s *Store }

var _ driven.ArchiveStore = (*archiveStore)(nil)

func (a *archiveStore) Save(_ context.Context, archive *domain.Archive) error {
	if archive == nil || archive.ID == "" {
		return domain.ErrInvalidInput
	}
	a.s.mu.Lock()
	defer a.s.mu.Unlock()

	now := a.s.now()
	if existing, ok := a.s.archives[archive.ID]; ok {
		if existing.Status.IsTerminal() && existing.FullText != archive.FullText {
			return &domain.StateError{Entity: "archive", ID: archive.ID, From: string(existing.Status), To: "edited"}
		}
		existing.FullText = archive.FullText
		existing.MetaData = copyMeta(archive.MetaData)
		existing.UpdatedAt = now
		archive.Status = existing.Status
		archive.UpdatedAt = now
		return nil
	}

	if archive.Status == "" {
		archive.Status = domain.ArchiveStatusPending
	}
	if archive.CreatedAt.IsZero() {
		archive.CreatedAt = now
	}
	archive.UpdatedAt = now
	a.s.archives[archive.ID] = copyArchive(archive)
	a.s.order = append(a.s.order, archive.ID)
	return nil
}

func (a *archiveStore) Get(_ context.Context, id string) (*domain.Archive, error) {
	a.s.mu.RLock()
	defer a.s.mu.RUnlock()
	archive, ok := a.s.archives[id]
	if !ok {
		return nil, &domain.NotFoundError{Entity: "archive", ID: id}
	}
	return copyArchive(archive), nil
}

func (a *archiveStore) GetMany(_ context.Context, ids []string) ([]*domain.Archive, error) {
	a.s.mu.RLock()
	defer a.s.mu.RUnlock()
	var out []*domain.Archive
	for _, id := range ids {
		if archive, ok := a.s.archives[id]; ok {
			out = append(out, copyArchive(archive))
		}
	}
	return out, nil
}

func (a *archiveStore) List(_ context.Context, filter domain.ArchiveFilter) ([]*domain.Archive, error) {
	a.s.mu.RLock()
	defer a.s.mu.RUnlock()
	var out []*domain.Archive
	for i := len(a.s.order) - 1; i >= 0; i-- {
		archive := a.s.archives[a.s.order[i]]
		if filter.Status != "" && archive.Status != filter.Status {
			continue
		}
		if archive.CreatedAt.Before(filter.Since) {
			continue
		}
		out = append(out, copyArchive(archive))
		if filter.Limit > 0 && len(out) == filter.Limit {
			break
		}
	}
	return out, nil
}

func (a *archiveStore) SetStatus(_ context.Context, id string, status domain.ArchiveStatus) error {
	if !status.IsTerminal() {
		return fmt.Errorf("%w: archive status %q is not terminal", domain.ErrInvalidInput, status)
	}
	a.s.mu.Lock()
	defer a.s.mu.Unlock()
	archive, ok := a.s.archives[id]
	if !ok {
		return &domain.NotFoundError{Entity: "archive", ID: id}
	}
	if !archive.Status.CanTransition(status) {
		return &domain.StateError{Entity: "archive", ID: id, From: string(archive.Status), To: string(status)}
	}
	archive.Status = status
	archive.UpdatedAt = a.s.now()
	return nil
}

func (a *archiveStore) SetEmbedding(_ context.Context, id string, embedding []float32) error {
	a.s.mu.Lock()
	defer a.s.mu.Unlock()
	archive, ok := a.s.archives[id]
	if !ok {
		return &domain.NotFoundError{Entity: "archive", ID: id}
	}
	archive.Embedding = append([]float32(nil), embedding...)
	archive.UpdatedAt = a.s.now()
	return nil
}

func (a *archiveStore) ListUnrefined(_ context.Context, limit int) ([]*domain.Archive, error) {
	a.s.mu.RLock()
	defer a.s.mu.RUnlock()
	var out []*domain.Archive
	for _, id := range a.s.order {
		archive := a.s.archives[id]
		if archive.Status != domain.ArchiveStatusComplete || len(a.s.byArchive[id]) > 0 {
			continue
		}
		if a.s.pendingLocked(id, domain.ProposalTypeSplit) {
			continue
		}
		out = append(out, copyArchive(archive))
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (a *archiveStore) Delete(_ context.Context, id string) error {
	a.s.mu.Lock()
	defer a.s.mu.Unlock()
	if _, ok := a.s.archives[id]; !ok {
		return &domain.NotFoundError{Entity: "archive", ID: id}
	}
	a.s.dropNodes(id)
	for pid, p := range a.s.proposals {
		if p.TargetArchiveID == id {
			delete(a.s.proposals, pid)
		}
	}
	delete(a.s.archives, id)
	for i, oid := range a.s.order {
		if oid == id {
			a.s.order = append(a.s.order[:i], a.s.order[i+1:]...)
			break
		}
	}
	return nil
}

// ==================== Node Store ====================

type nodeStore struct{ s *Store }

var _ driven.NodeStore = (*nodeStore)(nil)

func (n *nodeStore) Get(_ context.Context, id string) (*domain.VectorNode, error) {
	n.s.mu.RLock()
	defer n.s.mu.RUnlock()
	node, ok := n.s.nodes[id]
	if !ok {
		return nil, &domain.NotFoundError{Entity: "vector node", ID: id}
	}
	return copyNode(node), nil
}

func (n *nodeStore) GetMany(_ context.Context, ids []string) ([]*domain.VectorNode, error) {
	n.s.mu.RLock()
	defer n.s.mu.RUnlock()
	var out []*domain.VectorNode
	for _, id := range ids {
		if node, ok := n.s.nodes[id]; ok {
			out = append(out, copyNode(node))
		}
	}
	return out, nil
}

func (n *nodeStore) ListByArchive(_ context.Context, archiveID string) ([]*domain.VectorNode, error) {
	n.s.mu.RLock()
	defer n.s.mu.RUnlock()
	ids := n.s.byArchive[archiveID]
	out := make([]*domain.VectorNode, 0, len(ids))
	for _, id := range ids {
		out = append(out, copyNode(n.s.nodes[id]))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ChunkIndex < out[j].ChunkIndex })
	return out, nil
}

func (n *nodeStore) CountByArchive(_ context.Context, archiveID string) (int, error) {
	n.s.mu.RLock()
	defer n.s.mu.RUnlock()
	return len(n.s.byArchive[archiveID]), nil
}

// dropNodes removes every node of an archive. Caller holds the write lock.
func (s *Store) dropNodes(archiveID string) {
	for _, id := range s.byArchive[archiveID] {
		delete(s.nodes, id)
	}
	delete(s.byArchive, archiveID)
}

// ==================== Proposal Store ====================

type proposalStore struct{ s *Store }

var _ driven.ProposalStore = (*proposalStore)(nil)

func (p *proposalStore) Create(_ context.Context, proposal *domain.Proposal) error {
	if proposal == nil || proposal.ID == "" {
		return domain.ErrInvalidInput
	}
	if err := proposal.Validate(); err != nil {
		return err
	}
	p.s.mu.Lock()
	defer p.s.mu.Unlock()

	if _, ok := p.s.archives[proposal.TargetArchiveID]; !ok {
		return &domain.NotFoundError{Entity: "archive", ID: proposal.TargetArchiveID}
	}
	if p.s.pendingLocked(proposal.TargetArchiveID, proposal.Type) {
		return fmt.Errorf("%w: %s proposal for archive %s",
			domain.ErrDuplicatePending, proposal.Type, proposal.TargetArchiveID)
	}
	proposal.Status = domain.ProposalStatusPending
	if proposal.CreatedAt.IsZero() {
		proposal.CreatedAt = p.s.now()
	}
	cp := *proposal
	p.s.proposals[proposal.ID] = &cp
	return nil
}

func (p *proposalStore) Get(_ context.Context, id string) (*domain.Proposal, error) {
	p.s.mu.RLock()
	defer p.s.mu.RUnlock()
	proposal, ok := p.s.proposals[id]
	if !ok {
		return nil, &domain.NotFoundError{Entity: "proposal", ID: id}
	}
	cp := *proposal
	return &cp, nil
}

func (p *proposalStore) List(_ context.Context, filter domain.ProposalFilter) ([]*domain.Proposal, error) {
	p.s.mu.RLock()
	defer p.s.mu.RUnlock()
	var out []*domain.Proposal
	for _, proposal := range p.s.proposals {
		if filter.Matches(proposal) {
			cp := *proposal
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (p *proposalStore) HasPending(_ context.Context, archiveID string, proposalType domain.ProposalType) (bool, error) {
	p.s.mu.RLock()
	defer p.s.mu.RUnlock()
	return p.s.pendingLocked(archiveID, proposalType), nil
}

func (p *proposalStore) Resolve(
	_ context.Context, id string, status domain.ProposalStatus, replacement *domain.NodeReplacement,
) (*domain.Proposal, error) {
	if !status.IsTerminal() {
		return nil, fmt.Errorf("%w: proposal status %q is not terminal", domain.ErrInvalidInput, status)
	}
	p.s.mu.Lock()
	defer p.s.mu.Unlock()

	proposal, ok := p.s.proposals[id]
	if !ok {
		return nil, &domain.NotFoundError{Entity: "proposal", ID: id}
	}
	if proposal.Status != domain.ProposalStatusPending {
		cp := *proposal
		return &cp, &domain.StateError{Entity: "proposal", ID: id, From: string(proposal.Status), To: string(status)}
	}

	now := p.s.now()
	if replacement != nil {
		if err := p.s.validateReplacementLocked(replacement); err != nil {
			return nil, err
		}
		p.s.dropNodes(replacement.ArchiveID)
		ids := make([]string, 0, len(replacement.Nodes))
		for _, node := range replacement.Nodes {
			node.CreatedAt = now
			p.s.nodes[node.ID] = copyNode(node)
			ids = append(ids, node.ID)
		}
		p.s.byArchive[replacement.ArchiveID] = ids
	}

	proposal.Status = status
	proposal.ResolvedAt = &now
	cp := *proposal
	return &cp, nil
}

func (s *Store) pendingLocked(archiveID string, proposalType domain.ProposalType) bool {
	for _, p := range s.proposals {
		if p.TargetArchiveID == archiveID && p.Type == proposalType && p.Status == domain.ProposalStatusPending {
			return true
		}
	}
	return false
}

// validateReplacementLocked mirrors the SQLite constraints so that a bad
// replacement fails before anything is mutated.
func (s *Store) validateReplacementLocked(r *domain.NodeReplacement) error {
	if _, ok := s.archives[r.ArchiveID]; !ok {
		return &domain.NotFoundError{Entity: "archive", ID: r.ArchiveID}
	}
	seenIndex := make(map[int]bool, len(r.Nodes))
	seenID := make(map[string]bool, len(r.Nodes))
	for _, node := range r.Nodes {
		if node.ParentArchiveID != r.ArchiveID {
			return fmt.Errorf("%w: node %s belongs to %s, not %s",
				domain.ErrInvalidInput, node.ID, node.ParentArchiveID, r.ArchiveID)
		}
		if seenIndex[node.ChunkIndex] || seenID[node.ID] {
			return fmt.Errorf("%w: duplicate node %s at chunk %d", domain.ErrInvalidInput, node.ID, node.ChunkIndex)
		}
		if existing, ok := s.nodes[node.ID]; ok && existing.ParentArchiveID != r.ArchiveID {
			return fmt.Errorf("%w: node id %s already used", domain.ErrInvalidInput, node.ID)
		}
		seenIndex[node.ChunkIndex] = true
		seenID[node.ID] = true
	}
	return nil
}

// ==================== Indexes ====================

type keywordIndex struct{ s *Store }

var _ driven.KeywordIndex = (*keywordIndex)(nil)

// Search scores by the number of query term occurrences.
func (k *keywordIndex) Search(_ context.Context, query string, limit int) ([]driven.SearchHit, error) {
	terms := tokenize(query)
	if len(terms) == 0 || limit <= 0 {
		return nil, nil
	}
	k.s.mu.RLock()
	defer k.s.mu.RUnlock()

	var hits []driven.SearchHit
	for _, node := range k.s.nodes {
		if score := termScore(terms, node.Content); score > 0 {
			hits = append(hits, driven.SearchHit{ID: node.ID, Kind: domain.CandidateNode, Score: score})
		}
	}
	for id, archive := range k.s.archives {
		if archive.Status != domain.ArchiveStatusComplete || len(k.s.byArchive[id]) > 0 {
			continue
		}
		if score := termScore(terms, archive.FullText); score > 0 {
			hits = append(hits, driven.SearchHit{ID: id, Kind: domain.CandidateArchive, Score: score})
		}
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ID < hits[j].ID
	})
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

type vectorIndex struct{ s *Store }

var _ driven.VectorIndex = (*vectorIndex)(nil)

func (v *vectorIndex) SearchNodes(_ context.Context, query []float32, k int) ([]driven.VectorHit, error) {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()
	top := vecmath.NewTopK(k)
	for _, id := range v.s.sortedNodeIDs() {
		node := v.s.nodes[id]
		if len(node.Embedding) == len(query) && len(query) > 0 {
			top.Push(id, vecmath.Cosine(query, node.Embedding))
		}
	}
	return toVectorHits(top), nil
}

func (v *vectorIndex) SearchArchives(_ context.Context, query []float32, k int) ([]driven.VectorHit, error) {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()
	top := vecmath.NewTopK(k)
	for _, id := range v.s.order {
		archive := v.s.archives[id]
		if archive.Status != domain.ArchiveStatusComplete || len(v.s.byArchive[id]) > 0 {
			continue
		}
		if len(archive.Embedding) == len(query) && len(query) > 0 {
			top.Push(id, vecmath.Cosine(query, archive.Embedding))
		}
	}
	return toVectorHits(top), nil
}

func (s *Store) sortedNodeIDs() []string {
	ids := make([]string, 0, len(s.nodes))
	for id := range s.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func toVectorHits(top *vecmath.TopK) []driven.VectorHit {
	results := top.Results()
	hits := make([]driven.VectorHit, len(results))
	for i, r := range results {
		hits[i] = driven.VectorHit{ID: r.ID, Similarity: r.Score}
	}
	return hits
}

func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	seen := make(map[string]bool, len(fields))
	var terms []string
	for _, f := range fields {
		if !seen[f] {
			seen[f] = true
			terms = append(terms, f)
		}
	}
	return terms
}

func termScore(terms []string, text string) float64 {
	counts := make(map[string]int)
	for _, w := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		counts[w]++
	}
	var score float64
	for _, t := range terms {
		score += float64(counts[t])
	}
	return score
}

// ==================== Helpers ====================

func copyMeta(meta map[string]any) map[string]any {
	if meta == nil {
		return nil
	}
	out := make(map[string]any, len(meta))
	for k, v := range meta {
		out[k] = v
	}
	return out
}

func copyArchive(a *domain.Archive) *domain.Archive {
	cp := *a
	cp.MetaData = copyMeta(a.MetaData)
	cp.Embedding = append([]float32(nil), a.Embedding...)
	return &cp
}

func copyNode(n *domain.VectorNode) *domain.VectorNode {
	cp := *n
	cp.Meta = copyMeta(n.Meta)
	cp.Embedding = append([]float32(nil), n.Embedding...)
	return &cp
}
