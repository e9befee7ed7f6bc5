package domain

// RetrievalQuery is a request to the hybrid retrieval engine.
type RetrievalQuery struct {
	// Text is the raw user query.
	Text string

	// TimeRange is an optional hard filter on semantic date.
	TimeRange *TimeRange

	// K is the maximum number of context blocks. Zero uses the configured default.
	K int
}

// RetrievalMethod names a candidate source in hybrid retrieval.
type RetrievalMethod string

// Retrieval methods.
const (
	MethodDense  RetrievalMethod = "dense"
	MethodSparse RetrievalMethod = "sparse"
	MethodRerank RetrievalMethod = "rerank"
	MethodFusion RetrievalMethod = "fusion"
)

// CandidateKind distinguishes node hits from coarse archive hits.
type CandidateKind string

// Candidate kinds.
const (
	CandidateNode    CandidateKind = "node"
	CandidateArchive CandidateKind = "archive"
)

// MatchedChunk is one text span inside a context block.
type MatchedChunk struct {
	// NodeID is the matched node, empty for a coarse archive match.
	NodeID string

	// ChunkIndex orders the chunk within its archive. -1 for a whole-archive match.
	ChunkIndex int

	// Content is the matched text.
	Content string

	// Score is the authoritative relevance score of this chunk.
	Score float64
}

// ContextBlock is a parent-scoped retrieval result.
type ContextBlock struct {
	// ArchiveID identifies the parent archive.
	ArchiveID string

	// Header is the parent's metadata, attached as context.
	Header map[string]any

	// Chunks are the matched spans in chunk_index order.
	Chunks []MatchedChunk

	// Score is the best constituent chunk score.
	Score float64

	// Coarse is true when the archive matched through its own embedding or text.
	Coarse bool
}

// RetrievalResult is the ordered output of a query.
// An empty Blocks slice is a valid answer meaning nothing relevant was found.
type RetrievalResult struct {
	// Blocks are ordered by descending score.
	Blocks []ContextBlock

	// Methods lists the candidate sources that contributed.
	Methods []RetrievalMethod

	// Degraded is true when a search method or the reranker failed.
	Degraded bool

	// Warnings describes each degradation.
	Warnings []string
}

// Empty reports whether retrieval found nothing. Callers should avoid
// fabricating an answer and may fall back to browsing recent archives.
func (r *RetrievalResult) Empty() bool {
	return r == nil || len(r.Blocks) == 0
}
