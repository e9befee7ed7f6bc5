package sqlite

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/custodia-labs/memex/internal/core/domain"
	"github.com/custodia-labs/memex/internal/core/ports/driven"
	"github.com/custodia-labs/memex/internal/vecmath"
)

// ==================== Keyword Index ====================

// keywordIndex implements driven.KeywordIndex over the FTS5 tables.
type keywordIndex struct {
	store *Store
}

var _ driven.KeywordIndex = (*keywordIndex)(nil)

// Search matches any query term against node content and the full text of
// COMPLETE archives that have no nodes. Scores are negated BM25.
func (k *keywordIndex) Search(ctx context.Context, query string, limit int) ([]driven.SearchHit, error) {
	match := ftsQuery(query)
	if match == "" || limit <= 0 {
		return nil, nil
	}

	nodeHits, err := k.search(ctx, domain.CandidateNode, `
		SELECT n.id, -bm25(vector_nodes_fts)
		FROM vector_nodes_fts
		JOIN vector_nodes n ON n.seq = vector_nodes_fts.rowid
		WHERE vector_nodes_fts MATCH ?
		ORDER BY bm25(vector_nodes_fts)
		LIMIT ?
	`, match, limit)
	if err != nil {
		return nil, err
	}

	archiveHits, err := k.search(ctx, domain.CandidateArchive, `
		SELECT a.id, -bm25(archives_fts)
		FROM archives_fts
		JOIN archives a ON a.seq = archives_fts.rowid
		WHERE archives_fts MATCH ?
		AND a.processing_status = 'COMPLETE'
		AND NOT EXISTS (SELECT 1 FROM vector_nodes n WHERE n.parent_archive_id = a.id)
		ORDER BY bm25(archives_fts)
		LIMIT ?
	`, match, limit)
	if err != nil {
		return nil, err
	}

	hits := append(nodeHits, archiveHits...)
	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Score > hits[j].Score
	})
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

func (k *keywordIndex) search(
	ctx context.Context, kind domain.CandidateKind, query, match string, limit int,
) ([]driven.SearchHit, error) {
	rows, err := k.store.db.QueryContext(ctx, query, match, limit)
	if err != nil {
		return nil, fmt.Errorf("keyword search: %w", err)
	}
	defer rows.Close()

	var hits []driven.SearchHit //nolint:prealloc // size unknown from query
	for rows.Next() {
		hit := driven.SearchHit{Kind: kind}
		if err := rows.Scan(&hit.ID, &hit.Score); err != nil {
			return nil, fmt.Errorf("scanning keyword hit: %w", err)
		}
		hits = append(hits, hit)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating keyword hits: %w", err)
	}
	return hits, nil
}

// ftsQuery turns free text into an FTS5 expression that ORs quoted terms,
// so user input can never inject FTS syntax.
func ftsQuery(text string) string {
	terms := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	seen := make(map[string]bool, len(terms))
	quoted := make([]string, 0, len(terms))
	for _, term := range terms {
		term = strings.ToLower(term)
		if seen[term] {
			continue
		}
		seen[term] = true
		quoted = append(quoted, `"`+strings.ReplaceAll(term, `"`, `""`)+`"`)
	}
	return strings.Join(quoted, " OR ")
}

// ==================== Vector Index ====================

// vectorIndex implements driven.VectorIndex with an exact scan.
type vectorIndex struct {
	store *Store
}

var _ driven.VectorIndex = (*vectorIndex)(nil)

// SearchNodes finds the k nodes nearest to the query vector.
func (v *vectorIndex) SearchNodes(ctx context.Context, query []float32, k int) ([]driven.VectorHit, error) {
	return v.scan(ctx, query, k,
		"SELECT id, embedding FROM vector_nodes WHERE embedding IS NOT NULL")
}

// SearchArchives finds the k nearest COMPLETE archives that have no nodes.
func (v *vectorIndex) SearchArchives(ctx context.Context, query []float32, k int) ([]driven.VectorHit, error) {
	return v.scan(ctx, query, k, `
		SELECT a.id, a.embedding FROM archives a
		WHERE a.embedding IS NOT NULL
		AND a.processing_status = 'COMPLETE'
		AND NOT EXISTS (SELECT 1 FROM vector_nodes n WHERE n.parent_archive_id = a.id)
	`)
}

func (v *vectorIndex) scan(ctx context.Context, query []float32, k int, stmt string) ([]driven.VectorHit, error) {
	if len(query) == 0 || k <= 0 {
		return nil, nil
	}

	rows, err := v.store.db.QueryContext(ctx, stmt)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	defer rows.Close()

	top := vecmath.NewTopK(k)
	for rows.Next() {
		var id string
		var blob []byte
		if err := rows.Scan(&id, &blob); err != nil {
			return nil, fmt.Errorf("scanning embedding: %w", err)
		}
		embedding := bytesToFloat32Slice(blob)
		if len(embedding) != len(query) {
			continue // written by a different model
		}
		top.Push(id, vecmath.Cosine(query, embedding))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating embeddings: %w", err)
	}

	results := top.Results()
	hits := make([]driven.VectorHit, len(results))
	for i, r := range results {
		hits[i] = driven.VectorHit{ID: r.ID, Similarity: r.Score}
	}
	return hits, nil
}
