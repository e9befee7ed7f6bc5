package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/custodia-labs/memex/internal/core/domain"
	"github.com/custodia-labs/memex/internal/core/ports/driven"
)

// ==================== Node Store ====================

// nodeStore implements driven.NodeStore.
type nodeStore struct {
	store *Store
}

var _ driven.NodeStore = (*nodeStore)(nil)

const nodeColumns = `id, parent_archive_id, content, chunk_index, embedding, meta, created_at`

// Get retrieves a node by ID.
func (s *nodeStore) Get(ctx context.Context, id string) (*domain.VectorNode, error) {
	row := s.store.db.QueryRowContext(ctx, "SELECT "+nodeColumns+" FROM vector_nodes WHERE id = ?", id)
	node, err := scanNode(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &domain.NotFoundError{Entity: "vector node", ID: id}
	}
	return node, err
}

// GetMany retrieves nodes by ID. Missing IDs are skipped.
func (s *nodeStore) GetMany(ctx context.Context, ids []string) ([]*domain.VectorNode, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	marks, args := placeholders(ids)
	rows, err := s.store.db.QueryContext(ctx,
		"SELECT "+nodeColumns+" FROM vector_nodes WHERE id IN ("+marks+")", args...)
	if err != nil {
		return nil, fmt.Errorf("querying nodes: %w", err)
	}
	defer rows.Close()
	return scanNodes(rows)
}

// ListByArchive returns an archive's nodes in chunk_index order.
func (s *nodeStore) ListByArchive(ctx context.Context, archiveID string) ([]*domain.VectorNode, error) {
	rows, err := s.store.db.QueryContext(ctx,
		"SELECT "+nodeColumns+" FROM vector_nodes WHERE parent_archive_id = ? ORDER BY chunk_index", archiveID)
	if err != nil {
		return nil, fmt.Errorf("querying nodes: %w", err)
	}
	defer rows.Close()
	return scanNodes(rows)
}

// CountByArchive returns how many nodes an archive has.
func (s *nodeStore) CountByArchive(ctx context.Context, archiveID string) (int, error) {
	var n int
	err := s.store.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM vector_nodes WHERE parent_archive_id = ?", archiveID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting nodes: %w", err)
	}
	return n, nil
}

// replaceNodes swaps every node of an archive for a new set inside tx.
func replaceNodes(ctx context.Context, tx *sql.Tx, r *domain.NodeReplacement, now string) error {
	if _, err := tx.ExecContext(ctx, "DELETE FROM vector_nodes WHERE parent_archive_id = ?", r.ArchiveID); err != nil {
		return fmt.Errorf("deleting previous nodes: %w", err)
	}
	if len(r.Nodes) == 0 {
		return nil
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO vector_nodes (id, parent_archive_id, content, chunk_index, embedding, meta, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for _, node := range r.Nodes {
		if node.ParentArchiveID != r.ArchiveID {
			return fmt.Errorf("%w: node %s belongs to %s, not %s",
				domain.ErrInvalidInput, node.ID, node.ParentArchiveID, r.ArchiveID)
		}
		metaJSON, err := marshalMeta(node.Meta)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, node.ID, node.ParentArchiveID, node.Content, node.ChunkIndex,
			float32SliceToBytes(node.Embedding), metaJSON, now); err != nil {
			return fmt.Errorf("inserting node %d: %w", node.ChunkIndex, err)
		}
		node.CreatedAt = parseTime(now)
	}
	return nil
}

// scanNode scans a single node. sql.ErrNoRows is returned unwrapped.
func scanNode(row rowScanner) (*domain.VectorNode, error) {
	var n domain.VectorNode
	var embedding []byte
	var metaJSON, createdAt string

	if err := row.Scan(&n.ID, &n.ParentArchiveID, &n.Content, &n.ChunkIndex, &embedding, &metaJSON, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning node: %w", err)
	}

	meta, err := unmarshalMeta(metaJSON)
	if err != nil {
		return nil, err
	}
	n.Meta = meta
	n.Embedding = bytesToFloat32Slice(embedding)
	n.CreatedAt = parseTime(createdAt)
	return &n, nil
}

// scanNodes scans all remaining node rows.
func scanNodes(rows *sql.Rows) ([]*domain.VectorNode, error) {
	var nodes []*domain.VectorNode //nolint:prealloc // size unknown from query
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating nodes: %w", err)
	}
	return nodes, nil
}
