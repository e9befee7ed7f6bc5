package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/custodia-labs/memex/internal/core/domain"
	"github.com/custodia-labs/memex/internal/core/ports/driven"
)

// ==================== Archive Store ====================

// archiveStore implements driven.ArchiveStore.
type archiveStore struct {
	store *Store
}

var _ driven.ArchiveStore = (*archiveStore)(nil)

const archiveColumns = `id, full_text, embedding, meta_data, processing_status, created_at, updated_at`

// Save stores a new archive or updates an existing one's metadata.
// Full text may only change while the archive is PENDING.
func (s *archiveStore) Save(ctx context.Context, archive *domain.Archive) error {
	if archive == nil || archive.ID == "" {
		return domain.ErrInvalidInput
	}
	if archive.Status == "" {
		archive.Status = domain.ArchiveStatusPending
	}
	if !archive.Status.IsValid() {
		return fmt.Errorf("%w: archive status %q", domain.ErrInvalidInput, archive.Status)
	}

	metaJSON, err := marshalMeta(archive.MetaData)
	if err != nil {
		return err
	}

	now := s.store.now()
	if archive.CreatedAt.IsZero() {
		archive.CreatedAt = now
	}
	archive.UpdatedAt = now

	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var status, fullText string
	err = tx.QueryRowContext(ctx,
		"SELECT processing_status, full_text FROM archives WHERE id = ?", archive.ID,
	).Scan(&status, &fullText)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		_, err = tx.ExecContext(ctx, `
			INSERT INTO archives (id, full_text, embedding, meta_data, processing_status, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, archive.ID, archive.FullText, float32SliceToBytes(archive.Embedding), metaJSON,
			string(archive.Status), formatTime(archive.CreatedAt), formatTime(archive.UpdatedAt))
		if err != nil {
			return fmt.Errorf("inserting archive: %w", err)
		}
	case err != nil:
		return fmt.Errorf("reading archive: %w", err)
	default:
		if domain.ArchiveStatus(status).IsTerminal() && fullText != archive.FullText {
			return &domain.StateError{Entity: "archive", ID: archive.ID, From: status, To: "edited"}
		}
		_, err = tx.ExecContext(ctx, `
			UPDATE archives SET full_text = ?, meta_data = ?, updated_at = ? WHERE id = ?
		`, archive.FullText, metaJSON, formatTime(archive.UpdatedAt), archive.ID)
		if err != nil {
			return fmt.Errorf("updating archive: %w", err)
		}
		archive.Status = domain.ArchiveStatus(status)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// Get retrieves an archive by ID.
func (s *archiveStore) Get(ctx context.Context, id string) (*domain.Archive, error) {
	row := s.store.db.QueryRowContext(ctx, "SELECT "+archiveColumns+" FROM archives WHERE id = ?", id)
	archive, err := scanArchive(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &domain.NotFoundError{Entity: "archive", ID: id}
	}
	return archive, err
}

// GetMany retrieves archives by ID. Missing IDs are skipped.
func (s *archiveStore) GetMany(ctx context.Context, ids []string) ([]*domain.Archive, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	marks, args := placeholders(ids)
	rows, err := s.store.db.QueryContext(ctx,
		"SELECT "+archiveColumns+" FROM archives WHERE id IN ("+marks+")", args...)
	if err != nil {
		return nil, fmt.Errorf("querying archives: %w", err)
	}
	defer rows.Close()
	return scanArchives(rows)
}

// List returns archives matching the filter, newest first.
func (s *archiveStore) List(ctx context.Context, filter domain.ArchiveFilter) ([]*domain.Archive, error) {
	query := "SELECT " + archiveColumns + " FROM archives"
	var (
		where []string
		args  []any
	)
	if filter.Status != "" {
		where = append(where, "processing_status = ?")
		args = append(args, string(filter.Status))
	}
	if !filter.Since.IsZero() {
		where = append(where, "created_at >= ?")
		args = append(args, formatTime(filter.Since))
	}
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, seq DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying archives: %w", err)
	}
	defer rows.Close()
	return scanArchives(rows)
}

// SetStatus moves an archive out of PENDING exactly once.
func (s *archiveStore) SetStatus(ctx context.Context, id string, status domain.ArchiveStatus) error {
	if !status.IsTerminal() {
		return fmt.Errorf("%w: archive status %q is not terminal", domain.ErrInvalidInput, status)
	}

	res, err := s.store.db.ExecContext(ctx, `
		UPDATE archives SET processing_status = ?, updated_at = ?
		WHERE id = ? AND processing_status = 'PENDING'
	`, string(status), formatTime(s.store.now()), id)
	if err != nil {
		return fmt.Errorf("updating archive status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 1 {
		return nil
	}

	var current string
	err = s.store.db.QueryRowContext(ctx, "SELECT processing_status FROM archives WHERE id = ?", id).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return &domain.NotFoundError{Entity: "archive", ID: id}
	}
	if err != nil {
		return fmt.Errorf("reading archive status: %w", err)
	}
	return &domain.StateError{Entity: "archive", ID: id, From: current, To: string(status)}
}

// SetEmbedding stores the coarse embedding of an archive.
func (s *archiveStore) SetEmbedding(ctx context.Context, id string, embedding []float32) error {
	res, err := s.store.db.ExecContext(ctx,
		"UPDATE archives SET embedding = ?, updated_at = ? WHERE id = ?",
		float32SliceToBytes(embedding), formatTime(s.store.now()), id)
	if err != nil {
		return fmt.Errorf("updating archive embedding: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &domain.NotFoundError{Entity: "archive", ID: id}
	}
	return nil
}

// ListUnrefined returns COMPLETE archives with neither nodes nor a pending
// split proposal, oldest first.
func (s *archiveStore) ListUnrefined(ctx context.Context, limit int) ([]*domain.Archive, error) {
	query := "SELECT " + archiveColumns + ` FROM archives a
		WHERE a.processing_status = 'COMPLETE'
		AND NOT EXISTS (SELECT 1 FROM vector_nodes n WHERE n.parent_archive_id = a.id)
		AND NOT EXISTS (SELECT 1 FROM proposals p WHERE p.target_archive_id = a.id
			AND p.type = 'split' AND p.status = 'PENDING')
		ORDER BY a.created_at ASC, a.seq ASC`
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying unrefined archives: %w", err)
	}
	defer rows.Close()
	return scanArchives(rows)
}

// Delete removes an archive, its nodes and its proposals.
func (s *archiveStore) Delete(ctx context.Context, id string) error {
	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	// Children first so the FTS delete triggers see every row.
	if _, err := tx.ExecContext(ctx, "DELETE FROM vector_nodes WHERE parent_archive_id = ?", id); err != nil {
		return fmt.Errorf("deleting nodes: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM proposals WHERE target_archive_id = ?", id); err != nil {
		return fmt.Errorf("deleting proposals: %w", err)
	}
	res, err := tx.ExecContext(ctx, "DELETE FROM archives WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting archive: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &domain.NotFoundError{Entity: "archive", ID: id}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanArchive scans a single archive. sql.ErrNoRows is returned unwrapped.
func scanArchive(row rowScanner) (*domain.Archive, error) {
	var a domain.Archive
	var embedding []byte
	var metaJSON, status, createdAt, updatedAt string

	if err := row.Scan(&a.ID, &a.FullText, &embedding, &metaJSON, &status, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning archive: %w", err)
	}

	meta, err := unmarshalMeta(metaJSON)
	if err != nil {
		return nil, err
	}
	a.MetaData = meta
	a.Embedding = bytesToFloat32Slice(embedding)
	a.Status = domain.ArchiveStatus(status)
	a.CreatedAt = parseTime(createdAt)
	a.UpdatedAt = parseTime(updatedAt)
	return &a, nil
}

// scanArchives scans all remaining archive rows.
func scanArchives(rows *sql.Rows) ([]*domain.Archive, error) {
	var archives []*domain.Archive //nolint:prealloc // size unknown from query
	for rows.Next() {
		a, err := scanArchive(rows)
		if err != nil {
			return nil, err
		}
		archives = append(archives, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating archives: %w", err)
	}
	return archives, nil
}
