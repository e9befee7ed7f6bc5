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

// ==================== Proposal Store ====================

// proposalStore implements driven.ProposalStore.
type proposalStore struct {
	store *Store
}

var _ driven.ProposalStore = (*proposalStore)(nil)

const proposalColumns = `id, type, target_archive_id, payload, status, reasoning, created_at, resolved_at`

// Create inserts a new PENDING proposal.
func (s *proposalStore) Create(ctx context.Context, p *domain.Proposal) error {
	if p == nil || p.ID == "" {
		return domain.ErrInvalidInput
	}
	if err := p.Validate(); err != nil {
		return err
	}
	payload, err := domain.EncodePayload(p.Payload)
	if err != nil {
		return err
	}
	p.Status = domain.ProposalStatusPending
	if p.CreatedAt.IsZero() {
		p.CreatedAt = s.store.now()
	}

	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	pending, err := hasPending(ctx, tx, p.TargetArchiveID, p.Type)
	if err != nil {
		return err
	}
	if pending {
		return fmt.Errorf("%w: %s proposal for archive %s", domain.ErrDuplicatePending, p.Type, p.TargetArchiveID)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO proposals (id, type, target_archive_id, payload, status, reasoning, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, p.ID, string(p.Type), p.TargetArchiveID, string(payload), string(p.Status),
		nullString(p.Reasoning), formatTime(p.CreatedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s proposal for archive %s", domain.ErrDuplicatePending, p.Type, p.TargetArchiveID)
		}
		if strings.Contains(err.Error(), "FOREIGN KEY") {
			return &domain.NotFoundError{Entity: "archive", ID: p.TargetArchiveID}
		}
		return fmt.Errorf("inserting proposal: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// Get retrieves a proposal by ID.
func (s *proposalStore) Get(ctx context.Context, id string) (*domain.Proposal, error) {
	return getProposal(ctx, s.store.db, id)
}

// List returns proposals matching the filter, newest first.
func (s *proposalStore) List(ctx context.Context, filter domain.ProposalFilter) ([]*domain.Proposal, error) {
	var where []string
	var args []any
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(filter.Status))
	}
	if filter.Type != "" {
		where = append(where, "type = ?")
		args = append(args, string(filter.Type))
	}
	if filter.ArchiveID != "" {
		where = append(where, "target_archive_id = ?")
		args = append(args, filter.ArchiveID)
	}

	query := "SELECT " + proposalColumns + " FROM proposals"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying proposals: %w", err)
	}
	defer rows.Close()

	var proposals []*domain.Proposal //nolint:prealloc // size unknown from query
	for rows.Next() {
		p, err := scanProposal(rows)
		if err != nil {
			return nil, err
		}
		proposals = append(proposals, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating proposals: %w", err)
	}
	return proposals, nil
}

// HasPending reports whether a PENDING proposal exists for the archive and type.
func (s *proposalStore) HasPending(ctx context.Context, archiveID string, proposalType domain.ProposalType) (bool, error) {
	return hasPending(ctx, s.store.db, archiveID, proposalType)
}

// Resolve moves a PENDING proposal to a terminal status and applies the
// node replacement in the same transaction.
func (s *proposalStore) Resolve(
	ctx context.Context, id string, status domain.ProposalStatus, replacement *domain.NodeReplacement,
) (*domain.Proposal, error) {
	if !status.IsTerminal() {
		return nil, fmt.Errorf("%w: proposal status %q is not terminal", domain.ErrInvalidInput, status)
	}

	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	p, err := getProposal(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if p.Status != domain.ProposalStatusPending {
		return p, &domain.StateError{Entity: "proposal", ID: id, From: string(p.Status), To: string(status)}
	}

	now := s.store.now()
	if replacement != nil {
		if err := replaceNodes(ctx, tx, replacement, formatTime(now)); err != nil {
			return nil, err
		}
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE proposals SET status = ?, resolved_at = ? WHERE id = ? AND status = 'PENDING'
	`, string(status), formatTime(now), id)
	if err != nil {
		return nil, fmt.Errorf("updating proposal status: %w", err)
	}
	if n, _ := res.RowsAffected(); n != 1 {
		return nil, &domain.StateError{Entity: "proposal", ID: id, From: "resolved", To: string(status)}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing transaction: %w", err)
	}

	p.Status = status
	p.ResolvedAt = &now
	return p, nil
}

// getProposal loads a proposal through db or tx.
func getProposal(ctx context.Context, q queryer, id string) (*domain.Proposal, error) {
	row := q.QueryRowContext(ctx, "SELECT "+proposalColumns+" FROM proposals WHERE id = ?", id)
	p, err := scanProposal(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &domain.NotFoundError{Entity: "proposal", ID: id}
	}
	return p, err
}

// hasPending checks the one-pending-per-pair invariant through db or tx.
func hasPending(ctx context.Context, q queryer, archiveID string, proposalType domain.ProposalType) (bool, error) {
	var n int
	err := q.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM proposals
		WHERE target_archive_id = ? AND type = ? AND status = 'PENDING'
	`, archiveID, string(proposalType)).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("checking pending proposals: %w", err)
	}
	return n > 0, nil
}

// scanProposal scans a single proposal. sql.ErrNoRows is returned unwrapped.
func scanProposal(row rowScanner) (*domain.Proposal, error) {
	var p domain.Proposal
	var proposalType, payload, status, createdAt string
	var reasoning, resolvedAt sql.NullString

	if err := row.Scan(&p.ID, &proposalType, &p.TargetArchiveID, &payload, &status,
		&reasoning, &createdAt, &resolvedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning proposal: %w", err)
	}

	p.Type = domain.ProposalType(proposalType)
	decoded, err := domain.DecodePayload(p.Type, []byte(payload))
	if err != nil {
		return nil, err
	}
	p.Payload = decoded
	p.Status = domain.ProposalStatus(status)
	p.Reasoning = reasoning.String
	p.CreatedAt = parseTime(createdAt)
	if t := parseNullableTime(resolvedAt); !t.IsZero() {
		p.ResolvedAt = &t
	}
	return &p, nil
}

// isUniqueViolation reports whether err came from a UNIQUE constraint.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
