package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// ProposalType identifies the kind of mutation a proposal carries.
type ProposalType string

// Proposal types.
const (
	// ProposalTypeSplit replaces an archive's nodes with split and enriched chunks.
	ProposalTypeSplit ProposalType = "split"

	// ProposalTypeDedup retires the nodes of an archive that duplicates another.
	ProposalTypeDedup ProposalType = "dedup"

	// ProposalTypeEnrich replaces an archive's nodes with re-enriched content.
	ProposalTypeEnrich ProposalType = "enrich"
)

// IsValid returns true if the proposal type is recognised.
func (t ProposalType) IsValid() bool {
	switch t {
	case ProposalTypeSplit, ProposalTypeDedup, ProposalTypeEnrich:
		return true
	default:
		return false
	}
}

// ProposalStatus is the governance state of a proposal.
type ProposalStatus string

// Proposal states. PENDING moves to exactly one terminal state.
const (
	ProposalStatusPending  ProposalStatus = "PENDING"
	ProposalStatusApproved ProposalStatus = "APPROVED"
	ProposalStatusRejected ProposalStatus = "REJECTED"
)

// IsValid returns true if the status is recognised.
func (s ProposalStatus) IsValid() bool {
	switch s {
	case ProposalStatusPending, ProposalStatusApproved, ProposalStatusRejected:
		return true
	default:
		return false
	}
}

// IsTerminal returns true for APPROVED and REJECTED.
func (s ProposalStatus) IsTerminal() bool {
	return s == ProposalStatusApproved || s == ProposalStatusRejected
}

// Proposal is a pending mutation request awaiting human approval.
type Proposal struct {
	// ID uniquely identifies this proposal.
	ID string

	// Type selects the payload variant and how approval applies it.
	Type ProposalType

	// TargetArchiveID is the archive the mutation applies to.
	TargetArchiveID string

	// Payload is the type-specific body. Its Kind always equals Type.
	Payload Payload

	// Status is the governance state.
	Status ProposalStatus

	// Reasoning explains why the proposal was generated.
	Reasoning string

	// CreatedAt is when the proposal was generated.
	CreatedAt time.Time

	// ResolvedAt is when the proposal reached a terminal state.
	ResolvedAt *time.Time
}

// Validate checks the structural invariants of a new proposal.
func (p *Proposal) Validate() error {
	if p.TargetArchiveID == "" {
		return fmt.Errorf("%w: proposal target archive is required", ErrInvalidInput)
	}
	if !p.Type.IsValid() {
		return fmt.Errorf("%w: unknown proposal type %q", ErrInvalidInput, p.Type)
	}
	if p.Payload == nil {
		return fmt.Errorf("%w: proposal payload is required", ErrInvalidInput)
	}
	if p.Payload.Kind() != p.Type {
		return fmt.Errorf("%w: payload kind %q does not match proposal type %q",
			ErrInvalidInput, p.Payload.Kind(), p.Type)
	}
	if id := payloadArchiveID(p.Payload); id != "" && id != p.TargetArchiveID {
		return fmt.Errorf("%w: payload names archive %s, proposal targets %s",
			ErrInvalidInput, id, p.TargetArchiveID)
	}
	if d, ok := p.Payload.(DedupPayload); ok && (d.DuplicateOf == "" || d.DuplicateOf == p.TargetArchiveID) {
		return fmt.Errorf("%w: dedup proposal needs another archive to point at", ErrInvalidInput)
	}
	return nil
}

// Payload is the type-specific body of a proposal.
type Payload interface {
	// Kind returns the proposal type this payload belongs to.
	Kind() ProposalType
}

// ProposedChunk is one chunk of a split or enrich payload.
type ProposedChunk struct {
	// ChunkIndex is the final position across all windows.
	ChunkIndex int `json:"chunk_index"`

	// Content is the enriched chunk text that becomes VectorNode content.
	Content string `json:"content"`

	// Original is the chunk text before enrichment.
	Original string `json:"original"`

	// Meta holds tags inherited from the parent archive.
	Meta map[string]any `json:"meta,omitempty"`

	// Fallbacks lists the degraded steps that produced this chunk.
	Fallbacks []FallbackReason `json:"fallbacks,omitempty"`
}

// SplitPayload carries the ordered chunks of a refined archive.
type SplitPayload struct {
	ArchiveID string          `json:"archive_id"`
	Chunks    []ProposedChunk `json:"suggested_nodes"`
}

// Kind implements Payload.
func (SplitPayload) Kind() ProposalType { return ProposalTypeSplit }

// DedupPayload marks an archive as a duplicate of another.
type DedupPayload struct {
	ArchiveID   string  `json:"archive_id"`
	DuplicateOf string  `json:"duplicate_of"`
	Similarity  float64 `json:"similarity"`
}

// Kind implements Payload.
func (DedupPayload) Kind() ProposalType { return ProposalTypeDedup }

// EnrichPayload carries re-enriched content for existing chunks.
type EnrichPayload struct {
	ArchiveID string          `json:"archive_id"`
	Chunks    []ProposedChunk `json:"suggested_nodes"`
}

// Kind implements Payload.
func (EnrichPayload) Kind() ProposalType { return ProposalTypeEnrich }

// BindPayload fills in the payload's archive ID, or rejects a payload that
// already names a different archive.
func BindPayload(p Payload, archiveID string) (Payload, error) {
	if id := payloadArchiveID(p); id != "" && id != archiveID {
		return nil, fmt.Errorf("%w: payload names archive %s, not %s", ErrInvalidInput, id, archiveID)
	}
	switch v := p.(type) {
	case SplitPayload:
		v.ArchiveID = archiveID
		return v, nil
	case DedupPayload:
		v.ArchiveID = archiveID
		return v, nil
	case EnrichPayload:
		v.ArchiveID = archiveID
		return v, nil
	default:
		return nil, fmt.Errorf("%w: unknown payload %T", ErrInvalidInput, p)
	}
}

func payloadArchiveID(p Payload) string {
	switch v := p.(type) {
	case SplitPayload:
		return v.ArchiveID
	case DedupPayload:
		return v.ArchiveID
	case EnrichPayload:
		return v.ArchiveID
	default:
		return ""
	}
}

// EncodePayload serialises a payload for storage.
func EncodePayload(p Payload) ([]byte, error) {
	if p == nil {
		return nil, fmt.Errorf("%w: nil payload", ErrInvalidInput)
	}
	return json.Marshal(p)
}

// DecodePayload restores a payload of the given type from storage.
func DecodePayload(t ProposalType, data []byte) (Payload, error) {
	switch t {
	case ProposalTypeSplit:
		var p SplitPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("decode split payload: %w", err)
		}
		return p, nil
	case ProposalTypeDedup:
		var p DedupPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("decode dedup payload: %w", err)
		}
		return p, nil
	case ProposalTypeEnrich:
		var p EnrichPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("decode enrich payload: %w", err)
		}
		return p, nil
	default:
		return nil, fmt.Errorf("%w: unknown proposal type %q", ErrInvalidInput, t)
	}
}

// ProposalFilter narrows proposal listings.
type ProposalFilter struct {
	// Status limits results to one state. Empty matches all.
	Status ProposalStatus

	// Type limits results to one proposal type. Empty matches all.
	Type ProposalType

	// ArchiveID limits results to one target archive.
	ArchiveID string

	// Limit caps the number of results. Zero means no limit.
	Limit int
}

// Matches reports whether p passes the filter, ignoring Limit.
func (f ProposalFilter) Matches(p *Proposal) bool {
	if f.Status != "" && p.Status != f.Status {
		return false
	}
	if f.Type != "" && p.Type != f.Type {
		return false
	}
	if f.ArchiveID != "" && p.TargetArchiveID != f.ArchiveID {
		return false
	}
	return true
}

// NodeReplacement is the store mutation applied when a proposal is approved.
// All existing nodes of ArchiveID are removed and Nodes inserted in their place.
type NodeReplacement struct {
	ArchiveID string
	Nodes     []*VectorNode
}
