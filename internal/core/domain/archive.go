package domain

import (
	"strings"
	"time"
)

// ArchiveStatus is the processing state of an archive.
type ArchiveStatus string

// Archive processing states. PENDING moves to exactly one terminal state.
const (
	ArchiveStatusPending  ArchiveStatus = "PENDING"
	ArchiveStatusComplete ArchiveStatus = "COMPLETE"
	ArchiveStatusFailed   ArchiveStatus = "FAILED"
)

// IsValid returns true if the status is recognised.
func (s ArchiveStatus) IsValid() bool {
	switch s {
	case ArchiveStatusPending, ArchiveStatusComplete, ArchiveStatusFailed:
		return true
	default:
		return false
	}
}

// IsTerminal returns true once ingestion has finished, successfully or not.
func (s ArchiveStatus) IsTerminal() bool {
	return s == ArchiveStatusComplete || s == ArchiveStatusFailed
}

// CanTransition reports whether an archive may move from s to next.
func (s ArchiveStatus) CanTransition(next ArchiveStatus) bool {
	return s == ArchiveStatusPending && next.IsTerminal()
}

// Well-known archive metadata keys.
const (
	MetaFilename     = "filename"
	MetaSemanticDate = "semantic_date"
	MetaTags         = "tags"
	MetaCategory     = "category"
	MetaSection      = "section"
	MetaStructured   = "structured"
)

// Archive is an immutable parent document.
// FullText never changes once the archive reaches COMPLETE.
type Archive struct {
	// ID uniquely identifies this archive.
	ID string

	// FullText is the complete original text content.
	FullText string

	// Embedding is the optional coarse vector over FullText.
	Embedding []float32

	// MetaData holds semantic attributes such as filename and semantic_date.
	MetaData map[string]any

	// Status is the ingestion processing state.
	Status ArchiveStatus

	// CreatedAt is when the archive was first ingested.
	CreatedAt time.Time

	// UpdatedAt is when the archive status or embedding last changed.
	UpdatedAt time.Time
}

// Filename returns the filename metadata, or an empty string.
func (a *Archive) Filename() string {
	return metaString(a.MetaData, MetaFilename)
}

// SemanticDate returns the date the content is about. It reads
// meta_data.semantic_date first, then meta_data.structured.date,
// and falls back to the ingestion date.
func (a *Archive) SemanticDate() time.Time {
	if t, ok := parseMetaDate(metaString(a.MetaData, MetaSemanticDate)); ok {
		return t
	}
	if structured, ok := a.MetaData[MetaStructured].(map[string]any); ok {
		if t, ok := parseMetaDate(metaString(structured, "date")); ok {
			return t
		}
	}
	return a.CreatedAt
}

// InheritableMeta returns the metadata propagated to child nodes.
// The map is a copy and safe to mutate.
func (a *Archive) InheritableMeta() map[string]any {
	meta := make(map[string]any)
	for _, key := range []string{MetaFilename, MetaSemanticDate, MetaTags, MetaCategory, MetaSection} {
		if v, ok := a.MetaData[key]; ok {
			meta[key] = v
		}
	}
	return meta
}

// VectorNode is a retrievable chunk derived from an archive.
// Nodes are created only by approving a proposal.
type VectorNode struct {
	// ID uniquely identifies this node.
	ID string

	// ParentArchiveID references the owning archive.
	ParentArchiveID string

	// Content is the chunk text after splitting and enrichment.
	Content string

	// ChunkIndex orders the node among its siblings.
	ChunkIndex int

	// Embedding is the vector over Content.
	Embedding []float32

	// Meta holds tags inherited from the parent, frozen at creation.
	Meta map[string]any

	// CreatedAt is when the node was materialised.
	CreatedAt time.Time
}

// ArchiveFilter narrows archive listings.
type ArchiveFilter struct {
	// Status limits results to one processing state. Empty matches all.
	Status ArchiveStatus

	// Since limits results to archives created at or after it. Zero matches all.
	Since time.Time

	// Limit caps the number of results. Zero means no limit.
	Limit int
}

func metaString(meta map[string]any, key string) string {
	if meta == nil {
		return ""
	}
	switch v := meta[key].(type) {
	case string:
		return v
	case time.Time:
		return v.Format(time.RFC3339)
	default:
		return ""
	}
}

var metaDateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"2006-01",
	"2006",
}

func parseMetaDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range metaDateLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
