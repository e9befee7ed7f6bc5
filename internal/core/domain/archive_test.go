package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestArchiveStatus_CanTransition(t *testing.T) {
	tests := []struct {
		from, to ArchiveStatus
		want     bool
	}{
		{ArchiveStatusPending, ArchiveStatusComplete, true},
		{ArchiveStatusPending, ArchiveStatusFailed, true},
		{ArchiveStatusPending, ArchiveStatusPending, false},
		{ArchiveStatusComplete, ArchiveStatusFailed, false},
		{ArchiveStatusFailed, ArchiveStatusComplete, false},
		{ArchiveStatusComplete, ArchiveStatusComplete, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransition(tt.to))
		})
	}
}

func TestArchive_SemanticDate(t *testing.T) {
	created := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	tests := []struct {
		name string
		meta map[string]any
		want time.Time
	}{
		{
			name: "semantic_date wins",
			meta: map[string]any{MetaSemanticDate: "2023-11-20"},
			want: time.Date(2023, 11, 20, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "structured date used next",
			meta: map[string]any{MetaStructured: map[string]any{"date": "2023-06"}},
			want: time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "unparseable falls back to ingestion",
			meta: map[string]any{MetaSemanticDate: "last spring"},
			want: created,
		},
		{
			name: "nil metadata",
			meta: nil,
			want: created,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := &Archive{MetaData: tt.meta, CreatedAt: created}
			assert.True(t, tt.want.Equal(a.SemanticDate()), "got %v", a.SemanticDate())
		})
	}
}

func TestArchive_InheritableMeta(t *testing.T) {
	a := &Archive{MetaData: map[string]any{
		MetaFilename: "report.pdf",
		MetaCategory: "finance",
		"raw_path":   "/tmp/upload/123",
	}}

	meta := a.InheritableMeta()
	assert.Equal(t, "report.pdf", meta[MetaFilename])
	assert.Equal(t, "finance", meta[MetaCategory])
	assert.NotContains(t, meta, "raw_path")

	meta[MetaFilename] = "changed"
	assert.Equal(t, "report.pdf", a.Filename())
}
