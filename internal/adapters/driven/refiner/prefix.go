package refiner

import (
	"context"
	"fmt"
	"strings"

	"github.com/custodia-labs/memex/internal/core/domain"
	"github.com/custodia-labs/memex/internal/core/ports/driven"
)

// Ensure PrefixEnricher implements the interface.
var _ driven.ContextEnricher = PrefixEnricher{}

// PrefixEnricher prepends the parent's filename and semantic date:
//
//	[report.pdf | 2024-03-01] Cost was $50
//
// It is used when no LLM is configured. A chunk whose parent has neither
// field is returned unchanged.
type PrefixEnricher struct{}

// Enrich returns the chunk with its metadata prefix.
func (PrefixEnricher) Enrich(_ context.Context, req driven.EnrichRequest) (string, error) {
	var parts []string
	for _, key := range []string{domain.MetaFilename, domain.MetaSemanticDate} {
		if v, ok := req.ParentMeta[key]; ok {
			if s := strings.TrimSpace(fmt.Sprint(v)); s != "" {
				parts = append(parts, s)
			}
		}
	}
	if len(parts) == 0 {
		return req.Chunk, nil
	}
	return "[" + strings.Join(parts, " | ") + "] " + req.Chunk, nil
}
