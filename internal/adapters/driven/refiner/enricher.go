package refiner

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/custodia-labs/memex/internal/core/ports/driven"
)

// Ensure Enricher implements the interface.
var _ driven.ContextEnricher = (*Enricher)(nil)

// defaultEnrichPrompt is used when no PromptStore is configured.
const defaultEnrichPrompt = `Rewrite the chunk so it reads on its own. Use the metadata for missing
dates or titles and the preceding context to replace pronouns with names.
Keep every name, number and date from the chunk.

Metadata: %s
Preceding context: %s
Chunk: "%s"

Output only the rewritten chunk.`

// Enricher asks an LLM to make a chunk self-contained.
type Enricher struct {
	llm         driven.LLMService
	promptStore driven.PromptStore
}

// NewEnricher creates an enricher backed by llm.
func NewEnricher(llm driven.LLMService) *Enricher {
	return &Enricher{llm: llm}
}

// SetPromptStore sets the prompt store for loading customisable prompts.
func (e *Enricher) SetPromptStore(store driven.PromptStore) {
	e.promptStore = store
}

// Enrich returns the rewritten chunk.
func (e *Enricher) Enrich(ctx context.Context, req driven.EnrichRequest) (string, error) {
	preceding := req.PrecedingContext
	if preceding == "" {
		preceding = "(none)"
	}
	prompt := fmt.Sprintf(
		loadPrompt(e.promptStore, driven.PromptContextEnrich, defaultEnrichPrompt),
		formatMeta(req.ParentMeta), preceding, req.Chunk,
	)

	out, err := e.llm.Generate(ctx, prompt, driven.GenerateOptions{
		MaxTokens:   2 * len(req.Chunk),
		Temperature: 0.1,
	})
	if err != nil {
		return "", fmt.Errorf("context enrich: %w", err)
	}
	return cleanRewrite(out), nil
}

// formatMeta renders metadata as "key: value" pairs in key order.
func formatMeta(meta map[string]any) string {
	if len(meta) == 0 {
		return "(none)"
	}
	keys := make([]string, 0, len(meta))
	for k := range meta {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %v", k, meta[k]))
	}
	return strings.Join(parts, "; ")
}
