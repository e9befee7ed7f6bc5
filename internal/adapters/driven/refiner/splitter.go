package refiner

import (
	"context"
	"fmt"
	"strings"

	"github.com/custodia-labs/memex/internal/core/ports/driven"
)

// Ensure Splitter implements the interface.
var _ driven.SemanticSplitter = (*Splitter)(nil)

// defaultSplitPrompt is used when no PromptStore is configured.
const defaultSplitPrompt = `Split the text below into semantically complete passages.
Copy the text exactly and keep the original order.
Return ONLY a JSON array of strings.

Text:
%s`

// Splitter asks an LLM to cut a window into semantic chunks.
type Splitter struct {
	llm         driven.LLMService
	promptStore driven.PromptStore
	maxTokens   int
}

// NewSplitter creates a splitter backed by llm.
func NewSplitter(llm driven.LLMService) *Splitter {
	return &Splitter{llm: llm, maxTokens: 8192}
}

// SetPromptStore sets the prompt store for loading customisable prompts.
func (s *Splitter) SetPromptStore(store driven.PromptStore) {
	s.promptStore = store
}

// Split returns the chunks the model proposed. Empty strings are dropped.
func (s *Splitter) Split(ctx context.Context, text string) ([]string, error) {
	prompt := fmt.Sprintf(loadPrompt(s.promptStore, driven.PromptSemanticSplit, defaultSplitPrompt), text)

	out, err := s.llm.Generate(ctx, prompt, driven.GenerateOptions{
		MaxTokens: s.maxTokens,
		JSON:      true,
	})
	if err != nil {
		return nil, fmt.Errorf("semantic split: %w", err)
	}

	chunks, err := parseChunks(out)
	if err != nil {
		return nil, fmt.Errorf("semantic split: %w", err)
	}

	kept := chunks[:0]
	for _, c := range chunks {
		if strings.TrimSpace(c) != "" {
			kept = append(kept, c)
		}
	}
	return kept, nil
}

// loadPrompt loads a prompt from the store, falling back to the default if unavailable.
func loadPrompt(store driven.PromptStore, name, fallback string) string {
	if store == nil {
		return fallback
	}
	prompt, err := store.Load(name)
	if err != nil || strings.TrimSpace(prompt) == "" {
		return fallback
	}
	return prompt
}
