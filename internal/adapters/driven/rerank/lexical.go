package rerank

import (
	"context"
	"math"
	"strings"
	"unicode"

	"github.com/custodia-labs/memex/internal/core/ports/driven"
)

// Ensure LexicalReranker implements the interface.
var _ driven.Reranker = LexicalReranker{}

// LexicalReranker scores candidates by query term coverage with saturated
// term frequency. Scores fall in [0, 1]. Han, Hiragana, Katakana and Hangul
// characters count as single-rune terms so unsegmented text still matches.
type LexicalReranker struct{}

// Rerank returns one score per candidate, in input order.
func (LexicalReranker) Rerank(_ context.Context, query string, candidates []string) ([]float64, error) {
	terms := uniqueTerms(query)
	scores := make([]float64, len(candidates))
	if len(terms) == 0 {
		return scores, nil
	}
	for i, c := range candidates {
		counts := make(map[string]int)
		for _, t := range Terms(c) {
			counts[t]++
		}
		var sum float64
		for _, t := range terms {
			if n := counts[t]; n > 0 {
				// 1 occurrence is worth 0.5, saturating towards 1.
				sum += 1 - math.Pow(0.5, float64(n))
			}
		}
		scores[i] = sum / float64(len(terms))
	}
	return scores, nil
}

// ModelName identifies the scorer.
func (LexicalReranker) ModelName() string { return "lexical" }

// Ping always succeeds.
func (LexicalReranker) Ping(_ context.Context) error { return nil }

// Terms splits text into lower-cased terms.
func Terms(text string) []string {
	var out []string
	var b strings.Builder
	flush := func() {
		if b.Len() > 0 {
			out = append(out, b.String())
			b.Reset()
		}
	}
	for _, r := range strings.ToLower(text) {
		switch {
		case isIdeographic(r):
			flush()
			out = append(out, string(r))
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		default:
			flush()
		}
	}
	flush()
	return out
}

func uniqueTerms(text string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, t := range Terms(text) {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}

func isIdeographic(r rune) bool {
	return unicode.In(r, unicode.Han, unicode.Hiragana, unicode.Katakana, unicode.Hangul)
}
