// Package refiner implements the semantic_split and context_enrich
// capabilities on top of an LLM, plus a deterministic enricher that needs
// no model at all.
//
// Output from the model is best effort. The gardener validates every
// result and falls back when it does not hold up.
package refiner
