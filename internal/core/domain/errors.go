package domain

import (
	"errors"
	"fmt"
)

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidState indicates an illegal state transition, such as
	// approving a proposal that is no longer pending.
	ErrInvalidState = errors.New("invalid state transition")

	// ErrDuplicatePending indicates a PENDING proposal already exists for the
	// same target archive and proposal type.
	ErrDuplicatePending = errors.New("pending proposal already exists")

	// Refinement Errors.

	// ErrValidation indicates malformed output from a capability.
	// Refinement degrades to its fallback and never aborts the batch.
	ErrValidation = errors.New("capability output failed validation")

	// ErrConsistency indicates a split no longer covers its source text.
	// Refinement falls back to the whole window as a single chunk.
	ErrConsistency = errors.New("content preservation check failed")

	// Capability Errors.

	// ErrCapabilityUnavailable indicates an embedding, rerank or LLM
	// capability could not be reached. Batch work is retried with backoff;
	// retrieval degrades to the search method that still works.
	ErrCapabilityUnavailable = errors.New("capability unavailable")

	// ErrLLMUnavailable indicates the LLM service is not configured.
	// Semantic splitting and context enrichment fall back to mechanical rules.
	ErrLLMUnavailable = errors.New("LLM service unavailable")

	// ErrEmbeddingUnavailable indicates the embedding service is not configured.
	// Dense search and approval of proposals are disabled without embeddings.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrRerankUnavailable indicates the reranker is not configured.
	// Retrieval falls back to rank fusion of dense and sparse results.
	ErrRerankUnavailable = errors.New("rerank service unavailable")
)

// NotFoundError reports a missing entity by kind and id.
// It matches ErrNotFound with errors.Is.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Entity, e.ID)
}

// Is reports whether target is ErrNotFound.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// StateError reports an illegal transition of an entity's status.
// It matches ErrInvalidState with errors.Is.
type StateError struct {
	Entity string
	ID     string
	From   string
	To     string
}

func (e *StateError) Error() string {
	return fmt.Sprintf("%s %q cannot move from %s to %s", e.Entity, e.ID, e.From, e.To)
}

// Is reports whether target is ErrInvalidState.
func (e *StateError) Is(target error) bool {
	return target == ErrInvalidState
}
