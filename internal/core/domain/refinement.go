package domain

import "time"

// FallbackReason records why a refinement step degraded to its fallback.
type FallbackReason string

// Fallback reasons. FallbackNone means the capability output was accepted.
const (
	FallbackNone              FallbackReason = ""
	FallbackSplitError        FallbackReason = "split_error"
	FallbackSplitTimeout      FallbackReason = "split_timeout"
	FallbackSplitInvalid      FallbackReason = "split_invalid"
	FallbackSplitInconsistent FallbackReason = "split_inconsistent"
	FallbackSplitDisabled     FallbackReason = "split_disabled"
	FallbackEnrichError       FallbackReason = "enrich_error"
	FallbackEnrichTimeout     FallbackReason = "enrich_timeout"
	FallbackEnrichInvalid     FallbackReason = "enrich_invalid"
)

// StepResult is the outcome of a capability-wrapping refinement step.
// Value is always usable: when Fallback is set it holds the fallback output
// and Err holds the cause.
type StepResult[T any] struct {
	Value    T
	Fallback FallbackReason
	Err      error
}

// Accepted builds a result whose capability output passed validation.
func Accepted[T any](v T) StepResult[T] {
	return StepResult[T]{Value: v}
}

// Degraded builds a result that fell back for the given reason.
func Degraded[T any](v T, reason FallbackReason, err error) StepResult[T] {
	return StepResult[T]{Value: v, Fallback: reason, Err: err}
}

// IsFallback reports whether the step used its fallback.
func (r StepResult[T]) IsFallback() bool {
	return r.Fallback != FallbackNone
}

// ArchiveOutcome is what a sweep did with a single archive.
type ArchiveOutcome string

// Archive outcomes within a sweep.
const (
	OutcomeProposed ArchiveOutcome = "proposed"
	OutcomeSkipped  ArchiveOutcome = "skipped"
	OutcomeDeferred ArchiveOutcome = "deferred"
	OutcomeFailed   ArchiveOutcome = "failed"
)

// SweepReport summarises one refinement sweep.
type SweepReport struct {
	// StartedAt is when the sweep began.
	StartedAt time.Time

	// EndedAt is when the sweep finished.
	EndedAt time.Time

	// Scanned is the number of unrefined archives considered.
	Scanned int

	// Proposed is the number of proposals created.
	Proposed int

	// Skipped counts archives that already had a pending proposal.
	Skipped int

	// Deferred counts archives left for the next cycle because a capability was unavailable.
	Deferred int

	// Failed counts archives that errored for other reasons.
	Failed int

	// Fallbacks counts degraded steps by reason.
	Fallbacks map[FallbackReason]int

	// ProposalIDs lists the proposals created, in completion order.
	ProposalIDs []string

	// AutoApproved lists proposals approved by the auto-approve policy.
	AutoApproved []string
}

// NewSweepReport returns an empty report stamped with the start time.
func NewSweepReport(now time.Time) *SweepReport {
	return &SweepReport{
		StartedAt: now,
		Fallbacks: make(map[FallbackReason]int),
	}
}
