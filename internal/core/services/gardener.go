package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/memex/internal/core/domain"
	"github.com/custodia-labs/memex/internal/core/ports/driven"
	"github.com/custodia-labs/memex/internal/core/ports/driving"
	"github.com/custodia-labs/memex/internal/logger"
	"github.com/custodia-labs/memex/internal/segmenter"
)

// Ensure Gardener implements the interface.
var _ driving.RefinementService = (*Gardener)(nil)

// Gardener turns unrefined archives into split proposals. It never writes
// vector nodes itself; nodes appear only when a proposal is approved.
type Gardener struct {
	archives  driven.ArchiveStore
	proposals driven.ProposalStore
	splitter  driven.SemanticSplitter
	enricher  driven.ContextEnricher
	registry  *CapabilityRegistry
	notifier  driven.Notifier
	approver  driving.ProposalService
	segmenter *segmenter.Segmenter
	cfg       domain.RefinementSettings
	now       func() time.Time
	newID     func() string
}

// GardenerOption configures optional collaborators of the Gardener.
type GardenerOption func(*Gardener)

// WithSplitter sets the semantic splitter. Without one, segmenter windows
// are used as chunks.
func WithSplitter(s driven.SemanticSplitter) GardenerOption {
	return func(g *Gardener) { g.splitter = s }
}

// WithEnricher sets the context enricher. Without one, chunks are kept as is.
func WithEnricher(e driven.ContextEnricher) GardenerOption {
	return func(g *Gardener) { g.enricher = e }
}

// WithRegistry injects the capability health registry.
func WithRegistry(r *CapabilityRegistry) GardenerOption {
	return func(g *Gardener) { g.registry = r }
}

// WithNotifier sets where "proposals ready" events are sent.
func WithNotifier(n driven.Notifier) GardenerOption {
	return func(g *Gardener) { g.notifier = n }
}

// WithAutoApprover approves each new proposal through approver
// when refinement.auto_approve is on.
func WithAutoApprover(approver driving.ProposalService) GardenerOption {
	return func(g *Gardener) { g.approver = approver }
}

// NewGardener creates a refinement engine.
func NewGardener(
	archives driven.ArchiveStore,
	proposals driven.ProposalStore,
	cfg domain.RefinementSettings,
	opts ...GardenerOption,
) *Gardener {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	g := &Gardener{
		archives:  archives,
		proposals: proposals,
		cfg:       cfg,
		segmenter: segmenter.New(
			segmenter.WithChunkSize(cfg.WindowSize),
			segmenter.WithOverlap(cfg.WindowOverlap),
		),
		now:   time.Now,
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// sweepResult is the outcome of refining one archive.
type sweepResult struct {
	outcome   domain.ArchiveOutcome
	proposal  *domain.Proposal
	fallbacks []domain.FallbackReason
	err       error
}

// Sweep scans unrefined archives and proposes a split for each one
// that has no pending split proposal.
func (g *Gardener) Sweep(ctx context.Context) (*domain.SweepReport, error) {
	report := domain.NewSweepReport(g.now())
	logger.Section("Refinement Sweep")

	if !g.llmReady(ctx) {
		report.EndedAt = g.now()
		g.notify(ctx, driven.EventSweepDeferred, map[string]any{"reason": "llm unavailable"})
		return report, fmt.Errorf("sweep deferred, llm unhealthy: %w", domain.ErrCapabilityUnavailable)
	}

	archives, err := g.archives.ListUnrefined(ctx, g.cfg.BatchLimit)
	if err != nil {
		return nil, fmt.Errorf("list unrefined archives: %w", err)
	}
	report.Scanned = len(archives)
	logger.Info("Refining %d archive(s) with %d worker(s)", len(archives), g.cfg.Workers)

	var mu sync.Mutex
	var eg errgroup.Group
	eg.SetLimit(g.cfg.Workers)
	for _, archive := range archives {
		eg.Go(func() error {
			res := g.refine(ctx, archive)

			mu.Lock()
			defer mu.Unlock()
			for _, f := range res.fallbacks {
				report.Fallbacks[f]++
			}
			switch res.outcome {
			case domain.OutcomeProposed:
				report.Proposed++
				report.ProposalIDs = append(report.ProposalIDs, res.proposal.ID)
			case domain.OutcomeSkipped:
				report.Skipped++
			case domain.OutcomeDeferred:
				report.Deferred++
			case domain.OutcomeFailed:
				report.Failed++
			}
			logger.Debug("Archive %s: %s", archive.ID, res.outcome)
			if res.err != nil {
				logger.Warn("Archive %s %s: %v", archive.ID, res.outcome, res.err)
			}
			return nil
		})
	}
	_ = eg.Wait()

	g.autoApprove(ctx, report)
	report.EndedAt = g.now()

	logger.Info("Sweep finished: scanned=%d proposed=%d skipped=%d deferred=%d failed=%d",
		report.Scanned, report.Proposed, report.Skipped, report.Deferred, report.Failed)

	if report.Proposed > 0 {
		data := map[string]any{
			"count":        report.Proposed,
			"proposal_ids": report.ProposalIDs,
		}
		g.addBacklog(ctx, data)
		g.notify(ctx, driven.EventProposalsReady, data)
	}
	if report.Deferred > 0 {
		g.notify(ctx, driven.EventSweepDeferred, map[string]any{"deferred": report.Deferred})
		return report, fmt.Errorf("%d archive(s) deferred: %w", report.Deferred, domain.ErrCapabilityUnavailable)
	}
	if err := ctx.Err(); err != nil {
		return report, err
	}
	return report, nil
}

// RefineArchive produces a split proposal for a single archive.
func (g *Gardener) RefineArchive(ctx context.Context, archiveID string) (*domain.Proposal, error) {
	archive, err := g.archives.Get(ctx, archiveID)
	if err != nil {
		return nil, err
	}
	if archive.Status != domain.ArchiveStatusComplete {
		return nil, &domain.StateError{
			Entity: "archive", ID: archiveID,
			From: string(archive.Status), To: "refined",
		}
	}
	if !g.llmReady(ctx) {
		return nil, fmt.Errorf("refine archive %s, llm unhealthy: %w", archiveID, domain.ErrCapabilityUnavailable)
	}

	res := g.refine(ctx, archive)
	switch res.outcome {
	case domain.OutcomeProposed:
		if !g.cfg.AutoApprove || g.approver == nil {
			return res.proposal, nil
		}
		approved, err := g.approver.Approve(ctx, res.proposal.ID)
		if err != nil {
			logger.Warn("Auto-approve %s failed: %v", res.proposal.ID, err)
			return res.proposal, nil
		}
		return approved, nil
	case domain.OutcomeSkipped:
		return nil, fmt.Errorf("archive %s: %w", archiveID, domain.ErrDuplicatePending)
	default:
		return nil, res.err
	}
}

// llmReady reports whether a configured LLM can be used. An unhealthy LLM
// gets one refresh before the caller defers.
func (g *Gardener) llmReady(ctx context.Context) bool {
	if g.splitter == nil || !g.registry.Configured(domain.CapabilityLLM) {
		return true
	}
	if g.registry.Available(domain.CapabilityLLM) {
		return true
	}
	g.registry.Refresh(ctx)
	return g.registry.Available(domain.CapabilityLLM)
}

func (g *Gardener) refine(ctx context.Context, archive *domain.Archive) sweepResult {
	pending, err := g.proposals.HasPending(ctx, archive.ID, domain.ProposalTypeSplit)
	if err != nil {
		return sweepResult{outcome: domain.OutcomeFailed, err: err}
	}
	if pending {
		return sweepResult{outcome: domain.OutcomeSkipped}
	}

	chunks, fallbacks, err := g.buildChunks(ctx, archive)
	if err != nil {
		if errors.Is(err, domain.ErrCapabilityUnavailable) {
			return sweepResult{outcome: domain.OutcomeDeferred, fallbacks: fallbacks, err: err}
		}
		return sweepResult{outcome: domain.OutcomeFailed, fallbacks: fallbacks, err: err}
	}
	if len(chunks) == 0 {
		return sweepResult{outcome: domain.OutcomeFailed, err: fmt.Errorf("%w: archive has no text", domain.ErrValidation)}
	}

	proposal := &domain.Proposal{
		ID:              g.newID(),
		Type:            domain.ProposalTypeSplit,
		TargetArchiveID: archive.ID,
		Payload:         domain.SplitPayload{ArchiveID: archive.ID, Chunks: chunks},
		Reasoning:       splitReasoning(len(chunks), fallbacks),
		CreatedAt:       g.now(),
	}

	// Another sweep may have proposed while this one was calling models.
	pending, err = g.proposals.HasPending(ctx, archive.ID, domain.ProposalTypeSplit)
	if err != nil {
		return sweepResult{outcome: domain.OutcomeFailed, fallbacks: fallbacks, err: err}
	}
	if pending {
		return sweepResult{outcome: domain.OutcomeSkipped, fallbacks: fallbacks}
	}
	if err := g.proposals.Create(ctx, proposal); err != nil {
		if errors.Is(err, domain.ErrDuplicatePending) {
			return sweepResult{outcome: domain.OutcomeSkipped, fallbacks: fallbacks}
		}
		return sweepResult{outcome: domain.OutcomeFailed, fallbacks: fallbacks, err: err}
	}
	return sweepResult{outcome: domain.OutcomeProposed, proposal: proposal, fallbacks: fallbacks}
}

// buildChunks segments, splits and enriches an archive. It only returns an
// error when the archive must be abandoned for this cycle.
func (g *Gardener) buildChunks(
	ctx context.Context, archive *domain.Archive,
) ([]domain.ProposedChunk, []domain.FallbackReason, error) {
	meta := archive.InheritableMeta()
	var chunks []domain.ProposedChunk
	var fallbacks []domain.FallbackReason
	preceding := ""

	for _, w := range g.segmenter.Split(archive.FullText) {
		fresh := w.Fresh()
		if strings.TrimSpace(fresh) == "" {
			continue
		}
		if preceding == "" {
			preceding = w.Context()
		}

		split := g.split(ctx, fresh)
		if err := abortCause(ctx, split.Err, domain.CapabilityLLM, g.registry); err != nil {
			return nil, fallbacks, err
		}
		if split.IsFallback() {
			fallbacks = append(fallbacks, split.Fallback)
			if split.Fallback != domain.FallbackSplitDisabled {
				logger.Warn("Archive %s: split fell back to window (%s): %v", archive.ID, split.Fallback, split.Err)
			}
		}

		for _, part := range split.Value {
			enriched := g.enrich(ctx, part, meta, preceding)
			if err := abortCause(ctx, enriched.Err, domain.CapabilityLLM, g.registry); err != nil {
				return nil, fallbacks, err
			}
			chunk := domain.ProposedChunk{
				ChunkIndex: len(chunks),
				Content:    enriched.Value,
				Original:   part,
				Meta:       copyMeta(meta),
			}
			if split.IsFallback() {
				chunk.Fallbacks = append(chunk.Fallbacks, split.Fallback)
			}
			if enriched.IsFallback() {
				logger.Warn("Archive %s chunk %d: enrichment fell back (%s): %v",
					archive.ID, chunk.ChunkIndex, enriched.Fallback, enriched.Err)
				fallbacks = append(fallbacks, enriched.Fallback)
				chunk.Fallbacks = append(chunk.Fallbacks, enriched.Fallback)
			}
			chunks = append(chunks, chunk)
			preceding = part
		}
	}
	return chunks, fallbacks, nil
}

// split asks the splitter for semantic chunks of a window and validates
// them. Any failure falls back to the whole window as one chunk.
func (g *Gardener) split(ctx context.Context, window string) domain.StepResult[[]string] {
	whole := []string{strings.TrimSpace(window)}
	if g.splitter == nil {
		return domain.Degraded(whole, domain.FallbackSplitDisabled, nil)
	}

	callCtx, cancel := withTimeout(ctx, g.cfg.SplitTimeout)
	defer cancel()
	parts, err := g.splitter.Split(callCtx, window)
	if err != nil {
		if isTimeout(ctx, callCtx, err) {
			return domain.Degraded(whole, domain.FallbackSplitTimeout, err)
		}
		return domain.Degraded(whole, domain.FallbackSplitError, err)
	}
	g.registry.MarkHealthy(domain.CapabilityLLM)

	if err := validateSplit(window, parts); err != nil {
		if errors.Is(err, domain.ErrConsistency) {
			return domain.Degraded(whole, domain.FallbackSplitInconsistent, err)
		}
		return domain.Degraded(whole, domain.FallbackSplitInvalid, err)
	}

	out := make([]string, len(parts))
	for i, p := range parts {
		out[i] = strings.TrimSpace(p)
	}
	return domain.Accepted(out)
}

// enrich rewrites one chunk to stand on its own. Any failure keeps the
// chunk unenriched.
func (g *Gardener) enrich(
	ctx context.Context, chunk string, meta map[string]any, preceding string,
) domain.StepResult[string] {
	if g.enricher == nil {
		return domain.Accepted(chunk)
	}

	callCtx, cancel := withTimeout(ctx, g.cfg.EnrichTimeout)
	defer cancel()
	out, err := g.enricher.Enrich(callCtx, driven.EnrichRequest{
		Chunk:            chunk,
		ParentMeta:       meta,
		PrecedingContext: preceding,
	})
	if err != nil {
		if isTimeout(ctx, callCtx, err) {
			return domain.Degraded(chunk, domain.FallbackEnrichTimeout, err)
		}
		return domain.Degraded(chunk, domain.FallbackEnrichError, err)
	}

	out = strings.TrimSpace(out)
	if err := validateEnrichment(chunk, out); err != nil {
		return domain.Degraded(chunk, domain.FallbackEnrichInvalid, err)
	}
	return domain.Accepted(out)
}

func (g *Gardener) autoApprove(ctx context.Context, report *domain.SweepReport) {
	if !g.cfg.AutoApprove || g.approver == nil {
		return
	}
	for _, id := range report.ProposalIDs {
		if _, err := g.approver.Approve(ctx, id); err != nil {
			logger.Warn("Auto-approve %s failed: %v", id, err)
			continue
		}
		report.AutoApproved = append(report.AutoApproved, id)
	}
}

// backlogWindow is how far back "new archives" reach in notifications.
const backlogWindow = 24 * time.Hour

// addBacklog adds the review queue size and the archives ingested in the
// last day. A count that cannot be read is left out.
func (g *Gardener) addBacklog(ctx context.Context, data map[string]any) {
	if g.notifier == nil {
		return
	}
	pending, err := g.proposals.List(ctx, domain.ProposalFilter{Status: domain.ProposalStatusPending})
	if err != nil {
		logger.Warn("Counting pending proposals: %v", err)
	} else {
		data["pending_total"] = len(pending)
	}
	recent, err := g.archives.List(ctx, domain.ArchiveFilter{Since: g.now().Add(-backlogWindow)})
	if err != nil {
		logger.Warn("Counting new archives: %v", err)
	} else {
		data["new_archives_24h"] = len(recent)
	}
}

func (g *Gardener) notify(ctx context.Context, event string, data map[string]any) {
	if g.notifier == nil {
		return
	}
	if err := g.notifier.Notify(ctx, event, data); err != nil {
		logger.Warn("Notify %s failed: %v", event, err)
	}
}

// validateSplit requires non-empty chunks that cover the window exactly,
// ignoring whitespace.
func validateSplit(window string, parts []string) error {
	if len(parts) == 0 {
		return fmt.Errorf("%w: splitter returned no chunks", domain.ErrValidation)
	}
	var joined strings.Builder
	for i, p := range parts {
		if strings.TrimSpace(p) == "" {
			return fmt.Errorf("%w: chunk %d is empty", domain.ErrValidation, i)
		}
		joined.WriteString(p)
	}
	if stripSpace(joined.String()) != stripSpace(window) {
		return fmt.Errorf("%w: chunks do not reconstruct the window", domain.ErrConsistency)
	}
	return nil
}

// validateEnrichment requires the rewrite to keep every salient token of
// the chunk.
func validateEnrichment(chunk, enriched string) error {
	if enriched == "" {
		return fmt.Errorf("%w: enrichment is empty", domain.ErrValidation)
	}
	lower := strings.ToLower(enriched)
	for _, tok := range salientTokens(chunk) {
		if !strings.Contains(lower, strings.ToLower(tok)) {
			return fmt.Errorf("%w: enrichment dropped %q", domain.ErrValidation, tok)
		}
	}
	return nil
}

// pronouns may be replaced by the entity they refer to.
var pronouns = map[string]bool{
	"i": true, "he": true, "she": true, "it": true, "we": true, "they": true,
	"you": true, "this": true, "that": true, "these": true, "those": true,
	"his": true, "her": true, "its": true, "their": true, "our": true,
}

// salientTokens returns the entities and numbers of text: tokens holding a
// digit or a non-ASCII letter, and capitalised words that do not start a
// sentence.
func salientTokens(text string) []string {
	var out []string
	seen := make(map[string]bool)
	sentenceStart := true
	for _, field := range strings.Fields(text) {
		tok := strings.TrimFunc(field, func(r rune) bool {
			return unicode.IsPunct(r) && r != '%'
		})
		startsSentence := sentenceStart
		last, _ := utf8.DecodeLastRuneInString(field)
		sentenceStart = strings.ContainsRune(".!?。！？", last)
		if tok == "" || seen[tok] {
			continue
		}

		salient := false
		for _, r := range tok {
			if unicode.IsDigit(r) || (r >= utf8.RuneSelf && unicode.IsLetter(r)) {
				salient = true
				break
			}
		}
		if !salient {
			first, _ := utf8.DecodeRuneInString(tok)
			salient = unicode.IsUpper(first) && !startsSentence && !pronouns[strings.ToLower(tok)]
		}
		if salient {
			seen[tok] = true
			out = append(out, tok)
		}
	}
	return out
}

// abortCause returns the error that should abandon the current archive:
// parent cancellation or an unreachable capability.
func abortCause(ctx context.Context, err error, c domain.Capability, registry *CapabilityRegistry) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if err != nil && errors.Is(err, domain.ErrCapabilityUnavailable) {
		registry.MarkUnavailable(c, err)
		return err
	}
	return nil
}

// isTimeout reports whether a call failed because its own deadline expired
// while the parent context was still live.
func isTimeout(parent, call context.Context, err error) bool {
	if parent.Err() != nil {
		return false
	}
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(call.Err(), context.DeadlineExceeded)
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

func stripSpace(s string) string {
	return strings.Join(strings.Fields(s), "")
}

func copyMeta(meta map[string]any) map[string]any {
	if meta == nil {
		return nil
	}
	out := make(map[string]any, len(meta))
	for k, v := range meta {
		out[k] = v
	}
	return out
}

func splitReasoning(n int, fallbacks []domain.FallbackReason) string {
	if len(fallbacks) == 0 {
		return fmt.Sprintf("Semantic split into %d chunk(s).", n)
	}
	counts := make(map[domain.FallbackReason]int)
	var order []domain.FallbackReason
	for _, f := range fallbacks {
		if counts[f] == 0 {
			order = append(order, f)
		}
		counts[f]++
	}
	parts := make([]string, len(order))
	for i, f := range order {
		parts[i] = fmt.Sprintf("%s x%d", f, counts[f])
	}
	return fmt.Sprintf("Split into %d chunk(s) with fallbacks: %s.", n, strings.Join(parts, ", "))
}
