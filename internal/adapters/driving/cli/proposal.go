package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/memex/internal/core/domain"
)

var (
	proposalStatus  string
	proposalType    string
	proposalArchive string
	proposalLimit   int
	proposalJSON    bool

	createType        string
	createArchive     string
	createPayload     string
	createDuplicateOf string
	createSimilarity  float64
	createReason      string
)

var proposalCmd = &cobra.Command{
	Use:     "proposal",
	Aliases: []string{"proposals"},
	Short:   "Review refinement proposals",
	Long: `Refinement writes proposals instead of editing the index. Approving a split
or enrich proposal replaces the archive's searchable chunks with the proposed
ones in a single step. Rejecting leaves the index untouched.`,
}

var proposalListCmd = &cobra.Command{
	Use:   "list",
	Short: "List proposals (pending by default)",
	RunE:  runProposalList,
}

var proposalShowCmd = &cobra.Command{
	Use:   "show [id]",
	Short: "Show a proposal and the chunks it would write",
	Args:  cobra.ExactArgs(1),
	RunE:  runProposalShow,
}

var proposalCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Queue a proposal for review",
	Long: `Queue a dedup or enrich proposal for an archive. Split proposals normally
come from refinement but can be queued the same way.

A dedup proposal only needs the archive it duplicates:

  memex proposal create --type dedup --archive <id> --duplicate-of <id>

Enrich and split proposals read their payload from a JSON file, or from stdin
when the file is "-":

  {"suggested_nodes": [{"chunk_index": 0, "content": "...", "original": "..."}]}`,
	RunE: runProposalCreate,
}

var proposalApproveCmd = &cobra.Command{
	Use:   "approve [id...]",
	Short: "Approve one or more proposals",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return resolveProposals(cmd, args, true)
	},
}

var proposalRejectCmd = &cobra.Command{
	Use:   "reject [id...]",
	Short: "Reject one or more proposals",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return resolveProposals(cmd, args, false)
	},
}

func init() {
	proposalListCmd.Flags().StringVar(&proposalStatus, "status", "PENDING", "PENDING, APPROVED or REJECTED")
	proposalListCmd.Flags().StringVar(&proposalType, "type", "", "only split, enrich or dedup proposals")
	proposalListCmd.Flags().StringVar(&proposalArchive, "archive", "", "only proposals for this archive")
	proposalListCmd.Flags().IntVarP(&proposalLimit, "limit", "n", 50, "maximum number of proposals")
	proposalListCmd.Flags().BoolVar(&proposalJSON, "json", false, "output as JSON")
	proposalShowCmd.Flags().BoolVar(&proposalJSON, "json", false, "output as JSON")

	proposalCreateCmd.Flags().StringVar(&createType, "type", "", "dedup, enrich or split")
	proposalCreateCmd.Flags().StringVar(&createArchive, "archive", "", "archive the proposal targets")
	proposalCreateCmd.Flags().StringVar(&createPayload, "payload", "", `JSON payload file, or "-" for stdin`)
	proposalCreateCmd.Flags().StringVar(&createDuplicateOf, "duplicate-of", "", "archive this one duplicates (dedup)")
	proposalCreateCmd.Flags().Float64Var(&createSimilarity, "similarity", 0, "similarity to the duplicated archive (dedup)")
	proposalCreateCmd.Flags().StringVar(&createReason, "reason", "", "why the proposal is being made")
	proposalCreateCmd.Flags().BoolVar(&proposalJSON, "json", false, "output as JSON")

	proposalCmd.AddCommand(proposalListCmd, proposalShowCmd, proposalCreateCmd, proposalApproveCmd, proposalRejectCmd)
	rootCmd.AddCommand(proposalCmd)
}

func runProposalList(cmd *cobra.Command, _ []string) error {
	if proposalService == nil {
		return errors.New("proposal service not configured")
	}

	filter := domain.ProposalFilter{
		Status:    domain.ProposalStatus(strings.ToUpper(proposalStatus)),
		Type:      domain.ProposalType(strings.ToLower(proposalType)),
		ArchiveID: proposalArchive,
		Limit:     proposalLimit,
	}
	if filter.Status != "" && !filter.Status.IsValid() {
		return fmt.Errorf("unknown status %q", proposalStatus)
	}
	if filter.Type != "" && !filter.Type.IsValid() {
		return fmt.Errorf("unknown proposal type %q", proposalType)
	}

	proposals, err := proposalService.List(cmd.Context(), filter)
	if err != nil {
		return fmt.Errorf("listing proposals: %w", err)
	}

	if proposalJSON {
		out := make([]proposalJSONView, len(proposals))
		for i, p := range proposals {
			out[i] = proposalView(p)
		}
		return printJSON(cmd, out)
	}

	if len(proposals) == 0 {
		cmd.Println("No proposals found.")
		return nil
	}
	for _, p := range proposals {
		cmd.Printf("  %s  %-6s  %-8s  archive %s  %d chunks\n",
			p.ID, p.Type, p.Status, p.TargetArchiveID, len(proposalChunks(p.Payload)))
		if p.Reasoning != "" {
			cmd.Printf("      %s\n", preview(p.Reasoning, 100))
		}
	}
	return nil
}

func runProposalShow(cmd *cobra.Command, args []string) error {
	if proposalService == nil {
		return errors.New("proposal service not configured")
	}

	p, err := proposalService.Get(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("getting proposal: %w", err)
	}

	if proposalJSON {
		return printJSON(cmd, proposalView(p))
	}

	cmd.Printf("ID:        %s\n", p.ID)
	cmd.Printf("Type:      %s\n", p.Type)
	cmd.Printf("Status:    %s\n", p.Status)
	cmd.Printf("Archive:   %s\n", p.TargetArchiveID)
	cmd.Printf("Created:   %s\n", p.CreatedAt.Format("2006-01-02 15:04"))
	if p.ResolvedAt != nil {
		cmd.Printf("Resolved:  %s\n", p.ResolvedAt.Format("2006-01-02 15:04"))
	}
	if p.Reasoning != "" {
		cmd.Printf("Reasoning: %s\n", p.Reasoning)
	}
	cmd.Println()

	if dedup, ok := p.Payload.(domain.DedupPayload); ok {
		cmd.Printf("Duplicate of %s (similarity %.2f)\n", dedup.DuplicateOf, dedup.Similarity)
		return nil
	}
	for _, c := range proposalChunks(p.Payload) {
		cmd.Printf("[%d]", c.ChunkIndex)
		if len(c.Meta) > 0 {
			cmd.Printf(" %s", formatMeta(c.Meta))
		}
		if len(c.Fallbacks) > 0 {
			reasons := make([]string, len(c.Fallbacks))
			for i, r := range c.Fallbacks {
				reasons[i] = string(r)
			}
			cmd.Printf(" (fallback: %s)", strings.Join(reasons, ", "))
		}
		cmd.Println()
		cmd.Println(c.Content)
		cmd.Println()
	}
	return nil
}

func runProposalCreate(cmd *cobra.Command, _ []string) error {
	if proposalService == nil {
		return errors.New("proposal service not configured")
	}

	if createArchive == "" {
		return errors.New("--archive is required")
	}
	kind := domain.ProposalType(strings.ToLower(createType))
	if !kind.IsValid() {
		return fmt.Errorf("unknown proposal type %q", createType)
	}

	payload, err := readCreatePayload(cmd, kind)
	if err != nil {
		return err
	}
	payload, err = domain.BindPayload(payload, createArchive)
	if err != nil {
		return err
	}

	p := &domain.Proposal{
		Type:            kind,
		TargetArchiveID: createArchive,
		Payload:         payload,
		Reasoning:       createReason,
	}
	if err := proposalService.Create(cmd.Context(), p); err != nil {
		return fmt.Errorf("creating proposal: %w", err)
	}

	if proposalJSON {
		return printJSON(cmd, proposalView(p))
	}
	cmd.Printf("Created %s proposal %s for archive %s\n", p.Type, p.ID, p.TargetArchiveID)
	return nil
}

// readCreatePayload builds a dedup payload from flags, or reads any payload
// from --payload.
func readCreatePayload(cmd *cobra.Command, kind domain.ProposalType) (domain.Payload, error) {
	if createPayload == "" {
		if kind != domain.ProposalTypeDedup {
			return nil, fmt.Errorf("%s proposals need --payload", kind)
		}
		return domain.DedupPayload{DuplicateOf: createDuplicateOf, Similarity: createSimilarity}, nil
	}
	if createDuplicateOf != "" {
		return nil, errors.New("--duplicate-of and --payload cannot be combined")
	}

	var (
		data []byte
		err  error
	)
	if createPayload == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(createPayload)
	}
	if err != nil {
		return nil, fmt.Errorf("reading payload: %w", err)
	}
	return domain.DecodePayload(kind, data)
}

// resolveProposals applies the decision to every id and reports each
// outcome. It fails if any of them failed.
func resolveProposals(cmd *cobra.Command, ids []string, approve bool) error {
	if proposalService == nil {
		return errors.New("proposal service not configured")
	}

	verb := "Rejected"
	if approve {
		verb = "Approved"
	}

	var failed int
	for _, id := range ids {
		var err error
		if approve {
			_, err = proposalService.Approve(cmd.Context(), id)
		} else {
			_, err = proposalService.Reject(cmd.Context(), id)
		}
		if err != nil {
			failed++
			cmd.PrintErrf("%s: %v\n", id, err)
			continue
		}
		cmd.Printf("%s %s\n", verb, id)
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d proposals could not be resolved", failed, len(ids))
	}
	return nil
}

type proposalJSONView struct {
	ID              string         `json:"id"`
	Type            string         `json:"type"`
	TargetArchiveID string         `json:"target_archive_id"`
	Status          string         `json:"status"`
	Reasoning       string         `json:"reasoning,omitempty"`
	Payload         domain.Payload `json:"payload"`
	CreatedAt       string         `json:"created_at"`
	ResolvedAt      string         `json:"resolved_at,omitempty"`
}

func proposalView(p *domain.Proposal) proposalJSONView {
	v := proposalJSONView{
		ID:              p.ID,
		Type:            string(p.Type),
		TargetArchiveID: p.TargetArchiveID,
		Status:          string(p.Status),
		Reasoning:       p.Reasoning,
		Payload:         p.Payload,
		CreatedAt:       p.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
	if p.ResolvedAt != nil {
		v.ResolvedAt = p.ResolvedAt.Format("2006-01-02T15:04:05Z07:00")
	}
	return v
}

// proposalChunks returns the proposed chunks of split and enrich payloads.
func proposalChunks(p domain.Payload) []domain.ProposedChunk {
	switch v := p.(type) {
	case domain.SplitPayload:
		return v.Chunks
	case domain.EnrichPayload:
		return v.Chunks
	default:
		return nil
	}
}
