package cli

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/memex/internal/core/domain"
)

var refineJSON bool

var refineCmd = &cobra.Command{
	Use:   "refine [archive-id]",
	Short: "Run the refinement engine now",
	Long: `Scans unrefined archives and writes a split proposal for each one that has
no pending proposal yet. With an archive id, only that archive is refined.

The index is not changed until the proposals are approved.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRefine,
}

func init() {
	refineCmd.Flags().BoolVar(&refineJSON, "json", false, "output the sweep report as JSON")
	rootCmd.AddCommand(refineCmd)
}

func runRefine(cmd *cobra.Command, args []string) error {
	if refinementService == nil {
		return errors.New("refinement service not configured")
	}

	if len(args) == 1 {
		p, err := refinementService.RefineArchive(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("refine failed: %w", err)
		}
		if refineJSON {
			return printJSON(cmd, proposalView(p))
		}
		cmd.Printf("Created %s proposal %s with %d chunks.\n", p.Type, p.ID, len(proposalChunks(p.Payload)))
		cmd.Printf("Review it with 'memex proposal show %s'.\n", p.ID)
		return nil
	}

	report, err := refinementService.Sweep(cmd.Context())
	if report != nil {
		if refineJSON {
			if jsonErr := printJSON(cmd, report); jsonErr != nil {
				return jsonErr
			}
		} else {
			printSweepReport(cmd, report)
		}
	}
	if err != nil {
		if errors.Is(err, domain.ErrCapabilityUnavailable) {
			return fmt.Errorf("sweep deferred, a model provider is unavailable: %w", err)
		}
		return fmt.Errorf("refine failed: %w", err)
	}
	return nil
}

func printSweepReport(cmd *cobra.Command, r *domain.SweepReport) {
	cmd.Printf("Scanned %d archives in %s\n", r.Scanned, r.EndedAt.Sub(r.StartedAt).Round(time.Millisecond))
	cmd.Printf("  proposed: %d\n", r.Proposed)
	cmd.Printf("  skipped:  %d\n", r.Skipped)
	cmd.Printf("  deferred: %d\n", r.Deferred)
	cmd.Printf("  failed:   %d\n", r.Failed)
	if len(r.AutoApproved) > 0 {
		cmd.Printf("  auto-approved: %d\n", len(r.AutoApproved))
	}

	if len(r.Fallbacks) > 0 {
		reasons := make([]string, 0, len(r.Fallbacks))
		for reason := range r.Fallbacks {
			reasons = append(reasons, string(reason))
		}
		sort.Strings(reasons)
		cmd.Println("Fallbacks:")
		for _, reason := range reasons {
			cmd.Printf("  %s: %d\n", reason, r.Fallbacks[domain.FallbackReason(reason)])
		}
	}

	if r.Proposed > 0 {
		cmd.Println("Review with 'memex proposal list' or 'memex review'.")
	}
}
