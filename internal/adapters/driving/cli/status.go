package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/memex/internal/core/domain"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show model provider health and review backlog",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, _ []string) error {
	if capabilityService == nil {
		return errors.New("capability service not configured")
	}

	cmd.Println("[Capabilities]")
	for _, st := range capabilityService.Refresh(cmd.Context()) {
		switch {
		case !st.Configured:
			cmd.Printf("  %-10s not configured\n", st.Capability)
		case st.Healthy:
			cmd.Printf("  %-10s ok (%s)\n", st.Capability, st.Model)
		default:
			cmd.Printf("  %-10s unavailable (%s): %s\n", st.Capability, st.Model, st.LastError)
		}
	}
	cmd.Println()

	if archiveService != nil {
		cmd.Println("[Archives]")
		for _, s := range []domain.ArchiveStatus{
			domain.ArchiveStatusComplete, domain.ArchiveStatusPending, domain.ArchiveStatusFailed,
		} {
			archives, err := archiveService.List(cmd.Context(), domain.ArchiveFilter{Status: s})
			if err != nil {
				return fmt.Errorf("listing archives: %w", err)
			}
			cmd.Printf("  %-9s %d\n", s, len(archives))
		}
		cmd.Println()
	}

	if proposalService != nil {
		pending, err := proposalService.List(cmd.Context(), domain.ProposalFilter{Status: domain.ProposalStatusPending})
		if err != nil {
			return fmt.Errorf("listing proposals: %w", err)
		}
		cmd.Println("[Review]")
		cmd.Printf("  pending proposals: %d\n", len(pending))
	}

	if scheduler != nil {
		cmd.Println()
		cmd.Println("[Scheduler]")
		for _, id := range []string{domain.TaskIDRefinementSweep, domain.TaskIDCapabilityHealth} {
			history, err := scheduler.History(cmd.Context(), id, 1)
			if err != nil {
				return fmt.Errorf("reading %s history: %w", id, err)
			}
			cmd.Printf("  %-18s %s\n", id, describeLastRun(history))
		}
	}
	return nil
}

// describeLastRun summarises the newest entry of a task history.
func describeLastRun(history []domain.TaskResult) string {
	if len(history) == 0 {
		return "never run"
	}
	r := history[0]
	when := r.StartedAt.Local().Format("2006-01-02 15:04")
	switch {
	case !r.Success:
		return fmt.Sprintf("failed %s: %s", when, r.Error)
	case r.Deferred:
		return fmt.Sprintf("ok %s (%d, some archives deferred)", when, r.Count)
	default:
		return fmt.Sprintf("ok %s (%d)", when, r.Count)
	}
}
