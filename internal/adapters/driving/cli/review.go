package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime/debug"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/custodia-labs/memex/internal/adapters/driving/tui"
)

// isTerminal reports whether stdout is an interactive terminal.
var isTerminal = func() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

var reviewCmd = &cobra.Command{
	Use:     "review",
	Aliases: []string{"tui"},
	Short:   "Review pending proposals in an interactive terminal UI",
	Long: `Launch the interactive proposal review screen.

Controls:
  ↑/k, ↓/j - Move between proposals
  Enter    - Preview the proposed chunks
  a        - Approve
  x        - Reject
  r        - Reload
  Esc      - Back
  ?        - Help
  q        - Quit`,
	RunE: runReview,
}

func init() {
	rootCmd.AddCommand(reviewCmd)
}

func runReview(cmd *cobra.Command, _ []string) error {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "Panic in TUI: %v\n", r)
			fmt.Fprintf(os.Stderr, "Stack trace:\n%s\n", debug.Stack())
		}
	}()

	if !isTerminal() {
		return fmt.Errorf("review needs an interactive terminal; use 'memex proposal list' instead")
	}

	app, err := tui.NewApp(tui.NewPorts(proposalService, archiveService))
	if err != nil {
		return fmt.Errorf("failed to create TUI: %w", err)
	}

	// The review screen is long-running, so background refinement keeps going.
	stop := startScheduler(cmd.Context())
	defer stop()

	app.WithContext(cmd.Context())
	if err := app.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	if n := app.Reviewed(); n > 0 {
		cmd.Printf("Reviewed %d proposals.\n", n)
	}
	return nil
}

// startScheduler runs the scheduler in the background when it is enabled.
// The returned func stops it and waits for Start to return.
func startScheduler(ctx context.Context) func() {
	if scheduler == nil || !schedulerConfig.Enabled {
		return func() {}
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := scheduler.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			fmt.Fprintf(os.Stderr, "scheduler stopped: %v\n", err)
		}
	}()

	return func() {
		cancel()
		if err := scheduler.Stop(); err != nil {
			fmt.Fprintf(os.Stderr, "scheduler stop error: %v\n", err)
		}
		<-done
	}
}
