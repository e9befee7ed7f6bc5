package cli

import (
	"errors"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/memex/internal/core/domain"
	"github.com/custodia-labs/memex/internal/logger"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the background refinement scheduler",
	Long: `Runs memex as a daemon. The scheduler sweeps unrefined archives on the
refinement interval (nightly by default) and refreshes model provider health
every few minutes. Prompt templates are reloaded when their files change.

Stop with Ctrl+C or SIGTERM.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	if scheduler == nil {
		return errors.New("scheduler not configured")
	}
	if !schedulerConfig.Enabled {
		return errors.New("scheduler is disabled; set scheduler.enabled = true in config.toml")
	}

	// A daemon log is read later, so it gets timestamps and progress messages.
	logger.SetTimestamps(true)
	if logLevel == "" && !verbose {
		logger.SetLevel(logger.LevelInfo)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if promptWatcher != nil {
		err := promptWatcher.Watch(ctx, func(name string) {
			logger.Info("Reloaded prompt %s", name)
		})
		if err != nil {
			logger.Warn("prompt hot reload disabled: %v", err)
		}
	}

	for _, id := range []string{domain.TaskIDRefinementSweep, domain.TaskIDCapabilityHealth} {
		tc := schedulerConfig.Task(id)
		if tc.Enabled {
			cmd.Printf("%s every %s\n", id, tc.Interval)
		}
	}
	cmd.Println("memex scheduler running. Press Ctrl+C to stop.")

	stopScheduler := startScheduler(ctx)
	<-ctx.Done()
	stopScheduler()

	cmd.Println("Scheduler stopped.")
	return nil
}
