// Package cli provides the memex command line interface.
// It is a driving adapter: every command talks to the core through driving ports.
package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/memex/internal/core/domain"
	"github.com/custodia-labs/memex/internal/core/ports/driving"
	"github.com/custodia-labs/memex/internal/logger"
)

// version is set at build time with -ldflags "-X ...cli.version=v1.2.3".
var version = "dev"

var (
	verbose  bool
	logLevel string
)

// Services injected by main. Commands nil-check the ones they need.
var (
	archiveService    driving.ArchiveService
	proposalService   driving.ProposalService
	refinementService driving.RefinementService
	retrievalService  driving.RetrievalService
	capabilityService driving.CapabilityService
	settingsService   driving.SettingsService
	scheduler         driving.Scheduler
	schedulerConfig   domain.SchedulerConfig
	promptWatcher     PromptWatcher
)

// PromptWatcher reloads prompt templates when they change on disk.
type PromptWatcher interface {
	Watch(ctx context.Context, onChange func(name string)) error
}

// Services holds everything the commands can use.
type Services struct {
	Archives        driving.ArchiveService
	Proposals       driving.ProposalService
	Refinement      driving.RefinementService
	Retrieval       driving.RetrievalService
	Capabilities    driving.CapabilityService
	Settings        driving.SettingsService
	Scheduler       driving.Scheduler
	SchedulerConfig domain.SchedulerConfig
	Prompts         PromptWatcher
}

var rootCmd = &cobra.Command{
	Use:   "memex",
	Short: "Personal memory with a reviewable refinement loop",
	Long: `memex keeps every archive you give it and makes it searchable at two levels:
the whole archive, and the smaller chunks a refinement pass proposes.

Refinement never edits the index on its own. It writes proposals that you
approve or reject with 'memex proposal', 'memex review' or an MCP client.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(*cobra.Command, []string) error {
		return configureLogging()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "debug, info, warn or error (overrides --verbose)")
}

// configureLogging applies --verbose and --log-level.
func configureLogging() error {
	logger.SetVerbose(verbose)
	if logLevel == "" {
		return nil
	}
	level, err := logger.ParseLevel(logLevel)
	if err != nil {
		return err
	}
	logger.SetLevel(level)
	return nil
}

// SetServices injects the core services used by commands.
func SetServices(s Services) {
	archiveService = s.Archives
	proposalService = s.Proposals
	refinementService = s.Refinement
	retrievalService = s.Retrieval
	capabilityService = s.Capabilities
	settingsService = s.Settings
	scheduler = s.Scheduler
	schedulerConfig = s.SchedulerConfig
	promptWatcher = s.Prompts
}

// SetVersion overrides the reported version.
func SetVersion(v string) {
	if v != "" {
		version = v
	}
}

// Execute runs the root command. Errors are returned for the caller to print.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}
