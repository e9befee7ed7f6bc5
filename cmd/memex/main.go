// Command memex is a personal memory with a reviewable refinement loop.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"

	"github.com/custodia-labs/memex/internal/adapters/driven/ai"
	"github.com/custodia-labs/memex/internal/adapters/driven/config/file"
	"github.com/custodia-labs/memex/internal/adapters/driven/notify/webhook"
	"github.com/custodia-labs/memex/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/memex/internal/adapters/driving/cli"
	"github.com/custodia-labs/memex/internal/core/services"
	"github.com/custodia-labs/memex/internal/logger"
)

// version is set at build time with -ldflags "-X main.version=v1.2.3".
var version = ""

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func run() error {
	home, err := homeDir()
	if err != nil {
		return err
	}

	// Existing environment wins over .env files.
	_ = godotenv.Load()
	_ = godotenv.Load(filepath.Join(home, ".env"))

	configStore, err := file.NewConfigStore(home)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	promptStore, err := file.NewPromptStore(filepath.Join(home, "prompts"))
	if err != nil {
		return fmt.Errorf("loading prompts: %w", err)
	}

	settingsService := services.NewSettingsService(configStore, ai.NewConfigValidator())
	settings, err := settingsService.Get()
	if err != nil {
		return fmt.Errorf("reading settings: %w", err)
	}

	capabilities := ai.Initialise(settings, promptStore)
	defer capabilities.Close()

	store, err := sqlite.NewStore(filepath.Join(home, "data"))
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer func() {
		if cerr := store.Close(); cerr != nil {
			logger.Warn("closing store: %v", cerr)
		}
	}()

	registry := services.NewCapabilityRegistry(
		capabilities.EmbeddingService,
		capabilities.LLMService,
		capabilities.Reranker,
	)

	archiveService := services.NewArchiveService(
		store.ArchiveStore(), store.NodeStore(), capabilities.EmbeddingService, registry,
	)
	approvalService := services.NewApprovalService(
		store.ProposalStore(), store.ArchiveStore(), capabilities.EmbeddingService, registry,
	)

	opts := []services.GardenerOption{
		services.WithRegistry(registry),
		services.WithEnricher(capabilities.Enricher),
	}
	if capabilities.Splitter != nil {
		opts = append(opts, services.WithSplitter(capabilities.Splitter))
	}
	// A nil *Notifier must not become a non-nil interface.
	if notifier := webhook.New(settings.Notifications); notifier != nil {
		opts = append(opts, services.WithNotifier(notifier))
	}
	if settings.Refinement.AutoApprove {
		opts = append(opts, services.WithAutoApprover(approvalService))
	}
	gardener := services.NewGardener(store.ArchiveStore(), store.ProposalStore(), settings.Refinement, opts...)

	retrievalService := services.NewRetrievalService(
		store.NodeStore(),
		store.ArchiveStore(),
		store.KeywordIndex(),
		store.VectorIndex(),
		capabilities.EmbeddingService,
		capabilities.Reranker,
		registry,
		settings.Retrieval,
	)

	schedulerConfig := settingsService.SchedulerConfig()
	scheduler := services.NewScheduler(schedulerConfig, store.SchedulerStore(), gardener, registry)

	cli.SetVersion(version)
	cli.SetServices(cli.Services{
		Archives:        archiveService,
		Proposals:       approvalService,
		Refinement:      gardener,
		Retrieval:       retrievalService,
		Capabilities:    registry,
		Settings:        settingsService,
		Scheduler:       scheduler,
		SchedulerConfig: schedulerConfig,
		Prompts:         promptStore,
	})

	return cli.Execute(context.Background())
}

// homeDir returns MEMEX_HOME, or ~/.memex when it is unset.
func homeDir() (string, error) {
	if dir := os.Getenv("MEMEX_HOME"); dir != "" {
		return dir, nil
	}
	userHome, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("finding home directory: %w", err)
	}
	return filepath.Join(userHome, ".memex"), nil
}
