package cli

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/custodia-labs/memex/internal/core/domain"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Manage application settings",
	Long: `View and configure model providers, refinement and retrieval options.

Values come from ~/.memex/config.toml. MEMEX_* environment variables (or a .env
file) override them without being written back.`,
	RunE: runSettingsShow,
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current settings",
	RunE:  runSettingsShow,
}

var settingsEmbeddingCmd = &cobra.Command{
	Use:   "embedding",
	Short: "Configure embedding provider",
	Long:  `Configure the embedding provider used for coarse archive vectors and chunk vectors.`,
	RunE:  runSettingsEmbedding,
}

var settingsLLMCmd = &cobra.Command{
	Use:   "llm",
	Short: "Configure LLM provider",
	Long:  `Configure the LLM that proposes semantic splits and chunk context during refinement.`,
	RunE:  runSettingsLLM,
}

var settingsRerankCmd = &cobra.Command{
	Use:   "rerank [lexical|http|off]",
	Short: "Configure the reranker",
	Long: `Choose how retrieval candidates are reranked.

  lexical  term overlap scoring, no model needed (default)
  http     a cross-encoder behind an HTTP /rerank endpoint (needs --url)
  off      reciprocal rank fusion only`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"lexical", "http", "off"},
	RunE:      runSettingsRerank,
}

var (
	rerankURL   string
	rerankModel string
)

func init() {
	settingsRerankCmd.Flags().StringVar(&rerankURL, "url", "", "base URL of the rerank service")
	settingsRerankCmd.Flags().StringVar(&rerankModel, "model", "", "model name sent to the rerank service")

	settingsCmd.AddCommand(settingsShowCmd, settingsEmbeddingCmd, settingsLLMCmd, settingsRerankCmd)
	rootCmd.AddCommand(settingsCmd)
}

func runSettingsShow(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	settings, err := settingsService.Get()
	if err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	}

	cmd.Println("Current Settings")
	cmd.Println("================")
	cmd.Println()

	cmd.Println("[Embedding]")
	printProvider(cmd, settings.Embedding.Provider, settings.Embedding.Model,
		settings.Embedding.BaseURL, settings.Embedding.APIKey, settings.Embedding.IsConfigured())
	cmd.Println()

	cmd.Println("[LLM]")
	printProvider(cmd, settings.LLM.Provider, settings.LLM.Model,
		settings.LLM.BaseURL, settings.LLM.APIKey, settings.LLM.IsConfigured())
	if settings.LLM.RequestsPerSecond > 0 {
		cmd.Printf("  Rate limit: %.2f/s (burst %d)\n", settings.LLM.RequestsPerSecond, settings.LLM.Burst)
	}
	cmd.Println()

	cmd.Println("[Rerank]")
	if settings.Rerank.IsConfigured() {
		cmd.Printf("  Provider: %s\n", settings.Rerank.Provider)
		if settings.Rerank.BaseURL != "" {
			cmd.Printf("  Base URL: %s\n", settings.Rerank.BaseURL)
		}
	} else {
		cmd.Println("  Provider: off (fusion only)")
	}
	cmd.Println()

	r := settings.Refinement
	cmd.Println("[Refinement]")
	cmd.Printf("  Window: %d chars, %d overlap\n", r.WindowSize, r.WindowOverlap)
	cmd.Printf("  Workers: %d, batch limit: %d\n", r.Workers, r.BatchLimit)
	cmd.Printf("  Timeouts: split %s, enrich %s\n", r.SplitTimeout, r.EnrichTimeout)
	cmd.Printf("  Auto-approve: %s\n", yesNo(r.AutoApprove))
	cmd.Println()

	q := settings.Retrieval
	cmd.Println("[Retrieval]")
	cmd.Printf("  Candidates: %d dense, %d sparse\n", q.DenseCandidates, q.SparseCandidates)
	cmd.Printf("  Default k: %d, per-archive cap: %d\n", q.DefaultK, q.PerParentCap)
	if q.MinRerankScore != 0 {
		cmd.Printf("  Min rerank score: %.3f\n", q.MinRerankScore)
	}
	cmd.Println()

	sc := settingsService.SchedulerConfig()
	cmd.Println("[Scheduler]")
	cmd.Printf("  Enabled: %s\n", yesNo(sc.Enabled))
	for _, id := range []string{domain.TaskIDRefinementSweep, domain.TaskIDCapabilityHealth} {
		tc := sc.Task(id)
		if tc.Enabled {
			cmd.Printf("  %s: every %s\n", id, tc.Interval)
		} else {
			cmd.Printf("  %s: off\n", id)
		}
	}
	cmd.Println()

	cmd.Println("[Notifications]")
	if settings.Notifications.Enabled && settings.Notifications.WebhookURL != "" {
		cmd.Printf("  Webhook: %s\n", settings.Notifications.WebhookURL)
		if len(settings.Notifications.Events) > 0 {
			cmd.Printf("  Events: %s\n", strings.Join(settings.Notifications.Events, ", "))
		}
	} else {
		cmd.Println("  Webhook: off")
	}
	return nil
}

func printProvider(cmd *cobra.Command, p domain.AIProvider, model, baseURL, apiKey string, configured bool) {
	if p == "" {
		cmd.Println("  Provider: (not set)")
		return
	}
	cmd.Printf("  Provider: %s\n", p.Description())
	cmd.Printf("  Model: %s\n", model)
	if baseURL != "" {
		cmd.Printf("  Base URL: %s\n", baseURL)
	}
	if p.RequiresAPIKey() {
		if apiKey != "" {
			cmd.Printf("  API Key: %s\n", maskAPIKey(apiKey))
		} else {
			cmd.Println("  API Key: (not set)")
		}
	}
	status := "configured"
	if !configured {
		status = "not configured"
	}
	cmd.Printf("  Status: %s\n", status)
}

func runSettingsEmbedding(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	reader := bufio.NewReader(cmd.InOrStdin())
	provider, model, apiKey, err := promptProvider(cmd, reader, "Embedding",
		domain.AllEmbeddingProviders(), domain.DefaultEmbeddingModels())
	if err != nil {
		return err
	}

	if err := settingsService.SetEmbeddingProvider(provider, model, apiKey); err != nil {
		return fmt.Errorf("failed to configure embedding provider: %w", err)
	}

	cmd.Print("Validating configuration... ")
	if err := settingsService.Validate(cmd.Context(), domain.CapabilityEmbedding); err != nil {
		cmd.Printf("FAILED: %v\n", err)
		return fmt.Errorf("embedding configuration validation failed: %w", err)
	}
	cmd.Println("OK")

	cmd.Printf("Embedding provider configured: %s (%s)\n", provider.Description(), model)
	if dims, ok := domain.EmbeddingDimensions()[model]; ok {
		cmd.Printf("Vectors will have %d dimensions.\n", dims)
	}
	return nil
}

func runSettingsLLM(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	reader := bufio.NewReader(cmd.InOrStdin())
	provider, model, apiKey, err := promptProvider(cmd, reader, "LLM",
		domain.AllLLMProviders(), domain.DefaultLLMModels())
	if err != nil {
		return err
	}

	if err := settingsService.SetLLMProvider(provider, model, apiKey); err != nil {
		return fmt.Errorf("failed to configure LLM provider: %w", err)
	}

	cmd.Print("Validating configuration... ")
	if err := settingsService.Validate(cmd.Context(), domain.CapabilityLLM); err != nil {
		cmd.Printf("FAILED: %v\n", err)
		return fmt.Errorf("LLM configuration validation failed: %w", err)
	}
	cmd.Println("OK")

	cmd.Printf("LLM provider configured: %s (%s)\n", provider.Description(), model)
	return nil
}

func runSettingsRerank(cmd *cobra.Command, args []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	var provider domain.RerankProvider
	model, baseURL := rerankModel, rerankURL
	switch args[0] {
	case "off":
		model, baseURL = "", ""
	case string(domain.RerankProviderLexical):
		provider = domain.RerankProviderLexical
	case string(domain.RerankProviderHTTP):
		if rerankURL == "" {
			return errors.New("--url is required for the http reranker")
		}
		provider = domain.RerankProviderHTTP
	default:
		return fmt.Errorf("unknown reranker %q", args[0])
	}

	if err := settingsService.SetRerankProvider(provider, model, baseURL); err != nil {
		return fmt.Errorf("failed to configure reranker: %w", err)
	}
	if provider == domain.RerankProviderHTTP {
		cmd.Print("Validating configuration... ")
		if err := settingsService.Validate(cmd.Context(), domain.CapabilityRerank); err != nil {
			cmd.Printf("FAILED: %v\n", err)
			return fmt.Errorf("rerank configuration validation failed: %w", err)
		}
		cmd.Println("OK")
	}
	cmd.Printf("Reranker set to %s\n", args[0])
	return nil
}

// promptProvider asks for a provider, model and API key.
func promptProvider(
	cmd *cobra.Command,
	reader *bufio.Reader,
	kind string,
	providers []domain.AIProvider,
	defaults map[domain.AIProvider]string,
) (domain.AIProvider, string, string, error) {
	cmd.Printf("Select %s Provider\n", kind)
	for i, p := range providers {
		cmd.Printf("  %d. %s\n", i+1, p.Description())
	}
	cmd.Print("\nEnter choice [1]: ")
	idx := parseChoice(readLine(reader), len(providers), 1)
	provider := providers[idx-1]

	defaultModel := defaults[provider]
	cmd.Printf("Enter model name [%s]: ", defaultModel)
	model := readLine(reader)
	if model == "" {
		model = defaultModel
	}

	var apiKey string
	if provider.RequiresAPIKey() {
		cmd.Print("Enter API key: ")
		apiKey = readPassword(cmd, reader)
		cmd.Println()
		if apiKey == "" {
			return "", "", "", errors.New("API key is required for this provider")
		}
	}
	return provider, model, apiKey, nil
}

//nolint:errcheck // CLI helper, error ignored for UX
func readLine(reader *bufio.Reader) string {
	input, _ := reader.ReadString('\n')
	return strings.TrimSpace(input)
}

func parseChoice(input string, maxVal, defaultVal int) int {
	if input == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(input)
	if err != nil || val < 1 || val > maxVal {
		return defaultVal
	}
	return val
}

// readPassword reads without echo when input is the terminal and falls
// back to reader otherwise.
func readPassword(cmd *cobra.Command, reader *bufio.Reader) string {
	if cmd.InOrStdin() == os.Stdin && term.IsTerminal(int(os.Stdin.Fd())) {
		password, err := term.ReadPassword(int(os.Stdin.Fd()))
		if err == nil {
			return string(password)
		}
	}
	return readLine(reader)
}

func maskAPIKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}
