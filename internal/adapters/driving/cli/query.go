package cli

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/memex/internal/core/domain"
)

var (
	queryK     int
	queryRange string
	queryJSON  bool
)

var queryCmd = &cobra.Command{
	Use:   "query [text]",
	Short: "Retrieve context blocks for a question",
	Long: `Runs hybrid retrieval over archives and approved chunks. Dense (vector) and
sparse (keyword) candidates are fused, reranked and grouped by their source
archive, so each result block is one archive with its best chunks.

Time ranges:
  last7d, last24h           relative to now
  2024, 2024-03, 2024-03-04 the whole year, month or day
  2024-01-01~2024-02-01     an explicit range`,
	Args: cobra.MinimumNArgs(1),
	RunE: runQuery,
}

func init() {
	queryCmd.Flags().IntVarP(&queryK, "k", "k", 0, "maximum number of blocks (default from settings)")
	queryCmd.Flags().StringVarP(&queryRange, "range", "r", "", "only archives whose semantic date falls in this range")
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "output results as JSON")
	rootCmd.AddCommand(queryCmd)
}

func runQuery(cmd *cobra.Command, args []string) error {
	if retrievalService == nil {
		return errors.New("retrieval service not configured")
	}

	tr, err := domain.ParseTimeRange(queryRange, time.Now())
	if err != nil {
		return err
	}

	result, err := retrievalService.Query(cmd.Context(), domain.RetrievalQuery{
		Text:      strings.Join(args, " "),
		TimeRange: tr,
		K:         queryK,
	})
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}

	if queryJSON {
		return printJSON(cmd, result)
	}
	return outputQueryText(cmd, result)
}

func outputQueryText(cmd *cobra.Command, result *domain.RetrievalResult) error {
	for _, w := range result.Warnings {
		cmd.PrintErrf("warning: %s\n", w)
	}

	if result.Empty() {
		cmd.Println("Nothing relevant found.")
		return nil
	}

	for i, b := range result.Blocks {
		label := b.ArchiveID
		if name, ok := b.Header[domain.MetaFilename].(string); ok && name != "" {
			label = name
		}
		cmd.Printf("[%d] %s (%.3f)", i+1, label, b.Score)
		if b.Coarse {
			cmd.Print(" whole archive")
		}
		cmd.Println()
		if date, ok := b.Header[domain.MetaSemanticDate].(string); ok && date != "" {
			cmd.Printf("    date: %s\n", date)
		}
		for _, c := range b.Chunks {
			if c.ChunkIndex >= 0 {
				cmd.Printf("    #%d  %s\n", c.ChunkIndex, preview(c.Content, 160))
			} else {
				cmd.Printf("    %s\n", preview(c.Content, 160))
			}
		}
		cmd.Println()
	}
	return nil
}
