package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/memex/internal/core/domain"
	"github.com/custodia-labs/memex/internal/core/ports/driving"
)

var (
	archiveFilename string
	archiveDate     string
	archiveTags     []string
	archiveCategory string
	archiveStatus   string
	archiveLimit    int
	archiveJSON     bool
)

var archiveCmd = &cobra.Command{
	Use:     "archive",
	Aliases: []string{"archives"},
	Short:   "Manage archives",
	Long: `Archives are the original, immutable records memex indexes. Each one is
searchable as a whole straight away, and at chunk level once a refinement
proposal for it has been approved.`,
}

var archiveAddCmd = &cobra.Command{
	Use:   "add [file]",
	Short: "Ingest a text file as a new archive",
	Long: `Ingest a text file (or stdin when no file or "-" is given) as a new archive.

Examples:
  memex archive add notes/2024-03-standup.md --date 2024-03-04 --tag work
  pbpaste | memex archive add --filename clipboard.txt`,
	Args: cobra.MaximumNArgs(1),
	RunE: runArchiveAdd,
}

var archiveListCmd = &cobra.Command{
	Use:   "list",
	Short: "List archives",
	RunE:  runArchiveList,
}

var archiveGetCmd = &cobra.Command{
	Use:   "get [id]",
	Short: "Show an archive and its full text",
	Args:  cobra.ExactArgs(1),
	RunE:  runArchiveGet,
}

var archiveNodesCmd = &cobra.Command{
	Use:   "nodes [id]",
	Short: "Show the searchable chunks of an archive",
	Args:  cobra.ExactArgs(1),
	RunE:  runArchiveNodes,
}

var archiveDeleteCmd = &cobra.Command{
	Use:   "delete [id]",
	Short: "Delete an archive with its chunks and proposals",
	Args:  cobra.ExactArgs(1),
	RunE:  runArchiveDelete,
}

func init() {
	archiveAddCmd.Flags().StringVar(&archiveFilename, "filename", "", "filename metadata (defaults to the file's base name)")
	archiveAddCmd.Flags().StringVar(&archiveDate, "date", "", "semantic date of the content, e.g. 2024-03-04")
	archiveAddCmd.Flags().StringSliceVar(&archiveTags, "tag", nil, "tag to attach (repeatable)")
	archiveAddCmd.Flags().StringVar(&archiveCategory, "category", "", "category metadata")

	archiveListCmd.Flags().StringVar(&archiveStatus, "status", "", "only PENDING, COMPLETE or FAILED archives")
	archiveListCmd.Flags().IntVarP(&archiveLimit, "limit", "n", 50, "maximum number of archives")

	for _, c := range []*cobra.Command{archiveAddCmd, archiveListCmd, archiveGetCmd, archiveNodesCmd} {
		c.Flags().BoolVar(&archiveJSON, "json", false, "output as JSON")
	}

	archiveCmd.AddCommand(archiveAddCmd, archiveListCmd, archiveGetCmd, archiveNodesCmd, archiveDeleteCmd)
	rootCmd.AddCommand(archiveCmd)
}

func runArchiveAdd(cmd *cobra.Command, args []string) error {
	if archiveService == nil {
		return errors.New("archive service not configured")
	}

	var (
		data []byte
		err  error
		name = archiveFilename
	)
	if len(args) == 0 || args[0] == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(args[0])
		if name == "" {
			name = filepath.Base(args[0])
		}
	}
	if err != nil {
		return fmt.Errorf("reading input: %w", err)
	}

	meta := map[string]any{}
	if name != "" {
		meta[domain.MetaFilename] = name
	}
	if archiveDate != "" {
		meta[domain.MetaSemanticDate] = archiveDate
	}
	if len(archiveTags) > 0 {
		meta[domain.MetaTags] = archiveTags
	}
	if archiveCategory != "" {
		meta[domain.MetaCategory] = archiveCategory
	}

	archive, err := archiveService.Ingest(cmd.Context(), driving.IngestRequest{
		FullText: string(data),
		MetaData: meta,
	})
	if err != nil {
		return fmt.Errorf("ingest failed: %w", err)
	}

	if archiveJSON {
		return printJSON(cmd, archiveView(archive, false))
	}
	cmd.Printf("Archived %s (%s)\n", archive.ID, archive.Status)
	if len(archive.Embedding) == 0 {
		cmd.Println("No coarse embedding yet; keyword search still covers this archive.")
	}
	return nil
}

func runArchiveList(cmd *cobra.Command, _ []string) error {
	if archiveService == nil {
		return errors.New("archive service not configured")
	}

	status := domain.ArchiveStatus(strings.ToUpper(archiveStatus))
	archives, err := archiveService.List(cmd.Context(), domain.ArchiveFilter{Status: status, Limit: archiveLimit})
	if err != nil {
		return fmt.Errorf("listing archives: %w", err)
	}

	if archiveJSON {
		out := make([]archiveJSONView, len(archives))
		for i, a := range archives {
			out[i] = archiveView(a, false)
		}
		return printJSON(cmd, out)
	}

	if len(archives) == 0 {
		cmd.Println("No archives found.")
		return nil
	}
	for _, a := range archives {
		label := a.Filename()
		if label == "" {
			label = preview(a.FullText, 40)
		}
		cmd.Printf("  %s  %-8s  %s  %s\n", a.ID, a.Status, a.SemanticDate().Format("2006-01-02"), label)
	}
	return nil
}

func runArchiveGet(cmd *cobra.Command, args []string) error {
	if archiveService == nil {
		return errors.New("archive service not configured")
	}

	archive, err := archiveService.Get(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("getting archive: %w", err)
	}

	if archiveJSON {
		return printJSON(cmd, archiveView(archive, true))
	}

	cmd.Printf("ID:            %s\n", archive.ID)
	cmd.Printf("Status:        %s\n", archive.Status)
	cmd.Printf("Semantic date: %s\n", archive.SemanticDate().Format("2006-01-02"))
	cmd.Printf("Created:       %s\n", archive.CreatedAt.Format("2006-01-02 15:04"))
	cmd.Printf("Embedding:     %s\n", yesNo(len(archive.Embedding) > 0))
	if header := archive.InheritableMeta(); len(header) > 0 {
		cmd.Printf("Metadata:      %s\n", formatMeta(header))
	}
	cmd.Println()
	cmd.Println(archive.FullText)
	return nil
}

func runArchiveNodes(cmd *cobra.Command, args []string) error {
	if archiveService == nil {
		return errors.New("archive service not configured")
	}

	nodes, err := archiveService.Nodes(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("listing nodes: %w", err)
	}

	if archiveJSON {
		out := make([]nodeJSONView, len(nodes))
		for i, n := range nodes {
			out[i] = nodeJSONView{ID: n.ID, ChunkIndex: n.ChunkIndex, Content: n.Content, Meta: n.Meta}
		}
		return printJSON(cmd, out)
	}

	if len(nodes) == 0 {
		cmd.Println("No chunks yet. Approve a split proposal to make this archive searchable by chunk.")
		return nil
	}
	for _, n := range nodes {
		cmd.Printf("[%d] %s\n", n.ChunkIndex, n.ID)
		if len(n.Meta) > 0 {
			cmd.Printf("    %s\n", formatMeta(n.Meta))
		}
		cmd.Printf("    %s\n\n", preview(n.Content, 200))
	}
	return nil
}

func runArchiveDelete(cmd *cobra.Command, args []string) error {
	if archiveService == nil {
		return errors.New("archive service not configured")
	}

	if err := archiveService.Delete(cmd.Context(), args[0]); err != nil {
		return fmt.Errorf("deleting archive: %w", err)
	}
	cmd.Printf("Deleted archive %s\n", args[0])
	return nil
}

type archiveJSONView struct {
	ID           string         `json:"id"`
	Status       string         `json:"status"`
	MetaData     map[string]any `json:"meta_data,omitempty"`
	SemanticDate string         `json:"semantic_date"`
	HasEmbedding bool           `json:"has_embedding"`
	CreatedAt    string         `json:"created_at"`
	FullText     string         `json:"full_text,omitempty"`
}

type nodeJSONView struct {
	ID         string         `json:"id"`
	ChunkIndex int            `json:"chunk_index"`
	Content    string         `json:"content"`
	Meta       map[string]any `json:"meta,omitempty"`
}

func archiveView(a *domain.Archive, withText bool) archiveJSONView {
	v := archiveJSONView{
		ID:           a.ID,
		Status:       string(a.Status),
		MetaData:     a.MetaData,
		SemanticDate: a.SemanticDate().Format("2006-01-02"),
		HasEmbedding: len(a.Embedding) > 0,
		CreatedAt:    a.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
	if withText {
		v.FullText = a.FullText
	}
	return v
}

func printJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	cmd.Println(string(data))
	return nil
}
