package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/memex/internal/adapters/driving/mcp"
)

// Ports tried by --http when no port is given.
const (
	mcpPortRangeStart = 8080
	mcpPortRangeEnd   = 8180
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "MCP server commands",
	Long:  `Commands for the Model Context Protocol (MCP) server integration.`,
}

var mcpServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server",
	Long: `Start the Model Context Protocol server so AI assistants can query memex
and review refinement proposals.

By default the server speaks JSON-RPC over stdio. Use --port to serve
streamable HTTP instead, for example to test with MCP Inspector.

Examples:
  # Stdio mode (default)
  memex mcp serve

  # HTTP mode
  memex mcp serve --port 8080

  # HTTP mode on the first free port from 8080
  memex mcp serve --http

Client configuration:
  {
    "mcpServers": {
      "memex": {
        "command": "/path/to/memex",
        "args": ["mcp", "serve"]
      }
    }
  }`,
	RunE: runMCPServe,
}

func init() {
	mcpServeCmd.Flags().IntP("port", "p", 0, "HTTP port (0 = use stdio)")
	mcpServeCmd.Flags().Bool("http", false, "serve HTTP on a free port when --port is not set")
	mcpCmd.AddCommand(mcpServeCmd)
	rootCmd.AddCommand(mcpCmd)
}

func runMCPServe(cmd *cobra.Command, _ []string) error {
	port, err := cmd.Flags().GetInt("port")
	if err != nil {
		return fmt.Errorf("getting port flag: %w", err)
	}
	useHTTP, err := cmd.Flags().GetBool("http")
	if err != nil {
		return fmt.Errorf("getting http flag: %w", err)
	}

	ports := &mcp.Ports{
		Retrieval:  retrievalService,
		Proposals:  proposalService,
		Refinement: refinementService,
		Archives:   archiveService,
	}

	server, err := mcp.NewServer(ports, mcp.WithVersion(version))
	if err != nil {
		return err
	}

	switch {
	case port > 0:
		addr := fmt.Sprintf(":%d", port)
		fmt.Fprintf(cmd.OutOrStdout(), "MCP server listening on http://localhost%s\n", addr)
		return server.RunHTTP(cmd.Context(), addr)
	case useHTTP:
		ln, err := mcp.ListenInRange(mcpPortRangeStart, mcpPortRangeEnd)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "MCP server listening on http://%s\n", ln.Addr())
		return server.Serve(cmd.Context(), ln)
	default:
		return server.Run(cmd.Context())
	}
}
