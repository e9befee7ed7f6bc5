package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMCPServeCmd_PortFlag(t *testing.T) {
	flag := mcpServeCmd.Flags().Lookup("port")
	require.NotNil(t, flag)
	assert.Equal(t, "p", flag.Shorthand)
	assert.Equal(t, "0", flag.DefValue)
}

func TestMCPServe_RequiresRetrieval(t *testing.T) {
	_, cleanup := setupTestServices()
	defer cleanup()
	retrievalService = nil

	_, _, err := executeCommand(t, "", "mcp", "serve")

	require.Error(t, err)
}
