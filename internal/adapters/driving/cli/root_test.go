package cli

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/memex/internal/logger"
)

// executeCommand runs the root command with args and returns stdout and
// stderr. Flag variables are reset afterwards because cobra keeps them
// between executions.
func executeCommand(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()

	stdout := new(bytes.Buffer)
	stderr := new(bytes.Buffer)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)
	defer func() {
		rootCmd.SetArgs(nil)
		rootCmd.SetIn(nil)
		resetFlags()
	}()

	err := rootCmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func resetFlags() {
	verbose = false
	logLevel = ""
	archiveFilename, archiveDate, archiveCategory, archiveStatus = "", "", "", ""
	archiveTags = nil
	archiveLimit = 50
	archiveJSON = false
	proposalStatus, proposalType, proposalArchive = "PENDING", "", ""
	proposalLimit = 50
	proposalJSON = false
	createType, createArchive, createPayload, createDuplicateOf, createReason = "", "", "", "", ""
	createSimilarity = 0
	refineJSON = false
	queryK, queryRange, queryJSON = 0, "", false
	rerankURL, rerankModel = "", ""
	versionJSON = false
}

func TestRootCmd_RegistersCommands(t *testing.T) {
	want := []string{"archive", "proposal", "refine", "query", "status", "review", "serve", "settings", "mcp", "version"}

	var got []string
	for _, c := range rootCmd.Commands() {
		got = append(got, c.Name())
	}
	for _, name := range want {
		assert.Contains(t, got, name)
	}
}

func TestRootCmd_VerboseFlag(t *testing.T) {
	flag := rootCmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, flag)
	assert.Equal(t, "v", flag.Shorthand)
	assert.Equal(t, "false", flag.DefValue)
}

func TestRootCmd_LogLevel(t *testing.T) {
	defer logger.SetVerbose(false)

	_, _, err := executeCommand(t, "", "--log-level", "info", "version")
	require.NoError(t, err)
	assert.Equal(t, logger.LevelInfo, logger.GetLevel())

	_, _, err = executeCommand(t, "", "-v", "version")
	require.NoError(t, err)
	assert.True(t, logger.IsVerbose())

	_, _, err = executeCommand(t, "", "--log-level", "loud", "version")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown log level "loud"`)
}

func TestSetServices(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()

	assert.Equal(t, ts.archives, archiveService)
	assert.Equal(t, ts.proposals, proposalService)
	assert.Equal(t, ts.refinement, refinementService)
	assert.Equal(t, ts.retrieval, retrievalService)
	assert.Equal(t, ts.capabilities, capabilityService)
	assert.Nil(t, settingsService)
	assert.Nil(t, scheduler)
}

func TestSetVersion(t *testing.T) {
	original := version
	defer func() { version = original }()

	SetVersion("")
	assert.Equal(t, original, version)

	SetVersion("v1.2.3")
	assert.Equal(t, "v1.2.3", version)
}
