package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "metashare", cmd.Use)
	assert.Contains(t, cmd.Long, "ledger")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := [][]string{
		{"net"}, {"net", "add"}, {"net", "list"},
		{"sync"}, {"decode"}, {"get"}, {"mirror"}, {"test"},
	}

	for _, path := range commands {
		t.Run(path[len(path)-1], func(t *testing.T) {
			subCmd, _, err := cmd.Find(path)
			require.NoError(t, err, "command %v should exist", path)
			require.NotNil(t, subCmd)
			assert.Equal(t, path[len(path)-1], subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)

	logFlag := cmd.PersistentFlags().Lookup("log-format")
	require.NotNil(t, logFlag)
	assert.Equal(t, "text", logFlag.DefValue)
}

func TestSyncCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	syncCmd, _, err := cmd.Find([]string{"sync"})
	require.NoError(t, err)

	for _, name := range []string{"db", "chain", "all"} {
		assert.NotNil(t, syncCmd.Flags().Lookup(name), name)
	}
}

func TestMirrorCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	mirrorCmd, _, err := cmd.Find([]string{"mirror"})
	require.NoError(t, err)

	for _, name := range []string{"db", "to", "id"} {
		assert.NotNil(t, mirrorCmd.Flags().Lookup(name), name)
	}
}

func TestGetCommandHelpListsTypes(t *testing.T) {
	cmd := NewRootCommand()
	getCmd, _, err := cmd.Find([]string{"get"})
	require.NoError(t, err)
	for _, typ := range []string{"net", "user", "post", "opin"} {
		assert.Contains(t, getCmd.Long, typ)
	}
}

func TestFormatValidation(t *testing.T) {
	assert.True(t, isValidFormat("text"))
	assert.True(t, isValidFormat("json"))

	assert.False(t, isValidFormat("xml"))
	assert.False(t, isValidFormat(""))
	assert.False(t, isValidFormat("TEXT"))
}

func TestFormatValidationIntegration(t *testing.T) {
	cmd := NewRootCommand()
	_, err := execute(t, cmd, "--format", "invalid", "decode", "00")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")

	cmd = NewRootCommand()
	_, err = execute(t, cmd, "--log-format", "xml", "decode", "00")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid log format")
}
