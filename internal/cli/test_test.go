package cli

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/metashare/internal/harness"
)

const passingScenario = `
name: hello
description: "One post"
blocks:
  - txs:
      - name: post
        from: alice
        outputs:
          - memo: post
            fields: [{text: hello}]
assertions:
  - type: item
    item: post
    id: "{tx:post}"
    expect:
      msg: hello
      user: "{addr:alice}"
`

func scenarioDir(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	return dir
}

func TestTest_Pass(t *testing.T) {
	dir := scenarioDir(t, map[string]string{"hello.yaml": passingScenario})

	out, err := execute(t, NewTestCommand(textOpts()), dir)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ hello")
	assert.Contains(t, out, "1 passed, 0 failed, 1 total")
}

func TestTest_Failure(t *testing.T) {
	failing := strings.Replace(passingScenario, "msg: hello", "msg: goodbye", 1)
	dir := scenarioDir(t, map[string]string{
		"a.yaml": passingScenario,
		"b.yaml": failing,
	})

	out, err := execute(t, NewTestCommand(jsonOpts()), dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var res harness.SuiteResult
	jsonData(t, out, &res)
	assert.Equal(t, 2, res.Total)
	assert.Equal(t, 1, res.Failed)
	require.Len(t, res.Scenarios, 2)
	assert.True(t, res.Scenarios[0].Pass)
	assert.False(t, res.Scenarios[1].Pass)
	require.NotEmpty(t, res.Scenarios[1].Errors)
	assert.Contains(t, res.Scenarios[1].Errors[0], `field "msg"`)
}

func TestTest_FailureText(t *testing.T) {
	dir := scenarioDir(t, map[string]string{"broken.yaml": "name: [unclosed"})

	out, err := execute(t, NewTestCommand(textOpts()), dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ broken.yaml")
	assert.Contains(t, out, "failed to parse YAML")
}

func TestTest_Filter(t *testing.T) {
	dir := scenarioDir(t, map[string]string{
		"reply-one.yaml": passingScenario,
		"post-one.yaml":  "name: [unclosed",
	})

	out, err := execute(t, NewTestCommand(textOpts()), dir, "--filter", "reply-*")
	require.NoError(t, err)
	assert.Contains(t, out, "1 passed, 0 failed, 1 total")

	_, err = execute(t, NewTestCommand(textOpts()), dir, "--filter", "[")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestTest_Empty(t *testing.T) {
	out, err := execute(t, NewTestCommand(textOpts()), t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found.")
}

func TestTest_MissingDir(t *testing.T) {
	_, err := execute(t, NewTestCommand(textOpts()), filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "scenarios directory not found")
}
