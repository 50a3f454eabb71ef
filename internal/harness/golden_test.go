package harness

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestGolden runs every example scenario against its golden snapshot.
func TestGolden(t *testing.T) {
	files, err := ScenarioFiles("testdata/scenarios")
	require.NoError(t, err)

	for _, path := range files {
		scenario, err := LoadScenario(path)
		require.NoError(t, err)

		t.Run(scenario.Name, func(t *testing.T) {
			result, err := RunWithGolden(t, scenario)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
		})
	}
}

func TestSnapshot_Deterministic(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/poll_vote.yaml")
	require.NoError(t, err)

	snap := func() []byte {
		h, err := New(scenario)
		require.NoError(t, err)
		defer h.Close()

		result, err := h.Run(context.Background())
		require.NoError(t, err)
		data, err := h.Snapshot(context.Background(), result)
		require.NoError(t, err)
		return data
	}

	require.Equal(t, snap(), snap(), "snapshots must be deterministic")
}

func TestSnapshot_Symbolized(t *testing.T) {
	h, err := New(postScenario())
	require.NoError(t, err)
	defer h.Close()

	result, err := h.Run(context.Background())
	require.NoError(t, err)
	data, err := h.Snapshot(context.Background(), result)
	require.NoError(t, err)

	out := string(data)
	assert.NotContains(t, out, h.built["post"].id)
	assert.Contains(t, out, `"id": "{tx:post}"`)
	assert.True(t, strings.HasSuffix(out, "}\n"))

	var parsed map[string]any
	require.NoError(t, json.Unmarshal(data, &parsed))
	assert.Equal(t, "post", parsed["scenario"])
	counts, ok := parsed["counts"].(map[string]any)
	require.True(t, ok)
	assert.NotContains(t, counts, "net")
	assert.Equal(t, float64(1), counts["post"])
	assert.Equal(t, float64(1), counts["user"])
}

func TestSnapshot_SkipAndError(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/skips_and_failures.yaml")
	require.NoError(t, err)

	h, err := New(scenario)
	require.NoError(t, err)
	defer h.Close()

	result, err := h.Run(context.Background())
	require.NoError(t, err)
	data, err := h.Snapshot(context.Background(), result)
	require.NoError(t, err)

	assert.Contains(t, string(data), `"skip": "no-message"`)
	assert.Contains(t, string(data), `"error": "DECODE_ERROR"`)
}

func TestRunDir(t *testing.T) {
	res, err := RunDir("testdata/scenarios")
	require.NoError(t, err)

	files, err := ScenarioFiles("testdata/scenarios")
	require.NoError(t, err)
	assert.Equal(t, len(files), res.Total)
	assert.True(t, res.Pass(), "failures: %+v", res.Failures())
	assert.Equal(t, res.Total, res.Passed)
}

func TestRunDir_ReportsFailures(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a_good.yaml"), []byte(minimalScenario), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b_broken.yml"), []byte("name: [unclosed"), 0644))
	failing := strings.Replace(minimalScenario, "kind: post", "kind: like", 1)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "c_failing.yaml"), []byte(failing), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0644))

	res, err := RunDir(dir)
	require.NoError(t, err)

	assert.Equal(t, 3, res.Total)
	assert.Equal(t, 1, res.Passed)
	assert.Equal(t, 2, res.Failed)
	assert.False(t, res.Pass())

	require.Len(t, res.Scenarios, 3)
	assert.True(t, res.Scenarios[0].Pass)
	assert.Equal(t, "minimal", res.Scenarios[0].Name)

	failures := res.Failures()
	require.Len(t, failures, 2)
	assert.Equal(t, filepath.Join(dir, "b_broken.yml"), failures[0].Path)
	assert.Contains(t, failures[0].Errors[0], "failed to parse YAML")
	assert.Equal(t, "minimal", failures[1].Name)
	assert.Contains(t, failures[1].Errors[0], "like event from post")
}

func TestRunDir_MissingDir(t *testing.T) {
	_, err := RunDir(filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
}
