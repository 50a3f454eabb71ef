package cli

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupLogging(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	buf := &bytes.Buffer{}
	setupLogging(&RootOptions{LogFormat: "json"}, buf)
	slog.Debug("hidden")
	slog.Info("block synced", "height", 7)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "block synced", line["msg"])
	assert.Equal(t, float64(7), line["height"])

	buf.Reset()
	setupLogging(&RootOptions{LogFormat: "text", Verbose: true}, buf)
	slog.Debug("tx decoded")
	assert.Contains(t, buf.String(), "level=DEBUG")
	assert.Contains(t, buf.String(), "tx decoded")
}
