package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/roach88/metashare/internal/config"
	"github.com/roach88/metashare/internal/ledger"
	"github.com/roach88/metashare/internal/record"
	"github.com/roach88/metashare/internal/store"
	"github.com/roach88/metashare/internal/testutil"
)

var (
	alice = testutil.NewKey("alice")
	bob   = testutil.NewKey("bob")
	miner = testutil.NewKey("miner")
)

// execute runs cmd with args and returns what it wrote to stdout.
func execute(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	cmd.SetContext(context.Background())
	err := cmd.Execute()
	return buf.String(), err
}

// jsonData decodes the data of a successful JSON response into v.
func jsonData(t *testing.T, out string, v any) {
	t.Helper()
	var resp struct {
		Status string          `json:"status"`
		Data   json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp), out)
	require.Equal(t, "ok", resp.Status, out)
	require.NoError(t, json.Unmarshal(resp.Data, v))
}

// jsonError decodes the error of a JSON response.
func jsonError(t *testing.T, out string) CLIError {
	t.Helper()
	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp), out)
	require.Equal(t, "error", resp.Status, out)
	require.NotNil(t, resp.Error)
	return *resp.Error
}

func jsonOpts() *RootOptions { return &RootOptions{Format: "json", LogFormat: "text"} }
func textOpts() *RootOptions { return &RootOptions{Format: "text", LogFormat: "text"} }

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// createTestDB creates a database with the given networks registered,
// counting payments in satoshis.
func createTestDB(t *testing.T, origins ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	st, err := store.Open(path)
	require.NoError(t, err)
	defer st.Close()

	for _, origin := range origins {
		cfg := config.Default(origin)
		cfg.CurrencyUnit = "sat"
		cfg.UnitsPerCurrency = 1
		blob, err := cfg.Object()
		require.NoError(t, err)
		_, err = st.OpenNetwork(context.Background(), origin,
			record.NewObject(record.P("time", record.T(testutil.Epoch))), blob)
		require.NoError(t, err)
	}
	return path
}

// writeChain dumps chain to a YAML file.
func writeChain(t *testing.T, chain *ledger.Chain) string {
	t.Helper()
	data, err := chain.Dump()
	require.NoError(t, err)
	return writeFile(t, "chain.yaml", string(data))
}

// sampleChain holds a post by alice in block 0 and bob's pending reply.
type sampleChain struct {
	chain *ledger.Chain
	post  *testutil.TxBuilder
	reply *testutil.TxBuilder
}

func newSampleChain(t *testing.T) sampleChain {
	t.Helper()
	c := sampleChain{chain: ledger.NewChain()}
	c.post = testutil.NewTx(alice, 0).Memo(0x02, []byte("hello"))
	c.reply = testutil.NewTx(bob, 0).Memo(0x03, c.post.IDBytes(), []byte("hi alice"))

	_, err := c.chain.AddBlock(testutil.BlockHash(0), 530000, testutil.Epoch,
		testutil.NewCoinbase(miner, 530000), c.post.MustRaw())
	require.NoError(t, err)
	_, err = c.chain.AddPending(testutil.Epoch.Add(time.Minute), c.reply.MustRaw())
	require.NoError(t, err)
	return c
}

func itoa(n int64) string { return strconv.FormatInt(n, 10) }
