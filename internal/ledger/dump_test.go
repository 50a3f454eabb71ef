package ledger

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/metashare/internal/testutil"
)

func TestDump_Roundtrip(t *testing.T) {
	ctx := context.Background()
	alice := testutil.NewKey("alice")
	c := NewChain()

	_, err := c.AddBlock(testutil.BlockHash(0), 530000, testutil.Epoch,
		testutil.NewCoinbase(alice, 530000),
		testutil.NewTx(alice, 0).Memo(0x01, []byte("alice")).MustRaw())
	require.NoError(t, err)
	_, err = c.AddPending(testutil.Epoch, testutil.NewTx(alice, 1).Memo(0x02, []byte("later")).MustRaw())
	require.NoError(t, err)

	data, err := c.Dump()
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "chain.yaml")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	loaded, err := LoadDump(path)
	require.NoError(t, err)
	assert.Equal(t, int64(530000), loaded.Tip().Height)
	assert.Equal(t, testutil.Epoch, loaded.Tip().Time)
	require.Len(t, loaded.Tip().Txs, 2)

	pending, err := loaded.Pending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, c.pending[0].Tx.ID, pending[0].Tx.ID)
}

func TestParseDump_Errors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"unknown field", "blocks: []\nmempool: []\n"},
		{"bad hex", "blocks:\n  - hash: aa\n    time: 2018-04-07T00:00:00Z\n    txs: [zz]\n"},
		{"bad tx", "blocks:\n  - hash: aa\n    time: 2018-04-07T00:00:00Z\n    txs: ['0100']\n"},
		{"missing hash", "blocks:\n  - time: 2018-04-07T00:00:00Z\n    txs: []\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseDump([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestLoadDump_MissingFile(t *testing.T) {
	_, err := LoadDump(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
