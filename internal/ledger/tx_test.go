package ledger

import (
	"errors"
	"strings"
	"testing"

	"github.com/btcsuite/btcd/txscript"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/metashare/internal/testutil"
)

func TestParseTx(t *testing.T) {
	alice, bob := testutil.NewKey("alice"), testutil.NewKey("bob")
	b := testutil.NewTx(alice, 0).Memo(0x02, []byte("hello")).Pay(bob.Address, 1000)

	tx, err := ParseTx(b.MustRaw())
	require.NoError(t, err)
	assert.Equal(t, b.ID(), tx.ID)
	assert.False(t, tx.IsCoinbase())
	require.Len(t, tx.Inputs, 1)
	require.Len(t, tx.Outputs, 2)
	assert.Equal(t, int64(1000), tx.Outputs[1].Value)

	hexTx, err := ParseTxHex(b.Hex())
	require.NoError(t, err)
	assert.Equal(t, tx.ID, hexTx.ID)
}

func TestParseTx_Malformed(t *testing.T) {
	_, err := ParseTx([]byte{0x01, 0x00})
	assert.True(t, errors.Is(err, ErrMalformedTx))

	_, err = ParseTxHex("zz")
	assert.True(t, errors.Is(err, ErrMalformedTx))
}

func TestParseTx_Coinbase(t *testing.T) {
	tx, err := ParseTx(testutil.NewCoinbase(testutil.NewKey("miner"), 1))
	require.NoError(t, err)
	assert.True(t, tx.IsCoinbase())
}

func TestDataChunks(t *testing.T) {
	script, err := txscript.NewScriptBuilder().
		AddOp(txscript.OP_RETURN).
		AddData([]byte{0x6d, 0x0c}).
		AddData([]byte("golang")).
		AddData([]byte{0x07}). // encoded as OP_7
		AddData(nil).          // encoded as OP_0
		AddData([]byte(strings.Repeat("x", 100))).
		Script()
	require.NoError(t, err)

	chunks, ok := DataChunks(script)
	require.True(t, ok)
	require.Len(t, chunks, 5)
	assert.Equal(t, []byte{0x6d, 0x0c}, chunks[0])
	assert.Equal(t, []byte("golang"), chunks[1])
	assert.Equal(t, []byte{0x07}, chunks[2])
	assert.Equal(t, []byte{}, chunks[3])
	assert.Len(t, chunks[4], 100)
}

func TestDataChunks_NotData(t *testing.T) {
	bob := testutil.NewKey("bob")
	p2pkh, err := txscript.NewScriptBuilder().
		AddOp(txscript.OP_DUP).AddOp(txscript.OP_HASH160).
		AddData(bob.Hash).
		AddOp(txscript.OP_EQUALVERIFY).AddOp(txscript.OP_CHECKSIG).
		Script()
	require.NoError(t, err)

	_, ok := DataChunks(p2pkh)
	assert.False(t, ok)

	_, ok = DataChunks(nil)
	assert.False(t, ok)

	// OP_RETURN followed by a non-push opcode.
	_, ok = DataChunks([]byte{txscript.OP_RETURN, txscript.OP_DUP})
	assert.False(t, ok)

	// Truncated push.
	_, ok = DataChunks([]byte{txscript.OP_RETURN, 0x05, 0x01})
	assert.False(t, ok)
}

func TestAuthor(t *testing.T) {
	alice, bob := testutil.NewKey("alice"), testutil.NewKey("bob")
	params, err := Params("mainnet")
	require.NoError(t, err)

	tx, err := ParseTx(testutil.NewTx(alice, 0).Memo(0x02, []byte("x")).MustRaw())
	require.NoError(t, err)
	assert.Equal(t, alice.Address, Author(tx, params), "from the signature script public key")

	// A resolved previous output script wins.
	tx.Inputs[0].PrevScript = p2pkhScript(t, bob.Hash)
	assert.Equal(t, bob.Address, Author(tx, params))

	cb, err := ParseTx(testutil.NewCoinbase(alice, 7))
	require.NoError(t, err)
	assert.Empty(t, Author(cb, params))
}

func TestScriptAddress(t *testing.T) {
	bob := testutil.NewKey("bob")
	params, _ := Params("")
	assert.Equal(t, bob.Address, ScriptAddress(p2pkhScript(t, bob.Hash), params))
	assert.Empty(t, ScriptAddress([]byte{txscript.OP_RETURN}, params))
}

func TestParams(t *testing.T) {
	for _, name := range []string{"", "mainnet", "testnet3", "regtest"} {
		_, err := Params(name)
		assert.NoError(t, err, name)
	}
	_, err := Params("moonnet")
	assert.Error(t, err)
}

func p2pkhScript(t *testing.T, hash []byte) []byte {
	t.Helper()
	script, err := txscript.NewScriptBuilder().
		AddOp(txscript.OP_DUP).AddOp(txscript.OP_HASH160).
		AddData(hash).
		AddOp(txscript.OP_EQUALVERIFY).AddOp(txscript.OP_CHECKSIG).
		Script()
	require.NoError(t, err)
	return script
}
