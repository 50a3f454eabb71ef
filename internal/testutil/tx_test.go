package testutil

import (
	"bytes"
	"testing"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewKey_Deterministic(t *testing.T) {
	a1 := NewKey("alice")
	a2 := NewKey("alice")
	b := NewKey("bob")

	assert.Equal(t, a1, a2)
	assert.NotEqual(t, a1.Address, b.Address)
	assert.Len(t, a1.Hash, 20)
	assert.Equal(t, byte('1'), a1.Address[0], "mainnet pay-to-pubkey-hash")
}

func TestTxBuilder_Roundtrip(t *testing.T) {
	alice, bob := NewKey("alice"), NewKey("bob")
	b := NewTx(alice, 3).Memo(0x02, []byte("hello")).Pay(bob.Address, 500)

	raw, err := b.Raw()
	require.NoError(t, err)

	var msg wire.MsgTx
	require.NoError(t, msg.Deserialize(bytes.NewReader(raw)))
	assert.Equal(t, b.ID(), msg.TxHash().String())
	require.Len(t, msg.TxIn, 1)
	assert.Equal(t, uint32(3), msg.TxIn[0].PreviousOutPoint.Index)
	require.Len(t, msg.TxOut, 2)
	assert.Equal(t, int64(500), msg.TxOut[1].Value)

	var h chainhash.Hash
	copy(h[:], b.IDBytes())
	assert.Equal(t, b.ID(), h.String())
}

func TestTxBuilder_NonceChangesID(t *testing.T) {
	alice := NewKey("alice")
	a := NewTx(alice, 0).Memo(0x02, []byte("x"))
	b := NewTx(alice, 1).Memo(0x02, []byte("x"))
	assert.NotEqual(t, a.ID(), b.ID())
}

func TestTxBuilder_BadAddress(t *testing.T) {
	_, err := NewTx(NewKey("alice"), 0).Pay("not-an-address", 1).Raw()
	assert.Error(t, err)
}

func TestNewCoinbase(t *testing.T) {
	raw := NewCoinbase(NewKey("miner"), 530000)

	var msg wire.MsgTx
	require.NoError(t, msg.Deserialize(bytes.NewReader(raw)))
	assert.Equal(t, wire.MaxPrevOutIndex, msg.TxIn[0].PreviousOutPoint.Index)
}
