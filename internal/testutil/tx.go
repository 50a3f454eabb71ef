package testutil

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

// Key is a deterministic test identity. The public key is not a valid
// curve point; only its hash matters for address derivation.
type Key struct {
	Name    string
	PubKey  []byte
	Hash    []byte
	Address string
}

// NewKey derives a key from name on mainnet.
func NewKey(name string) Key {
	sum := sha256.Sum256([]byte(name))
	pub := append([]byte{0x02}, sum[:]...)
	hash := btcutil.Hash160(pub)
	addr, err := btcutil.NewAddressPubKeyHash(hash, &chaincfg.MainNetParams)
	if err != nil {
		panic(err)
	}
	return Key{Name: name, PubKey: pub, Hash: hash, Address: addr.EncodeAddress()}
}

// TxBuilder assembles serialized transactions.
type TxBuilder struct {
	msg *wire.MsgTx
	err error
}

// NewTx starts a transaction whose single input is signed by from. The
// nonce selects the spent outpoint, so equal payloads give distinct ids.
func NewTx(from Key, nonce uint32) *TxBuilder {
	msg := wire.NewMsgTx(1)
	prev := wire.NewOutPoint(&chainhash.Hash{}, nonce)
	prev.Hash = chainhash.HashH([]byte("funding:" + from.Name))

	// A placeholder DER signature followed by the public key.
	sig := bytes.Repeat([]byte{0x30}, 71)
	script, err := txscript.NewScriptBuilder().AddData(sig).AddData(from.PubKey).Script()
	msg.AddTxIn(wire.NewTxIn(prev, script, nil))
	return &TxBuilder{msg: msg, err: err}
}

// Spend points the first input at output vout of txid, keeping the
// signature script. The chain can then resolve the spent script.
func (b *TxBuilder) Spend(txid string, vout uint32) *TxBuilder {
	h, err := chainhash.NewHashFromStr(txid)
	if err != nil {
		if b.err == nil {
			b.err = fmt.Errorf("spend %s: %w", txid, err)
		}
		return b
	}
	b.msg.TxIn[0].PreviousOutPoint = *wire.NewOutPoint(h, vout)
	return b
}

// NewCoinbase returns a block reward transaction paying to.
func NewCoinbase(to Key, height int64) []byte {
	msg := wire.NewMsgTx(1)
	prev := wire.NewOutPoint(&chainhash.Hash{}, wire.MaxPrevOutIndex)
	tag, _ := txscript.NewScriptBuilder().AddInt64(height).Script()
	msg.AddTxIn(wire.NewTxIn(prev, tag, nil))
	b := &TxBuilder{msg: msg}
	return b.Pay(to.Address, 625000000).MustRaw()
}

// Memo adds a data output carrying the 0x6d prefix, the kind byte, and
// each field as its own push.
func (b *TxBuilder) Memo(kind byte, fields ...[]byte) *TxBuilder {
	return b.Data(append([][]byte{{0x6d, kind}}, fields...)...)
}

// Data adds an OP_RETURN output with one explicit push per chunk. Pushes
// are not minimized, so a one-byte chunk stays a one-byte push the way
// protocol clients write it.
func (b *TxBuilder) Data(chunks ...[]byte) *TxBuilder {
	sb := txscript.NewScriptBuilder().AddOp(txscript.OP_RETURN)
	for _, c := range chunks {
		if n := len(c); n > 0 && n <= txscript.OP_DATA_75 {
			// AddData would turn a lone small byte into OP_n.
			sb.AddOps(append([]byte{byte(n)}, c...))
			continue
		}
		sb.AddData(c)
	}
	script, err := sb.Script()
	if err != nil && b.err == nil {
		b.err = err
	}
	b.msg.AddTxOut(wire.NewTxOut(0, script))
	return b
}

// Pay adds an output paying sat to a base58 address.
func (b *TxBuilder) Pay(address string, sat int64) *TxBuilder {
	addr, err := btcutil.DecodeAddress(address, &chaincfg.MainNetParams)
	if err != nil {
		if b.err == nil {
			b.err = fmt.Errorf("pay %s: %w", address, err)
		}
		return b
	}
	script, err := txscript.PayToAddrScript(addr)
	if err != nil && b.err == nil {
		b.err = err
	}
	b.msg.AddTxOut(wire.NewTxOut(sat, script))
	return b
}

// Raw serializes the transaction.
func (b *TxBuilder) Raw() ([]byte, error) {
	if b.err != nil {
		return nil, b.err
	}
	var buf bytes.Buffer
	if err := b.msg.Serialize(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// MustRaw is Raw for tests; it panics on error.
func (b *TxBuilder) MustRaw() []byte {
	raw, err := b.Raw()
	if err != nil {
		panic(err)
	}
	return raw
}

// Hex is MustRaw hex encoded.
func (b *TxBuilder) Hex() string {
	return hex.EncodeToString(b.MustRaw())
}

// ID returns the transaction id in display order.
func (b *TxBuilder) ID() string {
	return b.msg.TxHash().String()
}

// IDBytes returns the transaction hash in internal (wire) byte order, the
// order reversed relative to the display form.
func (b *TxBuilder) IDBytes() []byte {
	h := b.msg.TxHash()
	return h[:]
}

// BlockHash returns a fake block hash for height n.
func BlockHash(n int) string {
	return fmt.Sprintf("%064x", n+1)
}
