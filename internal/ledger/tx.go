package ledger

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"math"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

// ErrMalformedTx is returned for bytes that do not parse as a transaction.
var ErrMalformedTx = errors.New("malformed transaction")

// Tx is a parsed transaction.
type Tx struct {
	// ID is the transaction hash in display (byte-reversed) hex.
	ID string

	Raw     []byte
	Inputs  []Input
	Outputs []Output
}

// Input spends an earlier output.
type Input struct {
	PrevTxID  string
	PrevIndex uint32

	// Script is the signature script.
	Script []byte

	// PrevScript is the output script being spent, when the reader could
	// resolve it.
	PrevScript []byte

	// Coinbase marks the input of a block reward transaction.
	Coinbase bool
}

// Output is a value transfer or a data carrier.
type Output struct {
	Value  int64
	Script []byte
}

// ParseTx parses a serialized transaction.
func ParseTx(raw []byte) (*Tx, error) {
	var msg wire.MsgTx
	if err := msg.Deserialize(bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedTx, err)
	}

	tx := &Tx{
		ID:      msg.TxHash().String(),
		Raw:     append([]byte(nil), raw...),
		Inputs:  make([]Input, len(msg.TxIn)),
		Outputs: make([]Output, len(msg.TxOut)),
	}
	for i, in := range msg.TxIn {
		tx.Inputs[i] = Input{
			PrevTxID:  in.PreviousOutPoint.Hash.String(),
			PrevIndex: in.PreviousOutPoint.Index,
			Script:    in.SignatureScript,
			Coinbase: len(msg.TxIn) == 1 &&
				in.PreviousOutPoint.Index == math.MaxUint32 &&
				in.PreviousOutPoint.Hash == (chainhash.Hash{}),
		}
	}
	for i, out := range msg.TxOut {
		tx.Outputs[i] = Output{Value: out.Value, Script: out.PkScript}
	}
	return tx, nil
}

// ParseTxHex parses a hex-encoded serialized transaction.
func ParseTxHex(s string) (*Tx, error) {
	raw, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedTx, err)
	}
	return ParseTx(raw)
}

// IsCoinbase reports whether tx is a block reward transaction.
func (tx *Tx) IsCoinbase() bool {
	return len(tx.Inputs) == 1 && tx.Inputs[0].Coinbase
}

// DataChunks returns the pushed chunks of a data output: an OP_RETURN
// script followed only by pushes. ok is false for any other script.
//
// Small-integer opcodes are turned back into the single byte they push,
// so OP_1 yields {0x01} and OP_0 an empty chunk; minimal-push encoders
// emit these in place of one-byte pushes.
func DataChunks(script []byte) (chunks [][]byte, ok bool) {
	if len(script) == 0 || script[0] != txscript.OP_RETURN {
		return nil, false
	}

	tok := txscript.MakeScriptTokenizer(0, script[1:])
	for tok.Next() {
		op := tok.Opcode()
		switch {
		case op == txscript.OP_0:
			chunks = append(chunks, []byte{})
		case op >= txscript.OP_DATA_1 && op <= txscript.OP_PUSHDATA4:
			chunks = append(chunks, tok.Data())
		case op == txscript.OP_1NEGATE:
			chunks = append(chunks, []byte{0x81})
		case op >= txscript.OP_1 && op <= txscript.OP_16:
			chunks = append(chunks, []byte{op - txscript.OP_1 + 1})
		default:
			return nil, false
		}
	}
	if tok.Err() != nil {
		return nil, false
	}
	return chunks, true
}

// Pushes returns the data pushed by a signature script, or nil if it
// contains anything other than pushes.
func Pushes(script []byte) [][]byte {
	var pushes [][]byte
	tok := txscript.MakeScriptTokenizer(0, script)
	for tok.Next() {
		op := tok.Opcode()
		if op > txscript.OP_16 {
			return nil
		}
		pushes = append(pushes, tok.Data())
	}
	if tok.Err() != nil {
		return nil
	}
	return pushes
}
