package ledger

import (
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
)

// Params returns the chain parameters for a network name: mainnet,
// testnet3 or regtest.
func Params(name string) (*chaincfg.Params, error) {
	switch name {
	case "", "mainnet":
		return &chaincfg.MainNetParams, nil
	case "testnet3", "testnet":
		return &chaincfg.TestNet3Params, nil
	case "regtest":
		return &chaincfg.RegressionNetParams, nil
	default:
		return nil, fmt.Errorf("unknown chain %q", name)
	}
}

// ScriptAddress returns the address an output script pays, or "" when
// the script does not pay exactly one address.
func ScriptAddress(script []byte, params *chaincfg.Params) string {
	_, addrs, _, err := txscript.ExtractPkScriptAddrs(script, params)
	if err != nil || len(addrs) != 1 {
		return ""
	}
	return addrs[0].EncodeAddress()
}

// PubKeyHashAddress encodes a 20-byte public key hash as a legacy
// address.
func PubKeyHashAddress(hash []byte, params *chaincfg.Params) (string, error) {
	addr, err := btcutil.NewAddressPubKeyHash(hash, params)
	if err != nil {
		return "", err
	}
	return addr.EncodeAddress(), nil
}

// Author returns the address that signed the first input of tx, or ""
// for block reward transactions and inputs whose credential cannot be
// recovered.
//
// The spent output script is used when known. Otherwise the last push of
// the signature script is taken as the public key.
func Author(tx *Tx, params *chaincfg.Params) string {
	if len(tx.Inputs) == 0 || tx.IsCoinbase() {
		return ""
	}
	in := tx.Inputs[0]
	if len(in.PrevScript) > 0 {
		if addr := ScriptAddress(in.PrevScript, params); addr != "" {
			return addr
		}
	}

	pushes := Pushes(in.Script)
	if len(pushes) == 0 {
		return ""
	}
	pubKey := pushes[len(pushes)-1]
	if len(pubKey) != 33 && len(pubKey) != 65 {
		return ""
	}
	addr, err := PubKeyHashAddress(btcutil.Hash160(pubKey), params)
	if err != nil {
		return ""
	}
	return addr
}
