package decode

import (
	"bytes"
	"strings"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/base58"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// normalizeAddress converts an address field to base58check text. Clients
// have written it in these shapes:
//
//	text      base58check
//	25 bytes  version, hash, checksum
//	24 bytes  hash, checksum (version byte dropped)
//	22 bytes  hash, first two checksum bytes
//	21 bytes  version, hash
//	20 bytes  hash
func normalizeAddress(b []byte, params *chaincfg.Params) (string, error) {
	if len(b) == 0 {
		return "", errField("address", "empty")
	}

	if isASCII(b) {
		s := strings.TrimSpace(string(b))
		hash, version, err := base58.CheckDecode(s)
		if err != nil || len(hash) != 20 {
			return "", errField("address", "%q is not a base58check address", s)
		}
		return encodeAddress(version, hash, params)
	}

	pkh := params.PubKeyHashAddrID
	switch len(b) {
	case 24:
		return normalizeAddress(append([]byte{pkh}, b...), params)
	case 25:
		if !bytes.Equal(checksum(b[:21]), b[21:]) {
			return "", errField("address", "checksum mismatch")
		}
		return encodeAddress(b[0], b[1:21], params)
	case 22:
		versioned := append([]byte{pkh}, b[:20]...)
		if !bytes.Equal(checksum(versioned)[:2], b[20:]) {
			return "", errField("address", "checksum mismatch")
		}
		return encodeAddress(pkh, b[:20], params)
	case 21:
		return encodeAddress(b[0], b[1:], params)
	case 20:
		return encodeAddress(pkh, b, params)
	default:
		return "", errField("address", "unrecognized %d-byte address", len(b))
	}
}

func checksum(versioned []byte) []byte {
	return chainhash.DoubleHashB(versioned)[:4]
}

func encodeAddress(version byte, hash []byte, params *chaincfg.Params) (string, error) {
	var (
		addr btcutil.Address
		err  error
	)
	switch version {
	case params.PubKeyHashAddrID:
		addr, err = btcutil.NewAddressPubKeyHash(hash, params)
	case params.ScriptHashAddrID:
		addr, err = btcutil.NewAddressScriptHashFromHash(hash, params)
	default:
		return "", errField("address", "version byte 0x%02x is not for %s", version, params.Name)
	}
	if err != nil {
		return "", errField("address", "%v", err)
	}
	return addr.EncodeAddress(), nil
}
