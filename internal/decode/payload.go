package decode

import (
	"bytes"
	"encoding/hex"
	"strings"

	"golang.org/x/text/encoding/unicode"
)

// payload is the concatenated data of one output together with the end
// offset of every non-empty push.
type payload struct {
	data   []byte
	breaks []int
}

func newPayload(chunks [][]byte) payload {
	var p payload
	for _, c := range chunks {
		if len(c) == 0 {
			continue
		}
		p.data = append(p.data, c...)
		p.breaks = append(p.breaks, len(p.data))
	}
	return p
}

// nextBreak returns the first push boundary after offset, or the end of
// the data.
func (p payload) nextBreak(offset int) int {
	for _, b := range p.breaks {
		if b > offset {
			return b
		}
	}
	return len(p.data)
}

// str decodes data[from:to] as UTF-8, replacing invalid sequences.
func (p payload) str(from, to int) string {
	if from >= to || from >= len(p.data) {
		return ""
	}
	return decodeUTF8(p.data[from:min(to, len(p.data))])
}

// rest decodes everything from offset as one string.
func (p payload) rest(offset int) string {
	return p.str(offset, len(p.data))
}

// text decodes everything from offset, turning each push boundary after
// offset into a newline.
func (p payload) text(offset int) string {
	if offset >= len(p.data) {
		return ""
	}
	var parts []string
	start := offset
	for _, b := range p.breaks {
		if b <= start {
			continue
		}
		parts = append(parts, p.str(start, b))
		start = b
	}
	if start < len(p.data) {
		parts = append(parts, p.str(start, len(p.data)))
	}
	return strings.Join(parts, "\n")
}

// txid reads a transaction reference at offset. It is either 64 ASCII hex
// characters, possibly preceded by spaces, or 32 raw bytes. Both byte
// orders are returned, the display order first.
func (p payload) txid(offset int) (candidates []string, next int, err error) {
	d := p.data
	if offset+64 <= len(d) && isASCII(d[offset:offset+64]) {
		for offset < len(d) && d[offset] == ' ' {
			offset++
		}
		if offset+64 > len(d) {
			return nil, 0, errField("txid", "truncated hex id")
		}
		s := strings.ToLower(string(d[offset : offset+64]))
		raw, err := hex.DecodeString(s)
		if err != nil {
			return nil, 0, errField("txid", "invalid hex id %q", s)
		}
		return []string{s, hex.EncodeToString(reversed(raw))}, offset + 64, nil
	}
	if offset+32 <= len(d) {
		raw := d[offset : offset+32]
		return []string{hex.EncodeToString(reversed(raw)), hex.EncodeToString(raw)}, offset + 32, nil
	}
	return nil, 0, errField("txid", "unrecognized transaction id format (%d bytes)", len(d)-offset)
}

func isASCII(b []byte) bool {
	for _, c := range b {
		if c >= 0x80 {
			return false
		}
	}
	return true
}

func reversed(b []byte) []byte {
	out := bytes.Clone(b)
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// decodeUTF8 converts untrusted bytes to a valid UTF-8 string. Decoders
// carry state, so each call gets its own.
func decodeUTF8(b []byte) string {
	s, err := unicode.UTF8.NewDecoder().Bytes(b)
	if err != nil {
		return strings.ToValidUTF8(string(b), "�")
	}
	return string(s)
}
