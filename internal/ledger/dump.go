package ledger

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Dump is the YAML form of a Chain.
//
//	blocks:
//	  - hash: 00000000000000000190...
//	    height: 530000
//	    time: 2018-04-01T00:00:00Z
//	    txs: [0100000001..., ...]
//	pending:
//	  - seen: 2018-04-01T00:10:00Z
//	    tx: 0100000001...
type Dump struct {
	Blocks  []DumpBlock   `yaml:"blocks"`
	Pending []DumpPending `yaml:"pending,omitempty"`
}

// DumpBlock is one block of a Dump. Transactions are hex encoded.
type DumpBlock struct {
	Hash   string    `yaml:"hash"`
	Height int64     `yaml:"height,omitempty"`
	Time   time.Time `yaml:"time"`
	Txs    []string  `yaml:"txs"`
}

// DumpPending is one mempool entry of a Dump.
type DumpPending struct {
	Seen time.Time `yaml:"seen"`
	Tx   string    `yaml:"tx"`
}

// LoadDump reads a YAML chain dump from path.
func LoadDump(path string) (*Chain, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read chain dump: %w", err)
	}
	return ParseDump(data)
}

// ParseDump builds a Chain from YAML. Unknown fields are rejected.
func ParseDump(data []byte) (*Chain, error) {
	var d Dump
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&d); err != nil {
		return nil, fmt.Errorf("failed to parse chain dump: %w", err)
	}
	return d.Chain()
}

// Chain replays the dump into a new Chain.
func (d *Dump) Chain() (*Chain, error) {
	c := NewChain()
	for i, b := range d.Blocks {
		raws := make([][]byte, len(b.Txs))
		for j, s := range b.Txs {
			raw, err := hex.DecodeString(s)
			if err != nil {
				return nil, fmt.Errorf("block %d tx %d: %w", i, j, err)
			}
			raws[j] = raw
		}
		if _, err := c.AddBlock(b.Hash, b.Height, b.Time, raws...); err != nil {
			return nil, err
		}
	}
	for i, p := range d.Pending {
		raw, err := hex.DecodeString(p.Tx)
		if err != nil {
			return nil, fmt.Errorf("pending %d: %w", i, err)
		}
		if _, err := c.AddPending(p.Seen, raw); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Dump returns the YAML form of the chain.
func (c *Chain) Dump() ([]byte, error) {
	c.mu.RLock()
	d := Dump{}
	for _, b := range c.blocks {
		db := DumpBlock{Hash: b.Hash, Height: b.Height, Time: b.Time}
		for _, tx := range b.Txs {
			db.Txs = append(db.Txs, hex.EncodeToString(tx.Raw))
		}
		d.Blocks = append(d.Blocks, db)
	}
	for _, p := range c.pending {
		d.Pending = append(d.Pending, DumpPending{Seen: p.Seen, Tx: hex.EncodeToString(p.Tx.Raw)})
	}
	c.mu.RUnlock()

	return yaml.Marshal(&d)
}
