package ledger

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"
)

// Chain is an in-memory Reader.
// Safe for concurrent use.
type Chain struct {
	mu      sync.RWMutex
	blocks  []*Block
	index   map[string]int
	pending []PendingTx
	txs     map[string]*Tx
	outputs map[outpoint][]byte
}

type outpoint struct {
	tx    string
	index uint32
}

var _ Reader = (*Chain)(nil)

// NewChain returns an empty chain.
func NewChain() *Chain {
	return &Chain{
		index:   make(map[string]int),
		txs:     make(map[string]*Tx),
		outputs: make(map[outpoint][]byte),
	}
}

// AddBlock appends a block holding the given raw transactions. Inputs
// spending outputs already on the chain or in the mempool get their
// PrevScript resolved. Confirmed transactions leave the mempool.
func (c *Chain) AddBlock(hash string, height int64, at time.Time, raws ...[]byte) (*Block, error) {
	if hash == "" {
		return nil, fmt.Errorf("add block: hash is required")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, dup := c.index[hash]; dup {
		return nil, fmt.Errorf("add block %s: already present", hash)
	}
	if height == 0 && len(c.blocks) > 0 {
		height = c.blocks[len(c.blocks)-1].Height + 1
	}

	b := &Block{Hash: hash, Height: height, Time: at.UTC()}
	for i, raw := range raws {
		tx, err := ParseTx(raw)
		if err != nil {
			return nil, fmt.Errorf("add block %s: tx %d: %w", hash, i, err)
		}
		c.track(tx)
		b.Txs = append(b.Txs, tx)
	}

	confirmed := make(map[string]bool, len(b.Txs))
	for _, tx := range b.Txs {
		confirmed[tx.ID] = true
	}
	c.pending = slices.DeleteFunc(c.pending, func(p PendingTx) bool {
		return confirmed[p.Tx.ID]
	})

	c.index[hash] = len(c.blocks)
	c.blocks = append(c.blocks, b)
	return b, nil
}

// AddPending adds an unconfirmed transaction seen at the given time.
func (c *Chain) AddPending(seen time.Time, raw []byte) (*Tx, error) {
	tx, err := ParseTx(raw)
	if err != nil {
		return nil, fmt.Errorf("add pending: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.track(tx)
	c.pending = append(c.pending, PendingTx{Tx: tx, Seen: seen.UTC()})
	return tx, nil
}

// track indexes tx and resolves its inputs. Caller holds c.mu.
func (c *Chain) track(tx *Tx) {
	for i := range tx.Inputs {
		in := &tx.Inputs[i]
		if script, ok := c.outputs[outpoint{in.PrevTxID, in.PrevIndex}]; ok {
			in.PrevScript = script
		}
	}
	for i, out := range tx.Outputs {
		c.outputs[outpoint{tx.ID, uint32(i)}] = out.Script
	}
	c.txs[tx.ID] = tx
}

// Tip returns the last block, or nil for an empty chain.
func (c *Chain) Tip() *Block {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.blocks) == 0 {
		return nil
	}
	return c.blocks[len(c.blocks)-1]
}

// Blocks implements Reader.
func (c *Chain) Blocks(ctx context.Context, after string, visit func(*Block) error) error {
	if after == "" {
		return c.walk(ctx, "", 0, visit)
	}
	return c.walk(ctx, after, 1, visit)
}

// BlocksFrom implements Reader.
func (c *Chain) BlocksFrom(ctx context.Context, from string, visit func(*Block) error) error {
	return c.walk(ctx, from, 0, visit)
}

// walk visits the blocks from offset past hash. An empty hash starts at
// the first block.
func (c *Chain) walk(ctx context.Context, hash string, offset int, visit func(*Block) error) error {
	c.mu.RLock()
	start := 0
	if hash != "" {
		i, ok := c.index[hash]
		if !ok {
			c.mu.RUnlock()
			return fmt.Errorf("%w: %s", ErrUnknownBlock, hash)
		}
		start = i + offset
	}
	blocks := slices.Clone(c.blocks[start:])
	c.mu.RUnlock()

	for _, b := range blocks {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := visit(b); err != nil {
			return err
		}
	}
	return nil
}

// Pending implements Reader.
func (c *Chain) Pending(ctx context.Context) ([]PendingTx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.pending), nil
}

// Tx implements Reader.
func (c *Chain) Tx(ctx context.Context, id string) (*Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	tx, ok := c.txs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTxNotFound, id)
	}
	return tx, nil
}
