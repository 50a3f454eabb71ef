package ledger

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrUnknownBlock is returned when a cursor names a block the reader
	// does not have.
	ErrUnknownBlock = errors.New("unknown block")

	// ErrTxNotFound is returned by Reader.Tx for an unknown id.
	ErrTxNotFound = errors.New("transaction not found")
)

// Reader provides ordered access to the ledger. It is never written to.
type Reader interface {
	// Blocks calls visit for every block after the block whose hash is
	// after, in chain order, up to the tip. An empty after starts at the
	// first block. A non-nil error from visit stops the iteration and is
	// returned.
	Blocks(ctx context.Context, after string, visit func(*Block) error) error

	// BlocksFrom is Blocks starting with the block whose hash is from.
	BlocksFrom(ctx context.Context, from string, visit func(*Block) error) error

	// Pending returns unconfirmed transactions with their approximate
	// receipt time.
	Pending(ctx context.Context) ([]PendingTx, error)

	// Tx returns one transaction with the output scripts its inputs
	// spend resolved where known.
	Tx(ctx context.Context, id string) (*Tx, error)
}

// Block is a confirmed group of transactions.
type Block struct {
	Hash   string
	Height int64
	Time   time.Time
	Txs    []*Tx
}

// PendingTx is an unconfirmed transaction.
type PendingTx struct {
	Tx   *Tx
	Seen time.Time
}
