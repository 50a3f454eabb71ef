package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/metashare/internal/testutil"
)

func TestChain_BlocksFromCursor(t *testing.T) {
	ctx := context.Background()
	clock := testutil.NewBlockClock(time.Time{})
	alice := testutil.NewKey("alice")
	c := NewChain()

	for i := 0; i < 3; i++ {
		_, err := c.AddBlock(testutil.BlockHash(i), 0, clock.Next(),
			testutil.NewCoinbase(alice, int64(i)),
			testutil.NewTx(alice, uint32(i)).Memo(0x02, []byte("m")).MustRaw())
		require.NoError(t, err)
	}

	var heights []int64
	err := c.Blocks(ctx, "", func(b *Block) error {
		heights = append(heights, b.Height)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int64{0, 1, 2}, heights)

	heights = nil
	err = c.Blocks(ctx, testutil.BlockHash(0), func(b *Block) error {
		heights = append(heights, b.Height)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, heights)

	err = c.Blocks(ctx, "feed", func(*Block) error { return nil })
	assert.True(t, errors.Is(err, ErrUnknownBlock))

	heights = nil
	err = c.BlocksFrom(ctx, testutil.BlockHash(1), func(b *Block) error {
		heights = append(heights, b.Height)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, heights)

	err = c.BlocksFrom(ctx, "feed", func(*Block) error { return nil })
	assert.True(t, errors.Is(err, ErrUnknownBlock))

	assert.Equal(t, testutil.BlockHash(2), c.Tip().Hash)
}

func TestChain_VisitErrorStops(t *testing.T) {
	c := NewChain()
	for i := 0; i < 3; i++ {
		_, err := c.AddBlock(testutil.BlockHash(i), 0, testutil.Epoch)
		require.NoError(t, err)
	}

	stop := errors.New("stop")
	visits := 0
	err := c.Blocks(context.Background(), "", func(*Block) error {
		visits++
		return stop
	})
	assert.Equal(t, stop, err)
	assert.Equal(t, 1, visits)
}

func TestChain_CancelledContext(t *testing.T) {
	c := NewChain()
	_, err := c.AddBlock(testutil.BlockHash(0), 0, testutil.Epoch)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = c.Blocks(ctx, "", func(*Block) error { return nil })
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestChain_PendingLeavesMempoolOnConfirm(t *testing.T) {
	ctx := context.Background()
	alice := testutil.NewKey("alice")
	raw := testutil.NewTx(alice, 0).Memo(0x02, []byte("soon")).MustRaw()
	c := NewChain()

	tx, err := c.AddPending(testutil.Epoch, raw)
	require.NoError(t, err)

	pending, err := c.Pending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, tx.ID, pending[0].Tx.ID)

	_, err = c.AddBlock(testutil.BlockHash(0), 0, testutil.Epoch, raw)
	require.NoError(t, err)

	pending, err = c.Pending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)

	got, err := c.Tx(ctx, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, tx.ID, got.ID)

	_, err = c.Tx(ctx, "00")
	assert.True(t, errors.Is(err, ErrTxNotFound))
}

func TestChain_ResolvesSpentScripts(t *testing.T) {
	alice, bob := testutil.NewKey("alice"), testutil.NewKey("bob")
	c := NewChain()

	cb := testutil.NewCoinbase(alice, 0)
	block, err := c.AddBlock(testutil.BlockHash(0), 0, testutil.Epoch, cb)
	require.NoError(t, err)
	cbID := block.Txs[0].ID

	spend, err := c.AddPending(testutil.Epoch,
		testutil.NewTx(bob, 0).Spend(cbID, 0).Memo(0x02, []byte("x")).MustRaw())
	require.NoError(t, err)
	assert.Equal(t, block.Txs[0].Outputs[0].Script, spend.Inputs[0].PrevScript)

	orphan, err := c.AddPending(testutil.Epoch,
		testutil.NewTx(bob, 1).Memo(0x02, []byte("y")).MustRaw())
	require.NoError(t, err)
	assert.Nil(t, orphan.Inputs[0].PrevScript)
}

func TestChain_DuplicateBlock(t *testing.T) {
	c := NewChain()
	_, err := c.AddBlock(testutil.BlockHash(0), 0, testutil.Epoch)
	require.NoError(t, err)
	_, err = c.AddBlock(testutil.BlockHash(0), 0, testutil.Epoch)
	assert.Error(t, err)
	_, err = c.AddBlock("", 0, testutil.Epoch)
	assert.Error(t, err)
}
