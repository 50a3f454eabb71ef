package testutil

import (
	"sync"
	"time"
)

// Epoch is the default start of a BlockClock: the first day memo
// messages appeared on chain.
var Epoch = time.Date(2018, 4, 7, 0, 0, 0, 0, time.UTC)

// BlockSpacing is the interval between successive BlockClock ticks.
const BlockSpacing = 10 * time.Minute

// BlockClock hands out block times at a fixed spacing so that chains
// built in tests are reproducible.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type BlockClock struct {
	mu    sync.Mutex
	start time.Time
	n     int
}

// NewBlockClock creates a clock starting at start. A zero start means
// Epoch.
//
// The first call to Next() returns start.
func NewBlockClock(start time.Time) *BlockClock {
	if start.IsZero() {
		start = Epoch
	}
	return &BlockClock{start: start.UTC()}
}

// Next returns the current time and advances by BlockSpacing.
func (c *BlockClock) Next() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.start.Add(time.Duration(c.n) * BlockSpacing)
	c.n++
	return t
}

// Current returns the time Next would return, without advancing.
func (c *BlockClock) Current() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.start.Add(time.Duration(c.n) * BlockSpacing)
}

// Reset rewinds the clock to its start.
func (c *BlockClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n = 0
}
