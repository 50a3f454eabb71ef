package testutil

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBlockClock_StartsAtEpoch(t *testing.T) {
	clock := NewBlockClock(time.Time{})
	assert.Equal(t, Epoch, clock.Current())
	assert.Equal(t, Epoch, clock.Next())
	assert.Equal(t, Epoch.Add(BlockSpacing), clock.Current())
}

func TestBlockClock_Spacing(t *testing.T) {
	start := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := NewBlockClock(start)

	for i := 0; i < 4; i++ {
		assert.Equal(t, start.Add(time.Duration(i)*BlockSpacing), clock.Next())
	}
}

func TestBlockClock_Reset(t *testing.T) {
	clock := NewBlockClock(time.Time{})
	clock.Next()
	clock.Next()

	clock.Reset()
	assert.Equal(t, Epoch, clock.Next())
}

func TestBlockClock_ThreadSafety(t *testing.T) {
	clock := NewBlockClock(time.Time{})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			clock.Next()
		}()
	}
	wg.Wait()

	assert.Equal(t, Epoch.Add(50*BlockSpacing), clock.Current())
}
