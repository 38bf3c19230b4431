package application

import (
	"sync"
	"testing"

	"github.com/ark-network/markstr/internal/core/ports"
	"github.com/stretchr/testify/require"
)

func TestEscapableMarkets(t *testing.T) {
	markets := newEscapableMarkets()

	require.True(t, markets.push("m1"))
	require.False(t, markets.push("m1"))
	require.True(t, markets.push("m2"))
	require.True(t, markets.has("m1"))
	require.Equal(t, 2, markets.len())

	markets.delete("m1")
	require.False(t, markets.has("m1"))
	require.Equal(t, 1, markets.len())
}

func TestMarketLocks(t *testing.T) {
	locks := newMarketLocks()

	counter := 0
	wg := &sync.WaitGroup{}
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := locks.lockMarket("m1")
			defer unlock()
			counter++
		}()
	}
	wg.Wait()
	require.Equal(t, 50, counter)

	// Different markets do not block each other.
	unlock := locks.lockMarket("m1")
	unlockOther := locks.lockMarket("m2")
	unlockOther()
	unlock()
}

func TestMissingIndexes(t *testing.T) {
	partials := []ports.PartialDeposit{{InputIndex: 3}, {InputIndex: 0}, {InputIndex: 1}}
	require.Equal(t, []uint32{2, 4}, missingIndexes(partials, 5))
	require.Empty(t, missingIndexes(partials, 2))
	require.Equal(t, []uint32{0}, missingIndexes(nil, 1))
}
