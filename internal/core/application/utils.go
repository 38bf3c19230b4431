package application

import (
	"bytes"
	"fmt"
	"sync"
	"time"

	"github.com/ark-network/markstr/internal/core/domain"
	"github.com/ark-network/markstr/internal/core/ports"
	"github.com/btcsuite/btcd/wire"
)

// marketLocks serializes the mutations of a single market while leaving
// different markets independent.
type marketLocks struct {
	lock  *sync.Mutex
	locks map[string]*sync.Mutex
}

func newMarketLocks() *marketLocks {
	return &marketLocks{&sync.Mutex{}, make(map[string]*sync.Mutex)}
}

func (m *marketLocks) lockMarket(id string) func() {
	m.lock.Lock()
	l, ok := m.locks[id]
	if !ok {
		l = &sync.Mutex{}
		m.locks[id] = l
	}
	m.lock.Unlock()

	l.Lock()
	return l.Unlock
}

// escapableMarkets keeps track of the markets already reported as escapable
// by the watcher.
type escapableMarkets struct {
	lock    *sync.RWMutex
	markets map[string]time.Time
}

func newEscapableMarkets() *escapableMarkets {
	return &escapableMarkets{&sync.RWMutex{}, make(map[string]time.Time)}
}

func (m *escapableMarkets) push(id string) bool {
	m.lock.Lock()
	defer m.lock.Unlock()

	if _, ok := m.markets[id]; ok {
		return false
	}
	m.markets[id] = time.Now()
	return true
}

func (m *escapableMarkets) delete(id string) {
	m.lock.Lock()
	defer m.lock.Unlock()

	delete(m.markets, id)
}

func (m *escapableMarkets) has(id string) bool {
	m.lock.RLock()
	defer m.lock.RUnlock()

	_, ok := m.markets[id]
	return ok
}

func (m *escapableMarkets) len() int {
	m.lock.RLock()
	defer m.lock.RUnlock()

	return len(m.markets)
}

func betIndex(market *domain.Market, txid string, vout uint32) (domain.Bet, uint32, error) {
	outpoint := domain.Outpoint{Txid: txid, VOut: vout}
	for i, bet := range market.Bets() {
		if bet.Outpoint() == outpoint {
			return bet, uint32(i), nil
		}
	}
	return domain.Bet{}, 0, fmt.Errorf(
		"%w: no bet funded by %s in market %s", domain.ErrInvalidBet, outpoint, market.Id,
	)
}

// matchPartial checks that the given partial is the expected one apart from
// its witness.
func matchPartial(expected, got ports.PartialDeposit) error {
	if got.Tx == nil || len(got.Tx.TxIn) != 1 || len(got.Tx.TxOut) != 1 {
		return fmt.Errorf("%w: partial must have exactly one input and one output", ErrInvalidDeposit)
	}
	if expected.InputIndex != got.InputIndex {
		return fmt.Errorf(
			"%w: input index %d, expected %d", ErrInvalidDeposit, got.InputIndex, expected.InputIndex,
		)
	}

	exp, tx := expected.Tx, got.Tx
	if exp.Version != tx.Version || exp.LockTime != tx.LockTime {
		return fmt.Errorf("%w: version or locktime mismatch", ErrInvalidDeposit)
	}
	expIn, in := exp.TxIn[0], tx.TxIn[0]
	if expIn.PreviousOutPoint != in.PreviousOutPoint {
		return fmt.Errorf(
			"%w: spends %s, expected %s", ErrInvalidDeposit, in.PreviousOutPoint, expIn.PreviousOutPoint,
		)
	}
	if expIn.Sequence != in.Sequence {
		return fmt.Errorf("%w: sequence mismatch", ErrInvalidDeposit)
	}
	if !sameOutput(exp.TxOut[0], tx.TxOut[0]) {
		return fmt.Errorf("%w: output does not pay the pool", ErrInvalidDeposit)
	}
	return nil
}

func sameOutput(a, b *wire.TxOut) bool {
	return a.Value == b.Value && bytes.Equal(a.PkScript, b.PkScript)
}

func missingIndexes(partials []ports.PartialDeposit, expected int) []uint32 {
	collected := make(map[uint32]struct{}, len(partials))
	for _, p := range partials {
		collected[p.InputIndex] = struct{}{}
	}
	missing := make([]uint32, 0)
	for i := 0; i < expected; i++ {
		if _, ok := collected[uint32(i)]; !ok {
			missing = append(missing, uint32(i))
		}
	}
	return missing
}
