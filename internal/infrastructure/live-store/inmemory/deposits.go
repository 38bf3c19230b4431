package inmemorylivestore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/ark-network/markstr/internal/core/ports"
)

type depositsStore struct {
	lock     sync.RWMutex
	deposits map[string]map[uint32]ports.PartialDeposit
}

func NewDepositsStore() ports.DepositsStore {
	return &depositsStore{
		deposits: make(map[string]map[uint32]ports.PartialDeposit),
	}
}

func (s *depositsStore) Push(
	_ context.Context, marketId string, partial ports.PartialDeposit,
) error {
	if partial.Tx == nil {
		return fmt.Errorf("missing partial deposit tx")
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	if _, ok := s.deposits[marketId]; !ok {
		s.deposits[marketId] = make(map[uint32]ports.PartialDeposit)
	}
	if _, ok := s.deposits[marketId][partial.InputIndex]; ok {
		return fmt.Errorf(
			"partial deposit for input %d of market %s already pushed",
			partial.InputIndex, marketId,
		)
	}
	s.deposits[marketId][partial.InputIndex] = ports.PartialDeposit{
		Tx:         partial.Tx.Copy(),
		InputIndex: partial.InputIndex,
	}
	return nil
}

func (s *depositsStore) Get(_ context.Context, marketId string) ([]ports.PartialDeposit, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	deposits := make([]ports.PartialDeposit, 0, len(s.deposits[marketId]))
	for _, partial := range s.deposits[marketId] {
		deposits = append(deposits, ports.PartialDeposit{
			Tx:         partial.Tx.Copy(),
			InputIndex: partial.InputIndex,
		})
	}
	sort.Slice(deposits, func(i, j int) bool {
		return deposits[i].InputIndex < deposits[j].InputIndex
	})
	return deposits, nil
}

func (s *depositsStore) Delete(_ context.Context, marketId string) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	delete(s.deposits, marketId)
	return nil
}

func (s *depositsStore) Len(_ context.Context, marketId string) (int, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	return len(s.deposits[marketId]), nil
}
