package inmemorylivestore

import (
	"github.com/ark-network/markstr/internal/core/ports"
)

func NewLiveStore() ports.LiveStore {
	return &inMemoryLiveStore{
		depositsStore: NewDepositsStore(),
	}
}

func (s *inMemoryLiveStore) Deposits() ports.DepositsStore { return s.depositsStore }

func (s *inMemoryLiveStore) Close() {}

type inMemoryLiveStore struct {
	depositsStore ports.DepositsStore
}
