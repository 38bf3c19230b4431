package redislivestore

import (
	"github.com/redis/go-redis/v9"

	"github.com/ark-network/markstr/internal/core/ports"
)

func NewLiveStore(rdb *redis.Client) ports.LiveStore {
	return &redisLiveStore{
		rdb:           rdb,
		depositsStore: NewDepositsStore(rdb),
	}
}

func (s *redisLiveStore) Deposits() ports.DepositsStore { return s.depositsStore }

func (s *redisLiveStore) Close() {
	// nolint
	s.rdb.Close()
}

type redisLiveStore struct {
	rdb           *redis.Client
	depositsStore ports.DepositsStore
}
