package db

import (
	"fmt"

	"github.com/ark-network/markstr/internal/core/domain"
	"github.com/ark-network/markstr/internal/core/ports"
	badgerdb "github.com/ark-network/markstr/internal/infrastructure/db/badger"
)

var (
	eventStoreTypes = map[string]func(...interface{}) (domain.MarketEventRepository, error){
		"badger": badgerdb.NewMarketEventRepository,
	}
	marketStoreTypes = map[string]func(...interface{}) (domain.MarketRepository, error){
		"badger": badgerdb.NewMarketRepository,
	}
)

type ServiceConfig struct {
	EventStoreType string
	DataStoreType  string

	EventStoreConfig []interface{}
	DataStoreConfig  []interface{}
}

type service struct {
	eventStore  domain.MarketEventRepository
	marketStore domain.MarketRepository
}

func NewService(config ServiceConfig) (ports.RepoManager, error) {
	eventStoreFactory, ok := eventStoreTypes[config.EventStoreType]
	if !ok {
		return nil, fmt.Errorf("invalid event store type: %s", config.EventStoreType)
	}
	marketStoreFactory, ok := marketStoreTypes[config.DataStoreType]
	if !ok {
		return nil, fmt.Errorf("invalid data store type: %s", config.DataStoreType)
	}

	eventStore, err := eventStoreFactory(config.EventStoreConfig...)
	if err != nil {
		return nil, fmt.Errorf("failed to create event store: %w", err)
	}
	marketStore, err := marketStoreFactory(config.DataStoreConfig...)
	if err != nil {
		eventStore.Close()
		return nil, fmt.Errorf("failed to create market store: %w", err)
	}

	return &service{
		eventStore:  eventStore,
		marketStore: marketStore,
	}, nil
}

func (s *service) RegisterEventsHandler(handler func(market *domain.Market)) {
	s.eventStore.RegisterEventsHandler(handler)
}

func (s *service) Events() domain.MarketEventRepository {
	return s.eventStore
}

func (s *service) Markets() domain.MarketRepository {
	return s.marketStore
}

func (s *service) Close() {
	s.eventStore.Close()
	s.marketStore.Close()
}
