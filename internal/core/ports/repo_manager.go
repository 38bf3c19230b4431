package ports

import "github.com/ark-network/markstr/internal/core/domain"

type RepoManager interface {
	Events() domain.MarketEventRepository
	Markets() domain.MarketRepository
	RegisterEventsHandler(func(*domain.Market))
	Close()
}
