package domain

import "context"

type MarketEventRepository interface {
	Save(ctx context.Context, id string, events ...MarketEvent) (*Market, error)
	Load(ctx context.Context, id string) (*Market, error)
	RegisterEventsHandler(func(*Market))
	Close()
}

type MarketRepository interface {
	AddOrUpdateMarket(ctx context.Context, market Market) error
	GetMarketWithId(ctx context.Context, id string) (*Market, error)
	GetOpenMarkets(ctx context.Context) ([]Market, error)
	GetMarketsWithOracle(ctx context.Context, oraclePubkey string) ([]Market, error)
	// GetUnsettledMarketsBefore returns the unsettled markets whose escape
	// timestamp is not after the given one.
	GetUnsettledMarketsBefore(ctx context.Context, timestamp uint64) ([]Market, error)
	Close()
}
