package badgerdb

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/ark-network/markstr/internal/core/domain"
	"github.com/dgraph-io/badger/v4"
	"github.com/timshannon/badgerhold/v4"
)

const marketStoreDir = "markets"

type marketRepository struct {
	store *badgerhold.Store
}

func NewMarketRepository(config ...interface{}) (domain.MarketRepository, error) {
	if len(config) != 2 {
		return nil, fmt.Errorf("invalid config")
	}
	baseDir, ok := config[0].(string)
	if !ok {
		return nil, fmt.Errorf("invalid base directory")
	}
	var logger badger.Logger
	if config[1] != nil {
		logger, ok = config[1].(badger.Logger)
		if !ok {
			return nil, fmt.Errorf("invalid logger")
		}
	}

	var dir string
	if len(baseDir) > 0 {
		dir = filepath.Join(baseDir, marketStoreDir)
	}
	store, err := createDB(dir, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open market store: %s", err)
	}

	return &marketRepository{store}, nil
}

func (r *marketRepository) AddOrUpdateMarket(
	ctx context.Context, market domain.Market,
) error {
	return r.addOrUpdateMarket(ctx, market)
}

func (r *marketRepository) GetMarketWithId(
	ctx context.Context, id string,
) (*domain.Market, error) {
	query := badgerhold.Where("Id").Eq(id)
	markets, err := r.findMarket(ctx, query)
	if err != nil {
		return nil, err
	}
	if len(markets) <= 0 {
		return nil, fmt.Errorf("%w: %s", domain.ErrMarketNotFound, id)
	}
	market := &markets[0]
	return market, nil
}

func (r *marketRepository) GetOpenMarkets(ctx context.Context) ([]domain.Market, error) {
	query := badgerhold.Where("Settled").Eq(false)
	return r.findMarket(ctx, query)
}

func (r *marketRepository) GetMarketsWithOracle(
	ctx context.Context, oraclePubkey string,
) ([]domain.Market, error) {
	query := badgerhold.Where("OraclePubkey").Eq(oraclePubkey)
	return r.findMarket(ctx, query)
}

func (r *marketRepository) GetUnsettledMarketsBefore(
	ctx context.Context, timestamp uint64,
) ([]domain.Market, error) {
	query := badgerhold.Where("Settled").Eq(false).
		And("SettlementTimestamp").Le(timestamp)
	markets, err := r.findMarket(ctx, query)
	if err != nil {
		return nil, err
	}

	escapable := make([]domain.Market, 0, len(markets))
	for _, market := range markets {
		if market.EscapeTimestamp() <= timestamp {
			escapable = append(escapable, market)
		}
	}
	return escapable, nil
}

func (r *marketRepository) Close() {
	r.store.Close()
}

func (r *marketRepository) findMarket(
	ctx context.Context, query *badgerhold.Query,
) ([]domain.Market, error) {
	var markets []domain.Market
	var err error

	if ctx.Value("tx") != nil {
		tx := ctx.Value("tx").(*badger.Txn)
		err = r.store.TxFind(tx, &markets, query)
	} else {
		err = r.store.Find(&markets, query)
	}

	return markets, err
}

func (r *marketRepository) addOrUpdateMarket(
	ctx context.Context, market domain.Market,
) (err error) {
	if ctx.Value("tx") != nil {
		tx := ctx.Value("tx").(*badger.Txn)
		err = r.store.TxUpsert(tx, market.Id, market)
	} else {
		err = r.store.Upsert(market.Id, market)
	}
	return
}
