package badgerdb

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/ark-network/markstr/internal/core/domain"
	"github.com/dgraph-io/badger/v4"
	"github.com/timshannon/badgerhold/v4"
)

const eventStoreDir = "market-events"

type eventsDTO struct {
	Events [][]byte
}

type eventRepository struct {
	store     *badgerhold.Store
	lock      *sync.Mutex
	saveLock  sync.Mutex
	chUpdates chan *domain.Market
	handler   func(market *domain.Market)
	done      chan struct{}
	wg        sync.WaitGroup
}

func NewMarketEventRepository(config ...interface{}) (domain.MarketEventRepository, error) {
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
		dir = filepath.Join(baseDir, eventStoreDir)
	}
	store, err := createDB(dir, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open market events store: %s", err)
	}
	repo := &eventRepository{
		store:     store,
		lock:      &sync.Mutex{},
		chUpdates: make(chan *domain.Market),
		done:      make(chan struct{}),
	}
	go repo.listen()
	return repo, nil
}

// Save appends the given events to those already stored for the market and
// returns the market rebuilt from the whole history.
func (r *eventRepository) Save(
	ctx context.Context, id string, events ...domain.MarketEvent,
) (*domain.Market, error) {
	r.saveLock.Lock()
	allEvents, err := r.get(ctx, id)
	if err != nil {
		r.saveLock.Unlock()
		return nil, err
	}

	allEvents = append(allEvents, events...)
	if err := r.upsert(ctx, id, allEvents); err != nil {
		r.saveLock.Unlock()
		return nil, err
	}
	r.saveLock.Unlock()

	r.wg.Add(1)
	go r.publishEvents(allEvents)
	return domain.NewMarketFromEvents(allEvents), nil
}

func (r *eventRepository) Load(
	ctx context.Context, id string,
) (*domain.Market, error) {
	events, err := r.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(events) <= 0 {
		return nil, fmt.Errorf("%w: %s", domain.ErrMarketNotFound, id)
	}
	return domain.NewMarketFromEvents(events), nil
}

func (r *eventRepository) RegisterEventsHandler(
	handler func(market *domain.Market),
) {
	r.lock.Lock()
	defer r.lock.Unlock()

	r.handler = handler
}

func (r *eventRepository) Close() {
	close(r.done)
	r.wg.Wait()
	close(r.chUpdates)
	r.store.Close()
}

func (r *eventRepository) get(
	ctx context.Context, id string,
) ([]domain.MarketEvent, error) {
	dto := eventsDTO{}
	var err error
	if ctx.Value("tx") != nil {
		tx := ctx.Value("tx").(*badger.Txn)
		err = r.store.TxGet(tx, id, &dto)
	} else {
		err = r.store.Get(id, &dto)
	}
	if err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get events with id %s: %s", id, err)
	}

	return deserializeEvents(dto.Events)
}

func (r *eventRepository) upsert(
	ctx context.Context, id string, events []domain.MarketEvent,
) error {
	buf, err := serializeEvents(events)
	if err != nil {
		return err
	}
	if ctx.Value("tx") != nil {
		tx := ctx.Value("tx").(*badger.Txn)
		err = r.store.TxUpsert(tx, id, buf)
	} else {
		err = r.store.Upsert(id, buf)
	}
	if err != nil {
		return fmt.Errorf("failed to upsert events with id %s: %s", id, err)
	}
	return nil
}

func (r *eventRepository) listen() {
	for {
		select {
		case <-r.done:
			return
		case market := <-r.chUpdates:
			r.runHandler(market)
		}
	}
}

func (r *eventRepository) publishEvents(events []domain.MarketEvent) {
	defer r.wg.Done()
	market := domain.NewMarketFromEvents(events)
	select {
	case <-r.done:
		return
	case r.chUpdates <- market:
	}
}

func (r *eventRepository) runHandler(market *domain.Market) {
	r.lock.Lock()
	defer r.lock.Unlock()

	if r.handler == nil {
		return
	}
	r.handler(market)
}
