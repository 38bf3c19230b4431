package badgerdb

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/ark-network/markstr/internal/core/domain"
	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/timshannon/badgerhold/v4"
)

func createDB(dbDir string, logger badger.Logger) (*badgerhold.Store, error) {
	isInMemory := len(dbDir) <= 0

	opts := badger.DefaultOptions(dbDir)
	opts.Logger = logger

	if isInMemory {
		opts.InMemory = true
	} else {
		opts.Compression = options.ZSTD
	}

	db, err := badgerhold.Open(badgerhold.Options{
		Encoder:          badgerhold.DefaultEncode,
		Decoder:          badgerhold.DefaultDecode,
		SequenceBandwith: 100,
		Options:          opts,
	})
	if err != nil {
		return nil, err
	}

	if !isInMemory {
		ticker := time.NewTicker(30 * time.Minute)

		go func() {
			for {
				<-ticker.C
				if err := db.Badger().RunValueLogGC(0.5); err != nil && err != badger.ErrNoRewrite {
					if logger != nil {
						logger.Errorf("%s", err)
					}
				}
			}
		}()
	}

	return db, nil
}

// eventEnvelope tags a serialized event with its type so that it can be
// decoded without guessing.
type eventEnvelope struct {
	Type domain.EventType
	Data json.RawMessage
}

func serializeEvents(events []domain.MarketEvent) (*eventsDTO, error) {
	rawEvents := make([][]byte, 0, len(events))
	for _, event := range events {
		buf, err := serializeEvent(event)
		if err != nil {
			return nil, err
		}
		rawEvents = append(rawEvents, buf)
	}
	return &eventsDTO{rawEvents}, nil
}

func deserializeEvents(rawEvents [][]byte) ([]domain.MarketEvent, error) {
	events := make([]domain.MarketEvent, 0, len(rawEvents))
	for _, buf := range rawEvents {
		event, err := deserializeEvent(buf)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, nil
}

func serializeEvent(event domain.MarketEvent) ([]byte, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return nil, err
	}
	return json.Marshal(eventEnvelope{event.GetType(), data})
}

func deserializeEvent(buf []byte) (domain.MarketEvent, error) {
	var envelope eventEnvelope
	if err := json.Unmarshal(buf, &envelope); err != nil {
		return nil, fmt.Errorf("failed to parse event: %s", err)
	}

	switch envelope.Type {
	case domain.EventTypeMarketCreated:
		var event domain.MarketCreated
		if err := json.Unmarshal(envelope.Data, &event); err != nil {
			return nil, err
		}
		return event, nil
	case domain.EventTypeBetPlaced:
		var event domain.BetPlaced
		if err := json.Unmarshal(envelope.Data, &event); err != nil {
			return nil, err
		}
		return event, nil
	case domain.EventTypeMarketFunded:
		var event domain.MarketFunded
		if err := json.Unmarshal(envelope.Data, &event); err != nil {
			return nil, err
		}
		return event, nil
	case domain.EventTypeMarketSettled:
		var event domain.MarketSettled
		if err := json.Unmarshal(envelope.Data, &event); err != nil {
			return nil, err
		}
		return event, nil
	default:
		return nil, fmt.Errorf("unknown event type %d", envelope.Type)
	}
}
