package redislivestore

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"

	"github.com/ark-network/markstr/internal/core/ports"
	"github.com/btcsuite/btcd/wire"
	"github.com/redis/go-redis/v9"
)

const depositsStorePrefix = "deposit:"

type depositDTO struct {
	Tx         string
	InputIndex uint32
}

type depositsStore struct {
	rdb *redis.Client
}

func NewDepositsStore(rdb *redis.Client) ports.DepositsStore {
	return &depositsStore{rdb}
}

func (s *depositsStore) Push(
	ctx context.Context, marketId string, partial ports.PartialDeposit,
) error {
	if partial.Tx == nil {
		return fmt.Errorf("missing partial deposit tx")
	}
	var buf bytes.Buffer
	if err := partial.Tx.Serialize(&buf); err != nil {
		return fmt.Errorf("failed to serialize partial deposit: %s", err)
	}

	index := strconv.FormatUint(uint64(partial.InputIndex), 10)
	added, err := s.rdb.SAdd(ctx, indexesKey(marketId), index).Result()
	if err != nil {
		return err
	}
	if added == 0 {
		return fmt.Errorf(
			"partial deposit for input %d of market %s already pushed",
			partial.InputIndex, marketId,
		)
	}

	dto := &depositDTO{
		Tx:         hex.EncodeToString(buf.Bytes()),
		InputIndex: partial.InputIndex,
	}
	if err := s.kv(marketId).Set(ctx, index, dto); err != nil {
		s.rdb.SRem(ctx, indexesKey(marketId), index)
		return err
	}
	return nil
}

func (s *depositsStore) Get(ctx context.Context, marketId string) ([]ports.PartialDeposit, error) {
	indexes, err := s.rdb.SMembers(ctx, indexesKey(marketId)).Result()
	if err != nil {
		return nil, err
	}
	dtos, err := s.kv(marketId).GetMulti(ctx, indexes)
	if err != nil {
		return nil, err
	}

	deposits := make([]ports.PartialDeposit, 0, len(dtos))
	for _, dto := range dtos {
		if dto == nil {
			continue
		}
		buf, err := hex.DecodeString(dto.Tx)
		if err != nil {
			return nil, fmt.Errorf("failed to decode partial deposit: %s", err)
		}
		tx := wire.NewMsgTx(2)
		if err := tx.Deserialize(bytes.NewReader(buf)); err != nil {
			return nil, fmt.Errorf("failed to parse partial deposit: %s", err)
		}
		deposits = append(deposits, ports.PartialDeposit{
			Tx:         tx,
			InputIndex: dto.InputIndex,
		})
	}
	sort.Slice(deposits, func(i, j int) bool {
		return deposits[i].InputIndex < deposits[j].InputIndex
	})
	return deposits, nil
}

func (s *depositsStore) Delete(ctx context.Context, marketId string) error {
	indexes, err := s.rdb.SMembers(ctx, indexesKey(marketId)).Result()
	if err != nil {
		return err
	}

	kv := s.kv(marketId)
	pipe := s.rdb.TxPipeline()
	for _, index := range indexes {
		pipe.Del(ctx, kv.key(index))
	}
	pipe.Del(ctx, indexesKey(marketId))
	_, err = pipe.Exec(ctx)
	return err
}

func (s *depositsStore) Len(ctx context.Context, marketId string) (int, error) {
	count, err := s.rdb.SCard(ctx, indexesKey(marketId)).Result()
	if err != nil {
		return -1, err
	}
	return int(count), nil
}

func (s *depositsStore) kv(marketId string) *KVStore[depositDTO] {
	return NewRedisKVStore[depositDTO](s.rdb, fmt.Sprintf("%s%s:", depositsStorePrefix, marketId))
}

func indexesKey(marketId string) string {
	return fmt.Sprintf("%s%s:indexes", depositsStorePrefix, marketId)
}
