package redislivestore

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/redis/go-redis/v9"
)

// KVStore is a generic key-value store for storing JSON-encoded structs in Redis.
type KVStore[T any] struct {
	rdb    *redis.Client
	prefix string
}

func NewRedisKVStore[T any](rdb *redis.Client, prefix string) *KVStore[T] {
	return &KVStore[T]{rdb: rdb, prefix: prefix}
}

func (s *KVStore[T]) key(id string) string {
	return s.prefix + id
}

func (s *KVStore[T]) Set(ctx context.Context, id string, value *T) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, s.key(id), data, 0).Err()
}

func (s *KVStore[T]) GetMulti(ctx context.Context, ids []string) ([]*T, error) {
	if len(ids) == 0 {
		return []*T{}, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.key(id)
	}
	vals, err := s.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	results := make([]*T, 0, len(ids))
	for _, v := range vals {
		if v == nil {
			results = append(results, nil)
			continue
		}
		var item T
		if err := json.Unmarshal([]byte(v.(string)), &item); err != nil {
			return nil, err
		}
		results = append(results, &item)
	}
	return results, nil
}
