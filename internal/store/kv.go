package store

import (
	"context"
	"errors"

	"github.com/go-redis/redis/v8"
)

// ErrKeyMiss indicates the key is not present in the KV store.
var ErrKeyMiss = errors.New("key miss")

// ErrConflict indicates an optimistic transaction lost against a concurrent
// writer and none of its writes were applied.
var ErrConflict = errors.New("snapshot modified concurrently, retry")

// KVStore abstracts the key-value substrate the local backend persists
// collection snapshots into (Redis in production, an in-memory fake in unit
// tests).
type KVStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Del(ctx context.Context, key string) error
	// Update runs fn as one optimistic read-modify-write over keys. Reads go
	// through the transaction, writes are queued and applied atomically at
	// the end. If another writer touches any of the keys in between, nothing
	// is applied and ErrConflict is returned.
	Update(ctx context.Context, keys []string, fn func(tx KVTx) error) error
}

// KVTx is the view of the store inside an Update transaction.
type KVTx interface {
	Get(key string) (string, error)
	Set(key, value string)
}

// RedisKV is the go-redis backed KVStore implementation.
type RedisKV struct {
	client *redis.Client
}

func NewRedisKV(client *redis.Client) *RedisKV {
	return &RedisKV{client: client}
}

func (r *RedisKV) Get(ctx context.Context, key string) (string, error) {
	val, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return "", ErrKeyMiss
		}
		return "", err
	}
	return val, nil
}

func (r *RedisKV) Set(ctx context.Context, key, value string) error {
	return r.client.Set(ctx, key, value, 0).Err()
}

func (r *RedisKV) Del(ctx context.Context, key string) error {
	return r.client.Del(ctx, key).Err()
}

func (r *RedisKV) Update(ctx context.Context, keys []string, fn func(tx KVTx) error) error {
	err := r.client.Watch(ctx, func(tx *redis.Tx) error {
		view := &redisTx{ctx: ctx, tx: tx, writes: map[string]string{}}
		if err := fn(view); err != nil {
			return err
		}
		if len(view.writes) == 0 {
			return nil
		}
		_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			for k, v := range view.writes {
				pipe.Set(ctx, k, v, 0)
			}
			return nil
		})
		return err
	}, keys...)
	if err == redis.TxFailedErr {
		return ErrConflict
	}
	return err
}

type redisTx struct {
	ctx    context.Context
	tx     *redis.Tx
	writes map[string]string
}

func (t *redisTx) Get(key string) (string, error) {
	// Reads see queued writes from the same transaction first.
	if v, ok := t.writes[key]; ok {
		return v, nil
	}
	val, err := t.tx.Get(t.ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return "", ErrKeyMiss
		}
		return "", err
	}
	return val, nil
}

func (t *redisTx) Set(key, value string) {
	t.writes[key] = value
}
