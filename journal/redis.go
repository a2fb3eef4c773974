package journal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mintkit/sdk-go/types"
)

// RedisStore implements Store on Redis, one JSON value per signature.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisStore creates a store backed by Redis. Records expire after ttl (0 keeps them).
func NewRedisStore(addr string, db int, prefix string, ttl time.Duration) *RedisStore {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})
	return NewRedisStoreWithClient(rdb, prefix, ttl)
}

// NewRedisStoreWithClient wraps an existing client.
func NewRedisStoreWithClient(client *redis.Client, prefix string, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, prefix: prefix, ttl: ttl}
}

func (s *RedisStore) key(sig types.Signature) string {
	return s.prefix + sig.String()
}

func (s *RedisStore) Put(ctx context.Context, rec Record) error {
	body, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode journal record: %w", err)
	}
	if err := s.client.Set(ctx, s.key(rec.Signature), body, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis journal put: %w", err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, sig types.Signature) (Record, error) {
	body, err := s.client.Get(ctx, s.key(sig)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Record{}, types.ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("redis journal get: %w", err)
	}
	var rec Record
	if err := json.Unmarshal(body, &rec); err != nil {
		return Record{}, fmt.Errorf("decode journal record: %w", err)
	}
	return rec, nil
}

// Close releases the Redis connection pool.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
