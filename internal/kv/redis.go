package kv

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps each namespace in one hash with a sliding TTL.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{
		client: client,
		prefix: "console:kv:",
		ttl:    ttl,
	}
}

func (r *RedisStore) key(namespace string) string {
	return r.prefix + namespace
}

func (r *RedisStore) Get(ctx context.Context, namespace, key string) (string, bool, error) {
	if err := checkNamespace(namespace); err != nil {
		return "", false, err
	}

	val, err := r.client.HGet(ctx, r.key(namespace), key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("kv: redis hget: %w", err)
	}
	return val, true, nil
}

func (r *RedisStore) Set(ctx context.Context, namespace, key, value string) error {
	if err := checkNamespace(namespace); err != nil {
		return err
	}

	pipe := r.client.TxPipeline()
	pipe.HSet(ctx, r.key(namespace), key, value)
	if r.ttl > 0 {
		pipe.Expire(ctx, r.key(namespace), r.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("kv: redis hset: %w", err)
	}
	return nil
}

func (r *RedisStore) Remove(ctx context.Context, namespace, key string) error {
	if err := checkNamespace(namespace); err != nil {
		return err
	}
	if err := r.client.HDel(ctx, r.key(namespace), key).Err(); err != nil {
		return fmt.Errorf("kv: redis hdel: %w", err)
	}
	return nil
}

func (r *RedisStore) Clear(ctx context.Context, namespace string) error {
	if err := checkNamespace(namespace); err != nil {
		return err
	}
	if err := r.client.Del(ctx, r.key(namespace)).Err(); err != nil {
		return fmt.Errorf("kv: redis del: %w", err)
	}
	return nil
}
