package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	dexerrors "github.com/uidex/uidex/internal/errors"
)

// RedisStore is a Store backed by Redis. TTLs are enforced by Redis
// itself via SET EX.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore connects to Redis and verifies the connection with a
// short ping so a misconfigured address fails at startup, not on the
// first request.
func NewRedisStore(ctx context.Context, addr, password string, db int) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, dexerrors.New(dexerrors.ErrCodeCacheUnavailable,
			"cannot reach redis at "+addr, err).
			WithSuggestion("Check the cache address, or run without a cache backend.")
	}

	return &RedisStore{client: client}, nil
}

// Get implements Store.
func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	value, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, dexerrors.New(dexerrors.ErrCodeCacheUnavailable,
			"redis get failed", err).WithDetail("key", key)
	}
	return value, true, nil
}

// Set implements Store.
func (s *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return dexerrors.New(dexerrors.ErrCodeCacheUnavailable,
			"redis set failed", err).WithDetail("key", key)
	}
	return nil
}

// Delete implements Store.
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return dexerrors.New(dexerrors.ErrCodeCacheUnavailable,
			"redis delete failed", err).WithDetail("key", key)
	}
	return nil
}

// Close implements Store.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

var _ Store = (*RedisStore)(nil)
