package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"
)

// Loader implements the cache-aside pattern over a Store.
//
// Concurrent callers asking for the same cold key are coalesced into a
// single upstream fetch; all of them share the one outcome. Fetch
// failures are never cached. Store errors degrade to a direct fetch
// with a warning log; the caller never sees them.
type Loader struct {
	store  Store
	group  singleflight.Group
	logger *slog.Logger
}

// NewLoader creates a Loader. A nil store disables caching entirely:
// every call goes upstream (still single-flighted).
func NewLoader(store Store, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{store: store, logger: logger}
}

// GetOrFetch returns the cached value for key, or runs fetch and
// caches the result for ttl. The fetch runs at most once per key at a
// time, regardless of how many callers are waiting on it.
func (l *Loader) GetOrFetch(ctx context.Context, key string, ttl time.Duration, fetch func(ctx context.Context) ([]byte, error)) ([]byte, error) {
	if value, ok := l.cacheGet(ctx, key); ok {
		return value, nil
	}

	ch := l.group.DoChan(key, func() (any, error) {
		// Re-check inside the flight: a previous winner may have
		// populated the cache while this caller queued.
		if value, ok := l.cacheGet(ctx, key); ok {
			return value, nil
		}

		value, err := fetch(ctx)
		if err != nil {
			return nil, err
		}

		l.cacheSet(ctx, key, value, ttl)
		return value, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]byte), nil
	}
}

// Invalidate drops a key from the cache.
func (l *Loader) Invalidate(ctx context.Context, key string) {
	if l.store == nil {
		return
	}
	if err := l.store.Delete(ctx, key); err != nil {
		l.logger.Warn("cache delete failed",
			slog.String("key", key),
			slog.String("error", err.Error()))
	}
}

// cacheGet reads the store, absorbing backend errors into a warning.
func (l *Loader) cacheGet(ctx context.Context, key string) ([]byte, bool) {
	if l.store == nil {
		return nil, false
	}

	value, ok, err := l.store.Get(ctx, key)
	if err != nil {
		l.logger.Warn("cache read failed, fetching upstream",
			slog.String("key", key),
			slog.String("error", err.Error()))
		return nil, false
	}
	return value, ok
}

// cacheSet writes the store, absorbing backend errors into a warning.
func (l *Loader) cacheSet(ctx context.Context, key string, value []byte, ttl time.Duration) {
	if l.store == nil {
		return
	}

	if err := l.store.Set(ctx, key, value, ttl); err != nil {
		l.logger.Warn("cache write failed, result not cached",
			slog.String("key", key),
			slog.String("error", err.Error()))
	}
}

// GetOrFetchJSON is GetOrFetch for typed values, marshaling through
// JSON on the way in and out of the byte store.
func GetOrFetchJSON[T any](ctx context.Context, l *Loader, key string, ttl time.Duration, fetch func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	data, err := l.GetOrFetch(ctx, key, ttl, func(ctx context.Context) ([]byte, error) {
		value, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		return json.Marshal(value)
	})
	if err != nil {
		return zero, err
	}

	var value T
	if err := json.Unmarshal(data, &value); err != nil {
		return zero, err
	}
	return value, nil
}
