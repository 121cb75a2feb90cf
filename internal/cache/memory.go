package cache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// memoryEntry wraps a cached value with its own deadline, since
// entries in one store carry different TTLs.
type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// MemoryStore is an in-process Store backed by an expirable LRU.
// Used when no Redis is configured, and as the test backend.
type MemoryStore struct {
	lru *expirable.LRU[string, memoryEntry]
}

// DefaultMemorySize is the default entry capacity.
const DefaultMemorySize = 4096

// NewMemoryStore creates an in-memory cache store. The LRU's own TTL
// acts as a backstop at the longest family TTL; per-entry deadlines
// enforce the real expiry.
func NewMemoryStore(size int) *MemoryStore {
	if size <= 0 {
		size = DefaultMemorySize
	}
	return &MemoryStore{
		lru: expirable.NewLRU[string, memoryEntry](size, nil, MetadataTTL),
	}
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	entry, ok := s.lru.Get(key)
	if !ok {
		return nil, false, nil
	}
	if time.Now().After(entry.expiresAt) {
		s.lru.Remove(key)
		return nil, false, nil
	}
	return entry.value, true, nil
}

// Set implements Store.
func (s *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.lru.Add(key, memoryEntry{
		value:     value,
		expiresAt: time.Now().Add(ttl),
	})
	return nil
}

// Delete implements Store.
func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.lru.Remove(key)
	return nil
}

// Close implements Store.
func (s *MemoryStore) Close() error {
	s.lru.Purge()
	return nil
}

// Len returns the current entry count.
func (s *MemoryStore) Len() int {
	return s.lru.Len()
}

var _ Store = (*MemoryStore)(nil)
