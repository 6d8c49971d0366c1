package kvcache

import (
	"context"
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto"
)

// MemoryStore is a process-local Store backed by ristretto. Entries cost
// their length in bytes; once maxBytes is reached ristretto evicts.
type MemoryStore struct {
	cache *ristretto.Cache
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore(maxBytes int64) (*MemoryStore, error) {
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 1e6,
		MaxCost:     maxBytes,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("create memory cache: %w", err)
	}
	return &MemoryStore{cache: cache}, nil
}

func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := s.cache.Get(key)
	if !ok {
		return nil, false, nil
	}
	b, ok := v.([]byte)
	if !ok {
		return nil, false, nil
	}
	return b, true, nil
}

// Put stores a copy of value. Writes are applied before Put returns so a
// following Get observes them; ristretto may still refuse an entry that is
// larger than the whole budget, which is not reported as an error.
func (s *MemoryStore) Put(_ context.Context, key string, value []byte, ttl time.Duration) error {
	b := append([]byte(nil), value...)
	s.cache.SetWithTTL(key, b, int64(len(b)), ttl)
	s.cache.Wait()
	return nil
}

func (s *MemoryStore) Close() {
	s.cache.Close()
}
