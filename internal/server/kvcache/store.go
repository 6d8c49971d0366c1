// Package kvcache is the hot tier: a fast key/value cache with per-entry
// TTLs. It holds memoized authorization results, key-value responses and
// small blobs, and is never the source of truth for any of them.
package kvcache

import (
	"context"
	"time"
)

// Store is a key/value cache. A ttl of zero means the entry does not expire
// on its own. Single-key operations are atomic; nothing else is promised.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error
}
