package testutil

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/andres-erbsen/clock"
)

type memEntry struct {
	value     []byte
	expiresAt time.Time
}

// MemStore is a hot cache whose expiry follows the supplied clock, so TTL
// behaviour can be driven from a clock.Mock.
type MemStore struct {
	clock clock.Clock

	mu      sync.Mutex
	entries map[string]memEntry
	gets    int
	puts    []string
	ttls    map[string]time.Duration

	// FailPuts makes every Put return an error.
	FailPuts bool
}

func NewMemStore(c clock.Clock) *MemStore {
	if c == nil {
		c = clock.New()
	}
	return &MemStore{clock: c, entries: map[string]memEntry{}, ttls: map[string]time.Duration{}}
}

func (s *MemStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gets++

	e, ok := s.entries[key]
	if !ok {
		return nil, false, nil
	}
	if !e.expiresAt.IsZero() && !s.clock.Now().Before(e.expiresAt) {
		delete(s.entries, key)
		return nil, false, nil
	}
	return append([]byte(nil), e.value...), true, nil
}

func (s *MemStore) Put(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.puts = append(s.puts, key)
	if s.FailPuts {
		return errors.New("store unavailable")
	}

	e := memEntry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		e.expiresAt = s.clock.Now().Add(ttl)
	}
	s.entries[key] = e
	s.ttls[key] = ttl
	return nil
}

// Puts returns every key passed to Put, in order.
func (s *MemStore) Puts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.puts...)
}

func (s *MemStore) Gets() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gets
}

// TTL returns the ttl of the last Put for key.
func (s *MemStore) TTL(key string) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ttls[key]
}

func (s *MemStore) Has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.entries[key]
	return ok
}
