package metrics

import (
	"context"
	"sync"
	"time"
)

type timingsKey struct{}

// Timings accumulates the external calls made while serving one request.
type Timings struct {
	mu          sync.Mutex
	cacheCalls  int
	cacheTime   time.Duration
	originCalls int
	originTime  time.Duration
}

type TimingSnapshot struct {
	CacheCalls  int
	CacheTime   time.Duration
	OriginCalls int
	OriginTime  time.Duration
}

func WithTimings(ctx context.Context) (context.Context, *Timings) {
	t := &Timings{}
	return context.WithValue(ctx, timingsKey{}, t), t
}

// TimingsFromContext returns nil outside an instrumented request; the add
// methods accept a nil receiver.
func TimingsFromContext(ctx context.Context) *Timings {
	t, _ := ctx.Value(timingsKey{}).(*Timings)
	return t
}

func (t *Timings) addCache(d time.Duration) {
	if t == nil {
		return
	}
	t.mu.Lock()
	t.cacheCalls++
	t.cacheTime += d
	t.mu.Unlock()
}

func (t *Timings) addOrigin(d time.Duration) {
	if t == nil {
		return
	}
	t.mu.Lock()
	t.originCalls++
	t.originTime += d
	t.mu.Unlock()
}

func (t *Timings) Snapshot() TimingSnapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return TimingSnapshot{
		CacheCalls:  t.cacheCalls,
		CacheTime:   t.cacheTime,
		OriginCalls: t.originCalls,
		OriginTime:  t.originTime,
	}
}
