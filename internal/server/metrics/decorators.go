package metrics

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/dmitrijs2005/casedge/internal/server/kvcache"
	"github.com/dmitrijs2005/casedge/internal/server/origin"
)

type instrumentedStore struct {
	next kvcache.Store
	m    *Metrics
}

// InstrumentStore wraps s so every call is timed.
func (m *Metrics) InstrumentStore(s kvcache.Store) kvcache.Store {
	return &instrumentedStore{next: s, m: m}
}

func (s *instrumentedStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	start := s.m.clock.Now()
	v, ok, err := s.next.Get(ctx, key)
	result := "hit"
	switch {
	case err != nil:
		result = "error"
	case !ok:
		result = "miss"
	}
	s.m.observeCache(ctx, "get", result, start)
	return v, ok, err
}

func (s *instrumentedStore) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	start := s.m.clock.Now()
	err := s.next.Put(ctx, key, value, ttl)
	result := "ok"
	if err != nil {
		result = "error"
	}
	s.m.observeCache(ctx, "put", result, start)
	return err
}

func (m *Metrics) observeCache(ctx context.Context, op, result string, start time.Time) {
	d := m.clock.Now().Sub(start)
	m.cacheOps.WithLabelValues(op, result).Observe(d.Seconds())
	TimingsFromContext(ctx).addCache(d)
}

type instrumentedOrigin struct {
	next origin.Caller
	m    *Metrics
}

// InstrumentOrigin wraps c so every origin call is timed.
func (m *Metrics) InstrumentOrigin(c origin.Caller) origin.Caller {
	return &instrumentedOrigin{next: c, m: m}
}

func (o *instrumentedOrigin) Call(ctx context.Context, method, path string, query url.Values, credential string) (*http.Response, error) {
	start := o.m.clock.Now()
	resp, err := o.next.Call(ctx, method, path, query, credential)
	d := o.m.clock.Now().Sub(start)

	status := "error"
	if err == nil {
		status = strconv.Itoa(resp.StatusCode)
	}
	o.m.originCalls.WithLabelValues(path, status).Observe(d.Seconds())
	TimingsFromContext(ctx).addOrigin(d)
	return resp, err
}
