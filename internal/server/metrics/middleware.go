package metrics

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5/middleware"
)

// Middleware times every request routed through it under route.
func (m *Metrics) Middleware(route string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := m.clock.Now()
			ctx, timings := WithTimings(r.Context())
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r.WithContext(ctx))

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			elapsed := m.clock.Now().Sub(start)
			snap := timings.Snapshot()

			m.requests.WithLabelValues(route, r.Method, strconv.Itoa(status)).Inc()
			m.requestDuration.WithLabelValues(route, r.Method).Observe(elapsed.Seconds())
			m.requestCache.WithLabelValues(route).Observe(snap.CacheTime.Seconds())
			m.requestOrigin.WithLabelValues(route).Observe(snap.OriginTime.Seconds())

			if m.sampled() {
				m.logger.Info(ctx, "request timing",
					"route", route,
					"method", r.Method,
					"status", status,
					"duration_ms", elapsed.Milliseconds(),
					"cache_calls", snap.CacheCalls,
					"cache_ms", snap.CacheTime.Milliseconds(),
					"origin_calls", snap.OriginCalls,
					"origin_ms", snap.OriginTime.Milliseconds(),
				)
			}
		})
	}
}
