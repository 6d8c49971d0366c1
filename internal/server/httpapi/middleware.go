package httpapi

import (
	"net/http"

	"github.com/andres-erbsen/clock"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/dmitrijs2005/casedge/internal/common"
	"github.com/dmitrijs2005/casedge/internal/logging"
)

// RequestID carries an inbound x-request-id into the request context so
// origin calls forward it. Requests without one are not given one there.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := r.Header.Get(common.RequestIDHeaderName); id != "" {
			r = r.WithContext(common.WithRequestID(r.Context(), id))
		}
		next.ServeHTTP(w, r)
	})
}

// AccessLog writes one line per completed request. The logged id is the
// inbound x-request-id, or a fresh uuid that only ever appears in logs.
func AccessLog(logger logging.Logger, clk clock.Clock) func(http.Handler) http.Handler {
	logger = logger.With("module", "http")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := clk.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			id := common.RequestIDFromContext(r.Context())
			if id == "" {
				id = uuid.NewString()
			}
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}

			route := r.URL.Path
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				route = rctx.RoutePattern()
			}

			logger.Info(r.Context(), "request",
				"method", r.Method,
				"route", route,
				"status", status,
				"bytes", ww.BytesWritten(),
				"duration_ms", clk.Now().Sub(start).Milliseconds(),
				"request_id", id,
			)
		})
	}
}
