// Package httpapi assembles the edge node's HTTP surface: the blob and
// key-value cache endpoints, health probes and the metrics endpoint.
package httpapi

import (
	"context"
	"net/http"

	"github.com/andres-erbsen/clock"
	"github.com/go-chi/chi/v5"

	"github.com/dmitrijs2005/casedge/internal/logging"
	"github.com/dmitrijs2005/casedge/internal/server/cas"
	"github.com/dmitrijs2005/casedge/internal/server/httpx"
	"github.com/dmitrijs2005/casedge/internal/server/keyvalue"
	"github.com/dmitrijs2005/casedge/internal/server/metrics"
)

// ReadinessCheck reports whether a backing service can take traffic.
type ReadinessCheck struct {
	Name  string
	Check func(context.Context) error
}

type Deps struct {
	CAS      *cas.Handler
	KeyValue *keyvalue.Handler
	// Metrics may be nil, which disables instrumentation and /metrics.
	Metrics   *metrics.Metrics
	Readiness []ReadinessCheck
	Logger    logging.Logger
	Clock     clock.Clock
}

func NewRouter(d Deps) http.Handler {
	if d.Clock == nil {
		d.Clock = clock.New()
	}
	if d.Logger == nil {
		d.Logger = logging.Nop{}
	}

	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(AccessLog(d.Logger, d.Clock))

	instrument := func(route string) func(http.Handler) http.Handler {
		if d.Metrics == nil {
			return func(next http.Handler) http.Handler { return next }
		}
		return d.Metrics.Middleware(route)
	}

	r.Group(func(r chi.Router) {
		r.Use(instrument("cas"))

		r.Get("/api/cache/cas/{id}", d.CAS.Get)
		r.Post("/api/cache/cas/{id}", d.CAS.Save)
	})

	r.Group(func(r chi.Router) {
		r.Use(instrument("keyvalue.get"))

		// Historical clients read with PUT; GET is the same read.
		r.Put("/api/cache/keyvalue/{cas_id}", d.KeyValue.Get)
		r.Get("/api/cache/keyvalue/{cas_id}", d.KeyValue.Get)
	})

	r.Group(func(r chi.Router) {
		r.Use(instrument("keyvalue.put"))

		r.Put("/api/cache/keyvalue", d.KeyValue.Put)
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/readyz", readyHandler(d.Readiness, d.Logger))

	if d.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", d.Metrics.Handler())
	}

	return r
}

func readyHandler(checks []ReadinessCheck, logger logging.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		for _, c := range checks {
			if err := c.Check(r.Context()); err != nil {
				logger.Warn(r.Context(), "readiness check failed", "check", c.Name, "error", err)
				httpx.WriteError(w, http.StatusServiceUnavailable, c.Name+" unavailable")
				return
			}
		}
		httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}
