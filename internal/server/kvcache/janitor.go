package kvcache

import (
	"context"
	"time"

	"github.com/andres-erbsen/clock"

	"github.com/dmitrijs2005/casedge/internal/logging"
)

type Expirer interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

// Janitor periodically sweeps expired entries out of a shared store.
type Janitor struct {
	store    Expirer
	interval time.Duration
	clock    clock.Clock
	logger   logging.Logger
}

func NewJanitor(store Expirer, interval time.Duration, c clock.Clock, logger logging.Logger) *Janitor {
	if c == nil {
		c = clock.New()
	}
	return &Janitor{store: store, interval: interval, clock: c, logger: logger.With("module", "janitor")}
}

// Run sweeps every interval until ctx is done.
func (j *Janitor) Run(ctx context.Context) {
	ticker := j.clock.Ticker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := j.store.DeleteExpired(ctx)
			if err != nil {
				j.logger.Warn(ctx, "sweep expired cache entries", "error", err)
				continue
			}
			if n > 0 {
				j.logger.Debug(ctx, "swept expired cache entries", "count", n)
			}
		}
	}
}
