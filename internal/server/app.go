// Package server wires the edge cache together: configuration, the object
// store, origin client, hot and durable stores, the HTTP surface, and the
// background janitor. Run blocks until SIGINT/SIGTERM and then drains.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/andres-erbsen/clock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/dmitrijs2005/casedge/internal/logging"
	"github.com/dmitrijs2005/casedge/internal/server/authz"
	"github.com/dmitrijs2005/casedge/internal/server/cas"
	"github.com/dmitrijs2005/casedge/internal/server/config"
	"github.com/dmitrijs2005/casedge/internal/server/httpapi"
	"github.com/dmitrijs2005/casedge/internal/server/keyvalue"
	"github.com/dmitrijs2005/casedge/internal/server/kvcache"
	"github.com/dmitrijs2005/casedge/internal/server/metrics"
	"github.com/dmitrijs2005/casedge/internal/server/objectstore"
	"github.com/dmitrijs2005/casedge/internal/server/origin"
	"github.com/dmitrijs2005/casedge/internal/server/repositories/repomanager"
)

type App struct {
	config  *config.Config
	logger  logging.Logger
	clock   clock.Clock
	db      *sql.DB
	memory  *kvcache.MemoryStore
	janitor *kvcache.Janitor
	server  *httpapi.Server
}

// outboundTimeout bounds a single origin call. Object store bodies stream
// without an overall deadline.
const outboundTimeout = 30 * time.Second

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.NewJSONLogger(os.Stdout, c.LogLevel)

	if err := c.Validate(); err != nil {
		return nil, err
	}

	app := &App{config: c, logger: logger, clock: clock.New()}
	if err := app.init(ctx); err != nil {
		app.Close()
		return nil, err
	}
	return app, nil
}

func (app *App) init(ctx context.Context) error {
	c := app.config
	blobs, err := objectstore.New(ctx, objectstore.Config{
		Region:          c.S3Region,
		Endpoint:        c.S3Endpoint,
		Bucket:          c.S3Bucket,
		AccessKeyID:     c.S3AccessKeyID,
		SecretAccessKey: c.S3SecretAccessKey,
		VirtualHost:     c.S3VirtualHost,
	}, nil)
	if err != nil {
		return fmt.Errorf("object store init error: %w", err)
	}

	var originCaller origin.Caller
	originCaller, err = origin.NewClient(c.OriginURL, &http.Client{Timeout: outboundTimeout})
	if err != nil {
		return fmt.Errorf("origin client init error: %w", err)
	}

	readiness := []httpapi.ReadinessCheck{{Name: "object store", Check: blobs.Ping}}

	var repo keyvalue.Repository
	var pgStore *kvcache.PostgresStore
	if c.DatabaseDSN != "" {
		app.db, err = repomanager.Open(ctx, c.DatabaseDSN)
		if err != nil {
			return err
		}
		rm := repomanager.NewPostgresRepositoryManager()
		if err := rm.RunMigrations(ctx, app.db); err != nil {
			return fmt.Errorf("migration error: %w", err)
		}
		repo = rm.KeyValues(app.db)
		pgStore = rm.CacheEntries(app.db, app.clock)
		readiness = append(readiness, httpapi.ReadinessCheck{Name: "database", Check: app.db.PingContext})
	} else {
		app.logger.Warn(ctx, "no database configured; key-value endpoints will fail")
	}

	var hot kvcache.Store
	switch c.HotCacheBackend {
	case config.HotCachePostgres:
		hot = pgStore
		app.janitor = kvcache.NewJanitor(pgStore, c.JanitorInterval, app.clock, app.logger)
	default:
		app.memory, err = kvcache.NewMemoryStore(c.HotCacheMaxBytes)
		if err != nil {
			return err
		}
		hot = app.memory
	}

	var m *metrics.Metrics
	if c.MetricsEnabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		m = metrics.New(reg, metrics.Options{
			Clock:      app.clock,
			Logger:     app.logger,
			SampleRate: c.MetricsSampleRate,
		})
		hot = m.InstrumentStore(hot)
		originCaller = m.InstrumentOrigin(originCaller)
	}

	resolver := authz.NewResolver(originCaller, hot, authz.Policy{
		ProjectsSuccessTTL: c.ProjectsSuccessTTL,
		ProjectsFailureTTL: c.ProjectsFailureTTL,
		PrefixSuccessTTL:   c.PrefixSuccessTTL,
		PrefixFailureTTL:   c.PrefixFailureTTL,
	}, app.logger)

	router := httpapi.NewRouter(httpapi.Deps{
		CAS: cas.NewHandler(resolver, blobs, hot, cas.Options{
			HotBlobMaxBytes: c.HotBlobMaxBytes,
			HotBlobTTL:      c.HotBlobTTL,
		}, app.logger),
		KeyValue:  keyvalue.NewHandler(resolver, repo, hot, c.KeyValueResponseTTL, app.logger),
		Metrics:   m,
		Readiness: readiness,
		Logger:    app.logger,
		Clock:     app.clock,
	})

	app.server = httpapi.NewServer(c.HTTPAddr, router, c.ShutdownTimeout, app.logger)
	return nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// Run serves until a termination signal arrives or ctx is cancelled.
func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")
	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	if app.janitor != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			app.janitor.Run(ctx)
		}()
	}

	err := app.server.Run(ctx)
	if err != nil {
		app.logger.Error(ctx, "http server", "error", err)
	}
	cancelFunc()
	wg.Wait()

	app.Close()
	app.logger.Info(ctx, "App stopped")
	return err
}

// Close releases the database and in-memory cache.
func (app *App) Close() {
	if app.memory != nil {
		app.memory.Close()
		app.memory = nil
	}
	if app.db != nil {
		_ = app.db.Close()
		app.db = nil
	}
}
