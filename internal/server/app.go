// Package server wires configuration into a running pricewatch service.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/seapigy/procuro-site-sub000/internal/aggregator"
	"github.com/seapigy/procuro-site-sub000/internal/alert"
	"github.com/seapigy/procuro-site-sub000/internal/api"
	"github.com/seapigy/procuro-site-sub000/internal/cache/redis"
	"github.com/seapigy/procuro-site-sub000/internal/clock/system"
	"github.com/seapigy/procuro-site-sub000/internal/config"
	"github.com/seapigy/procuro-site-sub000/internal/fetcher"
	collyfetcher "github.com/seapigy/procuro-site-sub000/internal/fetcher/colly"
	headlessfetcher "github.com/seapigy/procuro-site-sub000/internal/fetcher/headless"
	"github.com/seapigy/procuro-site-sub000/internal/hash/sha256"
	"github.com/seapigy/procuro-site-sub000/internal/id/uuid"
	"github.com/seapigy/procuro-site-sub000/internal/logging"
	"github.com/seapigy/procuro-site-sub000/internal/matcher"
	"github.com/seapigy/procuro-site-sub000/internal/policy/ratelimit"
	"github.com/seapigy/procuro-site-sub000/internal/pricing"
	"github.com/seapigy/procuro-site-sub000/internal/progress"
	progresssinks "github.com/seapigy/procuro-site-sub000/internal/progress/sinks"
	memorypublisher "github.com/seapigy/procuro-site-sub000/internal/publisher/memory"
	gcppublisher "github.com/seapigy/procuro-site-sub000/internal/publisher/pubsub"
	"github.com/seapigy/procuro-site-sub000/internal/retailer"
	"github.com/seapigy/procuro-site-sub000/internal/storage"
	memorystore "github.com/seapigy/procuro-site-sub000/internal/storage/memory"
	pgstore "github.com/seapigy/procuro-site-sub000/internal/storage/postgres"
	"github.com/seapigy/procuro-site-sub000/internal/telemetry"
)

// App contains the application's dependencies.
type App struct {
	cfg    *config.Config
	logger *zap.Logger
	opts   options

	apiServer      *api.Server
	aggregator     *aggregator.Aggregator
	progressHub    *progress.Hub
	headless       *headlessfetcher.Fetcher
	pubsubClient   *pubsub.Client
	pubsubPub      *gcppublisher.Publisher
	memoryPub      *memorypublisher.Publisher
	pgStore        *pgstore.Store
	redisClient    *redis.Client
	snapshotsClose func() error
	tracerShutdown func(context.Context) error
}

// Option customizes Build.
type Option func(*options)

type options struct {
	logger        *zap.Logger
	registerer    prometheus.Registerer
	gcsFactory    storage.GCSClientFactory
	pubsubOptions []option.ClientOption
}

// WithLogger replaces the logger built from configuration.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithRegisterer registers progress collectors somewhere other than the default registry.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) { o.registerer = reg }
}

// WithGCSClientFactory overrides how the snapshot bucket client is created.
func WithGCSClientFactory(f storage.GCSClientFactory) Option {
	return func(o *options) { o.gcsFactory = f }
}

// WithPubSubOptions passes extra client options to the Pub/Sub client.
func WithPubSubOptions(opts ...option.ClientOption) Option {
	return func(o *options) { o.pubsubOptions = append(o.pubsubOptions, opts...) }
}

// Build creates the application's dependencies. On error every resource
// opened so far is released.
func Build(ctx context.Context, cfg *config.Config, opts ...Option) (app *App, err error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	logger := o.logger
	if logger == nil {
		logger, err = logging.New(cfg.Logging.Development, cfg.Logging.Level)
		if err != nil {
			return nil, fmt.Errorf("logger init failed: %w", err)
		}
		zap.ReplaceGlobals(logger)
	}

	app = &App{cfg: cfg, logger: logger, opts: o}
	defer func() {
		if err != nil {
			_ = app.Close(context.Background())
			app = nil
		}
	}()

	app.logger.Info("building application dependencies",
		zap.Int("port", cfg.Server.Port),
		zap.String("storage", cfg.Storage.Backend),
		zap.String("snapshots", cfg.Snapshots.Backend),
		zap.String("dedup", cfg.Alerts.Dedup.Policy),
	)

	if err = app.setupTracing(ctx); err != nil {
		return app, err
	}
	snapshots, err := app.setupSnapshots(ctx)
	if err != nil {
		return app, err
	}
	store, err := app.setupStore(ctx)
	if err != nil {
		return app, err
	}
	publisher, err := app.setupPublisher(ctx)
	if err != nil {
		return app, err
	}
	events, err := app.setupProgress()
	if err != nil {
		return app, err
	}
	docs, err := app.setupFetcher()
	if err != nil {
		return app, err
	}
	dedup, err := app.setupDedup(ctx)
	if err != nil {
		return app, err
	}

	clock := system.New()
	adapters, err := retailer.Build(cfg.Retailers.Enabled, cfg.Retailers.BaseURLs, retailer.Deps{
		Fetcher:   docs,
		Options:   pricing.FetchOptions{Timeout: cfg.FetchTimeout(), MaxRetries: pricing.Retries(cfg.HTTP.MaxRetries)},
		Snapshots: snapshots,
		Hasher:    sha256.New(),
		Events:    events,
		Clock:     clock,
		Logger:    logger.Named("retailer"),
	})
	if err != nil {
		return app, fmt.Errorf("retailer init failed: %w", err)
	}

	engine, err := alert.NewEngine(cfg.Alerts.MinSavingsPercent, clock)
	if err != nil {
		return app, fmt.Errorf("alert engine init failed: %w", err)
	}
	app.aggregator, err = aggregator.New(adapters, aggregator.Config{
		AdapterTimeout:    cfg.AdapterTimeout(),
		EvaluationEnabled: cfg.Evaluation.Enabled,
		AlertTopic:        cfg.Alerts.Topic,
	}, aggregator.Deps{
		Store:     store,
		Alerts:    engine,
		Dedup:     dedup,
		Publisher: publisher,
		IDs:       uuid.New(),
		Clock:     clock,
		Events:    events,
		Logger:    logger,
	})
	if err != nil {
		return app, fmt.Errorf("aggregator init failed: %w", err)
	}

	match, err := matcher.New(app.aggregator, matcher.Config{
		MinScore: cfg.Matcher.MinScore,
		Timeout:  cfg.AdapterTimeout(),
	}, logger)
	if err != nil {
		return app, fmt.Errorf("matcher init failed: %w", err)
	}

	app.apiServer = api.NewServer(app.aggregator, match, *cfg, logger, app.readinessChecks())
	app.logger.Info("application ready", zap.Int("retailers", len(adapters)))
	return app, nil
}

// Handler exposes the HTTP routes.
func (a *App) Handler() http.Handler {
	return a.apiServer.Handler()
}

// Aggregator exposes the configured aggregator.
func (a *App) Aggregator() *aggregator.Aggregator {
	return a.aggregator
}

// Run starts the HTTP server and blocks until ctx is canceled or a signal arrives.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:           a.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       time.Duration(a.cfg.Server.ReadTimeoutSeconds) * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		a.logger.Info("http server started", zap.Int("port", a.cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
			stop()
		}
		close(serveErr)
	}()

	<-ctx.Done()
	a.logger.Info("shutdown initiated")

	shutdownTimeout := time.Duration(a.cfg.Server.ShutdownTimeoutSeconds) * time.Second
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("server shutdown error", zap.Error(err))
	}
	closeErr := a.Close(shutdownCtx)
	if err := <-serveErr; err != nil {
		return fmt.Errorf("http server: %w", err)
	}
	return closeErr
}

// Close releases every resource Build opened. It is safe on a partially built App.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.progressHub != nil {
		if err := a.progressHub.Close(ctx); err != nil {
			a.logger.Warn("progress hub close failed", zap.Error(err))
			errs = append(errs, err)
		}
	}
	if a.headless != nil {
		a.headless.Close()
	}
	if a.pubsubPub != nil {
		a.pubsubPub.Stop()
	}
	if a.pubsubClient != nil {
		if err := a.pubsubClient.Close(); err != nil {
			a.logger.Warn("pubsub client close failed", zap.Error(err))
			errs = append(errs, err)
		}
	}
	if a.snapshotsClose != nil {
		if err := a.snapshotsClose(); err != nil {
			a.logger.Warn("snapshot store close failed", zap.Error(err))
			errs = append(errs, err)
		}
	}
	if a.pgStore != nil {
		a.pgStore.Close()
	}
	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.logger.Warn("redis close failed", zap.Error(err))
			errs = append(errs, err)
		}
	}
	if a.tracerShutdown != nil {
		if err := a.tracerShutdown(ctx); err != nil {
			a.logger.Warn("tracer shutdown failed", zap.Error(err))
			errs = append(errs, err)
		}
	}
	_ = a.logger.Sync()
	return errors.Join(errs...)
}

func (a *App) setupTracing(ctx context.Context) error {
	if !a.cfg.Tracing.Enabled {
		return nil
	}
	tp, err := telemetry.InitTracerProvider(ctx, telemetry.Config{
		ServiceName: a.cfg.Tracing.ServiceName,
		SampleRatio: a.cfg.Tracing.SampleRatio,
	})
	if err != nil {
		return fmt.Errorf("tracer init failed: %w", err)
	}
	a.tracerShutdown = tp.Shutdown
	a.logger.Info("tracing enabled", zap.Float64("sample_ratio", a.cfg.Tracing.SampleRatio))
	return nil
}

func (a *App) setupSnapshots(ctx context.Context) (pricing.BlobStore, error) {
	store, closeFn, err := storage.Open(ctx, storage.Config{
		Backend:  a.cfg.Snapshots.Backend,
		LocalDir: a.cfg.Snapshots.LocalDir,
		Bucket:   a.cfg.Snapshots.Bucket,
		Prefix:   a.cfg.Snapshots.Prefix,
	}, a.opts.gcsFactory, a.logger)
	if err != nil {
		return nil, fmt.Errorf("snapshot store init failed: %w", err)
	}
	a.snapshotsClose = closeFn
	return store, nil
}

func (a *App) setupStore(ctx context.Context) (pricing.Store, error) {
	if a.cfg.Storage.Backend == "postgres" {
		store, err := pgstore.New(ctx, pgstore.Config{
			DSN:             a.cfg.DB.DSN,
			Schema:          a.cfg.DB.Schema,
			MaxConns:        a.cfg.DB.MaxConns,
			MinConns:        a.cfg.DB.MinConns,
			MaxConnLifetime: time.Duration(a.cfg.DB.MaxConnLifetimeMinutes) * time.Minute,
		})
		if err != nil {
			return nil, fmt.Errorf("postgres store init failed: %w", err)
		}
		a.pgStore = store
		a.logger.Info("using postgres store", zap.String("schema", a.cfg.DB.Schema))
		return store, nil
	}

	store := memorystore.NewStore()
	for _, ic := range a.cfg.Storage.Items {
		price, err := decimal.NewFromString(ic.ReferencePrice)
		if err != nil {
			return nil, fmt.Errorf("storage.items %q: reference_price: %w", ic.ID, err)
		}
		if err := store.SeedItem(pricing.Item{
			ID:                  ic.ID,
			Name:                ic.Name,
			ReferencePrice:      price,
			QuantityPerOrder:    ic.QuantityPerOrder,
			ReorderIntervalDays: ic.ReorderIntervalDays,
		}); err != nil {
			return nil, fmt.Errorf("storage.items %q: %w", ic.ID, err)
		}
	}
	a.logger.Info("using in-memory store", zap.Int("items", len(a.cfg.Storage.Items)))
	return store, nil
}

func (a *App) setupPublisher(ctx context.Context) (pricing.Publisher, error) {
	if !a.cfg.PubSub.Enabled {
		a.logger.Warn("Pub/Sub disabled, recent alerts are kept in memory",
			zap.Int("memory_buffer", a.cfg.Alerts.MemoryBuffer),
		)
		a.memoryPub = memorypublisher.NewBounded(a.cfg.Alerts.MemoryBuffer)
		return a.memoryPub, nil
	}
	client, err := pubsub.NewClient(ctx, a.cfg.PubSub.ProjectID, a.opts.pubsubOptions...)
	if err != nil {
		return nil, fmt.Errorf("pubsub client init failed: %w", err)
	}
	a.pubsubClient = client
	a.pubsubPub = gcppublisher.New(client)
	a.logger.Info("Pub/Sub publisher initialized",
		zap.String("project", a.cfg.PubSub.ProjectID),
		zap.String("topic", a.cfg.Alerts.Topic),
	)
	return a.pubsubPub, nil
}

func (a *App) setupProgress() (progress.Emitter, error) {
	promSink, err := progresssinks.NewPrometheusSink(a.opts.registerer)
	if err != nil {
		return nil, fmt.Errorf("progress sink init failed: %w", err)
	}
	a.progressHub = progress.NewHub(progress.Config{
		BufferSize:     a.cfg.Progress.BufferSize,
		MaxBatchEvents: a.cfg.Progress.MaxBatchEvents,
		MaxBatchWait:   time.Duration(a.cfg.Progress.MaxBatchWaitMs) * time.Millisecond,
		Logger:         a.logger.Named("progress_hub"),
	}, progresssinks.NewLogSink(a.logger.Named("progress_log")), promSink)
	return a.progressHub, nil
}

func (a *App) setupFetcher() (*fetcher.Resilient, error) {
	transport := collyfetcher.New(collyfetcher.Config{
		RespectRobots: a.cfg.Fetch.RespectRobots,
		Timeout:       a.cfg.FetchTimeout(),
		MaxBodyBytes:  a.cfg.HTTP.MaxBodyBytes,
	})

	var renderer pricing.Fetcher
	if a.cfg.Headless.Enabled {
		headless, err := headlessfetcher.NewChromedp(headlessfetcher.Config{
			MaxParallel:       a.cfg.Headless.MaxParallel,
			NavigationTimeout: time.Duration(a.cfg.Headless.NavTimeoutSec) * time.Second,
			SettleDelay:       time.Duration(a.cfg.Headless.SettleDelayMs) * time.Millisecond,
		})
		if err != nil {
			return nil, fmt.Errorf("headless fetcher init failed: %w", err)
		}
		a.headless = headless
		renderer = headless
		a.logger.Info("headless rendering enabled", zap.Int("max_parallel", a.cfg.Headless.MaxParallel))
	}

	var limiter fetcher.Limiter
	if a.cfg.RateLimit.Enabled {
		limiter = ratelimit.New(ratelimit.Config{
			DefaultRPS:   a.cfg.RateLimit.DefaultRPS,
			DefaultBurst: a.cfg.RateLimit.DefaultBurst,
			HostRPS:      a.cfg.RateLimit.HostRPS(),
		})
		a.logger.Info("rate limiter enabled",
			zap.Float64("default_rps", a.cfg.RateLimit.DefaultRPS),
			zap.Int("default_burst", a.cfg.RateLimit.DefaultBurst),
		)
	}

	docs, err := fetcher.New(transport, fetcher.Config{
		Timeout:    a.cfg.FetchTimeout(),
		MaxRetries: a.cfg.HTTP.MaxRetries,
		Backoff: fetcher.Backoff{
			Base: time.Duration(a.cfg.HTTP.BackoffInitialMs) * time.Millisecond,
			Max:  time.Duration(a.cfg.HTTP.BackoffMaxMs) * time.Millisecond,
		},
		Validator: fetcher.NewValidator(a.cfg.Fetch.MinBodyBytes, a.cfg.Fetch.WrongTargetMarkers),
		Profiles:  fetcher.NewUserAgentPool(a.cfg.Fetch.UserAgents...),
		Renderer:  renderer,
		Limiter:   limiter,
	}, a.logger.Named("fetcher"))
	if err != nil {
		return nil, fmt.Errorf("fetcher init failed: %w", err)
	}
	return docs, nil
}

func (a *App) setupDedup(ctx context.Context) (alert.Deduper, error) {
	switch a.cfg.Alerts.Dedup.Policy {
	case "memory":
		d, err := alert.NewMemoryDeduper(a.cfg.DedupTTL(), system.New())
		if err != nil {
			return nil, fmt.Errorf("dedup init failed: %w", err)
		}
		return d, nil
	case "redis":
		client, err := redis.New(ctx, redis.ClientConfig{
			Addr:       a.cfg.Redis.Addr,
			Password:   a.cfg.Redis.Password,
			DB:         a.cfg.Redis.DB,
			PoolSize:   a.cfg.Redis.PoolSize,
			MaxRetries: a.cfg.Redis.MaxRetries,
			TLSEnabled: a.cfg.Redis.TLSEnabled,
		})
		if err != nil {
			return nil, fmt.Errorf("redis init failed: %w", err)
		}
		a.redisClient = client
		d, err := redis.NewDeduper(client, a.cfg.DedupTTL())
		if err != nil {
			return nil, fmt.Errorf("dedup init failed: %w", err)
		}
		return d, nil
	default:
		return alert.NoDedup{}, nil
	}
}

func (a *App) readinessChecks() map[string]api.ReadinessCheck {
	checks := map[string]api.ReadinessCheck{}
	if a.pgStore != nil {
		checks["postgres"] = a.pgStore.Ping
	}
	if a.redisClient != nil {
		checks["redis"] = a.redisClient.Ping
	}
	return checks
}
