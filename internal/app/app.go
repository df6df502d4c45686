// Package app initializes and holds long-lived application services, acting
// as a dependency injection container for the CLI.
package app

import (
	"context"
	"fmt"
	"time"

	gcsapi "cloud.google.com/go/storage"
	pubsubapi "cloud.google.com/go/pubsub"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/JakeFAU/calfire-history/internal/community"
	"github.com/JakeFAU/calfire-history/internal/config"
	"github.com/JakeFAU/calfire-history/internal/dataset"
	collyfetcher "github.com/JakeFAU/calfire-history/internal/fetcher/colly"
	"github.com/JakeFAU/calfire-history/internal/fetcher/headless"
	"github.com/JakeFAU/calfire-history/internal/govfeed"
	"github.com/JakeFAU/calfire-history/internal/logging"
	"github.com/JakeFAU/calfire-history/internal/metrics"
	"github.com/JakeFAU/calfire-history/internal/normalize"
	"github.com/JakeFAU/calfire-history/internal/pipeline"
	"github.com/JakeFAU/calfire-history/internal/policy/backoff"
	"github.com/JakeFAU/calfire-history/internal/policy/ratelimit"
	"github.com/JakeFAU/calfire-history/internal/publisher/pubsub"
	"github.com/JakeFAU/calfire-history/internal/storage/gcs"
	"github.com/JakeFAU/calfire-history/internal/storage/local"
	"github.com/JakeFAU/calfire-history/internal/storage/postgres"
)

// App holds the shared services for one CLI invocation.
type App struct {
	cfg      config.Config
	logger   *zap.Logger
	clock    clockwork.Clock
	store    *local.SnapshotStore
	pipeline *pipeline.Pipeline
	cache    *dataset.Cache
	closers  []func()
}

// NewApp builds every service from cfg. Optional sinks are only connected
// when configured. Partially built services are released on failure.
func NewApp(ctx context.Context, cfg config.Config) (*App, error) {
	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	a := &App{cfg: cfg, logger: logger, clock: clockwork.NewRealClock()}
	if err := a.init(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) init(ctx context.Context) error {
	cfg := a.cfg
	limiter := ratelimit.New(ratelimit.Config{RPS: cfg.Fetch.HostRPS, Burst: cfg.Fetch.HostBurst})

	launcher, err := headless.NewLauncher(headless.Config{
		ExecPath:      cfg.Government.ChromePath,
		UserAgent:     cfg.Government.UserAgent,
		ShowBrowser:   cfg.Government.ShowBrowser,
		RootSelector:  cfg.Government.RootSelector,
		RenderTimeout: cfg.Government.RenderTimeout(),
	}, a.logger.Named("headless"))
	if err != nil {
		return fmt.Errorf("init headless launcher: %w", err)
	}
	layout := govfeed.DefaultLayout()
	layout.PageButtonXPath = cfg.Government.PageButtonXPath
	layout.CellXPath = cfg.Government.CellXPath
	scraper, err := govfeed.NewScraper(launcher, govfeed.ScraperConfig{Layout: layout, MaxPages: cfg.Government.MaxPages},
		backoff.New(backoff.Config{MaxAttempts: cfg.Government.ElementRetries, BaseDelay: cfg.Government.ElementBackoff()}),
		limiter, a.logger.Named("govfeed"))
	if err != nil {
		return fmt.Errorf("init scraper: %w", err)
	}
	gov, err := govfeed.NewSource(scraper, govfeed.SourceConfig{
		YearURLTemplate: cfg.Government.YearURLTemplate,
		ActiveURL:       cfg.Government.ActiveURL,
	}, a.clock, a.logger.Named("govfeed"))
	if err != nil {
		return fmt.Errorf("init government source: %w", err)
	}

	docs := collyfetcher.New(collyfetcher.Config{
		UserAgent:     cfg.Community.UserAgent,
		RespectRobots: cfg.Community.RespectRobots,
		Timeout:       cfg.Community.Timeout(),
	}, backoff.New(backoff.Config{MaxAttempts: cfg.Community.MaxRetries + 1}), limiter, a.logger.Named("colly"))
	extractor, err := community.NewExtractor(docs, community.DefaultSelector(), community.Config{
		URLTemplate: cfg.Community.URLTemplate,
		SkipMissing: cfg.Community.OnMissingTable == config.OnMissingSkip,
	}, a.clock, a.logger.Named("community"))
	if err != nil {
		return fmt.Errorf("init community extractor: %w", err)
	}

	a.pipeline, err = pipeline.New(gov, extractor, normalize.New(a.clock, a.logger.Named("normalize")), a.clock, pipeline.Config{
		CommunityFirstYear:  cfg.Community.FirstYear,
		GovernmentFirstYear: cfg.Government.FirstYear,
		Concurrency:         cfg.Fetch.Concurrency,
	}, a.logger.Named("pipeline"))
	if err != nil {
		return fmt.Errorf("init pipeline: %w", err)
	}

	a.store, err = local.New(local.Config{BaseDir: cfg.DataDir}, a.logger.Named("store"))
	if err != nil {
		return fmt.Errorf("init snapshot store: %w", err)
	}

	sinks, err := a.buildSinks(ctx)
	if err != nil {
		return err
	}
	a.cache, err = dataset.NewCache(a.store, a.pipeline, a.logger.Named("dataset"),
		dataset.WithThresholds(dataset.Thresholds{ReuseDays: cfg.Refresh.ReuseDays, PatchDays: cfg.Refresh.PatchDays}),
		dataset.WithSinks(sinks...),
	)
	if err != nil {
		return fmt.Errorf("init dataset cache: %w", err)
	}
	return nil
}

func (a *App) buildSinks(ctx context.Context) ([]dataset.Sink, error) {
	cfg := a.cfg.Sinks
	var sinks []dataset.Sink

	if cfg.GCSBucket != "" {
		client, err := gcsapi.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("init gcs client: %w", err)
		}
		a.closers = append(a.closers, func() { _ = client.Close() })
		mirror, err := gcs.New(client, gcs.Config{Bucket: cfg.GCSBucket, Prefix: cfg.GCSPrefix}, a.logger.Named("gcs"))
		if err != nil {
			return nil, fmt.Errorf("init gcs mirror: %w", err)
		}
		a.logger.Info("gcs mirror enabled", zap.String("bucket", cfg.GCSBucket))
		sinks = append(sinks, mirror)
	}

	if cfg.PostgresDSN != "" {
		exporter, err := postgres.NewExporter(ctx, postgres.ExporterConfig{DSN: cfg.PostgresDSN, Table: cfg.PostgresTable}, a.logger.Named("postgres"))
		if err != nil {
			return nil, fmt.Errorf("init postgres exporter: %w", err)
		}
		a.closers = append(a.closers, exporter.Close)
		a.logger.Info("postgres export enabled", zap.String("table", cfg.PostgresTable))
		sinks = append(sinks, exporter)
	}

	if cfg.PubSubTopic != "" {
		client, err := pubsubapi.NewClient(ctx, cfg.PubSubProject)
		if err != nil {
			return nil, fmt.Errorf("init pubsub client: %w", err)
		}
		topic := client.Topic(cfg.PubSubTopic)
		a.closers = append(a.closers, func() {
			topic.Stop()
			_ = client.Close()
		})
		notifier, err := pubsub.New(topic, a.logger.Named("pubsub"))
		if err != nil {
			return nil, fmt.Errorf("init pubsub notifier: %w", err)
		}
		a.logger.Info("pubsub notifications enabled", zap.String("topic", cfg.PubSubTopic))
		sinks = append(sinks, notifier)
	}
	return sinks, nil
}

// Logger returns the shared logger.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// Now returns the current time from the app clock.
func (a *App) Now() time.Time {
	return a.clock.Now()
}

// Dataset returns the refresh-aware dataset cache.
func (a *App) Dataset() *dataset.Cache {
	return a.cache
}

// Fetcher returns the raw fetch pipeline.
func (a *App) Fetcher() dataset.Fetcher {
	return a.pipeline
}

// Snapshots returns the local snapshot store.
func (a *App) Snapshots() dataset.Store {
	return a.store
}

// Close pushes metrics, releases clients and flushes the logger.
func (a *App) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := metrics.Push(ctx, a.cfg.Metrics.PushgatewayURL, a.cfg.Metrics.Job); err != nil {
		a.logger.Warn("metrics push failed", zap.Error(err))
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	_ = a.logger.Sync()
}
