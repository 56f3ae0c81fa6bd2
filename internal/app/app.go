// Package app assembles the pipeline and its collaborators from configuration.
package app

import (
	"context"
	"fmt"

	"github.com/bilgisen/newsroom/internal/ai"
	"github.com/bilgisen/newsroom/internal/cache"
	"github.com/bilgisen/newsroom/internal/config"
	"github.com/bilgisen/newsroom/internal/feed"
	"github.com/bilgisen/newsroom/internal/imaging"
	"github.com/bilgisen/newsroom/internal/logger"
	"github.com/bilgisen/newsroom/internal/objectstore"
	"github.com/bilgisen/newsroom/internal/pipeline"
	"github.com/bilgisen/newsroom/internal/publish"
	"github.com/bilgisen/newsroom/internal/scheduler"
	"github.com/bilgisen/newsroom/internal/storage"
	"github.com/bilgisen/newsroom/internal/workflow"
)

// App holds the long-lived components of the process
type App struct {
	Config    *config.Config
	Store     *storage.Storage
	Cache     cache.Store
	Publisher publish.Publisher
	Pipeline  *pipeline.Pipeline
	Workflow  *workflow.Workflow
}

// Build opens storage and constructs every capability selected by cfg
func Build(ctx context.Context, cfg *config.Config) (*App, error) {
	log := logger.Get()

	store, err := storage.Open(ctx, cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}

	aiClient, err := ai.New(cfg)
	if err != nil {
		store.Close()
		return nil, err
	}

	publisher, err := publish.New(cfg)
	if err != nil {
		store.Close()
		return nil, err
	}

	processed := openCache(ctx, cfg)

	fetcher := feed.NewFetcher(cfg.HTTPTimeout, cfg.FeedFetchLimit, cfg.PlaceholderImageURL)
	compositor := imaging.New(imaging.Config{
		OutputDir: cfg.ImageOutputDir,
		FontPaths: cfg.FontPaths,
		Timeout:   cfg.HTTPTimeout,
	})
	log.Info().Str("font", compositor.FontName()).Msg("Compositor font loaded")

	deps := pipeline.Deps{
		Source:     feed.NewProcessor(fetcher, cfg.FeedURL, processed, cfg.CacheTTL),
		Ranker:     aiClient,
		Rewriter:   aiClient,
		Compositor: compositor,
		Store:      store,
		Publisher:  publisher,
	}

	if r2, ok := objectstore.FromAppConfig(cfg); ok {
		uploader, err := objectstore.New(ctx, r2)
		if err != nil {
			log.Warn().Err(err).Msg("Object store unavailable, images stay local")
		} else {
			deps.Uploader = uploader
		}
	}

	log.Info().
		Str("ai_provider", cfg.AIProvider).
		Str("publish_provider", cfg.PublishProvider).
		Str("feed_url", cfg.FeedURL).
		Msg("Components initialized")

	return &App{
		Config:    cfg,
		Store:     store,
		Cache:     processed,
		Publisher: publisher,
		Pipeline: pipeline.New(deps, pipeline.Options{
			SelectCount:      cfg.TargetSelectCount,
			Cooldown:         cfg.RewriteCooldown,
			PlaceholderImage: cfg.PlaceholderImageURL,
		}),
		Workflow: workflow.New(store, publisher),
	}, nil
}

// NewScheduler registers the configured daily runs against the pipeline
func (a *App) NewScheduler() (*scheduler.Scheduler, error) {
	return scheduler.New(a.Pipeline, a.Config.ScheduleTimes, a.Config.Location())
}

// Close releases storage and cache connections
func (a *App) Close() error {
	cacheErr := a.Cache.Close()
	if err := a.Store.Close(); err != nil {
		return err
	}
	return cacheErr
}

// openCache connects to Redis when configured. Without Redis, or when it is
// unreachable, processed URLs are remembered in memory for this process only.
func openCache(ctx context.Context, cfg *config.Config) cache.Store {
	if cfg.RedisURL == "" {
		return cache.NewMemoryCache()
	}

	client, err := cache.NewRedisClient(ctx, cfg.RedisURL, cfg.RedisPrefix)
	if err != nil {
		logger.Get().Warn().Err(err).Msg("Redis unavailable, using in-memory processed cache")
		return cache.NewMemoryCache()
	}
	return client
}
