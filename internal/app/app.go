// -----------------------------------------------------------------------
// App - Dependency wiring for the reperio server
// -----------------------------------------------------------------------

package app

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/reperio/internal/common"
	"github.com/ternarybob/reperio/internal/events"
	"github.com/ternarybob/reperio/internal/handlers"
	"github.com/ternarybob/reperio/internal/interfaces"
	jobsvc "github.com/ternarybob/reperio/internal/jobs"
	"github.com/ternarybob/reperio/internal/models"
	"github.com/ternarybob/reperio/internal/orchestrator"
	"github.com/ternarybob/reperio/internal/providers"
	"github.com/ternarybob/reperio/internal/providers/apify"
	"github.com/ternarybob/reperio/internal/queue"
	"github.com/ternarybob/reperio/internal/scheduler"
	storagebadger "github.com/ternarybob/reperio/internal/storage/badger"
)

// App holds all application components and dependencies
type App struct {
	Config *common.Config
	Logger arbor.ILogger

	StorageManager *storagebadger.Manager
	EventService   *events.Service
	Registry       *providers.Registry
	Resolver       *common.SettingsResolver

	QueueManager *queue.Manager
	WorkerPool   *queue.WorkerPool
	Orchestrator *orchestrator.Orchestrator
	JobService   *jobsvc.Service
	Janitor      *scheduler.Janitor

	// HTTP handlers
	JobHandler          *handlers.JobHandler
	ContinuationHandler *handlers.ContinuationHandler
	StatusHandler       *handlers.StatusHandler
	WSHandler           *handlers.WebSocketHandler
}

// New initializes the application with all dependencies
func New(cfg *common.Config, logger arbor.ILogger) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	storageManager, err := storagebadger.NewManager(logger, &cfg.Storage.Badger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	app.StorageManager = storageManager

	app.EventService = events.NewService(logger)
	app.Resolver = common.NewSettingsResolver(cfg, storageManager.KVStorage(), logger)

	if err := app.initProviders(); err != nil {
		return nil, fmt.Errorf("failed to initialize providers: %w", err)
	}

	if err := app.initQueue(); err != nil {
		return nil, fmt.Errorf("failed to initialize queue: %w", err)
	}

	app.Orchestrator = orchestrator.New(
		storageManager.JobStorage(),
		storageManager.BatchStorage(),
		app.Registry,
		app.Resolver,
		app.QueueManager,
		app.EventService,
		logger,
	)
	app.WorkerPool.RegisterHandler(models.MessageTypeContinuation, app.Orchestrator.HandleContinuation)

	app.JobService = jobsvc.NewService(
		storageManager.JobStorage(),
		storageManager.BatchStorage(),
		app.QueueManager,
		app.Registry,
		app.Resolver,
		logger,
	)

	app.Janitor = scheduler.NewJanitor(storageManager.JobStorage(), app.QueueManager, app.EventService, logger)

	// HTTP handlers
	app.WSHandler = handlers.NewWebSocketHandler(app.EventService, logger)
	app.JobHandler = handlers.NewJobHandler(app.JobService, logger)
	app.ContinuationHandler = handlers.NewContinuationHandler(app.QueueManager, logger)
	app.StatusHandler = handlers.NewStatusHandler(storageManager.JobStorage(), app.QueueManager, app.Registry, logger)

	logger.Info().
		Str("storage", cfg.Storage.Badger.Path).
		Int("workers", cfg.Queue.Concurrency).
		Msg("Application initialization complete")

	return app, nil
}

// Start launches the background components: queue workers and the janitor.
func (a *App) Start() error {
	a.WorkerPool.Start()

	if a.Config.Janitor.Enabled {
		if err := a.Janitor.Start(a.Config.Janitor.Schedule); err != nil {
			return fmt.Errorf("failed to start janitor: %w", err)
		}
	}

	return nil
}

// initProviders builds the Apify client, enrichment pipeline and the
// provider registry. Platforms without a configured actor are simply not
// registered; job creation rejects them up front.
func (a *App) initProviders() error {
	a.Registry = providers.NewRegistry()

	apifyCfg := a.Config.Apify
	if apifyCfg.Token == "" {
		a.Logger.Warn().Msg("No Apify token configured, no providers registered")
		return nil
	}

	opts := []apify.ClientOption{apify.WithLogger(a.Logger)}
	if apifyCfg.BaseURL != "" {
		opts = append(opts, apify.WithBaseURL(apifyCfg.BaseURL))
	}
	if timeout := common.ParseDurationOr(apifyCfg.RunTimeout, 0); timeout > 0 {
		opts = append(opts, apify.WithTimeout(timeout))
	}

	client := apify.NewClient(apifyCfg.Token, opts...)

	if apifyCfg.InstagramSearchActor != "" {
		enricher := a.instagramEnricher(client)
		provider := apify.NewInstagramSearchProvider(client, apifyCfg.InstagramSearchActor, enricher, a.Logger)
		if err := a.Registry.Register(provider); err != nil {
			return err
		}
	}

	if apifyCfg.InstagramSimilarActor != "" {
		enricher := a.instagramEnricher(client)
		provider := apify.NewInstagramSimilarProvider(client, apifyCfg.InstagramSimilarActor, enricher, a.Logger)
		if err := a.Registry.Register(provider); err != nil {
			return err
		}
	}

	if apifyCfg.TikTokSearchActor != "" {
		provider := apify.NewTikTokSearchProvider(client, apifyCfg.TikTokSearchActor, a.Logger)
		if err := a.Registry.Register(provider); err != nil {
			return err
		}
	}

	platforms := make([]string, 0, len(a.Registry.Platforms()))
	for _, p := range a.Registry.Platforms() {
		platforms = append(platforms, string(p))
	}
	a.Logger.Info().
		Strs("providers", platforms).
		Msg("Provider registry initialized")

	return nil
}

// instagramEnricher wires the profile-lookup enrichment used by the
// Instagram adapters, or nil when no profile actor is configured.
func (a *App) instagramEnricher(client *apify.Client) interfaces.Enricher {
	actorID := a.Config.Apify.InstagramProfileActor
	if actorID == "" {
		return nil
	}

	rt, err := a.Resolver.Resolve(context.Background(), string(models.PlatformInstagram))
	if err != nil {
		a.Logger.Warn().Err(err).Msg("Failed to resolve enrichment settings, enrichment disabled")
		return nil
	}

	cache := providers.NewProfileCache(rt.EnrichCacheSize, rt.EnrichCacheTTL)
	lookup := apify.NewInstagramProfileLookup(client, actorID)
	return providers.NewEnricher(lookup, cache, rt.EnrichConcurrency, a.Logger)
}

func (a *App) initQueue() error {
	db := a.StorageManager.DB().Store().Badger()

	visibilityTimeout := common.ParseDurationOr(a.Config.Queue.VisibilityTimeout, 0)
	queueMgr, err := queue.NewManager(db, a.Config.Queue.QueueName, visibilityTimeout, a.Config.Queue.MaxReceive, a.Logger)
	if err != nil {
		return err
	}
	a.QueueManager = queueMgr

	pollInterval := common.ParseDurationOr(a.Config.Queue.PollInterval, 0)
	a.WorkerPool = queue.NewWorkerPool(queueMgr, a.Config.Queue.Concurrency, pollInterval, a.Logger)

	return nil
}

// Close shuts down components in reverse dependency order.
func (a *App) Close() error {
	if a.Janitor != nil {
		a.Janitor.Stop()
	}
	if a.WorkerPool != nil {
		a.WorkerPool.Stop()
	}
	if a.WSHandler != nil {
		a.WSHandler.Close()
	}
	if a.EventService != nil {
		a.EventService.Close()
	}
	if a.StorageManager != nil {
		if err := a.StorageManager.Close(); err != nil {
			return fmt.Errorf("failed to close storage: %w", err)
		}
	}
	return nil
}
