package app

import (
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/capto/internal/common"
	"github.com/ternarybob/capto/internal/handlers"
	"github.com/ternarybob/capto/internal/interfaces"
	"github.com/ternarybob/capto/internal/models"
	"github.com/ternarybob/capto/internal/queue"
	"github.com/ternarybob/capto/internal/services/events"
	"github.com/ternarybob/capto/internal/services/quota"
	"github.com/ternarybob/capto/internal/services/scraper"
	"github.com/ternarybob/capto/internal/services/sink"
	badgerstorage "github.com/ternarybob/capto/internal/storage/badger"
	"github.com/timshannon/badgerhold/v4"
)

// App holds all application components and dependencies
type App struct {
	Config         *common.Config
	Logger         arbor.ILogger
	StorageManager interfaces.StorageManager

	// Event-driven services
	EventService interfaces.EventService
	QuotaService interfaces.QuotaService
	LeadSink     *sink.LeadSink

	// Extraction layer
	BrowserPool *scraper.BrowserPool
	Enricher    *scraper.ContactEnricher

	// Batch execution
	Queue          *queue.BadgerQueue
	WorkerPool     *queue.WorkerPool
	CampaignRunner *queue.CampaignRunner
	Reaper         *queue.Reaper

	// HTTP handlers
	APIHandler      *handlers.APIHandler
	CampaignHandler *handlers.CampaignHandler
	AccountHandler  *handlers.AccountHandler
	WSHub           *handlers.WebSocketHub
}

// New initializes the application with all dependencies
func New(cfg *common.Config, logger arbor.ILogger) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	if err := app.initDatabase(); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	if err := app.initServices(); err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	app.initHandlers()

	// Workers start last so every handler they call is wired.
	if err := app.WorkerPool.Start(); err != nil {
		return nil, fmt.Errorf("failed to start worker pool: %w", err)
	}
	if err := app.Reaper.Start(); err != nil {
		return nil, fmt.Errorf("failed to start job reaper: %w", err)
	}

	logger.Info().
		Int("workers", cfg.Queue.Concurrency).
		Int("browsers", cfg.Scraper.MaxBrowsers).
		Msg("Application initialization complete")

	return app, nil
}

// initDatabase initializes the storage layer (Badger)
func (a *App) initDatabase() error {
	storageManager, err := badgerstorage.NewManager(a.Logger, &a.Config.Storage.Badger)
	if err != nil {
		return fmt.Errorf("failed to create storage manager: %w", err)
	}

	a.StorageManager = storageManager
	a.Logger.Debug().
		Str("storage", "badger").
		Str("path", a.Config.Storage.Badger.Path).
		Msg("Storage layer initialized")
	return nil
}

// initServices initializes business services in dependency order
func (a *App) initServices() error {
	a.EventService = events.NewService(a.Logger)
	a.QuotaService = quota.NewService(a.StorageManager, a.Logger)

	// Browser pool shared by all scrapers. A failed pool is fatal since
	// every lead source needs a rendered page.
	a.BrowserPool = scraper.NewBrowserPool(a.Config.Scraper, a.Logger)
	if err := a.BrowserPool.Init(); err != nil {
		return fmt.Errorf("failed to initialize browser pool: %w", err)
	}

	a.Enricher = scraper.NewContactEnricher(a.Config.Scraper, a.Logger)
	a.LeadSink = sink.NewLeadSink(a.StorageManager, a.QuotaService, a.EventService, a.Logger)

	// Queue shares the storage manager's Badger instance.
	badgerStore, ok := a.StorageManager.DB().(*badgerhold.Store)
	if !ok {
		return fmt.Errorf("storage manager is not backed by BadgerDB (got %T)", a.StorageManager.DB())
	}
	q, err := queue.NewBadgerQueue(
		badgerStore.Badger(),
		a.Config.Queue.QueueName,
		a.Config.Queue.VisibilityTimeoutDuration(),
		a.Config.Queue.MaxReceive,
		a.Logger,
	)
	if err != nil {
		return fmt.Errorf("failed to initialize queue: %w", err)
	}
	a.Queue = q
	a.Logger.Debug().Str("queue_name", a.Config.Queue.QueueName).Msg("Queue initialized")

	a.CampaignRunner = queue.NewCampaignRunner(
		a.StorageManager,
		a.QuotaService,
		a.LeadSink,
		a.EventService,
		a.Queue,
		a.Config.Campaigns,
		a.Logger,
	)
	a.CampaignRunner.RegisterScraper(scraper.NewMapsScraper(a.BrowserPool, a.Config.Scraper, a.Logger))
	a.CampaignRunner.RegisterScraper(scraper.NewWebScraper(a.BrowserPool, a.Config.Scraper, a.Logger))
	a.CampaignRunner.RegisterScraper(scraper.NewInstagramScraper(a.BrowserPool, a.Config.Scraper, a.Logger))
	a.CampaignRunner.SetContactEnricher(a.Enricher)

	a.WorkerPool = queue.NewWorkerPool(a.Queue, a.Config.Queue, a.Logger)
	a.WorkerPool.RegisterHandler(models.JobTypeCampaignScrape, a.CampaignRunner.Handle)

	a.Reaper = queue.NewReaper(a.StorageManager, a.Queue, a.Config.Campaigns.StaleAfter, a.Logger)

	return nil
}

// initHandlers initializes all HTTP handlers
func (a *App) initHandlers() {
	a.APIHandler = handlers.NewAPIHandler(a.BrowserPool, a.Logger)
	a.WSHub = handlers.NewWebSocketHub(a.EventService, a.Config.WebSocket, a.Logger)
	a.CampaignHandler = handlers.NewCampaignHandler(a.StorageManager, a.QuotaService, a.Queue, a.Logger)
	a.AccountHandler = handlers.NewAccountHandler(a.StorageManager, a.QuotaService, a.Logger)
}

// Close closes all application resources
func (a *App) Close() error {
	if a.Reaper != nil {
		a.Reaper.Stop()
	}

	if a.WorkerPool != nil {
		if err := a.WorkerPool.Stop(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to stop worker pool")
		}
	}

	if a.BrowserPool != nil {
		if err := a.BrowserPool.Shutdown(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to shut down browser pool")
		}
	}

	if a.EventService != nil {
		if err := a.EventService.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close event service")
		}
	}

	if a.StorageManager != nil {
		if err := a.StorageManager.Close(); err != nil {
			return fmt.Errorf("failed to close storage: %w", err)
		}
		a.Logger.Info().Msg("Storage closed")
	}

	return nil
}
