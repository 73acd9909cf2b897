package main

import (
	"context"
	"errors"
	"fmt"
	"log" // Use standard log only for initial fatal errors before logger is set up
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"brainrotMarket/config"
	"brainrotMarket/internal/adapters/httpapi"
	"brainrotMarket/internal/adapters/logger"
	"brainrotMarket/internal/adapters/notify"
	"brainrotMarket/internal/adapters/storage"
	"brainrotMarket/internal/app"
	"brainrotMarket/internal/catalog"
	"brainrotMarket/internal/jobs"
	"brainrotMarket/internal/ports"
)

const shutdownTimeout = 15 * time.Second

func main() {
	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err) // Use standard log before logger is ready
	}

	// 2. Initialize Logger
	appLogger, err := logger.NewZapLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize logger: %v", err)
	}
	defer appLogger.Sync()
	appLogger.Info(context.Background(), "Logger initialized", map[string]interface{}{"level": cfg.LogLevel.String()})
	if cfg.LogLevel != logger.LevelDebug {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3-8. Wire store, catalog, notifications, service, scheduler and HTTP server
	application, err := newApplication(ctx, cfg, appLogger)
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize application")
		log.Fatalf("FATAL: Failed to initialize application: %v", err)
	}
	if application.scheduler != nil {
		application.scheduler.Start()
	}
	serverErr := make(chan error, 1)
	go func() { serverErr <- application.server.Start() }()

	// 9. Wait for shutdown
	select {
	case <-ctx.Done():
		appLogger.Info(context.Background(), "Shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			appLogger.Error(context.Background(), err, "HTTP server exited with error")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	application.Shutdown(shutdownCtx)

	appLogger.Info(context.Background(), "Application finished gracefully.")
}

// application holds the wired components of the market server.
type application struct {
	logger     ports.Logger
	closeStore storage.CloseFunc
	hub        *notify.Hub
	dispatcher *notify.Dispatcher
	trades     *app.TradeService
	scheduler  *jobs.Scheduler // Nil when the refresh job is disabled
	server     *httpapi.Server
}

func newApplication(ctx context.Context, cfg *config.Config, appLogger *logger.ZapLogger) (*application, error) {
	// 3. Initialize Store (Database Adapter)
	store, closeStore, err := storage.Open(ctx, cfg, appLogger.Named("store"))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize store: %w", err)
	}
	appLogger.Info(ctx, "Store initialized", map[string]interface{}{"driver": cfg.StoreDriver})
	a := &application{logger: appLogger, closeStore: closeStore}

	fail := func(err error) (*application, error) {
		a.Shutdown(context.Background())
		return nil, err
	}

	// 4. Initialize Catalog Cache
	catalogCache, err := catalog.New(store, catalog.Config{TTL: cfg.CatalogCacheTTL, Logger: appLogger.Named("catalog")})
	if err != nil {
		return fail(fmt.Errorf("failed to initialize catalog cache: %w", err))
	}

	// 5. Initialize Notifications (websocket hub + async dispatcher)
	notifyLogger := appLogger.Named("notify")
	a.hub = notify.NewHub(notifyLogger)
	a.dispatcher, err = notify.NewDispatcher(notify.Config{
		Buffer: cfg.NotifyBuffer,
		Logger: notifyLogger,
		Store:  store,
		Pusher: a.hub,
	})
	if err != nil {
		return fail(fmt.Errorf("failed to initialize notification dispatcher: %w", err))
	}

	// 6. Initialize Application Service
	a.trades, err = app.NewTradeService(
		app.Config{TradeTTL: cfg.TradeTTL, FairnessThreshold: cfg.FairnessThreshold},
		appLogger.Named("trades"),
		catalogCache,
		store,
		store,
		a.dispatcher,
	)
	if err != nil {
		return fail(fmt.Errorf("failed to initialize trade service: %w", err))
	}
	appLogger.Info(ctx, "Trade service initialized")

	// 7. Initialize Scheduler
	if cfg.CatalogRefreshSchedule != "" {
		a.scheduler, err = jobs.NewScheduler(cfg.CatalogRefreshSchedule, catalogCache, appLogger.Named("jobs"))
		if err != nil {
			return fail(fmt.Errorf("failed to initialize scheduler: %w", err))
		}
	}

	// 8. Initialize HTTP Server
	a.server, err = httpapi.NewServer(httpapi.Config{
		Addr:           cfg.HTTPAddr,
		RequestTimeout: cfg.RequestTimeout,
		Logger:         appLogger.Named("http"),
		Trades:         a.trades,
		Notifications:  store,
		Catalog:        catalogCache,
		Websocket:      a.hub,
	})
	if err != nil {
		return fail(fmt.Errorf("failed to initialize HTTP server: %w", err))
	}
	return a, nil
}

// Shutdown stops components in reverse start order. Safe on a partially built application.
func (a *application) Shutdown(ctx context.Context) {
	if a.server != nil {
		if err := a.server.Shutdown(ctx); err != nil && !errors.Is(err, context.Canceled) {
			a.logger.Error(ctx, err, "Error shutting down HTTP server")
		}
	}
	if a.scheduler != nil {
		a.scheduler.Stop()
	}
	if a.dispatcher != nil {
		if err := a.dispatcher.Close(ctx); err != nil {
			a.logger.Error(ctx, err, "Error draining notifications")
		}
	}
	if a.hub != nil {
		a.hub.Close()
	}
	if err := a.closeStore(ctx); err != nil {
		a.logger.Error(ctx, err, "Error closing store")
	}
}
