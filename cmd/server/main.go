package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	appsync "github.com/shopfront/backend/internal/application/sync"
	syncdomain "github.com/shopfront/backend/internal/domain/sync"
	"github.com/shopfront/backend/internal/infrastructure/cache"
	"github.com/shopfront/backend/internal/infrastructure/config"
	"github.com/shopfront/backend/internal/infrastructure/erp"
	"github.com/shopfront/backend/internal/infrastructure/event"
	"github.com/shopfront/backend/internal/infrastructure/logger"
	"github.com/shopfront/backend/internal/infrastructure/persistence"
	"github.com/shopfront/backend/internal/infrastructure/scheduler"
	"github.com/shopfront/backend/internal/infrastructure/telemetry"
	"github.com/shopfront/backend/internal/interfaces/http/handler"
	"github.com/shopfront/backend/internal/interfaces/http/router"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("load config: " + err.Error())
	}

	zapLogger, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		panic("init logger: " + err.Error())
	}
	defer func() { _ = logger.Sync(zapLogger) }()

	if err := run(cfg, zapLogger); err != nil {
		zapLogger.Fatal("server exited with error", zap.Error(err))
	}
}

func run(cfg *config.Config, zapLogger *zap.Logger) error {
	ctx := context.Background()

	// Tracing
	tracerProvider, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, zapLogger)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
			zapLogger.Warn("tracer provider shutdown failed", zap.Error(err))
		}
	}()

	// Database
	gormLogger := logger.NewGormLogger(zapLogger, logger.MapGormLogLevel(cfg.Log.Level))
	db, err := persistence.NewDatabaseWithLogger(&cfg.Database, gormLogger)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			zapLogger.Warn("database close failed", zap.Error(err))
		}
	}()

	if cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled {
		plugin := telemetry.NewDBTracingPlugin(telemetry.DefaultDBTracingConfig(), zapLogger)
		if err := plugin.RegisterOtelGorm(db.DB); err != nil {
			zapLogger.Warn("database tracing not registered", zap.Error(err))
		}
	}

	// Repositories
	stateRepo := persistence.NewGormSyncStateRepository(db.DB)
	logRepo := persistence.NewGormSyncLogRepository(db.DB)
	mappingRepo := persistence.NewGormExternalMappingRepository(db.DB)
	catalog := persistence.NewGormProductCatalog(db.DB)
	directory := persistence.NewGormCustomerDirectory(db.DB)
	orderBook := persistence.NewGormOrderBook(db.DB)

	// ERP client
	erpClient, err := erp.NewHTTPClient(&erp.ClientConfig{
		BaseURL:        cfg.ERP.BaseURL,
		APIKey:         cfg.ERP.APIKey,
		APISecret:      cfg.ERP.APISecret,
		WarehouseCode:  cfg.ERP.WarehouseCode,
		TimeoutSeconds: int(cfg.ERP.RequestTimeout.Seconds()),
	})
	if err != nil {
		return err
	}

	// Sync engine
	oplog := appsync.NewSyncLogger(logRepo, appsync.CalculateNextRetryDelay, zapLogger)
	guard := appsync.NewKeyedGuard()
	resolver := appsync.NewConflictResolver()

	stocks := appsync.NewStockSyncService(erpClient, catalog, stateRepo, oplog, resolver, guard, zapLogger)
	prices := appsync.NewPriceSyncService(erpClient, catalog, stateRepo, oplog, resolver, guard, zapLogger)
	customers := appsync.NewCustomerSyncService(erpClient, directory, stateRepo, mappingRepo, oplog, guard, zapLogger)
	orders := appsync.NewOrderSyncService(erpClient, orderBook, customers, stateRepo, mappingRepo, oplog, guard, zapLogger)
	invoices := appsync.NewInvoiceSyncService(erpClient, orderBook, orders, stateRepo, mappingRepo, oplog, guard, zapLogger)

	orchestrator := appsync.NewOrchestrator(stocks, prices, customers, orders, invoices, stateRepo, oplog, zapLogger)

	retryService := appsync.NewRetryService(oplog, zapLogger)
	retryService.Register(syncdomain.EntityTypeStock, stocks)
	retryService.Register(syncdomain.EntityTypePrice, prices)
	retryService.Register(syncdomain.EntityTypeCustomer, customers)
	retryService.Register(syncdomain.EntityTypeOrder, orders)
	retryService.Register(syncdomain.EntityTypeInvoice, invoices)

	// Scheduler
	executor := scheduler.NewSyncJobExecutor(orchestrator, retryService, cfg.Sync.MaxRetryItems, zapLogger)
	sched := scheduler.NewScheduler(scheduler.SchedulerConfig{
		Enabled:           cfg.Scheduler.Enabled,
		MaxConcurrentJobs: cfg.Scheduler.MaxConcurrentJobs,
		JobTimeout:        cfg.Scheduler.JobTimeout,
	}, executor, zapLogger)

	trigger, err := scheduler.NewSyncTrigger(scheduler.SyncTriggerConfig{
		FullSyncSchedule: cfg.Sync.FullSyncSchedule,
		DeltaInterval:    cfg.Sync.DeltaInterval,
		RetryInterval:    cfg.Sync.RetryInterval,
		CheckInterval:    time.Minute,
	}, sched, zapLogger)
	if err != nil {
		return err
	}

	if cfg.Scheduler.Enabled {
		if err := sched.Start(ctx); err != nil {
			return err
		}
		if err := trigger.Start(ctx); err != nil {
			return err
		}
	}

	// Webhook dedup store; the factory falls back to the in-memory store
	// when Redis is unreachable
	storeFactory := cache.NewIdempotencyStoreFactory(cfg.Redis,
		cache.WithLogger(zapLogger),
		cache.WithInMemoryFallback(true),
	)
	idempotencyStore, err := storeFactory.CreateStore()
	if err != nil {
		return err
	}
	defer func() {
		if err := idempotencyStore.Close(); err != nil {
			zapLogger.Warn("idempotency store close failed", zap.Error(err))
		}
	}()

	// Event bus: confirmed orders are pushed to the ERP immediately rather
	// than waiting for the next delta cycle
	bus := event.NewInMemoryEventBus(zapLogger)
	confirmedHandler := event.NewIdempotentHandler(
		appsync.NewOrderConfirmedHandler(orders, bus, zapLogger),
		idempotencyStore,
		zapLogger,
	)
	bus.Subscribe(confirmedHandler, confirmedHandler.EventTypes()...)
	adjustedHandler := event.NewIdempotentHandler(
		appsync.NewStockAdjustedHandler(stocks, zapLogger),
		idempotencyStore,
		zapLogger,
	)
	bus.Subscribe(adjustedHandler, adjustedHandler.EventTypes()...)

	// HTTP
	engine := newEngine(cfg)
	router.Setup(engine, router.Config{
		SyncHandler:    handler.NewSyncHandler(orchestrator, oplog, logRepo, trigger),
		WebhookHandler: handler.NewWebhookHandler(catalog, stocks, idempotencyStore, cfg.Webhook.IdempotencyTTL, zapLogger),
		Webhook:        cfg.Webhook,
		HTTP:           cfg.HTTP,
		Database:       db,
		Logger:         zapLogger,
	})

	server := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	errCh := make(chan error, 1)
	go func() {
		zapLogger.Info("http server listening",
			zap.String("addr", server.Addr),
			zap.String("env", cfg.App.Env),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		zapLogger.Info("shutdown signal received", zap.String("signal", sig.String()))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if cfg.Scheduler.Enabled {
		if err := trigger.Stop(shutdownCtx); err != nil {
			zapLogger.Warn("sync trigger stop failed", zap.Error(err))
		}
		if err := sched.Stop(shutdownCtx); err != nil {
			zapLogger.Warn("scheduler stop failed", zap.Error(err))
		}
	}

	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}

	zapLogger.Info("server stopped")
	return nil
}

func newEngine(cfg *config.Config) *gin.Engine {
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	if len(cfg.HTTP.TrustedProxies) > 0 {
		_ = engine.SetTrustedProxies(cfg.HTTP.TrustedProxies)
	}
	return engine
}
