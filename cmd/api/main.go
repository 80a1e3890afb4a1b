package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"tradi/internal/cache"
	"tradi/internal/config"
	"tradi/internal/database"
	"tradi/internal/exchange/bybit"
	"tradi/internal/logger"
	"tradi/internal/reconciler"
	"tradi/internal/repository"
	"tradi/internal/scheduler"
	"tradi/internal/server"
	"tradi/internal/services"
	"tradi/internal/validator"
)

const (
	runLockKey      = "catalogue:sync:lock"
	shutdownTimeout = 15 * time.Second
)

func main() {
	// Initialize logger (use ENV var if available, default to development)
	logger.Init(os.Getenv("ENV"))
	defer logger.Sync()

	if err := run(); err != nil {
		logger.Get().Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	log := logger.Get()

	// Load configuration
	appConfig, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Create database manager
	dbManager, err := database.NewManager(database.NewConfig(appConfig))
	if err != nil {
		return fmt.Errorf("failed to create database manager: %w", err)
	}
	defer func() { _ = dbManager.Close() }()

	// Run migrations
	if err := dbManager.RunMigrations(); err != nil {
		return fmt.Errorf("failed to run database migrations: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Redis is optional; without it the catalogue is served uncached and the
	// sync lock only covers this process.
	var rdb *redis.Client
	if appConfig.RedisURL != "" {
		rdb, err = cache.NewRedisClient(ctx, appConfig.RedisURL)
		if err != nil {
			log.Warnw("Continuing without Redis", "error", err)
			rdb = nil
		} else {
			defer func() { _ = rdb.Close() }()
		}
	}

	// Initialize services
	db := dbManager.DB()
	userService := services.NewUserService(db)
	auditService := services.NewAuditService(db)
	catalogueCache := cache.NewCatalogueCache(rdb, appConfig.CacheTTL, services.NewCatalogueService(db), logger.Named("cache"))
	positionService := services.NewPositionService(db, catalogueCache)

	// Catalogue sync
	rec := reconciler.New(
		bybit.NewClient(appConfig.BybitBaseURL, &http.Client{Timeout: appConfig.RequestTimeout}),
		repository.NewCatalogueRepository(db),
		reconcilerConfig(appConfig),
		logger.Named("reconciler"),
	)
	var locker scheduler.Locker = &cache.LocalLock{}
	if rdb != nil {
		locker = cache.NewRunLock(rdb, runLockKey, appConfig.SyncLockTTL)
	}
	sched := scheduler.New(rec, locker, appConfig.SyncSchedule, logger.Named("scheduler"))
	sched.OnChange(func(ctx context.Context, result *reconciler.Result) {
		if err := catalogueCache.Invalidate(ctx); err != nil {
			log.Warnw("Failed to invalidate catalogue cache", "error", err)
		}
		auditService.Log("", "SYNC_CATALOGUE", "trading_pair", "", "", map[string]interface{}{
			"deactivated":    result.Deactivated,
			"reactivated":    result.Reactivated,
			"assets_created": result.AssetsCreated,
			"pairs_created":  result.PairsCreated,
		})
	})
	if err := sched.Start(); err != nil {
		return err
	}

	validator.Register()

	router := server.NewRouter(server.Deps{
		UserService:      userService,
		CatalogueService: catalogueCache,
		PositionService:  positionService,
		AuditService:     auditService,
		Syncer:           sched,
		JWTSecret:        appConfig.JWTSecret,
		TokenTTL:         appConfig.JWTExpirationDur,
		PipelineAPIKey:   appConfig.PipelineAPIKey,
	})

	srv := &http.Server{
		Addr:              ":" + appConfig.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("Starting tradi API server on port %s", appConfig.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
		log.Info("Shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warnw("HTTP server shutdown", "error", err)
	}
	select {
	case <-sched.Stop().Done():
	case <-shutdownCtx.Done():
		log.Warn("Catalogue sync still running at shutdown")
	}
	return nil
}

func reconcilerConfig(cfg *config.Config) reconciler.Config {
	return reconciler.Config{
		QuoteCoin:    cfg.QuoteCoin,
		Category:     cfg.Category,
		Limit:        cfg.InstrumentsLimit,
		Exchange:     cfg.Exchange,
		FetchTimeout: cfg.RequestTimeout,
	}
}
