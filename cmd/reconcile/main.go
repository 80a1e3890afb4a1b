// Command reconcile runs one catalogue sync against the exchange and exits.
// Exit status 1 means the run failed and nothing was changed.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	"tradi/internal/cache"
	"tradi/internal/config"
	"tradi/internal/database"
	"tradi/internal/exchange/bybit"
	"tradi/internal/logger"
	"tradi/internal/reconciler"
	"tradi/internal/repository"
	"tradi/internal/scheduler"
	"tradi/internal/services"
)

func main() {
	logger.Init(os.Getenv("ENV"))
	defer logger.Sync()

	if err := run(); err != nil {
		logger.Get().Errorw("Catalogue sync failed", "error", err)
		logger.Sync()
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	dbManager, err := database.NewManager(database.NewConfig(cfg))
	if err != nil {
		return fmt.Errorf("failed to create database manager: %w", err)
	}
	defer func() { _ = dbManager.Close() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rec := reconciler.New(
		bybit.NewClient(cfg.BybitBaseURL, &http.Client{Timeout: cfg.RequestTimeout}),
		repository.NewCatalogueRepository(dbManager.DB()),
		reconciler.Config{
			QuoteCoin:    cfg.QuoteCoin,
			Category:     cfg.Category,
			Limit:        cfg.InstrumentsLimit,
			Exchange:     cfg.Exchange,
			FetchTimeout: cfg.RequestTimeout,
		},
		logger.Named("reconciler"),
	)

	// Share the API's lock so a manual run never overlaps a scheduled one.
	var locker scheduler.Locker
	var rdb *redis.Client
	if cfg.RedisURL != "" {
		rdb, err = cache.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		defer func() { _ = rdb.Close() }()
		locker = cache.NewRunLock(rdb, "catalogue:sync:lock", cfg.SyncLockTTL)
	}
	catalogueCache := cache.NewCatalogueCache(rdb, cfg.CacheTTL, nil, logger.Named("cache"))
	auditService := services.NewAuditService(dbManager.DB())

	sched := scheduler.New(rec, locker, "", logger.Named("scheduler"))
	sched.OnChange(func(ctx context.Context, result *reconciler.Result) {
		if err := catalogueCache.Invalidate(ctx); err != nil {
			logger.Get().Warnw("Failed to invalidate catalogue cache", "error", err)
		}
		auditService.Log("", "SYNC_CATALOGUE", "trading_pair", "", "", map[string]interface{}{
			"deactivated":    result.Deactivated,
			"reactivated":    result.Reactivated,
			"assets_created": result.AssetsCreated,
			"pairs_created":  result.PairsCreated,
		})
	})

	result, err := sched.RunOnce(ctx)
	if err != nil {
		return err
	}
	logger.Get().Infow("Catalogue sync finished",
		"listed", result.Listed,
		"deactivated", result.Deactivated,
		"reactivated", result.Reactivated,
		"assets_created", result.AssetsCreated,
		"pairs_created", result.PairsCreated,
		"duration", result.Duration,
	)
	return nil
}
