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

	"go.uber.org/zap"

	"github.com/catalogsync/backend/config"
	httpDelivery "github.com/catalogsync/backend/internal/delivery/http"
	"github.com/catalogsync/backend/internal/domain"
	"github.com/catalogsync/backend/internal/infrastructure/affiliate"
	"github.com/catalogsync/backend/internal/infrastructure/cache"
	"github.com/catalogsync/backend/internal/infrastructure/cj"
	"github.com/catalogsync/backend/internal/infrastructure/logger"
	"github.com/catalogsync/backend/internal/infrastructure/pepperjam"
	"github.com/catalogsync/backend/internal/infrastructure/persistence"
	"github.com/catalogsync/backend/internal/usecase"
)

const shutdownTimeout = 30 * time.Second

type closableCache interface {
	domain.CacheRepository
	Close() error
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	log.Info("Starting CatalogSync Backend v1.0.0",
		zap.String("env", cfg.Server.Environment),
		zap.String("port", cfg.Server.Port),
		zap.String("cache", cfg.Cache.Type),
		zap.String("db_driver", cfg.Database.Driver))

	db, err := persistence.NewDatabase(cfg.Database, logger.NewGormLogger(log, logger.GormLevel(cfg.Log.Level)))
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	if cfg.Database.AutoMigrate {
		if err := db.Migrate(); err != nil {
			log.Fatal("Failed to migrate database", zap.Error(err))
		}
	}

	accountCache, err := newCache(cfg.Cache)
	if err != nil {
		log.Fatal("Failed to initialize cache", zap.Error(err))
	}
	defer func() { _ = accountCache.Close() }()

	adapters, mappers := newNetworks(cfg, log)
	if len(adapters) == 0 {
		log.Fatal("No affiliate network configured")
	}

	products := persistence.NewGormProductRepository(db.DB)
	brands := persistence.NewGormBrandRepository(db.DB)

	normalizer := usecase.NewNormalizer(log, mappers...)
	matching := usecase.NewMatchingService(products, log)
	refresher := usecase.NewRefreshService(products, brands, adapters, normalizer, matching, cfg.Import.RefreshWindow, log)
	jobService := usecase.NewImportJobService(
		persistence.NewGormJobRepository(db.DB),
		brands,
		adapters,
		normalizer,
		matching,
		usecase.NewAccountValidator(accountCache, cfg.Cache.TTL, log),
		usecase.ImportJobConfig{
			DefaultLimit: cfg.Import.DefaultLimit,
			MaxLimit:     cfg.Import.MaxLimit,
			JobTimeout:   cfg.Import.JobTimeout,
		},
		log,
	)

	handler := httpDelivery.NewHandler(
		jobService,
		usecase.NewProductService(products, refresher, affiliate.Parser{}, log),
		usecase.NewBulkService(products, refresher, cfg.Import.BulkConcurrency, log),
		db,
	)
	router := httpDelivery.SetupRouter(cfg, handler, log)

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("Server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	// running import jobs finish under their own timeout
	jobService.Wait()
	log.Info("Server exited gracefully")
}

func newCache(cfg config.CacheConfig) (closableCache, error) {
	if cfg.Type == "redis" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		redisCache, err := cache.NewRedisCache(ctx, cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		return redisCache, nil
	}
	return cache.NewMemoryCache(), nil
}

// newNetworks builds an adapter and a listing mapper for every configured network
func newNetworks(cfg *config.Config, log *zap.Logger) ([]domain.NetworkAdapter, []domain.ListingMapper) {
	var (
		adapters []domain.NetworkAdapter
		mappers  []domain.ListingMapper
	)

	if cfg.CJ.Enabled() {
		links := affiliate.NewBuilder(domain.NetworkCJ, affiliate.Template{
			Host:        cfg.Affiliate.CJClickHost,
			PublisherID: cfg.CJ.PID,
		}, log)
		adapters = append(adapters, cj.NewClient(cj.Config{
			APIToken:      cfg.CJ.APIToken,
			CompanyID:     cfg.CJ.CompanyID,
			BaseURL:       cfg.CJ.BaseURL,
			RatePerMinute: cfg.CJ.RatePerMinute,
			MaxScan:       cfg.Import.MaxScan,
		}, log))
		mappers = append(mappers, cj.NewMapper(links))
		log.Info("CJ adapter configured", zap.String("base_url", cfg.CJ.BaseURL))
	} else {
		log.Warn("CJ adapter not configured, CJ brands will fail to import")
	}

	if cfg.Pepperjam.Enabled() {
		links := affiliate.NewBuilder(domain.NetworkPepperjam, affiliate.Template{
			Host:        cfg.Affiliate.PepperjamClickHost,
			PublisherID: cfg.Pepperjam.PublisherID,
		}, log)
		adapters = append(adapters, pepperjam.NewClient(pepperjam.Config{
			APIKey:        cfg.Pepperjam.APIKey,
			APIVersion:    cfg.Pepperjam.APIVersion,
			BaseURL:       cfg.Pepperjam.BaseURL,
			RatePerMinute: cfg.Pepperjam.RatePerMinute,
			MaxScan:       cfg.Import.MaxScan,
		}, log))
		mappers = append(mappers, pepperjam.NewMapper(links))
		log.Info("Pepperjam adapter configured", zap.String("base_url", cfg.Pepperjam.BaseURL))
	} else {
		log.Warn("Pepperjam adapter not configured, Pepperjam brands will fail to import")
	}

	return adapters, mappers
}
