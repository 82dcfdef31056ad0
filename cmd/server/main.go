package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/recipebox/backend/config"
	httpDelivery "github.com/recipebox/backend/internal/delivery/http"
	"github.com/recipebox/backend/internal/domain"
	"github.com/recipebox/backend/internal/infrastructure/cache"
	"github.com/recipebox/backend/internal/infrastructure/catalog"
	"github.com/recipebox/backend/internal/infrastructure/fetcher"
	"github.com/recipebox/backend/internal/infrastructure/metrics"
	"github.com/recipebox/backend/internal/infrastructure/store"
	"github.com/recipebox/backend/internal/usecase"
	"github.com/recipebox/backend/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	zlog, err := logger.New(logger.Config{
		Level:       cfg.Log.Level,
		Format:      cfg.Log.Format,
		Development: cfg.Log.Development,
	})
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer zlog.Sync()

	if err := run(cfg, zlog); err != nil {
		zlog.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, zlog *zap.Logger) error {
	zlog.Info("starting recipebox backend",
		zap.String("version", "1.0.0"),
		zap.String("environment", cfg.Server.Environment),
		zap.String("port", cfg.Server.Port),
		zap.String("cache", cfg.Cache.Type),
		zap.String("catalog", cfg.Catalog.Type))

	pageCache, closeCache, err := newCache(cfg, zlog)
	if err != nil {
		return err
	}
	defer closeCache()

	var db *store.Store
	if cfg.Store.Path != "" {
		db, err = store.Open(cfg.Store.Path, zlog)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer db.Close()
		zlog.Info("recipe store opened", zap.String("path", cfg.Store.Path))
	} else {
		zlog.Warn("no store path configured, saving recipes is disabled")
	}

	var ingredients domain.IngredientCatalog
	var fileCatalog *catalog.FileCatalog
	switch cfg.Catalog.Type {
	case "file":
		fileCatalog, err = catalog.NewFileCatalog(cfg.Catalog.Path)
		if err != nil {
			return fmt.Errorf("load catalog: %w", err)
		}
		ingredients = fileCatalog
	case "sqlite":
		ingredients = db
	default:
		zlog.Warn("no ingredient catalog configured, every line will be unmatched")
	}

	var recipes domain.RecipeRepository
	if db != nil {
		recipes = db
	}

	service := usecase.NewImportService(
		pageCache,
		fetcher.NewClient(fetcher.Config{
			Timeout:       cfg.Fetch.Timeout,
			UserAgent:     cfg.Fetch.UserAgent,
			RatePerSecond: cfg.Fetch.RatePerSecond,
			Burst:         cfg.Fetch.Burst,
			MaxAttempts:   cfg.Fetch.MaxAttempts,
			MaxBodyBytes:  cfg.Fetch.MaxBodyBytes,
			Logger:        zlog,
		}),
		ingredients,
		recipes,
		usecase.ImportServiceConfig{
			CacheTTL:         cfg.Cache.TTL,
			MaxArchiveDepth:  cfg.Import.MaxArchiveDepth,
			MaxEntryBytes:    cfg.Import.MaxEntryBytes,
			MaxTotalBytes:    cfg.Import.MaxTotalBytes,
			PartialThreshold: cfg.Import.PartialThreshold,
			Logger:           zlog,
			Metrics:          metrics.New(prometheus.DefaultRegisterer),
		},
	)

	handler := httpDelivery.NewHandler(service, zlog)
	router := httpDelivery.SetupRouter(cfg, handler, zlog, prometheus.DefaultGatherer)

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		zlog.Info("server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(signals)

	for {
		select {
		case err, ok := <-errCh:
			if ok {
				return fmt.Errorf("listen: %w", err)
			}
			return nil
		case sig := <-signals:
			if sig == syscall.SIGHUP {
				reloadCatalog(fileCatalog, zlog)
				continue
			}
			zlog.Info("shutting down", zap.String("signal", sig.String()))
			ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer cancel()
			return srv.Shutdown(ctx)
		}
	}
}

// newCache builds the configured cache. A redis server that does not answer
// at startup is logged and used anyway; lookups degrade to misses.
func newCache(cfg *config.Config, zlog *zap.Logger) (domain.CacheRepository, func(), error) {
	switch cfg.Cache.Type {
	case "redis":
		rc, err := cache.NewRedisCache(cache.RedisConfig{
			URL:       cfg.Cache.RedisURL,
			KeyPrefix: cfg.Cache.KeyPrefix,
			Logger:    zlog,
		})
		if err != nil {
			return nil, nil, err
		}
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := rc.Ping(ctx); err != nil {
			zlog.Warn("redis not reachable at startup", zap.Error(err))
		}
		return rc, func() { rc.Close() }, nil
	case "memory":
		mc := cache.NewMemoryCache(cfg.Cache.CleanupInterval)
		zlog.Info("memory cache enabled", zap.Duration("ttl", cfg.Cache.TTL))
		return mc, func() { mc.Close() }, nil
	default:
		return nil, func() {}, nil
	}
}

func reloadCatalog(c *catalog.FileCatalog, zlog *zap.Logger) {
	if c == nil {
		return
	}
	if err := c.Reload(); err != nil {
		zlog.Error("catalog reload failed, keeping previous contents", zap.Error(err))
		return
	}
	zlog.Info("catalog reloaded")
}
