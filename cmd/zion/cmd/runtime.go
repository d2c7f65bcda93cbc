package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/lugondev/go-zion/internal/metrics"
	"github.com/lugondev/go-zion/internal/storage"

	// Register the database backends with the storage factory.
	_ "github.com/lugondev/go-zion/internal/storage/mongo"
	_ "github.com/lugondev/go-zion/internal/storage/mysql"
	_ "github.com/lugondev/go-zion/internal/storage/postgres"
)

// openRepository connects the configured storage backend, with pool lookups
// cached when executor.pool_cache_size is positive.
func openRepository(ctx context.Context) (storage.Repository, func(), error) {
	cm := storage.NewConnectionManager(&cfg.Database)
	repo, err := cm.Connect(ctx)
	if err != nil {
		return nil, nil, err
	}
	logger.Debug("storage connected", "type", string(cm.Type()))

	closeFn := func() {
		if err := cm.Close(); err != nil {
			logger.Error("failed to close storage", "error", err)
		}
	}

	cached, err := storage.WithPoolCache(repo, cfg.Executor.PoolCacheSize)
	if err != nil {
		closeFn()
		return nil, nil, err
	}
	return cached, closeFn, nil
}

// buildMetrics creates the configured metrics backend. The Prometheus backend
// also serves /metrics on metrics.listen until the returned stop is called.
func buildMetrics(ctx context.Context) (*metrics.Collection, func(), error) {
	mc := metrics.NewCollection()
	stop := func() {}
	if !cfg.Metrics.Enabled {
		mc.Add(metrics.NewNoopMetrics())
		return mc, stop, nil
	}

	switch cfg.Metrics.Backend {
	case "prometheus":
		prom := metrics.NewPrometheusMetrics(cfg.Metrics.Namespace)
		mc.Add(prom)

		mux := http.NewServeMux()
		mux.Handle("/metrics", prom.Handler())
		srv := &http.Server{
			Addr:              cfg.Metrics.Listen,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server stopped", "error", err)
			}
		}()
		logger.Info("serving metrics", "listen", cfg.Metrics.Listen)

		stop = func() {
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}
	default:
		mc.Add(metrics.NewLogMetrics(logger))
	}

	if err := mc.Initialize(ctx); err != nil {
		stop()
		return nil, nil, fmt.Errorf("failed to initialize metrics: %w", err)
	}
	return mc, stop, nil
}
