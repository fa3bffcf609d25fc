package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	httpadapter "github.com/JordanRousseau/capital-problem/internal/adapter/http"
	kafkaadapter "github.com/JordanRousseau/capital-problem/internal/adapter/kafka"
	"github.com/JordanRousseau/capital-problem/internal/adapter/sqlite"
	"github.com/JordanRousseau/capital-problem/internal/cache"
	"github.com/JordanRousseau/capital-problem/internal/config"
	"github.com/JordanRousseau/capital-problem/internal/observability"
	"github.com/JordanRousseau/capital-problem/internal/pipeline"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	analysis := cfg.Analysis
	builder := cache.NewCachedBuilder(analysis.Builder(), analysis.CacheSize, metrics)
	transformer := pipeline.NewComparisonTransformer(builder, analysis.Metric, analysis.Workers, logger, metrics)
	logger.Info("analysis configured",
		"metric", analysis.Metric,
		"outlier_window", analysis.Clean.Window,
		"outlier_threshold", analysis.Clean.Threshold,
		"reference_year", analysis.ReferenceYear,
		"workers", analysis.Workers,
		"cache_size", analysis.CacheSize,
	)

	reader := kafkaadapter.NewReader(cfg, logger)
	writer := kafkaadapter.NewWriter(cfg, logger)

	// The report store is optional (REPORT_DB_PATH).
	loader := pipeline.Loaders{writer}
	var reports httpadapter.ReportStore
	var store *sqlite.Store
	if cfg.ReportDBPath != "" {
		store, err = sqlite.Open(cfg.ReportDBPath, metrics)
		if err != nil {
			logger.Error("failed to open report store", "path", cfg.ReportDBPath, "error", err)
			os.Exit(1)
		}
		loader = append(loader, store)
		reports = store
		logger.Info("report store enabled", "path", cfg.ReportDBPath)
	} else {
		logger.Info("report store disabled")
	}

	p := pipeline.New(reader, transformer, loader, logger, metrics,
		pipeline.WithBatchSize(cfg.BatchSize),
	)

	srv := httpadapter.NewServer(cfg.HTTPAddr, p, reports, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start comparison pipeline.
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := p.Run(ctx); err != nil {
			logger.Error("pipeline error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	select {
	case <-done:
	case <-shutdownCtx.Done():
		logger.Warn("pipeline did not stop before shutdown timeout")
	}
	if err := reader.Close(); err != nil {
		logger.Error("kafka reader close error", "error", err)
	}
	if err := writer.Close(); err != nil {
		logger.Error("kafka writer close error", "error", err)
	}
	if err := store.Close(); err != nil {
		logger.Error("report store close error", "error", err)
	}

	logger.Info("shutdown complete")
}
