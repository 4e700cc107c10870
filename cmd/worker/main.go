package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dmaslov/passage-search/internal/bootstrap"
	"github.com/dmaslov/passage-search/internal/config"
	"github.com/dmaslov/passage-search/internal/observability/logging"
	"github.com/dmaslov/passage-search/internal/observability/metrics"
)

const service = "worker"

func main() {
	cfg := config.Load()
	slog.SetDefault(logging.NewJSONLogger(service, cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg)
	if err != nil {
		slog.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	workerMetrics := metrics.NewWorkerMetrics(service)
	metricsServer := &http.Server{
		Addr:    ":" + cfg.WorkerMetricsPort,
		Handler: workerMetrics.Handler(),
	}
	go func() {
		slog.Info("worker_metrics_listening", "port", cfg.WorkerMetricsPort)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("worker_metrics_failed", "error", err)
		}
	}()

	if err := app.SyncUC.WarmAll(ctx); err != nil {
		slog.Error("index_warmup_failed", "error", err)
		os.Exit(1)
	}

	slog.Info("worker_subscribed", "subject", cfg.NATSSubject)
	err = app.Queue.SubscribeCorpusUpdated(ctx, func(handlerCtx context.Context, corpusID string) error {
		syncCtx, cancel := context.WithTimeout(handlerCtx, 5*time.Minute)
		defer cancel()

		workerMetrics.StartRebuild()
		start := time.Now()
		syncErr := app.SyncUC.SyncCorpus(syncCtx, corpusID)
		workerMetrics.FinishRebuild(service, time.Since(start), syncErr)
		if syncErr == nil {
			if ix, getErr := app.Registry.Get(corpusID); getErr == nil {
				workerMetrics.SetCorpusPassages(service, corpusID, ix.Len())
			}
		}
		return syncErr
	})
	if err != nil {
		slog.Error("worker_subscribe_failed", "error", err)
		os.Exit(1)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = metricsServer.Shutdown(shutdownCtx)
}
