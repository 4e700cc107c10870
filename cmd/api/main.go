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

	httpadapter "github.com/dmaslov/passage-search/internal/adapters/http"
	mcpadapter "github.com/dmaslov/passage-search/internal/adapters/mcp"
	"github.com/dmaslov/passage-search/internal/bootstrap"
	"github.com/dmaslov/passage-search/internal/config"
	"github.com/dmaslov/passage-search/internal/observability/logging"
	"github.com/dmaslov/passage-search/internal/observability/metrics"
)

func main() {
	cfg := config.Load()
	slog.SetDefault(logging.NewJSONLogger("api", cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg)
	if err != nil {
		slog.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	if err := app.SyncUC.WarmAll(ctx); err != nil {
		slog.Error("index_warmup_failed", "error", err)
		os.Exit(1)
	}

	// Keep this instance's indexes current with corpora loaded elsewhere.
	go func() {
		if err := app.Queue.SubscribeCorpusUpdated(ctx, app.SyncUC.SyncCorpus); err != nil {
			slog.Error("corpus_subscription_failed", "error", err)
			stop()
		}
	}()

	if cfg.MCPEnabled {
		mcpServer := mcpadapter.NewServer(app.Engine, app.Engine)
		go func() {
			if err := mcpServer.Serve(ctx); err != nil {
				slog.Error("mcp_server_failed", "error", err)
			}
		}()
	}

	serverMetrics := metrics.NewHTTPServerMetrics("api")
	router := httpadapter.NewRouter(app.Engine, app.Engine, app.Queue, serverMetrics, cfg)
	server := &http.Server{
		Addr:         ":" + cfg.APIPort,
		Handler:      router.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("api_listening", "port", cfg.APIPort)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("api_server_failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("api_shutdown_failed", "error", err)
	}
}
