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

	"github.com/joho/godotenv"

	"github.com/kirillkom/pdf-qa-assistant/internal/bootstrap"
	"github.com/kirillkom/pdf-qa-assistant/internal/config"
	"github.com/kirillkom/pdf-qa-assistant/internal/observability/logging"
)

func main() {
	_ = godotenv.Load()
	cfg, cfgErr := config.Load()
	slog.SetDefault(logging.NewJSONLogger("worker", cfg.LogLevel))
	if cfgErr != nil {
		slog.Warn("config_file_ignored", "error", cfgErr)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	w, err := bootstrap.NewWorker(ctx, cfg)
	if err != nil {
		slog.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer w.Close()

	mux := http.NewServeMux()
	mux.Handle("GET /metrics", w.Metrics.Handler())
	metricsServer := &http.Server{
		Addr:              ":" + cfg.WorkerMetricsPort,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("worker_metrics_server_failed", "error", err)
		}
	}()

	slog.Info("worker_subscribed", "subject", cfg.NATSSubject)
	if err := w.Run(ctx); err != nil {
		slog.Error("worker_subscribe_failed", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = metricsServer.Shutdown(shutdownCtx)
}
