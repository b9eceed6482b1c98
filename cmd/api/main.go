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

	httpadapter "github.com/kirillkom/pdf-qa-assistant/internal/adapters/http"
	"github.com/kirillkom/pdf-qa-assistant/internal/bootstrap"
	"github.com/kirillkom/pdf-qa-assistant/internal/config"
	"github.com/kirillkom/pdf-qa-assistant/internal/observability/logging"
)

func main() {
	_ = godotenv.Load()
	cfg, cfgErr := config.Load()
	slog.SetDefault(logging.NewJSONLogger("api", cfg.LogLevel))
	if cfgErr != nil {
		slog.Warn("config_file_ignored", "error", cfgErr)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg)
	if err != nil {
		slog.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()
	app.Start(ctx)

	router := httpadapter.NewRouter(
		cfg,
		app.UploadUC,
		app.QueryUC,
		app.StatusUC,
		httpadapter.WithMetrics(app.HTTPMetrics),
		httpadapter.WithBreakerStates(app.Executor.States),
	).Handler()
	server := &http.Server{
		Addr:         ":" + cfg.APIPort,
		Handler:      router,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("api_listening", "port", cfg.APIPort, "queue_driver", cfg.QueueDriver, "llm_provider", cfg.LLMProvider)
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
