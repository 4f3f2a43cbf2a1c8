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

	httpadapter "github.com/kirillkom/pdf-rag-assistant/internal/adapters/http"
	"github.com/kirillkom/pdf-rag-assistant/internal/bootstrap"
	"github.com/kirillkom/pdf-rag-assistant/internal/config"
	"github.com/kirillkom/pdf-rag-assistant/internal/observability/logging"
	"github.com/kirillkom/pdf-rag-assistant/internal/observability/metrics"
)

func main() {
	cfg := config.Load()
	slog.SetDefault(logging.NewJSONLogger("api", cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	httpMetrics := metrics.NewHTTPServerMetrics("api")
	app, err := bootstrap.New(ctx, cfg, bootstrap.Observers{
		Process: httpMetrics,
		Ask:     httpMetrics,
	})
	if err != nil {
		slog.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	router := httpadapter.NewRouter(cfg, httpadapter.Services{
		Uploader:  app.Uploader,
		Processor: app.Processor,
		Documents: app.Documents,
		Answerer:  app.Answerer,
		History:   app.History,
		Samples:   app.Samples,
		Auth:      app.Auth,
	}, httpMetrics).Handler()

	server := &http.Server{
		Addr:         ":" + cfg.APIPort,
		Handler:      router,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: cfg.GenerationTimeout + 30*time.Second,
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
