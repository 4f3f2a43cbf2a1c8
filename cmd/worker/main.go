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

	"github.com/kirillkom/pdf-rag-assistant/internal/bootstrap"
	"github.com/kirillkom/pdf-rag-assistant/internal/config"
	"github.com/kirillkom/pdf-rag-assistant/internal/observability/logging"
	"github.com/kirillkom/pdf-rag-assistant/internal/observability/metrics"
)

func main() {
	cfg := config.Load()
	slog.SetDefault(logging.NewJSONLogger("worker", cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	workerMetrics := metrics.NewWorkerMetrics("worker")
	app, err := bootstrap.New(ctx, cfg, bootstrap.Observers{
		Process:  workerMetrics,
		QueueLag: workerMetrics.ObserveQueueLag,
	})
	if err != nil {
		slog.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()
	if app.Queue == nil {
		slog.Error("worker_requires_queue", "hint", "set NATS_URL")
		os.Exit(1)
	}

	metricsMux := http.NewServeMux()
	metricsMux.Handle("GET /metrics", workerMetrics.Handler())
	metricsServer := &http.Server{
		Addr:              ":" + cfg.WorkerMetricsPort,
		Handler:           metricsMux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("worker_metrics_server_failed", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	slog.Info("worker_subscribed", "subject", cfg.NATSSubject)
	err = app.Queue.SubscribeDocumentIngested(ctx, func(handlerCtx context.Context, documentID string) error {
		workerMetrics.StartDocument()
		defer workerMetrics.FinishDocument()
		_, err := app.Processor.ProcessByID(handlerCtx, documentID, false)
		return err
	})
	if err != nil {
		slog.Error("worker_subscribe_failed", "error", err)
		os.Exit(1)
	}
}
