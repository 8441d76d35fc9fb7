package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mkovalenko/docupipe/internal/bootstrap"
	"github.com/mkovalenko/docupipe/internal/config"
	"github.com/mkovalenko/docupipe/internal/core/domain"
)

func main() {
	cfg := config.Load()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, "worker")
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	// Pipeline events drive metrics and are mirrored to the events
	// subject for external consumers.
	_, metricsEvents := app.Bus.Subscribe(256)
	go func() {
		for event := range metricsEvents {
			app.PipelineMetrics.ObserveEvent(event)
		}
	}()
	_, mirroredEvents := app.Bus.Subscribe(256)
	go func() {
		for event := range mirroredEvents {
			app.Queue.PublishEvent(event)
		}
	}()

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", app.PipelineMetrics.Handler())
	metricsMux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	metricsServer := &http.Server{
		Addr:        ":" + cfg.WorkerMetricsPort,
		Handler:     metricsMux,
		ReadTimeout: 10 * time.Second,
	}
	go func() {
		app.Logger.Info("worker metrics listening", "port", cfg.WorkerMetricsPort)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("worker metrics server error: %v", err)
		}
	}()

	app.Logger.Info("worker subscribed", "subject", cfg.NATSSubject)
	err = app.Queue.SubscribeBatchSubmitted(ctx, func(handlerCtx context.Context, manifest domain.BatchManifest) error {
		batchCtx, cancel := context.WithTimeout(handlerCtx, 30*time.Minute)
		defer cancel()

		docs := resolveManifest(batchCtx, app, manifest)
		report, err := app.Scheduler.ProcessBatch(batchCtx, manifest.ID, docs, manifest.Options)
		if err != nil {
			app.Logger.Error("batch processing failed", "batch_id", manifest.ID, "error", err)
			return err
		}
		app.Logger.Info("batch report ready",
			"batch_id", report.ID,
			"succeeded", report.Stats.Succeeded,
			"failed", report.Stats.Failed,
		)
		return nil
	})
	if err != nil {
		log.Fatalf("worker subscribe error: %v", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = metricsServer.Shutdown(shutdownCtx)
}

// resolveManifest turns manifest paths into document descriptors.
// Directory paths expand to their regular files; unresolvable paths are
// logged and skipped so one bad path never sinks the whole batch.
func resolveManifest(ctx context.Context, app *bootstrap.App, manifest domain.BatchManifest) []domain.DocumentDescriptor {
	docs := make([]domain.DocumentDescriptor, 0, len(manifest.Paths))
	for _, path := range manifest.Paths {
		doc, err := app.Storage.Describe(ctx, path)
		if err == nil {
			docs = append(docs, doc)
			continue
		}
		expanded, dirErr := app.Storage.DescribeDir(ctx, path)
		if dirErr != nil {
			app.Logger.Warn("manifest path skipped", "batch_id", manifest.ID, "path", path, "error", err)
			continue
		}
		docs = append(docs, expanded...)
	}
	return docs
}
