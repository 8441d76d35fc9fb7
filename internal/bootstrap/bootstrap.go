package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mkovalenko/docupipe/internal/config"
	"github.com/mkovalenko/docupipe/internal/core/usecase"
	"github.com/mkovalenko/docupipe/internal/infrastructure/cache"
	"github.com/mkovalenko/docupipe/internal/infrastructure/events"
	local "github.com/mkovalenko/docupipe/internal/infrastructure/extractor/local"
	"github.com/mkovalenko/docupipe/internal/infrastructure/intelligence/ollama"
	"github.com/mkovalenko/docupipe/internal/infrastructure/language"
	"github.com/mkovalenko/docupipe/internal/infrastructure/queue/nats"
	"github.com/mkovalenko/docupipe/internal/infrastructure/repository/postgres"
	"github.com/mkovalenko/docupipe/internal/infrastructure/resilience"
	"github.com/mkovalenko/docupipe/internal/infrastructure/storage/localfs"
	"github.com/mkovalenko/docupipe/internal/observability/logging"
	"github.com/mkovalenko/docupipe/internal/observability/metrics"
)

type App struct {
	Config config.Config
	Logger *slog.Logger

	Storage *localfs.Storage
	Queue   *nats.Queue
	Reports *postgres.ReportRepository
	Bus     *events.Bus

	Pipeline  *usecase.FilePipeline
	Scheduler *usecase.BatchScheduler
	Engine    *usecase.ClassificationEngine

	PipelineMetrics *metrics.PipelineMetrics

	closeFn func()
}

func New(ctx context.Context, cfg config.Config, service string) (*App, error) {
	logger := logging.NewJSONLogger(service, cfg.LogLevel)
	slog.SetDefault(logger)

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	reports := postgres.NewReportRepository(db)
	if err := reports.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	policy := resilience.DefaultPolicy()
	policy.RetryMaxAttempts = cfg.RetryAttempts
	executor := resilience.NewExecutor(policy)

	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, cfg.NATSEventsSubject, nats.Options{
		ResilienceExecutor: executor,
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init batch queue: %w", err)
	}

	pipelineMetrics := metrics.NewPipelineMetrics(service)

	intel := ollama.New(cfg.OllamaURL, cfg.OllamaModel, ollama.Options{
		RequestsPerSecond: cfg.AIRequestsPerSecond,
		Executor:          executor,
		Observer:          pipelineMetrics,
	})

	table := usecase.DefaultTaxonomy()
	if cfg.TaxonomyPath != "" {
		table, err = usecase.LoadTaxonomy(cfg.TaxonomyPath)
		if err != nil {
			queue.Close()
			_ = db.Close()
			return nil, fmt.Errorf("load taxonomy: %w", err)
		}
	}

	engine := usecase.NewClassificationEngine(
		intel,
		cache.NewClassificationLRU(cfg.CacheSize, cfg.CacheTTL),
		table,
		usecase.FusionWeights{
			Keyword: cfg.KeywordWeight,
			Pattern: cfg.PatternWeight,
			AI:      cfg.AIWeight,
		},
		cfg.MinConfidence,
	)

	bus := events.NewBus()

	pipeline := usecase.NewFilePipeline(
		storage,
		local.NewExtractor(storage, cfg.MaxFileSize),
		intel,
		engine,
		language.NewDetector(),
		bus,
		usecase.PipelineConfig{
			MaxFileSize: cfg.MaxFileSize,
			Timeouts: usecase.StageTimeouts{
				Validation:     cfg.ValidationTimeout,
				Extraction:     cfg.ExtractionTimeout,
				Processing:     cfg.ProcessingTimeout,
				Classification: cfg.ClassificationTimeout,
				Formatting:     cfg.FormattingTimeout,
				Output:         cfg.OutputTimeout,
			},
		},
	)

	scheduler := usecase.NewBatchScheduler(pipeline, intel, bus, reports, logger)

	return &App{
		Config: cfg,
		Logger: logger,

		Storage: storage,
		Queue:   queue,
		Reports: reports,
		Bus:     bus,

		Pipeline:  pipeline,
		Scheduler: scheduler,
		Engine:    engine,

		PipelineMetrics: pipelineMetrics,

		closeFn: func() {
			bus.Close()
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
