package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/mkovalenko/docupipe/internal/core/domain"
	"github.com/mkovalenko/docupipe/internal/core/ports"
)

// BatchScheduler partitions documents into fixed-size batches and runs
// each batch under a bounded concurrency window. One scheduler instance
// runs one batch job at a time. Cancellation is cooperative: it is
// checked before starting new documents, in-flight work is not aborted.
type BatchScheduler struct {
	processor ports.FileProcessor
	intel     ports.DocumentIntelligence
	events    ports.EventPublisher
	reports   ports.ReportStore
	logger    *slog.Logger

	processing atomic.Bool
	cancelled  atomic.Bool

	mu           sync.Mutex
	currentBatch string
}

func NewBatchScheduler(
	processor ports.FileProcessor,
	intel ports.DocumentIntelligence,
	events ports.EventPublisher,
	reports ports.ReportStore,
	logger *slog.Logger,
) *BatchScheduler {
	if events == nil {
		events = nopPublisher{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &BatchScheduler{
		processor: processor,
		intel:     intel,
		events:    events,
		reports:   reports,
		logger:    logger,
	}
}

func (s *BatchScheduler) ProcessBatch(
	ctx context.Context,
	id string,
	docs []domain.DocumentDescriptor,
	opts domain.BatchOptions,
) (*domain.BatchReport, error) {
	if !s.processing.CompareAndSwap(false, true) {
		return nil, domain.ErrBatchBusy
	}
	defer s.processing.Store(false)
	s.cancelled.Store(false)

	opts = normalizeBatchOptions(opts)
	batchID := id
	if batchID == "" {
		batchID = uuid.NewString()
	}
	s.setCurrentBatch(batchID)
	defer s.setCurrentBatch("")

	kept, warnings := s.filter(docs, opts)
	stats := domain.BatchStats{
		Total:     len(kept),
		Dropped:   len(docs) - len(kept),
		StartedAt: time.Now().UTC(),
	}
	report := &domain.BatchReport{ID: batchID, Warnings: warnings}

	s.logger.Info("batch_started",
		"batch_id", batchID,
		"total", stats.Total,
		"dropped", stats.Dropped,
		"batch_size", opts.BatchSize,
		"concurrency", opts.Concurrency,
	)

	var mu sync.Mutex
	var totalDuration time.Duration

	for _, batch := range partition(kept, opts.BatchSize) {
		// Cancel already emitted the failure event; the loop only
		// stops handing out work.
		if s.cancelled.Load() {
			break
		}

		group, groupCtx := errgroup.WithContext(ctx)
		group.SetLimit(opts.Concurrency)
		for _, doc := range batch {
			if s.cancelled.Load() {
				break
			}
			group.Go(func() error {
				result, err := s.processor.ProcessFile(groupCtx, doc, opts.Process)
				if result == nil {
					result = &domain.PipelineResult{
						Document: doc,
						Success:  false,
						Error:    fmt.Sprintf("pipeline returned no result: %v", err),
					}
				}

				mu.Lock()
				defer mu.Unlock()
				report.Results = append(report.Results, result)
				stats.Processed++
				if result.Success {
					stats.Succeeded++
				} else {
					stats.Failed++
				}
				totalDuration += result.Duration
				return nil
			})
		}
		// Document failures are recorded per result, never propagated:
		// a failing document must not cancel its siblings.
		_ = group.Wait()

		mu.Lock()
		processed := stats.Processed
		mu.Unlock()
		s.events.Publish(domain.BatchProgress{BatchID: batchID, Processed: processed, Total: stats.Total})
	}

	stats.FinishedAt = time.Now().UTC()
	if stats.Processed > 0 {
		stats.AvgDuration = totalDuration / time.Duration(stats.Processed)
	}

	if opts.CollectInsight && stats.Succeeded > 1 && !s.cancelled.Load() {
		report.Insight = s.collectInsight(ctx, report.Results)
	}

	report.Stats = stats

	if s.reports != nil {
		if err := s.reports.SaveReport(ctx, report); err != nil {
			s.logger.Warn("batch_report_persist_failed", "batch_id", batchID, "error", err)
			report.Warnings = append(report.Warnings, fmt.Sprintf("report not persisted: %v", err))
		}
	}

	s.events.Publish(domain.BatchCompleted{BatchID: batchID, Stats: stats})
	s.logger.Info("batch_completed",
		"batch_id", batchID,
		"processed", stats.Processed,
		"succeeded", stats.Succeeded,
		"failed", stats.Failed,
		"avg_duration_ms", float64(stats.AvgDuration.Microseconds())/1000.0,
	)
	return report, nil
}

// Cancel flags the running batch job as cancelled and emits the error
// event exactly once; repeat calls are no-ops. Documents already
// handed to the pipeline keep running.
func (s *BatchScheduler) Cancel() {
	if !s.processing.Load() {
		return
	}
	if !s.cancelled.CompareAndSwap(false, true) {
		return
	}
	s.events.Publish(domain.BatchFailed{BatchID: s.getCurrentBatch(), Error: "batch cancelled"})
}

// filter drops oversized and unsupported files before scheduling. Drops
// are warnings, not failures: they never enter the processed counts.
func (s *BatchScheduler) filter(docs []domain.DocumentDescriptor, opts domain.BatchOptions) ([]domain.DocumentDescriptor, []string) {
	kept := make([]domain.DocumentDescriptor, 0, len(docs))
	var warnings []string
	for _, doc := range docs {
		if doc.Size > opts.MaxFileSize {
			warnings = append(warnings, fmt.Sprintf("dropped %s: %d bytes exceeds limit %d", doc.Name, doc.Size, opts.MaxFileSize))
			continue
		}
		if _, ok := FileCategoryFor(doc); !ok {
			warnings = append(warnings, fmt.Sprintf("dropped %s: unsupported media type %q", doc.Name, doc.MediaType))
			continue
		}
		kept = append(kept, doc)
	}
	return kept, warnings
}

func (s *BatchScheduler) setCurrentBatch(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.currentBatch = id
}

func (s *BatchScheduler) getCurrentBatch() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentBatch
}

func normalizeBatchOptions(opts domain.BatchOptions) domain.BatchOptions {
	def := domain.DefaultBatchOptions()
	if opts.BatchSize <= 0 {
		opts.BatchSize = def.BatchSize
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = def.Concurrency
	}
	if opts.MaxFileSize <= 0 {
		opts.MaxFileSize = def.MaxFileSize
	}
	return opts
}

func partition(docs []domain.DocumentDescriptor, size int) [][]domain.DocumentDescriptor {
	if len(docs) == 0 {
		return nil
	}
	batches := make([][]domain.DocumentDescriptor, 0, (len(docs)+size-1)/size)
	for start := 0; start < len(docs); start += size {
		end := start + size
		if end > len(docs) {
			end = len(docs)
		}
		batches = append(batches, docs[start:end])
	}
	return batches
}
