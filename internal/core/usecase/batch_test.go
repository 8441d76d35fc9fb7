package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mkovalenko/docupipe/internal/core/domain"
)

type batchProcessorFake struct {
	mu       sync.Mutex
	failFor  map[string]bool
	delay    time.Duration
	onCall   func(name string)
	calls    []string
	gate     chan struct{}
	started  chan struct{}
	inFlight atomic.Int32
	maxSeen  atomic.Int32
}

func (f *batchProcessorFake) ProcessFile(_ context.Context, doc domain.DocumentDescriptor, _ domain.ProcessOptions) (*domain.PipelineResult, error) {
	current := f.inFlight.Add(1)
	for {
		max := f.maxSeen.Load()
		if current <= max || f.maxSeen.CompareAndSwap(max, current) {
			break
		}
	}
	defer f.inFlight.Add(-1)

	if f.started != nil {
		select {
		case f.started <- struct{}{}:
		default:
		}
	}
	if f.gate != nil {
		<-f.gate
	}
	if f.onCall != nil {
		f.onCall(doc.Name)
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	f.mu.Lock()
	f.calls = append(f.calls, doc.Name)
	f.mu.Unlock()

	if f.failFor[doc.Name] {
		return &domain.PipelineResult{
			Document:    doc,
			Success:     false,
			FailedStage: domain.StageProcessing,
			Error:       "analysis failed",
			Duration:    time.Millisecond,
		}, domain.ErrAIProcessing
	}
	return &domain.PipelineResult{
		Document: doc,
		Success:  true,
		Duration: time.Millisecond,
		Formatted: &domain.FormattedResult{
			Document: doc,
			Analysis: domain.AnalysisPayload{Summary: "summary of " + doc.Name},
			Classification: &domain.ClassificationResult{
				Category:   domain.CategoryInvoice,
				Confidence: 0.8,
			},
		},
	}, nil
}

type reportStoreFake struct {
	mu      sync.Mutex
	saveErr error
	saved   []*domain.BatchReport
}

func (f *reportStoreFake) SaveReport(_ context.Context, report *domain.BatchReport) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saved = append(f.saved, report)
	return nil
}

func (f *reportStoreFake) GetReport(context.Context, string) (*domain.BatchReport, error) {
	return nil, domain.ErrReportNotFound
}

func batchDocs(names ...string) []domain.DocumentDescriptor {
	docs := make([]domain.DocumentDescriptor, 0, len(names))
	for _, name := range names {
		docs = append(docs, domain.DocumentDescriptor{Name: name, Size: 100, MediaType: "text/plain"})
	}
	return docs
}

func TestProcessBatchCountsStayConsistent(t *testing.T) {
	processor := &batchProcessorFake{failFor: map[string]bool{"b.txt": true, "d.txt": true}}
	scheduler := NewBatchScheduler(processor, &intelFake{}, nil, nil, nil)

	opts := domain.DefaultBatchOptions()
	opts.CollectInsight = false
	report, err := scheduler.ProcessBatch(context.Background(), "", batchDocs("a.txt", "b.txt", "c.txt", "d.txt", "e.txt"), opts)
	if err != nil {
		t.Fatalf("process batch: %v", err)
	}

	stats := report.Stats
	if stats.Total != 5 || stats.Processed != 5 {
		t.Fatalf("expected 5/5 processed, got total=%d processed=%d", stats.Total, stats.Processed)
	}
	if stats.Succeeded != 3 || stats.Failed != 2 {
		t.Fatalf("expected 3 succeeded / 2 failed, got %d/%d", stats.Succeeded, stats.Failed)
	}
	if stats.Processed != stats.Succeeded+stats.Failed {
		t.Fatalf("invariant broken: %d != %d + %d", stats.Processed, stats.Succeeded, stats.Failed)
	}
	if len(report.Results) != 5 {
		t.Fatalf("expected 5 results, got %d", len(report.Results))
	}
	if stats.AvgDuration <= 0 {
		t.Fatalf("expected positive average duration, got %v", stats.AvgDuration)
	}
}

func TestProcessBatchUsesSuppliedID(t *testing.T) {
	scheduler := NewBatchScheduler(&batchProcessorFake{}, &intelFake{}, nil, nil, nil)

	opts := domain.DefaultBatchOptions()
	opts.CollectInsight = false
	report, err := scheduler.ProcessBatch(context.Background(), "batch-42", batchDocs("a.txt"), opts)
	if err != nil {
		t.Fatalf("process batch: %v", err)
	}
	if report.ID != "batch-42" {
		t.Fatalf("expected supplied id, got %q", report.ID)
	}
}

func TestProcessBatchRejectsConcurrentRun(t *testing.T) {
	processor := &batchProcessorFake{
		gate:    make(chan struct{}),
		started: make(chan struct{}, 1),
	}
	scheduler := NewBatchScheduler(processor, &intelFake{}, nil, nil, nil)

	opts := domain.DefaultBatchOptions()
	opts.CollectInsight = false

	done := make(chan error, 1)
	go func() {
		_, err := scheduler.ProcessBatch(context.Background(), "", batchDocs("a.txt"), opts)
		done <- err
	}()
	<-processor.started

	_, err := scheduler.ProcessBatch(context.Background(), "", batchDocs("b.txt"), opts)
	if !errors.Is(err, domain.ErrBatchBusy) {
		t.Fatalf("expected busy error, got %v", err)
	}

	close(processor.gate)
	if err := <-done; err != nil {
		t.Fatalf("first batch failed: %v", err)
	}

	// The slot frees up once the first run finishes.
	if _, err := scheduler.ProcessBatch(context.Background(), "", batchDocs("c.txt"), opts); err != nil {
		t.Fatalf("expected batch to run after first finished, got %v", err)
	}
}

func TestProcessBatchHonorsConcurrencyWindow(t *testing.T) {
	processor := &batchProcessorFake{delay: 20 * time.Millisecond}
	scheduler := NewBatchScheduler(processor, &intelFake{}, nil, nil, nil)

	opts := domain.DefaultBatchOptions()
	opts.CollectInsight = false
	opts.BatchSize = 9
	opts.Concurrency = 3

	report, err := scheduler.ProcessBatch(context.Background(), "",
		batchDocs("a.txt", "b.txt", "c.txt", "d.txt", "e.txt", "f.txt", "g.txt", "h.txt", "i.txt"), opts)
	if err != nil {
		t.Fatalf("process batch: %v", err)
	}
	if report.Stats.Processed != 9 {
		t.Fatalf("expected 9 processed, got %d", report.Stats.Processed)
	}
	if max := processor.maxSeen.Load(); max > 3 {
		t.Fatalf("concurrency window exceeded: saw %d simultaneous documents", max)
	}
}

func TestProcessBatchDropsInvalidFilesAsWarnings(t *testing.T) {
	processor := &batchProcessorFake{}
	scheduler := NewBatchScheduler(processor, &intelFake{}, nil, nil, nil)

	docs := []domain.DocumentDescriptor{
		{Name: "ok.txt", Size: 100, MediaType: "text/plain"},
		{Name: "huge.txt", Size: 200 << 20, MediaType: "text/plain"},
		{Name: "archive.zip", Size: 100, MediaType: "application/zip"},
		{Name: "also-ok.txt", Size: 100, MediaType: "text/plain"},
	}
	opts := domain.DefaultBatchOptions()
	opts.CollectInsight = false

	report, err := scheduler.ProcessBatch(context.Background(), "", docs, opts)
	if err != nil {
		t.Fatalf("drops must not fail the batch: %v", err)
	}
	if report.Stats.Total != 2 || report.Stats.Dropped != 2 {
		t.Fatalf("expected total=2 dropped=2, got total=%d dropped=%d", report.Stats.Total, report.Stats.Dropped)
	}
	if len(report.Warnings) != 2 {
		t.Fatalf("expected 2 drop warnings, got %v", report.Warnings)
	}
}

func TestProcessBatchEmitsOneProgressEventPerBatch(t *testing.T) {
	events := &eventsRecorder{}
	scheduler := NewBatchScheduler(&batchProcessorFake{}, &intelFake{}, events, nil, nil)

	opts := domain.DefaultBatchOptions()
	opts.CollectInsight = false
	opts.BatchSize = 10

	names := make([]string, 0, 10)
	for _, n := range []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j"} {
		names = append(names, n+".txt")
	}
	if _, err := scheduler.ProcessBatch(context.Background(), "", batchDocs(names...), opts); err != nil {
		t.Fatalf("process batch: %v", err)
	}

	progress := events.count(func(e domain.Event) bool {
		_, ok := e.(domain.BatchProgress)
		return ok
	})
	if progress != 1 {
		t.Fatalf("ten documents in one batch must emit exactly one progress event, got %d", progress)
	}
}

func TestProcessBatchInsightRequiresTwoSuccesses(t *testing.T) {
	intel := &intelFake{response: `{"overview":"mostly invoices"}`}

	opts := domain.DefaultBatchOptions()

	single := NewBatchScheduler(&batchProcessorFake{}, intel, nil, nil, nil)
	report, err := single.ProcessBatch(context.Background(), "", batchDocs("only.txt"), opts)
	if err != nil {
		t.Fatalf("process batch: %v", err)
	}
	if report.Insight != nil {
		t.Fatalf("one success must not produce an insight, got %+v", report.Insight)
	}

	several := NewBatchScheduler(&batchProcessorFake{}, intel, nil, nil, nil)
	report, err = several.ProcessBatch(context.Background(), "", batchDocs("a.txt", "b.txt", "c.txt"), opts)
	if err != nil {
		t.Fatalf("process batch: %v", err)
	}
	if report.Insight == nil || !report.Insight.Available {
		t.Fatalf("expected an available insight, got %+v", report.Insight)
	}
	if report.Insight.Overview != "mostly invoices" {
		t.Fatalf("unexpected overview %q", report.Insight.Overview)
	}
}

func TestProcessBatchInsightFailureDegrades(t *testing.T) {
	intel := &intelFake{err: errors.New("model offline")}
	scheduler := NewBatchScheduler(&batchProcessorFake{}, intel, nil, nil, nil)

	report, err := scheduler.ProcessBatch(context.Background(), "", batchDocs("a.txt", "b.txt"), domain.DefaultBatchOptions())
	if err != nil {
		t.Fatalf("insight failure must not fail the batch: %v", err)
	}
	if report.Insight == nil || report.Insight.Available {
		t.Fatalf("expected unavailable insight, got %+v", report.Insight)
	}
	if report.Insight.Note == "" {
		t.Fatal("expected a note explaining the missing insight")
	}
}

func TestCancelStopsSchedulingNewBatches(t *testing.T) {
	events := &eventsRecorder{}
	processor := &batchProcessorFake{}
	reports := &reportStoreFake{}
	scheduler := NewBatchScheduler(processor, &intelFake{}, events, reports, nil)
	processor.onCall = func(string) { scheduler.Cancel() }

	opts := domain.DefaultBatchOptions()
	opts.CollectInsight = false
	opts.BatchSize = 2
	opts.Concurrency = 1

	report, err := scheduler.ProcessBatch(context.Background(), "", batchDocs("a.txt", "b.txt", "c.txt", "d.txt"), opts)
	if err != nil {
		t.Fatalf("cancelled batch still returns its partial report: %v", err)
	}
	if report.Stats.Processed > 2 {
		t.Fatalf("second batch must not start after cancel, processed %d", report.Stats.Processed)
	}
	if report.Insight != nil {
		t.Fatal("cancelled batch must not collect an insight")
	}

	// Every document calls Cancel, yet the failure event fires once.
	failed := events.count(func(e domain.Event) bool {
		_, ok := e.(domain.BatchFailed)
		return ok
	})
	if failed != 1 {
		t.Fatalf("expected exactly one cancellation event, got %d", failed)
	}

	// The partial report still lands in the store.
	reports.mu.Lock()
	defer reports.mu.Unlock()
	if len(reports.saved) != 1 || reports.saved[0].ID != report.ID {
		t.Fatalf("expected the partial report to be persisted once, got %d", len(reports.saved))
	}
}

func TestProcessBatchPersistFailureIsWarning(t *testing.T) {
	reports := &reportStoreFake{saveErr: errors.New("db down")}
	scheduler := NewBatchScheduler(&batchProcessorFake{}, &intelFake{}, nil, reports, nil)

	opts := domain.DefaultBatchOptions()
	opts.CollectInsight = false

	report, err := scheduler.ProcessBatch(context.Background(), "", batchDocs("a.txt"), opts)
	if err != nil {
		t.Fatalf("persist failure must not fail the batch: %v", err)
	}
	found := false
	for _, warning := range report.Warnings {
		if strings.Contains(warning, "report not persisted") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a persistence warning, got %v", report.Warnings)
	}
}

func TestProcessBatchPersistsReport(t *testing.T) {
	reports := &reportStoreFake{}
	scheduler := NewBatchScheduler(&batchProcessorFake{}, &intelFake{}, nil, reports, nil)

	opts := domain.DefaultBatchOptions()
	opts.CollectInsight = false

	report, err := scheduler.ProcessBatch(context.Background(), "job-1", batchDocs("a.txt", "b.txt"), opts)
	if err != nil {
		t.Fatalf("process batch: %v", err)
	}
	reports.mu.Lock()
	defer reports.mu.Unlock()
	if len(reports.saved) != 1 || reports.saved[0].ID != report.ID {
		t.Fatalf("expected the report to be persisted once, got %d", len(reports.saved))
	}
}
