package ports

import (
	"context"

	"github.com/mkovalenko/docupipe/internal/core/domain"
)

// FileProcessor is the inbound contract for a single-document pipeline
// run. The returned result is non-nil even on failure and preserves all
// stage results collected before the failing stage.
type FileProcessor interface {
	ProcessFile(ctx context.Context, doc domain.DocumentDescriptor, opts domain.ProcessOptions) (*domain.PipelineResult, error)
}

// BatchProcessor is the inbound contract for batch scheduling. One
// scheduler runs one batch at a time; Cancel is cooperative and does
// not abort in-flight documents. An empty id lets the scheduler mint
// its own.
type BatchProcessor interface {
	ProcessBatch(ctx context.Context, id string, docs []domain.DocumentDescriptor, opts domain.BatchOptions) (*domain.BatchReport, error)
	Cancel()
}

// ReportReader is the inbound read model for stored batch reports.
type ReportReader interface {
	GetReport(ctx context.Context, id string) (*domain.BatchReport, error)
}
