package ports

import (
	"context"
	"io"
	"time"

	"github.com/mkovalenko/docupipe/internal/core/domain"
)

// DocumentIntelligence is the narrow boundary to the external analysis
// service. Responses are free-form text; callers parse defensively and
// treat garbled output as a soft failure, never a crash.
type DocumentIntelligence interface {
	Analyze(ctx context.Context, content []byte, instruction, language string) (string, error)
}

// TextExtractor performs cheap local extraction for a validated file.
type TextExtractor interface {
	Extract(ctx context.Context, doc domain.DocumentDescriptor, category domain.FileCategory) (domain.ExtractionPayload, error)
}

// ClassificationCache stores fused classification results by document
// fingerprint. Implementations must be safe for concurrent use.
type ClassificationCache interface {
	Get(fingerprint string) (domain.ClassificationResult, bool)
	Set(fingerprint string, result domain.ClassificationResult)
}

// EventPublisher fans pipeline and batch events out to subscribers.
// Publish must not block the caller.
type EventPublisher interface {
	Publish(event domain.Event)
}

// ObjectStorage reads source documents and resolves descriptors.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Describe(ctx context.Context, path string) (domain.DocumentDescriptor, error)
}

// ReportStore persists batch reports for later retrieval.
type ReportStore interface {
	SaveReport(ctx context.Context, report *domain.BatchReport) error
	GetReport(ctx context.Context, id string) (*domain.BatchReport, error)
}

// BatchQueue carries batch submissions from the API to the worker.
type BatchQueue interface {
	PublishBatchSubmitted(ctx context.Context, manifest domain.BatchManifest) error
	SubscribeBatchSubmitted(ctx context.Context, handler func(context.Context, domain.BatchManifest) error) error
}

// LanguageDetector guesses the language of extracted text when the
// caller did not supply one.
type LanguageDetector interface {
	Detect(text string) string
}

// AICallObserver records intelligence call outcomes for metrics.
type AICallObserver interface {
	ObserveAICall(operation string, duration time.Duration, err error)
}
