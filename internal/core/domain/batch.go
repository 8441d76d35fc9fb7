package domain

import "time"

// BatchOptions resolve how one batch invocation is scheduled.
type BatchOptions struct {
	BatchSize      int            `json:"batch_size"`
	Concurrency    int            `json:"concurrency"`
	MaxFileSize    int64          `json:"max_file_size"`
	CollectInsight bool           `json:"collect_insight"`
	Process        ProcessOptions `json:"process"`
}

// DefaultBatchOptions mirrors the documented scheduler defaults: batches
// of 10, window of 3, 50 MiB size ceiling.
func DefaultBatchOptions() BatchOptions {
	return BatchOptions{
		BatchSize:      10,
		Concurrency:    3,
		MaxFileSize:    50 << 20,
		CollectInsight: true,
		Process:        DefaultProcessOptions(),
	}
}

// BatchStats are the aggregate counters of one batch job. The scheduler
// maintains Processed == Succeeded+Failed <= Total at all times; Dropped
// counts files removed by pre-validation, outside Total's processed set.
type BatchStats struct {
	Total       int           `json:"total"`
	Processed   int           `json:"processed"`
	Succeeded   int           `json:"succeeded"`
	Failed      int           `json:"failed"`
	Dropped     int           `json:"dropped"`
	StartedAt   time.Time     `json:"started_at"`
	FinishedAt  time.Time     `json:"finished_at"`
	AvgDuration time.Duration `json:"avg_duration"`
}

// CollectiveInsight is the cross-document summary computed once per
// batch from successful results. Available is false when the insight
// call failed or was skipped; the batch itself is unaffected.
type CollectiveInsight struct {
	Available       bool     `json:"available"`
	Overview        string   `json:"overview,omitempty"`
	Patterns        []string `json:"patterns,omitempty"`
	Recommendations []string `json:"recommendations,omitempty"`
	Organization    []string `json:"organization,omitempty"`
	Note            string   `json:"note,omitempty"`
}

// BatchReport is the terminal outcome of one ProcessBatch invocation.
type BatchReport struct {
	ID       string             `json:"id"`
	Results  []*PipelineResult  `json:"results"`
	Stats    BatchStats         `json:"stats"`
	Insight  *CollectiveInsight `json:"insight,omitempty"`
	Warnings []string           `json:"warnings,omitempty"`
}

// BatchManifest is the queued form of a batch submission: file paths to
// resolve into descriptors plus the resolved options.
type BatchManifest struct {
	ID      string       `json:"id"`
	Paths   []string     `json:"paths"`
	Options BatchOptions `json:"options"`
}
