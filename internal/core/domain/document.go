package domain

import "time"

// FileCategory is the normalized tag produced by the validation stage.
type FileCategory string

const (
	FileText        FileCategory = "text"
	FilePDF         FileCategory = "pdf"
	FileImage       FileCategory = "image"
	FileSpreadsheet FileCategory = "spreadsheet"
	FileDocument    FileCategory = "document"
)

// DocumentDescriptor identifies one file entering the pipeline. It is
// immutable once created; content is reachable through StoragePath.
type DocumentDescriptor struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Size        int64     `json:"size"`
	MediaType   string    `json:"media_type"`
	ModifiedAt  time.Time `json:"modified_at"`
	StoragePath string    `json:"storage_path"`
}

type Stage string

const (
	StageValidation     Stage = "validation"
	StageExtraction     Stage = "extraction"
	StageProcessing     Stage = "processing"
	StageClassification Stage = "classification"
	StageFormatting     Stage = "formatting"
	StageOutput         Stage = "output"
)

// StageResult is the immutable output of one pipeline stage. Exactly one
// of Payload and Error is meaningful depending on Success.
type StageResult struct {
	Stage    Stage         `json:"stage"`
	Duration time.Duration `json:"duration"`
	Success  bool          `json:"success"`
	Payload  any           `json:"payload,omitempty"`
	Error    string        `json:"error,omitempty"`
}

// ValidationPayload carries the normalized file category.
type ValidationPayload struct {
	Category FileCategory `json:"category"`
}

// ExtractionPayload carries locally extracted text. DeferredToAI marks
// documents whose content could not be read locally (images, scanned
// PDFs); their text is resolved by the intelligence service instead.
type ExtractionPayload struct {
	Text         string `json:"text"`
	DeferredToAI bool   `json:"deferred_to_ai"`
}

// AnalysisPayload aggregates the independent intelligence calls issued
// by the processing stage.
type AnalysisPayload struct {
	Summary         string            `json:"summary,omitempty"`
	SuggestedName   string            `json:"suggested_name,omitempty"`
	Fields          map[string]string `json:"fields,omitempty"`
	OCRText         string            `json:"ocr_text,omitempty"`
	Importance      string            `json:"importance,omitempty"`
	AICategory      string            `json:"ai_category,omitempty"`
	AICategoryScore float64           `json:"ai_category_score,omitempty"`
}

// FormattedResult merges all prior stage payloads into the shape handed
// to downstream export consumers.
type FormattedResult struct {
	Document       DocumentDescriptor      `json:"document"`
	FileCategory   FileCategory            `json:"file_category"`
	Classification *ClassificationResult   `json:"classification,omitempty"`
	Analysis       AnalysisPayload         `json:"analysis"`
	StageTimings   map[Stage]time.Duration `json:"stage_timings"`
}

// ProcessOptions enumerates which sub-steps of the pipeline run.
type ProcessOptions struct {
	Classify      bool   `json:"classify"`
	Summarize     bool   `json:"summarize"`
	ExtractFields bool   `json:"extract_fields"`
	OCR           bool   `json:"ocr"`
	SuggestName   bool   `json:"suggest_name"`
	Verbose       bool   `json:"verbose"`
	Language      string `json:"language,omitempty"`
	ForceRefresh  bool   `json:"force_refresh,omitempty"`
}

// DefaultProcessOptions enables every sub-step except forced cache refresh.
func DefaultProcessOptions() ProcessOptions {
	return ProcessOptions{
		Classify:      true,
		Summarize:     true,
		ExtractFields: true,
		OCR:           true,
		SuggestName:   true,
	}
}

// PipelineResult is the terminal outcome of one ProcessFile run. On
// failure, Stages holds every result collected up to the failing stage
// and FailedStage names it.
type PipelineResult struct {
	ProcessingID string             `json:"processing_id"`
	Document     DocumentDescriptor `json:"document"`
	Success      bool               `json:"success"`
	FailedStage  Stage              `json:"failed_stage,omitempty"`
	Error        string             `json:"error,omitempty"`
	Stages       []StageResult      `json:"stages"`
	Formatted    *FormattedResult   `json:"formatted,omitempty"`
	QualityScore float64            `json:"quality_score"`
	GeneratedAt  time.Time          `json:"generated_at"`
	Duration     time.Duration      `json:"duration"`
	Warnings     []string           `json:"warnings,omitempty"`
}

// StageTimings collects per-stage durations from the recorded results.
func (r *PipelineResult) StageTimings() map[Stage]time.Duration {
	timings := make(map[Stage]time.Duration, len(r.Stages))
	for _, sr := range r.Stages {
		timings[sr.Stage] = sr.Duration
	}
	return timings
}
