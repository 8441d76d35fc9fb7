package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mkovalenko/docupipe/internal/core/domain"
	"github.com/mkovalenko/docupipe/internal/core/ports"
)

// StageTimeouts are the independent per-stage deadlines.
type StageTimeouts struct {
	Validation     time.Duration
	Extraction     time.Duration
	Processing     time.Duration
	Classification time.Duration
	Formatting     time.Duration
	Output         time.Duration
}

func DefaultStageTimeouts() StageTimeouts {
	return StageTimeouts{
		Validation:     5 * time.Second,
		Extraction:     15 * time.Second,
		Processing:     30 * time.Second,
		Classification: 10 * time.Second,
		Formatting:     5 * time.Second,
		Output:         10 * time.Second,
	}
}

type PipelineConfig struct {
	MaxFileSize int64
	Timeouts    StageTimeouts
}

func (c PipelineConfig) normalize() PipelineConfig {
	out := c
	if out.MaxFileSize <= 0 {
		out.MaxFileSize = 50 << 20
	}
	def := DefaultStageTimeouts()
	if out.Timeouts.Validation <= 0 {
		out.Timeouts.Validation = def.Validation
	}
	if out.Timeouts.Extraction <= 0 {
		out.Timeouts.Extraction = def.Extraction
	}
	if out.Timeouts.Processing <= 0 {
		out.Timeouts.Processing = def.Processing
	}
	if out.Timeouts.Classification <= 0 {
		out.Timeouts.Classification = def.Classification
	}
	if out.Timeouts.Formatting <= 0 {
		out.Timeouts.Formatting = def.Formatting
	}
	if out.Timeouts.Output <= 0 {
		out.Timeouts.Output = def.Output
	}
	return out
}

// FilePipeline drives one document through the stage state machine
// Validation → Extraction → Processing → Classification → Formatting →
// Output. A stage failure is terminal for the run; results already
// collected are preserved. The pipeline never retries on its own.
type FilePipeline struct {
	storage   ports.ObjectStorage
	extractor ports.TextExtractor
	intel     ports.DocumentIntelligence
	engine    *ClassificationEngine
	language  ports.LanguageDetector
	events    ports.EventPublisher
	cfg       PipelineConfig
}

func NewFilePipeline(
	storage ports.ObjectStorage,
	extractor ports.TextExtractor,
	intel ports.DocumentIntelligence,
	engine *ClassificationEngine,
	language ports.LanguageDetector,
	events ports.EventPublisher,
	cfg PipelineConfig,
) *FilePipeline {
	if events == nil {
		events = nopPublisher{}
	}
	return &FilePipeline{
		storage:   storage,
		extractor: extractor,
		intel:     intel,
		engine:    engine,
		language:  language,
		events:    events,
		cfg:       cfg.normalize(),
	}
}

// processingContext is the per-document scratch state owned exclusively
// by one ProcessFile run. It is never shared across documents.
type processingContext struct {
	id        string
	doc       domain.DocumentDescriptor
	opts      domain.ProcessOptions
	startedAt time.Time

	results  []domain.StageResult
	warnings []string

	category       domain.FileCategory
	extraction     domain.ExtractionPayload
	language       string
	analysis       domain.AnalysisPayload
	classification *domain.ClassificationResult
	formatted      *domain.FormattedResult
	quality        float64
	generatedAt    time.Time
}

// effectiveText is the text visible to classification: local extraction
// output, or OCR output for documents deferred to the AI stage.
func (pc processingContext) effectiveText() string {
	if pc.extraction.Text != "" {
		return pc.extraction.Text
	}
	return pc.analysis.OCRText
}

// stageOutcome carries a stage's payload together with its writes to
// the processing context, deferred into a commit closure. Stages never
// mutate shared state themselves; runStage applies the commit on the
// owning goroutine, and only for stages that beat their deadline.
type stageOutcome struct {
	payload any
	commit  func(*processingContext)
}

type stageFunc func(context.Context, processingContext) (stageOutcome, error)

type plannedStage struct {
	stage   domain.Stage
	timeout time.Duration
	run     stageFunc
}

func (p *FilePipeline) plan(opts domain.ProcessOptions) []plannedStage {
	stages := []plannedStage{
		{domain.StageValidation, p.cfg.Timeouts.Validation, p.validateStage},
		{domain.StageExtraction, p.cfg.Timeouts.Extraction, p.extractStage},
		{domain.StageProcessing, p.cfg.Timeouts.Processing, p.processStage},
	}
	if opts.Classify {
		stages = append(stages, plannedStage{domain.StageClassification, p.cfg.Timeouts.Classification, p.classifyStage})
	}
	stages = append(stages,
		plannedStage{domain.StageFormatting, p.cfg.Timeouts.Formatting, p.formatStage},
		plannedStage{domain.StageOutput, p.cfg.Timeouts.Output, p.outputStage},
	)
	return stages
}

func (p *FilePipeline) ProcessFile(
	ctx context.Context,
	doc domain.DocumentDescriptor,
	opts domain.ProcessOptions,
) (*domain.PipelineResult, error) {
	pc := &processingContext{
		id:        uuid.NewString(),
		doc:       doc,
		opts:      opts,
		startedAt: time.Now(),
	}

	for _, planned := range p.plan(opts) {
		if err := p.runStage(ctx, pc, planned); err != nil {
			result := p.failedResult(pc, planned.stage, err)
			p.events.Publish(domain.DocumentCompleted{
				ProcessingID: pc.id,
				Document:     doc.Name,
				Success:      false,
				Duration:     result.Duration,
			})
			return result, err
		}
	}

	result := p.finalResult(pc)
	p.events.Publish(domain.DocumentCompleted{
		ProcessingID: pc.id,
		Document:     doc.Name,
		Success:      true,
		Duration:     result.Duration,
	})
	return result, nil
}

// runStage races the stage body against its timeout. The body works on
// a snapshot of the processing context; on timeout the abandoned
// goroutine keeps running until it notices the cancelled context, but
// its outcome is discarded and it holds no reference to the state the
// failed run still reads.
func (p *FilePipeline) runStage(ctx context.Context, pc *processingContext, planned plannedStage) error {
	p.events.Publish(domain.StageStarted{ProcessingID: pc.id, Document: pc.doc.Name, Stage: planned.stage})

	stageCtx, cancel := context.WithTimeout(ctx, planned.timeout)
	defer cancel()

	type outcome struct {
		out stageOutcome
		err error
	}
	done := make(chan outcome, 1)
	start := time.Now()
	snapshot := *pc
	go func() {
		out, err := planned.run(stageCtx, snapshot)
		done <- outcome{out: out, err: err}
	}()

	var out stageOutcome
	var err error
	select {
	case res := <-done:
		out, err = res.out, res.err
	case <-stageCtx.Done():
		err = domain.WrapError(domain.ErrStageTimeout, string(planned.stage), stageCtx.Err())
	}
	duration := time.Since(start)

	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && !domain.IsKind(err, domain.ErrStageTimeout) {
			err = domain.WrapError(domain.ErrStageTimeout, string(planned.stage), err)
		}
		pc.results = append(pc.results, domain.StageResult{
			Stage:    planned.stage,
			Duration: duration,
			Success:  false,
			Error:    err.Error(),
		})
		p.events.Publish(domain.StageFailed{
			ProcessingID: pc.id,
			Document:     pc.doc.Name,
			Stage:        planned.stage,
			Duration:     duration,
			Error:        err.Error(),
		})
		return err
	}

	if out.commit != nil {
		out.commit(pc)
	}
	pc.results = append(pc.results, domain.StageResult{
		Stage:    planned.stage,
		Duration: duration,
		Success:  true,
		Payload:  out.payload,
	})
	p.events.Publish(domain.StageCompleted{
		ProcessingID: pc.id,
		Document:     pc.doc.Name,
		Stage:        planned.stage,
		Duration:     duration,
	})
	return nil
}

func (p *FilePipeline) validateStage(_ context.Context, pc processingContext) (stageOutcome, error) {
	doc := pc.doc
	if doc.Size == 0 {
		return stageOutcome{}, domain.WrapError(domain.ErrValidation, "validate", fmt.Errorf("empty file: %s", doc.Name))
	}
	if doc.Size > p.cfg.MaxFileSize {
		return stageOutcome{}, domain.WrapError(domain.ErrValidation, "validate",
			fmt.Errorf("file %s exceeds size limit: %d > %d", doc.Name, doc.Size, p.cfg.MaxFileSize))
	}
	category, ok := FileCategoryFor(doc)
	if !ok {
		return stageOutcome{}, domain.WrapError(domain.ErrValidation, "validate",
			fmt.Errorf("unsupported media type %q for %s", doc.MediaType, doc.Name))
	}
	return stageOutcome{
		payload: domain.ValidationPayload{Category: category},
		commit:  func(pc *processingContext) { pc.category = category },
	}, nil
}

func (p *FilePipeline) extractStage(ctx context.Context, pc processingContext) (stageOutcome, error) {
	payload, err := p.extractor.Extract(ctx, pc.doc, pc.category)
	if err != nil {
		return stageOutcome{}, domain.WrapError(domain.ErrExtraction, "extract", err)
	}
	return stageOutcome{
		payload: payload,
		commit:  func(pc *processingContext) { pc.extraction = payload },
	}, nil
}

func (p *FilePipeline) processStage(ctx context.Context, pc processingContext) (stageOutcome, error) {
	content, err := p.analysisContent(ctx, pc)
	if err != nil {
		return stageOutcome{}, domain.WrapError(domain.ErrAIProcessing, "load content", err)
	}
	language := p.resolveLanguage(pc)

	var analysis domain.AnalysisPayload
	var warnings []string

	if pc.opts.Summarize {
		summary, err := p.analyze(ctx, content, language, "summary", summaryInstruction())
		if err != nil {
			return stageOutcome{}, err
		}
		analysis.Summary = summary
	}

	if pc.opts.SuggestName {
		name, err := p.analyze(ctx, content, language, "suggest name", nameInstruction())
		if err != nil {
			return stageOutcome{}, err
		}
		analysis.SuggestedName = firstLine(name)
	}

	if pc.opts.ExtractFields {
		raw, err := p.analyze(ctx, content, language, "extract fields", fieldsInstruction())
		if err != nil {
			return stageOutcome{}, err
		}
		fields, kind := parseFields(raw)
		if kind == ResponseMalformed {
			warnings = append(warnings, "structured-data response was malformed, no fields extracted")
		}
		analysis.Fields = fields
	}

	if pc.opts.OCR && pc.category == domain.FileImage {
		text, err := p.analyze(ctx, content, language, "ocr", ocrInstruction())
		if err != nil {
			return stageOutcome{}, err
		}
		analysis.OCRText = text
	}

	importance, err := p.analyze(ctx, content, language, "importance", importanceInstruction())
	if err != nil {
		return stageOutcome{}, err
	}
	analysis.Importance = importance

	if pc.opts.Classify {
		raw, err := p.analyze(ctx, content, language, "classification signal", classificationInstruction(p.engine.CategoryNames()))
		if err != nil {
			return stageOutcome{}, err
		}
		signal, kind := parseCategorySignal(raw)
		if kind == ResponseMalformed {
			warnings = append(warnings, "classification response was malformed, ai signal dropped")
		}
		analysis.AICategory = signal.Category
		analysis.AICategoryScore = signal.Confidence
	}

	return stageOutcome{
		payload: analysis,
		commit: func(pc *processingContext) {
			pc.language = language
			pc.analysis = analysis
			pc.warnings = append(pc.warnings, warnings...)
		},
	}, nil
}

func (p *FilePipeline) classifyStage(ctx context.Context, pc processingContext) (stageOutcome, error) {
	opts := ClassifyOptions{
		Language:     pc.language,
		ForceRefresh: pc.opts.ForceRefresh,
		AISignal: &CategorySignal{
			Category:   pc.analysis.AICategory,
			Confidence: pc.analysis.AICategoryScore,
		},
	}
	result, err := p.engine.Classify(ctx, pc.doc, pc.effectiveText(), opts)
	if err != nil {
		return stageOutcome{}, domain.WrapError(domain.ErrClassification, "classify", err)
	}
	return stageOutcome{
		payload: result,
		commit:  func(pc *processingContext) { pc.classification = &result },
	}, nil
}

func (p *FilePipeline) formatStage(_ context.Context, pc processingContext) (stageOutcome, error) {
	if pc.category == "" {
		return stageOutcome{}, domain.WrapError(domain.ErrFormatting, "format", errors.New("validation payload missing"))
	}
	timings := make(map[domain.Stage]time.Duration, len(pc.results))
	for _, sr := range pc.results {
		timings[sr.Stage] = sr.Duration
	}
	formatted := &domain.FormattedResult{
		Document:       pc.doc,
		FileCategory:   pc.category,
		Classification: pc.classification,
		Analysis:       pc.analysis,
		StageTimings:   timings,
	}
	return stageOutcome{
		payload: formatted,
		commit:  func(pc *processingContext) { pc.formatted = formatted },
	}, nil
}

type outputPayload struct {
	QualityScore float64   `json:"quality_score"`
	GeneratedAt  time.Time `json:"generated_at"`
}

func (p *FilePipeline) outputStage(_ context.Context, pc processingContext) (stageOutcome, error) {
	if pc.formatted == nil {
		return stageOutcome{}, domain.WrapError(domain.ErrFormatting, "output", errors.New("formatted result missing"))
	}
	quality := qualityScore(pc)
	generatedAt := time.Now().UTC()
	return stageOutcome{
		payload: outputPayload{QualityScore: quality, GeneratedAt: generatedAt},
		commit: func(pc *processingContext) {
			pc.quality = quality
			pc.generatedAt = generatedAt
		},
	}, nil
}

// qualityScore is the unweighted mean of four [0,1] heuristics:
// classification confidence, summary length, structured-data
// completeness, and total processing time.
func qualityScore(pc processingContext) float64 {
	confidence := 0.0
	if pc.classification != nil {
		confidence = pc.classification.Confidence
	}

	summaryScore := 0.3
	switch length := len(pc.analysis.Summary); {
	case length >= 50 && length < 1000:
		summaryScore = 0.8
	case length >= 20:
		summaryScore = 0.6
	}

	fieldsScore := 0.4
	switch count := len(pc.analysis.Fields); {
	case count > 5:
		fieldsScore = 0.9
	case count > 2:
		fieldsScore = 0.7
	}

	timeScore := 0.3
	switch elapsed := time.Since(pc.startedAt); {
	case elapsed < 10*time.Second:
		timeScore = 0.8
	case elapsed < 30*time.Second:
		timeScore = 0.6
	}

	return (confidence + summaryScore + fieldsScore + timeScore) / 4
}

func (p *FilePipeline) analyze(ctx context.Context, content []byte, language, operation, instruction string) (string, error) {
	response, err := p.intel.Analyze(ctx, content, instruction, language)
	if err != nil {
		return "", domain.WrapError(domain.ErrAIProcessing, operation, err)
	}
	return strings.TrimSpace(response), nil
}

// analysisContent is what the intelligence service sees: extracted text
// when available, raw bytes for documents deferred to AI.
func (p *FilePipeline) analysisContent(ctx context.Context, pc processingContext) ([]byte, error) {
	if !pc.extraction.DeferredToAI {
		return []byte(pc.extraction.Text), nil
	}
	reader, err := p.storage.Open(ctx, pc.doc.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("open source document: %w", err)
	}
	defer reader.Close()

	raw, err := io.ReadAll(io.LimitReader(reader, p.cfg.MaxFileSize))
	if err != nil {
		return nil, fmt.Errorf("read source document: %w", err)
	}
	return raw, nil
}

func (p *FilePipeline) resolveLanguage(pc processingContext) string {
	if pc.opts.Language != "" {
		return pc.opts.Language
	}
	if p.language != nil && pc.extraction.Text != "" {
		return p.language.Detect(pc.extraction.Text)
	}
	return ""
}

func (p *FilePipeline) failedResult(pc *processingContext, stage domain.Stage, err error) *domain.PipelineResult {
	return &domain.PipelineResult{
		ProcessingID: pc.id,
		Document:     pc.doc,
		Success:      false,
		FailedStage:  stage,
		Error:        err.Error(),
		Stages:       pc.results,
		GeneratedAt:  time.Now().UTC(),
		Duration:     time.Since(pc.startedAt),
		Warnings:     pc.warnings,
	}
}

func (p *FilePipeline) finalResult(pc *processingContext) *domain.PipelineResult {
	return &domain.PipelineResult{
		ProcessingID: pc.id,
		Document:     pc.doc,
		Success:      true,
		Stages:       pc.results,
		Formatted:    pc.formatted,
		QualityScore: pc.quality,
		GeneratedAt:  pc.generatedAt,
		Duration:     time.Since(pc.startedAt),
		Warnings:     pc.warnings,
	}
}

// FileCategoryFor maps a descriptor's declared media type (with an
// extension fallback) to the normalized file category.
func FileCategoryFor(doc domain.DocumentDescriptor) (domain.FileCategory, bool) {
	mediaType := strings.ToLower(strings.TrimSpace(doc.MediaType))
	if idx := strings.Index(mediaType, ";"); idx >= 0 {
		mediaType = strings.TrimSpace(mediaType[:idx])
	}

	switch {
	case strings.HasPrefix(mediaType, "image/"):
		return domain.FileImage, true
	case mediaType == "application/pdf":
		return domain.FilePDF, true
	case strings.HasPrefix(mediaType, "text/csv"):
		return domain.FileSpreadsheet, true
	case strings.HasPrefix(mediaType, "text/"),
		mediaType == "application/json":
		return domain.FileText, true
	case mediaType == "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		mediaType == "application/vnd.ms-excel":
		return domain.FileSpreadsheet, true
	case mediaType == "application/msword",
		mediaType == "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		mediaType == "application/rtf":
		return domain.FileDocument, true
	}

	switch strings.ToLower(strings.TrimPrefix(extOf(doc.Name), ".")) {
	case "txt", "md", "json", "log":
		return domain.FileText, true
	case "csv", "xlsx", "xls":
		return domain.FileSpreadsheet, true
	case "pdf":
		return domain.FilePDF, true
	case "png", "jpg", "jpeg", "gif", "webp", "bmp", "tiff":
		return domain.FileImage, true
	case "doc", "docx", "rtf":
		return domain.FileDocument, true
	}
	return "", false
}

func extOf(name string) string {
	idx := strings.LastIndex(name, ".")
	if idx < 0 {
		return ""
	}
	return name[idx:]
}

func firstLine(s string) string {
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		s = s[:idx]
	}
	return strings.TrimSpace(s)
}

type nopPublisher struct{}

func (nopPublisher) Publish(domain.Event) {}
