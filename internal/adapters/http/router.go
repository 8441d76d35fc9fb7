package httpadapter

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/mkovalenko/docupipe/internal/core/domain"
	"github.com/mkovalenko/docupipe/internal/core/ports"
	"github.com/mkovalenko/docupipe/internal/observability/metrics"
)

type Router struct {
	processor ports.FileProcessor
	reports   ports.ReportReader
	queue     ports.BatchQueue
	storage   ports.ObjectStorage
	logger    *slog.Logger
	metrics   *metrics.HTTPMetrics
}

func NewRouter(
	processor ports.FileProcessor,
	reports ports.ReportReader,
	queue ports.BatchQueue,
	storage ports.ObjectStorage,
	logger *slog.Logger,
	httpMetrics *metrics.HTTPMetrics,
) *Router {
	return &Router{
		processor: processor,
		reports:   reports,
		queue:     queue,
		storage:   storage,
		logger:    logger,
		metrics:   httpMetrics,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/healthz", rt.instrument("/healthz", http.HandlerFunc(rt.healthz)))
	mux.Handle("/v1/batches", rt.instrument("/v1/batches", http.HandlerFunc(rt.submitBatch)))
	mux.Handle("/v1/batches/", rt.instrument("/v1/batches/{id}", http.HandlerFunc(rt.getBatchReport)))
	mux.Handle("/v1/files/process", rt.instrument("/v1/files/process", http.HandlerFunc(rt.processFile)))
	if rt.metrics != nil {
		mux.Handle("/metrics", rt.metrics.Handler())
	}
	return requestIDMiddleware(accessLogMiddleware(rt.logger, mux))
}

func (rt *Router) instrument(pattern string, next http.Handler) http.Handler {
	if rt.metrics == nil {
		return next
	}
	return rt.metrics.Middleware(pattern, next)
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// submitBatch accepts a list of file paths, queues a batch manifest and
// returns immediately. The worker picks the manifest up and writes the
// report under the returned id.
func (rt *Router) submitBatch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req struct {
		Paths   []string             `json:"paths"`
		Options *domain.BatchOptions `json:"options"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if len(req.Paths) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "paths is required"})
		return
	}

	options := domain.DefaultBatchOptions()
	if req.Options != nil {
		options = *req.Options
	}

	manifest := domain.BatchManifest{
		ID:      uuid.NewString(),
		Paths:   req.Paths,
		Options: options,
	}
	if err := rt.queue.PublishBatchSubmitted(r.Context(), manifest); err != nil {
		rt.logger.Error("batch submission failed",
			"request_id", requestIDFromContext(r.Context()),
			"batch_id", manifest.ID,
			"error", err,
		)
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"id": manifest.ID, "status": "queued"})
}

func (rt *Router) getBatchReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/v1/batches/")
	if id == "" || strings.Contains(id, "/") {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "batch id is required"})
		return
	}

	report, err := rt.reports.GetReport(r.Context(), id)
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// processFile runs the pipeline synchronously for a single document.
// Failed runs still return the partial result body alongside the mapped
// status code.
func (rt *Router) processFile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req struct {
		Path    string                 `json:"path"`
		Options *domain.ProcessOptions `json:"options"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(req.Path) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "path is required"})
		return
	}

	doc, err := rt.storage.Describe(r.Context(), req.Path)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
		return
	}

	options := domain.DefaultProcessOptions()
	if req.Options != nil {
		options = *req.Options
	}

	result, err := rt.processor.ProcessFile(r.Context(), doc, options)
	if err != nil {
		status := mapErrorToHTTPStatus(err)
		if result != nil {
			writeJSON(w, status, result)
			return
		}
		writeJSON(w, status, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
