package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mkovalenko/docupipe/internal/core/domain"
)

// PipelineMetrics covers the worker side: stage timings, per-document
// outcomes, batch sizes and intelligence calls.
type PipelineMetrics struct {
	registry *prometheus.Registry

	stageDuration    *prometheus.HistogramVec
	documentsTotal   *prometheus.CounterVec
	documentsInFlight prometheus.Gauge
	batchesTotal     prometheus.Counter
	batchDocuments   prometheus.Histogram
	aiCallsTotal     *prometheus.CounterVec
	aiCallDuration   *prometheus.HistogramVec
}

func NewPipelineMetrics(service string) *PipelineMetrics {
	registry := prometheus.NewRegistry()

	stageDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "docupipe",
			Subsystem: "pipeline",
			Name:      "stage_duration_seconds",
			Help:      "Stage execution duration in seconds by stage and status.",
			Buckets:   prometheus.DefBuckets,
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
		[]string{"stage", "status"},
	)
	documentsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docupipe",
			Subsystem: "pipeline",
			Name:      "documents_total",
			Help:      "Total processed documents by status.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
		[]string{"status"},
	)
	documentsInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "docupipe",
			Subsystem: "pipeline",
			Name:      "documents_in_flight",
			Help:      "Number of documents currently inside the pipeline.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	batchesTotal := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "docupipe",
			Subsystem: "batch",
			Name:      "batches_total",
			Help:      "Total completed batch jobs.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	batchDocuments := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "docupipe",
			Subsystem: "batch",
			Name:      "batch_documents",
			Help:      "Documents per completed batch job.",
			Buckets:   []float64{1, 2, 5, 10, 20, 50, 100, 250},
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	aiCallsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docupipe",
			Subsystem: "intelligence",
			Name:      "calls_total",
			Help:      "Total intelligence service calls by operation and status.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
		[]string{"operation", "status"},
	)
	aiCallDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "docupipe",
			Subsystem: "intelligence",
			Name:      "call_duration_seconds",
			Help:      "Intelligence service call duration in seconds by operation.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60, 120},
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
		[]string{"operation"},
	)

	registry.MustRegister(stageDuration, documentsTotal, documentsInFlight, batchesTotal, batchDocuments, aiCallsTotal, aiCallDuration)

	return &PipelineMetrics{
		registry:          registry,
		stageDuration:     stageDuration,
		documentsTotal:    documentsTotal,
		documentsInFlight: documentsInFlight,
		batchesTotal:      batchesTotal,
		batchDocuments:    batchDocuments,
		aiCallsTotal:      aiCallsTotal,
		aiCallDuration:    aiCallDuration,
	}
}

func (m *PipelineMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveEvent keeps the metrics in lockstep with the event surface so
// every subscriber sees the same counts the dashboards do.
func (m *PipelineMetrics) ObserveEvent(event domain.Event) {
	switch e := event.(type) {
	case domain.StageStarted:
		if e.Stage == domain.StageValidation {
			m.documentsInFlight.Inc()
		}
	case domain.StageCompleted:
		m.stageDuration.WithLabelValues(string(e.Stage), "success").Observe(e.Duration.Seconds())
	case domain.StageFailed:
		m.stageDuration.WithLabelValues(string(e.Stage), "error").Observe(e.Duration.Seconds())
	case domain.DocumentCompleted:
		m.documentsInFlight.Dec()
		status := "success"
		if !e.Success {
			status = "error"
		}
		m.documentsTotal.WithLabelValues(status).Inc()
	case domain.BatchCompleted:
		m.batchesTotal.Inc()
		m.batchDocuments.Observe(float64(e.Stats.Processed))
	}
}

// ObserveAICall implements the intelligence call observer port.
func (m *PipelineMetrics) ObserveAICall(operation string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.aiCallsTotal.WithLabelValues(operation, status).Inc()
	m.aiCallDuration.WithLabelValues(operation).Observe(duration.Seconds())
}
