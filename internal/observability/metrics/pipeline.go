package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type PipelineMetrics struct {
	registry *prometheus.Registry
	service  string

	jobsTotal     *prometheus.CounterVec
	jobDuration   *prometheus.HistogramVec
	jobsInFlight  prometheus.Gauge
	queueLag      *prometheus.HistogramVec
	embedBatches  *prometheus.CounterVec
	indexedChunks *prometheus.HistogramVec
}

// NewPipelineMetrics registers pipeline collectors on registry, or on a fresh
// registry when nil.
func NewPipelineMetrics(service string, registry *prometheus.Registry) *PipelineMetrics {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	jobsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pdfqa",
			Subsystem: "pipeline",
			Name:      "jobs_total",
			Help:      "Total processed jobs by outcome.",
		},
		[]string{"service", "status"},
	)
	jobDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "pdfqa",
			Subsystem: "pipeline",
			Name:      "job_duration_seconds",
			Help:      "Job processing duration in seconds by outcome.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"service", "status"},
	)
	jobsInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "pdfqa",
			Subsystem: "pipeline",
			Name:      "jobs_in_flight",
			Help:      "Number of jobs being processed.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	queueLag := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "pdfqa",
			Subsystem: "pipeline",
			Name:      "queue_lag_seconds",
			Help:      "Delay between upload and processing start.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"service"},
	)
	embedBatches := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pdfqa",
			Subsystem: "pipeline",
			Name:      "embedding_batches_total",
			Help:      "Total embedding batches submitted.",
		},
		[]string{"service"},
	)
	indexedChunks := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "pdfqa",
			Subsystem: "pipeline",
			Name:      "indexed_chunks",
			Help:      "Distribution of chunks per persisted index.",
			Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		},
		[]string{"service"},
	)

	registry.MustRegister(jobsTotal, jobDuration, jobsInFlight, queueLag, embedBatches, indexedChunks)

	return &PipelineMetrics{
		registry:      registry,
		service:       service,
		jobsTotal:     jobsTotal,
		jobDuration:   jobDuration,
		jobsInFlight:  jobsInFlight,
		queueLag:      queueLag,
		embedBatches:  embedBatches,
		indexedChunks: indexedChunks,
	}
}

func (m *PipelineMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *PipelineMetrics) StartJob() {
	m.jobsInFlight.Inc()
}

func (m *PipelineMetrics) FinishJob(duration time.Duration, err error) {
	m.jobsInFlight.Dec()

	status := "completed"
	switch {
	case errors.Is(err, context.Canceled):
		status = "cancelled"
	case errors.Is(err, context.DeadlineExceeded):
		status = "timeout"
	case err != nil:
		status = "failed"
	}

	m.jobsTotal.WithLabelValues(m.service, status).Inc()
	m.jobDuration.WithLabelValues(m.service, status).Observe(duration.Seconds())
}

func (m *PipelineMetrics) ObserveQueueLag(lag time.Duration) {
	if lag < 0 {
		return
	}
	m.queueLag.WithLabelValues(m.service).Observe(lag.Seconds())
}

func (m *PipelineMetrics) ObserveEmbeddingBatch() {
	m.embedBatches.WithLabelValues(m.service).Inc()
}

func (m *PipelineMetrics) ObserveIndexedChunks(count int) {
	m.indexedChunks.WithLabelValues(m.service).Observe(float64(count))
}
