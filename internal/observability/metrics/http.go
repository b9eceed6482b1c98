package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type HTTPServerMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	questionsTotal     *prometheus.CounterVec
	questionsNoContext *prometheus.CounterVec
	retrievedChunks    *prometheus.HistogramVec
	answerDuration     *prometheus.HistogramVec
	uploadedFiles      *prometheus.CounterVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pdfqa",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "pdfqa",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "pdfqa",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	questionsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pdfqa",
			Subsystem: "qa",
			Name:      "questions_total",
			Help:      "Total answered questions.",
		},
		[]string{"service"},
	)
	questionsNoContext := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pdfqa",
			Subsystem: "qa",
			Name:      "no_context_total",
			Help:      "Total answered questions without retrieved chunks.",
		},
		[]string{"service"},
	)
	retrievedChunks := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "pdfqa",
			Subsystem: "qa",
			Name:      "retrieved_chunks",
			Help:      "Distribution of retrieved chunks per answered question.",
			Buckets:   []float64{0, 1, 2, 3, 4, 5, 8, 13},
		},
		[]string{"service"},
	)
	answerDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "pdfqa",
			Subsystem: "qa",
			Name:      "duration_seconds",
			Help:      "Question answering duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service"},
	)
	uploadedFiles := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pdfqa",
			Subsystem: "upload",
			Name:      "files_total",
			Help:      "Total accepted PDF files.",
		},
		[]string{"service"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		questionsTotal,
		questionsNoContext,
		retrievedChunks,
		answerDuration,
		uploadedFiles,
	)

	return &HTTPServerMetrics{
		registry:           registry,
		requestTotal:       requestTotal,
		requestDuration:    requestDuration,
		requestInFlight:    requestInFlight,
		questionsTotal:     questionsTotal,
		questionsNoContext: questionsNoContext,
		retrievedChunks:    retrievedChunks,
		answerDuration:     answerDuration,
		uploadedFiles:      uploadedFiles,
	}
}

// Registry lets other collectors share the API exposition endpoint.
func (m *HTTPServerMetrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		path := normalizePath(r.URL.Path)
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		m.requestTotal.WithLabelValues(
			service,
			r.Method,
			path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(service, r.Method, path).Observe(time.Since(start).Seconds())
	})
}

func normalizePath(path string) string {
	switch {
	case strings.HasPrefix(path, "/processing-status/") && path != "/processing-status/":
		return "/processing-status/{job_id}"
	case strings.HasPrefix(path, "/jobs/"):
		return "/jobs/{job_id}/cancel"
	default:
		return path
	}
}

func (m *HTTPServerMetrics) RecordAnswer(service string, sourceCount int, duration time.Duration) {
	m.questionsTotal.WithLabelValues(service).Inc()
	m.retrievedChunks.WithLabelValues(service).Observe(float64(sourceCount))
	m.answerDuration.WithLabelValues(service).Observe(duration.Seconds())

	if sourceCount == 0 {
		m.questionsNoContext.WithLabelValues(service).Inc()
	}
}

func (m *HTTPServerMetrics) RecordUpload(service string, files int) {
	if files <= 0 {
		return
	}
	m.uploadedFiles.WithLabelValues(service).Add(float64(files))
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) Flush() {
	flusher, ok := w.ResponseWriter.(http.Flusher)
	if ok {
		flusher.Flush()
	}
}

func (w *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not implement http.Hijacker")
	}
	return hijacker.Hijack()
}
