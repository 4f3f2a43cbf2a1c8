package metrics

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "pdfrag"

type HTTPServerMetrics struct {
	registry *prometheus.Registry
	service  string

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge
	rejectedTotal   *prometheus.CounterVec

	askTotal          *prometheus.CounterVec
	askDuration       *prometheus.HistogramVec
	askSources        *prometheus.HistogramVec
	askNoContextTotal *prometheus.CounterVec

	processTotal    *prometheus.CounterVec
	processDuration *prometheus.HistogramVec
	processChunks   *prometheus.HistogramVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	rejectedTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "rejected_total",
			Help:      "Requests rejected by traffic control, by reason.",
		},
		[]string{"service", "reason"},
	)
	askTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rag",
			Name:      "ask_total",
			Help:      "Total answered questions by result.",
		},
		[]string{"service", "result"},
	)
	askDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "rag",
			Name:      "ask_duration_seconds",
			Help:      "Question answering duration in seconds.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 20, 30, 60},
		},
		[]string{"service", "result"},
	)
	askSources := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "rag",
			Name:      "retrieved_sources",
			Help:      "Distribution of retrieved passages per answered question.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13, 21},
		},
		[]string{"service"},
	)
	askNoContextTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rag",
			Name:      "no_context_total",
			Help:      "Total answered questions without retrieved passages.",
		},
		[]string{"service"},
	)
	processTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "documents_total",
			Help:      "Total document processing runs by result.",
		},
		[]string{"service", "result"},
	)
	processDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "duration_seconds",
			Help:      "Document processing duration in seconds.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		},
		[]string{"service", "result"},
	)
	processChunks := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "passages",
			Help:      "Distribution of indexed passages per processed document.",
			Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		},
		[]string{"service"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		rejectedTotal,
		askTotal,
		askDuration,
		askSources,
		askNoContextTotal,
		processTotal,
		processDuration,
		processChunks,
	)

	return &HTTPServerMetrics{
		registry:          registry,
		service:           service,
		requestTotal:      requestTotal,
		requestDuration:   requestDuration,
		requestInFlight:   requestInFlight,
		rejectedTotal:     rejectedTotal,
		askTotal:          askTotal,
		askDuration:       askDuration,
		askSources:        askSources,
		askNoContextTotal: askNoContextTotal,
		processTotal:      processTotal,
		processDuration:   processDuration,
		processChunks:     processChunks,
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) Middleware(next http.Handler) http.Handler {
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
			m.service,
			r.Method,
			path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(m.service, r.Method, path).Observe(time.Since(start).Seconds())
	})
}

// normalizePath keeps path labels bounded by collapsing ids.
func normalizePath(path string) string {
	switch {
	case path == "/v1/documents/samples":
		return path
	case strings.HasPrefix(path, "/v1/documents/") && strings.HasSuffix(path, "/process"):
		return "/v1/documents/{document_id}/process"
	case strings.HasPrefix(path, "/v1/documents/"):
		return "/v1/documents/{document_id}"
	case strings.HasPrefix(path, "/v1/search/history/"):
		return "/v1/search/history/{id}"
	default:
		return path
	}
}

func (m *HTTPServerMetrics) RecordRejected(reason string) {
	m.rejectedTotal.WithLabelValues(m.service, reason).Inc()
}

// ObserveAsk records one answered question.
func (m *HTTPServerMetrics) ObserveAsk(_ context.Context, result string, duration time.Duration, sources int) {
	m.askTotal.WithLabelValues(m.service, result).Inc()
	m.askDuration.WithLabelValues(m.service, result).Observe(duration.Seconds())
	if result != "success" {
		return
	}
	m.askSources.WithLabelValues(m.service).Observe(float64(sources))
	if sources == 0 {
		m.askNoContextTotal.WithLabelValues(m.service).Inc()
	}
}

// ObserveProcess records one synchronous processing run.
func (m *HTTPServerMetrics) ObserveProcess(_ context.Context, result string, duration time.Duration, chunks int) {
	m.processTotal.WithLabelValues(m.service, result).Inc()
	m.processDuration.WithLabelValues(m.service, result).Observe(duration.Seconds())
	if result == "success" {
		m.processChunks.WithLabelValues(m.service).Observe(float64(chunks))
	}
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
