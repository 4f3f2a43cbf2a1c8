package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type WorkerMetrics struct {
	registry *prometheus.Registry
	service  string

	processTotal    *prometheus.CounterVec
	processDuration *prometheus.HistogramVec
	processInFlight prometheus.Gauge
	processChunks   prometheus.Histogram
	queueLag        *prometheus.HistogramVec
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	registry := prometheus.NewRegistry()

	processTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "document_process_total",
			Help:      "Total processed documents by result.",
		},
		[]string{"service", "result"},
	)
	processDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "document_process_duration_seconds",
			Help:      "Document processing duration in seconds by result.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "result"},
	)
	processInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "document_process_in_flight",
			Help:      "Number of in-flight document processing tasks.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	processChunks := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "document_passages",
			Help:      "Distribution of indexed passages per processed document.",
			Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	queueLag := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "queue_lag_seconds",
			Help:      "Delay between event publish and processing start.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"service"},
	)

	registry.MustRegister(processTotal, processDuration, processInFlight, processChunks, queueLag)

	return &WorkerMetrics{
		registry:        registry,
		service:         service,
		processTotal:    processTotal,
		processDuration: processDuration,
		processInFlight: processInFlight,
		processChunks:   processChunks,
		queueLag:        queueLag,
	}
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *WorkerMetrics) StartDocument() {
	m.processInFlight.Inc()
}

func (m *WorkerMetrics) FinishDocument() {
	m.processInFlight.Dec()
}

// ObserveProcess records the outcome reported by the processing use case.
func (m *WorkerMetrics) ObserveProcess(_ context.Context, result string, duration time.Duration, chunks int) {
	m.processTotal.WithLabelValues(m.service, result).Inc()
	m.processDuration.WithLabelValues(m.service, result).Observe(duration.Seconds())
	if result == "success" {
		m.processChunks.Observe(float64(chunks))
	}
}

func (m *WorkerMetrics) ObserveQueueLag(lag time.Duration) {
	if lag < 0 {
		return
	}
	m.queueLag.WithLabelValues(m.service).Observe(lag.Seconds())
}
