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

// ServerMetrics gathers HTTP and retrieval telemetry on a private
// registry so tests can run multiple instances without collisions.
type ServerMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	strategyChunks    *prometheus.HistogramVec
	strategyFailures  *prometheus.CounterVec
	retrievalTotal    *prometheus.CounterVec
	retrievalDuration *prometheus.HistogramVec
	reloadTotal       *prometheus.CounterVec
}

func NewServerMetrics(service string) *ServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rga",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "rga",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "rga",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	strategyChunks := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "rga",
			Subsystem: "retrieval",
			Name:      "strategy_chunks",
			Help:      "Distribution of chunks contributed per strategy per query.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13},
		},
		[]string{"service", "strategy"},
	)
	strategyFailures := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rga",
			Subsystem: "retrieval",
			Name:      "strategy_failures_total",
			Help:      "Total strategy executions that contributed nothing due to failure.",
		},
		[]string{"service", "strategy"},
	)
	retrievalTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rga",
			Subsystem: "retrieval",
			Name:      "requests_total",
			Help:      "Total fused retrievals by mode.",
		},
		[]string{"service", "mode"},
	)
	retrievalDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "rga",
			Subsystem: "retrieval",
			Name:      "duration_seconds",
			Help:      "Fused retrieval duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service"},
	)
	reloadTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rga",
			Subsystem: "knowledge",
			Name:      "reloads_total",
			Help:      "Total knowledge snapshot reloads.",
		},
		[]string{"service"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		strategyChunks,
		strategyFailures,
		retrievalTotal,
		retrievalDuration,
		reloadTotal,
	)

	return &ServerMetrics{
		registry:          registry,
		requestTotal:      requestTotal,
		requestDuration:   requestDuration,
		requestInFlight:   requestInFlight,
		strategyChunks:    strategyChunks,
		strategyFailures:  strategyFailures,
		retrievalTotal:    retrievalTotal,
		retrievalDuration: retrievalDuration,
		reloadTotal:       reloadTotal,
	}
}

func (m *ServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *ServerMetrics) Middleware(service string, next http.Handler) http.Handler {
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
	case strings.HasPrefix(path, "/v1/documents/"):
		return "/v1/documents/{document_id}"
	default:
		return path
	}
}

// RetrievalObserver binds one service label so the retrieval use case
// stays ignorant of Prometheus.
type RetrievalObserver struct {
	metrics *ServerMetrics
	service string
}

func (m *ServerMetrics) Observer(service string) *RetrievalObserver {
	return &RetrievalObserver{metrics: m, service: service}
}

func (o *RetrievalObserver) ObserveStrategy(strategy string, chunks int) {
	o.metrics.strategyChunks.WithLabelValues(o.service, strategy).Observe(float64(chunks))
}

func (o *RetrievalObserver) ObserveStrategyFailure(strategy string) {
	o.metrics.strategyFailures.WithLabelValues(o.service, strategy).Inc()
}

func (o *RetrievalObserver) ObserveRetrieval(degraded bool, elapsed time.Duration) {
	mode := "fused"
	if degraded {
		mode = "degraded"
	}
	o.metrics.retrievalTotal.WithLabelValues(o.service, mode).Inc()
	o.metrics.retrievalDuration.WithLabelValues(o.service).Observe(elapsed.Seconds())
}

func (m *ServerMetrics) RecordReload(service string) {
	m.reloadTotal.WithLabelValues(service).Inc()
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

func (w *statusRecorder) Push(target string, opts *http.PushOptions) error {
	pusher, ok := w.ResponseWriter.(http.Pusher)
	if !ok {
		return http.ErrNotSupported
	}
	return pusher.Push(target, opts)
}
