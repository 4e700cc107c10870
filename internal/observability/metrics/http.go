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

	searchTotal         *prometheus.CounterVec
	searchDuration      *prometheus.HistogramVec
	searchResultCount   *prometheus.HistogramVec
	searchVariantCount  *prometheus.HistogramVec
	rerankSkippedTotal  *prometheus.CounterVec
	relaxedRetryTotal   *prometheus.CounterVec
	corpusPassagesGauge *prometheus.GaugeVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "psearch",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "psearch",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "psearch",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	searchTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "psearch",
			Subsystem: "retrieval",
			Name:      "searches_total",
			Help:      "Total completed searches by outcome.",
		},
		[]string{"service", "endpoint", "outcome"},
	)
	searchDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "psearch",
			Subsystem: "retrieval",
			Name:      "search_duration_seconds",
			Help:      "End-to-end retrieval duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "endpoint"},
	)
	searchResultCount := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "psearch",
			Subsystem: "retrieval",
			Name:      "results_returned",
			Help:      "Distribution of results returned per search.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13},
		},
		[]string{"service", "endpoint"},
	)
	searchVariantCount := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "psearch",
			Subsystem: "retrieval",
			Name:      "query_variants",
			Help:      "Distribution of query variants scored per search.",
			Buckets:   []float64{1, 2, 3, 4, 5, 6, 7, 8},
		},
		[]string{"service", "endpoint"},
	)
	rerankSkippedTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "psearch",
			Subsystem: "retrieval",
			Name:      "rerank_skipped_total",
			Help:      "Total searches where the rerank stage was skipped or degraded.",
		},
		[]string{"service", "reason"},
	)
	relaxedRetryTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "psearch",
			Subsystem: "retrieval",
			Name:      "relaxed_retries_total",
			Help:      "Total searches that fell back to the relaxed confidence pass.",
		},
		[]string{"service", "endpoint"},
	)
	corpusPassagesGauge := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "psearch",
			Subsystem: "index",
			Name:      "corpus_passages",
			Help:      "Passages held by each loaded corpus index.",
		},
		[]string{"service", "corpus_id"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		searchTotal,
		searchDuration,
		searchResultCount,
		searchVariantCount,
		rerankSkippedTotal,
		relaxedRetryTotal,
		corpusPassagesGauge,
	)

	return &HTTPServerMetrics{
		registry:            registry,
		requestTotal:        requestTotal,
		requestDuration:     requestDuration,
		requestInFlight:     requestInFlight,
		searchTotal:         searchTotal,
		searchDuration:      searchDuration,
		searchResultCount:   searchResultCount,
		searchVariantCount:  searchVariantCount,
		rerankSkippedTotal:  rerankSkippedTotal,
		relaxedRetryTotal:   relaxedRetryTotal,
		corpusPassagesGauge: corpusPassagesGauge,
	}
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
	case strings.HasPrefix(path, "/v1/corpora/"):
		return "/v1/corpora/{corpus_id}"
	default:
		return path
	}
}

func (m *HTTPServerMetrics) RecordSearch(service, endpoint, outcome string, resultCount, variantCount int, duration time.Duration) {
	if outcome == "" {
		outcome = "unknown"
	}
	m.searchTotal.WithLabelValues(service, endpoint, outcome).Inc()
	m.searchDuration.WithLabelValues(service, endpoint).Observe(duration.Seconds())
	m.searchResultCount.WithLabelValues(service, endpoint).Observe(float64(resultCount))
	if variantCount > 0 {
		m.searchVariantCount.WithLabelValues(service, endpoint).Observe(float64(variantCount))
	}
}

func (m *HTTPServerMetrics) RecordRerankSkip(service, reason string) {
	if reason == "" {
		reason = "unknown"
	}
	m.rerankSkippedTotal.WithLabelValues(service, reason).Inc()
}

func (m *HTTPServerMetrics) RecordRelaxedRetry(service, endpoint string) {
	m.relaxedRetryTotal.WithLabelValues(service, endpoint).Inc()
}

func (m *HTTPServerMetrics) SetCorpusPassages(service, corpusID string, count int) {
	m.corpusPassagesGauge.WithLabelValues(service, corpusID).Set(float64(count))
}

func (m *HTTPServerMetrics) DropCorpus(service, corpusID string) {
	m.corpusPassagesGauge.DeleteLabelValues(service, corpusID)
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
