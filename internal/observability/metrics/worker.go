package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type WorkerMetrics struct {
	registry *prometheus.Registry

	rebuildTotal    *prometheus.CounterVec
	rebuildDuration *prometheus.HistogramVec
	rebuildInFlight prometheus.Gauge
	corpusPassages  *prometheus.GaugeVec
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	registry := prometheus.NewRegistry()

	rebuildTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "psearch",
			Subsystem: "worker",
			Name:      "corpus_rebuild_total",
			Help:      "Total corpus index rebuilds by status.",
		},
		[]string{"service", "status"},
	)
	rebuildDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "psearch",
			Subsystem: "worker",
			Name:      "corpus_rebuild_duration_seconds",
			Help:      "Corpus index rebuild duration in seconds by status.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "status"},
	)
	rebuildInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "psearch",
			Subsystem: "worker",
			Name:      "corpus_rebuild_in_flight",
			Help:      "Number of in-flight corpus rebuilds.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	corpusPassages := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "psearch",
			Subsystem: "worker",
			Name:      "corpus_passages",
			Help:      "Passages loaded per corpus at the last rebuild.",
		},
		[]string{"service", "corpus_id"},
	)

	registry.MustRegister(rebuildTotal, rebuildDuration, rebuildInFlight, corpusPassages)

	return &WorkerMetrics{
		registry:        registry,
		rebuildTotal:    rebuildTotal,
		rebuildDuration: rebuildDuration,
		rebuildInFlight: rebuildInFlight,
		corpusPassages:  corpusPassages,
	}
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *WorkerMetrics) StartRebuild() {
	m.rebuildInFlight.Inc()
}

func (m *WorkerMetrics) FinishRebuild(service string, duration time.Duration, err error) {
	m.rebuildInFlight.Dec()

	status := "success"
	if err != nil {
		status = "error"
	}

	m.rebuildTotal.WithLabelValues(service, status).Inc()
	m.rebuildDuration.WithLabelValues(service, status).Observe(duration.Seconds())
}

func (m *WorkerMetrics) SetCorpusPassages(service, corpusID string, count int) {
	m.corpusPassages.WithLabelValues(service, corpusID).Set(float64(count))
}
