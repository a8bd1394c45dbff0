// Package metrics defines the Prometheus collectors for retrieval, LLM calls
// and the HTTP API. All observation methods accept a nil receiver so callers
// can run without metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all collectors, registered on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	QueriesTotal         *prometheus.CounterVec
	QueryLatency         prometheus.Histogram
	IndexBuildsTotal     *prometheus.CounterVec
	IndexBuildLatency    prometheus.Histogram
	IndexedChunks        prometheus.Gauge
	VocabularyTerms      prometheus.Gauge
	LLMRequestsTotal     *prometheus.CounterVec
	LLMLatency           prometheus.Histogram
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		QueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pdfrag_queries_total",
				Help: "Retrieval queries by outcome (hit, zero_score, error).",
			},
			[]string{"outcome"},
		),
		QueryLatency: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "pdfrag_query_latency_seconds",
				Help:    "Retrieval query latency in seconds.",
				Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
			},
		),
		IndexBuildsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pdfrag_index_builds_total",
				Help: "Index builds by status.",
			},
			[]string{"status"},
		),
		IndexBuildLatency: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "pdfrag_index_build_seconds",
				Help:    "Time spent chunking and indexing a document.",
				Buckets: prometheus.ExponentialBuckets(0.001, 4, 8),
			},
		),
		IndexedChunks: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "pdfrag_indexed_chunks",
				Help: "Number of chunks in the current index.",
			},
		),
		VocabularyTerms: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "pdfrag_vocabulary_terms",
				Help: "Number of distinct terms in the current index.",
			},
		),
		LLMRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pdfrag_llm_requests_total",
				Help: "Chat completion requests by kind and status.",
			},
			[]string{"kind", "status"},
		),
		LLMLatency: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "pdfrag_llm_latency_seconds",
				Help:    "Chat completion latency in seconds.",
				Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
		),
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pdfrag_http_requests_total",
				Help: "HTTP requests by method, path and status.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pdfrag_http_request_duration_seconds",
				Help:    "HTTP request latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 30},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "pdfrag_http_requests_in_flight",
				Help: "HTTP requests currently being served.",
			},
		),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.QueriesTotal,
		m.QueryLatency,
		m.IndexBuildsTotal,
		m.IndexBuildLatency,
		m.IndexedChunks,
		m.VocabularyTerms,
		m.LLMRequestsTotal,
		m.LLMLatency,
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
	)
	return m
}

// Handler returns the scrape handler for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveQuery records one retrieval. topScore is the best score returned.
func (m *Metrics) ObserveQuery(d time.Duration, topScore float64, err error) {
	if m == nil {
		return
	}
	outcome := "hit"
	switch {
	case err != nil:
		outcome = "error"
	case topScore == 0:
		outcome = "zero_score"
	}
	m.QueriesTotal.WithLabelValues(outcome).Inc()
	if err == nil {
		m.QueryLatency.Observe(d.Seconds())
	}
}

// ObserveBuild records one document load.
func (m *Metrics) ObserveBuild(d time.Duration, chunks, terms int, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.IndexBuildsTotal.WithLabelValues("error").Inc()
		return
	}
	m.IndexBuildsTotal.WithLabelValues("ok").Inc()
	m.IndexBuildLatency.Observe(d.Seconds())
	m.IndexedChunks.Set(float64(chunks))
	m.VocabularyTerms.Set(float64(terms))
}

// ObserveLLM records one chat completion of the given kind (ask, summary, topics).
func (m *Metrics) ObserveLLM(kind string, d time.Duration, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.LLMRequestsTotal.WithLabelValues(kind, status).Inc()
	m.LLMLatency.Observe(d.Seconds())
}
