// Package metrics exposes Prometheus instruments for ingestion and question answering.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "kotae"

// Query outcomes recorded by ObserveQuery.
const (
	OutcomeAnswered      = "answered"
	OutcomeNoDocuments   = "no_documents"
	OutcomeInvalid       = "invalid_input"
	OutcomeNotConfigured = "not_configured"
	OutcomeError         = "error"
)

// Metrics holds the instruments registered on a private registry.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	ingestedFiles  prometheus.Counter
	ingestedChunks prometheus.Counter
	skippedFiles   prometheus.Counter
	queries        *prometheus.CounterVec
	queryDuration  prometheus.Histogram
	retrieved      prometheus.Histogram
	entries        prometheus.Gauge
}

// New creates and registers the instruments along with the Go and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		ingestedFiles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "ingested_files_total",
			Help: "Source files read during ingestion.",
		}),
		ingestedChunks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "ingested_chunks_total",
			Help: "Chunks stored in the vector index.",
		}),
		skippedFiles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "skipped_files_total",
			Help: "Requested paths that did not resolve to a file.",
		}),
		queries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "queries_total",
			Help: "Questions handled, by outcome.",
		}, []string{"outcome"}),
		queryDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "query_duration_seconds",
			Help:    "End-to-end question answering latency.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		}),
		retrieved: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "retrieved_chunks",
			Help:    "Chunks retrieved per question.",
			Buckets: prometheus.LinearBuckets(0, 2, 10),
		}),
		entries: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "index_entries",
			Help: "Entries in the vector index collection.",
		}),
	}
	reg.MustRegister(
		m.ingestedFiles, m.ingestedChunks, m.skippedFiles,
		m.queries, m.queryDuration, m.retrieved, m.entries,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveIngest records one ingestion run.
func (m *Metrics) ObserveIngest(files, chunks, skipped int) {
	if m == nil {
		return
	}
	m.ingestedFiles.Add(float64(files))
	m.ingestedChunks.Add(float64(chunks))
	m.skippedFiles.Add(float64(skipped))
}

// ObserveQuery records one question with its outcome, latency and retrieval size.
func (m *Metrics) ObserveQuery(outcome string, d time.Duration, retrieved int) {
	if m == nil {
		return
	}
	m.queries.WithLabelValues(outcome).Inc()
	m.queryDuration.Observe(d.Seconds())
	if outcome == OutcomeAnswered || outcome == OutcomeNoDocuments {
		m.retrieved.Observe(float64(retrieved))
	}
}

// SetEntries records the current collection size.
func (m *Metrics) SetEntries(n int) {
	if m == nil {
		return
	}
	m.entries.Set(float64(n))
}

// Registry returns the private registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
